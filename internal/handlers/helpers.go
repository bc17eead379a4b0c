package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/fortai-labs/firmata/internal/common"
)

// List endpoints fall back to a small page when no limit is given.
const (
	defaultListLimit = 10
	maxListLimit     = 100
)

// validate checks request structs against their `validate` tags. A single
// instance caches parsed struct metadata across requests.
var validate = validator.New()

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteAppError writes the standard error shape with the HTTP status derived
// from the error kind.
func WriteAppError(w http.ResponseWriter, err error) error {
	return WriteError(w, common.HTTPStatus(err), err.Error())
}

// pathSegment returns the slash-separated path segment at idx, counted from
// the start of the trimmed path, or "" when the path is too short. For
// "/api/jobs/{id}" the id is pathSegment(r, 2).
func pathSegment(r *http.Request, idx int) string {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if idx < 0 || idx >= len(parts) {
		return ""
	}
	return parts[idx]
}

// listParams extracts limit and offset query parameters.
// Returns limit (default 10, max 100) and offset (default 0).
func listParams(r *http.Request) (limit, offset int) {
	limit = defaultListLimit

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= maxListLimit {
			limit = parsed
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return limit, offset
}
