package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/fortai-labs/firmata/internal/interfaces"
	"github.com/fortai-labs/firmata/internal/models"
)

// WebhookHandler handles webhook registration API requests
type WebhookHandler struct {
	store   interfaces.WebhookStore
	scraper interfaces.ScraperService
	logger  arbor.ILogger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(store interfaces.WebhookStore, scraper interfaces.ScraperService, logger arbor.ILogger) *WebhookHandler {
	return &WebhookHandler{
		store:   store,
		scraper: scraper,
		logger:  logger,
	}
}

// CreateWebhookHandler registers a webhook for a config
// POST /api/webhooks
func (h *WebhookHandler) CreateWebhookHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.CreateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The webhooks table references configs, so surface a 404 up front
	// instead of a constraint violation.
	if _, err := h.scraper.GetConfig(ctx, req.ConfigID); err != nil {
		WriteAppError(w, err)
		return
	}

	webhook := models.NewWebhook(uuid.New().String(), req.ConfigID, req.URL, req.Events)
	if req.IsActive != nil {
		webhook.IsActive = *req.IsActive
	}

	if err := h.store.Create(ctx, webhook); err != nil {
		h.logger.Error().Err(err).Str("config_id", req.ConfigID).Msg("Failed to create webhook")
		WriteAppError(w, err)
		return
	}

	h.logger.Info().
		Str("webhook_id", webhook.ID).
		Str("config_id", webhook.ConfigID).
		Str("url", webhook.URL).
		Msg("Webhook registered")

	WriteJSON(w, http.StatusCreated, webhook)
}

// ListWebhooksHandler returns the webhooks registered for a config
// GET /api/webhooks?config_id={id}
func (h *WebhookHandler) ListWebhooksHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	configID := r.URL.Query().Get("config_id")
	if configID == "" {
		WriteError(w, http.StatusBadRequest, "config_id query parameter is required")
		return
	}

	webhooks, err := h.store.ListByConfig(ctx, configID)
	if err != nil {
		h.logger.Error().Err(err).Str("config_id", configID).Msg("Failed to list webhooks")
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"config_id": configID,
		"webhooks":  webhooks,
	})
}

// GetWebhookHandler returns a single webhook by ID
// GET /api/webhooks/{id}
func (h *WebhookHandler) GetWebhookHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	webhookID := pathSegment(r, 2)
	if webhookID == "" {
		WriteError(w, http.StatusBadRequest, "Webhook ID is required")
		return
	}

	webhook, err := h.store.Get(ctx, webhookID)
	if err != nil {
		h.logger.Warn().Err(err).Str("webhook_id", webhookID).Msg("Failed to get webhook")
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, webhook)
}

// UpdateWebhookHandler applies a partial update to a webhook
// PUT /api/webhooks/{id}
func (h *WebhookHandler) UpdateWebhookHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	webhookID := pathSegment(r, 2)
	if webhookID == "" {
		WriteError(w, http.StatusBadRequest, "Webhook ID is required")
		return
	}

	var req models.UpdateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	webhook, err := h.store.Get(ctx, webhookID)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	req.ApplyTo(webhook)
	if err := h.store.Update(ctx, webhook); err != nil {
		h.logger.Error().Err(err).Str("webhook_id", webhookID).Msg("Failed to update webhook")
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, webhook)
}

// DeleteWebhookHandler deletes a webhook
// DELETE /api/webhooks/{id}
func (h *WebhookHandler) DeleteWebhookHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	webhookID := pathSegment(r, 2)
	if webhookID == "" {
		WriteError(w, http.StatusBadRequest, "Webhook ID is required")
		return
	}

	if err := h.store.Delete(ctx, webhookID); err != nil {
		h.logger.Error().Err(err).Str("webhook_id", webhookID).Msg("Failed to delete webhook")
		WriteAppError(w, err)
		return
	}

	h.logger.Info().Str("webhook_id", webhookID).Msg("Webhook deleted")

	WriteJSON(w, http.StatusOK, map[string]string{
		"webhook_id": webhookID,
		"message":    "Webhook deleted successfully",
	})
}
