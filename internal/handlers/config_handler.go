package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/fortai-labs/firmata/internal/interfaces"
	"github.com/fortai-labs/firmata/internal/models"
)

// ConfigHandler handles scraper config API requests
type ConfigHandler struct {
	scraper interfaces.ScraperService
	logger  arbor.ILogger
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(scraper interfaces.ScraperService, logger arbor.ILogger) *ConfigHandler {
	return &ConfigHandler{
		scraper: scraper,
		logger:  logger,
	}
}

// CreateConfigHandler creates a new scraper config
// POST /api/configs
func (h *ConfigHandler) CreateConfigHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.CreateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	config := req.ToConfig()
	if err := h.scraper.CreateConfig(ctx, config); err != nil {
		h.logger.Error().Err(err).Str("name", req.Name).Msg("Failed to create config")
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, config)
}

// ListConfigsHandler returns a paginated list of configs
// GET /api/configs?limit=10&offset=0
func (h *ConfigHandler) ListConfigsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, offset := listParams(r)

	configs, err := h.scraper.ListConfigs(ctx, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list configs")
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"configs": configs,
		"limit":   limit,
		"offset":  offset,
	})
}

// GetConfigHandler returns a single config by ID
// GET /api/configs/{id}
func (h *ConfigHandler) GetConfigHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	configID := pathSegment(r, 2)
	if configID == "" {
		WriteError(w, http.StatusBadRequest, "Config ID is required")
		return
	}

	config, err := h.scraper.GetConfig(ctx, configID)
	if err != nil {
		h.logger.Warn().Err(err).Str("config_id", configID).Msg("Failed to get config")
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, config)
}

// UpdateConfigHandler applies a partial update to a config
// PUT /api/configs/{id}
func (h *ConfigHandler) UpdateConfigHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	configID := pathSegment(r, 2)
	if configID == "" {
		WriteError(w, http.StatusBadRequest, "Config ID is required")
		return
	}

	var req models.UpdateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	config, err := h.scraper.GetConfig(ctx, configID)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	req.ApplyTo(config)
	if err := h.scraper.UpdateConfig(ctx, config); err != nil {
		h.logger.Error().Err(err).Str("config_id", configID).Msg("Failed to update config")
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, config)
}

// DeleteConfigHandler deletes a config
// DELETE /api/configs/{id}
func (h *ConfigHandler) DeleteConfigHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	configID := pathSegment(r, 2)
	if configID == "" {
		WriteError(w, http.StatusBadRequest, "Config ID is required")
		return
	}

	if err := h.scraper.DeleteConfig(ctx, configID); err != nil {
		h.logger.Error().Err(err).Str("config_id", configID).Msg("Failed to delete config")
		WriteAppError(w, err)
		return
	}

	h.logger.Info().Str("config_id", configID).Msg("Config deleted")

	WriteJSON(w, http.StatusOK, map[string]string{
		"config_id": configID,
		"message":   "Config deleted successfully",
	})
}

// TriggerJobHandler starts a job for a config outside its schedule
// POST /api/configs/{id}/trigger
func (h *ConfigHandler) TriggerJobHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	configID := pathSegment(r, 2)
	if configID == "" {
		WriteError(w, http.StatusBadRequest, "Config ID is required")
		return
	}

	job, err := h.scraper.CreateJob(ctx, configID)
	if err != nil {
		h.logger.Error().Err(err).Str("config_id", configID).Msg("Failed to trigger job")
		WriteAppError(w, err)
		return
	}

	h.logger.Info().Str("config_id", configID).Str("job_id", job.ID).Msg("Job triggered")

	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"job_id":    job.ID,
		"config_id": job.ConfigID,
		"status":    job.Status,
	})
}

// ImportConfigsHandler creates configs in bulk from a YAML document
// POST /api/configs/import
func (h *ConfigHandler) ImportConfigsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var doc models.ConfigImport
	if err := yaml.NewDecoder(r.Body).Decode(&doc); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid YAML: %v", err))
		return
	}
	if len(doc.Configs) == 0 {
		WriteError(w, http.StatusBadRequest, "No configs in import document")
		return
	}

	imported := make([]*models.ScraperConfig, 0, len(doc.Configs))
	failed := make([]string, 0)

	for _, def := range doc.Configs {
		req := def.AsCreateRequest()
		if err := validate.Struct(req); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", def.Name, err))
			continue
		}

		config := req.ToConfig()
		if err := h.scraper.CreateConfig(ctx, config); err != nil {
			h.logger.Warn().Err(err).Str("name", def.Name).Msg("Config import entry rejected")
			failed = append(failed, fmt.Sprintf("%s: %v", def.Name, err))
			continue
		}
		imported = append(imported, config)
	}

	h.logger.Info().
		Int("imported", len(imported)).
		Int("failed", len(failed)).
		Msg("Config import finished")

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"imported": len(imported),
		"configs":  imported,
		"failed":   failed,
	})
}
