package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/fortai-labs/firmata/internal/interfaces"
	"github.com/fortai-labs/firmata/internal/models"
)

// JobHandler handles crawl job API requests
type JobHandler struct {
	scraper interfaces.ScraperService
	pages   interfaces.PageStore
	logger  arbor.ILogger
}

// NewJobHandler creates a new job handler
func NewJobHandler(scraper interfaces.ScraperService, pages interfaces.PageStore, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		scraper: scraper,
		pages:   pages,
		logger:  logger,
	}
}

// CreateJobHandler queues a new crawl job for a config
// POST /api/jobs
func (h *JobHandler) CreateJobHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.scraper.CreateJob(ctx, req.ConfigID)
	if err != nil {
		h.logger.Error().Err(err).Str("config_id", req.ConfigID).Msg("Failed to create job")
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, job)
}

// ListJobsHandler returns a paginated list of jobs
// GET /api/jobs?limit=10&offset=0&status=completed&config_id={id}
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, offset := listParams(r)

	opts := &interfaces.ListOptions{
		Limit:    limit,
		Offset:   offset,
		Status:   r.URL.Query().Get("status"),
		ConfigID: r.URL.Query().Get("config_id"),
	}

	jobs, totalCount, err := h.scraper.ListJobs(ctx, opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list jobs")
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":        jobs,
		"total_count": totalCount,
		"limit":       limit,
		"offset":      offset,
	})
}

// GetJobHandler returns a single job by ID
// GET /api/jobs/{id}
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID := pathSegment(r, 2)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	job, err := h.scraper.GetJob(ctx, jobID)
	if err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// CancelJobHandler cancels a pending or running job
// POST /api/jobs/{id}/cancel
func (h *JobHandler) CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID := pathSegment(r, 2)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	job, err := h.scraper.CancelJob(ctx, jobID)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to cancel job")
		WriteAppError(w, err)
		return
	}

	h.logger.Info().Str("job_id", jobID).Msg("Job cancelled")

	WriteJSON(w, http.StatusOK, job)
}

// ListJobPagesHandler returns the pages fetched by a job
// GET /api/jobs/{id}/pages?limit=10&offset=0
func (h *JobHandler) ListJobPagesHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, offset := listParams(r)

	jobID := pathSegment(r, 2)
	if jobID == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	// 404 for unknown jobs rather than an empty page list
	if _, err := h.scraper.GetJob(ctx, jobID); err != nil {
		WriteAppError(w, err)
		return
	}

	pages, err := h.pages.ListByJob(ctx, jobID, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to list job pages")
		WriteAppError(w, err)
		return
	}

	totalCount, err := h.pages.CountByJob(ctx, jobID)
	if err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to count job pages")
		totalCount = len(pages)
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":      jobID,
		"pages":       pages,
		"total_count": totalCount,
		"limit":       limit,
		"offset":      offset,
	})
}
