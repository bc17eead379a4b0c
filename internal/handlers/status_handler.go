package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/fortai-labs/firmata/internal/common"
	"github.com/fortai-labs/firmata/internal/interfaces"
)

// Pinger is any backend with a connectivity check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SchedulerState reports whether the cron scheduler loop is active.
type SchedulerState interface {
	IsRunning() bool
}

// StatusHandler handles health and status API requests
type StatusHandler struct {
	db        Pinger
	queue     interfaces.JobQueue
	objects   interfaces.ObjectStore
	scheduler SchedulerState
	queueName string
	workers   int
	started   time.Time
	logger    arbor.ILogger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(db Pinger, queue interfaces.JobQueue, objects interfaces.ObjectStore, scheduler SchedulerState, queueName string, workers int, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		db:        db,
		queue:     queue,
		objects:   objects,
		scheduler: scheduler,
		queueName: queueName,
		workers:   workers,
		started:   time.Now(),
		logger:    logger,
	}
}

// HealthHandler pings every backend and reports per-dependency health
// GET /api/health
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{
		"database": "ok",
		"queue":    "ok",
		"storage":  "ok",
	}
	healthy := true

	if err := h.db.Ping(ctx); err != nil {
		checks["database"] = err.Error()
		healthy = false
	}
	if err := h.queue.Ping(ctx); err != nil {
		checks["queue"] = err.Error()
		healthy = false
	}
	if err := h.objects.Ping(ctx); err != nil {
		checks["storage"] = err.Error()
		healthy = false
	}

	status := "ok"
	statusCode := http.StatusOK
	if !healthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
		h.logger.Warn().Str("checks", fmt.Sprint(checks)).Msg("Health check degraded")
	}

	WriteJSON(w, statusCode, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// GetStatusHandler reports queue depth and component state
// GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	pending, err := h.queue.Length(ctx, h.queueName)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to read queue length")
		pending = -1
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"version":           common.GetVersion(),
		"uptime_seconds":    int(time.Since(h.started).Seconds()),
		"queue_name":        h.queueName,
		"queued_jobs":       pending,
		"workers":           h.workers,
		"scheduler_running": h.scheduler.IsRunning(),
	})
}
