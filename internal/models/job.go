package models

import (
	"encoding/json"
	"time"
)

// JobStatus represents the state of a scrape job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether the status is a final state. Terminal states are
// sticky: no transition leaves them.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Job is one execution of a ScraperConfig.
//
// Lifecycle: pending -> running -> {completed, failed, cancelled}.
// StartedAt is set when the job first enters running; CompletedAt is set on
// any terminal transition. Counters only ever increase.
type Job struct {
	ID       string    `json:"id"`
	ConfigID string    `json:"config_id"`
	Status   JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	PagesCrawled int `json:"pages_crawled"`
	PagesFailed  int `json:"pages_failed"`
	PagesSkipped int `json:"pages_skipped"`

	WorkerID     *string         `json:"worker_id,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
}

// NewJob creates a pending job for the given config.
func NewJob(id, configID string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        id,
		ConfigID:  configID,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Start transitions the job to running and records the worker that claimed it.
func (j *Job) Start(workerID string) {
	now := time.Now().UTC()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.WorkerID = &workerID
	j.UpdatedAt = now
}

// Complete transitions the job to completed.
func (j *Job) Complete() {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// Fail transitions the job to failed with the given error text.
func (j *Job) Fail(message string) {
	now := time.Now().UTC()
	j.Status = JobStatusFailed
	j.ErrorMessage = &message
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// Cancel transitions the job to cancelled.
func (j *Job) Cancel() {
	now := time.Now().UTC()
	j.Status = JobStatusCancelled
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// IsTerminal reports whether the job has reached a final state.
func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// CanCancel reports whether a cancel request is valid for the current state.
func (j *Job) CanCancel() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusRunning
}
