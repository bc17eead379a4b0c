package models

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrNoMessage is returned by queue receives when the poll timeout elapses
// without a message becoming available.
var ErrNoMessage = errors.New("no message available")

// JobPayload is the wire format of a queue entry. Producers write the JSON
// form; the decoder also accepts a legacy payload that is a bare job UUID.
type JobPayload struct {
	JobID      string    `json:"job_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewJobPayload builds a payload for the given job stamped with the current
// time.
func NewJobPayload(jobID string) *JobPayload {
	return &JobPayload{JobID: jobID, EnqueuedAt: time.Now().UTC()}
}

// Encode renders the payload as JSON.
func (p *JobPayload) Encode() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeJobPayload parses a queue payload. JSON objects must carry a job_id;
// anything that is not a JSON object is treated as a bare job id string.
func DecodeJobPayload(raw string) (*JobPayload, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		var p JobPayload
		if err := json.Unmarshal([]byte(trimmed), &p); err != nil {
			return nil, err
		}
		if p.JobID == "" {
			return nil, errors.New("payload has no job_id")
		}
		return &p, nil
	}
	if trimmed == "" {
		return nil, errors.New("empty payload")
	}
	return &JobPayload{JobID: trimmed}, nil
}
