// Package jobs runs transcriptions asynchronously for remote callers. A job
// is persisted when submitted, runs once a concurrency slot is free, and ends
// with either the full transcript or an error. Live segments of a running job
// can be observed through [Manager.Subscribe].
package jobs

import (
	"errors"
	"time"

	"github.com/MrWong99/wavscribe/internal/transcribe"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsValid reports whether s is a recognised status.
func (s Status) IsValid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s is a final status.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

var (
	// ErrNotFound is returned when no job has the requested ID.
	ErrNotFound = errors.New("jobs: job not found")

	// ErrFinished is returned when cancelling a job that already ended.
	ErrFinished = errors.New("jobs: job already finished")

	// ErrNotRunning is returned when subscribing to a job that is not active.
	ErrNotRunning = errors.New("jobs: job is not active")

	// ErrShuttingDown is returned by Submit after Shutdown was called.
	ErrShuttingDown = errors.New("jobs: manager is shutting down")
)

// Job is one asynchronous transcription. Text is set only on success and
// Error only on failure or cancellation.
type Job struct {
	ID        string            `json:"id"`
	Status    Status            `json:"status"`
	Params    transcribe.Params `json:"params"`
	Text      string            `json:"text,omitempty"`
	Error     string            `json:"error,omitempty"`
	Segments  int               `json:"segments"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// clone returns a copy of j that shares no slices with it.
func (j *Job) clone() *Job {
	c := *j
	c.Params.Inputs = append([]string(nil), j.Params.Inputs...)
	c.Params.Outputs = append([]string(nil), j.Params.Outputs...)
	return &c
}
