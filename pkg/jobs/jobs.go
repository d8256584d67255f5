// Package jobs tracks the status of dispatched pipeline runs across the
// boundary: the submitting side records a pending job, the replaying side
// records the outcome.
package jobs

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of a tracked job.
type Status string

const (
	// StatusPending means the envelope was handed off but not picked up yet
	StatusPending Status = "pending"
	// StatusRunning means the remainder is replaying
	StatusRunning Status = "running"
	// StatusCompleted means the remainder finished
	StatusCompleted Status = "completed"
	// StatusFailed means the remainder returned an error
	StatusFailed Status = "failed"
)

// ErrJobNotFound indicates no record exists for a job ID.
var ErrJobNotFound = errors.New("job not found")

// Record is the stored state of one job.
type Record struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Result    any       `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists job records. Implementations are safe for concurrent use;
// the submitting and replaying sides may write from different processes.
type Store interface {
	// SaveJob creates or updates a job record
	SaveJob(ctx context.Context, rec Record) error

	// GetJob retrieves a job record, or ErrJobNotFound
	GetJob(ctx context.Context, id string) (*Record, error)
}
