// Package store provides the JobRepo interface for durable background jobs.
//
// The flow engine only enqueues: post-response side effects (gamification,
// notifications) are fanned out by an external scheduler with its own
// retry/backoff policy, which consumes this table.
package store

import "time"

// JobStatus represents the lifecycle state of a job.
type JobStatus string

const (
	JobStatusQueued   JobStatus = "queued"
	JobStatusDone     JobStatus = "done"
	JobStatusCanceled JobStatus = "canceled"
)

// Job is a durable background job record.
type Job struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	RunAt       time.Time `json:"run_at"`
	PayloadJSON string    `json:"payload_json"`
	Status      JobStatus `json:"status"`
	DedupeKey   string    `json:"dedupe_key"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// JobRepo is the enqueue-only capability the flow engine depends on.
type JobRepo interface {
	// EnqueueJob inserts a new job. If dedupeKey is non-empty and a queued
	// job with that key already exists, the call returns the existing job ID
	// without inserting a duplicate.
	EnqueueJob(kind string, runAt time.Time, payloadJSON string, dedupeKey string) (string, error)

	// GetJob retrieves a single job by ID; (nil, nil) when unknown.
	GetJob(id string) (*Job, error)
}
