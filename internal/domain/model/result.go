package model

import "time"

// GenerationResult is the finished artifact handed to the result storage
// collaborator: the ordered units of one completed job.
type GenerationResult struct {
	ID        string        `json:"id"`
	JobID     string        `json:"job_id"`
	Kind      string        `json:"kind"`
	Topic     string        `json:"topic"`
	Units     []ContentUnit `json:"units"`
	CreatedAt time.Time     `json:"created_at"`
}
