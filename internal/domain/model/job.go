package model

import "time"

type JobStatus string

const (
	JobStatusQueued     JobStatus = "QUEUED"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusDone       JobStatus = "DONE"
	JobStatusError      JobStatus = "ERROR"
)

// Terminal reports whether no further transition may leave this status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusError
}

// JobFailure is the structured error detail attached to a failed job.
type JobFailure struct {
	Stage     string `json:"stage,omitempty"`
	Reason    string `json:"reason"`
	Retryable bool   `json:"retryable"`
}

// Job tracks one asynchronous generation request across all server instances.
// The record is always written whole; partial updates are not allowed.
type Job struct {
	ID             string      `json:"id"`
	IdempotencyKey string      `json:"idempotency_key"`
	Kind           string      `json:"kind"`
	Topic          string      `json:"topic"`
	Audience       string      `json:"audience,omitempty"`
	Narrate        bool        `json:"narrate,omitempty"`
	Status         JobStatus   `json:"status"`
	ProgressPct    int         `json:"progress_pct"`
	CurrentStage   string      `json:"current_stage,omitempty"`

	// ProvisionalResultID is handed out at submission; it becomes ResultID
	// when the job completes. ResultID itself is set only on DONE.
	ProvisionalResultID string      `json:"provisional_result_id"`
	ResultID            string      `json:"result_id,omitempty"`
	Error               *JobFailure `json:"error,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

func NewJob(id, idemKey, kind, topic, audience string, narrate bool) *Job {
	now := time.Now()
	return &Job{
		ID:             id,
		IdempotencyKey: idemKey,
		Kind:           kind,
		Topic:          topic,
		Audience:       audience,
		Narrate:        narrate,
		Status:         JobStatusQueued,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
