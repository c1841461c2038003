package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"edu-ai-generation/internal/domain"
	derror "edu-ai-generation/internal/error"
	"edu-ai-generation/internal/usecase"
)

// The JSON request body for a generation submission.
type generateRequest struct {
	Kind     string `json:"kind"`
	Topic    string `json:"topic"`
	Audience string `json:"audience,omitempty"`
	Narrate  bool   `json:"narrate,omitempty"`
}

type generateResponse struct {
	JobID               string `json:"job_id"`
	ProvisionalResultID string `json:"provisional_result_id"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	key := r.Header.Get("Idempotency-Key")
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		derror.FromError(domain.ErrInvalidArgument, r.URL.Path).Write(w)
		return
	}

	job, created, err := s.orch.Submit(ctx, usecase.SubmitRequest{
		IdempotencyKey: key,
		Kind:           req.Kind,
		Topic:          req.Topic,
		Audience:       req.Audience,
		Narrate:        req.Narrate,
	})
	if err != nil {
		derror.FromError(err, r.URL.Path).Write(w)
		return
	}
	if !created {
		s.log.Debug().Str("job_id", job.ID).Msg("idempotent submission hit")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(generateResponse{
		JobID:               job.ID,
		ProvisionalResultID: job.ProvisionalResultID,
	})
}

// jobStatusResponse is what polling clients see; it carries the same terminal
// facts the push channel announces, read from the shared store.
type jobStatusResponse struct {
	Status       string      `json:"status"`
	ProgressPct  int         `json:"progress_pct"`
	CurrentStage string      `json:"current_stage,omitempty"`
	ResultID     string      `json:"result_id,omitempty"`
	Error        interface{} `json:"error,omitempty"`
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	job, err := s.orch.Status(ctx, chi.URLParam(r, "jobID"))
	if err != nil {
		derror.FromError(err, r.URL.Path).Write(w)
		return
	}

	resp := jobStatusResponse{
		Status:       string(job.Status),
		ProgressPct:  job.ProgressPct,
		CurrentStage: job.CurrentStage,
		ResultID:     job.ResultID,
	}
	if job.Error != nil {
		resp.Error = job.Error
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	res, err := s.orch.Result(ctx, chi.URLParam(r, "resultID"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			derror.FromError(domain.ErrResultNotReady, r.URL.Path).Write(w)
			return
		}
		derror.FromError(err, r.URL.Path).Write(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(res)
}

func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "jobID")

	// Verify the job exists before holding a socket open for it.
	job, err := s.orch.Status(ctx, jobID)
	if err != nil {
		derror.FromError(err, r.URL.Path).Write(w)
		return
	}

	conn, err := s.up.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("job_id", jobID).Msg("websocket upgrade failed")
		return
	}
	s.hub.HandleConn(ctx, conn, jobID, r.URL.Query().Get("session"), job)
}
