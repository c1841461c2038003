// File: internal/infra/ws/hub.go
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"edu-ai-generation/internal/domain/model"
	"edu-ai-generation/internal/domain/ports/adapter"
	"edu-ai-generation/internal/infra/metrics"
	"edu-ai-generation/internal/usecase"
)

// Compile-time check
var _ usecase.EventSink = (*Hub)(nil)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameBytes  = 64 << 10
	sendBufferSize = 64
)

// Hub owns the push-channel connection registry exclusively. The registry is
// process-local: pushes reach only sessions connected to the instance running
// the job's pipeline, which is why polling the shared store is the channel
// that works across a fleet.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*session
	byJob    map[string]map[*conn]struct{}

	actions adapter.ActionHandler
	log     *zerolog.Logger
}

// session is one logical viewer: client identity plus connection instance.
// A session may hold several sockets (browser tabs sharing a session id).
type session struct {
	id              string
	lastClientState json.RawMessage
	conns           map[*conn]struct{}
}

type conn struct {
	ws    *websocket.Conn
	send  chan []byte
	sess  *session
	jobID string
}

func NewHub(actions adapter.ActionHandler, log *zerolog.Logger) *Hub {
	return &Hub{
		sessions: map[string]*session{},
		byJob:    map[string]map[*conn]struct{}{},
		actions:  actions,
		log:      log,
	}
}

// ---- server frames ----

type statusFrame struct {
	Type         string            `json:"type"` // "status" | "done" | "error"
	JobID        string            `json:"job_id"`
	Status       model.JobStatus   `json:"status"`
	ProgressPct  int               `json:"progress_pct"`
	CurrentStage string            `json:"current_stage,omitempty"`
	ResultID     string            `json:"result_id,omitempty"`
	Error        *model.JobFailure `json:"error,omitempty"`
}

type unitFrame struct {
	Type  string             `json:"type"` // "unit"
	JobID string             `json:"job_id"`
	Unit  *model.ContentUnit `json:"unit"`
}

type deltaFrame struct {
	Type  string `json:"type"` // "delta"
	JobID string `json:"job_id"`
	Stage string `json:"stage"`
	Text  string `json:"text"`
}

// ---- client frames ----

type clientFrame struct {
	Type   string          `json:"type"` // "state_sync" | "action"
	State  json.RawMessage `json:"state,omitempty"`
	Action json.RawMessage `json:"action,omitempty"`
}

// HandleConn registers an upgraded connection for a job and serves it until
// disconnect. Deregistration is guaranteed on every exit path. snapshot, when
// non-nil, is pushed first so a late subscriber starts from current state.
func (h *Hub) HandleConn(ctx context.Context, wsConn *websocket.Conn, jobID, sessionID string, snapshot *model.Job) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	c := &conn{ws: wsConn, send: make(chan []byte, sendBufferSize), jobID: jobID}
	h.register(sessionID, c)
	metrics.SessionOpened()
	h.log.Debug().Str("job_id", jobID).Str("session_id", sessionID).Msg("push channel connected")

	defer func() {
		h.unregister(c)
		metrics.SessionClosed()
		_ = wsConn.Close()
		h.log.Debug().Str("job_id", jobID).Str("session_id", sessionID).Msg("push channel disconnected")
	}()

	if snapshot != nil {
		if b, err := json.Marshal(jobStatusFrame(snapshot)); err == nil {
			c.send <- b
		}
	}

	go c.writePump()
	c.readPump(ctx, h)
}

func (h *Hub) register(sessionID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.sessions[sessionID]
	if s == nil {
		s = &session{id: sessionID, conns: map[*conn]struct{}{}}
		h.sessions[sessionID] = s
	}
	s.conns[c] = struct{}{}
	c.sess = s
	if h.byJob[c.jobID] == nil {
		h.byJob[c.jobID] = map[*conn]struct{}{}
	}
	h.byJob[c.jobID][c] = struct{}{}
}

func (h *Hub) unregister(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func (h *Hub) dropLocked(c *conn) {
	if s := c.sess; s != nil {
		delete(s.conns, c)
		if len(s.conns) == 0 {
			delete(h.sessions, s.id)
		}
	}
	if set := h.byJob[c.jobID]; set != nil {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.byJob, c.jobID)
		}
	}
}

// broadcast is best-effort: a connection that cannot keep up is dropped on
// its own, never the whole session.
func (h *Hub) broadcast(jobID string, payload interface{}, evType string) {
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.byJob[jobID] {
		select {
		case c.send <- b:
		default:
			metrics.IncDroppedConn()
			h.dropLocked(c)
		}
	}
	metrics.IncPush(evType)
}

// ---- usecase.EventSink ----

func (h *Hub) Delta(jobID, stage, text string) {
	h.broadcast(jobID, deltaFrame{Type: "delta", JobID: jobID, Stage: stage, Text: text}, "delta")
}

func (h *Hub) UnitEmitted(jobID string, unit *model.ContentUnit) {
	h.broadcast(jobID, unitFrame{Type: "unit", JobID: jobID, Unit: unit}, "unit")
}

func (h *Hub) StatusChanged(job *model.Job) {
	f := jobStatusFrame(job)
	h.broadcast(job.ID, f, f.Type)
}

func jobStatusFrame(job *model.Job) statusFrame {
	f := statusFrame{
		Type:         "status",
		JobID:        job.ID,
		Status:       job.Status,
		ProgressPct:  job.ProgressPct,
		CurrentStage: job.CurrentStage,
	}
	switch job.Status {
	case model.JobStatusDone:
		f.Type = "done"
		f.ResultID = job.ResultID
	case model.JobStatusError:
		f.Type = "error"
		f.Error = job.Error
	}
	return f
}

// ---- pumps ----

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *conn) readPump(ctx context.Context, h *Hub) {
	c.ws.SetReadLimit(maxFrameBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var f clientFrame
		if err := json.Unmarshal(data, &f); err != nil {
			h.log.Debug().Err(err).Str("job_id", c.jobID).Msg("unreadable client frame")
			continue
		}
		switch f.Type {
		case "state_sync":
			// Advisory only; bookkeeping, no side effects.
			h.mu.Lock()
			if c.sess != nil {
				c.sess.lastClientState = f.State
			}
			h.mu.Unlock()
		case "action":
			if h.actions != nil {
				sessID := ""
				if c.sess != nil {
					sessID = c.sess.id
				}
				if err := h.actions.HandleAction(ctx, sessID, f.Action); err != nil {
					h.log.Warn().Err(err).Str("job_id", c.jobID).Msg("action handler failed")
				}
			}
		default:
			h.log.Debug().Str("type", f.Type).Msg("unknown client frame type")
		}
	}
}
