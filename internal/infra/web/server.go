package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"edu-ai-generation/internal/infra/ws"
	"edu-ai-generation/internal/usecase"
)

// Server exposes the generation subsystem over HTTP: submission, poll,
// result fetch and the push-channel upgrade.
type Server struct {
	orch usecase.Orchestrator
	hub  *ws.Hub
	up   websocket.Upgrader
	log  *zerolog.Logger
}

func NewServer(orch usecase.Orchestrator, hub *ws.Hub, logger *zerolog.Logger) *Server {
	return &Server{
		orch: orch,
		hub:  hub,
		up: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: logger,
	}
}

// Router builds the chi router with all routes attached.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Post("/generate", s.handleGenerate)
	r.Get("/jobs/{jobID}", s.handleJobStatus)
	r.Get("/jobs/{jobID}/stream", s.handleJobStream)
	r.Get("/results/{resultID}", s.handleResult)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
