package ws

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"edu-ai-generation/internal/domain/ports/adapter"
)

var _ adapter.ActionHandler = (*LogActionHandler)(nil)

// LogActionHandler is the default sink for action frames when no external
// handler is wired: it records the action and drops it.
type LogActionHandler struct {
	log *zerolog.Logger
}

func NewLogActionHandler(log *zerolog.Logger) *LogActionHandler {
	return &LogActionHandler{log: log}
}

func (h *LogActionHandler) HandleAction(_ context.Context, sessionID string, action json.RawMessage) error {
	h.log.Info().Str("session_id", sessionID).RawJSON("action", action).Msg("client action received")
	return nil
}
