package adapter

import (
	"context"
	"encoding/json"
)

// ActionHandler receives action frames forwarded from the push channel.
// What the action means is owned by the collaborator behind this port.
type ActionHandler interface {
	HandleAction(ctx context.Context, sessionID string, action json.RawMessage) error
}
