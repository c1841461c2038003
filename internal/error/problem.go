package derror

import (
	"encoding/json"
	"errors"
	"net/http"

	"edu-ai-generation/internal/domain"
)

// Problem is the RFC 9457 error envelope returned by every synchronous
// failure. Never a bare string.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

const typeBase = "https://edu-ai-generation.dev/problems/"

// FromError maps domain sentinels onto problem responses.
func FromError(err error, instance string) Problem {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrPromptTooLarge):
		return Problem{
			Type:     typeBase + "validation",
			Title:    "Invalid submission",
			Status:   http.StatusBadRequest,
			Detail:   err.Error(),
			Instance: instance,
		}
	case errors.Is(err, domain.ErrNotFound):
		return Problem{
			Type:     typeBase + "not-found",
			Title:    "Not found",
			Status:   http.StatusNotFound,
			Detail:   err.Error(),
			Instance: instance,
		}
	case errors.Is(err, domain.ErrResultNotReady):
		return Problem{
			Type:     typeBase + "result-not-ready",
			Title:    "Result not ready",
			Status:   http.StatusNotFound,
			Detail:   err.Error(),
			Instance: instance,
		}
	case errors.Is(err, domain.ErrStoreUnavailable):
		return Problem{
			Type:     typeBase + "store-unavailable",
			Title:    "Job store unavailable",
			Status:   http.StatusServiceUnavailable,
			Detail:   "the shared job store is unreachable; retry the request",
			Instance: instance,
		}
	default:
		return Problem{
			Type:     typeBase + "internal",
			Title:    "Internal error",
			Status:   http.StatusInternalServerError,
			Detail:   err.Error(),
			Instance: instance,
		}
	}
}

// Write renders the problem with the media type RFC 9457 specifies.
func (p Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
