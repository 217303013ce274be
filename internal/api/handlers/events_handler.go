package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/formbricks/wordsim/internal/api/response"
	"github.com/formbricks/wordsim/internal/service"
	"github.com/formbricks/wordsim/internal/simerrors"
	"github.com/formbricks/wordsim/internal/validation"
)

const defaultHeartbeat = 15 * time.Second

// EventsQuery holds the GET /v1/events query parameters.
type EventsQuery struct {
	// Replay sends ready and the latest snapshot before live events (default true).
	Replay *bool `form:"replay"`
}

// EventsHandler streams engine messages as Server-Sent Events.
type EventsHandler struct {
	feed      Feed
	heartbeat time.Duration
}

// NewEventsHandler creates a new events handler. A non-positive heartbeat uses 15s.
func NewEventsHandler(feed Feed, heartbeat time.Duration) *EventsHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}

	return &EventsHandler{feed: feed, heartbeat: heartbeat}
}

// Stream handles GET /v1/events. Each frame's event name is the message type and its data is
// the message JSON. The stream ends when the client disconnects, falls too far behind, or the
// engine stops.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	var query EventsQuery
	if err := validation.ValidateAndDecodeQueryParams(r.URL.Query(), &query); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, simerrors.ErrValidation) {
			status = http.StatusBadRequest
		}

		response.RespondError(w, status, http.StatusText(status), err.Error())

		return
	}

	replay := query.Replay == nil || *query.Replay

	// Subscribe before the headers go out so a client that has seen the response misses nothing.
	sub := h.feed.Subscribe(replay)
	defer sub.Close()

	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := rc.Flush(); err != nil {
		slog.WarnContext(r.Context(), "event stream not flushable", "error", err)

		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		case event, ok := <-sub.C:
			if !ok {
				return
			}

			if err := writeEvent(w, event); err != nil {
				slog.DebugContext(r.Context(), "event stream write failed", "error", err)

				return
			}
		}

		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, event service.Event) error {
	data, err := json.Marshal(event.Message)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Message.Type, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	return nil
}
