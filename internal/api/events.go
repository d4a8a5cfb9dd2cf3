package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stwalsh4118/evercast/internal/logger"
)

// sseKeepAlive is how often an idle event stream writes a comment line
var sseKeepAlive = 15 * time.Second

// StreamEvents handles GET /sessions/:id/events.
// Clients receive the latest state immediately, then every state change as it happens.
func (h *SessionHandler) StreamEvents(c *gin.Context) {
	s := currentSession(c)
	w := c.Writer

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	w.Flush()

	// the server write timeout would otherwise cut long-lived streams
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		logger.Log.Debug().Err(err).Msg("Event stream keeps the server write deadline")
	}

	id := uuid.New().String()
	ch := s.Events.Subscribe(id)
	defer s.Events.Unsubscribe(id)

	logger.Log.Debug().
		Str("session_id", s.ID).
		Str("subscriber_id", id).
		Msg("Event stream opened")

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if err := sendSSE(w, "state", snap); err != nil {
				logger.Log.Debug().Err(err).Str("session_id", s.ID).Msg("Event stream write failed")
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			w.Flush()
			s.Touch(time.Now())
		case <-c.Request.Context().Done():
			return
		}
	}
}

func sendSSE(w gin.ResponseWriter, event string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	w.Flush()
	return nil
}
