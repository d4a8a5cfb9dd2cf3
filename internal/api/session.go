package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/evercast/internal/deeplink"
	"github.com/stwalsh4118/evercast/internal/logger"
	"github.com/stwalsh4118/evercast/internal/playback"
	"github.com/stwalsh4118/evercast/internal/session"
)

const (
	sessionContextKey    = "session"
	createSessionTimeout = 10 * time.Second
)

// sessionManager defines what SessionHandler needs from the session manager
type sessionManager interface {
	Create(ctx context.Context, deepLink string) (*session.Session, error)
	Get(id string) (*session.Session, error)
	Delete(id string) error
}

// SessionHandler exposes playback sessions over HTTP
type SessionHandler struct {
	sessions sessionManager
}

// NewSessionHandler creates a new session handler instance
func NewSessionHandler(manager *session.Manager) *SessionHandler {
	return &SessionHandler{sessions: manager}
}

// CreateSession handles POST /sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: err.Error(),
			})
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), createSessionTimeout)
	defer cancel()

	s, err := h.sessions.Create(ctx, strings.TrimSpace(req.DeepLink))
	if err != nil {
		switch {
		case errors.Is(err, session.ErrManagerStopped):
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{
				Error:   "service_unavailable",
				Message: "Playback service is shutting down",
			})
		case errors.Is(err, session.ErrTooManySessions):
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{
				Error:   "too_many_sessions",
				Message: "Session limit reached",
			})
		default:
			logger.Log.Error().Err(err).Msg("Failed to create session")
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "create_failed",
				Message: "Failed to create session",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, s.Info())
}

// GetSession handles GET /sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, currentSession(c).Info())
}

// DeleteSession handles DELETE /sessions/:id
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	if err := h.sessions.Delete(c.Param("id")); err != nil {
		if session.IsNotFound(err) {
			respondSessionNotFound(c)
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "delete_failed",
			Message: "Failed to close session",
		})
		return
	}
	c.Status(http.StatusNoContent)
}

// Play handles POST /sessions/:id/play, a manual override
func (h *SessionHandler) Play(c *gin.Context) {
	s := currentSession(c)

	var req PlayRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ItemID) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "item_id is required",
		})
		return
	}

	if _, err := s.Engine.StartByID(strings.TrimSpace(req.ItemID)); err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, TransitionResponse{Changed: true, State: s.Engine.Snapshot()})
}

// DeepLink handles POST /sessions/:id/deeplink
func (h *SessionHandler) DeepLink(c *gin.Context) {
	s := currentSession(c)

	var req PlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	id := req.ItemID
	if id == "" && req.URL != "" {
		id, _ = deeplink.FromURL(req.URL)
	}

	item, err := s.DeepLinks.Trigger(id)
	if err != nil {
		switch {
		case errors.Is(err, deeplink.ErrEmptyID):
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: "item_id or a recognised url is required",
			})
		case deeplink.IsAlreadyHandled(err):
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "already_handled",
				Message: "This deep link was already applied",
			})
		case deeplink.IsUnknownItem(err):
			respondItemNotFound(c)
		default:
			respondEngineError(c, err)
		}
		return
	}

	c.JSON(http.StatusAccepted, DeepLinkResponse{
		Item:    item,
		DelayMS: s.DeepLinks.Delay().Milliseconds(),
	})
}

// ContentEnded handles POST /sessions/:id/content-ended
func (h *SessionHandler) ContentEnded(c *gin.Context) {
	s := currentSession(c)

	var req ContentEndedRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: err.Error(),
			})
			return
		}
	}

	err := s.Engine.OnItemEnded(strings.TrimSpace(req.ItemID))
	respondTransition(c, s, err == nil, err)
}

// DismissOverlay handles POST /sessions/:id/overlay/dismiss
func (h *SessionHandler) DismissOverlay(c *gin.Context) {
	s := currentSession(c)
	changed := s.Engine.DismissOverlay()
	c.JSON(http.StatusOK, TransitionResponse{Changed: changed, State: s.Engine.Snapshot()})
}

// PrepareNext handles POST /sessions/:id/prepare
func (h *SessionHandler) PrepareNext(c *gin.Context) {
	s := currentSession(c)
	_, ok := s.Engine.PrepareNext()
	c.JSON(http.StatusOK, TransitionResponse{Changed: ok, NoContent: !ok, State: s.Engine.Snapshot()})
}

// ScheduleAdvance handles POST /sessions/:id/advance
func (h *SessionHandler) ScheduleAdvance(c *gin.Context) {
	s := currentSession(c)

	var req AdvanceRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: err.Error(),
			})
			return
		}
	}

	scheduled := s.Engine.ScheduleAdvance(time.Duration(req.DelayMS) * time.Millisecond)
	c.JSON(http.StatusOK, TransitionResponse{Changed: scheduled, State: s.Engine.Snapshot()})
}

// ScheduleSlideAdvance handles POST /sessions/:id/slide-advance
func (h *SessionHandler) ScheduleSlideAdvance(c *gin.Context) {
	s := currentSession(c)
	scheduled := s.Engine.ScheduleSlideAdvance()
	c.JSON(http.StatusOK, TransitionResponse{Changed: scheduled, State: s.Engine.Snapshot()})
}

// ReportError handles POST /sessions/:id/errors
func (h *SessionHandler) ReportError(c *gin.Context) {
	s := currentSession(c)

	var req PlaybackErrorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}
	source := playback.FailureSource(strings.ToLower(strings.TrimSpace(req.Source)))
	if !source.IsValid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_source",
			Message: "source must be bumper or content",
		})
		return
	}

	failure := &playback.PlaybackFailure{
		Source:    source,
		Kind:      playback.ParseFailureKind(req.Kind),
		ItemID:    strings.TrimSpace(req.ItemID),
		BumperURL: strings.TrimSpace(req.BumperURL),
	}
	if req.Message != "" {
		failure.Cause = errors.New(req.Message)
	}

	before := s.Engine.Snapshot().Revision
	err := s.Engine.ReportPlaybackError(failure)
	respondTransition(c, s, s.Engine.Snapshot().Revision != before, err)
}

// SetVisibility handles POST /sessions/:id/visibility
func (h *SessionHandler) SetVisibility(c *gin.Context) {
	s := currentSession(c)

	var req VisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "visible is required",
		})
		return
	}

	s.Guard.SetVisible(*req.Visible)
	c.JSON(http.StatusOK, VisibilityResponse{Visible: *req.Visible, WakeLock: s.Guard.Held()})
}

// loadSession resolves :id and stores the session in the gin context
func (h *SessionHandler) loadSession(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondSessionNotFound(c)
		c.Abort()
		return
	}
	c.Set(sessionContextKey, s)
	c.Next()
}

// rateLimited rejects triggers that exceed the session's rate limit
func rateLimited(c *gin.Context) {
	s := currentSession(c)
	if !s.AllowTrigger() {
		logger.Log.Warn().
			Str("session_id", s.ID).
			Str("path", c.FullPath()).
			Msg("Trigger rate limit exceeded")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
			Error:   "rate_limited",
			Message: "Too many playback triggers, slow down",
		})
		return
	}
	c.Next()
}

func currentSession(c *gin.Context) *session.Session {
	return c.MustGet(sessionContextKey).(*session.Session)
}

func respondTransition(c *gin.Context, s *session.Session, changed bool, err error) {
	if err != nil && !playback.IsNoContent(err) {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, TransitionResponse{
		Changed:   changed,
		NoContent: playback.IsNoContent(err),
		State:     s.Engine.Snapshot(),
	})
}

func respondEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, playback.ErrItemNotFound):
		respondItemNotFound(c)
	case playback.IsClosed(err), errors.Is(err, deeplink.ErrClosed):
		c.JSON(http.StatusGone, ErrorResponse{
			Error:   "session_closed",
			Message: "Session has ended",
		})
	default:
		logger.Log.Error().Err(err).Msg("Playback operation failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "playback_failed",
			Message: "Playback operation failed",
		})
	}
}

func respondSessionNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, ErrorResponse{
		Error:   "session_not_found",
		Message: "Session not found",
	})
}

func respondItemNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, ErrorResponse{
		Error:   "item_not_found",
		Message: "Content item not found",
	})
}

// SetupSessionRoutes registers session routes
func SetupSessionRoutes(apiGroup *gin.RouterGroup, manager *session.Manager) {
	registerSessionRoutes(apiGroup, &SessionHandler{sessions: manager})
}

func registerSessionRoutes(apiGroup *gin.RouterGroup, handler *SessionHandler) {
	sessions := apiGroup.Group("/sessions")
	sessions.POST("", handler.CreateSession)
	sessions.DELETE("/:id", handler.DeleteSession)

	s := sessions.Group("/:id", handler.loadSession)
	s.GET("", handler.GetSession)
	s.GET("/events", handler.StreamEvents)
	s.POST("/overlay/dismiss", handler.DismissOverlay)
	s.POST("/prepare", handler.PrepareNext)
	s.POST("/advance", handler.ScheduleAdvance)
	s.POST("/slide-advance", handler.ScheduleSlideAdvance)
	s.POST("/visibility", handler.SetVisibility)

	triggers := s.Group("", rateLimited)
	triggers.POST("/play", handler.Play)
	triggers.POST("/deeplink", handler.DeepLink)
	triggers.POST("/content-ended", handler.ContentEnded)
	triggers.POST("/errors", handler.ReportError)
}
