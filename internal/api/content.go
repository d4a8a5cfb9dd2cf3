package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/evercast/internal/logger"
	"github.com/stwalsh4118/evercast/internal/models"
)

type contentLister interface {
	List(ctx context.Context) ([]*models.ContentRecord, error)
}

// ContentHandler serves the stored catalogue
type ContentHandler struct {
	content contentLister
}

// NewContentHandler creates a new content handler
func NewContentHandler(content contentLister) *ContentHandler {
	return &ContentHandler{content: content}
}

// List handles GET /content
func (h *ContentHandler) List(c *gin.Context) {
	records, err := h.content.List(c.Request.Context())
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to list content")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to retrieve content",
		})
		return
	}

	if records == nil {
		records = []*models.ContentRecord{}
	}
	c.JSON(http.StatusOK, ContentListResponse{Items: records, Total: len(records)})
}

// SetupContentRoutes registers catalogue routes
func SetupContentRoutes(apiGroup *gin.RouterGroup, content contentLister) {
	handler := NewContentHandler(content)
	apiGroup.GET("/content", handler.List)
}
