package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/evercast/internal/logger"
)

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), RequestLogger())
	router.GET("/api/sessions/:id", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})
	router.GET("/api/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.GET("/api/broken", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})
	return router
}

func TestRequestID(t *testing.T) {
	router := setupRouter()

	t.Run("Generated when absent", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/api/sessions/abc", nil))

		id := w.Header().Get(RequestIDHeader)
		assert.Len(t, id, 36)
		assert.Equal(t, id, w.Body.String())
	})

	t.Run("Propagated when present", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/sessions/abc", nil)
		req.Header.Set(RequestIDHeader, "trace-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "trace-123", w.Header().Get(RequestIDHeader))
	})
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, "info", false)
	t.Cleanup(func() { logger.Init("info", false) })

	router := setupRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/sessions/abc", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, buf.String(), `"session_id":"abc"`)
	assert.Contains(t, buf.String(), `"request_id"`)

	buf.Reset()
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/health", nil))
	assert.Empty(t, buf.String(), "health probes log below info")

	buf.Reset()
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/broken", nil))
	assert.Contains(t, buf.String(), `"level":"error"`)
}
