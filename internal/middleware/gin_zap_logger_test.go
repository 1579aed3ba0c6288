package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newRouter(t *testing.T) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)

	r := gin.New()
	r.Use(GinZapLogger(zap.New(core)))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	return r, logs
}

func TestGinZapLogger(t *testing.T) {
	t.Run("Skips health", func(t *testing.T) {
		r, logs := newRouter(t)
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, 0, logs.Len())
	})

	t.Run("Logs completed request with query", func(t *testing.T) {
		r, logs := newRouter(t)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok?tag=horror", nil))

		require.Equal(t, 1, logs.Len())
		entry := logs.All()[0]
		assert.Equal(t, zapcore.InfoLevel, entry.Level)
		assert.Equal(t, "/ok?tag=horror", entry.ContextMap()["path"])
		assert.NotEmpty(t, w.Header().Get(requestIDHeader))
	})

	t.Run("Keeps incoming request id", func(t *testing.T) {
		r, logs := newRouter(t)
		req := httptest.NewRequest(http.MethodGet, "/missing", nil)
		req.Header.Set(requestIDHeader, "abc")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
		assert.Equal(t, "abc", w.Header().Get(requestIDHeader))
	})
}
