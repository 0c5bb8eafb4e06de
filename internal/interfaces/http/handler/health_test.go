package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthHandler_Check(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		h := NewHealthHandler("1.2.0",
			WithHealthCheck("database", func(context.Context) error { return nil }),
			WithSessionCounter(func() int { return 3 }))
		c, w := newTestContext()

		h.Check(c)

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, "ok", data["status"])
		assert.Equal(t, "1.2.0", data["version"])
		assert.Equal(t, float64(3), data["open_sessions"])
		assert.Equal(t, map[string]any{"database": "ok"}, data["checks"])
	})

	t.Run("failing dependency", func(t *testing.T) {
		h := NewHealthHandler("1.2.0",
			WithHealthCheck("database", func(context.Context) error { return nil }),
			WithHealthCheck("redis", func(context.Context) error { return errors.New("connection refused") }))
		c, w := newTestContext()

		h.Check(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, "degraded", data["status"])
		assert.Equal(t, "connection refused", data["checks"].(map[string]any)["redis"])
		assert.NotContains(t, data, "open_sessions")
	})
}
