package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readyStatus(t *testing.T, h *HealthHandler) (int, HealthStatus) {
	t.Helper()

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	var body struct {
		Data HealthStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body.Data
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(0).Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReady(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := NewHealthHandler(time.Second).WithRedis(client)

	code, status := readyStatus(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "ok", status.Checks["redis"])

	h.WithCheck("database", func(ctx context.Context) error {
		return errors.New("connection refused")
	})

	code, status = readyStatus(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "error", status.Status)
	assert.Equal(t, "ok", status.Checks["redis"])
	assert.Equal(t, "failed: connection refused", status.Checks["database"])
}
