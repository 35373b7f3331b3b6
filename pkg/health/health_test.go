package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(t *testing.T, fn http.HandlerFunc) (int, map[string]any) {
	t.Helper()

	rec := httptest.NewRecorder()
	fn(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return rec.Code, body
}

func TestLiveEndpoint(t *testing.T) {
	svc := New()
	svc.AddLivenessCheck("always-ok", time.Second, func(context.Context) error { return nil })
	svc.Start(context.Background(), time.Hour)
	defer svc.Stop()

	code, body := probe(t, svc.LiveEndpoint)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["checks"].(map[string]any)["always-ok"])
}

func TestLiveEndpoint_FailingCheck(t *testing.T) {
	svc := New()
	svc.AddLivenessCheck("broken", time.Second, func(context.Context) error {
		return errors.New("down")
	})
	svc.Start(context.Background(), time.Hour)
	defer svc.Stop()

	code, body := probe(t, svc.LiveEndpoint)

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "fail", body["status"])
	assert.Equal(t, "fail", body["checks"].(map[string]any)["broken"])
}

func TestReadyEndpoint_RequiresSetReady(t *testing.T) {
	svc := New()
	svc.AddReadinessCheck("always-ok", time.Second, func(context.Context) error { return nil })
	svc.Start(context.Background(), time.Hour)
	defer svc.Stop()

	code, _ := probe(t, svc.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code, "not ready until SetReady(true)")

	svc.SetReady(true)
	code, body := probe(t, svc.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	svc.SetReady(false)
	code, _ = probe(t, svc.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code, "drained for shutdown")
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))
}
