// AngelaMos | 2026
// health_test.go

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type pinger func(ctx context.Context) error

func (p pinger) Ping(ctx context.Context) error {
	return p(ctx)
}

func ok(context.Context) error { return nil }

func readiness(t *testing.T, h *Handler) (int, ReadinessResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	var resp ReadinessResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestReadinessAllHealthy(t *testing.T) {
	h := NewHandler(
		Check{Name: "database", Checker: pinger(ok)},
		Check{Name: "redis", Checker: pinger(ok)},
	)

	code, resp := readiness(t, h)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Checks, 2)
	require.Equal(t, "database", resp.Checks[0].Name)
	require.Equal(t, "redis", resp.Checks[1].Name)
}

func TestReadinessRequiredFailure(t *testing.T) {
	h := NewHandler(
		Check{Name: "database", Checker: pinger(func(context.Context) error {
			return errors.New("connection refused")
		})},
		Check{Name: "redis", Checker: pinger(ok), Optional: true},
		Check{Name: "queue"},
	)

	code, resp := readiness(t, h)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "unavailable", resp.Status)
	require.False(t, resp.Checks[0].Healthy)
	require.Equal(t, "ping failed", resp.Checks[0].Message)
	require.True(t, resp.Checks[1].Healthy)
	require.Equal(t, "queue checker not configured", resp.Checks[2].Message)
}

func TestReadinessDegradedByOptionalDependency(t *testing.T) {
	h := NewHandler(
		Check{Name: "database", Checker: pinger(ok)},
		Check{Name: "redis", Optional: true, Checker: pinger(func(context.Context) error {
			return errors.New("connection refused")
		})},
	)

	code, resp := readiness(t, h)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "degraded", resp.Status)
	require.False(t, resp.Checks[1].Healthy)
	require.True(t, resp.Checks[1].Optional)
}

func TestShutdownFailsProbes(t *testing.T) {
	h := NewHandler(Check{Name: "database", Checker: pinger(ok)})
	h.SetShutdown(true)

	rec := httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	code, resp := readiness(t, h)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "shutting_down", resp.Status)
}
