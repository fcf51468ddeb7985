// AngelaMos | 2026
// telemetry_test.go

package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/daf-manager/internal/config"
)

func TestDisabledTelemetryIsNoop(t *testing.T) {
	tel, err := NewTelemetry(
		context.Background(),
		config.OtelConfig{Enabled: true},
		config.AppConfig{Name: "daf-manager"},
	)
	require.NoError(t, err)
	require.NoError(t, tel.Shutdown(context.Background()))

	var nilTel *Telemetry
	require.NoError(t, nilTel.Shutdown(context.Background()))
}

func TestSamplerFallsBackToDefaultRate(t *testing.T) {
	for _, rate := range []float64{0, -1, 1.5} {
		require.Contains(t, sampler(rate).Description(), "TraceIDRatioBased{0.1}")
	}
	require.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased{0.5}")
}

func TestSpansWithoutProviderHaveNoTraceID(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "daf-manager/test", "noop")
	EndSpan(span, errors.New("boom"))
	require.Empty(t, TraceIDFromContext(ctx))
}
