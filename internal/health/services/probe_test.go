package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"optibid/internal/health/models"
	"optibid/pkg/config"

	"github.com/stretchr/testify/assert"
)

func testDescriptor(name string, enabled, required bool, timeout time.Duration) config.ServiceDescriptor {
	return config.ServiceDescriptor{
		Name:     name,
		URL:      "test://" + name,
		Enabled:  enabled,
		Required: required,
		Timeout:  timeout,
	}
}

func TestProbeDisabledServiceSkipsNetworkCall(t *testing.T) {
	invoked := false
	prober := NewProber(testDescriptor("cache", false, false, time.Second), func(ctx context.Context) error {
		invoked = true
		return nil
	})

	outcome := prober.Probe(context.Background())

	assert.Equal(t, models.StateDisabled, outcome.State)
	assert.Empty(t, outcome.Error)
	assert.False(t, invoked, "disabled probe must not attempt a connection")
}

func TestProbeOutcomeMapping(t *testing.T) {
	tests := []struct {
		name      string
		fn        ProbeFunc
		wantState models.ServiceState
		wantError bool
	}{
		{
			name:      "successful handshake",
			fn:        func(ctx context.Context) error { return nil },
			wantState: models.StateAvailable,
		},
		{
			name:      "connection refused",
			fn:        func(ctx context.Context) error { return errors.New("connection refused") },
			wantState: models.StateUnavailable,
			wantError: true,
		},
		{
			name: "capability check failed",
			fn: func(ctx context.Context) error {
				return &models.DegradedError{Reason: "unexpected server version"}
			},
			wantState: models.StateDegraded,
			wantError: true,
		},
		{
			name: "wrapped degraded error",
			fn: func(ctx context.Context) error {
				return errors.Join(errors.New("secondary check"), &models.DegradedError{Reason: "slow"})
			},
			wantState: models.StateDegraded,
			wantError: true,
		},
		{
			name:      "client library panics",
			fn:        func(ctx context.Context) error { panic("nil pointer in driver") },
			wantState: models.StateUnavailable,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prober := NewProber(testDescriptor("olap-store", true, false, time.Second), tt.fn)
			outcome := prober.Probe(context.Background())

			assert.Equal(t, tt.wantState, outcome.State)
			if tt.wantError {
				assert.NotEmpty(t, outcome.Error)
			} else {
				assert.Empty(t, outcome.Error)
			}
			assert.Equal(t, "olap-store", outcome.Service)
			assert.True(t, outcome.Enabled)
			assert.False(t, outcome.CheckedAt.IsZero())
		})
	}
}

func TestProbeTimeoutBoundsHungDependency(t *testing.T) {
	prober := NewProber(testDescriptor("stream-broker", true, false, 50*time.Millisecond), func(ctx context.Context) error {
		time.Sleep(500 * time.Millisecond)
		return nil
	})

	start := time.Now()
	outcome := prober.Probe(context.Background())
	elapsed := time.Since(start)

	assert.Equal(t, models.StateUnavailable, outcome.State)
	assert.Contains(t, outcome.Error, "timed out")
	assert.Less(t, elapsed, 300*time.Millisecond, "probe must return at the timeout, not wait for the hung call")
}

func TestProbeReportsParentCancellation(t *testing.T) {
	prober := NewProber(testDescriptor("olap-store", true, false, time.Second), func(ctx context.Context) error {
		// Simulates a client call that takes a moment to unwind after
		// cancellation; the probe must not wait for it.
		<-ctx.Done()
		time.Sleep(100 * time.Millisecond)
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	outcome := prober.Probe(ctx)
	elapsed := time.Since(start)

	assert.Equal(t, models.StateUnavailable, outcome.State)
	assert.Contains(t, outcome.Error, "cancelled")
	assert.NotContains(t, outcome.Error, "timed out")
	assert.Less(t, elapsed, 500*time.Millisecond, "cancellation must not wait for the probe timeout")
}

func TestProbeCarriesDescriptorFlags(t *testing.T) {
	prober := NewProber(testDescriptor("cache", true, true, time.Second), func(ctx context.Context) error {
		return nil
	})

	outcome := prober.Probe(context.Background())

	assert.True(t, outcome.Required)
	assert.True(t, outcome.Enabled)
}
