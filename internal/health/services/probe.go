package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"optibid/internal/health/models"
	"optibid/pkg/config"
)

// ProbeFunc performs the dependency-specific handshake. It must honor ctx
// cancellation; the runner bounds it with the descriptor timeout. Returning a
// *models.DegradedError reports the degraded state instead of unavailable.
type ProbeFunc func(ctx context.Context) error

// Prober binds one service descriptor to its probe function. A single probe
// attempt never retries; retry policy belongs to the orchestrator.
type Prober struct {
	descriptor config.ServiceDescriptor
	fn         ProbeFunc
}

func NewProber(descriptor config.ServiceDescriptor, fn ProbeFunc) *Prober {
	return &Prober{descriptor: descriptor, fn: fn}
}

// ServiceName returns the probed service's configured name.
func (p *Prober) ServiceName() string {
	return p.descriptor.Name
}

// Probe runs one bounded attempt and converts every failure mode, including
// panics out of client libraries, into a ServiceOutcome. It never returns an
// error and never blocks past the descriptor timeout.
func (p *Prober) Probe(ctx context.Context) models.ServiceOutcome {
	outcome := models.ServiceOutcome{
		Service:   p.descriptor.Name,
		CheckedAt: time.Now(),
		Enabled:   p.descriptor.Enabled,
		Required:  p.descriptor.Required,
	}

	if !p.descriptor.Enabled {
		outcome.State = models.StateDisabled
		return outcome
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.descriptor.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("probe panicked: %v", r)
			}
		}()
		done <- p.fn(probeCtx)
	}()

	select {
	case <-probeCtx.Done():
		// The in-flight attempt is abandoned, not awaited; the goroutine's
		// buffered send lets it exit once the client call unwinds.
		outcome.State = models.StateUnavailable
		if errors.Is(probeCtx.Err(), context.Canceled) {
			outcome.Error = "probe cancelled before completion"
		} else {
			outcome.Error = fmt.Sprintf("probe timed out after %s", p.descriptor.Timeout)
		}
	case err := <-done:
		switch {
		case err == nil:
			outcome.State = models.StateAvailable
		case isDegraded(err):
			outcome.State = models.StateDegraded
			outcome.Error = err.Error()
		default:
			outcome.State = models.StateUnavailable
			outcome.Error = err.Error()
		}
	}

	outcome.CheckedAt = time.Now()
	return outcome
}

func isDegraded(err error) bool {
	var degraded *models.DegradedError
	return errors.As(err, &degraded)
}
