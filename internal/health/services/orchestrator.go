package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"optibid/internal/health/models"
)

// Orchestrator runs the full probe set. It never fails: every probe outcome,
// including a panic escaping a prober, becomes a recorded ServiceOutcome and
// startup proceeds regardless.
type Orchestrator struct {
	probers    []*Prober
	aggregator *Aggregator
}

func NewOrchestrator(aggregator *Aggregator, probers []*Prober) *Orchestrator {
	return &Orchestrator{
		probers:    probers,
		aggregator: aggregator,
	}
}

// RunAll probes every service concurrently, records the complete outcome map
// into the aggregator in a single swap, and returns the map. Total elapsed
// time tracks the slowest single probe, not the sum.
func (o *Orchestrator) RunAll(ctx context.Context) map[string]models.ServiceOutcome {
	outcomes := make(map[string]models.ServiceOutcome, len(o.probers))

	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, prober := range o.probers {
		wg.Add(1)
		go func(p *Prober) {
			defer wg.Done()

			outcome := o.runIsolated(ctx, p)

			mu.Lock()
			outcomes[outcome.Service] = outcome
			mu.Unlock()
		}(prober)
	}

	wg.Wait()

	for name, outcome := range outcomes {
		logServiceOutcome(name, outcome)
	}

	o.aggregator.Record(outcomes)

	return outcomes
}

// runIsolated guards the orchestrator against a misbehaving prober. The
// prober already converts its own failures; this is the outer fault boundary.
func (o *Orchestrator) runIsolated(ctx context.Context, p *Prober) (outcome models.ServiceOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = models.ServiceOutcome{
				Service:   p.ServiceName(),
				State:     models.StateUnavailable,
				Error:     fmt.Sprintf("probe panicked: %v", r),
				CheckedAt: time.Now(),
				Enabled:   p.descriptor.Enabled,
				Required:  p.descriptor.Required,
			}
		}
	}()

	return p.Probe(ctx)
}

func logServiceOutcome(name string, outcome models.ServiceOutcome) {
	switch outcome.State {
	case models.StateAvailable:
		slog.Info("Service available", "service", name)
	case models.StateDisabled:
		slog.Info("Service disabled by configuration", "service", name)
	case models.StateDegraded:
		slog.Warn("Service degraded", "service", name, "error", outcome.Error)
	case models.StateUnavailable:
		if outcome.Required {
			slog.Error("Required service unavailable", "service", name, "error", outcome.Error)
		} else {
			slog.Warn("Optional service unavailable, continuing without it", "service", name, "error", outcome.Error)
		}
	}
}
