package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"optibid/internal/health/models"
)

// Aggregator owns the recorded service outcomes. Record replaces the full map
// atomically; GetStatus is side-effect-free and safe for many concurrent
// readers. Per-service Refresh writes are last-write-wins.
type Aggregator struct {
	mu       sync.RWMutex
	outcomes map[string]models.ServiceOutcome
	probers  map[string]*Prober
}

func NewAggregator(probers []*Prober) *Aggregator {
	index := make(map[string]*Prober, len(probers))
	for _, p := range probers {
		index[p.ServiceName()] = p
	}

	return &Aggregator{
		outcomes: make(map[string]models.ServiceOutcome),
		probers:  index,
	}
}

// Record swaps in a complete outcome map. Readers never observe a
// half-populated round.
func (a *Aggregator) Record(outcomes map[string]models.ServiceOutcome) {
	replacement := make(map[string]models.ServiceOutcome, len(outcomes))
	for name, outcome := range outcomes {
		replacement[name] = outcome
	}

	a.mu.Lock()
	a.outcomes = replacement
	a.mu.Unlock()
}

// Snapshot returns a copy of the current outcomes.
func (a *Aggregator) Snapshot() map[string]models.ServiceOutcome {
	a.mu.RLock()
	defer a.mu.RUnlock()

	snapshot := make(map[string]models.ServiceOutcome, len(a.outcomes))
	for name, outcome := range a.outcomes {
		snapshot[name] = outcome
	}
	return snapshot
}

// Outcome returns the recorded outcome for one service.
func (a *Aggregator) Outcome(service string) (models.ServiceOutcome, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	outcome, ok := a.outcomes[service]
	return outcome, ok
}

// GetStatus computes the derived platform status from the stored outcomes.
func (a *Aggregator) GetStatus() *models.PlatformStatus {
	a.mu.RLock()
	services := make([]models.ServiceOutcome, 0, len(a.outcomes))
	for _, outcome := range a.outcomes {
		services = append(services, outcome)
	}
	a.mu.RUnlock()

	sort.Slice(services, func(i, j int) bool {
		return services[i].Service < services[j].Service
	})

	return &models.PlatformStatus{
		OverallStatus: computeOverall(services),
		Timestamp:     time.Now(),
		Services:      services,
	}
}

// Refresh re-probes a single service on demand and stores the new outcome.
func (a *Aggregator) Refresh(ctx context.Context, service string) (models.ServiceOutcome, error) {
	a.mu.RLock()
	prober, ok := a.probers[service]
	a.mu.RUnlock()

	if !ok {
		return models.ServiceOutcome{}, fmt.Errorf("unknown service: %s", service)
	}

	outcome := prober.Probe(ctx)

	a.mu.Lock()
	a.outcomes[service] = outcome
	a.mu.Unlock()

	return outcome, nil
}

// computeOverall applies the derivation rule: unhealthy when any required
// enabled service is not available, degraded when any optional enabled
// service is not available, healthy otherwise. Disabled services are excluded
// from the determination entirely.
func computeOverall(services []models.ServiceOutcome) models.OverallStatus {
	overall := models.StatusHealthy

	for _, svc := range services {
		if !svc.Enabled || svc.State == models.StateDisabled {
			continue
		}
		if svc.State == models.StateAvailable {
			continue
		}
		if svc.Required {
			return models.StatusUnhealthy
		}
		overall = models.StatusDegraded
	}

	return overall
}

// DiffOutcomes lists services whose state changed between two probe rounds.
func DiffOutcomes(previous, current map[string]models.ServiceOutcome) []models.StatusChange {
	if len(previous) == 0 {
		return nil
	}

	var changes []models.StatusChange
	for name, outcome := range current {
		old, ok := previous[name]
		if !ok || old.State == outcome.State {
			continue
		}
		changes = append(changes, models.StatusChange{
			Service:   name,
			OldState:  old.State,
			NewState:  outcome.State,
			Timestamp: outcome.CheckedAt,
		})
	}

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Service < changes[j].Service
	})

	return changes
}
