package health

import (
	"context"
	"log/slog"

	"optibid/internal/health/models"
	"optibid/internal/health/routes"
	"optibid/internal/health/services"
	"optibid/pkg/config"
	"optibid/pkg/module"

	"github.com/danielgtaylor/huma/v2"
	"github.com/robfig/cron/v3"
)

// Module owns startup probing, the health aggregator and the periodic
// background refresh.
type Module struct {
	*module.BaseModule
	deps         *services.Dependencies
	aggregator   *services.Aggregator
	orchestrator *services.Orchestrator
	broadcaster  *services.Broadcaster
	routes       *routes.StatusRoutes
	cron         *cron.Cron
}

// New builds the module from the configured service descriptors. Probes do
// not run until RunStartupProbes is called.
func New(descriptors []config.ServiceDescriptor) *Module {
	deps := &services.Dependencies{}
	probers := services.BuildProbers(descriptors, deps)
	aggregator := services.NewAggregator(probers)
	orchestrator := services.NewOrchestrator(aggregator, probers)

	return &Module{
		BaseModule:   module.NewBaseModule("health"),
		deps:         deps,
		aggregator:   aggregator,
		orchestrator: orchestrator,
		broadcaster:  services.NewBroadcaster(nil),
		routes:       routes.NewStatusRoutes(aggregator),
	}
}

// RunStartupProbes probes every configured service once, concurrently, and
// records the outcome set. It cannot fail; unavailable services degrade to a
// logged warning and the process keeps starting.
func (m *Module) RunStartupProbes(ctx context.Context) map[string]models.ServiceOutcome {
	return m.orchestrator.RunAll(ctx)
}

// SetPublisher wires the realtime gateway in once it has been constructed,
// enabling status-change broadcasts.
func (m *Module) SetPublisher(publisher services.TopicPublisher) {
	m.broadcaster = services.NewBroadcaster(publisher)
}

// Aggregator exposes the owned health state for the health endpoint handler.
func (m *Module) Aggregator() *services.Aggregator {
	return m.aggregator
}

// Dependencies exposes the clients retained by successful probes.
func (m *Module) Dependencies() *services.Dependencies {
	return m.deps
}

// RegisterUnifiedRoutes registers the status endpoints with the typed API.
func (m *Module) RegisterUnifiedRoutes(api huma.API) {
	m.routes.RegisterRoutes(api)
}

// StartBackgroundTasks schedules the periodic re-probe. Each round replaces
// the outcome map atomically and broadcasts any state transitions over the
// realtime status topic.
func (m *Module) StartBackgroundTasks(ctx context.Context) {
	interval := config.GetEnv("STATUS_REFRESH_INTERVAL", "30s")

	m.cron = cron.New()
	_, err := m.cron.AddFunc("@every "+interval, func() {
		m.refreshRound(ctx)
	})
	if err != nil {
		slog.Error("Failed to schedule status refresh", "error", err, "interval", interval)
		return
	}

	m.cron.Start()
	slog.Info("Status refresh scheduled", "interval", interval)

	select {
	case <-ctx.Done():
	case <-m.StopChannel():
	}

	cronCtx := m.cron.Stop()
	<-cronCtx.Done()
}

func (m *Module) refreshRound(ctx context.Context) {
	previous := m.aggregator.Snapshot()
	outcomes := m.orchestrator.RunAll(ctx)

	changes := services.DiffOutcomes(previous, outcomes)
	if len(changes) > 0 {
		m.broadcaster.BroadcastStatusChanges(ctx, changes)
		m.broadcaster.BroadcastStatus(ctx, m.aggregator.GetStatus())
	}
}

// Stop implements module.Module.
func (m *Module) Stop() {
	if m.cron != nil {
		m.cron.Stop()
	}
	m.BaseModule.Stop()
}

// Shutdown releases the retained dependency clients.
func (m *Module) Shutdown(ctx context.Context) error {
	m.deps.Close(ctx)
	return nil
}

// Interface compliance check
var _ module.Module = (*Module)(nil)
