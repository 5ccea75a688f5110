package realtime

import (
	"context"
	"log/slog"
	"time"

	healthmodels "optibid/internal/health/models"
	"optibid/internal/realtime/models"
	"optibid/internal/realtime/routes"
	"optibid/internal/realtime/services"
	"optibid/pkg/config"
	"optibid/pkg/database"
	"optibid/pkg/module"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
)

// Module serves topic-scoped realtime feeds. The connection state backend is
// chosen once here, at construction, from the cache probe outcome.
type Module struct {
	*module.BaseModule
	gateway *services.Gateway
	routes  *routes.RealtimeRoutes
}

// New selects the connection state store and builds the gateway. A cache
// that was disabled or unavailable at startup yields the in-process fallback
// for the whole process lifetime.
func New(cacheOutcome healthmodels.ServiceOutcome, cache *database.Redis) *Module {
	ttl := config.GetDurationEnv("REALTIME_CONNECTION_TTL_MS", 2*time.Minute)

	store := services.SelectConnectionStore(cacheOutcome, cache, ttl)
	gateway := services.NewGateway(store)

	return &Module{
		BaseModule: module.NewBaseModule("realtime"),
		gateway:    gateway,
		routes:     routes.NewRealtimeRoutes(gateway),
	}
}

// Gateway exposes the realtime gateway for other modules.
func (m *Module) Gateway() *services.Gateway {
	return m.gateway
}

// RegisterUnifiedRoutes registers the admin endpoints with the typed API.
func (m *Module) RegisterUnifiedRoutes(api huma.API) {
	m.routes.RegisterRoutes(api)
}

// RegisterUpgradeHandler mounts the WebSocket endpoint on the HTTP router.
func (m *Module) RegisterUpgradeHandler(r chi.Router) {
	r.Get(config.GetWebSocketPath()+"/{topic}", m.routes.HandleWebSocketUpgrade)
}

// PublishSystem broadcasts a system notification on a topic. Implements the
// health module's TopicPublisher.
func (m *Module) PublishSystem(ctx context.Context, topic, message string, data map[string]interface{}) error {
	if data == nil {
		data = make(map[string]interface{})
	}
	data["message"] = message

	_, err := m.gateway.Broadcast(ctx, topic, &models.Message{
		Type:      models.MessageTypeSystemNotification,
		Data:      data,
		Timestamp: time.Now(),
	})
	return err
}

// StartBackgroundTasks runs the stale-connection sweep.
func (m *Module) StartBackgroundTasks(ctx context.Context) {
	interval := config.GetDurationEnv("REALTIME_CLEANUP_INTERVAL_MS", 30*time.Second)

	slog.Info("Starting realtime cleanup loop", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.StopChannel():
			return
		case <-ticker.C:
			m.gateway.CleanupStale(ctx)
		}
	}
}

// Interface compliance check
var _ module.Module = (*Module)(nil)
