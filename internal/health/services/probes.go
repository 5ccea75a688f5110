package services

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"optibid/internal/health/models"
	"optibid/pkg/config"
	"optibid/pkg/database"
	"optibid/pkg/mlregistry"
	"optibid/pkg/stream"
)

// Dependencies holds the clients that connected successfully during probing.
// Probes run concurrently, so writes are synchronized. A nil field means the
// corresponding service was disabled or unavailable at startup.
type Dependencies struct {
	mu        sync.Mutex
	cache     *database.Redis
	olapStore *database.Timescale
	broker    *stream.Broker
	registry  *mlregistry.Client
}

func (d *Dependencies) Cache() *database.Redis {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cache
}

func (d *Dependencies) OLAPStore() *database.Timescale {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.olapStore
}

func (d *Dependencies) Broker() *stream.Broker {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.broker
}

func (d *Dependencies) Registry() *mlregistry.Client {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registry
}

// Close releases every connected client. Used during shutdown.
func (d *Dependencies) Close(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cache != nil {
		_ = d.cache.Close()
	}
	if d.olapStore != nil {
		d.olapStore.Close()
	}
	if d.broker != nil {
		_ = d.broker.Close()
	}
}

// BuildProbers wires one prober per configured service descriptor. Each probe
// performs connect + minimal round-trip, retains the client on success, and
// reports a DegradedError when the handshake succeeds but the capability
// check does not.
func BuildProbers(descriptors []config.ServiceDescriptor, deps *Dependencies) []*Prober {
	probers := make([]*Prober, 0, len(descriptors))

	for _, d := range descriptors {
		var fn ProbeFunc

		switch d.Name {
		case config.ServiceCache:
			fn = cacheProbe(d, deps)
		case config.ServiceStreamBroker:
			fn = brokerProbe(d, deps)
		case config.ServiceOLAPStore:
			fn = olapProbe(d, deps)
		case config.ServiceMLRegistry:
			fn = registryProbe(d, deps)
		default:
			name := d.Name
			fn = func(ctx context.Context) error {
				return fmt.Errorf("no probe registered for service %s", name)
			}
		}

		probers = append(probers, NewProber(d, fn))
	}

	return probers
}

func cacheProbe(d config.ServiceDescriptor, deps *Dependencies) ProbeFunc {
	return func(ctx context.Context) error {
		deps.mu.Lock()
		cache := deps.cache
		deps.mu.Unlock()

		// Re-probes reuse the retained client; the first probe connects.
		if cache == nil {
			connected, err := database.NewRedis(ctx, d.URL, d.Timeout)
			if err != nil {
				return err
			}
			deps.mu.Lock()
			deps.cache = connected
			deps.mu.Unlock()
			cache = connected
		} else if err := cache.HealthCheck(ctx); err != nil {
			return err
		}

		if err := cache.CapabilityCheck(ctx); err != nil {
			return &models.DegradedError{Reason: err.Error()}
		}
		return nil
	}
}

func brokerProbe(d config.ServiceDescriptor, deps *Dependencies) ProbeFunc {
	return func(ctx context.Context) error {
		deps.mu.Lock()
		broker := deps.broker
		deps.mu.Unlock()

		if broker == nil {
			connected, err := stream.NewBroker(d.URL, d.Timeout)
			if err != nil {
				return err
			}
			deps.mu.Lock()
			deps.broker = connected
			deps.mu.Unlock()
			broker = connected
		} else if err := broker.HealthCheck(ctx); err != nil {
			return err
		}

		if err := broker.CapabilityCheck(ctx); err != nil {
			return &models.DegradedError{Reason: err.Error()}
		}
		return nil
	}
}

func olapProbe(d config.ServiceDescriptor, deps *Dependencies) ProbeFunc {
	return func(ctx context.Context) error {
		deps.mu.Lock()
		store := deps.olapStore
		deps.mu.Unlock()

		if store == nil {
			connected, err := database.NewTimescale(ctx, d.URL, d.Timeout)
			if err != nil {
				return err
			}
			deps.mu.Lock()
			deps.olapStore = connected
			deps.mu.Unlock()
			store = connected
		} else if err := store.HealthCheck(ctx); err != nil {
			return err
		}

		if err := store.CapabilityCheck(ctx); err != nil {
			return &models.DegradedError{Reason: err.Error()}
		}
		return nil
	}
}

func registryProbe(d config.ServiceDescriptor, deps *Dependencies) ProbeFunc {
	return func(ctx context.Context) error {
		deps.mu.Lock()
		registry := deps.registry
		if registry == nil {
			registry = mlregistry.NewClient(d.URL, d.Timeout)
			deps.registry = registry
		}
		deps.mu.Unlock()

		code, err := registry.Ping(ctx)
		if err != nil {
			return err
		}
		if code < http.StatusOK || code >= http.StatusMultipleChoices {
			return &models.DegradedError{Reason: fmt.Sprintf("registry responded with status %d", code)}
		}
		return nil
	}
}
