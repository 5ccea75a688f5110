package app

import (
	"context"
	"log"
	"log/slog"

	"optibid/pkg/config"
	"optibid/pkg/logging"

	"github.com/joho/godotenv"
)

// AppContext holds the shared application context and dependencies
type AppContext struct {
	Descriptors      []config.ServiceDescriptor
	TelemetryManager *logging.TelemetryManager
	ServiceName      string
	shutdownFuncs    []func(context.Context) error
}

// InitializeApp loads configuration and telemetry. Dependency connections are
// owned by the health module's startup probes, not established here, so a
// hung or missing optional service can never block boot.
func InitializeApp(serviceName string) (*AppContext, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it: %v", err)
	}

	ctx := context.Background()

	telemetryManager := logging.NewTelemetryManager()
	if err := telemetryManager.Initialize(ctx); err != nil {
		log.Printf("Warning: Failed to initialize telemetry: %v", err)
		// Continue without telemetry rather than failing
	}

	descriptors, err := config.LoadServiceDescriptors()
	if err != nil {
		return nil, err
	}

	for _, d := range descriptors {
		slog.Info("Service configured",
			"service", d.Name,
			"enabled", d.Enabled,
			"required", d.Required,
			"timeout", d.Timeout,
		)
	}

	appCtx := &AppContext{
		Descriptors:      descriptors,
		TelemetryManager: telemetryManager,
		ServiceName:      serviceName,
	}

	if telemetryManager != nil {
		appCtx.shutdownFuncs = append(appCtx.shutdownFuncs, telemetryManager.Shutdown)
	}

	return appCtx, nil
}

// RegisterShutdown appends a function to run during graceful shutdown.
func (a *AppContext) RegisterShutdown(fn func(context.Context) error) {
	a.shutdownFuncs = append(a.shutdownFuncs, fn)
}

// Shutdown gracefully shuts down all application dependencies
func (a *AppContext) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down application", "service", a.ServiceName)

	for _, shutdown := range a.shutdownFuncs {
		if err := shutdown(ctx); err != nil {
			slog.Error("Error during shutdown", "error", err)
		}
	}

	slog.Info("Application shutdown completed", "service", a.ServiceName)
	return nil
}

// GetPort returns the port from environment or default
func GetPort(defaultPort string) string {
	return config.GetEnv("PORT", defaultPort)
}

// IsProduction returns true if running in production environment
func IsProduction() bool {
	return config.GetEnv("APP_ENV", "development") == "production"
}
