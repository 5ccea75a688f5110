package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"optibid/internal/health"
	"optibid/internal/realtime"
	"optibid/pkg/app"
	"optibid/pkg/config"
	"optibid/pkg/module"
	"optibid/pkg/version"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	_ "go.uber.org/automaxprocs"
)

// customLoggerMiddleware logs requests but excludes health check endpoints
func customLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip logging for health check endpoints
		if strings.HasSuffix(r.URL.Path, "/health") {
			next.ServeHTTP(w, r)
			return
		}

		middleware.Logger(next).ServeHTTP(w, r)
	})
}

func main() {
	versionInfo := version.Get()
	log.Printf("OptiBid gateway %s | build %s", version.GetVersionString(), versionInfo.BuildDate)

	ctx := context.Background()

	appCtx, err := app.InitializeApp("optibid-gateway")
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer appCtx.Shutdown(ctx)

	// Probe every configured service. Unavailable optional services degrade
	// to warnings; a required-service failure flips the status endpoint to
	// unhealthy without aborting startup.
	healthModule := health.New(appCtx.Descriptors)
	outcomes := healthModule.RunStartupProbes(ctx)
	appCtx.RegisterShutdown(healthModule.Shutdown)

	// The realtime connection state backend is selected once, from the cache
	// probe outcome. A later cache recovery does not migrate fallback state.
	realtimeModule := realtime.New(outcomes[config.ServiceCache], healthModule.Dependencies().Cache())
	healthModule.SetPublisher(realtimeModule)

	modules := []module.Module{healthModule, realtimeModule}

	r := chi.NewRouter()
	r.Use(customLoggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Get("/health", livenessHandler)

	// The upgrade route is registered outside the request-timeout group:
	// feeds are long-lived and bounded by heartbeats and read deadlines, not
	// a per-request deadline. A timeout here would sever every subscriber
	// once it elapsed.
	realtimeModule.RegisterUpgradeHandler(r)

	apiPrefix := config.GetAPIPrefix()

	humaConfig := huma.DefaultConfig("OptiBid Platform Gateway", versionInfo.Version)
	humaConfig.Info.Description = "Service health aggregation and realtime market feeds for the OptiBid energy-trading platform"

	var unifiedAPI huma.API
	r.Group(func(api chi.Router) {
		api.Use(middleware.Timeout(60 * time.Second))

		if apiPrefix == "" {
			unifiedAPI = humachi.New(api, humaConfig)
		} else {
			api.Route(apiPrefix, func(prefixRouter chi.Router) {
				unifiedAPI = humachi.New(prefixRouter, humaConfig)
			})
		}
	})

	healthModule.RegisterUnifiedRoutes(unifiedAPI)
	realtimeModule.RegisterUnifiedRoutes(unifiedAPI)

	for _, mod := range modules {
		go mod.StartBackgroundTasks(ctx)
	}

	port := app.GetPort("8080")
	host := config.GetHost()

	srv := &http.Server{
		Addr:         host + ":" + port,
		Handler:      otelhttp.NewHandler(r, "optibid-gateway"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("Starting OptiBid gateway", slog.String("addr", srv.Addr), slog.String("api_prefix", apiPrefix))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Received shutdown signal, initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	for _, mod := range modules {
		mod.Stop()
	}

	appCtx.Shutdown(shutdownCtx)

	slog.Info("Gateway shutdown completed")
}

// livenessHandler answers as long as the process runs; dependency health is
// served by the status API.
func livenessHandler(w http.ResponseWriter, r *http.Request) {
	versionInfo := version.Get()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":     "healthy",
		"version":    versionInfo.Version,
		"git_commit": versionInfo.GitCommit,
		"build_date": versionInfo.BuildDate,
		"go_version": versionInfo.GoVersion,
		"platform":   versionInfo.Platform,
	})
}
