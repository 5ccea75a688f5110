package routes

import (
	"context"
	"net/http"

	"optibid/internal/health/models"
	"optibid/internal/health/services"

	"github.com/danielgtaylor/huma/v2"
)

// StatusRoutes exposes the aggregated platform health over the typed API.
type StatusRoutes struct {
	aggregator *services.Aggregator
}

func NewStatusRoutes(aggregator *services.Aggregator) *StatusRoutes {
	return &StatusRoutes{aggregator: aggregator}
}

// GetStatusOutput wraps the aggregated platform status document.
type GetStatusOutput struct {
	Status int
	Body   models.PlatformStatus
}

// GetServicesOutput lists per-service outcomes only.
type GetServicesOutput struct {
	Body struct {
		Services []models.ServiceOutcome `json:"services"`
		Count    int                     `json:"count"`
	}
}

// RefreshServiceInput names the service to re-probe.
type RefreshServiceInput struct {
	Service string `path:"service" doc:"Service name, e.g. cache or stream-broker"`
}

// RefreshServiceOutput returns the freshly recorded outcome.
type RefreshServiceOutput struct {
	Body models.ServiceOutcome
}

// RegisterRoutes registers all status endpoints.
func (sr *StatusRoutes) RegisterRoutes(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-platform-status",
		Summary:     "Get Platform Status",
		Description: "Aggregated health of all configured platform services. Responds 200 for healthy/degraded and 503 when a required service is unavailable, so load balancers can use it as a readiness probe.",
		Method:      http.MethodGet,
		Path:        "/status",
		Tags:        []string{"Status"},
	}, func(ctx context.Context, _ *struct{}) (*GetStatusOutput, error) {
		status := sr.aggregator.GetStatus()

		code := http.StatusOK
		if status.OverallStatus == models.StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}

		return &GetStatusOutput{Status: code, Body: *status}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-service-outcomes",
		Summary:     "Get Service Outcomes",
		Description: "Per-service probe outcomes recorded at startup or by the most recent refresh",
		Method:      http.MethodGet,
		Path:        "/status/services",
		Tags:        []string{"Status"},
	}, func(ctx context.Context, _ *struct{}) (*GetServicesOutput, error) {
		status := sr.aggregator.GetStatus()

		out := &GetServicesOutput{}
		out.Body.Services = status.Services
		out.Body.Count = len(status.Services)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "refresh-service",
		Summary:     "Refresh Service",
		Description: "Re-probe a single service on demand and record the new outcome",
		Method:      http.MethodPost,
		Path:        "/status/services/{service}/refresh",
		Tags:        []string{"Status"},
	}, func(ctx context.Context, input *RefreshServiceInput) (*RefreshServiceOutput, error) {
		outcome, err := sr.aggregator.Refresh(ctx, input.Service)
		if err != nil {
			return nil, huma.Error404NotFound("unknown service", err)
		}

		return &RefreshServiceOutput{Body: outcome}, nil
	})
}
