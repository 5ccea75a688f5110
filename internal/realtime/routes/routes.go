package routes

import (
	"context"
	"net/http"

	"optibid/internal/realtime/models"
	"optibid/internal/realtime/services"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gorilla/websocket"
)

// RealtimeRoutes handles the upgrade endpoint and the admin API.
type RealtimeRoutes struct {
	gateway  *services.Gateway
	upgrader websocket.Upgrader
}

func NewRealtimeRoutes(gateway *services.Gateway) *RealtimeRoutes {
	return &RealtimeRoutes{
		gateway: gateway,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Read-only market feeds are public; origin policy is enforced
			// upstream at the edge.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ListConnectionsOutput lists connections served by this instance.
type ListConnectionsOutput struct {
	Body struct {
		Connections []models.ConnectionInfo `json:"connections"`
		Count       int                     `json:"count"`
		Backend     string                  `json:"backend"`
	}
}

// SubscriberCountInput names the topic to count.
type SubscriberCountInput struct {
	Topic string `path:"topic" doc:"Topic name, e.g. market:DE-LU"`
}

// SubscriberCountOutput reports the subscriber count for one topic.
type SubscriberCountOutput struct {
	Body struct {
		Topic       string `json:"topic"`
		Subscribers int    `json:"subscribers"`
	}
}

// RegisterRoutes registers the realtime admin endpoints.
// The upgrade endpoint is registered directly with the HTTP router, not
// through the typed API, because the protocol upgrade needs raw response
// control.
func (rr *RealtimeRoutes) RegisterRoutes(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "realtime-list-connections",
		Summary:     "List Realtime Connections",
		Description: "Connections with a live transport on this instance",
		Method:      http.MethodGet,
		Path:        "/realtime/connections",
		Tags:        []string{"Realtime"},
	}, func(ctx context.Context, _ *struct{}) (*ListConnectionsOutput, error) {
		out := &ListConnectionsOutput{}
		out.Body.Connections = rr.gateway.LocalConnections(ctx)
		out.Body.Count = len(out.Body.Connections)
		out.Body.Backend = rr.gateway.Store().Backend()
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "realtime-subscriber-count",
		Summary:     "Get Topic Subscriber Count",
		Method:      http.MethodGet,
		Path:        "/realtime/topics/{topic}/subscribers",
		Tags:        []string{"Realtime"},
	}, func(ctx context.Context, input *SubscriberCountInput) (*SubscriberCountOutput, error) {
		count, err := rr.gateway.SubscriberCount(ctx, input.Topic)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to count subscribers", err)
		}

		out := &SubscriberCountOutput{}
		out.Body.Topic = input.Topic
		out.Body.Subscribers = count
		return out, nil
	})
}
