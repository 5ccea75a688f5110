package services

import (
	"context"
	"log/slog"

	"optibid/internal/health/models"
)

// TopicPublisher pushes a system message to subscribers of a realtime topic.
// Implemented by the realtime module; nil-safe wiring lets the health module
// run before the gateway exists.
type TopicPublisher interface {
	PublishSystem(ctx context.Context, topic, message string, data map[string]interface{}) error
}

// Broadcaster pushes status updates onto the realtime status topic.
type Broadcaster struct {
	publisher TopicPublisher
}

func NewBroadcaster(publisher TopicPublisher) *Broadcaster {
	return &Broadcaster{publisher: publisher}
}

// BroadcastStatus publishes the full platform status document.
func (b *Broadcaster) BroadcastStatus(ctx context.Context, status *models.PlatformStatus) error {
	if b.publisher == nil {
		return nil
	}

	data := map[string]interface{}{
		"type":      models.MessageTypePlatformStatus,
		"status":    status.OverallStatus,
		"timestamp": status.Timestamp,
		"services":  status.Services,
	}

	message := "Platform status update"
	if status.OverallStatus != models.StatusHealthy {
		message = "Platform status: " + string(status.OverallStatus)
	}

	if err := b.publisher.PublishSystem(ctx, models.StatusTopic, message, data); err != nil {
		slog.Error("Failed to broadcast platform status", "error", err)
		return err
	}

	return nil
}

// BroadcastStatusChanges publishes one message per service transition.
// Failures are logged per change and never stop the remaining broadcasts.
func (b *Broadcaster) BroadcastStatusChanges(ctx context.Context, changes []models.StatusChange) {
	if b.publisher == nil || len(changes) == 0 {
		return
	}

	for _, change := range changes {
		data := map[string]interface{}{
			"type":      models.MessageTypeStatusChange,
			"service":   change.Service,
			"old_state": change.OldState,
			"new_state": change.NewState,
			"timestamp": change.Timestamp,
		}

		message := change.Service + " changed from " + string(change.OldState) + " to " + string(change.NewState)
		if change.NewState == models.StateAvailable {
			data["type"] = models.MessageTypeServiceRecovery
			message = change.Service + " service has recovered"
		}

		if err := b.publisher.PublishSystem(ctx, models.StatusTopic, message, data); err != nil {
			slog.Error("Failed to broadcast status change", "service", change.Service, "error", err)
			continue
		}

		slog.Info("Broadcasted status change",
			"service", change.Service,
			"old_state", change.OldState,
			"new_state", change.NewState)
	}
}
