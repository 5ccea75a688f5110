package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"optibid/internal/health/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishedMessage struct {
	topic   string
	message string
	data    map[string]interface{}
}

type fakePublisher struct {
	calls   []publishedMessage
	failFor string
}

func (f *fakePublisher) PublishSystem(_ context.Context, topic, message string, data map[string]interface{}) error {
	if f.failFor != "" && data["service"] == f.failFor {
		return errors.New("gateway unavailable")
	}
	f.calls = append(f.calls, publishedMessage{topic: topic, message: message, data: data})
	return nil
}

func TestBroadcastStatusPublishesDocument(t *testing.T) {
	publisher := &fakePublisher{}
	broadcaster := NewBroadcaster(publisher)

	status := &models.PlatformStatus{
		OverallStatus: models.StatusDegraded,
		Timestamp:     time.Now(),
		Services: []models.ServiceOutcome{
			outcome("stream-broker", models.StateUnavailable, true, false),
		},
	}

	require.NoError(t, broadcaster.BroadcastStatus(context.Background(), status))

	require.Len(t, publisher.calls, 1)
	call := publisher.calls[0]
	assert.Equal(t, models.StatusTopic, call.topic)
	assert.Contains(t, call.message, "degraded")
	assert.Equal(t, models.MessageTypePlatformStatus, call.data["type"])
	assert.Equal(t, models.StatusDegraded, call.data["status"])
}

func TestBroadcastStatusChanges(t *testing.T) {
	publisher := &fakePublisher{}
	broadcaster := NewBroadcaster(publisher)

	broadcaster.BroadcastStatusChanges(context.Background(), []models.StatusChange{
		{Service: "cache", OldState: models.StateAvailable, NewState: models.StateUnavailable},
		{Service: "stream-broker", OldState: models.StateUnavailable, NewState: models.StateAvailable},
	})

	require.Len(t, publisher.calls, 2)

	degradation := publisher.calls[0]
	assert.Equal(t, models.StatusTopic, degradation.topic)
	assert.Equal(t, models.MessageTypeStatusChange, degradation.data["type"])
	assert.Contains(t, degradation.message, "cache")

	// A transition back to available is announced as a recovery.
	recovery := publisher.calls[1]
	assert.Equal(t, models.MessageTypeServiceRecovery, recovery.data["type"])
	assert.Contains(t, recovery.message, "recovered")
	assert.Equal(t, "stream-broker", recovery.data["service"])
}

func TestBroadcastStatusChangesSurvivesPublishFailure(t *testing.T) {
	publisher := &fakePublisher{failFor: "cache"}
	broadcaster := NewBroadcaster(publisher)

	broadcaster.BroadcastStatusChanges(context.Background(), []models.StatusChange{
		{Service: "cache", OldState: models.StateAvailable, NewState: models.StateUnavailable},
		{Service: "olap-store", OldState: models.StateAvailable, NewState: models.StateDegraded},
	})

	// The failed publish is logged and skipped; the remaining change goes out.
	require.Len(t, publisher.calls, 1)
	assert.Equal(t, "olap-store", publisher.calls[0].data["service"])
}

func TestBroadcasterToleratesNilPublisher(t *testing.T) {
	broadcaster := NewBroadcaster(nil)

	require.NoError(t, broadcaster.BroadcastStatus(context.Background(), &models.PlatformStatus{
		OverallStatus: models.StatusHealthy,
	}))
	broadcaster.BroadcastStatusChanges(context.Background(), []models.StatusChange{
		{Service: "cache", OldState: models.StateAvailable, NewState: models.StateUnavailable},
	})
}
