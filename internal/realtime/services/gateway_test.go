package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"optibid/internal/realtime/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent    []*models.Message
	sendErr error
	closed  bool
}

func (f *fakeSender) Send(message *models.Message) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, message)
	return nil
}

func (f *fakeSender) Close() error {
	f.closed = true
	return nil
}

func TestBroadcastFanout(t *testing.T) {
	ctx := context.Background()
	gateway := NewGateway(NewMemoryConnectionStore(time.Minute))

	senders := make([]*fakeSender, 3)
	for i := range senders {
		senders[i] = &fakeSender{}
		_, err := gateway.OnConnect(ctx, "market:DE-LU", nil, senders[i])
		require.NoError(t, err)
	}

	other := &fakeSender{}
	_, err := gateway.OnConnect(ctx, "market:FR", nil, other)
	require.NoError(t, err)

	delivered, err := gateway.Broadcast(ctx, "market:DE-LU", &models.Message{
		Type: models.MessageTypeBroadcast,
		Data: map[string]interface{}{"clearing_price": 42.7},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, delivered)

	for _, sender := range senders {
		require.Len(t, sender.sent, 1)
		assert.Equal(t, "market:DE-LU", sender.sent[0].Topic)
		assert.False(t, sender.sent[0].Timestamp.IsZero())
	}
	assert.Empty(t, other.sent, "subscribers of other topics must not receive the message")
}

func TestBroadcastSurvivesFailedTransport(t *testing.T) {
	ctx := context.Background()
	gateway := NewGateway(NewMemoryConnectionStore(time.Minute))

	healthy := make([]*fakeSender, 0, 3)
	for i := 0; i < 3; i++ {
		sender := &fakeSender{}
		healthy = append(healthy, sender)
		_, err := gateway.OnConnect(ctx, "market:DE-LU", nil, sender)
		require.NoError(t, err)
	}

	broken := &fakeSender{sendErr: errors.New("broken pipe")}
	brokenID, err := gateway.OnConnect(ctx, "market:DE-LU", nil, broken)
	require.NoError(t, err)

	delivered, err := gateway.Broadcast(ctx, "market:DE-LU", &models.Message{Type: models.MessageTypeBroadcast})
	require.NoError(t, err)
	assert.Equal(t, 3, delivered)

	for _, sender := range healthy {
		assert.Len(t, sender.sent, 1)
	}

	// The failed write is an implicit disconnect.
	assert.True(t, broken.closed)
	_, err = gateway.Store().GetConnection(ctx, brokenID)
	assert.ErrorIs(t, err, ErrConnectionNotFound)

	count, err := gateway.SubscriberCount(ctx, "market:DE-LU")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestOnDisconnectToleratesUnknownID(t *testing.T) {
	ctx := context.Background()
	gateway := NewGateway(NewMemoryConnectionStore(time.Minute))

	// Explicit and implicit disconnects can race; neither may panic or error.
	gateway.OnDisconnect(ctx, "never-registered")

	sender := &fakeSender{}
	id, err := gateway.OnConnect(ctx, "market:DE-LU", nil, sender)
	require.NoError(t, err)

	gateway.OnDisconnect(ctx, id)
	gateway.OnDisconnect(ctx, id)

	assert.True(t, sender.closed)
	count, err := gateway.ConnectionCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestLocalConnectionsReflectStoreRecords(t *testing.T) {
	ctx := context.Background()
	gateway := NewGateway(NewMemoryConnectionStore(time.Minute))

	id, err := gateway.OnConnect(ctx, "market:DE-LU", map[string]string{"subject": "trader-9"}, &fakeSender{})
	require.NoError(t, err)

	infos := gateway.LocalConnections(ctx)
	require.Len(t, infos, 1)
	assert.Equal(t, id, infos[0].ID)
	assert.Equal(t, "market:DE-LU", infos[0].Topic)
	assert.Equal(t, "trader-9", infos[0].Metadata["subject"])
}

func TestCleanupStaleEvictsExpiredConnections(t *testing.T) {
	ctx := context.Background()
	gateway := NewGateway(NewMemoryConnectionStore(20 * time.Millisecond))

	stale := &fakeSender{}
	_, err := gateway.OnConnect(ctx, "market:DE-LU", nil, stale)
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)

	fresh := &fakeSender{}
	freshID, err := gateway.OnConnect(ctx, "market:DE-LU", nil, fresh)
	require.NoError(t, err)

	gateway.CleanupStale(ctx)

	assert.True(t, stale.closed)
	assert.False(t, fresh.closed)

	infos := gateway.LocalConnections(ctx)
	require.Len(t, infos, 1)
	assert.Equal(t, freshID, infos[0].ID)
}
