package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"optibid/internal/realtime/models"
	"optibid/internal/realtime/services"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFeedServer mirrors the gateway's router layout: the upgrade route sits
// outside the request-timeout group that wraps the API.
func newFeedServer(t *testing.T, requestTimeout time.Duration) (*httptest.Server, *services.Gateway) {
	t.Helper()

	gateway := services.NewGateway(services.NewMemoryConnectionStore(time.Minute))
	rr := NewRealtimeRoutes(gateway)

	r := chi.NewRouter()
	r.Get("/ws/{topic}", rr.HandleWebSocketUpgrade)
	r.Group(func(api chi.Router) {
		api.Use(chimiddleware.Timeout(requestTimeout))
		api.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return srv, gateway
}

func dialTopic(t *testing.T, srv *httptest.Server, topic string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + topic
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) models.Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg models.Message
	require.NoError(t, conn.ReadJSON(&msg))

	return msg
}

func TestUpgradeSendsConnectionConfirmation(t *testing.T) {
	srv, gateway := newFeedServer(t, time.Minute)
	conn := dialTopic(t, srv, "market:DE-LU")

	confirm := readMessage(t, conn)
	assert.Equal(t, models.MessageTypeConnected, confirm.Type)
	assert.Equal(t, "market:DE-LU", confirm.Topic)
	assert.NotEmpty(t, confirm.Data["connection_id"])

	require.Eventually(t, func() bool {
		count, err := gateway.SubscriberCount(context.Background(), "market:DE-LU")
		return err == nil && count == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSubscriptionOutlivesRequestTimeout(t *testing.T) {
	// The API group carries a short request deadline; a heartbeat-kept
	// subscription must not be severed when that deadline elapses.
	srv, _ := newFeedServer(t, 200*time.Millisecond)
	conn := dialTopic(t, srv, "market:DE-LU")

	confirm := readMessage(t, conn)
	require.Equal(t, models.MessageTypeConnected, confirm.Type)

	time.Sleep(400 * time.Millisecond)

	require.NoError(t, conn.WriteJSON(&models.Message{Type: models.MessageTypeHeartbeat}))

	ack := readMessage(t, conn)
	assert.Equal(t, models.MessageTypeHeartbeat, ack.Type)
}

func TestBroadcastReachesSubscriber(t *testing.T) {
	srv, gateway := newFeedServer(t, time.Minute)
	conn := dialTopic(t, srv, "market:FR")

	confirm := readMessage(t, conn)
	require.Equal(t, models.MessageTypeConnected, confirm.Type)

	require.Eventually(t, func() bool {
		count, err := gateway.SubscriberCount(context.Background(), "market:FR")
		return err == nil && count == 1
	}, time.Second, 10*time.Millisecond)

	delivered, err := gateway.Broadcast(context.Background(), "market:FR", &models.Message{
		Type: models.MessageTypeBroadcast,
		Data: map[string]interface{}{"clearing_price": 61.3},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)

	msg := readMessage(t, conn)
	assert.Equal(t, models.MessageTypeBroadcast, msg.Type)
	assert.Equal(t, "market:FR", msg.Topic)
}
