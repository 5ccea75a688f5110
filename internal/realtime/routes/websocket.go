package routes

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"optibid/internal/realtime/middleware"
	"optibid/internal/realtime/models"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second
	readTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

// wsSender adapts a gorilla connection to the gateway's MessageSender.
// Writes are serialized; the read loop and the broadcast path both write.
type wsSender struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSSender(conn *websocket.Conn) *wsSender {
	return &wsSender{conn: conn}
}

func (s *wsSender) Send(message *models.Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsSender) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

func (s *wsSender) Close() error {
	return s.conn.Close()
}

// HandleWebSocketUpgrade upgrades a client onto a topic feed. The server
// imposes no session affinity: a reconnecting client is a brand-new
// connection with no state recovery.
func (rr *RealtimeRoutes) HandleWebSocketUpgrade(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "topic")
	if topic == "" {
		http.Error(w, "topic is required", http.StatusBadRequest)
		return
	}

	conn, err := rr.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err, "topic", topic)
		return
	}

	sender := newWSSender(conn)
	metadata := middleware.BearerAssociation(r)

	connectionID, err := rr.gateway.OnConnect(r.Context(), topic, metadata, sender)
	if err != nil {
		slog.Error("Failed to accept realtime connection", "error", err, "topic", topic)
		_ = conn.Close()
		return
	}

	// Confirmation goes out immediately, well inside the 5s contract.
	confirm := &models.Message{
		Type:  models.MessageTypeConnected,
		Topic: topic,
		Data: map[string]interface{}{
			"connection_id": connectionID,
		},
		Timestamp: time.Now(),
	}
	if err := sender.Send(confirm); err != nil {
		slog.Error("Failed to send connection confirmation", "error", err, "connection_id", connectionID)
		rr.gateway.OnDisconnect(r.Context(), connectionID)
		return
	}

	rr.serveConnection(r.Context(), conn, sender, connectionID)
}

// serveConnection runs the per-connection read loop until the client goes
// away, the context is cancelled, or a write fails.
func (rr *RealtimeRoutes) serveConnection(ctx context.Context, conn *websocket.Conn, sender *wsSender, connectionID string) {
	defer rr.gateway.OnDisconnect(ctx, connectionID)

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		if err := rr.gateway.Touch(ctx, connectionID); err != nil {
			slog.Debug("Heartbeat touch failed", "connection_id", connectionID, "error", err)
		}
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	messageChan := make(chan []byte, 256)
	errorChan := make(chan error, 1)

	go func() {
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				errorChan <- err
				return
			}
			messageChan <- payload
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if err := sender.ping(); err != nil {
				slog.Debug("Failed to ping client", "error", err, "connection_id", connectionID)
				return
			}

		case payload := <-messageChan:
			var msg models.Message
			if err := json.Unmarshal(payload, &msg); err != nil {
				slog.Warn("Discarding malformed client message", "error", err, "connection_id", connectionID)
				continue
			}
			rr.handleClientMessage(ctx, sender, connectionID, &msg)

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket read error", "error", err, "connection_id", connectionID)
			}
			return
		}
	}
}

func (rr *RealtimeRoutes) handleClientMessage(ctx context.Context, sender *wsSender, connectionID string, msg *models.Message) {
	switch msg.Type {
	case models.MessageTypeHeartbeat:
		if err := rr.gateway.Touch(ctx, connectionID); err != nil {
			slog.Debug("Heartbeat touch failed", "connection_id", connectionID, "error", err)
		}

		ack := &models.Message{
			Type:      models.MessageTypeHeartbeat,
			Timestamp: time.Now(),
		}
		if err := sender.Send(ack); err != nil {
			slog.Debug("Failed to ack heartbeat", "connection_id", connectionID, "error", err)
		}

	default:
		slog.Warn("Unhandled message type", "type", msg.Type, "connection_id", connectionID)
	}
}
