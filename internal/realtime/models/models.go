package models

import (
	"time"
)

// MessageType identifies realtime message payloads.
type MessageType string

const (
	MessageTypeConnected          MessageType = "connected"
	MessageTypeHeartbeat          MessageType = "heartbeat"
	MessageTypeBroadcast          MessageType = "broadcast"
	MessageTypeSystemNotification MessageType = "system_notification"
)

// Message is the wire format pushed to realtime subscribers.
type Message struct {
	Type      MessageType            `json:"type"`
	Topic     string                 `json:"topic,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// ConnectionRecord tracks one subscribed client in the connection state
// store. Created on connect, refreshed on heartbeat, destroyed on disconnect
// or TTL expiry.
type ConnectionRecord struct {
	ID         string            `json:"id"`
	Topic      string            `json:"topic"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	LastSeenAt time.Time         `json:"last_seen_at"`
}

// ConnectionInfo is the admin API view of a live connection.
type ConnectionInfo struct {
	ID         string            `json:"id"`
	Topic      string            `json:"topic"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	LastSeenAt time.Time         `json:"last_seen_at"`
}
