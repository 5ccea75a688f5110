package stream

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Broker wraps the NATS connection used as the platform's stream broker.
type Broker struct {
	Conn *nats.Conn
}

// NewBroker connects to the stream broker with a bounded handshake.
func NewBroker(natsURL string, timeout time.Duration) (*Broker, error) {
	nc, err := nats.Connect(natsURL,
		nats.Timeout(timeout),
		nats.RetryOnFailedConnect(false),
		nats.Name("optibid-gateway"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to stream broker: %w", err)
	}

	slog.Info("Connected to stream broker", "url", nc.ConnectedUrl())

	return &Broker{Conn: nc}, nil
}

func (b *Broker) Close() error {
	return b.Conn.Drain()
}

// HealthCheck performs a flush round-trip against the broker.
func (b *Broker) HealthCheck(ctx context.Context) error {
	if !b.Conn.IsConnected() {
		return fmt.Errorf("stream broker connection is not established")
	}
	deadline := 3 * time.Second
	if d, ok := ctx.Deadline(); ok {
		deadline = time.Until(d)
	}
	return b.Conn.FlushTimeout(deadline)
}

// CapabilityCheck measures a round-trip to confirm the broker is responsive.
func (b *Broker) CapabilityCheck(_ context.Context) error {
	if _, err := b.Conn.RTT(); err != nil {
		return fmt.Errorf("stream broker RTT failed: %w", err)
	}
	return nil
}
