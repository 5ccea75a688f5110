package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Timescale wraps the pgx pool for the OLAP/timeseries store.
type Timescale struct {
	Pool *pgxpool.Pool
}

// NewTimescale connects to the TimescaleDB cluster and verifies it with a
// bounded ping.
func NewTimescale(ctx context.Context, connURL string, timeout time.Duration) (*Timescale, error) {
	poolConfig, err := pgxpool.ParseConfig(connURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Timescale connection string: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Timescale pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to Timescale: %w", err)
	}

	slog.Info("Connected to Timescale", "host", poolConfig.ConnConfig.Host)

	return &Timescale{Pool: pool}, nil
}

func (t *Timescale) Close() {
	t.Pool.Close()
}

// HealthCheck performs a bounded ping round-trip.
func (t *Timescale) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return t.Pool.Ping(ctx)
}

// CapabilityCheck verifies the server executes queries, not just connections.
func (t *Timescale) CapabilityCheck(ctx context.Context) error {
	var version string
	if err := t.Pool.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		return fmt.Errorf("version query failed: %w", err)
	}
	return nil
}
