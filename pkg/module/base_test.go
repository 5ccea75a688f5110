package module

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopIsIdempotent(t *testing.T) {
	m := NewBaseModule("demo")

	m.Stop()
	m.Stop()

	select {
	case <-m.StopChannel():
	default:
		t.Fatal("stop channel must be closed after Stop")
	}

	assert.Equal(t, "demo", m.Name())
}

func TestStopEndsBackgroundTasks(t *testing.T) {
	m := NewBaseModule("demo")

	done := make(chan struct{})
	go func() {
		m.StartBackgroundTasks(context.Background())
		close(done)
	}()

	m.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "background tasks must exit once the module stops")
	}
}
