package server

import (
	"context"
	"testing"
	"time"

	"pathsim/simulator"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func recv(t *testing.T, ch <-chan simulator.Frame) (simulator.Frame, bool) {
	t.Helper()
	select {
	case frame, ok := <-ch:
		return frame, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
	}
	return simulator.Frame{}, false
}

func TestHub(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	source := make(chan simulator.Frame)
	hub := NewHub(simulator.Frame{Step: 0})
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx, source)
	}()

	t.Run("subscribers start from the latest frame", func(t *testing.T) {
		id, frames := hub.Subscribe()
		defer hub.Unsubscribe(id)
		frame, ok := recv(t, frames)
		require.True(t, ok)
		require.Equal(t, 0, frame.Step)
	})

	t.Run("a slow subscriber only sees the newest frame", func(t *testing.T) {
		id, frames := hub.Subscribe()
		defer hub.Unsubscribe(id)
		source <- simulator.Frame{Step: 1}
		source <- simulator.Frame{Step: 2}
		// Both sends have been received, but the second may still be broadcasting.
		require.Eventually(t, func() bool {
			hub.mu.Lock()
			defer hub.mu.Unlock()
			return hub.latest.Step == 2
		}, time.Second, 5*time.Millisecond)

		frame, ok := recv(t, frames)
		require.True(t, ok)
		require.Equal(t, 2, frame.Step)
	})

	t.Run("unsubscribing closes the channel", func(t *testing.T) {
		id, frames := hub.Subscribe()
		require.Equal(t, 1, hub.Len())
		hub.Unsubscribe(id)
		require.Equal(t, 0, hub.Len())
		_, _ = recv(t, frames)
		_, ok := recv(t, frames)
		require.False(t, ok)
	})

	t.Run("stopping the hub closes every subscriber", func(t *testing.T) {
		_, frames := hub.Subscribe()
		cancel()
		<-done
		_, _ = recv(t, frames)
		_, ok := recv(t, frames)
		require.False(t, ok)

		_, late := hub.Subscribe()
		_, ok = recv(t, late)
		require.False(t, ok)
	})
}
