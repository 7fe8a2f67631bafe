package worker

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerReclaim(t *testing.T) {
	ctrl := NewController(context.Background())
	defer ctrl.Release()

	assert.Equal(t, AbortNone, ctrl.Mode())
	assert.False(t, ctrl.Aborted())

	ctrl.Reclaim()
	assert.Equal(t, AbortReclaim, ctrl.Mode())
	assert.True(t, ctrl.Aborted())
	assert.Error(t, ctrl.StopContext().Err())
	// in-flight operations keep running
	assert.NoError(t, ctrl.Context().Err())
}

func TestControllerKill(t *testing.T) {
	ctrl := NewController(context.Background())
	ctrl.Reclaim()
	ctrl.Kill()

	assert.Equal(t, AbortImmediate, ctrl.Mode())
	assert.Error(t, ctrl.Context().Err())
	select {
	case <-ctrl.Killed():
	default:
		t.Fatal("Killed channel not closed")
	}

	// a later reclaim does not downgrade the abort
	ctrl.Reclaim()
	assert.Equal(t, AbortImmediate, ctrl.Mode())
}

func TestControllerParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctrl := NewController(parent)
	cancel()

	assert.True(t, ctrl.Aborted())
	assert.Equal(t, AbortImmediate, ctrl.Mode())
}

func TestControllerRelease(t *testing.T) {
	ctrl := NewController(context.Background())
	ctrl.Release()
	assert.Equal(t, AbortNone, ctrl.Mode())
}

func TestControllerWatch(t *testing.T) {
	ctrl := NewController(context.Background())
	signals := make(chan os.Signal, 2)

	var modes []AbortMode
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctrl.Watch(signals, func(_ os.Signal, mode AbortMode) {
			modes = append(modes, mode)
		})
	}()

	signals <- syscall.SIGINT
	require.Eventually(t, func() bool { return ctrl.Mode() == AbortReclaim }, 5*time.Second, time.Millisecond)

	signals <- syscall.SIGTERM
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after the second signal")
	}

	assert.Equal(t, []AbortMode{AbortReclaim, AbortImmediate}, modes)
	assert.Equal(t, AbortImmediate, ctrl.Mode())
}

func TestControllerWatchReturnsOnClose(t *testing.T) {
	ctrl := NewController(context.Background())
	defer ctrl.Release()
	signals := make(chan os.Signal)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctrl.Watch(signals, nil)
	}()
	close(signals)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after close")
	}
	assert.False(t, ctrl.Aborted())
}

func TestAbortModeString(t *testing.T) {
	assert.Equal(t, "none", AbortNone.String())
	assert.Equal(t, "reclaim", AbortReclaim.String())
	assert.Equal(t, "immediate", AbortImmediate.String())
}
