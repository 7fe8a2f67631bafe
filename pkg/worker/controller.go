package worker

import (
	"context"
	"os"
	"sync/atomic"
)

// AbortMode reports how a run was interrupted.
type AbortMode int32

const (
	AbortNone AbortMode = iota
	// AbortReclaim stops handing out work and lets in-flight operations finish.
	AbortReclaim
	// AbortImmediate also cancels in-flight operations and stops waiting on them.
	AbortImmediate
)

func (m AbortMode) String() string {
	switch m {
	case AbortNone:
		return "none"
	case AbortReclaim:
		return "reclaim"
	case AbortImmediate:
		return "immediate"
	default:
		return "unknown"
	}
}

// Controller carries the cancellation state shared by every pool of a run.
type Controller struct {
	opCtx    context.Context
	kill     context.CancelFunc
	stopCtx  context.Context
	stop     context.CancelFunc
	mode     atomic.Int32
	released atomic.Bool
}

// NewController derives a controller from parent. Cancelling parent is an
// immediate abort.
func NewController(parent context.Context) *Controller {
	opCtx, kill := context.WithCancel(parent)
	stopCtx, stop := context.WithCancel(opCtx)
	return &Controller{
		opCtx:   opCtx,
		kill:    kill,
		stopCtx: stopCtx,
		stop:    stop,
	}
}

// Reclaim requests a graceful abort.
func (c *Controller) Reclaim() {
	c.mode.CompareAndSwap(int32(AbortNone), int32(AbortReclaim))
	c.stop()
}

// Kill requests an immediate abort.
func (c *Controller) Kill() {
	c.mode.Store(int32(AbortImmediate))
	c.kill()
	c.stop()
}

// Mode returns the current abort mode.
func (c *Controller) Mode() AbortMode {
	if m := AbortMode(c.mode.Load()); m != AbortNone {
		return m
	}
	if c.opCtx.Err() != nil && !c.released.Load() {
		return AbortImmediate
	}
	return AbortNone
}

// Aborted reports whether any abort was requested.
func (c *Controller) Aborted() bool {
	return c.stopCtx.Err() != nil
}

// Context is passed to operations. It is only cancelled by an immediate abort.
func (c *Controller) Context() context.Context {
	return c.opCtx
}

// StopContext is done as soon as any abort is requested.
func (c *Controller) StopContext() context.Context {
	return c.stopCtx
}

// Killed is closed on immediate abort.
func (c *Controller) Killed() <-chan struct{} {
	return c.opCtx.Done()
}

// Watch maps incoming signals to aborts: the first one reclaims, any later
// one kills. It returns when signals is closed or after the kill.
func (c *Controller) Watch(signals <-chan os.Signal, onSignal func(os.Signal, AbortMode)) {
	count := 0
	for sig := range signals {
		count++
		if count == 1 {
			c.Reclaim()
		} else {
			c.Kill()
		}
		if onSignal != nil {
			onSignal(sig, c.Mode())
		}
		if c.Mode() == AbortImmediate {
			return
		}
	}
}

// Release frees the controller's contexts once the run is over.
func (c *Controller) Release() {
	c.released.Store(true)
	c.stop()
	c.kill()
}
