// Package lifecycle coordinates process startup and shutdown across the
// subsystems that own background work: the database pool, blob storage,
// the run scheduler and the HTTP listener.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Phase is the coarse state of a Coordinator.
type Phase int32

const (
	Starting Phase = iota
	Running
	Stopping
	Stopped
)

func (p Phase) String() string {
	switch p {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// ReadinessChecker reports whether a subsystem is ready to serve traffic.
type ReadinessChecker interface {
	Ready() bool
}

// Coordinator runs startup hooks concurrently, flips to Running once they
// have all returned, and on Shutdown cancels its context and waits for the
// shutdown hooks to drain.
type Coordinator struct {
	ctx    context.Context
	cancel context.CancelFunc

	starting sync.WaitGroup
	stopping sync.WaitGroup

	phase atomic.Int32
	once  sync.Once
	err   error
}

// New creates a Coordinator in the Starting phase.
func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{ctx: ctx, cancel: cancel}
}

// Context is cancelled when Shutdown begins. Long-running hooks select on it.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// Phase reports the current phase.
func (c *Coordinator) Phase() Phase {
	return Phase(c.phase.Load())
}

// OnStartup runs fn in its own goroutine. WaitForStartup blocks until fn
// returns.
func (c *Coordinator) OnStartup(fn func()) {
	c.starting.Go(fn)
}

// OnShutdown runs fn in its own goroutine. Hooks block on Context().Done()
// before releasing their resources; Shutdown waits for them to return.
func (c *Coordinator) OnShutdown(fn func()) {
	c.stopping.Go(fn)
}

// Ready is true only in the Running phase.
func (c *Coordinator) Ready() bool {
	return c.Phase() == Running
}

// WaitForStartup blocks until every startup hook has returned, then moves
// the coordinator to Running unless shutdown has already begun.
func (c *Coordinator) WaitForStartup() {
	c.starting.Wait()
	c.phase.CompareAndSwap(int32(Starting), int32(Running))
}

// Shutdown cancels the context and waits up to timeout for the shutdown
// hooks. Repeated calls return the result of the first one.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.once.Do(func() {
		c.phase.Store(int32(Stopping))
		c.cancel()
		c.err = c.drain(timeout)
		c.phase.Store(int32(Stopped))
	})
	return c.err
}

func (c *Coordinator) drain(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		c.stopping.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return fmt.Errorf("shutdown hooks still running after %v", timeout)
	}
}
