// Package delivery buffers action records and drains them into a sink
// through a single-flight, trailing-coalesced, rate-limited executor.
package delivery

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type opState int

const (
	stateIdle opState = iota
	stateRunning
	statePending // running, with one trailing run requested
)

func (s opState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateRunning:
		return "running"
	case statePending:
		return "pending"
	default:
		return "unknown"
	}
}

// Operation runs an action with at most one execution in flight. Requests
// that arrive while a run is active collapse into exactly one trailing run.
// A non-zero minimum delay spaces the start of consecutive runs.
type Operation struct {
	action  func(ctx context.Context)
	limiter *rate.Limiter

	// waitCtx aborts a pending limiter wait on Close; runCtx is handed to
	// the action and only cancelled when Close gives up waiting.
	waitCtx    context.Context
	cancelWait context.CancelFunc
	runCtx     context.Context
	cancelRun  context.CancelFunc

	mu     sync.Mutex
	state  opState
	closed bool
	done   chan struct{}
	runs   int64
}

// NewOperation creates an idle operation.
func NewOperation(action func(ctx context.Context), minDelay time.Duration) *Operation {
	o := &Operation{action: action}
	if minDelay > 0 {
		o.limiter = rate.NewLimiter(rate.Every(minDelay), 1)
	}
	o.waitCtx, o.cancelWait = context.WithCancel(context.Background())
	o.runCtx, o.cancelRun = context.WithCancel(context.Background())
	return o
}

// Request schedules a run and returns immediately. It reports false once
// the operation is closed.
func (o *Operation) Request() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return false
	}

	switch o.state {
	case stateIdle:
		o.state = stateRunning
		o.done = make(chan struct{})
		go o.loop(o.done)
	case stateRunning:
		o.state = statePending
	case statePending:
		// already coalesced into the trailing run
	}
	return true
}

// TryRequest starts a run only when the operation is idle; a request during
// an active run is dropped rather than coalesced.
func (o *Operation) TryRequest() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || o.state != stateIdle {
		return false
	}
	o.state = stateRunning
	o.done = make(chan struct{})
	go o.loop(o.done)
	return true
}

func (o *Operation) loop(done chan struct{}) {
	defer close(done)

	for {
		if o.limiter != nil {
			if err := o.limiter.Wait(o.waitCtx); err != nil {
				o.finish()
				return
			}
		}

		o.mu.Lock()
		if o.closed {
			o.state = stateIdle
			o.mu.Unlock()
			return
		}
		// Requests made before this run starts are served by it.
		o.state = stateRunning
		o.runs++
		o.mu.Unlock()

		o.action(o.runCtx)

		o.mu.Lock()
		if o.state == statePending && !o.closed {
			o.mu.Unlock()
			continue
		}
		o.state = stateIdle
		o.mu.Unlock()
		return
	}
}

func (o *Operation) finish() {
	o.mu.Lock()
	o.state = stateIdle
	o.mu.Unlock()
}

// Runs returns the number of executions started so far.
func (o *Operation) Runs() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runs
}

// Idle reports whether no run is active or scheduled.
func (o *Operation) Idle() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == stateIdle
}

// Close prevents further runs and waits for the in-flight run to return.
// If ctx expires first, the action's context is cancelled and ctx.Err() is
// returned.
func (o *Operation) Close(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	done := o.done
	o.mu.Unlock()

	o.cancelWait()
	defer o.cancelRun()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		o.cancelRun()
		return ctx.Err()
	}
}
