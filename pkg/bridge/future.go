package bridge

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
)

// Future is the pending result of a job submitted to a Loop.
type Future struct {
	ID   string
	Name string

	done chan struct{}

	mu        sync.Mutex
	err       error
	cancel    context.CancelFunc
	cancelled bool
	finished  bool
}

func newFuture(name string) *Future {
	return &Future{
		ID:   ulid.Make().String(),
		Name: name,
		done: make(chan struct{}),
	}
}

// Done is closed once the job has returned.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Err returns the job's error once Done is closed.
func (f *Future) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Cancel cancels the job's context. It reports false when the job had
// already finished or was already cancelled.
func (f *Future) Cancel() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finished || f.cancelled {
		return false
	}
	f.cancelled = true
	if f.cancel != nil {
		f.cancel()
	}
	return true
}

// Cancelled reports whether Cancel took effect.
func (f *Future) Cancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

// Wait blocks until the job finishes or ctx is done.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// bind attaches the job's cancel func. It reports false when the future was
// cancelled before the job started.
func (f *Future) bind(cancel context.CancelFunc) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancel = cancel
	return !f.cancelled
}

func (f *Future) complete(err error) {
	f.mu.Lock()
	f.err = err
	f.finished = true
	f.mu.Unlock()
	close(f.done)
}
