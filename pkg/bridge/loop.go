package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gderrors "github.com/odvcencio/geodash/pkg/errors"
	"github.com/odvcencio/geodash/pkg/observability"
	"github.com/odvcencio/geodash/pkg/task"
)

type job struct {
	name string
	fn   func(ctx context.Context) error
	fut  *Future
}

// Loop owns a dispatcher goroutine and the jobs it starts. Every job runs
// on its own goroutine under a context derived from the loop context.
type Loop struct {
	ctx    context.Context
	cancel context.CancelFunc
	inbox  chan *job

	mu     sync.RWMutex
	closed bool

	stopped chan struct{}
	running sync.WaitGroup
	log     *observability.Logger
}

// NewLoop starts a loop with an inbox of inboxSize pending jobs.
func NewLoop(inboxSize int, logger *observability.Logger) *Loop {
	if inboxSize <= 0 {
		inboxSize = 1
	}
	if logger == nil {
		logger = observability.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loop{
		ctx:     ctx,
		cancel:  cancel,
		inbox:   make(chan *job, inboxSize),
		stopped: make(chan struct{}),
		log:     logger,
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.stopped)
	for {
		select {
		case j := <-l.inbox:
			l.dispatch(j)
		case <-l.ctx.Done():
			return
		}
	}
}

func (l *Loop) dispatch(j *job) {
	l.running.Add(1)
	go func() {
		defer l.running.Done()
		l.exec(j)
	}()
}

func (l *Loop) exec(j *job) {
	ctx, cancel := context.WithCancel(l.ctx)
	defer cancel()
	if !j.fut.bind(cancel) {
		cancel()
	}
	j.fut.complete(l.call(ctx, j))
}

func (l *Loop) call(ctx context.Context, j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("job panicked", slog.String("job", j.name), slog.Any("panic", r))
			err = gderrors.Newf(gderrors.ErrCodeInternal, "job %q panicked: %v", j.name, r)
		}
	}()
	return j.fn(ctx)
}

// Submit queues fn. It fails once the loop is closed.
func (l *Loop) Submit(name string, fn func(ctx context.Context) error) (*Future, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, gderrors.Closed("loop", name)
	}

	j := &job{name: name, fn: fn, fut: newFuture(name)}
	select {
	case l.inbox <- j:
		return j.fut, nil
	case <-l.ctx.Done():
		return nil, gderrors.Closed("loop", name)
	}
}

// Schedule implements task.Scheduler.
func (l *Loop) Schedule(name string, fn func(ctx context.Context)) (task.Handle, error) {
	fut, err := l.Submit(name, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fut, nil
}

// Closed reports whether Close has been called.
func (l *Loop) Closed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.closed
}

// Close cancels every job, runs anything still queued with the cancelled
// context and waits up to timeout for all jobs to return.
func (l *Loop) Close(timeout time.Duration) error {
	l.cancel()

	l.mu.Lock()
	already := l.closed
	l.closed = true
	l.mu.Unlock()
	if already {
		return nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	select {
	case <-l.stopped:
	case <-deadline.C:
		return gderrors.Timeout("loop close", timeout)
	}

	// Submit cannot add jobs any more; whatever is queued still settles.
	drained := 0
	for pending := true; pending; {
		select {
		case j := <-l.inbox:
			l.dispatch(j)
			drained++
		default:
			pending = false
		}
	}
	if drained > 0 {
		l.log.Debug("loop drained queued jobs", slog.Int("count", drained))
	}

	idle := make(chan struct{})
	go func() {
		l.running.Wait()
		close(idle)
	}()
	select {
	case <-idle:
		return nil
	case <-deadline.C:
		return fmt.Errorf("loop close: jobs still running: %w", gderrors.Timeout("loop close", timeout))
	}
}
