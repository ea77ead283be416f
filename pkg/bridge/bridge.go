// Package bridge runs remote compute calls on a per-session background loop
// and lets synchronous callers block on them with a deadline.
package bridge

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/odvcencio/geodash/pkg/config"
	"github.com/odvcencio/geodash/pkg/earthengine"
	gderrors "github.com/odvcencio/geodash/pkg/errors"
	"github.com/odvcencio/geodash/pkg/observability"
	"github.com/odvcencio/geodash/pkg/task"
	"github.com/odvcencio/geodash/pkg/telemetry"
)

// Bridge owns one loop and the remote backend it calls.
type Bridge struct {
	cfg       config.BridgeConfig
	session   earthengine.Session
	legacy    earthengine.Legacy
	hub       *telemetry.Hub
	sessionID string
	log       *observability.Logger

	loop    *Loop
	pool    *semaphore.Weighted
	cleanup runtime.Cleanup

	closed    atomic.Bool
	closeOnce sync.Once
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithSession routes remote calls through a per-user session.
func WithSession(s earthengine.Session) Option {
	return func(b *Bridge) { b.session = s }
}

// WithLegacy routes remote calls through the process-wide blocking client.
func WithLegacy(l earthengine.Legacy) Option {
	return func(b *Bridge) { b.legacy = l }
}

// WithConfig overrides the default bridge settings. Zero fields keep defaults.
func WithConfig(cfg config.BridgeConfig) Option {
	return func(b *Bridge) {
		if cfg.DefaultTimeout > 0 {
			b.cfg.DefaultTimeout = cfg.DefaultTimeout
		}
		if cfg.CloseTimeout > 0 {
			b.cfg.CloseTimeout = cfg.CloseTimeout
		}
		if cfg.OffloadWorkers > 0 {
			b.cfg.OffloadWorkers = cfg.OffloadWorkers
		}
		if cfg.InboxSize > 0 {
			b.cfg.InboxSize = cfg.InboxSize
		}
		if cfg.ListConcurrency > 0 {
			b.cfg.ListConcurrency = cfg.ListConcurrency
		}
	}
}

// WithLogger sets the bridge logger.
func WithLogger(l *observability.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.log = l
		}
	}
}

// WithHub publishes task and bridge events to h.
func WithHub(h *telemetry.Hub) Option {
	return func(b *Bridge) { b.hub = h }
}

// WithSessionID tags logs, spans and events with the owning session.
func WithSessionID(id string) Option {
	return func(b *Bridge) { b.sessionID = id }
}

// New starts a bridge loop.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		cfg: config.BridgeConfig{
			DefaultTimeout:  config.DefaultBridgeTimeout,
			CloseTimeout:    config.DefaultCloseTimeout,
			OffloadWorkers:  config.DefaultOffloadWorkers,
			InboxSize:       config.DefaultInboxSize,
			ListConcurrency: config.DefaultListConcurrency,
		},
		log: observability.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.log = b.log.WithComponent("bridge")
	if b.sessionID != "" {
		b.log = b.log.WithSession(b.sessionID)
	}

	b.loop = NewLoop(b.cfg.InboxSize, b.log)
	b.pool = semaphore.NewWeighted(int64(b.cfg.OffloadWorkers))
	observability.BridgesOpen.Inc()

	closeTimeout := b.cfg.CloseTimeout
	b.cleanup = runtime.AddCleanup(b, func(l *Loop) {
		_ = l.Close(closeTimeout)
		observability.BridgesOpen.Dec()
	}, b.loop)

	b.log.Debug("bridge started",
		slog.Bool("session_backend", b.session != nil),
		slog.Bool("legacy_backend", b.legacy != nil),
	)
	return b
}

// DefaultTimeout is the deadline used by the blocking operation forms.
func (b *Bridge) DefaultTimeout() time.Duration { return b.cfg.DefaultTimeout }

// Loop exposes the bridge's scheduler.
func (b *Bridge) Loop() *Loop { return b.loop }

// Closed reports whether Close has been called.
func (b *Bridge) Closed() bool { return b.closed.Load() }

// Close stops the loop. Calling it again is a no-op; shutdown problems are
// logged, not returned.
func (b *Bridge) Close() error {
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		b.cleanup.Stop()
		if err := b.loop.Close(b.cfg.CloseTimeout); err != nil {
			b.log.Warn("bridge loop did not stop cleanly", slog.Any("error", err))
		}
		observability.BridgesOpen.Dec()
		b.hub.Publish(telemetry.Event{Type: telemetry.EventBridgeClosed, SessionID: b.sessionID})
		b.log.Debug("bridge closed")
	})
	return nil
}

// RunBlocking runs op on b's loop and waits up to timeout for it. A timeout
// cancels op and returns a timeout error naming the operation; any other
// error from op is returned as is. timeout <= 0 uses the bridge default.
func RunBlocking[T any](b *Bridge, name string, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if b.Closed() {
		return zero, gderrors.Closed("bridge", name)
	}
	if timeout <= 0 {
		timeout = b.cfg.DefaultTimeout
	}

	var result T
	fut, err := b.loop.Submit(name, func(ctx context.Context) error {
		r, err := op(ctx)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return zero, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-fut.Done():
		if err := fut.Err(); err != nil {
			return zero, err
		}
		return result, nil
	case <-timer.C:
		fut.Cancel()
		observability.RecordTimeout(name)
		b.log.Warn("blocking call timed out",
			slog.String("operation", name),
			slog.Duration("timeout", timeout),
		)
		return zero, gderrors.Timeout(name, timeout)
	}
}

// CreateTask builds a task scheduled on b's loop. Unset options inherit the
// bridge's hub, logger and session.
func CreateTask[P, R any](b *Bridge, key string, fn task.Func[P, R], opts task.Options[R]) *task.Task[P, R] {
	if opts.Hub == nil {
		opts.Hub = b.hub
	}
	if opts.Logger == nil {
		opts.Logger = b.log
	}
	if opts.SessionID == "" {
		opts.SessionID = b.sessionID
	}
	return task.New[P, R](b.loop, key, fn, opts)
}

// offload runs fn on the bounded worker pool so blocking legacy calls never
// occupy the loop. The caller stops waiting when ctx is done.
func offload[T any](ctx context.Context, b *Bridge, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.pool.Acquire(ctx, 1); err != nil {
		return zero, err
	}

	type outcome struct {
		v   T
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer b.pool.Release(1)
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: gderrors.Newf(gderrors.ErrCodeInternal, "legacy call panicked: %v", r)}
			}
		}()
		v, err := fn()
		ch <- outcome{v: v, err: err}
	}()

	select {
	case o := <-ch:
		return o.v, o.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
