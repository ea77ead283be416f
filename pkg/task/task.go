// Package task runs long-lived remote jobs on a shared scheduler and exposes
// their state, progress, result and error as observable fields.
package task

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/oklog/ulid/v2"

	gderrors "github.com/odvcencio/geodash/pkg/errors"
	"github.com/odvcencio/geodash/pkg/observability"
	"github.com/odvcencio/geodash/pkg/telemetry"
)

// Handle is the in-flight run returned by a Scheduler.
type Handle interface {
	// Cancel requests cancellation of the job's context. It reports false
	// when the job had already finished.
	Cancel() bool
	// Done is closed once the job function has returned.
	Done() <-chan struct{}
}

// Scheduler runs a job on a background loop. The context passed to fn is
// cancelled when the handle is cancelled or the loop shuts down.
type Scheduler interface {
	Schedule(name string, fn func(ctx context.Context)) (Handle, error)
}

// Reporter lets a running job publish progress.
type Reporter interface {
	SetProgress(progress float64)
	SetMessage(message string)
}

// Func is the unit of work a task runs.
type Func[P, R any] func(ctx context.Context, params P, report Reporter) (R, error)

// Options wires callbacks and sinks into a task.
type Options[R any] struct {
	OnProgress func(progress float64, message string)
	OnDone     func(result R)
	OnError    func(err error)
	OnFinally  func()

	Hub       *telemetry.Hub
	SessionID string
	Logger    *observability.Logger
}

// Task is a restartable background job with observable state.
type Task[P, R any] struct {
	key   string
	fn    Func[P, R]
	sched Scheduler
	opts  Options[R]
	log   *observability.Logger

	// startMu serializes Start so Schedule can block without holding mu.
	startMu sync.Mutex

	mu       sync.Mutex
	state    State
	result   R
	err      error
	progress float64
	message  string
	runID    string
	handle   Handle

	obs observers
}

type snapshot[R any] struct {
	state    State
	result   R
	err      error
	progress float64
	message  string
	runID    string
}

// New creates a task in the NotCalled state.
func New[P, R any](sched Scheduler, key string, fn Func[P, R], opts Options[R]) *Task[P, R] {
	logger := opts.Logger
	if logger == nil {
		logger = observability.Default()
	}
	logger = logger.WithComponent("task")
	if opts.SessionID != "" {
		logger = logger.WithSession(opts.SessionID)
	}
	return &Task[P, R]{
		key:   key,
		fn:    fn,
		sched: sched,
		opts:  opts,
		log:   logger,
	}
}

// Key returns the task's identifier.
func (t *Task[P, R]) Key() string { return t.key }

// RunID identifies the current or most recent run.
func (t *Task[P, R]) RunID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runID
}

func (t *Task[P, R]) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task[P, R]) Result() R {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

func (t *Task[P, R]) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Task[P, R]) Progress() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

func (t *Task[P, R]) Message() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.message
}

func (t *Task[P, R]) IsActive() bool    { return t.State().IsActive() }
func (t *Task[P, R]) IsFinished() bool  { return t.State() == Finished }
func (t *Task[P, R]) IsError() bool     { return t.State() == Errored }
func (t *Task[P, R]) IsCancelled() bool { return t.State() == Cancelled }

// Observe registers fn for every field change. Listeners run synchronously on
// the goroutine that made the change.
func (t *Task[P, R]) Observe(fn func(Change)) (unsubscribe func()) {
	return t.obs.add(fn)
}

// Start launches a run with params. When a run is already in flight its
// handle is returned and params are ignored. Concurrent Start calls wait for
// each other; state accessors stay available while the scheduler blocks.
func (t *Task[P, R]) Start(params P) (Handle, error) {
	if t.sched == nil {
		return nil, gderrors.New(gderrors.ErrCodeNotReady, "task has no scheduler").
			WithContext("task", t.key)
	}

	t.startMu.Lock()
	defer t.startMu.Unlock()

	t.mu.Lock()
	if t.handle != nil {
		h := t.handle
		t.mu.Unlock()
		return h, nil
	}
	t.mu.Unlock()

	// The run parks on gate until the new handle and state are installed.
	runID := ulid.Make().String()
	gate := make(chan struct{})
	h, err := t.sched.Schedule(t.key, func(ctx context.Context) {
		t.run(ctx, gate, runID, params)
	})
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	var zero R
	prev := t.state
	changes := t.setStateLocked(nil, Starting)
	if prev == Finished {
		changes = append(changes, Change{Field: FieldResult, Old: t.result, New: zero})
	}
	t.result = zero
	if t.err != nil {
		changes = append(changes, Change{Field: FieldError, Old: t.err, New: error(nil)})
		t.err = nil
	}
	changes = t.setProgressLocked(changes, 0)
	changes = t.setMessageLocked(changes, fmt.Sprintf("Starting task %s", t.key))
	t.handle = h
	t.runID = runID
	snap := t.snapshotLocked()
	t.mu.Unlock()

	observability.TasksActive.Inc()
	t.publish(changes, snap)
	close(gate)
	return h, nil
}

// Cancel requests cancellation of the in-flight run. The run settles in
// Cancelled unless the job completes first.
func (t *Task[P, R]) Cancel() {
	t.mu.Lock()
	h := t.handle
	t.mu.Unlock()
	if h == nil {
		return
	}
	t.log.Info("task cancellation requested", slog.String("task_key", t.key))
	h.Cancel()
}

// Wait blocks until the in-flight run, if any, has finished.
func (t *Task[P, R]) Wait(ctx context.Context) error {
	t.mu.Lock()
	h := t.handle
	t.mu.Unlock()
	if h == nil {
		return nil
	}
	select {
	case <-h.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels any in-flight run.
func (t *Task[P, R]) Close() error {
	t.Cancel()
	return nil
}

func (t *Task[P, R]) run(ctx context.Context, gate <-chan struct{}, runID string, params P) {
	<-gate
	defer t.finally(runID)

	t.transition(runID, Waiting, fmt.Sprintf("%s: waiting to start", t.key))
	t.transition(runID, Running, fmt.Sprintf("%s: running", t.key))

	// Cancelled before the function was entered: it is never called.
	if ctx.Err() != nil {
		var zero R
		t.complete(runID, zero, ctx.Err(), true)
		return
	}

	result, err := t.invoke(ctx, runID, params)
	t.complete(runID, result, err, err != nil && ctx.Err() != nil)
}

func (t *Task[P, R]) invoke(ctx context.Context, runID string, params P) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = gderrors.Newf(gderrors.ErrCodeInternal, "task panicked: %v", r).
				WithContext("task", t.key)
		}
	}()
	return t.fn(ctx, params, &reporter[P, R]{task: t, runID: runID})
}

func (t *Task[P, R]) transition(runID string, to State, message string) {
	t.mu.Lock()
	if t.runID != runID || !t.state.IsActive() {
		t.mu.Unlock()
		return
	}
	changes := t.setStateLocked(nil, to)
	changes = t.setMessageLocked(changes, message)
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.publish(changes, snap)
}

// complete records the single terminal transition of a run.
func (t *Task[P, R]) complete(runID string, result R, err error, cancelled bool) {
	t.mu.Lock()
	if t.runID != runID || !t.state.IsActive() {
		t.mu.Unlock()
		return
	}
	var changes []Change
	var to State
	switch {
	case err == nil:
		to = Finished
		changes = append(changes, Change{Field: FieldResult, Old: t.result, New: result})
		t.result = result
		changes = t.setMessageLocked(changes, fmt.Sprintf("%s: completed successfully", t.key))
	case cancelled:
		to = Cancelled
		changes = t.setMessageLocked(changes, fmt.Sprintf("%s: cancelled", t.key))
	default:
		to = Errored
		changes = append(changes, Change{Field: FieldError, Old: t.err, New: err})
		t.err = err
		changes = t.setMessageLocked(changes, fmt.Sprintf("%s: error %v", t.key, err))
	}
	changes = t.setStateLocked(changes, to)
	t.handle = nil
	snap := t.snapshotLocked()
	t.mu.Unlock()

	observability.TasksActive.Dec()
	observability.RecordTaskTerminal(to.String())
	switch to {
	case Cancelled:
		t.log.Info("task cancelled", slog.String("task_key", t.key), slog.String("run_id", runID))
	case Errored:
		t.log.Error("task failed", slog.String("task_key", t.key), slog.String("run_id", runID), slog.Any("error", err))
	}
	t.publish(changes, snap)
}

func (t *Task[P, R]) finally(runID string) {
	if t.opts.OnFinally == nil {
		return
	}
	t.safely("on_finally", runID, t.opts.OnFinally)
}

func (t *Task[P, R]) report(runID string, progress *float64, message *string) {
	t.mu.Lock()
	if t.runID != runID || !t.state.IsActive() {
		t.mu.Unlock()
		return
	}
	var changes []Change
	if progress != nil {
		changes = t.setProgressLocked(changes, *progress)
	}
	if message != nil {
		changes = t.setMessageLocked(changes, *message)
	}
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.publish(changes, snap)
}

func (t *Task[P, R]) setStateLocked(changes []Change, to State) []Change {
	from := t.state
	if from == to {
		return changes
	}
	t.state = to
	changes = append(changes, Change{Field: FieldState, Old: from, New: to})
	if from.IsActive() != to.IsActive() {
		changes = append(changes, Change{Field: FieldActive, Old: from.IsActive(), New: to.IsActive()})
	}
	return changes
}

func (t *Task[P, R]) setProgressLocked(changes []Change, progress float64) []Change {
	if math.IsNaN(progress) {
		return changes
	}
	progress = math.Max(0, math.Min(1, progress))
	if progress == t.progress {
		return changes
	}
	old := t.progress
	t.progress = progress
	return append(changes, Change{Field: FieldProgress, Old: old, New: progress})
}

func (t *Task[P, R]) setMessageLocked(changes []Change, message string) []Change {
	if message == t.message {
		return changes
	}
	old := t.message
	t.message = message
	return append(changes, Change{Field: FieldMessage, Old: old, New: message})
}

func (t *Task[P, R]) snapshotLocked() snapshot[R] {
	return snapshot[R]{
		state:    t.state,
		result:   t.result,
		err:      t.err,
		progress: t.progress,
		message:  t.message,
		runID:    t.runID,
	}
}

// publish delivers changes to observers, option callbacks and the hub.
func (t *Task[P, R]) publish(changes []Change, snap snapshot[R]) {
	if len(changes) == 0 {
		return
	}
	listeners := t.obs.list()
	progressed := false
	for _, c := range changes {
		for _, fn := range listeners {
			t.safely("observer", snap.runID, func() { fn(c) })
		}
		switch c.Field {
		case FieldProgress, FieldMessage:
			progressed = true
		case FieldState:
			from, to := c.Old.(State), c.New.(State)
			t.log.TaskTransition(t.key, from.String(), to.String())
			t.opts.Hub.Publish(t.event(stateEvent(to), snap))
			switch to {
			case Finished:
				if t.opts.OnDone != nil {
					t.safely("on_done", snap.runID, func() { t.opts.OnDone(snap.result) })
				}
			case Errored:
				if t.opts.OnError != nil {
					t.safely("on_error", snap.runID, func() { t.opts.OnError(snap.err) })
				}
			}
		}
	}
	if progressed {
		t.opts.Hub.Publish(t.event(telemetry.EventTaskProgress, snap))
		if t.opts.OnProgress != nil {
			t.safely("on_progress", snap.runID, func() { t.opts.OnProgress(snap.progress, snap.message) })
		}
	}
}

func (t *Task[P, R]) safely(callback, runID string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("task callback panicked",
				slog.String("task_key", t.key),
				slog.String("run_id", runID),
				slog.String("callback", callback),
				slog.Any("panic", r),
			)
		}
	}()
	fn()
}

func (t *Task[P, R]) event(kind telemetry.EventType, snap snapshot[R]) telemetry.Event {
	data := map[string]any{
		"state":    snap.state.String(),
		"progress": snap.progress,
		"message":  snap.message,
	}
	if snap.err != nil {
		data["error"] = snap.err.Error()
	}
	return telemetry.Event{
		Type:      kind,
		SessionID: t.opts.SessionID,
		TaskKey:   t.key,
		RunID:     snap.runID,
		Data:      data,
	}
}

func stateEvent(s State) telemetry.EventType {
	switch s {
	case Starting:
		return telemetry.EventTaskStarting
	case Waiting:
		return telemetry.EventTaskWaiting
	case Running:
		return telemetry.EventTaskRunning
	case Finished:
		return telemetry.EventTaskFinished
	case Errored:
		return telemetry.EventTaskError
	case Cancelled:
		return telemetry.EventTaskCancelled
	}
	return telemetry.EventType("task." + s.String())
}

type reporter[P, R any] struct {
	task  *Task[P, R]
	runID string
}

func (r *reporter[P, R]) SetProgress(progress float64) {
	r.task.report(r.runID, &progress, nil)
}

func (r *reporter[P, R]) SetMessage(message string) {
	r.task.report(r.runID, nil, &message)
}
