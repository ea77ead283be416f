// Package session keeps one set of remote clients per live connection.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/odvcencio/geodash/pkg/auth"
	"github.com/odvcencio/geodash/pkg/bridge"
	"github.com/odvcencio/geodash/pkg/bus"
	"github.com/odvcencio/geodash/pkg/config"
	"github.com/odvcencio/geodash/pkg/drive"
	gderrors "github.com/odvcencio/geodash/pkg/errors"
	"github.com/odvcencio/geodash/pkg/observability"
	"github.com/odvcencio/geodash/pkg/sepal"
	"github.com/odvcencio/geodash/pkg/telemetry"
)

// Component names a per-session resource.
type Component string

const (
	ComponentBridge  Component = "bridge"
	ComponentStorage Component = "storage"
	ComponentDrive   Component = "drive"
)

// Info describes one registered session.
type Info struct {
	Identity   string    `json:"identity"`
	Username   string    `json:"username"`
	Module     string    `json:"module"`
	CreatedAt  time.Time `json:"createdAt"`
	HasBridge  bool      `json:"hasBridge"`
	HasStorage bool      `json:"hasStorage"`
	HasDrive   bool      `json:"hasDrive"`
	// Ready is true once the session can run remote operations.
	Ready bool `json:"ready"`
}

// Overview summarizes every registered session.
type Overview struct {
	Total    int    `json:"total"`
	Ready    int    `json:"ready"`
	Sessions []Info `json:"sessions"`
}

// lifecycleEvent is the bus payload for session.created and session.closed.
type lifecycleEvent struct {
	Identity  string    `json:"identity"`
	Username  string    `json:"username"`
	Module    string    `json:"module"`
	Timestamp time.Time `json:"timestamp"`
}

type record struct {
	identity  string
	username  string
	module    string
	createdAt time.Time
	res       *Resources
}

func (r *record) info() Info {
	return Info{
		Identity:   r.identity,
		Username:   r.username,
		Module:     r.module,
		CreatedAt:  r.createdAt,
		HasBridge:  r.res.Bridge != nil,
		HasStorage: r.res.Storage != nil,
		HasDrive:   r.res.Drive != nil,
		Ready:      r.res.Bridge != nil && !r.res.Bridge.Closed(),
	}
}

// Registry maps connection identities to their session resources.
type Registry struct {
	factory  Factory
	cfg      config.SessionConfig
	credPath string
	bus      bus.MessageBus
	subjects bus.Subjects
	hub      *telemetry.Hub
	log      *observability.Logger
	now      func() time.Time

	mu      sync.RWMutex
	records map[string]*record
	closed  bool
	group   singleflight.Group

	fallbackMu sync.Mutex
	fallback   *bridge.Bridge

	// owned are released by Close after every session.
	owned []func(context.Context) error
}

// Option configures a Registry.
type Option func(*Registry)

// WithBus publishes lifecycle events on b under prefix.
func WithBus(b bus.MessageBus, prefix string) Option {
	return func(r *Registry) {
		r.bus = b
		r.subjects = bus.Subjects{Prefix: prefix}
	}
}

// WithHub publishes lifecycle events to h.
func WithHub(h *telemetry.Hub) Option {
	return func(r *Registry) { r.hub = h }
}

// WithLogger sets the registry logger.
func WithLogger(l *observability.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithSessionConfig sets the default module and test mode.
func WithSessionConfig(cfg config.SessionConfig) Option {
	return func(r *Registry) { r.cfg = cfg }
}

// withOwned hands a resource's shutdown to the registry's Close.
func withOwned(fn func(context.Context) error) Option {
	return func(r *Registry) { r.owned = append(r.owned, fn) }
}

// WithCredentialsPath sets the local credentials file read in test mode.
func WithCredentialsPath(path string) Option {
	return func(r *Registry) { r.credPath = path }
}

// NewRegistry returns an empty registry that builds sessions with factory.
func NewRegistry(factory Factory, opts ...Option) *Registry {
	r := &Registry{
		factory:  factory,
		cfg:      config.SessionConfig{DefaultModule: config.DefaultModule},
		subjects: bus.Subjects{Prefix: config.DefaultSubjectPrefix},
		log:      observability.Default(),
		now:      time.Now,
		records:  make(map[string]*record),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.WithComponent("session")
	return r
}

var (
	sharedOnce     sync.Once
	sharedRegistry *Registry
)

// Shared returns the process-wide registry, built from the loaded
// configuration on first use.
func Shared() *Registry {
	sharedOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			observability.Default().Warn("falling back to default configuration", slog.Any("error", err))
			cfg = config.DefaultConfig()
		}
		sharedRegistry = NewFromConfig(cfg, os.Stdout)
	})
	return sharedRegistry
}

// NewFromConfig builds a registry wired from cfg: logger, event hub, message
// bus and, when cfg.Telemetry.Tracing is set, a global tracer provider that
// exports spans to traceOut. The registry owns all of them and releases them
// on Close.
func NewFromConfig(cfg *config.Config, traceOut io.Writer) *Registry {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := observability.NewLogger("geodash", observability.ParseLevel(cfg.Logging.Level))
	hub := telemetry.NewHub()
	opts := []Option{
		WithLogger(logger),
		WithHub(hub),
		WithSessionConfig(cfg.Session),
		WithCredentialsPath(cfg.EarthEngine.CredentialsPath),
	}
	if b, err := bus.Open(cfg.Bus); err != nil {
		logger.Warn("session events disabled", slog.Any("error", err))
	} else {
		opts = append(opts, WithBus(b, cfg.Bus.SubjectPrefix),
			withOwned(func(context.Context) error { return b.Close() }))
	}
	if cfg.Telemetry.Tracing {
		name := cfg.Telemetry.ServiceName
		if name == "" {
			name = config.DefaultServiceName
		}
		if traceOut == nil {
			traceOut = os.Stdout
		}
		if tp, err := observability.NewTracerProvider(name, traceOut); err != nil {
			logger.Warn("tracing disabled", slog.Any("error", err))
		} else {
			opts = append(opts, withOwned(tp.Shutdown))
		}
	}
	opts = append(opts, withOwned(func(context.Context) error {
		hub.Close()
		return nil
	}))
	return NewRegistry(NewDefaultFactory(cfg, logger, hub), opts...)
}

// Hub returns the event hub lifecycle events are published to, or nil.
func (r *Registry) Hub() *telemetry.Hub { return r.hub }

// Identity returns the identity of the connection carried by ctx.
func (r *Registry) Identity(ctx context.Context) (string, bool) {
	c, ok := ConnectionFrom(ctx)
	if !ok {
		return "", false
	}
	return c.ID, true
}

// headers returns the authentication material for ctx. ok is false when the
// connection carries none yet.
func (r *Registry) headers(ctx context.Context) (h auth.Headers, ok bool, err error) {
	if r.cfg.TestMode {
		h, err = auth.FromEnv(r.credPath)
		return h, err == nil, err
	}
	c, found := ConnectionFrom(ctx)
	if !found || c.Headers == nil || c.Headers.Get(auth.UserHeader) == "" {
		return auth.Headers{}, false, nil
	}
	h, err = auth.ParseHeaders(c.Headers, c.Host)
	return h, err == nil, err
}

// CreateSession builds the session of the connection carried by ctx. It does
// nothing when the connection has no authentication headers yet or already
// has a session. An empty module uses the configured default.
func (r *Registry) CreateSession(ctx context.Context, module string) error {
	identity, ok := r.Identity(ctx)
	if !ok {
		r.log.Warn("no connection available, session not created")
		return nil
	}
	if module == "" {
		module = r.cfg.DefaultModule
	}

	h, ok, err := r.headers(ctx)
	if err != nil {
		return err
	}
	if !ok {
		r.log.Warn("headers not available yet", slog.String("session_id", identity))
		return nil
	}

	if r.exists(identity) {
		r.log.Debug("session already exists", slog.String("session_id", identity))
		return nil
	}

	_, err, _ = r.group.Do(identity, func() (any, error) {
		if r.exists(identity) {
			return nil, nil
		}
		res, err := r.factory.NewSession(ctx, identity, module, h)
		if err != nil {
			r.log.Error("session creation failed",
				slog.String("session_id", identity),
				slog.String("username", h.Username),
				slog.Any("error", err),
			)
			return nil, err
		}

		rec := &record{
			identity:  identity,
			username:  h.Username,
			module:    module,
			createdAt: r.now(),
			res:       res,
		}
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			_ = res.Close()
			return nil, gderrors.Closed("registry", "create_session")
		}
		r.records[identity] = rec
		r.mu.Unlock()

		observability.SessionsActive.Inc()
		observability.RecordSessionEvent("created")
		r.log.SessionCreated(identity, h.Username, module)
		r.announce(ctx, telemetry.EventSessionCreated, r.subjects.SessionCreated(), rec)
		return nil, nil
	})
	return err
}

func (r *Registry) exists(identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[identity]
	return ok
}

func (r *Registry) lookup(ctx context.Context, identity string) *record {
	if identity == "" {
		var ok bool
		if identity, ok = r.Identity(ctx); !ok {
			return nil
		}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.records[identity]
}

// Get returns one component of a session, or nil when the session or the
// component does not exist. An empty identity means the connection in ctx.
func (r *Registry) Get(ctx context.Context, component Component, identity string) any {
	rec := r.lookup(ctx, identity)
	if rec == nil {
		return nil
	}
	r.log.Debug("retrieving session component",
		slog.String("component", string(component)),
		slog.String("session_id", rec.identity),
		slog.String("username", rec.username),
	)
	switch component {
	case ComponentBridge:
		if rec.res.Bridge != nil {
			return rec.res.Bridge
		}
	case ComponentStorage:
		if rec.res.Storage != nil {
			return rec.res.Storage
		}
	case ComponentDrive:
		if rec.res.Drive != nil {
			return rec.res.Drive
		}
	}
	return nil
}

// Bridge returns the bridge of the connection in ctx.
func (r *Registry) Bridge(ctx context.Context) *bridge.Bridge {
	if rec := r.lookup(ctx, ""); rec != nil {
		return rec.res.Bridge
	}
	return nil
}

// Storage returns the storage client of the connection in ctx.
func (r *Registry) Storage(ctx context.Context) *sepal.Client {
	if rec := r.lookup(ctx, ""); rec != nil {
		return rec.res.Storage
	}
	return nil
}

// Drive returns the drive client of the connection in ctx.
func (r *Registry) Drive(ctx context.Context) *drive.Client {
	if rec := r.lookup(ctx, ""); rec != nil {
		return rec.res.Drive
	}
	return nil
}

// Cleanup closes and forgets the session of identity and reports whether one
// was removed. Close failures are logged; the record is always removed.
func (r *Registry) Cleanup(identity string) bool {
	r.mu.Lock()
	rec, ok := r.records[identity]
	delete(r.records, identity)
	r.mu.Unlock()
	if !ok {
		return false
	}
	r.release(rec)
	return true
}

// Attach binds c to ctx for the lifetime of one client connection. A
// connection without an ID gets a fresh identity. The returned detach
// releases the connection's session and is safe to call more than once.
func (r *Registry) Attach(ctx context.Context, c Connection) (context.Context, func()) {
	if c.ID == "" {
		c.ID = NewIdentity()
	}
	var once sync.Once
	detach := func() {
		once.Do(func() { r.Cleanup(c.ID) })
	}
	return WithConnection(ctx, c), detach
}

func (r *Registry) release(rec *record) {
	if err := rec.res.Close(); err != nil {
		r.log.Error("error closing session resources",
			slog.String("session_id", rec.identity),
			slog.Any("error", err),
		)
	}
	observability.SessionsActive.Dec()
	observability.RecordSessionEvent("closed")
	r.log.SessionCleaned(rec.identity)
	r.announce(context.Background(), telemetry.EventSessionClosed, r.subjects.SessionClosed(), rec)
}

// ListSessions returns a snapshot of every session, oldest first.
func (r *Registry) ListSessions() []Info {
	r.mu.RLock()
	out := make([]Info, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.info())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Identity < out[j].Identity
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Info describes the session of identity. For an unknown identity ok is
// false and the returned Info only carries the identity.
func (r *Registry) Info(identity string) (info Info, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[identity]
	if !ok {
		return Info{Identity: identity}, false
	}
	return rec.info(), true
}

// Overview summarizes every session.
func (r *Registry) Overview() Overview {
	sessions := r.ListSessions()
	ov := Overview{Total: len(sessions), Sessions: sessions}
	for _, s := range sessions {
		if s.Ready {
			ov.Ready++
		}
	}
	return ov
}

// FallbackBridge returns the shared single-tenant bridge, building it on
// first use. A failed build is retried on the next call.
func (r *Registry) FallbackBridge() (*bridge.Bridge, error) {
	r.fallbackMu.Lock()
	defer r.fallbackMu.Unlock()
	if r.fallback != nil && !r.fallback.Closed() {
		return r.fallback, nil
	}
	if r.isClosed() {
		return nil, gderrors.Closed("registry", "fallback_bridge")
	}
	b, err := r.factory.NewFallback()
	if err != nil {
		return nil, err
	}
	r.fallback = b
	r.log.Info("fallback bridge started")
	return b, nil
}

// BridgeOrFallback returns the session bridge of ctx, or the fallback bridge
// when the connection has no session.
func (r *Registry) BridgeOrFallback(ctx context.Context) (*bridge.Bridge, error) {
	if b := r.Bridge(ctx); b != nil {
		return b, nil
	}
	return r.FallbackBridge()
}

func (r *Registry) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// Close tears down every session and the fallback bridge. Later creates fail.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	recs := make([]*record, 0, len(r.records))
	for id, rec := range r.records {
		recs = append(recs, rec)
		delete(r.records, id)
	}
	r.mu.Unlock()

	for _, rec := range recs {
		r.release(rec)
	}

	r.fallbackMu.Lock()
	if r.fallback != nil {
		_ = r.fallback.Close()
		r.fallback = nil
	}
	r.fallbackMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var errs []error
	for _, fn := range r.owned {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) announce(ctx context.Context, kind telemetry.EventType, subject string, rec *record) {
	r.hub.Publish(telemetry.Event{
		Type:      kind,
		Timestamp: r.now(),
		SessionID: rec.identity,
		Data:      map[string]any{"username": rec.username, "module": rec.module},
	})
	if r.bus == nil {
		return
	}
	ev := lifecycleEvent{
		Identity:  rec.identity,
		Username:  rec.username,
		Module:    rec.module,
		Timestamp: r.now(),
	}
	if err := bus.PublishJSON(context.WithoutCancel(ctx), r.bus, subject, ev); err != nil {
		r.log.Warn("session event not published",
			slog.String("subject", subject),
			slog.Any("error", err),
		)
	}
}
