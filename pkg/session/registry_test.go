package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/odvcencio/geodash/pkg/auth"
	"github.com/odvcencio/geodash/pkg/bridge"
	"github.com/odvcencio/geodash/pkg/bus"
	"github.com/odvcencio/geodash/pkg/config"
	"github.com/odvcencio/geodash/pkg/earthengine"
	gderrors "github.com/odvcencio/geodash/pkg/errors"
	"github.com/odvcencio/geodash/pkg/observability"
	"github.com/odvcencio/geodash/pkg/telemetry"
)

type fakeFactory struct {
	mu          sync.Mutex
	calls       int
	fallbacks   int
	delay       time.Duration
	err         error
	fallbackErr error
	modules     []string
	headers     []auth.Headers
}

func (f *fakeFactory) NewSession(ctx context.Context, identity, module string, h auth.Headers) (*Resources, error) {
	f.mu.Lock()
	f.calls++
	f.modules = append(f.modules, module)
	f.headers = append(f.headers, h)
	delay, err := f.delay, f.err
	f.mu.Unlock()

	time.Sleep(delay)
	if err != nil {
		return nil, err
	}
	return &Resources{Bridge: bridge.New(
		bridge.WithLogger(observability.Nop()),
		bridge.WithSessionID(identity),
	)}, nil
}

func (f *fakeFactory) NewFallback() (*bridge.Bridge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallbacks++
	if f.fallbackErr != nil {
		return nil, f.fallbackErr
	}
	return bridge.New(bridge.WithLogger(observability.Nop())), nil
}

func (f *fakeFactory) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestRegistry(t *testing.T, f Factory, opts ...Option) *Registry {
	t.Helper()
	opts = append([]Option{WithLogger(observability.Nop())}, opts...)
	r := NewRegistry(f, opts...)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func testHeaders(t *testing.T, username string) map[string][]string {
	t.Helper()
	h, err := auth.Headers{
		Username:    username,
		SessionID:   "sid-" + username,
		Host:        "sepal.test",
		Credentials: auth.Credentials{AccessToken: "token-" + username, ProjectID: "proj"},
	}.HTTPHeader()
	require.NoError(t, err)
	return h
}

func connCtx(t *testing.T, id, username string) context.Context {
	t.Helper()
	c := Connection{ID: id}
	if username != "" {
		c.Headers = testHeaders(t, username)
	}
	return WithConnection(context.Background(), c)
}

func mustConstant(t *testing.T) earthengine.Expression {
	t.Helper()
	e, err := earthengine.ConstantExpression(1)
	require.NoError(t, err)
	return e
}

func TestCreateSession_NoConnection(t *testing.T) {
	f := &fakeFactory{}
	r := newTestRegistry(t, f)

	require.NoError(t, r.CreateSession(context.Background(), "mod"))
	assert.Empty(t, r.ListSessions())
	assert.Zero(t, f.callCount())
}

func TestCreateSession_NoHeadersCreatesNothing(t *testing.T) {
	f := &fakeFactory{}
	r := newTestRegistry(t, f)
	ctx := connCtx(t, "conn-1", "")

	require.NoError(t, r.CreateSession(ctx, "mod"))
	assert.Empty(t, r.ListSessions())
	assert.Nil(t, r.Bridge(ctx))
	assert.Zero(t, f.callCount())
}

func TestCreateSession_InvalidHeaders(t *testing.T) {
	f := &fakeFactory{}
	r := newTestRegistry(t, f)
	ctx := WithConnection(context.Background(), Connection{
		ID:      "conn-1",
		Headers: map[string][]string{"Sepal-User": {"{not json"}},
	})

	err := r.CreateSession(ctx, "mod")
	assert.True(t, gderrors.IsCode(err, gderrors.ErrCodeAuth))
	assert.Empty(t, r.ListSessions())
}

func TestCreateSession_RegistersComponents(t *testing.T) {
	f := &fakeFactory{}
	r := newTestRegistry(t, f)
	ctx := connCtx(t, "conn-1", "alice")

	require.NoError(t, r.CreateSession(ctx, "forest_map"))

	b := r.Bridge(ctx)
	require.NotNil(t, b)
	assert.Same(t, b, r.Get(ctx, ComponentBridge, ""))
	assert.Same(t, b, r.Get(context.Background(), ComponentBridge, "conn-1"))
	assert.Nil(t, r.Get(ctx, ComponentStorage, ""), "typed nil must not leak")
	assert.Nil(t, r.Get(ctx, ComponentDrive, ""))
	assert.Nil(t, r.Get(ctx, ComponentBridge, "other"))
	assert.Nil(t, r.Storage(ctx))
	assert.Nil(t, r.Drive(ctx))

	info, ok := r.Info("conn-1")
	require.True(t, ok)
	assert.Equal(t, "alice", info.Username)
	assert.Equal(t, "forest_map", info.Module)
	assert.True(t, info.HasBridge)
	assert.True(t, info.Ready)

	require.Len(t, f.headers, 1)
	assert.Equal(t, "sid-alice", f.headers[0].SessionID)
	assert.Equal(t, "token-alice", f.headers[0].Credentials.AccessToken)
}

func TestCreateSession_DefaultModule(t *testing.T) {
	f := &fakeFactory{}
	r := newTestRegistry(t, f, WithSessionConfig(config.SessionConfig{DefaultModule: "mymodule"}))

	require.NoError(t, r.CreateSession(connCtx(t, "conn-1", "alice"), ""))
	assert.Equal(t, []string{"mymodule"}, f.modules)
}

func TestCreateSession_SecondCreateKeepsRecord(t *testing.T) {
	f := &fakeFactory{}
	r := newTestRegistry(t, f)
	ctx := connCtx(t, "conn-1", "alice")

	require.NoError(t, r.CreateSession(ctx, "mod"))
	first := r.Bridge(ctx)
	require.NoError(t, r.CreateSession(ctx, "mod"))

	assert.Len(t, r.ListSessions(), 1)
	assert.Same(t, first, r.Bridge(ctx))
	assert.Equal(t, 1, f.callCount())
}

func TestCreateSession_ConcurrentCreatesCollapse(t *testing.T) {
	f := &fakeFactory{delay: 50 * time.Millisecond}
	r := newTestRegistry(t, f)
	ctx := connCtx(t, "conn-1", "alice")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, r.CreateSession(ctx, "mod"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.callCount())
	assert.Len(t, r.ListSessions(), 1)
}

func TestCreateSession_FactoryError(t *testing.T) {
	boom := errors.New("storage unreachable")
	f := &fakeFactory{err: boom}
	r := newTestRegistry(t, f)

	err := r.CreateSession(connCtx(t, "conn-1", "alice"), "mod")
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, r.ListSessions())
}

func TestCreateSession_TestModeReadsEnvironment(t *testing.T) {
	dir := t.TempDir()
	credPath := filepath.Join(dir, "credentials")
	data, err := json.Marshal(auth.Credentials{AccessToken: "local-token", ProjectID: "local-proj"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(credPath, data, 0o600))
	t.Setenv("SEPAL_USER", "tester")
	t.Setenv("SEPAL_SESSION_ID", "env-sid")
	t.Setenv("SEPAL_HOST", "")

	f := &fakeFactory{}
	r := newTestRegistry(t, f,
		WithSessionConfig(config.SessionConfig{DefaultModule: "m", TestMode: true}),
		WithCredentialsPath(credPath),
	)
	ctx := connCtx(t, "conn-1", "")

	require.NoError(t, r.CreateSession(ctx, ""))
	require.Len(t, f.headers, 1)
	assert.Equal(t, "tester", f.headers[0].Username)
	assert.Equal(t, "env-sid", f.headers[0].SessionID)
	assert.Equal(t, "local-token", f.headers[0].Credentials.AccessToken)
}

func TestCleanup_ClosesAndRemoves(t *testing.T) {
	f := &fakeFactory{}
	r := newTestRegistry(t, f)
	ctx := connCtx(t, "conn-1", "alice")
	require.NoError(t, r.CreateSession(ctx, "mod"))
	b := r.Bridge(ctx)

	assert.True(t, r.Cleanup("conn-1"))
	assert.False(t, r.Cleanup("conn-1"))
	assert.False(t, r.Cleanup("unknown"))

	assert.True(t, b.Closed())
	assert.Nil(t, r.Bridge(ctx))
	_, ok := r.Info("conn-1")
	assert.False(t, ok)

	_, err := b.GetInfoSync(mustConstant(t))
	assert.True(t, gderrors.IsClosed(err))
}

func TestListSessions_OrderAndOverview(t *testing.T) {
	f := &fakeFactory{}
	r := newTestRegistry(t, f)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	r.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	require.NoError(t, r.CreateSession(connCtx(t, "b", "bob"), "mod"))
	require.NoError(t, r.CreateSession(connCtx(t, "a", "alice"), "mod"))

	sessions := r.ListSessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, "b", sessions[0].Identity)
	assert.Equal(t, "a", sessions[1].Identity)

	sessions[0].Username = "mutated"
	info, _ := r.Info("b")
	assert.Equal(t, "bob", info.Username)

	ov := r.Overview()
	assert.Equal(t, 2, ov.Total)
	assert.Equal(t, 2, ov.Ready)

	r.Bridge(connCtx(t, "a", "")).Close()
	assert.Equal(t, 1, r.Overview().Ready)
}

func TestRegistry_PublishesLifecycleEvents(t *testing.T) {
	mb := bus.NewMemoryBus()
	defer mb.Close()
	hub := telemetry.NewHub()
	defer hub.Close()
	events, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	subjects := bus.Subjects{Prefix: "test"}
	received := make(chan *bus.Message, 4)
	_, err := mb.Subscribe(context.Background(), subjects.Sessions(), func(m *bus.Message) { received <- m })
	require.NoError(t, err)

	r := newTestRegistry(t, &fakeFactory{}, WithBus(mb, "test"), WithHub(hub))
	require.NoError(t, r.CreateSession(connCtx(t, "conn-1", "alice"), "mod"))
	r.Cleanup("conn-1")

	for _, want := range []string{subjects.SessionCreated(), subjects.SessionClosed()} {
		select {
		case m := <-received:
			assert.Equal(t, want, m.Subject)
			var ev lifecycleEvent
			require.NoError(t, json.Unmarshal(m.Data, &ev))
			assert.Equal(t, "conn-1", ev.Identity)
			assert.Equal(t, "alice", ev.Username)
		case <-time.After(time.Second):
			t.Fatalf("no %s message", want)
		}
	}

	var kinds []telemetry.EventType
	timeout := time.After(time.Second)
	for len(kinds) < 2 {
		select {
		case ev := <-events:
			if ev.Type == telemetry.EventSessionCreated || ev.Type == telemetry.EventSessionClosed {
				kinds = append(kinds, ev.Type)
			}
		case <-timeout:
			t.Fatalf("hub events = %v", kinds)
		}
	}
	assert.Equal(t, []telemetry.EventType{telemetry.EventSessionCreated, telemetry.EventSessionClosed}, kinds)
}

func TestFallbackBridge(t *testing.T) {
	f := &fakeFactory{}
	r := newTestRegistry(t, f)

	b1, err := r.FallbackBridge()
	require.NoError(t, err)
	b2, err := r.FallbackBridge()
	require.NoError(t, err)
	assert.Same(t, b1, b2)
	assert.Equal(t, 1, f.fallbacks)

	noSession := connCtx(t, "conn-1", "")
	got, err := r.BridgeOrFallback(noSession)
	require.NoError(t, err)
	assert.Same(t, b1, got)

	withSession := connCtx(t, "conn-2", "alice")
	require.NoError(t, r.CreateSession(withSession, "mod"))
	got, err = r.BridgeOrFallback(withSession)
	require.NoError(t, err)
	assert.NotSame(t, b1, got)
}

func TestFallbackBridge_ErrorIsRetried(t *testing.T) {
	f := &fakeFactory{fallbackErr: errors.New("no credentials")}
	r := newTestRegistry(t, f)

	_, err := r.FallbackBridge()
	require.Error(t, err)

	f.mu.Lock()
	f.fallbackErr = nil
	f.mu.Unlock()

	b, err := r.FallbackBridge()
	require.NoError(t, err)
	assert.NotNil(t, b)
	assert.Equal(t, 2, f.fallbacks)
}

func TestRegistry_Close(t *testing.T) {
	f := &fakeFactory{}
	r := NewRegistry(f, WithLogger(observability.Nop()))
	ctx := connCtx(t, "conn-1", "alice")
	require.NoError(t, r.CreateSession(ctx, "mod"))
	b := r.Bridge(ctx)
	fb, err := r.FallbackBridge()
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	assert.True(t, b.Closed())
	assert.True(t, fb.Closed())
	assert.Empty(t, r.ListSessions())

	err = r.CreateSession(connCtx(t, "conn-2", "bob"), "mod")
	assert.True(t, gderrors.IsClosed(err))
	_, err = r.FallbackBridge()
	assert.True(t, gderrors.IsClosed(err))
}

func TestShared_ReturnsSameInstance(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	assert.Same(t, Shared(), Shared())
	assert.NotNil(t, Shared().Hub())
}

func TestNewFromConfig_WiresHubAndTracing(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	cfg := config.DefaultConfig()
	cfg.Telemetry.Tracing = true
	cfg.Telemetry.ServiceName = "geodash-test"
	var spans bytes.Buffer
	r := NewFromConfig(cfg, &spans)

	hub := r.Hub()
	require.NotNil(t, hub)
	events, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	srv := httptest.NewServer(Routes(r))
	resp, err := http.Get(srv.URL + "/events")
	require.NoError(t, err)
	resp.Body.Close()
	srv.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "plain GET reaches the upgrader")

	_, span := observability.StartSpan(context.Background(), "session.wiring")
	span.End()

	require.NoError(t, r.Close())
	assert.Contains(t, spans.String(), "session.wiring")
	assert.Contains(t, spans.String(), "geodash-test")

	_, open := <-events
	assert.False(t, open, "hub is closed with the registry")
}

func TestNewFromConfig_TracingDisabled(t *testing.T) {
	var spans bytes.Buffer
	r := NewFromConfig(config.DefaultConfig(), &spans)
	require.NotNil(t, r.Hub())

	_, span := observability.StartSpan(context.Background(), "untraced")
	span.End()
	require.NoError(t, r.Close())
	assert.Empty(t, spans.String())
}
