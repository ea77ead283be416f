package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/odvcencio/geodash/pkg/config"
	"github.com/odvcencio/geodash/pkg/earthengine"
	gderrors "github.com/odvcencio/geodash/pkg/errors"
	"github.com/odvcencio/geodash/pkg/observability"
	"github.com/odvcencio/geodash/pkg/task"
)

func newTestBridge(t *testing.T, opts ...Option) *Bridge {
	t.Helper()
	opts = append([]Option{
		WithLogger(observability.Nop()),
		WithConfig(config.BridgeConfig{CloseTimeout: 2 * time.Second}),
	}, opts...)
	b := New(opts...)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func expr(t *testing.T) earthengine.Expression {
	t.Helper()
	e, err := earthengine.ConstantExpression(1)
	require.NoError(t, err)
	return e
}

func TestRunBlocking_RoundTrip(t *testing.T) {
	b := newTestBridge(t)

	got, err := RunBlocking(b, "answer", time.Second, func(ctx context.Context) (int, error) {
		time.Sleep(50 * time.Millisecond)
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestRunBlocking_ReturnsSameError(t *testing.T) {
	b := newTestBridge(t)
	sentinel := errors.New("remote exploded")

	_, err := RunBlocking(b, "boom", time.Second, func(ctx context.Context) (string, error) {
		return "", sentinel
	})
	assert.Equal(t, sentinel, err)
	assert.ErrorIs(t, err, sentinel)
}

func TestRunBlocking_TimeoutCancelsExecution(t *testing.T) {
	b := newTestBridge(t)
	cancelled := make(chan struct{})

	start := time.Now()
	_, err := RunBlocking(b, "slow_op", 100*time.Millisecond, func(ctx context.Context) (int, error) {
		select {
		case <-ctx.Done():
			close(cancelled)
			return 0, ctx.Err()
		case <-time.After(5 * time.Second):
			return 1, nil
		}
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, gderrors.IsTimeout(err))
	assert.Contains(t, err.Error(), "slow_op")
	assert.Less(t, elapsed, time.Second)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("timed-out operation was not cancelled")
	}
}

func TestRunBlocking_DefaultTimeout(t *testing.T) {
	b := newTestBridge(t, WithConfig(config.BridgeConfig{DefaultTimeout: 50 * time.Millisecond}))
	assert.Equal(t, 50*time.Millisecond, b.DefaultTimeout())

	_, err := RunBlocking(b, "wait", 0, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.True(t, gderrors.IsTimeout(err))
}

func TestRunBlocking_PanicBecomesError(t *testing.T) {
	b := newTestBridge(t)

	_, err := RunBlocking(b, "panicky", time.Second, func(ctx context.Context) (int, error) {
		panic("nope")
	})
	require.Error(t, err)
	assert.True(t, gderrors.IsCode(err, gderrors.ErrCodeInternal))
}

func TestBridge_SessionBackend(t *testing.T) {
	ctrl := gomock.NewController(t)
	sess := earthengine.NewMockSession(ctrl)
	b := newTestBridge(t, WithSession(sess))

	e := expr(t)
	sess.EXPECT().GetInfo(gomock.Any(), e).Return(json.RawMessage(`{"area": 12}`), nil)

	got, err := b.GetInfoSync(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"area": 12}`, string(got))
}

func TestBridge_LegacyBackendIsOffloaded(t *testing.T) {
	ctrl := gomock.NewController(t)
	legacy := earthengine.NewMockLegacy(ctrl)
	b := newTestBridge(t, WithLegacy(legacy))

	legacy.EXPECT().GetMapID(gomock.Any(), gomock.Any()).Return(&earthengine.MapID{Name: "maps/1"}, nil)

	id, err := b.GetMapIDSync(expr(t), earthengine.MapTileOptions{Bands: []string{"B1"}})
	require.NoError(t, err)
	assert.Equal(t, "maps/1", id.Name)
}

func TestBridge_NoBackend(t *testing.T) {
	b := newTestBridge(t)

	_, err := b.GetInfo(context.Background(), expr(t))
	assert.True(t, gderrors.IsCode(err, gderrors.ErrCodeConfigInvalid))
}

func TestBridge_RemoteErrorIsNotWrapped(t *testing.T) {
	ctrl := gomock.NewController(t)
	sess := earthengine.NewMockSession(ctrl)
	b := newTestBridge(t, WithSession(sess))

	apiErr := &earthengine.APIError{StatusCode: 400, Message: "Invalid expression"}
	sess.EXPECT().GetInfo(gomock.Any(), gomock.Any()).Return(nil, apiErr)

	_, err := b.GetInfoSync(expr(t))
	var got *earthengine.APIError
	require.ErrorAs(t, err, &got)
	assert.Same(t, apiErr, got)
	assert.Equal(t, apiErr.Error(), err.Error())
}

func TestBridge_GetAssetNotExistsOK(t *testing.T) {
	ctrl := gomock.NewController(t)
	sess := earthengine.NewMockSession(ctrl)
	b := newTestBridge(t, WithSession(sess))

	notFound := &earthengine.APIError{StatusCode: 404, Message: "missing"}
	sess.EXPECT().GetAsset(gomock.Any(), "gone").Return(nil, notFound).Times(2)

	asset, err := b.GetAssetSync("gone", true)
	assert.NoError(t, err)
	assert.Nil(t, asset)

	_, err = b.GetAssetSync("gone", false)
	assert.True(t, earthengine.IsNotFound(err))
}

func TestBridge_ListAssetsRecurses(t *testing.T) {
	ctrl := gomock.NewController(t)
	sess := earthengine.NewMockSession(ctrl)
	b := newTestBridge(t, WithSession(sess))

	root := "projects/p/assets/"
	sess.EXPECT().AssetsFolder().Return(root)
	sess.EXPECT().ListAssets(gomock.Any(), root).Return([]earthengine.Asset{
		{Type: earthengine.AssetFolder, Name: "projects/p/assets/a"},
		{Type: earthengine.AssetImage, Name: "projects/p/assets/img"},
	}, nil)
	sess.EXPECT().ListAssets(gomock.Any(), "projects/p/assets/a").Return([]earthengine.Asset{
		{Type: earthengine.AssetFolder, Name: "projects/p/assets/a/b"},
		{Type: earthengine.AssetTable, Name: "projects/p/assets/a/t"},
	}, nil)
	sess.EXPECT().ListAssets(gomock.Any(), "projects/p/assets/a/b").Return(nil, nil)

	assets, err := b.ListAssetsSync("")
	require.NoError(t, err)

	names := make([]string, 0, len(assets))
	for _, a := range assets {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{
		"projects/p/assets/a",
		"projects/p/assets/a/b",
		"projects/p/assets/a/t",
		"projects/p/assets/img",
	}, names)
}

func TestBridge_ListAssetsStopsOnError(t *testing.T) {
	ctrl := gomock.NewController(t)
	legacy := earthengine.NewMockLegacy(ctrl)
	b := newTestBridge(t, WithLegacy(legacy))

	boom := errors.New("denied")
	legacy.EXPECT().ListAssets("projects/p/assets/x").Return(nil, boom)

	_, err := b.ListAssets(context.Background(), "projects/p/assets/x")
	assert.ErrorIs(t, err, boom)
}

func TestBridge_IsRunning(t *testing.T) {
	ctrl := gomock.NewController(t)
	sess := earthengine.NewMockSession(ctrl)
	b := newTestBridge(t, WithSession(sess))

	sess.EXPECT().GetTaskByName(gomock.Any(), "export_a").Return(&earthengine.Operation{
		Metadata: earthengine.OperationMetadata{State: earthengine.StateReady},
	}, nil)
	sess.EXPECT().GetTaskByName(gomock.Any(), "export_b").Return(&earthengine.Operation{
		Metadata: earthengine.OperationMetadata{State: earthengine.StateSucceeded},
	}, nil)
	sess.EXPECT().GetTaskByName(gomock.Any(), "unknown").Return(nil, nil)

	running, err := b.IsRunningSync("export_a")
	require.NoError(t, err)
	assert.True(t, running)

	running, err = b.IsRunningSync("export_b")
	require.NoError(t, err)
	assert.False(t, running)

	running, err = b.IsRunningSync("unknown")
	require.NoError(t, err)
	assert.False(t, running)
}

func TestBridge_Exports(t *testing.T) {
	ctrl := gomock.NewController(t)
	sess := earthengine.NewMockSession(ctrl)
	b := newTestBridge(t, WithSession(sess))

	op := &earthengine.Operation{Name: "operations/1"}
	sess.EXPECT().ExportTableToAsset(gomock.Any(), gomock.Any()).Return(op, nil)
	sess.EXPECT().ExportImageToAsset(gomock.Any(), gomock.Any()).Return(op, nil)
	sess.EXPECT().ExportImageToDrive(gomock.Any(), gomock.Any()).Return(op, nil)
	sess.EXPECT().CreateFolder(gomock.Any(), "results").Return(&earthengine.Asset{Type: earthengine.AssetFolder}, nil)

	got, err := b.ExportTableToAssetSync(earthengine.TableExport{AssetID: "t"})
	require.NoError(t, err)
	assert.Same(t, op, got)

	got, err = b.ExportImageToAssetSync(earthengine.ImageExport{AssetID: "i"})
	require.NoError(t, err)
	assert.Same(t, op, got)

	got, err = b.ExportImageToDriveSync(earthengine.DriveExport{Folder: "f"})
	require.NoError(t, err)
	assert.Same(t, op, got)

	folder, err := b.CreateFolderSync("results")
	require.NoError(t, err)
	assert.True(t, folder.IsContainer())
}

func TestBridge_CloseIsIdempotent(t *testing.T) {
	b := New(WithLogger(observability.Nop()))

	assert.NoError(t, b.Close())
	assert.NoError(t, b.Close())
	assert.True(t, b.Closed())
	assert.True(t, b.Loop().Closed())
}

func TestBridge_OperationsAfterCloseFailClosed(t *testing.T) {
	ctrl := gomock.NewController(t)
	sess := earthengine.NewMockSession(ctrl) // no calls expected
	b := New(WithSession(sess), WithLogger(observability.Nop()))
	require.NoError(t, b.Close())

	ctx := context.Background()
	e := expr(t)
	checks := map[string]func() error{
		"GetInfo":                func() error { _, err := b.GetInfo(ctx, e); return err },
		"GetInfoSync":            func() error { _, err := b.GetInfoSync(e); return err },
		"GetMapID":               func() error { _, err := b.GetMapID(ctx, e, earthengine.MapTileOptions{}); return err },
		"GetMapIDSync":           func() error { _, err := b.GetMapIDSync(e, earthengine.MapTileOptions{}); return err },
		"GetAsset":               func() error { _, err := b.GetAsset(ctx, "a", true); return err },
		"GetAssetSync":           func() error { _, err := b.GetAssetSync("a", false); return err },
		"ListAssets":             func() error { _, err := b.ListAssets(ctx, ""); return err },
		"ListAssetsSync":         func() error { _, err := b.ListAssetsSync(""); return err },
		"AssetsFolder":           func() error { _, err := b.AssetsFolder(ctx); return err },
		"AssetsFolderSync":       func() error { _, err := b.AssetsFolderSync(); return err },
		"CreateFolder":           func() error { _, err := b.CreateFolder(ctx, "f"); return err },
		"CreateFolderSync":       func() error { _, err := b.CreateFolderSync("f"); return err },
		"IsRunning":              func() error { _, err := b.IsRunning(ctx, "t"); return err },
		"IsRunningSync":          func() error { _, err := b.IsRunningSync("t"); return err },
		"ExportTableToAsset":     func() error { _, err := b.ExportTableToAsset(ctx, earthengine.TableExport{}); return err },
		"ExportTableToAssetSync": func() error { _, err := b.ExportTableToAssetSync(earthengine.TableExport{}); return err },
		"ExportImageToAsset":     func() error { _, err := b.ExportImageToAsset(ctx, earthengine.ImageExport{}); return err },
		"ExportImageToAssetSync": func() error { _, err := b.ExportImageToAssetSync(earthengine.ImageExport{}); return err },
		"ExportImageToDrive":     func() error { _, err := b.ExportImageToDrive(ctx, earthengine.DriveExport{}); return err },
		"ExportImageToDriveSync": func() error { _, err := b.ExportImageToDriveSync(earthengine.DriveExport{}); return err },
		"RunBlocking": func() error {
			_, err := RunBlocking(b, "custom", time.Second, func(context.Context) (int, error) { return 1, nil })
			return err
		},
	}
	for name, fn := range checks {
		t.Run(name, func(t *testing.T) {
			err := fn()
			require.Error(t, err)
			assert.True(t, gderrors.IsClosed(err), "got %v", err)
		})
	}
}

func TestCreateTask_RunsOnBridgeLoop(t *testing.T) {
	b := newTestBridge(t)

	var done atomic.Int64
	entered := make(chan struct{})
	release := make(chan struct{})
	tk := CreateTask(b, "compute", func(ctx context.Context, p int, r task.Reporter) (int, error) {
		close(entered)
		<-release
		r.SetProgress(1)
		return p, nil
	}, task.Options[int]{OnDone: func(v int) { done.Store(int64(v)) }})

	h, err := tk.Start(42)
	require.NoError(t, err)
	<-entered
	assert.True(t, tk.IsActive())
	assert.Equal(t, task.Running, tk.State())
	assert.False(t, tk.IsFinished())

	close(release)
	require.NoError(t, tk.Wait(context.Background()))
	<-h.Done()

	assert.Equal(t, task.Finished, tk.State())
	assert.Equal(t, 42, tk.Result())
	assert.Equal(t, int64(42), done.Load())
}

func TestCreateTask_CloseCancelsRunningTask(t *testing.T) {
	b := New(WithLogger(observability.Nop()), WithConfig(config.BridgeConfig{CloseTimeout: 2 * time.Second}))

	running := make(chan struct{})
	var finally atomic.Int32
	tk := CreateTask(b, "long", func(ctx context.Context, p struct{}, r task.Reporter) (struct{}, error) {
		close(running)
		<-ctx.Done()
		return struct{}{}, ctx.Err()
	}, task.Options[struct{}]{OnFinally: func() { finally.Add(1) }})

	_, err := tk.Start(struct{}{})
	require.NoError(t, err)
	<-running

	require.NoError(t, b.Close())

	assert.Equal(t, task.Cancelled, tk.State())
	assert.Equal(t, int32(1), finally.Load())

	_, err = tk.Start(struct{}{})
	assert.True(t, gderrors.IsClosed(err))
}
