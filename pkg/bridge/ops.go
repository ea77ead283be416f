package bridge

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/geodash/pkg/earthengine"
	gderrors "github.com/odvcencio/geodash/pkg/errors"
	"github.com/odvcencio/geodash/pkg/observability"
)

// call runs one remote operation on whichever backend the bridge has.
func call[T any](
	ctx context.Context,
	b *Bridge,
	op string,
	viaSession func(context.Context, earthengine.Session) (T, error),
	viaLegacy func(context.Context, earthengine.Legacy) (T, error),
) (T, error) {
	var zero T
	if b.Closed() {
		return zero, gderrors.Closed("bridge", op)
	}

	backend := "none"
	switch {
	case b.session != nil:
		backend = "session"
	case b.legacy != nil:
		backend = "legacy"
	}

	ctx, span := observability.StartSpan(ctx, "bridge."+op, trace.WithAttributes(
		observability.AttrOperation.String(op),
		observability.AttrBackend.String(backend),
		observability.AttrSessionID.String(b.sessionID),
	))
	start := time.Now()

	var res T
	var err error
	switch backend {
	case "session":
		res, err = viaSession(ctx, b.session)
	case "legacy":
		res, err = offload(ctx, b, func() (T, error) { return viaLegacy(ctx, b.legacy) })
	default:
		err = gderrors.New(gderrors.ErrCodeConfigInvalid, "bridge has no earthengine backend").
			WithContext("operation", op)
	}

	outcome := "ok"
	switch {
	case err == nil:
	case ctx.Err() != nil:
		outcome = "cancelled"
	default:
		outcome = "error"
		b.log.OperationFailed(op, err)
	}
	observability.RecordOperation(op, outcome, time.Since(start))
	observability.EndSpan(span, err)
	return res, err
}

// GetInfo evaluates expr and returns its JSON value.
func (b *Bridge) GetInfo(ctx context.Context, expr earthengine.Expression) (json.RawMessage, error) {
	return call(ctx, b, "get_info",
		func(ctx context.Context, s earthengine.Session) (json.RawMessage, error) {
			return s.GetInfo(ctx, expr)
		},
		func(_ context.Context, l earthengine.Legacy) (json.RawMessage, error) {
			return l.GetInfo(expr)
		})
}

// GetMapID renders expr as a tile layer.
func (b *Bridge) GetMapID(ctx context.Context, expr earthengine.Expression, opts earthengine.MapTileOptions) (*earthengine.MapID, error) {
	return call(ctx, b, "get_map_id",
		func(ctx context.Context, s earthengine.Session) (*earthengine.MapID, error) {
			return s.GetMapID(ctx, expr, opts)
		},
		func(_ context.Context, l earthengine.Legacy) (*earthengine.MapID, error) {
			return l.GetMapID(expr, opts)
		})
}

// GetAsset fetches asset metadata. With notExistsOK a missing asset yields
// (nil, nil) instead of an error.
func (b *Bridge) GetAsset(ctx context.Context, id string, notExistsOK bool) (*earthengine.Asset, error) {
	asset, err := call(ctx, b, "get_asset",
		func(ctx context.Context, s earthengine.Session) (*earthengine.Asset, error) {
			return s.GetAsset(ctx, id)
		},
		func(_ context.Context, l earthengine.Legacy) (*earthengine.Asset, error) {
			return l.GetAsset(id)
		})
	if err != nil && notExistsOK && earthengine.IsNotFound(err) {
		return nil, nil
	}
	return asset, err
}

// ListAssets returns every asset below folder, descending into sub-folders.
// An empty folder means the user's root asset folder.
func (b *Bridge) ListAssets(ctx context.Context, folder string) ([]earthengine.Asset, error) {
	limit := b.cfg.ListConcurrency
	return call(ctx, b, "list_assets",
		func(ctx context.Context, s earthengine.Session) ([]earthengine.Asset, error) {
			root := folder
			if root == "" {
				root = s.AssetsFolder()
			}
			return walkAssets(ctx, root, limit, s.ListAssets)
		},
		func(ctx context.Context, l earthengine.Legacy) ([]earthengine.Asset, error) {
			root := folder
			if root == "" {
				root = l.AssetsFolder()
			}
			return walkAssets(ctx, root, limit, func(_ context.Context, parent string) ([]earthengine.Asset, error) {
				return l.ListAssets(parent)
			})
		})
}

// walkAssets lists root breadth-first, fanning out over each level's folders.
func walkAssets(ctx context.Context, root string, limit int, list func(context.Context, string) ([]earthengine.Asset, error)) ([]earthengine.Asset, error) {
	var (
		mu  sync.Mutex
		all []earthengine.Asset
	)
	level := []string{root}
	for len(level) > 0 {
		var next []string
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(max(limit, 1))
		for _, parent := range level {
			g.Go(func() error {
				children, err := list(gctx, parent)
				if err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				all = append(all, children...)
				for _, a := range children {
					if a.Type == earthengine.AssetFolder {
						next = append(next, a.Name)
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		level = next
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all, nil
}

// AssetsFolder returns the user's root asset folder.
func (b *Bridge) AssetsFolder(ctx context.Context) (string, error) {
	return call(ctx, b, "assets_folder",
		func(_ context.Context, s earthengine.Session) (string, error) {
			return s.AssetsFolder(), nil
		},
		func(_ context.Context, l earthengine.Legacy) (string, error) {
			return l.AssetsFolder(), nil
		})
}

// CreateFolder creates a folder asset.
func (b *Bridge) CreateFolder(ctx context.Context, id string) (*earthengine.Asset, error) {
	return call(ctx, b, "create_folder",
		func(ctx context.Context, s earthengine.Session) (*earthengine.Asset, error) {
			return s.CreateFolder(ctx, id)
		},
		func(_ context.Context, l earthengine.Legacy) (*earthengine.Asset, error) {
			return l.CreateFolder(id)
		})
}

// IsRunning reports whether the export described by name is queued or running.
func (b *Bridge) IsRunning(ctx context.Context, name string) (bool, error) {
	op, err := call(ctx, b, "is_running",
		func(ctx context.Context, s earthengine.Session) (*earthengine.Operation, error) {
			return s.GetTaskByName(ctx, name)
		},
		func(_ context.Context, l earthengine.Legacy) (*earthengine.Operation, error) {
			return l.GetTaskByName(name)
		})
	if err != nil {
		return false, err
	}
	return op.Running(), nil
}

// ExportTableToAsset starts a table export.
func (b *Bridge) ExportTableToAsset(ctx context.Context, export earthengine.TableExport) (*earthengine.Operation, error) {
	return call(ctx, b, "export_table_to_asset",
		func(ctx context.Context, s earthengine.Session) (*earthengine.Operation, error) {
			return s.ExportTableToAsset(ctx, export)
		},
		func(_ context.Context, l earthengine.Legacy) (*earthengine.Operation, error) {
			return l.ExportTableToAsset(export)
		})
}

// ExportImageToAsset starts an image export into an asset.
func (b *Bridge) ExportImageToAsset(ctx context.Context, export earthengine.ImageExport) (*earthengine.Operation, error) {
	return call(ctx, b, "export_image_to_asset",
		func(ctx context.Context, s earthengine.Session) (*earthengine.Operation, error) {
			return s.ExportImageToAsset(ctx, export)
		},
		func(_ context.Context, l earthengine.Legacy) (*earthengine.Operation, error) {
			return l.ExportImageToAsset(export)
		})
}

// ExportImageToDrive starts an image export into the user's drive.
func (b *Bridge) ExportImageToDrive(ctx context.Context, export earthengine.DriveExport) (*earthengine.Operation, error) {
	return call(ctx, b, "export_image_to_drive",
		func(ctx context.Context, s earthengine.Session) (*earthengine.Operation, error) {
			return s.ExportImageToDrive(ctx, export)
		},
		func(_ context.Context, l earthengine.Legacy) (*earthengine.Operation, error) {
			return l.ExportImageToDrive(export)
		})
}
