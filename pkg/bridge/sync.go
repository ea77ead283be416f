package bridge

import (
	"context"
	"encoding/json"

	"github.com/odvcencio/geodash/pkg/earthengine"
)

// Blocking forms of the remote operations. Each runs on the loop and waits
// for the bridge's default timeout.

func (b *Bridge) GetInfoSync(expr earthengine.Expression) (json.RawMessage, error) {
	return RunBlocking(b, "get_info", 0, func(ctx context.Context) (json.RawMessage, error) {
		return b.GetInfo(ctx, expr)
	})
}

func (b *Bridge) GetMapIDSync(expr earthengine.Expression, opts earthengine.MapTileOptions) (*earthengine.MapID, error) {
	return RunBlocking(b, "get_map_id", 0, func(ctx context.Context) (*earthengine.MapID, error) {
		return b.GetMapID(ctx, expr, opts)
	})
}

func (b *Bridge) GetAssetSync(id string, notExistsOK bool) (*earthengine.Asset, error) {
	return RunBlocking(b, "get_asset", 0, func(ctx context.Context) (*earthengine.Asset, error) {
		return b.GetAsset(ctx, id, notExistsOK)
	})
}

func (b *Bridge) ListAssetsSync(folder string) ([]earthengine.Asset, error) {
	return RunBlocking(b, "list_assets", 0, func(ctx context.Context) ([]earthengine.Asset, error) {
		return b.ListAssets(ctx, folder)
	})
}

func (b *Bridge) AssetsFolderSync() (string, error) {
	return RunBlocking(b, "assets_folder", 0, func(ctx context.Context) (string, error) {
		return b.AssetsFolder(ctx)
	})
}

func (b *Bridge) CreateFolderSync(id string) (*earthengine.Asset, error) {
	return RunBlocking(b, "create_folder", 0, func(ctx context.Context) (*earthengine.Asset, error) {
		return b.CreateFolder(ctx, id)
	})
}

func (b *Bridge) IsRunningSync(name string) (bool, error) {
	return RunBlocking(b, "is_running", 0, func(ctx context.Context) (bool, error) {
		return b.IsRunning(ctx, name)
	})
}

func (b *Bridge) ExportTableToAssetSync(export earthengine.TableExport) (*earthengine.Operation, error) {
	return RunBlocking(b, "export_table_to_asset", 0, func(ctx context.Context) (*earthengine.Operation, error) {
		return b.ExportTableToAsset(ctx, export)
	})
}

func (b *Bridge) ExportImageToAssetSync(export earthengine.ImageExport) (*earthengine.Operation, error) {
	return RunBlocking(b, "export_image_to_asset", 0, func(ctx context.Context) (*earthengine.Operation, error) {
		return b.ExportImageToAsset(ctx, export)
	})
}

func (b *Bridge) ExportImageToDriveSync(export earthengine.DriveExport) (*earthengine.Operation, error) {
	return RunBlocking(b, "export_image_to_drive", 0, func(ctx context.Context) (*earthengine.Operation, error) {
		return b.ExportImageToDrive(ctx, export)
	})
}
