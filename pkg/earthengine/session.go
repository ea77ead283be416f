// Package earthengine talks to the remote geospatial compute backend.
package earthengine

import (
	"context"
	"encoding/json"
)

//go:generate mockgen -package=earthengine -destination=mock_earthengine.go github.com/odvcencio/geodash/pkg/earthengine Session,Legacy

// Session is a per-user, context-aware client.
type Session interface {
	GetInfo(ctx context.Context, expr Expression) (json.RawMessage, error)
	GetMapID(ctx context.Context, expr Expression, opts MapTileOptions) (*MapID, error)
	GetAsset(ctx context.Context, id string) (*Asset, error)
	// ListAssets returns the direct children of parent.
	ListAssets(ctx context.Context, parent string) ([]Asset, error)
	CreateFolder(ctx context.Context, id string) (*Asset, error)
	// AssetsFolder is the root folder of the user's project.
	AssetsFolder() string
	// GetTaskByName returns the most recent operation described by name, or nil.
	GetTaskByName(ctx context.Context, name string) (*Operation, error)
	ExportTableToAsset(ctx context.Context, export TableExport) (*Operation, error)
	ExportImageToAsset(ctx context.Context, export ImageExport) (*Operation, error)
	ExportImageToDrive(ctx context.Context, export DriveExport) (*Operation, error)
}

// Legacy is the process-wide blocking client authenticated with local credentials.
type Legacy interface {
	GetInfo(expr Expression) (json.RawMessage, error)
	GetMapID(expr Expression, opts MapTileOptions) (*MapID, error)
	GetAsset(id string) (*Asset, error)
	ListAssets(parent string) ([]Asset, error)
	CreateFolder(id string) (*Asset, error)
	AssetsFolder() string
	GetTaskByName(name string) (*Operation, error)
	ExportTableToAsset(export TableExport) (*Operation, error)
	ExportImageToAsset(export ImageExport) (*Operation, error)
	ExportImageToDrive(export DriveExport) (*Operation, error)
}

// legacy adapts a Session to the blocking interface.
type legacy struct {
	s Session
}

// NewLegacy wraps s so calls block without a caller context.
func NewLegacy(s Session) Legacy {
	return legacy{s: s}
}

func (l legacy) GetInfo(expr Expression) (json.RawMessage, error) {
	return l.s.GetInfo(context.Background(), expr)
}

func (l legacy) GetMapID(expr Expression, opts MapTileOptions) (*MapID, error) {
	return l.s.GetMapID(context.Background(), expr, opts)
}

func (l legacy) GetAsset(id string) (*Asset, error) {
	return l.s.GetAsset(context.Background(), id)
}

func (l legacy) ListAssets(parent string) ([]Asset, error) {
	return l.s.ListAssets(context.Background(), parent)
}

func (l legacy) CreateFolder(id string) (*Asset, error) {
	return l.s.CreateFolder(context.Background(), id)
}

func (l legacy) AssetsFolder() string {
	return l.s.AssetsFolder()
}

func (l legacy) GetTaskByName(name string) (*Operation, error) {
	return l.s.GetTaskByName(context.Background(), name)
}

func (l legacy) ExportTableToAsset(export TableExport) (*Operation, error) {
	return l.s.ExportTableToAsset(context.Background(), export)
}

func (l legacy) ExportImageToAsset(export ImageExport) (*Operation, error) {
	return l.s.ExportImageToAsset(context.Background(), export)
}

func (l legacy) ExportImageToDrive(export DriveExport) (*Operation, error) {
	return l.s.ExportImageToDrive(context.Background(), export)
}
