package earthengine

import (
	"encoding/json"
	"fmt"
	"time"
)

// Expression is a serialized computation graph. Result names the node in
// Values whose value is requested.
type Expression struct {
	Result string                     `json:"result"`
	Values map[string]json.RawMessage `json:"values"`
}

// ConstantExpression wraps a literal value as a single-node graph.
func ConstantExpression(v any) (Expression, error) {
	data, err := json.Marshal(map[string]any{"constantValue": v})
	if err != nil {
		return Expression{}, err
	}
	return Expression{Result: "0", Values: map[string]json.RawMessage{"0": data}}, nil
}

// MapTileOptions are the visualization parameters for a tile layer.
type MapTileOptions struct {
	Bands   []string  `json:"bands,omitempty"`
	Min     []float64 `json:"min,omitempty"`
	Max     []float64 `json:"max,omitempty"`
	Palette []string  `json:"palette,omitempty"`
	Gamma   float64   `json:"gamma,omitempty"`
	Format  string    `json:"format,omitempty"`
}

// MapID identifies a rendered tile layer.
type MapID struct {
	Name    string `json:"name"`
	TileURL string `json:"tileUrl"`
}

// Asset types returned by the API.
const (
	AssetFolder          = "FOLDER"
	AssetImage           = "IMAGE"
	AssetImageCollection = "IMAGE_COLLECTION"
	AssetTable           = "TABLE"
)

// Asset is a stored object.
type Asset struct {
	Type       string    `json:"type"`
	Name       string    `json:"name"`
	ID         string    `json:"id"`
	UpdateTime time.Time `json:"updateTime,omitempty"`
	SizeBytes  string    `json:"sizeBytes,omitempty"`
}

// IsContainer reports whether the asset can hold children.
func (a Asset) IsContainer() bool {
	return a.Type == AssetFolder || a.Type == AssetImageCollection
}

// Operation states.
const (
	StatePending   = "PENDING"
	StateReady     = "READY"
	StateRunning   = "RUNNING"
	StateSucceeded = "SUCCEEDED"
	StateCancelled = "CANCELLED"
	StateFailed    = "FAILED"
)

// OperationMetadata carries the state of a long-running job.
type OperationMetadata struct {
	State       string    `json:"state"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	Priority    int       `json:"priority,omitempty"`
	CreateTime  time.Time `json:"createTime,omitempty"`
	UpdateTime  time.Time `json:"updateTime,omitempty"`
	Progress    float64   `json:"progress,omitempty"`
}

// Status is an RPC error attached to a failed operation.
type Status struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Operation is a long-running remote job.
type Operation struct {
	Name     string            `json:"name"`
	Done     bool              `json:"done"`
	Metadata OperationMetadata `json:"metadata"`
	Error    *Status           `json:"error,omitempty"`
}

// Running reports whether the operation is queued or executing.
func (o *Operation) Running() bool {
	if o == nil {
		return false
	}
	return o.Metadata.State == StateRunning || o.Metadata.State == StateReady
}

// TableExport exports a feature collection into an asset.
type TableExport struct {
	Expression  Expression
	AssetID     string
	Description string
	Selectors   []string
	MaxVertices int
	Priority    int
}

// ImageExport exports an image into an asset.
type ImageExport struct {
	Expression  Expression
	AssetID     string
	Description string
	Scale       float64
	MaxPixels   int64
	Priority    int
}

// DriveExport exports an image into the user's drive.
type DriveExport struct {
	Expression     Expression
	Folder         string
	FilenamePrefix string
	Description    string
	FileFormat     string
	Scale          float64
	MaxPixels      int64
	Priority       int
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
	Retryable  bool
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("HTTP %d: %s (status: %s)", e.StatusCode, e.Message, e.Status)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return asAPIError(err, &apiErr) && apiErr.StatusCode == 404
}
