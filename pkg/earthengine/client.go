package earthengine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/odvcencio/geodash/pkg/config"
	"github.com/odvcencio/geodash/pkg/observability"
)

const (
	defaultPageSize = 1000

	baseRetryDelay = 200 * time.Millisecond
	maxRetryDelay  = 10 * time.Second
)

// DefaultTransport returns an http.Transport with tuned connection pool settings.
func DefaultTransport() *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}

// Client is the REST implementation of Session.
type Client struct {
	baseURL     string
	project     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	maxRetries  int
	log         *observability.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the client whose transport carries authenticated requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithProject overrides the configured project.
func WithProject(project string) ClientOption {
	return func(c *Client) {
		if project != "" {
			c.project = project
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l *observability.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient builds a client that authenticates every request with ts.
func NewClient(ts oauth2.TokenSource, cfg config.EarthEngineConfig, opts ...ClientOption) *Client {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	c := &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		project:     cfg.Project,
		rateLimiter: rate.NewLimiter(limit, max(cfg.Burst, 1)),
		maxRetries:  cfg.MaxRetries,
		log:         observability.Default().WithComponent("earthengine"),
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout, Transport: DefaultTransport()},
	}
	for _, opt := range opts {
		opt(c)
	}
	if ts != nil {
		base := c.httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		c.httpClient = &http.Client{
			Timeout:   c.httpClient.Timeout,
			Transport: &oauth2.Transport{Source: ts, Base: base},
		}
	}
	return c
}

// Project returns the project requests are billed to.
func (c *Client) Project() string { return c.project }

func (c *Client) projectPath(suffix string) string {
	return fmt.Sprintf("projects/%s/%s", c.project, suffix)
}

// AssetsFolder returns the root asset folder of the project.
func (c *Client) AssetsFolder() string {
	return c.projectPath("assets/")
}

// assetName expands a short asset id into a full resource name.
func (c *Client) assetName(id string) string {
	id = strings.TrimSuffix(id, "/")
	if strings.HasPrefix(id, "projects/") {
		return id
	}
	return c.projectPath("assets/" + strings.TrimPrefix(id, "/"))
}

func (c *Client) GetInfo(ctx context.Context, expr Expression) (json.RawMessage, error) {
	var out struct {
		Result json.RawMessage `json:"result"`
	}
	body := map[string]any{"expression": expr}
	if err := c.do(ctx, http.MethodPost, c.projectPath("value:compute"), nil, body, &out, true); err != nil {
		return nil, err
	}
	return out.Result, nil
}

func (c *Client) GetMapID(ctx context.Context, expr Expression, opts MapTileOptions) (*MapID, error) {
	format := opts.Format
	if format == "" {
		format = "AUTO_JPEG_PNG"
	}
	body := map[string]any{
		"expression": expr,
		"fileFormat": format,
	}
	if len(opts.Bands) > 0 {
		body["bandIds"] = opts.Bands
	}
	if vis := visualization(opts); len(vis) > 0 {
		body["visualizationOptions"] = vis
	}

	var out struct {
		Name string `json:"name"`
	}
	if err := c.do(ctx, http.MethodPost, c.projectPath("maps"), nil, body, &out, true); err != nil {
		return nil, err
	}
	return &MapID{
		Name:    out.Name,
		TileURL: fmt.Sprintf("%s/%s/tiles/{z}/{x}/{y}", c.baseURL, out.Name),
	}, nil
}

func visualization(opts MapTileOptions) map[string]any {
	vis := map[string]any{}
	if n := max(len(opts.Min), len(opts.Max)); n > 0 {
		ranges := make([]map[string]float64, n)
		for i := range ranges {
			ranges[i] = map[string]float64{"min": pick(opts.Min, i), "max": pick(opts.Max, i)}
		}
		vis["ranges"] = ranges
	}
	if len(opts.Palette) > 0 {
		vis["paletteColors"] = opts.Palette
	}
	if opts.Gamma != 0 {
		vis["gamma"] = map[string]float64{"value": opts.Gamma}
	}
	return vis
}

// pick returns vals[i], repeating the last value for short lists.
func pick(vals []float64, i int) float64 {
	if len(vals) == 0 {
		return 0
	}
	if i < len(vals) {
		return vals[i]
	}
	return vals[len(vals)-1]
}

func (c *Client) GetAsset(ctx context.Context, id string) (*Asset, error) {
	var out Asset
	if err := c.do(ctx, http.MethodGet, c.assetName(id), nil, nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListAssets(ctx context.Context, parent string) ([]Asset, error) {
	var assets []Asset
	pageToken := ""
	for {
		q := url.Values{"pageSize": {fmt.Sprint(defaultPageSize)}}
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		var page struct {
			Assets        []Asset `json:"assets"`
			NextPageToken string  `json:"nextPageToken"`
		}
		if err := c.do(ctx, http.MethodGet, c.assetName(parent)+":listAssets", q, nil, &page, true); err != nil {
			return nil, err
		}
		assets = append(assets, page.Assets...)
		if page.NextPageToken == "" {
			return assets, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *Client) CreateFolder(ctx context.Context, id string) (*Asset, error) {
	name := c.assetName(id)
	parent, assetID, ok := splitAssetName(name)
	if !ok {
		return nil, fmt.Errorf("invalid folder id %q", id)
	}
	var out Asset
	q := url.Values{"assetId": {assetID}}
	if err := c.do(ctx, http.MethodPost, parent, q, map[string]string{"type": AssetFolder}, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// splitAssetName splits projects/p/assets/a/b into (projects/p/assets, a/b).
func splitAssetName(name string) (string, string, bool) {
	const marker = "/assets/"
	i := strings.Index(name, marker)
	if i < 0 || i+len(marker) >= len(name) {
		return "", "", false
	}
	return name[:i+len(marker)-1], name[i+len(marker):], true
}

func (c *Client) GetTaskByName(ctx context.Context, name string) (*Operation, error) {
	var ops []Operation
	pageToken := ""
	for {
		q := url.Values{"pageSize": {fmt.Sprint(defaultPageSize)}}
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		var page struct {
			Operations    []Operation `json:"operations"`
			NextPageToken string      `json:"nextPageToken"`
		}
		if err := c.do(ctx, http.MethodGet, c.projectPath("operations"), q, nil, &page, true); err != nil {
			return nil, err
		}
		for _, op := range page.Operations {
			if op.Metadata.Description == name {
				ops = append(ops, op)
			}
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}
	if len(ops) == 0 {
		return nil, nil
	}
	sort.SliceStable(ops, func(i, j int) bool {
		return ops[i].Metadata.CreateTime.After(ops[j].Metadata.CreateTime)
	})
	return &ops[0], nil
}

func (c *Client) ExportTableToAsset(ctx context.Context, export TableExport) (*Operation, error) {
	body := map[string]any{
		"expression":  export.Expression,
		"description": export.Description,
		"assetExportOptions": map[string]any{
			"earthEngineDestination": map[string]string{"name": c.assetName(export.AssetID)},
		},
	}
	if len(export.Selectors) > 0 {
		body["selectors"] = export.Selectors
	}
	if export.MaxVertices > 0 {
		body["maxVertices"] = export.MaxVertices
	}
	if export.Priority > 0 {
		body["priority"] = export.Priority
	}
	return c.export(ctx, "table:export", body)
}

func (c *Client) ExportImageToAsset(ctx context.Context, export ImageExport) (*Operation, error) {
	body := map[string]any{
		"expression":  export.Expression,
		"description": export.Description,
		"assetExportOptions": map[string]any{
			"earthEngineDestination": map[string]string{"name": c.assetName(export.AssetID)},
		},
	}
	addImageGrid(body, export.Scale, export.MaxPixels, export.Priority)
	return c.export(ctx, "image:export", body)
}

func (c *Client) ExportImageToDrive(ctx context.Context, export DriveExport) (*Operation, error) {
	format := export.FileFormat
	if format == "" {
		format = "GEO_TIFF"
	}
	body := map[string]any{
		"expression":  export.Expression,
		"description": export.Description,
		"fileExportOptions": map[string]any{
			"fileFormat": format,
			"driveDestination": map[string]string{
				"folder":         export.Folder,
				"filenamePrefix": export.FilenamePrefix,
			},
		},
	}
	addImageGrid(body, export.Scale, export.MaxPixels, export.Priority)
	return c.export(ctx, "image:export", body)
}

func addImageGrid(body map[string]any, scale float64, maxPixels int64, priority int) {
	if scale > 0 {
		body["grid"] = map[string]any{
			"affineTransform": map[string]float64{"scaleX": scale, "scaleY": -scale},
		}
	}
	if maxPixels > 0 {
		body["maxPixels"] = fmt.Sprint(maxPixels)
	}
	if priority > 0 {
		body["priority"] = priority
	}
}

func (c *Client) export(ctx context.Context, verb string, body map[string]any) (*Operation, error) {
	var op Operation
	if err := c.do(ctx, http.MethodPost, c.projectPath(verb), nil, body, &op, false); err != nil {
		return nil, err
	}
	return &op, nil
}

// do sends one API call. Calls marked retry are retried with backoff on
// 429, 5xx and transport errors.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, retry bool) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	endpoint := c.baseURL + "/" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	attempts := 1
	if retry {
		attempts += c.maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(attempt - 1)):
			}
		}

		if c.rateLimiter != nil {
			if err := c.rateLimiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limit wait: %w", err)
			}
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			err = decode(resp, out)
			resp.Body.Close()
			return err
		}

		apiErr := parseError(resp)
		resp.Body.Close()
		if !apiErr.Retryable {
			return apiErr
		}
		lastErr = apiErr
		c.log.Debug("retrying earthengine request",
			slog.String("path", path),
			slog.Int("status", apiErr.StatusCode),
			slog.Int("attempt", attempt+1),
		)
	}
	return lastErr
}

func decode(resp *http.Response, out any) error {
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseError(resp *http.Response) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
		Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &envelope) == nil && envelope.Error.Message != "" {
		apiErr.Message = envelope.Error.Message
		apiErr.Status = envelope.Error.Status
	}
	return apiErr
}

// backoff returns an exponential delay with jitter.
func backoff(attempt int) time.Duration {
	delay := float64(baseRetryDelay)
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	if delay > float64(maxRetryDelay) {
		delay = float64(maxRetryDelay)
	}
	jitter := rand.Float64() * delay * 0.5
	return time.Duration(delay*0.75 + jitter)
}

func asAPIError(err error, target **APIError) bool {
	return errors.As(err, target)
}
