// Package sepal is a client for the SEPAL user-files API.
package sepal

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"golang.org/x/time/rate"

	"github.com/odvcencio/geodash/pkg/auth"
	"github.com/odvcencio/geodash/pkg/config"
	gderrors "github.com/odvcencio/geodash/pkg/errors"
	"github.com/odvcencio/geodash/pkg/observability"
)

const resultsDir = "module_results"

// FileEntry is one item of a folder listing.
type FileEntry struct {
	Name         string `json:"name"`
	IsDirectory  bool   `json:"isDirectory"`
	Size         int64  `json:"size,omitempty"`
	LastModified int64  `json:"lastModified,omitempty"`
}

// Listing is the content of a remote folder.
type Listing struct {
	Path  string      `json:"path"`
	Files []FileEntry `json:"files"`
}

// Client talks to the user-files API with a session cookie.
type Client struct {
	baseURL     string
	basePath    string
	sessionID   string
	module      string
	resultsPath string
	httpClient  *http.Client
	limiter     *rate.Limiter
	log         *observability.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL replaces the https://<host>/api/user-files endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l *observability.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient creates the module results folder and returns a ready client.
func NewClient(ctx context.Context, sessionID, module string, cfg config.SepalConfig, opts ...Option) (*Client, error) {
	if module == "" {
		return nil, gderrors.New(gderrors.ErrCodeInvalidInput, "module name is required")
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.IsInsecureHost() {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // development hosts only
	}

	basePath := cfg.BaseRemotePath
	if basePath == "" {
		basePath = config.DefaultBaseRemotePath
	}

	c := &Client{
		basePath:   basePath,
		sessionID:  sessionID,
		module:     module,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout, Transport: transport},
		limiter:    rate.NewLimiter(rate.Limit(20), 20),
		log:        observability.Default().WithComponent("sepal"),
	}
	if cfg.Host != "" {
		c.baseURL = fmt.Sprintf("https://%s/api/user-files", cfg.Host)
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.baseURL == "" {
		return nil, gderrors.New(gderrors.ErrCodeConfigInvalid, "sepal host is not configured")
	}

	results := path.Join(c.basePath, resultsDir, module)
	if err := c.CreateFolder(ctx, results, true); err != nil {
		return nil, err
	}
	c.resultsPath = results

	c.log.Debug("sepal client initialized", slog.String("results_path", results))
	return c, nil
}

// ResultsPath is the module's results folder.
func (c *Client) ResultsPath() string { return c.resultsPath }

// CreateFolder creates dir on the remote home.
func (c *Client) CreateFolder(ctx context.Context, dir string, recursive bool) error {
	q := url.Values{
		"path":      {c.SanitizePath(dir)},
		"recursive": {fmt.Sprint(recursive)},
	}
	return c.call(ctx, http.MethodPost, "createFolder/", q, nil, nil)
}

// ListFiles lists folder, optionally keeping only the given extensions.
func (c *Client) ListFiles(ctx context.Context, folder string, extensions ...string) (*Listing, error) {
	if folder == "" {
		folder = "/"
	}
	q := url.Values{
		"path":       {folder},
		"extensions": {strings.Join(extensions, ",")},
	}
	var out Listing
	if err := c.call(ctx, http.MethodGet, "listFiles/", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetFile downloads filePath.
func (c *Client) GetFile(ctx context.Context, filePath string) ([]byte, error) {
	var buf strings.Builder
	q := url.Values{"path": {c.SanitizePath(filePath)}}
	if err := c.call(ctx, http.MethodGet, "download/", q, nil, &buf); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}

// SetFile uploads content to filePath.
func (c *Client) SetFile(ctx context.Context, filePath string, content []byte) error {
	q := url.Values{"path": {c.SanitizePath(filePath)}}
	form := url.Values{"file": {string(content)}}
	return c.call(ctx, http.MethodPost, "setFile/", q, form, nil)
}

// RemoteDir creates folder under the results path and returns its path.
func (c *Client) RemoteDir(ctx context.Context, folder string, parents bool) (string, error) {
	dir := path.Join(c.resultsPath, folder)
	if err := c.CreateFolder(ctx, dir, parents); err != nil {
		return "", err
	}
	return dir, nil
}

// SanitizePath makes p relative to the remote home. Paths outside the home
// are kept as is, without surrounding slashes.
func (c *Client) SanitizePath(p string) string {
	clean := path.Clean(p)
	base := path.Clean(c.basePath)
	if clean == base || clean == "." {
		return ""
	}
	if rel, ok := strings.CutPrefix(clean, base+"/"); ok {
		return rel
	}
	return strings.Trim(clean, "/")
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// call sends one request. out may be a *strings.Builder for raw bodies or
// any JSON target.
func (c *Client) call(ctx context.Context, method, endpoint string, query, form url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	u := c.baseURL + "/" + strings.TrimPrefix(endpoint, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: c.sessionID})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gderrors.Wrap(err, gderrors.ErrCodeRemote, "user-files request failed").
			WithContext("endpoint", endpoint).
			WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		code := gderrors.ErrCodeRemote
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			code = gderrors.ErrCodeAuth
		case http.StatusNotFound:
			code = gderrors.ErrCodeNotFound
		}
		return gderrors.Newf(code, "user-files %s: status %d", endpoint, resp.StatusCode).
			WithContext("body", strings.TrimSpace(string(msg))).
			WithRetryable(resp.StatusCode >= 500)
	}

	switch dst := out.(type) {
	case nil:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case *strings.Builder:
		_, err := io.Copy(dst, resp.Body)
		return err
	default:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return fmt.Errorf("decode %s: %w", endpoint, err)
		}
		return nil
	}
}
