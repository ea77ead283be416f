// Package drive reads and removes export results from the user's Google Drive.
package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/odvcencio/geodash/pkg/config"
	gderrors "github.com/odvcencio/geodash/pkg/errors"
	"github.com/odvcencio/geodash/pkg/observability"
)

// File is a drive file summary.
type File struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MimeType     string    `json:"mimeType,omitempty"`
	ModifiedTime time.Time `json:"modifiedTime,omitempty"`
}

// Uploader stores downloaded content remotely.
type Uploader interface {
	SetFile(ctx context.Context, filePath string, content []byte) error
}

// Client is a minimal Drive v3 REST client.
type Client struct {
	baseURL    string
	pageSize   int
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *observability.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient sets the base client; the token transport wraps its transport.
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

// NewClient returns a client authenticated with ts.
func NewClient(ts oauth2.TokenSource, cfg config.DriveConfig, opts ...Option) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = config.DefaultDrivePageSize
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultDriveBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		pageSize:   pageSize,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		limiter:    rate.NewLimiter(rate.Limit(10), 10),
		log:        observability.Default().WithComponent("drive"),
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

// ListCSV returns every CSV file in the drive.
func (c *Client) ListCSV(ctx context.Context) ([]File, error) {
	return c.list(ctx, "mimeType='text/csv' and trashed=false")
}

// FileID returns the ID of the first file called name.
func (c *Client) FileID(ctx context.Context, name string) (string, error) {
	escaped := strings.ReplaceAll(name, `'`, `\'`)
	files, err := c.list(ctx, fmt.Sprintf("name='%s' and trashed=false", escaped))
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", gderrors.Newf(gderrors.ErrCodeNotFound, "drive file %q not found", name)
	}
	return files[0].ID, nil
}

// Download returns the content of the file called name.
func (c *Client) Download(ctx context.Context, name string) ([]byte, error) {
	id, err := c.FileID(ctx, name)
	if err != nil {
		return nil, err
	}
	q := url.Values{"alt": {"media"}}
	var buf strings.Builder
	if err := c.call(ctx, http.MethodGet, "files/"+url.PathEscape(id), q, &buf); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}

// DownloadTo writes the file called name to dest, through storage when it
// is non-nil and to the local filesystem otherwise.
func (c *Client) DownloadTo(ctx context.Context, name, dest string, storage Uploader) error {
	data, err := c.Download(ctx, name)
	if err != nil {
		return err
	}
	if storage != nil {
		return storage.SetFile(ctx, dest, data)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}

// Delete removes the file called name.
func (c *Client) Delete(ctx context.Context, name string) error {
	id, err := c.FileID(ctx, name)
	if err != nil {
		return err
	}
	return c.call(ctx, http.MethodDelete, "files/"+url.PathEscape(id), nil, nil)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) list(ctx context.Context, query string) ([]File, error) {
	var files []File
	pageToken := ""
	for {
		q := url.Values{
			"q":        {query},
			"pageSize": {fmt.Sprint(c.pageSize)},
			"fields":   {"nextPageToken, files(id, name, mimeType, modifiedTime)"},
		}
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		var page struct {
			Files         []File `json:"files"`
			NextPageToken string `json:"nextPageToken"`
		}
		if err := c.call(ctx, http.MethodGet, "files", q, &page); err != nil {
			return nil, err
		}
		files = append(files, page.Files...)
		if page.NextPageToken == "" {
			return files, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *Client) call(ctx context.Context, method, endpoint string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	u := c.baseURL + "/" + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gderrors.Wrap(err, gderrors.ErrCodeRemote, "drive request failed").
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
		return gderrors.Newf(code, "drive %s %s: status %d", method, endpoint, resp.StatusCode).
			WithContext("body", strings.TrimSpace(string(msg))).
			WithRetryable(resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500)
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
