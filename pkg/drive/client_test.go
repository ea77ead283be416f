package drive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/odvcencio/geodash/pkg/config"
	gderrors "github.com/odvcencio/geodash/pkg/errors"
	"github.com/odvcencio/geodash/pkg/observability"
)

type fakeDrive struct {
	mu      sync.Mutex
	files   map[string]string // id -> name
	content map[string]string // id -> body
	deleted []string
}

func (f *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer drive-token" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch {
	case r.URL.Path == "/drive/v3/files" && r.Method == http.MethodGet:
		q := r.URL.Query().Get("q")
		var parts []string
		for id, name := range f.files {
			switch {
			case strings.Contains(q, "mimeType='text/csv'") && strings.HasSuffix(name, ".csv"):
			case strings.Contains(q, "name='"+name+"'"):
			default:
				continue
			}
			parts = append(parts, `{"id": "`+id+`", "name": "`+name+`"}`)
		}
		_, _ = w.Write([]byte(`{"files": [` + strings.Join(parts, ",") + `]}`))
	case strings.HasPrefix(r.URL.Path, "/drive/v3/files/"):
		id := strings.TrimPrefix(r.URL.Path, "/drive/v3/files/")
		if _, ok := f.files[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method == http.MethodDelete {
			f.deleted = append(f.deleted, id)
			delete(f.files, id)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.URL.Query().Get("alt") != "media" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(f.content[id]))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeDrive) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func newTestClient(t *testing.T, fake *fakeDrive) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "drive-token", TokenType: "Bearer"})
	return NewClient(ts, config.DriveConfig{BaseURL: srv.URL + "/drive/v3"},
		WithHTTPClient(srv.Client()), WithLogger(observability.Nop()))
}

func seededDrive() *fakeDrive {
	return &fakeDrive{
		files:   map[string]string{"1": "alerts.csv", "2": "image.tif"},
		content: map[string]string{"1": "a,b\n1,2\n", "2": "TIFF"},
	}
}

func TestClient_ListCSV(t *testing.T) {
	c := newTestClient(t, seededDrive())

	files, err := c.ListCSV(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "alerts.csv", files[0].Name)
}

func TestClient_FileID(t *testing.T) {
	c := newTestClient(t, seededDrive())

	id, err := c.FileID(context.Background(), "image.tif")
	require.NoError(t, err)
	assert.Equal(t, "2", id)

	_, err = c.FileID(context.Background(), "nope.csv")
	assert.True(t, gderrors.IsCode(err, gderrors.ErrCodeNotFound))
}

func TestClient_Download(t *testing.T) {
	c := newTestClient(t, seededDrive())

	data, err := c.Download(context.Background(), "alerts.csv")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))
}

type recordingUploader struct {
	path    string
	content []byte
}

func (u *recordingUploader) SetFile(ctx context.Context, p string, content []byte) error {
	u.path = p
	u.content = content
	return nil
}

func TestClient_DownloadTo(t *testing.T) {
	c := newTestClient(t, seededDrive())
	ctx := context.Background()

	up := &recordingUploader{}
	require.NoError(t, c.DownloadTo(ctx, "alerts.csv", "/home/sepal-user/module_results/m/alerts.csv", up))
	assert.Equal(t, "/home/sepal-user/module_results/m/alerts.csv", up.path)
	assert.Equal(t, "a,b\n1,2\n", string(up.content))

	local := filepath.Join(t.TempDir(), "nested", "alerts.csv")
	require.NoError(t, c.DownloadTo(ctx, "alerts.csv", local, nil))
	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))
}

func TestClient_Delete(t *testing.T) {
	fake := seededDrive()
	c := newTestClient(t, fake)

	require.NoError(t, c.Delete(context.Background(), "image.tif"))
	assert.Equal(t, []string{"2"}, fake.deletedIDs())
}

func TestClient_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(seededDrive())
	defer srv.Close()

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "wrong"})
	c := NewClient(ts, config.DriveConfig{BaseURL: srv.URL + "/drive/v3"}, WithLogger(observability.Nop()))

	_, err := c.ListCSV(context.Background())
	require.Error(t, err)
	assert.True(t, gderrors.IsCode(err, gderrors.ErrCodeAuth))
}
