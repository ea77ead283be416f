package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/oauth2"

	gderrors "github.com/odvcencio/geodash/pkg/errors"
)

// EarlyExpiry refreshes tokens this long before they expire.
const EarlyExpiry = 60 * time.Second

// credentialsFile is the earthengine credentials path relative to the
// SEPAL home directory.
const credentialsFile = ".config/earthengine/credentials"

// Credentials are delegated Google credentials. ExpiryDate is in unix milliseconds.
type Credentials struct {
	AccessToken string `json:"access_token"`
	ProjectID   string `json:"project_id"`
	ExpiryDate  int64  `json:"access_token_expiry_date"`
}

// Valid reports whether c holds a token.
func (c Credentials) Valid() bool {
	return c.AccessToken != ""
}

// Token converts c into an oauth2 token.
func (c Credentials) Token() *oauth2.Token {
	tok := &oauth2.Token{AccessToken: c.AccessToken, TokenType: "Bearer"}
	if c.ExpiryDate > 0 {
		tok.Expiry = time.UnixMilli(c.ExpiryDate)
	}
	return tok
}

// LoadCredentials reads a local credentials file.
func LoadCredentials(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, gderrors.Wrap(err, gderrors.ErrCodeAuth, "credentials file not readable").
			WithContext("path", path)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, gderrors.Wrap(err, gderrors.ErrCodeAuth, "credentials file is not valid JSON").
			WithContext("path", path)
	}
	if !creds.Valid() {
		return Credentials{}, gderrors.New(gderrors.ErrCodeAuth, "no access token in credentials file").
			WithContext("path", path)
	}
	return creds, nil
}

type fileSource struct {
	path string
}

func (s fileSource) Token() (*oauth2.Token, error) {
	creds, err := LoadCredentials(s.path)
	if err != nil {
		return nil, err
	}
	return creds.Token(), nil
}

// FileTokenSource re-reads path whenever the cached token is about to expire.
func FileTokenSource(path string) oauth2.TokenSource {
	return oauth2.ReuseTokenSourceWithExpiry(nil, fileSource{path: path}, EarlyExpiry)
}

type sepalSource struct {
	ctx       context.Context
	client    *http.Client
	endpoint  string
	sessionID string
}

func (s sepalSource) Token() (*oauth2.Token, error) {
	req, err := http.NewRequestWithContext(s.ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: s.sessionID})
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, gderrors.Wrap(err, gderrors.ErrCodeAuth, "refresh credentials via SEPAL").
			WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, gderrors.Newf(gderrors.ErrCodeAuth, "refresh credentials via SEPAL: status %d", resp.StatusCode).
			WithRetryable(resp.StatusCode >= 500)
	}

	var creds Credentials
	if err := json.NewDecoder(resp.Body).Decode(&creds); err != nil {
		return nil, gderrors.Wrap(err, gderrors.ErrCodeAuth, "decode SEPAL credentials")
	}
	if !creds.Valid() {
		return nil, gderrors.New(gderrors.ErrCodeAuth, "SEPAL returned no access token")
	}
	return creds.Token(), nil
}

// CredentialsURL is the SEPAL endpoint serving the user's credentials file.
func CredentialsURL(host string) string {
	q := url.Values{"path": {"/" + credentialsFile}}
	return fmt.Sprintf("https://%s/api/user-files/download/?%s", host, q.Encode())
}

// NewTokenSource returns a token source seeded with the delegated credentials
// in h that refreshes through the SEPAL credentials endpoint.
func NewTokenSource(ctx context.Context, h Headers, client *http.Client) (oauth2.TokenSource, error) {
	if h.SessionID == "" || h.Host == "" {
		if h.Credentials.Valid() {
			return oauth2.StaticTokenSource(h.Credentials.Token()), nil
		}
		return nil, gderrors.New(gderrors.ErrCodeAuth, "no credentials and no SEPAL session to refresh them").
			WithContext("user", h.Username)
	}
	if client == nil {
		client = http.DefaultClient
	}
	src := sepalSource{
		ctx:       ctx,
		client:    client,
		endpoint:  CredentialsURL(h.Host),
		sessionID: h.SessionID,
	}
	var seed *oauth2.Token
	if h.Credentials.Valid() {
		seed = h.Credentials.Token()
	}
	return oauth2.ReuseTokenSourceWithExpiry(seed, src, EarlyExpiry), nil
}
