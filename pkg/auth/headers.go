// Package auth turns SEPAL connection headers and local credential files
// into Google access tokens.
package auth

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	gderrors "github.com/odvcencio/geodash/pkg/errors"
)

const (
	// UserHeader carries the JSON-encoded SEPAL user.
	UserHeader = "sepal-user"
	// SessionCookie is the SEPAL session cookie name.
	SessionCookie = "SEPAL-SESSIONID"
)

// Headers is the authentication material of one connection.
type Headers struct {
	Username    string
	SessionID   string
	Host        string
	Credentials Credentials
}

type sepalUser struct {
	Username     string `json:"username"`
	GoogleTokens *struct {
		AccessToken           string `json:"accessToken"`
		ProjectID             string `json:"projectId"`
		AccessTokenExpiryDate int64  `json:"accessTokenExpiryDate"`
	} `json:"googleTokens"`
}

// ParseHeaders extracts SEPAL identity and delegated credentials from h.
// host is used when the connection carries no Host header.
func ParseHeaders(h http.Header, host string) (Headers, error) {
	raw := h.Get(UserHeader)
	if raw == "" {
		return Headers{}, gderrors.New(gderrors.ErrCodeAuth, "missing sepal-user header")
	}

	var user sepalUser
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return Headers{}, gderrors.Wrap(err, gderrors.ErrCodeAuth, "invalid sepal-user header")
	}
	if user.Username == "" {
		return Headers{}, gderrors.New(gderrors.ErrCodeAuth, "sepal-user header has no username")
	}

	req := http.Request{Header: h}
	cookie, err := req.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return Headers{}, gderrors.New(gderrors.ErrCodeAuth, "missing SEPAL-SESSIONID cookie").
			WithContext("user", user.Username)
	}

	out := Headers{
		Username:  user.Username,
		SessionID: cookie.Value,
		Host:      host,
	}
	if v := h.Get("Host"); v != "" && out.Host == "" {
		out.Host = v
	}
	if user.GoogleTokens != nil {
		out.Credentials = Credentials{
			AccessToken: user.GoogleTokens.AccessToken,
			ProjectID:   user.GoogleTokens.ProjectID,
			ExpiryDate:  user.GoogleTokens.AccessTokenExpiryDate,
		}
	}
	return out, nil
}

// FromEnv builds headers for test mode from the environment and the local
// credentials file at credentialsPath.
func FromEnv(credentialsPath string) (Headers, error) {
	creds, err := LoadCredentials(credentialsPath)
	if err != nil {
		return Headers{}, err
	}
	username := strings.TrimSpace(os.Getenv("SEPAL_USER"))
	if username == "" {
		username = "test_user"
	}
	return Headers{
		Username:    username,
		SessionID:   os.Getenv("SEPAL_SESSION_ID"),
		Host:        os.Getenv("SEPAL_HOST"),
		Credentials: creds,
	}, nil
}

// HTTPHeader renders h back into connection headers.
func (h Headers) HTTPHeader() (http.Header, error) {
	user := sepalUser{Username: h.Username}
	if h.Credentials.AccessToken != "" {
		user.GoogleTokens = &struct {
			AccessToken           string `json:"accessToken"`
			ProjectID             string `json:"projectId"`
			AccessTokenExpiryDate int64  `json:"accessTokenExpiryDate"`
		}{h.Credentials.AccessToken, h.Credentials.ProjectID, h.Credentials.ExpiryDate}
	}
	data, err := json.Marshal(user)
	if err != nil {
		return nil, err
	}
	out := http.Header{}
	out.Set(UserHeader, string(data))
	out.Set("Cookie", (&http.Cookie{Name: SessionCookie, Value: h.SessionID}).String())
	if h.Host != "" {
		out.Set("Host", h.Host)
	}
	return out, nil
}
