package session

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/odvcencio/geodash/pkg/auth"
)

// Connection is one live client connection. Sessions are keyed by its ID.
type Connection struct {
	ID      string
	Headers http.Header
	// Host is used when Headers carries no Host entry.
	Host string
}

type connectionKey struct{}

// NewIdentity returns a fresh connection identity.
func NewIdentity() string {
	return uuid.NewString()
}

// WithConnection returns ctx carrying c.
func WithConnection(ctx context.Context, c Connection) context.Context {
	return context.WithValue(ctx, connectionKey{}, c)
}

// ConnectionFrom returns the connection carried by ctx.
func ConnectionFrom(ctx context.Context) (Connection, bool) {
	if ctx == nil {
		return Connection{}, false
	}
	c, ok := ctx.Value(connectionKey{}).(Connection)
	return c, ok && c.ID != ""
}

// ConnectionHeader carries an explicit connection identity.
const ConnectionHeader = "X-Connection-Id"

// StableIdentity derives the session identity of a request: the
// X-Connection-Id header when present, otherwise a UUID derived from the SEPAL
// session cookie. ok is false when the request carries neither.
func StableIdentity(r *http.Request) (string, bool) {
	if id := r.Header.Get(ConnectionHeader); id != "" {
		return id, true
	}
	cookie, err := r.Cookie(auth.SessionCookie)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(auth.SessionCookie+"="+cookie.Value)).String(), true
}

// Middleware attaches a Connection to requests that carry a stable identity,
// so repeated requests from one client share a session. Requests without one
// pass through with no connection and get no session.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := StableIdentity(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		conn := Connection{ID: id, Headers: r.Header.Clone(), Host: r.Host}
		next.ServeHTTP(w, r.WithContext(WithConnection(r.Context(), conn)))
	})
}
