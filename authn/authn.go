// Package authn implements HTTP Basic authentication for the external
// interface (spec §6): validate the Authorization header against the
// stored user's password, cache validated credentials for a short
// TTL, and reject a principal/URL mismatch with 401 rather than 403.
//
// The cache shape is adapted from middleware/auth.go's cachedAuth —
// a sync.Map of key to (value, expiresAt) — generalized from bearer
// tokens to a (username, password) pair. The Basic-auth parsing and
// the X-Requested-With suppression are grounded on
// original_source/hiitrack/lib/authentication.py.
package authn

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hiidef/hiitrack/user"
)

type contextKey int

const principalContextKey contextKey = iota

// Principal returns the authenticated username stored in ctx by
// Middleware, or "" if the request was never authenticated.
func Principal(ctx context.Context) string {
	v, _ := ctx.Value(principalContextKey).(string)
	return v
}

type cachedCredential struct {
	password  string
	expiresAt time.Time
}

// Middleware validates HTTP Basic auth against a user.Service.
type Middleware struct {
	users *user.Service
	log   zerolog.Logger
	ttl   time.Duration
	cache sync.Map // username -> *cachedCredential
}

// New returns a Middleware with the given validated-credential TTL.
func New(users *user.Service, ttl time.Duration, log zerolog.Logger) *Middleware {
	return &Middleware{users: users, ttl: ttl, log: log}
}

func (m *Middleware) cached(username, password string) bool {
	v, ok := m.cache.Load(username)
	if !ok {
		return false
	}
	c := v.(*cachedCredential)
	if time.Now().After(c.expiresAt) {
		m.cache.Delete(username)
		return false
	}
	return c.password == password
}

func (m *Middleware) remember(username, password string) {
	m.cache.Store(username, &cachedCredential{password: password, expiresAt: time.Now().Add(m.ttl)})
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Requested-With") != "XMLHttpRequest" {
		w.Header().Set("WWW-Authenticate", `Basic realm="hiitrack"`)
	}
	http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
}

// Require authenticates the request, then checks that the authenticated
// principal matches the {u} URL segment the router extracts via
// urlOwner — a mismatch is 401, not 403, per spec §8's boundary
// behaviour.
func (m *Middleware) Require(urlOwner func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok || username == "" || password == "" {
				unauthorized(w, r)
				return
			}

			valid := m.cached(username, password)
			if !valid {
				var err error
				valid, err = m.users.Validate(r.Context(), username, password)
				if err != nil {
					m.log.Error().Err(err).Msg("validate user password")
					unauthorized(w, r)
					return
				}
				if valid {
					m.remember(username, password)
				}
			}
			if !valid {
				unauthorized(w, r)
				return
			}

			if urlOwner != nil {
				if owner := urlOwner(r); owner != "" && owner != username {
					unauthorized(w, r)
					return
				}
			}

			ctx := context.WithValue(r.Context(), principalContextKey, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
