package authn

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hiidef/hiitrack/bucket"
	"github.com/hiidef/hiitrack/store/memstore"
	"github.com/hiidef/hiitrack/user"
)

func newMiddleware(t *testing.T) *Middleware {
	t.Helper()
	ms := memstore.New()
	buckets := bucket.New(ms, bucket.NewCache(1000), zerolog.New(io.Discard))
	users := user.New(ms, buckets, zerolog.New(io.Discard))
	if _, err := users.Create(context.Background(), "acme", "hunter2"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return New(users, time.Minute, zerolog.New(io.Discard))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireRejectsMissingAuth(t *testing.T) {
	mw := newMiddleware(t)
	handler := mw.Require(nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/acme/app1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("expected WWW-Authenticate challenge without X-Requested-With")
	}
}

func TestRequireSuppressesChallengeForXHR(t *testing.T) {
	mw := newMiddleware(t)
	handler := mw.Require(nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/acme/app1", nil)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") != "" {
		t.Fatal("expected no WWW-Authenticate challenge for XHR requests")
	}
}

func TestRequireAcceptsValidCredentials(t *testing.T) {
	mw := newMiddleware(t)
	handler := mw.Require(nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/acme/app1", nil)
	req.SetBasicAuth("acme", "hunter2")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

// TestRequireRejectsPrincipalMismatchWith401 reproduces spec §8's
// boundary behaviour: a valid user authenticated against the wrong
// bucket owner gets 401, not 403.
func TestRequireRejectsPrincipalMismatchWith401(t *testing.T) {
	mw := newMiddleware(t)
	handler := mw.Require(func(r *http.Request) string { return "someone-else" })(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/acme/app1", nil)
	req.SetBasicAuth("acme", "hunter2")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
