package router

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hiidef/hiitrack/authn"
	"github.com/hiidef/hiitrack/bucket"
	"github.com/hiidef/hiitrack/config"
	"github.com/hiidef/hiitrack/handler"
	"github.com/hiidef/hiitrack/kernel"
	"github.com/hiidef/hiitrack/property"
	"github.com/hiidef/hiitrack/store/memstore"
	"github.com/hiidef/hiitrack/user"
	"github.com/hiidef/hiitrack/writebuffer"
)

func testSetup() http.Handler {
	cfg := &config.Config{
		Addr:             ":0",
		Env:              "test",
		MaxBodyBytes:     1 << 20,
		GracefulTimeout:  time.Second,
		AuthCacheTTL:     time.Minute,
		VisitorCookieTTL: time.Hour,
	}
	log := zerolog.New(io.Discard).With().Timestamp().Logger()

	s := memstore.New()
	buf := writebuffer.New(s, log, 10)
	buckets := bucket.New(s, bucket.NewCache(1000), log)
	users := user.New(s, buckets, log)
	auth := authn.New(users, cfg.AuthCacheTTL, log)
	ker := kernel.New(s, buf, log)
	deps := &handler.Deps{
		Store:            s,
		Users:            users,
		Buckets:          buckets,
		Kernel:           ker,
		Properties:       property.New(s),
		Log:              log,
		VisitorCookieTTL: cfg.VisitorCookieTTL,
	}
	return New(cfg, log, deps, auth)
}

func TestHealthEndpoint(t *testing.T) {
	r := testSetup()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Result().StatusCode)
	}
}

func TestCreateUserThenListBucketsRequiresAuth(t *testing.T) {
	r := testSetup()

	form := httptest.NewRequest(http.MethodPost, "/alice", nil)
	form.Form = map[string][]string{"password": {"hunter2"}}
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, form)
	if rw.Result().StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 creating user, got %d: %s", rw.Result().StatusCode, rw.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/alice", nil)
	rw = httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", rw.Result().StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/alice", nil)
	req.SetBasicAuth("alice", "hunter2")
	rw = httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with credentials, got %d: %s", rw.Result().StatusCode, rw.Body.String())
	}
}

func TestPrincipalMismatchIsUnauthorizedNotForbidden(t *testing.T) {
	r := testSetup()

	for _, name := range []string{"alice", "bob"} {
		form := httptest.NewRequest(http.MethodPost, "/"+name, nil)
		form.Form = map[string][]string{"password": {"hunter2"}}
		rw := httptest.NewRecorder()
		r.ServeHTTP(rw, form)
		if rw.Result().StatusCode != http.StatusCreated {
			t.Fatalf("expected 201 creating %s, got %d", name, rw.Result().StatusCode)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/bob", nil)
	req.SetBasicAuth("alice", "hunter2")
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 on principal/URL mismatch, got %d", rw.Result().StatusCode)
	}
}

func TestTrailingSlashRedirects(t *testing.T) {
	r := testSetup()
	req := httptest.NewRequest(http.MethodGet, "/healthz/", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Result().StatusCode != http.StatusMovedPermanently {
		t.Fatalf("expected 301, got %d", rw.Result().StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	r := testSetup()
	req := httptest.NewRequest(http.MethodOptions, "/alice/bucket1", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("expected CORS Allow-Origin header on preflight response")
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := testSetup()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options"} {
		if rw.Header().Get(h) == "" {
			t.Fatalf("expected security header %s to be set", h)
		}
	}
}

func TestIngestEventUnauthenticated(t *testing.T) {
	r := testSetup()

	form := httptest.NewRequest(http.MethodPost, "/alice", nil)
	form.Form = map[string][]string{"password": {"hunter2"}}
	r.ServeHTTP(httptest.NewRecorder(), form)

	createBucket := httptest.NewRequest(http.MethodPost, "/alice/site", nil)
	createBucket.SetBasicAuth("alice", "hunter2")
	createBucket.Form = map[string][]string{"description": {"test bucket"}}
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, createBucket)
	if rw.Result().StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 creating bucket, got %d: %s", rw.Result().StatusCode, rw.Body.String())
	}

	req := httptest.NewRequest(http.MethodPost, "/alice/site/event/signup?visitor_id=v1", nil)
	rw = httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200 ingesting event without auth, got %d: %s", rw.Result().StatusCode, rw.Body.String())
	}

	viewReq := httptest.NewRequest(http.MethodGet, "/alice/site/event/signup", nil)
	viewReq.SetBasicAuth("alice", "hunter2")
	rw = httptest.NewRecorder()
	r.ServeHTTP(rw, viewReq)
	if rw.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected 200 viewing event, got %d: %s", rw.Result().StatusCode, rw.Body.String())
	}
}
