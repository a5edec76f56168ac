// Package router wires the full HTTP surface of spec §6 onto a chi
// Router: one route per (method, path) pair, behind the shared
// middleware chain (CORS, security headers, request id, recovery,
// logging, body-size limit) and the per-route Basic-auth requirement.
package router

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/hiidef/hiitrack/authn"
	"github.com/hiidef/hiitrack/config"
	"github.com/hiidef/hiitrack/handler"
	appmw "github.com/hiidef/hiitrack/middleware"
)

// urlOwnerU extracts the {u} URL segment chi has already parsed — the
// principal the authenticated Basic-auth username must match.
func urlOwnerU(r *http.Request) string {
	return chi.URLParamFromCtx(r.Context(), "u")
}

// New returns a configured chi Router exposing every operation in
// spec §6's HTTP table.
func New(cfg *config.Config, appLogger zerolog.Logger, deps *handler.Deps, auth *authn.Middleware) http.Handler {
	r := chi.NewRouter()

	r.Use(appmw.CORSMiddleware([]string{"*"}))
	r.Use(appmw.SecurityHeadersMiddleware)
	r.Use(appmw.RequestIDMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(mwRequestLogger(appLogger))
	r.Use(mwMaxBodySize(cfg.MaxBodyBytes))
	r.Use(appmw.RedirectTrailingSlash)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"hiitrack"}`))
	})

	require := auth.Require(urlOwnerU)

	// User routes: POST is unauthenticated (it is how a user is born),
	// GET/DELETE require the authenticated owner to match {u}.
	r.Post("/{u}", deps.CreateUser)
	r.With(require).Get("/{u}", deps.ListBuckets)
	r.With(require).Delete("/{u}", deps.DeleteUser)

	// Bucket routes.
	r.With(require).Post("/{u}/{b}", deps.CreateBucket)
	r.With(require).Get("/{u}/{b}", deps.BucketSummary)
	r.With(require).Delete("/{u}/{b}", deps.DeleteBucket)

	// Ingest routes are unauthenticated — spec §6's access column lists
	// "none" for batch/event/property POSTs, matching the original's
	// tracking-pixel use case.
	r.Get("/{u}/{b}/batch", deps.Batch)
	r.Post("/{u}/{b}/event/{name}", deps.IngestEvent)
	r.Post("/{u}/{b}/property/{name}", deps.IngestProperty)

	// Read-side views require the owner.
	r.With(require).Get("/{u}/{b}/event/{name}", deps.ViewEvent)
	r.With(require).Get("/{u}/{b}/event_id/{id}", deps.ViewEventByID)
	r.With(require).Get("/{u}/{b}/property/{name}", deps.ViewProperty)

	// Funnel routes. Preview is the bare /funnel path with no {name}
	// segment, so it never matches the create/view/delete trio below.
	r.With(require).Get("/{u}/{b}/funnel", deps.PreviewFunnel)
	r.With(require).Post("/{u}/{b}/funnel/{name}", deps.CreateFunnel)
	r.With(require).Get("/{u}/{b}/funnel/{name}", deps.ViewFunnel)
	r.With(require).Delete("/{u}/{b}/funnel/{name}", deps.DeleteFunnel)

	return r
}

// mwMaxBodySize returns middleware that limits the request body size.
func mwMaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = 1 * 1024 * 1024
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			max := maxBytes
			if v := os.Getenv("HIITRACK_MAX_BODY_BYTES"); v != "" {
				if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
					max = parsed
				}
			}
			if r.ContentLength > 0 && r.ContentLength > max {
				http.Error(w, `{"error":"request_too_large"}`, http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, max)
			next.ServeHTTP(w, r)
		})
	}
}

func mwRequestLogger(appLogger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(rw, r)
			appLogger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("req_id", r.Header.Get("X-Request-ID")).
				Int("status", rw.Status()).
				Dur("duration", time.Since(start)).
				Msg("request completed")
		})
	}
}
