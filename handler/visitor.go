package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// visitorCookieName is the cookie spec §6 mints: name "v", path "/",
// ~100 years out, value the visitor id string.
const visitorCookieName = "v"

// resolveVisitorID returns the visitor id the request carries — the
// "visitor_id" form/query value if present, else the "v" cookie, else a
// freshly minted uuid — grounded on
// original_source/hiitrack/controllers/event.py's batch handling and
// the cookie round-trip in original_source/tests/cookie.py.
func resolveVisitorID(r *http.Request) string {
	if v := r.FormValue("visitor_id"); v != "" {
		return v
	}
	if c, err := r.Cookie(visitorCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return uuid.NewString()
}

// setVisitorCookie mints/refreshes the "v" cookie.
func setVisitorCookie(w http.ResponseWriter, visitorID string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:    visitorCookieName,
		Value:   visitorID,
		Path:    "/",
		Expires: time.Now().Add(ttl),
	})
}
