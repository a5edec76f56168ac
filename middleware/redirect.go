package middleware

import (
	"net/http"
	"strings"
)

// RedirectTrailingSlash 301s any request path (other than "/") that ends
// in "/" to its slash-stripped form, matching
// original_source/hiitrack/lib/dispatcher.py's exact-match routing —
// unlike chi's built-in StripSlashes, which rewrites the path in place
// rather than issuing a redirect.
func RedirectTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(r.URL.Path) > 1 && strings.HasSuffix(r.URL.Path, "/") {
			target := strings.TrimRight(r.URL.Path, "/")
			if q := r.URL.RawQuery; q != "" {
				target += "?" + q
			}
			http.Redirect(w, r, target, http.StatusMovedPermanently)
			return
		}
		next.ServeHTTP(w, r)
	})
}
