// Package handler implements the HTTP surface of spec §6: one file per
// entity, translating chi URL params and form/query values into calls
// against the bucket/user/kernel/funnel/event/property services and
// writing their results back as JSON (optionally gzipped or
// JSONP-wrapped, per the response-encoding supplement in
// SPEC_FULL.md).
package handler

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/hiidef/hiitrack/apperr"
)

// writeJSON encodes v as the response body, gzipping it when the
// client advertises gzip support and wrapping it in a JSONP callback
// when a "callback" query parameter is present.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.BackingStoreFailure, "encode response", err))
		return
	}

	callback := r.URL.Query().Get("callback")
	if callback != "" {
		w.Header().Set("Content-Type", "application/javascript")
		body = []byte(fmt.Sprintf("%s(%s);", callback, body))
	} else {
		w.Header().Set("Content-Type", "application/json")
	}

	if strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(status)
		gz := gzip.NewWriter(w)
		defer gz.Close()
		_, _ = gz.Write(body)
		return
	}

	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError maps an apperr.Kind to the status codes spec §6 names and
// writes a JSON error body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case apperr.Is(err, apperr.AuthRequired):
		status = http.StatusUnauthorized
	case apperr.Is(err, apperr.NotFound):
		status = http.StatusNotFound
	case apperr.Is(err, apperr.BadRequest), apperr.Is(err, apperr.Conflict):
		// spec §6: "403 on duplicate create or bad parameters" — both
		// kinds share the one status code the original dispatcher used.
		status = http.StatusForbidden
	case apperr.Is(err, apperr.BackingStoreFailure):
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
		"exc":   fmt.Sprintf("%T", err),
	})
}
