package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hiidef/hiitrack/apperr"
	"github.com/hiidef/hiitrack/kernel"
)

// IngestProperty handles POST /{u}/{b}/property/{name}?value=…: a
// single-property ingest with no accompanying event, equivalent to a
// batch carrying one property and no event names.
func (d *Deps) IngestProperty(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "u")
	bkt := chi.URLParam(r, "b")
	name := chi.URLParam(r, "name")

	raw, err := idEncoding.DecodeString(r.URL.Query().Get("value"))
	if err != nil {
		writeError(w, r, apperr.New(apperr.BadRequest, "value must be base64-encoded JSON"))
		return
	}
	if !json.Valid(raw) {
		writeError(w, r, apperr.New(apperr.BadRequest, "value must be base64-encoded JSON"))
		return
	}

	visitorID := resolveVisitorID(r)
	_, err = d.Kernel.Ingest(r.Context(), owner, bkt, visitorID, nil, []kernel.PropertyInput{{Name: name, Value: raw}}, time.Now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	setVisitorCookie(w, visitorID, d.VisitorCookieTTL)
	writeJSON(w, r, http.StatusOK, map[string]string{"visitor_id": visitorID})
}

// ViewProperty handles GET /{u}/{b}/property/{name}: spec §6's
// {id, name, values: {vid -> {value, total}}}.
func (d *Deps) ViewProperty(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "u")
	bkt := chi.URLParam(r, "b")
	name := chi.URLParam(r, "name")

	prefix, values, err := d.Properties.Values(r.Context(), owner, bkt, name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make(map[string]map[string]interface{}, len(values))
	for vid, v := range values {
		out[idEncoding.EncodeToString(vid[:])] = map[string]interface{}{
			"value": v.Value,
			"total": v.Total,
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"id":     encodeID(prefix),
		"name":   name,
		"values": out,
	})
}
