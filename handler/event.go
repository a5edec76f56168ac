package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hiidef/hiitrack/apperr"
	"github.com/hiidef/hiitrack/event"
	"github.com/hiidef/hiitrack/fingerprint"
	"github.com/hiidef/hiitrack/keyspace"
)

// IngestEvent handles POST /{u}/{b}/event/{name}: a single-event ingest,
// equivalent to a one-name batch.
func (d *Deps) IngestEvent(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "u")
	bkt := chi.URLParam(r, "b")
	name := chi.URLParam(r, "name")

	visitorID := resolveVisitorID(r)
	result, err := d.Kernel.Ingest(r.Context(), owner, bkt, visitorID, []string{name}, nil, time.Now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	setVisitorCookie(w, visitorID, d.VisitorCookieTTL)
	writeJSON(w, r, http.StatusOK, map[string]string{"visitor_id": visitorID, "id": encodeID(result.EventIDs[0])})
}

func viewJSON(v event.View) map[string]interface{} {
	out := map[string]interface{}{
		"id":   encodeID(v.ID),
		"name": v.Name,
	}
	if len(v.Series) > 0 {
		series := make([]map[string]interface{}, 0, len(v.Series))
		for _, p := range v.Series {
			series = append(series, map[string]interface{}{
				"timestamp":    p.Timestamp.UTC().Format(time.RFC3339),
				"total":        p.Total,
				"unique_total": p.UniqueTotal,
			})
		}
		out["series"] = series
		return out
	}
	if v.Values != nil {
		values := make(map[string]interface{}, len(v.Values))
		for _, slice := range v.Values {
			values[idEncoding.EncodeToString(slice.ValueID[:])] = map[string]int64{"total": slice.Total}
		}
		out["property"] = encodeID(v.PropertyID)
		out["values"] = values
		return out
	}
	out["total"] = v.Total
	out["unique_total"] = v.UniqueTotal
	path := make(map[string]int64, len(v.Path))
	for prev, n := range v.Path {
		path[encodeID(prev)] = n
	}
	uniquePath := make(map[string]int64, len(v.UniquePath))
	for prev, n := range v.UniquePath {
		uniquePath[encodeID(prev)] = n
	}
	out["path"] = path
	out["unique_path"] = uniquePath
	return out
}

// viewEvent runs the shared GET logic for both name- and id-addressed
// event views: optional ?property=, optional ?start=&finish=&interval=.
func (d *Deps) viewEvent(w http.ResponseWriter, r *http.Request, owner, bkt string, eid fingerprint.ID, name string) {
	eng := event.New(d.Store, owner, bkt)
	property := r.URL.Query().Get("property")

	startParam := r.URL.Query().Get("start")
	finishParam := r.URL.Query().Get("finish")
	if startParam == "" && finishParam == "" {
		v, err := eng.View(r.Context(), eid, name, property)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, viewJSON(v))
		return
	}

	start, err := time.Parse(time.RFC3339, startParam)
	if err != nil {
		writeError(w, r, apperr.New(apperr.BadRequest, "invalid start"))
		return
	}
	finish, err := time.Parse(time.RFC3339, finishParam)
	if err != nil {
		writeError(w, r, apperr.New(apperr.BadRequest, "invalid finish"))
		return
	}
	interval := keyspace.Hourly
	if r.URL.Query().Get("interval") == "day" {
		interval = keyspace.Daily
	}
	v, err := eng.Timed(r.Context(), eid, name, property, start, finish, interval)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, viewJSON(v))
}

// ViewEvent handles GET /{u}/{b}/event/{name}.
func (d *Deps) ViewEvent(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "u")
	bkt := chi.URLParam(r, "b")
	name := chi.URLParam(r, "name")
	d.viewEvent(w, r, owner, bkt, fingerprint.H(name), name)
}

// ViewEventByID handles GET /{u}/{b}/event_id/{id}: resolves the stored
// name the same way the original's defensive re-fetch does, rather than
// trusting a caller-supplied label.
func (d *Deps) ViewEventByID(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "u")
	bkt := chi.URLParam(r, "b")
	idParam := chi.URLParam(r, "id")
	eid, err := decodeID(idParam)
	if err != nil {
		writeError(w, r, err)
		return
	}

	events, err := d.Buckets.Events(r.Context(), owner, bkt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	name := ""
	for evName, id := range events {
		if id == eid {
			name = evName
			break
		}
	}
	if name == "" {
		writeError(w, r, apperr.New(apperr.NotFound, "no event with id "+idParam))
		return
	}
	d.viewEvent(w, r, owner, bkt, eid, name)
}
