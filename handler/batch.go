package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hiidef/hiitrack/apperr"
	"github.com/hiidef/hiitrack/kernel"
)

// batchMessage is the decoded [event_names, [[key, value], ...]] pair a
// ?message= carries, grounded on
// original_source/tests/batch.py's test_batch_insert.
type batchMessage struct {
	Events     []string
	Properties [][2]json.RawMessage
}

func (m *batchMessage) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &m.Events); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &m.Properties)
}

// Batch handles GET /{u}/{b}/batch?message=…&visitor_id=?: decode the
// batch message, run the full ingest fan-out, and set/refresh the
// visitor cookie.
func (d *Deps) Batch(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "u")
	bkt := chi.URLParam(r, "b")

	raw, err := base64.StdEncoding.DecodeString(r.URL.Query().Get("message"))
	if err != nil {
		writeError(w, r, apperr.New(apperr.BadRequest, "message must be base64-encoded JSON"))
		return
	}
	var msg batchMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		writeError(w, r, apperr.New(apperr.BadRequest, "malformed batch message"))
		return
	}

	properties := make([]kernel.PropertyInput, 0, len(msg.Properties))
	for _, pair := range msg.Properties {
		var name string
		if err := json.Unmarshal(pair[0], &name); err != nil {
			writeError(w, r, apperr.New(apperr.BadRequest, "malformed property name"))
			return
		}
		properties = append(properties, kernel.PropertyInput{Name: name, Value: pair[1]})
	}

	visitorID := resolveVisitorID(r)
	if _, err := d.Kernel.Ingest(r.Context(), owner, bkt, visitorID, msg.Events, properties, time.Now()); err != nil {
		writeError(w, r, err)
		return
	}
	setVisitorCookie(w, visitorID, d.VisitorCookieTTL)

	body := map[string]interface{}{"visitor_id": visitorID}
	if requestID := r.URL.Query().Get("request_id"); requestID != "" {
		body["request_id"] = requestID
	}
	writeJSON(w, r, http.StatusOK, body)
}
