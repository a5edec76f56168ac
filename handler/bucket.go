package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hiidef/hiitrack/apperr"
)

// CreateBucket handles POST /{u}/{b}: create a bucket with a
// description, 403 if the name already exists under the owner.
func (d *Deps) CreateBucket(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "u")
	name := chi.URLParam(r, "b")
	description := r.FormValue("description")

	exists, err := d.Buckets.Exists(r.Context(), owner, name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if exists {
		writeError(w, r, apperr.New(apperr.Conflict, "bucket "+name+" already exists"))
		return
	}

	b, err := d.Buckets.Create(r.Context(), owner, name, description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]string{"name": b.Name, "description": b.Description})
}

// BucketSummary handles GET /{u}/{b}: description, every property name
// -> its recorded values, and every event name -> its id.
func (d *Deps) BucketSummary(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "u")
	name := chi.URLParam(r, "b")

	description, err := d.Buckets.Describe(r.Context(), owner, name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	events, err := d.Buckets.Events(r.Context(), owner, name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	propertyNames, err := d.Buckets.PropertyNames(r.Context(), owner, name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	eventsOut := make(map[string]map[string]string, len(events))
	for evName, id := range events {
		eventsOut[evName] = map[string]string{"id": encodeID(id)}
	}

	propsOut := make(map[string][]map[string]interface{}, len(propertyNames))
	for propName := range propertyNames {
		_, values, err := d.Properties.Values(r.Context(), owner, name, propName)
		if err != nil {
			writeError(w, r, err)
			return
		}
		list := make([]map[string]interface{}, 0, len(values))
		for vid, v := range values {
			list = append(list, map[string]interface{}{
				"id":    idEncoding.EncodeToString(vid[:]),
				"value": v.Value,
			})
		}
		propsOut[propName] = list
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"description": description,
		"events":      eventsOut,
		"properties":  propsOut,
	})
}

// DeleteBucket handles DELETE /{u}/{b}: cascading destroy (spec §4.4).
func (d *Deps) DeleteBucket(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "u")
	name := chi.URLParam(r, "b")
	if err := d.Buckets.Destroy(r.Context(), owner, name); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
