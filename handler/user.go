package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hiidef/hiitrack/apperr"
	"github.com/hiidef/hiitrack/fingerprint"
)

// CreateUser handles POST /{u}: create a user with a password, 403 if
// the name is already taken.
func (d *Deps) CreateUser(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "u")
	password := r.FormValue("password")
	if password == "" {
		writeError(w, r, apperr.New(apperr.BadRequest, "password is required"))
		return
	}

	exists, err := d.Users.Exists(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if exists {
		writeError(w, r, apperr.New(apperr.Conflict, "user "+owner+" already exists"))
		return
	}

	if _, err := d.Users.Create(r.Context(), owner, password); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]string{"name": owner})
}

// ListBuckets handles GET /{u}: the authenticated owner's buckets.
func (d *Deps) ListBuckets(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "u")
	buckets, err := d.Users.Buckets(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make(map[string]map[string]string, len(buckets))
	for name, description := range buckets {
		// spec §3 doesn't give Bucket an id of its own; the list
		// response needs one regardless (spec §6), so derive it the
		// same way Event/Visitor ids are derived rather than storing
		// a redundant column.
		id := fingerprint.H(owner, name)
		out[name] = map[string]string{"id": encodeID(id), "description": description}
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{"buckets": out})
}

// DeleteUser handles DELETE /{u}: remove the user and every bucket they own.
func (d *Deps) DeleteUser(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "u")
	if err := d.Users.Delete(r.Context(), owner); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
