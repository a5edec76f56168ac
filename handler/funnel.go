package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hiidef/hiitrack/apperr"
	"github.com/hiidef/hiitrack/fingerprint"
	"github.com/hiidef/hiitrack/funnel"
	"github.com/hiidef/hiitrack/model"
)

func parseEventIDs(r *http.Request) ([]fingerprint.ID, error) {
	raw := r.URL.Query()["event_id"]
	ids := make([]fingerprint.ID, 0, len(raw))
	for _, s := range raw {
		id, err := decodeID(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	// Dropped-feature supplement: a repeated ?event= name is accepted
	// alongside ?event_id= so a caller that only knows names can still
	// preview a funnel without a prior lookup round-trip.
	for _, name := range r.URL.Query()["event"] {
		ids = append(ids, fingerprint.H(name))
	}
	if len(ids) < 2 {
		return nil, apperr.New(apperr.BadRequest, "a funnel needs at least 2 events")
	}
	return ids, nil
}

func assemblyJSON(a funnel.Assembly) map[string]interface{} {
	steps := func(s []funnel.Step) []map[string]interface{} {
		out := make([]map[string]interface{}, len(s))
		for i, step := range s {
			out[i] = map[string]interface{}{"id": encodeID(step.EventID), "total": step.Count}
		}
		return out
	}
	return map[string]interface{}{
		"funnel":        steps(a.Funnel),
		"unique_funnel": steps(a.UniqueFunnel),
	}
}

// CreateFunnel handles POST /{u}/{b}/funnel/{name}: params repeated
// event_id, description, optional property.
func (d *Deps) CreateFunnel(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "u")
	bkt := chi.URLParam(r, "b")
	name := chi.URLParam(r, "name")

	eventIDs, err := parseEventIDs(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	def := model.Funnel{
		Bucket:       bkt,
		Name:         name,
		Description:  r.FormValue("description"),
		EventIDs:     eventIDs,
		PropertyName: r.FormValue("property"),
	}
	if err := funnel.Save(r.Context(), d.Store, owner, def); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]string{"name": name})
}

// assembleFunnel runs the read side for eventIDs, split by property if non-empty.
func (d *Deps) assembleFunnel(w http.ResponseWriter, r *http.Request, owner, bkt string, eventIDs []fingerprint.ID, property string) {
	eng := funnel.New(d.Store, owner, bkt)
	if property == "" {
		a, err := eng.Assemble(r.Context(), eventIDs)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, assemblyJSON(a))
		return
	}

	byValue, err := eng.AssembleByProperty(r.Context(), eventIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	prefix := fingerprint.H(property)
	out := make(map[string]interface{}, len(byValue))
	for vid, a := range byValue {
		if vid.Prefix() != prefix {
			continue
		}
		out[idEncoding.EncodeToString(vid[:])] = assemblyJSON(a)
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{"values": out})
}

// ViewFunnel handles GET /{u}/{b}/funnel/{name}: a saved funnel's assembly.
func (d *Deps) ViewFunnel(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "u")
	bkt := chi.URLParam(r, "b")
	name := chi.URLParam(r, "name")

	def, err := funnel.Load(r.Context(), d.Store, owner, bkt, name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d.assembleFunnel(w, r, owner, bkt, def.EventIDs, def.PropertyName)
}

// PreviewFunnel handles GET /{u}/{b}/funnel?event_id=…&event_id=…[&property=]:
// an unsaved, ad hoc assembly.
func (d *Deps) PreviewFunnel(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "u")
	bkt := chi.URLParam(r, "b")

	eventIDs, err := parseEventIDs(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d.assembleFunnel(w, r, owner, bkt, eventIDs, r.URL.Query().Get("property"))
}

// DeleteFunnel handles DELETE /{u}/{b}/funnel/{name}.
func (d *Deps) DeleteFunnel(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "u")
	bkt := chi.URLParam(r, "b")
	name := chi.URLParam(r, "name")
	if err := funnel.Delete(r.Context(), d.Store, owner, bkt, name); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
