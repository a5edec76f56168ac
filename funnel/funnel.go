// Package funnel implements the read-side assembly of spec §4.5: given
// an ordered list of event ids, assemble per-step counts from the event
// and path counters, with and without a property split.
//
// Grounded on original_source/hiitrack/controllers/funnel.py's _get,
// _get_with_property and _get_without_property.
package funnel

import (
	"context"
	"encoding/json"

	"github.com/hiidef/hiitrack/apperr"
	"github.com/hiidef/hiitrack/fingerprint"
	"github.com/hiidef/hiitrack/keyspace"
	"github.com/hiidef/hiitrack/model"
	"github.com/hiidef/hiitrack/store"
)

func funnelRow(owner, bkt string) fingerprint.ID {
	return keyspace.RowKey{owner, bkt, keyspace.RoleFunnel}.Hash()
}

// Save persists a funnel definition under def.Name, overwriting any
// prior definition of the same name (spec §3's create-on-write
// semantics). Grounded on
// original_source/hiitrack/models/funnel.py's FunnelModel.create.
func Save(ctx context.Context, s store.Store, owner string, def model.Funnel) error {
	value, err := json.Marshal(def)
	if err != nil {
		return apperr.Wrap(apperr.BadRequest, "encode funnel definition", err)
	}
	writes := []store.RelationWrite{{Row: funnelRow(owner, def.Bucket), Column: []byte(def.Name), Value: value}}
	return s.FlushRelations(ctx, store.FamilyRelation, writes)
}

// Load reads a saved funnel definition, returning apperr.NotFound if
// name has never been saved.
func Load(ctx context.Context, s store.Store, owner, bkt, name string) (model.Funnel, error) {
	raw, ok, err := s.GetRelation(ctx, store.FamilyRelation, funnelRow(owner, bkt), []byte(name))
	if err != nil {
		return model.Funnel{}, apperr.Wrap(apperr.BackingStoreFailure, "get funnel", err)
	}
	if !ok {
		return model.Funnel{}, apperr.New(apperr.NotFound, "funnel "+name+" does not exist")
	}
	var def model.Funnel
	if err := json.Unmarshal(raw, &def); err != nil {
		return model.Funnel{}, apperr.Wrap(apperr.BackingStoreFailure, "decode funnel", err)
	}
	def.Bucket, def.Name = bkt, name
	return def, nil
}

// Delete removes a saved funnel's single cell from the bucket's funnel row.
func Delete(ctx context.Context, s store.Store, owner, bkt, name string) error {
	return s.DeleteRelationColumn(ctx, store.FamilyRelation, funnelRow(owner, bkt), []byte(name))
}

// Step is one (event id, count) pair in an assembled funnel.
type Step struct {
	EventID fingerprint.ID
	Count   int64
}

// Assembly is the result of assembling a funnel: the plain totals
// sequence and its unique-visitor variant.
type Assembly struct {
	Funnel       []Step
	UniqueFunnel []Step
}

// Engine reads funnel counters for one bucket.
type Engine struct {
	Store       store.Store
	Owner, Bkt  string
}

// New returns an Engine scoped to (owner, bucket).
func New(s store.Store, owner, bucket string) *Engine {
	return &Engine{Store: s, Owner: owner, Bkt: bucket}
}

// counterSet holds the four counter families a funnel reads, decoded
// into per-event, per-property-value maps. read fetches the families one
// after another; within a family, all events' rows are requested in one
// GetCounterRows call.
type counterSet struct {
	totals       map[fingerprint.ID]map[keyspace.PropertyValueID]int64
	uniqueTotals map[fingerprint.ID]map[keyspace.PropertyValueID]int64
	paths        map[fingerprint.ID]map[keyspace.PropertyValueID]map[fingerprint.ID]int64
	uniquePaths  map[fingerprint.ID]map[keyspace.PropertyValueID]map[fingerprint.ID]int64
}

func (e *Engine) readEventFamily(ctx context.Context, role string, eventIDs []fingerprint.ID) (map[fingerprint.ID]map[keyspace.PropertyValueID]int64, error) {
	rows := make([]fingerprint.ID, len(eventIDs))
	for i, eid := range eventIDs {
		rows[i] = keyspace.RowKey{e.Owner, e.Bkt, role}.Shard(eid).Hash()
	}
	results, err := e.Store.GetCounterRows(ctx, store.FamilyCounter, rows)
	if err != nil {
		return nil, err
	}
	out := make(map[fingerprint.ID]map[keyspace.PropertyValueID]int64, len(eventIDs))
	for i, eid := range eventIDs {
		m := make(map[keyspace.PropertyValueID]int64)
		for col, n := range results[rows[i]] {
			b := []byte(col)
			if len(b) != 48 || fingerprint.FromBytes(b[0:16]) != eid {
				continue
			}
			var pid keyspace.PropertyValueID
			copy(pid[:], b[16:48])
			m[pid] += n
		}
		out[eid] = m
	}
	return out, nil
}

func (e *Engine) readPathFamily(ctx context.Context, role string, eventIDs []fingerprint.ID) (map[fingerprint.ID]map[keyspace.PropertyValueID]map[fingerprint.ID]int64, error) {
	rows := make([]fingerprint.ID, len(eventIDs))
	for i, eid := range eventIDs {
		rows[i] = keyspace.RowKey{e.Owner, e.Bkt, role}.Shard(eid).Hash()
	}
	results, err := e.Store.GetCounterRows(ctx, store.FamilyCounter, rows)
	if err != nil {
		return nil, err
	}
	out := make(map[fingerprint.ID]map[keyspace.PropertyValueID]map[fingerprint.ID]int64, len(eventIDs))
	for i, eid := range eventIDs {
		m := make(map[keyspace.PropertyValueID]map[fingerprint.ID]int64)
		for col, n := range results[rows[i]] {
			b := []byte(col)
			if len(b) != 64 || fingerprint.FromBytes(b[0:16]) != eid {
				continue
			}
			var pid keyspace.PropertyValueID
			copy(pid[:], b[16:48])
			prev := fingerprint.FromBytes(b[48:64])
			if m[pid] == nil {
				m[pid] = make(map[fingerprint.ID]int64)
			}
			m[pid][prev] += n
		}
		out[eid] = m
	}
	return out, nil
}

func (e *Engine) read(ctx context.Context, eventIDs []fingerprint.ID) (*counterSet, error) {
	totals, err := e.readEventFamily(ctx, keyspace.RoleEvent, eventIDs)
	if err != nil {
		return nil, err
	}
	uniqueTotals, err := e.readEventFamily(ctx, keyspace.RoleUniqueEvent, eventIDs)
	if err != nil {
		return nil, err
	}
	paths, err := e.readPathFamily(ctx, keyspace.RolePath, eventIDs)
	if err != nil {
		return nil, err
	}
	uniquePaths, err := e.readPathFamily(ctx, keyspace.RoleUniquePath, eventIDs)
	if err != nil {
		return nil, err
	}
	return &counterSet{totals: totals, uniqueTotals: uniqueTotals, paths: paths, uniquePaths: uniquePaths}, nil
}

// Assemble builds the no-property funnel and unique funnel for eventIDs
// (spec §4.5, "Assembly — no property"). Missing map entries default to
// 0; the sequence is never truncated.
func (e *Engine) Assemble(ctx context.Context, eventIDs []fingerprint.ID) (Assembly, error) {
	cs, err := e.read(ctx, eventIDs)
	if err != nil {
		return Assembly{}, err
	}
	return Assembly{
		Funnel:       assembleNoProperty(eventIDs, cs.totals, cs.paths),
		UniqueFunnel: assembleNoProperty(eventIDs, cs.uniqueTotals, cs.uniquePaths),
	}, nil
}

func assembleNoProperty(eventIDs []fingerprint.ID, totals map[fingerprint.ID]map[keyspace.PropertyValueID]int64, paths map[fingerprint.ID]map[keyspace.PropertyValueID]map[fingerprint.ID]int64) []Step {
	steps := make([]Step, len(eventIDs))
	steps[0] = Step{EventID: eventIDs[0], Count: totals[eventIDs[0]][keyspace.Z32]}
	for i := 1; i < len(eventIDs); i++ {
		steps[i] = Step{EventID: eventIDs[i], Count: paths[eventIDs[i]][keyspace.Z32][eventIDs[i-1]]}
	}
	return steps
}

// AssembleByProperty builds one per-value funnel for every property
// value id that appears in any of the collected totals maps (spec §4.5,
// "Assembly — with property"). A run truncates — stops — the first time
// a step's path map is missing the predecessor entirely; this is the
// deliberate asymmetry with the no-property case that §9 calls out.
func (e *Engine) AssembleByProperty(ctx context.Context, eventIDs []fingerprint.ID) (map[keyspace.PropertyValueID]Assembly, error) {
	cs, err := e.read(ctx, eventIDs)
	if err != nil {
		return nil, err
	}

	candidates := make(map[keyspace.PropertyValueID]bool)
	for _, m := range cs.totals {
		for pid := range m {
			if pid != keyspace.Z32 {
				candidates[pid] = true
			}
		}
	}

	out := make(map[keyspace.PropertyValueID]Assembly, len(candidates))
	for pid := range candidates {
		out[pid] = Assembly{
			Funnel:       assembleWithProperty(eventIDs, pid, cs.totals, cs.paths),
			UniqueFunnel: assembleWithProperty(eventIDs, pid, cs.uniqueTotals, cs.uniquePaths),
		}
	}
	return out, nil
}

func assembleWithProperty(eventIDs []fingerprint.ID, pid keyspace.PropertyValueID, totals map[fingerprint.ID]map[keyspace.PropertyValueID]int64, paths map[fingerprint.ID]map[keyspace.PropertyValueID]map[fingerprint.ID]int64) []Step {
	steps := []Step{{EventID: eventIDs[0], Count: totals[eventIDs[0]][pid]}}
	for i := 1; i < len(eventIDs); i++ {
		ei, prev := eventIDs[i], eventIDs[i-1]
		predMap, ok := paths[ei][pid]
		if !ok {
			break
		}
		count, ok := predMap[prev]
		if !ok {
			break
		}
		steps = append(steps, Step{EventID: ei, Count: count})
	}
	return steps
}
