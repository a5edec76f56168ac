// Package visitor implements per-visitor state (spec §4.6): which
// events a visitor has performed, with what ordered predecessors, and
// which properties they hold. Read once at the start of an ingest,
// never mid-batch — grounded on original_source/hiitrack/models/visitor.py's
// get_metadata/add_property/increment_path/increment_total.
package visitor

import (
	"context"

	"github.com/hiidef/hiitrack/fingerprint"
	"github.com/hiidef/hiitrack/keyspace"
	"github.com/hiidef/hiitrack/store"
	"github.com/hiidef/hiitrack/writebuffer"
)

// Scope names the (owner, bucket) a visitor belongs to, since a
// visitor's id is bucket-scoped (spec §3).
type Scope struct {
	Owner  string
	Bucket string
}

func (s Scope) row(role string, vid fingerprint.ID) fingerprint.ID {
	return keyspace.RowKey{s.Owner, s.Bucket, role}.Shard(vid).Hash()
}

// Metadata is the visitor's prior state as seen at the start of an
// ingest: event totals, path transition counts, and held property ids.
type Metadata struct {
	Totals     map[fingerprint.ID]int64
	Paths      map[fingerprint.ID]map[fingerprint.ID]int64
	Properties map[keyspace.PropertyValueID]int64
}

// HasEvent reports whether the visitor has ever performed eid.
func (m *Metadata) HasEvent(eid fingerprint.ID) bool {
	_, ok := m.Totals[eid]
	return ok
}

// HasPath reports whether the visitor has ever transitioned prev -> new.
func (m *Metadata) HasPath(newEid, prevEid fingerprint.ID) bool {
	_, ok := m.Paths[newEid][prevEid]
	return ok
}

// HasProperty reports whether the visitor already holds pid.
func (m *Metadata) HasProperty(pid keyspace.PropertyValueID) bool {
	_, ok := m.Properties[pid]
	return ok
}

// Load performs the one parallel fan-out read of the three sharded
// visitor counter rows (visitor_event, visitor_path, visitor_property)
// that spec §4.3 step 1 and §4.6 call for.
func Load(ctx context.Context, s store.Store, scope Scope, vid fingerprint.ID) (*Metadata, error) {
	rows := []fingerprint.ID{
		scope.row(keyspace.RoleVisitorEvent, vid),
		scope.row(keyspace.RoleVisitorPath, vid),
		scope.row(keyspace.RoleVisitorProperty, vid),
	}
	results, err := s.GetCounterRows(ctx, store.FamilyCounter, rows)
	if err != nil {
		return nil, err
	}

	m := &Metadata{
		Totals:     make(map[fingerprint.ID]int64),
		Paths:      make(map[fingerprint.ID]map[fingerprint.ID]int64),
		Properties: make(map[keyspace.PropertyValueID]int64),
	}

	for col, n := range results[rows[0]] {
		if len(col) != 32 || fingerprint.FromBytes([]byte(col)[0:16]) != vid {
			continue
		}
		eid := fingerprint.FromBytes([]byte(col)[16:32])
		m.Totals[eid] += n
	}
	for col, n := range results[rows[1]] {
		if len(col) != 48 || fingerprint.FromBytes([]byte(col)[0:16]) != vid {
			continue
		}
		b := []byte(col)
		newEid := fingerprint.FromBytes(b[16:32])
		prevEid := fingerprint.FromBytes(b[32:48])
		if m.Paths[newEid] == nil {
			m.Paths[newEid] = make(map[fingerprint.ID]int64)
		}
		m.Paths[newEid][prevEid] += n
	}
	for col, n := range results[rows[2]] {
		if len(col) != 48 || fingerprint.FromBytes([]byte(col)[0:16]) != vid {
			continue
		}
		var pid keyspace.PropertyValueID
		copy(pid[:], []byte(col)[16:48])
		m.Properties[pid] += n
	}
	return m, nil
}

// StageIncrementTotal stages the visitor's own per-event counter.
func StageIncrementTotal(buf *writebuffer.Buffer, scope Scope, vid, eid fingerprint.ID) *writebuffer.Generation {
	row := scope.row(keyspace.RoleVisitorEvent, vid)
	column := keyspace.VisitorEventColumn(vid, eid)
	return buf.StageCounter(store.FamilyCounter, row, column, 1)
}

// StageIncrementPath stages the visitor's own transition counter.
func StageIncrementPath(buf *writebuffer.Buffer, scope Scope, vid, newEid, prevEid fingerprint.ID) *writebuffer.Generation {
	row := scope.row(keyspace.RoleVisitorPath, vid)
	column := keyspace.VisitorPathColumn(vid, newEid, prevEid)
	return buf.StageCounter(store.FamilyCounter, row, column, 1)
}

// StageAddProperty stages presence of pid for the visitor — the cell's
// magnitude is never consulted, only whether it exists (spec §4.6).
func StageAddProperty(buf *writebuffer.Buffer, scope Scope, vid fingerprint.ID, pid keyspace.PropertyValueID) *writebuffer.Generation {
	row := scope.row(keyspace.RoleVisitorProperty, vid)
	column := keyspace.VisitorPropertyColumn(vid, pid)
	return buf.StageCounter(store.FamilyCounter, row, column, 1)
}
