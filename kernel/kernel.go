// Package kernel implements the aggregation fan-out of spec §4.3 — the
// heart of the system: on ingest, expand a batch of event names and
// property values for one visitor into every counter increment the five
// materialised views require.
//
// Grounded on original_source/hiitrack/models/event.py's batch_add (the
// per-event fan-out, including the hourly/daily repeat and the path
// loop) and original_source/hiitrack/models/property.py's
// PropertyValueModel.batch_add (the back-fill loop over a visitor's
// prior events when a brand-new property value arrives).
package kernel

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/hiidef/hiitrack/fingerprint"
	"github.com/hiidef/hiitrack/keyspace"
	"github.com/hiidef/hiitrack/store"
	"github.com/hiidef/hiitrack/visitor"
	"github.com/hiidef/hiitrack/writebuffer"
)

// PropertyInput is one (name, value) pair submitted with an ingest.
type PropertyInput struct {
	Name  string
	Value json.RawMessage
}

// Kernel owns the collaborators an ingest needs: the backing store for
// reads, and the write buffer every stage call targets.
type Kernel struct {
	Store  store.Store
	Buffer *writebuffer.Buffer
	Log    zerolog.Logger
}

// New returns a Kernel wired to s and buf.
func New(s store.Store, buf *writebuffer.Buffer, log zerolog.Logger) *Kernel {
	return &Kernel{Store: s, Buffer: buf, Log: log}
}

// Result is what an ingest hands back once the flush has been
// acknowledged: the visitor id and the list of resolved event ids, in
// case the caller (e.g. the batch handler) needs them.
type Result struct {
	VisitorID fingerprint.ID
	EventIDs  []fingerprint.ID
}

// Ingest runs the full §4.3 fan-out for one visitor's batch of event
// names and property values, then flushes the write buffer. now is the
// ingest wall-clock used to bucket the hourly/daily variants.
func (k *Kernel) Ingest(ctx context.Context, owner, bucket, visitorIDString string, eventNames []string, properties []PropertyInput, now time.Time) (Result, error) {
	scope := visitor.Scope{Owner: owner, Bucket: bucket}
	vid := fingerprint.H(owner, bucket, visitorIDString)

	meta, err := visitor.Load(ctx, k.Store, scope, vid)
	if err != nil {
		return Result{}, err
	}

	ing := &ingest{k: k, owner: owner, bkt: bucket, scope: scope, vid: vid, meta: meta, now: now}

	// Properties first — in their entirety — per spec §4.3's ordering rule.
	ing.processProperties(properties)

	eventIDs := make([]fingerprint.ID, 0, len(eventNames))
	for _, name := range eventNames {
		eventIDs = append(eventIDs, ing.processEvent(name))
	}

	if ing.gen == nil {
		// Empty batch: still a valid no-op (spec §8 boundary behaviour);
		// nothing was staged so there is nothing to flush.
		return Result{VisitorID: vid, EventIDs: eventIDs}, nil
	}
	if err := k.Buffer.Flush(ctx, ing.gen); err != nil {
		return Result{}, err
	}
	return Result{VisitorID: vid, EventIDs: eventIDs}, nil
}

// z32 is the 32-byte "no property" sentinel, widened to a PropertyValueID.
var z32 = keyspace.Z32

// ingest carries the in-memory state of one batch as it is processed:
// the live visitor totals/paths (mutated as events are walked, so later
// events in the same batch observe earlier ones — spec §4.3's ordering
// note) and the visitor's held property ids, extended as new ones are
// introduced this batch.
type ingest struct {
	k     *Kernel
	owner string
	bkt   string
	scope visitor.Scope
	vid   fingerprint.ID
	meta  *visitor.Metadata
	now   time.Time
	gen   *writebuffer.Generation
}

func (ing *ingest) stageCounter(role string, shardOn fingerprint.ID, column []byte, delta int64) {
	row := keyspace.RowKey{ing.owner, ing.bkt, role}.Shard(shardOn).Hash()
	ing.gen = ing.k.Buffer.StageCounter(store.FamilyCounter, row, column, delta)
}

// stageRelation stages a cell in a bucket-scoped relation row. Unlike
// counter rows, relation rows (event, property, property_name, funnel)
// are not sharded — each bucket owns exactly one row per family,
// scanned or filtered by column prefix (see bucket.Service.Events,
// bucket.Service.PropertyNames).
func (ing *ingest) stageRelation(role string, column []byte, value []byte) {
	row := keyspace.RowKey{ing.owner, ing.bkt, role}.Hash()
	ing.gen = ing.k.Buffer.StageRelation(store.FamilyRelation, row, column, value)
}

// processProperties implements spec §4.3 steps 2-3: every property value
// the visitor does not already hold back-fills the global event/path
// counters with the visitor's prior counts, then is recorded as held.
// A property id repeated within the same batch is only processed once.
func (ing *ingest) processProperties(properties []PropertyInput) {
	seen := make(map[keyspace.PropertyValueID]bool)
	for _, p := range properties {
		pv := keyspace.NewPropertyValueID(fingerprint.H(p.Name), fingerprint.H(string(p.Value)))
		if seen[pv] {
			continue
		}
		seen[pv] = true
		if ing.meta.HasProperty(pv) {
			continue
		}

		// Back-fill: every event the visitor has already performed gets
		// this property's slice amplified by the visitor's existing count.
		for eid, count := range ing.meta.Totals {
			ing.stageCounter(keyspace.RoleEvent, eid, keyspace.EventColumn(eid, pv), count)
			ing.stageCounter(keyspace.RoleUniqueEvent, eid, keyspace.EventColumn(eid, pv), 1)
		}
		for newEid, preds := range ing.meta.Paths {
			for prevEid, count := range preds {
				ing.stageCounter(keyspace.RolePath, newEid, keyspace.PathColumn(newEid, pv, prevEid), count)
				ing.stageCounter(keyspace.RoleUniquePath, newEid, keyspace.PathColumn(newEid, pv, prevEid), 1)
			}
		}

		nameID := fingerprint.H(p.Name)
		ing.stageRelation(keyspace.RolePropertyName, nameID[:], []byte(p.Name))
		ing.stageRelation(keyspace.RoleProperty, pv[:], p.Value)

		ing.gen = visitor.StageAddProperty(ing.k.Buffer, ing.scope, ing.vid, pv)
		ing.meta.Properties[pv] = 1
	}
}

// processEvent implements spec §4.3 step 4: stage the event relation
// row, increment totals/uniques (Z32 and every held property slice),
// walk the path loop against the visitor's prior (and same-batch)
// events, and repeat all of it for the hourly/daily views.
func (ing *ingest) processEvent(name string) fingerprint.ID {
	eid := fingerprint.H(name)
	unique := !ing.meta.HasEvent(eid)

	ing.stageRelation(keyspace.RoleEvent, eid[:], []byte(name))

	ing.bumpEvent(keyspace.RoleEvent, keyspace.RoleUniqueEvent, eid, unique)
	ing.bumpTimedEvent(keyspace.RoleHourlyEvent, keyspace.RoleHourlyUniqueEvent, eid, unique, keyspace.Hourly)
	ing.bumpTimedEvent(keyspace.RoleDailyEvent, keyspace.RoleDailyUniqueEvent, eid, unique, keyspace.Daily)

	for prevEid := range ing.meta.Totals {
		uniquePath := unique || !ing.meta.HasPath(eid, prevEid)
		ing.bumpPath(keyspace.RolePath, keyspace.RoleUniquePath, eid, prevEid, uniquePath)
		ing.bumpTimedPath(keyspace.RoleHourlyPath, keyspace.RoleHourlyUniquePath, eid, prevEid, uniquePath, keyspace.Hourly)
		ing.bumpTimedPath(keyspace.RoleDailyPath, keyspace.RoleDailyUniquePath, eid, prevEid, uniquePath, keyspace.Daily)
		ing.gen = visitor.StageIncrementPath(ing.k.Buffer, ing.scope, ing.vid, eid, prevEid)
	}

	ing.gen = visitor.StageIncrementTotal(ing.k.Buffer, ing.scope, ing.vid, eid)

	// Update in-memory state so later events in this same batch observe
	// this event as a predecessor (spec §4.3's ordering note).
	if ing.meta.Paths[eid] == nil {
		ing.meta.Paths[eid] = make(map[fingerprint.ID]int64)
	}
	for prevEid := range ing.meta.Totals {
		ing.meta.Paths[eid][prevEid]++
	}
	ing.meta.Totals[eid]++

	return eid
}

// bumpEvent increments the Z32 (no-property) total/unique slice and
// every held property's slice for eid.
func (ing *ingest) bumpEvent(totalRole, uniqueRole string, eid fingerprint.ID, unique bool) {
	ing.stageCounter(totalRole, eid, keyspace.EventColumn(eid, z32), 1)
	if unique {
		ing.stageCounter(uniqueRole, eid, keyspace.EventColumn(eid, z32), 1)
	}
	for pv := range ing.meta.Properties {
		ing.stageCounter(totalRole, eid, keyspace.EventColumn(eid, pv), 1)
		if unique {
			ing.stageCounter(uniqueRole, eid, keyspace.EventColumn(eid, pv), 1)
			ing.stageCounter(keyspace.RoleProperty, pv.Prefix(), keyspace.PropertyColumn(pv, eid), 1)
		}
	}
}

func (ing *ingest) bumpTimedEvent(totalRole, uniqueRole string, eid fingerprint.ID, unique bool, interval keyspace.Interval) {
	ts := keyspace.PackTimestamp(ing.now, interval)
	ing.stageCounter(totalRole, eid, keyspace.TimedEventColumn(eid, z32, ts), 1)
	if unique {
		ing.stageCounter(uniqueRole, eid, keyspace.TimedEventColumn(eid, z32, ts), 1)
	}
	for pv := range ing.meta.Properties {
		ing.stageCounter(totalRole, eid, keyspace.TimedEventColumn(eid, pv, ts), 1)
		if unique {
			ing.stageCounter(uniqueRole, eid, keyspace.TimedEventColumn(eid, pv, ts), 1)
		}
	}
}

// bumpPath increments the Z32 and per-property path/unique_path slices
// for the transition prevEid -> eid.
func (ing *ingest) bumpPath(pathRole, uniquePathRole string, eid, prevEid fingerprint.ID, uniquePath bool) {
	ing.stageCounter(pathRole, eid, keyspace.PathColumn(eid, z32, prevEid), 1)
	if uniquePath {
		ing.stageCounter(uniquePathRole, eid, keyspace.PathColumn(eid, z32, prevEid), 1)
	}
	for pv := range ing.meta.Properties {
		ing.stageCounter(pathRole, eid, keyspace.PathColumn(eid, pv, prevEid), 1)
		if uniquePath {
			ing.stageCounter(uniquePathRole, eid, keyspace.PathColumn(eid, pv, prevEid), 1)
		}
	}
}

func (ing *ingest) bumpTimedPath(pathRole, uniquePathRole string, eid, prevEid fingerprint.ID, uniquePath bool, interval keyspace.Interval) {
	ts := keyspace.PackTimestamp(ing.now, interval)
	ing.stageCounter(pathRole, eid, keyspace.TimedPathColumn(eid, z32, ts, prevEid), 1)
	if uniquePath {
		ing.stageCounter(uniquePathRole, eid, keyspace.TimedPathColumn(eid, z32, ts, prevEid), 1)
	}
	for pv := range ing.meta.Properties {
		ing.stageCounter(pathRole, eid, keyspace.TimedPathColumn(eid, pv, ts, prevEid), 1)
		if uniquePath {
			ing.stageCounter(uniquePathRole, eid, keyspace.TimedPathColumn(eid, pv, ts, prevEid), 1)
		}
	}
}
