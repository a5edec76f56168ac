// Package event implements the read side of a single event's view
// (spec §6: "Event view"): totals, unique totals, and path
// transitions, optionally split by a property's values or by a
// time interval.
//
// Grounded on original_source/hiitrack/models/event.py's get_total,
// get_unique_total, get_path, get_unique_path and their _timed
// variants, and original_source/hiitrack/controllers/event.py's _get.
package event

import (
	"context"
	"sort"
	"time"

	"github.com/hiidef/hiitrack/apperr"
	"github.com/hiidef/hiitrack/fingerprint"
	"github.com/hiidef/hiitrack/keyspace"
	"github.com/hiidef/hiitrack/property"
	"github.com/hiidef/hiitrack/store"
)

// Point is one interval-bucketed sample in a timed series.
type Point struct {
	Timestamp   time.Time
	Total       int64
	UniqueTotal int64
}

// PropertySlice is one property value's total under this event, used
// when the view is split by a property name.
type PropertySlice struct {
	ValueID keyspace.PropertyValueID
	Total   int64
}

// View is the assembled read-side answer for one event.
type View struct {
	ID          fingerprint.ID
	Name        string
	Total       int64
	UniqueTotal int64
	Path        map[fingerprint.ID]int64
	UniquePath  map[fingerprint.ID]int64

	// Values is populated instead of Total/UniqueTotal/Path/UniquePath
	// when a property name was requested: the event's totals broken
	// down per value of that property.
	PropertyID fingerprint.ID
	Values     []PropertySlice

	// Series is populated instead of the plain totals when a time
	// range was requested.
	Series []Point
}

// Engine reads one bucket's event counters.
type Engine struct {
	Store      store.Store
	Owner, Bkt string
}

// New returns an Engine scoped to (owner, bucket).
func New(s store.Store, owner, bucket string) *Engine {
	return &Engine{Store: s, Owner: owner, Bkt: bucket}
}

func (e *Engine) counterRow(ctx context.Context, role string, eid fingerprint.ID) (map[string]int64, error) {
	row := keyspace.RowKey{e.Owner, e.Bkt, role}.Shard(eid).Hash()
	return e.Store.GetCounterRow(ctx, store.FamilyCounter, row)
}

// totalsByProperty decodes an event/unique_event row into per-property-value totals.
func totalsByProperty(eid fingerprint.ID, cells map[string]int64) map[keyspace.PropertyValueID]int64 {
	out := make(map[keyspace.PropertyValueID]int64)
	for col, n := range cells {
		b := []byte(col)
		if len(b) != 48 {
			continue
		}
		if !sameID(b[0:16], eid) {
			continue
		}
		var pid keyspace.PropertyValueID
		copy(pid[:], b[16:48])
		out[pid] += n
	}
	return out
}

// pathsByProperty decodes a path/unique_path row into
// property-value -> predecessor -> count.
func pathsByProperty(eid fingerprint.ID, cells map[string]int64) map[keyspace.PropertyValueID]map[fingerprint.ID]int64 {
	out := make(map[keyspace.PropertyValueID]map[fingerprint.ID]int64)
	for col, n := range cells {
		b := []byte(col)
		if len(b) != 64 {
			continue
		}
		if !sameID(b[0:16], eid) {
			continue
		}
		var pid keyspace.PropertyValueID
		copy(pid[:], b[16:48])
		prev := fingerprint.FromBytes(b[48:64])
		if out[pid] == nil {
			out[pid] = make(map[fingerprint.ID]int64)
		}
		out[pid][prev] += n
	}
	return out
}

func sameID(b []byte, id fingerprint.ID) bool {
	return fingerprint.FromBytes(b) == id
}

// View assembles the event view for eid, named name. If propertyName is
// non-empty, the totals are split by that property's recorded values
// instead of the no-property (Z32) slice.
func (e *Engine) View(ctx context.Context, eid fingerprint.ID, name, propertyName string) (View, error) {
	v := View{ID: eid, Name: name}

	totalCells, err := e.counterRow(ctx, keyspace.RoleEvent, eid)
	if err != nil {
		return View{}, apperr.Wrap(apperr.BackingStoreFailure, "get event totals", err)
	}
	uniqueCells, err := e.counterRow(ctx, keyspace.RoleUniqueEvent, eid)
	if err != nil {
		return View{}, apperr.Wrap(apperr.BackingStoreFailure, "get event unique totals", err)
	}
	pathCells, err := e.counterRow(ctx, keyspace.RolePath, eid)
	if err != nil {
		return View{}, apperr.Wrap(apperr.BackingStoreFailure, "get event path", err)
	}
	uniquePathCells, err := e.counterRow(ctx, keyspace.RoleUniquePath, eid)
	if err != nil {
		return View{}, apperr.Wrap(apperr.BackingStoreFailure, "get event unique path", err)
	}

	totals := totalsByProperty(eid, totalCells)
	uniqueTotals := totalsByProperty(eid, uniqueCells)
	paths := pathsByProperty(eid, pathCells)
	uniquePaths := pathsByProperty(eid, uniquePathCells)

	if propertyName == "" {
		v.Total = totals[keyspace.Z32]
		v.UniqueTotal = uniqueTotals[keyspace.Z32]
		v.Path = paths[keyspace.Z32]
		v.UniquePath = uniquePaths[keyspace.Z32]
		return v, nil
	}

	props := property.New(e.Store)
	prefix, _, err := props.Values(ctx, e.Owner, e.Bkt, propertyName)
	if err != nil {
		return View{}, err
	}
	v.PropertyID = prefix
	for pid, total := range totals {
		if pid.Prefix() != prefix {
			continue
		}
		v.Values = append(v.Values, PropertySlice{ValueID: pid, Total: total})
	}
	sort.Slice(v.Values, func(i, j int) bool {
		return string(v.Values[i].ValueID[:]) < string(v.Values[j].ValueID[:])
	})
	return v, nil
}

// Timed assembles a time-bucketed series for eid between start and
// finish at the given interval (hour or day), optionally restricted to
// one property's values (aggregated across all of them).
func (e *Engine) Timed(ctx context.Context, eid fingerprint.ID, name, propertyName string, start, finish time.Time, interval keyspace.Interval) (View, error) {
	v := View{ID: eid, Name: name}

	totalRole, uniqueRole := keyspace.RoleHourlyEvent, keyspace.RoleHourlyUniqueEvent
	if interval == keyspace.Daily {
		totalRole, uniqueRole = keyspace.RoleDailyEvent, keyspace.RoleDailyUniqueEvent
	}

	var prefixFilter *fingerprint.ID
	if propertyName != "" {
		props := property.New(e.Store)
		prefix, _, err := props.Values(ctx, e.Owner, e.Bkt, propertyName)
		if err != nil {
			return View{}, err
		}
		v.PropertyID = prefix
		prefixFilter = &prefix
	}

	totalCells, err := e.counterRow(ctx, totalRole, eid)
	if err != nil {
		return View{}, apperr.Wrap(apperr.BackingStoreFailure, "get timed event totals", err)
	}
	uniqueCells, err := e.counterRow(ctx, uniqueRole, eid)
	if err != nil {
		return View{}, apperr.Wrap(apperr.BackingStoreFailure, "get timed event unique totals", err)
	}

	byTS := make(map[time.Time]*Point)
	decodeTimed := func(cells map[string]int64, unique bool) {
		for col, n := range cells {
			b := []byte(col)
			if len(b) != 52 {
				continue
			}
			if !sameID(b[0:16], eid) {
				continue
			}
			var ts [4]byte
			copy(ts[:], b[32:36])
			when := keyspace.UnpackTimestamp(ts, interval)
			if when.Before(start) || when.After(finish) {
				continue
			}
			prefix := fingerprint.FromBytes(b[16:32])
			suffix := fingerprint.FromBytes(b[36:52])
			pid := keyspace.NewPropertyValueID(prefix, suffix)
			if prefixFilter == nil {
				if !pid.IsZero() {
					continue
				}
			} else if pid.Prefix() != *prefixFilter {
				continue
			}
			p, ok := byTS[when]
			if !ok {
				p = &Point{Timestamp: when}
				byTS[when] = p
			}
			if unique {
				p.UniqueTotal += n
			} else {
				p.Total += n
			}
		}
	}
	decodeTimed(totalCells, false)
	decodeTimed(uniqueCells, true)

	for _, p := range byTS {
		v.Series = append(v.Series, *p)
	}
	sort.Slice(v.Series, func(i, j int) bool { return v.Series[i].Timestamp.Before(v.Series[j].Timestamp) })
	return v, nil
}
