// Package property implements the read side of a bucket's property
// values (spec §4.5's property-view table entry): given a property
// name, resolve every value ever recorded for it and the value's
// cross-event total.
//
// Grounded on original_source/hiitrack/models/property.py's
// PropertyModel.get_values/get_totals and PropertyValueModel.get_total.
package property

import (
	"context"
	"encoding/json"

	"github.com/hiidef/hiitrack/apperr"
	"github.com/hiidef/hiitrack/fingerprint"
	"github.com/hiidef/hiitrack/keyspace"
	"github.com/hiidef/hiitrack/store"
)

// Value is one property value's recorded JSON payload and its
// cross-event total (summed over every event the value's slice
// appears under).
type Value struct {
	Value json.RawMessage
	Total int64
}

// Service reads a bucket's property values.
type Service struct {
	Store store.Store
}

// New returns a Service backed by s.
func New(s store.Store) *Service {
	return &Service{Store: s}
}

// Values returns the property name's id prefix and every value
// recorded for it, keyed by the value's full 32-byte id.
func (s *Service) Values(ctx context.Context, owner, bucket, name string) (fingerprint.ID, map[keyspace.PropertyValueID]Value, error) {
	prefix := fingerprint.H(name)

	row := keyspace.RowKey{owner, bucket, keyspace.RoleProperty}.Hash()
	cells, err := s.Store.GetRelationRow(ctx, store.FamilyRelation, row)
	if err != nil {
		return prefix, nil, apperr.Wrap(apperr.BackingStoreFailure, "get property values", err)
	}

	out := make(map[keyspace.PropertyValueID]Value)
	for col, raw := range cells {
		b := []byte(col)
		if len(b) != 32 {
			continue
		}
		var pid keyspace.PropertyValueID
		copy(pid[:], b)
		if pid.Prefix() != prefix {
			continue
		}
		out[pid] = Value{Value: json.RawMessage(raw)}
	}

	counterRow := keyspace.RowKey{owner, bucket, keyspace.RoleProperty}.Shard(prefix).Hash()
	counters, err := s.Store.GetCounterRow(ctx, store.FamilyCounter, counterRow)
	if err != nil {
		return prefix, nil, apperr.Wrap(apperr.BackingStoreFailure, "get property totals", err)
	}
	for col, n := range counters {
		b := []byte(col)
		if len(b) != 48 {
			continue
		}
		colPrefix := fingerprint.FromBytes(b[0:16])
		if colPrefix != prefix {
			continue
		}
		suffix := fingerprint.FromBytes(b[16:32])
		pid := keyspace.NewPropertyValueID(prefix, suffix)
		v := out[pid]
		v.Total += n
		out[pid] = v
	}

	return prefix, out, nil
}
