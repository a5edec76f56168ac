// Package store defines the backing wide-column store abstraction that
// spec §2 describes only as "a sharded wide-column store". This
// repository names it concretely: three column families (user,
// relation, counter), each row addressed by a 16-byte fingerprint and
// holding column-id → value cells (see SPEC_FULL.md, "Backing store").
package store

import (
	"context"

	"github.com/hiidef/hiitrack/fingerprint"
)

// RelationWrite is one last-write-wins cell destined for the relation
// (or user) family.
type RelationWrite struct {
	Row    fingerprint.ID
	Column []byte
	Value  []byte
}

// CounterDelta is one additive increment destined for the counter family.
type CounterDelta struct {
	Row    fingerprint.ID
	Column []byte
	Delta  int64
}

// Store is the backing wide-column store's contract. Row ids are always
// pre-hashed fingerprints (keyspace.RowKey.Hash()) — the store itself
// knows nothing about row-key tuples or column-id layouts.
type Store interface {
	// FlushRelations writes a batch of last-write-wins cells as a single
	// multi-key operation, per spec §4.2.
	FlushRelations(ctx context.Context, family string, writes []RelationWrite) error

	// FlushCounters applies a batch of counter deltas as a single
	// multi-key operation. Each cell's increment is atomic (spec §5).
	FlushCounters(ctx context.Context, family string, deltas []CounterDelta) error

	// GetRelation reads a single cell from the relation (or user) family.
	GetRelation(ctx context.Context, family string, row fingerprint.ID, column []byte) ([]byte, bool, error)

	// GetRelationRow reads every cell of one relation row, keyed by the
	// raw column-id bytes — used to list every value under a bucket's
	// event/property_name/property rows (§6 bucket and property views).
	GetRelationRow(ctx context.Context, family string, row fingerprint.ID) (map[string][]byte, error)

	// GetCounterRow reads every cell of one counter row, keyed by the raw
	// column-id bytes (as a string, since []byte is not comparable).
	GetCounterRow(ctx context.Context, family string, row fingerprint.ID) (map[string]int64, error)

	// GetCounterRows reads several counter rows of the same family in
	// parallel, mirroring the "one multi-key batch" read pattern of
	// spec §4.3 step 1 and §4.5's per-event fan-out read.
	GetCounterRows(ctx context.Context, family string, rows []fingerprint.ID) (map[fingerprint.ID]map[string]int64, error)

	// DeleteRelationColumn deletes a single cell from a relation row,
	// leaving the row's other columns intact — used to remove one
	// bucket's entry from its owner's shared bucket row (§4.4 destroy).
	DeleteRelationColumn(ctx context.Context, family string, row fingerprint.ID, column []byte) error

	// DeleteRelationRow deletes an entire relation-family row.
	DeleteRelationRow(ctx context.Context, family string, row fingerprint.ID) error

	// DeleteCounterRow deletes an entire counter-family row.
	DeleteCounterRow(ctx context.Context, family string, row fingerprint.ID) error

	// Ping verifies connectivity to the backing store.
	Ping(ctx context.Context) error
}

// Column-family names, per spec §6's "Persisted layout".
const (
	FamilyUser     = "user"
	FamilyRelation = "relation"
	FamilyCounter  = "counter"
)
