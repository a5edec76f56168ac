// Package writebuffer implements the process-wide write-coalescing
// buffer of spec §4.2: a pair of accumulators (last-write-wins
// relations, additive counters) that merge identical targets and flush
// to the backing store as one multi-key batch per kind.
//
// This generalizes original_source/hiitrack/lib/cassandra.py's Buffer
// class (relation/counter defaultdicts, flush_relation/flush_counter/
// flush via swap-and-clear) and borrows its batching shape from the
// teacher's analytics/ingestion.go Pipeline, which also coalesces many
// producers into bounded-size flushes.
package writebuffer

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hiidef/hiitrack/fingerprint"
	"github.com/hiidef/hiitrack/store"
)

// Generation is a flush epoch. Every stager that staged into the same
// generation observes that generation's single outcome (spec §4.2,
// §9's corrected Buffer.flush behaviour).
type Generation struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newGeneration() *Generation {
	return &Generation{done: make(chan struct{})}
}

type relEntry struct {
	family string
	row    fingerprint.ID
	column []byte
	value  []byte
}

type ctrEntry struct {
	family string
	row    fingerprint.ID
	column []byte
	delta  int64
}

// Buffer is the process-wide write-coalescing accumulator. It is safe
// for concurrent use by multiple in-flight ingests, per spec §5's
// shared-resource rules.
type Buffer struct {
	mu       sync.Mutex
	store    store.Store
	log      zerolog.Logger
	relTable map[string]relEntry
	ctrTable map[string]ctrEntry
	gen      *Generation

	// HighWaterMark bounds the accumulator before a stager is forced to
	// wait on a flush (spec §5 backpressure note — unbounded in the
	// original design, but an implementation "should add one").
	HighWaterMark int
}

// New returns an empty Buffer backed by s.
func New(s store.Store, log zerolog.Logger, highWaterMark int) *Buffer {
	return &Buffer{
		store:         s,
		log:           log,
		relTable:      make(map[string]relEntry),
		ctrTable:      make(map[string]ctrEntry),
		HighWaterMark: highWaterMark,
	}
}

func relKey(family string, row fingerprint.ID, column []byte) string {
	return family + "\x00" + string(row[:]) + "\x00" + string(column)
}

// StageRelation overwrites any prior staged value for the same
// (family, row, column) target and returns the generation it was staged
// into. The caller awaits that generation's Flush to know the write
// landed.
func (b *Buffer) StageRelation(family string, row fingerprint.ID, column []byte, value []byte) *Generation {
	b.mu.Lock()
	if b.gen == nil {
		b.gen = newGeneration()
	}
	g := b.gen
	b.relTable[relKey(family, row, column)] = relEntry{family: family, row: row, column: column, value: value}
	size := len(b.relTable) + len(b.ctrTable)
	b.mu.Unlock()
	b.maybeBackpressure(size, g)
	return g
}

// StageCounter adds delta to any prior staged delta for the same
// (family, row, column) target.
func (b *Buffer) StageCounter(family string, row fingerprint.ID, column []byte, delta int64) *Generation {
	b.mu.Lock()
	if b.gen == nil {
		b.gen = newGeneration()
	}
	g := b.gen
	key := relKey(family, row, column)
	e := b.ctrTable[key]
	e.family, e.row, e.column = family, row, column
	e.delta += delta
	b.ctrTable[key] = e
	size := len(b.relTable) + len(b.ctrTable)
	b.mu.Unlock()
	b.maybeBackpressure(size, g)
	return g
}

func (b *Buffer) maybeBackpressure(size int, g *Generation) {
	if b.HighWaterMark > 0 && size >= b.HighWaterMark {
		_ = b.Flush(context.Background(), g)
	}
}

// Flush ships the accumulated state for g as one multi-key batch per
// kind and clears the accumulator atomically with respect to new
// stagers (which land in a freshly created next generation). If g has
// already been flushed by a concurrent caller, Flush simply waits for
// that outcome — this is what gives every stager awaiting a given
// generation the same result.
func (b *Buffer) Flush(ctx context.Context, g *Generation) error {
	g.once.Do(func() {
		b.mu.Lock()
		relTable := b.relTable
		ctrTable := b.ctrTable
		b.relTable = make(map[string]relEntry)
		b.ctrTable = make(map[string]ctrEntry)
		b.gen = nil
		b.mu.Unlock()
		g.err = b.doFlush(ctx, relTable, ctrTable)
		close(g.done)
	})
	select {
	case <-g.done:
		return g.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Buffer) doFlush(ctx context.Context, relTable map[string]relEntry, ctrTable map[string]ctrEntry) error {
	relByFamily := make(map[string][]store.RelationWrite)
	for _, e := range relTable {
		relByFamily[e.family] = append(relByFamily[e.family], store.RelationWrite{Row: e.row, Column: e.column, Value: e.value})
	}
	ctrByFamily := make(map[string][]store.CounterDelta)
	for _, e := range ctrTable {
		ctrByFamily[e.family] = append(ctrByFamily[e.family], store.CounterDelta{Row: e.row, Column: e.column, Delta: e.delta})
	}

	for family, writes := range relByFamily {
		if err := b.store.FlushRelations(ctx, family, writes); err != nil {
			b.log.Error().Err(err).Str("family", family).Int("count", len(writes)).Msg("relation flush failed")
			return err
		}
	}
	for family, deltas := range ctrByFamily {
		if err := b.store.FlushCounters(ctx, family, deltas); err != nil {
			b.log.Error().Err(err).Str("family", family).Int("count", len(deltas)).Msg("counter flush failed")
			return err
		}
	}
	return nil
}
