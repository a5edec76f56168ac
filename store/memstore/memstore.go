// Package memstore is an in-memory fake of store.Store, used by
// kernel/funnel/bucket unit tests so they don't need a live Redis —
// the same role the teacher's table-driven tests play with fakes of
// their own collaborators.
package memstore

import (
	"context"
	"sync"

	"github.com/hiidef/hiitrack/fingerprint"
	"github.com/hiidef/hiitrack/store"
)

type row = map[string]int64

// Store is a mutex-guarded in-memory implementation of store.Store.
type Store struct {
	mu        sync.Mutex
	relations map[string]map[fingerprint.ID]map[string][]byte
	counters  map[string]map[fingerprint.ID]row
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		relations: make(map[string]map[fingerprint.ID]map[string][]byte),
		counters:  make(map[string]map[fingerprint.ID]row),
	}
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) FlushRelations(ctx context.Context, family string, writes []store.RelationWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fam, ok := s.relations[family]
	if !ok {
		fam = make(map[fingerprint.ID]map[string][]byte)
		s.relations[family] = fam
	}
	for _, w := range writes {
		r, ok := fam[w.Row]
		if !ok {
			r = make(map[string][]byte)
			fam[w.Row] = r
		}
		r[string(w.Column)] = append([]byte(nil), w.Value...)
	}
	return nil
}

func (s *Store) FlushCounters(ctx context.Context, family string, deltas []store.CounterDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fam, ok := s.counters[family]
	if !ok {
		fam = make(map[fingerprint.ID]row)
		s.counters[family] = fam
	}
	for _, d := range deltas {
		r, ok := fam[d.Row]
		if !ok {
			r = make(row)
			fam[d.Row] = r
		}
		r[string(d.Column)] += d.Delta
	}
	return nil
}

func (s *Store) GetRelation(ctx context.Context, family string, rowID fingerprint.ID, column []byte) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fam, ok := s.relations[family]
	if !ok {
		return nil, false, nil
	}
	r, ok := fam[rowID]
	if !ok {
		return nil, false, nil
	}
	v, ok := r[string(column)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *Store) GetRelationRow(ctx context.Context, family string, rowID fingerprint.ID) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]byte)
	fam, ok := s.relations[family]
	if !ok {
		return out, nil
	}
	for k, v := range fam[rowID] {
		out[k] = append([]byte(nil), v...)
	}
	return out, nil
}

func (s *Store) GetCounterRow(ctx context.Context, family string, rowID fingerprint.ID) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64)
	fam, ok := s.counters[family]
	if !ok {
		return out, nil
	}
	for k, v := range fam[rowID] {
		out[k] = v
	}
	return out, nil
}

func (s *Store) GetCounterRows(ctx context.Context, family string, rows []fingerprint.ID) (map[fingerprint.ID]map[string]int64, error) {
	out := make(map[fingerprint.ID]map[string]int64, len(rows))
	for _, r := range rows {
		m, err := s.GetCounterRow(ctx, family, r)
		if err != nil {
			return nil, err
		}
		out[r] = m
	}
	return out, nil
}

func (s *Store) DeleteRelationColumn(ctx context.Context, family string, rowID fingerprint.ID, column []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fam, ok := s.relations[family]; ok {
		if r, ok := fam[rowID]; ok {
			delete(r, string(column))
		}
	}
	return nil
}

func (s *Store) DeleteRelationRow(ctx context.Context, family string, rowID fingerprint.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fam, ok := s.relations[family]; ok {
		delete(fam, rowID)
	}
	return nil
}

func (s *Store) DeleteCounterRow(ctx context.Context, family string, rowID fingerprint.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fam, ok := s.counters[family]; ok {
		delete(fam, rowID)
	}
	return nil
}

// NonEmptyCounterRows reports how many counter rows under family are
// non-empty — used by bucket-destroy tests to assert full cascade
// deletion (spec E5).
func (s *Store) NonEmptyCounterRows(family string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.counters[family] {
		if len(r) > 0 {
			n++
		}
	}
	return n
}
