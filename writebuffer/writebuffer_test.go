package writebuffer

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hiidef/hiitrack/fingerprint"
	"github.com/hiidef/hiitrack/store"
	"github.com/hiidef/hiitrack/store/memstore"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestStageRelationLastWriteWins(t *testing.T) {
	ms := memstore.New()
	b := New(ms, testLogger(), 0)
	row := fingerprint.H("row")
	col := []byte("col")

	g := b.StageRelation(store.FamilyRelation, row, col, []byte("first"))
	b.StageRelation(store.FamilyRelation, row, col, []byte("second"))

	if err := b.Flush(context.Background(), g); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	v, ok, err := ms.GetRelation(context.Background(), store.FamilyRelation, row, col)
	if err != nil || !ok {
		t.Fatalf("expected relation present, err=%v ok=%v", err, ok)
	}
	if string(v) != "second" {
		t.Fatalf("expected last write to win, got %q", v)
	}
}

func TestStageCounterAdditive(t *testing.T) {
	ms := memstore.New()
	b := New(ms, testLogger(), 0)
	row := fingerprint.H("row")
	col := []byte("col")

	b.StageCounter(store.FamilyCounter, row, col, 3)
	g := b.StageCounter(store.FamilyCounter, row, col, 4)

	if err := b.Flush(context.Background(), g); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	got, err := ms.GetCounterRow(context.Background(), store.FamilyCounter, row)
	if err != nil {
		t.Fatalf("get counter row: %v", err)
	}
	if got[string(col)] != 7 {
		t.Fatalf("expected coalesced delta 7, got %d", got[string(col)])
	}
}

func TestFlushBroadcastsSameOutcomeToAllWaiters(t *testing.T) {
	ms := memstore.New()
	b := New(ms, testLogger(), 0)
	row := fingerprint.H("shared")
	col := []byte("col")

	g := b.StageCounter(store.FamilyCounter, row, col, 1)

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = b.Flush(context.Background(), g)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("waiter %d got error %v, want nil", i, err)
		}
	}
}

func TestStagersAfterFlushBelongToNextGeneration(t *testing.T) {
	ms := memstore.New()
	b := New(ms, testLogger(), 0)
	row := fingerprint.H("row")
	col := []byte("col")

	g1 := b.StageCounter(store.FamilyCounter, row, col, 1)
	if err := b.Flush(context.Background(), g1); err != nil {
		t.Fatalf("flush g1: %v", err)
	}

	g2 := b.StageCounter(store.FamilyCounter, row, col, 5)
	if g1 == g2 {
		t.Fatal("expected a new generation after the prior one flushed")
	}
	if err := b.Flush(context.Background(), g2); err != nil {
		t.Fatalf("flush g2: %v", err)
	}

	got, _ := ms.GetCounterRow(context.Background(), store.FamilyCounter, row)
	if got[string(col)] != 6 {
		t.Fatalf("expected cumulative 6 across generations, got %d", got[string(col)])
	}
}
