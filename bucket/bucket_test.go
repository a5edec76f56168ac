package bucket

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hiidef/hiitrack/kernel"
	"github.com/hiidef/hiitrack/store"
	"github.com/hiidef/hiitrack/store/memstore"
	"github.com/hiidef/hiitrack/writebuffer"
)

func newService() (*memstore.Store, *Service) {
	ms := memstore.New()
	return ms, New(ms, NewCache(1000), zerolog.New(io.Discard))
}

func TestCreateThenExists(t *testing.T) {
	ctx := context.Background()
	ms, svc := newService()
	_ = ms

	ok, err := svc.Exists(ctx, "acme", "app1")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if ok {
		t.Fatal("expected bucket to not exist before creation")
	}

	if _, err := svc.Create(ctx, "acme", "app1", "first bucket"); err != nil {
		t.Fatalf("create: %v", err)
	}

	ok, err = svc.Exists(ctx, "acme", "app1")
	if err != nil {
		t.Fatalf("exists after create: %v", err)
	}
	if !ok {
		t.Fatal("expected bucket to exist after creation")
	}

	desc, err := svc.Describe(ctx, "acme", "app1")
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if desc != "first bucket" {
		t.Fatalf("description = %q, want %q", desc, "first bucket")
	}
}

func TestExistsPopulatesCache(t *testing.T) {
	ctx := context.Background()
	ms, svc := newService()

	if err := ms.FlushRelations(ctx, store.FamilyRelation, []store.RelationWrite{
		{Row: bucketRelationRow("acme"), Column: []byte("app1"), Value: []byte(`{"description":""}`)},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if svc.Cache.has("acme", "app1") {
		t.Fatal("cache should be empty before the first exists probe")
	}
	ok, err := svc.Exists(ctx, "acme", "app1")
	if err != nil || !ok {
		t.Fatalf("exists: ok=%v err=%v", ok, err)
	}
	if !svc.Cache.has("acme", "app1") {
		t.Fatal("successful exists probe must populate the cache")
	}
}

// TestDestroyCascades reproduces spec §8 scenario E5: after destroy, the
// bucket no longer exists and no counter row under its key is non-empty
// across any shard.
func TestDestroyCascades(t *testing.T) {
	ctx := context.Background()
	ms, svc := newService()
	buf := writebuffer.New(ms, zerolog.New(io.Discard), 0)
	k := kernel.New(ms, buf, zerolog.New(io.Discard))

	if _, err := svc.Create(ctx, "acme", "app1", "desc"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := k.Ingest(ctx, "acme", "app1", "V1", []string{"A", "B"}, nil, time.Now()); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if err := svc.Destroy(ctx, "acme", "app1"); err != nil {
		t.Fatalf("destroy: %v", err)
	}

	ok, err := svc.Exists(ctx, "acme", "app1")
	if err != nil {
		t.Fatalf("exists after destroy: %v", err)
	}
	if ok {
		t.Fatal("bucket must not exist after destroy")
	}
	if svc.Cache.has("acme", "app1") {
		t.Fatal("destroy must evict the cache entry")
	}

	if n := ms.NonEmptyCounterRows(store.FamilyCounter); n != 0 {
		t.Fatalf("counter family has %d non-empty rows after destroy, want 0", n)
	}
}
