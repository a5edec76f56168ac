package event

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hiidef/hiitrack/fingerprint"
	"github.com/hiidef/hiitrack/kernel"
	"github.com/hiidef/hiitrack/store/memstore"
	"github.com/hiidef/hiitrack/writebuffer"
)

func TestViewNoProperty(t *testing.T) {
	ms := memstore.New()
	log := zerolog.New(io.Discard)
	buf := writebuffer.New(ms, log, 0)
	k := kernel.New(ms, buf, log)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	if _, err := k.Ingest(ctx, "acme", "app1", "v1", []string{"a", "b"}, nil, now); err != nil {
		t.Fatalf("ingest 1: %v", err)
	}
	if _, err := k.Ingest(ctx, "acme", "app1", "v2", []string{"a", "b"}, nil, now); err != nil {
		t.Fatalf("ingest 2: %v", err)
	}

	eng := New(ms, "acme", "app1")
	aID := fingerprint.H("a")
	bID := fingerprint.H("b")

	va, err := eng.View(ctx, aID, "a", "")
	if err != nil {
		t.Fatalf("view a: %v", err)
	}
	if va.Total != 2 || va.UniqueTotal != 2 {
		t.Fatalf("a totals = %d/%d, want 2/2", va.Total, va.UniqueTotal)
	}

	vb, err := eng.View(ctx, bID, "b", "")
	if err != nil {
		t.Fatalf("view b: %v", err)
	}
	if vb.Total != 2 {
		t.Fatalf("b total = %d, want 2", vb.Total)
	}
	if vb.Path[aID] != 2 {
		t.Fatalf("b path[a] = %d, want 2", vb.Path[aID])
	}
}
