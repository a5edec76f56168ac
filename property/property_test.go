package property

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hiidef/hiitrack/kernel"
	"github.com/hiidef/hiitrack/store/memstore"
	"github.com/hiidef/hiitrack/writebuffer"
)

func TestValuesAggregatesTotalsAcrossEvents(t *testing.T) {
	ms := memstore.New()
	log := zerolog.New(io.Discard)
	buf := writebuffer.New(ms, log, 0)
	k := kernel.New(ms, buf, log)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	props := []kernel.PropertyInput{{Name: "plan", Value: []byte(`"gold"`)}}
	if _, err := k.Ingest(ctx, "acme", "app1", "v1", []string{"signup"}, props, now); err != nil {
		t.Fatalf("ingest 1: %v", err)
	}
	if _, err := k.Ingest(ctx, "acme", "app1", "v2", []string{"signup", "purchase"}, props, now); err != nil {
		t.Fatalf("ingest 2: %v", err)
	}

	svc := New(ms)
	prefix, values, err := svc.Values(ctx, "acme", "app1", "plan")
	if err != nil {
		t.Fatalf("values: %v", err)
	}
	if prefix.IsZero() {
		t.Fatal("expected non-zero prefix")
	}
	if len(values) != 1 {
		t.Fatalf("expected exactly one value, got %d", len(values))
	}
	for _, v := range values {
		if string(v.Value) != `"gold"` {
			t.Fatalf("value = %s, want \"gold\"", v.Value)
		}
		if v.Total != 3 {
			t.Fatalf("total = %d, want 3 (2 signups + 1 purchase)", v.Total)
		}
	}
}
