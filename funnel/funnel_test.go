package funnel

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hiidef/hiitrack/apperr"
	"github.com/hiidef/hiitrack/fingerprint"
	"github.com/hiidef/hiitrack/kernel"
	"github.com/hiidef/hiitrack/model"
	"github.com/hiidef/hiitrack/store/memstore"
	"github.com/hiidef/hiitrack/writebuffer"
)

func setup() (*memstore.Store, *kernel.Kernel) {
	ms := memstore.New()
	buf := writebuffer.New(ms, zerolog.New(io.Discard), 0)
	return ms, kernel.New(ms, buf, zerolog.New(io.Discard))
}

// TestFunnelWithoutProperty reproduces spec §8 scenario E3.
func TestFunnelWithoutProperty(t *testing.T) {
	ms, k := setup()
	ctx := context.Background()
	now := time.Now()

	if _, err := k.Ingest(ctx, "u", "b", "V1", []string{"A", "B", "C"}, nil, now); err != nil {
		t.Fatalf("V1 ingest: %v", err)
	}
	if _, err := k.Ingest(ctx, "u", "b", "V2", []string{"A", "B"}, nil, now); err != nil {
		t.Fatalf("V2 ingest: %v", err)
	}

	eventIDs := []fingerprint.ID{fingerprint.H("A"), fingerprint.H("B"), fingerprint.H("C")}
	eng := New(ms, "u", "b")
	assembly, err := eng.Assemble(ctx, eventIDs)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	want := []int64{2, 2, 1}
	for i, step := range assembly.Funnel {
		if step.Count != want[i] {
			t.Errorf("funnel[%d] = %d, want %d", i, step.Count, want[i])
		}
	}
	for i, step := range assembly.UniqueFunnel {
		if step.Count != want[i] {
			t.Errorf("unique_funnel[%d] = %d, want %d", i, step.Count, want[i])
		}
	}
}

// TestFunnelWithProperty reproduces spec §8 scenario E4.
func TestFunnelWithProperty(t *testing.T) {
	ms, k := setup()
	ctx := context.Background()
	now := time.Now()

	prop := []kernel.PropertyInput{{Name: "P", Value: json.RawMessage(`"X"`)}}

	if _, err := k.Ingest(ctx, "u", "b", "V1", []string{"A", "B", "C"}, nil, now); err != nil {
		t.Fatalf("V1 events: %v", err)
	}
	if _, err := k.Ingest(ctx, "u", "b", "V1", nil, prop, now); err != nil {
		t.Fatalf("V1 property: %v", err)
	}
	if _, err := k.Ingest(ctx, "u", "b", "V2", []string{"A", "B"}, nil, now); err != nil {
		t.Fatalf("V2 events: %v", err)
	}
	if _, err := k.Ingest(ctx, "u", "b", "V2", nil, prop, now); err != nil {
		t.Fatalf("V2 property: %v", err)
	}
	if _, err := k.Ingest(ctx, "u", "b", "V3", []string{"A", "B", "C"}, nil, now); err != nil {
		t.Fatalf("V3 events: %v", err)
	}

	eventIDs := []fingerprint.ID{fingerprint.H("A"), fingerprint.H("B"), fingerprint.H("C")}
	eng := New(ms, "u", "b")
	byProp, err := eng.AssembleByProperty(ctx, eventIDs)
	if err != nil {
		t.Fatalf("assemble by property: %v", err)
	}

	if len(byProp) != 1 {
		t.Fatalf("expected exactly one property value, got %d", len(byProp))
	}
	var assembly Assembly
	for _, a := range byProp {
		assembly = a
	}

	want := []int64{2, 2, 1}
	if len(assembly.Funnel) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(assembly.Funnel))
	}
	for i, step := range assembly.Funnel {
		if step.Count != want[i] {
			t.Errorf("funnels[X][%d] = %d, want %d", i, step.Count, want[i])
		}
	}
}

func TestSaveLoadDeleteRoundTrips(t *testing.T) {
	ms, _ := setup()
	ctx := context.Background()

	def := model.Funnel{
		Bucket:      "b",
		Name:        "signup-flow",
		Description: "signup to purchase",
		EventIDs:    []fingerprint.ID{fingerprint.H("A"), fingerprint.H("B")},
	}
	if err := Save(ctx, ms, "u", def); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := Load(ctx, ms, "u", "b", "signup-flow")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Description != def.Description || len(got.EventIDs) != 2 {
		t.Fatalf("loaded definition mismatch: %+v", got)
	}

	if err := Delete(ctx, ms, "u", "b", "signup-flow"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := Load(ctx, ms, "u", "b", "signup-flow"); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}
}
