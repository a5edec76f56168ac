package keyspace

import (
	"testing"
	"time"

	"github.com/hiidef/hiitrack/fingerprint"
)

func TestRowKeyHashDeterministic(t *testing.T) {
	k1 := RowKey{"acme", "b1", RoleEvent}
	k2 := RowKey{"acme", "b1", RoleEvent}
	if k1.Hash() != k2.Hash() {
		t.Fatal("identical row key tuples must hash identically")
	}
}

func TestShardUsesFirstByteOfID(t *testing.T) {
	id := fingerprint.H("click")
	k := RowKey{"acme", "b1", RoleEvent}
	sharded := k.Shard(id)
	if sharded[len(sharded)-1] != string([]byte{id[0]}) {
		t.Fatal("shard segment must equal id[0]")
	}
}

func TestPropertyValueIDPrefixRoundtrip(t *testing.T) {
	name := fingerprint.H("color")
	value := fingerprint.H(`"red"`)
	pid := NewPropertyValueID(name, value)
	if pid.Prefix() != name {
		t.Fatal("prefix must equal the name fingerprint")
	}
	if pid.Suffix() != value {
		t.Fatal("suffix must equal the value fingerprint")
	}
}

func TestZ32IsZero(t *testing.T) {
	if !Z32.IsZero() {
		t.Fatal("Z32 must report IsZero")
	}
}

func TestPackTimestampRoundtrip(t *testing.T) {
	ts := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	packed := PackTimestamp(ts, Hourly)
	back := UnpackTimestamp(packed, Hourly)
	expected := ts.Truncate(time.Hour)
	if !back.Equal(expected) {
		t.Fatalf("expected %v, got %v", expected, back)
	}
}

func TestColumnLayoutLengths(t *testing.T) {
	id := fingerprint.H("a")
	pid := NewPropertyValueID(fingerprint.H("p"), fingerprint.H("v"))
	ts := PackTimestamp(time.Now(), Daily)

	if got := len(EventColumn(id, pid)); got != 48 {
		t.Fatalf("EventColumn length = %d, want 48", got)
	}
	if got := len(TimedEventColumn(id, pid, ts)); got != 52 {
		t.Fatalf("TimedEventColumn length = %d, want 52", got)
	}
	if got := len(PathColumn(id, pid, id)); got != 64 {
		t.Fatalf("PathColumn length = %d, want 64", got)
	}
	if got := len(TimedPathColumn(id, pid, ts, id)); got != 68 {
		t.Fatalf("TimedPathColumn length = %d, want 68", got)
	}
	if got := len(PropertyColumn(pid, id)); got != 48 {
		t.Fatalf("PropertyColumn length = %d, want 48", got)
	}
	if got := len(VisitorEventColumn(id, id)); got != 32 {
		t.Fatalf("VisitorEventColumn length = %d, want 32", got)
	}
	if got := len(VisitorPathColumn(id, id, id)); got != 48 {
		t.Fatalf("VisitorPathColumn length = %d, want 48", got)
	}
	if got := len(VisitorPropertyColumn(id, pid)); got != 48 {
		t.Fatalf("VisitorPropertyColumn length = %d, want 48", got)
	}
}
