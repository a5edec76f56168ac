// Package keyspace composes the row-key and column-id layouts described
// in spec §4.1: row keys are tuples of ASCII segments (a user-supplied
// name or a literal role tag) hashed down to a backing-store key via
// fingerprint.H, and column ids are fixed-width concatenations of id
// fragments and, for timed variants, a 4-byte timestamp.
//
// This mirrors original_source/hiitrack/lib/cassandra.py's pack_hash(key)
// for row keys and pack_hour/pack_day/pack_timestamp for timed columns.
package keyspace

import (
	"encoding/binary"
	"time"

	"github.com/hiidef/hiitrack/fingerprint"
)

// Role tags — the closed set of literal segments spec §4.1 names.
const (
	RoleBucket            = "bucket"
	RoleEvent             = "event"
	RoleUniqueEvent       = "unique_event"
	RoleHourlyEvent       = "hourly_event"
	RoleDailyEvent        = "daily_event"
	RoleHourlyUniqueEvent = "hourly_unique_event"
	RoleDailyUniqueEvent  = "daily_unique_event"
	RolePath              = "path"
	RoleUniquePath        = "unique_path"
	RoleHourlyPath        = "hourly_path"
	RoleDailyPath         = "daily_path"
	RoleHourlyUniquePath  = "hourly_unique_path"
	RoleDailyUniquePath   = "daily_unique_path"
	RoleProperty          = "property"
	RolePropertyName      = "property_name"
	RoleFunnel            = "funnel"
	RoleVisitorEvent      = "visitor_event"
	RoleVisitorPath       = "visitor_path"
	RoleVisitorProperty   = "visitor_property"
)

// Interval selects the bucketing width for a timed variant.
type Interval int

const (
	Hourly Interval = 3600
	Daily  Interval = 86400
)

// RowKey is a tuple of ASCII segments; Hash derives the actual
// backing-store key, exactly as the original's pack_hash(key) does.
type RowKey []string

// Shard appends a one-byte shard segment equal to id[0], per spec §4.1's
// shard discipline — every counter row carries this trailing segment.
// Relation rows do not: each bucket owns one unsharded row per family,
// filtered by column prefix where a scan is needed.
func (k RowKey) Shard(id fingerprint.ID) RowKey {
	shard := make(RowKey, len(k)+1)
	copy(shard, k)
	shard[len(k)] = string([]byte{id[0]})
	return shard
}

// ShardByte appends a one-byte shard segment given directly.
func (k RowKey) ShardByte(b byte) RowKey {
	shard := make(RowKey, len(k)+1)
	copy(shard, k)
	shard[len(k)] = string([]byte{b})
	return shard
}

// Hash derives the backing-store row key: fingerprint.H of the segments
// joined with ":", matching original_source/hiitrack/lib/cassandra.py's
// pack_hash(key).
func (k RowKey) Hash() fingerprint.ID {
	return fingerprint.H([]string(k)...)
}

// AllShards yields the 256 possible shard bytes, used by bucket destroy
// (spec §4.4) to iterate every shard of a counter family.
func AllShards() []byte {
	shards := make([]byte, 256)
	for i := range shards {
		shards[i] = byte(i)
	}
	return shards
}

// PropertyValueID is the 32-byte composite id of a property value: the
// 16-byte name-prefix id concatenated with the 16-byte value-suffix id
// (spec §3, invariant 2 — id composability).
type PropertyValueID [32]byte

// Z32 is the thirty-two-byte zero sentinel used as the "no property"
// property-value id in column layouts.
var Z32 PropertyValueID

// NewPropertyValueID builds a PropertyValueID from its two 16-byte halves.
func NewPropertyValueID(namePrefix, valueSuffix fingerprint.ID) PropertyValueID {
	var pid PropertyValueID
	copy(pid[0:16], namePrefix[:])
	copy(pid[16:32], valueSuffix[:])
	return pid
}

// Prefix returns the 16-byte property-name prefix carried in the id's
// first half — any scan by this prefix returns exactly the values of
// that property (invariant 2).
func (p PropertyValueID) Prefix() fingerprint.ID {
	return fingerprint.FromBytes(p[0:16])
}

func (p PropertyValueID) Suffix() fingerprint.ID {
	return fingerprint.FromBytes(p[16:32])
}

func (p PropertyValueID) IsZero() bool { return p == Z32 }

// PackTimestamp packs unix_seconds // interval as a 4-byte big-endian
// integer, per spec §4.1 and the §9 design note to preserve this exact
// layout regardless of the original's inconsistent epoch handling.
func PackTimestamp(t time.Time, interval Interval) [4]byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(t.Unix()/int64(interval)))
	return buf
}

// UnpackTimestamp reverses PackTimestamp, returning the start instant of
// the bucket the packed value names.
func UnpackTimestamp(buf [4]byte, interval Interval) time.Time {
	bucket := binary.BigEndian.Uint32(buf[:])
	return time.Unix(int64(bucket)*int64(interval), 0).UTC()
}

// --- Column id layouts, per the family table in spec §4.1 ---

// EventColumn builds the event/unique_event column id: id(16) || pid(32).
// The full 32-byte property-value id is carried (not just its 16-byte
// name prefix) so a funnel's with-property assembly can split by
// specific value, matching the width path's column already uses and
// Z32's own width; see DESIGN.md for this reading of spec §4.1's table.
func EventColumn(id fingerprint.ID, pid PropertyValueID) []byte {
	out := make([]byte, 0, 48)
	out = append(out, id[:]...)
	out = append(out, pid[:]...)
	return out
}

// TimedEventColumn builds the hourly_event/daily_event column id:
// id(16) || pid[0:16](16) || ts(4) || pid[16:32](16).
func TimedEventColumn(id fingerprint.ID, pid PropertyValueID, ts [4]byte) []byte {
	out := make([]byte, 0, 52)
	out = append(out, id[:]...)
	out = append(out, pid[0:16]...)
	out = append(out, ts[:]...)
	out = append(out, pid[16:32]...)
	return out
}

// PathColumn builds the path/unique_path column id: id(16) || pid(32) || eid(16).
func PathColumn(id fingerprint.ID, pid PropertyValueID, eid fingerprint.ID) []byte {
	out := make([]byte, 0, 64)
	out = append(out, id[:]...)
	out = append(out, pid[:]...)
	out = append(out, eid[:]...)
	return out
}

// TimedPathColumn builds the hourly_path/daily_path column id:
// id(16) || pid[0:16](16) || ts(4) || pid[16:32](16) || eid(16).
func TimedPathColumn(id fingerprint.ID, pid PropertyValueID, ts [4]byte, eid fingerprint.ID) []byte {
	out := make([]byte, 0, 68)
	out = append(out, id[:]...)
	out = append(out, pid[0:16]...)
	out = append(out, ts[:]...)
	out = append(out, pid[16:32]...)
	out = append(out, eid[:]...)
	return out
}

// PropertyColumn builds the property-family counter column id:
// pid_prefix(16) || vid_suffix(16) || eid(16).
func PropertyColumn(pid PropertyValueID, eid fingerprint.ID) []byte {
	out := make([]byte, 0, 48)
	out = append(out, pid[0:16]...)
	out = append(out, pid[16:32]...)
	out = append(out, eid[:]...)
	return out
}

// VisitorEventColumn builds the visitor_event column id: vid(16) || eid(16).
func VisitorEventColumn(vid, eid fingerprint.ID) []byte {
	out := make([]byte, 0, 32)
	out = append(out, vid[:]...)
	out = append(out, eid[:]...)
	return out
}

// VisitorPathColumn builds the visitor_path column id:
// vid(16) || new_eid(16) || prev_eid(16).
func VisitorPathColumn(vid, newEid, prevEid fingerprint.ID) []byte {
	out := make([]byte, 0, 48)
	out = append(out, vid[:]...)
	out = append(out, newEid[:]...)
	out = append(out, prevEid[:]...)
	return out
}

// VisitorPropertyColumn builds the visitor_property column id: vid(16) || pid(32).
func VisitorPropertyColumn(vid fingerprint.ID, pid PropertyValueID) []byte {
	out := make([]byte, 0, 48)
	out = append(out, vid[:]...)
	out = append(out, pid[:]...)
	return out
}
