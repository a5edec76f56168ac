// Package fingerprint implements the 128-bit deterministic hash used
// throughout HiiTrack to derive stable ids for events, property names,
// property values, and visitors (spec §4.1).
//
// The original (original_source/hiitrack/lib/hash.py, pack_hash) uses
// CityHash128; that library is not present anywhere in the retrieved
// example pack, so this codec uses murmur3's 128-bit variant instead —
// both are non-cryptographic 128-bit hashes and the spec is explicit
// that the choice is not security-sensitive.
package fingerprint

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"
)

// Size is the byte length of a fingerprint.
const Size = 16

// ID is a 16-byte fingerprint.
type ID [Size]byte

// IsZero reports whether id is the all-zero fingerprint.
func (id ID) IsZero() bool {
	return id == ID{}
}

// Bytes returns id as a byte slice.
func (id ID) Bytes() []byte { return id[:] }

// H hashes one or more UTF-8 strings into a deterministic 16-byte
// fingerprint. Multiple strings are joined with the single-byte
// separator ":" before hashing, per spec §4.1.
func H(parts ...string) ID {
	var buf []byte
	for i, p := range parts {
		if i > 0 {
			buf = append(buf, ':')
		}
		buf = append(buf, p...)
	}
	hi, lo := murmur3.Sum128(buf)
	var id ID
	binary.BigEndian.PutUint64(id[0:8], hi)
	binary.BigEndian.PutUint64(id[8:16], lo)
	return id
}

// FromBytes reinterprets a 16-byte slice as an ID. It does not check the
// length: bytes past Size are ignored and a shorter b leaves the
// remaining bytes zero.
func FromBytes(b []byte) ID {
	var id ID
	copy(id[:], b)
	return id
}
