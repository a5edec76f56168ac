// Package model holds the entity types of spec §3: User, Bucket, Event,
// PropertyName, PropertyValue, Visitor, Funnel — plain structs in the
// teacher's flat-struct-with-json-tags convention, grounded on the field
// sets of original_source/hiitrack/models/*.py.
package model

import (
	"encoding/json"

	"github.com/hiidef/hiitrack/fingerprint"
	"github.com/hiidef/hiitrack/keyspace"
)

// User owns buckets; authenticated via HTTP Basic against a salted hash.
type User struct {
	Name         string `json:"name"`
	PasswordHash []byte `json:"-"`
	PasswordSalt []byte `json:"-"`
}

// Bucket is a namespace, identified by (Owner, Name).
type Bucket struct {
	Owner       string `json:"owner"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Event is a named occurrence inside a bucket. Id is H(name) alone —
// spec §3 states this explicitly and justifies it (multiple buckets may
// share an id; the bucket segment in every row key disambiguates). See
// DESIGN.md for why this is followed over §9's contradictory note.
type Event struct {
	Bucket string        `json:"-"`
	Name   string        `json:"name"`
	ID     fingerprint.ID `json:"id"`
}

// NewEvent derives an Event's id from its name.
func NewEvent(bucket, name string) Event {
	return Event{Bucket: bucket, Name: name, ID: fingerprint.H(name)}
}

// PropertyName is a named trait; PrefixID is the 16-byte id every value
// of this property shares as the first half of its PropertyValue id.
type PropertyName struct {
	Bucket   string        `json:"-"`
	Name     string        `json:"name"`
	PrefixID fingerprint.ID `json:"id"`
}

// NewPropertyName derives a PropertyName's prefix id from its name.
func NewPropertyName(bucket, name string) PropertyName {
	return PropertyName{Bucket: bucket, Name: name, PrefixID: fingerprint.H(name)}
}

// PropertyValue is one concrete (name, value) pair. Value is arbitrary
// JSON, stored as raw bytes so it round-trips without reinterpretation.
type PropertyValue struct {
	Bucket       string                  `json:"-"`
	PropertyName string                  `json:"property"`
	Value        json.RawMessage         `json:"value"`
	ID           keyspace.PropertyValueID `json:"id"`
}

// NewPropertyValue derives a PropertyValue's composite id: the property
// name's prefix id concatenated with a fingerprint of the value's JSON
// encoding (spec §3, invariant 2).
func NewPropertyValue(bucket, propertyName string, value json.RawMessage) PropertyValue {
	prefix := fingerprint.H(propertyName)
	suffix := fingerprint.H(string(value))
	return PropertyValue{
		Bucket:       bucket,
		PropertyName: propertyName,
		Value:        value,
		ID:           keyspace.NewPropertyValueID(prefix, suffix),
	}
}

// Visitor is an opaque client-chosen identifier scoped to a bucket.
type Visitor struct {
	Owner     string        `json:"-"`
	Bucket    string        `json:"-"`
	VisitorID string        `json:"visitor_id"`
	ID        fingerprint.ID `json:"-"`
}

// NewVisitor derives a Visitor's id, bucket-scoped per spec §3.
func NewVisitor(owner, bucket, visitorID string) Visitor {
	return Visitor{
		Owner:     owner,
		Bucket:    bucket,
		VisitorID: visitorID,
		ID:        fingerprint.H(owner, bucket, visitorID),
	}
}

// Funnel is an ordered list of >= 2 event ids, optionally split by a
// property name.
type Funnel struct {
	Bucket       string          `json:"-"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	EventIDs     []fingerprint.ID `json:"event_ids"`
	PropertyName string          `json:"property,omitempty"`
}
