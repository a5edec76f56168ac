// Package user implements user lifecycle: create, password
// verification, and cascading delete into every bucket the user owns.
//
// Grounded on original_source/hiitrack/models/user.py's UserModel and
// original_source/hiitrack/lib/hash.py's password_hash, with SHA-1
// swapped for SHA-256 and a random per-user salt — see SPEC_FULL.md's
// "User authentication" section and DESIGN.md for why.
package user

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/hiidef/hiitrack/apperr"
	"github.com/hiidef/hiitrack/bucket"
	"github.com/hiidef/hiitrack/fingerprint"
	"github.com/hiidef/hiitrack/keyspace"
	"github.com/hiidef/hiitrack/model"
	"github.com/hiidef/hiitrack/store"
)

const saltSize = 16

// passwordColumn is the single column a user's row in the user family
// carries: the salted hash.
var passwordColumn = []byte("password")

// Service is the user lifecycle's collaborators.
type Service struct {
	Store  store.Store
	Bucket *bucket.Service
	Log    zerolog.Logger
}

// New returns a Service wired to s and buckets.
func New(s store.Store, buckets *bucket.Service, log zerolog.Logger) *Service {
	return &Service{Store: s, Bucket: buckets, Log: log}
}

func userRow(name string) fingerprint.ID {
	return keyspace.RowKey{name}.Hash()
}

func hashPassword(name, password string, salt []byte) []byte {
	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte(":"))
	h.Write(salt)
	h.Write([]byte(":"))
	h.Write([]byte(password))
	return h.Sum(nil)
}

// Exists reports whether name has a stored password cell.
func (s *Service) Exists(ctx context.Context, name string) (bool, error) {
	_, ok, err := s.Store.GetRelation(ctx, store.FamilyUser, userRow(name), passwordColumn)
	if err != nil {
		return false, apperr.Wrap(apperr.BackingStoreFailure, "user exists probe", err)
	}
	return ok, nil
}

// Create stores a freshly salted password hash for name. Called for an
// existing name it overwrites the stored hash; the HTTP handler rejects a
// duplicate create with Conflict before reaching this.
func (s *Service) Create(ctx context.Context, name, password string) (model.User, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return model.User{}, apperr.Wrap(apperr.BackingStoreFailure, "generate salt", err)
	}
	hash := hashPassword(name, password, salt)
	value := append(append([]byte{}, salt...), hash...)
	if err := s.Store.FlushRelations(ctx, store.FamilyUser, []store.RelationWrite{
		{Row: userRow(name), Column: passwordColumn, Value: value},
	}); err != nil {
		return model.User{}, apperr.Wrap(apperr.BackingStoreFailure, "create user", err)
	}
	return model.User{Name: name, PasswordHash: hash, PasswordSalt: salt}, nil
}

// Validate reports whether password matches the stored hash for name.
// A missing user is not an error — it is simply invalid.
func (s *Service) Validate(ctx context.Context, name, password string) (bool, error) {
	stored, ok, err := s.Store.GetRelation(ctx, store.FamilyUser, userRow(name), passwordColumn)
	if err != nil {
		return false, apperr.Wrap(apperr.BackingStoreFailure, "get user password", err)
	}
	if !ok || len(stored) <= saltSize {
		return false, nil
	}
	salt, wantHash := stored[:saltSize], stored[saltSize:]
	gotHash := hashPassword(name, password, salt)
	return subtle.ConstantTimeCompare(gotHash, wantHash) == 1, nil
}

// Buckets returns the user's owned bucket names and descriptions.
func (s *Service) Buckets(ctx context.Context, name string) (map[string]string, error) {
	row := keyspace.RowKey{name, keyspace.RoleBucket}.Hash()
	cells, err := s.Store.GetRelationRow(ctx, store.FamilyRelation, row)
	if err != nil {
		return nil, apperr.Wrap(apperr.BackingStoreFailure, "get user buckets", err)
	}
	out := make(map[string]string, len(cells))
	for bucketName, raw := range cells {
		var decoded struct {
			Description string `json:"description"`
		}
		if err := json.Unmarshal(raw, &decoded); err != nil {
			continue
		}
		out[bucketName] = decoded.Description
	}
	return out, nil
}

// Delete cascades: destroy every bucket the user owns, then remove the
// user's own row.
func (s *Service) Delete(ctx context.Context, name string) error {
	buckets, err := s.Buckets(ctx, name)
	if err != nil {
		return err
	}
	for bucketName := range buckets {
		if err := s.Bucket.Destroy(ctx, name, bucketName); err != nil {
			return err
		}
	}
	if err := s.Store.DeleteRelationRow(ctx, store.FamilyUser, userRow(name)); err != nil {
		return apperr.Wrap(apperr.BackingStoreFailure, "delete user row", err)
	}
	return nil
}
