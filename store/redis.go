package store

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hiidef/hiitrack/apperr"
	"github.com/hiidef/hiitrack/config"
	"github.com/hiidef/hiitrack/fingerprint"
)

// RedisStore implements Store over Redis hashes: a backing-store row is
// a single Redis hash, keyed by "<family>:<base64(rowid)>", whose fields
// are base64-encoded column ids. This adapts the teacher's
// redisclient.Client construction (New/Ping) into the Store contract
// SPEC_FULL.md names.
type RedisStore struct {
	c *redis.Client
}

// NewRedis creates a Store backed by Redis, parsed from cfg.RedisURL —
// the same redis.ParseURL/redis.NewClient sequence as the teacher's
// redisclient.New.
func NewRedis(cfg *config.Config) (*RedisStore, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return &RedisStore{c: redis.NewClient(opt)}, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.c.Ping(ctx).Err()
}

func redisKey(family string, row fingerprint.ID) string {
	return family + ":" + base64.RawURLEncoding.EncodeToString(row[:])
}

func fieldName(column []byte) string {
	return base64.RawURLEncoding.EncodeToString(column)
}

func (s *RedisStore) FlushRelations(ctx context.Context, family string, writes []RelationWrite) error {
	if len(writes) == 0 {
		return nil
	}
	pipe := s.c.Pipeline()
	for _, w := range writes {
		pipe.HSet(ctx, redisKey(family, w.Row), fieldName(w.Column), w.Value)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return apperr.Wrap(apperr.BackingStoreFailure, "flush relations", err)
	}
	return nil
}

func (s *RedisStore) FlushCounters(ctx context.Context, family string, deltas []CounterDelta) error {
	if len(deltas) == 0 {
		return nil
	}
	pipe := s.c.Pipeline()
	for _, d := range deltas {
		pipe.HIncrBy(ctx, redisKey(family, d.Row), fieldName(d.Column), d.Delta)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return apperr.Wrap(apperr.BackingStoreFailure, "flush counters", err)
	}
	return nil
}

func (s *RedisStore) GetRelation(ctx context.Context, family string, row fingerprint.ID, column []byte) ([]byte, bool, error) {
	v, err := s.c.HGet(ctx, redisKey(family, row), fieldName(column)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperr.Wrap(apperr.BackingStoreFailure, "get relation", err)
	}
	return v, true, nil
}

func (s *RedisStore) GetRelationRow(ctx context.Context, family string, row fingerprint.ID) (map[string][]byte, error) {
	raw, err := s.c.HGetAll(ctx, redisKey(family, row)).Result()
	if err != nil {
		return nil, apperr.Wrap(apperr.BackingStoreFailure, "get relation row", err)
	}
	out := make(map[string][]byte, len(raw))
	for field, v := range raw {
		column, err := base64.RawURLEncoding.DecodeString(field)
		if err != nil {
			continue
		}
		out[string(column)] = []byte(v)
	}
	return out, nil
}

func (s *RedisStore) GetCounterRow(ctx context.Context, family string, row fingerprint.ID) (map[string]int64, error) {
	raw, err := s.c.HGetAll(ctx, redisKey(family, row)).Result()
	if err != nil {
		return nil, apperr.Wrap(apperr.BackingStoreFailure, "get counter row", err)
	}
	out := make(map[string]int64, len(raw))
	for field, v := range raw {
		column, err := base64.RawURLEncoding.DecodeString(field)
		if err != nil {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[string(column)] = n
	}
	return out, nil
}

func (s *RedisStore) GetCounterRows(ctx context.Context, family string, rows []fingerprint.ID) (map[fingerprint.ID]map[string]int64, error) {
	type result struct {
		row fingerprint.ID
		m   map[string]int64
		err error
	}
	ch := make(chan result, len(rows))
	for _, row := range rows {
		go func(row fingerprint.ID) {
			m, err := s.GetCounterRow(ctx, family, row)
			ch <- result{row: row, m: m, err: err}
		}(row)
	}
	out := make(map[fingerprint.ID]map[string]int64, len(rows))
	var firstErr error
	for range rows {
		r := <-ch
		if r.err != nil && firstErr == nil {
			firstErr = r.err
		}
		out[r.row] = r.m
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (s *RedisStore) DeleteRelationColumn(ctx context.Context, family string, row fingerprint.ID, column []byte) error {
	if err := s.c.HDel(ctx, redisKey(family, row), fieldName(column)).Err(); err != nil {
		return apperr.Wrap(apperr.BackingStoreFailure, "delete relation column", err)
	}
	return nil
}

func (s *RedisStore) DeleteRelationRow(ctx context.Context, family string, row fingerprint.ID) error {
	if err := s.c.Del(ctx, redisKey(family, row)).Err(); err != nil {
		return apperr.Wrap(apperr.BackingStoreFailure, "delete relation row", err)
	}
	return nil
}

func (s *RedisStore) DeleteCounterRow(ctx context.Context, family string, row fingerprint.ID) error {
	if err := s.c.Del(ctx, redisKey(family, row)).Err(); err != nil {
		return apperr.Wrap(apperr.BackingStoreFailure, "delete counter row", err)
	}
	return nil
}
