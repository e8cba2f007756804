package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hupe1980/carbonmesh/core"
	"github.com/redis/go-redis/v9"
)

// RedisStore persists session state as JSON hashes in Redis with a per
// session TTL, refreshed on every access. This bounds conversational memory
// instead of retaining it for the process lifetime.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOptions configure the Redis session store.
type RedisOptions struct {
	// TTL is the sliding expiry applied to every session key.
	TTL time.Duration
	// Prefix namespaces session keys.
	Prefix string
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client *redis.Client, optFns ...func(o *RedisOptions)) *RedisStore {
	opts := RedisOptions{TTL: 24 * time.Hour, Prefix: "carbonmesh:session:"}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &RedisStore{client: client, ttl: opts.TTL, prefix: opts.Prefix}
}

func (s *RedisStore) key(id string) string { return s.prefix + id }

// Get loads the session for id, creating an empty one if absent. The TTL is
// refreshed on every load.
func (s *RedisStore) Get(ctx context.Context, id string) (*core.Session, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		sess := core.NewSession(id)
		if err := s.save(ctx, sess); err != nil {
			return nil, err
		}
		return sess, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session %s: %w", id, err)
	}

	sess := core.NewSession(id)
	if err := json.Unmarshal(raw, sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	if err := s.client.Expire(ctx, s.key(id), s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("redis refresh ttl for %s: %w", id, err)
	}
	return sess, nil
}

// ApplyDelta merges the delta into the stored session state. The merge runs
// under a short optimistic transaction so concurrent writers never leave the
// state half-written.
func (s *RedisStore) ApplyDelta(ctx context.Context, id string, delta map[string]any) error {
	if len(delta) == 0 {
		return nil
	}
	key := s.key(id)
	txf := func(tx *redis.Tx) error {
		sess := core.NewSession(id)
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil {
			if err := json.Unmarshal(raw, sess); err != nil {
				return fmt.Errorf("decode session %s: %w", id, err)
			}
		}
		sess.ApplyStateDelta(delta)
		data, err := json.Marshal(sess)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}

	// Retry a few times on write contention.
	for i := 0; i < 5; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if err != redis.TxFailedErr {
			return fmt.Errorf("redis apply delta for %s: %w", id, err)
		}
	}
	return fmt.Errorf("redis apply delta for %s: too much contention", id)
}

// Delete removes the session.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("redis delete session %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) save(ctx context.Context, sess *core.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(sess.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis save session %s: %w", sess.ID, err)
	}
	return nil
}

var _ core.SessionStore = (*RedisStore)(nil)
