// Package redisstore keeps authentication sessions in Redis so several
// server instances can share them and expiry is enforced by the server
// rather than by a sweeper.
package redisstore

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zeebo/blake3"

	"github.com/mohamed2108268/Smart-Access/internal/access/store"
	"github.com/mohamed2108268/Smart-Access/internal/access/types"
)

const (
	defaultPrefix = "smart-access:session:"
	maxCASRetries = 8
)

// SessionStore implements store.SessionStore on Redis.  Tokens never hit
// the keyspace in clear text: keys are the BLAKE3 digest of the token.
type SessionStore struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewSessionStore(rdb redis.UniversalClient, prefix string) *SessionStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &SessionStore{rdb: rdb, prefix: prefix}
}

func (s *SessionStore) key(token string) string {
	sum := blake3.Sum256([]byte(token))
	return s.prefix + hex.EncodeToString(sum[:])
}

func (s *SessionStore) Create(ctx context.Context, sess store.Session, ttl time.Duration) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, s.key(sess.Token), b, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return store.ErrDuplicate
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, token string) (store.Session, error) {
	b, err := s.rdb.Get(ctx, s.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return store.Session{}, store.ErrNotFound
	}
	if err != nil {
		return store.Session{}, fmt.Errorf("redis get: %w", err)
	}
	return decode(token, b)
}

func (s *SessionStore) Replace(ctx context.Context, token string, expect types.Stage, next store.Session, ttl time.Duration) error {
	next.Token = token
	b, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	key := s.key(token)
	return s.cas(ctx, key, func(tx *redis.Tx, cur store.Session) error {
		if cur.Stage != expect {
			return store.ErrStageConflict
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, ttl)
			return nil
		})
		return err
	}, token)
}

func (s *SessionStore) Delete(ctx context.Context, token string, expect types.Stage) (bool, error) {
	key := s.key(token)
	if expect == "" {
		n, err := s.rdb.Del(ctx, key).Result()
		if err != nil {
			return false, fmt.Errorf("redis del: %w", err)
		}
		return n == 1, nil
	}

	var deleted bool
	err := s.cas(ctx, key, func(tx *redis.Tx, cur store.Session) error {
		if cur.Stage != expect {
			return nil
		}
		cmds, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		if err != nil {
			return err
		}
		if n, _ := cmds[0].(*redis.IntCmd).Result(); n == 1 {
			deleted = true
		}
		return nil
	}, token)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return deleted, err
}

// cas runs fn under WATCH on key, retrying when another client changed the
// key between the read and the EXEC.
func (s *SessionStore) cas(ctx context.Context, key string, fn func(tx *redis.Tx, cur store.Session) error, token string) error {
	txf := func(tx *redis.Tx) error {
		b, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("redis get: %w", err)
		}
		cur, err := decode(token, b)
		if err != nil {
			return err
		}
		return fn(tx, cur)
	}

	for i := 0; i < maxCASRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return store.ErrStageConflict
}

func decode(token string, b []byte) (store.Session, error) {
	var sess store.Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return store.Session{}, fmt.Errorf("decode session: %w", err)
	}
	sess.Token = token
	return sess, nil
}
