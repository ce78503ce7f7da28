// Package redis implements the lock store on Redis. SETNX with a TTL
// gives the conditional acquire-if-absent write and the defensive
// expiry in one call.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opencdh/datahub-in-go/pkg/locks"
)

const keyPrefix = "lock:"

// Ensure Store implements locks.Store
var _ locks.Store = (*Store)(nil)

// Store keeps locks as JSON values under lock:<id> keys.
type Store struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewStore creates a Redis lock store. Keys expire after the TTL so a
// crashed holder releases its locks eventually; a zero TTL keeps them
// until explicitly deleted.
func NewStore(client redis.UniversalClient, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Create inserts the lock if its key is absent.
func (s *Store) Create(ctx context.Context, lock locks.Lock) error {
	payload, err := json.Marshal(lock)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, keyPrefix+lock.ID, payload, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return locks.ErrLockExists
	}
	return nil
}

// Get returns the lock stored under the given ID.
func (s *Store) Get(ctx context.Context, id string) (locks.Lock, error) {
	payload, err := s.client.Get(ctx, keyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return locks.Lock{}, locks.ErrLockNotFound
	}
	if err != nil {
		return locks.Lock{}, err
	}
	var lock locks.Lock
	if err := json.Unmarshal([]byte(payload), &lock); err != nil {
		return locks.Lock{}, err
	}
	return lock, nil
}

// Delete removes the lock key. Absent keys are a no-op.
func (s *Store) Delete(ctx context.Context, lock locks.Lock) error {
	return s.client.Del(ctx, keyPrefix+lock.ID).Err()
}

// List scans all lock keys and returns their locks.
func (s *Store) List(ctx context.Context) ([]locks.Lock, error) {
	var out []locks.Lock
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		payload, err := s.client.Get(ctx, iter.Val()).Result()
		if errors.Is(err, redis.Nil) {
			// Expired between scan and get.
			continue
		}
		if err != nil {
			return nil, err
		}
		var lock locks.Lock
		if err := json.Unmarshal([]byte(payload), &lock); err != nil {
			return nil, err
		}
		out = append(out, lock)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
