package locks

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// Service manages the locking of items. A Service instance is scoped to
// one request; use ForRequest to derive the per-request instance.
type Service struct {
	store     Store
	requestID string
	count     int
	now       func() time.Time
}

// NewService creates a lock service over the given store.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// ForRequest returns a copy of the service tagged with the request ID
// and a reset lock counter.
func (s *Service) ForRequest(requestID string) *Service {
	return &Service{store: s.store, requestID: requestID, now: s.now}
}

// Acquire obtains a lock for the given item to prevent concurrent
// changes. It performs a single conditional write; on conflict it
// returns ResourceIsLockedError carrying the blocking lock.
func (s *Service) Acquire(ctx context.Context, itemID string, scope Scope, region, stage string, annotation map[string]any) (Lock, error) {
	lock := Lock{
		ID:         BuildID(itemID, scope, stage, region),
		Scope:      scope,
		AcquiredAt: s.now(),
		Annotation: annotation,
		RequestID:  s.requestID,
	}

	err := s.store.Create(ctx, lock)
	if err == nil {
		s.count++
		return lock, nil
	}
	if errors.Is(err, ErrLockExists) {
		log.Warn().Str("lock_id", lock.ID).Str("request_id", s.requestID).
			Msg("lock conflict detected")
		lockedErr := &ResourceIsLockedError{Requested: lock}
		// Between our create and this get the blocking lock may have
		// been released already; the conflict error is still accurate.
		if existing, getErr := s.store.Get(ctx, lock.ID); getErr == nil {
			lockedErr.Existing = &existing
		}
		return Lock{}, lockedErr
	}
	return Lock{}, err
}

// Release removes the given lock. Releasing an already-released or
// expired lock is a no-op, never an error, so cleanup code on failure
// paths can call it unconditionally.
func (s *Service) Release(ctx context.Context, lock Lock) error {
	if lock.ID == "" {
		return nil
	}
	if err := s.store.Delete(ctx, lock); err != nil && !errors.Is(err, ErrLockNotFound) {
		return err
	}
	if s.count > 0 {
		s.count--
	}
	return nil
}

// Count returns the number of locks this request currently holds.
func (s *Service) Count() int {
	return s.count
}

// List returns all currently held locks, for operator inspection.
func (s *Service) List(ctx context.Context) ([]Lock, error) {
	return s.store.List(ctx)
}
