package locks

import (
	"context"
	"errors"
)

// Store errors. Stores report conflicts and misses with these sentinels
// so the service can translate them for callers.
var (
	ErrLockExists   = errors.New("lock already exists")
	ErrLockNotFound = errors.New("lock not found")
)

// Store is the backing medium for locks. Any store offering a
// conditional, exclusive acquire-if-absent write suffices; expired
// entries must behave as absent.
type Store interface {
	// Create inserts the lock only if no live lock exists for its ID,
	// returning ErrLockExists otherwise.
	Create(ctx context.Context, lock Lock) error

	// Get returns the live lock with the given ID, or ErrLockNotFound.
	Get(ctx context.Context, id string) (Lock, error)

	// Delete removes the lock. Deleting an absent or expired lock is a
	// no-op.
	Delete(ctx context.Context, lock Lock) error

	// List returns all live locks, for operator inspection.
	List(ctx context.Context) ([]Lock, error)
}
