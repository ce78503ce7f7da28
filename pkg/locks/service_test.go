package locks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store with the same conditional-create
// semantics as the real backends.
type memStore struct {
	mu    sync.Mutex
	locks map[string]Lock
}

func newMemStore() *memStore {
	return &memStore{locks: map[string]Lock{}}
}

func (s *memStore) Create(_ context.Context, lock Lock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.locks[lock.ID]; ok {
		return ErrLockExists
	}
	s.locks[lock.ID] = lock
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		return Lock{}, ErrLockNotFound
	}
	return lock, nil
}

func (s *memStore) Delete(_ context.Context, lock Lock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, lock.ID)
	return nil
}

func (s *memStore) List(_ context.Context) ([]Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Lock, 0, len(s.locks))
	for _, l := range s.locks {
		out = append(out, l)
	}
	return out, nil
}

func TestBuildID(t *testing.T) {
	tests := []struct {
		name     string
		itemID   string
		scope    Scope
		stage    string
		region   string
		expected string
	}{
		{
			name:     "full tuple",
			itemID:   "sales_orders",
			scope:    ScopeResource,
			stage:    "prod",
			region:   "eu-west-1",
			expected: "sales_orders_resource_prod_eu-west-1",
		},
		{
			name:     "key scope without stage",
			itemID:   "111122223333",
			scope:    ScopeKey,
			region:   "eu-west-1",
			expected: "111122223333_key_no_stage_eu-west-1",
		},
		{
			name:     "account scope without region or stage",
			itemID:   "111122223333",
			scope:    ScopeAccount,
			expected: "111122223333_account_no_stage_no_region",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BuildID(tt.itemID, tt.scope, tt.stage, tt.region))
		})
	}
}

func TestAcquireConflict(t *testing.T) {
	store := newMemStore()
	svc := NewService(store).ForRequest("req-1")

	winner, err := svc.Acquire(context.Background(), "ds1", ScopeResource, "eu-west-1", "prod", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, svc.Count())

	other := NewService(store).ForRequest("req-2")
	_, err = other.Acquire(context.Background(), "ds1", ScopeResource, "eu-west-1", "prod", nil)
	require.Error(t, err)

	var locked *ResourceIsLockedError
	require.ErrorAs(t, err, &locked)
	require.NotNil(t, locked.Existing)
	assert.Equal(t, winner.ID, locked.Existing.ID)
	assert.Equal(t, "req-1", locked.Existing.RequestID)
	assert.Equal(t, 0, other.Count())
}

func TestAcquireDifferentTuplesDoNotConflict(t *testing.T) {
	store := newMemStore()
	svc := NewService(store).ForRequest("req-1")

	_, err := svc.Acquire(context.Background(), "ds1", ScopeResource, "eu-west-1", "prod", nil)
	require.NoError(t, err)
	_, err = svc.Acquire(context.Background(), "ds1", ScopeResource, "eu-west-1", "dev", nil)
	require.NoError(t, err)
	_, err = svc.Acquire(context.Background(), "ds1", ScopeResource, "eu-central-1", "prod", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, svc.Count())
}

func TestConcurrentAcquireSingleWinner(t *testing.T) {
	store := newMemStore()

	const contenders = 16
	var wg sync.WaitGroup
	wins := make(chan Lock, contenders)
	losses := make(chan error, contenders)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			svc := NewService(store).ForRequest("req")
			lock, err := svc.Acquire(context.Background(), "ds1", ScopeResource, "eu-west-1", "prod", nil)
			if err != nil {
				losses <- err
				return
			}
			wins <- lock
		}(i)
	}
	wg.Wait()
	close(wins)
	close(losses)

	assert.Len(t, wins, 1, "exactly one contender may hold the lock")
	winner := <-wins
	for err := range losses {
		var locked *ResourceIsLockedError
		require.ErrorAs(t, err, &locked)
		if locked.Existing != nil {
			assert.Equal(t, winner.ID, locked.Existing.ID)
		}
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	store := newMemStore()
	svc := NewService(store).ForRequest("req-1")

	lock, err := svc.Acquire(context.Background(), "ds1", ScopeResource, "eu-west-1", "prod", nil)
	require.NoError(t, err)

	require.NoError(t, svc.Release(context.Background(), lock))
	require.NoError(t, svc.Release(context.Background(), lock))
	require.NoError(t, svc.Release(context.Background(), Lock{}))
	assert.Equal(t, 0, svc.Count())

	// the tuple is free again
	_, err = svc.Acquire(context.Background(), "ds1", ScopeResource, "eu-west-1", "prod", nil)
	assert.NoError(t, err)
}

func TestAcquireAnnotationRoundTrip(t *testing.T) {
	store := newMemStore()
	svc := NewService(store).ForRequest("req-1")
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	lock, err := svc.Acquire(context.Background(), "ds1", ScopeResource, "eu-west-1", "prod",
		map[string]any{"datasetId": "ds1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"datasetId": "ds1"}, lock.Annotation)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), lock.AcquiredAt)
}
