// Package gorm implements the lock store on the catalog database. The
// primary-key constraint on the locks table provides the conditional
// acquire-if-absent write.
package gorm

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/opencdh/datahub-in-go/pkg/locks"
	"github.com/opencdh/datahub-in-go/pkg/model"
)

// Ensure Store implements locks.Store
var _ locks.Store = (*Store)(nil)

// Store persists locks in the catalog's locks table. Rows older than the
// TTL are treated as expired: a crashed holder cannot wedge an entity
// forever.
type Store struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewStore creates a lock store with a defensive TTL. A zero TTL
// disables expiry.
func NewStore(db *gorm.DB, ttl time.Duration) *Store {
	return &Store{db: db, ttl: ttl, now: time.Now}
}

// Create inserts the lock if no live lock exists for its ID.
func (s *Store) Create(ctx context.Context, lock locks.Lock) error {
	entry, err := toEntry(lock)
	if err != nil {
		return err
	}

	// Claim expired rows in place before the conditional insert. A
	// failed reap must surface, or expiry silently stops working.
	if s.ttl > 0 {
		reap := s.db.WithContext(ctx).
			Where("lock_id = ? AND timestamp < ?", lock.ID, s.now().Add(-s.ttl)).
			Delete(&model.LockEntry{})
		if reap.Error != nil {
			return reap.Error
		}
	}

	tx := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entry)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return locks.ErrLockExists
	}
	return nil
}

// Get returns the live lock with the given ID.
func (s *Store) Get(ctx context.Context, id string) (locks.Lock, error) {
	var entry model.LockEntry
	tx := s.db.WithContext(ctx).Where("lock_id = ?", id).First(&entry)
	if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		return locks.Lock{}, locks.ErrLockNotFound
	}
	if tx.Error != nil {
		return locks.Lock{}, tx.Error
	}
	if s.expired(entry) {
		return locks.Lock{}, locks.ErrLockNotFound
	}
	return fromEntry(entry)
}

// Delete removes the lock row. Absent rows are a no-op.
func (s *Store) Delete(ctx context.Context, lock locks.Lock) error {
	return s.db.WithContext(ctx).
		Where("lock_id = ?", lock.ID).
		Delete(&model.LockEntry{}).Error
}

// List returns all live locks.
func (s *Store) List(ctx context.Context) ([]locks.Lock, error) {
	var entries []model.LockEntry
	if err := s.db.WithContext(ctx).Find(&entries).Error; err != nil {
		return nil, err
	}
	out := make([]locks.Lock, 0, len(entries))
	for _, entry := range entries {
		if s.expired(entry) {
			continue
		}
		lock, err := fromEntry(entry)
		if err != nil {
			return nil, err
		}
		out = append(out, lock)
	}
	return out, nil
}

func (s *Store) expired(entry model.LockEntry) bool {
	return s.ttl > 0 && entry.Timestamp.Before(s.now().Add(-s.ttl))
}

func toEntry(lock locks.Lock) (model.LockEntry, error) {
	data := ""
	if len(lock.Annotation) > 0 {
		b, err := json.Marshal(lock.Annotation)
		if err != nil {
			return model.LockEntry{}, err
		}
		data = string(b)
	}
	return model.LockEntry{
		LockID:    lock.ID,
		Scope:     string(lock.Scope),
		Timestamp: lock.AcquiredAt,
		Data:      data,
		RequestID: lock.RequestID,
	}, nil
}

func fromEntry(entry model.LockEntry) (locks.Lock, error) {
	var annotation map[string]any
	if entry.Data != "" {
		if err := json.Unmarshal([]byte(entry.Data), &annotation); err != nil {
			return locks.Lock{}, err
		}
	}
	return locks.Lock{
		ID:         entry.LockID,
		Scope:      locks.Scope(entry.Scope),
		AcquiredAt: entry.Timestamp,
		Annotation: annotation,
		RequestID:  entry.RequestID,
	}, nil
}
