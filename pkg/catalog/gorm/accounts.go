package gorm

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/opencdh/datahub-in-go/pkg/catalog"
	"github.com/opencdh/datahub-in-go/pkg/model"
)

// Ensure AccountsStore implements catalog.AccountsStore
var _ catalog.AccountsStore = (*AccountsStore)(nil)

// AccountsStore implements catalog.AccountsStore using GORM
type AccountsStore struct {
	db *gorm.DB
}

// NewAccountsStore creates a new AccountsStore
func NewAccountsStore(db *gorm.DB) *AccountsStore {
	return &AccountsStore{db: db}
}

// Get retrieves an account by ID
func (s *AccountsStore) Get(ctx context.Context, accountID string) (*model.Account, error) {
	var account model.Account
	err := s.db.WithContext(ctx).Where("account_id = ?", accountID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// SecurityAccount returns the platform security account of a hub
func (s *AccountsStore) SecurityAccount(ctx context.Context, hub string) (*model.Account, error) {
	var account model.Account
	err := s.db.WithContext(ctx).
		Where("hub = ? AND purpose = ?", hub, model.PurposeSecurity).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// ResourceAccount returns the provider account hosting resources for a
// hub and stage
func (s *AccountsStore) ResourceAccount(ctx context.Context, hub, stage string) (*model.Account, error) {
	var account model.Account
	err := s.db.WithContext(ctx).
		Where("hub = ? AND purpose = ? AND stage = ?", hub, model.PurposeResources, stage).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}
