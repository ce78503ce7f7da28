// Package gorm implements the catalog stores using GORM.
package gorm

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/opencdh/datahub-in-go/pkg/catalog"
	"github.com/opencdh/datahub-in-go/pkg/model"
)

// Ensure ResourcesStore implements catalog.ResourcesStore
var _ catalog.ResourcesStore = (*ResourcesStore)(nil)

// ResourcesStore implements catalog.ResourcesStore using GORM
type ResourcesStore struct {
	db *gorm.DB
}

// NewResourcesStore creates a new ResourcesStore
func NewResourcesStore(db *gorm.DB) *ResourcesStore {
	return &ResourcesStore{db: db}
}

// Exists checks if a resource exists for the dataset, stage and region
func (s *ResourcesStore) Exists(ctx context.Context, datasetID, stage, region string) (bool, error) {
	var exists bool
	err := s.db.WithContext(ctx).Raw(
		`SELECT EXISTS(SELECT 1 FROM resources WHERE dataset_id = ? AND stage = ? AND region = ?)`,
		datasetID, stage, region,
	).Scan(&exists).Error
	return exists, err
}

// Create persists a new resource record
func (s *ResourcesStore) Create(ctx context.Context, resource *model.Resource) error {
	return s.db.WithContext(ctx).Create(resource).Error
}

// Get retrieves a single resource
func (s *ResourcesStore) Get(ctx context.Context, datasetID, stage, region string) (*model.Resource, error) {
	var resource model.Resource
	err := s.db.WithContext(ctx).
		Where("dataset_id = ? AND stage = ? AND region = ?", datasetID, stage, region).
		First(&resource).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &resource, nil
}

// Delete removes a resource record
func (s *ResourcesStore) Delete(ctx context.Context, datasetID, stage, region string) error {
	return s.db.WithContext(ctx).
		Where("dataset_id = ? AND stage = ? AND region = ?", datasetID, stage, region).
		Delete(&model.Resource{}).Error
}

// ListByDataset returns all resources provisioned for a dataset
func (s *ResourcesStore) ListByDataset(ctx context.Context, datasetID string) ([]model.Resource, error) {
	var resources []model.Resource
	err := s.db.WithContext(ctx).
		Where("dataset_id = ?", datasetID).
		Order("stage, region").
		Find(&resources).Error
	return resources, err
}

// ListByResourceAccount returns all resources hosted in a provider account
func (s *ResourcesStore) ListByResourceAccount(ctx context.Context, accountID string) ([]model.Resource, error) {
	var resources []model.Resource
	err := s.db.WithContext(ctx).
		Where("resource_account_id = ?", accountID).
		Order("dataset_id, stage, region").
		Find(&resources).Error
	return resources, err
}
