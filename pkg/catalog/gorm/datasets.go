package gorm

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/opencdh/datahub-in-go/pkg/catalog"
	"github.com/opencdh/datahub-in-go/pkg/model"
)

// Ensure DatasetsStore implements catalog.DatasetsStore
var _ catalog.DatasetsStore = (*DatasetsStore)(nil)

// DatasetsStore implements catalog.DatasetsStore using GORM
type DatasetsStore struct {
	db *gorm.DB
}

// NewDatasetsStore creates a new DatasetsStore
func NewDatasetsStore(db *gorm.DB) *DatasetsStore {
	return &DatasetsStore{db: db}
}

// Get retrieves a dataset by ID
func (s *DatasetsStore) Get(ctx context.Context, datasetID string) (*model.Dataset, error) {
	var dataset model.Dataset
	err := s.db.WithContext(ctx).Where("dataset_id = ?", datasetID).First(&dataset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &dataset, nil
}

// ReadAccessAccounts returns the IDs of accounts granted read access to
// the dataset for the given stage and region
func (s *DatasetsStore) ReadAccessAccounts(ctx context.Context, datasetID, stage, region string) ([]string, error) {
	var accountIDs []string
	err := s.db.WithContext(ctx).Raw(
		`SELECT account_id FROM dataset_read_grants
		 WHERE dataset_id = ? AND stage = ? AND region = ?
		 ORDER BY account_id`,
		datasetID, stage, region,
	).Scan(&accountIDs).Error
	return accountIDs, err
}

// ReplaceReadGrants replaces the dataset's read grants for the given
// stage and region with the given account IDs
func (s *DatasetsStore) ReplaceReadGrants(ctx context.Context, datasetID, stage, region string, accountIDs []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.
			Where("dataset_id = ? AND stage = ? AND region = ?", datasetID, stage, region).
			Delete(&model.DatasetReadGrant{}).Error
		if err != nil {
			return err
		}
		for _, accountID := range accountIDs {
			grant := model.DatasetReadGrant{
				DatasetID: datasetID,
				AccountID: accountID,
				Stage:     stage,
				Region:    region,
			}
			if err := tx.Create(&grant).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
