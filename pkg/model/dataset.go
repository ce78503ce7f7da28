package model

import "time"

// Dataset represents a dataset registered by a client account.
type Dataset struct {
	ID             string    `gorm:"column:dataset_id;primaryKey"`
	Hub            string    `gorm:"column:hub;not null"`
	OwnerAccountID string    `gorm:"column:owner_account_id;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Dataset) TableName() string {
	return "datasets"
}

// DatasetReadGrant gives one account read access to a dataset's
// resources for a single stage and region.
type DatasetReadGrant struct {
	DatasetID string    `gorm:"column:dataset_id;primaryKey"`
	AccountID string    `gorm:"column:account_id;primaryKey"`
	Stage     string    `gorm:"column:stage;primaryKey"`
	Region    string    `gorm:"column:region;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (DatasetReadGrant) TableName() string {
	return "dataset_read_grants"
}
