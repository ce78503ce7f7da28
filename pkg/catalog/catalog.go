// Package catalog abstracts the metadata storage the control plane
// provisions from: registered accounts, datasets, read grants and the
// resources provisioned for them.
package catalog

import (
	"context"
	"errors"

	"github.com/opencdh/datahub-in-go/pkg/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ResourcesStore abstracts resource metadata operations
type ResourcesStore interface {
	// Exists checks if a resource exists for the dataset, stage and region
	Exists(ctx context.Context, datasetID, stage, region string) (bool, error)

	// Create persists a new resource record
	Create(ctx context.Context, resource *model.Resource) error

	// Get retrieves a single resource, or ErrNotFound
	Get(ctx context.Context, datasetID, stage, region string) (*model.Resource, error)

	// Delete removes a resource record
	Delete(ctx context.Context, datasetID, stage, region string) error

	// ListByDataset returns all resources provisioned for a dataset
	ListByDataset(ctx context.Context, datasetID string) ([]model.Resource, error)

	// ListByResourceAccount returns all resources hosted in a provider account
	ListByResourceAccount(ctx context.Context, accountID string) ([]model.Resource, error)
}

// DatasetsStore abstracts dataset and read grant operations
type DatasetsStore interface {
	// Get retrieves a dataset by ID, or ErrNotFound
	Get(ctx context.Context, datasetID string) (*model.Dataset, error)

	// ReadAccessAccounts returns the IDs of accounts granted read access
	// to the dataset for the given stage and region
	ReadAccessAccounts(ctx context.Context, datasetID, stage, region string) ([]string, error)

	// ReplaceReadGrants replaces the dataset's read grants for the given
	// stage and region with the given account IDs
	ReplaceReadGrants(ctx context.Context, datasetID, stage, region string, accountIDs []string) error
}

// HealthStore provides health check operations
type HealthStore interface {
	// CheckConnectivity verifies database connectivity
	CheckConnectivity(ctx context.Context) error
}

// AccountsStore abstracts account registry operations
type AccountsStore interface {
	// Get retrieves an account by ID, or ErrNotFound
	Get(ctx context.Context, accountID string) (*model.Account, error)

	// SecurityAccount returns the platform security account of a hub
	SecurityAccount(ctx context.Context, hub string) (*model.Account, error)

	// ResourceAccount returns the provider account hosting resources for
	// a hub and stage
	ResourceAccount(ctx context.Context, hub, stage string) (*model.Account, error)
}
