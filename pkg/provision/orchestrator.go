package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/opencdh/datahub-in-go/pkg/arn"
	"github.com/opencdh/datahub-in-go/pkg/awsclients"
	"github.com/opencdh/datahub-in-go/pkg/catalog"
	"github.com/opencdh/datahub-in-go/pkg/httperr"
	"github.com/opencdh/datahub-in-go/pkg/locks"
	"github.com/opencdh/datahub-in-go/pkg/model"
)

// Keys is the shared key manager as the orchestrator sees it.
type Keys interface {
	GetOrCreate(ctx context.Context, resourceAccount *model.Account, region string) (awsclients.Key, error)
	RegeneratePolicy(ctx context.Context, key awsclients.Key, resourceAccount *model.Account, readers, writers []string) error
	ForRequest(requestID string) Keys
}

// Channels is the channel manager as the orchestrator sees it.
type Channels interface {
	Create(ctx context.Context, spec ResourceSpec, name, kmsKeyARN string) (arn.ARN, error)
	Delete(ctx context.Context, topicARN string) error
	UpdatePolicyTransaction(ctx context.Context, topicARN, ownerAccountID string, readers []string, body func() error) error
}

// Buckets is the bucket manager as the orchestrator sees it.
type Buckets interface {
	Create(ctx context.Context, spec ResourceSpec, kmsKeyARN string) (arn.ARN, error)
	Delete(ctx context.Context, resource *model.Resource) error
	LinkIngestion(ctx context.Context, spec ResourceSpec, name, topicARN string) error
	UpdateReadAccessTransaction(ctx context.Context, resource *model.Resource, readers []string, body func() error) error
}

var (
	_ Keys     = (*SharedKeyManager)(nil)
	_ Channels = (*TopicManager)(nil)
	_ Buckets  = (*S3BucketManager)(nil)
)

// Orchestrator drives the provisioning workflows and keeps bucket,
// channel and key policies consistent with the catalog.
type Orchestrator struct {
	resources catalog.ResourcesStore
	datasets  catalog.DatasetsStore
	accounts  catalog.AccountsStore
	keys      Keys
	channels  Channels
	buckets   Buckets
	locks     *locks.Service
	sync      DerivedAccessSync
}

// NewOrchestrator wires the orchestrator.
func NewOrchestrator(
	resources catalog.ResourcesStore,
	datasets catalog.DatasetsStore,
	accounts catalog.AccountsStore,
	keys Keys,
	channels Channels,
	buckets Buckets,
	lockService *locks.Service,
	accessSync DerivedAccessSync,
) *Orchestrator {
	return &Orchestrator{
		resources: resources,
		datasets:  datasets,
		accounts:  accounts,
		keys:      keys,
		channels:  channels,
		buckets:   buckets,
		locks:     lockService,
		sync:      accessSync,
	}
}

// ForRequest returns a copy of the orchestrator whose resource and key
// locks are tagged with the request ID.
func (o *Orchestrator) ForRequest(requestID string) *Orchestrator {
	c := *o
	c.locks = o.locks.ForRequest(requestID)
	c.keys = o.keys.ForRequest(requestID)
	return &c
}

// GetResource returns the resource record for the dataset, stage and
// region.
func (o *Orchestrator) GetResource(ctx context.Context, datasetID, stage, region string) (*model.Resource, error) {
	resource, err := o.resources.Get(ctx, datasetID, stage, region)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, &httperr.NotFoundError{
			Message: fmt.Sprintf("dataset %s has no resource for stage %s and region %s", datasetID, stage, region),
		}
	}
	return resource, err
}

// ListResources returns all resources provisioned for a dataset.
func (o *Orchestrator) ListResources(ctx context.Context, datasetID string) ([]model.Resource, error) {
	if _, err := o.dataset(ctx, datasetID); err != nil {
		return nil, err
	}
	return o.resources.ListByDataset(ctx, datasetID)
}

// CreateResource provisions a bucket, channel and key access for the
// dataset in the given stage and region. The dataset's resource tuple
// is locked for the duration; a concurrent creation for the same tuple
// fails with a retryable conflict and leaves no side effects behind.
func (o *Orchestrator) CreateResource(ctx context.Context, datasetID, stage, region, user string) (*model.Resource, error) {
	dataset, err := o.dataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	resourceAccount, err := o.accounts.ResourceAccount(ctx, dataset.Hub, stage)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, &httperr.NotFoundError{
			Message: fmt.Sprintf("hub %s has no resource account for stage %s", dataset.Hub, stage),
		}
	}
	if err != nil {
		return nil, err
	}

	exists, err := o.resources.Exists(ctx, dataset.ID, stage, region)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, &httperr.ConflictError{
			Message: fmt.Sprintf("dataset %s already contains a resource for stage %s and region %s", dataset.ID, stage, region),
		}
	}

	lock, err := o.locks.Acquire(ctx, dataset.ID, locks.ScopeResource, region, stage,
		map[string]any{"datasetId": dataset.ID})
	if err != nil {
		return nil, err
	}

	key, err := o.keys.GetOrCreate(ctx, resourceAccount, region)
	if err != nil {
		o.release(ctx, lock)
		return nil, err
	}

	readers, writers, err := o.readerWriterSets(ctx, resourceAccount.ID, region)
	if err != nil {
		o.release(ctx, lock)
		return nil, err
	}
	writers = uniqueSorted(writers, []string{dataset.OwnerAccountID})

	if err := o.keys.RegeneratePolicy(ctx, key, resourceAccount, readers, writers); err != nil {
		// Nothing was changed yet, so the resource lock can go.
		o.release(ctx, lock)
		return nil, err
	}

	// From here on failures leave partial state behind; the lock stays
	// held until its expiry so nothing else touches the tuple meanwhile.
	spec := ResourceSpec{
		Dataset:           dataset,
		Stage:             stage,
		Region:            region,
		ResourceAccountID: resourceAccount.ID,
		OwnerAccountID:    dataset.OwnerAccountID,
		Partition:         resourceAccount.Partition,
	}
	bucketARN, err := o.buckets.Create(ctx, spec, key.ARN)
	if err != nil {
		return nil, err
	}
	topicARN, err := o.channels.Create(ctx, spec, bucketARN.Identifier(), key.ARN)
	if err != nil {
		return nil, err
	}
	if err := o.buckets.LinkIngestion(ctx, spec, bucketARN.Identifier(), topicARN.String()); err != nil {
		return nil, err
	}

	resource := &model.Resource{
		DatasetID:         dataset.ID,
		Stage:             stage,
		Region:            region,
		Hub:               dataset.Hub,
		ResourceAccountID: resourceAccount.ID,
		OwnerAccountID:    dataset.OwnerAccountID,
		ARN:               bucketARN.String(),
		KMSKeyARN:         key.ARN,
		SNSTopicARN:       topicARN.String(),
		CreatorUserID:     user,
	}
	if err := o.resources.Create(ctx, resource); err != nil {
		return nil, err
	}

	if err := o.sync.UpdateResourceAccess(ctx, dataset, resource); err != nil {
		log.Warn().Err(err).Str("dataset_id", dataset.ID).
			Msg("derived access sync failed after resource creation")
	}
	o.release(ctx, lock)
	return resource, nil
}

// DeleteResource removes the resource's bucket, record and channel, in
// that order, then rebuilds the shared key policy without the removed
// resource's accounts.
func (o *Orchestrator) DeleteResource(ctx context.Context, datasetID, stage, region string) error {
	resource, err := o.GetResource(ctx, datasetID, stage, region)
	if err != nil {
		return err
	}

	lock, err := o.locks.Acquire(ctx, resource.DatasetID, locks.ScopeResource, region, stage,
		resourceSnapshot(resource))
	if err != nil {
		return err
	}

	if err := o.buckets.Delete(ctx, resource); err != nil {
		var notEmpty *awsclients.BucketNotEmptyError
		if errors.As(err, &notEmpty) {
			o.release(ctx, lock)
			return &httperr.ForbiddenError{
				Message: fmt.Sprintf("bucket %s cannot be deleted as it is not empty", resource.Name()),
			}
		}
		return err
	}

	if err := o.resources.Delete(ctx, resource.DatasetID, stage, region); err != nil {
		return err
	}
	if err := o.channels.Delete(ctx, resource.SNSTopicARN); err != nil {
		return err
	}
	o.release(ctx, lock)

	// The key policy shrink happens outside the lock. A failure here
	// leaves stale accounts on the key until the next regeneration, so
	// it is logged instead of failing the completed deletion.
	if err := o.regenerateKeyPolicyFor(ctx, resource); err != nil {
		log.Warn().Err(err).Str("dataset_id", resource.DatasetID).
			Msg("shared key policy regeneration failed after resource deletion")
	}
	return nil
}

// UpdateReadAccess replaces the dataset's read grants for the resource
// tuple and rewrites the bucket, channel and key policies accordingly.
// Bucket and channel scopes roll back together on failure; a failed key
// regeneration afterwards does not undo them, since the key policy is
// rebuilt from the catalog on the next change anyway.
func (o *Orchestrator) UpdateReadAccess(ctx context.Context, datasetID, stage, region string, accountIDs []string) error {
	dataset, err := o.dataset(ctx, datasetID)
	if err != nil {
		return err
	}
	resource, err := o.GetResource(ctx, datasetID, stage, region)
	if err != nil {
		return err
	}
	resourceAccount, err := o.accounts.Get(ctx, resource.ResourceAccountID)
	if err != nil {
		return err
	}

	if accountIDs != nil {
		if err := o.datasets.ReplaceReadGrants(ctx, datasetID, stage, region, accountIDs); err != nil {
			return err
		}
	}
	readers, err := o.datasets.ReadAccessAccounts(ctx, datasetID, stage, region)
	if err != nil {
		return err
	}

	kmsReaders, kmsWriters, err := o.readerWriterSets(ctx, resourceAccount.ID, region)
	if err != nil {
		return err
	}

	err = o.buckets.UpdateReadAccessTransaction(ctx, resource, readers, func() error {
		return o.channels.UpdatePolicyTransaction(ctx, resource.SNSTopicARN, resource.OwnerAccountID, readers, func() error {
			return nil
		})
	})
	if err != nil {
		return err
	}

	key, err := keyFromARN(resource.KMSKeyARN)
	if err != nil {
		return err
	}
	if err := o.keys.RegeneratePolicy(ctx, key, resourceAccount, kmsReaders, kmsWriters); err != nil {
		return fmt.Errorf("read access applied, but shared key policy regeneration failed: %w", err)
	}

	if err := o.sync.UpdateResourceAccess(ctx, dataset, resource); err != nil {
		log.Warn().Err(err).Str("dataset_id", dataset.ID).
			Msg("derived access sync failed after read access update")
	}
	return nil
}

// readerWriterSets recomputes the aggregate reader and writer account
// sets of a shared key by scanning every resource the provider account
// hosts in the key's region.
func (o *Orchestrator) readerWriterSets(ctx context.Context, resourceAccountID, region string) (readers, writers []string, err error) {
	resources, err := o.resources.ListByResourceAccount(ctx, resourceAccountID)
	if err != nil {
		return nil, nil, err
	}

	var readerIDs, writerIDs []string
	for _, resource := range resources {
		if resource.Region != region {
			continue
		}
		writerIDs = append(writerIDs, resource.OwnerAccountID, resource.ResourceAccountID)

		if _, err := o.datasets.Get(ctx, resource.DatasetID); errors.Is(err, catalog.ErrNotFound) {
			log.Error().Str("dataset_id", resource.DatasetID).
				Msg("no dataset found for provisioned resource")
			continue
		} else if err != nil {
			return nil, nil, err
		}
		granted, err := o.datasets.ReadAccessAccounts(ctx, resource.DatasetID, resource.Stage, resource.Region)
		if err != nil {
			return nil, nil, err
		}
		readerIDs = append(readerIDs, granted...)
	}
	return uniqueSorted(readerIDs), uniqueSorted(writerIDs), nil
}

func (o *Orchestrator) regenerateKeyPolicyFor(ctx context.Context, resource *model.Resource) error {
	resourceAccount, err := o.accounts.Get(ctx, resource.ResourceAccountID)
	if err != nil {
		return err
	}
	readers, writers, err := o.readerWriterSets(ctx, resourceAccount.ID, resource.Region)
	if err != nil {
		return err
	}
	key, err := keyFromARN(resource.KMSKeyARN)
	if err != nil {
		return err
	}
	return o.keys.RegeneratePolicy(ctx, key, resourceAccount, readers, writers)
}

func (o *Orchestrator) dataset(ctx context.Context, datasetID string) (*model.Dataset, error) {
	dataset, err := o.datasets.Get(ctx, datasetID)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, &httperr.NotFoundError{Message: fmt.Sprintf("dataset %s not found", datasetID)}
	}
	return dataset, err
}

func (o *Orchestrator) release(ctx context.Context, lock locks.Lock) {
	if err := o.locks.Release(ctx, lock); err != nil {
		log.Warn().Err(err).Str("lock_id", lock.ID).Msg("failed to release resource lock")
	}
}

// resourceSnapshot flattens the full record into a lock annotation, so
// an operator can reconstruct the resource if the workflow dies while
// holding the lock.
func resourceSnapshot(r *model.Resource) map[string]any {
	return map[string]any{
		"datasetId":         r.DatasetID,
		"stage":             r.Stage,
		"region":            r.Region,
		"hub":               r.Hub,
		"resourceAccountId": r.ResourceAccountID,
		"ownerAccountId":    r.OwnerAccountID,
		"arn":               r.ARN,
		"kmsKeyArn":         r.KMSKeyARN,
		"snsTopicArn":       r.SNSTopicARN,
		"creatorUserId":     r.CreatorUserID,
	}
}

func keyFromARN(keyARN string) (awsclients.Key, error) {
	parsed, err := arn.Parse(keyARN)
	if err != nil {
		return awsclients.Key{}, err
	}
	return awsclients.Key{ID: parsed.Identifier(), ARN: keyARN}, nil
}
