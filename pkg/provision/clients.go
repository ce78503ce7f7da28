// Package provision implements resource provisioning: shared encryption
// keys, notification channels and storage buckets, plus the orchestrated
// workflows that keep their access policies consistent with the catalog.
package provision

import (
	"context"

	"github.com/opencdh/datahub-in-go/pkg/awsclients"
)

// KeyAPI is the slice of the key client the managers use.
type KeyAPI interface {
	GetKeyByAlias(ctx context.Context, alias string) (awsclients.Key, error)
	CreateKey(ctx context.Context, policy string, tags map[string]string) (awsclients.Key, error)
	CreateAlias(ctx context.Context, alias, keyID string) error
	SetPolicy(ctx context.Context, keyID, policy string) error
}

// ChannelAPI is the slice of the topic client the managers use.
type ChannelAPI interface {
	CreateTopic(ctx context.Context, name, kmsKeyID string, tags map[string]string) (string, error)
	DeleteTopic(ctx context.Context, topicARN string) error
	GetRawPolicy(ctx context.Context, topicARN string) (string, error)
	SetRawPolicy(ctx context.Context, topicARN, policy string) error
}

// BucketAPI is the slice of the bucket client the managers use.
type BucketAPI interface {
	CreateEncryptedBucket(ctx context.Context, name, kmsKeyARN string) error
	DeleteBucket(ctx context.Context, name string) error
	IsEmpty(ctx context.Context, name string) (bool, error)
	GetRawPolicy(ctx context.Context, name string) (string, error)
	SetRawPolicy(ctx context.Context, name, policy string) error
	SetTags(ctx context.Context, name string, tags map[string]string) error
	EnableCreationEvents(ctx context.Context, name, topicARN string) error
}

// Clients hands out provider clients scoped to an account and region.
type Clients interface {
	Keys(accountID, region string) KeyAPI
	Channels(accountID, region string) ChannelAPI
	Buckets(accountID, region string) BucketAPI
}

// awsClients adapts the client factory to the Clients interface.
type awsClients struct {
	factory *awsclients.Factory
}

// NewAWSClients wraps the factory for use by the managers.
func NewAWSClients(factory *awsclients.Factory) Clients {
	return &awsClients{factory: factory}
}

func (c *awsClients) Keys(accountID, region string) KeyAPI {
	return c.factory.KMS(accountID, region)
}

func (c *awsClients) Channels(accountID, region string) ChannelAPI {
	return c.factory.SNS(accountID, region)
}

func (c *awsClients) Buckets(accountID, region string) BucketAPI {
	return c.factory.S3(accountID, region).WithRegion(region)
}
