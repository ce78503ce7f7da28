package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/opencdh/datahub-in-go/pkg/arn"
	"github.com/opencdh/datahub-in-go/pkg/awsclients"
	"github.com/opencdh/datahub-in-go/pkg/awspolicy"
	"github.com/opencdh/datahub-in-go/pkg/model"
)

// readAccessSid is the one bucket policy statement that changes over a
// resource's lifetime; all others are fixed at creation.
const readAccessSid = "GrantGetBucket"

// bucketNameAttempts bounds the search for an unused bucket name.
const bucketNameAttempts = 10

// S3BucketManager manages the storage buckets of provisioned resources.
type S3BucketManager struct {
	clients Clients
	prefix  string

	// newSuffix generates the random part of fallback bucket names.
	newSuffix func() string
}

// NewS3BucketManager creates a bucket manager.
func NewS3BucketManager(clients Clients, prefix string) *S3BucketManager {
	return &S3BucketManager{
		clients: clients,
		prefix:  prefix,
		newSuffix: func() string {
			return uuid.NewString()[:8]
		},
	}
}

// Create provisions an encrypted bucket for the spec. Bucket names are
// global on the provider side, so a taken name is answered with a fresh
// random suffix, up to bucketNameAttempts times.
func (m *S3BucketManager) Create(ctx context.Context, spec ResourceSpec, kmsKeyARN string) (arn.ARN, error) {
	client := m.clients.Buckets(spec.ResourceAccountID, spec.Region)

	var name string
	created := false
	for attempt := 0; attempt < bucketNameAttempts; attempt++ {
		name = m.bucketName(spec.Dataset.ID, attempt)
		err := client.CreateEncryptedBucket(ctx, name, kmsKeyARN)
		if err == nil {
			created = true
			break
		}
		var exists *awsclients.BucketAlreadyExistsError
		if errors.As(err, &exists) {
			log.Info().Str("bucket", name).Msg("bucket name taken, retrying with another")
			continue
		}
		return arn.ARN{}, err
	}
	if !created {
		return arn.ARN{}, fmt.Errorf("no available bucket name found for dataset %s", spec.Dataset.ID)
	}

	bucketARN := arn.Build(spec.Partition, "s3", "", "", name)
	policy, err := m.initialBucketPolicy(bucketARN, spec.OwnerAccountID, kmsKeyARN)
	if err != nil {
		return arn.ARN{}, err
	}
	if err := client.SetRawPolicy(ctx, name, policy); err != nil {
		return arn.ARN{}, err
	}
	log.Info().Str("bucket_arn", bucketARN.String()).Msg("created bucket")
	return bucketARN, nil
}

// Delete removes the resource's bucket. Buckets holding objects are
// never deleted.
func (m *S3BucketManager) Delete(ctx context.Context, resource *model.Resource) error {
	client := m.clients.Buckets(resource.ResourceAccountID, resource.Region)

	empty, err := client.IsEmpty(ctx, resource.Name())
	if err != nil {
		return err
	}
	if !empty {
		return &awsclients.BucketNotEmptyError{Name: resource.Name()}
	}
	return client.DeleteBucket(ctx, resource.Name())
}

// LinkIngestion tags the bucket with its channel topic and routes
// object creation events to it. Ingestion tooling discovers the channel
// through the tag.
func (m *S3BucketManager) LinkIngestion(ctx context.Context, spec ResourceSpec, name, topicARN string) error {
	client := m.clients.Buckets(spec.ResourceAccountID, spec.Region)

	err := client.SetTags(ctx, name, map[string]string{
		"snsTopicArn":   topicARN,
		managedByTagKey: managedByTagValue,
	})
	if err != nil {
		return err
	}
	return client.EnableCreationEvents(ctx, name, topicARN)
}

// UpdateReadAccessTransaction replaces the bucket's read access
// statement with the given readers, runs body, and restores the
// previous policy byte for byte if body fails. An empty reader set
// removes the statement.
func (m *S3BucketManager) UpdateReadAccessTransaction(ctx context.Context, resource *model.Resource, readers []string, body func() error) error {
	client := m.clients.Buckets(resource.ResourceAccountID, resource.Region)

	oldPolicy, err := client.GetRawPolicy(ctx, resource.Name())
	if err != nil {
		return err
	}
	doc, err := awspolicy.Parse(oldPolicy)
	if err != nil {
		return err
	}

	bucketARN, err := arn.Parse(resource.ARN)
	if err != nil {
		return err
	}
	if len(readers) > 0 {
		doc = doc.AddOrUpdateStatement(readAccessStatement(bucketARN, readers))
	} else {
		doc = doc.DeleteStatementIfPresent(readAccessSid)
	}
	newPolicy, err := doc.JSON()
	if err != nil {
		return err
	}
	if err := client.SetRawPolicy(ctx, resource.Name(), newPolicy); err != nil {
		return err
	}

	if err := body(); err != nil {
		if restoreErr := client.SetRawPolicy(ctx, resource.Name(), oldPolicy); restoreErr != nil {
			log.Error().Err(restoreErr).Str("bucket", resource.Name()).
				Msg("failed to restore bucket policy after rollback")
		}
		return err
	}
	return nil
}

// bucketName builds the candidate name for the given attempt. The first
// attempt uses the plain dataset name, later ones carry a random suffix.
func (m *S3BucketManager) bucketName(datasetID string, attempt int) string {
	base := m.prefix + "cdh-" + strings.ReplaceAll(datasetID, "_", "-")
	if attempt == 0 {
		return base
	}
	return base + "-" + m.newSuffix()
}

// initialBucketPolicy builds the policy every fresh bucket starts with:
// owner write and read access, transport security and encryption
// enforcement.
func (m *S3BucketManager) initialBucketPolicy(bucketARN arn.ARN, ownerAccountID, kmsKeyARN string) (string, error) {
	ownerRoot := arn.IAMRoot(bucketARN.Partition, ownerAccountID)
	bucket := bucketARN.String()
	objects := bucket + "/*"

	return awspolicy.New(
		awspolicy.Statement{
			Sid:       "AllowWriteForOwner",
			Effect:    "Allow",
			Principal: map[string]any{"AWS": ownerRoot},
			Action: []string{
				"s3:AbortMultipartUpload",
				"s3:DeleteObject",
				"s3:DeleteObjectTagging",
				"s3:DeleteObjectVersion",
				"s3:DeleteObjectVersionTagging",
				"s3:ObjectOwnerOverrideToBucketOwner",
				"s3:PutObjectTagging",
				"s3:PutObjectVersionTagging",
				"s3:PutLifecycleConfiguration",
			},
			Resource: []string{objects, bucket},
		},
		awspolicy.Statement{
			Sid:       "AllowPutObjectForOwner",
			Effect:    "Allow",
			Principal: map[string]any{"AWS": ownerRoot},
			Action:    "s3:PutObject",
			Resource:  objects,
		},
		awspolicy.Statement{
			Sid:       "AllowGetBucketForOwner",
			Effect:    "Allow",
			Principal: map[string]any{"AWS": []string{ownerRoot}},
			Action:    []string{"s3:Get*", "s3:List*"},
			Resource:  []string{bucket, objects},
		},
		awspolicy.Statement{
			Sid:       "DenyNonHTTPS",
			Effect:    "Deny",
			Principal: "*",
			Action:    "s3:*",
			Resource:  []string{bucket, objects},
			Condition: map[string]any{"Bool": map[string]any{"aws:SecureTransport": "false"}},
		},
		awspolicy.Statement{
			Sid:       "RestrictToDefaultOrKmsEncryption",
			Effect:    "Deny",
			Principal: "*",
			Action:    "s3:PutObject",
			Resource:  objects,
			Condition: map[string]any{
				"Null":            map[string]any{"s3:x-amz-server-side-encryption": "false"},
				"StringNotEquals": map[string]any{"s3:x-amz-server-side-encryption": "aws:kms"},
			},
		},
		awspolicy.Statement{
			Sid:       "RestrictToCorrectKmsKeyIfSseEnabled",
			Effect:    "Deny",
			Principal: "*",
			Action:    "s3:PutObject",
			Resource:  objects,
			Condition: map[string]any{
				"StringNotEqualsIfExists": map[string]any{"s3:x-amz-server-side-encryption-aws-kms-key-id": kmsKeyARN},
				"StringEquals":            map[string]any{"s3:x-amz-server-side-encryption": "aws:kms"},
			},
		},
	).JSON()
}

// readAccessStatement grants the reader accounts read access to the
// bucket and its objects.
func readAccessStatement(bucketARN arn.ARN, readers []string) awspolicy.Statement {
	return awspolicy.Statement{
		Sid:       readAccessSid,
		Effect:    "Allow",
		Principal: map[string]any{"AWS": awspolicy.AccountPrincipals(bucketARN.Partition, readers)},
		Action:    []string{"s3:Get*", "s3:List*"},
		Resource:  []string{bucketARN.String(), bucketARN.String() + "/*"},
	}
}
