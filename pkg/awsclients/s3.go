package awsclients

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/opencdh/datahub-in-go/pkg/retry"
)

// Retryable S3 error codes.
var s3RetryableCodes = []string{
	"SlowDown",
	"InternalError",
	"OperationAborted",
}

// S3 manages storage buckets in one provider account and region.
type S3 struct {
	api    S3API
	rx     *retry.Executor
	region string
}

// NewS3 creates a bucket client over the given API.
func NewS3(api S3API, rx *retry.Executor) *S3 {
	return &S3{api: api, rx: rx}
}

// WithRegion sets the region used as the bucket location constraint.
func (c *S3) WithRegion(region string) *S3 {
	c.region = region
	return c
}

// CreateEncryptedBucket creates the bucket, blocks public access and
// enforces server side encryption with the given key. A taken name is
// reported as BucketAlreadyExistsError; ownership does not matter, the
// caller picks a fresh name either way.
func (c *S3) CreateEncryptedBucket(ctx context.Context, name, kmsKeyARN string) error {
	input := &s3.CreateBucketInput{Bucket: aws.String(name)}
	if c.region != "" && c.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(c.region),
		}
	}
	err := c.rx.Do(ctx, func(ctx context.Context) error {
		_, opErr := c.api.CreateBucket(ctx, input)
		return opErr
	})
	if err != nil {
		switch errorCode(err) {
		case "BucketAlreadyExists", "BucketAlreadyOwnedByYou":
			return &BucketAlreadyExistsError{Name: name}
		}
		return err
	}

	err = c.rx.Do(ctx, func(ctx context.Context) error {
		_, opErr := c.api.PutPublicAccessBlock(ctx, &s3.PutPublicAccessBlockInput{
			Bucket: aws.String(name),
			PublicAccessBlockConfiguration: &s3types.PublicAccessBlockConfiguration{
				BlockPublicAcls:       aws.Bool(true),
				BlockPublicPolicy:     aws.Bool(true),
				IgnorePublicAcls:      aws.Bool(true),
				RestrictPublicBuckets: aws.Bool(true),
			},
		})
		return opErr
	})
	if err != nil {
		return err
	}

	return c.rx.Do(ctx, func(ctx context.Context) error {
		_, opErr := c.api.PutBucketEncryption(ctx, &s3.PutBucketEncryptionInput{
			Bucket: aws.String(name),
			ServerSideEncryptionConfiguration: &s3types.ServerSideEncryptionConfiguration{
				Rules: []s3types.ServerSideEncryptionRule{
					{
						ApplyServerSideEncryptionByDefault: &s3types.ServerSideEncryptionByDefault{
							SSEAlgorithm:   s3types.ServerSideEncryptionAwsKms,
							KMSMasterKeyID: aws.String(kmsKeyARN),
						},
						BucketKeyEnabled: aws.Bool(true),
					},
				},
			},
		})
		return opErr
	})
}

// IsEmpty reports whether the bucket holds no objects.
func (c *S3) IsEmpty(ctx context.Context, name string) (bool, error) {
	var out *s3.ListObjectsV2Output
	err := c.rx.Do(ctx, func(ctx context.Context) error {
		var opErr error
		out, opErr = c.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:  aws.String(name),
			MaxKeys: aws.Int32(1),
		})
		return opErr
	})
	if err != nil {
		if errorCode(err) == "NoSuchBucket" {
			return false, &BucketNotFoundError{Name: name}
		}
		return false, err
	}
	return len(out.Contents) == 0, nil
}

// DeleteBucket removes the bucket. The provider refuses to delete a
// bucket that still holds objects; that refusal is surfaced as
// BucketNotEmptyError.
func (c *S3) DeleteBucket(ctx context.Context, name string) error {
	err := c.rx.Do(ctx, func(ctx context.Context) error {
		_, opErr := c.api.DeleteBucket(ctx, &s3.DeleteBucketInput{
			Bucket: aws.String(name),
		})
		return opErr
	})
	if err != nil {
		switch errorCode(err) {
		case "BucketNotEmpty":
			return &BucketNotEmptyError{Name: name}
		case "NoSuchBucket":
			return &BucketNotFoundError{Name: name}
		}
	}
	return err
}

// GetRawPolicy returns the bucket policy as raw JSON, or an empty
// string if the bucket has no policy.
func (c *S3) GetRawPolicy(ctx context.Context, name string) (string, error) {
	var out *s3.GetBucketPolicyOutput
	err := c.rx.Do(ctx, func(ctx context.Context) error {
		var opErr error
		out, opErr = c.api.GetBucketPolicy(ctx, &s3.GetBucketPolicyInput{
			Bucket: aws.String(name),
		})
		return opErr
	})
	if err != nil {
		switch errorCode(err) {
		case "NoSuchBucketPolicy":
			return "", nil
		case "NoSuchBucket":
			return "", &BucketNotFoundError{Name: name}
		}
		return "", err
	}
	return aws.ToString(out.Policy), nil
}

// SetRawPolicy replaces the bucket policy with raw JSON.
func (c *S3) SetRawPolicy(ctx context.Context, name, policy string) error {
	err := c.rx.Do(ctx, func(ctx context.Context) error {
		_, opErr := c.api.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
			Bucket: aws.String(name),
			Policy: aws.String(policy),
		})
		return opErr
	})
	if err != nil && errorCode(err) == "NoSuchBucket" {
		return &BucketNotFoundError{Name: name}
	}
	return err
}

// SetTags replaces the bucket's tag set.
func (c *S3) SetTags(ctx context.Context, name string, tags map[string]string) error {
	tagSet := make([]s3types.Tag, 0, len(tags))
	for k, v := range tags {
		tagSet = append(tagSet, s3types.Tag{
			Key:   aws.String(k),
			Value: aws.String(v),
		})
	}
	return c.rx.Do(ctx, func(ctx context.Context) error {
		_, opErr := c.api.PutBucketTagging(ctx, &s3.PutBucketTaggingInput{
			Bucket:  aws.String(name),
			Tagging: &s3types.Tagging{TagSet: tagSet},
		})
		return opErr
	})
}

// EnableCreationEvents routes object creation events from the bucket to
// the given topic.
func (c *S3) EnableCreationEvents(ctx context.Context, name, topicARN string) error {
	return c.rx.Do(ctx, func(ctx context.Context) error {
		_, opErr := c.api.PutBucketNotificationConfiguration(ctx, &s3.PutBucketNotificationConfigurationInput{
			Bucket: aws.String(name),
			NotificationConfiguration: &s3types.NotificationConfiguration{
				TopicConfigurations: []s3types.TopicConfiguration{
					{
						TopicArn: aws.String(topicARN),
						Events:   []s3types.Event{s3types.EventS3ObjectCreated},
					},
				},
			},
		})
		return opErr
	})
}
