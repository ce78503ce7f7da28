package awsclients

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/aws/smithy-go"

	"github.com/opencdh/datahub-in-go/pkg/retry"
)

// Retryable KMS error codes. MalformedPolicyDocumentException is
// retried because a freshly created IAM principal referenced in a key
// policy is not visible to KMS immediately.
var kmsRetryableCodes = []string{
	"ThrottlingException",
	"KMSInternalException",
	"DependencyTimeoutException",
	"MalformedPolicyDocumentException",
}

const defaultKeyPolicyName = "default"

// Key identifies a managed key.
type Key struct {
	ID  string
	ARN string
}

// KMS manages encryption keys in one provider account and region.
type KMS struct {
	api KMSAPI
	rx  *retry.Executor
}

// NewKMS creates a key client over the given API.
func NewKMS(api KMSAPI, rx *retry.Executor) *KMS {
	return &KMS{api: api, rx: rx}
}

// GetKeyByAlias resolves the key behind an alias. A missing alias is
// reported as AliasNotFoundError.
func (c *KMS) GetKeyByAlias(ctx context.Context, alias string) (Key, error) {
	var out *kms.DescribeKeyOutput
	err := c.rx.Do(ctx, func(ctx context.Context) error {
		var opErr error
		out, opErr = c.api.DescribeKey(ctx, &kms.DescribeKeyInput{
			KeyId: aws.String(alias),
		})
		return opErr
	})
	if err != nil {
		if errorCode(err) == "NotFoundException" {
			return Key{}, &AliasNotFoundError{Alias: alias}
		}
		return Key{}, err
	}
	return Key{
		ID:  aws.ToString(out.KeyMetadata.KeyId),
		ARN: aws.ToString(out.KeyMetadata.Arn),
	}, nil
}

// CreateKey creates a new key with the given policy document and tags.
func (c *KMS) CreateKey(ctx context.Context, policy string, tags map[string]string) (Key, error) {
	input := &kms.CreateKeyInput{
		Policy: aws.String(policy),
	}
	for k, v := range tags {
		input.Tags = append(input.Tags, kmstypes.Tag{
			TagKey:   aws.String(k),
			TagValue: aws.String(v),
		})
	}

	var out *kms.CreateKeyOutput
	err := c.rx.Do(ctx, func(ctx context.Context) error {
		var opErr error
		out, opErr = c.api.CreateKey(ctx, input)
		return opErr
	})
	if err != nil {
		return Key{}, err
	}
	return Key{
		ID:  aws.ToString(out.KeyMetadata.KeyId),
		ARN: aws.ToString(out.KeyMetadata.Arn),
	}, nil
}

// CreateAlias points the alias at the given key.
func (c *KMS) CreateAlias(ctx context.Context, alias, keyID string) error {
	return c.rx.Do(ctx, func(ctx context.Context) error {
		_, opErr := c.api.CreateAlias(ctx, &kms.CreateAliasInput{
			AliasName:   aws.String(alias),
			TargetKeyId: aws.String(keyID),
		})
		return opErr
	})
}

// GetPolicy returns the key's policy document as raw JSON.
func (c *KMS) GetPolicy(ctx context.Context, keyID string) (string, error) {
	var out *kms.GetKeyPolicyOutput
	err := c.rx.Do(ctx, func(ctx context.Context) error {
		var opErr error
		out, opErr = c.api.GetKeyPolicy(ctx, &kms.GetKeyPolicyInput{
			KeyId:      aws.String(keyID),
			PolicyName: aws.String(defaultKeyPolicyName),
		})
		return opErr
	})
	if err != nil {
		if errorCode(err) == "NotFoundException" {
			return "", &KeyNotFoundError{KeyID: keyID}
		}
		return "", err
	}
	return aws.ToString(out.Policy), nil
}

// SetPolicy replaces the key's policy document.
func (c *KMS) SetPolicy(ctx context.Context, keyID, policy string) error {
	err := c.rx.Do(ctx, func(ctx context.Context) error {
		_, opErr := c.api.PutKeyPolicy(ctx, &kms.PutKeyPolicyInput{
			KeyId:      aws.String(keyID),
			PolicyName: aws.String(defaultKeyPolicyName),
			Policy:     aws.String(policy),
		})
		return opErr
	})
	if err != nil && errorCode(err) == "NotFoundException" {
		return &KeyNotFoundError{KeyID: keyID}
	}
	return err
}

// errorCode extracts the provider error code, if any.
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
