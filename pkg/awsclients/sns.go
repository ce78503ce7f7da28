package awsclients

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/opencdh/datahub-in-go/pkg/retry"
)

// Retryable SNS error codes.
var snsRetryableCodes = []string{
	"ThrottledException",
	"InternalErrorException",
}

const topicPolicyAttribute = "Policy"

// SNS manages notification topics in one provider account and region.
type SNS struct {
	api SNSAPI
	rx  *retry.Executor
}

// NewSNS creates a topic client over the given API.
func NewSNS(api SNSAPI, rx *retry.Executor) *SNS {
	return &SNS{api: api, rx: rx}
}

// CreateTopic creates the topic encrypted with the given key and
// returns its ARN. CreateTopic is idempotent on the provider side when
// the attributes match.
func (c *SNS) CreateTopic(ctx context.Context, name, kmsKeyID string, tags map[string]string) (string, error) {
	input := &sns.CreateTopicInput{
		Name: aws.String(name),
		Attributes: map[string]string{
			"KmsMasterKeyId": kmsKeyID,
		},
	}
	for k, v := range tags {
		input.Tags = append(input.Tags, snstypes.Tag{
			Key:   aws.String(k),
			Value: aws.String(v),
		})
	}

	var out *sns.CreateTopicOutput
	err := c.rx.Do(ctx, func(ctx context.Context) error {
		var opErr error
		out, opErr = c.api.CreateTopic(ctx, input)
		return opErr
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.TopicArn), nil
}

// DeleteTopic removes the topic. A missing topic is reported as
// TopicNotFoundError.
func (c *SNS) DeleteTopic(ctx context.Context, topicARN string) error {
	err := c.rx.Do(ctx, func(ctx context.Context) error {
		_, opErr := c.api.DeleteTopic(ctx, &sns.DeleteTopicInput{
			TopicArn: aws.String(topicARN),
		})
		return opErr
	})
	if err != nil && errorCode(err) == "NotFound" {
		return &TopicNotFoundError{TopicARN: topicARN}
	}
	return err
}

// GetRawPolicy returns the topic's access policy as raw JSON.
func (c *SNS) GetRawPolicy(ctx context.Context, topicARN string) (string, error) {
	var out *sns.GetTopicAttributesOutput
	err := c.rx.Do(ctx, func(ctx context.Context) error {
		var opErr error
		out, opErr = c.api.GetTopicAttributes(ctx, &sns.GetTopicAttributesInput{
			TopicArn: aws.String(topicARN),
		})
		return opErr
	})
	if err != nil {
		if errorCode(err) == "NotFound" {
			return "", &TopicNotFoundError{TopicARN: topicARN}
		}
		return "", err
	}
	return out.Attributes[topicPolicyAttribute], nil
}

// SetRawPolicy replaces the topic's access policy with raw JSON.
func (c *SNS) SetRawPolicy(ctx context.Context, topicARN, policy string) error {
	err := c.rx.Do(ctx, func(ctx context.Context) error {
		_, opErr := c.api.SetTopicAttributes(ctx, &sns.SetTopicAttributesInput{
			TopicArn:       aws.String(topicARN),
			AttributeName:  aws.String(topicPolicyAttribute),
			AttributeValue: aws.String(policy),
		})
		return opErr
	})
	if err != nil && errorCode(err) == "NotFound" {
		return &TopicNotFoundError{TopicARN: topicARN}
	}
	return err
}
