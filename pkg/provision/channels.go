package provision

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/opencdh/datahub-in-go/pkg/arn"
	"github.com/opencdh/datahub-in-go/pkg/awsclients"
	"github.com/opencdh/datahub-in-go/pkg/awspolicy"
)

// Channel policy statement IDs.
const (
	channelPublishSid   = "AllowIngestionPublish"
	channelSubscribeSid = "AllowSubscribe"
	channelGetSid       = "AllowGet"
)

// ChannelNotFoundError signals that the channel's topic no longer
// exists. Deletion does not proceed past it; an operator has to
// reconcile the record by hand.
type ChannelNotFoundError struct {
	TopicARN string
}

func (e *ChannelNotFoundError) Error() string {
	return fmt.Sprintf("notification channel %s not found", e.TopicARN)
}

func (e *ChannelNotFoundError) StatusCode() int { return http.StatusNotFound }

// TopicManager manages the notification channels attached to
// provisioned resources. Each channel is a topic in the provider
// account whose policy names the ingestion role as publisher and the
// reading accounts as subscribers.
type TopicManager struct {
	clients          Clients
	ingestionRoleARN func(accountID string) string
}

// NewTopicManager creates a channel manager. ingestionRoleARN resolves
// the publishing role in a provider account.
func NewTopicManager(clients Clients, ingestionRoleARN func(accountID string) string) *TopicManager {
	return &TopicManager{clients: clients, ingestionRoleARN: ingestionRoleARN}
}

// Create provisions the channel topic, encrypted with the shared key.
// Its initial policy grants read access to the owner only.
func (m *TopicManager) Create(ctx context.Context, spec ResourceSpec, name, kmsKeyARN string) (arn.ARN, error) {
	client := m.clients.Channels(spec.ResourceAccountID, spec.Region)

	topicARN, err := client.CreateTopic(ctx, name, kmsKeyARN, map[string]string{
		managedByTagKey: managedByTagValue,
	})
	if err != nil {
		return arn.ARN{}, err
	}
	parsed, err := arn.Parse(topicARN)
	if err != nil {
		return arn.ARN{}, err
	}

	policy, err := m.channelPolicy(parsed, []string{spec.OwnerAccountID})
	if err != nil {
		return arn.ARN{}, err
	}
	if err := client.SetRawPolicy(ctx, topicARN, policy); err != nil {
		return arn.ARN{}, err
	}
	return parsed, nil
}

// Delete removes the channel topic. A missing topic is reported as
// ChannelNotFoundError.
func (m *TopicManager) Delete(ctx context.Context, topicARN string) error {
	parsed, err := arn.Parse(topicARN)
	if err != nil {
		return err
	}
	client := m.clients.Channels(parsed.Account, parsed.Region)

	err = client.DeleteTopic(ctx, topicARN)
	var notFound *awsclients.TopicNotFoundError
	if errors.As(err, &notFound) {
		return &ChannelNotFoundError{TopicARN: topicARN}
	}
	return err
}

// UpdatePolicyTransaction rebuilds the channel policy for the owner and
// the given readers, runs body, and restores the previous policy
// byte for byte if body fails.
func (m *TopicManager) UpdatePolicyTransaction(ctx context.Context, topicARN, ownerAccountID string, readers []string, body func() error) error {
	parsed, err := arn.Parse(topicARN)
	if err != nil {
		return err
	}
	client := m.clients.Channels(parsed.Account, parsed.Region)

	oldPolicy, err := client.GetRawPolicy(ctx, topicARN)
	if err != nil {
		return err
	}
	newPolicy, err := m.channelPolicy(parsed, uniqueSorted([]string{ownerAccountID}, readers))
	if err != nil {
		return err
	}
	if err := client.SetRawPolicy(ctx, topicARN, newPolicy); err != nil {
		return err
	}

	if err := body(); err != nil {
		if restoreErr := client.SetRawPolicy(ctx, topicARN, oldPolicy); restoreErr != nil {
			log.Error().Err(restoreErr).Str("topic_arn", topicARN).
				Msg("failed to restore channel policy after rollback")
		}
		return err
	}
	return nil
}

func (m *TopicManager) channelPolicy(topicARN arn.ARN, readAccessIDs []string) (string, error) {
	readerARNs := awspolicy.AccountPrincipals(topicARN.Partition, readAccessIDs)
	return awspolicy.New(
		awspolicy.Statement{
			Sid:       channelPublishSid,
			Effect:    "Allow",
			Principal: map[string]any{"AWS": m.ingestionRoleARN(topicARN.Account)},
			Action:    "sns:Publish",
			Resource:  topicARN.String(),
		},
		awspolicy.Statement{
			Sid:       channelSubscribeSid,
			Effect:    "Allow",
			Principal: map[string]any{"AWS": readerARNs},
			Action:    []string{"sns:Subscribe"},
			Resource:  topicARN.String(),
			Condition: map[string]any{
				"StringNotEquals": map[string]any{"sns:Protocol": []string{"email", "email-json", "sms"}},
			},
		},
		awspolicy.Statement{
			Sid:       channelGetSid,
			Effect:    "Allow",
			Principal: map[string]any{"AWS": readerARNs},
			Action:    []string{"sns:ListSubscriptionsByTopic", "sns:GetTopicAttributes"},
			Resource:  topicARN.String(),
		},
	).JSON()
}
