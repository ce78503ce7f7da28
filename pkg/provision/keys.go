package provision

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/opencdh/datahub-in-go/pkg/arn"
	"github.com/opencdh/datahub-in-go/pkg/awsclients"
	"github.com/opencdh/datahub-in-go/pkg/awspolicy"
	"github.com/opencdh/datahub-in-go/pkg/catalog"
	"github.com/opencdh/datahub-in-go/pkg/locks"
	"github.com/opencdh/datahub-in-go/pkg/model"
)

// Key policy statement IDs. The key policy is always rebuilt as a whole,
// so these are the only statements a shared key ever carries.
const (
	keyAdminSid  = "AllowEverythingForOnlyCDHSecurityAccount"
	keyUsageSid  = "AllowKeyUsage"
	keyGrantsSid = "AllowAttachmentPersistentResources"
	keyReadSid   = "GrantKeyUsage"
)

// SharedKeyManager manages the shared encryption keys. One key exists
// per provider account and region; it lives in the hub's security
// account and its policy is derived from the catalog.
type SharedKeyManager struct {
	clients     Clients
	accounts    catalog.AccountsStore
	locks       *locks.Service
	prefix      string
	environment string
	cache       *keyCache
}

// keyCache is the process-wide (account, region) to key cache, shared
// by all request-scoped copies of the manager.
type keyCache struct {
	mu   sync.Mutex
	keys map[string]awsclients.Key
}

func (c *keyCache) lookup(cacheKey string) (awsclients.Key, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key, ok := c.keys[cacheKey]
	return key, ok
}

func (c *keyCache) store(cacheKey string, key awsclients.Key) {
	c.mu.Lock()
	c.keys[cacheKey] = key
	c.mu.Unlock()
}

// NewSharedKeyManager creates a key manager.
func NewSharedKeyManager(clients Clients, accounts catalog.AccountsStore, lockService *locks.Service, prefix, environment string) *SharedKeyManager {
	return &SharedKeyManager{
		clients:     clients,
		accounts:    accounts,
		locks:       lockService,
		prefix:      prefix,
		environment: environment,
		cache:       &keyCache{keys: make(map[string]awsclients.Key)},
	}
}

// ForRequest returns a copy of the manager whose key locks carry the
// request ID. The key cache stays shared across copies.
func (m *SharedKeyManager) ForRequest(requestID string) Keys {
	c := *m
	c.locks = m.locks.ForRequest(requestID)
	return &c
}

// Alias returns the alias of the shared key for a provider account.
func (m *SharedKeyManager) Alias(hub, resourceAccountID string) string {
	return fmt.Sprintf("alias/%scdh-%s-%s-%s", m.prefix, m.environment, hub, resourceAccountID)
}

// GetOrCreate returns the shared key for the provider account and
// region, creating it when no key exists yet. Creation is guarded by a
// key-scoped lock; after acquiring it the alias is resolved again so
// two concurrent creators converge on one key.
func (m *SharedKeyManager) GetOrCreate(ctx context.Context, resourceAccount *model.Account, region string) (awsclients.Key, error) {
	cacheKey := resourceAccount.ID + "/" + region
	if key, ok := m.cache.lookup(cacheKey); ok {
		return key, nil
	}

	security, err := m.accounts.SecurityAccount(ctx, resourceAccount.Hub)
	if err != nil {
		return awsclients.Key{}, fmt.Errorf("resolve security account for hub %s: %w", resourceAccount.Hub, err)
	}
	client := m.clients.Keys(security.ID, region)
	alias := m.Alias(resourceAccount.Hub, resourceAccount.ID)

	key, err := client.GetKeyByAlias(ctx, alias)
	if err == nil {
		log.Info().Str("alias", alias).Str("region", region).
			Msg("shared key found, using it instead of creating a new one")
		m.cache.store(cacheKey, key)
		return key, nil
	}
	if !isKeyMissing(err) {
		return awsclients.Key{}, err
	}

	lock, err := m.locks.Acquire(ctx, resourceAccount.ID, locks.ScopeKey, region, "", nil)
	if err != nil {
		return awsclients.Key{}, err
	}
	defer m.release(ctx, lock)

	// Another worker may have created the key while we waited.
	key, err = client.GetKeyByAlias(ctx, alias)
	if err == nil {
		m.cache.store(cacheKey, key)
		return key, nil
	}
	if !isKeyMissing(err) {
		return awsclients.Key{}, err
	}

	policy, err := m.keyPolicy(resourceAccount, security.ID, nil, nil)
	if err != nil {
		return awsclients.Key{}, err
	}
	tags := map[string]string{
		managedByTagKey:  managedByTagValue,
		"owner":          resourceAccount.ID,
		"environment":    m.environment,
		"resourcePrefix": m.prefix,
		"hub":            resourceAccount.Hub,
	}

	log.Info().Str("account_id", resourceAccount.ID).Str("region", region).
		Msg("creating new shared key")
	key, err = client.CreateKey(ctx, policy, tags)
	if err != nil {
		return awsclients.Key{}, err
	}
	if err := client.CreateAlias(ctx, alias, key.ID); err != nil {
		return awsclients.Key{}, err
	}
	log.Info().Str("alias", alias).Str("key_id", key.ID).Str("region", region).
		Msg("created new shared key")

	m.cache.store(cacheKey, key)
	return key, nil
}

// RegeneratePolicy rebuilds the key policy from scratch for the given
// reader and writer account sets, under a key-scoped lock. The last
// writer wins; there is no merging with the current policy.
func (m *SharedKeyManager) RegeneratePolicy(ctx context.Context, key awsclients.Key, resourceAccount *model.Account, readers, writers []string) error {
	keyARN, err := arn.Parse(key.ARN)
	if err != nil {
		return err
	}
	client := m.clients.Keys(keyARN.Account, keyARN.Region)

	lock, err := m.locks.Acquire(ctx, key.ID, locks.ScopeKey, keyARN.Region, "", nil)
	if err != nil {
		return err
	}
	defer m.release(ctx, lock)

	policy, err := m.keyPolicy(resourceAccount, keyARN.Account, readers, writers)
	if err != nil {
		return err
	}
	log.Info().Str("key_id", key.ID).Str("region", keyARN.Region).
		Msg("updating shared key policy")
	return client.SetPolicy(ctx, key.ID, policy)
}

// keyPolicy builds the full policy document of a shared key. The
// provider account and the writers may use the key, readers may only
// decrypt, and the security account administers it.
func (m *SharedKeyManager) keyPolicy(resourceAccount *model.Account, securityAccountID string, readers, writers []string) (string, error) {
	partition := resourceAccount.Partition
	userARNs := awspolicy.AccountPrincipals(partition,
		uniqueSorted([]string{resourceAccount.ID}, writers))

	statements := []awspolicy.Statement{
		{
			Sid:       keyAdminSid,
			Effect:    "Allow",
			Principal: map[string]any{"AWS": arn.IAMRoot(partition, securityAccountID)},
			Action:    "kms:*",
			Resource:  "*",
		},
		{
			Sid:       keyUsageSid,
			Effect:    "Allow",
			Principal: map[string]any{"AWS": userARNs},
			Action:    []string{"kms:Encrypt", "kms:Decrypt", "kms:ReEncrypt*", "kms:GenerateDataKey*", "kms:DescribeKey"},
			Resource:  "*",
		},
		{
			Sid:       keyGrantsSid,
			Effect:    "Allow",
			Principal: map[string]any{"AWS": userARNs},
			Action:    []string{"kms:CreateGrant", "kms:ListGrants", "kms:RevokeGrant"},
			Resource:  "*",
			Condition: map[string]any{"Bool": map[string]any{"kms:GrantIsForAWSResource": "true"}},
		},
	}
	if len(readers) > 0 {
		statements = append(statements, awspolicy.Statement{
			Sid:       keyReadSid,
			Effect:    "Allow",
			Principal: map[string]any{"AWS": awspolicy.AccountPrincipals(partition, readers)},
			Action:    []string{"kms:Decrypt", "kms:DescribeKey"},
			Resource:  "*",
		})
	}
	return awspolicy.New(statements...).JSON()
}

func (m *SharedKeyManager) release(ctx context.Context, lock locks.Lock) {
	if err := m.locks.Release(ctx, lock); err != nil {
		log.Warn().Err(err).Str("lock_id", lock.ID).Msg("failed to release key lock")
	}
}

func isKeyMissing(err error) bool {
	var aliasNotFound *awsclients.AliasNotFoundError
	if errors.As(err, &aliasNotFound) {
		return true
	}
	var keyNotFound *awsclients.KeyNotFoundError
	return errors.As(err, &keyNotFound)
}
