package provision

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/opencdh/datahub-in-go/pkg/awsclients"
	"github.com/opencdh/datahub-in-go/pkg/catalog"
	"github.com/opencdh/datahub-in-go/pkg/locks"
	"github.com/opencdh/datahub-in-go/pkg/model"
)

// fakeProvider is an in-memory provider backend shared by the fake
// clients. It records every mutating call so tests can assert that a
// failed workflow left no side effects behind.
type fakeProvider struct {
	mu       sync.Mutex
	keySeq   int
	keys     map[string]string      // key ID -> policy JSON
	aliases  map[string]string      // account/region/alias -> key ID
	topics   map[string]string      // topic ARN -> policy JSON
	buckets  map[string]*fakeBucket // bucket name -> state
	taken    map[string]bool        // bucket names taken globally
	failures map[string]error       // operation name -> injected error
	calls    []string
}

type fakeBucket struct {
	policy  string
	tags    map[string]string
	events  string // topic ARN receiving creation events
	objects int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		keys:     map[string]string{},
		aliases:  map[string]string{},
		topics:   map[string]string{},
		buckets:  map[string]*fakeBucket{},
		taken:    map[string]bool{},
		failures: map[string]error{},
	}
}

func (p *fakeProvider) failOn(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[op] = err
}

func (p *fakeProvider) record(op string) error {
	p.calls = append(p.calls, op)
	return p.failures[op]
}

func (p *fakeProvider) mutations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *fakeProvider) Keys(accountID, region string) KeyAPI {
	return &fakeKeyClient{p: p, account: accountID, region: region}
}

func (p *fakeProvider) Channels(accountID, region string) ChannelAPI {
	return &fakeChannelClient{p: p, account: accountID, region: region}
}

func (p *fakeProvider) Buckets(accountID, region string) BucketAPI {
	return &fakeBucketClient{p: p, account: accountID, region: region}
}

type fakeKeyClient struct {
	p               *fakeProvider
	account, region string
}

func (c *fakeKeyClient) aliasKey(alias string) string {
	return c.account + "/" + c.region + "/" + alias
}

func (c *fakeKeyClient) GetKeyByAlias(_ context.Context, alias string) (awsclients.Key, error) {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	keyID, ok := c.p.aliases[c.aliasKey(alias)]
	if !ok {
		return awsclients.Key{}, &awsclients.AliasNotFoundError{Alias: alias}
	}
	return awsclients.Key{ID: keyID, ARN: c.keyARN(keyID)}, nil
}

func (c *fakeKeyClient) CreateKey(_ context.Context, policy string, _ map[string]string) (awsclients.Key, error) {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	if err := c.p.record("kms.CreateKey"); err != nil {
		return awsclients.Key{}, err
	}
	c.p.keySeq++
	keyID := fmt.Sprintf("key-%d", c.p.keySeq)
	c.p.keys[keyID] = policy
	return awsclients.Key{ID: keyID, ARN: c.keyARN(keyID)}, nil
}

func (c *fakeKeyClient) CreateAlias(_ context.Context, alias, keyID string) error {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	if err := c.p.record("kms.CreateAlias"); err != nil {
		return err
	}
	c.p.aliases[c.aliasKey(alias)] = keyID
	return nil
}

func (c *fakeKeyClient) SetPolicy(_ context.Context, keyID, policy string) error {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	if err := c.p.record("kms.SetPolicy"); err != nil {
		return err
	}
	if _, ok := c.p.keys[keyID]; !ok {
		return &awsclients.KeyNotFoundError{KeyID: keyID}
	}
	c.p.keys[keyID] = policy
	return nil
}

func (c *fakeKeyClient) keyARN(keyID string) string {
	return fmt.Sprintf("arn:aws:kms:%s:%s:key/%s", c.region, c.account, keyID)
}

type fakeChannelClient struct {
	p               *fakeProvider
	account, region string
}

func (c *fakeChannelClient) CreateTopic(_ context.Context, name, _ string, _ map[string]string) (string, error) {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	if err := c.p.record("sns.CreateTopic"); err != nil {
		return "", err
	}
	topicARN := fmt.Sprintf("arn:aws:sns:%s:%s:%s", c.region, c.account, name)
	if _, ok := c.p.topics[topicARN]; !ok {
		c.p.topics[topicARN] = ""
	}
	return topicARN, nil
}

func (c *fakeChannelClient) DeleteTopic(_ context.Context, topicARN string) error {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	if err := c.p.record("sns.DeleteTopic"); err != nil {
		return err
	}
	if _, ok := c.p.topics[topicARN]; !ok {
		return &awsclients.TopicNotFoundError{TopicARN: topicARN}
	}
	delete(c.p.topics, topicARN)
	return nil
}

func (c *fakeChannelClient) GetRawPolicy(_ context.Context, topicARN string) (string, error) {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	policy, ok := c.p.topics[topicARN]
	if !ok {
		return "", &awsclients.TopicNotFoundError{TopicARN: topicARN}
	}
	return policy, nil
}

func (c *fakeChannelClient) SetRawPolicy(_ context.Context, topicARN, policy string) error {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	if err := c.p.record("sns.SetRawPolicy"); err != nil {
		return err
	}
	if _, ok := c.p.topics[topicARN]; !ok {
		return &awsclients.TopicNotFoundError{TopicARN: topicARN}
	}
	c.p.topics[topicARN] = policy
	return nil
}

type fakeBucketClient struct {
	p               *fakeProvider
	account, region string
}

func (c *fakeBucketClient) CreateEncryptedBucket(_ context.Context, name, _ string) error {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	if err := c.p.record("s3.CreateBucket"); err != nil {
		return err
	}
	if c.p.taken[name] {
		return &awsclients.BucketAlreadyExistsError{Name: name}
	}
	if _, ok := c.p.buckets[name]; ok {
		return &awsclients.BucketAlreadyExistsError{Name: name}
	}
	c.p.buckets[name] = &fakeBucket{}
	return nil
}

func (c *fakeBucketClient) DeleteBucket(_ context.Context, name string) error {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	if err := c.p.record("s3.DeleteBucket"); err != nil {
		return err
	}
	bucket, ok := c.p.buckets[name]
	if !ok {
		return &awsclients.BucketNotFoundError{Name: name}
	}
	if bucket.objects > 0 {
		return &awsclients.BucketNotEmptyError{Name: name}
	}
	delete(c.p.buckets, name)
	return nil
}

func (c *fakeBucketClient) IsEmpty(_ context.Context, name string) (bool, error) {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	bucket, ok := c.p.buckets[name]
	if !ok {
		return false, &awsclients.BucketNotFoundError{Name: name}
	}
	return bucket.objects == 0, nil
}

func (c *fakeBucketClient) GetRawPolicy(_ context.Context, name string) (string, error) {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	bucket, ok := c.p.buckets[name]
	if !ok {
		return "", &awsclients.BucketNotFoundError{Name: name}
	}
	return bucket.policy, nil
}

func (c *fakeBucketClient) SetRawPolicy(_ context.Context, name, policy string) error {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	if err := c.p.record("s3.SetRawPolicy"); err != nil {
		return err
	}
	bucket, ok := c.p.buckets[name]
	if !ok {
		return &awsclients.BucketNotFoundError{Name: name}
	}
	bucket.policy = policy
	return nil
}

func (c *fakeBucketClient) SetTags(_ context.Context, name string, tags map[string]string) error {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	if err := c.p.record("s3.SetTags"); err != nil {
		return err
	}
	bucket, ok := c.p.buckets[name]
	if !ok {
		return &awsclients.BucketNotFoundError{Name: name}
	}
	bucket.tags = tags
	return nil
}

func (c *fakeBucketClient) EnableCreationEvents(_ context.Context, name, topicARN string) error {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	if err := c.p.record("s3.EnableCreationEvents"); err != nil {
		return err
	}
	bucket, ok := c.p.buckets[name]
	if !ok {
		return &awsclients.BucketNotFoundError{Name: name}
	}
	bucket.events = topicARN
	return nil
}

// In-memory catalog stores.

type memResources struct {
	mu        sync.Mutex
	resources map[string]model.Resource
}

func newMemResources() *memResources {
	return &memResources{resources: map[string]model.Resource{}}
}

func resourceKey(datasetID, stage, region string) string {
	return strings.Join([]string{datasetID, stage, region}, "/")
}

func (s *memResources) Exists(_ context.Context, datasetID, stage, region string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.resources[resourceKey(datasetID, stage, region)]
	return ok, nil
}

func (s *memResources) Create(_ context.Context, resource *model.Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[resourceKey(resource.DatasetID, resource.Stage, resource.Region)] = *resource
	return nil
}

func (s *memResources) Get(_ context.Context, datasetID, stage, region string) (*model.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resource, ok := s.resources[resourceKey(datasetID, stage, region)]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &resource, nil
}

func (s *memResources) Delete(_ context.Context, datasetID, stage, region string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.resources, resourceKey(datasetID, stage, region))
	return nil
}

func (s *memResources) ListByDataset(_ context.Context, datasetID string) ([]model.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Resource
	for _, resource := range s.resources {
		if resource.DatasetID == datasetID {
			out = append(out, resource)
		}
	}
	return out, nil
}

func (s *memResources) ListByResourceAccount(_ context.Context, accountID string) ([]model.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Resource
	for _, resource := range s.resources {
		if resource.ResourceAccountID == accountID {
			out = append(out, resource)
		}
	}
	return out, nil
}

type memDatasets struct {
	mu       sync.Mutex
	datasets map[string]model.Dataset
	grants   map[string][]string // dataset/stage/region -> account IDs
}

func newMemDatasets(datasets ...model.Dataset) *memDatasets {
	s := &memDatasets{datasets: map[string]model.Dataset{}, grants: map[string][]string{}}
	for _, dataset := range datasets {
		s.datasets[dataset.ID] = dataset
	}
	return s
}

func (s *memDatasets) Get(_ context.Context, datasetID string) (*model.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dataset, ok := s.datasets[datasetID]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &dataset, nil
}

func (s *memDatasets) ReadAccessAccounts(_ context.Context, datasetID, stage, region string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.grants[resourceKey(datasetID, stage, region)]...), nil
}

func (s *memDatasets) ReplaceReadGrants(_ context.Context, datasetID, stage, region string, accountIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[resourceKey(datasetID, stage, region)] = append([]string(nil), accountIDs...)
	return nil
}

type memAccounts struct {
	accounts map[string]model.Account
}

func newMemAccounts(accounts ...model.Account) *memAccounts {
	s := &memAccounts{accounts: map[string]model.Account{}}
	for _, account := range accounts {
		s.accounts[account.ID] = account
	}
	return s
}

func (s *memAccounts) Get(_ context.Context, accountID string) (*model.Account, error) {
	account, ok := s.accounts[accountID]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &account, nil
}

func (s *memAccounts) SecurityAccount(_ context.Context, hub string) (*model.Account, error) {
	for _, account := range s.accounts {
		if account.Hub == hub && account.Purpose == model.PurposeSecurity {
			a := account
			return &a, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (s *memAccounts) ResourceAccount(_ context.Context, hub, stage string) (*model.Account, error) {
	for _, account := range s.accounts {
		if account.Hub == hub && account.Purpose == model.PurposeResources && account.Stage == stage {
			a := account
			return &a, nil
		}
	}
	return nil, catalog.ErrNotFound
}

// memLockStore backs the lock service in tests.
type memLockStore struct {
	mu      sync.Mutex
	locks   map[string]locks.Lock
	created []locks.Lock
}

func newMemLockStore() *memLockStore {
	return &memLockStore{locks: map[string]locks.Lock{}}
}

func (s *memLockStore) Create(_ context.Context, lock locks.Lock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.locks[lock.ID]; ok {
		return locks.ErrLockExists
	}
	s.locks[lock.ID] = lock
	s.created = append(s.created, lock)
	return nil
}

// acquired returns every lock ever created, released ones included.
func (s *memLockStore) acquired() []locks.Lock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]locks.Lock(nil), s.created...)
}

func (s *memLockStore) Get(_ context.Context, id string) (locks.Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		return locks.Lock{}, locks.ErrLockNotFound
	}
	return lock, nil
}

func (s *memLockStore) Delete(_ context.Context, lock locks.Lock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, lock.ID)
	return nil
}

func (s *memLockStore) List(_ context.Context) ([]locks.Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]locks.Lock, 0, len(s.locks))
	for _, lock := range s.locks {
		out = append(out, lock)
	}
	return out, nil
}
