package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/opencdh/datahub-in-go/pkg/config"
	"github.com/opencdh/datahub-in-go/pkg/locks"
	"github.com/opencdh/datahub-in-go/pkg/model"
	"github.com/opencdh/datahub-in-go/pkg/server"
	"github.com/opencdh/datahub-in-go/pkg/server/middleware"
)

// MockProvisioner is a mock implementation of server.Provisioner
type MockProvisioner struct {
	mock.Mock
}

func NewMockProvisioner() *MockProvisioner {
	return &MockProvisioner{}
}

func (m *MockProvisioner) GetResource(ctx context.Context, datasetID, stage, region string) (*model.Resource, error) {
	args := m.Called(ctx, datasetID, stage, region)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Resource), args.Error(1)
}

func (m *MockProvisioner) ListResources(ctx context.Context, datasetID string) ([]model.Resource, error) {
	args := m.Called(ctx, datasetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Resource), args.Error(1)
}

func (m *MockProvisioner) CreateResource(ctx context.Context, datasetID, stage, region, user string) (*model.Resource, error) {
	args := m.Called(ctx, datasetID, stage, region, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Resource), args.Error(1)
}

func (m *MockProvisioner) DeleteResource(ctx context.Context, datasetID, stage, region string) error {
	args := m.Called(ctx, datasetID, stage, region)
	return args.Error(0)
}

func (m *MockProvisioner) UpdateReadAccess(ctx context.Context, datasetID, stage, region string, accountIDs []string) error {
	args := m.Called(ctx, datasetID, stage, region, accountIDs)
	return args.Error(0)
}

// fakeLockStore is an in-memory lock store for endpoint tests.
type fakeLockStore struct {
	mu    sync.Mutex
	locks map[string]locks.Lock
}

func newFakeLockStore() *fakeLockStore {
	return &fakeLockStore{locks: map[string]locks.Lock{}}
}

func (s *fakeLockStore) Create(_ context.Context, lock locks.Lock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.locks[lock.ID]; ok {
		return locks.ErrLockExists
	}
	s.locks[lock.ID] = lock
	return nil
}

func (s *fakeLockStore) Get(_ context.Context, id string) (locks.Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		return locks.Lock{}, locks.ErrLockNotFound
	}
	return lock, nil
}

func (s *fakeLockStore) Delete(_ context.Context, lock locks.Lock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, lock.ID)
	return nil
}

func (s *fakeLockStore) List(_ context.Context) ([]locks.Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]locks.Lock, 0, len(s.locks))
	for _, lock := range s.locks {
		out = append(out, lock)
	}
	return out, nil
}

type fakeHealthStore struct {
	err error
}

func (f fakeHealthStore) CheckConnectivity(context.Context) error { return f.err }

var testSecret = []byte("endpoint-test-secret")

type testServer struct {
	*server.Server
	lockStore *fakeLockStore
	health    *fakeHealthStore
}

func newTestServer(prov server.Provisioner) *testServer {
	cfg := &config.Config{
		Environment:      "dev",
		Partition:        "aws",
		BindAddress:      "127.0.0.1",
		Port:             "8080",
		RetryAttempts:    2,
		RetryWaitSeconds: 0,
	}
	lockStore := newFakeLockStore()
	health := &fakeHealthStore{}
	srv := server.NewServer(
		cfg,
		nil,
		func(string) server.Provisioner { return prov },
		locks.NewService(lockStore),
		health,
		middleware.NewJWTAuthenticator(testSecret),
	)
	RegisterAll(srv)
	return &testServer{Server: srv, lockStore: lockStore, health: health}
}

func authHeader(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "jdoe",
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})
	signed, err := token.SignedString(testSecret)
	require.NoError(t, err)
	return "Bearer " + signed
}

func doRequest(t *testing.T, srv *testServer, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", authHeader(t))
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	return rec
}

func sampleResource() *model.Resource {
	return &model.Resource{
		DatasetID:         "marketing_events",
		Stage:             "prod",
		Region:            "eu-west-1",
		Hub:               "emea",
		ResourceAccountID: "111111111111",
		OwnerAccountID:    "201111111111",
		ARN:               "arn:aws:s3:::cdh-marketing-events",
		KMSKeyARN:         "arn:aws:kms:eu-west-1:999999999999:key/key-1",
		SNSTopicARN:       "arn:aws:sns:eu-west-1:111111111111:cdh-marketing-events",
		CreatorUserID:     "jdoe",
	}
}
