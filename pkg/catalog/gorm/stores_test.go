package gorm

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/opencdh/datahub-in-go/pkg/catalog"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	gormDB, err := gorm.Open(
		postgres.New(postgres.Config{
			Conn:                 mockDB,
			PreferSimpleProtocol: true,
		}),
		&gorm.Config{
			SkipDefaultTransaction: true,
			Logger:                 logger.Default.LogMode(logger.Silent),
		},
	)
	require.NoError(t, err)

	return gormDB, mock
}

func TestResourceExists(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewResourcesStore(db)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("sales_orders", "prod", "eu-west-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := store.Exists(context.Background(), "sales_orders", "prod", "eu-west-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestResourceGetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewResourcesStore(db)

	mock.ExpectQuery(`SELECT .* FROM "resources"`).
		WithArgs("sales_orders", "prod", "eu-west-1").
		WillReturnRows(sqlmock.NewRows([]string{"dataset_id"}))

	_, err := store.Get(context.Background(), "sales_orders", "prod", "eu-west-1")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestResourceGet(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewResourcesStore(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"dataset_id", "stage", "region", "hub", "resource_account_id",
		"owner_account_id", "arn", "kms_key_arn", "sns_topic_arn",
		"creator_user_id", "created_at", "updated_at",
	}).AddRow(
		"sales_orders", "prod", "eu-west-1", "hub1", "111122223333",
		"444455556666", "arn:aws:s3:::cdh-sales-orders", "arn:aws:kms:eu-west-1:999988887777:key/key-1",
		"arn:aws:sns:eu-west-1:111122223333:cdh-sales-orders", "user-1", now, now,
	)
	mock.ExpectQuery(`SELECT .* FROM "resources"`).
		WithArgs("sales_orders", "prod", "eu-west-1").
		WillReturnRows(rows)

	resource, err := store.Get(context.Background(), "sales_orders", "prod", "eu-west-1")
	require.NoError(t, err)
	assert.Equal(t, "111122223333", resource.ResourceAccountID)
	assert.Equal(t, "cdh-sales-orders", resource.Name())
}

func TestReadAccessAccounts(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewDatasetsStore(db)

	rows := sqlmock.NewRows([]string{"account_id"}).
		AddRow("444455556666").
		AddRow("777788889999")
	mock.ExpectQuery(`SELECT account_id FROM dataset_read_grants`).
		WithArgs("sales_orders", "prod", "eu-west-1").
		WillReturnRows(rows)

	accounts, err := store.ReadAccessAccounts(context.Background(), "sales_orders", "prod", "eu-west-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"444455556666", "777788889999"}, accounts)
}

func TestSecurityAccount(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewAccountsStore(db)

	rows := sqlmock.NewRows([]string{"account_id", "purpose", "hub", "stage", "partition", "created_at"}).
		AddRow("999988887777", "security", "hub1", "", "aws", time.Now())
	mock.ExpectQuery(`SELECT .* FROM "accounts"`).
		WithArgs("hub1", "security").
		WillReturnRows(rows)

	account, err := store.SecurityAccount(context.Background(), "hub1")
	require.NoError(t, err)
	assert.Equal(t, "999988887777", account.ID)
}
