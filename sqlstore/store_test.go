package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mmdatafocus/sellerdash_backend/appctx"
	"github.com/mmdatafocus/sellerdash_backend/config"
	"github.com/mmdatafocus/sellerdash_backend/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), config.GormConfig())
	require.NoError(t, err)
	require.NoError(t, config.InstallPlugins(db))
	return New(db), mock
}

var orderColumns = []string{"document_id", "order_id", "description", "amount", "status", "platform", "order_date", "return_reason", "created_at"}

func TestFetchOrders(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT \\* FROM `purchase_orders` ORDER BY created_at DESC LIMIT").
		WillReturnRows(sqlmock.NewRows(orderColumns).
			AddRow("d1", "PO-1", "Cotton roll", "1200.5000", "Completed", "", nil, "", created).
			AddRow("d2", "PO-2", "Thread", "80.0000", "Returned", "Meesho", created, "Damaged", created))

	records, err := store.FetchOrders(context.Background(), models.FilterSpec{
		Source:      models.OrderSourcePurchase,
		NewestFirst: true,
		Limit:       10,
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "PO-1", records[0].OrderId)
	assert.True(t, records[0].Amount.Equal(decimal.RequireFromString("1200.5")))
	assert.Nil(t, records[0].OrderDate)
	assert.Equal(t, "Damaged", records[1].ReturnReason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchOrders_Failure(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT \\* FROM `sales_orders`").WillReturnError(errors.New("connection refused"))

	_, err := store.FetchSalesOrders(context.Background())
	var rf *models.RemoteFetchError
	require.True(t, errors.As(err, &rf))
	assert.Equal(t, "sales_orders", rf.Resource)
}

func TestFetchProfile_NotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT \\* FROM `profiles` WHERE user_id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"document_id", "user_id", "name", "pin_code", "created_at"}))

	_, err := store.FetchProfile(context.Background(), "u-9")
	require.Error(t, err)
	assert.True(t, models.IsNotFound(err))
}

func TestFetchProfile(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT \\* FROM `profiles` WHERE user_id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"document_id", "user_id", "name", "pin_code", "created_at"}).
			AddRow("u-1", "u-1", "Asha", "560001", time.Now()))

	profile, err := store.FetchProfile(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "560001", profile.PinCode)
}

func TestFetchProducts_ExplicitOwnerNotDuplicated(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := appctx.Set(context.Background(), appctx.ContextKeyUserId, "u-1")

	mock.ExpectQuery("SELECT \\* FROM `products` WHERE user_id = \\? ORDER BY created_at DESC$").
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"document_id", "user_id", "name", "category", "stock", "price", "created_at"}).
			AddRow("p1", "u-1", "Kurta", "Clothing", 4, "499.0000", time.Now()))

	products, err := store.FetchProducts(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, 4, products[0].Stock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOwnerGuardScopesUnfilteredReads(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := appctx.Set(context.Background(), appctx.ContextKeyUserId, "u-1")

	mock.ExpectQuery("SELECT \\* FROM `products` WHERE `products`.`user_id` = \\?").
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"document_id", "user_id"}))

	var products []models.Product
	require.NoError(t, store.db.WithContext(ctx).Find(&products).Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertOrders(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `sales_orders` .* ON DUPLICATE KEY UPDATE").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := store.UpsertOrders(context.Background(), models.OrderSourceSales, []models.OrderRecord{
		{DocumentId: "d1", OrderId: "SO-1", Amount: decimal.NewFromInt(10), Status: "new"},
		{DocumentId: "d2", OrderId: "SO-2", Amount: decimal.NewFromInt(20), Status: "returned"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	// nothing to write
	require.NoError(t, store.UpsertOrders(context.Background(), models.OrderSourceSales, nil))
}
