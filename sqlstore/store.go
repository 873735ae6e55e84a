package sqlstore

import (
	"context"
	"errors"

	"github.com/mmdatafocus/sellerdash_backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const upsertBatchSize = 100

// Store reads the seller collections from the MySQL mirror. It serves the
// same reads as the Appwrite client so either can back the controllers.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) FetchOrders(ctx context.Context, spec models.FilterSpec) ([]models.OrderRecord, error) {
	source := spec.Source
	if source == "" {
		source = models.OrderSourceSales
	}
	table := source.TableName()

	tx := s.db.WithContext(ctx).Table(table)
	if spec.NewestFirst {
		tx = tx.Order("created_at DESC")
	}
	if spec.Limit > 0 {
		tx = tx.Limit(spec.Limit)
	}

	var records []models.OrderRecord
	if err := tx.Find(&records).Error; err != nil {
		return nil, &models.RemoteFetchError{Resource: table, Err: err}
	}
	return records, nil
}

func (s *Store) FetchSalesOrders(ctx context.Context) ([]models.OrderRecord, error) {
	return s.FetchOrders(ctx, models.FilterSpec{Source: models.OrderSourceSales, NewestFirst: true})
}

func (s *Store) FetchPurchaseOrders(ctx context.Context) ([]models.OrderRecord, error) {
	return s.FetchOrders(ctx, models.FilterSpec{Source: models.OrderSourcePurchase, NewestFirst: true})
}

func (s *Store) FetchProducts(ctx context.Context, userId string) ([]models.Product, error) {
	var products []models.Product
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userId).
		Order("created_at DESC").
		Find(&products).Error
	if err != nil {
		return nil, &models.RemoteFetchError{Resource: "products", Err: err}
	}
	return products, nil
}

func (s *Store) FetchProfile(ctx context.Context, userId string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userId).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &models.NotFoundError{Resource: "profile", Id: userId}
	}
	if err != nil {
		return nil, &models.RemoteFetchError{Resource: "profiles", Err: err}
	}
	return &profile, nil
}

// UpsertOrders writes records into the source's mirror table, replacing rows
// with the same document id.
func (s *Store) UpsertOrders(ctx context.Context, source models.OrderSource, records []models.OrderRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Table(source.TableName()).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(&records, upsertBatchSize).Error
}

func (s *Store) UpsertProducts(ctx context.Context, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(&products, upsertBatchSize).Error
}

func (s *Store) UpsertProfile(ctx context.Context, profile *models.Profile) error {
	if profile == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(profile).Error
}
