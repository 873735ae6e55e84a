package main

import (
	"context"
	"errors"
	"testing"

	"github.com/mmdatafocus/sellerdash_backend/config"
	"github.com/mmdatafocus/sellerdash_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	orders   map[models.OrderSource][]models.OrderRecord
	products map[string][]models.Product
	profiles map[string]*models.Profile
	failFor  string
}

func (f *fakeSource) FetchOrders(_ context.Context, spec models.FilterSpec) ([]models.OrderRecord, error) {
	return f.orders[spec.Source], nil
}

func (f *fakeSource) FetchProducts(_ context.Context, userId string) ([]models.Product, error) {
	if userId == f.failFor {
		return nil, &models.RemoteFetchError{Resource: "products", StatusCode: 500, Err: errors.New("boom")}
	}
	return f.products[userId], nil
}

func (f *fakeSource) FetchProfile(_ context.Context, userId string) (*models.Profile, error) {
	if p, ok := f.profiles[userId]; ok {
		return p, nil
	}
	return nil, &models.NotFoundError{Resource: "profile", Id: userId}
}

type recordingSink struct {
	orders   map[models.OrderSource]int
	products []models.Product
	profiles []*models.Profile
}

func (r *recordingSink) UpsertOrders(_ context.Context, s models.OrderSource, records []models.OrderRecord) error {
	if r.orders == nil {
		r.orders = map[models.OrderSource]int{}
	}
	r.orders[s] += len(records)
	return nil
}

func (r *recordingSink) UpsertProducts(_ context.Context, products []models.Product) error {
	r.products = append(r.products, products...)
	return nil
}

func (r *recordingSink) UpsertProfile(_ context.Context, profile *models.Profile) error {
	r.profiles = append(r.profiles, profile)
	return nil
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		orders: map[models.OrderSource][]models.OrderRecord{
			models.OrderSourceSales:    {{DocumentId: "s1"}, {DocumentId: "s2"}},
			models.OrderSourcePurchase: {{DocumentId: "p1"}},
		},
		products: map[string][]models.Product{
			"u-1": {{DocumentId: "prod-1", UserId: "u-1"}},
			"u-2": {{DocumentId: "prod-2", UserId: "u-2"}, {DocumentId: "prod-3", UserId: "u-2"}},
		},
		profiles: map[string]*models.Profile{
			"u-1": {DocumentId: "u-1", PinCode: "560001"},
		},
	}
}

func TestSyncMirror(t *testing.T) {
	src := newFakeSource()
	dst := &recordingSink{}

	stats, err := syncMirror(context.Background(), src, dst, syncOptions{users: []string{"u-1", "u-2"}}, config.GetLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Orders[models.OrderSourceSales])
	assert.Equal(t, 1, stats.Orders[models.OrderSourcePurchase])
	assert.Equal(t, 3, stats.Products)
	assert.Equal(t, 1, stats.Profiles)
	assert.Zero(t, stats.Failed)

	assert.Equal(t, 2, dst.orders[models.OrderSourceSales])
	require.Len(t, dst.profiles, 1)
	assert.Equal(t, "u-1", dst.profiles[0].UserId)
}

func TestSyncMirror_SellerFailureIsSkipped(t *testing.T) {
	src := newFakeSource()
	src.failFor = "u-1"
	dst := &recordingSink{}

	stats, err := syncMirror(context.Background(), src, dst, syncOptions{users: []string{"u-1", "u-2"}, skipOrders: true}, config.GetLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 2, stats.Products)
	assert.Empty(t, dst.orders)
}

func TestSyncMirror_DryRunWritesNothing(t *testing.T) {
	dst := &recordingSink{}
	stats, err := syncMirror(context.Background(), newFakeSource(), dst, syncOptions{users: []string{"u-1"}, dryRun: true}, config.GetLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Orders[models.OrderSourceSales])
	assert.Equal(t, 1, stats.Products)
	assert.Empty(t, dst.orders)
	assert.Empty(t, dst.products)
	assert.Empty(t, dst.profiles)
}
