package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/sellerdash_backend/config"
	"github.com/mmdatafocus/sellerdash_backend/insights"
	"github.com/mmdatafocus/sellerdash_backend/models"
	"github.com/mmdatafocus/sellerdash_backend/utils"
	"github.com/mmdatafocus/sellerdash_backend/viewstate"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const (
	testSecret    = "test-secret"
	testPushToken = "push-secret"
	pushPath      = "/pubsub/orders?token=" + testPushToken
)

type memStore struct {
	orders     []models.OrderRecord
	orderCalls int32
}

func (m *memStore) FetchOrders(context.Context, models.FilterSpec) ([]models.OrderRecord, error) {
	atomic.AddInt32(&m.orderCalls, 1)
	return m.orders, nil
}

func (m *memStore) FetchSalesOrders(ctx context.Context) ([]models.OrderRecord, error) {
	return m.FetchOrders(ctx, models.FilterSpec{})
}

func (m *memStore) FetchPurchaseOrders(context.Context) ([]models.OrderRecord, error) {
	return nil, nil
}

func (m *memStore) FetchProducts(context.Context, string) ([]models.Product, error) {
	return nil, nil
}

func (m *memStore) FetchProfile(_ context.Context, userId string) (*models.Profile, error) {
	return nil, &models.NotFoundError{Resource: "profile", Id: userId}
}

type staticInsights struct{}

func (staticInsights) AnalyzeReturns(context.Context, []insights.ReturnItem) (string, error) {
	return "Add size charts.", nil
}

func (staticInsights) Summarize(context.Context, []models.Product, string) (*models.DashboardSummary, error) {
	return &models.DashboardSummary{}, nil
}

func newTestServer(t *testing.T) (*gin.Engine, *viewstate.Registry, *memStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := &memStore{orders: []models.OrderRecord{
		{DocumentId: "d1", OrderId: "SO-1", Description: "Cotton Kurta", Amount: decimal.NewFromInt(50), Status: "returned", ReturnReason: "Wrong Size"},
		{DocumentId: "d2", OrderId: "SO-2", Description: "Brass Lamp", Amount: decimal.NewFromInt(20), Status: "processing"},
		{DocumentId: "d3", OrderId: "SO-3", Description: "Silk Scarf", Amount: decimal.NewFromInt(75), Status: "refunded"},
	}}
	registry := viewstate.NewRegistry(store, staticInsights{}, viewstate.ReturnsOptions{}, viewstate.DashboardOptions{})
	t.Cleanup(registry.Close)
	cfg := config.Config{Env: "test", AuthSecret: testSecret, PubSubToken: testPushToken}
	return newRouter(cfg, registry, nil, config.GetLogger()), registry, store
}

func authHeader(t *testing.T, userId string) string {
	t.Helper()
	token, err := utils.JwtGenerate([]byte(testSecret), userId, "Asha Rao", "asha@example.com", time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func request(r http.Handler, method, path, auth string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthzAndAuth(t *testing.T) {
	r, _, _ := newTestServer(t)

	assert.Equal(t, http.StatusNoContent, request(r, http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, request(r, http.MethodGet, "/api/returns", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, request(r, http.MethodGet, "/nope", "", nil).Code)
}

func TestReturnsEndpoints(t *testing.T) {
	r, registry, _ := newTestServer(t)
	auth := authHeader(t, "u-1")

	w := request(r, http.MethodGet, "/api/returns", auth, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rc, ok := registry.LookupReturns("u-1")
	require.True(t, ok)
	rc.Wait()

	var snap viewstate.ReturnsSnapshot
	w = request(r, http.MethodGet, "/api/returns", auth, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, 1, snap.View.TotalReturns)
	assert.Equal(t, "33.3", snap.View.DynamicReturnRate)
	assert.True(t, snap.View.RefundedAmount.Equal(decimal.NewFromInt(75)))

	w = request(r, http.MethodPut, "/api/returns/search", auth, gin.H{"term": "lamp"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Empty(t, snap.View.FilteredReturns)

	w = request(r, http.MethodPost, "/api/returns/load", auth, nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"seq":2`)
	rc.Wait()

	w = request(r, http.MethodPost, "/api/returns/insight", auth, nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	rc.Wait()
	assert.Equal(t, "Add size charts.", rc.Snapshot().Insight)
}

func TestReturnsExport(t *testing.T) {
	r, registry, _ := newTestServer(t)
	auth := authHeader(t, "u-1")
	request(r, http.MethodGet, "/api/returns", auth, nil)
	rc, _ := registry.LookupReturns("u-1")
	rc.Wait()

	w := request(r, http.MethodGet, "/api/returns/export", auth, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))

	f, err := excelize.OpenReader(w.Body)
	require.NoError(t, err)
	rows, err := f.GetRows("Returns")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "SO-1", rows[1][0])
}

func TestDashboardEndpoints(t *testing.T) {
	r, registry, _ := newTestServer(t)
	auth := authHeader(t, "u-1")

	request(r, http.MethodGet, "/api/dashboard", auth, nil)
	dc := registry.Dashboard(context.Background(), models.User{Id: "u-1"})
	dc.Wait()

	var snap viewstate.DashboardSnapshot
	w := request(r, http.MethodGet, "/api/dashboard?view=addProduct", auth, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "Asha", snap.GreetingName)
	assert.Equal(t, models.TabAddProduct, snap.ActiveTab)
	assert.True(t, snap.NeedsOnboarding)
	assert.Equal(t, viewstate.WelcomePath, snap.Redirect)

	w = request(r, http.MethodPut, "/api/dashboard/tab", auth, gin.H{"tab": "inventory"})
	require.Equal(t, http.StatusOK, w.Code)
	w = request(r, http.MethodPut, "/api/dashboard/tab", auth, gin.H{"tab": "billing"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = request(r, http.MethodPost, "/api/dashboard/quick-action", auth, gin.H{"label": "View your products"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"navigate":"/products"`)

	w = request(r, http.MethodGet, "/api/dashboard/top-selling-items", auth, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var items []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	assert.Len(t, items, 3)

	w = request(r, http.MethodGet, "/api/dashboard/kpis", auth, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Return Rate")
}

func pushBody(t *testing.T, payload any) map[string]any {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return map[string]any{
		"message":      map[string]any{"data": base64.StdEncoding.EncodeToString(data), "id": "m-1"},
		"subscription": "projects/p/subscriptions/orders",
	}
}

func TestOrdersPubSubAlwaysAcks(t *testing.T) {
	r, registry, store := newTestServer(t)
	auth := authHeader(t, "u-1")
	request(r, http.MethodGet, "/api/returns", auth, nil)
	rc, _ := registry.LookupReturns("u-1")
	rc.Wait()
	before := atomic.LoadInt32(&store.orderCalls)

	w := request(r, http.MethodPost, pushPath, "", pushBody(t, gin.H{"user_id": "u-1", "source": "sales"}))
	assert.Equal(t, http.StatusNoContent, w.Code)
	rc.Wait()
	assert.Greater(t, atomic.LoadInt32(&store.orderCalls), before)

	assert.Equal(t, http.StatusNoContent, request(r, http.MethodPost, pushPath, "", "not an envelope").Code)
	assert.Equal(t, http.StatusNoContent, request(r, http.MethodPost, pushPath, "", pushBody(t, gin.H{"source": "sales"})).Code)
}

func TestOrdersPubSubRequiresToken(t *testing.T) {
	r, registry, store := newTestServer(t)
	request(r, http.MethodGet, "/api/returns", authHeader(t, "u-1"), nil)
	rc, _ := registry.LookupReturns("u-1")
	rc.Wait()
	before := atomic.LoadInt32(&store.orderCalls)

	body := pushBody(t, gin.H{"user_id": "u-1"})
	assert.Equal(t, http.StatusUnauthorized, request(r, http.MethodPost, "/pubsub/orders", "", body).Code)
	assert.Equal(t, http.StatusUnauthorized, request(r, http.MethodPost, "/pubsub/orders?token=guess", "", body).Code)
	rc.Wait()
	assert.Equal(t, before, atomic.LoadInt32(&store.orderCalls))

	unconfigured := newRouter(config.Config{Env: "test", AuthSecret: testSecret}, registry, nil, config.GetLogger())
	assert.Equal(t, http.StatusNotFound, request(unconfigured, http.MethodPost, "/pubsub/orders", "", body).Code)
}
