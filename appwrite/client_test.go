package appwrite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mmdatafocus/sellerdash_backend/config"
	"github.com/mmdatafocus/sellerdash_backend/models"
	"github.com/mmdatafocus/sellerdash_backend/models/reports"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAppwrite struct {
	mu       sync.Mutex
	requests []*http.Request
	handler  http.HandlerFunc
}

func (f *fakeAppwrite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r)
	f.mu.Unlock()
	f.handler(w, r)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *fakeAppwrite) {
	t.Helper()
	fake := &fakeAppwrite{handler: handler}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	c := NewClient(config.AppwriteConfig{
		Endpoint:                 srv.URL + "/v1",
		ProjectId:                "proj",
		ApiKey:                   "key",
		DatabaseId:               "db",
		ProductsCollectionId:     "products",
		PurchaseOrdersCollection: "purchase",
		SalesOrdersCollection:    "sales",
		ProfilesCollectionId:     "profiles",
	})
	return c, fake
}

func writeDocs(w http.ResponseWriter, docs ...string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"total":%d,"documents":[%s]}`, len(docs), strings.Join(docs, ","))
}

func TestFetchOrders_DecodesAndSkipsMissingIds(t *testing.T) {
	c, fake := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeDocs(w,
			`{"$id":"d1","order_id":"SO-1","description":"Kurta","amount":499,"status":"Returned","return_reason":"Wrong Size","order_date":"2024-07-01","$createdAt":"2024-07-01T10:00:00.000+00:00"}`,
			`{"$id":"d2","order_id":"SO-2","description":"Lamp","amount":"₹1,250.50","status":"Refunded"}`,
			`{"$id":"d3","order_id":"SO-3","description":"No status","amount":20}`,
			`{"order_id":"SO-4","description":"No id","amount":5,"status":"new"}`,
			`{"$id":"d5","order_id":"SO-5","description":"Bad amount","amount":"lots","status":"new"}`,
			`{"$id":"d6","order_id":"SO-6","description":"Negative","amount":-3,"status":"new"}`,
		)
	})

	records, err := c.FetchOrders(context.Background(), models.FilterSpec{Source: models.OrderSourceSales, NewestFirst: true})
	require.NoError(t, err)
	require.Len(t, records, 5)

	assert.Equal(t, "SO-1", records[0].OrderId)
	assert.True(t, records[0].Amount.Equal(decimal.NewFromInt(499)))
	assert.Equal(t, models.OrderStatus("Returned"), records[0].Status)
	require.NotNil(t, records[0].OrderDate)
	assert.Equal(t, 2024, records[0].OrderDate.Year())
	assert.True(t, records[1].Amount.Equal(decimal.RequireFromString("1250.5")))
	assert.Equal(t, models.OrderStatus(""), records[2].Status)
	assert.Equal(t, "SO-5", records[3].OrderId)
	assert.True(t, records[3].Amount.IsZero())
	assert.Equal(t, "SO-6", records[4].OrderId)
	assert.True(t, records[4].Amount.IsZero())

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	assert.Equal(t, "/v1/databases/db/collections/sales/documents", req.URL.Path)
	assert.Equal(t, "proj", req.Header.Get("X-Appwrite-Project"))
	assert.Equal(t, "key", req.Header.Get("X-Appwrite-Key"))
	queries := req.URL.Query()["queries[]"]
	assert.Contains(t, queries, `{"method":"orderDesc","attribute":"$createdAt"}`)
	assert.Contains(t, queries, `{"method":"limit","values":[100]}`)
}

func TestFetchOrders_BadAmountStillCountsAsReturn(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeDocs(w,
			`{"$id":"r1","order_id":"SO-1","description":"Kurta","amount":"N/A","status":"Returned","return_reason":"Wrong Size"}`,
			`{"$id":"c1","order_id":"SO-2","description":"Lamp","amount":100,"status":"completed"}`,
		)
	})

	records, err := c.FetchOrders(context.Background(), models.FilterSpec{})
	require.NoError(t, err)
	require.Len(t, records, 2)

	view := reports.BuildReturnsView(records, "")
	assert.Equal(t, 1, view.TotalReturns)
	assert.Equal(t, "50.0", view.DynamicReturnRate)
	require.Len(t, view.ReasonBreakdown, 1)
	assert.Equal(t, "Wrong Size", view.ReasonBreakdown[0].Reason)
}

func TestFetchOrders_PaginatesWithCursor(t *testing.T) {
	c, fake := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		cursor := ""
		for _, q := range r.URL.Query()["queries[]"] {
			var parsed Query
			_ = json.Unmarshal([]byte(q), &parsed)
			if parsed.Method == "cursorAfter" {
				cursor = parsed.Values[0].(string)
			}
		}
		switch cursor {
		case "":
			writeDocs(w, `{"$id":"a","status":"new"}`, `{"$id":"b","status":"new"}`)
		case "b":
			writeDocs(w, `{"$id":"c","status":"returned"}`)
		default:
			t.Errorf("unexpected cursor %q", cursor)
			writeDocs(w)
		}
	})
	c.pageSize = 2

	records, err := c.FetchOrders(context.Background(), models.FilterSpec{Source: models.OrderSourcePurchase})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "c", records[2].DocumentId)
	require.Len(t, fake.requests, 2)
	assert.Equal(t, "/v1/databases/db/collections/purchase/documents", fake.requests[0].URL.Path)
}

func TestFetchOrders_RespectsLimit(t *testing.T) {
	c, fake := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeDocs(w, `{"$id":"a","status":"new"}`, `{"$id":"b","status":"new"}`)
	})
	c.pageSize = 2

	records, err := c.FetchOrders(context.Background(), models.FilterSpec{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Len(t, fake.requests, 1)
}

func TestFetchOrders_RemoteFailure(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid API key","code":401,"type":"user_unauthorized"}`))
	})

	_, err := c.FetchOrders(context.Background(), models.FilterSpec{})
	require.Error(t, err)
	var rf *models.RemoteFetchError
	require.True(t, errors.As(err, &rf))
	assert.Equal(t, http.StatusUnauthorized, rf.StatusCode)
	assert.Contains(t, err.Error(), "Invalid API key")
}

func TestFetchOrders_Unreachable(t *testing.T) {
	c := NewClient(config.AppwriteConfig{Endpoint: "http://127.0.0.1:1", SalesOrdersCollection: "sales"})

	_, err := c.FetchOrders(context.Background(), models.FilterSpec{})
	var rf *models.RemoteFetchError
	require.True(t, errors.As(err, &rf))
	assert.Equal(t, 0, rf.StatusCode)
}

func TestFetchProfile(t *testing.T) {
	c, fake := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/missing") {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Document with the requested ID could not be found.","code":404}`))
			return
		}
		_, _ = w.Write([]byte(`{"$id":"u-1","name":"Asha","pinCode":560001}`))
	})

	profile, err := c.FetchProfile(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "560001", profile.PinCode)
	assert.Equal(t, "u-1", profile.UserId)
	assert.Equal(t, "/v1/databases/db/collections/profiles/documents/u-1", fake.requests[0].URL.Path)

	_, err = c.FetchProfile(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, models.IsNotFound(err))
}

func TestFetchProducts_FiltersByOwner(t *testing.T) {
	c, fake := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeDocs(w,
			`{"$id":"p1","user_id":"u-1","name":"Kurta","category":"Clothing","stock":4,"price":499}`,
			`{"$id":"p2","user_id":"u-1","name":"Lamp","stock":"12","price":"Rs 150"}`,
			`{"$id":"p3","user_id":"u-1","name":"Broken","stock":true}`,
		)
	})

	products, err := c.FetchProducts(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, 4, products[0].Stock)
	assert.Equal(t, 12, products[1].Stock)
	assert.True(t, products[1].Price.Equal(decimal.NewFromInt(150)))

	queries := fake.requests[0].URL.Query()["queries[]"]
	assert.Contains(t, queries, `{"method":"equal","attribute":"user_id","values":["u-1"]}`)
}
