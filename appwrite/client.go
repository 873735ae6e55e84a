package appwrite

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmdatafocus/sellerdash_backend/config"
	"github.com/mmdatafocus/sellerdash_backend/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPageSize = 100
	moduleName      = "appwrite"
)

var tracer = otel.Tracer("sellerdash/appwrite")

// Client reads the seller's collections from the Appwrite databases REST API.
type Client struct {
	endpoint   string
	projectId  string
	apiKey     string
	databaseId string
	cfg        config.AppwriteConfig
	http       *http.Client
	pageSize   int
}

func NewClient(cfg config.AppwriteConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		projectId:  cfg.ProjectId,
		apiKey:     cfg.ApiKey,
		databaseId: cfg.DatabaseId,
		cfg:        cfg,
		http:       &http.Client{Timeout: timeout},
		pageSize:   defaultPageSize,
	}
}

type listResponse struct {
	Total     int               `json:"total"`
	Documents []json.RawMessage `json:"documents"`
}

type errorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	Type    string `json:"type"`
}

func (c *Client) collectionFor(source models.OrderSource) string {
	if source == models.OrderSourcePurchase {
		return c.cfg.PurchaseOrdersCollection
	}
	return c.cfg.SalesOrdersCollection
}

// FetchOrders lists one order collection, optionally newest first and capped.
func (c *Client) FetchOrders(ctx context.Context, spec models.FilterSpec) ([]models.OrderRecord, error) {
	source := spec.Source
	if source == "" {
		source = models.OrderSourceSales
	}
	ctx, span := tracer.Start(ctx, "appwrite.FetchOrders", trace.WithAttributes(
		attribute.String("order.source", string(source)),
		attribute.Int("order.limit", spec.Limit),
	))
	defer span.End()

	var queries []Query
	if spec.NewestFirst {
		queries = append(queries, OrderDesc("$createdAt"))
	}
	docs, err := c.listAll(ctx, c.collectionFor(source), queries, spec.Limit)
	if err != nil {
		recordSpanError(span, err)
		return nil, &models.RemoteFetchError{Resource: string(source) + " orders", StatusCode: statusOf(err), Err: err}
	}

	records := make([]models.OrderRecord, 0, len(docs))
	for _, raw := range docs {
		rec, err := DecodeOrder(raw)
		if err != nil {
			config.GetLogger().WithField("module", moduleName).WithField("source", source).Warnf("skipping order document: %v", err)
			continue
		}
		records = append(records, rec)
	}
	span.SetAttributes(attribute.Int("order.count", len(records)))
	return records, nil
}

func (c *Client) FetchSalesOrders(ctx context.Context) ([]models.OrderRecord, error) {
	return c.FetchOrders(ctx, models.FilterSpec{Source: models.OrderSourceSales, NewestFirst: true})
}

func (c *Client) FetchPurchaseOrders(ctx context.Context) ([]models.OrderRecord, error) {
	return c.FetchOrders(ctx, models.FilterSpec{Source: models.OrderSourcePurchase, NewestFirst: true})
}

// FetchProducts lists the products owned by userId, newest first.
func (c *Client) FetchProducts(ctx context.Context, userId string) ([]models.Product, error) {
	ctx, span := tracer.Start(ctx, "appwrite.FetchProducts")
	defer span.End()

	docs, err := c.listAll(ctx, c.cfg.ProductsCollectionId, []Query{Equal("user_id", userId), OrderDesc("$createdAt")}, 0)
	if err != nil {
		recordSpanError(span, err)
		return nil, &models.RemoteFetchError{Resource: "products", StatusCode: statusOf(err), Err: err}
	}
	products := make([]models.Product, 0, len(docs))
	for _, raw := range docs {
		p, err := DecodeProduct(raw)
		if err != nil {
			config.GetLogger().WithField("module", moduleName).Warnf("skipping product document: %v", err)
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

// FetchProfile reads the profile document keyed by the seller's user id.
func (c *Client) FetchProfile(ctx context.Context, userId string) (*models.Profile, error) {
	ctx, span := tracer.Start(ctx, "appwrite.FetchProfile")
	defer span.End()

	body, err := c.get(ctx, c.documentsPath(c.cfg.ProfilesCollectionId)+"/"+url.PathEscape(userId), nil)
	if err != nil {
		if statusOf(err) == http.StatusNotFound {
			return nil, &models.NotFoundError{Resource: "profile", Id: userId}
		}
		recordSpanError(span, err)
		return nil, &models.RemoteFetchError{Resource: "profile", StatusCode: statusOf(err), Err: err}
	}
	profile, err := DecodeProfile(body)
	if err != nil {
		return nil, &models.RemoteFetchError{Resource: "profile", Err: err}
	}
	if profile.UserId == "" {
		profile.UserId = userId
	}
	return profile, nil
}

func (c *Client) documentsPath(collectionId string) string {
	return fmt.Sprintf("/databases/%s/collections/%s/documents", url.PathEscape(c.databaseId), url.PathEscape(collectionId))
}

// listAll pages through a collection with cursor pagination. limit 0 reads
// every document.
func (c *Client) listAll(ctx context.Context, collectionId string, base []Query, limit int) ([]json.RawMessage, error) {
	var out []json.RawMessage
	cursor := ""
	for {
		pageSize := c.pageSize
		if limit > 0 && limit-len(out) < pageSize {
			pageSize = limit - len(out)
		}
		queries := append(append([]Query{}, base...), Limit(pageSize))
		if cursor != "" {
			queries = append(queries, CursorAfter(cursor))
		}
		params := url.Values{}
		for _, q := range queries {
			params.Add("queries[]", q.String())
		}

		body, err := c.get(ctx, c.documentsPath(collectionId), params)
		if err != nil {
			return nil, err
		}
		var page listResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode document list: %w", err)
		}
		out = append(out, page.Documents...)

		if len(page.Documents) < pageSize || (limit > 0 && len(out) >= limit) {
			return out, nil
		}
		next, err := documentId(page.Documents[len(page.Documents)-1])
		if err != nil {
			return nil, err
		}
		cursor = next
	}
}

type statusError struct {
	StatusCode int
	Message    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("appwrite api error %d: %s", e.StatusCode, e.Message)
}

func statusOf(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.endpoint + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Appwrite-Project", c.projectId)
	if c.apiKey != "" {
		req.Header.Set("X-Appwrite-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		var parsed errorResponse
		if json.Unmarshal(body, &parsed) == nil && parsed.Message != "" {
			msg = parsed.Message
		}
		return nil, &statusError{StatusCode: resp.StatusCode, Message: msg}
	}
	return bytes.TrimSpace(body), nil
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
