package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmdatafocus/sellerdash_backend/config"
	"github.com/mmdatafocus/sellerdash_backend/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	NoReturnsMessage       = "There are no returned items to analyze."
	InsightFailedMessage   = "Failed to fetch AI insight"
	SummaryFailedMessage   = "Failed to fetch AI summary"
	SummaryUnavailableText = "AI summary could not be generated. Please ensure your profile has a pincode and you have products in your inventory."
)

// ErrSummaryInputMissing is returned instead of calling the summary service
// without products or without a pincode.
var ErrSummaryInputMissing = errors.New("summary needs products and a pincode")

var tracer = otel.Tracer("sellerdash/insights")

// Client talks to the dashboard backend's AI endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(baseURL string, cfg config.InsightConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RatePerMinute))
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, 1),
	}
}

type ReturnItem struct {
	Description  string `json:"description"`
	ReturnReason string `json:"return_reason"`
}

// ReturnItemsFrom builds the analysis payload from the returned subset.
func ReturnItemsFrom(returned []models.OrderRecord) []ReturnItem {
	items := make([]ReturnItem, 0, len(returned))
	for _, r := range returned {
		items = append(items, ReturnItem{
			Description:  r.Description,
			ReturnReason: models.ReasonOr(r, models.ReasonNotSpecified),
		})
	}
	return items
}

type insightResponse struct {
	Insight string `json:"insight"`
}

type summaryRequest struct {
	Products []models.Product `json:"products"`
	Pincode  string           `json:"pincode"`
}

// AnalyzeReturns asks for one actionable insight about the returned items.
// No items yields NoReturnsMessage without a network call.
func (c *Client) AnalyzeReturns(ctx context.Context, items []ReturnItem) (string, error) {
	if len(items) == 0 {
		return NoReturnsMessage, nil
	}
	ctx, span := tracer.Start(ctx, "insights.AnalyzeReturns", trace.WithAttributes(attribute.Int("returns.count", len(items))))
	defer span.End()

	var out insightResponse
	if err := c.post(ctx, "/api/returns/analyze", items, &out, InsightFailedMessage); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return out.Insight, nil
}

// Summarize asks for the weekly dashboard summary.
func (c *Client) Summarize(ctx context.Context, products []models.Product, pincode string) (*models.DashboardSummary, error) {
	if len(products) == 0 || strings.TrimSpace(pincode) == "" {
		return nil, ErrSummaryInputMissing
	}
	ctx, span := tracer.Start(ctx, "insights.Summarize", trace.WithAttributes(attribute.Int("products.count", len(products))))
	defer span.End()

	var out models.DashboardSummary
	if err := c.post(ctx, "/api/dashboard/summary", summaryRequest{Products: products, Pincode: pincode}, &out, SummaryFailedMessage); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, payload, dest any, fallback string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", fallback, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &models.AnalysisServiceError{StatusCode: resp.StatusCode, Detail: detailOf(raw, fallback)}
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("%s: decode response: %w", fallback, err)
	}
	return nil
}

// detailOf extracts the service's "detail" message. Validation failures
// carry a list there, which is not shown to sellers.
func detailOf(raw []byte, fallback string) string {
	var parsed struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil || len(parsed.Detail) == 0 {
		return fallback
	}
	var detail string
	if err := json.Unmarshal(parsed.Detail, &detail); err != nil || detail == "" {
		return fallback
	}
	return detail
}
