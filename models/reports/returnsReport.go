package reports

import (
	"strings"

	"github.com/mmdatafocus/sellerdash_backend/models"
	"github.com/shopspring/decimal"
)

// ReasonPalette colours the reason breakdown, assigned by first-seen index.
var ReasonPalette = []string{"#ef4444", "#f97316", "#eab308", "#22c55e", "#3b82f6"}

type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
	Color  string `json:"color"`
}

// ReturnRow is one line of the returns table.
type ReturnRow struct {
	models.OrderRecord
	Badge models.Tone `json:"badge"`
}

// ReturnsView is everything the returns page renders, derived from one set
// of records and one search term. It is never mutated after construction.
type ReturnsView struct {
	TotalReturns      int             `json:"totalReturns"`
	DynamicReturnRate string          `json:"dynamicReturnRate"`
	ProcessingCount   int             `json:"processingCount"`
	RefundedAmount    decimal.Decimal `json:"refundedAmount"`
	ReasonBreakdown   []ReasonCount   `json:"reasonBreakdown"`
	FilteredReturns   []ReturnRow     `json:"filteredReturns"`
	SearchTerm        string          `json:"searchTerm"`
}

// ClassifyReturns keeps the records whose status is returned, in input order.
func ClassifyReturns(records []models.OrderRecord) []models.OrderRecord {
	return filterStatus(records, models.OrderStatusReturned)
}

// ComputeReturnRate is returned/total as a percentage rounded to one decimal.
// No records means a rate of zero.
func ComputeReturnRate(records []models.OrderRecord) decimal.Decimal {
	if len(records) == 0 {
		return decimal.Zero
	}
	returned := int64(countStatus(records, models.OrderStatusReturned))
	return decimal.NewFromInt(returned * 100).
		Div(decimal.NewFromInt(int64(len(records)))).
		Round(1)
}

// FormatReturnRate renders the rate for display: "0" when there are no
// records, otherwise exactly one decimal place.
func FormatReturnRate(records []models.OrderRecord) string {
	if len(records) == 0 {
		return "0"
	}
	return ComputeReturnRate(records).StringFixed(1)
}

func ComputeProcessingCount(records []models.OrderRecord) int {
	return countStatus(records, models.OrderStatusProcessing)
}

// ComputeRefundedTotal sums the amounts of refunded records. Negative
// amounts are left out of the sum.
func ComputeRefundedTotal(records []models.OrderRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		if r.Status.Is(models.OrderStatusRefunded) && !r.Amount.IsNegative() {
			total = total.Add(r.Amount)
		}
	}
	return total
}

// GroupByReason counts returned records per reason. Groups come out in the
// order their reason was first seen and take the palette colour at that
// position. A missing reason groups under "Unknown".
func GroupByReason(returned []models.OrderRecord) []ReasonCount {
	out := make([]ReasonCount, 0)
	index := make(map[string]int)
	for _, r := range returned {
		reason := models.ReasonOr(r, models.ReasonUnknown)
		if i, ok := index[reason]; ok {
			out[i].Count++
			continue
		}
		index[reason] = len(out)
		out = append(out, ReasonCount{
			Reason: reason,
			Count:  1,
			Color:  ReasonPalette[len(out)%len(ReasonPalette)],
		})
	}
	return out
}

// FilterBySearch keeps the records whose description, order id or return
// reason contains term, ignoring case. An empty term keeps everything.
// Callers pass the returned subset only.
func FilterBySearch(returned []models.OrderRecord, term string) []models.OrderRecord {
	if term == "" {
		return returned
	}
	needle := strings.ToLower(term)
	out := make([]models.OrderRecord, 0, len(returned))
	for _, r := range returned {
		if matchesSearch(r, needle) {
			out = append(out, r)
		}
	}
	return out
}

func matchesSearch(r models.OrderRecord, needle string) bool {
	return strings.Contains(strings.ToLower(r.Description), needle) ||
		strings.Contains(strings.ToLower(r.Key()), needle) ||
		(r.ReturnReason != "" && strings.Contains(strings.ToLower(r.ReturnReason), needle))
}

// BuildReturnsView derives the whole returns page from records and term.
func BuildReturnsView(records []models.OrderRecord, term string) ReturnsView {
	returned := ClassifyReturns(records)
	filtered := FilterBySearch(returned, term)

	rows := make([]ReturnRow, 0, len(filtered))
	for _, r := range filtered {
		rows = append(rows, ReturnRow{OrderRecord: r, Badge: StatusBadge(r.Status)})
	}

	return ReturnsView{
		TotalReturns:      len(returned),
		DynamicReturnRate: FormatReturnRate(records),
		ProcessingCount:   ComputeProcessingCount(records),
		RefundedAmount:    ComputeRefundedTotal(records),
		ReasonBreakdown:   GroupByReason(returned),
		FilteredReturns:   rows,
		SearchTerm:        term,
	}
}

// StatusBadge is the tone of a status badge in the returns table.
func StatusBadge(status models.OrderStatus) models.Tone {
	switch {
	case status.Is(models.OrderStatusReturned):
		return models.ToneGreen
	case status.Is(models.OrderStatusProcessing):
		return models.ToneYellow
	case status.Is(models.OrderStatusRefunded):
		return models.ToneBlue
	default:
		return models.ToneGray
	}
}

func filterStatus(records []models.OrderRecord, status models.OrderStatus) []models.OrderRecord {
	out := make([]models.OrderRecord, 0)
	for _, r := range records {
		if r.Status.Is(status) {
			out = append(out, r)
		}
	}
	return out
}

func countStatus(records []models.OrderRecord, status models.OrderStatus) int {
	n := 0
	for _, r := range records {
		if r.Status.Is(status) {
			n++
		}
	}
	return n
}
