package reports

import (
	"sort"
	"strings"
	"time"

	"github.com/mmdatafocus/sellerdash_backend/models"
	"github.com/shopspring/decimal"
)

const (
	lowStockThreshold = 10
	topSellingLimit   = 4
)

type ProductDetail struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

type TopSellingItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Icon     string `json:"icon"`
}

type OrderRow struct {
	Id          string          `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	Platform    string          `json:"platform,omitempty"`
	OrderDate   *time.Time      `json:"order_date,omitempty"`
	Tone        models.Tone     `json:"tone"`
}

type KpiCard struct {
	Title    string       `json:"title"`
	Value    string       `json:"value"`
	Change   string       `json:"change,omitempty"`
	Trend    models.Trend `json:"trend"`
	Icon     string       `json:"icon"`
	Subtitle string       `json:"subtitle,omitempty"`
}

// GetProductDetails summarises the seller's inventory.
func GetProductDetails(products []models.Product) []ProductDetail {
	lowStock := 0
	groups := make(map[string]struct{})
	for _, p := range products {
		if p.Stock < lowStockThreshold {
			lowStock++
		}
		if p.Category != "" {
			groups[p.Category] = struct{}{}
		}
	}
	return []ProductDetail{
		{Label: "Low Stock Items", Value: lowStock},
		{Label: "All Item Groups", Value: len(groups)},
		{Label: "All Items", Value: len(products)},
		{Label: "Unconfirmed Items", Value: 0},
	}
}

// GetTopSellingItems ranks sales order descriptions by how often they occur.
// Ties keep the order the description was first seen in.
func GetTopSellingItems(sales []models.OrderRecord) []TopSellingItem {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, s := range sales {
		if _, ok := counts[s.Description]; !ok {
			order = append(order, s.Description)
		}
		counts[s.Description]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > topSellingLimit {
		order = order[:topSellingLimit]
	}
	items := make([]TopSellingItem, 0, len(order))
	for _, name := range order {
		items = append(items, TopSellingItem{Name: name, Quantity: counts[name], Icon: "Package"})
	}
	return items
}

// GetOrderRows maps order records to dashboard listing rows.
func GetOrderRows(records []models.OrderRecord) []OrderRow {
	rows := make([]OrderRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, OrderRow{
			Id:          r.Key(),
			Description: r.Description,
			Amount:      r.Amount,
			Status:      string(r.Status),
			Platform:    r.Platform,
			OrderDate:   r.OrderDate,
			Tone:        StatusColor(r.Status),
		})
	}
	return rows
}

// StatusColor is the dot colour next to a purchase or sales order status.
func StatusColor(status models.OrderStatus) models.Tone {
	switch strings.ToLower(string(status)) {
	case "delivered", "completed":
		return models.ToneGreen
	case "pending", "new":
		return models.ToneOrange
	case "processing":
		return models.TonePurple
	case "shipped":
		return models.ToneBlue
	case "confirmed":
		return models.ToneYellow
	default:
		return models.ToneGray
	}
}

// GetKpiCards derives the headline cards from what is already loaded.
func GetKpiCards(products []models.Product, sales []models.OrderRecord) []KpiCard {
	revenue := decimal.Zero
	returned := 0
	for _, s := range sales {
		if s.Status.Is(models.OrderStatusReturned) || s.Status.Is(models.OrderStatusRefunded) {
			if s.Status.Is(models.OrderStatusReturned) {
				returned++
			}
			continue
		}
		revenue = revenue.Add(s.Amount)
	}
	lowStock := 0
	for _, p := range products {
		if p.Stock < lowStockThreshold {
			lowStock++
		}
	}

	cards := []KpiCard{
		{Title: "Total Sales", Value: FormatRupees(revenue), Trend: models.TrendNeutral, Icon: "TrendingUp", Subtitle: "excluding returns and refunds"},
		{Title: "Orders", Value: decimal.NewFromInt(int64(len(sales))).String(), Trend: models.TrendNeutral, Icon: "Package"},
		{Title: "Return Rate", Value: FormatReturnRate(sales) + "%", Trend: models.TrendNeutral, Icon: "RotateCcw", Subtitle: decimal.NewFromInt(int64(returned)).String() + " returned"},
		{Title: "Low Stock", Value: decimal.NewFromInt(int64(lowStock)).String(), Trend: models.TrendNeutral, Icon: "AlertTriangle", Subtitle: "items below 10 units"},
	}
	if returned > 0 {
		cards[2].Trend = models.TrendDown
	}
	if lowStock > 0 {
		cards[3].Trend = models.TrendDown
	}
	return cards
}

// FormatRupees renders an amount as "₹1,234.50".
func FormatRupees(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	return sign + "₹" + b.String() + "." + frac
}
