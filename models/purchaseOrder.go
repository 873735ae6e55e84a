package models

import "fmt"

// OrderSource names which order collection a fetch reads.
type OrderSource string

const (
	OrderSourceSales    OrderSource = "sales"
	OrderSourcePurchase OrderSource = "purchase"
)

func ParseOrderSource(s string) (OrderSource, error) {
	switch OrderSource(s) {
	case "", OrderSourceSales:
		return OrderSourceSales, nil
	case OrderSourcePurchase:
		return OrderSourcePurchase, nil
	default:
		return "", fmt.Errorf("invalid order source %q", s)
	}
}

// TableName is the mirror table holding this source's records.
func (s OrderSource) TableName() string {
	if s == OrderSourcePurchase {
		return "purchase_orders"
	}
	return "sales_orders"
}
