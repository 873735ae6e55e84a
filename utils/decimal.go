package utils

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// amountPattern is what remains of a valid amount once currency marks and
// thousands separators are removed: an optional sign, digits, one point.
var amountPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

var currencyMarks = []string{"INR", "inr", "Rs.", "rs.", "Rs", "rs", "₹"}

// ParseAmount decodes a money value the way sellers type it into the
// document store: plain numbers, json numbers, or strings such as
// "₹1,250.50", "Rs 300" and "INR -20".
func ParseAmount(i interface{}) (decimal.Decimal, error) {
	switch v := i.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return v, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return decimal.Zero, nil
		}
		s = strings.ReplaceAll(s, ",", "")
		for _, mark := range currencyMarks {
			s = strings.ReplaceAll(s, mark, "")
		}
		s = strings.TrimSpace(s)
		if strings.HasPrefix(s, "-") {
			s = "-" + strings.TrimSpace(strings.TrimPrefix(s, "-"))
		}
		if !amountPattern.MatchString(s) {
			return decimal.Zero, fmt.Errorf("invalid amount %q", v)
		}
		return decimal.NewFromString(s)
	default:
		return decimal.Zero, fmt.Errorf("invalid amount type %T", i)
	}
}
