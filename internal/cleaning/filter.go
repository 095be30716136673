package cleaning

import (
	"math"
	"strings"

	"github.com/spf13/cast"

	"basiccleaning/internal/dataset"
)

// FilterPriceRange keeps the rows whose price lies in [min, max] and
// drops the rest, preserving row order. A missing, blank, non-numeric or NaN
// price never satisfies the range. Kept price cells are not reformatted.
func FilterPriceRange(t *dataset.Table, min, max float64) (kept, dropped int, err error) {
	prices, err := t.Column(PriceColumn)
	if err != nil {
		return 0, 0, err
	}

	keep := make([]int, 0, len(prices))
	for i, raw := range prices {
		price, ok := parsePrice(raw)
		if ok && price >= min && price <= max {
			keep = append(keep, i)
		}
	}

	if err := t.Keep(keep); err != nil {
		return 0, 0, err
	}
	return len(keep), len(prices) - len(keep), nil
}

func parsePrice(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || !isDecimalText(s) {
		return 0, false
	}
	v, err := cast.ToFloat64E(s)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// isDecimalText rejects the Go-only number spellings cast accepts:
// digit separators and hexadecimal literals.
func isDecimalText(s string) bool {
	if strings.ContainsRune(s, '_') {
		return false
	}
	unsigned := strings.TrimLeft(s, "+-")
	return !strings.HasPrefix(unsigned, "0x") && !strings.HasPrefix(unsigned, "0X")
}
