package cgd

import (
	"strings"

	"github.com/shopspring/decimal"
)

// parseAmount reads Portuguese formatted numbers such as "-1.234,56".
func parseAmount(s string) (decimal.Decimal, error) {
	clean := strings.NewReplacer(".", "", ",", ".", " ", "").Replace(s)
	return decimal.NewFromString(clean)
}
