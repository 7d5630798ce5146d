// Package money holds currency codes, exchange-rate snapshots and the
// conversion rules used whenever a value has to be expressed in a user's
// reporting currency.
package money

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Currency is an ISO 4217 currency code.
type Currency string

const (
	EUR Currency = "EUR"
	USD Currency = "USD"
	GBP Currency = "GBP"
	CHF Currency = "CHF"
	PLN Currency = "PLN"
	SEK Currency = "SEK"

	// XXX is the ISO code for "no currency". It marks a value that could not
	// be converted because the snapshot had no rate for the pair.
	XXX Currency = "XXX"
)

// Unconvertible is the sentinel currency stored alongside a zero amount when
// a conversion into the reporting currency is unavailable.
const Unconvertible = XXX

var ErrUnknownCurrency = errors.New("unknown currency")

var known = map[Currency]struct{}{
	EUR: {}, USD: {}, GBP: {}, CHF: {}, PLN: {}, SEK: {},
}

// Supported returns the currencies transactions and users may use.
func Supported() []Currency {
	return []Currency{EUR, USD, GBP, CHF, PLN, SEK}
}

// ParseCurrency normalizes s and checks it against the supported codes.
// The XXX sentinel is never accepted as input.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := known[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCurrency, s)
	}

	return c, nil
}

func (c Currency) String() string { return string(c) }

// MinorUnits is the number of decimal places amounts in c are rounded to.
func (c Currency) MinorUnits() int32 {
	return 2
}

// Round rounds amount to the minor-unit precision of c, half away from zero.
func Round(amount decimal.Decimal, c Currency) decimal.Decimal {
	return amount.Round(c.MinorUnits())
}

// Rate is a single pairwise exchange rate: 1 Base = Rate Target.
type Rate struct {
	Base    Currency
	Target  Currency
	Rate    decimal.Decimal
	ValidAt time.Time
}

// RateLookup resolves the rate from one currency to another.
type RateLookup interface {
	Rate(from, to Currency) (decimal.Decimal, bool)
}

type pair struct {
	from, to Currency
}

// Snapshot is an immutable set of rates valid at a point in time.
type Snapshot struct {
	AsOf  time.Time
	rates map[pair]decimal.Decimal
}

// NewSnapshot builds a snapshot. Later entries for the same pair win.
func NewSnapshot(asOf time.Time, rates []Rate) *Snapshot {
	s := &Snapshot{
		AsOf:  asOf,
		rates: make(map[pair]decimal.Decimal, len(rates)),
	}

	for _, r := range rates {
		if !r.Rate.IsPositive() {
			continue
		}

		s.rates[pair{r.Base, r.Target}] = r.Rate
	}

	return s
}

func (s *Snapshot) Rate(from, to Currency) (decimal.Decimal, bool) {
	if s == nil {
		return decimal.Decimal{}, false
	}

	r, ok := s.rates[pair{from, to}]

	return r, ok
}

// Len reports how many pairs the snapshot holds.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}

	return len(s.rates)
}

// Rates returns the snapshot content, unordered.
func (s *Snapshot) Rates() []Rate {
	if s == nil {
		return nil
	}

	out := make([]Rate, 0, len(s.rates))
	for p, r := range s.rates {
		out = append(out, Rate{Base: p.from, Target: p.to, Rate: r, ValidAt: s.AsOf})
	}

	return out
}

// Convert expresses amount (in from) in to. Identical currencies return the
// amount untouched. A missing rate yields false and never an error: callers
// decide whether that is fatal.
func Convert(amount decimal.Decimal, from, to Currency, rates RateLookup) (decimal.Decimal, bool) {
	if from == to {
		return amount, true
	}

	if rates == nil {
		return decimal.Decimal{}, false
	}

	r, ok := rates.Rate(from, to)
	if !ok {
		return decimal.Decimal{}, false
	}

	return Round(amount.Mul(r), to), true
}

// Money is an amount tagged with its currency.
type Money struct {
	Amount   decimal.Decimal
	Currency Currency
}

func (m Money) String() string {
	return m.Amount.StringFixed(m.Currency.MinorUnits()) + " " + string(m.Currency)
}

// Total sums values in the to currency. Values without a rate are left out
// of the sum and returned as skipped.
func Total(values []Money, to Currency, rates RateLookup) (decimal.Decimal, []Money) {
	sum := decimal.Zero

	var skipped []Money

	for _, v := range values {
		converted, ok := Convert(v.Amount, v.Currency, to, rates)
		if !ok {
			skipped = append(skipped, v)
			continue
		}

		sum = sum.Add(converted)
	}

	return Round(sum, to), skipped
}
