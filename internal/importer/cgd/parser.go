// Package cgd parses statement exports from Caixa Geral de Depósitos.
package cgd

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	enc "github.com/MrJamesThe3rd/grouper/internal/encoding"
	"github.com/MrJamesThe3rd/grouper/internal/money"
	"github.com/MrJamesThe3rd/grouper/internal/transaction"
)

const dateLayout = "02-01-2006"

// accountLine matches the preamble line naming the account, e.g.
// "Conta;0000 - USD - Conta Extracto".
var accountLine = regexp.MustCompile(`^Conta(?: cartão)?\s*$`)

var accountCurrency = regexp.MustCompile(`\s-\s([A-Z]{3})\s-\s`)

// Parser reads CGD CSV exports. The export kind is detected from the header
// row and the currency from the account line of the preamble, defaulting to
// EUR. A "Moeda" column overrides both per row.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(r io.Reader) ([]transaction.CreateParams, error) {
	utf8r, err := enc.NewUTF8Reader(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	reader := csv.NewReader(utf8r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	currency := money.EUR

	for i, row := range rows {
		if c, ok := preambleCurrency(row); ok {
			currency = c
			continue
		}

		for _, l := range layouts {
			b, ok := l.bind(row)
			if !ok {
				continue
			}

			return b.parse(rows[i+1:], i+2, currency)
		}
	}

	return nil, errors.New("no matching CGD format found: expected columns for conta, extrato, or cartão")
}

func preambleCurrency(row []string) (money.Currency, bool) {
	if len(row) < 2 || !accountLine.MatchString(strings.TrimSpace(row[0])) {
		return "", false
	}

	m := accountCurrency.FindStringSubmatch(row[1])
	if m == nil {
		return "", false
	}

	c, err := money.ParseCurrency(m[1])
	if err != nil {
		return "", false
	}

	return c, true
}

// parse converts data rows. Rows without a date or amount are footers and
// are skipped; first is the 1-based line number of rows[0].
func (b binding) parse(rows [][]string, first int, currency money.Currency) ([]transaction.CreateParams, error) {
	var txs []transaction.CreateParams

	for i, row := range rows {
		line := first + i

		date, err := time.Parse(dateLayout, cell(row, b.date))
		if err != nil {
			continue
		}

		label := cell(row, b.label)
		if label == "" {
			return nil, fmt.Errorf("row %d: missing description", line)
		}

		amount, typ, ok := b.amountOf(row)
		if !ok {
			continue
		}

		c := currency
		if code := cell(row, b.currency); code != "" {
			if c, err = money.ParseCurrency(code); err != nil {
				return nil, fmt.Errorf("row %d: %w", line, err)
			}
		}

		txs = append(txs, transaction.CreateParams{
			Label:    label,
			Amount:   amount,
			Currency: c,
			Type:     typ,
			Date:     date,
		})
	}

	return txs, nil
}

// amountOf returns the absolute amount and its direction.
func (b binding) amountOf(row []string) (decimal.Decimal, transaction.Type, bool) {
	if !b.split() {
		amount, ok := nonZero(cell(row, b.amount))
		if !ok {
			return decimal.Zero, "", false
		}

		if amount.IsNegative() {
			return amount.Neg(), transaction.TypeExpense, true
		}

		return amount, transaction.TypeIncome, true
	}

	if amount, ok := nonZero(cell(row, b.debit)); ok {
		return amount.Abs(), transaction.TypeExpense, true
	}

	if amount, ok := nonZero(cell(row, b.credit)); ok {
		return amount.Abs(), transaction.TypeIncome, true
	}

	return decimal.Zero, "", false
}

func nonZero(s string) (decimal.Decimal, bool) {
	if s == "" {
		return decimal.Zero, false
	}

	amount, err := parseAmount(s)
	if err != nil || amount.IsZero() {
		return decimal.Zero, false
	}

	return amount, true
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}
