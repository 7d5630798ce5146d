// Package generic parses multi-currency statements in a plain
// "date,label,amount,currency" layout.
package generic

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	enc "github.com/MrJamesThe3rd/grouper/internal/encoding"
	"github.com/MrJamesThe3rd/grouper/internal/money"
	"github.com/MrJamesThe3rd/grouper/internal/transaction"
)

var dateLayouts = []string{time.DateOnly, "02/01/2006", "02-01-2006"}

// Parser expects a header row naming at least date, label, amount and
// currency (any order, case-insensitive). A negative amount is an expense.
// Comma and semicolon separators are both accepted.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(r io.Reader) ([]transaction.CreateParams, error) {
	utf8r, err := enc.NewUTF8Reader(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	raw, err := io.ReadAll(utf8r)
	if err != nil {
		return nil, fmt.Errorf("read statement: %w", err)
	}

	reader := csv.NewReader(strings.NewReader(string(raw)))
	reader.Comma = separator(string(raw))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	if len(rows) == 0 {
		return nil, errors.New("empty statement")
	}

	cols, err := header(rows[0])
	if err != nil {
		return nil, err
	}

	var txs []transaction.CreateParams

	for i, row := range rows[1:] {
		rowNum := i + 2

		if blank(row) {
			continue
		}

		tx, err := parseRow(cols, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}

		txs = append(txs, tx)
	}

	return txs, nil
}

type columns struct {
	date, label, amount, currency int
}

func header(row []string) (columns, error) {
	cols := columns{-1, -1, -1, -1}

	for i, cell := range row {
		switch strings.ToLower(strings.TrimSpace(cell)) {
		case "date":
			cols.date = i
		case "label", "description":
			cols.label = i
		case "amount":
			cols.amount = i
		case "currency":
			cols.currency = i
		}
	}

	if cols.date < 0 || cols.label < 0 || cols.amount < 0 || cols.currency < 0 {
		return cols, errors.New("header must name date, label, amount and currency columns")
	}

	return cols, nil
}

func parseRow(cols columns, row []string) (transaction.CreateParams, error) {
	var p transaction.CreateParams

	date, err := parseDate(cell(row, cols.date))
	if err != nil {
		return p, err
	}

	label := cell(row, cols.label)
	if label == "" {
		return p, errors.New("missing label")
	}

	amount, err := decimal.NewFromString(cell(row, cols.amount))
	if err != nil {
		return p, fmt.Errorf("invalid amount %q", cell(row, cols.amount))
	}

	currency, err := money.ParseCurrency(cell(row, cols.currency))
	if err != nil {
		return p, err
	}

	p = transaction.CreateParams{
		Label:    label,
		Amount:   amount.Abs(),
		Currency: currency,
		Type:     transaction.TypeIncome,
		Date:     date,
	}

	if amount.IsNegative() {
		p.Type = transaction.TypeExpense
	}

	return p, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func separator(content string) rune {
	first, _, _ := strings.Cut(content, "\n")
	if strings.Count(first, ";") > strings.Count(first, ",") {
		return ';'
	}

	return ','
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}

	return true
}
