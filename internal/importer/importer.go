// Package importer turns bank statement exports into transaction params.
package importer

import (
	"errors"
	"io"

	"github.com/MrJamesThe3rd/grouper/internal/transaction"
)

var ErrUnknownBank = errors.New("unknown bank")

type Bank string

const (
	BankCGD     Bank = "cgd"
	BankGeneric Bank = "generic"
)

type Importer interface {
	Parse(r io.Reader) ([]transaction.CreateParams, error)
}

// Format describes one supported statement layout.
type Format struct {
	Bank        Bank   `json:"bank"`
	Description string `json:"description"`
}
