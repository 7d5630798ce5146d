package importer

import (
	"fmt"
	"io"
	"sort"

	"github.com/MrJamesThe3rd/grouper/internal/importer/cgd"
	"github.com/MrJamesThe3rd/grouper/internal/importer/generic"
	"github.com/MrJamesThe3rd/grouper/internal/transaction"
)

type registration struct {
	parser      Importer
	description string
}

type Service struct {
	importers map[Bank]registration
}

func NewService() *Service {
	return &Service{
		importers: map[Bank]registration{
			BankCGD: {
				parser:      cgd.NewParser(),
				description: "Caixa Geral de Depósitos account or card export",
			},
			BankGeneric: {
				parser:      generic.NewParser(),
				description: "CSV with date, label, amount and currency columns",
			},
		},
	}
}

func (s *Service) Import(bank Bank, r io.Reader) ([]transaction.CreateParams, error) {
	reg, ok := s.importers[bank]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBank, bank)
	}

	params, err := reg.parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing %s statement: %w", bank, err)
	}

	return params, nil
}

// Banks lists the supported banks in name order.
func (s *Service) Banks() []Bank {
	banks := make([]Bank, 0, len(s.importers))
	for b := range s.importers {
		banks = append(banks, b)
	}

	sort.Slice(banks, func(i, j int) bool { return banks[i] < banks[j] })

	return banks
}

func (s *Service) Formats() []Format {
	banks := s.Banks()

	formats := make([]Format, 0, len(banks))
	for _, b := range banks {
		formats = append(formats, Format{Bank: b, Description: s.importers[b].description})
	}

	return formats
}
