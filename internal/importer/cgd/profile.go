package cgd

import "strings"

// layout names the header cells of one CGD export. Exports with a single
// signed column set amount; card exports split it into debit and credit.
type layout struct {
	name   string
	date   string
	label  string
	amount string
	debit  string
	credit string
}

// layouts are tried in order against every row until one binds.
var layouts = []layout{
	{name: "cartão", date: "Data", label: "Descrição", debit: "Débito", credit: "Crédito"},
	{name: "extrato", date: "Data mov.", label: "Descrição", amount: "Movimento"},
	{name: "conta", date: "Data mov.", label: "Descrição", amount: "Montante"},
}

const currencyHeader = "Moeda"

func (l layout) split() bool {
	return l.amount == ""
}

func (l layout) required() []string {
	if l.split() {
		return []string{l.date, l.label, l.debit, l.credit}
	}

	return []string{l.date, l.label, l.amount}
}

// binding is a layout resolved to column positions of a concrete header.
type binding struct {
	layout
	date     int
	label    int
	amount   int
	debit    int
	credit   int
	currency int
}

// bind matches the header row against the layout. Missing optional columns
// resolve to -1.
func (l layout) bind(header []string) (binding, bool) {
	pos := make(map[string]int, len(header))
	for i, cell := range header {
		if name := strings.TrimSpace(cell); name != "" {
			pos[name] = i
		}
	}

	for _, name := range l.required() {
		if _, ok := pos[name]; !ok {
			return binding{}, false
		}
	}

	lookup := func(name string) int {
		if i, ok := pos[name]; ok && name != "" {
			return i
		}
		return -1
	}

	return binding{
		layout:   l,
		date:     pos[l.date],
		label:    pos[l.label],
		amount:   lookup(l.amount),
		debit:    lookup(l.debit),
		credit:   lookup(l.credit),
		currency: lookup(currencyHeader),
	}, true
}
