package view

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/grouper/internal/importer"
	"github.com/MrJamesThe3rd/grouper/internal/ingest"
	"github.com/MrJamesThe3rd/grouper/internal/money"
	"github.com/MrJamesThe3rd/grouper/internal/transaction"
)

const importTimeout = 2 * time.Minute

type importStep int

const (
	importStepFormat importStep = iota
	importStepFile
	importStepWorking
	importStepConflicts
	importStepDone
)

// ImportModel walks through format selection, file selection, duplicate
// review and the classification outcome of one statement.
type ImportModel struct {
	CommonModel
	ingestService *ingest.Service
	importService *importer.Service

	step       importStep
	formatForm *huh.Form
	bank       importer.Bank
	filePicker filepicker.Model
	spinner    spinner.Model
	working    string

	pending   []transaction.CreateParams
	conflicts []transaction.Conflict
	keep      map[int]bool
	review    list.Model

	outcome *ingest.Outcome
	err     error
}

func NewImportModel(userID uuid.UUID, ingestSvc *ingest.Service, impSvc *importer.Service) ImportModel {
	fp := filepicker.New()
	fp.CurrentDirectory, _ = os.Getwd()
	fp.AllowedTypes = []string{".csv", ".txt"}
	fp.DirAllowed = false
	fp.FileAllowed = true
	fp.SetHeight(15)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := ImportModel{
		CommonModel:   CommonModel{UserID: userID},
		ingestService: ingestSvc,
		importService: impSvc,
		filePicker:    fp,
		spinner:       sp,
		keep:          make(map[int]bool),
	}
	m.formatForm = m.newFormatForm()

	return m
}

func (m ImportModel) newFormatForm() *huh.Form {
	formats := m.importService.Formats()

	options := make([]huh.Option[importer.Bank], 0, len(formats))
	for _, f := range formats {
		options = append(options, huh.NewOption(fmt.Sprintf("%s  (%s)", f.Bank, f.Description), f.Bank))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[importer.Bank]().
				Key("bank").
				Title("Statement format").
				Options(options...),
		),
	).WithWidth(70).WithShowHelp(false)
}

func (m ImportModel) Title() string { return "Import Statement" }

func (m ImportModel) ShortHelp() string {
	switch m.step {
	case importStepConflicts:
		return "Space: keep/skip | a: keep all | n: skip all | Enter: store | Esc: cancel"
	case importStepDone:
		return "c: classify again | Esc: back"
	}

	return "Esc: back | Enter: select"
}

func (m ImportModel) Init() tea.Cmd {
	return m.formatForm.Init()
}

func (m ImportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return m.back()
		}

	case parsedMsg:
		return m.onParsed(msg)

	case storedMsg:
		m.step = importStepDone
		m.outcome = msg.outcome
		m.err = msg.err

		return m, nil
	}

	switch m.step {
	case importStepFormat:
		return m.updateFormat(msg)
	case importStepFile:
		return m.updateFile(msg)
	case importStepWorking:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	case importStepConflicts:
		return m.updateConflicts(msg)
	case importStepDone:
		if key, ok := msg.(tea.KeyMsg); ok && key.String() == "c" && m.err == nil {
			return m.startWork("Requesting categorisation...", m.classifyCmd())
		}
	}

	return m, nil
}

func (m ImportModel) back() (tea.Model, tea.Cmd) {
	switch m.step {
	case importStepFormat:
		return m, Back
	case importStepWorking:
		return m, nil
	}

	m.step = importStepFormat
	m.pending, m.conflicts, m.outcome, m.err = nil, nil, nil, nil
	m.keep = make(map[int]bool)
	m.formatForm = m.newFormatForm()

	return m, m.formatForm.Init()
}

func (m ImportModel) startWork(label string, cmd tea.Cmd) (tea.Model, tea.Cmd) {
	m.step = importStepWorking
	m.working = label

	return m, tea.Batch(m.spinner.Tick, cmd)
}

func (m ImportModel) updateFormat(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := m.formatForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.formatForm = f
	}

	if m.formatForm.State != huh.StateCompleted {
		return m, cmd
	}

	if bank, ok := m.formatForm.Get("bank").(importer.Bank); ok {
		m.bank = bank
	}
	m.step = importStepFile

	return m, m.filePicker.Init()
}

func (m ImportModel) updateFile(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.filePicker, cmd = m.filePicker.Update(msg)

	if ok, path := m.filePicker.DidSelectFile(msg); ok {
		return m.startWork(fmt.Sprintf("Importing %s...", path), m.parseCmd(path))
	}

	return m, cmd
}

func (m ImportModel) onParsed(msg parsedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil || !msg.outcome.HasConflicts() {
		m.step = importStepDone
		m.outcome = msg.outcome
		m.err = msg.err

		return m, nil
	}

	m.step = importStepConflicts
	m.pending = msg.outcome.New
	m.conflicts = msg.outcome.Conflicts
	m.keep = make(map[int]bool)

	items := make([]list.Item, len(m.conflicts))
	for i, c := range m.conflicts {
		items[i] = conflictItem{conflict: c, index: i}
	}

	m.review = list.New(items, conflictDelegate{keep: m.keep}, 80, 20)
	m.review.Title = fmt.Sprintf("%d possible duplicates, %d new", len(m.conflicts), len(m.pending))
	m.review.SetShowStatusBar(false)
	m.review.SetFilteringEnabled(false)
	m.review.SetShowHelp(false)

	return m, nil
}

func (m ImportModel) updateConflicts(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case " ":
			idx := m.review.Index()
			m.keep[idx] = !m.keep[idx]

			return m, nil
		case "a", "n":
			for i := range m.conflicts {
				m.keep[i] = key.String() == "a"
			}

			return m, nil
		case "enter":
			return m.startWork("Storing transactions...", m.storeCmd(m.selection()))
		}
	}

	var cmd tea.Cmd
	m.review, cmd = m.review.Update(msg)

	return m, cmd
}

// selection is every new row plus the duplicates the user chose to keep.
func (m ImportModel) selection() []transaction.CreateParams {
	params := append([]transaction.CreateParams(nil), m.pending...)

	for i, c := range m.conflicts {
		if m.keep[i] {
			params = append(params, c.Incoming)
		}
	}

	return params
}

func (m ImportModel) View() string {
	pad := lipgloss.NewStyle().Padding(1)

	switch m.step {
	case importStepFormat:
		return pad.Render(m.formatForm.View())
	case importStepFile:
		return pad.Render(fmt.Sprintf("Select a %s statement:\n\n%s", m.bank, m.filePicker.View()))
	case importStepWorking:
		return pad.Render(m.spinner.View() + " " + m.working)
	case importStepConflicts:
		return pad.Render(m.review.View())
	case importStepDone:
		return pad.Render(m.viewDone())
	}

	return ""
}

func (m ImportModel) viewDone() string {
	if m.err != nil {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(fmt.Sprintf("Error: %v", m.err))
	}

	ok := lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	warn := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	lines := []string{}
	if n := len(m.outcome.Imported); n > 0 {
		lines = append(lines, ok.Render(fmt.Sprintf("Stored %d transactions (%s).", n, currencyBreakdown(m.outcome.Imported))))
	}

	switch m.outcome.Classification {
	case ingest.ClassificationRequested:
		lines = append(lines, "Categorisation requested, results arrive in the background.",
			lipgloss.NewStyle().Faint(true).Render("correlation "+m.outcome.CorrelationID))
	case ingest.ClassificationSkipped:
		lines = append(lines, "Every label was already known; categories applied.")
	case ingest.ClassificationUnavailable:
		lines = append(lines, warn.Render("Categorisation unavailable: "+m.outcome.Reason))
	}

	return strings.Join(lines, "\n")
}

func currencyBreakdown(txs []*transaction.Transaction) string {
	counts := make(map[money.Currency]int)
	for _, tx := range txs {
		counts[tx.Currency]++
	}

	parts := make([]string, 0, len(counts))
	for c, n := range counts {
		parts = append(parts, fmt.Sprintf("%d %s", n, c))
	}
	sort.Strings(parts)

	return strings.Join(parts, ", ")
}

type parsedMsg struct {
	outcome *ingest.Outcome
	err     error
}

type storedMsg struct {
	outcome *ingest.Outcome
	err     error
}

func (m ImportModel) parseCmd(path string) tea.Cmd {
	bank := m.bank

	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return parsedMsg{err: err}
		}
		defer f.Close()

		params, err := m.importService.Import(bank, f)
		if err != nil {
			return parsedMsg{err: err}
		}

		ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
		defer cancel()

		out, err := m.ingestService.Import(ctx, m.UserID, params)

		return parsedMsg{outcome: out, err: err}
	}
}

func (m ImportModel) storeCmd(params []transaction.CreateParams) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
		defer cancel()

		out, err := m.ingestService.Confirm(ctx, m.UserID, params)

		return storedMsg{outcome: out, err: err}
	}
}

func (m ImportModel) classifyCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
		defer cancel()

		return storedMsg{outcome: m.ingestService.Classify(ctx, m.UserID)}
	}
}

type conflictItem struct {
	conflict transaction.Conflict
	index    int
}

func (i conflictItem) Title() string       { return i.conflict.Incoming.Label }
func (i conflictItem) Description() string { return "" }
func (i conflictItem) FilterValue() string { return i.conflict.Incoming.Label }

type conflictDelegate struct {
	keep map[int]bool
}

func (d conflictDelegate) Height() int                         { return 2 }
func (d conflictDelegate) Spacing() int                        { return 1 }
func (d conflictDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }

func (d conflictDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	item, ok := listItem.(conflictItem)
	if !ok {
		return
	}

	mark := "skip"
	if d.keep[item.index] {
		mark = "keep"
	}

	cursor := "  "
	if index == m.Index() {
		cursor = "> "
	}

	in, ex := item.conflict.Incoming, item.conflict.Existing

	fmt.Fprintf(w, "%s[%s] %s  %-16s %s\n      stored: %s  %-16s %s",
		cursor, mark,
		FormatDate(in.Date), FormatMoney(signed(in.Amount, in.Type), in.Currency), in.Label,
		FormatDate(ex.Date), FormatMoney(ex.Signed(), ex.Currency), ex.Label,
	)
}
