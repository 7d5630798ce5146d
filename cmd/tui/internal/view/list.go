package view

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/grouper/internal/category"
	"github.com/MrJamesThe3rd/grouper/internal/matching"
	"github.com/MrJamesThe3rd/grouper/internal/transaction"
)

type listState int

const (
	listStateBrowse listState = iota
	listStateEdit
)

const noCategory = ""

// listTimeframes are cycled by the date filter key.
var listTimeframes = []Timeframe{TimeframeAll, TimeframeThisMonth, TimeframeLastMonth, TimeframeThisYear}

type ListModel struct {
	CommonModel
	txService       *transaction.Service
	categoryService *category.Service
	matchingService *matching.Service

	state      listState
	table      table.Model
	txs        []*transaction.Transaction
	categories []*category.Category
	form       *huh.Form

	// Filter cycling
	uncategorizedOnly bool
	dateFilterIdx     int

	filter  transaction.ListFilter
	loading bool
	err     error
	status  string
}

func NewListModel(userID uuid.UUID, txSvc *transaction.Service, catSvc *category.Service, matchSvc *matching.Service) ListModel {
	columns := []table.Column{
		{Title: "Date", Width: 12},
		{Title: "Amount", Width: 16},
		{Title: "Label", Width: 36},
		{Title: "Category", Width: 16},
		{Title: "Reporting", Width: 16},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return ListModel{
		CommonModel:     CommonModel{UserID: userID},
		txService:       txSvc,
		categoryService: catSvc,
		matchingService: matchSvc,
		table:           t,
		filter:          transaction.ListFilter{UserID: userID},
	}
}

func (m ListModel) Title() string { return "Transactions" }
func (m ListModel) ShortHelp() string {
	if m.state == listStateEdit {
		return "Navigate form | Esc: cancel"
	}
	return "Esc: back | e: categorise | c: uncategorised only | d: date filter | r: refresh"
}

func (m ListModel) Init() tea.Cmd {
	return m.loadTxsCmd()
}

func (m ListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadListMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.txs = msg.txs
		m.categories = msg.categories
		m.refreshTable()
		return m, nil

	case listSaveMsg:
		m.status = msg.status
		if msg.err != nil {
			m.status = fmt.Sprintf("Error saving: %v", msg.err)
		}
		m.state = listStateBrowse
		m.form = nil
		m.table.Focus()
		return m, m.loadTxsCmd()

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 10)
		return m, nil
	}

	switch m.state {
	case listStateBrowse:
		return m.updateBrowse(msg)
	case listStateEdit:
		return m.updateEdit(msg)
	}

	return m, nil
}

func (m ListModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadTxsCmd()
		case "e":
			return m.enterEditMode()
		case "c":
			m.uncategorizedOnly = !m.uncategorizedOnly
			m.applyFilter()
			return m, m.loadTxsCmd()
		case "d":
			m.dateFilterIdx = (m.dateFilterIdx + 1) % len(listTimeframes)
			m.applyFilter()
			return m, m.loadTxsCmd()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m ListModel) enterEditMode() (tea.Model, tea.Cmd) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.txs) {
		return m, nil
	}

	tx := m.txs[idx]
	choice, remember := noCategory, true

	if tx.CategoryID != nil {
		choice = tx.CategoryID.String()
	}

	options := []huh.Option[string]{huh.NewOption("(none)", noCategory)}
	for _, c := range m.categories {
		options = append(options, huh.NewOption(c.Label, c.ID.String()))
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("category").
				Title("Category").
				Options(options...).
				Value(&choice),

			huh.NewConfirm().
				Key("remember").
				Title("Remember for this label?").
				Description("Future imports with the same label get this category").
				Value(&remember),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = listStateEdit
	m.table.Blur()
	return m, m.form.Init()
}

func (m ListModel) updateEdit(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEsc {
			m.state = listStateBrowse
			m.form = nil
			m.table.Focus()
			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	return m, m.saveCmd(m.form.GetString("category"), m.form.GetBool("remember"))
}

func (m ListModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading transactions...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(fmt.Sprintf("Error: %v", m.err))
	}

	scopeLabel := "All"
	if m.uncategorizedOnly {
		scopeLabel = "Uncategorised"
	}

	header := fmt.Sprintf(
		"Filter: [c] Scope: %s | [d] Date: %s",
		activeStyle(scopeLabel),
		activeStyle(listTimeframes[m.dateFilterIdx].String()),
	)

	tableView := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View())

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		tableView,
	)

	if m.state == listStateEdit && m.form != nil {
		idx := m.table.Cursor()
		label := ""
		if idx >= 0 && idx < len(m.txs) {
			label = m.txs[idx].Label
		}

		panel := lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Width(48).
			Render(
				fmt.Sprintf("Categorise\n\nLabel: %s\n\n%s", label, m.form.View()),
			)

		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel)
	}

	if m.status != "" {
		content = lipgloss.NewStyle().Faint(true).Render(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func activeStyle(s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Render(s)
}

func (m *ListModel) applyFilter() {
	m.filter.Uncategorized = m.uncategorizedOnly
	m.filter.StartDate, m.filter.EndDate = nil, nil

	if start, end, ok := listTimeframes[m.dateFilterIdx].Bounds(time.Now()); ok {
		m.filter.StartDate = &start
		m.filter.EndDate = &end
	}
}

func (m *ListModel) refreshTable() {
	labels := make(map[uuid.UUID]string, len(m.categories))
	for _, c := range m.categories {
		labels[c.ID] = c.Label
	}

	rows := make([]table.Row, 0, len(m.txs))
	for _, tx := range m.txs {
		categoryLabel := "-"
		if tx.CategoryID != nil {
			categoryLabel = labels[*tx.CategoryID]
		}

		reporting := ""
		if tx.BaseAmount != nil {
			reporting = FormatMoney(*tx.BaseAmount, tx.BaseCurrency)
		}

		rows = append(rows, table.Row{
			FormatDate(tx.Date),
			FormatMoney(tx.Signed(), tx.Currency),
			tx.Label,
			categoryLabel,
			reporting,
		})
	}
	m.table.SetRows(rows)
}

// Messages

type loadListMsg struct {
	txs        []*transaction.Transaction
	categories []*category.Category
	err        error
}

func (m ListModel) loadTxsCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		cats, err := m.categoryService.List(ctx, m.UserID)
		if err != nil {
			return loadListMsg{err: err}
		}

		txs, err := m.txService.List(ctx, m.filter)
		return loadListMsg{txs: txs, categories: cats, err: err}
	}
}

type listSaveMsg struct {
	status string
	err    error
}

func (m ListModel) saveCmd(choice string, remember bool) tea.Cmd {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.txs) {
		return nil
	}

	tx := m.txs[idx]

	var picked *category.Category
	for _, c := range m.categories {
		if c.ID.String() == choice {
			picked = c
		}
	}

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		var categoryID *uuid.UUID
		if picked != nil {
			categoryID = &picked.ID
		}

		if err := m.txService.AssignCategory(ctx, m.UserID, tx.ID, categoryID); err != nil {
			return listSaveMsg{err: err}
		}

		if picked == nil || !remember {
			return listSaveMsg{status: "Saved."}
		}

		if err := m.matchingService.Upsert(ctx, tx.Label, picked.Label); err != nil {
			return listSaveMsg{err: err}
		}

		return listSaveMsg{status: fmt.Sprintf("Saved. %q will now map to %s.", tx.Label, picked.Label)}
	}
}
