package view

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/grouper/internal/report"
)

type summaryState int

const (
	summaryStateTimeframe summaryState = iota
	summaryStateLoading
	summaryStateResult
	summaryStatePath
)

type SummaryModel struct {
	CommonModel
	reportService *report.Service

	state           summaryState
	err             error
	timeframePicker TimeframePicker
	selected        TimeframeSelectedMsg

	summary *report.Summary
	form    *huh.Form
	path    string
	status  string
	spinner spinner.Model
}

func NewSummaryModel(userID uuid.UUID, svc *report.Service) SummaryModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return SummaryModel{
		CommonModel:     CommonModel{UserID: userID},
		reportService:   svc,
		state:           summaryStateTimeframe,
		timeframePicker: NewTimeframePicker(TimeframeThisMonth),
		path:            "./reports",
		spinner:         s,
	}
}

func (m SummaryModel) Title() string { return "Category Summary" }

func (m SummaryModel) ShortHelp() string {
	switch m.state {
	case summaryStateResult:
		return "Esc: back | s: save CSV | t: change timeframe"
	case summaryStateLoading:
		return "Loading..."
	}
	return "Esc: back | Enter: confirm"
}

func (m SummaryModel) Init() tea.Cmd {
	return m.timeframePicker.Init()
}

func (m SummaryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TimeframeSelectedMsg:
		m.selected = msg
		m.state = summaryStateLoading
		m.err = nil
		m.status = ""
		return m, tea.Batch(m.spinner.Tick, m.loadCmd(msg))

	case summaryResultMsg:
		m.state = summaryStateResult
		m.err = msg.err
		m.summary = msg.summary
		return m, nil

	case summarySavedMsg:
		m.state = summaryStateResult
		m.form = nil
		if msg.err != nil {
			m.status = fmt.Sprintf("Error saving: %v", msg.err)
			return m, nil
		}
		m.status = "Saved to " + msg.path
		return m, nil
	}

	switch m.state {
	case summaryStateTimeframe:
		return m.updateTimeframe(msg)
	case summaryStateLoading:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case summaryStateResult:
		return m.updateResult(msg)
	case summaryStatePath:
		return m.updatePath(msg)
	}

	return m, nil
}

func (m SummaryModel) updateTimeframe(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEsc {
			return m, Back
		}
	}

	var cmd tea.Cmd
	m.timeframePicker, cmd = m.timeframePicker.Update(msg)
	return m, cmd
}

func (m SummaryModel) updateResult(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "esc":
		return m, Back
	case "t":
		m.state = summaryStateTimeframe
		m.timeframePicker.Reset()
		return m, m.timeframePicker.Init()
	case "s":
		if m.summary == nil {
			return m, nil
		}
		m.form = m.buildPathForm()
		m.state = summaryStatePath
		return m, m.form.Init()
	}

	return m, nil
}

func (m SummaryModel) updatePath(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEsc {
			m.state = summaryStateResult
			m.form = nil
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

	m.path = m.form.GetString("path")

	return m, m.saveCmd(m.summary, m.path, m.selected)
}

func (m SummaryModel) buildPathForm() *huh.Form {
	path := m.path

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("path").
				Title("Output Directory").
				Description("Directory will be created if it doesn't exist").
				Placeholder("./reports").
				Value(&path),
		),
	).WithWidth(50).WithShowHelp(false)
}

func (m SummaryModel) View() string {
	switch m.state {
	case summaryStateTimeframe:
		return lipgloss.NewStyle().Padding(1).Render(m.timeframePicker.View())

	case summaryStateLoading:
		return lipgloss.NewStyle().Padding(1).Render(
			fmt.Sprintf("%s Summarising %s...", m.spinner.View(), m.selected.Label()),
		)

	case summaryStatePath:
		return lipgloss.NewStyle().Padding(1).Render(m.form.View())

	case summaryStateResult:
		return m.viewResult()
	}

	return ""
}

func (m SummaryModel) viewResult() string {
	if m.err != nil {
		return lipgloss.NewStyle().Padding(1).Render(
			lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(fmt.Sprintf("Error: %v", m.err)),
		)
	}

	s := m.summary

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("46")).
		Render(fmt.Sprintf("%s in %s", m.selected.Label(), s.Currency))

	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %6s %16s %16s %16s\n", "Category", "Count", "Income", "Expense", "Net")
	for _, l := range s.Lines {
		fmt.Fprintf(&b, "%-20s %6d %16s %16s %16s\n",
			l.Label, l.Count,
			FormatMoney(l.Income, s.Currency),
			FormatMoney(l.Expense, s.Currency),
			FormatMoney(l.Net, s.Currency),
		)
	}
	fmt.Fprintf(&b, "%-20s %6s %16s %16s %16s",
		"Total", "",
		FormatMoney(s.Income, s.Currency),
		FormatMoney(s.Expense, s.Currency),
		FormatMoney(s.Net, s.Currency),
	)

	parts := []string{header, "", b.String()}

	if len(s.Excluded) > 0 {
		warn := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
		parts = append(parts, "", warn.Render(fmt.Sprintf("%d transaction(s) excluded, no exchange rate:", len(s.Excluded))))
		for _, tx := range s.Excluded {
			parts = append(parts, fmt.Sprintf("  %s  %s  %s", FormatDate(tx.Date), FormatMoney(tx.Signed(), tx.Currency), tx.Label))
		}
	}

	if !s.RatesAt.IsZero() {
		parts = append(parts, "", lipgloss.NewStyle().Faint(true).Render("Rates as of "+s.RatesAt.Format(time.RFC3339)))
	}

	if m.status != "" {
		parts = append(parts, "", m.status)
	}

	return lipgloss.NewStyle().Padding(1).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

type summaryResultMsg struct {
	summary *report.Summary
	err     error
}

type summarySavedMsg struct {
	path string
	err  error
}

const summaryTimeout = 30 * time.Second

func (m SummaryModel) loadCmd(tf TimeframeSelectedMsg) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), summaryTimeout)
		defer cancel()

		start, end := tf.Range()
		s, err := m.reportService.Summary(ctx, m.UserID, report.Filter{StartDate: start, EndDate: end})
		return summaryResultMsg{summary: s, err: err}
	}
}

func (m SummaryModel) saveCmd(s *report.Summary, dir string, tf TimeframeSelectedMsg) tea.Cmd {
	return func() tea.Msg {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return summarySavedMsg{err: fmt.Errorf("creating directory: %w", err)}
		}

		name := fmt.Sprintf("summary_%s.csv", strings.ReplaceAll(strings.ToLower(tf.Label()), " ", "_"))
		path := filepath.Join(dir, name)

		f, err := os.Create(path)
		if err != nil {
			return summarySavedMsg{err: fmt.Errorf("creating file: %w", err)}
		}
		defer f.Close()

		if err := report.WriteCSV(f, s); err != nil {
			return summarySavedMsg{err: err}
		}

		return summarySavedMsg{path: path}
	}
}
