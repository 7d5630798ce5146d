package view

import (
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
)

// Timeframe is a date range preset relative to today.
type Timeframe int

const (
	TimeframeThisMonth Timeframe = iota
	TimeframeLastMonth
	TimeframeThisYear
	TimeframeLastYear
	TimeframeAll
	TimeframeCustom
)

func (t Timeframe) String() string {
	switch t {
	case TimeframeThisMonth:
		return "This Month"
	case TimeframeLastMonth:
		return "Last Month"
	case TimeframeThisYear:
		return "This Year"
	case TimeframeLastYear:
		return "Last Year"
	case TimeframeAll:
		return "All Time"
	case TimeframeCustom:
		return "Custom Range"
	}

	return "Unknown"
}

// Bounds returns the first and last instant of t relative to now. It
// reports false for All and Custom, which have no fixed bounds.
func (t Timeframe) Bounds(now time.Time) (time.Time, time.Time, bool) {
	y, m, _ := now.Date()

	var start time.Time

	switch t {
	case TimeframeThisMonth:
		start = time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0).Add(-time.Nanosecond), true
	case TimeframeLastMonth:
		start = time.Date(y, m-1, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0).Add(-time.Nanosecond), true
	case TimeframeThisYear:
		start = time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(1, 0, 0).Add(-time.Nanosecond), true
	case TimeframeLastYear:
		start = time.Date(y-1, 1, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(1, 0, 0).Add(-time.Nanosecond), true
	}

	return time.Time{}, time.Time{}, false
}

// TimeframeSelectedMsg is emitted once the picker form is completed.
// Start and End are zero values when All is true.
type TimeframeSelectedMsg struct {
	Start time.Time
	End   time.Time
	All   bool
}

// Range returns the selection as optional filter bounds, nil for All.
func (msg TimeframeSelectedMsg) Range() (*time.Time, *time.Time) {
	if msg.All {
		return nil, nil
	}

	return &msg.Start, &msg.End
}

// Label describes the selection for headers.
func (msg TimeframeSelectedMsg) Label() string {
	if msg.All {
		return TimeframeAll.String()
	}

	return fmt.Sprintf("%s to %s", FormatDate(msg.Start), FormatDate(msg.End))
}

// timeframeInput is shared by every copy of a picker so the form's hide and
// validate funcs see the live values.
type timeframeInput struct {
	choice Timeframe
	from   string
	to     string
}

// TimeframePicker selects a preset or a custom inclusive date range.
type TimeframePicker struct {
	initial Timeframe
	input   *timeframeInput
	form    *huh.Form
	done    bool
}

func NewTimeframePicker(initial Timeframe) TimeframePicker {
	m := TimeframePicker{initial: initial}
	m.Reset()

	return m
}

// Reset discards the current selection and rebuilds the form.
func (m *TimeframePicker) Reset() {
	m.input = &timeframeInput{choice: m.initial}
	m.done = false

	in := m.input

	options := make([]huh.Option[Timeframe], 0, TimeframeCustom+1)
	for t := TimeframeThisMonth; t <= TimeframeCustom; t++ {
		options = append(options, huh.NewOption(t.String(), t))
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[Timeframe]().
				Title("Timeframe").
				Options(options...).
				Value(&in.choice),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("From").
				Placeholder(time.DateOnly).
				Value(&in.from).
				Validate(validDate),
			huh.NewInput().
				Title("To").
				Placeholder(time.DateOnly).
				Value(&in.to).
				Validate(func(s string) error {
					if err := validDate(s); err != nil {
						return err
					}

					from, err := time.Parse(time.DateOnly, in.from)
					to, _ := time.Parse(time.DateOnly, s)
					if err == nil && to.Before(from) {
						return errors.New("end date is before start date")
					}

					return nil
				}),
		).WithHideFunc(func() bool { return in.choice != TimeframeCustom }),
	).WithWidth(40).WithShowHelp(false)
}

func validDate(s string) error {
	if _, err := time.Parse(time.DateOnly, s); err != nil {
		return errors.New("expected YYYY-MM-DD")
	}

	return nil
}

func (m TimeframePicker) Init() tea.Cmd {
	return m.form.Init()
}

func (m TimeframePicker) Update(msg tea.Msg) (TimeframePicker, tea.Cmd) {
	if m.done {
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	m.done = true
	selected := m.selection(time.Now())

	return m, func() tea.Msg { return selected }
}

func (m TimeframePicker) selection(now time.Time) TimeframeSelectedMsg {
	switch m.input.choice {
	case TimeframeAll:
		return TimeframeSelectedMsg{All: true}
	case TimeframeCustom:
		from, _ := time.Parse(time.DateOnly, m.input.from)
		to, _ := time.Parse(time.DateOnly, m.input.to)

		return TimeframeSelectedMsg{Start: from, End: to.AddDate(0, 0, 1).Add(-time.Nanosecond)}
	}

	start, end, _ := m.input.choice.Bounds(now)

	return TimeframeSelectedMsg{Start: start, End: end}
}

func (m TimeframePicker) View() string {
	return m.form.View() + "\n\n(Enter to select, Esc to go back)"
}
