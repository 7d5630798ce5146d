package view

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

// CommonModel is embedded by all views. UserID is the account the TUI acts
// for.
type CommonModel struct {
	UserID uuid.UUID
	Width  int
	Height int
}

type BackMsg struct{}

func Back() tea.Msg {
	return BackMsg{}
}
