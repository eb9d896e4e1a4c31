// Package tui is the terminal console: a gate screen, collection search, a
// product grid with selection toggles and the operation panel.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"imageupdater/internal/operation"
)

var (
	ColorPrimary   = lipgloss.Color("#7D56F4")
	ColorSecondary = lipgloss.Color("#6C757D")
	ColorSuccess   = lipgloss.Color("#28A745")
	ColorWarning   = lipgloss.Color("#FFC107")
	ColorError     = lipgloss.Color("#DC3545")
	ColorInfo      = lipgloss.Color("#17A2B8")
)

const (
	SymbolSelected   = "■"
	SymbolUnselected = "□"
	SymbolCursor     = "›"
	SymbolSuccess    = "✓"
	SymbolError      = "✗"
	SymbolPending    = "○"
	SymbolInProgress = "⟳"
)

type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Success  lipgloss.Style
	Error    lipgloss.Style
	Warning  lipgloss.Style
	Info     lipgloss.Style
	Muted    lipgloss.Style
	Cursor   lipgloss.Style
	Panel    lipgloss.Style
	Gate     lipgloss.Style
	HelpKey  lipgloss.Style
	HelpDesc lipgloss.Style
	Disabled lipgloss.Style
}

func DefaultStyles() *Styles {
	return &Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).MarginBottom(1),
		Subtitle: lipgloss.NewStyle().Bold(true),
		Success:  lipgloss.NewStyle().Foreground(ColorSuccess),
		Error:    lipgloss.NewStyle().Foreground(ColorError),
		Warning:  lipgloss.NewStyle().Foreground(ColorWarning),
		Info:     lipgloss.NewStyle().Foreground(ColorInfo),
		Muted:    lipgloss.NewStyle().Foreground(ColorSecondary),
		Cursor:   lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorSecondary).
			Padding(0, 1),
		Gate: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(1, 2),
		HelpKey:  lipgloss.NewStyle().Bold(true).Foreground(ColorInfo),
		HelpDesc: lipgloss.NewStyle().Foreground(ColorSecondary),
		Disabled: lipgloss.NewStyle().Foreground(ColorSecondary).Strikethrough(true),
	}
}

// StateIcon renders the operation state.
func (s *Styles) StateIcon(state operation.State) string {
	switch state {
	case operation.Completed:
		return s.Success.Render(SymbolSuccess)
	case operation.Failed:
		return s.Error.Render(SymbolError)
	case operation.Processing:
		return s.Info.Render(SymbolInProgress)
	case operation.Pending:
		return s.Warning.Render(SymbolPending)
	default:
		return s.Muted.Render(SymbolPending)
	}
}

// key renders one help entry; disabled actions are struck through.
func (s *Styles) key(k, desc string, enabled bool) string {
	if !enabled {
		return s.Disabled.Render(k + " " + desc)
	}
	return s.HelpKey.Render(k) + " " + s.HelpDesc.Render(desc)
}
