package output

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used in text mode.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Path    lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style
}

// NewStyles builds styles bound to a lipgloss renderer.
func NewStyles(lg *lipgloss.Renderer) *Styles {
	return &Styles{
		Header1: lg.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).MarginBottom(1),
		Header2: lg.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		Bold:    lg.NewStyle().Bold(true),
		Muted:   lg.NewStyle().Foreground(lipgloss.Color("8")),
		Path:    lg.NewStyle().Foreground(lipgloss.Color("6")),
		Success: lg.NewStyle().Foreground(lipgloss.Color("10")),
		Warning: lg.NewStyle().Foreground(lipgloss.Color("11")),
		Error:   lg.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Info:    lg.NewStyle().Foreground(lipgloss.Color("12")),
	}
}

// ForStatus picks a style for an action or run status.
func (s *Styles) ForStatus(status string) lipgloss.Style {
	switch status {
	case "applied", "success", "ok", "exists", "found", "present":
		return s.Success
	case "failed", "error", "missing", "broken":
		return s.Error
	case "declined", "skipped", "canceled", "warning", "duplicate", "shadowed", "blocked":
		return s.Warning
	case "previewed", "open":
		return s.Info
	default:
		return s.Muted
	}
}
