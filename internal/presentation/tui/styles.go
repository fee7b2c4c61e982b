package tui

import (
	"github.com/aretw0/tripvoice/pkg/domain"
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the colours of the chat.
type Theme struct {
	User      lipgloss.Color
	Assistant lipgloss.Color
	Dim       lipgloss.Color
	Alert     lipgloss.Color
}

// DefaultTheme is the standard chat palette.
var DefaultTheme = Theme{
	User:      lipgloss.Color("#38bdf8"),
	Assistant: lipgloss.Color("#4ade80"),
	Dim:       lipgloss.Color("#6e7681"),
	Alert:     lipgloss.Color("#f87171"),
}

// Styles are the lipgloss styles derived from a Theme.
type Styles struct {
	User      lipgloss.Style
	Assistant lipgloss.Style
	Status    lipgloss.Style
	Error     lipgloss.Style
}

// NewStyles builds the styles for t. When styled is false every style renders text unchanged.
func NewStyles(t Theme, styled bool) Styles {
	if !styled {
		return Styles{
			User: lipgloss.NewStyle(), Assistant: lipgloss.NewStyle(),
			Status: lipgloss.NewStyle(), Error: lipgloss.NewStyle(),
		}
	}
	return Styles{
		User:      lipgloss.NewStyle().Bold(true).Foreground(t.User),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(t.Assistant),
		Status:    lipgloss.NewStyle().Italic(true).Foreground(t.Dim),
		Error:     lipgloss.NewStyle().Bold(true).Foreground(t.Alert),
	}
}

// Label renders the speaker prefix of a turn.
func (s Styles) Label(role domain.Role) string {
	if role == domain.RoleAssistant {
		return s.Assistant.Render("assistant>")
	}
	return s.User.Render("you>")
}
