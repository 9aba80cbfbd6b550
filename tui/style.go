package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nathoo/fableforge/engine"
)

// Styles used throughout the TUI.
var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleBanner = lipgloss.NewStyle().
			Background(lipgloss.Color("52")).
			Foreground(lipgloss.Color("255")).
			Bold(true)

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	stylePlayerInput = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleNarrative = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	styleBattle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))

	styleVictory = lipgloss.NewStyle().
			Foreground(lipgloss.Color("120")).
			Bold(true)

	styleDefeat = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	styleHealLine = lipgloss.NewStyle().
			Foreground(lipgloss.Color("84"))

	styleDialogue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228"))

	styleSystem = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleWarning = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
)

// styleForEvent maps an adventure-log kind to its display style.
func styleForEvent(kind engine.EventKind) lipgloss.Style {
	switch kind {
	case engine.EventBattleStart, engine.EventDamage:
		return styleBattle
	case engine.EventVictory:
		return styleVictory
	case engine.EventDefeat:
		return styleDefeat
	case engine.EventHeal:
		return styleHealLine
	case engine.EventDialogue:
		return styleDialogue
	case engine.EventWarning:
		return styleWarning
	default:
		return styleNarrative
	}
}

// isSystemLine recognizes the dispatcher's bracketed meta output.
func isSystemLine(line string) bool {
	return strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]")
}
