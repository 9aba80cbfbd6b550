package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nathoo/fableforge/engine"
)

// renderStatusBar produces a full-width inverted status line showing the
// player vitals, the current place, and the live encounter.
func (m Model) renderStatusBar() string {
	if m.banner != "" {
		return styleBanner.Width(m.width).Render(" " + m.banner)
	}

	p, ok := m.app.Game.Player()
	if !ok {
		return styleStatusBar.Width(m.width).Render(" FableForge | start <hero> to begin")
	}

	left := fmt.Sprintf(" %s  HP %d/%d  MP %d/%d",
		p.Name, p.Stats.HP, p.Stats.MaxHP, p.Stats.MP, p.Stats.MaxMP)

	mid := placeLabel(m.app.Game.Place(), m.app.Game.Phase())
	if enemy, ok := m.app.Game.Enemy(); ok {
		mid += fmt.Sprintf(" vs %s %d/%d", enemy.Name, enemy.Stats.HP, enemy.Stats.MaxHP)
	} else if npc, ok := m.app.Game.CurrentNPC(); ok {
		mid += " with " + npc.Name
	}

	right := ""
	if m.app.Game.Busy() {
		right = "… "
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(mid) - lipgloss.Width(right) - 3
	if gap < 1 {
		gap = 1
	}
	bar := left + " | " + mid + strings.Repeat(" ", gap) + right
	return styleStatusBar.Width(m.width).Render(bar)
}

// placeLabel renders the place and phase as one compact tag.
func placeLabel(place engine.Place, phase engine.Phase) string {
	var name string
	switch place {
	case engine.PlaceTown:
		name = "Town"
	case engine.PlaceForest:
		name = "Forest"
	default:
		name = "World Map"
	}
	switch phase {
	case engine.PhaseBattle:
		return name + " (battle)"
	case engine.PhaseDialogue:
		return name + " (talking)"
	}
	return name
}
