package tui

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nathoo/fableforge/cli"
	"github.com/nathoo/fableforge/engine"
	"github.com/nathoo/fableforge/engine/save"
	"github.com/nathoo/fableforge/genai"
	"github.com/nathoo/fableforge/library"
	"github.com/nathoo/fableforge/store"
	"github.com/nathoo/fableforge/types"
)

func TestHistoryNavigation(t *testing.T) {
	h := NewHistory(3)
	h.Push("town")
	h.Push("attack")
	h.Push("attack") // consecutive duplicate dropped
	h.Push("heal")

	if got, _ := h.Prev(); got != "heal" {
		t.Errorf("Prev = %q, want heal", got)
	}
	if got, _ := h.Prev(); got != "attack" {
		t.Errorf("Prev = %q, want attack", got)
	}
	if got, _ := h.Next(); got != "heal" {
		t.Errorf("Next = %q, want heal", got)
	}
	if _, ok := h.Next(); ok {
		t.Error("Next past the newest entry should report false")
	}
}

func TestHistoryCapacity(t *testing.T) {
	h := NewHistory(2)
	h.Push("one")
	h.Push("two")
	h.Push("three")

	if got, _ := h.Prev(); got != "three" {
		t.Errorf("Prev = %q", got)
	}
	if got, _ := h.Prev(); got != "two" {
		t.Errorf("Prev = %q", got)
	}
	if got, _ := h.Prev(); got != "two" {
		t.Errorf("oldest entry should stick, got %q", got)
	}
}

func TestHistoryLastAndBlankLines(t *testing.T) {
	h := NewHistory(4)
	if h.Last() != "" {
		t.Errorf("Last on empty history = %q, want empty", h.Last())
	}
	h.Push("")
	h.Push("   ")
	if h.Last() != "" {
		t.Error("blank lines should not be recorded")
	}
	h.Push("status")
	h.Push("  status  ")
	if got := h.Last(); got != "status" {
		t.Errorf("Last = %q, want status", got)
	}
	if got, _ := h.Prev(); got != "status" {
		t.Errorf("Prev = %q, want status", got)
	}
	if _, ok := h.Next(); ok {
		t.Error("single entry should exhaust Next immediately")
	}
}

func TestWordWrap(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  string
	}{
		{"short", 20, "short"},
		{"one two three four", 9, "one two\nthree\nfour"},
		{"exact fit", 9, "exact fit"},
		{"anything", 0, "anything"},
	}
	for _, tt := range tests {
		if got := wordWrap(tt.text, tt.width); got != tt.want {
			t.Errorf("wordWrap(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
		}
	}
}

func TestIsSystemLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"[Saved to slot 2.]", true},
		{"You arrive in town.", false},
		{"[half open", false},
	}
	for _, tt := range tests {
		if got := isSystemLine(tt.line); got != tt.want {
			t.Errorf("isSystemLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestPlaceLabel(t *testing.T) {
	tests := []struct {
		place engine.Place
		phase engine.Phase
		want  string
	}{
		{engine.PlaceMapSelect, engine.PhaseIdle, "World Map"},
		{engine.PlaceTown, engine.PhaseIdle, "Town"},
		{engine.PlaceTown, engine.PhaseDialogue, "Town (talking)"},
		{engine.PlaceForest, engine.PhaseBattle, "Forest (battle)"},
	}
	for _, tt := range tests {
		if got := placeLabel(tt.place, tt.phase); got != tt.want {
			t.Errorf("placeLabel(%v, %v) = %q, want %q", tt.place, tt.phase, got, tt.want)
		}
	}
}

// testModel builds a ready model over an in-memory stack with a stock
// roster.
func testModel(t *testing.T) Model {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	kv := store.NewEngine(store.NewMemStore(), log)
	t.Cleanup(func() { kv.Close() })

	lib := library.NewManager(kv, log)
	if err := lib.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	saves := save.NewManager(kv, log)
	if err := saves.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	lib.AddEntity(types.Entity{
		ID: "hero-aria", Name: "Aria", Category: types.CategoryHero,
		Stats: types.Stats{HP: 100, MaxHP: 100, MP: 50, MaxMP: 50, Atk: 12, Def: 5},
	})
	lib.AddEntity(types.Entity{
		ID: "enemy-gnarl", Name: "Gnarl", Category: types.CategoryEnemy,
		Stats: types.Stats{HP: 30, MaxHP: 30, Atk: 8, Def: 2},
	})
	lib.SetWorldMembership([]string{"enemy-gnarl"}, true)

	policy := engine.DefaultPolicy()
	policy.EnemyTurnDelay = 0

	app := &cli.App{
		Game:  engine.New(lib, saves, log, engine.WithSeed(7), engine.WithPolicy(policy)),
		Lib:   lib,
		Saves: saves,
		Gen:   genai.Static{},
	}

	m := New(app)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model)
}

// submit types a line and presses enter.
func submit(t *testing.T, m Model, line string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(line)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

func TestDispatchDelegatesToApp(t *testing.T) {
	m := testModel(t)
	m, _ = submit(t, m, "start aria")

	view := m.View()
	if !strings.Contains(view, "Aria sets out") {
		t.Errorf("session start not shown:\n%s", view)
	}
	if !strings.Contains(view, "Aria  HP 100/100") {
		t.Errorf("status bar missing vitals:\n%s", view)
	}
}

func TestAgainRepeatsWithoutEnteringHistory(t *testing.T) {
	m := testModel(t)
	m, _ = submit(t, m, "start aria")
	m, _ = submit(t, m, "status")
	m, _ = submit(t, m, "again")

	if got := m.history.Last(); got != "status" {
		t.Errorf("history.Last = %q, want status", got)
	}
	if strings.Count(m.View(), "Atk 12") < 2 {
		t.Errorf("again did not repeat the status line:\n%s", m.View())
	}
}

func TestAttackArmsDelayedCounter(t *testing.T) {
	m := testModel(t)
	m, _ = submit(t, m, "start aria")
	m, _ = submit(t, m, "forest")

	m, cmd := submit(t, m, "attack")
	if cmd == nil {
		t.Fatal("attack against a surviving enemy must schedule the counter")
	}
	if !m.app.Game.Busy() {
		t.Fatal("engine should be waiting on the enemy turn")
	}

	// The tick payload resolves the counter through the update loop.
	msg := cmd()
	turn, ok := msg.(enemyTurnMsg)
	if !ok {
		t.Fatalf("tick produced %T, want enemyTurnMsg", msg)
	}
	next, _ := m.Update(turn)
	m = next.(Model)
	if m.app.Game.Busy() {
		t.Fatal("counter did not resolve")
	}
	if !strings.Contains(m.View(), "strikes you") {
		t.Errorf("counter-attack not shown:\n%s", m.View())
	}
}

func TestRejectedIntentShownAsSystemLine(t *testing.T) {
	m := testModel(t)
	m, _ = submit(t, m, "start aria")
	m, cmd := submit(t, m, "attack")
	if cmd != nil {
		t.Fatal("rejected attack must not schedule anything")
	}
	if !strings.Contains(m.View(), "not accepted") {
		t.Errorf("rejection not surfaced:\n%s", m.View())
	}
}

func TestPersistFailureShowsBanner(t *testing.T) {
	m := testModel(t)
	next, _ := m.Update(PersistFailMsg{})
	m = next.(Model)
	if !strings.Contains(m.View(), "Saving is unavailable") {
		t.Errorf("degraded banner missing:\n%s", m.View())
	}
}
