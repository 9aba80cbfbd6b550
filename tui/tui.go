package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nathoo/fableforge/cli"
	"github.com/nathoo/fableforge/engine"
)

// rawLine stores an unstyled output line with its classification, so we
// can re-wrap and re-style when the terminal is resized.
type rawLine struct {
	text    string
	kind    engine.EventKind
	isInput bool // true for echoed player input
	system  bool // true for meta-command output
}

// Model is the Bubble Tea model for the FableForge TUI.
type Model struct {
	app *cli.App

	viewport viewport.Model
	input    textinput.Model
	history  *History

	rawLines []rawLine

	width    int
	height   int
	ready    bool
	quitting bool
	banner   string
}

// outputMsg carries command output into the Update loop.
type outputMsg struct {
	input  string // echoed player input (empty for async results)
	events []engine.Event
	system []string
	quit   bool
}

// enemyTurnMsg fires when the enemy's thinking pause elapses.
type enemyTurnMsg struct {
	tok engine.Token
}

// PersistFailMsg is sent from outside the program when a background write
// fails; the status bar turns into a degraded-persistence banner.
type PersistFailMsg struct {
	Err error
}

// New creates a TUI model over the shared app.
func New(app *cli.App) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 256
	ti.PromptStyle = styleInputPrompt

	return Model{
		app:     app,
		input:   ti,
		history: NewHistory(100),
	}
}

// Program builds the Bubble Tea program. The caller keeps the handle so it
// can feed external messages (persistence failures) into the loop.
func Program(app *cli.App) *tea.Program {
	return tea.NewProgram(New(app), tea.WithAltScreen(), tea.WithMouseCellMotion())
}

// Init shows the welcome text.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, func() tea.Msg {
		return outputMsg{system: []string{
			"FableForge — forge characters, build a world, wander it.",
			"Type help for commands, start <hero> to begin.",
		}}
	})
}

// Update handles key presses, window resizes, and command output.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		vpHeight := m.height - 2 // 1 status bar + 1 input line
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.KeyMap = viewportKeyMap()
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.refreshViewport()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.app.Game.Exit()
			m.quitting = true
			return m, tea.Quit

		case "enter":
			return m.handleEnter()

		case "up":
			if prev, ok := m.history.Prev(); ok {
				m.input.SetValue(prev)
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if next, ok := m.history.Next(); ok {
				m.input.SetValue(next)
				m.input.CursorEnd()
			} else {
				m.input.SetValue("")
				m.history.ResetCursor()
			}
			return m, nil

		case "pgup", "pgdown":
			var vpCmd tea.Cmd
			m.viewport, vpCmd = m.viewport.Update(msg)
			return m, vpCmd
		}

	case outputMsg:
		m = m.appendOutput(msg)
		if msg.quit {
			m.quitting = true
			return m, tea.Quit
		}

	case enemyTurnMsg:
		m = m.appendOutput(outputMsg{events: m.app.Game.ResolveEnemyTurn(msg.tok)})

	case PersistFailMsg:
		m.banner = "Saving is unavailable — progress is in memory only."
	}

	var inputCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	cmds = append(cmds, inputCmd)

	return m, tea.Batch(cmds...)
}

// handleEnter processes the submitted input line.
func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")
	if input == "" {
		return m, nil
	}

	m.history.ResetCursor()

	lower := strings.ToLower(input)
	if lower == "again" || lower == "g" {
		last := m.history.Last()
		if last == "" {
			return m.appendOutput(outputMsg{
				input: input, system: []string{"[Nothing to repeat.]"},
			}), nil
		}
		input = last
	} else {
		m.history.Push(input)
	}

	return m.dispatch(input)
}

// dispatch routes a command. Battle actions, dialogue, and generation run
// their slow halves as commands so the update loop never blocks; everything
// else delegates to the shared dispatcher inline.
func (m Model) dispatch(input string) (Model, tea.Cmd) {
	fields := strings.Fields(input)
	switch strings.ToLower(fields[0]) {
	case "attack":
		tok, evs, err := m.app.Game.Attack()
		return m.battleAction(input, tok, evs, err)

	case "heal":
		tok, evs, err := m.app.Game.Heal()
		return m.battleAction(input, tok, evs, err)

	case "say":
		text := strings.TrimSpace(strings.TrimPrefix(input, fields[0]))
		call, evs, err := m.app.Game.SendDialogueMessage(text)
		if err != nil {
			return m.appendOutput(outputMsg{input: input, system: []string{"[" + err.Error() + "]"}}), nil
		}
		m = m.appendOutput(outputMsg{input: input, events: evs})
		return m, m.generateReply(call)

	case "forge":
		// Generation is a network call; run it off the update loop.
		m = m.appendOutput(outputMsg{input: input, system: []string{"[Forging...]"}})
		return m, func() tea.Msg {
			lines, _ := m.app.Dispatch(context.Background(), input)
			return outputMsg{system: lines}
		}
	}

	lines, quit := m.app.Dispatch(context.Background(), input)
	return m.appendOutput(outputMsg{input: input, system: lines, quit: quit}), nil
}

// battleAction shows the player's half of the round and, if the enemy
// survived, arms the delayed counter-attack.
func (m Model) battleAction(input string, tok engine.Token, evs []engine.Event, err error) (Model, tea.Cmd) {
	if err != nil {
		return m.appendOutput(outputMsg{input: input, system: []string{"[" + err.Error() + "]"}}), nil
	}
	m = m.appendOutput(outputMsg{input: input, events: evs})
	if !tok.Valid() {
		return m, nil
	}
	return m, tea.Tick(m.app.Game.Policy().EnemyTurnDelay, func(time.Time) tea.Msg {
		return enemyTurnMsg{tok: tok}
	})
}

// generateReply calls the generation service and hands the result back to
// the engine. A reply arriving after the player left is dropped there.
func (m Model) generateReply(call *engine.DialogueCall) tea.Cmd {
	return func() tea.Msg {
		reply, err := m.app.Gen.GenerateDialogueReply(
			context.Background(), call.Persona, call.History, call.Message)
		return outputMsg{events: m.app.Game.DeliverReply(call.Token, reply, err)}
	}
}

// appendOutput adds lines to the adventure log and refreshes the viewport.
func (m Model) appendOutput(msg outputMsg) Model {
	if msg.input != "" {
		m.rawLines = append(m.rawLines, rawLine{text: "> " + msg.input, isInput: true})
	}
	for _, ev := range msg.events {
		m.rawLines = append(m.rawLines, rawLine{text: ev.Text, kind: ev.Kind})
	}
	for _, line := range msg.system {
		m.rawLines = append(m.rawLines, rawLine{text: line, system: isSystemLine(line)})
	}
	if msg.input != "" || len(msg.events) > 0 {
		m.rawLines = append(m.rawLines, rawLine{})
	}

	m.refreshViewport()
	return m
}

// refreshViewport re-wraps and re-styles all raw lines at the current
// width and updates the viewport content.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	width := m.width
	if width < 10 {
		width = 10
	}

	var styled []string
	for _, rl := range m.rawLines {
		if rl.text == "" {
			styled = append(styled, "")
			continue
		}
		wrapped := wordWrap(rl.text, width)
		switch {
		case rl.isInput:
			styled = append(styled, stylePlayerInput.Render(wrapped))
		case rl.system:
			styled = append(styled, styleSystem.Render(wrapped))
		default:
			styled = append(styled, styleForEvent(rl.kind).Render(wrapped))
		}
	}

	m.viewport.SetContent(strings.Join(styled, "\n"))
	m.viewport.GotoBottom()
}

// wordWrap wraps text to fit within the given width, breaking at word
// boundaries.
func wordWrap(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}

	var result strings.Builder
	words := strings.Fields(text)
	lineLen := 0

	for i, word := range words {
		wLen := len(word)
		if i == 0 {
			result.WriteString(word)
			lineLen = wLen
			continue
		}
		if lineLen+1+wLen > width {
			result.WriteString("\n")
			result.WriteString(word)
			lineLen = wLen
		} else {
			result.WriteString(" ")
			result.WriteString(word)
			lineLen += 1 + wLen
		}
	}
	return result.String()
}

// View renders the full layout: viewport + status bar + input.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}
	return m.viewport.View() + "\n" + m.renderStatusBar() + "\n" + m.input.View()
}

// viewportKeyMap returns a viewport keymap with Up/Down disabled
// (we use those for input history).
func viewportKeyMap() viewport.KeyMap {
	return viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		Up:           key.NewBinding(key.WithDisabled()),
		Down:         key.NewBinding(key.WithDisabled()),
	}
}
