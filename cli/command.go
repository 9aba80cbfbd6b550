package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nathoo/fableforge/bundle"
	"github.com/nathoo/fableforge/engine"
	"github.com/nathoo/fableforge/engine/save"
	"github.com/nathoo/fableforge/genai"
	"github.com/nathoo/fableforge/library"
	"github.com/nathoo/fableforge/types"
)

// App bundles the pieces a frontend drives. Dispatch runs every command
// synchronously, including generation calls and the enemy turn; the
// full-screen UI intercepts the asynchronous ones and only delegates the
// rest here.
type App struct {
	Game  *engine.Engine
	Lib   *library.Manager
	Saves *save.Manager
	Gen   genai.Generator

	// Delay honors the enemy "thinking" pause in plain mode. Tests and
	// scripts leave it false.
	Delay bool
}

// Dispatch executes one command line and returns the output lines plus a
// quit flag.
func (a *App) Dispatch(ctx context.Context, input string) ([]string, bool) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil, false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "quit", "exit":
		lines := eventLines(a.Game.Exit())
		return append(lines, system("Goodbye.")), true

	case "help":
		return helpText(), false

	case "start":
		return a.cmdStart(args), false
	case "save":
		return a.cmdSave(ctx, args), false
	case "load":
		return a.cmdLoad(ctx, args), false
	case "slots":
		return a.cmdSlots(), false
	case "autosave":
		return a.cmdAutosave(args), false

	case "map":
		return eventLines(a.Game.ReturnToMap()), false
	case "town":
		return a.travel(types.LocationTown), false
	case "forest":
		return a.travel(types.LocationForest), false
	case "rest":
		evs, err := a.Game.RestAtTown()
		return render(evs, err), false
	case "status":
		return a.cmdStatus(), false

	case "attack":
		return a.cmdAttack(), false
	case "heal":
		return a.cmdHeal(), false

	case "talk":
		evs, err := a.Game.StartDialogue()
		return render(evs, err), false
	case "say":
		return a.cmdSay(ctx, strings.TrimSpace(strings.TrimPrefix(input, parts[0]))), false
	case "bye":
		evs, err := a.Game.EndDialogue()
		return render(evs, err), false

	case "roster":
		return a.cmdRoster(args), false
	case "world":
		return a.cmdWorld(args), false
	case "remove":
		return a.cmdRemove(args), false
	case "labels":
		return a.cmdLabels(args), false
	case "forge":
		return a.cmdForge(ctx, args), false

	case "export":
		return a.cmdExport(ctx, args), false
	case "import":
		return a.cmdImport(ctx, args), false
	}

	return []string{system(fmt.Sprintf("Unknown command: %s. Type help for the command list.", cmd))}, false
}

func (a *App) travel(dest types.Location) []string {
	evs, err := a.Game.Travel(dest)
	return render(evs, err)
}

func (a *App) cmdStart(args []string) []string {
	if len(args) == 0 {
		return []string{system("Usage: start <hero id or name>")}
	}
	want := strings.ToLower(strings.Join(args, " "))

	var hero *types.Entity
	for _, e := range a.Lib.Entities(types.CategoryHero) {
		if e.ID == args[0] || strings.ToLower(e.Name) == want {
			h := e
			hero = &h
			break
		}
	}
	if hero == nil {
		return []string{system(fmt.Sprintf("No hero matching %q. Try roster hero.", want))}
	}

	evs, err := a.Game.StartGame(hero.ID)
	return render(evs, err)
}

func (a *App) cmdSave(ctx context.Context, args []string) []string {
	slot, ok := parseSlot(args)
	if !ok {
		return []string{system(fmt.Sprintf("Usage: save <1-%d>", len(a.Saves.Previews())))}
	}
	if err := a.Game.SaveGame(ctx, slot); err != nil {
		return []string{system(fmt.Sprintf("Save failed: %v", err))}
	}
	return []string{system(fmt.Sprintf("Saved to slot %d.", slot))}
}

func (a *App) cmdLoad(ctx context.Context, args []string) []string {
	slot, ok := parseSlot(args)
	if !ok {
		return []string{system(fmt.Sprintf("Usage: load <1-%d>", len(a.Saves.Previews())))}
	}
	evs, err := a.Game.LoadGame(ctx, slot)
	return render(evs, err)
}

func (a *App) cmdSlots() []string {
	lines := []string{"Save slots:"}
	for _, p := range a.Saves.Previews() {
		if p.Empty {
			lines = append(lines, fmt.Sprintf("  %d. (empty)", p.Slot))
			continue
		}
		tag := ""
		if p.Slot == save.AutosaveSlot {
			tag = " [autosave]"
		}
		lines = append(lines, fmt.Sprintf("  %d. %s — %d/%d HP at %s, %s%s",
			p.Slot, p.PlayerName, p.PlayerHP, p.PlayerMax, p.Location,
			p.Timestamp.Format(time.DateTime), tag))
	}
	return lines
}

func (a *App) cmdAutosave(args []string) []string {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		if a.Saves.AutosaveEnabled() {
			return []string{system("Autosave is on. Usage: autosave on|off")}
		}
		return []string{system("Autosave is off. Usage: autosave on|off")}
	}
	on := args[0] == "on"
	a.Saves.SetAutosaveEnabled(on)
	if on {
		return []string{system("Autosave enabled.")}
	}
	return []string{system("Autosave disabled.")}
}

func (a *App) cmdStatus() []string {
	p, ok := a.Game.Player()
	if !ok {
		return []string{system("No adventure in progress. Use start <hero>.")}
	}
	lines := []string{
		fmt.Sprintf("%s — HP %d/%d, MP %d/%d, Atk %d, Def %d",
			p.Name, p.Stats.HP, p.Stats.MaxHP, p.Stats.MP, p.Stats.MaxMP,
			p.Stats.Atk, p.Stats.Def),
		fmt.Sprintf("Location: %s (%s)", a.Game.Place(), a.Game.Phase()),
	}
	if enemy, ok := a.Game.Enemy(); ok {
		lines = append(lines, fmt.Sprintf("Facing: %s — HP %d/%d",
			enemy.Name, enemy.Stats.HP, enemy.Stats.MaxHP))
	}
	if npc, ok := a.Game.CurrentNPC(); ok {
		lines = append(lines, fmt.Sprintf("Present: %s", npc.Name))
	}
	return lines
}

// cmdAttack runs the full battle round: the strike, the pause, and the
// counter-attack.
func (a *App) cmdAttack() []string {
	tok, evs, err := a.Game.Attack()
	lines := render(evs, err)
	if err != nil || !tok.Valid() {
		return lines
	}
	if a.Delay {
		time.Sleep(a.Game.Policy().EnemyTurnDelay)
	}
	return append(lines, eventLines(a.Game.ResolveEnemyTurn(tok))...)
}

func (a *App) cmdHeal() []string {
	tok, evs, err := a.Game.Heal()
	lines := render(evs, err)
	if err != nil || !tok.Valid() {
		return lines
	}
	if a.Delay {
		time.Sleep(a.Game.Policy().EnemyTurnDelay)
	}
	return append(lines, eventLines(a.Game.ResolveEnemyTurn(tok))...)
}

func (a *App) cmdSay(ctx context.Context, text string) []string {
	if text == "" {
		return []string{system("Usage: say <message>")}
	}
	call, evs, err := a.Game.SendDialogueMessage(text)
	lines := render(evs, err)
	if err != nil {
		return lines
	}
	reply, genErr := a.Gen.GenerateDialogueReply(ctx, call.Persona, call.History, call.Message)
	return append(lines, eventLines(a.Game.DeliverReply(call.Token, reply, genErr))...)
}

func (a *App) cmdRoster(args []string) []string {
	cats := []types.Category{types.CategoryHero, types.CategoryNPC, types.CategoryEnemy}
	if len(args) > 0 {
		cat := types.Category(strings.ToUpper(args[0]))
		if !cat.Valid() {
			return []string{system(fmt.Sprintf("Unknown category %q (npc, enemy, hero).", args[0]))}
		}
		cats = []types.Category{cat}
	}

	var lines []string
	for _, cat := range cats {
		ents := a.Lib.Entities(cat)
		lines = append(lines, fmt.Sprintf("%s (%d):", cat, len(ents)))
		for _, e := range ents {
			mark := " "
			if a.Lib.IsActive(e.ID) {
				mark = "*"
			}
			line := fmt.Sprintf("  %s %-24s %s  HP %d Atk %d Def %d",
				mark, e.ID, e.Name, e.Stats.MaxHP, e.Stats.Atk, e.Stats.Def)
			if len(e.Tags) > 0 {
				line += "  [" + strings.Join(e.Tags, ", ") + "]"
			}
			lines = append(lines, line)
		}
	}
	lines = append(lines, system("* marks world-active entities."))
	return lines
}

func (a *App) cmdWorld(args []string) []string {
	if len(args) == 0 {
		ids := a.Lib.ActiveIDs()
		if len(ids) == 0 {
			return []string{system("The world is empty. Use world add <id...>.")}
		}
		lines := []string{fmt.Sprintf("World-active (%d):", len(ids))}
		for _, id := range ids {
			if e, ok := a.Lib.Entity(id); ok {
				lines = append(lines, fmt.Sprintf("  %-24s %s (%s)", e.ID, e.Name, e.Category))
			}
		}
		return lines
	}

	if len(args) < 2 || (args[0] != "add" && args[0] != "remove") {
		return []string{system("Usage: world [add|remove <id...>]")}
	}
	active := args[0] == "add"
	skipped := a.Lib.SetWorldMembership(args[1:], active)

	lines := []string{system(fmt.Sprintf("World membership updated (%d ids).", len(args[1:])-len(skipped)))}
	for _, id := range skipped {
		lines = append(lines, system(fmt.Sprintf("Skipped %s: heroes and unknown ids cannot join the world.", id)))
	}
	return lines
}

func (a *App) cmdRemove(args []string) []string {
	if len(args) == 0 {
		return []string{system("Usage: remove <id...>")}
	}
	n := a.Lib.RemoveEntities(args)
	return []string{system(fmt.Sprintf("Removed %d entities from the library.", n))}
}

func (a *App) cmdLabels(args []string) []string {
	switch {
	case len(args) == 0:
		labels := a.Lib.Labels()
		if len(labels) == 0 {
			return []string{system("No labels defined.")}
		}
		sort.Strings(labels)
		return []string{"Labels: " + strings.Join(labels, ", ")}
	case args[0] == "add" && len(args) == 2:
		a.Lib.CreateLabel(args[1])
		return []string{system(fmt.Sprintf("Label %q created.", args[1]))}
	case args[0] == "rm" && len(args) == 2:
		a.Lib.DeleteLabel(args[1])
		return []string{system(fmt.Sprintf("Label %q deleted.", args[1]))}
	}
	return []string{system("Usage: labels [add|rm <name>]")}
}

// cmdForge generates a new entity from a prompt and files it in the
// library.
func (a *App) cmdForge(ctx context.Context, args []string) []string {
	if len(args) < 2 {
		return []string{system("Usage: forge npc|enemy|hero <prompt>")}
	}
	cat := types.Category(strings.ToUpper(args[0]))
	if !cat.Valid() {
		return []string{system(fmt.Sprintf("Unknown category %q (npc, enemy, hero).", args[0]))}
	}

	prompt, tags := splitTags(args[1:])
	ent, err := a.Gen.GenerateEntity(ctx, prompt, cat, tags)
	if err != nil {
		return []string{system(fmt.Sprintf("Generation failed: %v", err))}
	}
	if !a.Lib.AddEntity(*ent) {
		return []string{system(fmt.Sprintf("Entity %s already in the library.", ent.ID))}
	}
	return []string{system(fmt.Sprintf("Forged %s %q (%s). Use world add %s to place it.",
		cat, ent.Name, ent.ID, ent.ID))}
}

func (a *App) cmdExport(ctx context.Context, args []string) []string {
	if len(args) != 1 {
		return []string{system("Usage: export <file>")}
	}
	data, err := json.MarshalIndent(bundle.Export(ctx, a.Lib, a.Saves), "", "  ")
	if err != nil {
		return []string{system(fmt.Sprintf("Export failed: %v", err))}
	}
	if err := os.WriteFile(args[0], data, 0o644); err != nil {
		return []string{system(fmt.Sprintf("Export failed: %v", err))}
	}
	return []string{system(fmt.Sprintf("Exported library and saves to %s.", args[0]))}
}

func (a *App) cmdImport(ctx context.Context, args []string) []string {
	if len(args) != 1 {
		return []string{system("Usage: import <file>")}
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return []string{system(fmt.Sprintf("Import failed: %v", err))}
	}
	b, err := bundle.Parse(data)
	if err != nil {
		return []string{system(fmt.Sprintf("Import rejected: %v", err))}
	}
	res := bundle.Import(ctx, b, a.Lib, a.Saves, nil)
	return []string{system(fmt.Sprintf(
		"Imported %s: %d entities added, %d already present.",
		args[0], res.EntitiesAdded, res.EntitiesSkipped))}
}

// splitTags pulls #tag words out of a prompt.
func splitTags(words []string) (string, []string) {
	var prompt, tags []string
	for _, w := range words {
		if strings.HasPrefix(w, "#") && len(w) > 1 {
			tags = append(tags, w[1:])
			continue
		}
		prompt = append(prompt, w)
	}
	return strings.Join(prompt, " "), tags
}

func parseSlot(args []string) (int, bool) {
	if len(args) != 1 {
		return 0, false
	}
	slot, err := strconv.Atoi(args[0])
	if err != nil || slot < 1 {
		return 0, false
	}
	return slot, true
}

// render flattens a transition result into display lines; rejected intents
// come back as a bracketed system line, never a crash.
func render(evs []engine.Event, err error) []string {
	if err != nil {
		return []string{system(err.Error())}
	}
	return eventLines(evs)
}

func eventLines(evs []engine.Event) []string {
	lines := make([]string, 0, len(evs))
	for _, ev := range evs {
		lines = append(lines, ev.Text)
	}
	return lines
}

func system(text string) string {
	return "[" + text + "]"
}

func helpText() []string {
	return []string{
		"Session:",
		"  start <hero>      — Begin a new adventure",
		"  save/load <slot>  — Save or resume a slot",
		"  slots             — List save slots",
		"  autosave on|off   — Toggle autosave",
		"  quit              — Autosave and exit",
		"",
		"Adventure:",
		"  town / forest     — Travel",
		"  map               — Back to map select",
		"  rest              — Recover at the inn (town)",
		"  attack / heal     — Battle actions",
		"  talk, say <msg>, bye — Converse with an NPC",
		"  status            — Show the party line",
		"",
		"Roster:",
		"  roster [category] — List library entities",
		"  world [add|remove <id...>] — Manage the world cast",
		"  remove <id...>    — Delete entities",
		"  labels [add|rm <name>]",
		"  forge npc|enemy|hero <prompt> [#tag...]",
		"",
		"Sharing:",
		"  export <file> / import <file>",
	}
}
