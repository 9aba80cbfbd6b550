// Package engine implements the encounter state machine: travel between
// settled places, NPC dialogue, and turn-based battle. The engine is the
// session context: it owns the live player and world population and is the
// single serialization point for state transitions.
//
// Asynchronous work (dialogue replies, the enemy's "thinking" pause) is
// split in two: a transition returns a Token describing the pending
// operation, the caller performs the slow part, then hands the result back.
// Tokens are stamped with the epoch they were issued in; anything delivered
// after the player navigated away is silently discarded.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nathoo/fableforge/engine/save"
	"github.com/nathoo/fableforge/fault"
	"github.com/nathoo/fableforge/library"
	"github.com/nathoo/fableforge/types"
)

// Place is where the player currently is.
type Place string

const (
	PlaceMapSelect Place = "MAP_SELECT"
	PlaceTown      Place = "TOWN"
	PlaceForest    Place = "FOREST"
)

// Phase is the encounter mode within a place.
type Phase string

const (
	PhaseIdle     Phase = "IDLE"
	PhaseDialogue Phase = "DIALOGUE"
	PhaseBattle   Phase = "BATTLE"
)

// Turn marks whose battle turn it is.
type Turn string

const (
	TurnPlayer Turn = "PLAYER"
	TurnEnemy  Turn = "ENEMY"
)

type pendingKind int

const (
	pendingNone pendingKind = iota
	pendingReply
	pendingEnemy
)

// Token identifies a pending asynchronous operation and the epoch it was
// issued against.
type Token struct {
	epoch uint64
	kind  pendingKind
}

// Valid reports whether the token refers to a real pending operation.
func (t Token) Valid() bool { return t.kind != pendingNone }

// Engine is the encounter state machine. All methods are safe for
// concurrent use; transitions are fully serialized.
type Engine struct {
	mu     sync.Mutex
	lib    *library.Manager
	saves  *save.Manager
	rng    *RNG
	log    *slog.Logger
	policy Policy

	player       *types.Player
	worldNpcs    []types.Entity
	worldEnemies []types.Entity

	place    Place
	phase    Phase
	location types.Location // last settled place, recorded in saves
	turn     Turn
	npc      *types.Entity
	enemy    *types.Entity

	dialogue []types.DialogueTurn

	epoch   uint64
	pending pendingKind
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy overrides the balance constants.
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithSeed makes the RNG deterministic (tests, replays).
func WithSeed(seed int64) Option {
	return func(e *Engine) { e.rng = NewRNG(seed) }
}

// New creates an engine over the library and save manager. No session is
// active until StartGame or LoadGame.
func New(lib *library.Manager, saves *save.Manager, log *slog.Logger, opts ...Option) *Engine {
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{
		lib:    lib,
		saves:  saves,
		log:    log,
		policy: DefaultPolicy(),
		rng:    NewRNG(time.Now().UnixNano()),
		place:  PlaceMapSelect,
		phase:  PhaseIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the engine's balance constants.
func (e *Engine) Policy() Policy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.policy
}

// stateString renders the current state for error messages and logs.
func (e *Engine) stateString() string {
	if e.player == nil {
		return "NO_SESSION"
	}
	s := fmt.Sprintf("%s/%s", e.place, e.phase)
	if e.pending != pendingNone {
		s += "/PENDING"
	}
	return s
}

// clearEncounter drops the current encounter and dialogue context and bumps
// the epoch, invalidating every outstanding token.
func (e *Engine) clearEncounter() {
	e.npc = nil
	e.enemy = nil
	e.dialogue = nil
	e.phase = PhaseIdle
	e.turn = ""
	e.pending = pendingNone
	e.epoch++
}

// StartGame begins a fresh session from a HERO entity. The active world
// configuration is copied in as the session population; the previous
// session, if any, is discarded unsaved.
func (e *Engine) StartGame(heroID string) ([]Event, error) {
	hero, ok := e.lib.Entity(heroID)
	if !ok || hero.Category != types.CategoryHero {
		return nil, fault.InvalidTransition("start_game", "hero "+heroID+" not in library")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	player := types.NewPlayerFromHero(hero)
	e.player = &player
	e.worldNpcs = e.lib.ActiveByCategory(types.CategoryNPC)
	e.worldEnemies = e.lib.ActiveByCategory(types.CategoryEnemy)
	e.place = PlaceMapSelect
	e.location = types.LocationTown
	e.clearEncounter()

	e.log.Info("session started", "hero", hero.Name,
		"npcs", len(e.worldNpcs), "enemies", len(e.worldEnemies))
	return []Event{
		event(EventInfo, "%s sets out on a new adventure.", player.Name),
	}, nil
}

// LoadGame resumes a session from a save slot.
func (e *Engine) LoadGame(ctx context.Context, slot int) ([]Event, error) {
	snap, err := e.saves.LoadSlot(ctx, slot)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	player := snap.Player
	e.player = &player
	e.worldNpcs = snap.WorldNpcs
	e.worldEnemies = snap.WorldEnemies
	e.location = snap.Location
	e.place = PlaceMapSelect
	e.clearEncounter()

	e.log.Info("session loaded", "slot", slot, "player", player.Name)
	return []Event{
		event(EventInfo, "Loaded slot %d: %s at %s.", slot, player.Name, snap.Location),
	}, nil
}

// SaveGame writes the live session into a slot. Fails with a persistence
// error the caller shows as a banner; in-memory state is untouched either
// way.
func (e *Engine) SaveGame(ctx context.Context, slot int) error {
	e.mu.Lock()
	if e.player == nil {
		e.mu.Unlock()
		return fault.InvalidTransition("save", "NO_SESSION")
	}
	player := e.player.Clone()
	npcs := types.CloneEntities(e.worldNpcs)
	enemies := types.CloneEntities(e.worldEnemies)
	loc := e.location
	e.mu.Unlock()

	_, err := e.saves.Save(ctx, slot, player, npcs, enemies, loc)
	return err
}

// autosave checkpoints the live state into the reserved slot. Caller holds
// the lock. Non-fatal by construction.
func (e *Engine) autosave() {
	if e.player == nil {
		return
	}
	e.saves.Autosave(e.player.Clone(), e.worldNpcs, e.worldEnemies, e.location)
}

// Travel moves the player to a settled place from any in-world state,
// drawing a fresh encounter from the active population. An empty population
// leaves the place idle with an informational entry rather than failing.
// Arrival is a settled transition and triggers autosave.
func (e *Engine) Travel(dest types.Location) ([]Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.player == nil {
		return nil, fault.InvalidTransition("travel", e.stateString())
	}
	if e.pending == pendingEnemy {
		return nil, fault.InvalidTransition("travel", e.stateString())
	}

	e.clearEncounter()

	var evs []Event
	switch dest {
	case types.LocationTown:
		e.place = PlaceTown
		e.location = types.LocationTown
		evs = append(evs, event(EventArrive, "You arrive in town."))
		if len(e.worldNpcs) == 0 {
			e.log.Info("population draw empty", "place", e.place)
			evs = append(evs, event(EventInfo, "The streets are empty today."))
			break
		}
		drawn := e.worldNpcs[e.rng.Pick(len(e.worldNpcs))].Clone()
		e.npc = &drawn
		evs = append(evs, event(EventInfo, "%s is here.", drawn.Name))

	case types.LocationForest:
		e.place = PlaceForest
		e.location = types.LocationForest
		evs = append(evs, event(EventArrive, "You venture into the forest."))
		if len(e.worldEnemies) == 0 {
			e.log.Info("population draw empty", "place", e.place)
			evs = append(evs, event(EventInfo, "The forest is still. Nothing stirs."))
			break
		}
		drawn := e.worldEnemies[e.rng.Pick(len(e.worldEnemies))].Clone()
		drawn.Stats.HP = drawn.Stats.MaxHP
		e.enemy = &drawn
		e.phase = PhaseBattle
		e.turn = TurnPlayer
		evs = append(evs, event(EventBattleStart, "A wild %s appears!", drawn.Name))

	default:
		return nil, fault.InvalidTransition("travel", "unknown destination "+string(dest))
	}

	e.autosave()
	return evs, nil
}

// RestAtTown fully restores HP and MP. Valid only in TOWN while idle.
func (e *Engine) RestAtTown() ([]Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.player == nil || e.place != PlaceTown || e.phase != PhaseIdle || e.pending != pendingNone {
		return nil, fault.InvalidTransition("rest", e.stateString())
	}

	e.player.Stats.HP = e.player.Stats.MaxHP
	e.player.Stats.MP = e.player.Stats.MaxMP
	return []Event{event(EventHeal, "You rest at the inn. HP and MP fully restored.")}, nil
}

// ReturnToMap clears the current encounter and dialogue context and returns
// to map select without touching player or world stats. Valid from any
// state; an in-flight dialogue reply is abandoned and will be discarded on
// arrival.
func (e *Engine) ReturnToMap() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.player == nil {
		return nil
	}
	e.clearEncounter()
	e.place = PlaceMapSelect
	return []Event{event(EventInfo, "You return to the world map.")}
}

// Exit ends the session: one last autosave (a settled transition), then the
// live player is discarded.
func (e *Engine) Exit() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.player == nil {
		return nil
	}
	e.autosave()
	e.clearEncounter()
	e.player = nil
	e.place = PlaceMapSelect
	return []Event{event(EventInfo, "You leave the adventure for now.")}
}

// Accessors. All return copies; the engine's state never escapes by
// reference.

// Player returns the live player, false when no session is active.
func (e *Engine) Player() (types.Player, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.player == nil {
		return types.Player{}, false
	}
	return e.player.Clone(), true
}

// Place returns the current place.
func (e *Engine) Place() Place {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.place
}

// Phase returns the current encounter phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// BattleTurn returns whose turn it is; empty outside battle.
func (e *Engine) BattleTurn() Turn {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.turn
}

// CurrentNPC returns the NPC drawn for this town visit.
func (e *Engine) CurrentNPC() (types.Entity, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.npc == nil {
		return types.Entity{}, false
	}
	return e.npc.Clone(), true
}

// Enemy returns the live battle enemy.
func (e *Engine) Enemy() (types.Entity, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.enemy == nil {
		return types.Entity{}, false
	}
	return e.enemy.Clone(), true
}

// Busy reports whether an asynchronous operation is pending; conflicting
// intents are rejected until it resolves.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending != pendingNone
}
