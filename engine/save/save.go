// Package save implements the save/load manager: numbered slots holding
// complete session snapshots, a preview cache for the load menu, and the
// autosave trigger fired on settled-state transitions.
package save

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nathoo/fableforge/fault"
	"github.com/nathoo/fableforge/store"
	"github.com/nathoo/fableforge/types"
)

// AutosaveSlot is the slot reserved for automatic checkpoints.
const AutosaveSlot = 1

// Preview is the slot metadata shown in the load menu.
type Preview struct {
	Slot       int
	Empty      bool
	Timestamp  time.Time
	PlayerName string
	PlayerHP   int
	PlayerMax  int
	Location   types.Location
}

// Manager owns the save slots. Safe for concurrent use.
type Manager struct {
	mu  sync.Mutex
	eng *store.Engine
	log *slog.Logger

	previews [store.SlotCount]Preview
	autosave bool

	now func() time.Time // test hook
}

// NewManager creates a save manager backed by the persistence engine.
// Autosave starts enabled until Load reads a persisted flag.
func NewManager(eng *store.Engine, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{eng: eng, log: log, autosave: true, now: time.Now}
	for i := range m.previews {
		m.previews[i] = Preview{Slot: i + 1, Empty: true}
	}
	return m
}

// Load reads the autosave flag and every slot record to warm the preview
// cache. Unreadable slots are reported but leave the manager usable.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	var flag bool
	if ok, err := m.eng.Load(ctx, store.KeyAutosaveFlag, &flag); err != nil {
		firstErr = err
	} else if ok {
		m.autosave = flag
	}

	for slot := 1; slot <= store.SlotCount; slot++ {
		var snap types.SaveSlot
		ok, err := m.eng.Load(ctx, store.SaveSlotKey(slot), &snap)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			m.previews[slot-1] = previewOf(slot, snap)
		}
	}
	return firstErr
}

// AutosaveEnabled reports whether the autosave trigger is armed.
func (m *Manager) AutosaveEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.autosave
}

// SetAutosaveEnabled flips the autosave flag and persists it.
func (m *Manager) SetAutosaveEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autosave = enabled
	m.eng.PutAsync(store.KeyAutosaveFlag, enabled)
}

// Save builds an immutable deep-copied snapshot of the live state and
// persists it under the given slot. A save is never partially written: the
// whole snapshot lands under one key or the slot is left as it was. On
// success the preview cache is updated.
func (m *Manager) Save(ctx context.Context, slot int, player types.Player,
	npcs, enemies []types.Entity, loc types.Location) (types.SaveSlot, error) {

	if slot < 1 || slot > store.SlotCount {
		return types.SaveSlot{}, fault.SlotEmpty(slot)
	}

	snap := types.SaveSlot{
		Timestamp:    m.now(),
		Player:       player.Clone(),
		WorldNpcs:    types.CloneEntities(npcs),
		WorldEnemies: types.CloneEntities(enemies),
		Location:     loc,
	}

	if err := m.eng.Put(ctx, store.SaveSlotKey(slot), snap); err != nil {
		return types.SaveSlot{}, err
	}

	m.mu.Lock()
	m.previews[slot-1] = previewOf(slot, snap)
	m.mu.Unlock()
	return snap, nil
}

// LoadSlot reads a slot and returns deep copies of its contents. Returns
// fault.ErrSlotEmpty when no record exists.
func (m *Manager) LoadSlot(ctx context.Context, slot int) (types.SaveSlot, error) {
	if slot < 1 || slot > store.SlotCount {
		return types.SaveSlot{}, fault.SlotEmpty(slot)
	}

	var snap types.SaveSlot
	ok, err := m.eng.Load(ctx, store.SaveSlotKey(slot), &snap)
	if err != nil {
		return types.SaveSlot{}, err
	}
	if !ok {
		return types.SaveSlot{}, fault.SlotEmpty(slot)
	}

	m.mu.Lock()
	m.previews[slot-1] = previewOf(slot, snap)
	m.mu.Unlock()
	return snap.Clone(), nil
}

// Autosave checkpoints the live state into the reserved slot when autosave
// is enabled. Fire-and-forget: a failed write surfaces through the engine's
// error hook and never interrupts gameplay.
func (m *Manager) Autosave(player types.Player, npcs, enemies []types.Entity, loc types.Location) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.autosave {
		return
	}

	snap := types.SaveSlot{
		Timestamp:    m.now(),
		Player:       player.Clone(),
		WorldNpcs:    types.CloneEntities(npcs),
		WorldEnemies: types.CloneEntities(enemies),
		Location:     loc,
	}
	m.eng.PutAsync(store.SaveSlotKey(AutosaveSlot), snap)
	m.previews[AutosaveSlot-1] = previewOf(AutosaveSlot, snap)
	m.log.Info("autosaved", "location", loc, "player", player.Name)
}

// Previews returns the cached slot metadata, slot 1 first.
func (m *Manager) Previews() []Preview {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Preview, store.SlotCount)
	copy(out, m.previews[:])
	return out
}

// ReplaceSlots swaps all slots wholesale (bundle import). A nil entry empties
// the slot. Slots beyond the fixed count are ignored.
func (m *Manager) ReplaceSlots(ctx context.Context, slots []*types.SaveSlot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := 0; i < store.SlotCount; i++ {
		slot := i + 1
		var snap *types.SaveSlot
		if i < len(slots) {
			snap = slots[i]
		}
		if snap == nil {
			if err := m.eng.Delete(ctx, store.SaveSlotKey(slot)); err != nil {
				m.log.Warn("clearing slot failed", "slot", slot, "error", err)
			}
			m.previews[i] = Preview{Slot: slot, Empty: true}
			continue
		}
		m.eng.PutAsync(store.SaveSlotKey(slot), *snap)
		m.previews[i] = previewOf(slot, *snap)
	}
}

// AllSlots reads every slot from storage, nil for empty slots. Used by
// bundle export.
func (m *Manager) AllSlots(ctx context.Context) []*types.SaveSlot {
	out := make([]*types.SaveSlot, store.SlotCount)
	for slot := 1; slot <= store.SlotCount; slot++ {
		snap, err := m.LoadSlot(ctx, slot)
		if err != nil {
			continue
		}
		s := snap
		out[slot-1] = &s
	}
	return out
}

func previewOf(slot int, snap types.SaveSlot) Preview {
	return Preview{
		Slot:       slot,
		Timestamp:  snap.Timestamp,
		PlayerName: snap.Player.Name,
		PlayerHP:   snap.Player.Stats.HP,
		PlayerMax:  snap.Player.Stats.MaxHP,
		Location:   snap.Location,
	}
}
