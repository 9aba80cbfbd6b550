package save

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/nathoo/fableforge/fault"
	"github.com/nathoo/fableforge/store"
	"github.com/nathoo/fableforge/types"
)

func testManager(t *testing.T) (*Manager, *store.MemStore, *store.Engine) {
	t.Helper()
	mem := store.NewMemStore()
	eng := store.NewEngine(mem, nil)
	t.Cleanup(eng.Close)
	m := NewManager(eng, nil)
	m.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return m, mem, eng
}

func testPlayer() types.Player {
	return types.Player{
		Name:      "Aldric",
		Stats:     types.Stats{HP: 80, MaxHP: 100, MP: 20, MaxMP: 30, Atk: 12, Def: 6},
		Inventory: []string{"potion", "torch"},
	}
}

func testWorld() (npcs, enemies []types.Entity) {
	npcs = []types.Entity{{
		ID: "n1", Name: "Mira", Category: types.CategoryNPC,
		Stats: types.Stats{HP: 10, MaxHP: 10}, Tags: []string{"town", "merchant"},
	}}
	enemies = []types.Entity{{
		ID: "e1", Name: "Ghoul", Category: types.CategoryEnemy,
		Stats: types.Stats{HP: 14, MaxHP: 14, Atk: 7}, Tags: []string{"undead"},
	}}
	return npcs, enemies
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m, _, _ := testManager(t)
	ctx := context.Background()
	player := testPlayer()
	npcs, enemies := testWorld()

	saved, err := m.Save(ctx, 2, player, npcs, enemies, types.LocationTown)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := m.LoadSlot(ctx, 2)
	if err != nil {
		t.Fatalf("LoadSlot failed: %v", err)
	}

	if !reflect.DeepEqual(saved, loaded) {
		t.Errorf("round trip mismatch:\nsaved  %+v\nloaded %+v", saved, loaded)
	}
	if !reflect.DeepEqual(loaded.Player, player) {
		t.Errorf("player mismatch: %+v", loaded.Player)
	}
	if !reflect.DeepEqual(loaded.WorldNpcs[0].Tags, []string{"town", "merchant"}) {
		t.Errorf("nested tags mismatch: %v", loaded.WorldNpcs[0].Tags)
	}
}

func TestSaveIsDeepCopy(t *testing.T) {
	m, _, _ := testManager(t)
	ctx := context.Background()
	player := testPlayer()
	npcs, enemies := testWorld()

	snap, err := m.Save(ctx, 2, player, npcs, enemies, types.LocationForest)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Mutating live state after the save must not touch the snapshot.
	player.Stats.HP = 1
	player.Inventory[0] = "tampered"
	enemies[0].Stats.HP = 0

	if snap.Player.Stats.HP != 80 || snap.Player.Inventory[0] != "potion" {
		t.Error("snapshot player aliases live state")
	}
	if snap.WorldEnemies[0].Stats.HP != 14 {
		t.Error("snapshot world aliases live state")
	}
}

func TestLoadEmptySlot(t *testing.T) {
	m, _, _ := testManager(t)

	_, err := m.LoadSlot(context.Background(), 3)
	if !errors.Is(err, fault.ErrSlotEmpty) {
		t.Fatalf("err = %v, want ErrSlotEmpty", err)
	}
}

func TestAutosaveWritesReservedSlot(t *testing.T) {
	m, mem, eng := testManager(t)
	player := testPlayer()
	npcs, enemies := testWorld()

	m.Autosave(player, npcs, enemies, types.LocationTown)
	eng.Flush()

	loaded, err := m.LoadSlot(context.Background(), AutosaveSlot)
	if err != nil {
		t.Fatalf("autosave slot unreadable: %v", err)
	}
	if loaded.Player.Name != "Aldric" || loaded.Location != types.LocationTown {
		t.Errorf("autosave content = %+v", loaded)
	}
	if raw, _ := mem.Get(context.Background(), store.SaveSlotKey(AutosaveSlot)); raw == nil {
		t.Error("autosave record missing from backend")
	}
}

func TestAutosaveDisabled(t *testing.T) {
	m, _, _ := testManager(t)
	m.SetAutosaveEnabled(false)
	player := testPlayer()
	npcs, enemies := testWorld()

	m.Autosave(player, npcs, enemies, types.LocationTown)

	if _, err := m.LoadSlot(context.Background(), AutosaveSlot); !errors.Is(err, fault.ErrSlotEmpty) {
		t.Fatalf("err = %v, want ErrSlotEmpty when autosave is off", err)
	}
}

func TestLoadSlotLegacyWorldMonsters(t *testing.T) {
	mem := store.NewMemStore()
	ctx := context.Background()
	mem.Set(ctx, store.SaveSlotKey(2), json.RawMessage(`{
		"timestamp": "2025-01-01T00:00:00Z",
		"player": {"name":"Old","stats":{"hp":5,"maxHp":10}},
		"worldNpcs": [],
		"worldMonsters": [{"id":"m1","name":"Relic","category":"ENEMY"}],
		"location": "FOREST"
	}`))
	eng := store.NewEngine(mem, nil)
	t.Cleanup(eng.Close)
	m := NewManager(eng, nil)

	loaded, err := m.LoadSlot(ctx, 2)
	if err != nil {
		t.Fatalf("LoadSlot failed: %v", err)
	}
	if len(loaded.WorldEnemies) != 1 || loaded.WorldEnemies[0].Name != "Relic" {
		t.Errorf("worldEnemies = %v, want legacy worldMonsters adopted", loaded.WorldEnemies)
	}
}

func TestPreviews(t *testing.T) {
	m, _, _ := testManager(t)
	ctx := context.Background()
	player := testPlayer()
	npcs, enemies := testWorld()

	previews := m.Previews()
	if len(previews) != store.SlotCount {
		t.Fatalf("previews = %d, want %d", len(previews), store.SlotCount)
	}
	for _, p := range previews {
		if !p.Empty {
			t.Errorf("slot %d should start empty", p.Slot)
		}
	}

	if _, err := m.Save(ctx, 2, player, npcs, enemies, types.LocationTown); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	previews = m.Previews()
	p := previews[1]
	if p.Empty || p.PlayerName != "Aldric" || p.PlayerHP != 80 || p.Location != types.LocationTown {
		t.Errorf("preview = %+v", p)
	}
}

func TestReplaceSlots(t *testing.T) {
	m, _, eng := testManager(t)
	ctx := context.Background()
	player := testPlayer()
	npcs, enemies := testWorld()
	if _, err := m.Save(ctx, 3, player, npcs, enemies, types.LocationTown); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	snap := types.SaveSlot{Timestamp: time.Now(), Player: player, Location: types.LocationForest}
	m.ReplaceSlots(ctx, []*types.SaveSlot{nil, &snap, nil, nil})
	eng.Flush()

	if _, err := m.LoadSlot(ctx, 3); !errors.Is(err, fault.ErrSlotEmpty) {
		t.Errorf("slot 3 should be emptied by wholesale replace, got %v", err)
	}
	loaded, err := m.LoadSlot(ctx, 2)
	if err != nil {
		t.Fatalf("slot 2 unreadable: %v", err)
	}
	if loaded.Location != types.LocationForest {
		t.Errorf("slot 2 = %+v", loaded)
	}
}
