// Package bundle implements the versionless import/export payload: the whole
// library, world configuration, labels, and save slots in one JSON object,
// with the legacy field aliases still accepted on the way in.
package bundle

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/nathoo/fableforge/engine/save"
	"github.com/nathoo/fableforge/fault"
	"github.com/nathoo/fableforge/library"
	"github.com/nathoo/fableforge/store"
	"github.com/nathoo/fableforge/types"
)

// Bundle is the import/export wire format. Every field is optional on
// import; absent collections leave the current state alone.
type Bundle struct {
	Labels          []string          `json:"labels,omitempty"`
	LibraryNpcs     []types.Entity    `json:"libraryNpcs,omitempty"`
	LibraryEnemies  []types.Entity    `json:"libraryEnemies,omitempty"`
	LibraryHeroes   []types.Entity    `json:"libraryHeroes,omitempty"`
	ActiveEntityIDs []string          `json:"activeEntityIds,omitempty"`
	SaveSlots       []*types.SaveSlot `json:"saveSlots,omitempty"`
	AutoSave        *bool             `json:"autoSave,omitempty"`
}

// recognizedFields are the top-level keys that make a payload importable,
// including the legacy alias for the enemies collection.
var recognizedFields = []string{
	"labels", "libraryNpcs", "libraryEnemies", "libraryMonsters",
	"libraryHeroes", "activeEntityIds", "saveSlots", "autoSave",
}

var errNoFields = errors.New("no recognizable fields")

// Result summarizes what an import changed.
type Result struct {
	EntitiesAdded   int
	EntitiesSkipped int
	LabelsReplaced  bool
	WorldReplaced   bool
	SlotsReplaced   bool
}

// Parse validates and decodes a bundle payload, applying the field-rename
// normalization (libraryMonsters, per-slot worldMonsters). A payload that
// fails to parse or carries none of the recognized fields is rejected with
// fault.ErrImportMalformed.
func Parse(raw []byte) (*Bundle, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fault.ImportMalformed(err)
	}

	normalized := store.NormalizeRecord(raw)
	probe = nil
	if err := json.Unmarshal(normalized, &probe); err != nil {
		return nil, fault.ImportMalformed(err)
	}
	known := false
	for _, f := range recognizedFields {
		if _, ok := probe[f]; ok {
			known = true
			break
		}
	}
	if !known {
		return nil, fault.ImportMalformed(errNoFields)
	}

	var b Bundle
	if err := json.Unmarshal(normalized, &b); err != nil {
		return nil, fault.ImportMalformed(err)
	}

	// Entities inherit the partition they arrive in.
	stamp := func(list []types.Entity, cat types.Category) {
		for i := range list {
			list[i].Category = cat
		}
	}
	stamp(b.LibraryNpcs, types.CategoryNPC)
	stamp(b.LibraryEnemies, types.CategoryEnemy)
	stamp(b.LibraryHeroes, types.CategoryHero)
	return &b, nil
}

// Import merges a parsed payload: entities merge by id (existing ids are
// kept, not overwritten), while world config, labels, and save slots are
// replaced wholesale when present. The decision to apply anything at all was
// made by Parse; from here the import cannot half-fail.
func Import(ctx context.Context, b *Bundle, lib *library.Manager, saves *save.Manager, log *slog.Logger) Result {
	if log == nil {
		log = slog.Default()
	}
	var res Result

	incoming := 0
	for _, list := range [][]types.Entity{b.LibraryNpcs, b.LibraryEnemies, b.LibraryHeroes} {
		incoming += len(list)
		res.EntitiesAdded += lib.ImportEntities(list)
	}
	res.EntitiesSkipped = incoming - res.EntitiesAdded

	if b.ActiveEntityIDs != nil {
		lib.ReplaceWorldConfig(b.ActiveEntityIDs)
		res.WorldReplaced = true
	}
	if b.Labels != nil {
		lib.ReplaceLabels(b.Labels)
		res.LabelsReplaced = true
	}
	if b.SaveSlots != nil {
		saves.ReplaceSlots(ctx, b.SaveSlots)
		res.SlotsReplaced = true
	}
	if b.AutoSave != nil {
		saves.SetAutosaveEnabled(*b.AutoSave)
	}

	log.Info("bundle imported",
		"added", res.EntitiesAdded, "skipped", res.EntitiesSkipped,
		"world", res.WorldReplaced, "labels", res.LabelsReplaced, "slots", res.SlotsReplaced)
	return res
}

// Export assembles the full current state into a bundle, reading every save
// slot from storage.
func Export(ctx context.Context, lib *library.Manager, saves *save.Manager) *Bundle {
	auto := saves.AutosaveEnabled()
	return &Bundle{
		Labels:          lib.Labels(),
		LibraryNpcs:     lib.Entities(types.CategoryNPC),
		LibraryEnemies:  lib.Entities(types.CategoryEnemy),
		LibraryHeroes:   lib.Entities(types.CategoryHero),
		ActiveEntityIDs: lib.ActiveIDs(),
		SaveSlots:       saves.AllSlots(ctx),
		AutoSave:        &auto,
	}
}
