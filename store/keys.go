package store

import "fmt"

// Logical record keys. One independently readable/writable record per key.
const (
	KeyLibraryNpcs    = "library-npcs"
	KeyLibraryEnemies = "library-enemies"
	KeyLibraryHeroes  = "library-heroes"
	KeyLabels         = "labels"
	KeyActiveWorldIDs = "active-world-ids"
	KeyAutosaveFlag   = "autosave-flag"
)

// SlotCount is the number of numbered save slots. Slot 1 is reserved for
// autosave.
const SlotCount = 4

// SaveSlotKey returns the record key for a numbered save slot (1-based).
func SaveSlotKey(slot int) string {
	return fmt.Sprintf("save-slot-%d", slot)
}

// legacyKeys maps a current key to retired names for the same logical
// record, tried in order when the current key is absent. The "enemies"
// category was historically named "monsters".
var legacyKeys = map[string][]string{
	KeyLibraryEnemies: {"library-monsters"},
}

// LegacyKeys returns the retired key names for a current key, oldest last.
func LegacyKeys(key string) []string {
	return legacyKeys[key]
}
