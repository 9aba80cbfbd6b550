// Package types defines the shared data structures for the FableForge engine:
// entity templates, player state, and save snapshots. Only data shapes and
// their copy/clamp helpers live here, no gameplay logic.
package types

import "time"

// Category partitions library entities by role.
type Category string

const (
	CategoryNPC   Category = "NPC"
	CategoryEnemy Category = "ENEMY"
	CategoryHero  Category = "HERO"
)

// Valid reports whether c is one of the three known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryNPC, CategoryEnemy, CategoryHero:
		return true
	}
	return false
}

// Stats is the combat stat block shared by entities and the player.
// HP/MP never exceed their maxima at any externally observable point;
// mutation sites call Clamp before publishing.
type Stats struct {
	HP    int `json:"hp"`
	MaxHP int `json:"maxHp"`
	MP    int `json:"mp"`
	MaxMP int `json:"maxMp"`
	Atk   int `json:"atk"`
	Def   int `json:"def"`
}

// Clamp forces HP into [0, MaxHP] and MP into [0, MaxMP].
func (s *Stats) Clamp() {
	if s.HP > s.MaxHP {
		s.HP = s.MaxHP
	}
	if s.HP < 0 {
		s.HP = 0
	}
	if s.MP > s.MaxMP {
		s.MP = s.MaxMP
	}
	if s.MP < 0 {
		s.MP = 0
	}
}

// Entity is a generated character template. Immutable once created; the
// library owns the original and all gameplay works on independent copies.
type Entity struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Category        Category `json:"category"`
	PortraitRef     string   `json:"portraitRef,omitempty"`
	Stats           Stats    `json:"stats"`
	DialoguePersona string   `json:"dialoguePersona,omitempty"`
	Tags            []string `json:"tags"`
	OriginalPrompt  string   `json:"originalPrompt,omitempty"`
}

// Clone returns an independent value copy; mutating the copy never touches
// the library original.
func (e Entity) Clone() Entity {
	out := e
	out.Tags = append([]string(nil), e.Tags...)
	return out
}

// CloneEntities deep-copies a slice of entities.
func CloneEntities(in []Entity) []Entity {
	if in == nil {
		return nil
	}
	out := make([]Entity, len(in))
	for i, e := range in {
		out[i] = e.Clone()
	}
	return out
}

// Player is the live character driven through a session. Created from a
// HERO entity and mutated continuously during play.
type Player struct {
	Name        string   `json:"name"`
	Stats       Stats    `json:"stats"`
	Inventory   []string `json:"inventory"`
	PortraitRef string   `json:"portraitRef,omitempty"`
}

// Clone returns an independent value copy of the player.
func (p Player) Clone() Player {
	out := p
	out.Inventory = append([]string(nil), p.Inventory...)
	return out
}

// NewPlayerFromHero seeds a player from a HERO entity, copying stats and
// portrait. The hero template itself is left untouched.
func NewPlayerFromHero(hero Entity) Player {
	return Player{
		Name:        hero.Name,
		Stats:       hero.Stats,
		Inventory:   []string{},
		PortraitRef: hero.PortraitRef,
	}
}

// Location is a settled place in the world.
type Location string

const (
	LocationTown   Location = "TOWN"
	LocationForest Location = "FOREST"
)

// SaveSlot is a complete point-in-time snapshot of a playable session.
// It is built from deep copies and never aliases live state.
type SaveSlot struct {
	Timestamp    time.Time `json:"timestamp"`
	Player       Player    `json:"player"`
	WorldNpcs    []Entity  `json:"worldNpcs"`
	WorldEnemies []Entity  `json:"worldEnemies"`
	Location     Location  `json:"location"`
}

// Clone deep-copies the snapshot.
func (s SaveSlot) Clone() SaveSlot {
	out := s
	out.Player = s.Player.Clone()
	out.WorldNpcs = CloneEntities(s.WorldNpcs)
	out.WorldEnemies = CloneEntities(s.WorldEnemies)
	return out
}

// DialogueTurn is one line of an in-character conversation.
type DialogueTurn struct {
	Speaker string `json:"speaker"` // "player" or the NPC's name
	Text    string `json:"text"`
}
