package loader

import (
	"fmt"
	"strings"

	"github.com/nathoo/fableforge/types"
)

// validate checks a compiled pack for the mistakes pack authors actually
// make: duplicate ids, nameless entities, dead stat blocks, heroes flagged
// into the world. All problems are reported together.
func validate(pack *Pack) error {
	var problems []string

	seen := make(map[string]bool, len(pack.Entities))
	byID := make(map[string]types.Entity, len(pack.Entities))
	for _, ent := range pack.Entities {
		if seen[ent.ID] {
			problems = append(problems, fmt.Sprintf("duplicate entity id %q", ent.ID))
			continue
		}
		seen[ent.ID] = true
		byID[ent.ID] = ent

		if ent.Name == "" {
			problems = append(problems, fmt.Sprintf("entity %q has no name", ent.ID))
		}
		if ent.Stats.MaxHP <= 0 {
			problems = append(problems, fmt.Sprintf("entity %q has no hit points", ent.ID))
		}
		if ent.Category == types.CategoryNPC && ent.DialoguePersona == "" {
			problems = append(problems, fmt.Sprintf("npc %q has no persona", ent.ID))
		}
	}

	for _, id := range pack.WorldIDs {
		ent, ok := byID[id]
		if !ok {
			continue
		}
		if ent.Category == types.CategoryHero {
			problems = append(problems, fmt.Sprintf("hero %q cannot be world-active", id))
		}
	}

	if p := pack.Policy; p != nil {
		if p.ReviveDivisor < 1 {
			problems = append(problems, "balance: revive_divisor must be at least 1")
		}
		if p.HealMPCost < 0 || p.HealAmount < 0 || p.VictoryHeal < 0 {
			problems = append(problems, "balance: heal values must not be negative")
		}
		if p.PlayerBonusRange < 0 || p.EnemyBonusRange < 0 {
			problems = append(problems, "balance: bonus ranges must not be negative")
		}
		if p.DialogueWindow < 0 {
			problems = append(problems, "balance: dialogue_window must not be negative")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid pack:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}
