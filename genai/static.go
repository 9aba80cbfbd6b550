package genai

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/nathoo/fableforge/types"
)

// Static is an offline Generator producing deterministic template entities
// and canned dialogue. Used when no API key is configured, and in tests.
type Static struct{}

var staticStats = map[types.Category]types.Stats{
	types.CategoryNPC:   {HP: 20, MaxHP: 20, MP: 10, MaxMP: 10, Atk: 3, Def: 2},
	types.CategoryEnemy: {HP: 30, MaxHP: 30, MP: 5, MaxMP: 5, Atk: 8, Def: 3},
	types.CategoryHero:  {HP: 100, MaxHP: 100, MP: 30, MaxMP: 30, Atk: 12, Def: 6},
}

// GenerateEntity returns a template entity named after the prompt.
func (Static) GenerateEntity(_ context.Context, prompt string, cat types.Category, tags []string) (*types.Entity, error) {
	name := strings.TrimSpace(prompt)
	if name == "" {
		name = string(cat)
	}
	if runes := []rune(name); len(runes) > 24 {
		name = string(runes[:24])
	}
	first, width := utf8.DecodeRuneInString(name)
	name = string(unicode.ToUpper(first)) + name[width:]
	e := &types.Entity{
		ID:             uuid.NewString(),
		Name:           name,
		Description:    fmt.Sprintf("A %s conjured without the generation service.", strings.ToLower(string(cat))),
		Category:       cat,
		Stats:          staticStats[cat],
		Tags:           append([]string(nil), tags...),
		OriginalPrompt: prompt,
	}
	if cat == types.CategoryNPC {
		e.DialoguePersona = "Speaks plainly and briefly."
	}
	return e, nil
}

// GenerateDialogueReply returns a canned line.
func (Static) GenerateDialogueReply(_ context.Context, _ string, _ []types.DialogueTurn, _ string) (string, error) {
	return "Hm. Strange times in these parts.", nil
}
