// Package genai wraps the content generation service: entity generation from
// a text prompt and in-character dialogue replies. The HTTP client speaks the
// OpenRouter chat-completions API behind a circuit breaker and a rate
// limiter; every failure surfaces as fault.ErrGeneration with nothing
// partially committed.
package genai

import (
	"context"

	"github.com/nathoo/fableforge/types"
)

// Generator is the content-service contract consumed by the engine and the
// workshop UI.
type Generator interface {
	// GenerateEntity returns a fully populated entity for the prompt. The
	// returned entity carries a freshly minted unique id and is not yet part
	// of any library.
	GenerateEntity(ctx context.Context, prompt string, cat types.Category, tags []string) (*types.Entity, error)

	// GenerateDialogueReply produces the NPC's next line given its persona
	// and the prior turns. Callers substitute a silence fallback on error.
	GenerateDialogueReply(ctx context.Context, persona string, history []types.DialogueTurn, message string) (string, error)
}
