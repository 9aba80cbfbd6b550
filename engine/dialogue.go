package engine

import (
	"github.com/nathoo/fableforge/fault"
	"github.com/nathoo/fableforge/types"
)

// SpeakerPlayer is the speaker tag for the player's dialogue lines; NPC
// lines carry the NPC's name instead.
const SpeakerPlayer = "player"

// SilenceMarker stands in for an NPC reply when generation fails. The
// conversation stays open; the player can simply try again.
const SilenceMarker = "..."

// DialogueCall carries everything the caller needs to generate the NPC's
// reply outside the engine lock: the persona, a window of prior turns, and
// the new player message. The result comes back via DeliverReply.
type DialogueCall struct {
	Token   Token
	Persona string
	NPCName string
	History []types.DialogueTurn
	Message string
}

// StartDialogue opens a conversation with the NPC drawn for this town
// visit. History always starts empty; re-approaching the same NPC starts
// over.
func (e *Engine) StartDialogue() ([]Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.player == nil || e.place != PlaceTown || e.phase != PhaseIdle ||
		e.npc == nil || e.pending != pendingNone {
		return nil, fault.InvalidTransition("start_dialogue", e.stateString())
	}

	e.phase = PhaseDialogue
	e.dialogue = nil
	return []Event{event(EventDialogue, "You approach %s.", e.npc.Name)}, nil
}

// EndDialogue leaves the conversation and returns the town to idle. An
// in-flight reply is abandoned; the epoch bump makes its delivery a no-op.
func (e *Engine) EndDialogue() ([]Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.player == nil || e.phase != PhaseDialogue {
		return nil, fault.InvalidTransition("end_dialogue", e.stateString())
	}

	name := e.npc.Name
	e.dialogue = nil
	e.phase = PhaseIdle
	e.pending = pendingNone
	e.epoch++
	return []Event{event(EventInfo, "You take your leave of %s.", name)}, nil
}

// SendDialogueMessage appends the player's line and arms a pending reply.
// Exactly one reply may be outstanding; further sends are rejected until
// the caller delivers the result. The returned call's history is a copy of
// the most recent turns, capped at the policy's dialogue window, excluding
// the message itself.
func (e *Engine) SendDialogueMessage(text string) (*DialogueCall, []Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.player == nil || e.phase != PhaseDialogue || e.npc == nil {
		return nil, nil, fault.InvalidTransition("send_message", e.stateString())
	}
	if e.pending != pendingNone {
		return nil, nil, fault.InvalidTransition("send_message", e.stateString())
	}

	window := e.dialogue
	if n := e.policy.DialogueWindow; n > 0 && len(window) > n {
		window = window[len(window)-n:]
	}
	history := make([]types.DialogueTurn, len(window))
	copy(history, window)

	e.dialogue = append(e.dialogue, types.DialogueTurn{Speaker: SpeakerPlayer, Text: text})
	e.pending = pendingReply

	call := &DialogueCall{
		Token:   Token{epoch: e.epoch, kind: pendingReply},
		Persona: e.npc.DialoguePersona,
		NPCName: e.npc.Name,
		History: history,
		Message: text,
	}
	evs := []Event{event(EventDialogue, "You: %s", text)}
	return call, evs, nil
}

// DeliverReply hands a generated reply (or a generation failure) back to
// the conversation. Stale tokens are discarded: the player has moved on and
// the late reply must not leak into whatever they are doing now. On failure
// the NPC falls silent rather than breaking the conversation.
func (e *Engine) DeliverReply(tok Token, reply string, genErr error) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	if tok.kind != pendingReply || tok.epoch != e.epoch || e.pending != pendingReply {
		e.log.Debug("stale dialogue reply discarded", "epoch", tok.epoch)
		return nil
	}
	e.pending = pendingNone
	if e.phase != PhaseDialogue || e.npc == nil {
		return nil
	}

	if genErr != nil {
		e.log.Warn("dialogue generation failed", "npc", e.npc.Name, "error", genErr)
		reply = SilenceMarker
	}

	e.dialogue = append(e.dialogue, types.DialogueTurn{Speaker: e.npc.Name, Text: reply})
	return []Event{event(EventDialogue, "%s: %s", e.npc.Name, reply)}
}

// Dialogue returns a copy of the current conversation history.
func (e *Engine) Dialogue() []types.DialogueTurn {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]types.DialogueTurn, len(e.dialogue))
	copy(out, e.dialogue)
	return out
}
