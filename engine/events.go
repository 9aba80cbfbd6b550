package engine

import "fmt"

// EventKind classifies a log entry emitted by a state transition.
type EventKind string

const (
	EventInfo        EventKind = "info"
	EventArrive      EventKind = "arrive"
	EventBattleStart EventKind = "battle_start"
	EventDamage      EventKind = "damage"
	EventVictory     EventKind = "victory"
	EventDefeat      EventKind = "defeat"
	EventHeal        EventKind = "heal"
	EventDialogue    EventKind = "dialogue"
	EventWarning     EventKind = "warning"
)

// Event is one entry of the adventure log, consumed by the presentation
// layer. Transitions return the events they produced.
type Event struct {
	Kind EventKind
	Text string
}

func event(kind EventKind, format string, args ...any) Event {
	return Event{Kind: kind, Text: fmt.Sprintf(format, args...)}
}
