// Package fault defines the error taxonomy shared across the engine.
// Every risky operation is converted to one of these kinds at the boundary
// of the component that owns it; raw I/O and parse errors never reach the
// orchestration layer.
package fault

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Match with errors.Is.
var (
	// ErrPersistence marks a storage read/write failure. Non-fatal: the
	// application degrades to in-memory-only operation.
	ErrPersistence = errors.New("persistence failure")

	// ErrGeneration marks a content-service failure or unparseable reply.
	// The operation is aborted with no partial entity committed.
	ErrGeneration = errors.New("generation failure")

	// ErrSlotEmpty is returned when loading a save slot with no record.
	ErrSlotEmpty = errors.New("save slot is empty")

	// ErrInvalidTransition marks an intent the current encounter state does
	// not accept. Ignored and logged, never fatal to the session.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrImportMalformed marks an import payload that fails to parse or has
	// no recognizable fields. The whole import is rejected atomically.
	ErrImportMalformed = errors.New("import payload malformed")
)

// Persistence wraps a low-level storage error for the given key.
func Persistence(key string, err error) error {
	return fmt.Errorf("%w: key %q: %v", ErrPersistence, key, err)
}

// Generation wraps a content-service error.
func Generation(err error) error {
	return fmt.Errorf("%w: %v", ErrGeneration, err)
}

// SlotEmpty reports an empty save slot.
func SlotEmpty(slot int) error {
	return fmt.Errorf("%w: slot %d", ErrSlotEmpty, slot)
}

// InvalidTransition reports an intent rejected in the current state.
func InvalidTransition(intent, state string) error {
	return fmt.Errorf("%w: %s not accepted in %s", ErrInvalidTransition, intent, state)
}

// ImportMalformed wraps an import parse failure.
func ImportMalformed(err error) error {
	return fmt.Errorf("%w: %v", ErrImportMalformed, err)
}
