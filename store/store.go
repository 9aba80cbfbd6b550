// Package store implements the persistence engine: a string-keyed backend
// contract, file/sqlite/memory implementations, and the legacy-key migration
// that keeps historical records loadable.
//
// All writes funnel through a single serial queue, so a later write to a key
// can never be overtaken by an earlier, slower one.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/nathoo/fableforge/fault"
)

var errClosed = errors.New("engine closed")

// Store is the key-value backend contract. Get returns (nil, nil) when the
// key is absent. Values are JSON-serializable trees.
type Store interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
	Delete(ctx context.Context, key string) error
}

// writeOp is one queued mutation. done is closed after the backend call,
// with err holding the outcome, when a caller is waiting.
type writeOp struct {
	key     string
	value   json.RawMessage // nil means delete
	barrier bool            // no-op marker used by Flush
	done    chan struct{}
	err     error
	fireFn  func(error) // fire-and-forget error hook, may be nil
}

// Engine wraps a Store with record normalization, legacy-key migration, and
// write ordering. Set failures are surfaced through OnError and never crash
// the caller; the application continues with in-memory state (degraded
// persistence).
type Engine struct {
	store Store
	log   *slog.Logger

	// OnError receives non-fatal persistence errors (for the UI banner).
	// Set before first use; may be nil.
	OnError func(error)

	mu     sync.Mutex
	queue  chan *writeOp
	closed bool
	wg     sync.WaitGroup
}

// NewEngine creates a persistence engine over the given backend and starts
// its serial writer. Close must be called to drain pending writes.
func NewEngine(s Store, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{
		store: s,
		log:   log,
		queue: make(chan *writeOp, 64),
	}
	e.wg.Add(1)
	go e.writer()
	return e
}

func (e *Engine) writer() {
	defer e.wg.Done()
	for op := range e.queue {
		if op.barrier {
			close(op.done)
			continue
		}
		var err error
		if op.value == nil {
			err = e.store.Delete(context.Background(), op.key)
		} else {
			err = e.store.Set(context.Background(), op.key, op.value)
		}
		if err != nil {
			err = fault.Persistence(op.key, err)
			e.log.Warn("persistence write failed", "key", op.key, "error", err)
			if e.OnError != nil {
				e.OnError(err)
			}
		}
		if op.fireFn != nil {
			op.fireFn(err)
		}
		if op.done != nil {
			op.err = err
			close(op.done)
		}
	}
}

// Flush blocks until every previously queued write has completed.
func (e *Engine) Flush() {
	op := &writeOp{barrier: true, done: make(chan struct{})}
	e.enqueue(op)
	<-op.done
}

// Close drains the write queue and stops the writer.
func (e *Engine) Close() {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()
	e.wg.Wait()
}

func (e *Engine) enqueue(op *writeOp) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		if op.done != nil {
			op.err = fault.Persistence(op.key, errClosed)
			close(op.done)
		}
		return
	}
	e.queue <- op
}

// Put marshals v and writes it under key, waiting for the backend call to
// complete. The returned error is always a fault.ErrPersistence wrap.
func (e *Engine) Put(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fault.Persistence(key, err)
	}
	op := &writeOp{key: key, value: raw, done: make(chan struct{})}
	e.enqueue(op)
	select {
	case <-op.done:
		return op.err
	case <-ctx.Done():
		return fault.Persistence(key, ctx.Err())
	}
}

// PutAsync writes fire-and-forget. Ordering with respect to other writes to
// the same key is preserved by the serial queue. Failures go to OnError.
func (e *Engine) PutAsync(key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		err = fault.Persistence(key, err)
		e.log.Warn("persistence marshal failed", "key", key, "error", err)
		if e.OnError != nil {
			e.OnError(err)
		}
		return
	}
	e.enqueue(&writeOp{key: key, value: raw})
}

// Delete removes a key, waiting for completion.
func (e *Engine) Delete(ctx context.Context, key string) error {
	op := &writeOp{key: key, done: make(chan struct{})}
	e.enqueue(op)
	select {
	case <-op.done:
		return op.err
	case <-ctx.Done():
		return fault.Persistence(key, ctx.Err())
	}
}

// Load reads the record for key into v, applying the field-rename pass.
// When the current key is absent it tries known legacy key names; a
// legacy-only hit is adopted and immediately re-persisted under the current
// key. Legacy keys are never deleted, so an aborted migration is safely
// retryable, and the whole pass is idempotent (legacy keys are only read
// when the current key is absent).
//
// Returns false with nil error when no record exists under any name.
func (e *Engine) Load(ctx context.Context, key string, v any) (bool, error) {
	raw, err := e.store.Get(ctx, key)
	if err != nil {
		return false, fault.Persistence(key, err)
	}

	if raw == nil {
		for _, legacy := range LegacyKeys(key) {
			raw, err = e.store.Get(ctx, legacy)
			if err != nil {
				return false, fault.Persistence(legacy, err)
			}
			if raw == nil {
				continue
			}
			raw = NormalizeRecord(raw)
			// Adopt and re-home under the current key.
			e.log.Info("migrated legacy record", "from", legacy, "to", key)
			if err := e.putRaw(ctx, key, raw); err != nil {
				// Non-fatal: the legacy record is still there for next run.
				e.log.Warn("re-persist after migration failed", "key", key, "error", err)
			}
			break
		}
		if raw == nil {
			return false, nil
		}
	} else {
		raw = NormalizeRecord(raw)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return false, fault.Persistence(key, err)
	}
	return true, nil
}

func (e *Engine) putRaw(ctx context.Context, key string, raw json.RawMessage) error {
	op := &writeOp{key: key, value: raw, done: make(chan struct{})}
	e.enqueue(op)
	select {
	case <-op.done:
		return op.err
	case <-ctx.Done():
		return fault.Persistence(key, ctx.Err())
	}
}
