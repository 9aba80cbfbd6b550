// Package library owns the entity catalog and the world configuration: three
// category partitions, the set of active world ids, and the label
// vocabulary. All collections persist through the store engine; persistence
// failures degrade to in-memory operation and never roll back a mutation.
package library

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nathoo/fableforge/store"
	"github.com/nathoo/fableforge/types"
)

// partition holds one category's entities, insertion-ordered for display.
type partition struct {
	ids  []string
	byID map[string]types.Entity
}

func newPartition() *partition {
	return &partition{byID: map[string]types.Entity{}}
}

func (p *partition) add(e types.Entity) {
	if _, exists := p.byID[e.ID]; exists {
		return
	}
	p.ids = append(p.ids, e.ID)
	p.byID[e.ID] = e
}

func (p *partition) remove(id string) bool {
	if _, exists := p.byID[id]; !exists {
		return false
	}
	delete(p.byID, id)
	for i, pid := range p.ids {
		if pid == id {
			p.ids = append(p.ids[:i], p.ids[i+1:]...)
			break
		}
	}
	return true
}

func (p *partition) list() []types.Entity {
	out := make([]types.Entity, 0, len(p.ids))
	for _, id := range p.ids {
		out = append(out, p.byID[id].Clone())
	}
	return out
}

// Manager is the library / world-config manager. Safe for concurrent use.
type Manager struct {
	mu  sync.Mutex
	eng *store.Engine
	log *slog.Logger

	parts map[types.Category]*partition

	activeIDs []string // order-stable by first-seen
	activeSet map[string]bool

	labels   []string
	labelSet map[string]bool
}

// NewManager creates an empty library backed by the persistence engine.
func NewManager(eng *store.Engine, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		eng: eng,
		log: log,
		parts: map[types.Category]*partition{
			types.CategoryNPC:   newPartition(),
			types.CategoryEnemy: newPartition(),
			types.CategoryHero:  newPartition(),
		},
		activeSet: map[string]bool{},
		labelSet:  map[string]bool{},
	}
}

// Load reads every library record from storage, running the legacy-key
// migration as a side effect. Persistence errors are returned but leave the
// manager usable (empty collections, degraded mode).
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := []struct {
		key string
		cat types.Category
	}{
		{store.KeyLibraryNpcs, types.CategoryNPC},
		{store.KeyLibraryEnemies, types.CategoryEnemy},
		{store.KeyLibraryHeroes, types.CategoryHero},
	}
	var firstErr error
	for _, rec := range records {
		var entities []types.Entity
		if _, err := m.eng.Load(ctx, rec.key, &entities); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		p := newPartition()
		for _, e := range entities {
			e.Category = rec.cat
			p.add(e)
		}
		m.parts[rec.cat] = p
	}

	var active []string
	if _, err := m.eng.Load(ctx, store.KeyActiveWorldIDs, &active); err != nil && firstErr == nil {
		firstErr = err
	}
	m.activeIDs = nil
	m.activeSet = map[string]bool{}
	for _, id := range active {
		if m.findLocked(id) != nil && !m.activeSet[id] {
			m.activeIDs = append(m.activeIDs, id)
			m.activeSet[id] = true
		}
	}

	var labels []string
	if _, err := m.eng.Load(ctx, store.KeyLabels, &labels); err != nil && firstErr == nil {
		firstErr = err
	}
	m.labels = nil
	m.labelSet = map[string]bool{}
	for _, l := range labels {
		if !m.labelSet[l] {
			m.labels = append(m.labels, l)
			m.labelSet[l] = true
		}
	}

	return firstErr
}

// findLocked returns the entity for id across all partitions, nil if absent.
func (m *Manager) findLocked(id string) *types.Entity {
	for _, p := range m.parts {
		if e, ok := p.byID[id]; ok {
			return &e
		}
	}
	return nil
}

// AddEntity inserts e into the partition matching its category. Adding an id
// that already exists anywhere in the library is a silent no-op (idempotent
// add). Returns true when the entity was inserted.
func (m *Manager) AddEntity(e types.Entity) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !e.Category.Valid() {
		m.log.Warn("rejected entity with unknown category", "id", e.ID, "category", e.Category)
		return false
	}
	if m.findLocked(e.ID) != nil {
		return false
	}
	m.parts[e.Category].add(e.Clone())
	m.persistPartitionLocked(e.Category)
	return true
}

// ImportEntities adds each entity, skipping ids that already exist. Returns
// the number actually inserted. Used by content packs and bundle import.
func (m *Manager) ImportEntities(entities []types.Entity) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	added := 0
	touched := map[types.Category]bool{}
	for _, e := range entities {
		if !e.Category.Valid() || m.findLocked(e.ID) != nil {
			continue
		}
		m.parts[e.Category].add(e.Clone())
		touched[e.Category] = true
		added++
	}
	for cat := range touched {
		m.persistPartitionLocked(cat)
	}
	return added
}

// RemoveEntities removes the given ids from all three partitions and
// atomically removes the same ids from the world configuration. Returns the
// count of entities removed.
func (m *Manager) RemoveEntities(ids []string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	touched := map[types.Category]bool{}
	activeDirty := false
	for _, id := range ids {
		for cat, p := range m.parts {
			if p.remove(id) {
				removed++
				touched[cat] = true
			}
		}
		if m.activeSet[id] {
			delete(m.activeSet, id)
			for i, aid := range m.activeIDs {
				if aid == id {
					m.activeIDs = append(m.activeIDs[:i], m.activeIDs[i+1:]...)
					break
				}
			}
			activeDirty = true
		}
	}

	for cat := range touched {
		m.persistPartitionLocked(cat)
	}
	if activeDirty {
		m.persistActiveLocked()
	}
	return removed
}

// SetWorldMembership adds (active=true, set union, first-seen order) or
// removes (active=false) the given ids from the world configuration. HERO
// ids are rejected per id with a warning (heroes are character origins, not
// world inhabitants) and ids that don't exist in the library are skipped.
// Returns the ids that were skipped.
func (m *Manager) SetWorldMembership(ids []string, active bool) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var skipped []string
	dirty := false
	for _, id := range ids {
		e := m.findLocked(id)
		if e == nil {
			skipped = append(skipped, id)
			continue
		}
		if e.Category == types.CategoryHero {
			m.log.Warn("hero cannot be a world member", "id", id, "name", e.Name)
			skipped = append(skipped, id)
			continue
		}
		if active {
			if !m.activeSet[id] {
				m.activeSet[id] = true
				m.activeIDs = append(m.activeIDs, id)
				dirty = true
			}
		} else if m.activeSet[id] {
			delete(m.activeSet, id)
			for i, aid := range m.activeIDs {
				if aid == id {
					m.activeIDs = append(m.activeIDs[:i], m.activeIDs[i+1:]...)
					break
				}
			}
			dirty = true
		}
	}
	if dirty {
		m.persistActiveLocked()
	}
	return skipped
}

// Entities returns the insertion-ordered entities of one category, as copies.
func (m *Manager) Entities(cat types.Category) []types.Entity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.parts[cat].list()
}

// Entity returns a copy of the entity with the given id, if present.
func (m *Manager) Entity(id string) (types.Entity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e := m.findLocked(id); e != nil {
		return e.Clone(), true
	}
	return types.Entity{}, false
}

// ActiveIDs returns the world configuration in first-seen order.
func (m *Manager) ActiveIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.activeIDs...)
}

// IsActive reports whether an id is part of the world configuration.
func (m *Manager) IsActive(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeSet[id]
}

// ActiveByCategory returns copies of active entities of the given category,
// in world-configuration order. These populate a freshly started game.
func (m *Manager) ActiveByCategory(cat types.Category) []types.Entity {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []types.Entity
	p := m.parts[cat]
	for _, id := range m.activeIDs {
		if e, ok := p.byID[id]; ok {
			out = append(out, e.Clone())
		}
	}
	return out
}

// CreateLabel adds a label to the vocabulary (set semantics).
func (m *Manager) CreateLabel(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if name == "" || m.labelSet[name] {
		return
	}
	m.labelSet[name] = true
	m.labels = append(m.labels, name)
	m.persistLabelsLocked()
}

// DeleteLabel removes a label from the vocabulary. Entities already tagged
// with it keep the tag; tags are a point-in-time snapshot at generation.
func (m *Manager) DeleteLabel(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.labelSet[name] {
		return
	}
	delete(m.labelSet, name)
	for i, l := range m.labels {
		if l == name {
			m.labels = append(m.labels[:i], m.labels[i+1:]...)
			break
		}
	}
	m.persistLabelsLocked()
}

// Labels returns the label vocabulary in creation order.
func (m *Manager) Labels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.labels...)
}

// ReplaceWorldConfig swaps the active set wholesale (bundle import). Ids not
// present in the library, and hero ids, are dropped.
func (m *Manager) ReplaceWorldConfig(ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.activeIDs = nil
	m.activeSet = map[string]bool{}
	for _, id := range ids {
		e := m.findLocked(id)
		if e == nil || e.Category == types.CategoryHero || m.activeSet[id] {
			continue
		}
		m.activeIDs = append(m.activeIDs, id)
		m.activeSet[id] = true
	}
	m.persistActiveLocked()
}

// ReplaceLabels swaps the label vocabulary wholesale (bundle import).
func (m *Manager) ReplaceLabels(labels []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.labels = nil
	m.labelSet = map[string]bool{}
	for _, l := range labels {
		if l == "" || m.labelSet[l] {
			continue
		}
		m.labels = append(m.labels, l)
		m.labelSet[l] = true
	}
	m.persistLabelsLocked()
}

func partitionKey(cat types.Category) string {
	switch cat {
	case types.CategoryNPC:
		return store.KeyLibraryNpcs
	case types.CategoryEnemy:
		return store.KeyLibraryEnemies
	default:
		return store.KeyLibraryHeroes
	}
}

func (m *Manager) persistPartitionLocked(cat types.Category) {
	m.eng.PutAsync(partitionKey(cat), m.parts[cat].list())
}

func (m *Manager) persistActiveLocked() {
	m.eng.PutAsync(store.KeyActiveWorldIDs, append([]string{}, m.activeIDs...))
}

func (m *Manager) persistLabelsLocked() {
	m.eng.PutAsync(store.KeyLabels, append([]string{}, m.labels...))
}
