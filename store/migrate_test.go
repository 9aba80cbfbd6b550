package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAdoptsLegacyKey(t *testing.T) {
	mem := NewMemStore()
	ctx := context.Background()
	legacy := json.RawMessage(`[{"id":"e1","name":"Ghoul","category":"ENEMY"}]`)
	require.NoError(t, mem.Set(ctx, "library-monsters", legacy))

	eng := NewEngine(mem, nil)
	defer eng.Close()

	var enemies []map[string]any
	ok, err := eng.Load(ctx, KeyLibraryEnemies, &enemies)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, enemies, 1)
	assert.Equal(t, "Ghoul", enemies[0]["name"])

	// Re-persisted under the current key; legacy key left untouched.
	cur, err := mem.Get(ctx, KeyLibraryEnemies)
	require.NoError(t, err)
	require.NotNil(t, cur)
	old, err := mem.Get(ctx, "library-monsters")
	require.NoError(t, err)
	assert.JSONEq(t, string(legacy), string(old))
}

func TestMigrationIsIdempotent(t *testing.T) {
	mem := NewMemStore()
	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, "library-monsters",
		json.RawMessage(`[{"id":"e1","name":"Ghoul"}]`)))

	run := func() map[string]string {
		eng := NewEngine(mem, nil)
		defer eng.Close()
		var out []map[string]any
		_, err := eng.Load(ctx, KeyLibraryEnemies, &out)
		require.NoError(t, err)

		snap := map[string]string{}
		for _, k := range mem.Keys() {
			v, err := mem.Get(ctx, k)
			require.NoError(t, err)
			snap[k] = string(v)
		}
		return snap
	}

	first := run()
	second := run()
	assert.Equal(t, first, second, "running migration twice must not change records")
}

func TestNormalizeRecordRenamesFields(t *testing.T) {
	in := json.RawMessage(`{
		"saveSlots": [
			{"location":"FOREST","worldMonsters":[{"id":"m1"}]},
			null
		],
		"libraryMonsters": [{"id":"m2"}]
	}`)

	out := NormalizeRecord(in)

	var v map[string]any
	require.NoError(t, json.Unmarshal(out, &v))

	slots := v["saveSlots"].([]any)
	slot := slots[0].(map[string]any)
	assert.Contains(t, slot, "worldEnemies", "nested slot rename applied")
	assert.Contains(t, v, "libraryEnemies", "top-level rename applied")
}

func TestNormalizeRecordKeepsCurrentField(t *testing.T) {
	in := json.RawMessage(`{"worldMonsters":[1],"worldEnemies":[2]}`)
	out := NormalizeRecord(in)

	var v map[string]any
	require.NoError(t, json.Unmarshal(out, &v))
	assert.Equal(t, []any{float64(2)}, v["worldEnemies"],
		"current field wins when both names are present")
}

func TestNormalizeRecordPassesThroughInvalidJSON(t *testing.T) {
	in := json.RawMessage(`{broken`)
	assert.Equal(t, in, NormalizeRecord(in))
}
