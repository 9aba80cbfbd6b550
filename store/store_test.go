package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/fableforge/fault"
)

func TestFileStoreRoundTrip(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "data"))
	ctx := context.Background()

	got, err := fs.Get(ctx, "library-npcs")
	require.NoError(t, err)
	assert.Nil(t, got, "absent key should read as nil")

	require.NoError(t, fs.Set(ctx, "library-npcs", json.RawMessage(`{"a":1}`)))

	got, err = fs.Get(ctx, "library-npcs")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(got))

	require.NoError(t, fs.Delete(ctx, "library-npcs"))
	got, err = fs.Get(ctx, "library-npcs")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting an absent key is not an error.
	require.NoError(t, fs.Delete(ctx, "never-written"))
}

func TestFileStoreSanitizesKeys(t *testing.T) {
	fs := NewFileStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, fs.Set(ctx, "../../etc/passwd", json.RawMessage(`"x"`)))
	got, err := fs.Get(ctx, "etcpasswd")
	require.NoError(t, err)
	assert.JSONEq(t, `"x"`, string(got))
}

func TestEnginePutLoad(t *testing.T) {
	mem := NewMemStore()
	eng := NewEngine(mem, nil)
	defer eng.Close()
	ctx := context.Background()

	require.NoError(t, eng.Put(ctx, KeyLabels, []string{"undead", "boss"}))

	var labels []string
	ok, err := eng.Load(ctx, KeyLabels, &labels)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"undead", "boss"}, labels)

	ok, err = eng.Load(ctx, KeyAutosaveFlag, new(bool))
	require.NoError(t, err)
	assert.False(t, ok, "absent record should report not found")
}

func TestEngineSetFailureIsNonFatal(t *testing.T) {
	mem := NewMemStore()
	mem.FailSets = fmt.Errorf("quota exceeded")
	eng := NewEngine(mem, nil)
	defer eng.Close()

	var banner error
	eng.OnError = func(err error) { banner = err }

	err := eng.Put(context.Background(), KeyLabels, []string{"x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrPersistence)
	assert.ErrorIs(t, banner, fault.ErrPersistence)
}

func TestEngineWriteOrderingPerKey(t *testing.T) {
	mem := NewMemStore()
	eng := NewEngine(mem, nil)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		eng.PutAsync(SaveSlotKey(1), i)
	}
	eng.Close()

	var final int
	ok, err := NewEngine(mem, nil).Load(ctx, SaveSlotKey(1), &final)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 49, final, "last write must win")
}

func TestSaveSlotKey(t *testing.T) {
	assert.Equal(t, "save-slot-1", SaveSlotKey(1))
	assert.Equal(t, "save-slot-4", SaveSlotKey(4))
}
