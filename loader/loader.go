// Package loader reads content packs: directories of Lua files declaring
// heroes, NPCs, enemies, and optional balance overrides. Packs seed the
// library with hand-authored entities alongside the generated ones.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/fableforge/engine"
	"github.com/nathoo/fableforge/types"
)

// Pack is a compiled, validated content pack.
type Pack struct {
	Name        string
	Description string

	// Entities in declaration order, ready for library import.
	Entities []types.Entity

	// WorldIDs lists the entities flagged world-active in the pack.
	WorldIDs []string

	// Policy carries the pack's balance overrides; nil when the pack
	// declares no Balance block.
	Policy *engine.Policy
}

// collector accumulates Lua definitions during file execution.
type collector struct {
	meta     *lua.LTable
	entities []rawEntity
	balance  *lua.LTable
	file     string
}

func (c *collector) currentFile(name string) { c.file = name }

type rawEntity struct {
	id    string
	cat   types.Category
	table *lua.LTable
	file  string
}

// Load reads all .lua files from dir, compiles them into a Pack, and
// validates the result. The Lua VM is discarded after loading.
func Load(dir string) (*Pack, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading pack directory %s: %w", dir, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".lua") {
			luaFiles = append(luaFiles, e.Name())
		}
	}
	if len(luaFiles) == 0 {
		return nil, fmt.Errorf("no .lua files found in %s", dir)
	}
	luaFiles = sortedLuaFiles(luaFiles)

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	openSafeLibs(L)
	sandbox(L)

	coll := &collector{}
	registerAPI(L, coll)

	for _, f := range luaFiles {
		coll.currentFile(f)
		if err := L.DoFile(filepath.Join(dir, f)); err != nil {
			return nil, fmt.Errorf("executing %s: %w", f, err)
		}
	}

	pack, err := compile(coll)
	if err != nil {
		return nil, fmt.Errorf("compiling pack: %w", err)
	}
	if err := validate(pack); err != nil {
		return nil, err
	}
	return pack, nil
}

// sortedLuaFiles puts pack.lua first so metadata is in place before the
// entity files run; the rest execute alphabetically.
func sortedLuaFiles(files []string) []string {
	sort.Strings(files)
	for i, f := range files {
		if f == "pack.lua" {
			copy(files[1:i+1], files[:i])
			files[0] = f
			break
		}
	}
	return files
}

// openSafeLibs opens only the safe subset of Lua standard libraries.
func openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// sandbox removes dangerous globals and functions.
func sandbox(L *lua.LState) {
	dangerous := []string{
		"dofile", "loadfile", "load", "loadstring",
		"rawset", "rawget", "rawequal",
		"collectgarbage",
	}
	for _, name := range dangerous {
		L.SetGlobal(name, lua.LNil)
	}

	if mathTbl := L.GetGlobal("math"); mathTbl != lua.LNil {
		if tbl, ok := mathTbl.(*lua.LTable); ok {
			tbl.RawSetString("randomseed", lua.LNil)
		}
	}
}
