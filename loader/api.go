package loader

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/fableforge/types"
)

// registerAPI registers all Lua constructors and helpers as globals.
func registerAPI(L *lua.LState, coll *collector) {
	// Pack { name = "...", description = "..." }
	L.SetGlobal("Pack", L.NewFunction(func(L *lua.LState) int {
		tbl := L.CheckTable(1)
		coll.meta = tbl
		return 0
	}))

	// Hero "id" { ... } is curried: Hero("id") returns a function that
	// takes the body table. Same shape for NPC and Enemy.
	L.SetGlobal("Hero", entityConstructor(L, coll, types.CategoryHero))
	L.SetGlobal("NPC", entityConstructor(L, coll, types.CategoryNPC))
	L.SetGlobal("Enemy", entityConstructor(L, coll, types.CategoryEnemy))

	// Stats { hp = 100, mp = 50, atk = 12, def = 5 } is a pass-through,
	// returns the table so entity bodies read naturally.
	L.SetGlobal("Stats", L.NewFunction(func(L *lua.LState) int {
		tbl := L.CheckTable(1)
		L.Push(tbl)
		return 1
	}))

	// Balance { victory_heal = 10, ... }, at most one per pack.
	L.SetGlobal("Balance", L.NewFunction(func(L *lua.LState) int {
		tbl := L.CheckTable(1)
		if coll.balance != nil {
			L.RaiseError("duplicate Balance block")
		}
		coll.balance = tbl
		return 0
	}))
}

func entityConstructor(L *lua.LState, coll *collector, cat types.Category) *lua.LFunction {
	return L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			coll.entities = append(coll.entities, rawEntity{
				id:    id,
				cat:   cat,
				table: tbl,
				file:  coll.file,
			})
			return 0
		}))
		return 1
	})
}
