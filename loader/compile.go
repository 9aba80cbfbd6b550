package loader

import (
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/fableforge/engine"
	"github.com/nathoo/fableforge/types"
)

// compile converts the collected Lua tables into a Pack. Reference and
// range checks happen later in validate; compile only rejects shapes it
// cannot read at all.
func compile(coll *collector) (*Pack, error) {
	pack := &Pack{}

	if coll.meta != nil {
		pack.Name = tableString(coll.meta, "name", "")
		pack.Description = tableString(coll.meta, "description", "")
	}

	for _, raw := range coll.entities {
		ent, world, err := compileEntity(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: entity %q: %w", raw.file, raw.id, err)
		}
		pack.Entities = append(pack.Entities, ent)
		if world {
			pack.WorldIDs = append(pack.WorldIDs, ent.ID)
		}
	}

	if coll.balance != nil {
		p, err := compileBalance(coll.balance)
		if err != nil {
			return nil, fmt.Errorf("balance: %w", err)
		}
		pack.Policy = p
	}
	return pack, nil
}

func compileEntity(raw rawEntity) (types.Entity, bool, error) {
	ent := types.Entity{
		ID:          raw.id,
		Category:    raw.cat,
		Name:        tableString(raw.table, "name", ""),
		Description: tableString(raw.table, "description", ""),
		PortraitRef: tableString(raw.table, "portrait", ""),
		Tags:        tableStrings(raw.table, "tags"),
	}
	if raw.cat == types.CategoryNPC {
		ent.DialoguePersona = tableString(raw.table, "persona", "")
	}

	statsVal := raw.table.RawGetString("stats")
	statsTbl, ok := statsVal.(*lua.LTable)
	if !ok {
		return types.Entity{}, false, fmt.Errorf("missing stats block")
	}
	ent.Stats = compileStats(statsTbl)
	ent.Stats.Clamp()

	world := tableBool(raw.table, "world", false)
	return ent, world, nil
}

// compileStats reads a Stats table. hp and mp double as the maxima unless
// max_hp / max_mp override them; packs declare entities at full strength.
func compileStats(tbl *lua.LTable) types.Stats {
	s := types.Stats{
		HP:  tableInt(tbl, "hp", 0),
		MP:  tableInt(tbl, "mp", 0),
		Atk: tableInt(tbl, "atk", 0),
		Def: tableInt(tbl, "def", 0),
	}
	s.MaxHP = tableInt(tbl, "max_hp", s.HP)
	s.MaxMP = tableInt(tbl, "max_mp", s.MP)
	return s
}

// compileBalance overlays the Balance block onto the default policy, so a
// pack only names the knobs it changes.
func compileBalance(tbl *lua.LTable) (*engine.Policy, error) {
	p := engine.DefaultPolicy()

	p.PlayerBonusRange = tableInt(tbl, "player_bonus_range", p.PlayerBonusRange)
	p.EnemyBonusRange = tableInt(tbl, "enemy_bonus_range", p.EnemyBonusRange)
	p.VictoryHeal = tableInt(tbl, "victory_heal", p.VictoryHeal)
	p.HealAmount = tableInt(tbl, "heal_amount", p.HealAmount)
	p.HealMPCost = tableInt(tbl, "heal_mp_cost", p.HealMPCost)
	p.ReviveDivisor = tableInt(tbl, "revive_divisor", p.ReviveDivisor)
	p.DialogueWindow = tableInt(tbl, "dialogue_window", p.DialogueWindow)
	if ms := tableInt(tbl, "enemy_turn_delay_ms", -1); ms >= 0 {
		p.EnemyTurnDelay = time.Duration(ms) * time.Millisecond
	}

	var unknown []string
	known := map[string]bool{
		"player_bonus_range": true, "enemy_bonus_range": true,
		"victory_heal": true, "heal_amount": true, "heal_mp_cost": true,
		"revive_divisor": true, "dialogue_window": true,
		"enemy_turn_delay_ms": true,
	}
	tbl.ForEach(func(k, _ lua.LValue) {
		if s, ok := k.(lua.LString); ok && !known[string(s)] {
			unknown = append(unknown, string(s))
		}
	})
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown balance keys %v", unknown)
	}
	return &p, nil
}

// Lua table readers. Missing or mistyped fields fall back to the default;
// validate catches semantically required fields afterwards.

func tableString(tbl *lua.LTable, key, def string) string {
	if v, ok := tbl.RawGetString(key).(lua.LString); ok {
		return string(v)
	}
	return def
}

func tableInt(tbl *lua.LTable, key string, def int) int {
	if v, ok := tbl.RawGetString(key).(lua.LNumber); ok {
		return int(v)
	}
	return def
}

func tableBool(tbl *lua.LTable, key string, def bool) bool {
	if v, ok := tbl.RawGetString(key).(lua.LBool); ok {
		return bool(v)
	}
	return def
}

func tableStrings(tbl *lua.LTable, key string) []string {
	list, ok := tbl.RawGetString(key).(*lua.LTable)
	if !ok {
		return nil
	}
	var out []string
	list.ForEach(func(_, v lua.LValue) {
		if s, ok := v.(lua.LString); ok {
			out = append(out, string(s))
		}
	})
	return out
}
