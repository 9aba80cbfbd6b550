package engine

import (
	"github.com/nathoo/fableforge/fault"
)

// Damage computes a single strike: attack minus defense plus a uniform
// bonus in [0, bonusRange), floored at 1 so no hit is ever a no-op.
func Damage(atk, def, bonusRange int, rng *RNG) int {
	dmg := atk - def
	if bonusRange > 0 {
		dmg += rng.IntN(bonusRange)
	}
	if dmg < 1 {
		dmg = 1
	}
	return dmg
}

// Attack performs the player's battle turn. On victory the battle ends
// immediately, the victory heal applies, and no counter-attack follows. If
// the enemy survives the returned token arms the counter-attack: the caller
// waits out EnemyTurnDelay and then calls ResolveEnemyTurn with it.
func (e *Engine) Attack() (Token, []Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.player == nil || e.phase != PhaseBattle || e.enemy == nil {
		return Token{}, nil, fault.InvalidTransition("attack", e.stateString())
	}
	if e.pending != pendingNone || e.turn != TurnPlayer {
		return Token{}, nil, fault.InvalidTransition("attack", e.stateString())
	}

	dmg := Damage(e.player.Stats.Atk, e.enemy.Stats.Def, e.policy.PlayerBonusRange, e.rng)
	e.enemy.Stats.HP -= dmg
	e.enemy.Stats.Clamp()

	evs := []Event{event(EventDamage, "You hit the %s for %d damage.", e.enemy.Name, dmg)}

	if e.enemy.Stats.HP <= 0 {
		evs = append(evs, e.winBattle()...)
		return Token{}, evs, nil
	}

	e.turn = TurnEnemy
	e.pending = pendingEnemy
	return Token{epoch: e.epoch, kind: pendingEnemy}, evs, nil
}

// winBattle ends the battle in the player's favor. Caller holds the lock.
func (e *Engine) winBattle() []Event {
	evs := []Event{event(EventVictory, "The %s is defeated!", e.enemy.Name)}
	e.player.Stats.HP += e.policy.VictoryHeal
	e.player.Stats.Clamp()
	evs = append(evs, event(EventHeal, "You recover %d HP.", e.policy.VictoryHeal))

	e.enemy = nil
	e.phase = PhaseIdle
	e.turn = ""
	e.log.Info("battle won", "place", e.place)
	return evs
}

// ResolveEnemyTurn delivers the delayed counter-attack. Stale tokens (the
// player already navigated away) are discarded without effect. Defeat
// revives the player at a fraction of max HP and forces a return to map
// select; any later async result is dead on arrival thanks to the epoch
// bump.
func (e *Engine) ResolveEnemyTurn(tok Token) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	if tok.kind != pendingEnemy || tok.epoch != e.epoch || e.pending != pendingEnemy {
		e.log.Debug("stale enemy turn discarded", "epoch", tok.epoch)
		return nil
	}
	e.pending = pendingNone
	if e.enemy == nil || e.player == nil {
		return nil
	}

	dmg := Damage(e.enemy.Stats.Atk, e.player.Stats.Def, e.policy.EnemyBonusRange, e.rng)
	e.player.Stats.HP -= dmg
	e.player.Stats.Clamp()

	evs := []Event{event(EventDamage, "The %s strikes you for %d damage.", e.enemy.Name, dmg)}

	if e.player.Stats.HP <= 0 {
		evs = append(evs, event(EventDefeat, "You fall to the %s...", e.enemy.Name))
		e.player.Stats.HP = e.player.Stats.MaxHP / e.policy.ReviveDivisor
		e.player.Stats.Clamp()
		e.clearEncounter()
		e.place = PlaceMapSelect
		evs = append(evs, event(EventInfo,
			"You awaken at the world map, wounds bound (%d HP).", e.player.Stats.HP))
		e.log.Info("player defeated", "revived_hp", e.player.Stats.HP)
		return evs
	}

	e.turn = TurnPlayer
	return evs
}

// Heal casts the healing spell. Valid whenever the player has the MP,
// except mid-dialogue; in battle it consumes the turn, so the returned
// token arms the counter-attack exactly like Attack does.
func (e *Engine) Heal() (Token, []Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.player == nil || e.phase == PhaseDialogue || e.pending != pendingNone {
		return Token{}, nil, fault.InvalidTransition("heal", e.stateString())
	}
	if e.phase == PhaseBattle && e.turn != TurnPlayer {
		return Token{}, nil, fault.InvalidTransition("heal", e.stateString())
	}
	if e.player.Stats.MP < e.policy.HealMPCost {
		return Token{}, nil, fault.InvalidTransition("heal", "insufficient MP")
	}

	e.player.Stats.MP -= e.policy.HealMPCost
	e.player.Stats.HP += e.policy.HealAmount
	e.player.Stats.Clamp()

	evs := []Event{event(EventHeal, "You channel a healing spell (+%d HP).", e.policy.HealAmount)}

	if e.phase == PhaseBattle {
		e.turn = TurnEnemy
		e.pending = pendingEnemy
		return Token{epoch: e.epoch, kind: pendingEnemy}, evs, nil
	}
	return Token{}, evs, nil
}
