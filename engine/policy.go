package engine

import "time"

// Policy holds the balance constants governing combat and recovery. These
// are deliberate tuning knobs, not incidental literals; every Engine carries
// its own copy so content packs can override them.
type Policy struct {
	// PlayerBonusRange is the exclusive upper bound of the random bonus
	// added to the player's attack damage.
	PlayerBonusRange int

	// EnemyBonusRange is the exclusive upper bound for the enemy's
	// counter-attack bonus.
	EnemyBonusRange int

	// VictoryHeal is the fixed HP recovery granted when an enemy falls.
	VictoryHeal int

	// HealAmount is the HP restored by one heal action.
	HealAmount int

	// HealMPCost is the MP spent by one heal action.
	HealMPCost int

	// ReviveDivisor: a defeated player revives at MaxHP / ReviveDivisor.
	ReviveDivisor int

	// EnemyTurnDelay is the "thinking" pause before the counter-attack.
	// Owned by the presentation layer; the engine only reports it.
	EnemyTurnDelay time.Duration

	// DialogueWindow bounds how many prior turns are sent to the generation
	// service per reply. Full history is kept in memory for display.
	DialogueWindow int
}

// DefaultPolicy returns the stock game balance.
func DefaultPolicy() Policy {
	return Policy{
		PlayerBonusRange: 5,
		EnemyBonusRange:  3,
		VictoryHeal:      10,
		HealAmount:       30,
		HealMPCost:       10,
		ReviveDivisor:    2,
		EnemyTurnDelay:   900 * time.Millisecond,
		DialogueWindow:   12,
	}
}
