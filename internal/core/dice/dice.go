// Package dice implements the four-die trinary roll used for action
// resolution.
package dice

import (
	"github.com/louisbranch/emberwake.world/internal/random"
)

// DiceCount is the number of trinary dice in a single roll.
const DiceCount = 4

// Roll captures the result of rolling four trinary dice.
type Roll struct {
	// Dice holds the individual die faces, each -1, 0 or +1, in draw order.
	Dice [DiceCount]int
	// Total is the sum of Dice and is always in [-4, +4].
	Total int
}

// RollDice draws four independent trinary values from the generator and
// sums them.
//
// # Determinism
//
// RollDice is deterministic with respect to the generator's seed and
// position. Given a generator at the same state, RollDice always produces
// the same Roll. The only side effect is consuming four draws from the
// generator.
func RollDice(gen *random.Generator) Roll {
	var roll Roll
	for i := 0; i < DiceCount; i++ {
		face := gen.IntBetween(-1, 1)
		roll.Dice[i] = face
		roll.Total += face
	}
	return roll
}
