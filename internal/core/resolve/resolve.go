// Package resolve adjudicates contested actions.
//
// An action resolution combines a trinary dice roll, the actor's skill
// rating, the opposition difficulty, and any invoked bonuses into a
// numeric margin ("shifts") that maps onto a fixed ladder of outcome
// tiers. The tier boundaries are exact game-balance contracts.
package resolve

import (
	"github.com/louisbranch/emberwake.world/internal/core/dice"
	"github.com/louisbranch/emberwake.world/internal/random"
)

// Tier is the qualitative outcome of a resolution.
type Tier string

const (
	// TierFailure indicates the action failed outright.
	TierFailure Tier = "failure"
	// TierTie indicates the action succeeded at a serious cost.
	TierTie Tier = "tie"
	// TierSuccess indicates the action succeeded.
	TierSuccess Tier = "success"
	// TierSuccessWithStyle indicates the action succeeded with a large margin.
	TierSuccessWithStyle Tier = "success_with_style"
)

// Invoke is a bonus applied to a single resolution, drawn from a narrative
// tag the actor controls. An invoke carries either a flat bonus or a
// reroll marker; a reroll replaces the roll with the better of two draws
// and contributes no flat bonus of its own.
type Invoke struct {
	Tag    string
	Bonus  int
	Reroll bool
}

// Result captures one adjudicated action.
type Result struct {
	// Roll is the roll that counted toward the outcome.
	Roll dice.Roll
	// Discarded holds the losing roll when a reroll invoke was used.
	Discarded *dice.Roll
	// InvokeBonus is the sum of the flat bonuses across all invokes.
	InvokeBonus int
	// Shifts is roll total + skill + invoke bonus - difficulty.
	Shifts int
	// Tier is the outcome bucket Shifts falls into.
	Tier Tier
}

// TierFor maps a shift margin onto its outcome tier.
//
// shifts < 0 is failure, shifts == 0 is a tie, 0 < shifts < 3 is success,
// and shifts >= 3 is success with style.
func TierFor(shifts int) Tier {
	switch {
	case shifts < 0:
		return TierFailure
	case shifts == 0:
		return TierTie
	case shifts < 3:
		return TierSuccess
	default:
		return TierSuccessWithStyle
	}
}

// Resolve adjudicates an action from a roll, the actor's skill rating,
// the difficulty, and any invokes.
//
// Flat invoke bonuses sum. A reroll marker draws one additional roll
// from gen and keeps whichever roll has the higher total; the discarded
// roll is preserved for the audit trail. When no invoke carries a reroll
// marker, gen is never consulted and may be nil.
func Resolve(gen *random.Generator, roll dice.Roll, skill, difficulty int, invokes []Invoke) Result {
	bonus := 0
	reroll := false
	for _, invoke := range invokes {
		bonus += invoke.Bonus
		if invoke.Reroll {
			reroll = true
		}
	}

	result := Result{Roll: roll, InvokeBonus: bonus}
	if reroll {
		second := dice.RollDice(gen)
		if second.Total > roll.Total {
			discarded := roll
			result.Roll = second
			result.Discarded = &discarded
		} else {
			result.Discarded = &second
		}
	}

	result.Shifts = result.Roll.Total + skill + bonus - difficulty
	result.Tier = TierFor(result.Shifts)
	return result
}
