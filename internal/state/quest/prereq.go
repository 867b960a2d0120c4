package quest

import (
	"fmt"
	"sort"
)

// Context is the acting character's knowledge and standing, used for
// prerequisite evaluation.
type Context struct {
	KnownLocations  []string
	KnownNPCs       []string
	CompletedQuests []string
	// Reputation maps faction id to the character's score with it.
	Reputation map[string]int
}

// PrereqResult reports whether a quest's prerequisites are satisfied.
// Missing holds one human-readable line per unmet requirement; it is
// used to gate visibility, never to abort.
type PrereqResult struct {
	Met     bool
	Missing []string
}

// CheckPrerequisites independently evaluates each prerequisite category
// against the context. A quest without prerequisites is always met.
func CheckPrerequisites(q Quest, ctx Context) PrereqResult {
	result := PrereqResult{Met: true}
	prereq := q.Prerequisites
	if prereq == nil {
		return result
	}

	for _, loc := range prereq.KnownLocations {
		if !contains(ctx.KnownLocations, loc) {
			result.Missing = append(result.Missing, fmt.Sprintf("location %s is not known", loc))
		}
	}
	for _, npc := range prereq.KnownNPCs {
		if !contains(ctx.KnownNPCs, npc) {
			result.Missing = append(result.Missing, fmt.Sprintf("npc %s is not known", npc))
		}
	}
	for _, questID := range prereq.CompletedQuests {
		if !contains(ctx.CompletedQuests, questID) {
			result.Missing = append(result.Missing, fmt.Sprintf("quest %s is not completed", questID))
		}
	}
	factions := make([]string, 0, len(prereq.MinReputation))
	for faction := range prereq.MinReputation {
		factions = append(factions, faction)
	}
	sort.Strings(factions)
	for _, faction := range factions {
		if min := prereq.MinReputation[faction]; ctx.Reputation[faction] < min {
			result.Missing = append(result.Missing,
				fmt.Sprintf("reputation with %s is below %d", faction, min))
		}
	}

	result.Met = len(result.Missing) == 0
	return result
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
