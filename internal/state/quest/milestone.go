package quest

// MilestoneTier is a narrative advancement unit unlocking
// character-improvement actions.
type MilestoneTier string

const (
	// MilestoneNone indicates no milestone has been reached yet.
	MilestoneNone MilestoneTier = "none"
	// MilestoneMinor unlocks small character adjustments.
	MilestoneMinor MilestoneTier = "minor"
	// MilestoneSignificant unlocks skill advancement.
	MilestoneSignificant MilestoneTier = "significant"
	// MilestoneMajor unlocks full character growth.
	MilestoneMajor MilestoneTier = "major"
)

// XP thresholds for each milestone tier.
const (
	MinorThreshold       = 10
	SignificantThreshold = 25
	MajorThreshold       = 50
)

// MilestoneFor maps accumulated XP onto the milestone ladder. The
// mapping is monotonic: more XP never yields a lower tier, and because
// XP only accumulates a session's milestone never regresses.
func MilestoneFor(xp int) MilestoneTier {
	switch {
	case xp >= MajorThreshold:
		return MilestoneMajor
	case xp >= SignificantThreshold:
		return MilestoneSignificant
	case xp >= MinorThreshold:
		return MilestoneMinor
	default:
		return MilestoneNone
	}
}
