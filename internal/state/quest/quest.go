// Package quest tracks objective completion, stage advancement and
// prerequisite gating for the session's quest log.
package quest

// Status is the lifecycle state of a quest. Transitions are
// one-directional: active quests may complete, fail or be abandoned, and
// terminal quests never revert.
type Status string

const (
	// StatusActive indicates the quest is in progress.
	StatusActive Status = "active"
	// StatusCompleted indicates every objective was fulfilled.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the quest can no longer be completed.
	StatusFailed Status = "failed"
	// StatusAbandoned indicates the player walked away from the quest.
	StatusAbandoned Status = "abandoned"
)

// IsValid reports whether the status is supported.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusFailed, StatusAbandoned:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusAbandoned
}

// ObjectiveStatus is the lifecycle state of a single objective.
type ObjectiveStatus string

const (
	// ObjectiveActive indicates the objective is still open.
	ObjectiveActive ObjectiveStatus = "active"
	// ObjectiveCompleted indicates the required count was reached.
	ObjectiveCompleted ObjectiveStatus = "completed"
	// ObjectiveFailed indicates the objective can no longer be met.
	ObjectiveFailed ObjectiveStatus = "failed"
)

// Objective is one countable requirement within a quest or stage.
type Objective struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Kind        string          `json:"kind,omitempty"`
	Required    int             `json:"required"`
	Current     int             `json:"current"`
	Status      ObjectiveStatus `json:"status"`
}

// Stage is one step of a multi-stage quest. Its objectives are a
// template: advancing into the stage installs fresh copies with counts
// reset to zero.
type Stage struct {
	ID          string      `json:"id"`
	Description string      `json:"description"`
	Objectives  []Objective `json:"objectives"`
	NextStageID string      `json:"next_stage_id,omitempty"`
}

// Prerequisites gate a quest's visibility on the acting character's
// knowledge and standing. All listed categories must be satisfied.
type Prerequisites struct {
	KnownLocations  []string       `json:"known_locations,omitempty"`
	KnownNPCs       []string       `json:"known_npcs,omitempty"`
	CompletedQuests []string       `json:"completed_quests,omitempty"`
	MinReputation   map[string]int `json:"min_reputation,omitempty"`
}

// Quest is one entry in the quest log. For staged quests, Objectives
// always holds the working set for the current stage.
type Quest struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	Status         Status           `json:"status"`
	Objectives     []Objective      `json:"objectives"`
	Stages         map[string]Stage `json:"stages,omitempty"`
	CurrentStageID string           `json:"current_stage_id,omitempty"`
	Prerequisites  *Prerequisites   `json:"prerequisites,omitempty"`
	// XPReward is granted once when the quest completes and feeds the
	// milestone ladder.
	XPReward int `json:"xp_reward,omitempty"`
}

func cloneObjectives(objectives []Objective) []Objective {
	out := make([]Objective, len(objectives))
	copy(out, objectives)
	return out
}

func (q *Quest) clone() Quest {
	out := *q
	out.Objectives = cloneObjectives(q.Objectives)
	if q.Stages != nil {
		out.Stages = make(map[string]Stage, len(q.Stages))
		for id, stage := range q.Stages {
			stage.Objectives = cloneObjectives(stage.Objectives)
			out.Stages[id] = stage
		}
	}
	if q.Prerequisites != nil {
		prereq := *q.Prerequisites
		out.Prerequisites = &prereq
	}
	return out
}
