package turn

import "time"

// Kind identifies the type of a game event.
type Kind string

const (
	// KindMove records an actor changing position or location.
	KindMove Kind = "move"
	// KindObserve records an actor examining something.
	KindObserve Kind = "observe"
	// KindInteract records an actor manipulating an object or feature.
	KindInteract Kind = "interact"
	// KindDialogue records spoken exchange between actors.
	KindDialogue Kind = "dialogue"
	// KindCombatAttack records an offensive combat action.
	KindCombatAttack Kind = "combat_attack"
	// KindCombatDefend records a defensive combat action.
	KindCombatDefend Kind = "combat_defend"
	// KindSkillCheck records a contested skill resolution.
	KindSkillCheck Kind = "skill_check"
	// KindStateChange records a mechanical state mutation.
	KindStateChange Kind = "state_change"
	// KindNarrative records prose produced by the narration service.
	KindNarrative Kind = "narrative"
	// KindKnowledgeGain records an actor learning a fact.
	KindKnowledgeGain Kind = "knowledge_gain"
	// KindQuestUpdate records quest or objective progress.
	KindQuestUpdate Kind = "quest_update"
	// KindSystem records engine housekeeping.
	KindSystem Kind = "system"
	// KindFateCompel records a compel offered against an actor's aspect.
	KindFateCompel Kind = "fate_compel"
	// KindFatePointSpend records an actor spending a fate point.
	KindFatePointSpend Kind = "fate_point_spend"
	// KindFatePointAward records an actor receiving a fate point.
	KindFatePointAward Kind = "fate_point_award"
	// KindFatePointRefresh records a fate point pool reset.
	KindFatePointRefresh Kind = "fate_point_refresh"
)

// IsValid reports whether the event kind is supported.
func (k Kind) IsValid() bool {
	switch k {
	case KindMove,
		KindObserve,
		KindInteract,
		KindDialogue,
		KindCombatAttack,
		KindCombatDefend,
		KindSkillCheck,
		KindStateChange,
		KindNarrative,
		KindKnowledgeGain,
		KindQuestUpdate,
		KindSystem,
		KindFateCompel,
		KindFatePointSpend,
		KindFatePointAward,
		KindFatePointRefresh:
		return true
	default:
		return false
	}
}

// Event captures an immutable turn-scoped game event. Events are owned
// exclusively by their turn and never change after append.
type Event struct {
	// ID is "<turn>-<sequence>" and is unique within a session.
	ID string `json:"id"`
	// TurnID references the owning turn.
	TurnID uint64 `json:"turn_id"`
	// Seq is 1-based and contiguous within the turn.
	Seq uint64 `json:"seq"`
	// Kind classifies the event.
	Kind Kind `json:"kind"`
	// Actor is the id of the acting character.
	Actor string `json:"actor"`
	// Target optionally names what the action was directed at.
	Target string `json:"target,omitempty"`
	// Action is a short label for what the actor attempted.
	Action string `json:"action"`
	// Skill optionally names the skill used for a resolution.
	Skill string `json:"skill,omitempty"`
	// Difficulty optionally records the opposition difficulty.
	Difficulty *int `json:"difficulty,omitempty"`
	// RollTotal optionally records the dice total that counted.
	RollTotal *int `json:"roll_total,omitempty"`
	// Shifts optionally records the resolution margin.
	Shifts *int `json:"shifts,omitempty"`
	// Description is free prose describing the event.
	Description string `json:"description,omitempty"`
	// Metadata carries free-form structured context.
	Metadata map[string]any `json:"metadata,omitempty"`
	// Timestamp is wall-clock time for display only; ordering always
	// derives from Seq.
	Timestamp time.Time `json:"timestamp"`
}

// EventInput describes the caller-supplied portion of a new event.
type EventInput struct {
	Kind        Kind
	Actor       string
	Target      string
	Action      string
	Skill       string
	Difficulty  *int
	RollTotal   *int
	Shifts      *int
	Description string
	Metadata    map[string]any
}
