// Package delta defines the atomic state-mutation records that form the
// audit trail for a turn, and the per-turn recorder that collects them.
//
// Every delta is traceable to the game event that caused it, and replaying
// a recorded sequence in order reproduces the exact same state.
package delta

import "time"

// Target selects the state subtree a delta applies to.
type Target string

const (
	// TargetPlayer addresses the player character subtree.
	TargetPlayer Target = "player"
	// TargetNPC addresses the NPC map.
	TargetNPC Target = "npc"
	// TargetLocation addresses the location map.
	TargetLocation Target = "location"
	// TargetScene addresses the scene map.
	TargetScene Target = "scene"
	// TargetWorld addresses the shared world subtree.
	TargetWorld Target = "world"
	// TargetQuest addresses the quest subtree.
	TargetQuest Target = "quest"
	// TargetRelationship addresses faction and actor relationships.
	TargetRelationship Target = "relationship"
	// TargetKnowledge addresses the player's known facts.
	TargetKnowledge Target = "knowledge"
	// TargetInventory addresses carried items.
	TargetInventory Target = "inventory"
	// TargetTime addresses the in-fiction clock subtree.
	TargetTime Target = "time"
)

// IsValid reports whether the target is one of the supported subtrees.
func (t Target) IsValid() bool {
	switch t {
	case TargetPlayer,
		TargetNPC,
		TargetLocation,
		TargetScene,
		TargetWorld,
		TargetQuest,
		TargetRelationship,
		TargetKnowledge,
		TargetInventory,
		TargetTime:
		return true
	default:
		return false
	}
}

// Op identifies the mutation a delta performs at its path.
type Op string

const (
	// OpSet assigns the new value.
	OpSet Op = "set"
	// OpIncrement adds the new value to the existing number (absent = 0).
	OpIncrement Op = "increment"
	// OpDecrement subtracts the new value from the existing number.
	OpDecrement Op = "decrement"
	// OpAppend pushes the new value onto a list, initializing if absent.
	OpAppend Op = "append"
	// OpRemove removes the first equal element from a list, or the keyed
	// field from a map.
	OpRemove Op = "remove"
	// OpInsert places the new value at the index named by the final path
	// key when the container is a list.
	OpInsert Op = "insert"
	// OpDelete removes by index from a list, or by key from a map.
	OpDelete Op = "delete"
	// OpCreate assigns the new value, creating intermediate containers.
	OpCreate Op = "create"
	// OpDestroy removes the addressed entry entirely.
	OpDestroy Op = "destroy"
)

// IsValid reports whether the operation is supported.
func (o Op) IsValid() bool {
	switch o {
	case OpSet, OpIncrement, OpDecrement, OpAppend, OpRemove, OpInsert, OpDelete, OpCreate, OpDestroy:
		return true
	default:
		return false
	}
}

// Delta is one atomic, recorded mutation to game state. Deltas are
// immutable once recorded.
type Delta struct {
	// ID is "<session>-<turn>-<sequence>".
	ID string `json:"id"`
	// SessionID scopes the delta to a session.
	SessionID string `json:"session_id"`
	// TurnID references the turn the delta was recorded under.
	TurnID uint64 `json:"turn_id"`
	// Seq is 1-based and contiguous within the turn.
	Seq uint64 `json:"seq"`
	// Timestamp is wall-clock time for display only.
	Timestamp time.Time `json:"timestamp"`
	// Target selects the subtree the mutation applies to.
	Target Target `json:"target"`
	// Op is the mutation performed at the path.
	Op Op `json:"op"`
	// Path is the ordered key list locating the field within the subtree.
	Path []string `json:"path"`
	// Previous is the value before the mutation, when known.
	Previous any `json:"previous,omitempty"`
	// Value is the value the mutation introduces.
	Value any `json:"value,omitempty"`
	// Cause is a free-text reason for the mutation.
	Cause string `json:"cause,omitempty"`
	// EventID back-references the event that caused the mutation. It must
	// name an event recorded in the same turn.
	EventID string `json:"event_id"`
}
