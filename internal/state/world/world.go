// Package world holds the rooted in-memory state tree for a session and
// the applier that mutates it from delta records.
//
// The tree is a fixed set of named subtrees, one per delta target. Leaf
// values are JSON-shaped: maps, lists, strings, booleans and float64
// numbers. The applier normalizes every written value into that shape so
// live forward-application and cold replay of the persisted log produce
// structurally identical trees.
package world

import (
	apperrors "github.com/louisbranch/emberwake.world/internal/errors"
	"github.com/louisbranch/emberwake.world/internal/state/delta"
)

// ErrUnknownTarget indicates a delta target with no mapped subtree.
var ErrUnknownTarget = apperrors.New(apperrors.CodeDeltaInvalidTarget, "delta target has no subtree")

// State is the root of a session's live game state.
type State struct {
	Player        map[string]any `json:"player"`
	World         map[string]any `json:"world"`
	NPCs          map[string]any `json:"npcs"`
	Scenes        map[string]any `json:"scenes"`
	Locations     map[string]any `json:"locations"`
	Quests        map[string]any `json:"quests"`
	Relationships map[string]any `json:"relationships"`
	Knowledge     map[string]any `json:"knowledge"`
	Inventory     map[string]any `json:"inventory"`
	Time          map[string]any `json:"time"`
}

// NewState creates an empty state tree with every subtree initialized.
func NewState() *State {
	return &State{
		Player:        map[string]any{},
		World:         map[string]any{},
		NPCs:          map[string]any{},
		Scenes:        map[string]any{},
		Locations:     map[string]any{},
		Quests:        map[string]any{},
		Relationships: map[string]any{},
		Knowledge:     map[string]any{},
		Inventory:     map[string]any{},
		Time:          map[string]any{},
	}
}

// Subtree maps a delta target onto its subtree. The mapping is
// exhaustive over delta.Target; an unknown target is an error, never a
// fallback onto the whole tree.
func (s *State) Subtree(target delta.Target) (map[string]any, error) {
	switch target {
	case delta.TargetPlayer:
		return s.Player, nil
	case delta.TargetWorld:
		return s.World, nil
	case delta.TargetNPC:
		return s.NPCs, nil
	case delta.TargetScene:
		return s.Scenes, nil
	case delta.TargetLocation:
		return s.Locations, nil
	case delta.TargetQuest:
		return s.Quests, nil
	case delta.TargetRelationship:
		return s.Relationships, nil
	case delta.TargetKnowledge:
		return s.Knowledge, nil
	case delta.TargetInventory:
		return s.Inventory, nil
	case delta.TargetTime:
		return s.Time, nil
	default:
		return nil, ErrUnknownTarget
	}
}
