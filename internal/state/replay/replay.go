// Package replay reconstructs session state by applying a persisted
// delta log, in recorded order, onto a state tree.
//
// Replay uses the same applier as live play, so a cold rebuild and the
// original forward application converge on identical trees.
package replay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/emberwake.world/internal/errors"
	"github.com/louisbranch/emberwake.world/internal/state/delta"
	"github.com/louisbranch/emberwake.world/internal/state/world"
)

const defaultPageSize = 200

var (
	// ErrStoreRequired indicates a missing delta store.
	ErrStoreRequired = errors.New("delta store is required")
	// ErrStateRequired indicates a missing state tree.
	ErrStateRequired = errors.New("state is required")
	// ErrSessionIDRequired indicates a missing session id.
	ErrSessionIDRequired = errors.New("session id is required")
)

// DeltaStore lists persisted deltas for replay, ordered by turn then
// sequence, strictly after the (afterTurn, afterSeq) cursor.
type DeltaStore interface {
	ListDeltas(ctx context.Context, sessionID string, afterTurn, afterSeq uint64, limit int) ([]delta.Delta, error)
}

// Options configures replay behavior.
type Options struct {
	// AfterTurn/AfterSeq set the starting cursor, used when catching a
	// snapshot up from its high-water mark.
	AfterTurn uint64
	AfterSeq  uint64
	// UntilTurn stops replay after the named turn when non-zero.
	UntilTurn uint64
	// PageSize bounds each store read.
	PageSize int
}

// Result captures replay outcomes.
type Result struct {
	State    *world.State
	LastTurn uint64
	LastSeq  uint64
	Applied  int
}

// Replay applies the session's delta log to state in recorded order.
//
// Within a turn, delta sequences must be contiguous starting at 1; a gap
// aborts the replay with a sequence-gap error rather than producing a
// silently divergent tree.
func Replay(ctx context.Context, store DeltaStore, sessionID string, state *world.State, options Options) (Result, error) {
	if store == nil {
		return Result{}, ErrStoreRequired
	}
	if state == nil {
		return Result{}, ErrStateRequired
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Result{}, ErrSessionIDRequired
	}

	pageSize := options.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	result := Result{State: state, LastTurn: options.AfterTurn, LastSeq: options.AfterSeq}
	for {
		deltas, err := store.ListDeltas(ctx, sessionID, result.LastTurn, result.LastSeq, pageSize)
		if err != nil {
			return result, err
		}
		if len(deltas) == 0 {
			return result, nil
		}
		for _, d := range deltas {
			if options.UntilTurn > 0 && d.TurnID > options.UntilTurn {
				return result, nil
			}
			if err := checkOrder(result, d); err != nil {
				return result, err
			}
			if err := world.Apply(state, d); err != nil {
				return result, fmt.Errorf("apply delta %s: %w", d.ID, err)
			}
			result.LastTurn = d.TurnID
			result.LastSeq = d.Seq
			result.Applied++
		}
	}
}

func checkOrder(result Result, d delta.Delta) error {
	switch {
	case d.TurnID == result.LastTurn:
		if d.Seq != result.LastSeq+1 {
			return gapError(d, result.LastSeq+1)
		}
	case d.TurnID > result.LastTurn:
		if d.Seq != 1 {
			return gapError(d, 1)
		}
	default:
		return gapError(d, result.LastSeq+1)
	}
	return nil
}

func gapError(d delta.Delta, want uint64) error {
	return apperrors.WithMetadata(apperrors.CodeDeltaSequenceGap,
		fmt.Sprintf("delta sequence gap: turn %d seq %d, expected seq %d", d.TurnID, d.Seq, want),
		map[string]string{"delta_id": d.ID})
}
