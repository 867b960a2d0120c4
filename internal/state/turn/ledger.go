// Package turn owns the session turn ledger: monotonic turn and event
// identifiers, the single active turn, and the append-only event list.
//
// The ledger hands back an explicit *Turn context from StartTurn and
// requires it on every subsequent call, so a caller can never clobber an
// unfinalized turn by accident: starting a turn while one is active is a
// hard error rather than a silent overwrite.
package turn

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/emberwake.world/internal/errors"
	"github.com/louisbranch/emberwake.world/internal/state/gametime"
)

var (
	// ErrNoActiveTurn indicates an operation that requires an active turn.
	ErrNoActiveTurn = apperrors.New(apperrors.CodeTurnNotActive, "no active turn")
	// ErrTurnActive indicates a turn is already open on the ledger.
	ErrTurnActive = apperrors.New(apperrors.CodeTurnAlreadyActive, "a turn is already active")
	// ErrTurnFinalized indicates the turn context has already been finalized.
	ErrTurnFinalized = apperrors.New(apperrors.CodeTurnFinalized, "turn is finalized")
	// ErrForeignTurn indicates a turn context from another ledger or a
	// detached turn was passed in.
	ErrForeignTurn = apperrors.New(apperrors.CodeTurnForeignContext, "turn does not belong to this ledger")
	// ErrEmptyActor indicates a missing actor id.
	ErrEmptyActor = apperrors.New(apperrors.CodeTurnEmptyActor, "actor is required")
	// ErrEmptySceneID indicates a missing scene id.
	ErrEmptySceneID = apperrors.New(apperrors.CodeTurnEmptySceneID, "scene id is required")
	// ErrInvalidEventKind indicates an unsupported event kind.
	ErrInvalidEventKind = apperrors.New(apperrors.CodeEventInvalidKind, "event kind is invalid")
)

// Turn is the working context for one game turn. It is created by
// Ledger.StartTurn, mutated only by appending events through the ledger,
// and detached on finalize.
type Turn struct {
	// ID is the session-scoped monotonic turn identifier.
	ID uint64 `json:"id"`
	// Number is the 1-based ordinal of the turn within the session.
	Number uint64 `json:"number"`
	// Actor is the id of the character whose turn this is.
	Actor string `json:"actor"`
	// SceneID locates the turn within the fiction.
	SceneID string `json:"scene_id"`
	// StartedAt is the wall-clock start time, for display only.
	StartedAt time.Time `json:"started_at"`
	// Clock is the in-fiction time the turn happens at. Immutable.
	Clock gametime.Time `json:"clock"`
	// Events is the ordered, append-only event list.
	Events []Event `json:"events"`

	finalized bool
	ledger    *Ledger
}

// Ledger assigns turn and event identifiers and enforces the
// single-active-turn contract. It is not safe for concurrent use; each
// session drives exactly one ledger from one caller.
type Ledger struct {
	nextTurnID uint64
	active     *Turn
	now        func() time.Time
}

// NewLedger creates an idle ledger whose first turn will be turn 1.
func NewLedger() *Ledger {
	return &Ledger{nextTurnID: 1, now: time.Now}
}

// NewLedgerAt creates a ledger that resumes numbering after lastTurnID.
// It is used when reopening a persisted session.
func NewLedgerAt(lastTurnID uint64) *Ledger {
	return &Ledger{nextTurnID: lastTurnID + 1, now: time.Now}
}

// SetClock overrides the wall-clock source. Nil restores time.Now.
func (l *Ledger) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	l.now = now
}

// StartTurn opens a new turn for the actor in the given scene and
// returns its context. It fails with ErrTurnActive while another turn is
// open; the caller must finalize first.
func (l *Ledger) StartTurn(actor, sceneID string, clock gametime.Time) (*Turn, error) {
	if l.active != nil {
		return nil, ErrTurnActive
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, ErrEmptyActor
	}
	sceneID = strings.TrimSpace(sceneID)
	if sceneID == "" {
		return nil, ErrEmptySceneID
	}

	t := &Turn{
		ID:        l.nextTurnID,
		Number:    l.nextTurnID,
		Actor:     actor,
		SceneID:   sceneID,
		StartedAt: l.now().UTC(),
		Clock:     clock,
		ledger:    l,
	}
	l.nextTurnID++
	l.active = t
	return t, nil
}

// AddEvent appends a new event to the turn with the next sequence number
// and a derived event id. The turn must be the ledger's active turn.
func (l *Ledger) AddEvent(t *Turn, input EventInput) (Event, error) {
	if err := l.check(t); err != nil {
		return Event{}, err
	}
	if !input.Kind.IsValid() {
		return Event{}, ErrInvalidEventKind
	}
	actor := strings.TrimSpace(input.Actor)
	if actor == "" {
		actor = t.Actor
	}

	seq := uint64(len(t.Events)) + 1
	evt := Event{
		ID:          fmt.Sprintf("%d-%d", t.ID, seq),
		TurnID:      t.ID,
		Seq:         seq,
		Kind:        input.Kind,
		Actor:       actor,
		Target:      input.Target,
		Action:      input.Action,
		Skill:       input.Skill,
		Difficulty:  input.Difficulty,
		RollTotal:   input.RollTotal,
		Shifts:      input.Shifts,
		Description: input.Description,
		Metadata:    input.Metadata,
		Timestamp:   l.now().UTC(),
	}
	t.Events = append(t.Events, evt)
	return evt, nil
}

// FinalizeTurn detaches the turn from the ledger and returns the
// completed value. The ledger returns to idle and the context becomes
// unusable for further appends.
func (l *Ledger) FinalizeTurn(t *Turn) (Turn, error) {
	if err := l.check(t); err != nil {
		return Turn{}, err
	}

	t.finalized = true
	t.ledger = nil
	l.active = nil

	done := *t
	done.Events = make([]Event, len(t.Events))
	copy(done.Events, t.Events)
	return done, nil
}

// AbortTurn discards the active turn without recording it. The turn
// number is released and reused by the next StartTurn, so persisted
// turn ids stay contiguous.
func (l *Ledger) AbortTurn(t *Turn) error {
	if err := l.check(t); err != nil {
		return err
	}

	t.finalized = true
	t.ledger = nil
	l.active = nil
	l.nextTurnID = t.ID
	return nil
}

// CurrentTurn returns the active turn context, or nil when idle.
func (l *Ledger) CurrentTurn() *Turn {
	return l.active
}

// HasEvent reports whether the turn contains an event with the given id.
func (t *Turn) HasEvent(eventID string) bool {
	for _, evt := range t.Events {
		if evt.ID == eventID {
			return true
		}
	}
	return false
}

func (l *Ledger) check(t *Turn) error {
	if l.active == nil {
		return ErrNoActiveTurn
	}
	if t == nil {
		return ErrForeignTurn
	}
	if t.finalized {
		return ErrTurnFinalized
	}
	if t != l.active || t.ledger != l {
		return ErrForeignTurn
	}
	return nil
}
