package delta

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/emberwake.world/internal/errors"
)

var (
	// ErrInvalidTarget indicates an unsupported delta target.
	ErrInvalidTarget = apperrors.New(apperrors.CodeDeltaInvalidTarget, "delta target is invalid")
	// ErrInvalidOp indicates an unsupported delta operation.
	ErrInvalidOp = apperrors.New(apperrors.CodeDeltaInvalidOperation, "delta operation is invalid")
	// ErrEmptyPath indicates a delta without a path.
	ErrEmptyPath = apperrors.New(apperrors.CodeDeltaEmptyPath, "delta path is required")
	// ErrUnthreadedEvent indicates a delta whose event id does not name an
	// event in the recorder's turn.
	ErrUnthreadedEvent = apperrors.New(apperrors.CodeDeltaUnthreadedEvent, "delta event id is not part of this turn")
)

// Request describes one mutation to record.
type Request struct {
	Target   Target
	Op       Op
	Path     []string
	Previous any
	Value    any
	Cause    string
	EventID  string
}

// Recorder collects the append-only delta log for one (session, turn)
// pair. Recording order is significant: replay reproduces the exact
// sequence.
type Recorder struct {
	sessionID string
	turnID    uint64
	deltas    []Delta
	now       func() time.Time

	// HasEvent, when set, validates that a recorded delta's event id names
	// an event belonging to the recorder's turn.
	HasEvent func(eventID string) bool
}

// NewRecorder creates an empty recorder scoped to a session and turn.
func NewRecorder(sessionID string, turnID uint64) *Recorder {
	return &Recorder{sessionID: sessionID, turnID: turnID, now: time.Now}
}

// SetClock overrides the wall-clock source. Nil restores time.Now.
func (r *Recorder) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	r.now = now
}

// Collect validates the request and appends a delta with the next
// sequence number and a derived id.
func (r *Recorder) Collect(req Request) (Delta, error) {
	if !req.Target.IsValid() {
		return Delta{}, ErrInvalidTarget
	}
	if !req.Op.IsValid() {
		return Delta{}, ErrInvalidOp
	}
	if len(req.Path) == 0 {
		return Delta{}, ErrEmptyPath
	}
	eventID := strings.TrimSpace(req.EventID)
	if eventID == "" {
		return Delta{}, ErrUnthreadedEvent
	}
	if r.HasEvent != nil && !r.HasEvent(eventID) {
		return Delta{}, ErrUnthreadedEvent
	}

	seq := uint64(len(r.deltas)) + 1
	path := make([]string, len(req.Path))
	copy(path, req.Path)

	d := Delta{
		ID:        fmt.Sprintf("%s-%d-%d", r.sessionID, r.turnID, seq),
		SessionID: r.sessionID,
		TurnID:    r.turnID,
		Seq:       seq,
		Timestamp: r.now().UTC(),
		Target:    req.Target,
		Op:        req.Op,
		Path:      path,
		Previous:  req.Previous,
		Value:     req.Value,
		Cause:     req.Cause,
		EventID:   eventID,
	}
	r.deltas = append(r.deltas, d)
	return d, nil
}

// Deltas returns a snapshot of everything recorded so far, in order.
// Mutating the returned slice does not affect the recorder.
func (r *Recorder) Deltas() []Delta {
	out := make([]Delta, len(r.deltas))
	copy(out, r.deltas)
	return out
}

// Len returns the number of recorded deltas.
func (r *Recorder) Len() int {
	return len(r.deltas)
}

// Clear empties the buffer. Sequence numbering restarts at 1.
func (r *Recorder) Clear() {
	r.deltas = nil
}
