// Package session orchestrates one game session: the turn lifecycle
// from dice roll to persisted record, and resume from the store.
//
// A turn flows roll -> resolve -> events -> deltas -> live apply, and
// nothing touches the store until EndTurn. A failed state mutation
// aborts the whole turn and rolls the live tree back to its start-of-
// turn checkpoint, so the persisted delta log only ever contains turns
// that applied cleanly end to end.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/emberwake.world/internal/core/dice"
	"github.com/louisbranch/emberwake.world/internal/core/resolve"
	apperrors "github.com/louisbranch/emberwake.world/internal/errors"
	"github.com/louisbranch/emberwake.world/internal/id"
	"github.com/louisbranch/emberwake.world/internal/narrative"
	"github.com/louisbranch/emberwake.world/internal/random"
	"github.com/louisbranch/emberwake.world/internal/state/delta"
	"github.com/louisbranch/emberwake.world/internal/state/faction"
	"github.com/louisbranch/emberwake.world/internal/state/gametime"
	"github.com/louisbranch/emberwake.world/internal/state/quest"
	"github.com/louisbranch/emberwake.world/internal/state/replay"
	"github.com/louisbranch/emberwake.world/internal/state/turn"
	"github.com/louisbranch/emberwake.world/internal/state/world"
	"github.com/louisbranch/emberwake.world/internal/storage"
	"github.com/louisbranch/emberwake.world/internal/telemetry"
)

const tracerName = "emberwake.world/session"

// ErrSessionNotFound indicates a resume against a session with no
// persisted history.
var ErrSessionNotFound = apperrors.New(apperrors.CodeSessionNotFound, "session has no persisted history")

// Config carries the collaborators for a session service.
type Config struct {
	// SessionID identifies the session. Empty generates a new id.
	SessionID string
	// Seed drives every random draw. Zero generates a fresh seed.
	Seed int64
	// Store persists turns, deltas and snapshots. Required.
	Store storage.Store
	// Narrator produces turn prose. Nil skips narration.
	Narrator narrative.Narrator
	// Emitter records operational telemetry. Nil is silent.
	Emitter *telemetry.Emitter
}

// Service drives one session. It is not safe for concurrent use; each
// session has exactly one caller.
type Service struct {
	sessionID string
	seed      int64
	store     storage.Store
	narrator  narrative.Narrator
	emitter   *telemetry.Emitter
	tracer    trace.Tracer
	now       func() time.Time

	gen      *random.Generator
	state    *world.State
	ledger   *turn.Ledger
	quests   *quest.Machine
	factions *faction.Ledger
	clock    gametime.Time

	active     *turn.Turn
	recorder   *delta.Recorder
	checkpoint []byte
	span       trace.Span
	lastTurn   uint64
	lastSeq    uint64
}

// New creates a fresh session with empty state.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	sessionID := strings.TrimSpace(cfg.SessionID)
	if sessionID == "" {
		generated, err := id.NewID()
		if err != nil {
			return nil, fmt.Errorf("generate session id: %w", err)
		}
		sessionID = generated
	}
	seed := cfg.Seed
	if seed == 0 {
		generated, err := random.NewSeed()
		if err != nil {
			return nil, fmt.Errorf("generate seed: %w", err)
		}
		seed = generated
	}

	return &Service{
		sessionID: sessionID,
		seed:      seed,
		store:     cfg.Store,
		narrator:  cfg.Narrator,
		emitter:   cfg.Emitter,
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
		gen:       random.NewGenerator(seed),
		state:     world.NewState(),
		ledger:    turn.NewLedger(),
		quests:    quest.NewMachine(),
		factions:  faction.NewLedger(),
		clock:     gametime.Start(),
	}, nil
}

// Load resumes a persisted session: snapshot first, then the delta log
// tail, with the log authoritative over the snapshot.
func Load(ctx context.Context, cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	sessionID := strings.TrimSpace(cfg.SessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	state := world.NewState()
	var afterTurn, afterSeq uint64

	snap, err := cfg.Store.GetSnapshot(ctx, sessionID)
	switch {
	case err == nil:
		state = snap.State
		afterTurn = snap.LastTurn
		afterSeq = snap.LastSeq
	case errors.Is(err, storage.ErrNotFound):
		// Cold replay from the first delta.
	default:
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	result, err := replay.Replay(ctx, cfg.Store, sessionID, state, replay.Options{
		AfterTurn: afterTurn,
		AfterSeq:  afterSeq,
	})
	if err != nil {
		return nil, fmt.Errorf("replay delta log: %w", err)
	}

	lastTurnID, err := cfg.Store.LastTurnID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("last turn id: %w", err)
	}
	if lastTurnID == 0 && result.Applied == 0 && afterTurn == 0 {
		return nil, ErrSessionNotFound
	}

	seed := cfg.Seed
	if seed == 0 {
		generated, err := random.NewSeed()
		if err != nil {
			return nil, fmt.Errorf("generate seed: %w", err)
		}
		seed = generated
	}

	s := &Service{
		sessionID: sessionID,
		seed:      seed,
		store:     cfg.Store,
		narrator:  cfg.Narrator,
		emitter:   cfg.Emitter,
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
		gen:       random.NewGenerator(seed),
		state:     state,
		ledger:    turn.NewLedgerAt(lastTurnID),
		quests:    quest.NewMachine(),
		factions:  faction.NewLedger(),
		clock:     gametime.Start(),
	}
	s.lastTurn = result.LastTurn
	s.lastSeq = result.LastSeq

	if err := s.rebuildFromState(); err != nil {
		return nil, fmt.Errorf("rebuild projections: %w", err)
	}
	s.emitInfo(ctx, "session", "session resumed", map[string]string{
		"last_turn": strconv.FormatUint(s.lastTurn, 10),
		"applied":   strconv.Itoa(result.Applied),
	})
	return s, nil
}

// SessionID returns the session identifier.
func (s *Service) SessionID() string { return s.sessionID }

// Seed returns the seed driving the session's random draws.
func (s *Service) Seed() int64 { return s.seed }

// State returns the live state tree. Callers must treat it as read-only;
// all mutations go through MutateState.
func (s *Service) State() *world.State { return s.state }

// Clock returns the current in-fiction time.
func (s *Service) Clock() gametime.Time { return s.clock }

// Quests returns the quest log.
func (s *Service) Quests() []quest.Quest { return s.quests.List() }

// XP returns the accumulated quest experience.
func (s *Service) XP() int { return s.quests.XP() }

// Milestone returns the milestone tier reached by accumulated XP.
func (s *Service) Milestone() quest.MilestoneTier { return s.quests.Milestone() }

// Factions returns the faction roster.
func (s *Service) Factions() []faction.Faction { return s.factions.List() }

// SetClockSource overrides the wall-clock source for tests.
func (s *Service) SetClockSource(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	s.now = now
	s.ledger.SetClock(now)
	if s.recorder != nil {
		s.recorder.SetClock(now)
	}
}

// StartTurn opens a turn for the actor in the scene. The live state is
// checkpointed so a failed mutation can roll the whole turn back.
func (s *Service) StartTurn(ctx context.Context, actor, sceneID string) (*turn.Turn, error) {
	checkpoint, err := json.Marshal(s.state)
	if err != nil {
		return nil, fmt.Errorf("checkpoint state: %w", err)
	}

	t, err := s.ledger.StartTurn(actor, sceneID, s.clock)
	if err != nil {
		return nil, err
	}
	s.active = t
	s.checkpoint = checkpoint
	s.recorder = delta.NewRecorder(s.sessionID, t.ID)
	s.recorder.SetClock(s.now)
	s.recorder.HasEvent = t.HasEvent

	_, span := s.tracer.Start(ctx, "session.turn",
		trace.WithAttributes(
			attribute.String("session.id", s.sessionID),
			attribute.Int64("turn.id", int64(t.ID)),
			attribute.String("turn.actor", actor),
		),
	)
	s.span = span
	return t, nil
}

// ActionInput describes one resolved player or NPC action.
type ActionInput struct {
	// Actor defaults to the turn's actor when empty.
	Actor string
	// Action is a short label for the attempt.
	Action string
	// Target optionally names what the action is directed at.
	Target string
	// Skill names the skill being tested.
	Skill string
	// Rating is the actor's skill rating.
	Rating int
	// Difficulty is the opposition.
	Difficulty int
	// Invokes are aspect invocations spent on the check.
	Invokes []resolve.Invoke
	// Description is optional free prose.
	Description string
}

// PerformAction rolls, resolves against difficulty, and appends the
// skill check event. Randomness comes only from the session generator,
// so identical seeds and call orders reproduce identical outcomes.
func (s *Service) PerformAction(ctx context.Context, input ActionInput) (resolve.Result, turn.Event, error) {
	if s.active == nil {
		return resolve.Result{}, turn.Event{}, turn.ErrNoActiveTurn
	}

	roll := dice.RollDice(s.gen)
	result := resolve.Resolve(s.gen, roll, input.Rating, input.Difficulty, input.Invokes)

	difficulty := input.Difficulty
	rollTotal := result.Roll.Total
	shifts := result.Shifts
	evt, err := s.ledger.AddEvent(s.active, turn.EventInput{
		Kind:        turn.KindSkillCheck,
		Actor:       input.Actor,
		Target:      input.Target,
		Action:      input.Action,
		Skill:       input.Skill,
		Difficulty:  &difficulty,
		RollTotal:   &rollTotal,
		Shifts:      &shifts,
		Description: input.Description,
		Metadata:    map[string]any{"tier": string(result.Tier)},
	})
	if err != nil {
		return resolve.Result{}, turn.Event{}, err
	}
	return result, evt, nil
}

// RecordEvent appends an arbitrary event to the active turn.
func (s *Service) RecordEvent(ctx context.Context, input turn.EventInput) (turn.Event, error) {
	if s.active == nil {
		return turn.Event{}, turn.ErrNoActiveTurn
	}
	return s.ledger.AddEvent(s.active, input)
}

// MutateState records a delta threaded to one of the turn's events and
// applies it to the live tree. On apply failure the turn is aborted and
// the live tree restored to its start-of-turn checkpoint.
func (s *Service) MutateState(ctx context.Context, req delta.Request) (delta.Delta, error) {
	if s.active == nil {
		return delta.Delta{}, turn.ErrNoActiveTurn
	}

	d, err := s.recorder.Collect(req)
	if err != nil {
		return delta.Delta{}, err
	}
	if err := world.Apply(s.state, d); err != nil {
		abortErr := s.abortTurn(ctx, err)
		if abortErr != nil {
			return delta.Delta{}, fmt.Errorf("abort after apply failure: %w", abortErr)
		}
		return delta.Delta{}, fmt.Errorf("apply delta %s: %w", d.ID, err)
	}
	return d, nil
}

// AbortTurn discards the active turn: no events or deltas persist and
// the live tree rolls back to its start-of-turn checkpoint.
func (s *Service) AbortTurn(ctx context.Context) error {
	if s.active == nil {
		return turn.ErrNoActiveTurn
	}
	return s.abortTurn(ctx, nil)
}

func (s *Service) abortTurn(ctx context.Context, cause error) error {
	restored := world.NewState()
	if err := json.Unmarshal(s.checkpoint, restored); err != nil {
		return fmt.Errorf("restore checkpoint: %w", err)
	}
	if err := s.ledger.AbortTurn(s.active); err != nil {
		return err
	}
	s.state = restored
	turnID := s.active.ID
	s.active = nil
	s.recorder = nil
	s.checkpoint = nil
	s.endSpan()

	metadata := map[string]string{"turn": strconv.FormatUint(turnID, 10)}
	if cause != nil {
		metadata["cause"] = cause.Error()
	}
	s.emitWarn(ctx, "session", "turn aborted", metadata)
	return nil
}

// EndTurn narrates, finalizes, and persists the turn: the turn record,
// every recorded delta, and a refreshed snapshot stamped with the last
// delta folded in.
func (s *Service) EndTurn(ctx context.Context) (turn.Turn, error) {
	if s.active == nil {
		return turn.Turn{}, turn.ErrNoActiveTurn
	}

	if s.narrator != nil && len(s.active.Events) > 0 {
		prose, err := s.narrator.Narrate(ctx, s.active.Events)
		if err != nil {
			s.emitWarn(ctx, "narrative", "narration skipped", map[string]string{"cause": err.Error()})
		} else if prose != "" {
			if _, err := s.ledger.AddEvent(s.active, turn.EventInput{
				Kind:        turn.KindNarrative,
				Description: prose,
			}); err != nil {
				return turn.Turn{}, fmt.Errorf("append narration: %w", err)
			}
		}
	}

	deltas := s.recorder.Deltas()
	done, err := s.ledger.FinalizeTurn(s.active)
	if err != nil {
		return turn.Turn{}, err
	}
	s.active = nil
	s.recorder = nil
	s.checkpoint = nil

	if err := s.store.AppendTurn(ctx, s.sessionID, done); err != nil {
		s.endSpan()
		return turn.Turn{}, fmt.Errorf("persist turn %d: %w", done.ID, err)
	}
	for _, d := range deltas {
		if err := s.store.AppendDelta(ctx, d); err != nil {
			s.endSpan()
			return turn.Turn{}, fmt.Errorf("persist delta %s: %w", d.ID, err)
		}
	}

	s.lastTurn = done.ID
	s.lastSeq = uint64(len(deltas))
	snap := storage.Snapshot{
		SessionID: s.sessionID,
		State:     s.state,
		LastTurn:  s.lastTurn,
		LastSeq:   s.lastSeq,
		SavedAt:   s.now().UTC(),
	}
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		// The log is authoritative; a stale snapshot is caught up on load.
		s.emitWarn(ctx, "session", "snapshot save failed", map[string]string{"cause": err.Error()})
	}

	if s.span != nil {
		s.span.SetAttributes(
			attribute.Int("turn.events", len(done.Events)),
			attribute.Int("turn.deltas", len(deltas)),
		)
	}
	s.endSpan()
	s.emitInfo(ctx, "session", "turn finalized", map[string]string{
		"turn":   strconv.FormatUint(done.ID, 10),
		"events": strconv.Itoa(len(done.Events)),
		"deltas": strconv.Itoa(len(deltas)),
	})
	return done, nil
}

// AdvanceTime moves the in-fiction clock one band forward, recording
// the system event and the time delta.
func (s *Service) AdvanceTime(ctx context.Context) (gametime.Time, error) {
	if s.active == nil {
		return gametime.Time{}, turn.ErrNoActiveTurn
	}

	next := s.clock.Advance()
	evt, err := s.ledger.AddEvent(s.active, turn.EventInput{
		Kind:        turn.KindSystem,
		Action:      "advance_time",
		Description: fmt.Sprintf("day %d, %s", next.Day, next.Band),
	})
	if err != nil {
		return gametime.Time{}, err
	}
	value, err := jsonValue(next)
	if err != nil {
		return gametime.Time{}, err
	}
	previous, err := jsonValue(s.clock)
	if err != nil {
		return gametime.Time{}, err
	}
	if _, err := s.MutateState(ctx, delta.Request{
		Target:   delta.TargetTime,
		Op:       delta.OpSet,
		Path:     []string{"clock"},
		Previous: previous,
		Value:    value,
		Cause:    "time advanced",
		EventID:  evt.ID,
	}); err != nil {
		return gametime.Time{}, err
	}
	s.clock = next
	return next, nil
}

func (s *Service) endSpan() {
	if s.span != nil {
		s.span.End()
		s.span = nil
	}
}

func (s *Service) emitInfo(ctx context.Context, component, message string, metadata map[string]string) {
	if s.emitter == nil {
		return
	}
	_ = s.emitter.Info(ctx, s.sessionID, component, message, metadata)
}

func (s *Service) emitWarn(ctx context.Context, component, message string, metadata map[string]string) {
	if s.emitter == nil {
		return
	}
	_ = s.emitter.Warn(ctx, s.sessionID, component, message, metadata)
}

// jsonValue round-trips a value through JSON so recorded deltas hold
// the same shape a cold replay reads back from the store.
func jsonValue(v any) (any, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode delta value: %w", err)
	}
	var out any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, fmt.Errorf("decode delta value: %w", err)
	}
	return out, nil
}
