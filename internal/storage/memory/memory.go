// Package memory provides an in-memory store for tests and ephemeral
// sessions.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/louisbranch/emberwake.world/internal/state/delta"
	"github.com/louisbranch/emberwake.world/internal/state/turn"
	"github.com/louisbranch/emberwake.world/internal/state/world"
	"github.com/louisbranch/emberwake.world/internal/storage"
)

// Store keeps every record in process memory. It is safe for concurrent
// use, though a single session is expected to have a single writer.
type Store struct {
	mu        sync.Mutex
	turns     map[string][]turn.Turn
	deltas    map[string][]delta.Delta
	snapshots map[string]storage.Snapshot
	telemetry []storage.TelemetryEvent
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		turns:     make(map[string][]turn.Turn),
		deltas:    make(map[string][]delta.Delta),
		snapshots: make(map[string]storage.Snapshot),
	}
}

// AppendTurn stores a finalized turn record.
func (s *Store) AppendTurn(ctx context.Context, sessionID string, t turn.Turn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[sessionID] = append(s.turns[sessionID], t)
	return nil
}

// GetTurn returns one turn record.
func (s *Store) GetTurn(ctx context.Context, sessionID string, turnID uint64) (turn.Turn, error) {
	if err := ctx.Err(); err != nil {
		return turn.Turn{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.turns[sessionID] {
		if t.ID == turnID {
			return t, nil
		}
	}
	return turn.Turn{}, storage.ErrNotFound
}

// ListTurns returns turns ordered by id, strictly after afterTurn.
func (s *Store) ListTurns(ctx context.Context, sessionID string, afterTurn uint64, limit int) ([]turn.Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	all := append([]turn.Turn(nil), s.turns[sessionID]...)
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	var out []turn.Turn
	for _, t := range all {
		if t.ID <= afterTurn {
			continue
		}
		out = append(out, t)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// LastTurnID returns the highest stored turn id, zero when none.
func (s *Store) LastTurnID(ctx context.Context, sessionID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var last uint64
	for _, t := range s.turns[sessionID] {
		if t.ID > last {
			last = t.ID
		}
	}
	return last, nil
}

// AppendDelta stores one delta record.
func (s *Store) AppendDelta(ctx context.Context, d delta.Delta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deltas[d.SessionID] = append(s.deltas[d.SessionID], d)
	return nil
}

// ListDeltas returns deltas ordered by (turn, seq) after the cursor.
func (s *Store) ListDeltas(ctx context.Context, sessionID string, afterTurn, afterSeq uint64, limit int) ([]delta.Delta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	all := append([]delta.Delta(nil), s.deltas[sessionID]...)
	sort.Slice(all, func(i, j int) bool {
		if all[i].TurnID != all[j].TurnID {
			return all[i].TurnID < all[j].TurnID
		}
		return all[i].Seq < all[j].Seq
	})

	var out []delta.Delta
	for _, d := range all {
		if d.TurnID < afterTurn || (d.TurnID == afterTurn && d.Seq <= afterSeq) {
			continue
		}
		out = append(out, d)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// SaveSnapshot overwrites the session's snapshot wholesale. The state
// tree is deep-copied so later live mutations do not leak into the
// saved capture.
func (s *Store) SaveSnapshot(ctx context.Context, snap storage.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	copied, err := copySnapshot(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.SessionID] = copied
	return nil
}

// GetSnapshot returns a deep copy of the session's snapshot.
func (s *Store) GetSnapshot(ctx context.Context, sessionID string) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.Snapshot{}, err
	}
	s.mu.Lock()
	snap, ok := s.snapshots[sessionID]
	s.mu.Unlock()
	if !ok {
		return storage.Snapshot{}, storage.ErrNotFound
	}
	return copySnapshot(snap)
}

// AppendTelemetryEvent stores one telemetry event.
func (s *Store) AppendTelemetryEvent(ctx context.Context, evt storage.TelemetryEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telemetry = append(s.telemetry, evt)
	return nil
}

// TelemetryEvents returns everything recorded so far, for tests.
func (s *Store) TelemetryEvents() []storage.TelemetryEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storage.TelemetryEvent(nil), s.telemetry...)
}

// Close releases nothing; it exists to satisfy storage.Store.
func (s *Store) Close() error {
	return nil
}

func copySnapshot(snap storage.Snapshot) (storage.Snapshot, error) {
	if snap.State == nil {
		return snap, nil
	}
	raw, err := json.Marshal(snap.State)
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("copy snapshot state: %w", err)
	}
	var state world.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return storage.Snapshot{}, fmt.Errorf("copy snapshot state: %w", err)
	}
	out := snap
	out.State = &state
	return out, nil
}
