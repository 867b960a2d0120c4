// Package storage defines the persistence interfaces for the engine.
//
// It provides the durable turn/delta store consumed by the session
// service: append-only turn records, append-only delta records, and
// whole-state snapshots that are overwritten wholesale on save. The
// delta log is the authoritative history; snapshots are a derived cache
// stamped with the last delta they contain. Implementations (in-memory,
// SQLite) live in subpackages.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/emberwake.world/internal/state/delta"
	"github.com/louisbranch/emberwake.world/internal/state/turn"
	"github.com/louisbranch/emberwake.world/internal/state/world"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// TurnStore persists finalized turn records, one JSON document per turn.
type TurnStore interface {
	AppendTurn(ctx context.Context, sessionID string, t turn.Turn) error
	GetTurn(ctx context.Context, sessionID string, turnID uint64) (turn.Turn, error)
	ListTurns(ctx context.Context, sessionID string, afterTurn uint64, limit int) ([]turn.Turn, error)
	// LastTurnID returns the highest persisted turn id, zero when the
	// session has no turns.
	LastTurnID(ctx context.Context, sessionID string) (uint64, error)
}

// DeltaStore persists the append-only delta log.
type DeltaStore interface {
	AppendDelta(ctx context.Context, d delta.Delta) error
	// ListDeltas returns deltas ordered by turn then sequence, strictly
	// after the (afterTurn, afterSeq) cursor.
	ListDeltas(ctx context.Context, sessionID string, afterTurn, afterSeq uint64, limit int) ([]delta.Delta, error)
}

// Snapshot is a whole-state capture of a session, stamped with the last
// delta folded into it.
type Snapshot struct {
	SessionID string       `json:"session_id"`
	State     *world.State `json:"state"`
	LastTurn  uint64       `json:"last_turn"`
	LastSeq   uint64       `json:"last_seq"`
	SavedAt   time.Time    `json:"saved_at"`
}

// SnapshotStore persists whole-state snapshots, overwritten wholesale.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) error
	GetSnapshot(ctx context.Context, sessionID string) (Snapshot, error)
}

// TelemetrySeverity describes the telemetry severity level.
type TelemetrySeverity string

const (
	TelemetrySeverityInfo  TelemetrySeverity = "INFO"
	TelemetrySeverityWarn  TelemetrySeverity = "WARN"
	TelemetrySeverityError TelemetrySeverity = "ERROR"
)

// TelemetryEvent records one operational occurrence.
type TelemetryEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	Severity  TelemetrySeverity `json:"severity"`
	SessionID string            `json:"session_id,omitempty"`
	Component string            `json:"component"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// TelemetryStore persists operational telemetry events.
type TelemetryStore interface {
	AppendTelemetryEvent(ctx context.Context, evt TelemetryEvent) error
}

// Store aggregates every persistence concern a session needs.
type Store interface {
	TurnStore
	DeltaStore
	SnapshotStore
	TelemetryStore
	Close() error
}
