// Package sqlite provides the SQLite-backed session store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/emberwake.world/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/emberwake.world/internal/state/delta"
	"github.com/louisbranch/emberwake.world/internal/state/turn"
	"github.com/louisbranch/emberwake.world/internal/state/world"
	"github.com/louisbranch/emberwake.world/internal/storage"
	"github.com/louisbranch/emberwake.world/internal/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for turns, deltas,
// snapshots, and telemetry.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the session SQLite store and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// AppendTurn persists one finalized turn record.
func (s *Store) AppendTurn(ctx context.Context, sessionID string, t turn.Turn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if t.Number == 0 {
		return fmt.Errorf("turn number is required")
	}

	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO turns (session_id, turn_id, payload, created_at)
VALUES (?, ?, ?, ?)
`,
		sessionID,
		int64(t.Number),
		string(payload),
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// GetTurn loads one persisted turn record.
func (s *Store) GetTurn(ctx context.Context, sessionID string, turnID uint64) (turn.Turn, error) {
	if err := ctx.Err(); err != nil {
		return turn.Turn{}, err
	}
	if s == nil || s.sqlDB == nil {
		return turn.Turn{}, fmt.Errorf("storage is not configured")
	}

	var payload string
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT payload FROM turns WHERE session_id = ? AND turn_id = ?
`, sessionID, int64(turnID)).Scan(&payload)
	if err == sql.ErrNoRows {
		return turn.Turn{}, storage.ErrNotFound
	}
	if err != nil {
		return turn.Turn{}, fmt.Errorf("get turn: %w", err)
	}

	var t turn.Turn
	if err := json.Unmarshal([]byte(payload), &t); err != nil {
		return turn.Turn{}, fmt.Errorf("unmarshal turn: %w", err)
	}
	return t, nil
}

// ListTurns returns turns ordered by turn id, strictly after afterTurn.
func (s *Store) ListTurns(ctx context.Context, sessionID string, afterTurn uint64, limit int) ([]turn.Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT payload FROM turns
WHERE session_id = ? AND turn_id > ?
ORDER BY turn_id ASC
LIMIT ?
`, sessionID, int64(afterTurn), limit)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []turn.Turn
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		var t turn.Turn
		if err := json.Unmarshal([]byte(payload), &t); err != nil {
			return nil, fmt.Errorf("unmarshal turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows: %w", err)
	}
	return turns, nil
}

// LastTurnID returns the highest persisted turn id, zero when the
// session has no turns.
func (s *Store) LastTurnID(ctx context.Context, sessionID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	var last sql.NullInt64
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT MAX(turn_id) FROM turns WHERE session_id = ?
`, sessionID).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("last turn id: %w", err)
	}
	if !last.Valid {
		return 0, nil
	}
	return uint64(last.Int64), nil
}

// AppendDelta persists one delta record.
func (s *Store) AppendDelta(ctx context.Context, d delta.Delta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(d.SessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	if d.TurnID == 0 {
		return fmt.Errorf("turn id is required")
	}
	if d.Seq == 0 {
		return fmt.Errorf("sequence is required")
	}

	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal delta: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO deltas (session_id, turn_id, seq, event_id, payload, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`,
		d.SessionID,
		int64(d.TurnID),
		int64(d.Seq),
		d.EventID,
		string(payload),
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("append delta: %w", err)
	}
	return nil
}

// ListDeltas returns deltas ordered by turn then sequence, strictly
// after the (afterTurn, afterSeq) cursor.
func (s *Store) ListDeltas(ctx context.Context, sessionID string, afterTurn, afterSeq uint64, limit int) ([]delta.Delta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT payload FROM deltas
WHERE session_id = ?
  AND (turn_id > ? OR (turn_id = ? AND seq > ?))
ORDER BY turn_id ASC, seq ASC
LIMIT ?
`, sessionID, int64(afterTurn), int64(afterTurn), int64(afterSeq), limit)
	if err != nil {
		return nil, fmt.Errorf("list deltas: %w", err)
	}
	defer rows.Close()

	var deltas []delta.Delta
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan delta row: %w", err)
		}
		var d delta.Delta
		if err := json.Unmarshal([]byte(payload), &d); err != nil {
			return nil, fmt.Errorf("unmarshal delta: %w", err)
		}
		deltas = append(deltas, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate delta rows: %w", err)
	}
	return deltas, nil
}

// SaveSnapshot persists the snapshot, replacing any prior snapshot for
// the session.
func (s *Store) SaveSnapshot(ctx context.Context, snap storage.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(snap.SessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	if snap.State == nil {
		return fmt.Errorf("snapshot state is required")
	}
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now().UTC()
	}

	state, err := json.Marshal(snap.State)
	if err != nil {
		return fmt.Errorf("marshal snapshot state: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO snapshots (session_id, last_turn, last_seq, state, saved_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (session_id) DO UPDATE SET
    last_turn = excluded.last_turn,
    last_seq = excluded.last_seq,
    state = excluded.state,
    saved_at = excluded.saved_at
`,
		snap.SessionID,
		int64(snap.LastTurn),
		int64(snap.LastSeq),
		string(state),
		snap.SavedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// GetSnapshot loads the session's snapshot.
func (s *Store) GetSnapshot(ctx context.Context, sessionID string) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.Snapshot{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Snapshot{}, fmt.Errorf("storage is not configured")
	}

	var (
		lastTurn  int64
		lastSeq   int64
		statePay  string
		savedAtMs int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT last_turn, last_seq, state, saved_at
FROM snapshots WHERE session_id = ?
`, sessionID).Scan(&lastTurn, &lastSeq, &statePay, &savedAtMs)
	if err == sql.ErrNoRows {
		return storage.Snapshot{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}

	state := world.NewState()
	if err := json.Unmarshal([]byte(statePay), state); err != nil {
		return storage.Snapshot{}, fmt.Errorf("unmarshal snapshot state: %w", err)
	}
	return storage.Snapshot{
		SessionID: sessionID,
		State:     state,
		LastTurn:  uint64(lastTurn),
		LastSeq:   uint64(lastSeq),
		SavedAt:   time.UnixMilli(savedAtMs).UTC(),
	}, nil
}

// AppendTelemetryEvent persists one operational telemetry event.
func (s *Store) AppendTelemetryEvent(ctx context.Context, evt storage.TelemetryEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	evt.Component = strings.TrimSpace(evt.Component)
	evt.Message = strings.TrimSpace(evt.Message)
	if evt.Component == "" {
		return fmt.Errorf("component is required")
	}
	if evt.Message == "" {
		return fmt.Errorf("message is required")
	}
	if evt.Severity == "" {
		evt.Severity = storage.TelemetrySeverityInfo
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	metadata := "{}"
	if len(evt.Metadata) > 0 {
		encoded, err := json.Marshal(evt.Metadata)
		if err != nil {
			return fmt.Errorf("marshal telemetry metadata: %w", err)
		}
		metadata = string(encoded)
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO telemetry_events (timestamp, severity, session_id, component, message, metadata)
VALUES (?, ?, ?, ?, ?, ?)
`,
		evt.Timestamp.UTC().UnixMilli(),
		string(evt.Severity),
		evt.SessionID,
		evt.Component,
		evt.Message,
		metadata,
	)
	if err != nil {
		return fmt.Errorf("append telemetry event: %w", err)
	}
	return nil
}
