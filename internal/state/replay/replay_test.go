package replay

import (
	"context"
	"errors"
	"reflect"
	"testing"

	apperrors "github.com/louisbranch/emberwake.world/internal/errors"
	"github.com/louisbranch/emberwake.world/internal/state/delta"
	"github.com/louisbranch/emberwake.world/internal/state/world"
)

type fakeStore struct {
	deltas []delta.Delta
	calls  int
}

func (f *fakeStore) ListDeltas(_ context.Context, sessionID string, afterTurn, afterSeq uint64, limit int) ([]delta.Delta, error) {
	f.calls++
	var out []delta.Delta
	for _, d := range f.deltas {
		if d.SessionID != sessionID {
			continue
		}
		if d.TurnID < afterTurn || (d.TurnID == afterTurn && d.Seq <= afterSeq) {
			continue
		}
		out = append(out, d)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func sampleLog() []delta.Delta {
	return []delta.Delta{
		{ID: "s-1-1", SessionID: "s", TurnID: 1, Seq: 1, Target: delta.TargetPlayer, Op: delta.OpSet, Path: []string{"name"}, Value: "Hale"},
		{ID: "s-1-2", SessionID: "s", TurnID: 1, Seq: 2, Target: delta.TargetPlayer, Op: delta.OpIncrement, Path: []string{"fate_points"}, Value: 3},
		{ID: "s-2-1", SessionID: "s", TurnID: 2, Seq: 1, Target: delta.TargetInventory, Op: delta.OpAppend, Path: []string{"carried"}, Value: "rope"},
		{ID: "s-4-1", SessionID: "s", TurnID: 4, Seq: 1, Target: delta.TargetWorld, Op: delta.OpSet, Path: []string{"alert"}, Value: true},
	}
}

func TestReplayAppliesWholeLog(t *testing.T) {
	store := &fakeStore{deltas: sampleLog()}
	state := world.NewState()

	result, err := Replay(context.Background(), store, "s", state, Options{})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if result.Applied != 4 {
		t.Fatalf("applied = %d, want 4", result.Applied)
	}
	if result.LastTurn != 4 || result.LastSeq != 1 {
		t.Fatalf("cursor = (%d,%d), want (4,1)", result.LastTurn, result.LastSeq)
	}
	if state.Player["name"] != "Hale" || state.World["alert"] != true {
		t.Fatalf("log not applied: %#v", state)
	}
}

func TestReplayPaginates(t *testing.T) {
	store := &fakeStore{deltas: sampleLog()}
	result, err := Replay(context.Background(), store, "s", world.NewState(), Options{PageSize: 1})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if result.Applied != 4 {
		t.Fatalf("applied = %d, want 4", result.Applied)
	}
	// Four single-delta pages plus the final empty one.
	if store.calls != 5 {
		t.Fatalf("store calls = %d, want 5", store.calls)
	}
}

func TestReplayMatchesRepeatedReplay(t *testing.T) {
	store := &fakeStore{deltas: sampleLog()}
	a := world.NewState()
	b := world.NewState()
	if _, err := Replay(context.Background(), store, "s", a, Options{}); err != nil {
		t.Fatalf("replay a: %v", err)
	}
	if _, err := Replay(context.Background(), store, "s", b, Options{}); err != nil {
		t.Fatalf("replay b: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("replays diverged:\n%#v\n%#v", a, b)
	}
}

func TestReplayFromCursorSkipsApplied(t *testing.T) {
	store := &fakeStore{deltas: sampleLog()}
	state := world.NewState()
	result, err := Replay(context.Background(), store, "s", state, Options{AfterTurn: 1, AfterSeq: 2})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if result.Applied != 2 {
		t.Fatalf("applied = %d, want 2", result.Applied)
	}
	if _, ok := state.Player["name"]; ok {
		t.Fatal("cursor did not skip turn 1 deltas")
	}
}

func TestReplayUntilTurn(t *testing.T) {
	store := &fakeStore{deltas: sampleLog()}
	state := world.NewState()
	result, err := Replay(context.Background(), store, "s", state, Options{UntilTurn: 2})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if result.Applied != 3 {
		t.Fatalf("applied = %d, want 3", result.Applied)
	}
	if _, ok := state.World["alert"]; ok {
		t.Fatal("delta beyond until-turn was applied")
	}
}

func TestReplayDetectsSequenceGap(t *testing.T) {
	log := sampleLog()
	log[1].Seq = 3 // gap: turn 1 jumps 1 -> 3
	store := &fakeStore{deltas: log}

	_, err := Replay(context.Background(), store, "s", world.NewState(), Options{})
	if !apperrors.IsCode(err, apperrors.CodeDeltaSequenceGap) {
		t.Fatalf("expected sequence gap error, got %v", err)
	}
}

func TestReplayDetectsMidTurnStart(t *testing.T) {
	store := &fakeStore{deltas: []delta.Delta{
		{ID: "s-1-2", SessionID: "s", TurnID: 1, Seq: 2, Target: delta.TargetWorld, Op: delta.OpSet, Path: []string{"x"}, Value: 1},
	}}
	_, err := Replay(context.Background(), store, "s", world.NewState(), Options{})
	if !apperrors.IsCode(err, apperrors.CodeDeltaSequenceGap) {
		t.Fatalf("expected sequence gap error, got %v", err)
	}
}

func TestReplayInputValidation(t *testing.T) {
	store := &fakeStore{}
	if _, err := Replay(context.Background(), nil, "s", world.NewState(), Options{}); !errors.Is(err, ErrStoreRequired) {
		t.Fatalf("expected ErrStoreRequired, got %v", err)
	}
	if _, err := Replay(context.Background(), store, "s", nil, Options{}); !errors.Is(err, ErrStateRequired) {
		t.Fatalf("expected ErrStateRequired, got %v", err)
	}
	if _, err := Replay(context.Background(), store, "  ", world.NewState(), Options{}); !errors.Is(err, ErrSessionIDRequired) {
		t.Fatalf("expected ErrSessionIDRequired, got %v", err)
	}
}
