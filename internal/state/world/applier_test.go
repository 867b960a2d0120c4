package world

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/louisbranch/emberwake.world/internal/state/delta"
)

func mustApply(t *testing.T, s *State, d delta.Delta) {
	t.Helper()
	if err := Apply(s, d); err != nil {
		t.Fatalf("apply %+v: %v", d, err)
	}
}

func TestApplySetCreatesIntermediates(t *testing.T) {
	s := NewState()
	mustApply(t, s, delta.Delta{
		Target: delta.TargetPlayer,
		Op:     delta.OpSet,
		Path:   []string{"stats", "skills", "rapport"},
		Value:  3,
	})

	stats, ok := s.Player["stats"].(map[string]any)
	if !ok {
		t.Fatalf("stats subtree not created: %#v", s.Player)
	}
	skills, ok := stats["skills"].(map[string]any)
	if !ok {
		t.Fatalf("skills subtree not created: %#v", stats)
	}
	if skills["rapport"] != float64(3) {
		t.Fatalf("rapport = %#v, want 3", skills["rapport"])
	}
}

func TestApplyIncrementDecrement(t *testing.T) {
	s := NewState()
	inc := delta.Delta{Target: delta.TargetPlayer, Op: delta.OpIncrement, Path: []string{"fate_points"}, Value: 2}
	mustApply(t, s, inc)
	mustApply(t, s, inc)
	if s.Player["fate_points"] != float64(4) {
		t.Fatalf("fate_points = %#v, want 4", s.Player["fate_points"])
	}

	mustApply(t, s, delta.Delta{Target: delta.TargetPlayer, Op: delta.OpDecrement, Path: []string{"fate_points"}, Value: 3})
	if s.Player["fate_points"] != float64(1) {
		t.Fatalf("fate_points = %#v, want 1", s.Player["fate_points"])
	}

	// Absent fields default to zero.
	mustApply(t, s, delta.Delta{Target: delta.TargetWorld, Op: delta.OpDecrement, Path: []string{"alarm"}, Value: 1})
	if s.World["alarm"] != float64(-1) {
		t.Fatalf("alarm = %#v, want -1", s.World["alarm"])
	}
}

func TestApplyIncrementNonNumericFails(t *testing.T) {
	s := NewState()
	mustApply(t, s, delta.Delta{Target: delta.TargetPlayer, Op: delta.OpSet, Path: []string{"name"}, Value: "Hale"})
	err := Apply(s, delta.Delta{Target: delta.TargetPlayer, Op: delta.OpIncrement, Path: []string{"name"}, Value: 1})
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestApplyAppendInitializesList(t *testing.T) {
	s := NewState()
	mustApply(t, s, delta.Delta{Target: delta.TargetInventory, Op: delta.OpAppend, Path: []string{"carried"}, Value: "rope"})
	mustApply(t, s, delta.Delta{Target: delta.TargetInventory, Op: delta.OpAppend, Path: []string{"carried"}, Value: "lockpicks"})

	want := []any{"rope", "lockpicks"}
	if !reflect.DeepEqual(s.Inventory["carried"], want) {
		t.Fatalf("carried = %#v, want %#v", s.Inventory["carried"], want)
	}
}

func TestApplyRemoveFirstEqualFromList(t *testing.T) {
	s := NewState()
	for _, item := range []string{"rope", "torch", "rope"} {
		mustApply(t, s, delta.Delta{Target: delta.TargetInventory, Op: delta.OpAppend, Path: []string{"carried"}, Value: item})
	}
	mustApply(t, s, delta.Delta{Target: delta.TargetInventory, Op: delta.OpRemove, Path: []string{"carried"}, Value: "rope"})

	want := []any{"torch", "rope"}
	if !reflect.DeepEqual(s.Inventory["carried"], want) {
		t.Fatalf("carried = %#v, want %#v", s.Inventory["carried"], want)
	}
}

func TestApplyRemoveDeletesMapField(t *testing.T) {
	s := NewState()
	mustApply(t, s, delta.Delta{Target: delta.TargetNPC, Op: delta.OpSet, Path: []string{"korrin", "mood"}, Value: "wary"})
	mustApply(t, s, delta.Delta{Target: delta.TargetNPC, Op: delta.OpRemove, Path: []string{"korrin", "mood"}})

	korrin := s.NPCs["korrin"].(map[string]any)
	if _, ok := korrin["mood"]; ok {
		t.Fatalf("mood still present: %#v", korrin)
	}
}

func TestApplyRemoveMissingFieldIsNoOp(t *testing.T) {
	s := NewState()
	if err := Apply(s, delta.Delta{Target: delta.TargetNPC, Op: delta.OpRemove, Path: []string{"nobody"}}); err != nil {
		t.Fatalf("remove of absent field: %v", err)
	}
}

func TestApplyDeleteByIndex(t *testing.T) {
	s := NewState()
	for _, item := range []string{"a", "b", "c"} {
		mustApply(t, s, delta.Delta{Target: delta.TargetInventory, Op: delta.OpAppend, Path: []string{"carried"}, Value: item})
	}
	mustApply(t, s, delta.Delta{Target: delta.TargetInventory, Op: delta.OpDelete, Path: []string{"carried", "1"}})

	want := []any{"a", "c"}
	if !reflect.DeepEqual(s.Inventory["carried"], want) {
		t.Fatalf("carried = %#v, want %#v", s.Inventory["carried"], want)
	}
}

func TestApplyInsertAtIndex(t *testing.T) {
	s := NewState()
	for _, item := range []string{"a", "c"} {
		mustApply(t, s, delta.Delta{Target: delta.TargetInventory, Op: delta.OpAppend, Path: []string{"carried"}, Value: item})
	}
	mustApply(t, s, delta.Delta{Target: delta.TargetInventory, Op: delta.OpInsert, Path: []string{"carried", "1"}, Value: "b"})

	want := []any{"a", "b", "c"}
	if !reflect.DeepEqual(s.Inventory["carried"], want) {
		t.Fatalf("carried = %#v, want %#v", s.Inventory["carried"], want)
	}
}

func TestApplySetInsideListElement(t *testing.T) {
	s := NewState()
	mustApply(t, s, delta.Delta{Target: delta.TargetScene, Op: delta.OpAppend, Path: []string{"dock", "exits"}, Value: map[string]any{"to": "warehouse"}})
	mustApply(t, s, delta.Delta{Target: delta.TargetScene, Op: delta.OpSet, Path: []string{"dock", "exits", "0", "blocked"}, Value: true})

	exits := s.Scenes["dock"].(map[string]any)["exits"].([]any)
	exit := exits[0].(map[string]any)
	if exit["blocked"] != true || exit["to"] != "warehouse" {
		t.Fatalf("exit = %#v", exit)
	}
}

func TestApplyUnknownTargetIsTypedError(t *testing.T) {
	s := NewState()
	err := Apply(s, delta.Delta{Target: delta.Target("galaxy"), Op: delta.OpSet, Path: []string{"x"}, Value: 1})
	if !errors.Is(err, ErrUnknownTarget) {
		t.Fatalf("expected ErrUnknownTarget, got %v", err)
	}
	// Nothing may fall through onto the state root.
	if !reflect.DeepEqual(s, NewState()) {
		t.Fatalf("state mutated by unknown target: %#v", s)
	}
}

func TestApplyUnknownOpIsTypedError(t *testing.T) {
	s := NewState()
	err := Apply(s, delta.Delta{Target: delta.TargetWorld, Op: delta.Op("merge"), Path: []string{"x"}, Value: 1})
	if !errors.Is(err, delta.ErrInvalidOp) {
		t.Fatalf("expected ErrInvalidOp, got %v", err)
	}
}

func TestApplyScalarSegmentFails(t *testing.T) {
	s := NewState()
	mustApply(t, s, delta.Delta{Target: delta.TargetWorld, Op: delta.OpSet, Path: []string{"weather"}, Value: "rain"})
	err := Apply(s, delta.Delta{Target: delta.TargetWorld, Op: delta.OpSet, Path: []string{"weather", "wind"}, Value: 3})
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
}

func recordedSequence() []delta.Delta {
	return []delta.Delta{
		{ID: "s-1-1", Target: delta.TargetPlayer, Op: delta.OpSet, Path: []string{"name"}, Value: "Hale"},
		{ID: "s-1-2", Target: delta.TargetPlayer, Op: delta.OpIncrement, Path: []string{"fate_points"}, Value: 3},
		{ID: "s-1-3", Target: delta.TargetInventory, Op: delta.OpAppend, Path: []string{"carried"}, Value: "rope"},
		{ID: "s-1-4", Target: delta.TargetNPC, Op: delta.OpSet, Path: []string{"korrin", "mood"}, Value: "wary"},
		{ID: "s-1-5", Target: delta.TargetInventory, Op: delta.OpInsert, Path: []string{"carried", "0"}, Value: "torch"},
		{ID: "s-1-6", Target: delta.TargetPlayer, Op: delta.OpDecrement, Path: []string{"fate_points"}, Value: 1},
		{ID: "s-1-7", Target: delta.TargetNPC, Op: delta.OpRemove, Path: []string{"korrin", "mood"}},
		{ID: "s-1-8", Target: delta.TargetTime, Op: delta.OpSet, Path: []string{"day"}, Value: 2},
	}
}

func TestReplayDeterminism(t *testing.T) {
	a := NewState()
	b := NewState()
	for _, d := range recordedSequence() {
		mustApply(t, a, d)
		mustApply(t, b, d)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("states diverged:\n%#v\n%#v", a, b)
	}
}

func TestReplayAfterJSONRoundTripMatchesLive(t *testing.T) {
	live := NewState()
	seq := recordedSequence()
	for _, d := range seq {
		mustApply(t, live, d)
	}

	// Simulate the persisted delta log: one JSON record per delta.
	replayed := NewState()
	for _, d := range seq {
		raw, err := json.Marshal(d)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var decoded delta.Delta
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		mustApply(t, replayed, decoded)
	}

	if !reflect.DeepEqual(live, replayed) {
		t.Fatalf("cold replay diverged from live application:\nlive: %#v\nreplay: %#v", live, replayed)
	}
}
