package turn

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/louisbranch/emberwake.world/internal/state/gametime"
)

func testClock() func() time.Time {
	base := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	calls := 0
	return func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	}
}

func TestStartTurnAssignsMonotonicIDs(t *testing.T) {
	ledger := NewLedger()
	ledger.SetClock(testClock())

	for want := uint64(1); want <= 3; want++ {
		tc, err := ledger.StartTurn("hale", "scene-dock", gametime.Start())
		if err != nil {
			t.Fatalf("start turn %d: %v", want, err)
		}
		if tc.ID != want {
			t.Fatalf("turn id = %d, want %d", tc.ID, want)
		}
		if tc.Number != want {
			t.Fatalf("turn number = %d, want %d", tc.Number, want)
		}
		if _, err := ledger.FinalizeTurn(tc); err != nil {
			t.Fatalf("finalize turn %d: %v", want, err)
		}
	}
}

func TestStartTurnWhileActiveIsHardError(t *testing.T) {
	ledger := NewLedger()
	first, err := ledger.StartTurn("hale", "scene-dock", gametime.Start())
	if err != nil {
		t.Fatalf("start turn: %v", err)
	}

	if _, err := ledger.StartTurn("mirei", "scene-dock", gametime.Start()); !errors.Is(err, ErrTurnActive) {
		t.Fatalf("expected ErrTurnActive, got %v", err)
	}

	// The open turn survives the rejected start.
	if ledger.CurrentTurn() != first {
		t.Fatal("active turn reference was lost")
	}
}

func TestStartTurnValidation(t *testing.T) {
	ledger := NewLedger()
	if _, err := ledger.StartTurn("  ", "scene-dock", gametime.Start()); !errors.Is(err, ErrEmptyActor) {
		t.Fatalf("expected ErrEmptyActor, got %v", err)
	}
	if _, err := ledger.StartTurn("hale", "", gametime.Start()); !errors.Is(err, ErrEmptySceneID) {
		t.Fatalf("expected ErrEmptySceneID, got %v", err)
	}
}

func TestAddEventSequencesAreContiguous(t *testing.T) {
	ledger := NewLedger()
	ledger.SetClock(testClock())
	tc, err := ledger.StartTurn("hale", "scene-dock", gametime.Start())
	if err != nil {
		t.Fatalf("start turn: %v", err)
	}

	for i := 1; i <= 5; i++ {
		evt, err := ledger.AddEvent(tc, EventInput{Kind: KindObserve, Action: "scan the crowd"})
		if err != nil {
			t.Fatalf("add event %d: %v", i, err)
		}
		if evt.Seq != uint64(i) {
			t.Fatalf("event seq = %d, want %d", evt.Seq, i)
		}
		if want := fmt.Sprintf("%d-%d", tc.ID, i); evt.ID != want {
			t.Fatalf("event id = %q, want %q", evt.ID, want)
		}
		if evt.Actor != "hale" {
			t.Fatalf("event actor = %q, want turn actor", evt.Actor)
		}
	}
	if len(tc.Events) != 5 {
		t.Fatalf("turn holds %d events, want 5", len(tc.Events))
	}
}

func TestAddEventRejectsInvalidKind(t *testing.T) {
	ledger := NewLedger()
	tc, err := ledger.StartTurn("hale", "scene-dock", gametime.Start())
	if err != nil {
		t.Fatalf("start turn: %v", err)
	}
	if _, err := ledger.AddEvent(tc, EventInput{Kind: Kind("teleport"), Action: "blink"}); !errors.Is(err, ErrInvalidEventKind) {
		t.Fatalf("expected ErrInvalidEventKind, got %v", err)
	}
}

func TestAddEventWithNoActiveTurnFails(t *testing.T) {
	ledger := NewLedger()
	if _, err := ledger.AddEvent(nil, EventInput{Kind: KindSystem, Action: "noop"}); !errors.Is(err, ErrNoActiveTurn) {
		t.Fatalf("expected ErrNoActiveTurn, got %v", err)
	}
}

func TestFinalizeTurnDetaches(t *testing.T) {
	ledger := NewLedger()
	tc, err := ledger.StartTurn("hale", "scene-dock", gametime.Start())
	if err != nil {
		t.Fatalf("start turn: %v", err)
	}
	if _, err := ledger.AddEvent(tc, EventInput{Kind: KindMove, Action: "cross the gangway"}); err != nil {
		t.Fatalf("add event: %v", err)
	}

	done, err := ledger.FinalizeTurn(tc)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if len(done.Events) != 1 {
		t.Fatalf("finalized turn holds %d events, want 1", len(done.Events))
	}
	if ledger.CurrentTurn() != nil {
		t.Fatal("ledger still holds a turn after finalize")
	}
	if _, err := ledger.AddEvent(tc, EventInput{Kind: KindMove, Action: "late append"}); !errors.Is(err, ErrNoActiveTurn) {
		t.Fatalf("expected ErrNoActiveTurn after finalize, got %v", err)
	}
	if _, err := ledger.FinalizeTurn(tc); !errors.Is(err, ErrNoActiveTurn) {
		t.Fatalf("expected ErrNoActiveTurn on double finalize, got %v", err)
	}
}

func TestFinalizedTurnIsASnapshot(t *testing.T) {
	ledger := NewLedger()
	tc, _ := ledger.StartTurn("hale", "scene-dock", gametime.Start())
	if _, err := ledger.AddEvent(tc, EventInput{Kind: KindMove, Action: "step"}); err != nil {
		t.Fatalf("add event: %v", err)
	}
	done, err := ledger.FinalizeTurn(tc)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	// Mutating the context's slice must not affect the detached copy.
	tc.Events[0].Action = "tampered"
	if done.Events[0].Action != "step" {
		t.Fatal("finalized turn shares backing storage with the context")
	}
}

func TestForeignTurnContextRejected(t *testing.T) {
	a := NewLedger()
	b := NewLedger()
	ta, err := a.StartTurn("hale", "scene-dock", gametime.Start())
	if err != nil {
		t.Fatalf("start turn: %v", err)
	}
	if _, err := b.StartTurn("mirei", "scene-dock", gametime.Start()); err != nil {
		t.Fatalf("start turn b: %v", err)
	}

	if _, err := b.AddEvent(ta, EventInput{Kind: KindMove, Action: "cross"}); !errors.Is(err, ErrForeignTurn) {
		t.Fatalf("expected ErrForeignTurn, got %v", err)
	}
}

func TestAbortTurnReleasesNumber(t *testing.T) {
	ledger := NewLedger()
	tc, err := ledger.StartTurn("hale", "scene-dock", gametime.Start())
	if err != nil {
		t.Fatalf("start turn: %v", err)
	}
	if err := ledger.AbortTurn(tc); err != nil {
		t.Fatalf("abort: %v", err)
	}
	if ledger.CurrentTurn() != nil {
		t.Fatal("ledger still holds a turn after abort")
	}
	if _, err := ledger.AddEvent(tc, EventInput{Kind: KindMove, Action: "late append"}); !errors.Is(err, ErrNoActiveTurn) {
		t.Fatalf("expected ErrNoActiveTurn after abort, got %v", err)
	}

	// The aborted number is reused so persisted ids stay contiguous.
	next, err := ledger.StartTurn("hale", "scene-dock", gametime.Start())
	if err != nil {
		t.Fatalf("restart turn: %v", err)
	}
	if next.ID != tc.ID {
		t.Fatalf("restarted turn id = %d, want %d", next.ID, tc.ID)
	}
}

func TestNewLedgerAtResumesNumbering(t *testing.T) {
	ledger := NewLedgerAt(41)
	tc, err := ledger.StartTurn("hale", "scene-dock", gametime.Start())
	if err != nil {
		t.Fatalf("start turn: %v", err)
	}
	if tc.ID != 42 {
		t.Fatalf("turn id = %d, want 42", tc.ID)
	}
}

func TestHasEvent(t *testing.T) {
	ledger := NewLedger()
	tc, _ := ledger.StartTurn("hale", "scene-dock", gametime.Start())
	evt, err := ledger.AddEvent(tc, EventInput{Kind: KindObserve, Action: "listen"})
	if err != nil {
		t.Fatalf("add event: %v", err)
	}
	if !tc.HasEvent(evt.ID) {
		t.Fatalf("expected event %q to be present", evt.ID)
	}
	if tc.HasEvent("99-1") {
		t.Fatal("unexpected event match")
	}
}
