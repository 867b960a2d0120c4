package scenario

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/louisbranch/emberwake.world/internal/errors"
	"github.com/louisbranch/emberwake.world/internal/session"
	"github.com/louisbranch/emberwake.world/internal/state/quest"
	"github.com/louisbranch/emberwake.world/internal/storage/memory"
)

const dockScript = `
local s = Scenario.new("dockside troubles")
s:seed(42)
s:player{ id = "kara", fate_points = 3 }
s:npc("vex", { role = "fixer" })
s:location("docks", { district = "harbor" })
s:faction{ id = "dockers", name = "Dockers Guild" }
s:quest{
  id = "clear-warehouse",
  title = "Clear the Warehouse",
  xp_reward = 25,
  objectives = {
    { id = "rats", description = "drive out the dock rats", required = 2 },
  },
}
s:start_turn("kara", "docks")
s:action{ action = "sneak in", skill = "stealth", rating = 2, difficulty = 1 }
s:quest_progress("clear-warehouse", "rats", 2)
s:reputation("dockers", "kara", 15, "cleared the warehouse")
s:advance_time()
s:end_turn()
return s
`

func TestLoadStringParsesDeclarations(t *testing.T) {
	sc, err := LoadString(dockScript)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if sc.Name != "dockside troubles" {
		t.Fatalf("name = %q", sc.Name)
	}
	if sc.Seed != 42 {
		t.Fatalf("seed = %d", sc.Seed)
	}
	if sc.Player["id"] != "kara" || sc.Player["fate_points"] != 3 {
		t.Fatalf("player = %v", sc.Player)
	}
	if len(sc.NPCs) != 1 || sc.NPCs[0].ID != "vex" || sc.NPCs[0].Attributes["role"] != "fixer" {
		t.Fatalf("npcs = %+v", sc.NPCs)
	}
	if len(sc.Locations) != 1 || sc.Locations[0].ID != "docks" {
		t.Fatalf("locations = %+v", sc.Locations)
	}
	if len(sc.Factions) != 1 || sc.Factions[0].Name != "Dockers Guild" {
		t.Fatalf("factions = %+v", sc.Factions)
	}
	if len(sc.Quests) != 1 {
		t.Fatalf("quests = %+v", sc.Quests)
	}
	q := sc.Quests[0]
	if q.XPReward != 25 || len(q.Objectives) != 1 || q.Objectives[0].Required != 2 {
		t.Fatalf("quest = %+v", q)
	}
	if len(sc.Steps) != 6 {
		t.Fatalf("steps = %d, want 6", len(sc.Steps))
	}
	if sc.Steps[0].Kind != "start_turn" || sc.Steps[5].Kind != "end_turn" {
		t.Fatalf("step kinds = %q..%q", sc.Steps[0].Kind, sc.Steps[5].Kind)
	}
}

func TestLoadStringRejectsNonScenarioReturn(t *testing.T) {
	_, err := LoadString(`return 7`)
	if err == nil {
		t.Fatal("expected error")
	}
	if !apperrors.IsCode(err, apperrors.CodeScenarioInvalid) {
		t.Fatalf("err = %v, want scenario invalid code", err)
	}
}

func TestLoadStringRejectsBrokenScript(t *testing.T) {
	if _, err := LoadString(`this is not lua`); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestRunSeedsSession(t *testing.T) {
	sc, err := LoadString(dockScript)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	store := memory.New()
	svc, err := session.New(session.Config{SessionID: "sess", Seed: sc.Seed, Store: store})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	if err := Run(ctx, svc, sc); err != nil {
		t.Fatalf("run: %v", err)
	}

	if svc.State().Player["id"] != "kara" {
		t.Fatalf("player = %v", svc.State().Player)
	}
	if _, ok := svc.State().NPCs["vex"]; !ok {
		t.Fatalf("npcs = %v", svc.State().NPCs)
	}
	if _, ok := svc.State().Locations["docks"]; !ok {
		t.Fatalf("locations = %v", svc.State().Locations)
	}

	quests := svc.Quests()
	if len(quests) != 1 || quests[0].Status != quest.StatusCompleted {
		t.Fatalf("quests = %+v", quests)
	}
	if svc.XP() != 25 {
		t.Fatalf("xp = %d, want 25", svc.XP())
	}
	score, _, err := svc.Reputation("dockers", "kara")
	if err != nil {
		t.Fatalf("reputation: %v", err)
	}
	if score != 15 {
		t.Fatalf("score = %d, want 15", score)
	}

	// Setup turn plus one scripted turn must both persist.
	last, err := store.LastTurnID(ctx, "sess")
	if err != nil {
		t.Fatalf("last turn id: %v", err)
	}
	if last != 2 {
		t.Fatalf("last turn = %d, want 2", last)
	}
}

func TestRunUnknownStepFails(t *testing.T) {
	sc := &Scenario{Steps: []Step{{Kind: "start_turn", Args: map[string]any{"actor": "kara", "scene": "docks"}}, {Kind: "teleport", Args: map[string]any{}}}}
	store := memory.New()
	svc, err := session.New(session.Config{SessionID: "sess", Seed: 1, Store: store})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	runErr := Run(context.Background(), svc, sc)
	if runErr == nil {
		t.Fatal("expected error for unknown step")
	}
	if errors.Is(runErr, context.Canceled) {
		t.Fatalf("unexpected error kind: %v", runErr)
	}
}
