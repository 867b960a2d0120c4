package quest

import (
	"errors"
	"testing"
)

func singleObjectiveQuest(id string) Quest {
	return Quest{
		ID:    id,
		Title: "Recover the ledger",
		Objectives: []Objective{
			{ID: "find", Description: "find the ledger", Required: 1},
		},
		XPReward: 10,
	}
}

func threeStageQuest() Quest {
	return Quest{
		ID:             "heist",
		Title:          "The Vault Job",
		CurrentStageID: "stage1",
		Stages: map[string]Stage{
			"stage1": {
				ID:          "stage1",
				Description: "case the vault",
				Objectives:  []Objective{{ID: "scout", Description: "scout the vault", Required: 1}},
				NextStageID: "stage2",
			},
			"stage2": {
				ID:          "stage2",
				Description: "assemble the crew",
				Objectives:  []Objective{{ID: "recruit", Description: "recruit a safecracker", Required: 1}},
				NextStageID: "stage3",
			},
			"stage3": {
				ID:          "stage3",
				Description: "crack the vault",
				Objectives:  []Objective{{ID: "crack", Description: "open the vault", Required: 1}},
			},
		},
		XPReward: 25,
	}
}

func TestAddValidation(t *testing.T) {
	m := NewMachine()
	if err := m.Add(Quest{ID: " "}); !errors.Is(err, ErrEmptyQuestID) {
		t.Fatalf("expected ErrEmptyQuestID, got %v", err)
	}
	if err := m.Add(singleObjectiveQuest("q1")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := m.Add(singleObjectiveQuest("q1")); !errors.Is(err, ErrDuplicateQuest) {
		t.Fatalf("expected ErrDuplicateQuest, got %v", err)
	}

	bad := singleObjectiveQuest("q2")
	bad.Objectives[0].Required = 0
	if err := m.Add(bad); !errors.Is(err, ErrInvalidObjective) {
		t.Fatalf("expected ErrInvalidObjective, got %v", err)
	}

	staged := threeStageQuest()
	staged.CurrentStageID = "missing"
	if err := m.Add(staged); !errors.Is(err, ErrUnknownStage) {
		t.Fatalf("expected ErrUnknownStage, got %v", err)
	}
}

func TestAddStagedQuestInstallsStageObjectives(t *testing.T) {
	m := NewMachine()
	if err := m.Add(threeStageQuest()); err != nil {
		t.Fatalf("add: %v", err)
	}
	q, err := m.Get("heist")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if q.Description != "case the vault" {
		t.Fatalf("description = %q, want stage1 description", q.Description)
	}
	if len(q.Objectives) != 1 || q.Objectives[0].ID != "scout" {
		t.Fatalf("working set = %+v, want stage1 objectives", q.Objectives)
	}
	if q.Objectives[0].Status != ObjectiveActive {
		t.Fatalf("objective status = %q, want active", q.Objectives[0].Status)
	}
}

func TestUpdateObjectiveNotFoundIsExplicit(t *testing.T) {
	m := NewMachine()
	if _, err := m.UpdateObjective("ghost", "find", 1); !errors.Is(err, ErrQuestNotFound) {
		t.Fatalf("expected ErrQuestNotFound, got %v", err)
	}
	if err := m.Add(singleObjectiveQuest("q1")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := m.UpdateObjective("q1", "ghost", 1); !errors.Is(err, ErrObjectiveNotFound) {
		t.Fatalf("expected ErrObjectiveNotFound, got %v", err)
	}
}

func TestObjectiveCountIsMonotonic(t *testing.T) {
	m := NewMachine()
	q := singleObjectiveQuest("q1")
	q.Objectives[0].Required = 5
	if err := m.Add(q); err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, err := m.UpdateObjective("q1", "find", 3); err != nil {
		t.Fatalf("update: %v", err)
	}
	result, err := m.UpdateObjective("q1", "find", 1)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if result.Objective.Current != 3 {
		t.Fatalf("current regressed to %d", result.Objective.Current)
	}
}

func TestQuestCompletionAwardsXPOnce(t *testing.T) {
	m := NewMachine()
	if err := m.Add(singleObjectiveQuest("q1")); err != nil {
		t.Fatalf("add: %v", err)
	}

	result, err := m.UpdateObjective("q1", "find", 1)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !result.ObjectiveCompleted || !result.QuestCompleted {
		t.Fatalf("expected completion, got %+v", result)
	}
	if result.XPAwarded != 10 || m.XP() != 10 {
		t.Fatalf("xp awarded %d, machine xp %d, want 10", result.XPAwarded, m.XP())
	}
	if m.Milestone() != MilestoneMinor {
		t.Fatalf("milestone = %q, want minor", m.Milestone())
	}

	// Re-applying the completion is a no-op.
	again, err := m.UpdateObjective("q1", "find", 1)
	if err != nil {
		t.Fatalf("update again: %v", err)
	}
	if again.QuestCompleted || again.XPAwarded != 0 || m.XP() != 10 {
		t.Fatalf("completion re-fired: %+v, xp %d", again, m.XP())
	}
}

func TestThreeStageAdvancement(t *testing.T) {
	m := NewMachine()
	if err := m.Add(threeStageQuest()); err != nil {
		t.Fatalf("add: %v", err)
	}

	// Stage 1 -> 2.
	result, err := m.UpdateObjective("heist", "scout", 1)
	if err != nil {
		t.Fatalf("complete scout: %v", err)
	}
	if !result.StageAdvanced || result.StageID != "stage2" || result.QuestCompleted {
		t.Fatalf("expected advance to stage2, got %+v", result)
	}
	q, _ := m.Get("heist")
	if q.CurrentStageID != "stage2" || q.Description != "assemble the crew" {
		t.Fatalf("quest after stage1: %+v", q)
	}
	if q.Objectives[0].ID != "recruit" || q.Objectives[0].Current != 0 || q.Objectives[0].Status != ObjectiveActive {
		t.Fatalf("stage2 objectives not reset: %+v", q.Objectives)
	}

	// Stage 2 -> 3.
	result, err = m.UpdateObjective("heist", "recruit", 1)
	if err != nil {
		t.Fatalf("complete recruit: %v", err)
	}
	if !result.StageAdvanced || result.StageID != "stage3" {
		t.Fatalf("expected advance to stage3, got %+v", result)
	}

	// Final stage completes the quest.
	result, err = m.UpdateObjective("heist", "crack", 1)
	if err != nil {
		t.Fatalf("complete crack: %v", err)
	}
	if result.StageAdvanced || !result.QuestCompleted {
		t.Fatalf("expected quest completion, got %+v", result)
	}
	if result.XPAwarded != 25 || m.XP() != 25 {
		t.Fatalf("xp = %d, want 25", m.XP())
	}
	q, _ = m.Get("heist")
	if q.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", q.Status)
	}

	// Re-applying the final completion is a no-op.
	result, err = m.UpdateObjective("heist", "crack", 1)
	if err != nil {
		t.Fatalf("re-complete crack: %v", err)
	}
	if result.StageAdvanced || result.QuestCompleted || m.XP() != 25 {
		t.Fatalf("final completion re-fired: %+v, xp %d", result, m.XP())
	}
}

func TestPartialStageDoesNotAdvance(t *testing.T) {
	m := NewMachine()
	q := Quest{
		ID:             "escort",
		CurrentStageID: "s1",
		Stages: map[string]Stage{
			"s1": {
				ID: "s1",
				Objectives: []Objective{
					{ID: "a", Required: 1},
					{ID: "b", Required: 2},
				},
			},
		},
	}
	if err := m.Add(q); err != nil {
		t.Fatalf("add: %v", err)
	}

	result, err := m.UpdateObjective("escort", "a", 1)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !result.ObjectiveCompleted || result.StageAdvanced || result.QuestCompleted {
		t.Fatalf("unexpected transition: %+v", result)
	}
}

func TestSetStatusTransitions(t *testing.T) {
	m := NewMachine()
	if err := m.Add(singleObjectiveQuest("q1")); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := m.SetStatus("q1", Status("paused")); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if err := m.SetStatus("q1", StatusAbandoned); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if err := m.SetStatus("q1", StatusActive); !errors.Is(err, ErrTerminalStatus) {
		t.Fatalf("expected ErrTerminalStatus, got %v", err)
	}
	if err := m.SetStatus("q1", StatusAbandoned); err != nil {
		t.Fatalf("idempotent re-abandon: %v", err)
	}
	if err := m.SetStatus("ghost", StatusFailed); !errors.Is(err, ErrQuestNotFound) {
		t.Fatalf("expected ErrQuestNotFound, got %v", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	m := NewMachine()
	if err := m.Add(singleObjectiveQuest("q1")); err != nil {
		t.Fatalf("add: %v", err)
	}
	q, _ := m.Get("q1")
	q.Objectives[0].Current = 99
	q.Status = StatusFailed

	fresh, _ := m.Get("q1")
	if fresh.Objectives[0].Current != 0 || fresh.Status != StatusActive {
		t.Fatal("Get exposed internal quest storage")
	}
}

func TestMilestoneLadder(t *testing.T) {
	tests := []struct {
		xp   int
		want MilestoneTier
	}{
		{0, MilestoneNone},
		{9, MilestoneNone},
		{10, MilestoneMinor},
		{24, MilestoneMinor},
		{25, MilestoneSignificant},
		{49, MilestoneSignificant},
		{50, MilestoneMajor},
		{120, MilestoneMajor},
	}
	for _, tt := range tests {
		if got := MilestoneFor(tt.xp); got != tt.want {
			t.Errorf("MilestoneFor(%d) = %q, want %q", tt.xp, got, tt.want)
		}
	}
}
