package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/louisbranch/emberwake.world/internal/state/delta"
	"github.com/louisbranch/emberwake.world/internal/state/faction"
	"github.com/louisbranch/emberwake.world/internal/state/gametime"
	"github.com/louisbranch/emberwake.world/internal/state/quest"
	"github.com/louisbranch/emberwake.world/internal/state/turn"
)

// fatePointsPath locates the player's fate point pool in the state tree.
var fatePointsPath = []string{"fate_points"}

// InstallQuest adds the quest to the log and mirrors it into the state
// tree so it persists and replays with everything else.
func (s *Service) InstallQuest(ctx context.Context, q quest.Quest) error {
	if s.active == nil {
		return turn.ErrNoActiveTurn
	}
	if err := s.quests.Add(q); err != nil {
		return err
	}

	installed, err := s.quests.Get(q.ID)
	if err != nil {
		return err
	}
	evt, err := s.ledger.AddEvent(s.active, turn.EventInput{
		Kind:        turn.KindQuestUpdate,
		Target:      q.ID,
		Action:      "quest_installed",
		Description: installed.Title,
	})
	if err != nil {
		return err
	}
	return s.mirrorQuest(ctx, installed, evt.ID, "quest installed")
}

// QuestUpdate reports the effects of one objective progress update.
type QuestUpdate struct {
	Result quest.UpdateResult
	Event  turn.Event
}

// UpdateQuestObjective advances objective progress, mirrors the updated
// quest into the state tree, and credits XP on completion.
func (s *Service) UpdateQuestObjective(ctx context.Context, questID, objectiveID string, count int) (QuestUpdate, error) {
	if s.active == nil {
		return QuestUpdate{}, turn.ErrNoActiveTurn
	}

	result, err := s.quests.UpdateObjective(questID, objectiveID, count)
	if err != nil {
		return QuestUpdate{}, err
	}
	updated, err := s.quests.Get(questID)
	if err != nil {
		return QuestUpdate{}, err
	}

	description := fmt.Sprintf("objective %s at %d", objectiveID, count)
	if result.QuestCompleted {
		description = fmt.Sprintf("quest %s completed", questID)
	}
	evt, err := s.ledger.AddEvent(s.active, turn.EventInput{
		Kind:        turn.KindQuestUpdate,
		Target:      questID,
		Action:      "objective_progress",
		Description: description,
		Metadata: map[string]any{
			"objective": objectiveID,
			"count":     count,
		},
	})
	if err != nil {
		return QuestUpdate{}, err
	}

	if err := s.mirrorQuest(ctx, updated, evt.ID, "objective progress"); err != nil {
		return QuestUpdate{}, err
	}
	if result.XPAwarded > 0 {
		if _, err := s.MutateState(ctx, delta.Request{
			Target:  delta.TargetPlayer,
			Op:      delta.OpIncrement,
			Path:    []string{"xp"},
			Value:   result.XPAwarded,
			Cause:   fmt.Sprintf("quest %s reward", questID),
			EventID: evt.ID,
		}); err != nil {
			return QuestUpdate{}, err
		}
	}
	return QuestUpdate{Result: result, Event: evt}, nil
}

// SetQuestStatus forces a quest lifecycle transition (fail, abandon).
func (s *Service) SetQuestStatus(ctx context.Context, questID string, status quest.Status) error {
	if s.active == nil {
		return turn.ErrNoActiveTurn
	}
	if err := s.quests.SetStatus(questID, status); err != nil {
		return err
	}
	updated, err := s.quests.Get(questID)
	if err != nil {
		return err
	}
	evt, err := s.ledger.AddEvent(s.active, turn.EventInput{
		Kind:        turn.KindQuestUpdate,
		Target:      questID,
		Action:      "quest_status",
		Description: string(status),
	})
	if err != nil {
		return err
	}
	return s.mirrorQuest(ctx, updated, evt.ID, "quest status changed")
}

// AvailableQuests filters candidate quests through their prerequisites
// against the current state.
func (s *Service) AvailableQuests(candidates []quest.Quest) []quest.Quest {
	prereqCtx := s.prereqContext()
	available := make([]quest.Quest, 0, len(candidates))
	for _, q := range candidates {
		if quest.CheckPrerequisites(q, prereqCtx).Met {
			available = append(available, q)
		}
	}
	return available
}

// InstallFaction registers a faction and mirrors it into the state tree.
func (s *Service) InstallFaction(ctx context.Context, f faction.Faction) error {
	if s.active == nil {
		return turn.ErrNoActiveTurn
	}
	if err := s.factions.Add(f); err != nil {
		return err
	}
	installed, err := s.factions.Get(f.ID)
	if err != nil {
		return err
	}
	evt, err := s.ledger.AddEvent(s.active, turn.EventInput{
		Kind:        turn.KindStateChange,
		Target:      f.ID,
		Action:      "faction_installed",
		Description: installed.Name,
	})
	if err != nil {
		return err
	}

	value, err := jsonValue(installed)
	if err != nil {
		return err
	}
	_, err = s.MutateState(ctx, delta.Request{
		Target:  delta.TargetRelationship,
		Op:      delta.OpCreate,
		Path:    []string{installed.ID},
		Value:   value,
		Cause:   "faction installed",
		EventID: evt.ID,
	})
	return err
}

// AdjustReputation shifts standing with a faction, clamped to the
// reputation range, and records the resulting score.
func (s *Service) AdjustReputation(ctx context.Context, factionID, targetID string, shift int, cause string) (int, faction.Band, error) {
	if s.active == nil {
		return 0, "", turn.ErrNoActiveTurn
	}

	previous, err := s.factions.Reputation(factionID, targetID)
	if err != nil {
		return 0, "", err
	}
	score, err := s.factions.UpdateReputation(factionID, targetID, shift)
	if err != nil {
		return 0, "", err
	}
	band := faction.BandFor(score)

	evt, err := s.ledger.AddEvent(s.active, turn.EventInput{
		Kind:        turn.KindStateChange,
		Target:      factionID,
		Action:      "reputation_shift",
		Description: fmt.Sprintf("%s standing with %s is now %d (%s)", targetID, factionID, score, band),
		Metadata: map[string]any{
			"shift": shift,
			"score": score,
			"band":  string(band),
		},
	})
	if err != nil {
		return 0, "", err
	}
	if _, err := s.MutateState(ctx, delta.Request{
		Target:   delta.TargetRelationship,
		Op:       delta.OpSet,
		Path:     []string{factionID, "relationships", targetID},
		Previous: previous,
		Value:    score,
		Cause:    cause,
		EventID:  evt.ID,
	}); err != nil {
		return 0, "", err
	}
	return score, band, nil
}

// Reputation returns the current standing and band with a faction.
func (s *Service) Reputation(factionID, targetID string) (int, faction.Band, error) {
	score, err := s.factions.Reputation(factionID, targetID)
	if err != nil {
		return 0, "", err
	}
	band, err := s.factions.Rank(factionID, targetID)
	if err != nil {
		return 0, "", err
	}
	return score, band, nil
}

// OfferCompel records a compel against an actor's aspect. Accepting
// awards a fate point to the player pool.
func (s *Service) OfferCompel(ctx context.Context, actor, aspect string, accepted bool) (turn.Event, error) {
	if s.active == nil {
		return turn.Event{}, turn.ErrNoActiveTurn
	}
	evt, err := s.ledger.AddEvent(s.active, turn.EventInput{
		Kind:        turn.KindFateCompel,
		Actor:       actor,
		Target:      aspect,
		Action:      "compel",
		Description: fmt.Sprintf("compel against %s", aspect),
		Metadata:    map[string]any{"accepted": accepted},
	})
	if err != nil {
		return turn.Event{}, err
	}
	if accepted {
		if err := s.shiftFatePoints(ctx, delta.OpIncrement, 1, "compel accepted", evt.ID); err != nil {
			return turn.Event{}, err
		}
	}
	return evt, nil
}

// SpendFatePoint deducts one fate point from the player pool.
func (s *Service) SpendFatePoint(ctx context.Context, actor, reason string) (turn.Event, error) {
	if s.active == nil {
		return turn.Event{}, turn.ErrNoActiveTurn
	}
	evt, err := s.ledger.AddEvent(s.active, turn.EventInput{
		Kind:        turn.KindFatePointSpend,
		Actor:       actor,
		Action:      "spend_fate_point",
		Description: reason,
	})
	if err != nil {
		return turn.Event{}, err
	}
	if err := s.shiftFatePoints(ctx, delta.OpDecrement, 1, reason, evt.ID); err != nil {
		return turn.Event{}, err
	}
	return evt, nil
}

// AwardFatePoint grants one fate point to the player pool.
func (s *Service) AwardFatePoint(ctx context.Context, actor, reason string) (turn.Event, error) {
	if s.active == nil {
		return turn.Event{}, turn.ErrNoActiveTurn
	}
	evt, err := s.ledger.AddEvent(s.active, turn.EventInput{
		Kind:        turn.KindFatePointAward,
		Actor:       actor,
		Action:      "award_fate_point",
		Description: reason,
	})
	if err != nil {
		return turn.Event{}, err
	}
	if err := s.shiftFatePoints(ctx, delta.OpIncrement, 1, reason, evt.ID); err != nil {
		return turn.Event{}, err
	}
	return evt, nil
}

// RefreshFatePoints resets the player pool to its refresh rate at the
// start of a new scenario session.
func (s *Service) RefreshFatePoints(ctx context.Context, actor string, refresh int) (turn.Event, error) {
	if s.active == nil {
		return turn.Event{}, turn.ErrNoActiveTurn
	}
	if refresh < 0 {
		return turn.Event{}, fmt.Errorf("refresh rate must not be negative")
	}
	evt, err := s.ledger.AddEvent(s.active, turn.EventInput{
		Kind:        turn.KindFatePointRefresh,
		Actor:       actor,
		Action:      "refresh_fate_points",
		Description: "fate points refreshed",
		Metadata:    map[string]any{"refresh": refresh},
	})
	if err != nil {
		return turn.Event{}, err
	}
	if _, err := s.MutateState(ctx, delta.Request{
		Target:  delta.TargetPlayer,
		Op:      delta.OpSet,
		Path:    fatePointsPath,
		Value:   refresh,
		Cause:   "fate point refresh",
		EventID: evt.ID,
	}); err != nil {
		return turn.Event{}, err
	}
	return evt, nil
}

func (s *Service) shiftFatePoints(ctx context.Context, op delta.Op, amount int, cause, eventID string) error {
	_, err := s.MutateState(ctx, delta.Request{
		Target:  delta.TargetPlayer,
		Op:      op,
		Path:    fatePointsPath,
		Value:   amount,
		Cause:   cause,
		EventID: eventID,
	})
	return err
}

// mirrorQuest writes the whole quest entity into the state tree so the
// quest log survives persistence and cold replay.
func (s *Service) mirrorQuest(ctx context.Context, q quest.Quest, eventID, cause string) error {
	value, err := jsonValue(q)
	if err != nil {
		return err
	}
	_, err = s.MutateState(ctx, delta.Request{
		Target:  delta.TargetQuest,
		Op:      delta.OpSet,
		Path:    []string{q.ID},
		Value:   value,
		Cause:   cause,
		EventID: eventID,
	})
	return err
}

// prereqContext derives the prerequisite inputs from live state and the
// session's ledgers.
func (s *Service) prereqContext() quest.Context {
	ctx := quest.Context{
		Reputation: map[string]int{},
	}
	for location := range s.state.Locations {
		ctx.KnownLocations = append(ctx.KnownLocations, location)
	}
	for npc := range s.state.NPCs {
		ctx.KnownNPCs = append(ctx.KnownNPCs, npc)
	}
	for _, q := range s.quests.List() {
		if q.Status == quest.StatusCompleted {
			ctx.CompletedQuests = append(ctx.CompletedQuests, q.ID)
		}
	}
	player := s.playerID()
	for _, f := range s.factions.List() {
		if score, ok := f.Relationships[player]; ok {
			ctx.Reputation[f.ID] = score
		}
	}
	sort.Strings(ctx.KnownLocations)
	sort.Strings(ctx.KnownNPCs)
	return ctx
}

func (s *Service) playerID() string {
	if raw, ok := s.state.Player["id"].(string); ok && raw != "" {
		return raw
	}
	return "player"
}

// rebuildFromState reconstructs the quest machine, faction ledger and
// clock from a replayed state tree.
func (s *Service) rebuildFromState() error {
	questIDs := make([]string, 0, len(s.state.Quests))
	for id := range s.state.Quests {
		questIDs = append(questIDs, id)
	}
	sort.Strings(questIDs)
	for _, id := range questIDs {
		var q quest.Quest
		if err := reshape(s.state.Quests[id], &q); err != nil {
			return fmt.Errorf("rebuild quest %s: %w", id, err)
		}
		if err := s.quests.Add(q); err != nil {
			return fmt.Errorf("rebuild quest %s: %w", id, err)
		}
	}
	if xp, ok := s.state.Player["xp"].(float64); ok {
		s.quests.RestoreXP(int(xp))
	}

	factionIDs := make([]string, 0, len(s.state.Relationships))
	for id := range s.state.Relationships {
		factionIDs = append(factionIDs, id)
	}
	sort.Strings(factionIDs)
	for _, id := range factionIDs {
		var f faction.Faction
		if err := reshape(s.state.Relationships[id], &f); err != nil {
			return fmt.Errorf("rebuild faction %s: %w", id, err)
		}
		if err := s.factions.Add(f); err != nil {
			return fmt.Errorf("rebuild faction %s: %w", id, err)
		}
	}

	if raw, ok := s.state.Time["clock"]; ok {
		var clock gametime.Time
		if err := reshape(raw, &clock); err != nil {
			return fmt.Errorf("rebuild clock: %w", err)
		}
		if clock.Band.IsValid() && clock.Day > 0 {
			s.clock = clock
		}
	}
	return nil
}

// reshape converts a JSON-shaped tree value into a typed struct.
func reshape(raw any, out any) error {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(encoded, out)
}

// FatePoints returns the player's current fate point pool.
func (s *Service) FatePoints() int {
	raw, ok := s.state.Player[fatePointsPath[0]]
	if !ok {
		return 0
	}
	switch v := raw.(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
