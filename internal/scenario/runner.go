package scenario

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/louisbranch/emberwake.world/internal/core/resolve"
	"github.com/louisbranch/emberwake.world/internal/session"
	"github.com/louisbranch/emberwake.world/internal/state/delta"
	"github.com/louisbranch/emberwake.world/internal/state/turn"
)

// Run seeds a session from the scenario: a setup turn installing the
// declared world, then the scripted steps in order.
func Run(ctx context.Context, svc *session.Service, sc *Scenario) error {
	if svc == nil {
		return fmt.Errorf("session service is required")
	}
	if sc == nil {
		return fmt.Errorf("scenario is required")
	}

	if err := runSetupTurn(ctx, svc, sc); err != nil {
		return err
	}
	for i, step := range sc.Steps {
		if err := runStep(ctx, svc, step); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Kind, err)
		}
	}
	return nil
}

func runSetupTurn(ctx context.Context, svc *session.Service, sc *Scenario) error {
	actor := playerID(sc)
	scene := "prologue"

	if _, err := svc.StartTurn(ctx, actor, scene); err != nil {
		return fmt.Errorf("start setup turn: %w", err)
	}
	evt, err := svc.RecordEvent(ctx, turn.EventInput{
		Kind:        turn.KindSystem,
		Action:      "scenario_setup",
		Description: sc.Name,
	})
	if err != nil {
		return fmt.Errorf("record setup event: %w", err)
	}

	playerKeys := make([]string, 0, len(sc.Player))
	for key := range sc.Player {
		playerKeys = append(playerKeys, key)
	}
	sort.Strings(playerKeys)
	for _, key := range playerKeys {
		if _, err := svc.MutateState(ctx, delta.Request{
			Target:  delta.TargetPlayer,
			Op:      delta.OpSet,
			Path:    []string{key},
			Value:   sc.Player[key],
			Cause:   "scenario setup",
			EventID: evt.ID,
		}); err != nil {
			return fmt.Errorf("seed player %s: %w", key, err)
		}
	}
	for _, npc := range sc.NPCs {
		if _, err := svc.MutateState(ctx, delta.Request{
			Target:  delta.TargetNPC,
			Op:      delta.OpCreate,
			Path:    []string{npc.ID},
			Value:   npc.Attributes,
			Cause:   "scenario setup",
			EventID: evt.ID,
		}); err != nil {
			return fmt.Errorf("seed npc %s: %w", npc.ID, err)
		}
	}
	for _, loc := range sc.Locations {
		if _, err := svc.MutateState(ctx, delta.Request{
			Target:  delta.TargetLocation,
			Op:      delta.OpCreate,
			Path:    []string{loc.ID},
			Value:   loc.Attributes,
			Cause:   "scenario setup",
			EventID: evt.ID,
		}); err != nil {
			return fmt.Errorf("seed location %s: %w", loc.ID, err)
		}
	}
	for _, f := range sc.Factions {
		if err := svc.InstallFaction(ctx, f); err != nil {
			return fmt.Errorf("install faction %s: %w", f.ID, err)
		}
	}
	for _, q := range sc.Quests {
		if err := svc.InstallQuest(ctx, q); err != nil {
			return fmt.Errorf("install quest %s: %w", q.ID, err)
		}
	}

	if _, err := svc.EndTurn(ctx); err != nil {
		return fmt.Errorf("end setup turn: %w", err)
	}
	return nil
}

func runStep(ctx context.Context, svc *session.Service, step Step) error {
	switch step.Kind {
	case "start_turn":
		_, err := svc.StartTurn(ctx, stringArg(step, "actor"), stringArg(step, "scene"))
		return err
	case "end_turn":
		_, err := svc.EndTurn(ctx)
		return err
	case "action":
		_, _, err := svc.PerformAction(ctx, session.ActionInput{
			Actor:       stringArg(step, "actor"),
			Action:      stringArg(step, "action"),
			Target:      stringArg(step, "target"),
			Skill:       stringArg(step, "skill"),
			Rating:      intArg(step, "rating"),
			Difficulty:  intArg(step, "difficulty"),
			Invokes:     invokesArg(step),
			Description: stringArg(step, "description"),
		})
		return err
	case "mutate":
		return runMutate(ctx, svc, step)
	case "advance_time":
		_, err := svc.AdvanceTime(ctx)
		return err
	case "quest_progress":
		_, err := svc.UpdateQuestObjective(ctx,
			stringArg(step, "quest"), stringArg(step, "objective"), intArg(step, "count"))
		return err
	case "reputation":
		_, _, err := svc.AdjustReputation(ctx,
			stringArg(step, "faction"), stringArg(step, "target"),
			intArg(step, "shift"), stringArg(step, "cause"))
		return err
	case "compel":
		_, err := svc.OfferCompel(ctx,
			stringArg(step, "actor"), stringArg(step, "aspect"), boolArg(step, "accepted"))
		return err
	case "spend_fate":
		_, err := svc.SpendFatePoint(ctx, stringArg(step, "actor"), stringArg(step, "reason"))
		return err
	case "award_fate":
		_, err := svc.AwardFatePoint(ctx, stringArg(step, "actor"), stringArg(step, "reason"))
		return err
	case "refresh_fate":
		_, err := svc.RefreshFatePoints(ctx, stringArg(step, "actor"), intArg(step, "refresh"))
		return err
	default:
		return fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

// runMutate records a state change event and threads the mutation to it.
func runMutate(ctx context.Context, svc *session.Service, step Step) error {
	target := delta.Target(stringArg(step, "target"))
	op := delta.Op(stringArg(step, "op"))
	path := pathArg(step)
	cause := stringArg(step, "cause")

	evt, err := svc.RecordEvent(ctx, turn.EventInput{
		Kind:        turn.KindStateChange,
		Action:      "mutate",
		Description: cause,
	})
	if err != nil {
		return err
	}
	_, err = svc.MutateState(ctx, delta.Request{
		Target:  target,
		Op:      op,
		Path:    path,
		Value:   step.Args["value"],
		Cause:   cause,
		EventID: evt.ID,
	})
	return err
}

func playerID(sc *Scenario) string {
	if raw, ok := sc.Player["id"].(string); ok && strings.TrimSpace(raw) != "" {
		return raw
	}
	return "player"
}

func stringArg(step Step, key string) string {
	raw, _ := step.Args[key].(string)
	return raw
}

func intArg(step Step, key string) int {
	switch v := step.Args[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func boolArg(step Step, key string) bool {
	raw, _ := step.Args[key].(bool)
	return raw
}

func pathArg(step Step) []string {
	raw, ok := step.Args["path"].([]any)
	if !ok {
		if single, ok := step.Args["path"].(string); ok && single != "" {
			return strings.Split(single, ".")
		}
		return nil
	}
	path := make([]string, 0, len(raw))
	for _, segment := range raw {
		if s, ok := segment.(string); ok {
			path = append(path, s)
		}
	}
	return path
}

func invokesArg(step Step) []resolve.Invoke {
	raw, ok := step.Args["invokes"].([]any)
	if !ok {
		return nil
	}
	invokes := make([]resolve.Invoke, 0, len(raw))
	for _, entry := range raw {
		table, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		invoke := resolve.Invoke{}
		if tag, ok := table["tag"].(string); ok {
			invoke.Tag = tag
		}
		if reroll, ok := table["reroll"].(bool); ok {
			invoke.Reroll = reroll
		}
		switch bonus := table["bonus"].(type) {
		case int:
			invoke.Bonus = bonus
		case float64:
			invoke.Bonus = int(bonus)
		}
		invokes = append(invokes, invoke)
	}
	return invokes
}
