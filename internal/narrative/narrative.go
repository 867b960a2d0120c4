// Package narrative defines the pluggable prose generation boundary.
//
// The engine treats narration as a presentation concern: narrator
// output is stored on the turn record as description text and never
// feeds back into state, so replay stays deterministic regardless of
// which narrator produced the original prose.
package narrative

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/emberwake.world/internal/state/turn"
)

// Narrator generates prose for finalized turn events.
type Narrator interface {
	// Narrate produces a prose summary of the turn's events.
	Narrate(ctx context.Context, events []turn.Event) (string, error)
	// Classify maps freeform player input to one of the offered
	// choices. Implementations return the chosen label verbatim.
	Classify(ctx context.Context, prompt string, choices []string) (string, error)
}

// TemplateNarrator renders events through fixed templates. It is the
// default narrator: deterministic, offline, and dependency-free.
type TemplateNarrator struct{}

// Narrate joins one templated sentence per event.
func (TemplateNarrator) Narrate(_ context.Context, events []turn.Event) (string, error) {
	if len(events) == 0 {
		return "", nil
	}
	lines := make([]string, 0, len(events))
	for _, evt := range events {
		lines = append(lines, describe(evt))
	}
	return strings.Join(lines, " "), nil
}

// Classify matches the prompt against choice labels, preferring an
// exact match, then a substring match, then the first choice.
func (TemplateNarrator) Classify(_ context.Context, prompt string, choices []string) (string, error) {
	if len(choices) == 0 {
		return "", fmt.Errorf("at least one choice is required")
	}
	normalized := strings.ToLower(strings.TrimSpace(prompt))
	for _, choice := range choices {
		if strings.ToLower(strings.TrimSpace(choice)) == normalized {
			return choice, nil
		}
	}
	for _, choice := range choices {
		if normalized != "" && strings.Contains(normalized, strings.ToLower(strings.TrimSpace(choice))) {
			return choice, nil
		}
	}
	return choices[0], nil
}

func describe(evt turn.Event) string {
	actor := evt.Actor
	if actor == "" {
		actor = "someone"
	}
	switch evt.Kind {
	case turn.KindSkillCheck:
		outcome := "attempts"
		if evt.Shifts != nil {
			switch {
			case *evt.Shifts < 0:
				outcome = "fails"
			case *evt.Shifts >= 3:
				outcome = "masterfully performs"
			default:
				outcome = "succeeds at"
			}
		}
		action := evt.Action
		if action == "" {
			action = "a " + evt.Skill + " check"
		}
		return fmt.Sprintf("%s %s %s.", actor, outcome, action)
	case turn.KindDialogue:
		return fmt.Sprintf("%s speaks: %s", actor, evt.Description)
	case turn.KindMove:
		return fmt.Sprintf("%s moves to %s.", actor, evt.Target)
	default:
		if evt.Description != "" {
			return evt.Description
		}
		return fmt.Sprintf("%s acts.", actor)
	}
}
