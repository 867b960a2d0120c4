// Package faction tracks bounded, banded relationship scores between
// factions and actors.
package faction

import (
	"strings"

	apperrors "github.com/louisbranch/emberwake.world/internal/errors"
)

// Reputation scores saturate at these bounds; arithmetic never fails on
// out-of-range input.
const (
	MinReputation = -100
	MaxReputation = 100
)

var (
	// ErrFactionNotFound indicates an unknown faction id.
	ErrFactionNotFound = apperrors.New(apperrors.CodeFactionNotFound, "faction not found")
	// ErrEmptyFactionID indicates a missing faction id.
	ErrEmptyFactionID = apperrors.New(apperrors.CodeFactionEmptyID, "faction id is required")
	// ErrEmptyTargetID indicates a missing target actor id.
	ErrEmptyTargetID = apperrors.New(apperrors.CodeFactionEmptyTarget, "target id is required")
	// ErrDuplicateFaction indicates a faction id already in the ledger.
	ErrDuplicateFaction = apperrors.New(apperrors.CodeFactionDuplicateID, "faction id already exists")
)

// Band is a qualitative reputation label derived from a numeric score.
type Band string

const (
	// BandHostile covers scores in [-100, -50].
	BandHostile Band = "hostile"
	// BandUnfriendly covers scores in [-49, -10].
	BandUnfriendly Band = "unfriendly"
	// BandNeutral covers scores in [-9, 9].
	BandNeutral Band = "neutral"
	// BandFriendly covers scores in [10, 49].
	BandFriendly Band = "friendly"
	// BandAllied covers scores in [50, 100].
	BandAllied Band = "allied"
)

// BandFor maps a reputation score onto its band. The mapping is
// monotonic and total: every score in range lands in exactly one band,
// and out-of-range scores are clamped first.
func BandFor(score int) Band {
	score = clamp(score)
	switch {
	case score <= -50:
		return BandHostile
	case score <= -10:
		return BandUnfriendly
	case score <= 9:
		return BandNeutral
	case score <= 49:
		return BandFriendly
	default:
		return BandAllied
	}
}

// Faction is one organization in the world.
type Faction struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Relationships maps target actor id to reputation score.
	Relationships map[string]int `json:"relationships,omitempty"`
	Members       []string       `json:"members,omitempty"`
	Territory     []string       `json:"territory,omitempty"`
}

// Ledger holds the factions for one session. It is not safe for
// concurrent use.
type Ledger struct {
	factions map[string]*Faction
	order    []string
}

// NewLedger creates an empty faction ledger.
func NewLedger() *Ledger {
	return &Ledger{factions: make(map[string]*Faction)}
}

// Add installs a faction. Scores supplied with the faction are clamped.
func (l *Ledger) Add(f Faction) error {
	f.ID = strings.TrimSpace(f.ID)
	if f.ID == "" {
		return ErrEmptyFactionID
	}
	if _, exists := l.factions[f.ID]; exists {
		return ErrDuplicateFaction
	}

	stored := f
	stored.Relationships = make(map[string]int, len(f.Relationships))
	for target, score := range f.Relationships {
		stored.Relationships[target] = clamp(score)
	}
	stored.Members = append([]string(nil), f.Members...)
	stored.Territory = append([]string(nil), f.Territory...)

	l.factions[stored.ID] = &stored
	l.order = append(l.order, stored.ID)
	return nil
}

// Get returns a copy of the faction.
func (l *Ledger) Get(factionID string) (Faction, error) {
	f, ok := l.factions[factionID]
	if !ok {
		return Faction{}, ErrFactionNotFound
	}
	out := *f
	out.Relationships = make(map[string]int, len(f.Relationships))
	for target, score := range f.Relationships {
		out.Relationships[target] = score
	}
	out.Members = append([]string(nil), f.Members...)
	out.Territory = append([]string(nil), f.Territory...)
	return out, nil
}

// List returns copies of every faction in insertion order.
func (l *Ledger) List() []Faction {
	out := make([]Faction, 0, len(l.order))
	for _, id := range l.order {
		f, _ := l.Get(id)
		out = append(out, f)
	}
	return out
}

// UpdateReputation adds delta to the target's score with the faction
// (absent = 0), clamps the result into [-100, 100], stores it and
// returns the new value.
func (l *Ledger) UpdateReputation(factionID, targetID string, delta int) (int, error) {
	f, target, err := l.lookup(factionID, targetID)
	if err != nil {
		return 0, err
	}
	score := clamp(f.Relationships[target] + delta)
	f.Relationships[target] = score
	return score, nil
}

// SetReputation performs an absolute, clamped assignment.
func (l *Ledger) SetReputation(factionID, targetID string, score int) (int, error) {
	f, target, err := l.lookup(factionID, targetID)
	if err != nil {
		return 0, err
	}
	clamped := clamp(score)
	f.Relationships[target] = clamped
	return clamped, nil
}

// Reputation returns the target's score with the faction, zero when the
// pair has no recorded relationship.
func (l *Ledger) Reputation(factionID, targetID string) (int, error) {
	f, ok := l.factions[factionID]
	if !ok {
		return 0, ErrFactionNotFound
	}
	return f.Relationships[strings.TrimSpace(targetID)], nil
}

// Rank returns the qualitative band for the target's score.
func (l *Ledger) Rank(factionID, targetID string) (Band, error) {
	score, err := l.Reputation(factionID, targetID)
	if err != nil {
		return "", err
	}
	return BandFor(score), nil
}

func (l *Ledger) lookup(factionID, targetID string) (*Faction, string, error) {
	f, ok := l.factions[factionID]
	if !ok {
		return nil, "", ErrFactionNotFound
	}
	target := strings.TrimSpace(targetID)
	if target == "" {
		return nil, "", ErrEmptyTargetID
	}
	if f.Relationships == nil {
		f.Relationships = make(map[string]int)
	}
	return f, target, nil
}

func clamp(score int) int {
	if score < MinReputation {
		return MinReputation
	}
	if score > MaxReputation {
		return MaxReputation
	}
	return score
}
