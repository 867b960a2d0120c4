package quest

import (
	"strings"

	apperrors "github.com/louisbranch/emberwake.world/internal/errors"
)

var (
	// ErrQuestNotFound indicates an unknown quest id.
	ErrQuestNotFound = apperrors.New(apperrors.CodeQuestNotFound, "quest not found")
	// ErrObjectiveNotFound indicates an unknown objective id.
	ErrObjectiveNotFound = apperrors.New(apperrors.CodeObjectiveNotFound, "objective not found")
	// ErrEmptyQuestID indicates a missing quest id.
	ErrEmptyQuestID = apperrors.New(apperrors.CodeQuestEmptyID, "quest id is required")
	// ErrDuplicateQuest indicates a quest id already in the log.
	ErrDuplicateQuest = apperrors.New(apperrors.CodeQuestDuplicateID, "quest id already exists")
	// ErrInvalidStatus indicates an unsupported quest status value.
	ErrInvalidStatus = apperrors.New(apperrors.CodeQuestInvalidStatus, "quest status is invalid")
	// ErrTerminalStatus indicates a transition out of a terminal status.
	ErrTerminalStatus = apperrors.New(apperrors.CodeQuestTerminalStatus, "quest status is terminal")
	// ErrUnknownStage indicates a stage pointer that names no stage.
	ErrUnknownStage = apperrors.New(apperrors.CodeQuestUnknownStage, "stage id names no stage")
	// ErrInvalidObjective indicates an objective with no id or a
	// non-positive required count.
	ErrInvalidObjective = apperrors.New(apperrors.CodeQuestInvalidObjective, "objective is invalid")
)

// Machine is the quest log state machine for one session. It is not
// safe for concurrent use.
type Machine struct {
	quests map[string]*Quest
	order  []string
	xp     int
}

// NewMachine creates an empty quest log.
func NewMachine() *Machine {
	return &Machine{quests: make(map[string]*Quest)}
}

// UpdateResult describes what one objective update changed.
type UpdateResult struct {
	// Objective is the post-update objective value.
	Objective Objective
	// ObjectiveCompleted is true when this update transitioned the
	// objective to completed.
	ObjectiveCompleted bool
	// StageAdvanced is true when the whole active set completed and the
	// quest moved to its next stage.
	StageAdvanced bool
	// StageID is the current stage after the update, when staged.
	StageID string
	// QuestCompleted is true when this update completed the quest.
	QuestCompleted bool
	// XPAwarded is the XP granted by quest completion, zero otherwise.
	XPAwarded int
}

// Add installs a quest into the log. New quests start active unless a
// valid status is supplied. Staged quests must name an existing current
// stage; the stage's objectives become the working set.
func (m *Machine) Add(q Quest) error {
	q.ID = strings.TrimSpace(q.ID)
	if q.ID == "" {
		return ErrEmptyQuestID
	}
	if _, exists := m.quests[q.ID]; exists {
		return ErrDuplicateQuest
	}
	if q.Status == "" {
		q.Status = StatusActive
	}
	if !q.Status.IsValid() {
		return ErrInvalidStatus
	}

	stored := q.clone()
	if len(stored.Stages) > 0 {
		stage, ok := stored.Stages[stored.CurrentStageID]
		if !ok {
			return ErrUnknownStage
		}
		if next := stage.NextStageID; next != "" {
			if _, ok := stored.Stages[next]; !ok {
				return ErrUnknownStage
			}
		}
		if len(stored.Objectives) == 0 {
			stored.Objectives = resetObjectives(stage.Objectives)
			stored.Description = stage.Description
		}
	}
	for i := range stored.Objectives {
		obj := &stored.Objectives[i]
		if strings.TrimSpace(obj.ID) == "" || obj.Required <= 0 {
			return ErrInvalidObjective
		}
		if obj.Status == "" {
			obj.Status = ObjectiveActive
		}
	}

	m.quests[stored.ID] = &stored
	m.order = append(m.order, stored.ID)
	return nil
}

// Get returns a copy of the quest.
func (m *Machine) Get(questID string) (Quest, error) {
	q, ok := m.quests[questID]
	if !ok {
		return Quest{}, ErrQuestNotFound
	}
	return q.clone(), nil
}

// List returns copies of every quest in insertion order.
func (m *Machine) List() []Quest {
	out := make([]Quest, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.quests[id].clone())
	}
	return out
}

// XP returns the accumulated quest-completion experience.
func (m *Machine) XP() int {
	return m.xp
}

// Milestone returns the milestone tier the accumulated XP has reached.
func (m *Machine) Milestone() MilestoneTier {
	return MilestoneFor(m.xp)
}

// RestoreXP seeds the accumulated experience when rebuilding a machine
// from persisted state. Negative values are treated as zero.
func (m *Machine) RestoreXP(xp int) {
	if xp < 0 {
		xp = 0
	}
	m.xp = xp
}

// UpdateObjective sets an objective's progress count. Counts are
// monotonic: an update at or below the current count is a no-op. When
// the count reaches the requirement the objective completes; when every
// objective in the active set is complete the quest either advances to
// its next stage (counts reset, stage description adopted) or completes.
// Updates against quests already in a terminal status are no-ops, so
// re-applying a completion never re-fires stage advancement or
// double-counts milestones.
func (m *Machine) UpdateObjective(questID, objectiveID string, count int) (UpdateResult, error) {
	q, ok := m.quests[questID]
	if !ok {
		return UpdateResult{}, ErrQuestNotFound
	}

	obj := findObjective(q.Objectives, objectiveID)
	if obj == nil {
		return UpdateResult{}, ErrObjectiveNotFound
	}

	result := UpdateResult{StageID: q.CurrentStageID}
	if q.Status.Terminal() {
		result.Objective = *obj
		return result, nil
	}

	if count > obj.Current {
		obj.Current = count
	}
	if obj.Status == ObjectiveActive && obj.Current >= obj.Required {
		obj.Status = ObjectiveCompleted
		result.ObjectiveCompleted = true
	}
	result.Objective = *obj

	if !result.ObjectiveCompleted || !allCompleted(q.Objectives) {
		return result, nil
	}

	if q.CurrentStageID != "" {
		stage, ok := q.Stages[q.CurrentStageID]
		if !ok {
			return result, ErrUnknownStage
		}
		if stage.NextStageID != "" {
			next, ok := q.Stages[stage.NextStageID]
			if !ok {
				return result, ErrUnknownStage
			}
			q.CurrentStageID = next.ID
			q.Objectives = resetObjectives(next.Objectives)
			q.Description = next.Description
			result.StageAdvanced = true
			result.StageID = next.ID
			return result, nil
		}
	}

	q.Status = StatusCompleted
	result.QuestCompleted = true
	if q.XPReward > 0 {
		m.xp += q.XPReward
		result.XPAwarded = q.XPReward
	}
	return result, nil
}

// SetStatus transitions a quest's status. Only active quests may
// transition, and only into a terminal status or back to active (a
// no-op); terminal quests reject every transition.
func (m *Machine) SetStatus(questID string, status Status) error {
	q, ok := m.quests[questID]
	if !ok {
		return ErrQuestNotFound
	}
	if !status.IsValid() {
		return ErrInvalidStatus
	}
	if q.Status == status {
		return nil
	}
	if q.Status.Terminal() {
		return ErrTerminalStatus
	}
	q.Status = status
	if status == StatusCompleted && q.XPReward > 0 {
		m.xp += q.XPReward
	}
	return nil
}

func findObjective(objectives []Objective, id string) *Objective {
	for i := range objectives {
		if objectives[i].ID == id {
			return &objectives[i]
		}
	}
	return nil
}

func allCompleted(objectives []Objective) bool {
	if len(objectives) == 0 {
		return false
	}
	for _, obj := range objectives {
		if obj.Status != ObjectiveCompleted {
			return false
		}
	}
	return true
}

func resetObjectives(template []Objective) []Objective {
	out := cloneObjectives(template)
	for i := range out {
		out[i].Current = 0
		out[i].Status = ObjectiveActive
	}
	return out
}
