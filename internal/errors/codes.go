// Package errors provides structured error handling for the engine.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Turn ledger errors
	CodeTurnNotActive      Code = "TURN_NOT_ACTIVE"
	CodeTurnAlreadyActive  Code = "TURN_ALREADY_ACTIVE"
	CodeTurnFinalized      Code = "TURN_FINALIZED"
	CodeEventInvalidKind   Code = "EVENT_INVALID_KIND"
	CodeEventEmptyActor    Code = "EVENT_EMPTY_ACTOR"
	CodeTurnEmptyActor     Code = "TURN_EMPTY_ACTOR"
	CodeTurnEmptySceneID   Code = "TURN_EMPTY_SCENE_ID"
	CodeTurnForeignContext Code = "TURN_FOREIGN_CONTEXT"

	// Delta errors
	CodeDeltaInvalidTarget    Code = "DELTA_INVALID_TARGET"
	CodeDeltaInvalidOperation Code = "DELTA_INVALID_OPERATION"
	CodeDeltaEmptyPath        Code = "DELTA_EMPTY_PATH"
	CodeDeltaUnthreadedEvent  Code = "DELTA_UNTHREADED_EVENT"
	CodeDeltaSequenceGap      Code = "DELTA_SEQUENCE_GAP"
	CodeDeltaTypeMismatch     Code = "DELTA_TYPE_MISMATCH"

	// Quest errors
	CodeQuestNotFound         Code = "QUEST_NOT_FOUND"
	CodeObjectiveNotFound     Code = "OBJECTIVE_NOT_FOUND"
	CodeQuestInvalidStatus    Code = "QUEST_INVALID_STATUS"
	CodeQuestTerminalStatus   Code = "QUEST_TERMINAL_STATUS"
	CodeQuestUnknownStage     Code = "QUEST_UNKNOWN_STAGE"
	CodeObjectiveCountRewind  Code = "OBJECTIVE_COUNT_REWIND"
	CodeQuestEmptyID          Code = "QUEST_EMPTY_ID"
	CodeQuestDuplicateID      Code = "QUEST_DUPLICATE_ID"
	CodeObjectiveDuplicateID  Code = "OBJECTIVE_DUPLICATE_ID"
	CodeQuestInvalidObjective Code = "QUEST_INVALID_OBJECTIVE"

	// Faction errors
	CodeFactionNotFound    Code = "FACTION_NOT_FOUND"
	CodeFactionEmptyID     Code = "FACTION_EMPTY_ID"
	CodeFactionEmptyTarget Code = "FACTION_EMPTY_TARGET"
	CodeFactionDuplicateID Code = "FACTION_DUPLICATE_ID"

	// Session errors
	CodeSessionEmptyID       Code = "SESSION_EMPTY_ID"
	CodeSessionNotFound      Code = "SESSION_NOT_FOUND"
	CodeSessionSnapshotStale Code = "SESSION_SNAPSHOT_STALE"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"

	// Scenario errors
	CodeScenarioInvalid Code = "SCENARIO_INVALID"
)
