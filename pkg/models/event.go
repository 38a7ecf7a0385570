package models

// EventType identifies a progress event emitted during a run.
type EventType string

const (
	// EventRoundStarted fires after the dedup pass of a round.
	EventRoundStarted EventType = "round_started"
	// EventQuestionResolved fires when a question's answer is recorded.
	EventQuestionResolved EventType = "question_resolved"
	// EventRoundFinished fires after the round barrier.
	EventRoundFinished EventType = "round_finished"
	// EventRunFinished fires once when the run ends.
	EventRunFinished EventType = "run_finished"
)

// Event is a progress notification from the engine.
type Event struct {
	Type EventType `json:"type"`
	// RunID identifies the run.
	RunID string `json:"run_id"`
	// Round is the 0-indexed round (also the depth being processed).
	Round int `json:"round"`
	// Pending is the number of questions admitted in the round.
	Pending int `json:"pending,omitempty"`
	// Dropped is the number of duplicates dropped in the round.
	Dropped int `json:"dropped,omitempty"`
	// Question is set for EventQuestionResolved.
	Question string `json:"question,omitempty"`
	// Source is set for EventQuestionResolved.
	Source Source `json:"source,omitempty"`
	// Stats is set for EventRoundFinished and EventRunFinished.
	Stats Stats `json:"stats"`
}
