package dto

import "time"

type StartSessionRequest struct {
	StudentID string `json:"student_id" binding:"required"`
}

// AnswerRequest overwrites the draft answer of one question. An empty
// payload is accepted and graded as unanswered.
type AnswerRequest struct {
	Payload string `json:"payload"`
}

type SessionResponseDTO struct {
	SessionID        string                `json:"session_id"`
	AttemptID        uint                  `json:"attempt_id"`
	StudentID        string                `json:"student_id"`
	ScheduledTestID  uint                  `json:"scheduled_test_id"`
	State            string                `json:"state"`
	Resumed          bool                  `json:"resumed"`
	StartedAt        time.Time             `json:"started_at"`
	Deadline         *time.Time            `json:"deadline,omitempty"`
	RemainingSeconds *int64                `json:"remaining_seconds,omitempty"`
	Questions        []QuestionResponseDTO `json:"questions,omitempty"`
	Answers          map[uint]string       `json:"answers,omitempty"`
	Outcome          *OutcomeDTO           `json:"outcome,omitempty"`
}

type OutcomeDTO struct {
	AttemptID    uint      `json:"attempt_id"`
	Score        float64   `json:"score"`
	Percentage   float64   `json:"percentage"`
	EarnedPoints int       `json:"earned_points"`
	TotalPoints  int       `json:"total_points"`
	Passed       *bool     `json:"passed,omitempty"`
	Trigger      string    `json:"trigger"`
	EndedAt      time.Time `json:"ended_at"`
}
