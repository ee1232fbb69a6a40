package dto

import "time"

type ErrorResponse struct {
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
	Details []string `json:"details,omitempty"`
}

// AnswerResponseDTO is one graded answer of a finalized attempt.
type AnswerResponseDTO struct {
	QuestionID    uint                `json:"question_id"`
	Question      QuestionResponseDTO `json:"question"`
	Payload       *string             `json:"payload,omitempty"`
	IsCorrect     bool                `json:"is_correct"`
	PointsAwarded int                 `json:"points_awarded"`
}

// AttemptDetailDTO is the result view of one attempt.
type AttemptDetailDTO struct {
	ID              uint                `json:"id"`
	ScheduledTestID uint                `json:"scheduled_test_id"`
	TestTitle       string              `json:"test_title,omitempty"`
	StudentID       string              `json:"student_id"`
	Status          string              `json:"status"`
	StartedAt       time.Time           `json:"started_at"`
	EndedAt         *time.Time          `json:"ended_at,omitempty"`
	Score           *float64            `json:"score,omitempty"`
	Percentage      *float64            `json:"percentage,omitempty"`
	Passed          *bool               `json:"passed,omitempty"`
	EarnedPoints    int                 `json:"earned_points"`
	TotalPoints     int                 `json:"total_points"`
	Answers         []AnswerResponseDTO `json:"answers,omitempty"`
}

// AttemptSummaryDTO is for listing a student's attempts on a scheduled test.
type AttemptSummaryDTO struct {
	ID              uint       `json:"id"`
	ScheduledTestID uint       `json:"scheduled_test_id"`
	StudentID       string     `json:"student_id"`
	Status          string     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	Score           *float64   `json:"score,omitempty"`
	Percentage      *float64   `json:"percentage,omitempty"`
	Passed          *bool      `json:"passed,omitempty"`
}
