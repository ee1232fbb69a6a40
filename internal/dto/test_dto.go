package dto

import "time"

// QuestionResponseDTO is what students see of a question. It never carries the answer key.
type QuestionResponseDTO struct {
	ID          uint     `json:"id"`
	TestID      uint     `json:"test_id"`
	Prompt      string   `json:"prompt"`
	Type        string   `json:"type"`
	OrderInTest int      `json:"order_in_test"`
	Points      int      `json:"points"`
	Options     []string `json:"options,omitempty"`
}

// TestResponseDTO is used for displaying full test details.
type TestResponseDTO struct {
	ID          uint                  `json:"id"`
	Title       string                `json:"title"`
	Description string                `json:"description,omitempty"`
	Questions   []QuestionResponseDTO `json:"questions,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
}

// TestSummaryDTO is used for listing tests.
type TestSummaryDTO struct {
	ID            uint      `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	QuestionCount int       `json:"question_count"`
	CreatedAt     time.Time `json:"created_at"`
}

type ScheduledTestResponseDTO struct {
	ID            uint             `json:"id"`
	TestID        uint             `json:"test_id"`
	ClassID       string           `json:"class_id"`
	StartDate     *time.Time       `json:"start_date,omitempty"`
	DueDate       *time.Time       `json:"due_date,omitempty"`
	LimitAttempts *int             `json:"limit_attempts,omitempty"`
	PassingScore  *float64         `json:"passing_score,omitempty"`
	TimeLimit     *int             `json:"time_limit,omitempty"`
	Test          *TestResponseDTO `json:"test,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}
