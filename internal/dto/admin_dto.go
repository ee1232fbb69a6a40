package dto

import "time"

// QuestionCreateDTO is used within TestCreateDTO for admin test creation.
type QuestionCreateDTO struct {
	Prompt      string   `json:"prompt" binding:"required"`
	Type        string   `json:"type" binding:"required,oneof=multiple_choice true_false short_answer"`
	OrderInTest int      `json:"order_in_test" binding:"required,min=1"`
	Points      int      `json:"points" binding:"omitempty,min=1"`
	Options     []string `json:"options"`
	// CorrectAnswer is the 1-based option index for multiple_choice,
	// "true"/"false" for true_false and the expected text for short_answer.
	CorrectAnswer string `json:"correct_answer" binding:"required"`
}

// TestCreateDTO is for admin to create a new test with all its questions.
type TestCreateDTO struct {
	Title       string              `json:"title" binding:"required"`
	Description string              `json:"description,omitempty"`
	Questions   []QuestionCreateDTO `json:"questions" binding:"required,min=1,dive"`
}

// ScheduledTestCreateDTO assigns a test to a class. Omitted fields mean "no constraint".
type ScheduledTestCreateDTO struct {
	TestID        uint       `json:"test_id" binding:"required"`
	ClassID       string     `json:"class_id" binding:"required"`
	StartDate     *time.Time `json:"start_date"`
	DueDate       *time.Time `json:"due_date"`
	LimitAttempts *int       `json:"limit_attempts" binding:"omitempty,min=1"`
	PassingScore  *float64   `json:"passing_score" binding:"omitempty,min=0,max=1"`
	TimeLimit     *int       `json:"time_limit" binding:"omitempty,min=1"`
}
