package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionShortAnswer    QuestionType = "short_answer"
)

// DefaultPoints is used when a question has no point value.
const DefaultPoints = 1

type Question struct {
	ID          uint         `gorm:"primarykey" json:"id"`
	TestID      uint         `json:"test_id" gorm:"not null;index"`
	Prompt      string       `json:"prompt" gorm:"type:text;not null"`
	Type        QuestionType `json:"type" gorm:"not null"`
	OrderInTest int          `json:"order_in_test" gorm:"not null"`
	Points      int          `json:"points" gorm:"not null;default:1"`
	// Options is only set for multiple_choice; answers refer to it by 1-based index.
	Options datatypes.JSONSlice[string] `json:"options,omitempty"`
	// CorrectAnswer holds the option index as text, "true"/"false", or the expected text.
	CorrectAnswer string         `json:"-" gorm:"type:text;not null"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// EffectivePoints returns the question's point value, falling back to
// DefaultPoints when unset.
func (q Question) EffectivePoints() int {
	if q.Points <= 0 {
		return DefaultPoints
	}
	return q.Points
}
