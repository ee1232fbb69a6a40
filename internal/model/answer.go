package model

import "time"

// Answer is a graded, persisted answer. Payload is nil for unanswered questions.
type Answer struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	AttemptID     uint      `json:"attempt_id" gorm:"not null;uniqueIndex:idx_answers_attempt_question"`
	QuestionID    uint      `json:"question_id" gorm:"not null;uniqueIndex:idx_answers_attempt_question"`
	Question      Question  `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
	Payload       *string   `json:"payload,omitempty" gorm:"type:text"`
	IsCorrect     bool      `json:"is_correct" gorm:"not null;default:false"`
	PointsAwarded int       `json:"points_awarded" gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
