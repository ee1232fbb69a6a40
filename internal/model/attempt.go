package model

import "time"

type AttemptStatus string

const (
	// AttemptInProgress: a live session owns the attempt.
	AttemptInProgress AttemptStatus = "in_progress"
	// AttemptAbandoned: the session was torn down without submitting; the attempt can be resumed.
	AttemptAbandoned AttemptStatus = "abandoned"
	// AttemptFinalized: EndedAt and Score are set and never change again.
	AttemptFinalized AttemptStatus = "finalized"
)

// Open reports whether the attempt still counts as the unfinished attempt for its pair.
func (s AttemptStatus) Open() bool {
	return s == AttemptInProgress || s == AttemptAbandoned
}

type Attempt struct {
	ID              uint          `gorm:"primarykey" json:"id"`
	StudentID       string        `json:"student_id" gorm:"not null;index:idx_attempts_pair;size:255"`
	ScheduledTestID uint          `json:"scheduled_test_id" gorm:"not null;index:idx_attempts_pair"`
	ScheduledTest   ScheduledTest `json:"scheduled_test,omitempty" gorm:"foreignKey:ScheduledTestID"`
	Status          AttemptStatus `json:"status" gorm:"not null;default:'in_progress';index"`
	StartedAt       time.Time     `json:"started_at" gorm:"not null"`
	EndedAt         *time.Time    `json:"ended_at,omitempty"`
	// Score is the fraction of total points earned, in [0,1].
	Score     *float64  `json:"score,omitempty"`
	Answers   []Answer  `json:"answers,omitempty" gorm:"foreignKey:AttemptID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
