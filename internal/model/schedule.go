package model

import "time"

// ScheduledTest is a Test assigned to a class. Every optional field is nil
// when the constraint does not apply.
type ScheduledTest struct {
	ID            uint       `gorm:"primarykey" json:"id"`
	TestID        uint       `json:"test_id" gorm:"not null;index"`
	Test          Test       `json:"test,omitempty" gorm:"foreignKey:TestID"`
	ClassID       string     `json:"class_id" gorm:"not null;index;size:255"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	LimitAttempts *int       `json:"limit_attempts,omitempty"`
	// PassingScore is a fraction in [0,1], compared against Attempt.Score.
	PassingScore *float64 `json:"passing_score,omitempty"`
	// TimeLimit is the per-attempt budget in minutes.
	TimeLimit *int      `json:"time_limit,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TimeBudget converts TimeLimit to a duration. ok is false when the test is untimed.
func (st ScheduledTest) TimeBudget() (d time.Duration, ok bool) {
	if st.TimeLimit == nil || *st.TimeLimit <= 0 {
		return 0, false
	}
	return time.Duration(*st.TimeLimit) * time.Minute, true
}

// Passed reports whether score meets the passing threshold. It returns nil
// when no threshold is configured.
func (st ScheduledTest) Passed(score float64) *bool {
	if st.PassingScore == nil {
		return nil
	}
	passed := score >= *st.PassingScore
	return &passed
}
