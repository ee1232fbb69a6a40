package attempt

import (
	"context"
	"time"

	"github.com/lshigami/timedtest/internal/model"
)

// ContentStore serves immutable test content. The engine only reads from it.
type ContentStore interface {
	GetScheduledTest(ctx context.Context, id uint) (model.ScheduledTest, error)
	// GetQuestions returns the questions of a test ordered by OrderInTest.
	GetQuestions(ctx context.Context, testID uint) ([]model.Question, error)
}

// AttemptLedger is the read side of AttemptStore that the Gate needs.
type AttemptLedger interface {
	HasInProgressAttempt(ctx context.Context, studentID string, scheduledTestID uint) (bool, error)
	CountFinalizedAttempts(ctx context.Context, studentID string, scheduledTestID uint) (int64, error)
}

// AttemptStore persists attempts and graded answers. Implementations must
// make each call atomic and enforce at most one open attempt per
// (student, scheduled test).
type AttemptStore interface {
	AttemptLedger

	// CreateOrResumeAttempt returns the open attempt for the pair, flipping an
	// abandoned one back to in progress, or creates a new one. It returns
	// ErrAttemptAlreadyInProgress when a live session already owns the open
	// attempt and ErrAttemptLimitExceeded when no new attempt may be created.
	CreateOrResumeAttempt(ctx context.Context, studentID string, st model.ScheduledTest, now time.Time) (a model.Attempt, resumed bool, err error)
	// FinalizeAttempt sets end time, score and the finalized status. It is a
	// no-op on an attempt that is already finalized.
	FinalizeAttempt(ctx context.Context, attemptID uint, endTime time.Time, score float64) error
	// SaveAnswers upserts graded answers keyed by (attempt, question).
	SaveAnswers(ctx context.Context, attemptID uint, graded []model.Answer) error
	// MarkAbandoned moves an in-progress attempt to abandoned.
	MarkAbandoned(ctx context.Context, attemptID uint) error
	// ListAbandonedPastDue returns abandoned attempts whose scheduled test
	// closed (due date) before now.
	ListAbandonedPastDue(ctx context.Context, now time.Time) ([]model.Attempt, error)
	// Transaction runs fn against a store bound to a single transaction.
	Transaction(ctx context.Context, fn func(tx AttemptStore) error) error
}

// DraftCheckpoint keeps draft answers of abandoned attempts so a resumed
// session can restore them.
type DraftCheckpoint interface {
	Save(ctx context.Context, attemptID uint, drafts map[uint]string) error
	Load(ctx context.Context, attemptID uint) (map[uint]string, error)
	Delete(ctx context.Context, attemptID uint) error
}
