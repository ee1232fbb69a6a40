package repository

import (
	"context"
	"errors"
	"time"

	"github.com/lshigami/timedtest/internal/attempt"
	"github.com/lshigami/timedtest/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var openStatuses = []model.AttemptStatus{model.AttemptInProgress, model.AttemptAbandoned}

// AttemptRepository is the durable attempt ledger used by the engine plus
// the read paths of the results API.
type AttemptRepository interface {
	attempt.AttemptStore
	FindByIDWithDetails(ctx context.Context, id uint) (*model.Attempt, error)
	FindAllByScheduledTestAndStudent(ctx context.Context, scheduledTestID uint, studentID string) ([]model.Attempt, error)
	// ReleaseOrphans marks every in_progress attempt abandoned. It runs at
	// boot, before any session exists, so all such attempts are orphans.
	ReleaseOrphans(ctx context.Context) (int64, error)
}

type attemptRepository struct {
	db *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

func (r *attemptRepository) HasInProgressAttempt(ctx context.Context, studentID string, scheduledTestID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Attempt{}).
		Where("student_id = ? AND scheduled_test_id = ? AND status = ?", studentID, scheduledTestID, model.AttemptInProgress).
		Count(&n).Error
	return n > 0, err
}

func (r *attemptRepository) CountFinalizedAttempts(ctx context.Context, studentID string, scheduledTestID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Attempt{}).
		Where("student_id = ? AND scheduled_test_id = ? AND status = ?", studentID, scheduledTestID, model.AttemptFinalized).
		Count(&n).Error
	return n, err
}

// CreateOrResumeAttempt claims the pair's abandoned attempt if there is one,
// otherwise inserts a fresh in_progress attempt. The partial unique index on
// open attempts turns a concurrent insert into ErrAttemptAlreadyInProgress.
func (r *attemptRepository) CreateOrResumeAttempt(ctx context.Context, studentID string, st model.ScheduledTest, now time.Time) (model.Attempt, bool, error) {
	var (
		out     model.Attempt
		resumed bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open model.Attempt
		err := tx.Where("student_id = ? AND scheduled_test_id = ? AND status IN ?", studentID, st.ID, openStatuses).
			Order("id ASC").First(&open).Error
		switch {
		case err == nil:
			if open.Status == model.AttemptInProgress {
				return attempt.ErrAttemptAlreadyInProgress
			}
			res := tx.Model(&model.Attempt{}).
				Where("id = ? AND status = ?", open.ID, model.AttemptAbandoned).
				Update("status", model.AttemptInProgress)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return attempt.ErrAttemptAlreadyInProgress
			}
			open.Status = model.AttemptInProgress
			out, resumed = open, true
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		if st.LimitAttempts != nil {
			var n int64
			if err := tx.Model(&model.Attempt{}).
				Where("student_id = ? AND scheduled_test_id = ? AND status = ?", studentID, st.ID, model.AttemptFinalized).
				Count(&n).Error; err != nil {
				return err
			}
			if n >= int64(*st.LimitAttempts) {
				return attempt.ErrAttemptLimitExceeded
			}
		}

		a := model.Attempt{
			StudentID:       studentID,
			ScheduledTestID: st.ID,
			Status:          model.AttemptInProgress,
			StartedAt:       now,
		}
		if err := tx.Omit(clause.Associations).Create(&a).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return attempt.ErrAttemptAlreadyInProgress
			}
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return model.Attempt{}, false, err
	}
	return out, resumed, nil
}

// FinalizeAttempt writes the terminal fields once. Finalizing an already
// finalized attempt is a no-op so a retried transaction cannot change the score.
func (r *attemptRepository) FinalizeAttempt(ctx context.Context, id uint, endTime time.Time, score float64) error {
	db := r.db.WithContext(ctx)
	res := db.Model(&model.Attempt{}).
		Where("id = ? AND status IN ?", id, openStatuses).
		Updates(map[string]any{
			"status":   model.AttemptFinalized,
			"ended_at": endTime,
			"score":    score,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	status, err := r.status(db, id)
	if err != nil {
		return err
	}
	if status == model.AttemptFinalized {
		return nil
	}
	return attempt.ErrAttemptNotOpen
}

// SaveAnswers upserts graded answers keyed by (attempt, question).
func (r *attemptRepository) SaveAnswers(ctx context.Context, attemptID uint, graded []model.Answer) error {
	if len(graded) == 0 {
		return nil
	}
	rows := make([]model.Answer, len(graded))
	for i, a := range graded {
		a.ID = 0
		a.AttemptID = attemptID
		rows[i] = a
	}
	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "is_correct", "points_awarded", "updated_at"}),
		}).
		Create(&rows).Error
}

func (r *attemptRepository) MarkAbandoned(ctx context.Context, id uint) error {
	db := r.db.WithContext(ctx)
	res := db.Model(&model.Attempt{}).
		Where("id = ? AND status = ?", id, model.AttemptInProgress).
		Update("status", model.AttemptAbandoned)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	if _, err := r.status(db, id); err != nil {
		return err
	}
	return attempt.ErrAttemptNotOpen
}

func (r *attemptRepository) ListAbandonedPastDue(ctx context.Context, now time.Time) ([]model.Attempt, error) {
	db := r.db.WithContext(ctx)
	closed := db.Model(&model.ScheduledTest{}).
		Select("id").
		Where("due_date IS NOT NULL AND due_date < ?", now)
	var attempts []model.Attempt
	err := db.Where("status = ? AND scheduled_test_id IN (?)", model.AttemptAbandoned, closed).
		Order("id ASC").
		Find(&attempts).Error
	return attempts, err
}

// Transaction runs fn against a repository bound to one database transaction.
func (r *attemptRepository) Transaction(ctx context.Context, fn func(tx attempt.AttemptStore) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&attemptRepository{db: tx})
	})
}

func (r *attemptRepository) ReleaseOrphans(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Attempt{}).
		Where("status = ?", model.AttemptInProgress).
		Update("status", model.AttemptAbandoned)
	return res.RowsAffected, res.Error
}

func (r *attemptRepository) FindByIDWithDetails(ctx context.Context, id uint) (*model.Attempt, error) {
	var a model.Attempt
	err := r.db.WithContext(ctx).
		Preload("ScheduledTest").
		Preload("ScheduledTest.Test").
		First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, attempt.ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *attemptRepository) FindAllByScheduledTestAndStudent(ctx context.Context, scheduledTestID uint, studentID string) ([]model.Attempt, error) {
	var attempts []model.Attempt
	q := r.db.WithContext(ctx).Where("scheduled_test_id = ?", scheduledTestID)
	if studentID != "" {
		q = q.Where("student_id = ?", studentID)
	}
	err := q.Order("started_at DESC, id DESC").Find(&attempts).Error
	return attempts, err
}

func (r *attemptRepository) status(db *gorm.DB, id uint) (model.AttemptStatus, error) {
	var a model.Attempt
	err := db.Select("id", "status").First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", attempt.ErrAttemptNotFound
	}
	return a.Status, err
}
