package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/lshigami/timedtest/internal/attempt"
	"github.com/lshigami/timedtest/internal/model"
	"gorm.io/gorm"
)

type ScheduledTestRepository interface {
	Create(ctx context.Context, st *model.ScheduledTest) error
	FindByID(ctx context.Context, id uint) (*model.ScheduledTest, error)
	FindByIDWithTest(ctx context.Context, id uint) (*model.ScheduledTest, error)
	FindAllByClass(ctx context.Context, classID string) ([]model.ScheduledTest, error)
}

type scheduledTestRepository struct {
	db *gorm.DB
}

func NewScheduledTestRepository(db *gorm.DB) ScheduledTestRepository {
	return &scheduledTestRepository{db: db}
}

func (r *scheduledTestRepository) Create(ctx context.Context, st *model.ScheduledTest) error {
	if err := r.db.WithContext(ctx).Omit("Test").Create(st).Error; err != nil {
		return fmt.Errorf("failed to schedule test: %w", err)
	}
	return nil
}

func (r *scheduledTestRepository) FindByID(ctx context.Context, id uint) (*model.ScheduledTest, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// FindByIDWithTest also loads the test and its ordered questions.
func (r *scheduledTestRepository) FindByIDWithTest(ctx context.Context, id uint) (*model.ScheduledTest, error) {
	q := r.db.WithContext(ctx).
		Preload("Test").
		Preload("Test.Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.order_in_test ASC")
		})
	return r.find(q, id)
}

func (r *scheduledTestRepository) find(q *gorm.DB, id uint) (*model.ScheduledTest, error) {
	var st model.ScheduledTest
	err := q.First(&st, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, attempt.ErrScheduledTestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *scheduledTestRepository) FindAllByClass(ctx context.Context, classID string) ([]model.ScheduledTest, error) {
	var out []model.ScheduledTest
	err := r.db.WithContext(ctx).Where("class_id = ?", classID).Order("start_date ASC, id ASC").Find(&out).Error
	return out, err
}

// ContentStore serves test content to the attempt engine.
type ContentStore struct {
	scheduled ScheduledTestRepository
	questions QuestionRepository
}

func NewContentStore(scheduled ScheduledTestRepository, questions QuestionRepository) *ContentStore {
	return &ContentStore{scheduled: scheduled, questions: questions}
}

func (c *ContentStore) GetScheduledTest(ctx context.Context, id uint) (model.ScheduledTest, error) {
	st, err := c.scheduled.FindByID(ctx, id)
	if err != nil {
		return model.ScheduledTest{}, err
	}
	return *st, nil
}

func (c *ContentStore) GetQuestions(ctx context.Context, testID uint) ([]model.Question, error) {
	return c.questions.FindByTestID(ctx, testID)
}
