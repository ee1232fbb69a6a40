package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/lshigami/timedtest/internal/model"
	"gorm.io/gorm"
)

var ErrTestNotFound = errors.New("test not found")

type TestRepository interface {
	Create(ctx context.Context, test *model.Test) error
	FindByIDWithQuestions(ctx context.Context, id uint) (*model.Test, error)
	FindAllWithQuestionCount(ctx context.Context) ([]TestSummary, error)
}

// TestSummary is a test row plus the number of its live questions.
type TestSummary struct {
	model.Test
	QuestionCount int
}

type testRepository struct {
	db *gorm.DB
}

func NewTestRepository(db *gorm.DB) TestRepository {
	return &testRepository{db: db}
}

// Create inserts the test together with test.Questions.
func (r *testRepository) Create(ctx context.Context, test *model.Test) error {
	if err := r.db.WithContext(ctx).Create(test).Error; err != nil {
		return fmt.Errorf("failed to create test: %w", err)
	}
	return nil
}

func (r *testRepository) FindByIDWithQuestions(ctx context.Context, id uint) (*model.Test, error) {
	var test model.Test
	err := r.db.WithContext(ctx).Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("questions.order_in_test ASC")
	}).First(&test, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTestNotFound
	}
	return &test, err
}

func (r *testRepository) FindAllWithQuestionCount(ctx context.Context) ([]TestSummary, error) {
	var results []TestSummary
	err := r.db.WithContext(ctx).Model(&model.Test{}).
		Select("tests.*, (SELECT COUNT(*) FROM questions WHERE questions.test_id = tests.id AND questions.deleted_at IS NULL) as question_count").
		Where("tests.deleted_at IS NULL").
		Order("tests.created_at DESC").
		Scan(&results).Error
	return results, err
}
