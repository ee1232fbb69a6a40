package repository

import (
	"context"

	"github.com/lshigami/timedtest/internal/model"
	"gorm.io/gorm"
)

type AnswerRepository interface {
	FindByAttemptID(ctx context.Context, attemptID uint) ([]model.Answer, error)
}

type answerRepository struct {
	db *gorm.DB
}

func NewAnswerRepository(db *gorm.DB) AnswerRepository {
	return &answerRepository{db: db}
}

// FindByAttemptID returns the graded answers of an attempt with their questions.
func (r *answerRepository) FindByAttemptID(ctx context.Context, attemptID uint) ([]model.Answer, error) {
	var answers []model.Answer
	err := r.db.WithContext(ctx).
		Preload("Question").
		Where("attempt_id = ?", attemptID).
		Order("question_id ASC").
		Find(&answers).Error
	return answers, err
}
