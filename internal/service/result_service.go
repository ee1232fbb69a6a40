package service

import (
	"context"
	"fmt"

	"github.com/jinzhu/copier"
	"github.com/lshigami/timedtest/internal/dto"
	"github.com/lshigami/timedtest/internal/model"
	"github.com/lshigami/timedtest/internal/repository"
	"github.com/rs/zerolog/log"
)

// ResultService serves persisted attempts. Nothing here writes.
type ResultService interface {
	GetAttemptDetails(ctx context.Context, attemptID uint) (*dto.AttemptDetailDTO, error)
	GetAttemptHistory(ctx context.Context, scheduledTestID uint, studentID string) ([]dto.AttemptSummaryDTO, error)
}

type resultService struct {
	attemptRepo    repository.AttemptRepository
	answerRepo     repository.AnswerRepository
	scheduledRepo  repository.ScheduledTestRepository
	scoreConverter ScoreConverterService
}

func NewResultService(
	attemptRepo repository.AttemptRepository,
	answerRepo repository.AnswerRepository,
	scheduledRepo repository.ScheduledTestRepository,
	scoreConverter ScoreConverterService,
) ResultService {
	return &resultService{
		attemptRepo:    attemptRepo,
		answerRepo:     answerRepo,
		scheduledRepo:  scheduledRepo,
		scoreConverter: scoreConverter,
	}
}

func (s *resultService) GetAttemptDetails(ctx context.Context, attemptID uint) (*dto.AttemptDetailDTO, error) {
	a, err := s.attemptRepo.FindByIDWithDetails(ctx, attemptID)
	if err != nil {
		log.Warn().Err(err).Uint("attemptID", attemptID).Msg("GetAttemptDetails: Failed to find attempt by ID.")
		return nil, err
	}
	answers, err := s.answerRepo.FindByAttemptID(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("error fetching answers of attempt %d: %w", attemptID, err)
	}

	resp := dto.AttemptDetailDTO{
		ID:              a.ID,
		ScheduledTestID: a.ScheduledTestID,
		TestTitle:       a.ScheduledTest.Test.Title,
		StudentID:       a.StudentID,
		Status:          string(a.Status),
		StartedAt:       a.StartedAt,
		EndedAt:         a.EndedAt,
		Score:           a.Score,
	}
	s.fillScore(a.ScheduledTest, a.Score, &resp.Percentage, &resp.Passed)

	resp.Answers = make([]dto.AnswerResponseDTO, 0, len(answers))
	for _, ans := range answers {
		resp.TotalPoints += ans.Question.EffectivePoints()
		resp.EarnedPoints += ans.PointsAwarded
		resp.Answers = append(resp.Answers, dto.AnswerResponseDTO{
			QuestionID:    ans.QuestionID,
			Question:      toQuestionResponses([]model.Question{ans.Question})[0],
			Payload:       ans.Payload,
			IsCorrect:     ans.IsCorrect,
			PointsAwarded: ans.PointsAwarded,
		})
	}
	return &resp, nil
}

func (s *resultService) GetAttemptHistory(ctx context.Context, scheduledTestID uint, studentID string) ([]dto.AttemptSummaryDTO, error) {
	st, err := s.scheduledRepo.FindByID(ctx, scheduledTestID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.attemptRepo.FindAllByScheduledTestAndStudent(ctx, scheduledTestID, studentID)
	if err != nil {
		log.Error().Err(err).Uint("scheduledTestID", scheduledTestID).Str("studentID", studentID).Msg("GetAttemptHistory: Failed to find attempts from repository.")
		return nil, fmt.Errorf("error fetching attempts for scheduled test %d: %w", scheduledTestID, err)
	}

	dtos := make([]dto.AttemptSummaryDTO, 0, len(attempts))
	for _, a := range attempts {
		var summary dto.AttemptSummaryDTO
		if errCp := copier.Copy(&summary, &a); errCp != nil {
			log.Error().Err(errCp).Uint("attemptID", a.ID).Msg("GetAttemptHistory: Error copying attempt to summary DTO")
			continue
		}
		summary.Status = string(a.Status)
		s.fillScore(*st, a.Score, &summary.Percentage, &summary.Passed)
		dtos = append(dtos, summary)
	}
	return dtos, nil
}

func (s *resultService) fillScore(st model.ScheduledTest, score *float64, percentage **float64, passed **bool) {
	if score == nil {
		return
	}
	pct, err := s.scoreConverter.ToPercentage(*score)
	if err != nil {
		log.Warn().Err(err).Float64("score", *score).Msg("Stored score could not be converted")
		return
	}
	*percentage = &pct
	*passed = s.scoreConverter.Passed(st, *score)
}
