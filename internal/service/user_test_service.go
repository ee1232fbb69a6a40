package service

import (
	"context"
	"fmt"

	"github.com/lshigami/timedtest/internal/dto"
	"github.com/lshigami/timedtest/internal/repository"
	"github.com/rs/zerolog/log"
)

type UserTestService interface {
	GetAllTests(ctx context.Context) ([]dto.TestSummaryDTO, error)
	GetScheduledTest(ctx context.Context, id uint) (*dto.ScheduledTestResponseDTO, error)
	ListScheduledTestsForClass(ctx context.Context, classID string) ([]dto.ScheduledTestResponseDTO, error)
}

type userTestService struct {
	testRepo      repository.TestRepository
	scheduledRepo repository.ScheduledTestRepository
}

func NewUserTestService(testRepo repository.TestRepository, scheduledRepo repository.ScheduledTestRepository) UserTestService {
	return &userTestService{testRepo: testRepo, scheduledRepo: scheduledRepo}
}

func (s *userTestService) GetAllTests(ctx context.Context) ([]dto.TestSummaryDTO, error) {
	testsWithCount, err := s.testRepo.FindAllWithQuestionCount(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get all tests with question count from repository")
		return nil, fmt.Errorf("error fetching tests: %w", err)
	}

	dtos := make([]dto.TestSummaryDTO, 0, len(testsWithCount))
	for _, twc := range testsWithCount {
		dtos = append(dtos, dto.TestSummaryDTO{
			ID:            twc.Test.ID,
			Title:         twc.Test.Title,
			Description:   twc.Test.Description,
			QuestionCount: twc.QuestionCount,
			CreatedAt:     twc.Test.CreatedAt,
		})
	}
	return dtos, nil
}

// GetScheduledTest returns the scheduled test with its questions; answer keys are hidden.
func (s *userTestService) GetScheduledTest(ctx context.Context, id uint) (*dto.ScheduledTestResponseDTO, error) {
	st, err := s.scheduledRepo.FindByIDWithTest(ctx, id)
	if err != nil {
		log.Warn().Err(err).Uint("scheduledTestID", id).Msg("Failed to get scheduled test")
		return nil, err
	}
	return toScheduledTestResponse(st)
}

func (s *userTestService) ListScheduledTestsForClass(ctx context.Context, classID string) ([]dto.ScheduledTestResponseDTO, error) {
	list, err := s.scheduledRepo.FindAllByClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("error fetching scheduled tests for class %s: %w", classID, err)
	}
	out := make([]dto.ScheduledTestResponseDTO, 0, len(list))
	for i := range list {
		resp, err := toScheduledTestResponse(&list[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *resp)
	}
	return out, nil
}
