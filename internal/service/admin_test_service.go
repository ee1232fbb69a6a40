package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jinzhu/copier"
	"github.com/lshigami/timedtest/internal/dto"
	"github.com/lshigami/timedtest/internal/model"
	"github.com/lshigami/timedtest/internal/repository"
	"github.com/rs/zerolog/log"
)

// ErrInvalidInput marks validation failures of authoring requests.
var ErrInvalidInput = errors.New("invalid input")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

type AdminTestService interface {
	CreateTest(ctx context.Context, req dto.TestCreateDTO) (*dto.TestResponseDTO, error)
	ScheduleTest(ctx context.Context, req dto.ScheduledTestCreateDTO) (*dto.ScheduledTestResponseDTO, error)
}

type adminTestService struct {
	testRepo      repository.TestRepository
	scheduledRepo repository.ScheduledTestRepository
}

func NewAdminTestService(testRepo repository.TestRepository, scheduledRepo repository.ScheduledTestRepository) AdminTestService {
	return &adminTestService{testRepo: testRepo, scheduledRepo: scheduledRepo}
}

func (s *adminTestService) CreateTest(ctx context.Context, req dto.TestCreateDTO) (*dto.TestResponseDTO, error) {
	if len(req.Questions) == 0 {
		return nil, invalid("a test needs at least one question")
	}

	orderMap := make(map[int]bool)
	questions := make([]model.Question, 0, len(req.Questions))
	for _, qDto := range req.Questions {
		if orderMap[qDto.OrderInTest] {
			return nil, invalid("duplicate order_in_test %d found in questions", qDto.OrderInTest)
		}
		orderMap[qDto.OrderInTest] = true

		q, err := buildQuestion(qDto)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}

	testModel := model.Test{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Questions:   questions,
	}
	if err := s.testRepo.Create(ctx, &testModel); err != nil {
		log.Error().Err(err).Msg("Failed to create test in database")
		return nil, fmt.Errorf("database error creating test: %w", err)
	}

	created, err := s.testRepo.FindByIDWithQuestions(ctx, testModel.ID)
	if err != nil {
		log.Error().Err(err).Uint("testID", testModel.ID).Msg("Failed to retrieve newly created test with questions for response")
		created = &testModel
	}
	return toTestResponse(created)
}

// buildQuestion validates one question and normalizes its answer key.
func buildQuestion(qDto dto.QuestionCreateDTO) (model.Question, error) {
	q := model.Question{
		Prompt:      qDto.Prompt,
		Type:        model.QuestionType(qDto.Type),
		OrderInTest: qDto.OrderInTest,
		Points:      qDto.Points,
	}
	if q.Points <= 0 {
		q.Points = model.DefaultPoints
	}
	key := strings.TrimSpace(qDto.CorrectAnswer)

	switch q.Type {
	case model.QuestionMultipleChoice:
		if len(qDto.Options) < 2 {
			return q, invalid("question %d: multiple_choice needs at least 2 options", qDto.OrderInTest)
		}
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 1 || idx > len(qDto.Options) {
			return q, invalid("question %d: correct_answer must be an option index between 1 and %d", qDto.OrderInTest, len(qDto.Options))
		}
		q.Options = qDto.Options
		key = strconv.Itoa(idx)
	case model.QuestionTrueFalse:
		key = strings.ToLower(key)
		if key != "true" && key != "false" {
			return q, invalid("question %d: correct_answer must be \"true\" or \"false\"", qDto.OrderInTest)
		}
	case model.QuestionShortAnswer:
		if key == "" {
			return q, invalid("question %d: correct_answer must not be blank", qDto.OrderInTest)
		}
	default:
		return q, invalid("question %d: unsupported type %q", qDto.OrderInTest, qDto.Type)
	}
	if q.Type != model.QuestionMultipleChoice && len(qDto.Options) > 0 {
		return q, invalid("question %d: options are only allowed for multiple_choice", qDto.OrderInTest)
	}
	q.CorrectAnswer = key
	return q, nil
}

func (s *adminTestService) ScheduleTest(ctx context.Context, req dto.ScheduledTestCreateDTO) (*dto.ScheduledTestResponseDTO, error) {
	if req.StartDate != nil && req.DueDate != nil && req.DueDate.Before(*req.StartDate) {
		return nil, invalid("due_date must not be before start_date")
	}
	test, err := s.testRepo.FindByIDWithQuestions(ctx, req.TestID)
	if err != nil {
		return nil, fmt.Errorf("cannot schedule test %d: %w", req.TestID, err)
	}

	var st model.ScheduledTest
	if err := copier.Copy(&st, &req); err != nil {
		return nil, fmt.Errorf("error preparing scheduled test: %w", err)
	}
	if err := s.scheduledRepo.Create(ctx, &st); err != nil {
		log.Error().Err(err).Uint("testID", req.TestID).Msg("Failed to schedule test")
		return nil, err
	}
	st.Test = *test

	log.Info().Uint("scheduledTestID", st.ID).Uint("testID", st.TestID).Str("classID", st.ClassID).Msg("Test scheduled")
	return toScheduledTestResponse(&st)
}

func toTestResponse(t *model.Test) (*dto.TestResponseDTO, error) {
	var resp dto.TestResponseDTO
	if err := copier.Copy(&resp, t); err != nil {
		log.Error().Err(err).Msg("Failed to copy Test model to TestResponseDTO")
		return nil, fmt.Errorf("error preparing response data: %w", err)
	}
	resp.Questions = toQuestionResponses(t.Questions)
	return &resp, nil
}

// toQuestionResponses maps questions for students; answer keys are never copied.
func toQuestionResponses(qs []model.Question) []dto.QuestionResponseDTO {
	out := make([]dto.QuestionResponseDTO, 0, len(qs))
	for _, q := range qs {
		out = append(out, dto.QuestionResponseDTO{
			ID:          q.ID,
			TestID:      q.TestID,
			Prompt:      q.Prompt,
			Type:        string(q.Type),
			OrderInTest: q.OrderInTest,
			Points:      q.EffectivePoints(),
			Options:     []string(q.Options),
		})
	}
	return out
}

func toScheduledTestResponse(st *model.ScheduledTest) (*dto.ScheduledTestResponseDTO, error) {
	resp := dto.ScheduledTestResponseDTO{
		ID:            st.ID,
		TestID:        st.TestID,
		ClassID:       st.ClassID,
		StartDate:     st.StartDate,
		DueDate:       st.DueDate,
		LimitAttempts: st.LimitAttempts,
		PassingScore:  st.PassingScore,
		TimeLimit:     st.TimeLimit,
		CreatedAt:     st.CreatedAt,
	}
	if st.Test.ID != 0 {
		test, err := toTestResponse(&st.Test)
		if err != nil {
			return nil, err
		}
		resp.Test = test
	}
	return &resp, nil
}
