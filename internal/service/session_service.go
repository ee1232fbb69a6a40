package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lshigami/timedtest/internal/attempt"
	"github.com/lshigami/timedtest/internal/dto"
	"github.com/rs/zerolog/log"
)

// SessionService is the presentation-facing side of the attempt engine.
type SessionService interface {
	Start(ctx context.Context, scheduledTestID uint, studentID string) (*dto.SessionResponseDTO, error)
	Get(ctx context.Context, sessionID uuid.UUID) (*dto.SessionResponseDTO, error)
	SetAnswer(ctx context.Context, sessionID uuid.UUID, questionID uint, payload string) error
	Answers(ctx context.Context, sessionID uuid.UUID) (map[uint]string, error)
	Submit(ctx context.Context, sessionID uuid.UUID) (*dto.OutcomeDTO, error)
	Abandon(ctx context.Context, sessionID uuid.UUID) error
	// Watch returns the session and a feed of its events. cancel must be called when done.
	Watch(sessionID uuid.UUID) (s *attempt.Session, events <-chan attempt.Event, cancel func(), err error)
}

type sessionService struct {
	engine         *attempt.Engine
	broadcaster    *attempt.Broadcaster
	scoreConverter ScoreConverterService
}

func NewSessionService(engine *attempt.Engine, broadcaster *attempt.Broadcaster, scoreConverter ScoreConverterService) SessionService {
	return &sessionService{engine: engine, broadcaster: broadcaster, scoreConverter: scoreConverter}
}

func (s *sessionService) Start(ctx context.Context, scheduledTestID uint, studentID string) (*dto.SessionResponseDTO, error) {
	sess, err := s.engine.Begin(ctx, studentID, scheduledTestID)
	if err != nil {
		return nil, err
	}
	resp := s.toResponse(sess)
	resp.Questions = toQuestionResponses(sess.Questions())
	return resp, nil
}

func (s *sessionService) Get(_ context.Context, sessionID uuid.UUID) (*dto.SessionResponseDTO, error) {
	sess, err := s.engine.Session(sessionID)
	if err != nil {
		return nil, err
	}
	resp := s.toResponse(sess)
	resp.Questions = toQuestionResponses(sess.Questions())
	resp.Answers = sess.Answers()
	return resp, nil
}

func (s *sessionService) SetAnswer(ctx context.Context, sessionID uuid.UUID, questionID uint, payload string) error {
	sess, err := s.engine.Session(sessionID)
	if err != nil {
		return err
	}
	return sess.SetAnswer(ctx, questionID, payload)
}

func (s *sessionService) Answers(_ context.Context, sessionID uuid.UUID) (map[uint]string, error) {
	sess, err := s.engine.Session(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Answers(), nil
}

func (s *sessionService) Submit(ctx context.Context, sessionID uuid.UUID) (*dto.OutcomeDTO, error) {
	sess, err := s.engine.Session(sessionID)
	if err != nil {
		return nil, err
	}
	out, err := sess.Submit(ctx)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Submit failed")
		return nil, err
	}
	return s.toOutcome(out), nil
}

func (s *sessionService) Abandon(ctx context.Context, sessionID uuid.UUID) error {
	sess, err := s.engine.Session(sessionID)
	if err != nil {
		return err
	}
	return sess.Abandon(ctx)
}

func (s *sessionService) Watch(sessionID uuid.UUID) (*attempt.Session, <-chan attempt.Event, func(), error) {
	sess, err := s.engine.Session(sessionID)
	if err != nil {
		return nil, nil, nil, err
	}
	events, cancel := s.broadcaster.Subscribe(sessionID)
	return sess, events, cancel, nil
}

func (s *sessionService) toResponse(sess *attempt.Session) *dto.SessionResponseDTO {
	st := sess.ScheduledTest()
	resp := &dto.SessionResponseDTO{
		SessionID:       sess.ID.String(),
		AttemptID:       sess.AttemptID(),
		StudentID:       sess.StudentID(),
		ScheduledTestID: st.ID,
		State:           string(sess.State()),
		Resumed:         sess.Resumed(),
		StartedAt:       sess.StartedAt(),
	}
	if deadline, ok := sess.Deadline(); ok {
		resp.Deadline = &deadline
	}
	if remaining, ok := sess.Remaining(); ok {
		secs := int64(remaining / time.Second)
		resp.RemainingSeconds = &secs
	}
	if out, ok := sess.Outcome(); ok {
		resp.Outcome = s.toOutcome(out)
	}
	return resp
}

func (s *sessionService) toOutcome(out attempt.Outcome) *dto.OutcomeDTO {
	pct, err := s.scoreConverter.ToPercentage(out.Score)
	if err != nil {
		log.Warn().Err(err).Uint("attempt_id", out.AttemptID).Msg("Outcome score could not be converted")
	}
	return &dto.OutcomeDTO{
		AttemptID:    out.AttemptID,
		Score:        out.Score,
		Percentage:   pct,
		EarnedPoints: out.EarnedPoints,
		TotalPoints:  out.TotalPoints,
		Passed:       out.Passed,
		Trigger:      string(out.Trigger),
		EndedAt:      out.EndedAt,
	}
}
