package attempt

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lshigami/timedtest/internal/model"
	"github.com/rs/zerolog/log"
)

type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateFinalizing State = "finalizing"
	StateFinalized  State = "finalized"
	StateAborted    State = "aborted"
)

// Outcome is what a finalized attempt reports upward.
type Outcome struct {
	AttemptID    uint      `json:"attempt_id"`
	Score        float64   `json:"score"`
	EarnedPoints int       `json:"earned_points"`
	TotalPoints  int       `json:"total_points"`
	Passed       *bool     `json:"passed,omitempty"`
	Trigger      Trigger   `json:"trigger"`
	EndedAt      time.Time `json:"ended_at"`
}

type commandKind int

const (
	cmdAnswer commandKind = iota
	cmdSubmit
	cmdAbandon
)

type command struct {
	kind       commandKind
	ctx        context.Context
	questionID uint
	payload    string
	reply      chan reply
}

type reply struct {
	outcome Outcome
	err     error
}

// pendingFinalize is computed once, when the finalize right is claimed, and
// reused by every persistence retry.
type pendingFinalize struct {
	result  Result
	endTime time.Time
	trigger Trigger
}

// Session is the controller of one attempt. All state changes run on its
// own loop goroutine, which consumes user commands and the clock's expiry
// signal, so the draft store and attempt state have a single writer.
type Session struct {
	ID uuid.UUID

	studentID   string
	test        model.ScheduledTest
	questions   []model.Question
	questionIDs map[uint]struct{}
	attempt     model.Attempt
	resumed     bool

	store       AttemptStore
	checkpoints DraftCheckpoint
	pipeline    *Pipeline
	notifier    Notifier
	opts        Options
	baseCtx     context.Context
	onClose     func(*Session)

	drafts *DraftStore
	clock  *Clock

	// claimed is the finalize right. Whichever trigger swaps it first wins.
	claimed atomic.Bool

	mu      sync.RWMutex
	state   State
	pending *pendingFinalize
	outcome *Outcome

	cmds     chan command
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
}

func (s *Session) StudentID() string { return s.studentID }
func (s *Session) ScheduledTest() model.ScheduledTest { return s.test }
func (s *Session) Questions() []model.Question { return s.questions }
func (s *Session) AttemptID() uint { return s.attempt.ID }
func (s *Session) StartedAt() time.Time { return s.attempt.StartedAt }
func (s *Session) Resumed() bool { return s.resumed }

// Done is closed once the session has finished (finalized, aborted or shut down).
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Outcome returns the final result once the session is finalized.
func (s *Session) Outcome() (Outcome, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.outcome == nil {
		return Outcome{}, false
	}
	return *s.outcome, true
}

// Remaining is the time left on the clock; ok is false for untimed tests.
func (s *Session) Remaining() (time.Duration, bool) { return s.clock.Remaining() }

func (s *Session) Deadline() (time.Time, bool) { return s.clock.Deadline() }

func (s *Session) Answer(questionID uint) (string, bool) { return s.drafts.Get(questionID) }

func (s *Session) Answers() map[uint]string { return s.drafts.All() }

// SetAnswer overwrites the draft answer for a question. It fails with
// ErrNotInProgress once the attempt has started finalizing.
func (s *Session) SetAnswer(ctx context.Context, questionID uint, payload string) error {
	r := s.send(ctx, command{kind: cmdAnswer, questionID: questionID, payload: payload})
	return r.err
}

// Submit finalizes the attempt. When a previous submission failed to
// persist, Submit retries persistence with the already computed result.
func (s *Session) Submit(ctx context.Context) (Outcome, error) {
	r := s.send(ctx, command{kind: cmdSubmit})
	if errors.Is(r.err, ErrSessionClosed) {
		if out, ok := s.Outcome(); ok {
			return out, nil
		}
	}
	return r.outcome, r.err
}

// Abandon tears the session down without scoring. The attempt stays open
// and can be resumed later.
func (s *Session) Abandon(ctx context.Context) error {
	return s.send(ctx, command{kind: cmdAbandon}).err
}

func (s *Session) send(ctx context.Context, cmd command) reply {
	cmd.ctx = ctx
	cmd.reply = make(chan reply, 1)
	select {
	case s.cmds <- cmd:
	case <-s.done:
		return reply{err: ErrSessionClosed}
	case <-ctx.Done():
		return reply{err: ctx.Err()}
	}
	select {
	case r := <-cmd.reply:
		return r
	case <-ctx.Done():
		return reply{err: ctx.Err()}
	}
}

func (s *Session) start() {
	s.setState(StateInProgress)
	s.clock.Start()
	go s.run()

	ev := s.event(EventAttemptStarted)
	ev.Resumed = s.resumed
	if r, ok := s.clock.Remaining(); ok {
		secs := int64(r / time.Second)
		ev.RemainingSeconds = &secs
	}
	s.notifier.Notify(ev)
}

// close stops the loop without touching the attempt.
func (s *Session) close() {
	s.quitOnce.Do(func() { close(s.quit) })
}

func (s *Session) run() {
	defer close(s.done)
	expired := s.clock.Expired()
	for {
		var (
			cmd *command
			r   reply
		)
		select {
		case <-expired:
			expired = nil
			if _, err := s.finalize(TriggerExpiry); err != nil {
				log.Error().Err(err).Str("session_id", s.ID.String()).Uint("attempt_id", s.attempt.ID).Msg("auto-submit on expiry failed")
			}
		case c := <-s.cmds:
			cmd = &c
			r = s.handle(c)
		case <-s.quit:
			_ = s.clock.Stop()
			s.onClose(s)
			return
		}
		// A terminal reply is sent only after the engine has released the pair.
		finished := s.finished()
		if finished {
			s.onClose(s)
		}
		if cmd != nil {
			cmd.reply <- r
		}
		if finished {
			return
		}
	}
}

func (s *Session) finished() bool {
	st := s.State()
	return st == StateFinalized || st == StateAborted
}

func (s *Session) handle(cmd command) reply {
	var r reply
	switch cmd.kind {
	case cmdAnswer:
		r.err = s.setDraft(cmd.questionID, cmd.payload)
	case cmdSubmit:
		r.outcome, r.err = s.finalize(TriggerSubmit)
	case cmdAbandon:
		r.err = s.abandon(cmd.ctx)
	}
	return r
}

func (s *Session) setDraft(questionID uint, payload string) error {
	if s.State() != StateInProgress {
		return ErrNotInProgress
	}
	if _, ok := s.questionIDs[questionID]; !ok {
		return ErrUnknownQuestion
	}
	s.drafts.Set(questionID, payload)
	return nil
}

// finalize persists on the engine context. Once the right is claimed, the
// caller's context no longer bounds the write or its retries.
func (s *Session) finalize(trigger Trigger) (Outcome, error) {
	if s.claimed.CompareAndSwap(false, true) {
		_ = s.clock.Stop()
		s.setState(StateFinalizing)
		snapshot := s.drafts.All()
		s.pending = &pendingFinalize{
			result:  s.pipeline.Finalize(s.attempt, s.questions, snapshot),
			endTime: s.opts.Time.Now(),
			trigger: trigger,
		}
		log.Info().Str("session_id", s.ID.String()).Uint("attempt_id", s.attempt.ID).
			Str("trigger", string(trigger)).Float64("score", s.pending.result.Score).
			Msg("finalize right claimed")
		return s.persist(s.baseCtx)
	}

	switch s.State() {
	case StateFinalized:
		out, _ := s.Outcome()
		return out, nil
	case StateFinalizing:
		if trigger == TriggerExpiry {
			return Outcome{}, nil
		}
		return s.persist(s.baseCtx)
	default:
		return Outcome{}, ErrNotInProgress
	}
}

func (s *Session) persist(ctx context.Context) (Outcome, error) {
	p := s.pending
	var err error
	for i := 0; i <= s.opts.FinalizeRetries; i++ {
		if i > 0 {
			if werr := sleepCtx(ctx, time.Duration(i)*s.opts.RetryBackoff); werr != nil {
				err = werr
				break
			}
		}
		err = s.store.Transaction(ctx, func(tx AttemptStore) error {
			if err := tx.SaveAnswers(ctx, s.attempt.ID, p.result.Answers); err != nil {
				return err
			}
			return tx.FinalizeAttempt(ctx, s.attempt.ID, p.endTime, p.result.Score)
		})
		if err == nil {
			break
		}
		log.Warn().Err(err).Int("try", i+1).Uint("attempt_id", s.attempt.ID).Msg("persisting finalized attempt failed")
	}
	if err != nil {
		ev := s.event(EventFinalizeFailed)
		ev.Trigger = p.trigger
		ev.Error = err.Error()
		s.notifier.Notify(ev)
		return Outcome{}, persistErr("finalize attempt", err)
	}

	out := Outcome{
		AttemptID:    s.attempt.ID,
		Score:        p.result.Score,
		EarnedPoints: p.result.EarnedPoints,
		TotalPoints:  p.result.TotalPoints,
		Passed:       s.test.Passed(p.result.Score),
		Trigger:      p.trigger,
		EndedAt:      p.endTime,
	}
	s.mu.Lock()
	s.outcome = &out
	s.state = StateFinalized
	s.mu.Unlock()

	if s.checkpoints != nil {
		if err := s.checkpoints.Delete(ctx, s.attempt.ID); err != nil {
			log.Warn().Err(err).Uint("attempt_id", s.attempt.ID).Msg("failed to delete draft checkpoint")
		}
	}

	ev := s.event(EventAttemptFinalized)
	ev.Trigger = p.trigger
	ev.Score = &out.Score
	s.notifier.Notify(ev)
	return out, nil
}

func (s *Session) abandon(ctx context.Context) error {
	switch s.State() {
	case StateInProgress:
	case StateFinalizing:
		return ErrFinalizePending
	default:
		return ErrNotInProgress
	}

	if s.checkpoints != nil {
		if err := s.checkpoints.Save(ctx, s.attempt.ID, s.drafts.All()); err != nil {
			log.Warn().Err(err).Uint("attempt_id", s.attempt.ID).Msg("failed to checkpoint drafts")
		}
	}
	if err := s.store.MarkAbandoned(ctx, s.attempt.ID); err != nil {
		return persistErr("abandon attempt", err)
	}
	_ = s.clock.Stop()
	s.setState(StateAborted)
	s.notifier.Notify(s.event(EventAttemptAborted))
	return nil
}

func (s *Session) event(t EventType) Event {
	return Event{
		Type:            t,
		SessionID:       s.ID,
		StudentID:       s.studentID,
		ScheduledTestID: s.test.ID,
		AttemptID:       s.attempt.ID,
		At:              s.opts.Time.Now(),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
