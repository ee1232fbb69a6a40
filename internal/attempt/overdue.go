package attempt

import (
	"context"
	"time"

	"github.com/lshigami/timedtest/internal/model"
	"github.com/rs/zerolog/log"
)

// FinalizeOverdue scores every abandoned attempt whose scheduled test has
// closed. Such attempts can no longer be resumed, so they are graded with
// their checkpointed drafts and finalized with trigger expiry. It returns
// the number of attempts finalized.
func (e *Engine) FinalizeOverdue(ctx context.Context) (int, error) {
	overdue, err := e.store.ListAbandonedPastDue(ctx, e.opts.Time.Now())
	if err != nil {
		return 0, persistErr("list overdue attempts", err)
	}
	n := 0
	for _, a := range overdue {
		key := pairKey{studentID: a.StudentID, scheduledTestID: a.ScheduledTestID}
		unlock := e.locks.lock(key)
		err := e.closeOverdue(ctx, a)
		unlock()
		if err != nil {
			log.Error().Err(err).Uint("attempt_id", a.ID).Msg("failed to finalize overdue attempt")
			continue
		}
		n++
	}
	return n, nil
}

// closeOverdueFor finalizes the pair's overdue attempt, if any. The caller
// holds the pair's admission lock.
func (e *Engine) closeOverdueFor(ctx context.Context, key pairKey) {
	overdue, err := e.store.ListAbandonedPastDue(ctx, e.opts.Time.Now())
	if err != nil {
		log.Warn().Err(err).Str("student_id", key.studentID).Msg("failed to look up overdue attempts")
		return
	}
	for _, a := range overdue {
		if a.StudentID != key.studentID || a.ScheduledTestID != key.scheduledTestID {
			continue
		}
		if err := e.closeOverdue(ctx, a); err != nil {
			log.Error().Err(err).Uint("attempt_id", a.ID).Msg("failed to finalize overdue attempt")
		}
	}
}

func (e *Engine) closeOverdue(ctx context.Context, a model.Attempt) error {
	st, err := e.content.GetScheduledTest(ctx, a.ScheduledTestID)
	if err != nil {
		return err
	}
	questions, err := e.content.GetQuestions(ctx, st.TestID)
	if err != nil {
		return err
	}
	var drafts map[uint]string
	if e.checkpoints != nil {
		if drafts, err = e.checkpoints.Load(ctx, a.ID); err != nil {
			log.Warn().Err(err).Uint("attempt_id", a.ID).Msg("failed to load draft checkpoint, grading as unanswered")
			drafts = nil
		}
	}

	res := e.pipeline.Finalize(a, questions, drafts)
	end := overdueEnd(a, st, e.opts.Time.Now())
	err = e.store.Transaction(ctx, func(tx AttemptStore) error {
		if err := tx.SaveAnswers(ctx, a.ID, res.Answers); err != nil {
			return err
		}
		return tx.FinalizeAttempt(ctx, a.ID, end, res.Score)
	})
	if err != nil {
		return persistErr("finalize overdue attempt", err)
	}

	if e.checkpoints != nil {
		if err := e.checkpoints.Delete(ctx, a.ID); err != nil {
			log.Warn().Err(err).Uint("attempt_id", a.ID).Msg("failed to delete draft checkpoint")
		}
	}
	score := res.Score
	e.notifier.Notify(Event{
		Type:            EventAttemptFinalized,
		StudentID:       a.StudentID,
		ScheduledTestID: a.ScheduledTestID,
		AttemptID:       a.ID,
		Trigger:         TriggerExpiry,
		Score:           &score,
		At:              e.opts.Time.Now(),
	})
	return nil
}

// overdueEnd is when the attempt stopped being answerable: the earlier of
// the due date and the attempt's own deadline.
func overdueEnd(a model.Attempt, st model.ScheduledTest, now time.Time) time.Time {
	end := now
	if st.DueDate != nil && st.DueDate.Before(end) {
		end = *st.DueDate
	}
	if budget, ok := st.TimeBudget(); ok {
		if deadline := a.StartedAt.Add(budget); deadline.Before(end) {
			end = deadline
		}
	}
	return end
}
