package attempt

import (
	"context"
	"time"

	"github.com/lshigami/timedtest/internal/model"
)

// Gate decides whether a student may start an attempt. It never mutates state.
type Gate struct {
	ledger AttemptLedger
	now    func() time.Time
}

func NewGate(ledger AttemptLedger, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{ledger: ledger, now: now}
}

// Check returns nil to admit, a *DenialError to deny, or a persistence error
// when the ledger could not be read. Checks run in order and the first
// failing one wins.
func (g *Gate) Check(ctx context.Context, studentID string, st model.ScheduledTest) error {
	if !withinWindow(g.now(), st) {
		return deny(ReasonOutOfWindow)
	}

	busy, err := g.ledger.HasInProgressAttempt(ctx, studentID, st.ID)
	if err != nil {
		return persistErr("check in-progress attempt", err)
	}
	if busy {
		return deny(ReasonAttemptAlreadyInProgress)
	}

	if st.LimitAttempts != nil {
		n, err := g.ledger.CountFinalizedAttempts(ctx, studentID, st.ID)
		if err != nil {
			return persistErr("count finalized attempts", err)
		}
		if n >= int64(*st.LimitAttempts) {
			return deny(ReasonAttemptLimitExceeded)
		}
	}
	return nil
}

// withinWindow treats both bounds as inclusive; a nil bound is open.
func withinWindow(now time.Time, st model.ScheduledTest) bool {
	if st.StartDate != nil && now.Before(*st.StartDate) {
		return false
	}
	if st.DueDate != nil && now.After(*st.DueDate) {
		return false
	}
	return true
}
