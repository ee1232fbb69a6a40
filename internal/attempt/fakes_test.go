package attempt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lshigami/timedtest/internal/model"
)

/* ---------------- In-memory fakes for the engine's collaborators ---------------- */

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fakeTime struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	ft      *fakeTime
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeTime(now time.Time) *fakeTime { return &fakeTime{now: now} }

func (f *fakeTime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeTime) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{ft: f, at: f.now.Add(d), f: fn}
	f.timers = append(f.timers, t)
	return t
}

// Advance moves time forward and runs every timer that became due.
func (f *fakeTime) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	var due []func()
	for _, t := range f.timers {
		if !t.stopped && !t.fired && !t.at.After(f.now) {
			t.fired = true
			due = append(due, t.f)
		}
	}
	f.mu.Unlock()
	for _, fn := range due {
		fn()
	}
}

func (t *fakeTimer) Stop() bool {
	t.ft.mu.Lock()
	defer t.ft.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type fakeContent struct {
	tests     map[uint]model.ScheduledTest
	questions map[uint][]model.Question
}

func (c *fakeContent) GetScheduledTest(_ context.Context, id uint) (model.ScheduledTest, error) {
	st, ok := c.tests[id]
	if !ok {
		return model.ScheduledTest{}, ErrScheduledTestNotFound
	}
	return st, nil
}

func (c *fakeContent) GetQuestions(_ context.Context, testID uint) ([]model.Question, error) {
	return c.questions[testID], nil
}

var errDBDown = errors.New("db down")

type memStore struct {
	mu       sync.Mutex
	nextID   uint
	attempts map[uint]*model.Attempt
	answers  map[uint][]model.Answer

	failTx        int
	finalizeCalls int
	ledgerErr     error
	// onTx runs at the start of every transaction.
	onTx func()
	// tests backs ListAbandonedPastDue.
	tests map[uint]model.ScheduledTest
}

func newMemStore() *memStore {
	return &memStore{attempts: map[uint]*model.Attempt{}, answers: map[uint][]model.Answer{}}
}

func (s *memStore) HasInProgressAttempt(_ context.Context, studentID string, stID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledgerErr != nil {
		return false, s.ledgerErr
	}
	for _, a := range s.attempts {
		if a.StudentID == studentID && a.ScheduledTestID == stID && a.Status == model.AttemptInProgress {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) CountFinalizedAttempts(_ context.Context, studentID string, stID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countFinalized(studentID, stID), nil
}

func (s *memStore) countFinalized(studentID string, stID uint) int64 {
	var n int64
	for _, a := range s.attempts {
		if a.StudentID == studentID && a.ScheduledTestID == stID && a.Status == model.AttemptFinalized {
			n++
		}
	}
	return n
}

func (s *memStore) CreateOrResumeAttempt(_ context.Context, studentID string, st model.ScheduledTest, now time.Time) (model.Attempt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attempts {
		if a.StudentID != studentID || a.ScheduledTestID != st.ID {
			continue
		}
		switch a.Status {
		case model.AttemptInProgress:
			return model.Attempt{}, false, ErrAttemptAlreadyInProgress
		case model.AttemptAbandoned:
			a.Status = model.AttemptInProgress
			return *a, true, nil
		}
	}
	if st.LimitAttempts != nil && s.countFinalized(studentID, st.ID) >= int64(*st.LimitAttempts) {
		return model.Attempt{}, false, ErrAttemptLimitExceeded
	}
	s.nextID++
	a := &model.Attempt{ID: s.nextID, StudentID: studentID, ScheduledTestID: st.ID, Status: model.AttemptInProgress, StartedAt: now}
	s.attempts[a.ID] = a
	return *a, false, nil
}

func (s *memStore) FinalizeAttempt(_ context.Context, id uint, end time.Time, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return ErrAttemptNotFound
	}
	if a.Status == model.AttemptFinalized {
		return nil
	}
	s.finalizeCalls++
	a.Status = model.AttemptFinalized
	a.EndedAt = &end
	a.Score = &score
	return nil
}

func (s *memStore) SaveAnswers(_ context.Context, id uint, graded []model.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[id] = append([]model.Answer(nil), graded...)
	return nil
}

func (s *memStore) MarkAbandoned(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok || a.Status != model.AttemptInProgress {
		return ErrAttemptNotOpen
	}
	a.Status = model.AttemptAbandoned
	return nil
}

func (s *memStore) ListAbandonedPastDue(_ context.Context, now time.Time) ([]model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Attempt
	for _, a := range s.attempts {
		st, ok := s.tests[a.ScheduledTestID]
		if a.Status == model.AttemptAbandoned && ok && st.DueDate != nil && st.DueDate.Before(now) {
			out = append(out, *a)
		}
	}
	return out, nil
}

// Transaction fails like a database driver when ctx is already canceled.
func (s *memStore) Transaction(ctx context.Context, fn func(tx AttemptStore) error) error {
	s.mu.Lock()
	hook := s.onTx
	if s.failTx > 0 {
		s.failTx--
		s.mu.Unlock()
		return errDBDown
	}
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(s)
}

func (s *memStore) attempt(id uint) model.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.attempts[id]
}

func (s *memStore) openCount(studentID string, stID uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.attempts {
		if a.StudentID == studentID && a.ScheduledTestID == stID && a.Status.Open() {
			n++
		}
	}
	return n
}

type memCheckpoint struct {
	mu    sync.Mutex
	saved map[uint]map[uint]string
}

func newMemCheckpoint() *memCheckpoint { return &memCheckpoint{saved: map[uint]map[uint]string{}} }

func (m *memCheckpoint) Save(_ context.Context, id uint, drafts map[uint]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[id] = drafts
	return nil
}

func (m *memCheckpoint) Load(_ context.Context, id uint) (map[uint]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[id], nil
}

func (m *memCheckpoint) Delete(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, id)
	return nil
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Notify(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) count(t EventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func intPtr(v int) *int { return &v }

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("session %s did not finish, state=%s", s.ID, s.State())
	}
}
