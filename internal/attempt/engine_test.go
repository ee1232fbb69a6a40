package attempt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lshigami/timedtest/internal/model"
)

func TestEngineDeniesSecondLiveAttempt(t *testing.T) {
	st, qs := timedTrueFalse()
	f := newFixture(t, st, qs, Options{})
	ctx := context.Background()

	if _, err := f.engine.Begin(ctx, "s1", st.ID); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	_, err := f.engine.Begin(ctx, "s1", st.ID)
	var d *DenialError
	if !errors.As(err, &d) || d.Reason != ReasonAttemptAlreadyInProgress {
		t.Fatalf("second Begin = %v", err)
	}
	if f.events.count(EventAdmissionDenied) != 1 {
		t.Fatal("denial was not reported")
	}
	if f.engine.LiveSessions() != 1 {
		t.Fatalf("live sessions = %d", f.engine.LiveSessions())
	}
}

func TestEngineAttemptLimit(t *testing.T) {
	st, qs := timedTrueFalse()
	st.LimitAttempts = intPtr(1)
	f := newFixture(t, st, qs, Options{})
	ctx := context.Background()

	s, err := f.engine.Begin(ctx, "s1", st.ID)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := s.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitDone(t, s)

	_, err = f.engine.Begin(ctx, "s1", st.ID)
	var d *DenialError
	if !errors.As(err, &d) || d.Reason != ReasonAttemptLimitExceeded {
		t.Fatalf("Begin over limit = %v", err)
	}
}

func TestEngineConcurrentBegin(t *testing.T) {
	st, qs := timedTrueFalse()
	f := newFixture(t, st, qs, Options{})

	const n = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		admits  int
		denials int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Begin(context.Background(), "s1", st.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admits++
			case errors.Is(err, ErrAttemptAlreadyInProgress):
				denials++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if admits != 1 || denials != n-1 {
		t.Fatalf("admits=%d denials=%d", admits, denials)
	}
	if c := f.store.openCount("s1", st.ID); c != 1 {
		t.Fatalf("%d open attempts for the pair", c)
	}
}

func TestEngineUnknownScheduledTest(t *testing.T) {
	st, qs := timedTrueFalse()
	f := newFixture(t, st, qs, Options{})
	if _, err := f.engine.Begin(context.Background(), "s1", 999); !errors.Is(err, ErrScheduledTestNotFound) {
		t.Fatalf("Begin = %v", err)
	}
}

func TestEngineStartedEvent(t *testing.T) {
	st, qs := timedTrueFalse()
	f := newFixture(t, st, qs, Options{})
	if _, err := f.engine.Begin(context.Background(), "s1", st.ID); err != nil {
		t.Fatal(err)
	}
	f.events.mu.Lock()
	defer f.events.mu.Unlock()
	if len(f.events.events) != 1 {
		t.Fatalf("events = %+v", f.events.events)
	}
	ev := f.events.events[0]
	if ev.Type != EventAttemptStarted || ev.RemainingSeconds == nil || *ev.RemainingSeconds != 600 {
		t.Fatalf("started event = %+v", ev)
	}
}

func TestEngineShutdownAbandonsLiveSessions(t *testing.T) {
	st, qs := timedTrueFalse()
	f := newFixture(t, st, qs, Options{})
	ctx := context.Background()

	s, _ := f.engine.Begin(ctx, "s1", st.ID)
	_ = s.SetAnswer(ctx, 11, "true")
	f.engine.Shutdown(ctx)

	if a := f.store.attempt(s.AttemptID()); a.Status != model.AttemptAbandoned {
		t.Fatalf("status after shutdown = %s", a.Status)
	}
	if drafts, _ := f.cp.Load(ctx, s.AttemptID()); drafts[11] != "true" {
		t.Fatalf("drafts not checkpointed: %v", drafts)
	}
	if f.engine.LiveSessions() != 0 {
		t.Fatal("sessions left after shutdown")
	}
	if _, err := f.engine.Begin(ctx, "s2", st.ID); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("Begin after shutdown = %v", err)
	}
}

func TestBroadcasterFanOut(t *testing.T) {
	b := NewBroadcaster()
	st, qs := timedTrueFalse()
	f := newFixture(t, st, qs, Options{})
	s, _ := f.engine.Begin(context.Background(), "s1", st.ID)

	ch, cancel := b.Subscribe(s.ID)
	other, cancelOther := b.Subscribe(s.ID)
	b.Notify(Event{Type: EventAttemptFinalized, SessionID: s.ID})

	for _, c := range []<-chan Event{ch, other} {
		ev := <-c
		if !ev.Terminal() {
			t.Fatalf("event = %+v", ev)
		}
	}
	cancel()
	cancel()
	cancelOther()
	b.Notify(Event{Type: EventAttemptAborted, SessionID: s.ID})
	if len(b.subs) != 0 {
		t.Fatal("subscribers left after cancel")
	}
}

func TestEngineForgetsOldFinishedSessions(t *testing.T) {
	st, qs := timedTrueFalse()
	f := newFixture(t, st, qs, Options{})
	ctx := context.Background()

	first, _ := f.engine.Begin(ctx, "s1", st.ID)
	if _, err := first.Submit(ctx); err != nil {
		t.Fatal(err)
	}
	waitDone(t, first)

	f.ft.Advance(finishedRetention + time.Minute)
	second, _ := f.engine.Begin(ctx, "s2", st.ID)
	if _, err := second.Submit(ctx); err != nil {
		t.Fatal(err)
	}
	waitDone(t, second)

	if _, err := f.engine.Session(first.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("old session still reachable: %v", err)
	}
	if _, err := f.engine.Session(second.ID); err != nil {
		t.Fatalf("recent session not reachable: %v", err)
	}
}

func TestEngineBeginRightAfterTerminalReply(t *testing.T) {
	st := model.ScheduledTest{ID: 1, TestID: 1}
	qs := []model.Question{{ID: 11, TestID: 1, Type: model.QuestionTrueFalse, CorrectAnswer: "true"}}
	f := newFixture(t, st, qs, Options{})
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		s, err := f.engine.Begin(ctx, "s1", st.ID)
		if err != nil {
			t.Fatalf("run %d: Begin: %v", i, err)
		}
		if i%2 == 0 {
			if _, err := s.Submit(ctx); err != nil {
				t.Fatalf("run %d: Submit: %v", i, err)
			}
		} else if err := s.Abandon(ctx); err != nil {
			t.Fatalf("run %d: Abandon: %v", i, err)
		}
	}
}

func TestEngineFinalizesAbandonedAttemptAfterDueDate(t *testing.T) {
	due := t0.Add(30 * time.Minute)
	st := model.ScheduledTest{ID: 1, TestID: 1, DueDate: &due, TimeLimit: intPtr(60)}
	qs := []model.Question{{ID: 11, TestID: 1, Type: model.QuestionTrueFalse, CorrectAnswer: "true"}}
	f := newFixture(t, st, qs, Options{})
	ctx := context.Background()

	s, err := f.engine.Begin(ctx, "s1", st.ID)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	_ = s.SetAnswer(ctx, 11, "true")
	f.ft.Advance(5 * time.Minute)
	if err := s.Abandon(ctx); err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	waitDone(t, s)

	f.ft.Advance(35 * time.Minute)
	_, err = f.engine.Begin(ctx, "s1", st.ID)
	var d *DenialError
	if !errors.As(err, &d) || d.Reason != ReasonOutOfWindow {
		t.Fatalf("Begin after due = %v, want out_of_window", err)
	}

	a := f.store.attempt(s.AttemptID())
	if a.Status != model.AttemptFinalized || a.Score == nil || *a.Score != 1 {
		t.Fatalf("overdue attempt = %+v", a)
	}
	if a.EndedAt == nil || !a.EndedAt.Equal(due) {
		t.Fatalf("ended_at = %v, want due date %v", a.EndedAt, due)
	}
	if got := f.events.count(EventAttemptFinalized); got != 1 {
		t.Fatalf("finalized events = %d, want 1", got)
	}
	if drafts, _ := f.cp.Load(ctx, a.ID); drafts != nil {
		t.Fatalf("checkpoint not deleted: %v", drafts)
	}
}

func TestEngineFinalizeOverdueSweep(t *testing.T) {
	due := t0.Add(time.Hour)
	st := model.ScheduledTest{ID: 1, TestID: 1, DueDate: &due, TimeLimit: intPtr(10)}
	qs := []model.Question{{ID: 11, TestID: 1, Type: model.QuestionTrueFalse, CorrectAnswer: "true"}}
	f := newFixture(t, st, qs, Options{})
	ctx := context.Background()

	for _, student := range []string{"s1", "s2"} {
		s, err := f.engine.Begin(ctx, student, st.ID)
		if err != nil {
			t.Fatalf("Begin %s: %v", student, err)
		}
		if err := s.Abandon(ctx); err != nil {
			t.Fatalf("Abandon %s: %v", student, err)
		}
		waitDone(t, s)
	}

	if n, err := f.engine.FinalizeOverdue(ctx); err != nil || n != 0 {
		t.Fatalf("sweep before due = %d, %v", n, err)
	}
	f.ft.Advance(2 * time.Hour)
	n, err := f.engine.FinalizeOverdue(ctx)
	if err != nil || n != 2 {
		t.Fatalf("sweep after due = %d, %v, want 2", n, err)
	}
	for _, student := range []string{"s1", "s2"} {
		if c := f.store.openCount(student, st.ID); c != 0 {
			t.Fatalf("%s still has %d open attempts", student, c)
		}
	}
	a := f.store.attempt(1)
	if a.EndedAt == nil || !a.EndedAt.Equal(t0.Add(10*time.Minute)) {
		t.Fatalf("ended_at = %v, want the attempt deadline", a.EndedAt)
	}
}
