package attempt

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lshigami/timedtest/internal/model"
	"github.com/rs/zerolog/log"
)

// Options tunes the engine. Zero values fall back to defaults.
type Options struct {
	// FinalizeRetries is how many extra times a failed finalize transaction is retried.
	FinalizeRetries int
	RetryBackoff    time.Duration
	Time            TimeSource
}

func (o Options) withDefaults() Options {
	if o.FinalizeRetries < 0 {
		o.FinalizeRetries = 0
	}
	if o.Time == nil {
		o.Time = SystemTime
	}
	return o
}

// finishedRetention is how long a finished session stays reachable by ID,
// so late submits and reads get its outcome instead of ErrSessionNotFound.
const finishedRetention = 15 * time.Minute

type pairKey struct {
	studentID       string
	scheduledTestID uint
}

// Engine admits students and owns every live Session of the process.
type Engine struct {
	content     ContentStore
	store       AttemptStore
	checkpoints DraftCheckpoint
	notifier    Notifier
	gate        *Gate
	pipeline    *Pipeline
	opts        Options

	baseCtx context.Context
	cancel  context.CancelFunc
	locks   *keyLocks

	mu       sync.RWMutex
	closed   bool
	sessions map[uuid.UUID]*Session
	byPair   map[pairKey]*Session
	finished map[uuid.UUID]finishedSession
}

type finishedSession struct {
	s  *Session
	at time.Time
}

// NewEngine wires the engine. checkpoints and notifier may be nil.
func NewEngine(content ContentStore, store AttemptStore, checkpoints DraftCheckpoint, notifier Notifier, opts Options) *Engine {
	opts = opts.withDefaults()
	if notifier == nil {
		notifier = NotifierFunc(func(Event) {})
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		content:     content,
		store:       store,
		checkpoints: checkpoints,
		notifier:    notifier,
		gate:        NewGate(store, opts.Time.Now),
		pipeline:    NewPipeline(),
		opts:        opts,
		baseCtx:     ctx,
		cancel:      cancel,
		locks:       newKeyLocks(),
		sessions:    map[uuid.UUID]*Session{},
		byPair:      map[pairKey]*Session{},
		finished:    map[uuid.UUID]finishedSession{},
	}
}

// Begin runs the admission check and, on success, creates or resumes the
// attempt and starts its session. Denials are returned as *DenialError.
func (e *Engine) Begin(ctx context.Context, studentID string, scheduledTestID uint) (*Session, error) {
	key := pairKey{studentID: studentID, scheduledTestID: scheduledTestID}
	unlock := e.locks.lock(key)
	defer unlock()

	if e.isClosed() {
		return nil, ErrSessionClosed
	}

	st, err := e.content.GetScheduledTest(ctx, scheduledTestID)
	if err != nil {
		if errors.Is(err, ErrScheduledTestNotFound) {
			return nil, err
		}
		return nil, persistErr("load scheduled test", err)
	}

	if err := e.gate.Check(ctx, studentID, st); err != nil {
		var d *DenialError
		if errors.As(err, &d) {
			if d.Reason == ReasonOutOfWindow && st.DueDate != nil && e.opts.Time.Now().After(*st.DueDate) {
				e.closeOverdueFor(ctx, key)
			}
			return nil, e.denied(studentID, st, d)
		}
		return nil, err
	}
	if e.hasLive(key) {
		return nil, e.denied(studentID, st, deny(ReasonAttemptAlreadyInProgress))
	}

	questions, err := e.content.GetQuestions(ctx, st.TestID)
	if err != nil {
		return nil, persistErr("load questions", err)
	}

	a, resumed, err := e.store.CreateOrResumeAttempt(ctx, studentID, st, e.opts.Time.Now())
	switch {
	case errors.Is(err, ErrAttemptAlreadyInProgress):
		return nil, e.denied(studentID, st, deny(ReasonAttemptAlreadyInProgress))
	case errors.Is(err, ErrAttemptLimitExceeded):
		return nil, e.denied(studentID, st, deny(ReasonAttemptLimitExceeded))
	case err != nil:
		return nil, persistErr("create attempt", err)
	}

	s := e.newSession(studentID, st, questions, a, resumed)
	if resumed && e.checkpoints != nil {
		drafts, err := e.checkpoints.Load(ctx, a.ID)
		if err != nil {
			log.Warn().Err(err).Uint("attempt_id", a.ID).Msg("failed to load draft checkpoint")
		} else {
			s.drafts.Restore(drafts)
		}
	}

	e.mu.Lock()
	e.sessions[s.ID] = s
	e.byPair[key] = s
	e.mu.Unlock()

	s.start()
	return s, nil
}

func (e *Engine) newSession(studentID string, st model.ScheduledTest, questions []model.Question, a model.Attempt, resumed bool) *Session {
	ids := make(map[uint]struct{}, len(questions))
	for _, q := range questions {
		ids[q.ID] = struct{}{}
	}
	budget, timed := st.TimeBudget()
	return &Session{
		ID:          uuid.New(),
		studentID:   studentID,
		test:        st,
		questions:   questions,
		questionIDs: ids,
		attempt:     a,
		resumed:     resumed,
		store:       e.store,
		checkpoints: e.checkpoints,
		pipeline:    e.pipeline,
		notifier:    e.notifier,
		opts:        e.opts,
		baseCtx:     e.baseCtx,
		onClose:     e.release,
		drafts:      NewDraftStore(),
		clock:       NewClock(e.opts.Time, a.StartedAt, budget, timed),
		state:       StateNotStarted,
		cmds:        make(chan command),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (e *Engine) denied(studentID string, st model.ScheduledTest, d *DenialError) error {
	e.notifier.Notify(Event{
		Type:            EventAdmissionDenied,
		StudentID:       studentID,
		ScheduledTestID: st.ID,
		Reason:          d.Reason,
		At:              e.opts.Time.Now(),
	})
	return d
}

func (e *Engine) isClosed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.closed
}

func (e *Engine) hasLive(key pairKey) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.byPair[key]
	return ok
}

func (e *Engine) release(s *Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, s.ID)
	key := pairKey{studentID: s.studentID, scheduledTestID: s.test.ID}
	if cur, ok := e.byPair[key]; ok && cur == s {
		delete(e.byPair, key)
	}

	now := e.opts.Time.Now()
	for id, f := range e.finished {
		if now.Sub(f.at) > finishedRetention {
			delete(e.finished, id)
		}
	}
	e.finished[s.ID] = finishedSession{s: s, at: now}
}

// Session looks up a live or recently finished session.
func (e *Engine) Session(id uuid.UUID) (*Session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if s, ok := e.sessions[id]; ok {
		return s, nil
	}
	if f, ok := e.finished[id]; ok {
		return f.s, nil
	}
	return nil, ErrSessionNotFound
}

// LiveSessions returns the number of sessions currently owned by the engine.
func (e *Engine) LiveSessions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.sessions)
}

// Shutdown abandons every in-progress session, retries pending submissions
// once, and stops all session loops. Begin fails after Shutdown.
func (e *Engine) Shutdown(ctx context.Context) {
	e.mu.Lock()
	e.closed = true
	live := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		live = append(live, s)
	}
	e.mu.Unlock()

	for _, s := range live {
		switch s.State() {
		case StateInProgress:
			if err := s.Abandon(ctx); err != nil && !errors.Is(err, ErrSessionClosed) {
				log.Error().Err(err).Str("session_id", s.ID.String()).Msg("failed to abandon session on shutdown")
			}
		case StateFinalizing:
			if _, err := s.Submit(ctx); err != nil && !errors.Is(err, ErrSessionClosed) {
				log.Error().Err(err).Str("session_id", s.ID.String()).Msg("pending submission still not persisted at shutdown")
			}
		}
		s.close()
		<-s.done
	}
	e.cancel()
}

// keyLocks serializes admission per (student, scheduled test).
type keyLocks struct {
	mu    sync.Mutex
	locks map[pairKey]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: map[pairKey]*keyLock{}}
}

func (k *keyLocks) lock(key pairKey) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
