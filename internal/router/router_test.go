package router

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/lshigami/timedtest/database"
	"github.com/lshigami/timedtest/internal/attempt"
	adminctrl "github.com/lshigami/timedtest/internal/controller/admin"
	userctrl "github.com/lshigami/timedtest/internal/controller/user"
	"github.com/lshigami/timedtest/internal/dto"
	"github.com/lshigami/timedtest/internal/repository"
	"github.com/lshigami/timedtest/internal/service"
)

func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(sqlite.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	testRepo := repository.NewTestRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	scheduledRepo := repository.NewScheduledTestRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	answerRepo := repository.NewAnswerRepository(db)

	broadcaster := attempt.NewBroadcaster()
	engine := attempt.NewEngine(
		repository.NewContentStore(scheduledRepo, questionRepo),
		attemptRepo,
		repository.NewMemoryDraftCheckpoint(),
		broadcaster,
		attempt.Options{FinalizeRetries: 1, RetryBackoff: time.Millisecond},
	)
	t.Cleanup(func() { engine.Shutdown(context.Background()) })

	scores := service.NewScoreConverterService()
	r := gin.New()
	RegisterRoutes(r,
		adminctrl.NewAdminTestController(service.NewAdminTestService(testRepo, scheduledRepo)),
		userctrl.NewUserTestController(
			service.NewUserTestService(testRepo, scheduledRepo),
			service.NewResultService(attemptRepo, answerRepo, scheduledRepo, scores),
		),
		userctrl.NewSessionController(service.NewSessionService(engine, broadcaster, scores), 10*time.Millisecond),
	)
	return r
}

func do(t *testing.T, r *gin.Engine, method, path string, body any, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if out != nil && w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code
}

func createTest(t *testing.T, r *gin.Engine) dto.TestResponseDTO {
	t.Helper()
	var created dto.TestResponseDTO
	code := do(t, r, http.MethodPost, "/api/v1/admin/tests", dto.TestCreateDTO{
		Title: "Geography",
		Questions: []dto.QuestionCreateDTO{
			{Prompt: "Earth is round", Type: "true_false", OrderInTest: 1, CorrectAnswer: "TRUE"},
			{Prompt: "Capital of Norway?", Type: "short_answer", OrderInTest: 2, Points: 3, CorrectAnswer: "Oslo"},
		},
	}, &created)
	if code != http.StatusCreated {
		t.Fatalf("create test status = %d", code)
	}
	return created
}

func schedule(t *testing.T, r *gin.Engine, req dto.ScheduledTestCreateDTO) dto.ScheduledTestResponseDTO {
	t.Helper()
	var st dto.ScheduledTestResponseDTO
	if code := do(t, r, http.MethodPost, "/api/v1/admin/scheduled-tests", req, &st); code != http.StatusCreated {
		t.Fatalf("schedule status = %d", code)
	}
	return st
}

func TestAttemptFlow(t *testing.T) {
	r := newTestServer(t)
	test := createTest(t, r)
	passing := 0.5
	st := schedule(t, r, dto.ScheduledTestCreateDTO{TestID: test.ID, ClassID: "class-a", PassingScore: &passing})

	var listed []dto.ScheduledTestResponseDTO
	if code := do(t, r, http.MethodGet, "/api/v1/classes/class-a/scheduled-tests", nil, &listed); code != http.StatusOK || len(listed) != 1 {
		t.Fatalf("list class = %d, %d items", code, len(listed))
	}

	startPath := fmt.Sprintf("/api/v1/scheduled-tests/%d/sessions", st.ID)
	var sess dto.SessionResponseDTO
	if code := do(t, r, http.MethodPost, startPath, dto.StartSessionRequest{StudentID: "s1"}, &sess); code != http.StatusCreated {
		t.Fatalf("start status = %d", code)
	}
	if sess.State != string(attempt.StateInProgress) || len(sess.Questions) != 2 || sess.RemainingSeconds != nil {
		t.Fatalf("session = %+v", sess)
	}

	var denied dto.ErrorResponse
	if code := do(t, r, http.MethodPost, startPath, dto.StartSessionRequest{StudentID: "s1"}, &denied); code != http.StatusConflict {
		t.Fatalf("second start status = %d", code)
	}
	if denied.Code != string(attempt.ReasonAttemptAlreadyInProgress) {
		t.Fatalf("denial code = %q", denied.Code)
	}

	base := "/api/v1/sessions/" + sess.SessionID
	tf := sess.Questions[0].ID
	if code := do(t, r, http.MethodPut, fmt.Sprintf("%s/answers/%d", base, tf), dto.AnswerRequest{Payload: " True "}, nil); code != http.StatusNoContent {
		t.Fatalf("set answer status = %d", code)
	}
	if code := do(t, r, http.MethodPut, base+"/answers/99999", dto.AnswerRequest{Payload: "x"}, nil); code != http.StatusBadRequest {
		t.Fatalf("unknown question status = %d", code)
	}

	var answers map[string]string
	if code := do(t, r, http.MethodGet, base+"/answers", nil, &answers); code != http.StatusOK || answers[fmt.Sprint(tf)] != " True " {
		t.Fatalf("answers = %d, %v", code, answers)
	}

	var out dto.OutcomeDTO
	if code := do(t, r, http.MethodPost, base+"/submit", nil, &out); code != http.StatusOK {
		t.Fatalf("submit status = %d", code)
	}
	if out.EarnedPoints != 1 || out.TotalPoints != 4 || out.Score != 0.25 || out.Percentage != 25 {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Passed == nil || *out.Passed {
		t.Fatalf("passed = %v, want false", out.Passed)
	}
	if out.Trigger != string(attempt.TriggerSubmit) {
		t.Fatalf("trigger = %q", out.Trigger)
	}

	if code := do(t, r, http.MethodPut, fmt.Sprintf("%s/answers/%d", base, tf), dto.AnswerRequest{Payload: "false"}, nil); code != http.StatusConflict {
		t.Fatalf("answer after submit status = %d", code)
	}

	var detail dto.AttemptDetailDTO
	if code := do(t, r, http.MethodGet, fmt.Sprintf("/api/v1/attempts/%d", out.AttemptID), nil, &detail); code != http.StatusOK {
		t.Fatalf("attempt detail status = %d", code)
	}
	if detail.Status != "finalized" || len(detail.Answers) != 2 || detail.EarnedPoints != 1 || detail.TotalPoints != 4 {
		t.Fatalf("detail = %+v", detail)
	}

	var history []dto.AttemptSummaryDTO
	path := fmt.Sprintf("/api/v1/scheduled-tests/%d/attempts?student_id=s1", st.ID)
	if code := do(t, r, http.MethodGet, path, nil, &history); code != http.StatusOK || len(history) != 1 {
		t.Fatalf("history = %d, %+v", code, history)
	}
}

func TestStartOutsideWindowIsForbidden(t *testing.T) {
	r := newTestServer(t)
	test := createTest(t, r)
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	due := start.Add(24 * time.Hour)
	st := schedule(t, r, dto.ScheduledTestCreateDTO{TestID: test.ID, ClassID: "class-a", StartDate: &start, DueDate: &due})

	var denied dto.ErrorResponse
	code := do(t, r, http.MethodPost, fmt.Sprintf("/api/v1/scheduled-tests/%d/sessions", st.ID), dto.StartSessionRequest{StudentID: "s1"}, &denied)
	if code != http.StatusForbidden || denied.Code != string(attempt.ReasonOutOfWindow) {
		t.Fatalf("start = %d, %+v", code, denied)
	}
}

func TestAttemptLimit(t *testing.T) {
	r := newTestServer(t)
	test := createTest(t, r)
	limit := 1
	st := schedule(t, r, dto.ScheduledTestCreateDTO{TestID: test.ID, ClassID: "class-a", LimitAttempts: &limit})
	startPath := fmt.Sprintf("/api/v1/scheduled-tests/%d/sessions", st.ID)

	var sess dto.SessionResponseDTO
	if code := do(t, r, http.MethodPost, startPath, dto.StartSessionRequest{StudentID: "s1"}, &sess); code != http.StatusCreated {
		t.Fatalf("start status = %d", code)
	}
	if code := do(t, r, http.MethodPost, "/api/v1/sessions/"+sess.SessionID+"/submit", nil, nil); code != http.StatusOK {
		t.Fatalf("submit status = %d", code)
	}

	var denied dto.ErrorResponse
	if code := do(t, r, http.MethodPost, startPath, dto.StartSessionRequest{StudentID: "s1"}, &denied); code != http.StatusForbidden {
		t.Fatalf("start after limit = %d", code)
	}
	if denied.Code != string(attempt.ReasonAttemptLimitExceeded) {
		t.Fatalf("denial code = %q", denied.Code)
	}
}

func TestBadRequests(t *testing.T) {
	r := newTestServer(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"non-numeric scheduled test", http.MethodPost, "/api/v1/scheduled-tests/abc/sessions", dto.StartSessionRequest{StudentID: "s1"}, http.StatusBadRequest},
		{"missing student", http.MethodPost, "/api/v1/scheduled-tests/1/sessions", map[string]string{}, http.StatusBadRequest},
		{"bad session id", http.MethodGet, "/api/v1/sessions/not-a-uuid", nil, http.StatusBadRequest},
		{"unknown session", http.MethodGet, "/api/v1/sessions/" + uuid.NewString(), nil, http.StatusNotFound},
		{"unknown scheduled test", http.MethodPost, "/api/v1/scheduled-tests/404/sessions", dto.StartSessionRequest{StudentID: "s1"}, http.StatusNotFound},
		{"schedule unknown test", http.MethodPost, "/api/v1/admin/scheduled-tests", dto.ScheduledTestCreateDTO{TestID: 77, ClassID: "c"}, http.StatusNotFound},
		{"multiple choice without options", http.MethodPost, "/api/v1/admin/tests", dto.TestCreateDTO{
			Title:     "Bad",
			Questions: []dto.QuestionCreateDTO{{Prompt: "p", Type: "multiple_choice", OrderInTest: 1, CorrectAnswer: "1"}},
		}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if code := do(t, r, tc.method, tc.path, tc.body, nil); code != tc.want {
				t.Errorf("status = %d, want %d", code, tc.want)
			}
		})
	}
}

// streamEvents opens the session's event stream on srv and collects event
// names until the server ends the stream. remaining is closed on the first
// "remaining" event; collect waits for the end of the stream.
func streamEvents(t *testing.T, srv *httptest.Server, sessionID string) (remaining <-chan struct{}, collect func() []string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/sessions/"+sessionID+"/events", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("stream = %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	sawRemaining := make(chan struct{})
	done := make(chan struct{})
	var names []string
	go func() {
		defer close(done)
		defer resp.Body.Close()
		var once sync.Once
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			name, ok := strings.CutPrefix(sc.Text(), "event:")
			if !ok {
				continue
			}
			names = append(names, name)
			if name == "remaining" {
				once.Do(func() { close(sawRemaining) })
			}
		}
	}()

	return sawRemaining, func() []string {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("event stream did not end after the terminal event")
		}
		return names
	}
}

func startTimedSession(t *testing.T, r *gin.Engine) dto.SessionResponseDTO {
	t.Helper()
	test := createTest(t, r)
	limit := 10
	st := schedule(t, r, dto.ScheduledTestCreateDTO{TestID: test.ID, ClassID: "class-a", TimeLimit: &limit})
	var sess dto.SessionResponseDTO
	if code := do(t, r, http.MethodPost, fmt.Sprintf("/api/v1/scheduled-tests/%d/sessions", st.ID), dto.StartSessionRequest{StudentID: "s1"}, &sess); code != http.StatusCreated {
		t.Fatalf("start status = %d", code)
	}
	if sess.RemainingSeconds == nil {
		t.Fatalf("timed session has no remaining time: %+v", sess)
	}
	return sess
}

func TestEventStreamEndsWithTerminalEvent(t *testing.T) {
	cases := []struct {
		action   string
		status   int
		terminal string
	}{
		{"submit", http.StatusOK, string(attempt.EventAttemptFinalized)},
		{"abandon", http.StatusNoContent, string(attempt.EventAttemptAborted)},
	}
	for _, tc := range cases {
		t.Run(tc.action, func(t *testing.T) {
			r := newTestServer(t)
			srv := httptest.NewServer(r)
			t.Cleanup(srv.Close)
			sess := startTimedSession(t, r)

			remaining, collect := streamEvents(t, srv, sess.SessionID)
			select {
			case <-remaining:
			case <-time.After(5 * time.Second):
				t.Fatal("no remaining event while in progress")
			}

			if code := do(t, r, http.MethodPost, "/api/v1/sessions/"+sess.SessionID+"/"+tc.action, nil, nil); code != tc.status {
				t.Fatalf("%s status = %d", tc.action, code)
			}

			names := collect()
			if len(names) < 2 || names[0] != "remaining" {
				t.Fatalf("events = %v, want remaining ticks first", names)
			}
			if last := names[len(names)-1]; last != tc.terminal {
				t.Fatalf("events = %v, want %s last", names, tc.terminal)
			}
			for _, n := range names[:len(names)-1] {
				if n != "remaining" {
					t.Fatalf("unexpected event %q in %v", n, names)
				}
			}
		})
	}
}
