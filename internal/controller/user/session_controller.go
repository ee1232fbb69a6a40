package user

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/timedtest/internal/controller"
	"github.com/lshigami/timedtest/internal/dto"
	"github.com/lshigami/timedtest/internal/service"
	"github.com/rs/zerolog/log"
)

type SessionController struct {
	sessionService service.SessionService
	feedInterval   time.Duration
}

func NewSessionController(ss service.SessionService, feedInterval time.Duration) *SessionController {
	if feedInterval <= 0 {
		feedInterval = time.Second
	}
	return &SessionController{sessionService: ss, feedInterval: feedInterval}
}

// StartSession godoc
// @Summary (User) Start or resume an attempt
// @Description Runs the eligibility checks and starts a timed session. An abandoned attempt is resumed with its original start time.
// @Tags User - Sessions
// @Accept json
// @Produce json
// @Param id path int true "Scheduled test ID"
// @Param body body dto.StartSessionRequest true "Student"
// @Success 201 {object} dto.SessionResponseDTO
// @Failure 403 {object} dto.ErrorResponse "out_of_window or attempt_limit_exceeded"
// @Failure 404 {object} dto.ErrorResponse "Scheduled test not found"
// @Failure 409 {object} dto.ErrorResponse "attempt_already_in_progress"
// @Failure 503 {object} dto.ErrorResponse "Storage unavailable, retry"
// @Router /scheduled-tests/{id}/sessions [post]
func (c *SessionController) StartSession(ctx *gin.Context) {
	id, ok := controller.UintParam(ctx, "id")
	if !ok {
		return
	}
	var req dto.StartSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		controller.BadRequest(ctx, "Invalid request body", err.Error())
		return
	}

	resp, err := c.sessionService.Start(ctx.Request.Context(), id, req.StudentID)
	if err != nil {
		controller.RespondError(ctx, "Admission denied", err)
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// GetSession godoc
// @Summary (User) Get session state
// @Tags User - Sessions
// @Produce json
// @Param session_id path string true "Session ID"
// @Success 200 {object} dto.SessionResponseDTO
// @Failure 404 {object} dto.ErrorResponse "Session not found"
// @Router /sessions/{session_id} [get]
func (c *SessionController) GetSession(ctx *gin.Context) {
	id, ok := controller.UUIDParam(ctx, "session_id")
	if !ok {
		return
	}
	resp, err := c.sessionService.Get(ctx.Request.Context(), id)
	if err != nil {
		controller.RespondError(ctx, "Failed to retrieve session", err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// SetAnswer godoc
// @Summary (User) Save a draft answer
// @Description Overwrites the draft for one question. Rejected once the attempt is finalizing.
// @Tags User - Sessions
// @Accept json
// @Param session_id path string true "Session ID"
// @Param question_id path int true "Question ID"
// @Param body body dto.AnswerRequest true "Answer payload"
// @Success 204
// @Failure 400 {object} dto.ErrorResponse "Question does not belong to the test"
// @Failure 409 {object} dto.ErrorResponse "Attempt no longer accepts answers"
// @Router /sessions/{session_id}/answers/{question_id} [put]
func (c *SessionController) SetAnswer(ctx *gin.Context) {
	id, ok := controller.UUIDParam(ctx, "session_id")
	if !ok {
		return
	}
	qid, ok := controller.UintParam(ctx, "question_id")
	if !ok {
		return
	}
	var req dto.AnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		controller.BadRequest(ctx, "Invalid request body", err.Error())
		return
	}
	if err := c.sessionService.SetAnswer(ctx.Request.Context(), id, qid, req.Payload); err != nil {
		controller.RespondError(ctx, "Failed to save answer", err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// GetAnswers godoc
// @Summary (User) Get current draft answers
// @Tags User - Sessions
// @Produce json
// @Param session_id path string true "Session ID"
// @Success 200 {object} map[string]string
// @Router /sessions/{session_id}/answers [get]
func (c *SessionController) GetAnswers(ctx *gin.Context) {
	id, ok := controller.UUIDParam(ctx, "session_id")
	if !ok {
		return
	}
	answers, err := c.sessionService.Answers(ctx.Request.Context(), id)
	if err != nil {
		controller.RespondError(ctx, "Failed to retrieve answers", err)
		return
	}
	ctx.JSON(http.StatusOK, answers)
}

// Submit godoc
// @Summary (User) Submit the attempt
// @Description Grades and persists the attempt. Submitting a finalized attempt returns its outcome. A 503 leaves the attempt pending; submit again to retry.
// @Tags User - Sessions
// @Produce json
// @Param session_id path string true "Session ID"
// @Success 200 {object} dto.OutcomeDTO
// @Failure 503 {object} dto.ErrorResponse "Persistence failed, retry"
// @Router /sessions/{session_id}/submit [post]
func (c *SessionController) Submit(ctx *gin.Context) {
	id, ok := controller.UUIDParam(ctx, "session_id")
	if !ok {
		return
	}
	out, err := c.sessionService.Submit(ctx.Request.Context(), id)
	if err != nil {
		controller.RespondError(ctx, "Failed to submit attempt", err)
		return
	}
	ctx.JSON(http.StatusOK, out)
}

// Abandon godoc
// @Summary (User) Leave the attempt without submitting
// @Description The attempt stays open and can be resumed by starting a new session.
// @Tags User - Sessions
// @Param session_id path string true "Session ID"
// @Success 204
// @Failure 409 {object} dto.ErrorResponse "Attempt already finalizing or finished"
// @Router /sessions/{session_id}/abandon [post]
func (c *SessionController) Abandon(ctx *gin.Context) {
	id, ok := controller.UUIDParam(ctx, "session_id")
	if !ok {
		return
	}
	if err := c.sessionService.Abandon(ctx.Request.Context(), id); err != nil {
		controller.RespondError(ctx, "Failed to abandon attempt", err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// Events godoc
// @Summary (User) Stream session events
// @Description Server-sent events: "remaining" every tick while in progress, then the terminal event.
// @Tags User - Sessions
// @Produce text/event-stream
// @Param session_id path string true "Session ID"
// @Success 200
// @Router /sessions/{session_id}/events [get]
func (c *SessionController) Events(ctx *gin.Context) {
	id, ok := controller.UUIDParam(ctx, "session_id")
	if !ok {
		return
	}
	sess, events, cancel, err := c.sessionService.Watch(id)
	if err != nil {
		controller.RespondError(ctx, "Failed to watch session", err)
		return
	}
	defer cancel()

	ticker := time.NewTicker(c.feedInterval)
	defer ticker.Stop()

	ctx.Stream(func(w io.Writer) bool {
		select {
		case ev := <-events:
			ctx.SSEvent(string(ev.Type), ev)
			return !ev.Terminal()
		case <-sess.Done():
			// The terminal event is published before Done closes; flush it if buffered.
			for {
				select {
				case ev := <-events:
					ctx.SSEvent(string(ev.Type), ev)
					if ev.Terminal() {
						return false
					}
				default:
					ctx.SSEvent("closed", gin.H{"state": sess.State()})
					return false
				}
			}
		case <-ticker.C:
			if remaining, ok := sess.Remaining(); ok {
				ctx.SSEvent("remaining", gin.H{"remaining_seconds": int64(remaining / time.Second)})
			}
			return true
		case <-ctx.Request.Context().Done():
			log.Debug().Str("session_id", id.String()).Msg("Event stream client went away")
			return false
		}
	})
}
