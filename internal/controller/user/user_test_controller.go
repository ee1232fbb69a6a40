package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/timedtest/internal/controller"
	"github.com/lshigami/timedtest/internal/service"
)

type UserTestController struct {
	userTestService service.UserTestService
	resultService   service.ResultService
}

func NewUserTestController(uts service.UserTestService, rs service.ResultService) *UserTestController {
	return &UserTestController{userTestService: uts, resultService: rs}
}

// GetAllTests godoc
// @Summary (User) List all tests
// @Tags User - Tests & Results
// @Produce json
// @Success 200 {array} dto.TestSummaryDTO
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /tests [get]
func (c *UserTestController) GetAllTests(ctx *gin.Context) {
	tests, err := c.userTestService.GetAllTests(ctx.Request.Context())
	if err != nil {
		controller.RespondError(ctx, "Failed to retrieve tests", err)
		return
	}
	ctx.JSON(http.StatusOK, tests)
}

// GetScheduledTest godoc
// @Summary (User) Get a scheduled test
// @Description Scheduling constraints plus the test's questions, without answer keys.
// @Tags User - Tests & Results
// @Produce json
// @Param id path int true "Scheduled test ID"
// @Success 200 {object} dto.ScheduledTestResponseDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid ID format"
// @Failure 404 {object} dto.ErrorResponse "Scheduled test not found"
// @Router /scheduled-tests/{id} [get]
func (c *UserTestController) GetScheduledTest(ctx *gin.Context) {
	id, ok := controller.UintParam(ctx, "id")
	if !ok {
		return
	}
	st, err := c.userTestService.GetScheduledTest(ctx.Request.Context(), id)
	if err != nil {
		controller.RespondError(ctx, "Failed to retrieve scheduled test", err)
		return
	}
	ctx.JSON(http.StatusOK, st)
}

// ListClassScheduledTests godoc
// @Summary (User) List the scheduled tests of a class
// @Tags User - Tests & Results
// @Produce json
// @Param class_id path string true "Class ID"
// @Success 200 {array} dto.ScheduledTestResponseDTO
// @Router /classes/{class_id}/scheduled-tests [get]
func (c *UserTestController) ListClassScheduledTests(ctx *gin.Context) {
	list, err := c.userTestService.ListScheduledTestsForClass(ctx.Request.Context(), ctx.Param("class_id"))
	if err != nil {
		controller.RespondError(ctx, "Failed to retrieve scheduled tests", err)
		return
	}
	ctx.JSON(http.StatusOK, list)
}

// GetAttemptHistory godoc
// @Summary (User) List attempts on a scheduled test
// @Description Newest first. Filter by student with the student_id query parameter.
// @Tags User - Tests & Results
// @Produce json
// @Param id path int true "Scheduled test ID"
// @Param student_id query string false "Student ID"
// @Success 200 {array} dto.AttemptSummaryDTO
// @Failure 404 {object} dto.ErrorResponse "Scheduled test not found"
// @Router /scheduled-tests/{id}/attempts [get]
func (c *UserTestController) GetAttemptHistory(ctx *gin.Context) {
	id, ok := controller.UintParam(ctx, "id")
	if !ok {
		return
	}
	attempts, err := c.resultService.GetAttemptHistory(ctx.Request.Context(), id, ctx.Query("student_id"))
	if err != nil {
		controller.RespondError(ctx, "Failed to retrieve attempts", err)
		return
	}
	ctx.JSON(http.StatusOK, attempts)
}

// GetAttemptDetails godoc
// @Summary (User) Get the result of an attempt
// @Description Score, percentage, pass/fail and graded answers.
// @Tags User - Tests & Results
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {object} dto.AttemptDetailDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid ID format"
// @Failure 404 {object} dto.ErrorResponse "Attempt not found"
// @Router /attempts/{attempt_id} [get]
func (c *UserTestController) GetAttemptDetails(ctx *gin.Context) {
	id, ok := controller.UintParam(ctx, "attempt_id")
	if !ok {
		return
	}
	details, err := c.resultService.GetAttemptDetails(ctx.Request.Context(), id)
	if err != nil {
		controller.RespondError(ctx, "Failed to retrieve attempt", err)
		return
	}
	ctx.JSON(http.StatusOK, details)
}
