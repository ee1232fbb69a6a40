package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/timedtest/internal/controller"
	"github.com/lshigami/timedtest/internal/dto"
	"github.com/lshigami/timedtest/internal/service"
	"github.com/rs/zerolog/log"
)

type AdminTestController struct {
	adminTestService service.AdminTestService
}

func NewAdminTestController(adminTestService service.AdminTestService) *AdminTestController {
	return &AdminTestController{adminTestService: adminTestService}
}

// CreateTest godoc
// @Summary (Admin) Create a new test
// @Description Admin creates a test with its questions. Answer keys are stored but never returned to students.
// @Tags Admin - Tests
// @Accept json
// @Produce json
// @Param test_data body dto.TestCreateDTO true "Test creation data including all questions"
// @Success 201 {object} dto.TestResponseDTO "Test created successfully"
// @Failure 400 {object} dto.ErrorResponse "Invalid input data"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /admin/tests [post]
func (c *AdminTestController) CreateTest(ctx *gin.Context) {
	var req dto.TestCreateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Admin CreateTest: Failed to bind JSON")
		controller.BadRequest(ctx, "Invalid request body", err.Error())
		return
	}

	testResp, err := c.adminTestService.CreateTest(ctx.Request.Context(), req)
	if err != nil {
		controller.RespondError(ctx, "Failed to create test", err)
		return
	}
	ctx.JSON(http.StatusCreated, testResp)
}

// ScheduleTest godoc
// @Summary (Admin) Schedule a test for a class
// @Description Binds a test to a class with an optional window, attempt limit, passing score and time limit in minutes.
// @Tags Admin - Tests
// @Accept json
// @Produce json
// @Param schedule body dto.ScheduledTestCreateDTO true "Scheduling data"
// @Success 201 {object} dto.ScheduledTestResponseDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid input data"
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /admin/scheduled-tests [post]
func (c *AdminTestController) ScheduleTest(ctx *gin.Context) {
	var req dto.ScheduledTestCreateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Admin ScheduleTest: Failed to bind JSON")
		controller.BadRequest(ctx, "Invalid request body", err.Error())
		return
	}

	resp, err := c.adminTestService.ScheduleTest(ctx.Request.Context(), req)
	if err != nil {
		controller.RespondError(ctx, "Failed to schedule test", err)
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}
