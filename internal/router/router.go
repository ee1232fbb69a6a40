package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	adminctrl "github.com/lshigami/timedtest/internal/controller/admin"
	userctrl "github.com/lshigami/timedtest/internal/controller/user"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func NewGinEngine() *gin.Engine {
	r := gin.New()

	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("user_agent", param.Request.UserAgent()).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return ""
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// URL: http://localhost:PORT/swagger/index.html
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// RegisterRoutes mounts every API route under /api/v1.
func RegisterRoutes(
	router *gin.Engine,
	adminTestCtrl *adminctrl.AdminTestController,
	userTestCtrl *userctrl.UserTestController,
	sessionCtrl *userctrl.SessionController,
) {
	adminAPIGroup := router.Group("/api/v1/admin")
	{
		adminAPIGroup.POST("/tests", adminTestCtrl.CreateTest)
		adminAPIGroup.POST("/scheduled-tests", adminTestCtrl.ScheduleTest)
	}

	userAPIGroup := router.Group("/api/v1")
	{
		userAPIGroup.GET("/tests", userTestCtrl.GetAllTests)
		userAPIGroup.GET("/classes/:class_id/scheduled-tests", userTestCtrl.ListClassScheduledTests)
		userAPIGroup.GET("/scheduled-tests/:id", userTestCtrl.GetScheduledTest)
		userAPIGroup.GET("/scheduled-tests/:id/attempts", userTestCtrl.GetAttemptHistory)
		userAPIGroup.GET("/attempts/:attempt_id", userTestCtrl.GetAttemptDetails)

		userAPIGroup.POST("/scheduled-tests/:id/sessions", sessionCtrl.StartSession)
		sessions := userAPIGroup.Group("/sessions/:session_id")
		sessions.GET("", sessionCtrl.GetSession)
		sessions.GET("/answers", sessionCtrl.GetAnswers)
		sessions.PUT("/answers/:question_id", sessionCtrl.SetAnswer)
		sessions.POST("/submit", sessionCtrl.Submit)
		sessions.POST("/abandon", sessionCtrl.Abandon)
		sessions.GET("/events", sessionCtrl.Events)
	}
}
