package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/timedtest/config"
	"github.com/lshigami/timedtest/database"
	_ "github.com/lshigami/timedtest/docs"
	"github.com/lshigami/timedtest/internal/attempt"
	adminctrl "github.com/lshigami/timedtest/internal/controller/admin"
	userctrl "github.com/lshigami/timedtest/internal/controller/user"
	"github.com/lshigami/timedtest/internal/logger"
	"github.com/lshigami/timedtest/internal/repository"
	"github.com/lshigami/timedtest/internal/router"
	"github.com/lshigami/timedtest/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// @title Timed Test Attempt API
// @version 1.0
// @description Admission, timed sessions, auto-submit and scoring for scheduled tests.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
func main() {
	logger.Init()

	app := fx.New(
		fx.Provide(
			config.NewConfig,
			database.NewDatabase,
			router.NewGinEngine,
		),

		// Repositories Layer
		fx.Provide(
			repository.NewTestRepository,
			repository.NewQuestionRepository,
			repository.NewScheduledTestRepository,
			repository.NewAttemptRepository,
			repository.NewAnswerRepository,
			repository.NewContentStore,
			NewDraftCheckpoint,
		),

		// Attempt engine
		fx.Provide(
			attempt.NewBroadcaster,
			NewEngine,
		),

		// Services Layer
		fx.Provide(
			service.NewScoreConverterService,
			service.NewAdminTestService,
			service.NewUserTestService,
			service.NewResultService,
			service.NewSessionService,
		),

		// API Controllers Layer
		fx.Provide(
			adminctrl.NewAdminTestController,
			userctrl.NewUserTestController,
			func(ss service.SessionService, cfg *config.Config) *userctrl.SessionController {
				return userctrl.NewSessionController(ss, cfg.Engine.FeedInterval)
			},
		),

		fx.Invoke(func(cfg *config.Config) { logger.SetLevel(cfg.LogLevel) }),
		fx.Invoke(PrepareDatabase),
		fx.Invoke(RegisterRoutesAndStartServer),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	<-app.Done()
	log.Info().Msg("Application shutting down gracefully...")
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("Failed to stop application cleanly")
	}
}

// NewDraftCheckpoint uses redis when REDIS_ADDR is set and process memory otherwise.
func NewDraftCheckpoint(lc fx.Lifecycle, cfg *config.Config) attempt.DraftCheckpoint {
	if cfg.Redis.Addr == "" {
		log.Info().Msg("REDIS_ADDR not set, keeping draft checkpoints in memory")
		return repository.NewMemoryDraftCheckpoint()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis not reachable, checkpoints will fail until it is")
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return repository.NewRedisDraftCheckpoint(client, cfg.Engine.CheckpointTTL)
}

func NewEngine(
	cfg *config.Config,
	content *repository.ContentStore,
	attempts repository.AttemptRepository,
	checkpoints attempt.DraftCheckpoint,
	broadcaster *attempt.Broadcaster,
) *attempt.Engine {
	return attempt.NewEngine(content, attempts, checkpoints, broadcaster, attempt.Options{
		FinalizeRetries: cfg.Engine.FinalizeRetries,
		RetryBackoff:    cfg.Engine.RetryBackoff,
	})
}

// PrepareDatabase migrates the schema, releases attempts orphaned by a
// previous process and scores abandoned attempts whose test has closed.
func PrepareDatabase(lc fx.Lifecycle, db *gorm.DB, attempts repository.AttemptRepository, engine *attempt.Engine) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := database.Migrate(ctx, db); err != nil {
				return err
			}
			n, err := attempts.ReleaseOrphans(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				log.Info().Int64("count", n).Msg("Released orphaned attempts")
			}
			closed, err := engine.FinalizeOverdue(ctx)
			if err != nil {
				return err
			}
			if closed > 0 {
				log.Info().Int("count", closed).Msg("Finalized overdue abandoned attempts")
			}
			return nil
		},
	})
}

// RegisterRoutesAndStartServer configures API routes and manages server lifecycle.
func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Config,
	engine *attempt.Engine,
	adminTestCtrl *adminctrl.AdminTestController,
	userTestCtrl *userctrl.UserTestController,
	sessionCtrl *userctrl.SessionController,
) {
	router.RegisterRoutes(r, adminTestCtrl, userTestCtrl, sessionCtrl)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Timed test API server starting on port %s", cfg.Server.Port)
			log.Info().Msgf("Swagger UI available at http://localhost:%s/swagger/index.html", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal().Err(err).Msg("Server ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			// Sessions go first so open event streams end and Shutdown can drain.
			log.Info().Int("live_sessions", engine.LiveSessions()).Msg("Abandoning live sessions...")
			engine.Shutdown(ctx)

			log.Info().Msg("Server shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}
