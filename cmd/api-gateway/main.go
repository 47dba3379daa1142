package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/academy-schedule-api/api/swagger"
	"github.com/noah-isme/academy-schedule-api/internal/handler"
	"github.com/noah-isme/academy-schedule-api/internal/middleware"
	"github.com/noah-isme/academy-schedule-api/internal/repository"
	"github.com/noah-isme/academy-schedule-api/internal/service"
	"github.com/noah-isme/academy-schedule-api/pkg/cache"
	"github.com/noah-isme/academy-schedule-api/pkg/config"
	"github.com/noah-isme/academy-schedule-api/pkg/database"
	"github.com/noah-isme/academy-schedule-api/pkg/jobs"
	"github.com/noah-isme/academy-schedule-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/academy-schedule-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/academy-schedule-api/pkg/middleware/requestid"
)

const shutdownTimeout = 15 * time.Second

// @title Academy Schedule API
// @version 1.0.0
// @description Lesson scheduling, kiosk check-in and absence/makeup tracking for a tutoring academy.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()

	var cacheRepo *repository.CacheRepository
	if cfg.Board.CacheEnabled {
		redisClient, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, board cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close() //nolint:errcheck
			cacheRepo = repository.NewCacheRepository(redisClient)
		}
	}
	var cacheSvc *service.CacheService
	if cacheRepo != nil {
		cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Board.CacheTTL, logr, cfg.Board.CacheEnabled)
	}

	loc := cfg.Schedule.Location()
	validate := service.NewValidator()

	lessonRepo := repository.NewLessonRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	fixedRepo := repository.NewFixedScheduleRepository(db)

	lessons := service.NewLessonStore(lessonRepo, cacheSvc, metrics, cfg.Schedule.InsertChunkSize, logr)
	students := service.NewStudentService(studentRepo, lessons, metrics, validate, logr, service.StudentOptions{
		Location:     loc,
		HorizonYears: cfg.Schedule.HorizonYears,
	})
	attendance := service.NewAttendanceService(studentRepo, lessons, validate, metrics, logr, service.AttendanceOptions{
		Location:      loc,
		KioskPolicy:   cfg.Schedule.KioskCheckInPolicy,
		ReadingLength: cfg.Schedule.ReadingSessionLength,
	})
	makeups := service.NewMakeupService(lessons, validate, logr)
	boards := service.NewBoardService(lessons, validate, logr, loc)
	exports := service.NewExportService(boards, logr)
	fixedSchedules := service.NewFixedScheduleService(fixedRepo, validate, logr)
	tokens := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Expiration)

	regeneration := jobs.NewQueue("lesson-regeneration", students.HandleRegenerationJob, jobs.QueueConfig{
		Workers:    cfg.Regeneration.Workers,
		MaxRetries: cfg.Regeneration.Retries,
		RetryDelay: cfg.Regeneration.RetryDelay,
		Logger:     logr,
		OnExhausted: func(job jobs.Job, err error) {
			logr.Error("lesson regeneration abandoned, edit the student again to retry",
				zap.String("job_id", job.ID), zap.String("student_id", job.Key), zap.Error(err))
		},
	})
	regeneration.Start(ctx)
	defer regeneration.Stop()
	students.SetRetryQueue(regeneration)

	checks := map[string]handler.Pinger{"postgres": db, "redis": nil}
	if cacheRepo != nil {
		checks["redis"] = handler.PingFunc(cacheRepo.Ping)
	}
	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	kioskHandler := handler.NewKioskHandler(attendance)
	catalogHandler := handler.NewCatalogHandler(loc)
	lessonHandler := handler.NewLessonHandler(boards, exports, attendance, makeups, logr)
	studentHandler := handler.NewStudentHandler(students, attendance, loc, logr)
	fixedScheduleHandler := handler.NewFixedScheduleHandler(fixedSchedules)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/kiosk/check-in", kioskHandler.CheckIn)
	api.GET("/catalog/slots", catalogHandler.Slots)

	staff := api.Group("")
	staff.Use(middleware.StaffAuth(tokens))
	{
		staff.GET("/lessons", lessonHandler.Board)
		staff.GET("/lessons/export", lessonHandler.Export)
		staff.POST("/lessons/artifacts", lessonHandler.CreateArtifact)
		staff.PUT("/lessons/:id/memo", lessonHandler.UpdateMemo)
		staff.DELETE("/lessons/:id", lessonHandler.Delete)
		staff.POST("/lessons/:id/check-in", lessonHandler.CheckIn)
		staff.POST("/lessons/:id/absence", lessonHandler.MarkAbsent)
		staff.POST("/lessons/:id/reset", lessonHandler.Reset)
		staff.GET("/lessons/:id/link", lessonHandler.Link)

		staff.GET("/students", studentHandler.List)
		staff.POST("/students", studentHandler.Create)
		staff.GET("/students/:id", studentHandler.Get)
		staff.PUT("/students/:id", studentHandler.Update)
		staff.DELETE("/students/:id", studentHandler.Purge)
		staff.POST("/students/:id/withdraw", studentHandler.Withdraw)
		staff.GET("/students/:id/lessons", studentHandler.Lessons)
		staff.POST("/students/:id/check-in", studentHandler.CheckIn)

		staff.GET("/fixed-schedules", fixedScheduleHandler.List)
		staff.POST("/fixed-schedules", fixedScheduleHandler.Create)
		staff.PUT("/fixed-schedules/:id", fixedScheduleHandler.Update)
		staff.DELETE("/fixed-schedules/:id", fixedScheduleHandler.Delete)

		staff.GET("/metrics/snapshot", metricsHandler.Snapshot)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		logr.Sugar().Errorw("server failed", "error", err)
	case <-ctx.Done():
		logr.Info("shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
		_ = srv.Close()
	}
}
