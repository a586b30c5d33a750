package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/gakuen-dev/biz-ops-api/internal/achievement"
	"github.com/gakuen-dev/biz-ops-api/internal/handler"
	"github.com/gakuen-dev/biz-ops-api/internal/middleware"
	"github.com/gakuen-dev/biz-ops-api/internal/models"
	"github.com/gakuen-dev/biz-ops-api/internal/repository"
	"github.com/gakuen-dev/biz-ops-api/internal/service"
	"github.com/gakuen-dev/biz-ops-api/pkg/cache"
	"github.com/gakuen-dev/biz-ops-api/pkg/config"
	"github.com/gakuen-dev/biz-ops-api/pkg/database"
	"github.com/gakuen-dev/biz-ops-api/pkg/export"
	"github.com/gakuen-dev/biz-ops-api/pkg/jobs"
	"github.com/gakuen-dev/biz-ops-api/pkg/logger"
	"github.com/gakuen-dev/biz-ops-api/pkg/mail"
	corsmiddleware "github.com/gakuen-dev/biz-ops-api/pkg/middleware/cors"
	reqidmiddleware "github.com/gakuen-dev/biz-ops-api/pkg/middleware/requestid"
)

// @title Biz Ops API
// @version 1.0.0
// @description Business operations extension for the learning platform
// @BasePath /api/v1
// @schemes http

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	mongoClient, err := database.NewMongo(cfg.Achievement)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect mongo", "error", err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(disconnectCtx); err != nil {
			logr.Sugar().Warnw("mongo disconnect failed", "error", err)
		}
	}()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect redis", "error", err)
	}
	defer redisClient.Close()

	validate := validator.New()

	formatter, err := export.NewFormatter(cfg.Export.Timezone)
	if err != nil {
		logr.Sugar().Fatalw("invalid export timezone", "timezone", cfg.Export.Timezone, "error", err)
	}

	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	contractRepo := repository.NewContractRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	surveyRepo := repository.NewSurveyRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	batchRepo := repository.NewBatchStatusRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	recordStore := achievement.NewStore(mongoClient, cfg.Achievement, logr)

	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:             cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "biz-ops-api",
	})
	groupSvc := service.NewGroupService(groupRepo, cacheRepo, cfg.Groups.VisibilityCacheTTL, logr)
	groupSvc.SetMetrics(metricsSvc)
	achievementSvc := service.NewAchievementService(recordStore, memberRepo, enrollmentRepo, batchRepo, contractRepo, formatter, export.NewPDFExporter(), logr)
	achievementSvc.SetMetrics(metricsSvc)
	surveySvc := service.NewSurveyService(surveyRepo, memberRepo, enrollmentRepo, contractRepo, formatter, logr)

	var mailer mail.Sender
	if cfg.Mail.SendGridKey != "" {
		mailer = mail.NewSendGridSender(cfg.Mail.SendGridKey, cfg.Mail.FromName, cfg.Mail.FromEmail)
	} else {
		logr.Info("no sendgrid key configured, reminder emails will be logged only")
		mailer = mail.NewLogSender(logr)
	}
	memberSvc := service.NewMemberService(memberRepo, groupRepo, enrollmentRepo, contractRepo, mailer, validate, logr)

	var taskSvc *service.TaskService
	queue := jobs.NewQueue("batch-tasks",
		func(ctx context.Context, job jobs.Job) error {
			if err := taskSvc.Execute(ctx, job); err != nil {
				return err
			}
			metricsSvc.ObserveTask(job.Type, models.TaskStateSuccess)
			return nil
		},
		jobs.QueueConfig{
			Workers:    cfg.Tasks.Workers,
			BufferSize: cfg.Tasks.BufferSize,
			MaxRetries: cfg.Tasks.MaxRetries,
			RetryDelay: cfg.Tasks.RetryDelay,
			Logger:     logr,
			OnExhausted: func(job jobs.Job, cause error) {
				taskSvc.HandleExhausted(job, cause)
				metricsSvc.ObserveTask(job.Type, models.TaskStateFailure)
			},
		})
	taskSvc = service.NewTaskService(taskRepo, queue, validate, logr)
	taskSvc.RegisterRunner(models.TaskTypeMemberRegister, memberSvc.RunMemberRegister)
	taskSvc.RegisterRunner(models.TaskTypePersonalinfoMask, memberSvc.RunPersonalinfoMask)
	taskSvc.RegisterRunner(models.TaskTypeStudentRegister, memberSvc.RunStudentRegister)
	taskSvc.RegisterRunner(models.TaskTypeStudentUnregister, memberSvc.RunStudentUnregister)
	taskSvc.RegisterRunner(models.TaskTypeReminderEmail, memberSvc.RunReminderEmail)

	queue.Start(ctx)
	defer queue.Stop()

	scopeResolver := middleware.NewScopeResolver(contractRepo, orgRepo, userRepo, groupSvc)

	healthHandler := handler.NewHealthHandler(map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
		"mongo": func(ctx context.Context) error {
			return mongoClient.Ping(ctx, nil)
		},
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	handler.SetupRoutes(r, handler.RouterDeps{
		APIPrefix:   cfg.APIPrefix,
		Auth:        handler.NewAuthHandler(authSvc),
		Achievement: handler.NewAchievementHandler(achievementSvc),
		Members:     handler.NewMemberHandler(memberSvc, taskSvc),
		Groups:      handler.NewGroupHandler(groupSvc),
		Tasks:       handler.NewTaskHandler(taskSvc),
		Surveys:     handler.NewSurveyHandler(surveySvc),
		Health:      healthHandler,
		AuthMW:      middleware.JWT(authSvc),
		Scope:       scopeResolver,
		MetricsMW:   middleware.Metrics(metricsSvc),
		Metrics:     metricsSvc.Handler(),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
