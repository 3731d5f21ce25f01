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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/ona-asso/ona-api/api/swagger"
	"github.com/ona-asso/ona-api/internal/handler"
	"github.com/ona-asso/ona-api/internal/repository"
	"github.com/ona-asso/ona-api/internal/service"
	"github.com/ona-asso/ona-api/pkg/cache"
	"github.com/ona-asso/ona-api/pkg/config"
	"github.com/ona-asso/ona-api/pkg/database"
	"github.com/ona-asso/ona-api/pkg/jobs"
	"github.com/ona-asso/ona-api/pkg/logger"
	corsmiddleware "github.com/ona-asso/ona-api/pkg/middleware/cors"
	reqidmiddleware "github.com/ona-asso/ona-api/pkg/middleware/requestid"
)

// @title ONA API
// @version 1.0.0
// @description Volunteer calendars, availability and appointment scheduling
// @BasePath /
// @schemes http https
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db.DB, logr)
	if err != nil {
		logr.Fatal("failed to prepare migrations", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		if err := migrator.Up(ctx); err != nil {
			logr.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, calendar cache disabled", zap.Error(err))
	} else if redisClient != nil {
		defer redisClient.Close()
		cacheRepo = repository.NewCacheRepository(redisClient, cfg.Redis.Prefix, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Calendar.CacheTTL, logr, cacheRepo != nil)

	location := cfg.Calendar.Location()
	scheduling := service.SchedulingConfig{
		Location:        location,
		StrictStatus:    cfg.Calendar.StrictStatus,
		MinFreeDuration: cfg.Calendar.MinFreeDuration,
		CacheTTL:        cfg.Calendar.CacheTTL,
	}

	volunteerRepo := repository.NewVolunteerRepository(db)
	calendarRepo := repository.NewCalendarRepository(db)
	slotRepo := repository.NewAvailabilityRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	beneficiaryRepo := repository.NewBeneficiaryRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	authSvc := service.NewAuthService(volunteerRepo, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	calendarSvc := service.NewCalendarService(calendarRepo, cacheSvc, nil, logr)
	volunteerSvc := service.NewVolunteerService(volunteerRepo, calendarSvc, db, nil, logr)
	availabilitySvc := service.NewAvailabilityService(slotRepo, calendarRepo, appointmentRepo, cacheSvc, metricsSvc, scheduling, nil, logr)
	appointmentSvc := service.NewAppointmentService(appointmentRepo, calendarRepo, slotRepo, beneficiaryRepo, db, cacheSvc, metricsSvc, scheduling, nil, logr)
	querySvc := service.NewQueryService(calendarRepo, slotRepo, appointmentRepo, cacheSvc, metricsSvc, scheduling, logr)
	icsSvc := service.NewICSService(querySvc, scheduling)
	beneficiarySvc := service.NewBeneficiaryService(beneficiaryRepo, nil, logr)

	if created, err := volunteerSvc.BackfillCalendars(ctx); err != nil {
		logr.Warn("calendar backfill failed", zap.Error(err))
	} else if created > 0 {
		logr.Info("calendars backfilled", zap.Int("count", created))
	}

	var (
		reminderQueue     *jobs.Queue
		reminderScheduler *service.ReminderScheduler
	)
	if cfg.Reminders.Enabled {
		reminderSvc := service.NewReminderService(appointmentRepo, nil, metricsSvc, scheduling, logr)
		worker := service.NewReminderWorker(reminderSvc, service.NewLogNotifier(logr, location), logr)
		reminderQueue = jobs.NewQueue("reminders", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reminders.Workers,
			MaxRetries: cfg.Reminders.Retries,
			RetryDelay: cfg.Reminders.RetryDelay,
			OnDrop:     reminderSvc.Dropped,
			Logger:     logr,
		})
		reminderSvc.SetQueue(reminderQueue)
		reminderQueue.Start(ctx)

		reminderScheduler, err = service.NewReminderScheduler(cfg.Reminders.Cron, location, reminderSvc, logr)
		if err != nil {
			logr.Fatal("failed to schedule reminders", zap.Error(err))
		}
		reminderScheduler.Start()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	handler.Register(r, cfg.APIPrefix, handler.Handlers{
		Auth:          handler.NewAuthHandler(),
		Calendars:     handler.NewCalendarHandler(calendarSvc, querySvc, icsSvc, location),
		Slots:         handler.NewSlotHandler(availabilitySvc),
		Appointments:  handler.NewAppointmentHandler(appointmentSvc),
		Fragments:     handler.NewFragmentHandler(querySvc, location),
		Volunteers:    handler.NewVolunteerHandler(volunteerSvc),
		Beneficiaries: handler.NewBeneficiaryHandler(beneficiarySvc),
		Audit:         handler.NewAuditHandler(auditRepo),
		Metrics:       handler.NewMetricsHandler(metricsSvc, db, migrator),
	}, handler.RouteDeps{
		Auth:    authSvc,
		Metrics: metricsSvc,
		Audit:   auditRepo,
		Logger:  logr,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if reminderScheduler != nil {
		reminderScheduler.Stop(shutdownCtx)
	}
	if reminderQueue != nil {
		reminderQueue.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
