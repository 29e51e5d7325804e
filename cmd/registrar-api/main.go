package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/opencampus/registrar-api/api/swagger"
	"github.com/opencampus/registrar-api/internal/handler"
	"github.com/opencampus/registrar-api/internal/middleware"
	"github.com/opencampus/registrar-api/internal/repository"
	"github.com/opencampus/registrar-api/internal/service"
	"github.com/opencampus/registrar-api/pkg/cache"
	"github.com/opencampus/registrar-api/pkg/config"
	"github.com/opencampus/registrar-api/pkg/database"
	"github.com/opencampus/registrar-api/pkg/logger"
	corsmiddleware "github.com/opencampus/registrar-api/pkg/middleware/cors"
	reqidmiddleware "github.com/opencampus/registrar-api/pkg/middleware/requestid"
)

// @title OpenCampus Registrar API
// @version 0.1.0
// @description Section enrollment engine and timetable conflict checker
// @BasePath /
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, availability cache disabled", "error", err)
		redisClient = nil
	}

	// Repositories.
	terms := repository.NewTermRepository(db)
	sections := repository.NewSectionRepository(db)
	courses := repository.NewCourseRepository(db)
	transcripts := repository.NewTranscriptRepository(db)
	programs := repository.NewProgramEnrollmentRepository(db)
	meetings := repository.NewMeetingRepository(db)
	appointments := repository.NewAppointmentRepository(db)
	users := repository.NewUserRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)
	events := repository.NewEventRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	identitySvc := service.NewIdentityService(cfg.JWT)
	prereqSvc := service.NewPrerequisiteService(courses, transcripts, enrollments, logr)
	conflictSvc := service.NewConflictService(sections, meetings, appointments, nil, logr)
	availabilitySvc := service.NewAvailabilityService(sections, cacheRepo, cfg.Enrollment.AvailabilityCacheTTL, logr)
	rosterSvc := service.NewRosterService(enrollments, sections, cfg.Exports, logr)
	notifier := service.NewLogNotifier(logr, cfg.Enrollment.NotificationQueueSize)
	defer notifier.Close()
	enrollmentSvc := service.NewEnrollmentService(service.EnrollmentServiceDeps{
		Store:    enrollments,
		Sections: sections,
		Terms:    terms,
		Users:    users,
		Programs: programs,
		Prereqs:  prereqSvc,
		Events:   events,
		Notifier: notifier,
		Cache:    availabilitySvc,
		Metrics:  metricsSvc,
		Logger:   logr,
	})

	promotionQueue := service.NewWaitlistPromotionQueue(enrollmentSvc, cfg.Enrollment, logr)
	enrollmentSvc.SetPromotionScheduler(promotionQueue)
	promotionQueue.Start(context.Background())
	defer promotionQueue.Stop()

	// Handlers.
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	conflictHandler := handler.NewConflictHandler(conflictSvc)
	sectionHandler := handler.NewSectionHandler(availabilitySvc, rosterSvc)
	prereqHandler := handler.NewPrerequisiteHandler(prereqSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group("/", middleware.Identity(identitySvc))
	{
		api.GET("/enrollments", enrollmentHandler.List)
		api.POST("/enrollments", enrollmentHandler.Create)
		api.POST("/enrollments/batch", enrollmentHandler.BatchEnroll)
		api.GET("/enrollments/:id", enrollmentHandler.Get)
		api.DELETE("/enrollments/:id", enrollmentHandler.Drop)

		api.POST("/sections/:id/promote", enrollmentHandler.Promote)
		api.GET("/sections/:id/availability", sectionHandler.Availability)
		api.GET("/sections/:id/roster", sectionHandler.Roster)
		api.POST("/sections/:id/conflicts/meetings", conflictHandler.CheckMeetings)
		api.POST("/sections/:id/conflicts/appointments", conflictHandler.CheckAppointments)

		api.GET("/courses/:id/prerequisites/check", prereqHandler.Check)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
