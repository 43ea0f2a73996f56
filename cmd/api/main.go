package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/abhisheksingh810/marking-api/internal/config"
	"github.com/abhisheksingh810/marking-api/internal/database"
	"github.com/abhisheksingh810/marking-api/internal/handler"
	"github.com/abhisheksingh810/marking-api/internal/middleware"
	"github.com/abhisheksingh810/marking-api/internal/models"
	"github.com/abhisheksingh810/marking-api/internal/repository"
	"github.com/abhisheksingh810/marking-api/internal/router"
	"github.com/abhisheksingh810/marking-api/internal/service"
	"github.com/abhisheksingh810/marking-api/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Assessment{},
		&models.AssessmentSection{},
		&models.MarkingOption{},
		&models.GradeBoundary{},
		&models.Submission{},
		&models.SubmissionFile{},
		&models.MarkingAssignment{},
		&models.Grade{},
		&models.SectionMark{},
		&models.MalpracticeLevel{},
		&models.MalpracticeEnforcement{},
		&models.ActivityLog{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(context.Background(), cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NatsURL != "" {
		natsConn, err = nats.Connect(cfg.NatsURL)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, domain events disabled")
			natsConn = nil
		} else {
			defer natsConn.Close()
		}
	}

	store, err := storage.New(storage.Config{
		CloudName: cfg.StorageCloudName,
		APIKey:    cfg.StorageAPIKey,
		APISecret: cfg.StorageAPISecret,
		Folder:    cfg.StorageUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create storage client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	submissionRepo := repository.NewSubmissionRepository(db)
	markingRepo := repository.NewMarkingRepository(db)
	rubricRepo := repository.NewRubricRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	malpracticeRepo := repository.NewMalpracticeRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	events := service.NewNatsPublisher(natsConn, cfg.EventSubjectBase, logger)
	locker := service.NewRedisLocker(redisClient, cfg.IntakeLockTTL, cfg.IntakeLockWait, logger)

	activityService := service.NewActivityService(activityRepo, logger)
	eligibilityService := service.NewEligibilityService(submissionRepo, malpracticeRepo, logger)
	gradingService := service.NewGradingService(rubricRepo, gradeRepo, submissionRepo, markingRepo, validate, activityService, logger)
	rubricService := service.NewRubricService(rubricRepo, gradingService, validate, logger)
	markingService := service.NewMarkingService(markingRepo, submissionRepo, gradeRepo, validate, activityService, events, logger)
	malpracticeService := service.NewMalpracticeService(malpracticeRepo, submissionRepo, validate, activityService, events, logger)
	intakeService := service.NewIntakeService(submissionRepo, markingRepo, rubricRepo, eligibilityService, locker, store, validate, logger)

	intakeHandler := handler.NewIntakeHandler(intakeService, logger)
	markingHandler := handler.NewMarkingHandler(markingService, logger)
	gradingHandler := handler.NewGradingHandler(gradingService, logger)
	rubricHandler := handler.NewRubricHandler(rubricService, logger)
	malpracticeHandler := handler.NewMalpracticeHandler(malpracticeService, logger)
	activityHandler := handler.NewActivityHandler(activityService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		IntakeHandler:      intakeHandler,
		MarkingHandler:     markingHandler,
		GradingHandler:     gradingHandler,
		RubricHandler:      rubricHandler,
		MalpracticeHandler: malpracticeHandler,
		ActivityHandler:    activityHandler,
		JWTMiddleware:      middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
