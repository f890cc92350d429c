package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/magicjournal/server/internal/config"
	"github.com/magicjournal/server/internal/db"
	"github.com/magicjournal/server/internal/metrics"
	"github.com/magicjournal/server/internal/repository"
	"github.com/magicjournal/server/internal/service"
	"github.com/magicjournal/server/internal/storage"
)

type App struct {
	Cfg              *config.Config
	DB               *sqlx.DB
	AuthService      *service.AuthService
	UserService      *service.UserService
	EmailService     *service.EmailService
	FileService      *service.FileService
	HabitService     *service.HabitService
	GoalService      *service.GoalService
	JournalService   *service.JournalService
	HealthService    *service.HealthService
	FriendService    *service.FriendService
	AssistantService *service.AssistantService
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run database migrations
	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	metrics.Register()

	// Repositories
	userRepository := repository.NewUserRepository(database)
	fileRepository := repository.NewFileRepository(database)
	habitRepository := repository.NewHabitRepository(database)
	goalRepository := repository.NewGoalRepository(database)
	journalRepository := repository.NewJournalEntryRepository(database)
	healthRepository := repository.NewHealthMetricRepository(database)
	friendRepository := repository.NewFriendRepository(database)

	// Storage (nil when no bucket is configured)
	fileStorage, err := storage.New(ctx, cfg)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Services
	emailService := service.NewEmailService(
		cfg.ResendAPIKey,
		cfg.EmailFrom,
		cfg.FrontendURL,
		cfg.AppName,
		cfg.IsDevelopment(),
	)
	fileService := service.NewFileService(fileRepository, fileStorage)
	habitService := service.NewHabitService(habitRepository)
	reconciler := service.NewReconciler(database, goalRepository, journalRepository)

	if cfg.SeedCatalog {
		err = habitService.SeedCatalog(ctx)
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("failed to seed habit catalog: %w", err)
		}
	}

	authService := service.NewAuthService(
		userRepository,
		service.NewGoogleVerifier(cfg.GoogleClientID),
		emailService,
		cfg.SessionSecret,
		cfg.SessionExpiry,
		cfg.IsProduction(),
	)

	return &App{
		Cfg:              cfg,
		DB:               database,
		AuthService:      authService,
		UserService:      service.NewUserService(userRepository, fileService),
		EmailService:     emailService,
		FileService:      fileService,
		HabitService:     habitService,
		GoalService:      service.NewGoalService(database, goalRepository, habitRepository),
		JournalService:   service.NewJournalService(database, journalRepository, goalRepository, reconciler),
		HealthService:    service.NewHealthService(database, healthRepository, reconciler),
		FriendService:    service.NewFriendService(database, friendRepository, userRepository, goalRepository, emailService),
		AssistantService: service.NewAssistantService(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.OllamaTimeout),
	}, nil
}

func (a *App) Close() error {
	return db.Close(a.DB)
}
