package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/symptomcheck/symptom-service/internal/api/http"
	"github.com/symptomcheck/symptom-service/internal/api/http/handlers"
	"github.com/symptomcheck/symptom-service/internal/analysis"
	"github.com/symptomcheck/symptom-service/internal/auth"
	"github.com/symptomcheck/symptom-service/internal/config"
	"github.com/symptomcheck/symptom-service/internal/events"
	"github.com/symptomcheck/symptom-service/internal/observability"
	"github.com/symptomcheck/symptom-service/internal/persistence"
	"github.com/symptomcheck/symptom-service/internal/ratelimit"
	"github.com/symptomcheck/symptom-service/internal/repository"
	"github.com/symptomcheck/symptom-service/internal/service"
	"github.com/symptomcheck/symptom-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var (
		userRepo    repository.UserRepository
		historyRepo repository.HistoryRepository
	)
	if pg.Enabled() {
		userRepo = repository.NewUserRepository(pg.PoolHandle(), cfg.Postgres.OpTimeout())
		historyRepo = repository.NewHistoryRepository(pg.PoolHandle(), cfg.Postgres.OpTimeout())
	} else {
		userRepo = repository.NewMemoryUserRepository()
		historyRepo = repository.NewMemoryHistoryRepository()
	}

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:    userRepo,
		Revocations: auth.NewRedisRevocationStore(redis.Client),
	}, logger)
	authMiddleware := auth.NewAuthMiddleware(authService)

	dispatcher := events.NewInMemoryDispatcher()

	knowledge, err := analysis.NewKnowledgeBase(logger)
	if err != nil {
		logger.Fatal("failed to init knowledge base", zap.Error(err))
	}
	worker.StartIndexingWorker(service.NewIndexingService(dispatcher, knowledge, logger))

	var analyzer analysis.Analyzer
	if cfg.Analyzer.Enabled() {
		llm, err := analysis.NewLLMAnalyzer(cfg.Analyzer, logger)
		if err != nil {
			logger.Fatal("failed to init analyzer", zap.Error(err))
		}
		analyzer = llm
	} else {
		logger.Warn("LLM_API_KEY not provided; analysis endpoints will return 502")
	}

	historyService := service.NewHistoryService(cfg.History, service.HistoryDependencies{
		Identity:    authService,
		HistoryRepo: historyRepo,
		Dispatcher:  dispatcher,
	}, logger)
	symptomService := service.NewSymptomService(cfg.Analyzer, service.SymptomDependencies{
		Analyzer:  analyzer,
		Knowledge: knowledge,
		History:   historyService,
		Limiter:   ratelimit.NewPerMinute(redis.Client, logger, cfg.RateLimit.AnalyzePerMinute),
		Metrics:   metrics,
	}, logger)

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: cfg.App.UploadMaxBytes,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, httptransport.MiddlewareConfig{
		Timeout:      cfg.App.RequestTimeout(),
		AllowOrigins: cfg.App.CORSAllowOrigins,
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, cfg.Analyzer.Enabled()),
		Users:          handlers.NewUsersHandler(authService, historyService),
		Symptoms:       handlers.NewSymptomsHandler(symptomService, historyService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.Shutdown(); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
