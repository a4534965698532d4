package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"forexbot/config"
	"forexbot/internal/adapters/logger"
	"forexbot/internal/adapters/sqlite"
	"forexbot/internal/app"
	"forexbot/internal/metrics"
	"forexbot/internal/strategy"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewZerologLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (order journal and paper deals)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()
	appLogger.Info(context.Background(), "Database repository initialized")

	// 4. Initialize Terminal (OANDA or paper)
	terminal, err := app.NewTerminal(cfg, appLogger, repo)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize terminal")
		log.Fatalf("FATAL: Failed to initialize terminal: %v", err)
	}
	appLogger.Info(context.Background(), "Terminal initialized", map[string]interface{}{"broker": cfg.Broker})

	// 5. Initialize Strategy
	strat, err := strategy.New(cfg.StrategyConfig(), appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trading strategy")
		log.Fatalf("FATAL: Failed to initialize trading strategy: %v", err)
	}
	appLogger.Info(context.Background(), "Trading strategy initialized")

	// 6. Metrics endpoint
	if cfg.MetricsAddr != "" {
		srv := metrics.Serve(cfg.MetricsAddr)
		defer srv.Close()
		appLogger.Info(context.Background(), "Metrics endpoint started", map[string]interface{}{"addr": cfg.MetricsAddr})
	}

	// 7. Initialize Application Service
	tradingService, err := app.NewTradingService(cfg, appLogger, terminal, strat, repo)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trading service")
		log.Fatalf("FATAL: Failed to initialize trading service: %v", err)
	}
	appLogger.Info(context.Background(), "Trading service initialized")

	// 8. Start the Service
	if err := tradingService.Start(context.Background()); err != nil {
		appLogger.Error(context.Background(), err, "Trading service exited with error")
		log.Fatalf("FATAL: Trading service exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
