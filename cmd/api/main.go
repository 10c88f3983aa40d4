package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"alfie/internal/dispatch"
	"alfie/internal/http/handlers"
	httpapi "alfie/internal/http/httpapi"
	"alfie/internal/infra"
	"alfie/internal/intent"
	"alfie/internal/monitor"
	"alfie/internal/queue"
	"alfie/internal/quota"
	"alfie/internal/renderer"
	"alfie/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx := context.Background()
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	store := queue.NewStore(runner)

	fileStore, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	registry, err := renderer.NewRegistry(ctx, cfg, runner, fileStore, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure renderer")
	}
	ledger := quota.NewLedger(runner, logger, cfg.QuotaHardStopMultiplier, cfg.QuotaAlertFraction)

	app := &handlers.App{
		Logger:     logger,
		Translator: intent.NewTranslator(),
		Ledger:     ledger,
		Store:      store,
		Monitor:    monitor.New(runner),
		Dispatcher: dispatch.New(store, ledger, registry, logger, cfg.DispatchBatchSize),
		Assets:     fileStore,
	}

	router := httpapi.NewRouter(app, cfg)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
