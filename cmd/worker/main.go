package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"alfie/internal/dispatch"
	"alfie/internal/infra"
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
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	store := queue.NewStore(runner)
	ledger := quota.NewLedger(runner, logger, cfg.QuotaHardStopMultiplier, cfg.QuotaAlertFraction)

	fileStore, err := storage.NewFileStore(resolveStoragePath(cfg.StoragePath))
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	registry, err := renderer.NewRegistry(ctx, cfg, runner, fileStore, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure renderer")
	}

	dispatcher := dispatch.New(store, ledger, registry, logger, cfg.DispatchBatchSize)
	reclaimer := queue.NewReclaimer(store, logger, cfg.ReclaimInterval)
	listener := monitor.NewListener(cfg.DatabaseURL, logger)
	wake, unsubscribe := listener.Subscribe()
	defer unsubscribe()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return reclaimer.Run(ctx) })
	g.Go(func() error { return listener.Run(ctx) })
	g.Go(func() error { return dispatchLoop(ctx, dispatcher, wake, cfg.DispatchPollInterval, logger) })
	g.Go(func() error { return reconcileLoop(ctx, ledger, cfg.QuotaReconcileInterval, logger) })

	logger.Info().
		Int("batch_size", cfg.DispatchBatchSize).
		Dur("poll_interval", cfg.DispatchPollInterval).
		Msg("worker: started")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

// dispatchLoop ticks on the poll interval and additionally wakes early when a
// job event notification lands, so fresh work does not wait out the interval.
func dispatchLoop(ctx context.Context, d *dispatch.Dispatcher, wake <-chan monitor.Notification, interval time.Duration, logger infra.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-wake:
			// drain bursts so one notification storm means one extra tick
			for {
				select {
				case <-wake:
					continue
				default:
				}
				break
			}
		}
		if _, err := d.Tick(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			logger.Error().Err(err).Msg("worker: dispatch tick failed")
		}
	}
}

// reconcileLoop periodically settles quota debits the dispatcher dropped,
// so a flaky ledger write never leaves a completed job unbilled.
func reconcileLoop(ctx context.Context, ledger *quota.Ledger, interval time.Duration, logger infra.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		settled, err := ledger.Reconcile(ctx, 100)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			logger.Error().Err(err).Msg("worker: quota reconcile failed")
			continue
		}
		if settled > 0 {
			logger.Info().Int("settled", settled).Msg("worker: settled missed quota debits")
		}
	}
}

func resolveStoragePath(path string) string {
	if path == "" {
		path = "./storage"
	}
	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	return path
}
