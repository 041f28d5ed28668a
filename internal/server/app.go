// Package server wires the rental core into a runnable process: storage,
// receipts, reminders, the background scheduler and the ops gRPC endpoint.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/vehiclerent/internal/dbx"
	"github.com/dmitrijs2005/vehiclerent/internal/logging"
	"github.com/dmitrijs2005/vehiclerent/internal/server/config"
	"github.com/dmitrijs2005/vehiclerent/internal/server/jobs"
	"github.com/dmitrijs2005/vehiclerent/internal/server/notify"
	"github.com/dmitrijs2005/vehiclerent/internal/server/payments"
	"github.com/dmitrijs2005/vehiclerent/internal/server/receipts"
	"github.com/dmitrijs2005/vehiclerent/internal/server/rentals"
	"github.com/dmitrijs2005/vehiclerent/internal/server/repositories/memory"
	"github.com/dmitrijs2005/vehiclerent/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vehiclerent/internal/server/scheduler"
	"github.com/dmitrijs2005/vehiclerent/internal/timex"

	gs "github.com/dmitrijs2005/vehiclerent/internal/server/grpc"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	clock     timex.Clock
	rentals   *rentals.Service
	payments  *payments.Service
	scheduler *scheduler.Scheduler
	closers   []func() error
}

// NewApp opens the configured backends and wires the services. Backends left
// unconfigured fall back to in-process implementations.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, parseLevel(c.LogLevel))
	app := &App{config: c, logger: logger, clock: timex.SystemClock{}}

	db, runner, m, err := app.openStorage(ctx)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	store, err := app.openReceipts(ctx)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("receipts init error: %w", err)
	}

	deduper, err := app.openDeduper(ctx)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("redis init error: %w", err)
	}

	gateway := payments.NewGateway(payments.MockPolicy(c.SuccessRate, nil), c.SettlementLatency, c.SettlementTimeout)

	app.rentals = rentals.NewService(db, runner, m, app.clock, logger)
	app.payments = payments.NewService(db, runner, m, gateway, receipts.NewGenerator(store, app.clock), logger)

	app.scheduler = scheduler.New(scheduler.Options{
		QueueSize:    c.JobQueueSize,
		MaxAttempts:  c.JobMaxAttempts,
		DrainTimeout: c.SchedulerDrainTimeout,
	}, app.clock, logger)

	j := jobs.New(db, m, app.rentals, app.openNotifier(), deduper, app.clock, c.ReminderWindow, logger)
	err = j.Register(app.scheduler, jobs.Intervals{
		TokenCleanup: c.TokenCleanupInterval,
		ExpirySweep:  c.ExpirySweepInterval,
		Reminders:    c.ReminderInterval,
	})
	if err != nil {
		app.close()
		return nil, fmt.Errorf("scheduler init error: %w", err)
	}

	return app, nil
}

// Rentals is the rental lifecycle manager.
func (app *App) Rentals() *rentals.Service { return app.rentals }

// Payments is the payment lifecycle manager.
func (app *App) Payments() *payments.Service { return app.payments }

func (app *App) openStorage(ctx context.Context) (dbx.DBTX, dbx.Runner, repomanager.RepositoryManager, error) {
	if app.config.DatabaseDSN == "" {
		app.logger.Warn(ctx, "no database DSN, keeping data in memory")
		store := memory.NewStore(app.clock)
		return nil, store, repomanager.NewMemoryRepositoryManager(store), nil
	}

	db, err := sql.Open("pgx", app.config.DatabaseDSN)
	if err != nil {
		return nil, nil, nil, err
	}
	app.closers = append(app.closers, db.Close)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, nil, nil, err
	}

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		return nil, nil, nil, fmt.Errorf("migrations: %w", err)
	}

	runner := dbx.NewSQLRunner(db, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	return db, runner, m, nil
}

func (app *App) openReceipts(ctx context.Context) (receipts.ObjectStore, error) {
	c := app.config
	if c.S3BaseEndpoint == "" {
		app.logger.Warn(ctx, "no S3 endpoint, keeping receipts in memory")
		return receipts.NewMemoryStore(), nil
	}
	return receipts.NewS3Store(ctx, receipts.S3Config{
		Region:       c.S3Region,
		User:         c.S3RootUser,
		Password:     c.S3RootPassword,
		Bucket:       c.S3Bucket,
		BaseEndpoint: c.S3BaseEndpoint,
		PresignTTL:   c.ReceiptURLTTL,
	})
}

func (app *App) openDeduper(ctx context.Context) (notify.Deduper, error) {
	if app.config.RedisAddr == "" {
		return notify.NewMemoryDeduper(), nil
	}
	rdb := notify.NewRedisClient(app.config.RedisAddr)
	app.closers = append(app.closers, rdb.Close)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return notify.NewRedisDeduper(rdb), nil
}

func (app *App) openNotifier() notify.Notifier {
	if len(app.config.KafkaBrokers) == 0 {
		return notify.NewLogNotifier(app.logger)
	}
	n := notify.NewKafkaNotifier(app.config.KafkaBrokers, app.config.ReminderTopic)
	app.closers = append(app.closers, n.Close)
	return n
}

func (app *App) close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		errs = append(errs, app.closers[i]())
	}
	app.closers = nil
	return errors.Join(errs...)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// drains the scheduler and releases the backends.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)
	app.scheduler.Start(ctx)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	<-ctx.Done()
	app.shutdown()
	wg.Wait()
}

func (app *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), app.config.SchedulerDrainTimeout+time.Second)
	defer cancel()

	if err := app.scheduler.Stop(ctx); err != nil {
		app.logger.Error(ctx, "error stopping scheduler", "error", err)
	}
	if err := app.close(); err != nil {
		app.logger.Error(ctx, "error closing backends", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
