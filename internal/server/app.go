// Package server wires the debtorkeeper core together: configuration, the
// PostgreSQL pool and migrations, the sealed debtor vault, the search cache
// and the scheduled refresh job.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/debtorkeeper/internal/common"
	"github.com/dmitrijs2005/debtorkeeper/internal/cryptox"
	"github.com/dmitrijs2005/debtorkeeper/internal/logging"
	"github.com/dmitrijs2005/debtorkeeper/internal/requestctx"
	"github.com/dmitrijs2005/debtorkeeper/internal/server/cacherefresh"
	"github.com/dmitrijs2005/debtorkeeper/internal/server/config"
	"github.com/dmitrijs2005/debtorkeeper/internal/server/filters"
	"github.com/dmitrijs2005/debtorkeeper/internal/server/ops"
	"github.com/dmitrijs2005/debtorkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/debtorkeeper/internal/server/services"
	"github.com/dmitrijs2005/debtorkeeper/internal/server/vault"
)

type App struct {
	config        *config.Config
	logger        logging.Logger
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	debtorService *services.DebtorService
	searchService *services.SearchService
}

// openDB is a seam for tests.
var openDB = repomanager.OpenPostgres

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	key, err := cryptox.LoadKey(c.EncryptionKey, c.EncryptionPassphrase, c.EncryptionSalt)
	if err != nil {
		return nil, fmt.Errorf("key init error: %w", err)
	}
	codec, err := cryptox.NewCodec(key)
	common.WipeByteArray(key)
	if err != nil {
		return nil, fmt.Errorf("key init error: %w", err)
	}

	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	return newApp(c, logger, db, rm, codec), nil
}

func newApp(c *config.Config, logger logging.Logger, db *sql.DB, rm repomanager.RepositoryManager, codec vault.FieldCodec) *App {
	cache := cacherefresh.NewManager(cacherefresh.Options{
		Capacity:           c.CacheCapacity,
		NumShards:          10,
		TTL:                c.CacheTTL,
		EvictionPercentage: 10,
	}, logger)

	v := vault.NewEncryptedRepository(db, rm, codec, logger)

	return &App{
		config:        c,
		logger:        logger,
		db:            db,
		repomanager:   rm,
		debtorService: services.NewDebtorService(v, cache, logger),
		searchService: services.NewSearchService(v, cache, filters.Validator{MaxWindowDays: c.MaxWindowDays}, logger),
	}
}

func (app *App) Debtors() *services.DebtorService { return app.debtorService }
func (app *App) Search() *services.SearchService  { return app.searchService }

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// scheduledWindow is the window the refresh job warms, ending today.
func (app *App) scheduledWindow(now time.Time) (time.Time, time.Time) {
	days := app.config.DefaultWindowDays
	if days <= 0 {
		days = cacherefresh.DefaultWindowDays
	}
	_, end := cacherefresh.DefaultWindow(now)
	return end.AddDate(0, 0, -days), end
}

func (app *App) refreshOnce(ctx context.Context) {
	ctx = requestctx.EnsureRequestID(ctx)
	start, end := app.scheduledWindow(requestctx.Now(ctx))

	_, err := app.searchService.TriggerRefresh(ctx, cacherefresh.KindScheduled, &start, &end)
	switch {
	case err == nil:
	case errors.Is(err, cacherefresh.ErrRefreshInFlight), errors.Is(err, cacherefresh.ErrSuperseded):
		app.logger.Info(ctx, "scheduled refresh skipped", "reason", err.Error())
	default:
		app.logger.Error(ctx, "scheduled refresh failed", "error", err)
	}
}

func (app *App) runRefreshScheduler(ctx context.Context) error {
	interval := app.config.RefreshInterval
	if interval <= 0 {
		app.logger.Info(ctx, "scheduled refresh disabled")
		<-ctx.Done()
		return nil
	}

	app.refreshOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			app.refreshOnce(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

// Run starts the refresh scheduler and, when configured, the ops endpoint.
// It blocks until ctx is cancelled or a signal arrives, then closes the pool.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.runRefreshScheduler(ctx)
	})
	if app.config.MetricsAddr != "" {
		var db ops.Pinger
		if app.db != nil {
			db = app.db
		}
		srv := ops.NewServer(app.config.MetricsAddr, ops.NewRouter(db, app.searchService, app.logger), app.logger)
		g.Go(func() error {
			return srv.Run(ctx)
		})
	}

	err := g.Wait()
	app.logger.Info(context.Background(), "Stopping app...")
	if app.db != nil {
		if cerr := app.db.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
