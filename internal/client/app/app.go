// Package app wires the uploader binary: configuration, logging, the local
// database, the target reserver, the HTTP transport and the upload service.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/client/client"
	"github.com/dmitrijs2005/gophdrive/internal/client/config"
	"github.com/dmitrijs2005/gophdrive/internal/client/repositories/revisions"
	"github.com/dmitrijs2005/gophdrive/internal/client/services"
	"github.com/dmitrijs2005/gophdrive/internal/client/uploader"
	"github.com/dmitrijs2005/gophdrive/internal/executor"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/netx"
	"github.com/felixge/httpsnoop"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	reserver uploader.TargetReserver
	exec     *executor.Executor
	progress *uploader.ProgressCounter
	service  services.UploadService
	schedule cron.Schedule
}

// NewApp opens the local database and builds the upload pipeline described
// by c. Logs go to w.
func NewApp(ctx context.Context, c *config.Config, w io.Writer) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var schedule cron.Schedule
	if c.Schedule != "" {
		var err error
		if schedule, err = config.ParseSchedule(c.Schedule); err != nil {
			return nil, fmt.Errorf("invalid schedule: %w", err)
		}
	}

	logger := logging.NewTintLogger(w, c.LogLevel, !colorOutput(w))

	db, err := client.InitDatabase(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	reserver, err := newReserver(c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("reserver init error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db, reserver: reserver, schedule: schedule}

	store := revisions.NewStore(db)
	app.exec = executor.New(c.Concurrency, logger)
	app.progress = uploader.NewProgressCounter(func(done int64) {
		logger.Debug(ctx, "upload progress", "units", done)
	})

	deps := uploader.PageDeps{
		Executor:  app.exec,
		Store:     store,
		Transport: netx.NewHTTPTransport(nil, c.RequestTimeout, c.TransportAttempts, logger),
		Reserver:  reserver,
		Progress:  app.progress,
		Log:       logger,
	}
	opts := uploader.Options{PageSize: c.PageSize, MaxAttempts: c.MaxAttempts}

	app.service = services.NewUploadService(services.NewStoreVerifier(store), deps, opts, c.RevisionConcurrency)

	return app, nil
}

// colorOutput reports whether w is a terminal.
func colorOutput(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func newReserver(c *config.Config) (uploader.TargetReserver, error) {
	switch c.TargetMode {
	case config.TargetModeS3:
		return client.NewS3TargetReserver(client.S3Config{
			Region:       c.S3Region,
			Bucket:       c.S3Bucket,
			BaseEndpoint: c.S3BaseEndpoint,
			RootUser:     c.S3RootUser,
			RootPassword: c.S3RootPassword,
			Expiry:       c.PresignExpiry,
		}), nil
	case config.TargetModeGRPC:
		return client.NewGRPCTargetReserver(c.ServerEndpointAddr,
			client.Tokens{AccessToken: c.AccessToken, RefreshToken: c.RefreshToken},
			c.RequestTimeout)
	default:
		return nil, fmt.Errorf("unknown target mode %q", c.TargetMode)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// startMetricsServer serves /metrics until ctx is cancelled. It returns a
// function waiting for the server to stop.
func (app *App) startMetricsServer(ctx context.Context) func() {
	if app.config.MetricsAddr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	metricsHandler := promhttp.Handler()
	mux.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(metricsHandler, w, r)
		app.logger.Debug(r.Context(), "metrics scraped", "status", m.Code, "bytes", m.Written, "duration", m.Duration)
	}))
	srv := &http.Server{Addr: app.config.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	done := make(chan struct{})
	go func() {
		defer close(done)
		app.logger.Info(ctx, "serving metrics", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error(ctx, "metrics server failed", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return func() { <-done }
}

// Run uploads every pending revision. Without a schedule it makes a single
// pass and returns the joined failures; with one it repeats the pass on every
// tick until ctx is cancelled or a signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting uploader...", "mode", app.config.TargetMode, "concurrency", app.exec.Limit())

	app.initSignalHandler(cancelFunc)
	metricsCtx, stopMetrics := context.WithCancel(ctx)
	waitMetrics := app.startMetricsServer(metricsCtx)
	defer func() {
		stopMetrics()
		waitMetrics()
	}()

	if app.schedule == nil {
		return app.runPass(ctx)
	}

	for {
		next := app.schedule.Next(time.Now())
		app.logger.Info(ctx, "next upload pass scheduled", "at", next)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			app.exec.Wait()
			return nil
		case <-timer.C:
		}

		if err := app.runPass(ctx); err != nil {
			app.logger.Warn(ctx, "upload pass finished with errors", "err", err)
		}
	}
}

func (app *App) runPass(ctx context.Context) error {
	results, err := app.service.UploadPending(ctx)

	var failures []error
	for _, r := range results {
		if r.Err != nil {
			app.logger.Error(ctx, "revision failed", "revision", r.RevisionID, "err", r.Err)
			failures = append(failures, r.Err)
			continue
		}
		app.logger.Info(ctx, "revision uploaded", "revision", r.RevisionID)
	}
	app.logger.Info(ctx, "upload finished", "revisions", len(results), "failed", len(failures), "units", app.progress.Done())

	app.exec.Wait()

	if err != nil && len(failures) == 0 {
		failures = append(failures, err)
	}
	return errors.Join(failures...)
}

// Close releases the reserver connection and the database.
func (app *App) Close() error {
	var errs []error
	if c, ok := app.reserver.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, app.db.Close())
	return errors.Join(errs...)
}
