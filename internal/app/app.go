package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"PropDashboards/internal/config"
	"PropDashboards/internal/domain"
	"PropDashboards/internal/infrastructure/capture"
	"PropDashboards/internal/infrastructure/llm"
	"PropDashboards/internal/infrastructure/parser"
	"PropDashboards/internal/infrastructure/queue"
	"PropDashboards/internal/infrastructure/render"
	"PropDashboards/internal/infrastructure/scheduler"
	"PropDashboards/internal/infrastructure/storage"
	"PropDashboards/internal/infrastructure/telegram"
	"PropDashboards/internal/logging"
	"PropDashboards/internal/ports"
	"PropDashboards/internal/usecase"
	"PropDashboards/internal/web"
)

const captureTimeout = 20 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	source     ports.SnapshotSource
	repository ports.DashboardRepository
	events     ports.EventPublisher
	notifier   ports.Notifier
	captioner  ports.Captioner
	renderer   *render.CardRenderer
	generator  *usecase.Generator
	server     *web.Server
	closers    []func()
}

// New connects the optional backends and builds the web server and generator.
// Postgres, NATS, Telegram and captions are only wired when configured.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	a := &Application{
		cfg:      cfg,
		logger:   baseLogger,
		source:   parser.NewCategorySource(parser.NewDefaultRegistry(), cfg, baseLogger.With("component", "source")),
		renderer: render.NewCardRenderer(cfg.Render.Width, cfg.Render.Height, cfg.Render.Scale),
	}

	if err := a.connectBackends(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.generator = a.newGenerator(cfg.Server.PublicURL, cfg.Render.OutputDir)
	server, err := a.newServer(a.generator)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.server = server
	return a, nil
}

func (a *Application) connectBackends(ctx context.Context) error {
	if dsn := a.cfg.Database.DSN; dsn != "" {
		db, err := storage.Open(ctx, dsn)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { closeDB(db, a.logger) })
		repo := storage.NewPostgresRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}
		a.repository = repo
		a.logger.Info("dashboard history stored in postgres")
	} else {
		a.repository = storage.NewMemoryRepository()
		a.logger.Info("database dsn not set; dashboard history kept in memory")
	}

	if a.cfg.NATS.URL != "" {
		publisher, err := queue.Connect(ctx, a.cfg.NATS)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, publisher.Close)
		a.events = publisher
	}

	if a.cfg.Telegram.Enabled() {
		a.notifier = telegram.NewNotifier(a.cfg.Telegram.BotToken, a.cfg.Telegram.ChatID)
	}

	if client := llm.NewChatGPTClient(a.cfg.Caption); client.Enabled() {
		a.captioner = client
	}
	return nil
}

func (a *Application) newGenerator(baseURL, outputDir string) *usecase.Generator {
	client := &http.Client{Timeout: captureTimeout}
	return usecase.NewGenerator(usecase.GeneratorDeps{
		Source:     a.source,
		Repository: a.repository,
		Capturer:   capture.NewPageCapturer(client, baseURL, capture.Options{}),
		Renderer:   a.renderer,
		Events:     a.events,
		Notifier:   a.notifier,
		Captioner:  a.captioner,
		OutputDir:  outputDir,
		PublicURL:  a.cfg.Server.PublicURL,
		Workers:    a.cfg.Render.Workers,
		Scale:      a.cfg.Render.Scale,
		Logger:     a.logger.With("component", "generator"),
	})
}

func (a *Application) newServer(gen web.Generator) (*web.Server, error) {
	return web.New(web.Deps{
		Source:          a.source,
		Generator:       gen,
		OutputDir:       a.cfg.Render.OutputDir,
		DefaultCategory: a.cfg.DefaultCategory(),
		Width:           a.cfg.Render.Width,
		Height:          a.cfg.Render.Height,
		Logger:          a.logger.With("component", "web"),
	})
}

// Serve runs the web UI until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	return a.server.ListenAndServe(ctx, a.cfg.Server.Addr)
}

// Schedule runs the web UI and the weekly generation for every category.
func (a *Application) Schedule(ctx context.Context) error {
	driver := scheduler.NewWeeklyScheduler(a.cfg.Scheduler.Day(), a.cfg.Scheduler.Hour, a.cfg.Scheduler.Location())
	weekly := usecase.NewScheduler(driver, a.generator, a.logger.With("component", "scheduler"))
	if err := weekly.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("weekly generation scheduled", "next", driver.Next(time.Now()))

	serveErr := a.Serve(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), captureTimeout)
	defer cancel()
	return errors.Join(serveErr, weekly.Stop(stopCtx))
}

// GenerateOnce renders one category against a private in-process server, so
// no running instance is needed. An empty outputDir uses the configured one.
func (a *Application) GenerateOnce(ctx context.Context, category, outputDir string, notify bool) (usecase.Result, error) {
	if outputDir == "" {
		outputDir = a.cfg.Render.OutputDir
	}
	if category == "" {
		category = a.cfg.DefaultCategory()
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return usecase.Result{}, fmt.Errorf("listen for capture: %w", err)
	}

	serveCtx, stop := context.WithCancel(ctx)
	served := make(chan error, 1)
	go func() { served <- a.server.Serve(serveCtx, ln) }()

	gen := a.newGenerator("http://"+ln.Addr().String(), outputDir)
	log := a.logger.With("component", "generate", "category", category)
	res, err := gen.Generate(ctx, usecase.Request{Category: category, Notify: notify}, func(p domain.Progress) {
		switch p.Type {
		case domain.ProgressError:
			log.Warn("dashboard failed", "firm", p.Current, "err", p.Error)
		case domain.ProgressStep:
			log.Info("dashboard ready", "firm", p.Current, "done", p.Completed, "total", p.Total)
		}
	})

	stop()
	if serveErr := <-served; serveErr != nil {
		log.Warn("capture server stopped with error", "err", serveErr)
	}
	return res, err
}

// Close releases the backend connections opened by New.
func (a *Application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func closeDB(db *sql.DB, logger *slog.Logger) {
	if err := db.Close(); err != nil {
		logger.Warn("close database", "err", err)
	}
}
