package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"PropDashboards/internal/app"
	"PropDashboards/internal/config"
	"PropDashboards/internal/logging"
)

const usage = `usage: propdashboards [serve|generate|schedule] [flags]

  serve                         run the dashboard web UI (default)
  generate -category ID -out DIR [-notify]
                                render every firm of one category to PNG
  schedule                      run the web UI and the weekly generation
`

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(ctx, os.Args[1:], cfg, logger); err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, cfg config.Config, logger *slog.Logger) error {
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve", "schedule", "generate":
	case "help", "-h", "--help":
		fmt.Fprint(os.Stdout, usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	category := fs.String("category", cfg.DefaultCategory(), "category to render")
	out := fs.String("out", cfg.Render.OutputDir, "directory for generated images")
	notify := fs.Bool("notify", false, "deliver the batch to Telegram when configured")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	switch command {
	case "schedule":
		return application.Schedule(ctx)
	case "generate":
		res, err := application.GenerateOnce(ctx, *category, *out, *notify)
		if err != nil {
			return err
		}
		logger.Info("generation finished",
			"category", res.Category,
			"week", res.Week,
			"rendered", res.Rendered,
			"skipped", res.Skipped,
			"failed", res.Failed,
			"out", *out,
		)
		return nil
	default:
		return application.Serve(ctx)
	}
}
