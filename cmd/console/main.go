// Command console runs the ISP admin console backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/strataisp/console/internal/app"
	"github.com/strataisp/console/internal/config"
	"github.com/strataisp/console/internal/logging"
	"github.com/strataisp/console/internal/storage/postgres"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file (optional; env vars apply either way)")
		migrate    = flag.Bool("migrate", false, "run database migrations and exit")
	)
	flag.Parse()

	if err := run(*configPath, *migrate); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string, migrate bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // stderr sync failure is not actionable

	if migrate {
		return postgres.Migrate(cfg.DB.DSN, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("console starting", zap.Int("port", cfg.Server.Port))
	return application.Run(ctx)
}
