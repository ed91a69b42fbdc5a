package subcommands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spartanq/spartanq"
	"github.com/spartanq/spartanq/config"
	"github.com/spartanq/spartanq/persistence"
	sqlstore "github.com/spartanq/spartanq/sql"
	"github.com/spf13/cobra"
)

const stopTimeout = 30 * time.Second

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

// buildDriver selects the persistence driver cfg implies. SQL mode is
// handled here rather than in spartanq.NewDriver because opening it
// needs a context and returns a closer the caller must track.
func buildDriver(ctx context.Context, cfg *config.Config) (persistence.Driver, func() error, error) {
	if cfg.Persistence != nil && cfg.Persistence.Mode == config.PersistenceSQL {
		store, err := sqlstore.Open(ctx, cfg.Persistence.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open sql store: %w", err)
		}
		return store, store.Close, nil
	}
	driver, err := spartanq.NewDriver(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("build persistence driver: %w", err)
	}
	return driver, func() error { return nil }, nil
}

func runBroker(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	driver, closeDriver, err := buildDriver(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDriver()

	broker := spartanq.NewBroker(cfg, driver, log)
	if err := broker.Manager.LoadFromFS(); err != nil {
		return fmt.Errorf("load queues: %w", err)
	}

	if err := broker.Start(ctx); err != nil {
		return fmt.Errorf("start broker: %w", err)
	}
	log.Info("broker started", "queues", len(cfg.Queues))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	if err := broker.Stop(stopTimeout); err != nil {
		return fmt.Errorf("stop broker: %w", err)
	}
	return nil
}

// CmdStart returns the "start" subcommand: loads the configuration file
// and runs the broker until SIGINT/SIGTERM, then performs a graceful
// shutdown with a final snapshot.
func CmdStart() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the spartanq broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return runBroker(cmd.Context(), cfg, slog.Default())
		},
	}
}
