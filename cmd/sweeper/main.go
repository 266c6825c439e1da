// The sweeper is the external janitor for the refresh-token store: the
// store itself never deletes expired rows, it only stops matching them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sablehq/go-session-server/internal/config"
	"github.com/sablehq/go-session-server/postgres"
)

const defaultSweepInterval = time.Hour

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running sweeper")
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("config.Load: %w", err)
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(ctx, postgres.Config{
		DSN:          cfg.DB.DSN,
		MaxConns:     2,
		QueryTimeout: cfg.DB.QueryTimeout,
	})
	if err != nil {
		return fmt.Errorf("postgres.New: %w", err)
	}
	defer db.Close()

	interval := defaultSweepInterval
	if raw := os.Getenv("SWEEP_INTERVAL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("SWEEP_INTERVAL: %w", err)
		}
		interval = parsed
	}

	tokens := postgres.NewRefreshTokenRepo(db)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("Sweeper started")
	sweep(ctx, tokens)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Sweeper stopped")
			return nil
		case <-ticker.C:
			sweep(ctx, tokens)
		}
	}
}

func sweep(ctx context.Context, tokens *postgres.RefreshTokenRepo) {
	deleted, err := tokens.DeleteExpired(ctx, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("sweep failed")
		return
	}
	log.Info().Int64("deleted", deleted).Msg("swept expired refresh tokens")
}
