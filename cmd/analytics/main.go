// Command analytics runs the Analytics worker: folds normalized
// events into opening/closed positions and account aggregates.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"golang.org/x/sync/errgroup"

	"github.com/tourmii/gmxperp/configs"
	"github.com/tourmii/gmxperp/internal/analytics"
	"github.com/tourmii/gmxperp/internal/store"
)

func main() {
	var cli configs.CommonCLI
	kong.Parse(&cli, kong.Description("Folds normalized events into positions and account aggregates."))

	cfg, err := configs.LoadConfig(cli.Config)
	if err != nil {
		log.Printf("analytics: failed to load config: %v", err)
		os.Exit(1)
	}
	cli.ApplyAnalytics(cfg)

	if err := run(cfg); err != nil {
		log.Printf("analytics: %v", err)
		os.Exit(1)
	}
}

func run(cfg *configs.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to mongo: %w", err)
	}
	defer db.Close(context.Background())

	worker := analytics.New(
		cfg.ToAnalyticsConfig(),
		db.RawEvents(),
		db.Accounts(),
		db.OpeningPositions(),
		db.ClosedPositions(),
		db.Cursors(),
	)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return worker.Run(gctx) })

	if err := group.Wait(); err != nil {
		return fmt.Errorf("analytics worker exited: %w", err)
	}
	log.Println("analytics: clean shutdown")
	return nil
}
