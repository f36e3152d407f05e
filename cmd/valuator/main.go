// Command valuator runs the Valuator worker: marks open positions and
// accounts to market using the configured price ticker.
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
	"github.com/tourmii/gmxperp/internal/priceticker"
	"github.com/tourmii/gmxperp/internal/store"
	"github.com/tourmii/gmxperp/internal/valuator"
)

func main() {
	var cli configs.CommonCLI
	kong.Parse(&cli, kong.Description("Marks open positions and accounts to market."))

	cfg, err := configs.LoadConfig(cli.Config)
	if err != nil {
		log.Printf("valuator: failed to load config: %v", err)
		os.Exit(1)
	}
	cli.ApplyValuator(cfg)

	if err := run(cfg); err != nil {
		log.Printf("valuator: %v", err)
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

	ticker := priceticker.New(cfg.Ticker.BaseURL)
	worker := valuator.New(
		cfg.ToValuatorConfig(),
		ticker,
		db.Markets(),
		db.Accounts(),
		db.OpeningPositions(),
		db.ClosedPositions(),
	)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return worker.Run(gctx) })

	if err := group.Wait(); err != nil {
		return fmt.Errorf("valuator worker exited: %w", err)
	}
	log.Println("valuator: clean shutdown")
	return nil
}
