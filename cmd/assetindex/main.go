// Command assetindex runs the AssetIndex worker: projects each
// account's traded markets from its position history.
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
	"github.com/tourmii/gmxperp/internal/assetindex"
	"github.com/tourmii/gmxperp/internal/store"
)

func main() {
	var cli configs.CommonCLI
	kong.Parse(&cli, kong.Description("Projects each account's traded markets from its positions."))

	cfg, err := configs.LoadConfig(cli.Config)
	if err != nil {
		log.Printf("assetindex: failed to load config: %v", err)
		os.Exit(1)
	}
	cli.ApplyAssetIndex(cfg)

	if err := run(cfg); err != nil {
		log.Printf("assetindex: %v", err)
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

	worker := assetindex.New(
		cfg.ToAssetIndexConfig(),
		db.OpeningPositions(),
		db.ClosedPositions(),
		db.Accounts(),
	)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return worker.Run(gctx) })

	if err := group.Wait(); err != nil {
		return fmt.Errorf("assetindex worker exited: %w", err)
	}
	log.Println("assetindex: clean shutdown")
	return nil
}
