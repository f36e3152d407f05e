// Command metadatacache runs MetadataCache as a standalone warmer:
// it proactively prefetches token decimals/symbols for every
// collateral token observed in ingested events, so the Indexer's
// inline lookups are cache hits.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/tourmii/gmxperp/configs"
	"github.com/tourmii/gmxperp/internal/metadata"
	"github.com/tourmii/gmxperp/internal/store"
	"github.com/tourmii/gmxperp/pkg/chain"
)

const defaultWarmInterval = 5 * time.Minute

func main() {
	var cli configs.CommonCLI
	kong.Parse(&cli, kong.Description("Proactively warms the token metadata cache."))

	cfg, err := configs.LoadConfig(cli.Config)
	if err != nil {
		log.Printf("metadatacache: failed to load config: %v", err)
		os.Exit(1)
	}
	cli.Apply(cfg)

	interval := defaultWarmInterval
	if cli.Interval > 0 {
		interval = time.Duration(cli.Interval) * time.Second
	}

	if err := run(cfg, interval); err != nil {
		log.Printf("metadatacache: %v", err)
		os.Exit(1)
	}
}

func run(cfg *configs.Config, interval time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.Dial(cfg.RPC)
	if err != nil {
		return fmt.Errorf("failed to dial RPC: %w", err)
	}
	defer chainClient.Close()

	db, err := store.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to mongo: %w", err)
	}
	defer db.Close(context.Background())

	cache := metadata.New(db.TokenInfo(), chainClient)
	warmer := metadata.NewWarmer(cache, db.Events())

	if err := warmer.Run(ctx, interval); err != nil {
		return fmt.Errorf("metadata warmer exited: %w", err)
	}
	log.Println("metadatacache: clean shutdown")
	return nil
}
