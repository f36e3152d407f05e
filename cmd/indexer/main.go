// Command indexer runs the Indexer worker: tails the emitter
// contract, decodes and normalizes PositionIncrease/PositionDecrease
// logs, and upserts them keyed by transaction hash.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/tourmii/gmxperp"
	"github.com/tourmii/gmxperp/configs"
	"github.com/tourmii/gmxperp/internal/abidecode"
	"github.com/tourmii/gmxperp/internal/indexer"
	"github.com/tourmii/gmxperp/internal/metadata"
	"github.com/tourmii/gmxperp/internal/store"
	"github.com/tourmii/gmxperp/pkg/chain"
)

func main() {
	var cli configs.IndexerCLI
	kong.Parse(&cli, kong.Description("Tails the emitter contract and persists normalized position events."))

	cfg, err := configs.LoadConfig(cli.Config)
	if err != nil {
		log.Printf("indexer: failed to load config: %v", err)
		os.Exit(1)
	}
	cli.ApplyIndexer(cfg)

	if err := run(cfg); err != nil {
		log.Printf("indexer: %v", err)
		os.Exit(1)
	}
}

func run(cfg *configs.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.Dial(cfg.RPC)
	if err != nil {
		return fmt.Errorf("failed to dial RPC: %w", err)
	}
	defer chainClient.Close()

	emitterABI, err := abidecode.LoadEmitterABI(cfg.Emitter.ABI)
	if err != nil {
		return fmt.Errorf("failed to load emitter ABI: %w", err)
	}

	db, err := store.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to mongo: %w", err)
	}
	defer db.Close(context.Background())

	// The ingest cursor is seeded at deployment; refusing to start
	// without it keeps the indexer from inventing a starting block.
	seeded, err := db.Cursors().Require(ctx, gmxperp.CursorLastIngestedBlock)
	if err != nil {
		return fmt.Errorf("ingest cursor check failed: %w", err)
	}
	log.Printf("indexer: starting from block %d", seeded)

	metadataCache := metadata.New(db.TokenInfo(), chainClient)
	worker := indexer.New(
		cfg.ToIndexerConfig(),
		chainClient,
		emitterABI,
		common.HexToAddress(cfg.Emitter.Address),
		metadataCache,
		db.Markets(),
		db.Events(),
		db.Cursors(),
	)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return worker.Run(gctx) })

	if err := group.Wait(); err != nil {
		return fmt.Errorf("indexer worker exited: %w", err)
	}
	log.Println("indexer: clean shutdown")
	return nil
}
