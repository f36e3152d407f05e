// Package store wraps the MongoDB collections every worker shares:
// one thin repository per collection, each exposing only the
// operations its worker performs. Every write is an idempotent
// upsert keyed on _id or a homogeneous bulk write; there are no
// cross-document transactions.
package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store owns the mongo.Client and hands out one repository per
// collection family. Nothing here does schema migration; the
// collections are created implicitly on first write, matching the
// original system's pymongo usage.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials the given URI and selects dbName, verifying
// reachability with a bounded ping before returning.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo at %s: %w", uri, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongo at %s: %w", uri, err)
	}

	return &Store{client: client, db: client.Database(dbName)}, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect mongo client: %w", err)
	}
	return nil
}

// Collection names, kept in one place so every repository and test
// agrees on them.
const (
	collEvents           = "gmx_events"
	collMarkets          = "gmx_market"
	collTokenInfo        = "token_info"
	collAccounts         = "gmx_accounts"
	collOpeningPositions = "gmx_opening_positions"
	collClosedPositions  = "gmx_closed_positions"
	collCursors          = "configs"
)

func (s *Store) Events() *EventStore { return &EventStore{coll: s.db.Collection(collEvents)} }

func (s *Store) Markets() *MarketStore { return &MarketStore{coll: s.db.Collection(collMarkets)} }

func (s *Store) TokenInfo() *TokenInfoStore {
	return &TokenInfoStore{coll: s.db.Collection(collTokenInfo)}
}

func (s *Store) Accounts() *AccountStore { return &AccountStore{coll: s.db.Collection(collAccounts)} }

func (s *Store) OpeningPositions() *OpeningPositionStore {
	return &OpeningPositionStore{coll: s.db.Collection(collOpeningPositions)}
}

func (s *Store) ClosedPositions() *ClosedPositionStore {
	return &ClosedPositionStore{coll: s.db.Collection(collClosedPositions)}
}

func (s *Store) Cursors() *CursorStore { return &CursorStore{coll: s.db.Collection(collCursors)} }

// RawEvents exposes the events collection directly for Analytics,
// which needs an ascending-blockNumber range query EventStore doesn't
// offer.
func (s *Store) RawEvents() *mongo.Collection { return s.db.Collection(collEvents) }
