package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tourmii/gmxperp"
)

// CursorStore holds the named block-height watermarks each worker
// advances independently.
type CursorStore struct {
	coll *mongo.Collection
}

// Get reads a named cursor, returning 0 if it has never been set
// (first run).
func (s *CursorStore) Get(ctx context.Context, name string) (int64, error) {
	var c gmxperp.Cursor
	err := s.coll.FindOne(ctx, bson.M{"_id": name}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to fetch cursor %s: %w", name, err)
	}
	return c.LastUpdatedAtBlock, nil
}

// Require reads a named cursor that must already exist. The ingest
// cursor is a deployment contract: the indexer never invents a
// starting block, so its absence is a fatal startup error.
func (s *CursorStore) Require(ctx context.Context, name string) (int64, error) {
	var c gmxperp.Cursor
	err := s.coll.FindOne(ctx, bson.M{"_id": name}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return 0, fmt.Errorf("cursor %s is not seeded", name)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to fetch cursor %s: %w", name, err)
	}
	return c.LastUpdatedAtBlock, nil
}

// Set advances a named cursor to the given block height.
func (s *CursorStore) Set(ctx context.Context, name string, block int64) error {
	opts := options.Replace().SetUpsert(true)
	doc := gmxperp.Cursor{ID: name, LastUpdatedAtBlock: block}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": name}, doc, opts)
	if err != nil {
		return fmt.Errorf("failed to set cursor %s to %d: %w", name, block, err)
	}
	return nil
}
