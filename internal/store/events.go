package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tourmii/gmxperp"
)

// EventStore holds one NormalizedEvent document per transaction hash.
type EventStore struct {
	coll *mongo.Collection
}

// Upsert replaces the document keyed by TransactionHash, creating it
// if absent. Re-ingesting the same hash is therefore idempotent.
func (s *EventStore) Upsert(ctx context.Context, e gmxperp.NormalizedEvent) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": e.TransactionHash}, e, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert event %s: %w", e.TransactionHash, err)
	}
	return nil
}

// Get fetches a single event by transaction hash.
func (s *EventStore) Get(ctx context.Context, txHash string) (*gmxperp.NormalizedEvent, error) {
	var e gmxperp.NormalizedEvent
	err := s.coll.FindOne(ctx, bson.M{"_id": txHash}).Decode(&e)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch event %s: %w", txHash, err)
	}
	return &e, nil
}

// DistinctCollateralTokens returns every distinct collateralToken
// address ever ingested, used by MetadataCache's warming pass to
// prefetch tokens before the Indexer needs them inline.
func (s *EventStore) DistinctCollateralTokens(ctx context.Context) ([]string, error) {
	raw, err := s.coll.Distinct(ctx, "collateralToken", bson.M{"collateralToken": bson.M{"$ne": ""}})
	if err != nil {
		return nil, fmt.Errorf("failed to list distinct collateral tokens: %w", err)
	}
	tokens := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			tokens = append(tokens, s)
		}
	}
	return tokens, nil
}
