package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tourmii/gmxperp"
)

// TokenInfoStore is MetadataCache's persistent backing: one document
// per lowercased token address, immutable once learned.
type TokenInfoStore struct {
	coll *mongo.Collection
}

// Get fetches a token's cached decimals/symbol, if known.
func (s *TokenInfoStore) Get(ctx context.Context, address string) (*gmxperp.TokenInfo, error) {
	var t gmxperp.TokenInfo
	err := s.coll.FindOne(ctx, bson.M{"_id": address}).Decode(&t)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token info %s: %w", address, err)
	}
	return &t, nil
}

// Upsert persists a freshly-learned token's decimals/symbol. Safe
// under concurrent first-time fetches for the same address: the last
// writer wins and the document never corrupts, since every field is
// written atomically in one ReplaceOne.
func (s *TokenInfoStore) Upsert(ctx context.Context, t gmxperp.TokenInfo) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": t.Address}, t, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert token info %s: %w", t.Address, err)
	}
	return nil
}
