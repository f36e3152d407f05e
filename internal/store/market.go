package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tourmii/gmxperp"
)

// MarketStore is read-only to the indexing pipeline; markets are
// seeded externally.
type MarketStore struct {
	coll *mongo.Collection
}

// Get fetches a market by address.
func (s *MarketStore) Get(ctx context.Context, address string) (*gmxperp.Market, error) {
	var m gmxperp.Market
	err := s.coll.FindOne(ctx, bson.M{"_id": address}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch market %s: %w", address, err)
	}
	return &m, nil
}

// FindByName looks up a market whose name matches exactly, used by the
// valuator to resolve a ticker symbol (with synthetic prefix variants)
// to a market's decimals.
func (s *MarketStore) FindByName(ctx context.Context, name string) (*gmxperp.Market, error) {
	var m gmxperp.Market
	err := s.coll.FindOne(ctx, bson.M{"name": name}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find market by name %s: %w", name, err)
	}
	return &m, nil
}
