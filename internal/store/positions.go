package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tourmii/gmxperp"
)

// OpeningPositionStore holds one document per currently-open position,
// keyed by positionKey.
type OpeningPositionStore struct {
	coll *mongo.Collection
}

func (s *OpeningPositionStore) Get(ctx context.Context, positionKey string) (*gmxperp.OpeningPosition, error) {
	var p gmxperp.OpeningPosition
	err := s.coll.FindOne(ctx, bson.M{"_id": positionKey}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch opening position %s: %w", positionKey, err)
	}
	return &p, nil
}

// UpsertFold writes the fields the Analytics fold owns (logs,
// entryPrice, sizeUsd), seeding identity fields only on first insert.
// The valuation fields (unrealizedPnl, firstOpenedAt) belong to the
// Valuator and are never touched here.
func (s *OpeningPositionStore) UpsertFold(ctx context.Context, p gmxperp.OpeningPosition) error {
	update := bson.M{
		"$set": bson.M{
			"logs":       p.Logs,
			"entryPrice": p.EntryPrice,
			"sizeUsd":    p.SizeUsd,
		},
		"$setOnInsert": bson.M{
			"ownerAccount": p.OwnerAccount,
			"asset":        p.Asset,
			"side":         p.Side,
		},
	}
	opts := options.Update().SetUpsert(true)
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": p.PositionKey}, update, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert opening position %s: %w", p.PositionKey, err)
	}
	return nil
}

// Delete removes the document once a position's sizeUsd reaches zero;
// its history has already been merged into ClosedPosition by the
// caller.
func (s *OpeningPositionStore) Delete(ctx context.Context, positionKey string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": positionKey})
	if err != nil {
		return fmt.Errorf("failed to delete opening position %s: %w", positionKey, err)
	}
	return nil
}

// All returns every open position, used by the valuator's revaluation
// pass and by the asset index.
func (s *OpeningPositionStore) All(ctx context.Context) ([]gmxperp.OpeningPosition, error) {
	cur, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list opening positions: %w", err)
	}
	defer cur.Close(ctx)

	var positions []gmxperp.OpeningPosition
	if err := cur.All(ctx, &positions); err != nil {
		return nil, fmt.Errorf("failed to decode opening positions: %w", err)
	}
	return positions, nil
}

// OpeningValuation is one position's per-tick valuation update.
type OpeningValuation struct {
	PositionKey   string
	FirstOpenedAt int64
	UnrealizedPnl float64
}

// BulkSetValuation applies the Valuator's per-position updates in one
// write per tick. Only the valuation fields are touched, so the
// Analytics fold's concurrent writes to the same documents stay
// disjoint.
func (s *OpeningPositionStore) BulkSetValuation(ctx context.Context, updates []OpeningValuation) error {
	if len(updates) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(updates))
	for _, u := range updates {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": u.PositionKey}).
			SetUpdate(bson.M{"$set": bson.M{
				"firstOpenedAt": u.FirstOpenedAt,
				"unrealizedPnl": u.UnrealizedPnl,
			}}))
	}

	if _, err := s.coll.BulkWrite(ctx, models); err != nil {
		return fmt.Errorf("failed to bulk-update opening position valuations: %w", err)
	}
	return nil
}

// ClosedPositionStore holds one document per positionKey that has ever
// been (partially or fully) closed. Accumulates across repeated
// opens/closes of the same key.
type ClosedPositionStore struct {
	coll *mongo.Collection
}

func (s *ClosedPositionStore) Get(ctx context.Context, positionKey string) (*gmxperp.ClosedPosition, error) {
	var p gmxperp.ClosedPosition
	err := s.coll.FindOne(ctx, bson.M{"_id": positionKey}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch closed position %s: %w", positionKey, err)
	}
	return &p, nil
}

// UpsertFold writes the fields the Analytics fold owns (realizedPnl,
// logs), seeding identity fields only on first insert. lastClosedAt
// belongs to the Valuator and is never touched here.
func (s *ClosedPositionStore) UpsertFold(ctx context.Context, p gmxperp.ClosedPosition) error {
	update := bson.M{
		"$set": bson.M{
			"realizedPnl": p.RealizedPnl,
			"logs":        p.Logs,
		},
		"$setOnInsert": bson.M{
			"ownerAccount": p.OwnerAccount,
			"asset":        p.Asset,
			"side":         p.Side,
		},
	}
	opts := options.Update().SetUpsert(true)
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": p.PositionKey}, update, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert closed position %s: %w", p.PositionKey, err)
	}
	return nil
}

// All returns every closed position, used by the valuator's
// lastClosedAt pass and by the asset index.
func (s *ClosedPositionStore) All(ctx context.Context) ([]gmxperp.ClosedPosition, error) {
	cur, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list closed positions: %w", err)
	}
	defer cur.Close(ctx)

	var positions []gmxperp.ClosedPosition
	if err := cur.All(ctx, &positions); err != nil {
		return nil, fmt.Errorf("failed to decode closed positions: %w", err)
	}
	return positions, nil
}

// BulkSetLastClosedAt applies the Valuator's per-position lastClosedAt
// updates in one write per tick.
func (s *ClosedPositionStore) BulkSetLastClosedAt(ctx context.Context, byKey map[string]int64) error {
	if len(byKey) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(byKey))
	for key, ts := range byKey {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": key}).
			SetUpdate(bson.M{"$set": bson.M{"lastClosedAt": ts}}))
	}

	if _, err := s.coll.BulkWrite(ctx, models); err != nil {
		return fmt.Errorf("failed to bulk-update lastClosedAt: %w", err)
	}
	return nil
}
