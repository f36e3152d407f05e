package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tourmii/gmxperp"
)

// AccountStore holds one aggregate document per address.
type AccountStore struct {
	coll *mongo.Collection
}

func (s *AccountStore) Get(ctx context.Context, address string) (*gmxperp.Account, error) {
	var a gmxperp.Account
	err := s.coll.FindOne(ctx, bson.M{"_id": address}).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account %s: %w", address, err)
	}
	return &a, nil
}

// UpsertFold writes the fields the Analytics fold owns (positionKeys,
// collateralUsd, realizedPnl and the two close counters). The
// valuation fields (openingSizeUsd, unrealizedPnl, PNL, ROI,
// profitableRatio, openingPositionCount) belong to the Valuator and
// are never touched here, keeping the two workers' writes disjoint.
func (s *AccountStore) UpsertFold(ctx context.Context, a gmxperp.Account) error {
	update := bson.M{
		"$set": bson.M{
			"positionKeys":          a.PositionKeys,
			"collateralUsd":         a.CollateralUsd,
			"realizedPnl":           a.RealizedPnl,
			"closedPositionCount":   a.ClosedPositionCount,
			"profitedPositionCount": a.ProfitedPositionCount,
		},
	}
	opts := options.Update().SetUpsert(true)
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": a.Address}, update, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert account %s: %w", a.Address, err)
	}
	return nil
}

// All returns every account, used by the valuator's revaluation pass
// and by the asset index.
func (s *AccountStore) All(ctx context.Context) ([]gmxperp.Account, error) {
	cur, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer cur.Close(ctx)

	var accounts []gmxperp.Account
	if err := cur.All(ctx, &accounts); err != nil {
		return nil, fmt.Errorf("failed to decode accounts: %w", err)
	}
	return accounts, nil
}

// AccountValuation is one account's per-tick valuation update. ROI and
// ProfitableRatio are pointers because either may be withheld: ROI
// when the account is suppressed this tick or has no collateral,
// profitableRatio when no position has closed yet.
type AccountValuation struct {
	Address              string
	OpeningSizeUsd       float64
	OpeningPositionCount int
	UnrealizedPnl        float64
	PNL                  float64
	ProfitableRatio      *float64
	ROI                  *float64
}

// BulkSetValuation applies the Valuator's per-account updates in one
// write per tick. A nil ROI/ProfitableRatio leaves the stored field
// untouched.
func (s *AccountStore) BulkSetValuation(ctx context.Context, updates []AccountValuation) error {
	if len(updates) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(updates))
	for _, u := range updates {
		set := bson.M{
			"openingSizeUsd":       u.OpeningSizeUsd,
			"openingPositionCount": u.OpeningPositionCount,
			"unrealizedPnl":        u.UnrealizedPnl,
			"PNL":                  u.PNL,
		}
		if u.ProfitableRatio != nil {
			set["profitableRatio"] = *u.ProfitableRatio
		}
		if u.ROI != nil {
			set["ROI"] = *u.ROI
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": u.Address}).
			SetUpdate(bson.M{"$set": set}))
	}

	if _, err := s.coll.BulkWrite(ctx, models); err != nil {
		return fmt.Errorf("failed to bulk-update account valuations: %w", err)
	}
	return nil
}

// BulkUpsertTradedAssets applies AssetIndex's per-account tradedAssets
// update in one round trip.
func (s *AccountStore) BulkUpsertTradedAssets(ctx context.Context, byAccount map[string][]string) error {
	if len(byAccount) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(byAccount))
	for addr, assets := range byAccount {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": addr}).
			SetUpdate(bson.M{"$set": bson.M{"tradedAssets": assets}}).
			SetUpsert(true))
	}

	_, err := s.coll.BulkWrite(ctx, models)
	if err != nil {
		return fmt.Errorf("failed to bulk-update traded assets: %w", err)
	}
	return nil
}
