package auction

import (
	"context"

	"github.com/kinkard/auctionhouse/internal/models"
	"github.com/kinkard/auctionhouse/internal/store"
)

// storeAdapter narrows *store.Store to the Store interface this
// package depends on. It exists only because Go interface
// satisfaction is invariant in return types: *store.Store.Begin
// returns *store.Tx, which structurally implements Tx, but can't be
// assigned directly as the Store interface's Begin method.
type storeAdapter struct {
	s *store.Store
}

// NewStore wraps a concrete store for use by Service.
func NewStore(s *store.Store) Store {
	return storeAdapter{s: s}
}

func (a storeAdapter) Begin(ctx context.Context) (Tx, error) {
	return a.s.Begin(ctx)
}

func (a storeAdapter) FundsID() uint64 {
	return a.s.FundsID()
}

func (a storeAdapter) ViewUserItems(ctx context.Context, userID uint64) ([]NamedQuantity, error) {
	rows, err := a.s.ViewUserItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]NamedQuantity, len(rows))
	for i, r := range rows {
		out[i] = NamedQuantity{Name: r.Name, Quantity: r.Quantity}
	}
	return out, nil
}

func (a storeAdapter) ViewSellOrders(ctx context.Context) ([]models.SellOrderView, error) {
	return a.s.ViewSellOrders(ctx)
}

func (a storeAdapter) ProcessExpired(ctx context.Context, now int64) ([]models.ExecutedAuction, error) {
	return a.s.ProcessExpired(ctx, now)
}
