package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kinkard/auctionhouse/internal/auctionerr"
	"github.com/kinkard/auctionhouse/internal/models"
)

// ProcessExpired implements spec.md §4.3's process_expired algorithm as
// a single atomic primitive: it collects every order whose expiration
// has passed, aggregates the resulting inventory and funds movements
// by (recipient, item) so each pair posts exactly one update, deletes
// the expired rows, and returns the won auctions for notification.
//
// This is the one primitive that manages its own transaction — the
// batched aggregation in step 4 needs every expired row visible before
// any write happens, which a caller composing smaller primitives one
// order at a time cannot express atomically.
func (s *Store) ProcessExpired(ctx context.Context, now int64) ([]models.ExecutedAuction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, auctionerr.New(auctionerr.Conflict, fmt.Sprintf("failed to start expiry transaction: %v", err))
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, seller_id, item_id, quantity, price, buyer_id
		FROM sell_orders WHERE unix_expiration_time <= ?;`, now)
	if err != nil {
		return nil, auctionerr.New(auctionerr.StorageIO, fmt.Sprintf("failed to list expired orders: %v", err))
	}

	type expiredOrder struct {
		id, sellerID, itemID, quantity, price uint64
		buyerID                               *uint64
	}
	var expired []expiredOrder
	for rows.Next() {
		var o expiredOrder
		var buyerID sql.NullInt64
		if err := rows.Scan(&o.id, &o.sellerID, &o.itemID, &o.quantity, &o.price, &buyerID); err != nil {
			rows.Close()
			return nil, auctionerr.New(auctionerr.StorageIO, fmt.Sprintf("failed to scan expired order: %v", err))
		}
		if buyerID.Valid {
			v := uint64(buyerID.Int64)
			o.buyerID = &v
		}
		expired = append(expired, o)
	}
	closeErr := rows.Err()
	rows.Close()
	if closeErr != nil {
		return nil, auctionerr.New(auctionerr.StorageIO, fmt.Sprintf("failed to list expired orders: %v", closeErr))
	}
	if len(expired) == 0 {
		if err := tx.Commit(); err != nil {
			return nil, auctionerr.New(auctionerr.StorageIO, fmt.Sprintf("failed to commit expiry transaction: %v", err))
		}
		return nil, nil
	}

	type itemKey struct {
		userID, itemID uint64
	}
	itemDelta := make(map[itemKey]uint64)
	fundsDelta := make(map[uint64]uint64)
	var won []models.ExecutedAuction

	for _, o := range expired {
		wonAuction := o.buyerID != nil && *o.buyerID != o.sellerID
		recipient := o.sellerID
		if wonAuction {
			recipient = *o.buyerID
			won = append(won, models.ExecutedAuction{
				ID: o.id, SellerID: o.sellerID, BuyerID: *o.buyerID,
				ItemID: o.itemID, Quantity: o.quantity, Price: o.price,
			})
			fundsDelta[o.sellerID] += o.price
		}
		itemDelta[itemKey{recipient, o.itemID}] += o.quantity
	}

	for k, qty := range itemDelta {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_items (user_id, item_id, quantity) VALUES (?, ?, ?)
			ON CONFLICT (user_id, item_id) DO UPDATE SET quantity = quantity + excluded.quantity;`,
			k.userID, k.itemID, qty)
		if err != nil {
			return nil, auctionerr.New(auctionerr.StorageIO, fmt.Sprintf("failed to credit recipient during expiry: %v", err))
		}
	}
	for userID, amount := range fundsDelta {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_items (user_id, item_id, quantity) VALUES (?, ?, ?)
			ON CONFLICT (user_id, item_id) DO UPDATE SET quantity = quantity + excluded.quantity;`,
			userID, s.fundsID, amount)
		if err != nil {
			return nil, auctionerr.New(auctionerr.StorageIO, fmt.Sprintf("failed to credit seller funds during expiry: %v", err))
		}
	}

	for _, o := range expired {
		if _, err := tx.ExecContext(ctx, "DELETE FROM sell_orders WHERE id = ?;", o.id); err != nil {
			return nil, auctionerr.New(auctionerr.StorageIO, fmt.Sprintf("failed to delete expired order %d: %v", o.id, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, auctionerr.New(auctionerr.StorageIO, fmt.Sprintf("failed to commit expiry transaction: %v", err))
	}
	return won, nil
}
