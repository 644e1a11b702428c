// Package auction implements the transactional auction engine
// (spec.md §4.3): deposit, withdraw, place_sell_order, execute_immediate,
// place_bid, and the batched expiry routine. Every operation composes
// Store primitives inside one scoped transaction and enforces business
// invariants that C1 itself does not know about (fees, escrow, self-
// trade prevention).
package auction

import (
	"context"
	"fmt"

	"github.com/kinkard/auctionhouse/internal/auctionerr"
	"github.com/kinkard/auctionhouse/internal/models"
)

// Tx is the scoped transaction handle the service drives its
// primitives through. Rollback must be safe to call unconditionally
// after a failed or successful Commit.
type Tx interface {
	GetUserID(ctx context.Context, name string) (uint64, error)
	CreateUser(ctx context.Context, name string) (uint64, error)
	GetItemID(ctx context.Context, name string) (uint64, error)
	CreateItem(ctx context.Context, name string) (uint64, error)
	GetOrCreateItemID(ctx context.Context, name string) (uint64, error)
	GetUserItemQty(ctx context.Context, userID, itemID uint64) (uint64, error)
	AddUserItem(ctx context.Context, userID, itemID, qty uint64) error
	SubUserItem(ctx context.Context, userID, itemID, qty uint64) error
	CreateSellOrder(ctx context.Context, o models.SellOrder) (uint64, error)
	GetSellOrder(ctx context.Context, id uint64) (models.SellOrder, error)
	UpdateSellOrderBuyer(ctx context.Context, id uint64, buyerID, price uint64) error
	DeleteSellOrder(ctx context.Context, id uint64) error
	Commit() error
	Rollback()
}

// Store is the persistence layer the auction service is built on.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	FundsID() uint64
	ViewUserItems(ctx context.Context, userID uint64) ([]NamedQuantity, error)
	ViewSellOrders(ctx context.Context) ([]models.SellOrderView, error)
	ProcessExpired(ctx context.Context, now int64) ([]models.ExecutedAuction, error)
}

// NamedQuantity mirrors store.NamedQuantity without importing the
// store package's concrete type into this service's public surface.
type NamedQuantity struct {
	Name     string
	Quantity uint64
}

// FundsItemName is rejected as a sellable item name — "funds" may
// never itself be sold (spec.md §4.3).
const FundsItemName = "funds"

// Service implements the high-level transactional operations of
// spec.md §4.3 against a Store.
type Service struct {
	store Store
}

// New wraps a store handle in an auction service.
func New(store Store) *Service {
	return &Service{store: store}
}

// Movement is the audit record returned by Deposit/Withdraw/PlaceSellOrder's
// fee charge, naming the item and quantity moved.
type Movement struct {
	ItemID uint64
	Qty    uint64
}

// Deposit credits qty of item_name to user's inventory, creating the
// item if this is the first time it's referenced.
func (s *Service) Deposit(ctx context.Context, userID uint64, itemName string, qty uint64) (Movement, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return Movement{}, err
	}
	defer tx.Rollback()

	itemID, err := tx.GetOrCreateItemID(ctx, itemName)
	if err != nil {
		return Movement{}, err
	}
	if err := tx.AddUserItem(ctx, userID, itemID, qty); err != nil {
		return Movement{}, err
	}
	if err := tx.Commit(); err != nil {
		return Movement{}, err
	}
	return Movement{ItemID: itemID, Qty: qty}, nil
}

// Withdraw debits qty of item_name from user's inventory. Fails with
// NotFound if the item has never existed, or InsufficientResource if
// the user doesn't hold enough.
func (s *Service) Withdraw(ctx context.Context, userID uint64, itemName string, qty uint64) (Movement, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return Movement{}, err
	}
	defer tx.Rollback()

	itemID, err := tx.GetItemID(ctx, itemName)
	if err != nil {
		return Movement{}, err
	}
	if err := tx.SubUserItem(ctx, userID, itemID, qty); err != nil {
		return Movement{}, err
	}
	if err := tx.Commit(); err != nil {
		return Movement{}, err
	}
	return Movement{ItemID: itemID, Qty: qty}, nil
}

// Fee is the non-refundable placement charge: price/20 + 1, integer
// division (spec.md §3, glossary "Fee").
func Fee(price uint64) uint64 {
	return price/20 + 1
}

// PlaceSellOrder lists qty of item_name for sale, either Immediate or
// Auction, expiring at expiration (a unix timestamp). It debits the
// listed quantity and the placement fee from the seller in one
// transaction and returns the fee movement for audit.
func (s *Service) PlaceSellOrder(ctx context.Context, orderType models.OrderType, sellerID uint64, itemName string, qty, price uint64, expiration int64) (Movement, error) {
	if itemName == FundsItemName {
		return Movement{}, auctionerr.New(auctionerr.Validation, "cannot sell funds (speculation is not allowed)")
	}
	if qty == 0 {
		return Movement{}, auctionerr.New(auctionerr.Validation, "quantity must be positive")
	}
	if price == 0 {
		return Movement{}, auctionerr.New(auctionerr.Validation, "price must be positive")
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return Movement{}, err
	}
	defer tx.Rollback()

	itemID, err := tx.GetOrCreateItemID(ctx, itemName)
	if err != nil {
		return Movement{}, err
	}

	if err := tx.SubUserItem(ctx, sellerID, itemID, qty); err != nil {
		if auctionerr.Is(err, auctionerr.InsufficientResource) {
			return Movement{}, auctionerr.New(auctionerr.InsufficientResource, "not enough "+itemName+" to sell")
		}
		return Movement{}, err
	}

	fee := Fee(price)
	if err := tx.SubUserItem(ctx, sellerID, s.store.FundsID(), fee); err != nil {
		if auctionerr.Is(err, auctionerr.InsufficientResource) {
			return Movement{}, auctionerr.New(auctionerr.InsufficientResource, "not enough funds to pay fee")
		}
		return Movement{}, err
	}

	var buyerID *uint64
	if orderType == models.Immediate {
		buyerID = &sellerID
	}
	_, err = tx.CreateSellOrder(ctx, models.SellOrder{
		SellerID: sellerID, ItemID: itemID, Quantity: qty, Price: price,
		UnixExpirationTime: expiration, BuyerID: buyerID,
	})
	if err != nil {
		return Movement{}, err
	}

	if err := tx.Commit(); err != nil {
		return Movement{}, err
	}
	return Movement{ItemID: s.store.FundsID(), Qty: fee}, nil
}

// ExecuteImmediate buys an Immediate order outright. Returns the
// executed-order record for audit and seller notification.
func (s *Service) ExecuteImmediate(ctx context.Context, buyerID, orderID uint64) (models.ExecutedAuction, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return models.ExecutedAuction{}, err
	}
	defer tx.Rollback()

	order, err := tx.GetSellOrder(ctx, orderID)
	if err != nil {
		return models.ExecutedAuction{}, err
	}
	if order.OrderType() != models.Immediate {
		return models.ExecutedAuction{}, auctionerr.New(auctionerr.Validation, "order is not an immediate sale")
	}
	if buyerID == order.SellerID {
		return models.ExecutedAuction{}, auctionerr.New(auctionerr.Validation, "cannot buy your own order")
	}

	if err := tx.SubUserItem(ctx, buyerID, s.store.FundsID(), order.Price); err != nil {
		if auctionerr.Is(err, auctionerr.InsufficientResource) {
			return models.ExecutedAuction{}, auctionerr.New(auctionerr.InsufficientResource, "not enough funds to buy")
		}
		return models.ExecutedAuction{}, err
	}
	if err := tx.AddUserItem(ctx, order.SellerID, s.store.FundsID(), order.Price); err != nil {
		return models.ExecutedAuction{}, err
	}
	if err := tx.AddUserItem(ctx, buyerID, order.ItemID, order.Quantity); err != nil {
		return models.ExecutedAuction{}, err
	}
	if err := tx.DeleteSellOrder(ctx, orderID); err != nil {
		return models.ExecutedAuction{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.ExecutedAuction{}, err
	}
	return models.ExecutedAuction{
		ID: orderID, SellerID: order.SellerID, BuyerID: buyerID,
		ItemID: order.ItemID, Quantity: order.Quantity, Price: order.Price,
	}, nil
}

// PlaceBid raises the price on an open Auction order. If a prior
// bidder holds the order, they are refunded within the same
// transaction that debits the new bidder — spec.md §9's resolved open
// question on bid-refund atomicity.
func (s *Service) PlaceBid(ctx context.Context, buyerID, orderID, bid uint64) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	order, err := tx.GetSellOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.OrderType() != models.Auction {
		return auctionerr.New(auctionerr.Validation, "order is not an auction")
	}
	if buyerID == order.SellerID {
		return auctionerr.New(auctionerr.Validation, "cannot bid on your own order")
	}
	if bid <= order.Price {
		return auctionerr.New(auctionerr.Validation, fmt.Sprintf("bid must exceed current price %d", order.Price))
	}

	if order.BuyerID != nil {
		if err := tx.AddUserItem(ctx, *order.BuyerID, s.store.FundsID(), order.Price); err != nil {
			return err
		}
	}
	if err := tx.SubUserItem(ctx, buyerID, s.store.FundsID(), bid); err != nil {
		if auctionerr.Is(err, auctionerr.InsufficientResource) {
			return auctionerr.New(auctionerr.InsufficientResource, "not enough funds to cover bid")
		}
		return err
	}
	if err := tx.UpdateSellOrderBuyer(ctx, orderID, buyerID, bid); err != nil {
		return err
	}

	return tx.Commit()
}

// ProcessExpired closes every order whose expiration has passed,
// delegating the aggregated algorithm to the store (spec.md §4.3: "the
// store exposes it as a single atomic primitive").
func (s *Service) ProcessExpired(ctx context.Context, now int64) ([]models.ExecutedAuction, error) {
	return s.store.ProcessExpired(ctx, now)
}

// ViewUserItems lists a user's holdings by item name.
func (s *Service) ViewUserItems(ctx context.Context, userID uint64) ([]NamedQuantity, error) {
	return s.store.ViewUserItems(ctx, userID)
}

// ViewSellOrders lists every open order with its derived type.
func (s *Service) ViewSellOrders(ctx context.Context) ([]models.SellOrderView, error) {
	return s.store.ViewSellOrders(ctx)
}
