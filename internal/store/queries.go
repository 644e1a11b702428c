package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kinkard/auctionhouse/internal/auctionerr"
	"github.com/kinkard/auctionhouse/internal/models"
)

// GetUserID looks up a user by name. Returns auctionerr.NotFound if no
// such user exists.
func (q *queries) GetUserID(ctx context.Context, name string) (uint64, error) {
	var id uint64
	err := q.db.QueryRowContext(ctx, "SELECT id FROM users WHERE username = ?;", name).Scan(&id)
	if isNoRows(err) {
		return 0, auctionerr.New(auctionerr.NotFound, fmt.Sprintf("user %q not found", name))
	}
	if err != nil {
		return 0, auctionerr.New(auctionerr.StorageIO, fmt.Sprintf("failed to look up user %q: %v", name, err))
	}
	return id, nil
}

// CreateUser inserts a new user row and a zero-quantity funds row in
// the same call. Fails with auctionerr.Conflict if the name is taken.
func (q *queries) CreateUser(ctx context.Context, name string) (uint64, error) {
	res, err := q.db.ExecContext(ctx, "INSERT INTO users (username) VALUES (?);", name)
	if err != nil {
		return 0, auctionerr.New(auctionerr.Conflict, fmt.Sprintf("username %q already taken", name))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, auctionerr.New(auctionerr.StorageIO, fmt.Sprintf("failed to read new user id: %v", err))
	}
	userID := uint64(id)
	_, err = q.db.ExecContext(ctx,
		"INSERT INTO user_items (user_id, item_id, quantity) VALUES (?, ?, 0);", userID, q.fundsID)
	if err != nil {
		return 0, auctionerr.New(auctionerr.StorageIO, fmt.Sprintf("failed to seed funds row for %q: %v", name, err))
	}
	return userID, nil
}

// GetItemID looks up an item by name.
func (q *queries) GetItemID(ctx context.Context, name string) (uint64, error) {
	var id uint64
	err := q.db.QueryRowContext(ctx, "SELECT id FROM items WHERE name = ?;", name).Scan(&id)
	if isNoRows(err) {
		return 0, auctionerr.New(auctionerr.NotFound, fmt.Sprintf("item %q not found", name))
	}
	if err != nil {
		return 0, auctionerr.New(auctionerr.StorageIO, fmt.Sprintf("failed to look up item %q: %v", name, err))
	}
	return id, nil
}

// CreateItem inserts a new item row. Fails with auctionerr.Conflict on
// a duplicate name.
func (q *queries) CreateItem(ctx context.Context, name string) (uint64, error) {
	res, err := q.db.ExecContext(ctx, "INSERT INTO items (name) VALUES (?);", name)
	if err != nil {
		return 0, auctionerr.New(auctionerr.Conflict, fmt.Sprintf("item %q already exists", name))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, auctionerr.New(auctionerr.StorageIO, fmt.Sprintf("failed to read new item id: %v", err))
	}
	return uint64(id), nil
}

// GetOrCreateItemID resolves an item by name, creating it if it has
// never been referenced before. Used by deposit and place_sell_order,
// which create items lazily (spec.md §3).
func (q *queries) GetOrCreateItemID(ctx context.Context, name string) (uint64, error) {
	id, err := q.GetItemID(ctx, name)
	if err == nil {
		return id, nil
	}
	if !auctionerr.Is(err, auctionerr.NotFound) {
		return 0, err
	}
	return q.CreateItem(ctx, name)
}

// GetUserItemQty returns the user's holding of an item, or 0 if no row
// exists (spec.md §4.1: "missing-row is none, to be treated as 0").
func (q *queries) GetUserItemQty(ctx context.Context, userID, itemID uint64) (uint64, error) {
	var qty uint64
	err := q.db.QueryRowContext(ctx,
		"SELECT quantity FROM user_items WHERE user_id = ? AND item_id = ?;", userID, itemID).Scan(&qty)
	if isNoRows(err) {
		return 0, nil
	}
	if err != nil {
		return 0, auctionerr.New(auctionerr.StorageIO, fmt.Sprintf("failed to read holding: %v", err))
	}
	return qty, nil
}

// AddUserItem upserts the user's holding of an item, adding qty to
// whatever is already there (or 0 if no row exists yet).
func (q *queries) AddUserItem(ctx context.Context, userID, itemID, qty uint64) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO user_items (user_id, item_id, quantity) VALUES (?, ?, ?)
		ON CONFLICT (user_id, item_id) DO UPDATE SET quantity = quantity + excluded.quantity;`,
		userID, itemID, qty)
	if err != nil {
		return auctionerr.New(auctionerr.StorageIO, fmt.Sprintf("failed to add holding: %v", err))
	}
	return nil
}

// SubUserItem deducts qty from the user's holding of an item, failing
// with auctionerr.InsufficientResource if the current quantity is
// less than qty. Per spec.md §4.1: the funds row is never deleted even
// when it reaches 0; non-funds rows are deleted once the remainder is 0.
func (q *queries) SubUserItem(ctx context.Context, userID, itemID, qty uint64) error {
	current, err := q.GetUserItemQty(ctx, userID, itemID)
	if err != nil {
		return err
	}
	if current < qty {
		return auctionerr.New(auctionerr.InsufficientResource,
			fmt.Sprintf("not enough: have %d, need %d", current, qty))
	}
	remainder := current - qty
	if itemID == q.fundsID || remainder > 0 {
		_, err = q.db.ExecContext(ctx,
			"UPDATE user_items SET quantity = ? WHERE user_id = ? AND item_id = ?;", remainder, userID, itemID)
	} else {
		_, err = q.db.ExecContext(ctx,
			"DELETE FROM user_items WHERE user_id = ? AND item_id = ?;", userID, itemID)
	}
	if err != nil {
		return auctionerr.New(auctionerr.StorageIO, fmt.Sprintf("failed to subtract holding: %v", err))
	}
	return nil
}

// CreateSellOrder inserts a sell order and returns its assigned id.
// buyerID is nil for a freshly placed auction, or equal to sellerID
// for an immediate order — see models.SellOrder.OrderType.
func (q *queries) CreateSellOrder(ctx context.Context, o models.SellOrder) (uint64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO sell_orders (seller_id, item_id, quantity, price, unix_expiration_time, buyer_id)
		VALUES (?, ?, ?, ?, ?, ?);`,
		o.SellerID, o.ItemID, o.Quantity, o.Price, o.UnixExpirationTime, o.BuyerID)
	if err != nil {
		return 0, auctionerr.New(auctionerr.StorageIO, fmt.Sprintf("failed to create sell order: %v", err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, auctionerr.New(auctionerr.StorageIO, fmt.Sprintf("failed to read new order id: %v", err))
	}
	return uint64(id), nil
}

// GetSellOrder loads a sell order by id, or auctionerr.NotFound.
func (q *queries) GetSellOrder(ctx context.Context, id uint64) (models.SellOrder, error) {
	var o models.SellOrder
	o.ID = id
	var buyerID sql.NullInt64
	err := q.db.QueryRowContext(ctx, `
		SELECT seller_id, item_id, quantity, price, unix_expiration_time, buyer_id
		FROM sell_orders WHERE id = ?;`, id).
		Scan(&o.SellerID, &o.ItemID, &o.Quantity, &o.Price, &o.UnixExpirationTime, &buyerID)
	if isNoRows(err) {
		return models.SellOrder{}, auctionerr.New(auctionerr.NotFound, fmt.Sprintf("order %d not found", id))
	}
	if err != nil {
		return models.SellOrder{}, auctionerr.New(auctionerr.StorageIO, fmt.Sprintf("failed to load order %d: %v", id, err))
	}
	if buyerID.Valid {
		v := uint64(buyerID.Int64)
		o.BuyerID = &v
	}
	return o, nil
}

// UpdateSellOrderBuyer sets the order's current buyer and price — used
// to record a new high bid on an auction.
func (q *queries) UpdateSellOrderBuyer(ctx context.Context, id uint64, buyerID uint64, price uint64) error {
	_, err := q.db.ExecContext(ctx,
		"UPDATE sell_orders SET buyer_id = ?, price = ? WHERE id = ?;", buyerID, price, id)
	if err != nil {
		return auctionerr.New(auctionerr.StorageIO, fmt.Sprintf("failed to update order %d: %v", id, err))
	}
	return nil
}

// DeleteSellOrder removes an order row, typically after execution or
// expiry.
func (q *queries) DeleteSellOrder(ctx context.Context, id uint64) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM sell_orders WHERE id = ?;", id)
	if err != nil {
		return auctionerr.New(auctionerr.StorageIO, fmt.Sprintf("failed to delete order %d: %v", id, err))
	}
	return nil
}

// ViewUserItems lists every holding row the user has (the funds row is
// listed even at quantity 0), joined with the item name, in the store's
// natural (item id) order
// (spec.md §4.1: "joins with items").
func (q *queries) ViewUserItems(ctx context.Context, userID uint64) ([]NamedQuantity, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT items.name, user_items.quantity
		FROM user_items JOIN items ON items.id = user_items.item_id
		WHERE user_items.user_id = ? ORDER BY items.id;`, userID)
	if err != nil {
		return nil, auctionerr.New(auctionerr.StorageIO, fmt.Sprintf("failed to list holdings: %v", err))
	}
	defer rows.Close()

	var out []NamedQuantity
	for rows.Next() {
		var nq NamedQuantity
		if err := rows.Scan(&nq.Name, &nq.Quantity); err != nil {
			return nil, auctionerr.New(auctionerr.StorageIO, fmt.Sprintf("failed to scan holding: %v", err))
		}
		out = append(out, nq)
	}
	if err := rows.Err(); err != nil {
		return nil, auctionerr.New(auctionerr.StorageIO, fmt.Sprintf("failed to list holdings: %v", err))
	}
	return out, nil
}

// NamedQuantity is one row of an item-name/quantity listing.
type NamedQuantity struct {
	Name     string
	Quantity uint64
}

// ViewSellOrders lists every open order, joined with the seller's
// username and the item's name, with the derived type field.
func (q *queries) ViewSellOrders(ctx context.Context) ([]models.SellOrderView, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT sell_orders.id, sell_orders.seller_id, users.username, items.name,
		       sell_orders.quantity, sell_orders.price, sell_orders.unix_expiration_time,
		       sell_orders.buyer_id
		FROM sell_orders
		JOIN users ON users.id = sell_orders.seller_id
		JOIN items ON items.id = sell_orders.item_id
		ORDER BY sell_orders.id;`)
	if err != nil {
		return nil, auctionerr.New(auctionerr.StorageIO, fmt.Sprintf("failed to list sell orders: %v", err))
	}
	defer rows.Close()

	var views []models.SellOrderView
	for rows.Next() {
		var v models.SellOrderView
		var sellerID uint64
		var buyerID sql.NullInt64
		if err := rows.Scan(&v.ID, &sellerID, &v.SellerName, &v.ItemName, &v.Quantity, &v.Price, &v.UnixExpirationTime, &buyerID); err != nil {
			return nil, auctionerr.New(auctionerr.StorageIO, fmt.Sprintf("failed to scan sell order: %v", err))
		}
		v.Type = models.Auction
		if buyerID.Valid && uint64(buyerID.Int64) == sellerID {
			v.Type = models.Immediate
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, auctionerr.New(auctionerr.StorageIO, fmt.Sprintf("failed to list sell orders: %v", err))
	}
	return views, nil
}
