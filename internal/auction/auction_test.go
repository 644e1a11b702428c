package auction

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinkard/auctionhouse/internal/models"
	"github.com/kinkard/auctionhouse/internal/store"
	"github.com/kinkard/auctionhouse/internal/user"
)

func newTestService(t *testing.T) (*Service, *user.Service) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "auction.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(NewStore(s)), user.New(s)
}

// scenario 2: immediate trade.
func TestService_ImmediateTrade(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()

	alice, err := users.Login(ctx, "alice")
	require.NoError(t, err)
	bob, err := users.Login(ctx, "bob")
	require.NoError(t, err)

	_, err = svc.Deposit(ctx, alice.ID, "funds", 100)
	require.NoError(t, err)
	_, err = svc.Deposit(ctx, alice.ID, "sword", 10)
	require.NoError(t, err)
	_, err = svc.Deposit(ctx, bob.ID, "funds", 20)
	require.NoError(t, err)

	fee, err := svc.PlaceSellOrder(ctx, models.Immediate, alice.ID, "sword", 2, 2, 1000)
	require.NoError(t, err)
	assert.EqualValues(t, 1, fee.Qty) // fee = 2/20 + 1 = 1

	aliceFunds, _ := svc.store.ViewUserItems(ctx, alice.ID)
	assert.Contains(t, aliceFunds, NamedQuantity{Name: "funds", Quantity: 99})

	orders, err := svc.ViewSellOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)

	executed, err := svc.ExecuteImmediate(ctx, bob.ID, orders[0].ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, executed.Price)

	bobItems, _ := svc.store.ViewUserItems(ctx, bob.ID)
	assert.Contains(t, bobItems, NamedQuantity{Name: "funds", Quantity: 18})
	assert.Contains(t, bobItems, NamedQuantity{Name: "sword", Quantity: 2})

	aliceItems, _ := svc.store.ViewUserItems(ctx, alice.ID)
	assert.Contains(t, aliceItems, NamedQuantity{Name: "funds", Quantity: 101})
	assert.Contains(t, aliceItems, NamedQuantity{Name: "sword", Quantity: 8})

	remaining, err := svc.ViewSellOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

// scenario 3: auction with outbid.
func TestService_AuctionWithOutbid(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()
	const expiry = int64(1_000_000)

	seller, _ := users.Login(ctx, "seller")
	buyer1, _ := users.Login(ctx, "buyer1")
	buyer2, _ := users.Login(ctx, "buyer2")

	svc.Deposit(ctx, seller.ID, "funds", 100)
	svc.Deposit(ctx, seller.ID, "gem", 3)
	svc.Deposit(ctx, buyer1.ID, "funds", 100)
	svc.Deposit(ctx, buyer2.ID, "funds", 100)

	_, err := svc.PlaceSellOrder(ctx, models.Auction, seller.ID, "gem", 3, 11, expiry)
	require.NoError(t, err)

	orders, _ := svc.ViewSellOrders(ctx)
	require.Len(t, orders, 1)
	orderID := orders[0].ID

	require.NoError(t, svc.PlaceBid(ctx, buyer1.ID, orderID, 20))
	buyer1Items, _ := svc.store.ViewUserItems(ctx, buyer1.ID)
	assert.Contains(t, buyer1Items, NamedQuantity{Name: "funds", Quantity: 80})

	require.NoError(t, svc.PlaceBid(ctx, buyer2.ID, orderID, 21))
	buyer1Items, _ = svc.store.ViewUserItems(ctx, buyer1.ID)
	assert.Contains(t, buyer1Items, NamedQuantity{Name: "funds", Quantity: 100})
	buyer2Items, _ := svc.store.ViewUserItems(ctx, buyer2.ID)
	assert.Contains(t, buyer2Items, NamedQuantity{Name: "funds", Quantity: 79})

	won, err := svc.ProcessExpired(ctx, expiry)
	require.NoError(t, err)
	require.Len(t, won, 1)

	sellerItems, _ := svc.store.ViewUserItems(ctx, seller.ID)
	assert.Contains(t, sellerItems, NamedQuantity{Name: "funds", Quantity: 120})

	buyer2Items, _ = svc.store.ViewUserItems(ctx, buyer2.ID)
	assert.Contains(t, buyer2Items, NamedQuantity{Name: "funds", Quantity: 79})
	assert.Contains(t, buyer2Items, NamedQuantity{Name: "gem", Quantity: 3})
}

// scenario 4: immediate expiry, items return, fee does not.
func TestService_ImmediateExpiry_FeeNotRefunded(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()
	const expiry = int64(500)

	seller, _ := users.Login(ctx, "seller")
	svc.Deposit(ctx, seller.ID, "item1", 10)

	_, err := svc.PlaceSellOrder(ctx, models.Immediate, seller.ID, "item1", 10, 200, expiry)
	assert.Error(t, err) // not enough funds for fee (11)

	svc.Deposit(ctx, seller.ID, "funds", 100)
	_, err = svc.PlaceSellOrder(ctx, models.Immediate, seller.ID, "item1", 10, 200, expiry)
	require.NoError(t, err)

	items, _ := svc.store.ViewUserItems(ctx, seller.ID)
	assert.Contains(t, items, NamedQuantity{Name: "funds", Quantity: 89})

	won, err := svc.ProcessExpired(ctx, expiry)
	require.NoError(t, err)
	assert.Empty(t, won)

	items, _ = svc.store.ViewUserItems(ctx, seller.ID)
	assert.Contains(t, items, NamedQuantity{Name: "funds", Quantity: 89})
	assert.Contains(t, items, NamedQuantity{Name: "item1", Quantity: 10})
}

// scenario 6: self-trade prevention.
func TestService_SelfTradePrevention(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()

	alice, _ := users.Login(ctx, "alice")
	svc.Deposit(ctx, alice.ID, "funds", 100)
	svc.Deposit(ctx, alice.ID, "sword", 5)
	svc.Deposit(ctx, alice.ID, "gem", 1)

	_, err := svc.PlaceSellOrder(ctx, models.Immediate, alice.ID, "sword", 1, 10, 1000)
	require.NoError(t, err)
	orders, _ := svc.ViewSellOrders(ctx)
	require.Len(t, orders, 1)

	_, err = svc.ExecuteImmediate(ctx, alice.ID, orders[0].ID)
	assert.Error(t, err)

	_, err = svc.PlaceSellOrder(ctx, models.Auction, alice.ID, "gem", 1, 10, 1000)
	require.NoError(t, err)
	orders, _ = svc.ViewSellOrders(ctx)
	var auctionID uint64
	for _, o := range orders {
		if o.Type == models.Auction {
			auctionID = o.ID
		}
	}
	err = svc.PlaceBid(ctx, alice.ID, auctionID, 50)
	assert.Error(t, err)
}

func TestService_PlaceSellOrder_RejectsFunds(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()
	alice, _ := users.Login(ctx, "alice")
	svc.Deposit(ctx, alice.ID, "funds", 100)

	_, err := svc.PlaceSellOrder(ctx, models.Immediate, alice.ID, "funds", 1, 10, 1000)
	assert.Error(t, err)
}

func TestService_PlaceBid_RejectsEqualPrice(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()
	seller, _ := users.Login(ctx, "seller")
	buyer, _ := users.Login(ctx, "buyer")
	svc.Deposit(ctx, seller.ID, "gem", 1)
	svc.Deposit(ctx, seller.ID, "funds", 100)
	svc.Deposit(ctx, buyer.ID, "funds", 100)

	_, err := svc.PlaceSellOrder(ctx, models.Auction, seller.ID, "gem", 1, 10, 1000)
	require.NoError(t, err)
	orders, _ := svc.ViewSellOrders(ctx)

	require.NoError(t, svc.PlaceBid(ctx, buyer.ID, orders[0].ID, 15))
	err = svc.PlaceBid(ctx, buyer.ID, orders[0].ID, 15)
	assert.Error(t, err)
}
