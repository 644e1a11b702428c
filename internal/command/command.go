package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kinkard/auctionhouse/internal/auction"
	"github.com/kinkard/auctionhouse/internal/auditlog"
	"github.com/kinkard/auctionhouse/internal/models"
	"github.com/kinkard/auctionhouse/internal/notify"
)

// orderLifetime is how long a freshly placed sell order stays open
// before the next expiry tick can close it. Spec.md's grammar has no
// duration argument, matching the original server, which also
// hardcodes a 5-minute lifetime in its sell handler.
const orderLifetime = 5 * time.Minute

// Session is the per-connection state a command executes against.
type Session struct {
	UserID   uint64
	Username string
}

// Services bundles everything a command needs beyond the session.
type Services struct {
	Auction *auction.Service
	Notify  *notify.Queue
	Audit   *auditlog.Log
}

// Command is one parsed, ready-to-run request. The set of
// implementations is closed (spec.md §9): Ping, Whoami, Help, Deposit,
// Withdraw, ViewItems, Sell, Buy, ViewSellOrders, Quit.
type Command interface {
	Execute(ctx context.Context, sess *Session, svc *Services) string
}

// IsQuit reports whether cmd is the Quit variant, letting the server
// runtime decide to close the connection without the dispatcher itself
// threading a separate "close" signal through every Execute call.
func IsQuit(cmd Command) bool {
	_, ok := cmd.(Quit)
	return ok
}

type parseFunc func(args string) (Command, bool)

var dispatch = map[string]parseFunc{
	"ping":             parsePing,
	"whoami":           parseWhoami,
	"help":             parseHelp,
	"deposit":          parseDeposit,
	"withdraw":         parseWithdraw,
	"view_items":       parseViewItems,
	"sell":             parseSell,
	"buy":              parseBuy,
	"view_sell_orders": parseViewSellOrders,
	"quit":             parseQuit,
}

const helpText = `Available commands:
  ping                                         - reply pong
  whoami                                       - show your username
  help                                         - show this message
  deposit <item...> [<qty>]                    - deposit an item (qty defaults to 1)
  withdraw <item...> [<qty>]                   - withdraw an item (qty defaults to 1)
  view_items                                   - list your inventory
  sell [immediate|auction] <item...> [<qty>] <price> - list an item for sale
  buy <order_id> [<bid>]                       - buy outright, or bid on an auction
  view_sell_orders                             - list every open sell order
  quit                                         - close the connection`

// Parse splits line into a command name and arguments, looks up the
// matching parser, and returns the parsed Command. An unknown name or
// a parse failure both yield a descriptive response instead of an
// error — per spec.md §4.5, parse failure is itself a reply, not a
// hard error, since the connection stays open either way.
func Parse(line string) (Command, string) {
	line = strings.TrimSpace(line)
	name, args := parseCommandName(line)

	parser, ok := dispatch[name]
	if !ok {
		return nil, fmt.Sprintf("Failed to execute unknown command %q.\n%s", name, helpText)
	}
	cmd, ok := parser(args)
	if !ok {
		return nil, fmt.Sprintf("Failed to parse arguments for command %q", name)
	}
	return cmd, ""
}

// --- Ping ---

type Ping struct{}

func parsePing(string) (Command, bool) { return Ping{}, true }

func (Ping) Execute(context.Context, *Session, *Services) string { return "pong" }

// --- Whoami ---

type Whoami struct{}

func parseWhoami(string) (Command, bool) { return Whoami{}, true }

func (Whoami) Execute(_ context.Context, sess *Session, _ *Services) string {
	return sess.Username
}

// --- Help ---

type Help struct{}

func parseHelp(string) (Command, bool) { return Help{}, true }

func (Help) Execute(context.Context, *Session, *Services) string { return helpText }

// --- Deposit ---

type Deposit struct {
	Item string
	Qty  uint64
}

func parseDeposit(args string) (Command, bool) {
	item, qty, ok := parseItemAndQuantity(args)
	if !ok || qty < 0 {
		return nil, false
	}
	return Deposit{Item: item, Qty: uint64(qty)}, true
}

func (d Deposit) Execute(ctx context.Context, sess *Session, svc *Services) string {
	mv, err := svc.Auction.Deposit(ctx, sess.UserID, d.Item, d.Qty)
	if err != nil {
		return fmt.Sprintf("Failed to deposit %d %s(s) with error: %v", d.Qty, d.Item, err)
	}
	svc.Audit.Logf("%s deposited %d of item #%d (%s)", sess.Username, mv.Qty, mv.ItemID, d.Item)
	return fmt.Sprintf("Successfully deposited %d %s(s)", d.Qty, d.Item)
}

// --- Withdraw ---

type Withdraw struct {
	Item string
	Qty  uint64
}

func parseWithdraw(args string) (Command, bool) {
	item, qty, ok := parseItemAndQuantity(args)
	if !ok || qty < 0 {
		return nil, false
	}
	return Withdraw{Item: item, Qty: uint64(qty)}, true
}

func (w Withdraw) Execute(ctx context.Context, sess *Session, svc *Services) string {
	mv, err := svc.Auction.Withdraw(ctx, sess.UserID, w.Item, w.Qty)
	if err != nil {
		return fmt.Sprintf("Failed to withdraw %d %s(s) with error: %v", w.Qty, w.Item, err)
	}
	svc.Audit.Logf("%s withdrew %d of item #%d (%s)", sess.Username, mv.Qty, mv.ItemID, w.Item)
	return fmt.Sprintf("Successfully withdrawn %d %s(s)", w.Qty, w.Item)
}

// --- ViewItems ---

type ViewItems struct{}

func parseViewItems(string) (Command, bool) { return ViewItems{}, true }

func (ViewItems) Execute(ctx context.Context, sess *Session, svc *Services) string {
	items, err := svc.Auction.ViewUserItems(ctx, sess.UserID)
	if err != nil {
		return fmt.Sprintf("Failed to view items with error: %v", err)
	}
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprintf("%s: %d", it.Name, it.Quantity)
	}
	return "Items: " + strings.Join(parts, ", ")
}

// --- Sell ---

type Sell struct {
	Type  models.OrderType
	Item  string
	Qty   uint64
	Price uint64
}

func parseSell(args string) (Command, bool) {
	orderType, item, qty, price, ok := parseSellArgs(args)
	if !ok || qty < 0 || price < 0 {
		return nil, false
	}
	t := models.Immediate
	if orderType == "auction" {
		t = models.Auction
	}
	return Sell{Type: t, Item: item, Qty: uint64(qty), Price: uint64(price)}, true
}

func (s Sell) Execute(ctx context.Context, sess *Session, svc *Services) string {
	expiration := time.Now().Add(orderLifetime).Unix()
	mv, err := svc.Auction.PlaceSellOrder(ctx, s.Type, sess.UserID, s.Item, s.Qty, s.Price, expiration)
	if err != nil {
		return fmt.Sprintf("Failed to place sell order for %d %s(s) with error: %v", s.Qty, s.Item, err)
	}
	svc.Audit.Logf("%s paid a fee of %d funds to list %d %s(s) for %d funds", sess.Username, mv.Qty, s.Qty, s.Item, s.Price)
	return fmt.Sprintf("Successfully placed sell order for %d %s(s)", s.Qty, s.Item)
}

// --- Buy ---

type Buy struct {
	OrderID uint64
	Bid     *uint64
}

func parseBuy(args string) (Command, bool) {
	fields := strings.Fields(args)
	if len(fields) < 1 || len(fields) > 2 {
		return nil, false
	}
	orderID, err := strconv.Atoi(fields[0])
	if err != nil || orderID < 0 {
		return nil, false
	}
	b := Buy{OrderID: uint64(orderID)}
	if len(fields) == 2 {
		bid, err := strconv.Atoi(fields[1])
		if err != nil || bid < 0 {
			return nil, false
		}
		v := uint64(bid)
		b.Bid = &v
	}
	return b, true
}

func (b Buy) Execute(ctx context.Context, sess *Session, svc *Services) string {
	if b.Bid != nil {
		if err := svc.Auction.PlaceBid(ctx, sess.UserID, b.OrderID, *b.Bid); err != nil {
			return fmt.Sprintf("Failed to place bid on order #%d with error: %v", b.OrderID, err)
		}
		svc.Audit.Logf("%s bid %d funds on order #%d", sess.Username, *b.Bid, b.OrderID)
		return fmt.Sprintf("Successfully placed a bid of %d on order #%d", *b.Bid, b.OrderID)
	}

	executed, err := svc.Auction.ExecuteImmediate(ctx, sess.UserID, b.OrderID)
	if err != nil {
		return fmt.Sprintf("Failed to buy order #%d with error: %v", b.OrderID, err)
	}
	svc.Audit.Logf("seller #%d sold order #%d to %s for %d funds", executed.SellerID, executed.ID, sess.Username, executed.Price)
	svc.Audit.Logf("%s bought order #%d for %d funds", sess.Username, executed.ID, executed.Price)
	svc.Notify.Push(notify.Notification{
		UserID: executed.SellerID,
		Event:  models.Event{Kind: models.ImmediateExecuted, OrderID: executed.ID, Price: executed.Price},
	})
	return fmt.Sprintf("Successfully bought order #%d for %d funds", b.OrderID, executed.Price)
}

// --- ViewSellOrders ---

type ViewSellOrders struct{}

func parseViewSellOrders(string) (Command, bool) { return ViewSellOrders{}, true }

func (ViewSellOrders) Execute(ctx context.Context, _ *Session, svc *Services) string {
	orders, err := svc.Auction.ViewSellOrders(ctx)
	if err != nil {
		return fmt.Sprintf("Failed to view sell orders with error: %v", err)
	}
	if len(orders) == 0 {
		return "Sell orders:"
	}
	var b strings.Builder
	b.WriteString("Sell orders:\n")
	for _, o := range orders {
		expiry := time.Unix(o.UnixExpirationTime, 0).UTC().Format("2006-01-02 15:04:05")
		if o.Quantity == 1 {
			fmt.Fprintf(&b, "- #%d: %s is selling a %s for %d funds until %s (%s)\n",
				o.ID, o.SellerName, o.ItemName, o.Price, expiry, o.Type)
		} else {
			fmt.Fprintf(&b, "- #%d: %s is selling %d %s(s) for %d funds until %s (%s)\n",
				o.ID, o.SellerName, o.Quantity, o.ItemName, o.Price, expiry, o.Type)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// --- Quit ---

type Quit struct{}

func parseQuit(string) (Command, bool) { return Quit{}, true }

func (Quit) Execute(context.Context, *Session, *Services) string { return "Goodbye" }
