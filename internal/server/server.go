// Package server implements the runtime of spec.md §4.6: the accept
// loop, per-connection login and command tasks, the expiry tick task,
// the notifier tick task, and the connected-seller registry tying them
// together. Grounded on the teacher's cmd/server/main.go for the
// "wire dependencies, launch one goroutine per background task" shape
// and on the original server's SharedState for the registry.
package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kinkard/auctionhouse/internal/auction"
	"github.com/kinkard/auctionhouse/internal/auditlog"
	"github.com/kinkard/auctionhouse/internal/command"
	"github.com/kinkard/auctionhouse/internal/models"
	"github.com/kinkard/auctionhouse/internal/notify"
	"github.com/kinkard/auctionhouse/internal/user"
)

// tickInterval is the 1Hz wake period spec.md §4.6 assigns to both the
// expiry and notifier tasks.
const tickInterval = time.Second

// Server owns every shared handle the runtime's tasks need: the
// business services, the audit log, the notification queue, and the
// connected-seller registry. These are root-level process resources
// (spec.md §9) passed explicitly rather than held as globals.
type Server struct {
	listener net.Listener
	users    *user.Service
	auction  *auction.Service
	notify   *notify.Queue
	audit    *auditlog.Log
	log      *zap.Logger
	registry *registry

	wg sync.WaitGroup
}

// New constructs a Server bound to an already-listening TCP socket.
func New(listener net.Listener, users *user.Service, auctionSvc *auction.Service, notifyQueue *notify.Queue, audit *auditlog.Log, log *zap.Logger) *Server {
	return &Server{
		listener: listener,
		users:    users,
		auction:  auctionSvc,
		notify:   notifyQueue,
		audit:    audit,
		log:      log,
		registry: newRegistry(),
	}
}

// Run drives the accept loop and the two ticker tasks until ctx is
// cancelled, then stops accepting and waits for in-flight connections
// to finish.
func (s *Server) Run(ctx context.Context) error {
	s.wg.Add(1)
	go s.expiryTask(ctx)
	s.wg.Add(1)
	go s.notifierTask(ctx)

	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			default:
				return fmt.Errorf("accept failed: %w", err)
			}
		}
		s.wg.Add(1)
		go s.connectionTask(ctx, conn)
	}
}

// connectionTask runs the login task followed by the command task for
// one accepted connection, spec.md §4.6 steps 2-3 combined into a
// single goroutine since nothing else needs to observe the boundary
// between them.
func (s *Server) connectionTask(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	if _, err := conn.Write([]byte("Welcome to the auction house. What's your name?\n")); err != nil {
		s.log.Warn("failed to write greeting", zap.String("remote_addr", remote), zap.Error(err))
		return
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, maxCommandBytes), maxCommandBytes)
	scanner.Split(scanCommand)

	if !scanner.Scan() {
		return
	}
	username := strings.TrimSpace(scanner.Text())

	u, err := s.users.Login(ctx, username)
	if err != nil {
		fmt.Fprintf(conn, "Failed to log in: %v\n", err)
		return
	}
	if _, err := fmt.Fprintf(conn, "Logged in as %s (id %d)\n", u.Username, u.ID); err != nil {
		return
	}

	s.registry.register(u.ID, conn)
	defer s.registry.unregister(u.ID, conn)
	s.log.Info("user connected", zap.Uint64("user_id", u.ID), zap.String("username", u.Username), zap.String("remote_addr", remote))

	sess := &command.Session{UserID: u.ID, Username: u.Username}
	svc := &command.Services{Auction: s.auction, Notify: s.notify, Audit: s.audit}

	for scanner.Scan() {
		line := scanner.Text()
		cmd, reply := command.Parse(line)
		if cmd == nil {
			if _, err := fmt.Fprintln(conn, reply); err != nil {
				break
			}
			continue
		}

		reply = cmd.Execute(ctx, sess, svc)
		if _, err := fmt.Fprintln(conn, reply); err != nil {
			break
		}
		if command.IsQuit(cmd) {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		s.log.Info("connection read failed", zap.Uint64("user_id", u.ID), zap.Error(err))
	}
	s.log.Info("user disconnected", zap.Uint64("user_id", u.ID))
}

// expiryTask wakes once per second, closes expired orders, and pushes
// one notification per won auction. Each wake is an independent
// critical section against the store (spec.md §9: "do not hold a
// transaction across a suspension point").
func (s *Server) expiryTask(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			won, err := s.auction.ProcessExpired(ctx, now.Unix())
			if err != nil {
				s.log.Error("expiry tick failed", zap.Error(err))
				continue
			}
			for _, w := range won {
				s.audit.Logf("order #%d sold by seller #%d to buyer #%d for %d funds at expiry", w.ID, w.SellerID, w.BuyerID, w.Price)
				s.notify.Push(notify.Notification{
					UserID: w.SellerID,
					Event:  models.Event{Kind: models.AuctionExecuted, OrderID: w.ID, Price: w.Price},
				})
			}
		}
	}
}

// notifierTask wakes once per second, drains the notification queue,
// and writes a line to each recipient's registered socket. Write
// failures are ignored — the owning connection task will observe the
// disconnect on its next read (spec.md §4.6 step 5).
func (s *Server) notifierTask(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, n := range s.notify.Drain() {
				conn, ok := s.registry.get(n.UserID)
				if !ok {
					continue
				}
				msg := formatEvent(n.Event)
				_, _ = fmt.Fprintln(conn, msg)
			}
		}
	}
}

func formatEvent(e models.Event) string {
	switch e.Kind {
	case models.ImmediateExecuted:
		return fmt.Sprintf("Notice: your order #%d sold for %d funds", e.OrderID, e.Price)
	case models.AuctionExecuted:
		return fmt.Sprintf("Notice: your auction #%d closed, sold for %d funds", e.OrderID, e.Price)
	default:
		return fmt.Sprintf("Notice: order #%d updated", e.OrderID)
	}
}
