package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kinkard/auctionhouse/internal/auction"
	"github.com/kinkard/auctionhouse/internal/auditlog"
	"github.com/kinkard/auctionhouse/internal/notify"
	"github.com/kinkard/auctionhouse/internal/server"
	"github.com/kinkard/auctionhouse/internal/store"
	"github.com/kinkard/auctionhouse/internal/user"
)

// Main entry point: sets up the store, the audit log, and the TCP
// server. Exit code is nonzero on argument, database, or log-open
// failure, per spec.md §6's CLI contract.
func main() {
	if len(os.Args) != 4 {
		fmt.Fprintf(os.Stderr, "usage: %s <port> <db_path> <log_path>\n", os.Args[0])
		os.Exit(1)
	}
	port := os.Args[1]
	dbPath := os.Args[2]
	logPath := os.Args[3]

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	st, err := store.Open(dbPath)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("db_path", dbPath), zap.Error(err))
	}
	defer st.Close()

	audit, err := auditlog.Open(logPath)
	if err != nil {
		logger.Fatal("failed to open audit log", zap.String("log_path", logPath), zap.Error(err))
	}
	defer audit.Close()

	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		logger.Fatal("failed to bind listener", zap.String("port", port), zap.Error(err))
	}

	users := user.New(st)
	auctionSvc := auction.New(auction.NewStore(st))
	notifyQueue := notify.New()

	srv := server.New(listener, users, auctionSvc, notifyQueue, audit, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	logger.Info("auction house server listening", zap.String("port", port), zap.String("db_path", dbPath), zap.String("log_path", logPath))
	if err := srv.Run(ctx); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
