// Command mailclient wires the offline mail core together: local SQLite
// cache, IMAP/SMTP gateway, connectivity monitor, sync coordinator, and
// outbox engine. SIGUSR1 acts as the external wake signal for the outbox.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/mail-client/internal/connectivity"
	"github.com/nhle/mail-client/internal/gateway/imapgw"
	"github.com/nhle/mail-client/internal/logging"
	"github.com/nhle/mail-client/internal/model"
	"github.com/nhle/mail-client/internal/outbox"
	"github.com/nhle/mail-client/internal/store"
	"github.com/nhle/mail-client/internal/sync"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "mailclient:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to config file")
	offline := flag.Bool("offline", false, "start in offline mode")
	flag.Parse()

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	s, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer s.Close()

	registry := imapgw.NewAccountRegistry(cfg.AccountsPath)
	gw := imapgw.New(registry, logger)

	monitor := connectivity.NewMonitor(!*offline,
		time.Duration(cfg.Connectivity.DebounceMs)*time.Millisecond)

	coordinator := sync.New(s, gw, monitor, logger, cfg.Sync.PageSize)
	engine := outbox.New(s, gw, monitor, logger, coordinator.SelectedAccount)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go engine.Run(ctx)

	// SIGUSR1 from a cooperating process asks the outbox to flush.
	wake := make(chan os.Signal, 1)
	signal.Notify(wake, syscall.SIGUSR1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-wake:
				logger.Info("wake signal received")
				engine.Wake()
			}
		}
	}()

	if err := coordinator.Initialize(ctx); err != nil {
		return err
	}

	logger.Info("mail client ready",
		zap.Int("accounts", len(coordinator.Accounts())),
		zap.Bool("online", monitor.Online()),
	)

	<-ctx.Done()
	return nil
}
