// Command republish re-sends order.placed for orders that were stored but
// never reached the payment service, typically because the broker was down
// when they were placed.  Duplicates are harmless: payment results are
// applied idempotently.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/game-catalog/internal/config"
	"github.com/iliyamo/game-catalog/internal/database"
	"github.com/iliyamo/game-catalog/internal/logging"
	"github.com/iliyamo/game-catalog/internal/queue"
	"github.com/iliyamo/game-catalog/internal/repository"
	"github.com/iliyamo/game-catalog/internal/service"
)

const brokerDialTimeout = 15 * time.Second

func main() {
	olderThan := flag.Duration("older-than", 5*time.Minute, "only republish unprocessed orders older than this")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := logging.New(cfg.Env, cfg.LogLevel)
	if err := run(cfg, log, *olderThan); err != nil {
		log.WithError(err).Fatal("republish stopped")
	}
}

func run(cfg config.Config, log *logrus.Logger, olderThan time.Duration) error {
	if cfg.StoreDriver != config.StoreMySQL {
		return errors.New("republish needs STORE_DRIVER=mysql; the memory store does not outlive the server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	dialCtx, cancelDial := context.WithTimeout(ctx, brokerDialTimeout)
	pub, err := queue.NewPublisher(dialCtx, cfg.Rabbit.URL, cfg.Rabbit.OrderExchange, log)
	cancelDial()
	if err != nil {
		return fmt.Errorf("connect publisher: %w", err)
	}
	defer pub.Close()

	orders := service.NewOrderService(
		repository.NewGameRepo(db),
		repository.NewEntitlementRepo(db),
		repository.NewOrderRepo(db),
		pub,
		log,
	)
	n, err := orders.RepublishPending(ctx, olderThan)
	entry := log.WithFields(logrus.Fields{"republished": n, "older_than": olderThan.String()})
	if err != nil {
		return fmt.Errorf("republished %d before failing: %w", n, err)
	}
	entry.Info("republish finished")
	return nil
}
