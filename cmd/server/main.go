package main // entry point of the catalog service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/game-catalog/internal/config"
	"github.com/iliyamo/game-catalog/internal/database"
	"github.com/iliyamo/game-catalog/internal/handler"
	"github.com/iliyamo/game-catalog/internal/logging"
	"github.com/iliyamo/game-catalog/internal/middleware"
	"github.com/iliyamo/game-catalog/internal/queue"
	"github.com/iliyamo/game-catalog/internal/repository"
	"github.com/iliyamo/game-catalog/internal/repository/memory"
	"github.com/iliyamo/game-catalog/internal/router"
	"github.com/iliyamo/game-catalog/internal/service"
)

const brokerDialTimeout = 15 * time.Second

// stores groups the three store implementations selected by STORE_DRIVER.
type stores struct {
	games        service.GameStore
	entitlements service.EntitlementStore
	orders       service.OrderStore
	db           *sql.DB // nil in memory mode
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := logging.New(cfg.Env, cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("catalog service stopped")
	}
}

// run wires the service and blocks until SIGINT/SIGTERM.  Every resource
// it opens is released before it returns.
func run(cfg config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	if st.db != nil {
		defer st.db.Close()
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.Warn("redis unavailable; response cache and rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, brokerDialTimeout)
	pub, err := queue.NewPublisher(dialCtx, cfg.Rabbit.URL, cfg.Rabbit.OrderExchange, log)
	cancelDial()
	if err != nil {
		return fmt.Errorf("connect publisher: %w", err)
	}
	defer pub.Close()

	catalog := service.NewCatalogService(st.games, log)
	orders := service.NewOrderService(st.games, st.entitlements, st.orders, pub, log)
	reconciler := service.NewPaymentReconciler(st.orders, st.entitlements, log)

	consumer := queue.NewConsumer(queue.ConsumerConfig{
		URL:                cfg.Rabbit.URL,
		Exchange:           cfg.Rabbit.PaymentExchange,
		Queue:              cfg.Rabbit.PaymentQueue,
		DeadLetterExchange: cfg.Rabbit.PaymentDLX,
		Prefetch:           cfg.Rabbit.ConsumerPrefetch,
		Workers:            cfg.Rabbit.ConsumerWorkers,
		HandlerTimeout:     cfg.Rabbit.HandlerTimeout,
	}, reconciler.HandlePaymentProcessed, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := consumer.Run(ctx); err != nil {
			log.WithError(err).Error("payment consumer stopped")
		}
	}()

	e := newEcho(log)
	deps := map[string]handler.Pinger{"rabbitmq": pub}
	if st.db != nil {
		deps["mysql"] = st.db
	}
	router.RegisterRoutes(e, handler.NewHealth(deps))
	router.RegisterAPI(e, router.Deps{
		Games:     handler.NewGameHandler(catalog, orders, purger(rdb, cfg.Cache.Prefix), log),
		JWTSecret: cfg.JWTSecret,
		Cache:     middleware.NewRedisCache(cfg.Cache, rdb),
		RateLimit: middleware.NewTokenBucket(cfg.RateLimit, rdb, log),
	})

	serveErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "store": cfg.StoreDriver}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	wg.Wait()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

func openStores(ctx context.Context, cfg config.Config, log *logrus.Logger) (stores, error) {
	var st stores
	switch cfg.StoreDriver {
	case config.StoreMemory:
		st = stores{
			games:        memory.NewGameStore(),
			entitlements: memory.NewEntitlementStore(),
			orders:       memory.NewOrderStore(),
		}
	default:
		db, err := database.Open(ctx, cfg.DB)
		if err != nil {
			return stores{}, err
		}
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return stores{}, err
		}
		st = stores{
			games:        repository.NewGameRepo(db),
			entitlements: repository.NewEntitlementRepo(db),
			orders:       repository.NewOrderRepo(db),
			db:           db,
		}
	}

	if cfg.SeedDemoData {
		n, err := database.Seed(ctx, st.games)
		if err != nil {
			if st.db != nil {
				_ = st.db.Close()
			}
			return stores{}, err
		}
		if n > 0 {
			log.WithField("games", n).Info("seeded demo catalog")
		}
	}
	return st, nil
}

func newEcho(log *logrus.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			entry := log.WithFields(logrus.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.String(),
				"ip":      v.RemoteIP,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))
	return e
}

// purger returns the catalog write hook that clears cached reads.
func purger(rdb *redis.Client, prefix string) func(context.Context) error {
	if rdb == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return middleware.PurgeCache(ctx, rdb, prefix)
	}
}
