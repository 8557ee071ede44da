package worker

import (
	"context"
	"time"

	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

const (
	sweeperLockName = "reservation-sweeper"
	// lock TTL in sweep intervals; a sweep that overruns its tick keeps the lock
	sweeperLockIntervals = 3
)

// Locker is a distributed mutex, implemented by *redisclient.Client
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, name, token string) error
}

// CartReleaser returns timed-out cart reservations to stock
type CartReleaser interface {
	ReleaseExpired(ctx context.Context, limit int) (int, error)
}

// OrderExpirer fails orders that stayed PENDING too long
type OrderExpirer interface {
	ExpireStale(ctx context.Context, timeout time.Duration, limit int) (int, error)
}

// SweeperConfig tunes the reservation sweeper
type SweeperConfig struct {
	Interval       time.Duration
	PaymentTimeout time.Duration
	BatchSize      int
}

// ReservationSweeper releases stock held by abandoned carts and unpaid orders.
// Only one replica sweeps per tick.
type ReservationSweeper struct {
	carts  CartReleaser
	orders OrderExpirer
	locker Locker
	cfg    SweeperConfig
	logger *zap.Logger
}

// NewReservationSweeper creates a new sweeper
func NewReservationSweeper(carts CartReleaser, orders OrderExpirer, locker Locker, cfg SweeperConfig) *ReservationSweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &ReservationSweeper{
		carts:  carts,
		orders: orders,
		locker: locker,
		cfg:    cfg,
		logger: util.GetLogger().With(zap.String("worker", "reservation-sweeper")),
	}
}

// Start runs a sweep every interval until ctx is cancelled
func (w *ReservationSweeper) Start(ctx context.Context) error {
	w.logger.Info("Starting reservation sweeper",
		zap.Duration("interval", w.cfg.Interval),
		zap.Duration("payment_timeout", w.cfg.PaymentTimeout))

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping reservation sweeper")
			return ctx.Err()
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("Sweep failed", zap.Error(err))
			}
		}
	}
}

// RunOnce performs a single sweep if the lock can be taken
func (w *ReservationSweeper) RunOnce(ctx context.Context) error {
	token, ok, err := w.locker.AcquireLock(ctx, sweeperLockName, sweeperLockIntervals*w.cfg.Interval)
	if err != nil {
		util.SweeperRunsTotal.WithLabelValues("error").Inc()
		return err
	}
	if !ok {
		util.SweeperRunsTotal.WithLabelValues("skipped").Inc()
		w.logger.Debug("Another replica holds the sweeper lock")
		return nil
	}
	defer func() {
		if err := w.locker.ReleaseLock(context.WithoutCancel(ctx), sweeperLockName, token); err != nil {
			w.logger.Warn("Failed to release sweeper lock", zap.Error(err))
		}
	}()

	lines := 0
	for {
		n, err := w.carts.ReleaseExpired(ctx, w.cfg.BatchSize)
		if err != nil {
			util.SweeperRunsTotal.WithLabelValues("error").Inc()
			return err
		}
		lines += n
		if n < w.cfg.BatchSize {
			break
		}
	}

	orders := 0
	if w.cfg.PaymentTimeout > 0 {
		if orders, err = w.orders.ExpireStale(ctx, w.cfg.PaymentTimeout, w.cfg.BatchSize); err != nil {
			util.SweeperRunsTotal.WithLabelValues("error").Inc()
			return err
		}
	}

	util.SweeperRunsTotal.WithLabelValues("ok").Inc()
	if lines > 0 || orders > 0 {
		w.logger.Info("Sweep finished",
			zap.Int("cart_lines", lines),
			zap.Int("orders", orders))
	}
	return nil
}

// messageSource is the part of *broker.Consumer the sync worker uses
type messageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// InventoryPusher forwards a stock level to the connected marketplaces
type InventoryPusher interface {
	PushInventory(ctx context.Context, event *models.InventoryChangedEvent) error
}

// MarketplaceSyncWorker mirrors InventoryChanged events to marketplaces
type MarketplaceSyncWorker struct {
	consumer     messageSource
	eventHandler *broker.EventHandler
}

// NewMarketplaceSyncWorker creates a new marketplace sync worker
func NewMarketplaceSyncWorker(consumer messageSource, pusher InventoryPusher) *MarketplaceSyncWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnInventoryChanged(pusher.PushInventory)

	return &MarketplaceSyncWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start consumes until ctx is cancelled
func (w *MarketplaceSyncWorker) Start(ctx context.Context) error {
	util.GetLogger().Info("Starting marketplace sync worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop closes the consumer
func (w *MarketplaceSyncWorker) Stop() error {
	util.GetLogger().Info("Stopping marketplace sync worker")
	return w.consumer.Close()
}
