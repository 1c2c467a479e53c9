package types

import (
	"context"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shapeshift/notification-server/pkg/chains"
	"github.com/shapeshift/notification-server/pkg/fanout"
	"github.com/shapeshift/notification-server/pkg/notify"
	"github.com/shapeshift/notification-server/pkg/privacy"
	"github.com/shapeshift/notification-server/pkg/reconciler"
	"github.com/shapeshift/notification-server/pkg/redis"
	"github.com/shapeshift/notification-server/pkg/resolver"
	"github.com/shapeshift/notification-server/pkg/storage"
	"github.com/shapeshift/notification-server/pkg/storage/postgres"
	"github.com/shapeshift/notification-server/pkg/swapper"
	"go.uber.org/zap"
)

// App holds the wired components of the swap tracker. The reconciler
// converges stored swap state with on-chain reality every Cron tick; the
// HTTP server exposes swap, notification, device, and websocket endpoints.
type App struct {
	Pool *postgres.Pool

	Swaps         storage.SwapStore
	Notifications storage.NotificationStore
	Devices       storage.DeviceStore

	// RedisClient backs cross-process websocket fanout. Nil when Redis is
	// disabled; realtime delivery then reaches local sessions only.
	RedisClient *redis.Client

	Chains   *chains.Registry
	Swappers *swapper.Registry
	Hasher   privacy.AccountHasher

	Resolver   *resolver.Resolver
	Reconciler *reconciler.Reconciler
	Dispatcher *notify.Dispatcher
	Fanout     *fanout.Fanout

	// Cron triggers reconciliation ticks according to CronSpec.
	Cron     *cron.Cron
	CronSpec string

	Logger *zap.Logger

	// Server is the HTTP server that serves the API.
	Server *http.Server
}

// SetupScheduler sets up the cron scheduler.
func (a *App) SetupScheduler(ctx context.Context, logger cron.Logger, cronSpec string) error {
	// Seconds field, optional
	a.Cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))

	_, err := a.Cron.AddFunc(cronSpec, func() {
		// keep each run bounded
		rctx, cancel := context.WithTimeout(ctx, 4*time.Minute)
		defer cancel()
		if _, err := a.Reconciler.Tick(rctx); err != nil {
			logger.Info("[tracker] reconcile error", "error", err)
		}
	})
	if err != nil {
		return err
	}

	return nil
}

// StartCron starts the cron scheduler.
func (a *App) StartCron() {
	a.Cron.Start()
	a.Logger.Info("[tracker] Cron started", zap.String("cronSpec", a.CronSpec))
}

// StopCron stops the cron scheduler.
func (a *App) StopCron() {
	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}
}

// ReconcileOnce runs a single reconciliation pass outside the cron cycle,
// typically at startup so swaps that transitioned while the process was
// down are picked up immediately.
func (a *App) ReconcileOnce(ctx context.Context) {
	if _, err := a.Reconciler.Tick(ctx); err != nil {
		a.Logger.Error("Startup reconcile pass failed", zap.Error(err))
	}
}

// Start starts the application and blocks until the context is cancelled.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	a.Logger.Info("[tracker] shutting down")
	a.StopCron()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.Server.Shutdown(shutdownCtx)

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	time.Sleep(200 * time.Millisecond)
}
