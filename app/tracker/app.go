// Package tracker wires the swap tracker server: storage, chain adapters,
// swapper strategies, the reconciliation scheduler, and the notification
// pipeline.
package tracker

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/shapeshift/notification-server/app/tracker/types"
	"github.com/shapeshift/notification-server/pkg/chains"
	"github.com/shapeshift/notification-server/pkg/chains/evm"
	"github.com/shapeshift/notification-server/pkg/fanout"
	"github.com/shapeshift/notification-server/pkg/logging"
	"github.com/shapeshift/notification-server/pkg/notify"
	"github.com/shapeshift/notification-server/pkg/privacy"
	"github.com/shapeshift/notification-server/pkg/push"
	"github.com/shapeshift/notification-server/pkg/reconciler"
	"github.com/shapeshift/notification-server/pkg/redis"
	"github.com/shapeshift/notification-server/pkg/resolver"
	"github.com/shapeshift/notification-server/pkg/storage/postgres"
	"github.com/shapeshift/notification-server/pkg/swapper"
	"github.com/shapeshift/notification-server/pkg/utils"
	"go.uber.org/zap"
)

// DefaultCronSpec polls non-terminal swaps every five seconds.
const DefaultCronSpec = "*/5 * * * * *"

// Initialize initializes the application.
func Initialize(ctx context.Context) (*types.App, error) {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	pool, err := postgres.NewPool(ctx)
	if err != nil {
		logger.Fatal("Unable to initialize database pool", zap.Error(err))
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		logger.Fatal("Unable to run database migrations", zap.Error(err))
	}

	// Redis backs cross-process websocket fanout (optional).
	var redisClient *redis.Client
	if utils.Env("REDIS_ENABLED", "false") == "true" {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - realtime events stay process-local",
				zap.Error(err))
			redisClient = nil
		} else {
			logger.Info("Redis client initialized for realtime event fanout")
		}
	} else {
		logger.Info("Redis disabled - realtime events stay process-local")
	}

	chainRegistry := chains.NewRegistry()
	registerEvmAdapters(chainRegistry, logger)

	swapperRegistry := swapper.NewRegistry()
	for _, name := range swapperNames() {
		swapperRegistry.Register(swapper.NewTxStatusSwapper(name, chainRegistry))
	}

	res := resolver.New(swapperRegistry, logger,
		utils.EnvDuration("RESOLVE_TIMEOUT", 0))

	var broadcaster fanout.Broadcaster
	if redisClient != nil {
		broadcaster = redisClient
	}
	fan := fanout.New(broadcaster, logger)

	swaps := postgres.NewSwapStore(pool)
	notifications := postgres.NewNotificationStore(pool)
	devices := postgres.NewDeviceStore(pool)

	dispatcher := notify.NewDispatcher(
		notifications,
		devices,
		push.NewExpoGateway(logger),
		fan,
		logger,
	)

	rec := reconciler.New(swaps, res, dispatcher, logger,
		utils.EnvInt("RECONCILE_WORKERS", 0))

	app := &types.App{
		Pool:          pool,
		Swaps:         swaps,
		Notifications: notifications,
		Devices:       devices,
		RedisClient:   redisClient,
		Chains:        chainRegistry,
		Swappers:      swapperRegistry,
		Hasher:        privacy.NewSaltedSHA256(utils.Env("ACCOUNT_HASH_SALT", "")),
		Resolver:      res,
		Reconciler:    rec,
		Dispatcher:    dispatcher,
		Fanout:        fan,
		CronSpec:      utils.Env("RECONCILE_CRON", DefaultCronSpec),
		Logger:        logger,
	}

	if err := app.SetupScheduler(ctx, cron.DefaultLogger, app.CronSpec); err != nil {
		return nil, err
	}

	return app, nil
}

// swapperNames returns the execution strategies to register. Every name
// resolves status the same way for now: by looking the sell transaction up
// on its chain.
func swapperNames() []string {
	raw := utils.Env("SWAPPERS", "thorchain,mayachain,chainflip,relay,jupiter,0x,portals,cowswap")
	var names []string
	for _, n := range strings.Split(raw, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// registerEvmAdapters wires one EVM adapter per entry of EVM_RPC_ENDPOINTS,
// a JSON object mapping chain id to its JSON-RPC endpoint list, e.g.
// {"eip155:1": ["https://eth.example.com"]}.
func registerEvmAdapters(registry *chains.Registry, logger *zap.Logger) {
	raw := utils.Env("EVM_RPC_ENDPOINTS", "")
	if raw == "" {
		return
	}

	endpoints := map[string][]string{}
	if err := json.Unmarshal([]byte(raw), &endpoints); err != nil {
		logger.Error("Invalid EVM_RPC_ENDPOINTS, no EVM adapters registered", zap.Error(err))
		return
	}

	for chainID, eps := range endpoints {
		if len(eps) == 0 {
			continue
		}
		registry.Register(chainID, evm.New(chainID, evm.Opts{Endpoints: eps}))
		logger.Info("Registered EVM chain adapter",
			zap.String("chainId", chainID),
			zap.Int("endpoints", len(eps)))
	}
}
