package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/shapeshift/notification-server/app/tracker"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := tracker.Initialize(ctx)
	if err != nil {
		panic(err)
	}

	// Immediate pass before cron so swaps that transitioned while the
	// process was down are picked up right away.
	app.ReconcileOnce(ctx)

	// Start cron scheduler
	app.StartCron()

	if serverErr := tracker.NewServer(app); serverErr != nil {
		app.Logger.Fatal("Unable to initialize server", zap.Error(serverErr))
	}

	app.Start(ctx)
}
