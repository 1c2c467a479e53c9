// Package reconciler drives the polling loop that converges stored swap
// state with on-chain reality. Each tick loads every non-terminal swap,
// resolves its current status on a bounded worker pool, persists detected
// transitions, and hands each transition to the notification dispatcher.
package reconciler

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/shapeshift/notification-server/pkg/model"
	"github.com/shapeshift/notification-server/pkg/resolver"
	"github.com/shapeshift/notification-server/pkg/storage"
	"go.uber.org/zap"
)

// StatusResolver resolves a swap's current canonical status.
type StatusResolver interface {
	Resolve(ctx context.Context, swap *model.Swap) (resolver.Outcome, error)
}

// TransitionHandler receives every persisted status transition. Handlers
// must tolerate being called more than once for the same transition: a
// crash between persist and handle means the next manual poll may replay
// it.
type TransitionHandler interface {
	OnTransition(ctx context.Context, swap *model.Swap) error
}

// Result records what happened to a single swap during a tick. One swap's
// failure never aborts the batch, so the report carries a Result per swap
// instead of a single error.
type Result struct {
	SwapID       string
	From         model.SwapStatus
	To           model.SwapStatus
	Transitioned bool

	// Skipped is set when the swap could not be checked at all, e.g. it
	// has no sell tx hash yet or names an unregistered swapper.
	Skipped bool

	Err error
}

// TickReport summarizes one reconciliation pass.
type TickReport struct {
	StartedAt    time.Time
	Duration     time.Duration
	Total        int
	Transitioned int
	Skipped      int
	Failed       int
	Results      []Result
}

// Reconciler polls non-terminal swaps and applies detected transitions.
type Reconciler struct {
	Swaps    storage.SwapStore
	Resolver StatusResolver
	Handler  TransitionHandler
	Logger   *zap.Logger

	// Workers bounds per-tick concurrency so a large backlog cannot open
	// an unbounded number of chain connections.
	Workers int
}

// DefaultWorkers returns the per-tick concurrency bound.
func DefaultWorkers() int {
	n := runtime.NumCPU() * 4
	if n > 64 {
		n = 64
	}
	if n < 1 {
		n = 1
	}
	return n
}

// New creates a Reconciler.
func New(swaps storage.SwapStore, res StatusResolver, handler TransitionHandler, logger *zap.Logger, workers int) *Reconciler {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	return &Reconciler{
		Swaps:    swaps,
		Resolver: res,
		Handler:  handler,
		Logger:   logger,
		Workers:  workers,
	}
}

// Tick runs one reconciliation pass over every non-terminal swap. Swaps are
// checked concurrently on a bounded pool; per-swap failures are absorbed
// into the report. Tick itself only fails when the backlog cannot be
// loaded.
func (r *Reconciler) Tick(ctx context.Context) (*TickReport, error) {
	started := time.Now()

	swaps, err := r.Swaps.FindNonTerminal(ctx)
	if err != nil {
		return nil, err
	}

	report := &TickReport{
		StartedAt: started,
		Total:     len(swaps),
		Results:   make([]Result, len(swaps)),
	}
	if len(swaps) == 0 {
		report.Duration = time.Since(started)
		return report, nil
	}

	pool := pond.NewPool(r.Workers)
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for i, swap := range swaps {
		group.Submit(func() {
			if err := groupCtx.Err(); err != nil {
				report.Results[i] = Result{SwapID: swap.SwapID, From: swap.Status, To: swap.Status, Err: err}
				return
			}
			report.Results[i] = r.reconcileOne(groupCtx, swap)
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		r.Logger.Warn("Reconcile group finished with error", zap.Error(err))
	}

	for _, res := range report.Results {
		switch {
		case res.Err != nil:
			report.Failed++
		case res.Skipped:
			report.Skipped++
		case res.Transitioned:
			report.Transitioned++
		}
	}
	report.Duration = time.Since(started)

	r.Logger.Info("Reconcile tick complete",
		zap.Int("total", report.Total),
		zap.Int("transitioned", report.Transitioned),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration))

	return report, nil
}

// PollOnce reconciles a single swap by external id, outside the cron cycle.
// Terminal swaps are returned as-is without a status check. When the
// resolved status matches the stored one nothing is persisted or
// dispatched.
func (r *Reconciler) PollOnce(ctx context.Context, swapID string) (*model.Swap, error) {
	swap, err := r.Swaps.FindBySwapID(ctx, swapID)
	if err != nil {
		return nil, err
	}
	if swap.Status.Terminal() {
		return swap, nil
	}

	res := r.reconcileOne(ctx, swap)
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Skipped || !res.Transitioned {
		return swap, nil
	}

	return r.Swaps.FindBySwapID(ctx, swapID)
}

func (r *Reconciler) reconcileOne(ctx context.Context, swap *model.Swap) Result {
	res := Result{SwapID: swap.SwapID, From: swap.Status, To: swap.Status}

	outcome, err := r.Resolver.Resolve(ctx, swap)
	if err != nil {
		// Precondition failures (no sell hash yet, unknown swapper) are
		// expected for freshly created swaps; the next tick retries.
		r.Logger.Debug("Skipping swap",
			zap.String("swapId", swap.SwapID),
			zap.Error(err))
		res.Skipped = true
		return res
	}

	res.To = outcome.Status
	if outcome.Status == swap.Status {
		return res
	}

	updated, err := r.Swaps.UpdateStatus(ctx, swap.SwapID, storage.SwapUpdate{
		Status:        outcome.Status,
		StatusMessage: outcome.Message,
		BuyTxHash:     outcome.BuyTxHash,
	})
	if err != nil {
		r.Logger.Error("Failed to persist swap transition",
			zap.String("swapId", swap.SwapID),
			zap.String("from", string(swap.Status)),
			zap.String("to", string(outcome.Status)),
			zap.Error(err))
		res.Err = err
		return res
	}
	res.Transitioned = true

	r.Logger.Info("Swap status transitioned",
		zap.String("swapId", updated.SwapID),
		zap.String("from", string(swap.Status)),
		zap.String("to", string(updated.Status)))

	if err := r.Handler.OnTransition(ctx, updated); err != nil {
		// The transition is already durable; dispatch failures are
		// reported but must not fail the swap.
		r.Logger.Error("Transition handler failed",
			zap.String("swapId", updated.SwapID),
			zap.Error(err))
		res.Err = err
	}
	return res
}
