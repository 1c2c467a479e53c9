// Package resolver turns a stored swap into its current canonical status by
// delegating to the swap's execution strategy.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shapeshift/notification-server/pkg/model"
	"github.com/shapeshift/notification-server/pkg/swapper"
	"go.uber.org/zap"
)

var (
	// ErrMissingSellTxHash is returned when a swap has no sell transaction
	// hash; a status check is impossible without one.
	ErrMissingSellTxHash = errors.New("resolver: swap has no sell tx hash")

	// ErrUnknownSwapper is returned when the swap names an execution
	// strategy that was never registered.
	ErrUnknownSwapper = errors.New("resolver: unknown swapper")
)

// Outcome is the canonicalized result of a status check.
type Outcome struct {
	Status    model.SwapStatus
	BuyTxHash string
	Message   string
}

// Resolver resolves canonical swap status via the swapper registry. Each
// resolution is bounded by Timeout so one unresponsive chain backend cannot
// stall a whole reconciliation tick.
type Resolver struct {
	Swappers *swapper.Registry
	Logger   *zap.Logger
	Timeout  time.Duration
}

// New creates a Resolver with the given per-resolution timeout.
func New(swappers *swapper.Registry, logger *zap.Logger, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Resolver{Swappers: swappers, Logger: logger, Timeout: timeout}
}

// Resolve checks the swap's current on-chain status and maps the strategy's
// native vocabulary to the canonical one: Confirmed becomes SUCCESS, Failed
// becomes FAILED, anything else stays PENDING.
//
// Precondition violations (missing sell hash, unregistered strategy) are
// returned as errors so the caller can skip the swap. Strategy and chain
// query failures are not errors: they produce a PENDING outcome with a
// diagnostic message, because a transient RPC fault must never flip a swap
// to FAILED or halt the rest of the batch.
func (r *Resolver) Resolve(ctx context.Context, swap *model.Swap) (Outcome, error) {
	if swap.SellTxHash == "" {
		return Outcome{}, fmt.Errorf("%w: swap %s", ErrMissingSellTxHash, swap.SwapID)
	}

	sw, ok := r.Swappers.Get(swap.SwapperName)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownSwapper, swap.SwapperName)
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	res, err := sw.CheckStatus(ctx, swapper.StatusCheckInput{
		TxHash:  swap.SellTxHash,
		ChainID: swap.SellAsset.ChainID,
		Address: swap.SellAccountID,
		Swap:    swap,
	})
	if err != nil {
		r.Logger.Warn("Status check failed, keeping swap pending",
			zap.String("swapId", swap.SwapID),
			zap.String("swapper", swap.SwapperName),
			zap.Error(err))
		return Outcome{
			Status:  model.SwapStatusPending,
			Message: fmt.Sprintf("Error polling status: %v", err),
		}, nil
	}

	return Outcome{
		Status:    canonicalize(res.Status),
		BuyTxHash: res.BuyTxHash,
		Message:   res.Message,
	}, nil
}

func canonicalize(s swapper.Status) model.SwapStatus {
	switch s {
	case swapper.StatusConfirmed:
		return model.SwapStatusSuccess
	case swapper.StatusFailed:
		return model.SwapStatusFailed
	default:
		// Interim and unknown strategy states are all retryable.
		return model.SwapStatusPending
	}
}
