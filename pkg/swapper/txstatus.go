package swapper

import (
	"context"
	"fmt"

	"github.com/shapeshift/notification-server/pkg/chains"
)

// TxStatusSwapper is the default strategy: it resolves swap status from the
// sell transaction alone, via the chain adapter registered for the sell
// chain. Venue-specific strategies replace it when the sell-side receipt is
// not enough to conclude the swap settled.
type TxStatusSwapper struct {
	name     string
	registry *chains.Registry
}

// NewTxStatusSwapper creates a TxStatusSwapper registered under name.
func NewTxStatusSwapper(name string, registry *chains.Registry) *TxStatusSwapper {
	return &TxStatusSwapper{name: name, registry: registry}
}

var _ Swapper = (*TxStatusSwapper)(nil)

func (s *TxStatusSwapper) Name() string { return s.name }

// CheckStatus queries the sell chain for the sell transaction's status and
// translates it to the strategy vocabulary.
func (s *TxStatusSwapper) CheckStatus(ctx context.Context, input StatusCheckInput) (StatusCheckResult, error) {
	adapter, err := s.registry.Get(input.ChainID)
	if err != nil {
		return StatusCheckResult{}, fmt.Errorf("resolve adapter for %s: %w", input.ChainID, err)
	}

	status, err := adapter.TransactionStatus(ctx, input.TxHash)
	if err != nil {
		return StatusCheckResult{}, fmt.Errorf("query tx status on %s: %w", input.ChainID, err)
	}

	switch status {
	case chains.TxStatusConfirmed:
		return StatusCheckResult{
			Status:  StatusConfirmed,
			Message: "sell transaction confirmed",
		}, nil
	case chains.TxStatusFailed:
		return StatusCheckResult{
			Status:  StatusFailed,
			Message: "sell transaction failed on chain",
		}, nil
	default:
		return StatusCheckResult{
			Status:  StatusPending,
			Message: fmt.Sprintf("sell transaction %s", status),
		}, nil
	}
}
