// Package swapper defines the execution strategy contract used to re-check
// a swap's on-chain status. Strategies are external capabilities; the
// reconciliation core only knows their name and this interface.
package swapper

import (
	"context"

	"github.com/shapeshift/notification-server/pkg/model"
)

// Status is a strategy's native status vocabulary. Only Confirmed and
// Failed are meaningful to the core; every other value (including
// strategy-specific interim states) is treated as still in flight.
type Status string

const (
	StatusUnknown   Status = "Unknown"
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
	StatusFailed    Status = "Failed"
)

// StatusCheckInput carries everything a strategy needs to re-check a swap.
// Address holds the hashed sell account id; strategies that need the raw
// address carry it inside the swap metadata they wrote at execution time.
type StatusCheckInput struct {
	TxHash  string
	ChainID string
	Address string
	Swap    *model.Swap
}

// StatusCheckResult is the strategy-native outcome of a status check.
type StatusCheckResult struct {
	Status    Status
	BuyTxHash string
	Message   string
}

// Swapper knows how to check the status of swaps it originated.
type Swapper interface {
	Name() string
	CheckStatus(ctx context.Context, input StatusCheckInput) (StatusCheckResult, error)
}
