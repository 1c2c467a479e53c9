package evm

import (
	"context"

	"github.com/shapeshift/notification-server/pkg/chains"
)

// Adapter resolves transaction status on an EVM chain. It satisfies
// chains.EvmAdapter.
type Adapter struct {
	chainID string
	client  *rpcClient
}

var _ chains.EvmAdapter = (*Adapter)(nil)

// New creates an Adapter for the given chain backed by the configured
// JSON-RPC endpoints.
func New(chainID string, opts Opts) *Adapter {
	return &Adapter{
		chainID: chainID,
		client:  newRPCClient(opts),
	}
}

// ChainID returns the adapter's chain identifier.
func (a *Adapter) ChainID() string { return a.chainID }

type receipt struct {
	Status string `json:"status"`
}

type transaction struct {
	Hash string `json:"hash"`
}

// TransactionStatus maps a receipt's status field to the chain-level
// vocabulary. A missing receipt means the transaction is still in the
// mempool when the node knows the hash, and Unknown when it doesn't.
func (a *Adapter) TransactionStatus(ctx context.Context, txHash string) (chains.TxStatus, error) {
	var rcpt *receipt
	if err := a.client.call(ctx, "eth_getTransactionReceipt", []any{txHash}, &rcpt); err != nil {
		return chains.TxStatusUnknown, err
	}

	if rcpt == nil {
		var tx *transaction
		if err := a.client.call(ctx, "eth_getTransactionByHash", []any{txHash}, &tx); err != nil {
			return chains.TxStatusUnknown, err
		}
		if tx == nil {
			return chains.TxStatusUnknown, nil
		}
		return chains.TxStatusPending, nil
	}

	switch rcpt.Status {
	case "0x1":
		return chains.TxStatusConfirmed, nil
	case "0x0":
		return chains.TxStatusFailed, nil
	default:
		// Pre-Byzantium receipts carry no status field.
		return chains.TxStatusConfirmed, nil
	}
}

// IsSmartContractAddress reports whether the address has deployed code.
func (a *Adapter) IsSmartContractAddress(ctx context.Context, address string) (bool, error) {
	var code string
	if err := a.client.call(ctx, "eth_getCode", []any{address, "latest"}, &code); err != nil {
		return false, err
	}
	return code != "" && code != "0x", nil
}
