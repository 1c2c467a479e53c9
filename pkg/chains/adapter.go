// Package chains models read access to external blockchains as per-family
// adapter capabilities and a process-scoped registry keyed by chain id.
package chains

import "context"

// TxStatus is the chain-level view of a transaction.
type TxStatus string

const (
	TxStatusUnknown   TxStatus = "Unknown"
	TxStatusPending   TxStatus = "Pending"
	TxStatusConfirmed TxStatus = "Confirmed"
	TxStatusFailed    TxStatus = "Failed"
)

// Adapter is the capability every chain family provides: identity plus
// transaction lookup. Adapters perform network I/O against a node or
// indexer; callers bound them with a context deadline.
type Adapter interface {
	ChainID() string
	TransactionStatus(ctx context.Context, txHash string) (TxStatus, error)
}

// EvmAdapter covers account-model EVM chains.
type EvmAdapter interface {
	Adapter
	IsSmartContractAddress(ctx context.Context, address string) (bool, error)
}

// UtxoAdapter covers UTXO chains.
type UtxoAdapter interface {
	Adapter
	TransactionConfirmations(ctx context.Context, txHash string) (uint64, error)
}

// CosmosSdkAdapter covers Cosmos-SDK chains.
type CosmosSdkAdapter interface {
	Adapter
	AccountSequence(ctx context.Context, address string) (uint64, error)
}

// SolanaAdapter covers Solana.
type SolanaAdapter interface {
	Adapter
	LatestBlockhash(ctx context.Context) (string, error)
}
