package chains

import (
	"errors"
	"fmt"

	"github.com/puzpuzpuz/xsync/v4"
)

var (
	// ErrAdapterNotFound is returned when no adapter was registered for the
	// requested chain id.
	ErrAdapterNotFound = errors.New("chains: adapter not found")

	// ErrAdapterTypeMismatch is returned when the registered adapter does
	// not satisfy the chain family the caller requires.
	ErrAdapterTypeMismatch = errors.New("chains: adapter type mismatch")
)

// Registry maps chain ids to adapters. It is populated once at process
// start and read concurrently afterwards; registration is last-write-wins.
// Adapters for unrelated chain families share only the base Adapter
// capability, so the typed accessors perform a checked interface assertion
// instead of trusting the caller.
type Registry struct {
	adapters *xsync.Map[string, Adapter]
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{adapters: xsync.NewMap[string, Adapter]()}
}

// Register binds an adapter to a chain id, replacing any previous binding.
func (r *Registry) Register(chainID string, adapter Adapter) {
	r.adapters.Store(chainID, adapter)
}

// Get returns the adapter for a chain id without a family check.
func (r *Registry) Get(chainID string) (Adapter, error) {
	adapter, ok := r.adapters.Load(chainID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAdapterNotFound, chainID)
	}
	return adapter, nil
}

// AssertGetEvm returns the adapter for chainID as an EvmAdapter.
func (r *Registry) AssertGetEvm(chainID string) (EvmAdapter, error) {
	adapter, err := r.Get(chainID)
	if err != nil {
		return nil, err
	}
	evm, ok := adapter.(EvmAdapter)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an EVM chain", ErrAdapterTypeMismatch, chainID)
	}
	return evm, nil
}

// AssertGetUtxo returns the adapter for chainID as a UtxoAdapter.
func (r *Registry) AssertGetUtxo(chainID string) (UtxoAdapter, error) {
	adapter, err := r.Get(chainID)
	if err != nil {
		return nil, err
	}
	utxo, ok := adapter.(UtxoAdapter)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a UTXO chain", ErrAdapterTypeMismatch, chainID)
	}
	return utxo, nil
}

// AssertGetCosmosSdk returns the adapter for chainID as a CosmosSdkAdapter.
func (r *Registry) AssertGetCosmosSdk(chainID string) (CosmosSdkAdapter, error) {
	adapter, err := r.Get(chainID)
	if err != nil {
		return nil, err
	}
	cosmos, ok := adapter.(CosmosSdkAdapter)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a Cosmos-SDK chain", ErrAdapterTypeMismatch, chainID)
	}
	return cosmos, nil
}

// AssertGetSolana returns the adapter for chainID as a SolanaAdapter.
func (r *Registry) AssertGetSolana(chainID string) (SolanaAdapter, error) {
	adapter, err := r.Get(chainID)
	if err != nil {
		return nil, err
	}
	solana, ok := adapter.(SolanaAdapter)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a Solana chain", ErrAdapterTypeMismatch, chainID)
	}
	return solana, nil
}
