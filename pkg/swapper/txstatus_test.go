package swapper

import (
	"context"
	"errors"
	"testing"

	"github.com/shapeshift/notification-server/pkg/chains"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct {
	chainID string
	status  chains.TxStatus
	err     error
}

func (a *stubAdapter) ChainID() string { return a.chainID }

func (a *stubAdapter) TransactionStatus(context.Context, string) (chains.TxStatus, error) {
	return a.status, a.err
}

func TestTxStatusSwapper_Confirmed(t *testing.T) {
	registry := chains.NewRegistry()
	registry.Register("eip155:1", &stubAdapter{chainID: "eip155:1", status: chains.TxStatusConfirmed})

	s := NewTxStatusSwapper("txstatus", registry)

	res, err := s.CheckStatus(context.Background(), StatusCheckInput{
		TxHash:  "0xabc",
		ChainID: "eip155:1",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, res.Status)
}

func TestTxStatusSwapper_Failed(t *testing.T) {
	registry := chains.NewRegistry()
	registry.Register("eip155:1", &stubAdapter{chainID: "eip155:1", status: chains.TxStatusFailed})

	s := NewTxStatusSwapper("txstatus", registry)

	res, err := s.CheckStatus(context.Background(), StatusCheckInput{
		TxHash:  "0xabc",
		ChainID: "eip155:1",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
}

func TestTxStatusSwapper_PendingPassthrough(t *testing.T) {
	registry := chains.NewRegistry()
	registry.Register("eip155:1", &stubAdapter{chainID: "eip155:1", status: chains.TxStatusPending})

	s := NewTxStatusSwapper("txstatus", registry)

	res, err := s.CheckStatus(context.Background(), StatusCheckInput{
		TxHash:  "0xabc",
		ChainID: "eip155:1",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, res.Status)
}

func TestTxStatusSwapper_UnregisteredChain(t *testing.T) {
	s := NewTxStatusSwapper("txstatus", chains.NewRegistry())

	_, err := s.CheckStatus(context.Background(), StatusCheckInput{
		TxHash:  "0xabc",
		ChainID: "eip155:1",
	})
	assert.ErrorIs(t, err, chains.ErrAdapterNotFound)
}

func TestTxStatusSwapper_AdapterError(t *testing.T) {
	registry := chains.NewRegistry()
	boom := errors.New("rpc timeout")
	registry.Register("eip155:1", &stubAdapter{chainID: "eip155:1", err: boom})

	s := NewTxStatusSwapper("txstatus", registry)

	_, err := s.CheckStatus(context.Background(), StatusCheckInput{
		TxHash:  "0xabc",
		ChainID: "eip155:1",
	})
	assert.ErrorIs(t, err, boom)
}
