package evm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shapeshift/notification-server/pkg/chains"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpcHandler answers JSON-RPC requests with canned results per method.
func rpcHandler(t *testing.T, results map[string]any) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, ok := results[req.Method]
		if !ok {
			t.Fatalf("unexpected method %s", req.Method)
		}
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}
}

func newTestAdapter(srv *httptest.Server) *Adapter {
	return New("eip155:1", Opts{Endpoints: []string{srv.URL}})
}

func TestTransactionStatus_Confirmed(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, map[string]any{
		"eth_getTransactionReceipt": map[string]string{"status": "0x1"},
	}))
	defer srv.Close()

	status, err := newTestAdapter(srv).TransactionStatus(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, chains.TxStatusConfirmed, status)
}

func TestTransactionStatus_Failed(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, map[string]any{
		"eth_getTransactionReceipt": map[string]string{"status": "0x0"},
	}))
	defer srv.Close()

	status, err := newTestAdapter(srv).TransactionStatus(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, chains.TxStatusFailed, status)
}

func TestTransactionStatus_PendingWhenNoReceipt(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, map[string]any{
		"eth_getTransactionReceipt": nil,
		"eth_getTransactionByHash":  map[string]string{"hash": "0xabc"},
	}))
	defer srv.Close()

	status, err := newTestAdapter(srv).TransactionStatus(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, chains.TxStatusPending, status)
}

func TestTransactionStatus_UnknownHash(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, map[string]any{
		"eth_getTransactionReceipt": nil,
		"eth_getTransactionByHash":  nil,
	}))
	defer srv.Close()

	status, err := newTestAdapter(srv).TransactionStatus(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, chains.TxStatusUnknown, status)
}

func TestIsSmartContractAddress(t *testing.T) {
	srv := httptest.NewServer(rpcHandler(t, map[string]any{
		"eth_getCode": "0x6080604052",
	}))
	defer srv.Close()

	isContract, err := newTestAdapter(srv).IsSmartContractAddress(context.Background(), "0xdead")
	require.NoError(t, err)
	assert.True(t, isContract)

	eoa := httptest.NewServer(rpcHandler(t, map[string]any{
		"eth_getCode": "0x",
	}))
	defer eoa.Close()

	isContract, err = newTestAdapter(eoa).IsSmartContractAddress(context.Background(), "0xbeef")
	require.NoError(t, err)
	assert.False(t, isContract)
}

func TestCall_FailsOverToHealthyEndpoint(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	good := httptest.NewServer(rpcHandler(t, map[string]any{
		"eth_getTransactionReceipt": map[string]string{"status": "0x1"},
	}))
	defer good.Close()

	adapter := New("eip155:1", Opts{Endpoints: []string{bad.URL, good.URL}})
	status, err := adapter.TransactionStatus(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, chains.TxStatusConfirmed, status)
}

func TestCall_RPCErrorIsNotRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]any{"code": -32602, "message": "invalid params"},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	_, err := newTestAdapter(srv).TransactionStatus(context.Background(), "not-a-hash")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid params")
}
