package reconciler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shapeshift/notification-server/pkg/model"
	"github.com/shapeshift/notification-server/pkg/resolver"
	"github.com/shapeshift/notification-server/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSwapStore struct {
	mu    sync.Mutex
	swaps map[string]*model.Swap

	findErr   error
	updateErr map[string]error
	updates   []storage.SwapUpdate
}

func newFakeSwapStore(swaps ...*model.Swap) *fakeSwapStore {
	s := &fakeSwapStore{swaps: make(map[string]*model.Swap), updateErr: make(map[string]error)}
	for _, sw := range swaps {
		s.swaps[sw.SwapID] = sw
	}
	return s
}

func (s *fakeSwapStore) Create(_ context.Context, swap *model.Swap) (*model.Swap, error) {
	s.swaps[swap.SwapID] = swap
	return swap, nil
}

func (s *fakeSwapStore) FindNonTerminal(context.Context) ([]*model.Swap, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	var out []*model.Swap
	for _, sw := range s.swaps {
		if !sw.Status.Terminal() {
			out = append(out, sw)
		}
	}
	return out, nil
}

func (s *fakeSwapStore) FindBySwapID(_ context.Context, swapID string) (*model.Swap, error) {
	sw, ok := s.swaps[swapID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return sw, nil
}

func (s *fakeSwapStore) FindByUser(context.Context, string, int) ([]*model.Swap, error) {
	return nil, nil
}

func (s *fakeSwapStore) FindByAccountID(context.Context, string) ([]*model.Swap, error) {
	return nil, nil
}

func (s *fakeSwapStore) UpdateStatus(_ context.Context, swapID string, upd storage.SwapUpdate) (*model.Swap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.updateErr[swapID]; ok {
		return nil, err
	}
	sw, ok := s.swaps[swapID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	sw.Status = upd.Status
	sw.StatusMessage = upd.StatusMessage
	if upd.BuyTxHash != "" {
		sw.BuyTxHash = upd.BuyTxHash
	}
	s.updates = append(s.updates, upd)
	return sw, nil
}

type fakeResolver struct {
	outcomes map[string]resolver.Outcome
	errs     map[string]error
}

func (f *fakeResolver) Resolve(_ context.Context, swap *model.Swap) (resolver.Outcome, error) {
	if err, ok := f.errs[swap.SwapID]; ok {
		return resolver.Outcome{}, err
	}
	if out, ok := f.outcomes[swap.SwapID]; ok {
		return out, nil
	}
	return resolver.Outcome{Status: swap.Status}, nil
}

type fakeHandler struct {
	mu      sync.Mutex
	swapIDs []string
	err     error
}

func (f *fakeHandler) OnTransition(_ context.Context, swap *model.Swap) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.swapIDs = append(f.swapIDs, swap.SwapID)
	return f.err
}

func pendingSwap(id string) *model.Swap {
	return &model.Swap{
		SwapID:      id,
		UserID:      "user-1",
		Status:      model.SwapStatusPending,
		SellTxHash:  "0xsell-" + id,
		SwapperName: "tx-status",
	}
}

func TestTick_TransitionsAndDispatches(t *testing.T) {
	store := newFakeSwapStore(pendingSwap("a"), pendingSwap("b"))
	res := &fakeResolver{outcomes: map[string]resolver.Outcome{
		"a": {Status: model.SwapStatusSuccess, BuyTxHash: "0xbuy"},
		"b": {Status: model.SwapStatusPending},
	}}
	handler := &fakeHandler{}
	r := New(store, res, handler, zap.NewNop(), 4)

	report, err := r.Tick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Transitioned)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 0, report.Failed)

	assert.Equal(t, []string{"a"}, handler.swapIDs)
	assert.Equal(t, model.SwapStatusSuccess, store.swaps["a"].Status)
	assert.Equal(t, "0xbuy", store.swaps["a"].BuyTxHash)
	assert.Equal(t, model.SwapStatusPending, store.swaps["b"].Status)
}

func TestTick_OneFailureDoesNotAbortBatch(t *testing.T) {
	store := newFakeSwapStore(pendingSwap("a"), pendingSwap("b"), pendingSwap("c"))
	store.updateErr["b"] = errors.New("db write failed")
	res := &fakeResolver{outcomes: map[string]resolver.Outcome{
		"a": {Status: model.SwapStatusSuccess},
		"b": {Status: model.SwapStatusSuccess},
		"c": {Status: model.SwapStatusFailed, Message: "refunded"},
	}}
	handler := &fakeHandler{}
	r := New(store, res, handler, zap.NewNop(), 1)

	report, err := r.Tick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Transitioned)
	assert.Equal(t, 1, report.Failed)
	assert.ElementsMatch(t, []string{"a", "c"}, handler.swapIDs)
	assert.Equal(t, model.SwapStatusPending, store.swaps["b"].Status)
}

func TestTick_PreconditionFailureIsSkipped(t *testing.T) {
	store := newFakeSwapStore(pendingSwap("a"))
	res := &fakeResolver{errs: map[string]error{"a": resolver.ErrMissingSellTxHash}}
	r := New(store, res, &fakeHandler{}, zap.NewNop(), 2)

	report, err := r.Tick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Transitioned)
	assert.Equal(t, 0, report.Failed)
	assert.True(t, report.Results[0].Skipped)
}

func TestTick_EmptyBacklog(t *testing.T) {
	store := newFakeSwapStore()
	r := New(store, &fakeResolver{}, &fakeHandler{}, zap.NewNop(), 2)

	report, err := r.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Total)
}

func TestTick_BacklogLoadFailure(t *testing.T) {
	store := newFakeSwapStore()
	store.findErr = errors.New("connection refused")
	r := New(store, &fakeResolver{}, &fakeHandler{}, zap.NewNop(), 2)

	_, err := r.Tick(context.Background())
	assert.Error(t, err)
}

func TestTick_DispatchFailureCountsAsFailedButPersists(t *testing.T) {
	store := newFakeSwapStore(pendingSwap("a"))
	res := &fakeResolver{outcomes: map[string]resolver.Outcome{
		"a": {Status: model.SwapStatusSuccess},
	}}
	handler := &fakeHandler{err: errors.New("push gateway down")}
	r := New(store, res, handler, zap.NewNop(), 1)

	report, err := r.Tick(context.Background())
	require.NoError(t, err)

	// Transition was persisted even though dispatch failed.
	assert.Equal(t, model.SwapStatusSuccess, store.swaps["a"].Status)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 0, report.Transitioned)
}

func TestPollOnce_TerminalSwapUntouched(t *testing.T) {
	swap := pendingSwap("a")
	swap.Status = model.SwapStatusSuccess
	store := newFakeSwapStore(swap)
	res := &fakeResolver{outcomes: map[string]resolver.Outcome{
		"a": {Status: model.SwapStatusFailed},
	}}
	handler := &fakeHandler{}
	r := New(store, res, handler, zap.NewNop(), 1)

	got, err := r.PollOnce(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, model.SwapStatusSuccess, got.Status)
	assert.Empty(t, handler.swapIDs)
}

func TestPollOnce_UnchangedIsNoOp(t *testing.T) {
	store := newFakeSwapStore(pendingSwap("a"))
	res := &fakeResolver{outcomes: map[string]resolver.Outcome{
		"a": {Status: model.SwapStatusPending},
	}}
	handler := &fakeHandler{}
	r := New(store, res, handler, zap.NewNop(), 1)

	got, err := r.PollOnce(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, model.SwapStatusPending, got.Status)
	assert.Empty(t, store.updates)
	assert.Empty(t, handler.swapIDs)
}

func TestPollOnce_Transition(t *testing.T) {
	store := newFakeSwapStore(pendingSwap("a"))
	res := &fakeResolver{outcomes: map[string]resolver.Outcome{
		"a": {Status: model.SwapStatusSuccess, BuyTxHash: "0xbuy"},
	}}
	handler := &fakeHandler{}
	r := New(store, res, handler, zap.NewNop(), 1)

	got, err := r.PollOnce(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, model.SwapStatusSuccess, got.Status)
	assert.Equal(t, []string{"a"}, handler.swapIDs)
}

func TestPollOnce_UnknownSwap(t *testing.T) {
	store := newFakeSwapStore()
	r := New(store, &fakeResolver{}, &fakeHandler{}, zap.NewNop(), 1)

	_, err := r.PollOnce(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
