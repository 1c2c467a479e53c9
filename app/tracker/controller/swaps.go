package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shapeshift/notification-server/pkg/model"
	"github.com/shapeshift/notification-server/pkg/storage"
	"go.uber.org/zap"
)

// createSwapRequest is the registration payload. Account identifiers arrive
// raw and are hashed before anything touches storage.
type createSwapRequest struct {
	SwapID string `json:"swapId"`
	UserID string `json:"userId"`

	SellAsset model.AssetRef `json:"sellAsset"`
	BuyAsset  model.AssetRef `json:"buyAsset"`

	SellAmountCryptoBaseUnit         string `json:"sellAmountCryptoBaseUnit"`
	ExpectedBuyAmountCryptoBaseUnit  string `json:"expectedBuyAmountCryptoBaseUnit"`
	SellAmountCryptoPrecision        string `json:"sellAmountCryptoPrecision"`
	ExpectedBuyAmountCryptoPrecision string `json:"expectedBuyAmountCryptoPrecision"`

	Source      string `json:"source"`
	SwapperName string `json:"swapperName"`

	SellAccountID  string `json:"sellAccountId"`
	BuyAccountID   string `json:"buyAccountId"`
	ReceiveAddress string `json:"receiveAddress"`
	SellTxHash     string `json:"sellTxHash"`
	TxLink         string `json:"txLink"`

	IsStreaming bool   `json:"isStreaming"`
	Metadata    string `json:"metadata"`
}

// HandleCreateSwap registers a swap for tracking. New swaps start IDLE and
// enter the reconciliation cycle on the next tick.
func (c *Controller) HandleCreateSwap(w http.ResponseWriter, r *http.Request) {
	var req createSwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SwapID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "swapId and userId are required")
		return
	}
	if req.SellAccountID == "" {
		writeError(w, http.StatusBadRequest, "sellAccountId is required")
		return
	}

	swap := &model.Swap{
		SwapID:                           req.SwapID,
		UserID:                           req.UserID,
		SellAsset:                        req.SellAsset,
		BuyAsset:                         req.BuyAsset,
		SellAmountCryptoBaseUnit:         req.SellAmountCryptoBaseUnit,
		ExpectedBuyAmountCryptoBaseUnit:  req.ExpectedBuyAmountCryptoBaseUnit,
		SellAmountCryptoPrecision:        req.SellAmountCryptoPrecision,
		ExpectedBuyAmountCryptoPrecision: req.ExpectedBuyAmountCryptoPrecision,
		Status:                           model.SwapStatusIdle,
		Source:                           req.Source,
		SwapperName:                      req.SwapperName,
		SellAccountID:                    c.App.Hasher.Hash(req.SellAccountID),
		ReceiveAddress:                   req.ReceiveAddress,
		SellTxHash:                       req.SellTxHash,
		TxLink:                           req.TxLink,
		IsStreaming:                      req.IsStreaming,
		Metadata:                         req.Metadata,
	}
	if req.BuyAccountID != "" {
		swap.BuyAccountID = c.App.Hasher.Hash(req.BuyAccountID)
	}

	created, err := c.App.Swaps.Create(r.Context(), swap)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeError(w, http.StatusConflict, "swap already registered")
			return
		}
		c.App.Logger.Error("Failed to create swap", zap.String("swapId", req.SwapID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create swap")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// HandleUserSwaps returns a user's swaps, newest first.
func (c *Controller) HandleUserSwaps(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	swaps, err := c.App.Swaps.FindByUser(r.Context(), userID, limit)
	if err != nil {
		c.App.Logger.Error("Failed to query swaps by user", zap.String("userId", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if swaps == nil {
		swaps = []*model.Swap{}
	}

	writeJSON(w, http.StatusOK, swaps)
}

// HandleSwapsByAccount returns swaps matching either side of the given raw
// account id. The id is hashed here; storage only ever sees the hash.
func (c *Controller) HandleSwapsByAccount(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "accountId is required")
		return
	}

	swaps, err := c.App.Swaps.FindByAccountID(r.Context(), c.App.Hasher.Hash(accountID))
	if err != nil {
		c.App.Logger.Error("Failed to query swaps by account", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if swaps == nil {
		swaps = []*model.Swap{}
	}

	writeJSON(w, http.StatusOK, swaps)
}

// HandlePollSwap forces a reconciliation of a single swap outside the cron
// cycle and returns its current state.
func (c *Controller) HandlePollSwap(w http.ResponseWriter, r *http.Request) {
	swapID := mux.Vars(r)["swapId"]
	if swapID == "" {
		writeError(w, http.StatusBadRequest, "missing swap id")
		return
	}

	swap, err := c.App.Reconciler.PollOnce(r.Context(), swapID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "swap not found")
			return
		}
		c.App.Logger.Error("Manual poll failed", zap.String("swapId", swapID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "poll failed")
		return
	}

	writeJSON(w, http.StatusOK, swap)
}
