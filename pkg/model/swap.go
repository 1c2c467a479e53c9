package model

import "time"

// SwapStatus is the canonical status vocabulary used internally, independent
// of any execution strategy's native status names.
type SwapStatus string

const (
	SwapStatusIdle    SwapStatus = "IDLE"
	SwapStatusPending SwapStatus = "PENDING"
	SwapStatusSuccess SwapStatus = "SUCCESS"
	SwapStatusFailed  SwapStatus = "FAILED"
)

// Terminal reports whether the status is absorbing. Terminal swaps are
// permanently excluded from reconciliation.
func (s SwapStatus) Terminal() bool {
	return s == SwapStatusSuccess || s == SwapStatusFailed
}

// NonTerminalStatuses is the set of statuses considered in flight.
var NonTerminalStatuses = []SwapStatus{SwapStatusIdle, SwapStatusPending}

// AssetRef describes one side of a swap.
type AssetRef struct {
	ChainID   string `json:"chainId"`
	AssetID   string `json:"assetId"`
	Symbol    string `json:"symbol"`
	Name      string `json:"name,omitempty"`
	Precision int    `json:"precision"`
}

// Swap is the unit of reconciliation. SwapID is the external identifier
// assigned by the initiating client; ID is storage-internal. SellAccountID
// and BuyAccountID always hold the privacy-hashed form, never a raw
// account identifier.
type Swap struct {
	ID     string `json:"id"`
	SwapID string `json:"swapId"`
	UserID string `json:"userId"`

	SellAsset AssetRef `json:"sellAsset"`
	BuyAsset  AssetRef `json:"buyAsset"`

	SellAmountCryptoBaseUnit         string `json:"sellAmountCryptoBaseUnit"`
	ExpectedBuyAmountCryptoBaseUnit  string `json:"expectedBuyAmountCryptoBaseUnit"`
	SellAmountCryptoPrecision        string `json:"sellAmountCryptoPrecision"`
	ExpectedBuyAmountCryptoPrecision string `json:"expectedBuyAmountCryptoPrecision"`

	Status        SwapStatus `json:"status"`
	StatusMessage string     `json:"statusMessage,omitempty"`

	Source      string `json:"source"`
	SwapperName string `json:"swapperName"`

	SellAccountID string `json:"sellAccountId"`
	BuyAccountID  string `json:"buyAccountId,omitempty"`

	ReceiveAddress string `json:"receiveAddress,omitempty"`
	SellTxHash     string `json:"sellTxHash,omitempty"`
	BuyTxHash      string `json:"buyTxHash,omitempty"`
	TxLink         string `json:"txLink,omitempty"`

	IsStreaming bool   `json:"isStreaming"`
	Metadata    string `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
