package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shapeshift/notification-server/pkg/model"
	"github.com/shapeshift/notification-server/pkg/storage"
)

// SwapStore implements storage.SwapStore using PostgreSQL.
type SwapStore struct {
	pool *Pool
}

// NewSwapStore creates a new SwapStore.
func NewSwapStore(pool *Pool) *SwapStore {
	return &SwapStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SwapStore = (*SwapStore)(nil)

const swapColumns = `
	id, swap_id, user_id, sell_asset, buy_asset,
	sell_amount_crypto_base_unit, expected_buy_amount_crypto_base_unit,
	sell_amount_crypto_precision, expected_buy_amount_crypto_precision,
	status, status_message, source, swapper_name,
	sell_account_id, buy_account_id, receive_address,
	sell_tx_hash, buy_tx_hash, tx_link, is_streaming, metadata,
	created_at, updated_at`

// Create inserts a new swap. Returns storage.ErrDuplicate when the external
// swap id is already taken.
func (s *SwapStore) Create(ctx context.Context, swap *model.Swap) (*model.Swap, error) {
	if swap.ID == "" {
		swap.ID = uuid.NewString()
	}
	if swap.Status == "" {
		swap.Status = model.SwapStatusIdle
	}

	sellAsset, err := json.Marshal(swap.SellAsset)
	if err != nil {
		return nil, fmt.Errorf("marshal sell asset: %w", err)
	}
	buyAsset, err := json.Marshal(swap.BuyAsset)
	if err != nil {
		return nil, fmt.Errorf("marshal buy asset: %w", err)
	}

	query := `
		INSERT INTO swaps (
			id, swap_id, user_id, sell_asset, buy_asset,
			sell_amount_crypto_base_unit, expected_buy_amount_crypto_base_unit,
			sell_amount_crypto_precision, expected_buy_amount_crypto_precision,
			status, status_message, source, swapper_name,
			sell_account_id, buy_account_id, receive_address,
			sell_tx_hash, buy_tx_hash, tx_link, is_streaming, metadata
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
		RETURNING ` + swapColumns

	row := s.pool.QueryRow(ctx, query,
		swap.ID,
		swap.SwapID,
		swap.UserID,
		sellAsset,
		buyAsset,
		swap.SellAmountCryptoBaseUnit,
		swap.ExpectedBuyAmountCryptoBaseUnit,
		swap.SellAmountCryptoPrecision,
		swap.ExpectedBuyAmountCryptoPrecision,
		string(swap.Status),
		swap.StatusMessage,
		swap.Source,
		swap.SwapperName,
		swap.SellAccountID,
		swap.BuyAccountID,
		swap.ReceiveAddress,
		swap.SellTxHash,
		swap.BuyTxHash,
		swap.TxLink,
		swap.IsStreaming,
		swap.Metadata,
	)

	created, err := scanSwap(row)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, storage.ErrDuplicate
		}
		return nil, fmt.Errorf("insert swap: %w", err)
	}
	return created, nil
}

// FindNonTerminal returns all swaps stored as IDLE or PENDING.
func (s *SwapStore) FindNonTerminal(ctx context.Context) ([]*model.Swap, error) {
	query := `SELECT ` + swapColumns + ` FROM swaps WHERE status = ANY($1) ORDER BY created_at ASC`

	statuses := make([]string, 0, len(model.NonTerminalStatuses))
	for _, st := range model.NonTerminalStatuses {
		statuses = append(statuses, string(st))
	}

	rows, err := s.pool.Query(ctx, query, statuses)
	if err != nil {
		return nil, fmt.Errorf("query non-terminal swaps: %w", err)
	}
	defer rows.Close()

	return scanSwaps(rows)
}

// FindBySwapID looks a swap up by its external identifier.
func (s *SwapStore) FindBySwapID(ctx context.Context, swapID string) (*model.Swap, error) {
	query := `SELECT ` + swapColumns + ` FROM swaps WHERE swap_id = $1`

	swap, err := scanSwap(s.pool.QueryRow(ctx, query, swapID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get swap by swap id: %w", err)
	}
	return swap, nil
}

// FindByUser returns a user's swaps, newest first.
func (s *SwapStore) FindByUser(ctx context.Context, userID string, limit int) ([]*model.Swap, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + swapColumns + ` FROM swaps WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := s.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query swaps by user: %w", err)
	}
	defer rows.Close()

	return scanSwaps(rows)
}

// FindByAccountID matches either side of the swap by hashed account id.
func (s *SwapStore) FindByAccountID(ctx context.Context, hashedAccountID string) ([]*model.Swap, error) {
	query := `SELECT ` + swapColumns + ` FROM swaps
		WHERE sell_account_id = $1 OR buy_account_id = $1
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, hashedAccountID)
	if err != nil {
		return nil, fmt.Errorf("query swaps by account id: %w", err)
	}
	defer rows.Close()

	return scanSwaps(rows)
}

// UpdateStatus persists a transition. Buy hash and tx link are only ever
// widened, never cleared.
func (s *SwapStore) UpdateStatus(ctx context.Context, swapID string, upd storage.SwapUpdate) (*model.Swap, error) {
	query := `
		UPDATE swaps SET
			status = $2,
			status_message = $3,
			buy_tx_hash = CASE WHEN $4 <> '' THEN $4 ELSE buy_tx_hash END,
			tx_link = CASE WHEN $5 <> '' THEN $5 ELSE tx_link END,
			updated_at = now()
		WHERE swap_id = $1
		RETURNING ` + swapColumns

	row := s.pool.QueryRow(ctx, query, swapID, string(upd.Status), upd.StatusMessage, upd.BuyTxHash, upd.TxLink)

	swap, err := scanSwap(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("update swap status: %w", err)
	}
	return swap, nil
}

func scanSwap(row pgx.Row) (*model.Swap, error) {
	var (
		swap                model.Swap
		sellAsset, buyAsset []byte
		status              string
	)

	err := row.Scan(
		&swap.ID,
		&swap.SwapID,
		&swap.UserID,
		&sellAsset,
		&buyAsset,
		&swap.SellAmountCryptoBaseUnit,
		&swap.ExpectedBuyAmountCryptoBaseUnit,
		&swap.SellAmountCryptoPrecision,
		&swap.ExpectedBuyAmountCryptoPrecision,
		&status,
		&swap.StatusMessage,
		&swap.Source,
		&swap.SwapperName,
		&swap.SellAccountID,
		&swap.BuyAccountID,
		&swap.ReceiveAddress,
		&swap.SellTxHash,
		&swap.BuyTxHash,
		&swap.TxLink,
		&swap.IsStreaming,
		&swap.Metadata,
		&swap.CreatedAt,
		&swap.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	swap.Status = model.SwapStatus(status)
	if err := json.Unmarshal(sellAsset, &swap.SellAsset); err != nil {
		return nil, fmt.Errorf("unmarshal sell asset: %w", err)
	}
	if err := json.Unmarshal(buyAsset, &swap.BuyAsset); err != nil {
		return nil, fmt.Errorf("unmarshal buy asset: %w", err)
	}
	return &swap, nil
}

func scanSwaps(rows pgx.Rows) ([]*model.Swap, error) {
	var out []*model.Swap
	for rows.Next() {
		swap, err := scanSwap(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, swap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swap rows: %w", err)
	}
	return out, nil
}
