package database

import (
	"context"
	"time"
)

// Trade is one row of the trade history table.
type Trade struct {
	ID         int       `json:"id"`
	Market     string    `json:"market"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  *float64  `json:"exit_price,omitempty"`
	Quantity   float64   `json:"quantity"`
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   *time.Time `json:"exit_time,omitempty"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	ExitReason string    `json:"exit_reason,omitempty"`
	Status     string    `json:"status"`
}

// Repository provides trade history persistence
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// RecordEntry inserts an OPEN trade row and returns its id.
func (r *Repository) RecordEntry(ctx context.Context, t Trade) (int, error) {
	query := `
		INSERT INTO trades (market, symbol, side, entry_price, quantity, entry_time, stop_loss, take_profit, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'OPEN')
		RETURNING id`

	var id int
	err := r.db.Pool.QueryRow(ctx, query,
		t.Market, t.Symbol, t.Side, t.EntryPrice, t.Quantity, t.EntryTime, t.StopLoss, t.TakeProfit,
	).Scan(&id)
	return id, err
}

// RecordExit closes the most recent OPEN trade for the market instance.
func (r *Repository) RecordExit(ctx context.Context, market, symbol string, exitPrice float64, reason string) error {
	query := `
		UPDATE trades
		SET exit_price = $1, exit_time = $2, exit_reason = $3, status = 'CLOSED', updated_at = CURRENT_TIMESTAMP
		WHERE id = (
			SELECT id FROM trades
			WHERE market = $4 AND symbol = $5 AND status = 'OPEN'
			ORDER BY entry_time DESC
			LIMIT 1
		)`

	_, err := r.db.Pool.Exec(ctx, query, exitPrice, time.Now().UTC(), reason, market, symbol)
	return err
}

// RecentTrades returns the latest trades across all market instances.
func (r *Repository) RecentTrades(ctx context.Context, limit int) ([]Trade, error) {
	query := `
		SELECT id, market, symbol, side, entry_price, exit_price, quantity,
		       entry_time, exit_time, stop_loss, take_profit, COALESCE(exit_reason, ''), status
		FROM trades
		ORDER BY entry_time DESC
		LIMIT $1`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []Trade
	for rows.Next() {
		var t Trade
		if err := rows.Scan(&t.ID, &t.Market, &t.Symbol, &t.Side, &t.EntryPrice, &t.ExitPrice,
			&t.Quantity, &t.EntryTime, &t.ExitTime, &t.StopLoss, &t.TakeProfit, &t.ExitReason, &t.Status); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
