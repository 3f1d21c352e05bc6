package database

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nusdprotocol/liquidation-service/internal/models"
)

// QuoteRecord is the stored form of an oracle price quote.
type QuoteRecord struct {
	ID               int             `json:"id"`
	AssetPair        string          `json:"asset_pair"`
	Price            decimal.Decimal `json:"price"`
	DataTimestamp    time.Time       `json:"data_timestamp"`
	RequestTimestamp time.Time       `json:"request_timestamp"`
	CreatedAt        time.Time       `json:"created_at"`
}

// CreatePriceQuote records an oracle quote used for an evaluation cycle
func (db *DB) CreatePriceQuote(q *models.PriceQuote) error {
	query := `
		INSERT INTO price_quotes (asset_pair, price, data_timestamp, request_timestamp, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	var id int
	err := db.conn.QueryRow(query,
		q.AssetPair, q.Numeric(), q.DataTimestamp, q.RequestTimestamp, time.Now(),
	).Scan(&id)

	if err != nil {
		return fmt.Errorf("failed to create price quote: %w", err)
	}
	return nil
}

// GetRecentQuotes retrieves the most recently recorded quotes
func (db *DB) GetRecentQuotes(limit int) ([]*QuoteRecord, error) {
	query := `
		SELECT id, asset_pair, price, data_timestamp, request_timestamp, created_at
		FROM price_quotes
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := db.conn.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query price quotes: %w", err)
	}
	defer rows.Close()

	var quotes []*QuoteRecord
	for rows.Next() {
		var q QuoteRecord
		var price string

		err := rows.Scan(&q.ID, &q.AssetPair, &price, &q.DataTimestamp, &q.RequestTimestamp, &q.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price quote: %w", err)
		}

		q.Price, _ = decimal.NewFromString(price)
		quotes = append(quotes, &q)
	}

	return quotes, nil
}

// DeleteQuotesOlderThan removes quotes recorded before a specified date
func (db *DB) DeleteQuotesOlderThan(date time.Time) (int64, error) {
	query := `DELETE FROM price_quotes WHERE created_at < $1`
	result, err := db.conn.Exec(query, date)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old price quotes: %w", err)
	}
	return result.RowsAffected()
}
