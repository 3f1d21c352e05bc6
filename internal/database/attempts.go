package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nusdprotocol/liquidation-service/internal/models"
)

// CreateAttempt records the outcome of a liquidation attempt
func (db *DB) CreateAttempt(a *models.LiquidationAttempt) error {
	query := `
		INSERT INTO liquidation_attempts (
			position_id, state, decline_reason, price,
			profit_usd, profit_base, tx_hash, error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	var declineReason, txHash, attemptErr interface{}
	if a.DeclineReason != "" {
		declineReason = a.DeclineReason
	}
	if a.TxHash != "" {
		txHash = a.TxHash
	}
	if a.Error != "" {
		attemptErr = a.Error
	}

	now := time.Now()
	err := db.conn.QueryRow(query,
		int64(a.PositionID), a.State, declineReason, a.Price,
		a.ProfitUSD, a.ProfitBase, txHash, attemptErr, now,
	).Scan(&a.ID)

	if err != nil {
		return fmt.Errorf("failed to create liquidation attempt: %w", err)
	}
	a.CreatedAt = now
	return nil
}

// GetAttemptByID retrieves a liquidation attempt by ID
func (db *DB) GetAttemptByID(id int) (*models.LiquidationAttempt, error) {
	query := `
		SELECT id, position_id, state, decline_reason, price,
		       profit_usd, profit_base, tx_hash, error, created_at
		FROM liquidation_attempts
		WHERE id = $1
	`
	var a models.LiquidationAttempt
	var positionID int64
	var declineReason, txHash, attemptErr sql.NullString
	var price, profitUSD, profitBase sql.NullString

	err := db.conn.QueryRow(query, id).Scan(
		&a.ID, &positionID, &a.State, &declineReason, &price,
		&profitUSD, &profitBase, &txHash, &attemptErr, &a.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("liquidation attempt not found: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get liquidation attempt: %w", err)
	}

	a.PositionID = uint64(positionID)
	applyNullables(&a, declineReason, price, profitUSD, profitBase, txHash, attemptErr)
	return &a, nil
}

// GetRecentAttempts retrieves recent liquidation attempts across all positions
func (db *DB) GetRecentAttempts(limit int) ([]*models.LiquidationAttempt, error) {
	query := `
		SELECT id, position_id, state, decline_reason, price,
		       profit_usd, profit_base, tx_hash, error, created_at
		FROM liquidation_attempts
		ORDER BY created_at DESC
		LIMIT $1
	`
	return db.scanAttempts(db.conn.Query(query, limit))
}

// GetAttemptsByPosition retrieves liquidation attempts for one position
func (db *DB) GetAttemptsByPosition(positionID uint64, limit int) ([]*models.LiquidationAttempt, error) {
	query := `
		SELECT id, position_id, state, decline_reason, price,
		       profit_usd, profit_base, tx_hash, error, created_at
		FROM liquidation_attempts
		WHERE position_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	return db.scanAttempts(db.conn.Query(query, int64(positionID), limit))
}

func (db *DB) scanAttempts(rows *sql.Rows, err error) ([]*models.LiquidationAttempt, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query liquidation attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*models.LiquidationAttempt
	for rows.Next() {
		var a models.LiquidationAttempt
		var positionID int64
		var declineReason, txHash, attemptErr sql.NullString
		var price, profitUSD, profitBase sql.NullString

		err := rows.Scan(
			&a.ID, &positionID, &a.State, &declineReason, &price,
			&profitUSD, &profitBase, &txHash, &attemptErr, &a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan liquidation attempt: %w", err)
		}

		a.PositionID = uint64(positionID)
		applyNullables(&a, declineReason, price, profitUSD, profitBase, txHash, attemptErr)
		attempts = append(attempts, &a)
	}

	return attempts, nil
}

func applyNullables(a *models.LiquidationAttempt, declineReason, price, profitUSD, profitBase, txHash, attemptErr sql.NullString) {
	if declineReason.Valid {
		a.DeclineReason = declineReason.String
	}
	if price.Valid {
		a.Price, _ = decimal.NewFromString(price.String)
	}
	if profitUSD.Valid {
		a.ProfitUSD, _ = decimal.NewFromString(profitUSD.String)
	}
	if profitBase.Valid {
		a.ProfitBase, _ = decimal.NewFromString(profitBase.String)
	}
	if txHash.Valid {
		a.TxHash = txHash.String
	}
	if attemptErr.Valid {
		a.Error = attemptErr.String
	}
}

// DeleteAttemptsOlderThan removes attempts recorded before a specified date
func (db *DB) DeleteAttemptsOlderThan(date time.Time) (int64, error) {
	query := `DELETE FROM liquidation_attempts WHERE created_at < $1`
	result, err := db.conn.Exec(query, date)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old liquidation attempts: %w", err)
	}
	return result.RowsAffected()
}
