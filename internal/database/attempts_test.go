package database

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nusdprotocol/liquidation-service/internal/models"
)

func TestAttemptsRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	executedAttempt := func(positionID uint64) *models.LiquidationAttempt {
		return &models.LiquidationAttempt{
			PositionID: positionID,
			State:      models.AttemptStateExecuted,
			Price:      decimal.RequireFromString("4503.27"),
			ProfitUSD:  decimal.RequireFromString("75.06"),
			ProfitBase: decimal.RequireFromString("0.016667"),
			TxHash:     "0xabc123",
		}
	}

	t.Run("CreateAttempt records executed attempt", func(t *testing.T) {
		testDB.TruncateAll(t)

		a := executedAttempt(42)
		err := testDB.CreateAttempt(a)
		require.NoError(t, err)
		assert.NotZero(t, a.ID)
		assert.False(t, a.CreatedAt.IsZero())

		retrieved, err := testDB.GetAttemptByID(a.ID)
		require.NoError(t, err)
		assert.Equal(t, uint64(42), retrieved.PositionID)
		assert.Equal(t, models.AttemptStateExecuted, retrieved.State)
		assert.Empty(t, retrieved.DeclineReason)
		assert.Equal(t, "0xabc123", retrieved.TxHash)
		assert.True(t, decimal.RequireFromString("75.06").Equal(retrieved.ProfitUSD))
	})

	t.Run("CreateAttempt records declined attempt with reason", func(t *testing.T) {
		testDB.TruncateAll(t)

		a := &models.LiquidationAttempt{
			PositionID:    7,
			State:         models.AttemptStateDeclined,
			DeclineReason: models.DeclineProfitBelowThreshold,
			Price:         decimal.RequireFromString("4503.27"),
			ProfitUSD:     decimal.Zero,
			ProfitBase:    decimal.Zero,
		}
		err := testDB.CreateAttempt(a)
		require.NoError(t, err)

		retrieved, err := testDB.GetAttemptByID(a.ID)
		require.NoError(t, err)
		assert.Equal(t, models.AttemptStateDeclined, retrieved.State)
		assert.Equal(t, models.DeclineProfitBelowThreshold, retrieved.DeclineReason)
		assert.Empty(t, retrieved.TxHash)
	})

	t.Run("CreateAttempt records failed attempt with error", func(t *testing.T) {
		testDB.TruncateAll(t)

		a := &models.LiquidationAttempt{
			PositionID: 9,
			State:      models.AttemptStateFailed,
			Price:      decimal.RequireFromString("4503.27"),
			ProfitUSD:  decimal.RequireFromString("12.34"),
			ProfitBase: decimal.RequireFromString("0.0027"),
			Error:      "execution failed: gas estimation reverted",
		}
		err := testDB.CreateAttempt(a)
		require.NoError(t, err)

		retrieved, err := testDB.GetAttemptByID(a.ID)
		require.NoError(t, err)
		assert.Equal(t, models.AttemptStateFailed, retrieved.State)
		assert.Contains(t, retrieved.Error, "gas estimation reverted")
	})

	t.Run("GetRecentAttempts returns newest first with limit", func(t *testing.T) {
		testDB.TruncateAll(t)

		for i := uint64(1); i <= 5; i++ {
			err := testDB.CreateAttempt(executedAttempt(i))
			require.NoError(t, err)
		}

		attempts, err := testDB.GetRecentAttempts(3)
		require.NoError(t, err)
		assert.Len(t, attempts, 3)
	})

	t.Run("GetAttemptsByPosition filters by position", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.CreateAttempt(executedAttempt(1)))
		require.NoError(t, testDB.CreateAttempt(executedAttempt(1)))
		require.NoError(t, testDB.CreateAttempt(executedAttempt(2)))

		attempts, err := testDB.GetAttemptsByPosition(1, 10)
		require.NoError(t, err)
		assert.Len(t, attempts, 2)
		for _, a := range attempts {
			assert.Equal(t, uint64(1), a.PositionID)
		}
	})

	t.Run("GetAttemptByID returns error for missing id", func(t *testing.T) {
		testDB.TruncateAll(t)

		_, err := testDB.GetAttemptByID(999999)
		assert.Error(t, err)
	})

	t.Run("DeleteAttemptsOlderThan removes old records", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.CreateAttempt(executedAttempt(1)))

		deleted, err := testDB.DeleteAttemptsOlderThan(time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		attempts, err := testDB.GetRecentAttempts(10)
		require.NoError(t, err)
		assert.Empty(t, attempts)
	})
}
