package database

import (
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nusdprotocol/liquidation-service/internal/models"
)

func TestQuotesRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	now := time.Now().UTC().Truncate(time.Millisecond)

	testQuote := func() *models.PriceQuote {
		// 4503.27 with 8 decimals
		return &models.PriceQuote{
			Price:            big.NewInt(450327000000),
			Decimals:         8,
			DataTimestamp:    now.Add(-2 * time.Second),
			RequestTimestamp: now,
			AssetPair:        "ETH/USD",
			Signature:        []byte{0x01, 0x02},
		}
	}

	t.Run("CreatePriceQuote stores numeric price", func(t *testing.T) {
		testDB.TruncateAll(t)

		err := testDB.CreatePriceQuote(testQuote())
		require.NoError(t, err)

		quotes, err := testDB.GetRecentQuotes(10)
		require.NoError(t, err)
		require.Len(t, quotes, 1)

		q := quotes[0]
		assert.Equal(t, "ETH/USD", q.AssetPair)
		assert.True(t, decimal.RequireFromString("4503.27").Equal(q.Price),
			"expected 4503.27, got %s", q.Price)
		assert.WithinDuration(t, now, q.RequestTimestamp, time.Second)
	})

	t.Run("GetRecentQuotes respects limit", func(t *testing.T) {
		testDB.TruncateAll(t)

		for i := 0; i < 5; i++ {
			err := testDB.CreatePriceQuote(testQuote())
			require.NoError(t, err)
		}

		quotes, err := testDB.GetRecentQuotes(2)
		require.NoError(t, err)
		assert.Len(t, quotes, 2)
	})

	t.Run("DeleteQuotesOlderThan removes old records", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.CreatePriceQuote(testQuote()))

		deleted, err := testDB.DeleteQuotesOlderThan(time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)
	})
}
