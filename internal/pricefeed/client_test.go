package pricefeed

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nusdprotocol/liquidation-service/internal/models"
)

func quoteServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
}

func TestFetchQuote(t *testing.T) {
	t.Run("parses a well-formed payload", func(t *testing.T) {
		now := time.Now().UnixMilli()
		body := fmt.Sprintf(`{
			"price": "450327000000",
			"decimals": 8,
			"dataTimestamp": %d,
			"requestTimestamp": %d,
			"assetPair": "NETH/NUSD",
			"signature": "0xdeadbeef"
		}`, now, now)
		srv := quoteServer(t, body, http.StatusOK)
		defer srv.Close()

		quote, err := NewClient(srv.URL, 0).FetchQuote(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "NETH/NUSD", quote.AssetPair)
		assert.Equal(t, int32(8), quote.Decimals)
		assert.Equal(t, big.NewInt(450327000000), quote.Price)
		assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, quote.Signature)
		assert.True(t, decimal.RequireFromString("4503.27").Equal(quote.Numeric()))
	})

	t.Run("missing required fields are hard errors", func(t *testing.T) {
		payloads := map[string]string{
			"price":     `{"decimals": 8, "signature": "0x00", "dataTimestamp": 1, "requestTimestamp": 1}`,
			"decimals":  `{"price": "100", "signature": "0x00", "dataTimestamp": 1, "requestTimestamp": 1}`,
			"signature": `{"price": "100", "decimals": 8, "dataTimestamp": 1, "requestTimestamp": 1}`,
		}
		for field, body := range payloads {
			srv := quoteServer(t, body, http.StatusOK)
			_, err := NewClient(srv.URL, 0).FetchQuote(context.Background())
			srv.Close()
			require.Error(t, err, "missing %s should fail", field)
			assert.ErrorIs(t, err, ErrFeedUnavailable)
		}
	})

	t.Run("decimals outside uint8 range are hard errors", func(t *testing.T) {
		payloads := map[string]string{
			"negative":  `{"price": "100", "decimals": -1, "signature": "0x00", "dataTimestamp": 1, "requestTimestamp": 1}`,
			"too large": `{"price": "100", "decimals": 256, "signature": "0x00", "dataTimestamp": 1, "requestTimestamp": 1}`,
		}
		for name, body := range payloads {
			srv := quoteServer(t, body, http.StatusOK)
			_, err := NewClient(srv.URL, 0).FetchQuote(context.Background())
			srv.Close()
			require.Error(t, err, "%s decimals should fail", name)
			assert.ErrorIs(t, err, ErrFeedUnavailable)
		}
	})

	t.Run("non-200 status is a feed failure", func(t *testing.T) {
		srv := quoteServer(t, "oops", http.StatusBadGateway)
		defer srv.Close()

		_, err := NewClient(srv.URL, 0).FetchQuote(context.Background())
		assert.ErrorIs(t, err, ErrFeedUnavailable)
	})

	t.Run("unreachable source is a feed failure", func(t *testing.T) {
		srv := quoteServer(t, "{}", http.StatusOK)
		srv.Close() // shut down before the call

		_, err := NewClient(srv.URL, 0).FetchQuote(context.Background())
		assert.ErrorIs(t, err, ErrFeedUnavailable)
	})

	t.Run("malformed JSON is a feed failure", func(t *testing.T) {
		srv := quoteServer(t, "not json", http.StatusOK)
		defer srv.Close()

		_, err := NewClient(srv.URL, 0).FetchQuote(context.Background())
		assert.ErrorIs(t, err, ErrFeedUnavailable)
	})
}

func TestQuoteNumericRoundTrip(t *testing.T) {
	// Encoding p with a given scale then decoding must yield p / 10^d.
	for _, d := range []int32{0, 6, 8, 18} {
		price := new(big.Int)
		price.SetString("4503270000000000000000", 10)
		quote := &models.PriceQuote{Price: price, Decimals: d}

		want := decimal.NewFromBigInt(price, 0).Div(decimal.New(1, d))
		got := quote.Numeric()
		diff := want.Sub(got).Abs()
		assert.True(t, diff.LessThan(decimal.New(1, -12)),
			"decimals %d: want %s, got %s", d, want, got)
	}
}

func TestQuoteIsFresh(t *testing.T) {
	t.Run("fresh within window", func(t *testing.T) {
		q := &models.PriceQuote{DataTimestamp: time.Now().Add(-30 * time.Second)}
		assert.True(t, q.IsFresh(60*time.Second))
	})

	t.Run("stale beyond window", func(t *testing.T) {
		q := &models.PriceQuote{DataTimestamp: time.Now().Add(-2 * time.Minute)}
		assert.False(t, q.IsFresh(60*time.Second))
	})

	t.Run("default window applies when zero", func(t *testing.T) {
		q := &models.PriceQuote{DataTimestamp: time.Now().Add(-30 * time.Second)}
		assert.True(t, q.IsFresh(0))
		q.DataTimestamp = time.Now().Add(-90 * time.Second)
		assert.False(t, q.IsFresh(0))
	})
}
