// Package pricefeed fetches signed price quotes for the collateral/debt
// asset pair from the remote oracle HTTP service.
package pricefeed

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nusdprotocol/liquidation-service/internal/models"
)

// ErrFeedUnavailable indicates the oracle was unreachable or returned a
// payload missing a required field. It is fatal to the current tick only.
var ErrFeedUnavailable = errors.New("price feed unavailable")

const defaultTimeout = 10 * time.Second

// Client fetches quotes from the oracle endpoint. Every call hits the remote
// source; there is no caching layer.
type Client struct {
	url    string
	client *http.Client
	log    *logrus.Entry
}

// NewClient creates a price feed client for the given quote endpoint URL.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    logrus.WithField("component", "pricefeed"),
	}
}

// quoteResponse mirrors the oracle's JSON payload. Required fields are
// pointers so a missing field can be told apart from a zero value.
type quoteResponse struct {
	Price            *string `json:"price"`
	Decimals         *int32  `json:"decimals"`
	DataTimestamp    int64   `json:"dataTimestamp"`
	RequestTimestamp int64   `json:"requestTimestamp"`
	AssetPair        string  `json:"assetPair"`
	Signature        *string `json:"signature"`
}

// FetchQuote retrieves the current signed quote. A missing price, decimals,
// or signature field is a hard validation failure, never defaulted.
func (c *Client) FetchQuote(ctx context.Context) (*models.PriceQuote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build request: %v", ErrFeedUnavailable, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrFeedUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body: %v", ErrFeedUnavailable, err)
	}

	var payload quoteResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: malformed payload: %v", ErrFeedUnavailable, err)
	}

	quote, err := payload.toQuote()
	if err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"pair":     quote.AssetPair,
		"price":    quote.Numeric().String(),
		"decimals": quote.Decimals,
		"data_ts":  quote.DataTimestamp,
	}).Debug("fetched price quote")

	return quote, nil
}

func (r *quoteResponse) toQuote() (*models.PriceQuote, error) {
	if r.Price == nil {
		return nil, fmt.Errorf("%w: payload missing price", ErrFeedUnavailable)
	}
	if r.Decimals == nil {
		return nil, fmt.Errorf("%w: payload missing decimals", ErrFeedUnavailable)
	}
	if r.Signature == nil {
		return nil, fmt.Errorf("%w: payload missing signature", ErrFeedUnavailable)
	}
	// Decimals travel on-chain as a uint8, so anything outside that range is
	// a corrupt payload.
	if *r.Decimals < 0 || *r.Decimals > 255 {
		return nil, fmt.Errorf("%w: decimals %d out of range", ErrFeedUnavailable, *r.Decimals)
	}

	price, ok := new(big.Int).SetString(*r.Price, 10)
	if !ok {
		return nil, fmt.Errorf("%w: invalid price %q", ErrFeedUnavailable, *r.Price)
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(*r.Signature, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid signature encoding: %v", ErrFeedUnavailable, err)
	}

	return &models.PriceQuote{
		Price:            price,
		Decimals:         *r.Decimals,
		DataTimestamp:    time.UnixMilli(r.DataTimestamp),
		RequestTimestamp: time.UnixMilli(r.RequestTimestamp),
		AssetPair:        r.AssetPair,
		Signature:        sig,
	}, nil
}
