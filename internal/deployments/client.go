// Package deployments looks up the live contract addresses for a chain from
// the remote deployment registry. The lookup happens once at startup; a
// failure here is fatal because no further progress is possible without
// resolved targets.
package deployments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const defaultTimeout = 15 * time.Second

// Deployment holds the resolved contract addresses the chain client targets.
type Deployment struct {
	Controller   common.Address `json:"controller"`
	VaultManager common.Address `json:"vault_manager"`
	DebtToken    common.Address `json:"debt_token"`
}

// Client talks to the deployment registry HTTP service.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a deployment registry client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type deploymentResponse struct {
	Controller   *string `json:"controller"`
	VaultManager *string `json:"vaultManager"`
	DebtToken    *string `json:"debtToken"`
}

// Lookup resolves the deployment for the given chain id.
func (c *Client) Lookup(ctx context.Context, chainID uint64) (*Deployment, error) {
	url := fmt.Sprintf("%s/deployments/%d", c.baseURL, chainID)
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var payload deploymentResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("malformed deployment payload: %w", err)
	}
	if payload.Controller == nil || payload.VaultManager == nil || payload.DebtToken == nil {
		return nil, fmt.Errorf("deployment payload missing contract addresses for chain %d", chainID)
	}
	for _, addr := range []string{*payload.Controller, *payload.VaultManager, *payload.DebtToken} {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("deployment payload contains invalid address %q", addr)
		}
	}

	return &Deployment{
		Controller:   common.HexToAddress(*payload.Controller),
		VaultManager: common.HexToAddress(*payload.VaultManager),
		DebtToken:    common.HexToAddress(*payload.DebtToken),
	}, nil
}

// FetchABI retrieves the interface definition for a deployed contract. The
// response body is the raw ABI JSON.
func (c *Client) FetchABI(ctx context.Context, address common.Address) (string, error) {
	url := fmt.Sprintf("%s/abi/%s", c.baseURL, address.Hex())
	body, err := c.get(ctx, url)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deployment registry unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deployment registry returned status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry response: %w", err)
	}
	return body, nil
}
