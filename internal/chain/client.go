package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/nusdprotocol/liquidation-service/internal/models"
)

const defaultCallTimeout = 15 * time.Second

// Contract method names on the protocol's controller and vault manager.
const (
	methodPositionCount = "positionCount"
	methodPositions     = "positions"
	methodPositionDebt  = "positionDebt"
	methodComputeRatio  = "computeRatio"
	methodLiquidate     = "liquidate"
	methodBalanceOf     = "balanceOf"
)

// Config holds everything the client needs to target the live deployment.
type Config struct {
	RPCURL       string
	ChainID      *big.Int
	Controller   common.Address
	VaultManager common.Address
	DebtToken    common.Address
	// PrivateKeyHex signs liquidation submissions. Read calls work without it.
	PrivateKeyHex string
	// CallTimeout bounds every remote call; defaults to 15s.
	CallTimeout time.Duration
	// ReadsPerSecond throttles read calls against the rate-limited endpoint.
	ReadsPerSecond float64
}

// Client is the concrete ledger client backed by an Ethereum JSON-RPC
// endpoint. All reads share one rate limiter so concurrent batches stay
// within the remote endpoint's budget.
type Client struct {
	eth           *ethclient.Client
	controller    common.Address
	vaultManager  common.Address
	debtToken     common.Address
	controllerABI abi.ABI
	vaultABI      abi.ABI
	erc20ABI      abi.ABI
	chainID       *big.Int
	key           *ecdsa.PrivateKey
	sender        common.Address
	timeout       time.Duration
	limiter       *rate.Limiter
	log           *logrus.Entry
}

// NewClient dials the RPC endpoint and wires the resolved contract ABIs. The
// controller and vault manager interfaces come from the ABI cache so the
// deployment registry is only consulted on a cold start.
func NewClient(cfg Config, controllerABI, vaultABI, erc20ABI abi.ABI) (*Client, error) {
	eth, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc endpoint: %w", err)
	}

	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	rps := cfg.ReadsPerSecond
	if rps <= 0 {
		rps = 20
	}

	c := &Client{
		eth:           eth,
		controller:    cfg.Controller,
		vaultManager:  cfg.VaultManager,
		debtToken:     cfg.DebtToken,
		controllerABI: controllerABI,
		vaultABI:      vaultABI,
		erc20ABI:      erc20ABI,
		chainID:       cfg.ChainID,
		timeout:       timeout,
		limiter:       rate.NewLimiter(rate.Limit(rps), int(rps)),
		log:           logrus.WithField("component", "chain"),
	}

	if cfg.PrivateKeyHex != "" {
		key, err := crypto.HexToECDSA(cfg.PrivateKeyHex)
		if err != nil {
			return nil, fmt.Errorf("failed to parse operator key: %w", err)
		}
		c.key = key
		c.sender = crypto.PubkeyToAddress(key.PublicKey)
	}

	return c, nil
}

// Sender returns the operator address derived from the configured key.
func (c *Client) Sender() common.Address {
	return c.sender
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// call performs a rate-limited, timeout-bounded eth_call and unpacks the
// result.
func (c *Client) call(ctx context.Context, to common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}

	values, err := contractABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	return values, nil
}

// PositionCount returns the number of enumerable positions on the controller.
func (c *Client) PositionCount(ctx context.Context) (uint64, error) {
	values, err := c.call(ctx, c.controller, c.controllerABI, methodPositionCount)
	if err != nil {
		return 0, err
	}
	count, ok := values[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("unexpected positionCount result type %T", values[0])
	}
	return count.Uint64(), nil
}

// PositionByID reads a position's vault handle, owner, collateral, backing
// shares, and debt. The debt amount comes exclusively from the controller's
// positionDebt call; a failed debt read fails the whole lookup rather than
// silently defaulting to zero.
func (c *Client) PositionByID(ctx context.Context, id uint64) (*PositionState, error) {
	values, err := c.call(ctx, c.controller, c.controllerABI, methodPositions, new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}
	if len(values) < 4 {
		return nil, fmt.Errorf("unexpected positions result arity %d", len(values))
	}

	owner, ok := values[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("unexpected owner type %T", values[0])
	}
	vault, ok := values[1].(common.Address)
	if !ok {
		return nil, fmt.Errorf("unexpected vault type %T", values[1])
	}
	collateral, ok := values[2].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected collateral type %T", values[2])
	}
	shares, ok := values[3].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected shares type %T", values[3])
	}
	if owner == (common.Address{}) && vault == (common.Address{}) {
		return nil, fmt.Errorf("%w: id %d", ErrPositionNotFound, id)
	}

	debtValues, err := c.call(ctx, c.controller, c.controllerABI, methodPositionDebt, new(big.Int).SetUint64(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read position debt: %w", err)
	}
	debt, ok := debtValues[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected debt type %T", debtValues[0])
	}

	return &PositionState{
		Owner:         owner,
		Vault:         vault,
		Collateral:    collateral,
		BackingShares: shares,
		Debt:          debt,
	}, nil
}

// VaultRatio asks the vault manager for a position's collateralization ratio
// under the supplied signed quote. The result is an integer where 10000
// means 100%.
func (c *Client) VaultRatio(ctx context.Context, vault common.Address, quote *models.PriceQuote) (uint64, error) {
	values, err := c.call(ctx, c.vaultManager, c.vaultABI, methodComputeRatio,
		vault,
		quote.Price,
		uint8(quote.Decimals),
		big.NewInt(quote.DataTimestamp.UnixMilli()),
		quote.Signature,
	)
	if err != nil {
		return 0, err
	}
	ratio, ok := values[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("unexpected computeRatio result type %T", values[0])
	}
	return ratio.Uint64(), nil
}

// TokenBalance returns holder's balance of the given ERC-20 token.
func (c *Client) TokenBalance(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	values, err := c.call(ctx, token, c.erc20ABI, methodBalanceOf, holder)
	if err != nil {
		return nil, err
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf result type %T", values[0])
	}
	return balance, nil
}

// DebtTokenBalance returns the operator's holding of the protocol's debt
// token.
func (c *Client) DebtTokenBalance(ctx context.Context) (*big.Int, error) {
	return c.TokenBalance(ctx, c.debtToken, c.sender)
}

// SubmitLiquidation signs and sends a liquidate(positionID) transaction and
// returns the transaction hash. The submission is real: an error from the
// node is surfaced as ErrExecutionFailed, never swallowed.
func (c *Client) SubmitLiquidation(ctx context.Context, id uint64) (common.Hash, error) {
	if c.key == nil {
		return common.Hash{}, fmt.Errorf("%w: no operator key configured", ErrExecutionFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := c.controllerABI.Pack(methodLiquidate, new(big.Int).SetUint64(id))
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: failed to pack calldata: %v", ErrExecutionFailed, err)
	}

	nonce, err := c.eth.PendingNonceAt(ctx, c.sender)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: failed to fetch nonce: %v", ErrExecutionFailed, err)
	}

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: failed to fetch gas price: %v", ErrExecutionFailed, err)
	}

	gasLimit, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: c.sender,
		To:   &c.controller,
		Data: data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: gas estimation rejected: %v", ErrExecutionFailed, err)
	}

	tx := types.NewTransaction(nonce, c.controller, big.NewInt(0), gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: failed to sign transaction: %v", ErrExecutionFailed, err)
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}

	c.log.WithFields(logrus.Fields{
		"position_id": id,
		"tx":          signed.Hash().Hex(),
		"gas_limit":   gasLimit,
	}).Info("liquidation transaction submitted")

	return signed.Hash(), nil
}
