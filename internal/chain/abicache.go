package chain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// erc20ABIJSON is the standard token interface; unlike the protocol
// contracts it never changes per deployment, so it is compiled in rather
// than fetched.
const erc20ABIJSON = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// ERC20ABI parses the built-in ERC-20 interface.
func ERC20ABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse erc20 abi: %w", err)
	}
	return parsed, nil
}

// ABIFetcher retrieves a contract's interface definition from the remote
// deployment registry.
type ABIFetcher interface {
	FetchABI(ctx context.Context, address common.Address) (string, error)
}

// abiStore is the subset of the Redis client the cache uses.
type abiStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// ABICache caches contract interface JSON in Redis keyed by contract
// address. Cached entries are reused unconditionally (no TTL): a deployed
// contract's interface never changes. With no store configured every lookup
// falls through to the fetcher.
type ABICache struct {
	store   abiStore
	fetcher ABIFetcher
	log     *logrus.Entry
}

// NewABICache creates a cache backed by the given store, typically a
// *redis.Client. store may be nil to disable caching.
func NewABICache(store abiStore, fetcher ABIFetcher) *ABICache {
	return &ABICache{
		store:   store,
		fetcher: fetcher,
		log:     logrus.WithField("component", "abicache"),
	}
}

func abiKey(address common.Address) string {
	return "abi:" + strings.ToLower(address.Hex())
}

// Get returns the parsed interface for a contract, consulting the cache
// before the remote registry.
func (c *ABICache) Get(ctx context.Context, address common.Address) (abi.ABI, error) {
	if c.store != nil {
		cached, err := c.store.Get(ctx, abiKey(address)).Result()
		if err == nil {
			parsed, parseErr := abi.JSON(strings.NewReader(cached))
			if parseErr == nil {
				return parsed, nil
			}
			c.log.WithField("address", address.Hex()).WithError(parseErr).
				Warn("cached abi is corrupt, refetching")
		} else if err != redis.Nil {
			c.log.WithError(err).Warn("abi cache read failed, falling back to fetch")
		}
	}

	raw, err := c.fetcher.FetchABI(ctx, address)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to fetch abi for %s: %w", address.Hex(), err)
	}

	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse abi for %s: %w", address.Hex(), err)
	}

	if c.store != nil {
		if err := c.store.Set(ctx, abiKey(address), raw, 0).Err(); err != nil {
			c.log.WithError(err).Warn("failed to store abi in cache")
		}
	}

	return parsed, nil
}
