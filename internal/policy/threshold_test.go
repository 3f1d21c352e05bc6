package policy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestThresholdFor(t *testing.T) {
	t.Run("tier 0 gets the floor", func(t *testing.T) {
		assert.True(t, decimal.RequireFromString("110.00").Equal(ThresholdFor(0)))
	})

	t.Run("tier 1 gets the full ceiling", func(t *testing.T) {
		assert.True(t, decimal.RequireFromString("125.00").Equal(ThresholdFor(1)))
	})

	t.Run("decays by half a point per tier", func(t *testing.T) {
		cases := map[uint64]string{
			2:  "124.50",
			3:  "124.00",
			11: "120.00",
			21: "115.00",
			31: "110.00",
		}
		for tier, want := range cases {
			assert.True(t, decimal.RequireFromString(want).Equal(ThresholdFor(tier)),
				"tier %d: want %s, got %s", tier, want, ThresholdFor(tier))
		}
	})

	t.Run("floors at 110 for deep tiers", func(t *testing.T) {
		for _, tier := range []uint64{32, 50, 100, 1_000_000} {
			assert.True(t, decimal.RequireFromString("110.00").Equal(ThresholdFor(tier)),
				"tier %d should floor at 110", tier)
		}
	})

	t.Run("monotonically non-increasing", func(t *testing.T) {
		prev := ThresholdFor(1)
		for tier := uint64(2); tier <= 60; tier++ {
			cur := ThresholdFor(tier)
			assert.True(t, cur.LessThanOrEqual(prev), "tier %d increased the threshold", tier)
			prev = cur
		}
	})
}
