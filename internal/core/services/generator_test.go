package services

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"liverelay/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_NilPreviousYieldsSeed(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	p := NewGenerator(1, 2).NextPoint(nil, now)

	assert.Equal(t, domain.SeedPoint(now), p)
	assert.Equal(t, 623, p.Revenue)
	require.NoError(t, ValidatePoint(p))
}

func TestGenerator_InvariantsHoldOverManyTicks(t *testing.T) {
	g := NewGenerator(42, 1337)
	now := time.UnixMilli(1_700_000_000_000)

	var prev *domain.DataPoint
	for i := 0; i < 10_000; i++ {
		now = now.Add(time.Second)
		p := g.NextPoint(prev, now)

		require.NoError(t, ValidatePoint(p), "tick %d: %+v", i, p)
		require.Equal(t, now.UnixMilli(), p.Timestamp)
		require.LessOrEqual(t, p.Conversions, p.Signups)
		require.GreaterOrEqual(t, p.Revenue, 0)
		require.Len(t, p.ChannelShares, len(domain.Channels))
		require.InDelta(t, 1.0, p.ShareSum(), 1e-9)
		for _, c := range domain.Channels {
			require.Greater(t, p.ChannelShares[c], 0.0)
		}
		require.Equal(t, p.ErrorRate, math.Round(p.ErrorRate*1e4)/1e4)

		prev = &p
	}
}

func TestGenerator_RevenueIsConversionsTimesOrderValue(t *testing.T) {
	g := NewGenerator(9, 9)
	prev := domain.SeedPoint(time.Now())

	for i := 0; i < 1000; i++ {
		p := g.NextPoint(&prev, time.Now())
		if p.Conversions == 0 {
			assert.Zero(t, p.Revenue)
		} else {
			assert.Zero(t, p.Revenue%p.Conversions)
			aov := p.Revenue / p.Conversions
			assert.GreaterOrEqual(t, aov, minOrderValue)
			assert.LessOrEqual(t, aov, maxOrderValue)
		}
		prev = p
	}
}

func TestGenerator_ActiveUsersStepIsBounded(t *testing.T) {
	g := NewGenerator(3, 4)
	prev := domain.SeedPoint(time.Now())

	for i := 0; i < 1000; i++ {
		p := g.NextPoint(&prev, time.Now())
		assert.LessOrEqual(t, abs(p.ActiveUsers-prev.ActiveUsers), activeUsersJitter/2)
		prev = p
	}
}

func TestGenerator_DoesNotMutatePrevious(t *testing.T) {
	prev := domain.SeedPoint(time.Now())
	before, err := json.Marshal(prev)
	require.NoError(t, err)

	next := NewGenerator(5, 6).NextPoint(&prev, time.Now())
	next.ChannelShares[domain.ChannelEmail] = 0.99

	after, err := json.Marshal(prev)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestGenerator_DeterministicForSeed(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	run := func() []domain.DataPoint {
		g := NewGenerator(77, 88)
		var out []domain.DataPoint
		var prev *domain.DataPoint
		for i := 0; i < 50; i++ {
			p := g.NextPoint(prev, now.Add(time.Duration(i)*time.Second))
			out = append(out, p)
			prev = &p
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestGenerator_RecoversMissingShares(t *testing.T) {
	prev := domain.SeedPoint(time.Now())
	prev.ChannelShares = map[domain.Channel]float64{domain.ChannelOrganic: 0.9}

	p := NewGenerator(1, 1).NextPoint(&prev, time.Now())
	require.Len(t, p.ChannelShares, len(domain.Channels))
	assert.InDelta(t, 1.0, p.ShareSum(), 1e-9)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
