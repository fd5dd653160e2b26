package services

import (
	"errors"
	"testing"
	"time"

	"liverelay/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePoint(t *testing.T) {
	p, err := DecodePoint([]byte(`{"timestamp":1,"activeUsers":900,"channelShares":{"organic":1}}`))
	require.NoError(t, err)
	assert.Equal(t, 900, p.ActiveUsers)
	assert.Equal(t, 1.0, p.ChannelShares[domain.ChannelOrganic])

	for _, bad := range []string{`not-json`, `{"bogus":1}`, `{"timestamp":1}{"timestamp":2}`, `[1,2]`} {
		_, err := DecodePoint([]byte(bad))
		assert.True(t, errors.Is(err, domain.ErrInvalidPayload), "payload %q: %v", bad, err)
	}
}

func TestValidatePoint_SeedAndGenerated(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	seed := domain.SeedPoint(now)
	require.NoError(t, ValidatePoint(seed))

	g := NewGenerator(1, 2)
	prev := &seed
	for i := 0; i < 200; i++ {
		next := g.NextPoint(prev, now.Add(time.Duration(i)*time.Second))
		require.NoError(t, ValidatePoint(next), "tick %d", i)
		prev = &next
	}
}

func TestValidatePoint_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *domain.DataPoint)
	}{
		{"zero timestamp", func(p *domain.DataPoint) { p.Timestamp = 0 }},
		{"active users too high", func(p *domain.DataPoint) { p.ActiveUsers = 5000 }},
		{"negative signups", func(p *domain.DataPoint) { p.Signups = -1 }},
		{"conversions above signups", func(p *domain.DataPoint) { p.Conversions = p.Signups + 1 }},
		{"latency too low", func(p *domain.DataPoint) { p.LatencyP95 = 10 }},
		{"error rate too high", func(p *domain.DataPoint) { p.ErrorRate = 0.5 }},
		{"negative revenue", func(p *domain.DataPoint) { p.Revenue = -1 }},
		{"missing channel", func(p *domain.DataPoint) { delete(p.ChannelShares, domain.ChannelEmail) }},
		{"unknown channel", func(p *domain.DataPoint) {
			delete(p.ChannelShares, domain.ChannelEmail)
			p.ChannelShares["tv"] = 0.12
		}},
		{"shares do not sum to one", func(p *domain.DataPoint) { p.ChannelShares[domain.ChannelOrganic] = 0.9 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := domain.SeedPoint(time.UnixMilli(1_700_000_000_000))
			tt.mutate(&p)
			assert.Error(t, ValidatePoint(p))
		})
	}
}
