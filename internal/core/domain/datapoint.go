package domain

import "time"

// Channel is one of the fixed acquisition channels tracked in ChannelShares.
type Channel string

const (
	ChannelOrganic  Channel = "organic"
	ChannelPaid     Channel = "paid"
	ChannelSocial   Channel = "social"
	ChannelReferral Channel = "referral"
	ChannelEmail    Channel = "email"
)

// Channels is the closed channel set in canonical order.
var Channels = []Channel{ChannelOrganic, ChannelPaid, ChannelSocial, ChannelReferral, ChannelEmail}

const (
	MinActiveUsers = 120
	MaxActiveUsers = 2400

	MinSignups = 0
	MaxSignups = 160

	MinLatencyP95 = 150
	MaxLatencyP95 = 950

	MinErrorRate = 0.002
	MaxErrorRate = 0.16

	MinChannelShare = 0.03
	MaxChannelShare = 0.72
)

// DataPoint is the unit of broadcast. Values are never mutated once built.
type DataPoint struct {
	Timestamp     int64               `json:"timestamp"`
	ActiveUsers   int                 `json:"activeUsers"`
	Signups       int                 `json:"signups"`
	Conversions   int                 `json:"conversions"`
	Revenue       int                 `json:"revenue"`
	LatencyP95    int                 `json:"latencyP95"`
	ErrorRate     float64             `json:"errorRate"`
	ChannelShares map[Channel]float64 `json:"channelShares"`
}

// SeedPoint returns the deterministic first point of a fresh generator.
func SeedPoint(now time.Time) DataPoint {
	return DataPoint{
		Timestamp:   now.UnixMilli(),
		ActiveUsers: 860,
		Signups:     42,
		Conversions: 7,
		Revenue:     7 * 89,
		LatencyP95:  240,
		ErrorRate:   0.012,
		ChannelShares: map[Channel]float64{
			ChannelOrganic:  0.34,
			ChannelPaid:     0.22,
			ChannelSocial:   0.18,
			ChannelReferral: 0.14,
			ChannelEmail:    0.12,
		},
	}
}

// Time returns the point timestamp as a time.Time.
func (p DataPoint) Time() time.Time {
	return time.UnixMilli(p.Timestamp)
}

// ShareSum returns the sum of all channel shares.
func (p DataPoint) ShareSum() float64 {
	var sum float64
	for _, c := range Channels {
		sum += p.ChannelShares[c]
	}
	return sum
}
