package services

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"liverelay/internal/core/domain"
)

const (
	shareJitter        = 0.009
	activeUsersJitter  = 42
	usersPerSignup     = 118.0
	signupNoiseMax     = 9
	conversionRate     = 0.17
	conversionSpread   = 0.10
	minOrderValue      = 49
	maxOrderValue      = 129
	latencySpikeChance = 0.05
	latencySpikeMin    = 170
	latencySpikeMax    = 430
	latencyJitter      = 32
	errorBaseMin       = 0.007
	errorBaseSpread    = 0.012
	errorLatencyBump   = 0.02
	errorIncidentBump  = 0.03
	errorIncidentRate  = 0.02
	errorLatencyLimit  = 500
)

// Generator produces synthetic data points as a bounded random walk.
// Its only state is the random source.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a generator backed by a PCG source with the given seeds.
func NewGenerator(seed1, seed2 uint64) *Generator {
	return NewGeneratorWithRand(rand.New(rand.NewPCG(seed1, seed2)))
}

func NewGeneratorWithRand(rng *rand.Rand) *Generator {
	return &Generator{rng: rng}
}

// NextPoint derives the next point from prev. A nil prev yields the seed point.
func (g *Generator) NextPoint(prev *domain.DataPoint, now time.Time) domain.DataPoint {
	if prev == nil {
		return domain.SeedPoint(now)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	shares := g.nextShares(prev.ChannelShares)

	activeUsers := clampInt(prev.ActiveUsers+g.centered(activeUsersJitter), domain.MinActiveUsers, domain.MaxActiveUsers)

	signups := int(math.Round(float64(activeUsers)/usersPerSignup)) + g.rng.IntN(signupNoiseMax+1)
	signups = clampInt(signups, domain.MinSignups, domain.MaxSignups)

	rate := conversionRate + (g.rng.Float64()-0.5)*conversionSpread
	conversions := clampInt(int(math.Round(float64(signups)*rate)), 0, signups)

	aov := minOrderValue + g.rng.IntN(maxOrderValue-minOrderValue+1)
	revenue := conversions * aov

	spike := 0
	if g.rng.Float64() < latencySpikeChance {
		spike = latencySpikeMin + g.rng.IntN(latencySpikeMax-latencySpikeMin+1)
	}
	latency := clampInt(prev.LatencyP95+g.centered(latencyJitter)+spike, domain.MinLatencyP95, domain.MaxLatencyP95)

	errorRate := errorBaseMin + g.rng.Float64()*errorBaseSpread
	if latency > errorLatencyLimit {
		errorRate += errorLatencyBump
	}
	if g.rng.Float64() < errorIncidentRate {
		errorRate += errorIncidentBump
	}
	errorRate = clampFloat(roundTo(errorRate, 4), domain.MinErrorRate, domain.MaxErrorRate)

	return domain.DataPoint{
		Timestamp:     now.UnixMilli(),
		ActiveUsers:   activeUsers,
		Signups:       signups,
		Conversions:   conversions,
		Revenue:       revenue,
		LatencyP95:    latency,
		ErrorRate:     errorRate,
		ChannelShares: shares,
	}
}

// nextShares jitters and clamps every share, then renormalizes to 1.
// Missing channels in prev start from an even split.
func (g *Generator) nextShares(prev map[domain.Channel]float64) map[domain.Channel]float64 {
	even := 1.0 / float64(len(domain.Channels))
	next := make(map[domain.Channel]float64, len(domain.Channels))

	var sum float64
	for _, c := range domain.Channels {
		base, ok := prev[c]
		if !ok || math.IsNaN(base) {
			base = even
		}
		v := clampFloat(base+(g.rng.Float64()*2-1)*shareJitter, domain.MinChannelShare, domain.MaxChannelShare)
		next[c] = v
		sum += v
	}
	for _, c := range domain.Channels {
		next[c] /= sum
	}
	return next
}

// centered returns an integer in [-span/2, span/2].
func (g *Generator) centered(span int) int {
	return int(math.Round((g.rng.Float64() - 0.5) * float64(span)))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
