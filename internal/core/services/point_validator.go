package services

import (
	"bytes"
	"encoding/json"
	"fmt"

	"liverelay/internal/core/domain"
	"liverelay/pkg/validation"
)

const shareSumTolerance = 1e-6

var channelNames = func() []string {
	names := make([]string, len(domain.Channels))
	for i, c := range domain.Channels {
		names[i] = string(c)
	}
	return names
}()

// DecodePoint parses payload as a DataPoint, rejecting unknown fields.
func DecodePoint(payload []byte) (domain.DataPoint, error) {
	var p domain.DataPoint
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return domain.DataPoint{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if dec.More() {
		return domain.DataPoint{}, fmt.Errorf("%w: trailing data", domain.ErrInvalidPayload)
	}
	return p, nil
}

// ValidatePoint checks the invariants every generated point satisfies.
func ValidatePoint(p domain.DataPoint) error {
	if p.Timestamp <= 0 {
		return fmt.Errorf("timestamp must be a positive epoch millisecond value")
	}
	checks := []error{
		validation.ValidateIntRange(p.ActiveUsers, domain.MinActiveUsers, domain.MaxActiveUsers, "activeUsers"),
		validation.ValidateIntRange(p.Signups, domain.MinSignups, domain.MaxSignups, "signups"),
		validation.ValidateIntRange(p.Conversions, 0, p.Signups, "conversions"),
		validation.ValidateIntRange(p.LatencyP95, domain.MinLatencyP95, domain.MaxLatencyP95, "latencyP95"),
		validation.ValidateFloatRange(p.ErrorRate, domain.MinErrorRate, domain.MaxErrorRate, "errorRate"),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	if p.Revenue < 0 {
		return fmt.Errorf("revenue must be >= 0, got %d", p.Revenue)
	}

	shares := make(map[string]float64, len(p.ChannelShares))
	for c, v := range p.ChannelShares {
		shares[string(c)] = v
	}
	if err := validation.ValidateShares(shares, channelNames, shareSumTolerance); err != nil {
		return fmt.Errorf("channelShares: %w", err)
	}
	return nil
}
