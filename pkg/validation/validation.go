package validation

import (
	"fmt"
	"math"
	"net/url"
	"strings"
)

// ValidateIntRange checks lo <= v <= hi.
func ValidateIntRange(v, lo, hi int, fieldName string) error {
	if v < lo || v > hi {
		return fmt.Errorf("%s must be between %d and %d, got %d", fieldName, lo, hi, v)
	}
	return nil
}

// ValidateFloatRange checks lo <= v <= hi and that v is a finite number.
func ValidateFloatRange(v, lo, hi float64, fieldName string) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%s must be a finite number", fieldName)
	}
	if v < lo || v > hi {
		return fmt.Errorf("%s must be between %g and %g, got %g", fieldName, lo, hi, v)
	}
	return nil
}

// ValidateShares checks that shares holds exactly the allowed keys and sums
// to 1 within tolerance.
func ValidateShares(shares map[string]float64, allowed []string, tolerance float64) error {
	if len(shares) != len(allowed) {
		return fmt.Errorf("expected %d shares, got %d", len(allowed), len(shares))
	}
	var sum float64
	for _, key := range allowed {
		v, ok := shares[key]
		if !ok {
			return fmt.Errorf("missing share %q", key)
		}
		if err := ValidateFloatRange(v, 0, 1, "share "+key); err != nil {
			return err
		}
		sum += v
	}
	if math.Abs(sum-1) > tolerance {
		return fmt.Errorf("shares must sum to 1, got %g", sum)
	}
	return nil
}

// ValidatePath validates an HTTP route path.
func ValidatePath(path, fieldName string) error {
	if path == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("%s must start with '/'", fieldName)
	}
	if strings.ContainsAny(path, " ?#*:") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}
	return nil
}

// ValidateURL validates URL format
func ValidateURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme (must be http or https)")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
