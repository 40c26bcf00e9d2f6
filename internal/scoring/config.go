// Package scoring implements the per-factor comparators and the weighted
// composite scorer used to decide how likely two candidate records are to
// describe the same underlying payment.
//
// Every scorer is a pure function of its two input records and the active
// configuration: the same inputs always produce the same score. Thresholds
// live in the individual scorers; the matching policy (how factors trade off
// against each other) is centralized in the composite weights.
package scoring

import (
	"fmt"
	"math"
)

// WeightSumTolerance is the floating tolerance within which the four
// composite weights must sum to 1.0.
const WeightSumTolerance = 1e-6

// Weights defines the relative importance of the four matching factors.
// They must sum to 1.0.
type Weights struct {
	Amount       float64 `json:"amount"`
	Date         float64 `json:"date"`
	Counterparty float64 `json:"counterparty"`
	Reference    float64 `json:"reference"`
}

// DefaultWeights returns the standard factor weighting
func DefaultWeights() Weights {
	return Weights{
		Amount:       0.50,
		Date:         0.25,
		Counterparty: 0.15,
		Reference:    0.10,
	}
}

// Validate checks that every weight is in [0,1] and that the weights sum to
// 1.0 within WeightSumTolerance
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"amount":       w.Amount,
		"date":         w.Date,
		"counterparty": w.Counterparty,
		"reference":    w.Reference,
	} {
		if v < 0.0 || v > 1.0 {
			return fmt.Errorf("%s weight must be between 0.0 and 1.0: %f", name, v)
		}
	}

	sum := w.Amount + w.Date + w.Counterparty + w.Reference
	if math.Abs(sum-1.0) > WeightSumTolerance {
		return fmt.Errorf("weights must sum to 1.0, got %f", sum)
	}

	return nil
}

// Config holds the tunable parameters of the scoring pipeline. A Config is
// validated once at session start; scorers assume a valid configuration.
type Config struct {
	// AmountTolerancePercent is the relative amount difference (in percent)
	// that still scores 1.0. The amount score decays linearly to 0 at three
	// times this tolerance.
	AmountTolerancePercent float64 `json:"amount_tolerance_percent"`

	// DateToleranceDays is the day-difference tolerance. The date score
	// decays linearly from 1.0 at zero days to 0 at twice this window.
	DateToleranceDays int `json:"date_tolerance_days"`

	// CounterpartySimilarityThreshold is a display cutoff for "close match"
	// hints in reports. It is never used as a hard gate.
	CounterpartySimilarityThreshold float64 `json:"counterparty_similarity_threshold"`

	// MinConfidence is the composite floor below which a pair is no_match
	// and never offered to the matcher.
	MinConfidence float64 `json:"min_confidence"`

	// MinReferenceLength is the shortest document-number token that earns
	// full credit on a substring match; shorter substring matches earn 0.5.
	MinReferenceLength int `json:"min_reference_length"`

	Weights Weights `json:"weights"`
}

// DefaultConfig returns a configuration with the standard tolerances
func DefaultConfig() *Config {
	return &Config{
		AmountTolerancePercent:          1.0,
		DateToleranceDays:               3,
		CounterpartySimilarityThreshold: 0.80,
		MinConfidence:                   0.70,
		MinReferenceLength:              6,
		Weights:                         DefaultWeights(),
	}
}

// Validate checks the scoring configuration. It is called at session start;
// an invalid configuration must never reach the scoring loop.
func (c *Config) Validate() error {
	if c.AmountTolerancePercent <= 0.0 || c.AmountTolerancePercent > 100.0 {
		return fmt.Errorf("amount tolerance percent must be in (0.0, 100.0]: %f", c.AmountTolerancePercent)
	}

	if c.DateToleranceDays <= 0 {
		return fmt.Errorf("date tolerance days must be positive: %d", c.DateToleranceDays)
	}

	if c.CounterpartySimilarityThreshold < 0.0 || c.CounterpartySimilarityThreshold > 1.0 {
		return fmt.Errorf("counterparty similarity threshold must be between 0.0 and 1.0: %f", c.CounterpartySimilarityThreshold)
	}

	if c.MinConfidence <= 0.0 || c.MinConfidence > 1.0 {
		return fmt.Errorf("minimum confidence must be in (0.0, 1.0]: %f", c.MinConfidence)
	}

	if c.MinReferenceLength <= 0 {
		return fmt.Errorf("minimum reference length must be positive: %d", c.MinReferenceLength)
	}

	if err := c.Weights.Validate(); err != nil {
		return fmt.Errorf("invalid weights: %w", err)
	}

	return nil
}

// Clone creates a copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// String returns a human-readable description of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("ScoringConfig{AmountTolerance: %.2f%%, DateTolerance: %d days, MinConfidence: %.2f}",
		c.AmountTolerancePercent, c.DateToleranceDays, c.MinConfidence)
}

// Tier is the bucketed confidence label derived from a composite score.
type Tier string

const (
	TierHigh    Tier = "high"
	TierMedium  Tier = "medium"
	TierLow     Tier = "low"
	TierNoMatch Tier = "no_match"
)

// Composite tier boundaries. The low boundary is the configured minimum
// confidence; high and medium are fixed.
const (
	highTierFloor   = 0.90
	mediumTierFloor = 0.80
)

// TierFor classifies a composite score into a confidence tier
func (c *Config) TierFor(score float64) Tier {
	switch {
	case score < c.MinConfidence:
		return TierNoMatch
	case score >= highTierFloor:
		return TierHigh
	case score >= mediumTierFloor:
		return TierMedium
	default:
		return TierLow
	}
}
