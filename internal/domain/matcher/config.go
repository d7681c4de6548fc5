package matcher

import (
	"fmt"
	"math"
)

// Weights control how much each field score contributes to the aggregate
// confidence. They must sum to 1.
type Weights struct {
	Amount float64 `yaml:"amount"`
	Date   float64 `yaml:"date"`
	Vendor float64 `yaml:"vendor"`
}

// Config holds matching engine configuration.
type Config struct {
	Weights Weights `yaml:"weights"`

	// AutoApproveThreshold finalizes a match immediately when confidence
	// reaches it. ReviewThreshold routes a match to manual review; below it
	// no match is created.
	AutoApproveThreshold float64 `yaml:"auto_approve_threshold"`
	ReviewThreshold      float64 `yaml:"review_threshold"`

	// DateWindowDays bounds how far apart a transaction and expense may be
	// posted and still be considered a candidate pair.
	DateWindowDays int `yaml:"date_window_days"`

	// AmountTolerancePct is the maximum relative amount difference for a
	// candidate pair, as a fraction of the larger amount (0.05 = 5%).
	AmountTolerancePct float64 `yaml:"amount_tolerance_pct"`

	// Workers bounds the number of goroutines scoring candidates.
	Workers int `yaml:"workers"`
}

// DefaultConfig returns sensible defaults. Amount and date dominate the
// weights because vendor text is the noisiest signal.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Amount: 0.45,
			Date:   0.35,
			Vendor: 0.20,
		},
		AutoApproveThreshold: 0.90,
		ReviewThreshold:      0.50,
		DateWindowDays:       7,
		AmountTolerancePct:   0.05,
		Workers:              4,
	}
}

const weightSumEpsilon = 1e-9

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	sum := c.Weights.Amount + c.Weights.Date + c.Weights.Vendor
	if math.Abs(sum-1.0) > weightSumEpsilon {
		return fmt.Errorf("weights must sum to 1, got %v", sum)
	}
	if c.Weights.Amount < 0 || c.Weights.Date < 0 || c.Weights.Vendor < 0 {
		return fmt.Errorf("weights must be non-negative")
	}
	if c.AutoApproveThreshold < 0 || c.AutoApproveThreshold > 1 {
		return fmt.Errorf("auto approve threshold must be in [0,1], got %v", c.AutoApproveThreshold)
	}
	if c.ReviewThreshold < 0 || c.ReviewThreshold > 1 {
		return fmt.Errorf("review threshold must be in [0,1], got %v", c.ReviewThreshold)
	}
	if c.ReviewThreshold > c.AutoApproveThreshold {
		return fmt.Errorf("review threshold %v exceeds auto approve threshold %v",
			c.ReviewThreshold, c.AutoApproveThreshold)
	}
	if c.DateWindowDays <= 0 {
		return fmt.Errorf("date window must be positive, got %d days", c.DateWindowDays)
	}
	if c.AmountTolerancePct <= 0 || c.AmountTolerancePct > 1 {
		return fmt.Errorf("amount tolerance must be in (0,1], got %v", c.AmountTolerancePct)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	return nil
}
