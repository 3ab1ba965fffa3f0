// Package matcher pairs ledger entries with bank transactions.
//
// Matching runs in two passes over normalized transactions:
//  1. Direct matching: equal amounts whose dates are at most the tolerance
//     apart are paired one-to-one, greedily by ascending date distance.
//  2. Group resolution: each transaction still unmatched is used as an anchor
//     and a subset of counterpart transactions summing exactly to its amount
//     is searched for, within the same date window and a bounded budget.
//
// Both passes are deterministic: identical inputs always produce identical
// pairings and group ids.
//
// Example usage:
//
//	config := matcher.DefaultMatchingConfig()
//	config.ToleranceDays = 2
//
//	alloc := matcher.NewGroupAllocator()
//	direct := matcher.NewMatcher(config).Match(ctx, ledger, bank, alloc)
//	groups := matcher.NewGroupResolver(config, log).
//		Resolve(ctx, direct.UnmatchedLedger, direct.UnmatchedBank, alloc)
package matcher

import (
	"fmt"
	"time"
)

const (
	// MinToleranceDays and MaxToleranceDays bound the accepted date tolerance.
	MinToleranceDays = 0
	MaxToleranceDays = 60

	// DefaultToleranceDays is the tolerance used when none is given.
	DefaultToleranceDays = 3

	// MaxGroupSizeLimit caps MaxGroupSize. Beyond this the subset search is
	// no longer worth running even with a budget.
	MaxGroupSizeLimit = 8
)

// MatchingConfig holds the parameters of both matching passes.
//
// The search limits apply per anchor:
//   - MaxGroupSize is K, the largest number of counterpart members a group may have
//   - MaxCandidates rejects a date window holding more counterparts than this
//   - MaxSearchNodes caps the subsets enumerated for one anchor
//   - SearchTimeout caps wall-clock time for one anchor; zero disables it
//
// An anchor that hits any limit stays unmatched and is reported as
// search_budget_exceeded. The search is never retried with a larger K.
type MatchingConfig struct {
	// ToleranceDays is the maximum date distance, in calendar days, between
	// matched transactions
	ToleranceDays int `json:"tolerance_days" mapstructure:"tolerance_days"`

	// EnableGroups turns the combinatorial pass on
	EnableGroups bool `json:"enable_groups" mapstructure:"enable_groups"`

	MaxGroupSize   int           `json:"max_group_size" mapstructure:"max_group_size"`
	MaxCandidates  int           `json:"max_candidates" mapstructure:"max_candidates"`
	MaxSearchNodes int           `json:"max_search_nodes" mapstructure:"max_search_nodes"`
	SearchTimeout  time.Duration `json:"search_timeout" mapstructure:"search_timeout"`
}

// DefaultMatchingConfig returns a configuration with sensible defaults
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		ToleranceDays:  DefaultToleranceDays,
		EnableGroups:   true,
		MaxGroupSize:   5,
		MaxCandidates:  24,
		MaxSearchNodes: 200000,
	}
}

// StrictMatchingConfig returns a configuration for same-day matching with small groups
func StrictMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		ToleranceDays:  0,
		EnableGroups:   true,
		MaxGroupSize:   3,
		MaxCandidates:  16,
		MaxSearchNodes: 50000,
	}
}

// RelaxedMatchingConfig returns a configuration for a wide window and larger groups
func RelaxedMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		ToleranceDays:  7,
		EnableGroups:   true,
		MaxGroupSize:   6,
		MaxCandidates:  28,
		MaxSearchNodes: 1000000,
		SearchTimeout:  500 * time.Millisecond,
	}
}

// ValidateTolerance checks a tolerance against the accepted range
func ValidateTolerance(days int) error {
	if days < MinToleranceDays || days > MaxToleranceDays {
		return fmt.Errorf("tolerance days must be between %d and %d: %d", MinToleranceDays, MaxToleranceDays, days)
	}
	return nil
}

// Validate checks if the matching configuration is valid
func (mc *MatchingConfig) Validate() error {
	if err := ValidateTolerance(mc.ToleranceDays); err != nil {
		return err
	}

	if mc.MaxGroupSize < 2 || mc.MaxGroupSize > MaxGroupSizeLimit {
		return fmt.Errorf("max group size must be between 2 and %d: %d", MaxGroupSizeLimit, mc.MaxGroupSize)
	}

	// Meet-in-the-middle enumerates each half as a bitmask.
	if mc.MaxCandidates < mc.MaxGroupSize || mc.MaxCandidates > 40 {
		return fmt.Errorf("max candidates must be between max group size and 40: %d", mc.MaxCandidates)
	}

	if mc.MaxSearchNodes <= 0 {
		return fmt.Errorf("max search nodes must be positive: %d", mc.MaxSearchNodes)
	}

	if mc.SearchTimeout < 0 {
		return fmt.Errorf("search timeout cannot be negative: %s", mc.SearchTimeout)
	}

	return nil
}

// Clone creates a copy of the matching configuration
func (mc *MatchingConfig) Clone() *MatchingConfig {
	if mc == nil {
		return nil
	}
	clone := *mc
	return &clone
}

// WithTolerance returns a copy of the configuration using days as tolerance.
func (mc *MatchingConfig) WithTolerance(days int) *MatchingConfig {
	clone := mc.Clone()
	clone.ToleranceDays = days
	return clone
}

// String returns a human-readable description of the configuration
func (mc *MatchingConfig) String() string {
	return fmt.Sprintf("MatchingConfig{Tolerance: %d days, Groups: %t, K: %d, MaxCandidates: %d, MaxNodes: %d, Timeout: %s}",
		mc.ToleranceDays, mc.EnableGroups, mc.MaxGroupSize, mc.MaxCandidates, mc.MaxSearchNodes, mc.SearchTimeout)
}
