package keyconfig

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// ThresholdKind tags the variant held by a SignatureThreshold.
type ThresholdKind int

const (
	SimpleThreshold ThresholdKind = iota
	WeightedThreshold
)

// SignatureThreshold is either Simple(n) — require any n signatures — or
// Weighted(weights) — each signature contributes a weight, and the sum over
// present signers must be >= 1. Weighted arithmetic is exact rational
// arithmetic (no floating point), per spec.
type SignatureThreshold struct {
	Kind     ThresholdKind
	Simple   int
	Weighted []*big.Rat
}

// NewSimpleThreshold builds a Simple(n) threshold.
func NewSimpleThreshold(n int) SignatureThreshold {
	return SignatureThreshold{Kind: SimpleThreshold, Simple: n}
}

// NewWeightedThreshold builds a Weighted threshold from a list of rationals.
func NewWeightedThreshold(weights []*big.Rat) SignatureThreshold {
	return SignatureThreshold{Kind: WeightedThreshold, Weighted: weights}
}

// CanonicalEncoding returns the deterministic encoding used as the seed for
// the next-key commitment (spec.md §4.1 step 1): the decimal string for a
// Simple threshold, or a JSON array of reduced-fraction strings for a
// Weighted threshold (e.g. ["1/2","1/2","1/2"]).
func (t SignatureThreshold) CanonicalEncoding() []byte {
	switch t.Kind {
	case SimpleThreshold:
		return []byte(fmt.Sprintf("%d", t.Simple))
	case WeightedThreshold:
		parts := make([]string, len(t.Weighted))
		for i, w := range t.Weighted {
			parts[i] = w.RatString()
		}
		enc, _ := json.Marshal(parts)
		return enc
	default:
		return nil
	}
}

// satisfiedBy reports whether the set of valid-signature indices meets the
// threshold.
func (t SignatureThreshold) satisfiedBy(validIndices map[int]bool) bool {
	switch t.Kind {
	case SimpleThreshold:
		return len(validIndices) >= t.Simple
	case WeightedThreshold:
		sum := new(big.Rat)
		for i := range validIndices {
			if i < 0 || i >= len(t.Weighted) {
				continue
			}
			sum.Add(sum, t.Weighted[i])
		}
		return sum.Cmp(big.NewRat(1, 1)) >= 0
	default:
		return false
	}
}
