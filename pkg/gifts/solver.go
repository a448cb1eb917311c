// Package gifts decomposes a requested stars total into a fixed set of gift
// denominations and formats the result for buyer-facing summaries.
package gifts

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInfeasible is returned when no combination of denominations sums to the
// requested total. Callers must surface this to the buyer, never treat it as
// zero gifts.
var ErrInfeasible = errors.New("no gift combination sums to the requested total")

// DefaultDenominations is the shipped denomination set, largest first.
var DefaultDenominations = DenominationSet{100, 50, 25, 15}

// DenominationSet is a descending-ordered collection of positive gift sizes.
// It is fixed configuration: loaded once, immutable during a solve.
type DenominationSet []int

// Validate checks ordering and positivity. A set must be non-empty, strictly
// descending, and all-positive for Solve to behave as documented.
func (s DenominationSet) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("denomination set is empty")
	}
	for i, d := range s {
		if d <= 0 {
			return fmt.Errorf("denomination %d is not positive", d)
		}
		if i > 0 && s[i-1] <= d {
			return fmt.Errorf("denominations must be strictly descending: %d before %d", s[i-1], d)
		}
	}
	return nil
}

// Decomposition maps denomination to a non-negative gift count.
type Decomposition map[int]int

// Total returns Σ(denomination × count).
func (d Decomposition) Total() int {
	total := 0
	for denom, count := range d {
		total += denom * count
	}
	return total
}

// Units returns the count sum across all denominations.
func (d Decomposition) Units() int {
	units := 0
	for _, count := range d {
		units += count
	}
	return units
}

// Summary renders per-denomination lines for the buyer report, largest
// denomination first, skipping zero counts.
func (d Decomposition) Summary() string {
	denoms := make([]int, 0, len(d))
	for denom := range d {
		denoms = append(denoms, denom)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(denoms)))

	var lines []string
	for _, denom := range denoms {
		count := d[denom]
		if count == 0 {
			continue
		}
		noun := "gifts"
		if count == 1 {
			noun = "gift"
		}
		lines = append(lines, fmt.Sprintf("%d %s of %d stars", count, noun, denom))
	}
	return strings.Join(lines, "\n")
}

// Solve finds one decomposition of total over the given denomination set.
//
// The search is depth-first and greedy-biased: for the largest denomination it
// starts at total/denom and walks down to zero, recursing into the remaining
// denominations the same way. The first branch whose final remainder divides
// the smallest denomination evenly wins, with the smallest denomination's
// count computed from that remainder. The order is fixed, so results are
// deterministic for identical inputs. This is the externally observable
// combination buyers see in reports, so it must not be "optimized" into a
// count-minimizing variant.
//
// total == 0 yields an all-zero decomposition. If no branch works, Solve
// returns ErrInfeasible.
func Solve(total int, set DenominationSet) (Decomposition, error) {
	if total < 0 {
		return nil, fmt.Errorf("total must be non-negative, got %d", total)
	}
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("invalid denomination set: %w", err)
	}

	counts := make([]int, len(set))
	if !solve(total, set, counts, 0) {
		return nil, fmt.Errorf("total %d over set %v: %w", total, set, ErrInfeasible)
	}

	result := make(Decomposition, len(set))
	for i, denom := range set {
		result[denom] = counts[i]
	}
	return result, nil
}

// solve fills counts[i:] for the given remainder. The base case handles the
// smallest denomination by divisibility rather than iteration, matching the
// documented search order.
func solve(remainder int, set DenominationSet, counts []int, i int) bool {
	if i == len(set)-1 {
		smallest := set[i]
		if remainder%smallest != 0 {
			return false
		}
		counts[i] = remainder / smallest
		return true
	}

	for count := remainder / set[i]; count >= 0; count-- {
		counts[i] = count
		if solve(remainder-count*set[i], set, counts, i+1) {
			return true
		}
	}
	return false
}
