package matcher

import "time"

// searchBudget caps the work spent on one anchor.
type searchBudget struct {
	maxNodes int
	nodes    int
	deadline time.Time
	reason   string
}

func newSearchBudget(maxNodes int, timeout time.Duration) *searchBudget {
	b := &searchBudget{maxNodes: maxNodes}
	if timeout > 0 {
		b.deadline = time.Now().Add(timeout)
	}
	return b
}

// spend records one visited node and reports whether the search may go on.
func (b *searchBudget) spend() bool {
	if b.reason != "" {
		return false
	}
	b.nodes++
	if b.nodes > b.maxNodes {
		b.reason = "node limit reached"
		return false
	}
	if !b.deadline.IsZero() && b.nodes&255 == 0 && time.Now().After(b.deadline) {
		b.reason = "time limit reached"
		return false
	}
	return true
}

func (b *searchBudget) exhaust(reason string) {
	if b.reason == "" {
		b.reason = reason
	}
}

func (b *searchBudget) exceeded() bool {
	return b.reason != ""
}

type sumSize struct {
	sum  int64
	size int
}

// solveSubset looks for indices into amounts, between minSize and maxSize of
// them, whose amounts add up to target. It runs meet-in-the-middle: subsets of
// the first half are tabulated by (sum, size), then each subset of the second
// half looks up its complement.
//
// The answer is the smallest subset; among equal sizes, the lexicographically
// smallest index sequence. Callers order amounts by preference so this picks
// the preferred members. Returns nil when no subset exists or the budget ran out.
func solveSubset(amounts []int64, target int64, minSize, maxSize int, budget *searchBudget) []int {
	n := len(amounts)
	if n == 0 || maxSize < minSize {
		return nil
	}
	mid := n / 2

	// DFS emits subsets in lexicographic order, so the first subset stored
	// for a (sum, size) is the smallest one.
	left := make(map[sumSize][]int)
	enumerateSubsets(amounts, 0, mid, maxSize, budget, func(idx []int, sum int64) {
		key := sumSize{sum: sum, size: len(idx)}
		if _, ok := left[key]; !ok {
			left[key] = append([]int(nil), idx...)
		}
	})
	if budget.exceeded() {
		return nil
	}

	var best []int
	enumerateSubsets(amounts, mid, n, maxSize, budget, func(right []int, sum int64) {
		need := target - sum
		lo := minSize - len(right)
		if lo < 0 {
			lo = 0
		}
		for size := lo; size+len(right) <= maxSize; size++ {
			l, ok := left[sumSize{sum: need, size: size}]
			if !ok {
				continue
			}
			candidate := make([]int, 0, len(l)+len(right))
			candidate = append(candidate, l...)
			candidate = append(candidate, right...)
			if best == nil || betterSubset(candidate, best) {
				best = candidate
			}
			// Larger left subsets only grow the total for this right subset.
			break
		}
	})
	if budget.exceeded() {
		return nil
	}
	return best
}

// betterSubset orders by size, then lexicographically by index.
func betterSubset(a, b []int) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// enumerateSubsets visits every subset of indices [from, to) with at most
// maxSize members, the empty one included, in lexicographic order.
func enumerateSubsets(amounts []int64, from, to, maxSize int, budget *searchBudget, visit func(idx []int, sum int64)) {
	idx := make([]int, 0, maxSize)
	var walk func(start int, sum int64)
	walk = func(start int, sum int64) {
		if !budget.spend() {
			return
		}
		visit(idx, sum)
		if len(idx) == maxSize {
			return
		}
		for i := start; i < to; i++ {
			if budget.exceeded() {
				return
			}
			idx = append(idx, i)
			walk(i+1, sum+amounts[i])
			idx = idx[:len(idx)-1]
		}
	}
	walk(from, 0)
}
