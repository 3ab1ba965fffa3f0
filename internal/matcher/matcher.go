package matcher

import (
	"context"
	"sort"

	"ledger-bank-reconciler/internal/models"
)

// GroupAllocator hands out group ids: monotonic, starting at 1. One
// allocator is shared by both passes of a single run.
type GroupAllocator struct {
	next int
}

// NewGroupAllocator creates an allocator whose first id is 1
func NewGroupAllocator() *GroupAllocator {
	return &GroupAllocator{next: 1}
}

// Next returns a fresh group id
func (ga *GroupAllocator) Next() int {
	id := ga.next
	ga.next++
	return id
}

// Issued returns how many ids were handed out
func (ga *GroupAllocator) Issued() int {
	return ga.next - 1
}

// Pair is a committed one-to-one match
type Pair struct {
	GroupID   int
	Ledger    models.Transaction
	Bank      models.Transaction
	DateDelta int
}

// Group converts the pair into its direct MatchGroup record
func (p Pair) Group() models.MatchGroup {
	return models.MatchGroup{
		GroupID:      p.GroupID,
		Kind:         models.GroupDirect,
		AnchorOrigin: models.OriginLedger,
		AnchorID:     p.Ledger.ID,
		AnchorAmount: p.Ledger.Amount,
		LedgerIDs:    []int{p.Ledger.ID},
		BankIDs:      []int{p.Bank.ID},
	}
}

// MatchOutcome is the result of the direct pass
type MatchOutcome struct {
	Pairs           []Pair
	UnmatchedLedger []models.Transaction
	UnmatchedBank   []models.Transaction
	// Interrupted is set when the context ended before every bucket was visited
	Interrupted bool
}

// Groups returns one direct MatchGroup per pair, in commit order
func (mo *MatchOutcome) Groups() []models.MatchGroup {
	groups := make([]models.MatchGroup, 0, len(mo.Pairs))
	for _, p := range mo.Pairs {
		groups = append(groups, p.Group())
	}
	return groups
}

// Matcher performs direct and date-tolerance one-to-one matching
type Matcher struct {
	config *MatchingConfig
}

// NewMatcher creates a matcher with the specified configuration
func NewMatcher(config *MatchingConfig) *Matcher {
	if config == nil {
		config = DefaultMatchingConfig()
	}
	return &Matcher{config: config}
}

type candidatePair struct {
	ledger models.Transaction
	bank   models.Transaction
	delta  int
}

// Match pairs equal-amount transactions whose dates are within tolerance.
//
// Buckets are visited in ascending amount order. Inside a bucket every
// ledger x bank pair within tolerance is a candidate; candidates are committed
// by ascending date distance, ties broken by the smaller bank id and then the
// smaller ledger id, and a transaction is consumed by its first commit. Each
// commit takes the next id from alloc.
//
// A cancelled context stops between buckets; pairs committed so far stand.
func (m *Matcher) Match(ctx context.Context, ledger, bank []models.Transaction, alloc *GroupAllocator) *MatchOutcome {
	index := NewAmountIndex(ledger, bank)
	usedLedger := make(map[int]bool)
	usedBank := make(map[int]bool)
	outcome := &MatchOutcome{}

	for _, bucket := range index.Buckets {
		if ctx.Err() != nil {
			outcome.Interrupted = true
			break
		}
		if !bucket.Matchable() {
			continue
		}

		for _, c := range m.bucketCandidates(bucket) {
			if usedLedger[c.ledger.ID] || usedBank[c.bank.ID] {
				continue
			}
			usedLedger[c.ledger.ID] = true
			usedBank[c.bank.ID] = true
			outcome.Pairs = append(outcome.Pairs, Pair{
				GroupID:   alloc.Next(),
				Ledger:    c.ledger,
				Bank:      c.bank,
				DateDelta: c.delta,
			})
		}
	}

	outcome.UnmatchedLedger = remaining(ledger, usedLedger)
	outcome.UnmatchedBank = remaining(bank, usedBank)
	return outcome
}

// bucketCandidates lists the pairs of a bucket within tolerance, in commit order
func (m *Matcher) bucketCandidates(bucket *AmountBucket) []candidatePair {
	var candidates []candidatePair
	for _, l := range bucket.Ledger {
		for _, b := range bucket.Bank {
			delta := models.DaysBetween(l.Date, b.Date)
			if delta > m.config.ToleranceDays {
				continue
			}
			candidates = append(candidates, candidatePair{ledger: l, bank: b, delta: delta})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.delta != cj.delta {
			return ci.delta < cj.delta
		}
		if ci.bank.ID != cj.bank.ID {
			return ci.bank.ID < cj.bank.ID
		}
		return ci.ledger.ID < cj.ledger.ID
	})
	return candidates
}

func remaining(txs []models.Transaction, used map[int]bool) []models.Transaction {
	out := make([]models.Transaction, 0, len(txs)-len(used))
	for _, tx := range txs {
		if !used[tx.ID] {
			out = append(out, tx)
		}
	}
	return out
}
