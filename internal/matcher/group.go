package matcher

import (
	"context"
	"sort"

	"ledger-bank-reconciler/internal/models"
	"ledger-bank-reconciler/pkg/logger"
)

// Exhaustion records an anchor whose search was cut off by its budget.
type Exhaustion struct {
	Anchor     models.Transaction
	Reason     string
	Candidates int
	Nodes      int
}

// GroupOutcome is the result of the combinatorial pass
type GroupOutcome struct {
	Groups          []models.MatchGroup
	UnmatchedLedger []models.Transaction
	UnmatchedBank   []models.Transaction
	Exhausted       []Exhaustion
	AnchorsTried    int
	NodesVisited    int
	Interrupted     bool
}

// GroupResolver explains leftover imbalance by many-to-one groups: several
// transactions on one side whose amounts add up exactly to a single
// transaction on the other side, all within one tolerance window.
type GroupResolver struct {
	config *MatchingConfig
	logger logger.Logger
}

// NewGroupResolver creates a resolver with the specified configuration
func NewGroupResolver(config *MatchingConfig, log logger.Logger) *GroupResolver {
	if config == nil {
		config = DefaultMatchingConfig()
	}
	return &GroupResolver{
		config: config,
		logger: logger.OrGlobal(log).WithComponent("group_resolver"),
	}
}

// groupPool tracks which transactions are still free during one Resolve call.
type groupPool struct {
	byOrigin map[models.Origin]*DateIndex
	used     map[models.TxKey]bool
}

func (p *groupPool) free(origin models.Origin, from, to int64) []models.Transaction {
	all := p.byOrigin[origin].Range(from, to)
	out := all[:0]
	for _, tx := range all {
		if !p.used[tx.Key()] {
			out = append(out, tx)
		}
	}
	return out
}

// groupChoice is a scratch decision for one anchor, committed only if kept.
type groupChoice struct {
	members []models.Transaction
	rank    []int64
}

// Resolve runs the combinatorial pass over the transactions the direct pass
// left unmatched.
//
// Anchors are taken from both origins in ascending (amount, ledger first, id)
// order. A transaction consumed as a member is never used as an anchor
// afterwards. Each anchor's decision is computed apart and committed at once,
// so a cancelled context leaves every committed group whole.
func (gr *GroupResolver) Resolve(ctx context.Context, ledger, bank []models.Transaction, alloc *GroupAllocator) *GroupOutcome {
	outcome := &GroupOutcome{}
	pool := &groupPool{
		byOrigin: map[models.Origin]*DateIndex{
			models.OriginLedger: NewDateIndex(ledger),
			models.OriginBank:   NewDateIndex(bank),
		},
		used: make(map[models.TxKey]bool),
	}

	anchors := make([]models.Transaction, 0, len(ledger)+len(bank))
	anchors = append(anchors, ledger...)
	anchors = append(anchors, bank...)
	sort.SliceStable(anchors, func(i, j int) bool {
		ai, aj := anchors[i], anchors[j]
		if ai.Amount != aj.Amount {
			return ai.Amount < aj.Amount
		}
		if ai.Origin != aj.Origin {
			return ai.Origin.Less(aj.Origin)
		}
		return ai.ID < aj.ID
	})

	progress := logger.NewProgressTracker(logger.ProgressConfig{
		Operation: "group_resolution",
		Total:     len(anchors),
		Logger:    gr.logger,
	})

	for _, anchor := range anchors {
		if ctx.Err() != nil {
			outcome.Interrupted = true
			break
		}
		progress.Increment()
		if pool.used[anchor.Key()] {
			continue
		}
		outcome.AnchorsTried++

		budget := newSearchBudget(gr.config.MaxSearchNodes, gr.config.SearchTimeout)
		choice, candidates := gr.searchAnchor(anchor, pool, budget)
		outcome.NodesVisited += budget.nodes

		if budget.exceeded() {
			outcome.Exhausted = append(outcome.Exhausted, Exhaustion{
				Anchor:     anchor,
				Reason:     budget.reason,
				Candidates: candidates,
				Nodes:      budget.nodes,
			})
			gr.logger.WithFields(logger.Fields{
				"origin":     anchor.Origin,
				"id":         anchor.ID,
				"amount":     anchor.Amount,
				"candidates": candidates,
				"nodes":      budget.nodes,
				"reason":     budget.reason,
			}).Warn("Group search budget exceeded, anchor left unmatched")
			continue
		}
		if choice == nil {
			continue
		}

		group := gr.commit(anchor, choice, pool, alloc)
		outcome.Groups = append(outcome.Groups, group)
		gr.logger.WithFields(logger.Fields{
			"group_id": group.GroupID,
			"anchor":   anchor.String(),
			"members":  len(choice.members),
		}).Debug("Combination found")
	}
	progress.Complete()

	for _, tx := range ledger {
		if !pool.used[tx.Key()] {
			outcome.UnmatchedLedger = append(outcome.UnmatchedLedger, tx)
		}
	}
	for _, tx := range bank {
		if !pool.used[tx.Key()] {
			outcome.UnmatchedBank = append(outcome.UnmatchedBank, tx)
		}
	}
	return outcome
}

// searchAnchor finds the best subset of counterparts for anchor. Every date
// window of width ToleranceDays containing the anchor date is searched, so
// members end up within tolerance of the anchor and of each other. It returns
// the best choice (nil if none) and the size of the largest window examined.
func (gr *GroupResolver) searchAnchor(anchor models.Transaction, pool *groupPool, budget *searchBudget) (*groupChoice, int) {
	tol := int64(gr.config.ToleranceDays)
	anchorDay := models.DayNumber(anchor.Date)
	counterparts := pool.free(anchor.Origin.Counterpart(), anchorDay-tol, anchorDay+tol)
	if len(counterparts) < 2 {
		return nil, len(counterparts)
	}

	var best *groupChoice
	largest := 0
	var previous []models.Transaction
	for _, start := range windowStarts(anchorDay, tol, counterparts) {
		window := inWindow(counterparts, start, start+tol)
		if len(window) < 2 || sameMembers(window, previous) {
			continue
		}
		previous = window
		if len(window) > largest {
			largest = len(window)
		}
		if len(window) > gr.config.MaxCandidates {
			budget.exhaust("too many candidates")
			return nil, largest
		}

		ordered := append([]models.Transaction(nil), window...)
		sortByPreference(ordered, anchorDay)
		amounts := make([]int64, len(ordered))
		for i, tx := range ordered {
			amounts[i] = tx.Amount
		}

		idx := solveSubset(amounts, anchor.Amount, 2, gr.config.MaxGroupSize, budget)
		if budget.exceeded() {
			return nil, largest
		}
		if idx == nil {
			continue
		}

		choice := &groupChoice{}
		for _, i := range idx {
			tx := ordered[i]
			choice.members = append(choice.members, tx)
			choice.rank = append(choice.rank, preferenceKey(tx, anchorDay)...)
		}
		if best == nil || betterChoice(choice, best) {
			best = choice
		}
	}
	return best, largest
}

func (gr *GroupResolver) commit(anchor models.Transaction, choice *groupChoice, pool *groupPool, alloc *GroupAllocator) models.MatchGroup {
	group := models.MatchGroup{
		GroupID:      alloc.Next(),
		Kind:         models.GroupCombination,
		AnchorOrigin: anchor.Origin,
		AnchorID:     anchor.ID,
		AnchorAmount: anchor.Amount,
	}

	pool.used[anchor.Key()] = true
	memberIDs := make([]int, 0, len(choice.members))
	for _, tx := range choice.members {
		pool.used[tx.Key()] = true
		memberIDs = append(memberIDs, tx.ID)
	}
	sort.Ints(memberIDs)

	if anchor.Origin == models.OriginLedger {
		group.LedgerIDs = []int{anchor.ID}
		group.BankIDs = memberIDs
	} else {
		group.LedgerIDs = memberIDs
		group.BankIDs = []int{anchor.ID}
	}
	return group
}

// windowStarts lists the first days of the windows worth searching: the
// earliest possible one, the one starting on the anchor day and one starting on
// each candidate day before the anchor.
func windowStarts(anchorDay, tol int64, candidates []models.Transaction) []int64 {
	starts := []int64{anchorDay - tol, anchorDay}
	for _, tx := range candidates {
		d := models.DayNumber(tx.Date)
		if d > anchorDay-tol && d < anchorDay {
			starts = append(starts, d)
		}
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	out := starts[:0]
	for i, s := range starts {
		if i == 0 || s != starts[i-1] {
			out = append(out, s)
		}
	}
	return out
}

// inWindow filters day-sorted candidates to [from, to]
func inWindow(candidates []models.Transaction, from, to int64) []models.Transaction {
	var out []models.Transaction
	for _, tx := range candidates {
		d := models.DayNumber(tx.Date)
		if d >= from && d <= to {
			out = append(out, tx)
		}
	}
	return out
}

func sameMembers(a, b []models.Transaction) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

func preferenceKey(tx models.Transaction, anchorDay int64) []int64 {
	delta := models.DayNumber(tx.Date) - anchorDay
	if delta < 0 {
		delta = -delta
	}
	return []int64{delta, int64(tx.ID)}
}

// sortByPreference orders candidates by date distance to the anchor, then id.
func sortByPreference(txs []models.Transaction, anchorDay int64) {
	sort.SliceStable(txs, func(i, j int) bool {
		ki, kj := preferenceKey(txs[i], anchorDay), preferenceKey(txs[j], anchorDay)
		if ki[0] != kj[0] {
			return ki[0] < kj[0]
		}
		return ki[1] < kj[1]
	})
}

// betterChoice prefers fewer members, then the lexicographically smaller
// sequence of (distance, id) pairs.
func betterChoice(a, b *groupChoice) bool {
	if len(a.members) != len(b.members) {
		return len(a.members) < len(b.members)
	}
	for i := range a.rank {
		if a.rank[i] != b.rank[i] {
			return a.rank[i] < b.rank[i]
		}
	}
	return false
}
