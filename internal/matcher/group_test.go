package matcher

import (
	"context"
	"reflect"
	"testing"

	"ledger-bank-reconciler/internal/models"
	"ledger-bank-reconciler/pkg/logger"
)

func newTestResolver(cfg *MatchingConfig) *GroupResolver {
	return NewGroupResolver(cfg, logger.NewNop())
}

func TestGroupResolver_LedgerAnchor(t *testing.T) {
	ledger := []models.Transaction{ledgerTx(1, "2024-02-01", 500)}
	bank := []models.Transaction{
		bankTx(1, "2024-02-01", 300),
		bankTx(2, "2024-02-01", 200),
	}

	outcome := newTestResolver(DefaultMatchingConfig().WithTolerance(0)).
		Resolve(context.Background(), ledger, bank, NewGroupAllocator())

	if len(outcome.Groups) != 1 {
		t.Fatalf("Expected 1 group, got %d", len(outcome.Groups))
	}
	g := outcome.Groups[0]
	if g.GroupID != 1 || g.Kind != models.GroupCombination {
		t.Errorf("Unexpected group header %+v", g)
	}
	if !reflect.DeepEqual(g.LedgerIDs, []int{1}) || !reflect.DeepEqual(g.BankIDs, []int{1, 2}) {
		t.Errorf("Unexpected members ledger=%v bank=%v", g.LedgerIDs, g.BankIDs)
	}
	if len(outcome.UnmatchedLedger) != 0 || len(outcome.UnmatchedBank) != 0 {
		t.Error("Expected nothing left unmatched")
	}
}

func TestGroupResolver_BankAnchor(t *testing.T) {
	// Three ledger entries settled by one bank transfer two days later.
	ledger := []models.Transaction{
		ledgerTx(1, "2024-04-01", 25000),
		ledgerTx(2, "2024-04-02", 25000),
		ledgerTx(3, "2024-04-03", 50000),
	}
	bank := []models.Transaction{bankTx(1, "2024-04-03", 100000)}

	outcome := newTestResolver(DefaultMatchingConfig().WithTolerance(2)).
		Resolve(context.Background(), ledger, bank, NewGroupAllocator())

	if len(outcome.Groups) != 1 {
		t.Fatalf("Expected 1 group, got %d", len(outcome.Groups))
	}
	g := outcome.Groups[0]
	if g.AnchorOrigin != models.OriginBank || g.AnchorID != 1 || g.AnchorAmount != 100000 {
		t.Errorf("Unexpected anchor %+v", g)
	}
	if !reflect.DeepEqual(g.LedgerIDs, []int{1, 2, 3}) {
		t.Errorf("Expected ledger members [1 2 3], got %v", g.LedgerIDs)
	}
}

func TestGroupResolver_PairwiseWindow(t *testing.T) {
	// Both bank transactions are within 2 days of the anchor but 4 days
	// apart from each other, so they cannot form one group.
	ledger := []models.Transaction{ledgerTx(1, "2024-06-05", 500)}
	bank := []models.Transaction{
		bankTx(1, "2024-06-03", 300),
		bankTx(2, "2024-06-07", 200),
	}

	outcome := newTestResolver(DefaultMatchingConfig().WithTolerance(2)).
		Resolve(context.Background(), ledger, bank, NewGroupAllocator())

	if len(outcome.Groups) != 0 {
		t.Errorf("Expected no group, got %+v", outcome.Groups)
	}

	outcome = newTestResolver(DefaultMatchingConfig().WithTolerance(4)).
		Resolve(context.Background(), ledger, bank, NewGroupAllocator())
	if len(outcome.Groups) != 1 {
		t.Errorf("Expected 1 group with tolerance 4, got %d", len(outcome.Groups))
	}
}

func TestGroupResolver_PrefersSmallestGroup(t *testing.T) {
	ledger := []models.Transaction{ledgerTx(1, "2024-01-10", 1000)}
	bank := []models.Transaction{
		bankTx(1, "2024-01-10", 300),
		bankTx(2, "2024-01-10", 300),
		bankTx(3, "2024-01-10", 400),
		bankTx(4, "2024-01-10", 600),
	}

	outcome := newTestResolver(DefaultMatchingConfig().WithTolerance(0)).
		Resolve(context.Background(), ledger, bank, NewGroupAllocator())

	if len(outcome.Groups) != 1 {
		t.Fatalf("Expected 1 group, got %d", len(outcome.Groups))
	}
	if !reflect.DeepEqual(outcome.Groups[0].BankIDs, []int{3, 4}) {
		t.Errorf("Expected bank members [3 4], got %v", outcome.Groups[0].BankIDs)
	}
	if len(outcome.UnmatchedBank) != 2 {
		t.Errorf("Expected 2 bank transactions left, got %d", len(outcome.UnmatchedBank))
	}
}

func TestGroupResolver_PrefersCloserDates(t *testing.T) {
	ledger := []models.Transaction{ledgerTx(1, "2024-01-10", 500)}
	bank := []models.Transaction{
		bankTx(1, "2024-01-10", 300),
		bankTx(2, "2024-01-12", 200),
		bankTx(3, "2024-01-11", 200),
	}

	outcome := newTestResolver(DefaultMatchingConfig().WithTolerance(3)).
		Resolve(context.Background(), ledger, bank, NewGroupAllocator())

	if len(outcome.Groups) != 1 {
		t.Fatalf("Expected 1 group, got %d", len(outcome.Groups))
	}
	if !reflect.DeepEqual(outcome.Groups[0].BankIDs, []int{1, 3}) {
		t.Errorf("Expected bank members [1 3], got %v", outcome.Groups[0].BankIDs)
	}
}

func TestGroupResolver_TooManyCandidates(t *testing.T) {
	cfg := DefaultMatchingConfig().WithTolerance(0)
	cfg.MaxGroupSize = 2
	cfg.MaxCandidates = 2

	ledger := []models.Transaction{ledgerTx(1, "2024-01-10", 500)}
	bank := []models.Transaction{
		bankTx(1, "2024-01-10", 300),
		bankTx(2, "2024-01-10", 200),
		bankTx(3, "2024-01-10", 100),
	}

	outcome := newTestResolver(cfg).Resolve(context.Background(), ledger, bank, NewGroupAllocator())

	if len(outcome.Groups) != 0 {
		t.Errorf("Expected no group, got %d", len(outcome.Groups))
	}
	if len(outcome.Exhausted) != 1 {
		t.Fatalf("Expected 1 exhausted anchor, got %d", len(outcome.Exhausted))
	}
	ex := outcome.Exhausted[0]
	if ex.Anchor.Key() != (models.TxKey{Origin: models.OriginLedger, ID: 1}) || ex.Reason != "too many candidates" || ex.Candidates != 3 {
		t.Errorf("Unexpected exhaustion %+v", ex)
	}
	if len(outcome.UnmatchedLedger) != 1 {
		t.Error("Expected the anchor to stay unmatched")
	}
}

func TestGroupResolver_NodeLimit(t *testing.T) {
	cfg := DefaultMatchingConfig().WithTolerance(0)
	cfg.MaxSearchNodes = 5

	ledger := []models.Transaction{ledgerTx(1, "2024-01-10", 10000)}
	var bank []models.Transaction
	for i := 1; i <= 8; i++ {
		bank = append(bank, bankTx(i, "2024-01-10", int64(i)))
	}

	outcome := newTestResolver(cfg).Resolve(context.Background(), ledger, bank, NewGroupAllocator())

	if len(outcome.Groups) != 0 {
		t.Errorf("Expected no group, got %d", len(outcome.Groups))
	}
	found := false
	for _, ex := range outcome.Exhausted {
		if ex.Anchor.Origin == models.OriginLedger && ex.Reason == "node limit reached" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected the ledger anchor to hit the node limit, got %+v", outcome.Exhausted)
	}
}

func TestGroupResolver_ContinuesAllocatorSequence(t *testing.T) {
	alloc := NewGroupAllocator()
	alloc.Next()
	alloc.Next()

	ledger := []models.Transaction{ledgerTx(1, "2024-02-01", 500)}
	bank := []models.Transaction{bankTx(1, "2024-02-01", 300), bankTx(2, "2024-02-01", 200)}

	outcome := newTestResolver(nil).Resolve(context.Background(), ledger, bank, alloc)
	if len(outcome.Groups) != 1 || outcome.Groups[0].GroupID != 3 {
		t.Errorf("Expected group id 3, got %+v", outcome.Groups)
	}
	if alloc.Issued() != 3 {
		t.Errorf("Expected 3 ids issued, got %d", alloc.Issued())
	}
}

func TestGroupResolver_Deterministic(t *testing.T) {
	ledger := []models.Transaction{
		ledgerTx(1, "2024-01-10", 700),
		ledgerTx(2, "2024-01-11", 300),
		ledgerTx(3, "2024-01-11", 400),
		ledgerTx(4, "2024-01-12", 1200),
	}
	bank := []models.Transaction{
		bankTx(1, "2024-01-10", 500),
		bankTx(2, "2024-01-10", 200),
		bankTx(3, "2024-01-11", 700),
		bankTx(4, "2024-01-12", 600),
		bankTx(5, "2024-01-12", 600),
	}

	cfg := DefaultMatchingConfig().WithTolerance(2)
	first := newTestResolver(cfg).Resolve(context.Background(), ledger, bank, NewGroupAllocator())
	second := newTestResolver(cfg).Resolve(context.Background(), ledger, bank, NewGroupAllocator())

	if !reflect.DeepEqual(first.Groups, second.Groups) {
		t.Errorf("Expected identical groups, got %+v and %+v", first.Groups, second.Groups)
	}
	if len(first.Groups) == 0 {
		t.Fatal("Expected at least one group")
	}

	lookup := func(k models.TxKey) (models.Transaction, bool) {
		src := ledger
		if k.Origin == models.OriginBank {
			src = bank
		}
		for _, tx := range src {
			if tx.ID == k.ID {
				return tx, true
			}
		}
		return models.Transaction{}, false
	}
	seen := make(map[models.TxKey]bool)
	for _, g := range first.Groups {
		if err := g.Verify(lookup, cfg.ToleranceDays); err != nil {
			t.Errorf("Invalid group: %v", err)
		}
		for _, k := range g.Members() {
			if seen[k] {
				t.Errorf("Transaction %v used by two groups", k)
			}
			seen[k] = true
		}
	}
}

func TestGroupResolver_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ledger := []models.Transaction{ledgerTx(1, "2024-02-01", 500)}
	bank := []models.Transaction{bankTx(1, "2024-02-01", 300), bankTx(2, "2024-02-01", 200)}

	outcome := newTestResolver(nil).Resolve(ctx, ledger, bank, NewGroupAllocator())
	if !outcome.Interrupted || len(outcome.Groups) != 0 {
		t.Errorf("Expected an interrupted pass without groups, got %+v", outcome)
	}
	if len(outcome.UnmatchedLedger) != 1 || len(outcome.UnmatchedBank) != 2 {
		t.Error("Expected every transaction returned as unmatched")
	}
}

func TestWindowStarts(t *testing.T) {
	anchor := models.DayNumber(testDay("2024-01-10"))
	candidates := []models.Transaction{
		bankTx(1, "2024-01-08", 1),
		bankTx(2, "2024-01-09", 1),
		bankTx(3, "2024-01-09", 1),
		bankTx(4, "2024-01-12", 1),
	}

	got := windowStarts(anchor, 3, candidates)
	want := []int64{anchor - 3, anchor - 2, anchor - 1, anchor}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("windowStarts() = %v, want %v", got, want)
	}

	if got := windowStarts(anchor, 0, candidates); !reflect.DeepEqual(got, []int64{anchor}) {
		t.Errorf("windowStarts() with zero tolerance = %v", got)
	}
}
