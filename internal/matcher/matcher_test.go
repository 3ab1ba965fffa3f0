package matcher

import (
	"context"
	"testing"
	"time"

	"ledger-bank-reconciler/internal/models"
)

func testDay(s string) time.Time {
	t, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func ledgerTx(id int, date string, amount int64) models.Transaction {
	return models.Transaction{ID: id, Origin: models.OriginLedger, Date: testDay(date), Amount: amount}
}

func bankTx(id int, date string, amount int64) models.Transaction {
	return models.Transaction{ID: id, Origin: models.OriginBank, Date: testDay(date), Amount: amount}
}

func createTestMatchingData() ([]models.Transaction, []models.Transaction) {
	ledger := []models.Transaction{
		ledgerTx(1, "2024-01-15", 10050),
		ledgerTx(2, "2024-01-15", -25000),
		ledgerTx(3, "2024-01-16", 7525),
		ledgerTx(4, "2024-01-17", 10000),
	}
	bank := []models.Transaction{
		bankTx(1, "2024-01-15", 10050),  // same day as ledger 1
		bankTx(2, "2024-01-17", -25000), // two days after ledger 2
		bankTx(3, "2024-01-16", 7530),   // amount differs from ledger 3
		bankTx(4, "2024-01-18", 50000),  // no counterpart
	}
	return ledger, bank
}

func TestNewMatcher(t *testing.T) {
	m := NewMatcher(nil)
	if m == nil || m.config == nil {
		t.Fatal("Expected matcher with default config")
	}
	if m.config.ToleranceDays != DefaultToleranceDays {
		t.Errorf("Expected default tolerance %d, got %d", DefaultToleranceDays, m.config.ToleranceDays)
	}
}

func TestMatcher_Match(t *testing.T) {
	ledger, bank := createTestMatchingData()

	tests := []struct {
		name          string
		tolerance     int
		expectedPairs int
		expectedIDs   [][2]int // ledger id, bank id in commit order
	}{
		{"same day only", 0, 1, [][2]int{{1, 1}}},
		{"one day", 1, 1, [][2]int{{1, 1}}},
		{"two days", 2, 2, [][2]int{{2, 2}, {1, 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher(DefaultMatchingConfig().WithTolerance(tt.tolerance))
			outcome := m.Match(context.Background(), ledger, bank, NewGroupAllocator())

			if len(outcome.Pairs) != tt.expectedPairs {
				t.Fatalf("Expected %d pairs, got %d", tt.expectedPairs, len(outcome.Pairs))
			}
			for i, want := range tt.expectedIDs {
				p := outcome.Pairs[i]
				if p.Ledger.ID != want[0] || p.Bank.ID != want[1] {
					t.Errorf("Pair %d: expected ledger %d / bank %d, got %d / %d", i, want[0], want[1], p.Ledger.ID, p.Bank.ID)
				}
				if p.GroupID != i+1 {
					t.Errorf("Pair %d: expected group id %d, got %d", i, i+1, p.GroupID)
				}
			}

			if got := len(outcome.UnmatchedLedger) + len(outcome.Pairs); got != len(ledger) {
				t.Errorf("Expected every ledger transaction accounted for, got %d of %d", got, len(ledger))
			}
			if got := len(outcome.UnmatchedBank) + len(outcome.Pairs); got != len(bank) {
				t.Errorf("Expected every bank transaction accounted for, got %d of %d", got, len(bank))
			}
		})
	}
}

func TestMatcher_GreedyByDistance(t *testing.T) {
	// Ledger 1 could take either bank transaction; the closer one wins and
	// ledger 2 takes what is left.
	ledger := []models.Transaction{
		ledgerTx(1, "2024-03-10", 5000),
		ledgerTx(2, "2024-03-08", 5000),
	}
	bank := []models.Transaction{
		bankTx(1, "2024-03-07", 5000),
		bankTx(2, "2024-03-10", 5000),
	}

	outcome := NewMatcher(DefaultMatchingConfig().WithTolerance(3)).Match(context.Background(), ledger, bank, NewGroupAllocator())

	if len(outcome.Pairs) != 2 {
		t.Fatalf("Expected 2 pairs, got %d", len(outcome.Pairs))
	}
	first, second := outcome.Pairs[0], outcome.Pairs[1]
	if first.Ledger.ID != 1 || first.Bank.ID != 2 || first.DateDelta != 0 {
		t.Errorf("Expected ledger 1 with bank 2 at distance 0, got %+v", first)
	}
	if second.Ledger.ID != 2 || second.Bank.ID != 1 || second.DateDelta != 1 {
		t.Errorf("Expected ledger 2 with bank 1 at distance 1, got %+v", second)
	}
}

func TestMatcher_TieBreak(t *testing.T) {
	// All four pairs sit at distance 1: the smaller bank id goes first,
	// then the smaller ledger id.
	ledger := []models.Transaction{
		ledgerTx(1, "2024-05-02", 900),
		ledgerTx(2, "2024-05-02", 900),
	}
	bank := []models.Transaction{
		bankTx(7, "2024-05-01", 900),
		bankTx(3, "2024-05-03", 900),
	}

	outcome := NewMatcher(DefaultMatchingConfig().WithTolerance(1)).Match(context.Background(), ledger, bank, NewGroupAllocator())

	if len(outcome.Pairs) != 2 {
		t.Fatalf("Expected 2 pairs, got %d", len(outcome.Pairs))
	}
	if outcome.Pairs[0].Bank.ID != 3 || outcome.Pairs[0].Ledger.ID != 1 {
		t.Errorf("Expected bank 3 with ledger 1 first, got bank %d with ledger %d",
			outcome.Pairs[0].Bank.ID, outcome.Pairs[0].Ledger.ID)
	}
	if outcome.Pairs[1].Bank.ID != 7 || outcome.Pairs[1].Ledger.ID != 2 {
		t.Errorf("Expected bank 7 with ledger 2 second, got bank %d with ledger %d",
			outcome.Pairs[1].Bank.ID, outcome.Pairs[1].Ledger.ID)
	}
}

func TestMatcher_SignMatters(t *testing.T) {
	ledger := []models.Transaction{ledgerTx(1, "2024-01-01", 1000)}
	bank := []models.Transaction{bankTx(1, "2024-01-01", -1000)}

	outcome := NewMatcher(nil).Match(context.Background(), ledger, bank, NewGroupAllocator())
	if len(outcome.Pairs) != 0 {
		t.Errorf("Expected opposite signs not to match, got %d pairs", len(outcome.Pairs))
	}
}

func TestMatcher_CancelledContext(t *testing.T) {
	ledger, bank := createTestMatchingData()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := NewMatcher(nil).Match(ctx, ledger, bank, NewGroupAllocator())
	if !outcome.Interrupted {
		t.Error("Expected outcome to be marked interrupted")
	}
	if len(outcome.Pairs) != 0 {
		t.Errorf("Expected no pairs, got %d", len(outcome.Pairs))
	}
	if len(outcome.UnmatchedLedger) != len(ledger) || len(outcome.UnmatchedBank) != len(bank) {
		t.Error("Expected all transactions left unmatched")
	}
}

func TestPair_Group(t *testing.T) {
	p := Pair{GroupID: 4, Ledger: ledgerTx(2, "2024-01-05", 1000), Bank: bankTx(9, "2024-01-07", 1000), DateDelta: 2}
	g := p.Group()

	if g.Kind != models.GroupDirect || g.GroupID != 4 || g.AnchorAmount != 1000 {
		t.Errorf("Unexpected group %+v", g)
	}
	if len(g.LedgerIDs) != 1 || g.LedgerIDs[0] != 2 || len(g.BankIDs) != 1 || g.BankIDs[0] != 9 {
		t.Errorf("Unexpected members %+v", g)
	}
}

func TestAmountIndex(t *testing.T) {
	ledger, bank := createTestMatchingData()
	idx := NewAmountIndex(ledger, bank)

	for i := 1; i < len(idx.Buckets); i++ {
		if idx.Buckets[i-1].Amount >= idx.Buckets[i].Amount {
			t.Fatalf("Expected buckets sorted by amount, got %d before %d", idx.Buckets[i-1].Amount, idx.Buckets[i].Amount)
		}
	}

	b := idx.Get(10050)
	if b == nil || !b.Matchable() {
		t.Fatal("Expected a matchable bucket for 10050")
	}
	if idx.Get(123) != nil {
		t.Error("Expected no bucket for an absent amount")
	}

	stats := idx.Stats()
	if stats.Buckets != 6 || stats.MatchableBuckets != 2 || stats.LargestBucket != 2 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestDateIndex_Range(t *testing.T) {
	txs := []models.Transaction{
		bankTx(3, "2024-01-03", 1),
		bankTx(1, "2024-01-01", 1),
		bankTx(2, "2024-01-03", 1),
		bankTx(4, "2024-01-09", 1),
	}
	idx := NewDateIndex(txs)
	if idx.Len() != 4 {
		t.Fatalf("Expected 4 indexed transactions, got %d", idx.Len())
	}

	from := models.DayNumber(testDay("2024-01-02"))
	to := models.DayNumber(testDay("2024-01-05"))
	got := idx.Range(from, to)
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 3 {
		t.Errorf("Expected ids [2 3], got %+v", got)
	}

	if idx.Range(to, from) != nil {
		t.Error("Expected nil for an inverted range")
	}
}

func TestMatchingConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*MatchingConfig)
		wantErr bool
	}{
		{"default", func(*MatchingConfig) {}, false},
		{"tolerance 60", func(c *MatchingConfig) { c.ToleranceDays = 60 }, false},
		{"negative tolerance", func(c *MatchingConfig) { c.ToleranceDays = -1 }, true},
		{"tolerance 61", func(c *MatchingConfig) { c.ToleranceDays = 61 }, true},
		{"group size 1", func(c *MatchingConfig) { c.MaxGroupSize = 1 }, true},
		{"group size too big", func(c *MatchingConfig) { c.MaxGroupSize = MaxGroupSizeLimit + 1 }, true},
		{"candidates below K", func(c *MatchingConfig) { c.MaxCandidates = 3 }, true},
		{"candidates too many", func(c *MatchingConfig) { c.MaxCandidates = 41 }, true},
		{"no nodes", func(c *MatchingConfig) { c.MaxSearchNodes = 0 }, true},
		{"negative timeout", func(c *MatchingConfig) { c.SearchTimeout = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultMatchingConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	for _, preset := range []*MatchingConfig{StrictMatchingConfig(), RelaxedMatchingConfig()} {
		if err := preset.Validate(); err != nil {
			t.Errorf("Preset %s invalid: %v", preset, err)
		}
	}
}

func TestMatchingConfig_Clone(t *testing.T) {
	original := DefaultMatchingConfig()
	clone := original.WithTolerance(9)
	if original.ToleranceDays != DefaultToleranceDays {
		t.Error("Expected WithTolerance to leave the original untouched")
	}
	if clone.ToleranceDays != 9 || clone.MaxGroupSize != original.MaxGroupSize {
		t.Errorf("Unexpected clone %s", clone)
	}
	var nilConfig *MatchingConfig
	if nilConfig.Clone() != nil {
		t.Error("Expected nil clone of nil config")
	}
}
