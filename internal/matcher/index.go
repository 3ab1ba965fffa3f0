package matcher

import (
	"sort"

	"ledger-bank-reconciler/internal/models"
)

// AmountBucket holds the transactions of both origins sharing one exact amount.
type AmountBucket struct {
	Amount int64
	Ledger []models.Transaction
	Bank   []models.Transaction
}

// AmountIndex groups transactions by exact amount for the direct pass.
type AmountIndex struct {
	// Buckets are sorted by ascending amount
	Buckets []*AmountBucket

	byAmount map[int64]*AmountBucket
}

// NewAmountIndex builds the index. Input order within a bucket is preserved.
func NewAmountIndex(ledger, bank []models.Transaction) *AmountIndex {
	idx := &AmountIndex{byAmount: make(map[int64]*AmountBucket)}

	for _, tx := range ledger {
		idx.bucket(tx.Amount).Ledger = append(idx.bucket(tx.Amount).Ledger, tx)
	}
	for _, tx := range bank {
		idx.bucket(tx.Amount).Bank = append(idx.bucket(tx.Amount).Bank, tx)
	}

	idx.Buckets = make([]*AmountBucket, 0, len(idx.byAmount))
	for _, b := range idx.byAmount {
		idx.Buckets = append(idx.Buckets, b)
	}
	sort.Slice(idx.Buckets, func(i, j int) bool {
		return idx.Buckets[i].Amount < idx.Buckets[j].Amount
	})
	return idx
}

func (ai *AmountIndex) bucket(amount int64) *AmountBucket {
	b, ok := ai.byAmount[amount]
	if !ok {
		b = &AmountBucket{Amount: amount}
		ai.byAmount[amount] = b
	}
	return b
}

// Get returns the bucket for amount, or nil.
func (ai *AmountIndex) Get(amount int64) *AmountBucket {
	return ai.byAmount[amount]
}

// Matchable reports whether the bucket holds both origins.
func (b *AmountBucket) Matchable() bool {
	return len(b.Ledger) > 0 && len(b.Bank) > 0
}

// DateIndex keeps transactions sorted by calendar day for window lookups.
type DateIndex struct {
	days []int64
	txs  []models.Transaction
}

// NewDateIndex sorts txs by (day, id).
func NewDateIndex(txs []models.Transaction) *DateIndex {
	sorted := make([]models.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		di, dj := models.DayNumber(sorted[i].Date), models.DayNumber(sorted[j].Date)
		if di != dj {
			return di < dj
		}
		return sorted[i].ID < sorted[j].ID
	})

	days := make([]int64, len(sorted))
	for i, tx := range sorted {
		days[i] = models.DayNumber(tx.Date)
	}
	return &DateIndex{days: days, txs: sorted}
}

// Range returns the transactions whose day lies in [from, to], ordered by (day, id).
func (di *DateIndex) Range(from, to int64) []models.Transaction {
	if from > to {
		return nil
	}
	start := sort.Search(len(di.days), func(i int) bool { return di.days[i] >= from })
	end := sort.Search(len(di.days), func(i int) bool { return di.days[i] > to })
	if start >= end {
		return nil
	}
	out := make([]models.Transaction, end-start)
	copy(out, di.txs[start:end])
	return out
}

// Len returns the number of indexed transactions
func (di *DateIndex) Len() int {
	return len(di.txs)
}

// IndexStats describes an AmountIndex
type IndexStats struct {
	Buckets          int `json:"buckets"`
	MatchableBuckets int `json:"matchable_buckets"`
	LargestBucket    int `json:"largest_bucket"`
}

// Stats returns summary information about the index
func (ai *AmountIndex) Stats() IndexStats {
	stats := IndexStats{Buckets: len(ai.Buckets)}
	for _, b := range ai.Buckets {
		if b.Matchable() {
			stats.MatchableBuckets++
		}
		if n := len(b.Ledger) + len(b.Bank); n > stats.LargestBucket {
			stats.LargestBucket = n
		}
	}
	return stats
}
