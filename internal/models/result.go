package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	apperrors "ledger-bank-reconciler/pkg/errors"
)

// NoGroup is the group id of a row that belongs to no match group.
const NoGroup = -1

// Status is the final classification of a row. The values are the labels
// consumers display and must stay stable between runs.
type Status string

const (
	StatusReconciled   Status = "Conciliado"
	StatusOnlyInBank   Status = "Apenas no Banco"
	StatusOnlyInLedger Status = "Apenas no Diário"
)

// ColorCode is a display tag derived from status and origin.
type ColorCode string

const (
	ColorMatchedLedger   ColorCode = "matched_ledger"
	ColorMatchedBank     ColorCode = "matched_bank"
	ColorUnmatchedLedger ColorCode = "unmatched_ledger"
	ColorUnmatchedBank   ColorCode = "unmatched_bank"
)

// GroupKind distinguishes one-to-one pairs from combinatorial groups.
type GroupKind string

const (
	GroupDirect      GroupKind = "direct"
	GroupCombination GroupKind = "combination"
)

// ResultRow is the per-transaction output of a run.
type ResultRow struct {
	TransactionID int
	Date          time.Time
	Origin        Origin
	Description   string
	Amount        int64
	Status        Status
	ColorCode     ColorCode
	GroupID       int
}

// IsReconciled reports whether the row was matched directly or via a group
func (r ResultRow) IsReconciled() bool {
	return r.Status == StatusReconciled
}

type resultRowJSON struct {
	TransactionID int       `json:"transactionId"`
	Date          string    `json:"date"`
	Origin        Origin    `json:"origin"`
	Source        string    `json:"source"`
	Description   string    `json:"description"`
	Amount        int64     `json:"amount"`
	Status        Status    `json:"status"`
	ColorCode     ColorCode `json:"colorCode"`
	GroupID       string    `json:"groupId"`
}

// MarshalJSON writes the calendar date and the group id as a string, "-1" for no group.
func (r ResultRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultRowJSON{
		TransactionID: r.TransactionID,
		Date:          r.Date.Format(DateLayout),
		Origin:        r.Origin,
		Source:        r.Origin.Label(),
		Description:   r.Description,
		Amount:        r.Amount,
		Status:        r.Status,
		ColorCode:     r.ColorCode,
		GroupID:       strconv.Itoa(r.GroupID),
	})
}

// UnmarshalJSON reverses MarshalJSON
func (r *ResultRow) UnmarshalJSON(data []byte) error {
	var aux resultRowJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	date, err := ParseDate(aux.Date)
	if err != nil {
		return err
	}
	gid, err := strconv.Atoi(aux.GroupID)
	if err != nil {
		return fmt.Errorf("invalid groupId %q: %w", aux.GroupID, err)
	}
	*r = ResultRow{
		TransactionID: aux.TransactionID,
		Date:          date,
		Origin:        aux.Origin,
		Description:   aux.Description,
		Amount:        aux.Amount,
		Status:        aux.Status,
		ColorCode:     aux.ColorCode,
		GroupID:       gid,
	}
	return nil
}

// MatchGroup records a set of transactions reconciled together. For a direct
// pair the anchor is the ledger side.
type MatchGroup struct {
	GroupID      int       `json:"-"`
	Kind         GroupKind `json:"kind"`
	AnchorOrigin Origin    `json:"anchorOrigin"`
	AnchorID     int       `json:"anchorId"`
	AnchorAmount int64     `json:"anchorAmount"`
	LedgerIDs    []int     `json:"ledgerIds"`
	BankIDs      []int     `json:"bankIds"`
}

// MarshalJSON adds the group id as a string, matching the row encoding.
func (g MatchGroup) MarshalJSON() ([]byte, error) {
	type Alias MatchGroup
	return json.Marshal(&struct {
		GroupID string `json:"groupId"`
		Alias
	}{
		GroupID: strconv.Itoa(g.GroupID),
		Alias:   Alias(g),
	})
}

// Size returns the number of member transactions including the anchor.
func (g MatchGroup) Size() int {
	return len(g.LedgerIDs) + len(g.BankIDs)
}

// Members returns the keys of every member, ledger first.
func (g MatchGroup) Members() []TxKey {
	keys := make([]TxKey, 0, g.Size())
	for _, id := range g.LedgerIDs {
		keys = append(keys, TxKey{Origin: OriginLedger, ID: id})
	}
	for _, id := range g.BankIDs {
		keys = append(keys, TxKey{Origin: OriginBank, ID: id})
	}
	return keys
}

// Verify checks that each side sums to the anchor amount and that all member
// dates lie within toleranceDays of each other.
func (g MatchGroup) Verify(lookup func(TxKey) (Transaction, bool), toleranceDays int) error {
	if g.Size() < 2 {
		return fmt.Errorf("group %d has %d members, need at least 2", g.GroupID, g.Size())
	}
	if len(g.LedgerIDs) == 0 || len(g.BankIDs) == 0 {
		return fmt.Errorf("group %d does not span both origins", g.GroupID)
	}

	var ledgerSum, bankSum int64
	var minDay, maxDay int64
	for i, key := range g.Members() {
		tx, ok := lookup(key)
		if !ok {
			return fmt.Errorf("group %d references unknown %s#%d", g.GroupID, key.Origin, key.ID)
		}
		if key.Origin == OriginLedger {
			ledgerSum += tx.Amount
		} else {
			bankSum += tx.Amount
		}
		day := DayNumber(tx.Date)
		if i == 0 || day < minDay {
			minDay = day
		}
		if i == 0 || day > maxDay {
			maxDay = day
		}
	}

	if ledgerSum != g.AnchorAmount || bankSum != g.AnchorAmount {
		return fmt.Errorf("group %d sums ledger=%d bank=%d, anchor=%d", g.GroupID, ledgerSum, bankSum, g.AnchorAmount)
	}
	if span := maxDay - minDay; span > int64(toleranceDays) {
		return fmt.Errorf("group %d spans %d days, tolerance is %d", g.GroupID, span, toleranceDays)
	}
	return nil
}

// Metrics summarizes a run. Differences are bank minus ledger, in minor units.
type Metrics struct {
	LedgerTotal     int   `json:"ledgerTotal"`
	BankTotal       int   `json:"bankTotal"`
	DiffInitial     int64 `json:"diffInitial"`
	DiffFinal       int64 `json:"diffFinal"`
	GroupCount      int   `json:"groupCount"`
	DirectCount     int   `json:"directCount"`
	ReconciledCount int   `json:"reconciledCount"`
}

// ChartPoint holds the per-day sums of both streams.
type ChartPoint struct {
	Date      time.Time `json:"-"`
	LedgerSum int64     `json:"ledgerSum"`
	BankSum   int64     `json:"bankSum"`
}

// MarshalJSON renders the date as a calendar day
func (p ChartPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Date      string `json:"date"`
		LedgerSum int64  `json:"ledgerSum"`
		BankSum   int64  `json:"bankSum"`
	}{
		Date:      p.Date.Format(DateLayout),
		LedgerSum: p.LedgerSum,
		BankSum:   p.BankSum,
	})
}

// ReconciliationResult is everything a run produces.
type ReconciliationResult struct {
	ToleranceDays int                    `json:"toleranceDays"`
	Rows          []ResultRow            `json:"rows"`
	Metrics       Metrics                `json:"metrics"`
	Chart         []ChartPoint           `json:"chart"`
	Groups        []MatchGroup           `json:"groups"`
	Diagnostics   []apperrors.Diagnostic `json:"diagnostics"`
	Partial       bool                   `json:"partial"`
}

// CountByStatus returns how many rows carry status.
func (r *ReconciliationResult) CountByStatus(status Status) int {
	n := 0
	for _, row := range r.Rows {
		if row.Status == status {
			n++
		}
	}
	return n
}

// RowsInGroup returns the rows sharing groupID, in row order.
func (r *ReconciliationResult) RowsInGroup(groupID int) []ResultRow {
	var out []ResultRow
	for _, row := range r.Rows {
		if row.GroupID == groupID {
			out = append(out, row)
		}
	}
	return out
}
