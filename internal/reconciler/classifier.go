package reconciler

import (
	"sort"
	"time"

	"ledger-bank-reconciler/internal/models"
)

// Assignments maps every matched transaction to the id of its group.
// Transactions absent from the map are unmatched.
type Assignments map[models.TxKey]int

// Assign records all members of g under its group id
func (a Assignments) Assign(g models.MatchGroup) {
	for _, key := range g.Members() {
		a[key] = g.GroupID
	}
}

// GroupOf returns the group id of key, or models.NoGroup
func (a Assignments) GroupOf(key models.TxKey) int {
	if id, ok := a[key]; ok {
		return id
	}
	return models.NoGroup
}

// Classify produces one row per transaction of either origin.
//
// Rows come out cluster-sorted so the members of a group stay contiguous: the
// sort key is the earliest date of the row's group (its own date when
// ungrouped), then grouped before ungrouped, group id, origin ledger first and
// transaction id.
func Classify(ledger, bank []models.Transaction, assigned Assignments) []models.ResultRow {
	rows := make([]models.ResultRow, 0, len(ledger)+len(bank))
	for _, tx := range ledger {
		rows = append(rows, classifyOne(tx, assigned.GroupOf(tx.Key())))
	}
	for _, tx := range bank {
		rows = append(rows, classifyOne(tx, assigned.GroupOf(tx.Key())))
	}

	clusterDate := make(map[int]time.Time)
	for _, row := range rows {
		if row.GroupID == models.NoGroup {
			continue
		}
		if d, ok := clusterDate[row.GroupID]; !ok || row.Date.Before(d) {
			clusterDate[row.GroupID] = row.Date
		}
	}

	sortKey := func(r models.ResultRow) time.Time {
		if r.GroupID == models.NoGroup {
			return r.Date
		}
		return clusterDate[r.GroupID]
	}

	sort.SliceStable(rows, func(i, j int) bool {
		ri, rj := rows[i], rows[j]
		ci, cj := sortKey(ri), sortKey(rj)
		if !ci.Equal(cj) {
			return ci.Before(cj)
		}
		gi, gj := ri.GroupID != models.NoGroup, rj.GroupID != models.NoGroup
		if gi != gj {
			return gi
		}
		if ri.GroupID != rj.GroupID {
			return ri.GroupID < rj.GroupID
		}
		if ri.Origin != rj.Origin {
			return ri.Origin.Less(rj.Origin)
		}
		return ri.TransactionID < rj.TransactionID
	})
	return rows
}

func classifyOne(tx models.Transaction, groupID int) models.ResultRow {
	row := models.ResultRow{
		TransactionID: tx.ID,
		Date:          tx.Date,
		Origin:        tx.Origin,
		Description:   tx.Description,
		Amount:        tx.Amount,
		GroupID:       groupID,
	}
	row.Status, row.ColorCode = StatusFor(tx.Origin, groupID != models.NoGroup)
	return row
}

// StatusFor derives the status and color of a transaction
func StatusFor(origin models.Origin, matched bool) (models.Status, models.ColorCode) {
	switch {
	case matched && origin == models.OriginLedger:
		return models.StatusReconciled, models.ColorMatchedLedger
	case matched:
		return models.StatusReconciled, models.ColorMatchedBank
	case origin == models.OriginLedger:
		return models.StatusOnlyInLedger, models.ColorUnmatchedLedger
	default:
		return models.StatusOnlyInBank, models.ColorUnmatchedBank
	}
}
