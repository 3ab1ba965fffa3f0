package reconciler

import (
	"sort"

	"ledger-bank-reconciler/internal/models"
)

// Aggregate computes the summary metrics of a run.
//
// DiffInitial is the bank sum minus the ledger sum over every transaction.
// DiffFinal is the same difference over the rows still unmatched, so a fully
// reconciled run ends at zero.
func Aggregate(ledger, bank []models.Transaction, rows []models.ResultRow, groups []models.MatchGroup) models.Metrics {
	m := models.Metrics{
		LedgerTotal: len(ledger),
		BankTotal:   len(bank),
		DiffInitial: models.SumAmounts(bank) - models.SumAmounts(ledger),
	}

	for _, row := range rows {
		switch row.Status {
		case models.StatusOnlyInBank:
			m.DiffFinal += row.Amount
		case models.StatusOnlyInLedger:
			m.DiffFinal -= row.Amount
		case models.StatusReconciled:
			m.ReconciledCount++
		}
	}

	for _, g := range groups {
		switch g.Kind {
		case models.GroupCombination:
			m.GroupCount++
		case models.GroupDirect:
			m.DirectCount++
		}
	}
	return m
}

// BuildChart sums both streams per distinct date, ascending
func BuildChart(ledger, bank []models.Transaction) []models.ChartPoint {
	points := make(map[int64]*models.ChartPoint)
	point := func(tx models.Transaction) *models.ChartPoint {
		day := models.DayNumber(tx.Date)
		p, ok := points[day]
		if !ok {
			p = &models.ChartPoint{Date: models.CalendarDay(tx.Date)}
			points[day] = p
		}
		return p
	}

	for _, tx := range ledger {
		point(tx).LedgerSum += tx.Amount
	}
	for _, tx := range bank {
		point(tx).BankSum += tx.Amount
	}

	chart := make([]models.ChartPoint, 0, len(points))
	for _, p := range points {
		chart = append(chart, *p)
	}
	sort.Slice(chart, func(i, j int) bool { return chart[i].Date.Before(chart[j].Date) })
	return chart
}
