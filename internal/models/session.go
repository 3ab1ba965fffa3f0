package models

import "time"

// Session holds the uploads a user accumulates before reconciling them.
// Uploads append; reconciling never consumes them, so the same session can be
// reconciled again with another tolerance.
type Session struct {
	ID          string          `json:"id"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	LedgerCount int             `json:"ledgerCount"`
	BankCount   int             `json:"bankCount"`
	LastRun     *SessionSummary `json:"lastRun,omitempty"`
}

// SessionSummary is what a session keeps of its most recent reconciliation.
type SessionSummary struct {
	ToleranceDays int       `json:"toleranceDays"`
	Metrics       Metrics   `json:"metrics"`
	Diagnostics   int       `json:"diagnostics"`
	Partial       bool      `json:"partial"`
	ReconciledAt  time.Time `json:"reconciledAt"`
}

// Summarize extracts the session summary of a result.
func (r *ReconciliationResult) Summarize(at time.Time) SessionSummary {
	return SessionSummary{
		ToleranceDays: r.ToleranceDays,
		Metrics:       r.Metrics,
		Diagnostics:   len(r.Diagnostics),
		Partial:       r.Partial,
		ReconciledAt:  at.UTC(),
	}
}
