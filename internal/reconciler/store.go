package reconciler

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks ledger-bank-reconciler/internal/reconciler TransactionStore

import (
	"context"

	"ledger-bank-reconciler/internal/models"
)

// TransactionStore keeps the raw uploads of reconciliation sessions.
//
// Implementations return copies; callers may modify what they receive.
// Operations on an unknown session fail with a storage error carrying
// CodeSessionNotFound.
type TransactionStore interface {
	// CreateSession starts an empty session and returns its id
	CreateSession(ctx context.Context) (*models.Session, error)

	// Session returns the session metadata
	Session(ctx context.Context, sessionID string) (*models.Session, error)

	// AppendLedger adds records after the existing ledger uploads and
	// returns the new ledger count
	AppendLedger(ctx context.Context, sessionID string, records []models.RawRecord) (int, error)

	// AppendBank adds records after the existing bank uploads and returns
	// the new bank count
	AppendBank(ctx context.Context, sessionID string, records []models.RawRecord) (int, error)

	// Ledger returns the ledger uploads in upload order
	Ledger(ctx context.Context, sessionID string) ([]models.RawRecord, error)

	// Bank returns the bank uploads in upload order
	Bank(ctx context.Context, sessionID string) ([]models.RawRecord, error)

	// Clear drops every upload of the session and its last summary
	Clear(ctx context.Context, sessionID string) error

	// SaveSummary records the outcome of the latest run
	SaveSummary(ctx context.Context, sessionID string, summary models.SessionSummary) error
}
