// Package store holds the TransactionStore implementations that keep the
// uploads of reconciliation sessions.
//
// MemoryStore keeps everything in process and is used by the CLI server when
// no database is configured and by tests. GormStore persists sessions in
// PostgreSQL.
package store

import (
	"context"
	"sync"
	"time"

	"ledger-bank-reconciler/internal/models"
	"ledger-bank-reconciler/internal/reconciler"
	apperrors "ledger-bank-reconciler/pkg/errors"

	"github.com/google/uuid"
)

type memorySession struct {
	meta   models.Session
	ledger []models.RawRecord
	bank   []models.RawRecord
}

// MemoryStore is an in-memory TransactionStore, safe for concurrent use.
// Data is lost when the process exits.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memorySession),
		now:      time.Now,
	}
}

func (s *MemoryStore) CreateSession(ctx context.Context) (*models.Session, error) {
	now := s.now().UTC()
	sess := &memorySession{meta: models.Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.meta.ID] = sess

	return copySession(sess.meta), nil
}

func (s *MemoryStore) Session(ctx context.Context, sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return copySession(sess.meta), nil
}

func (s *MemoryStore) AppendLedger(ctx context.Context, sessionID string, records []models.RawRecord) (int, error) {
	return s.append(sessionID, models.OriginLedger, records)
}

func (s *MemoryStore) AppendBank(ctx context.Context, sessionID string, records []models.RawRecord) (int, error) {
	return s.append(sessionID, models.OriginBank, records)
}

func (s *MemoryStore) Ledger(ctx context.Context, sessionID string) ([]models.RawRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return append([]models.RawRecord(nil), sess.ledger...), nil
}

func (s *MemoryStore) Bank(ctx context.Context, sessionID string) ([]models.RawRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return append([]models.RawRecord(nil), sess.bank...), nil
}

func (s *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	sess.ledger, sess.bank = nil, nil
	sess.meta.LedgerCount, sess.meta.BankCount = 0, 0
	sess.meta.LastRun = nil
	sess.meta.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) SaveSummary(ctx context.Context, sessionID string, summary models.SessionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	sess.meta.LastRun = &summary
	sess.meta.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) append(sessionID string, origin models.Origin, records []models.RawRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return 0, err
	}

	var n int
	if origin == models.OriginLedger {
		sess.ledger = append(sess.ledger, records...)
		n = len(sess.ledger)
		sess.meta.LedgerCount = n
	} else {
		sess.bank = append(sess.bank, records...)
		n = len(sess.bank)
		sess.meta.BankCount = n
	}
	sess.meta.UpdatedAt = s.now().UTC()
	return n, nil
}

// lookup must be called with mu held.
func (s *MemoryStore) lookup(sessionID string) (*memorySession, error) {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, sessionNotFound(sessionID)
	}
	return sess, nil
}

func copySession(meta models.Session) *models.Session {
	out := meta
	if meta.LastRun != nil {
		run := *meta.LastRun
		out.LastRun = &run
	}
	return &out
}

func sessionNotFound(sessionID string) *apperrors.ReconcilerError {
	return apperrors.StorageError(apperrors.CodeSessionNotFound, sessionID, nil)
}

var _ reconciler.TransactionStore = (*MemoryStore)(nil)
