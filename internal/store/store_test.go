package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"ledger-bank-reconciler/internal/models"
	apperrors "ledger-bank-reconciler/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestMemoryStore_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	sess, err := s.CreateSession(ctx)
	require.NoError(t, err)
	_, err = uuid.Parse(sess.ID)
	assert.NoError(t, err)

	n, err := s.AppendLedger(ctx, sess.ID, []models.RawRecord{{Date: "2024-01-01", Amount: "1"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.AppendLedger(ctx, sess.ID, []models.RawRecord{{Date: "2024-01-02", Amount: "2"}, {Date: "2024-01-03", Amount: "3"}})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.AppendBank(ctx, sess.ID, []models.RawRecord{{Date: "2024-01-01", Amount: "1"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ledger, err := s.Ledger(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, ledger, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{ledger[0].Amount, ledger[1].Amount, ledger[2].Amount})

	summary := models.SessionSummary{ToleranceDays: 3, ReconciledAt: time.Now().UTC()}
	require.NoError(t, s.SaveSummary(ctx, sess.ID, summary))

	got, err := s.Session(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.LedgerCount)
	assert.Equal(t, 1, got.BankCount)
	require.NotNil(t, got.LastRun)
	assert.Equal(t, 3, got.LastRun.ToleranceDays)

	require.NoError(t, s.Clear(ctx, sess.ID))
	got, err = s.Session(ctx, sess.ID)
	require.NoError(t, err)
	assert.Zero(t, got.LedgerCount)
	assert.Zero(t, got.BankCount)
	assert.Nil(t, got.LastRun)

	bank, err := s.Bank(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, bank)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	sess, _ := s.CreateSession(ctx)

	records := []models.RawRecord{{Date: "2024-01-01", Amount: "1"}}
	_, err := s.AppendBank(ctx, sess.ID, records)
	require.NoError(t, err)
	records[0].Amount = "changed"

	bank, err := s.Bank(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "1", bank[0].Amount)

	bank[0].Amount = "changed again"
	again, _ := s.Bank(ctx, sess.ID)
	assert.Equal(t, "1", again[0].Amount)

	require.NoError(t, s.SaveSummary(ctx, sess.ID, models.SessionSummary{ToleranceDays: 1}))
	got, _ := s.Session(ctx, sess.ID)
	got.LastRun.ToleranceDays = 9
	fresh, _ := s.Session(ctx, sess.ID)
	assert.Equal(t, 1, fresh.LastRun.ToleranceDays)
}

func TestMemoryStore_UnknownSession(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	checks := map[string]error{}
	_, checks["session"] = s.Session(ctx, "nope")
	_, checks["ledger"] = s.Ledger(ctx, "nope")
	_, checks["bank"] = s.Bank(ctx, "nope")
	_, checks["append"] = s.AppendLedger(ctx, "nope", nil)
	checks["clear"] = s.Clear(ctx, "nope")
	checks["summary"] = s.SaveSummary(ctx, "nope", models.SessionSummary{})

	for name, err := range checks {
		require.Error(t, err, name)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeSessionNotFound), name)
		re, _ := apperrors.AsReconcilerError(err)
		assert.Equal(t, 404, re.HTTPStatus(), name)
	}
}

func TestMemoryStore_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	sess, _ := s.CreateSession(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.AppendBank(ctx, sess.ID, []models.RawRecord{{Amount: fmt.Sprint(i)}})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := s.Session(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.BankCount)
}

func TestRowToSession(t *testing.T) {
	id := uuid.New()
	summary := models.SessionSummary{
		ToleranceDays: 2,
		Metrics:       models.Metrics{LedgerTotal: 4, DiffFinal: -120},
		Diagnostics:   1,
	}
	data, err := json.Marshal(summary)
	require.NoError(t, err)

	sess, err := rowToSession(SessionRow{ID: id, LedgerCount: 4, BankCount: 5, LastRun: datatypes.JSON(data)})
	require.NoError(t, err)
	assert.Equal(t, id.String(), sess.ID)
	assert.Equal(t, 5, sess.BankCount)
	require.NotNil(t, sess.LastRun)
	assert.Equal(t, int64(-120), sess.LastRun.Metrics.DiffFinal)

	sess, err = rowToSession(SessionRow{ID: id})
	require.NoError(t, err)
	assert.Nil(t, sess.LastRun)

	_, err = rowToSession(SessionRow{ID: id, LastRun: datatypes.JSON(`{"toleranceDays":"x"}`)})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeStorageFailure))
}

func TestNewGormStore_NilDB(t *testing.T) {
	_, err := NewGormStore(nil, nil)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryConfiguration))
}

func TestGormTableNames(t *testing.T) {
	assert.Equal(t, "reconciliation_sessions", SessionRow{}.TableName())
	assert.Equal(t, "reconciliation_records", RecordRow{}.TableName())
}
