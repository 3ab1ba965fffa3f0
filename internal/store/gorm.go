package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"ledger-bank-reconciler/internal/models"
	"ledger-bank-reconciler/internal/reconciler"
	apperrors "ledger-bank-reconciler/pkg/errors"
	"ledger-bank-reconciler/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SessionRow is the persisted form of a session.
type SessionRow struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	LedgerCount int
	BankCount   int
	LastRun     datatypes.JSON
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (SessionRow) TableName() string { return "reconciliation_sessions" }

// RecordRow is one uploaded raw record. Position is the 1-based index of the
// record within its session and origin.
type RecordRow struct {
	ID          uint      `gorm:"primaryKey"`
	SessionID   uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_session_origin_position"`
	Origin      string    `gorm:"size:8;uniqueIndex:idx_session_origin_position"`
	Position    int       `gorm:"uniqueIndex:idx_session_origin_position"`
	Date        string
	Amount      string
	Description string
	Source      string
	CreatedAt   time.Time
}

func (RecordRow) TableName() string { return "reconciliation_records" }

// GormStore is a TransactionStore backed by a SQL database through gorm.
type GormStore struct {
	db     *gorm.DB
	logger logger.Logger
}

// OpenPostgres connects to PostgreSQL and returns a migrated store.
func OpenPostgres(dsn string, log logger.Logger) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeStorageFailure, "", err).
			WithSuggestion("check DATABASE_URL")
	}
	return NewGormStore(db, log)
}

// NewGormStore wraps db and migrates the session tables.
func NewGormStore(db *gorm.DB, log logger.Logger) (*GormStore, error) {
	if db == nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeMissingConfig, "database", nil, nil)
	}
	if err := db.AutoMigrate(&SessionRow{}, &RecordRow{}); err != nil {
		return nil, apperrors.StorageError(apperrors.CodeStorageFailure, "", fmt.Errorf("migrate: %w", err))
	}
	return &GormStore{
		db:     db,
		logger: logger.OrGlobal(log).WithComponent("gorm_store"),
	}, nil
}

func (s *GormStore) CreateSession(ctx context.Context) (*models.Session, error) {
	row := SessionRow{ID: uuid.New()}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, storageFailure(row.ID.String(), err)
	}
	return rowToSession(row)
}

func (s *GormStore) Session(ctx context.Context, sessionID string) (*models.Session, error) {
	row, err := s.find(s.db.WithContext(ctx), sessionID)
	if err != nil {
		return nil, err
	}
	return rowToSession(*row)
}

func (s *GormStore) AppendLedger(ctx context.Context, sessionID string, records []models.RawRecord) (int, error) {
	return s.append(ctx, sessionID, models.OriginLedger, records)
}

func (s *GormStore) AppendBank(ctx context.Context, sessionID string, records []models.RawRecord) (int, error) {
	return s.append(ctx, sessionID, models.OriginBank, records)
}

func (s *GormStore) Ledger(ctx context.Context, sessionID string) ([]models.RawRecord, error) {
	return s.records(ctx, sessionID, models.OriginLedger)
}

func (s *GormStore) Bank(ctx context.Context, sessionID string) ([]models.RawRecord, error) {
	return s.records(ctx, sessionID, models.OriginBank)
}

func (s *GormStore) Clear(ctx context.Context, sessionID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.find(tx, sessionID)
		if err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", row.ID).Delete(&RecordRow{}).Error; err != nil {
			return storageFailure(sessionID, err)
		}
		err = tx.Model(row).Updates(map[string]interface{}{
			"ledger_count": 0,
			"bank_count":   0,
			"last_run":     nil,
		}).Error
		if err != nil {
			return storageFailure(sessionID, err)
		}
		return nil
	})
}

func (s *GormStore) SaveSummary(ctx context.Context, sessionID string, summary models.SessionSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return apperrors.InternalError(apperrors.CodeUnexpectedError, "encode session summary", err)
	}

	db := s.db.WithContext(ctx)
	row, err := s.find(db, sessionID)
	if err != nil {
		return err
	}
	if err := db.Model(row).Update("last_run", datatypes.JSON(data)).Error; err != nil {
		return storageFailure(sessionID, err)
	}
	return nil
}

func (s *GormStore) append(ctx context.Context, sessionID string, origin models.Origin, records []models.RawRecord) (int, error) {
	var total int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.find(tx, sessionID)
		if err != nil {
			return err
		}

		column, start := "ledger_count", row.LedgerCount
		if origin == models.OriginBank {
			column, start = "bank_count", row.BankCount
		}
		total = start + len(records)
		if len(records) == 0 {
			return nil
		}

		rows := make([]RecordRow, len(records))
		for i, r := range records {
			rows[i] = RecordRow{
				SessionID:   row.ID,
				Origin:      origin.String(),
				Position:    start + i + 1,
				Date:        r.Date,
				Amount:      r.Amount,
				Description: r.Description,
				Source:      r.Source,
			}
		}
		if err := tx.CreateInBatches(rows, 500).Error; err != nil {
			return storageFailure(sessionID, err)
		}
		if err := tx.Model(row).Update(column, total).Error; err != nil {
			return storageFailure(sessionID, err)
		}
		return nil
	})
	if err != nil {
		return 0, apperrors.WrapIfNeeded(err, apperrors.CategoryStorage, apperrors.CodeStorageFailure, "append failed")
	}

	s.logger.WithFields(logger.Fields{
		"session": sessionID,
		"origin":  origin,
		"added":   len(records),
		"total":   total,
	}).Debug("Records appended")
	return total, nil
}

func (s *GormStore) records(ctx context.Context, sessionID string, origin models.Origin) ([]models.RawRecord, error) {
	db := s.db.WithContext(ctx)
	row, err := s.find(db, sessionID)
	if err != nil {
		return nil, err
	}

	var rows []RecordRow
	err = db.Where("session_id = ? AND origin = ?", row.ID, origin.String()).
		Order("position").
		Find(&rows).Error
	if err != nil {
		return nil, storageFailure(sessionID, err)
	}

	out := make([]models.RawRecord, len(rows))
	for i, r := range rows {
		out[i] = models.RawRecord{
			Date:        r.Date,
			Amount:      r.Amount,
			Description: r.Description,
			Source:      r.Source,
		}
	}
	return out, nil
}

func (s *GormStore) find(db *gorm.DB, sessionID string) (*SessionRow, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, sessionNotFound(sessionID)
	}

	var row SessionRow
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sessionNotFound(sessionID)
		}
		return nil, storageFailure(sessionID, err)
	}
	return &row, nil
}

func rowToSession(row SessionRow) (*models.Session, error) {
	sess := &models.Session{
		ID:          row.ID.String(),
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
		LedgerCount: row.LedgerCount,
		BankCount:   row.BankCount,
	}
	if len(row.LastRun) > 0 && string(row.LastRun) != "null" {
		var summary models.SessionSummary
		if err := json.Unmarshal(row.LastRun, &summary); err != nil {
			return nil, storageFailure(sess.ID, fmt.Errorf("decode last run: %w", err))
		}
		sess.LastRun = &summary
	}
	return sess, nil
}

func storageFailure(sessionID string, err error) *apperrors.ReconcilerError {
	return apperrors.StorageError(apperrors.CodeStorageFailure, sessionID, err)
}

var _ reconciler.TransactionStore = (*GormStore)(nil)
