package reconciler

import (
	"context"
	"fmt"
	"time"

	"ledger-bank-reconciler/internal/matcher"
	"ledger-bank-reconciler/internal/models"
	apperrors "ledger-bank-reconciler/pkg/errors"
	"ledger-bank-reconciler/pkg/logger"
)

// BankPeriod controls which bank records take part in a run
type BankPeriod string

const (
	// BankPeriodAll keeps every bank record
	BankPeriodAll BankPeriod = "all"
	// BankPeriodLedger drops bank records dated outside the ledger's first
	// and last day. Dropped records get no row in the result; each one is
	// listed as an out_of_period diagnostic instead.
	BankPeriodLedger BankPeriod = "ledger"
)

// Config holds configuration options for the reconciliation service
type Config struct {
	Matching   *matcher.MatchingConfig `json:"matching" mapstructure:"matching"`
	Normalizer *NormalizerConfig       `json:"normalizer" mapstructure:"normalizer"`

	// BankPeriod restricts bank records to the ledger period
	BankPeriod BankPeriod `json:"bank_period" mapstructure:"bank_period"`

	// VerifyGroups re-checks every group's sums and date span before
	// returning a result
	VerifyGroups bool `json:"verify_groups" mapstructure:"verify_groups"`

	// SaveSummaries stores the outcome of session runs in the store
	SaveSummaries bool `json:"save_summaries" mapstructure:"save_summaries"`
}

// DefaultConfig returns a default configuration for the reconciliation service
func DefaultConfig() *Config {
	return &Config{
		Matching:      matcher.DefaultMatchingConfig(),
		Normalizer:    DefaultNormalizerConfig(),
		BankPeriod:    BankPeriodAll,
		VerifyGroups:  true,
		SaveSummaries: true,
	}
}

// StrictConfig matches same-day records only and keeps groups small
func StrictConfig() *Config {
	cfg := DefaultConfig()
	cfg.Matching = matcher.StrictMatchingConfig()
	return cfg
}

// RelaxedConfig allows a week of date drift and larger groups
func RelaxedConfig() *Config {
	cfg := DefaultConfig()
	cfg.Matching = matcher.RelaxedMatchingConfig()
	return cfg
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Matching == nil {
		return fmt.Errorf("matching configuration is required")
	}
	if err := c.Matching.Validate(); err != nil {
		return fmt.Errorf("invalid matching configuration: %w", err)
	}
	if c.Normalizer == nil {
		return fmt.Errorf("normalizer configuration is required")
	}
	if err := c.Normalizer.Validate(); err != nil {
		return fmt.Errorf("invalid normalizer configuration: %w", err)
	}
	switch c.BankPeriod {
	case BankPeriodAll, BankPeriodLedger, "":
	default:
		return fmt.Errorf("bank period must be %q or %q, got %q", BankPeriodAll, BankPeriodLedger, c.BankPeriod)
	}
	return nil
}

// Service runs reconciliations. A Service holds no per-run state and is safe
// for concurrent use.
type Service struct {
	config     *Config
	store      TransactionStore
	normalizer *Normalizer
	logger     logger.Logger
}

// NewService creates a new reconciliation service. store may be nil when
// only Reconcile is used.
func NewService(config *Config, store TransactionStore, log logger.Logger) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "reconciler", config, err)
	}

	return &Service{
		config:     config,
		store:      store,
		normalizer: NewNormalizer(config.Normalizer),
		logger:     logger.OrGlobal(log).WithComponent("reconciliation_service"),
	}, nil
}

// Config returns the service configuration
func (s *Service) Config() *Config {
	return s.config
}

// Reconcile matches the ledger records against the bank records.
//
// The result is a pure function of the inputs and toleranceDays. The only
// error is a validation error for a tolerance outside 0..60; every other
// problem is reported as a diagnostic on a well-formed result. If ctx ends
// early the result covers what was committed so far and is marked Partial.
func (s *Service) Reconcile(ctx context.Context, ledgerRecords, bankRecords []models.RawRecord, toleranceDays int) (*models.ReconciliationResult, error) {
	if err := matcher.ValidateTolerance(toleranceDays); err != nil {
		return nil, apperrors.ValidationError(apperrors.CodeInvalidTolerance, "toleranceDays", toleranceDays, err)
	}

	log := s.logger.WithField("tolerance_days", toleranceDays)
	timer := logger.NewStageTimer(log)
	diags := &apperrors.DiagnosticList{}
	result := &models.ReconciliationResult{ToleranceDays: toleranceDays}

	// Step 1: Normalize both streams
	done := timer.Track("normalize")
	ledger, ledgerDiags := s.normalizer.Normalize(models.OriginLedger, ledgerRecords)
	bank, bankDiags := s.normalizer.Normalize(models.OriginBank, bankRecords)
	diags.Add(ledgerDiags...)
	diags.Add(bankDiags...)
	done()

	// Step 2: Restrict bank records to the ledger period
	if s.config.BankPeriod == BankPeriodLedger {
		bank = restrictToPeriod(ledger, bank, diags)
	}

	assigned := make(Assignments)
	var groups []models.MatchGroup
	interrupted := false

	if len(ledger) == 0 || len(bank) == 0 {
		diags.Add(emptyInput(len(ledger), len(bank)))
	} else {
		cfg := s.config.Matching.WithTolerance(toleranceDays)
		alloc := matcher.NewGroupAllocator()

		// Step 3: Direct and tolerance matching
		done = timer.Track("match")
		direct := matcher.NewMatcher(cfg).Match(ctx, ledger, bank, alloc)
		done()
		groups = append(groups, direct.Groups()...)
		interrupted = direct.Interrupted

		// Step 4: Combinatorial groups over what is left
		if cfg.EnableGroups && !interrupted {
			done = timer.Track("group")
			outcome := matcher.NewGroupResolver(cfg, s.logger).Resolve(ctx, direct.UnmatchedLedger, direct.UnmatchedBank, alloc)
			done()
			groups = append(groups, outcome.Groups...)
			interrupted = outcome.Interrupted
			for _, ex := range outcome.Exhausted {
				diags.Add(budgetExceeded(ex))
			}
		}

		for _, g := range groups {
			assigned.Assign(g)
		}

		if s.config.VerifyGroups {
			if err := verifyGroups(groups, ledger, bank, toleranceDays); err != nil {
				return nil, err
			}
		}
	}

	if interrupted {
		diags.Add(apperrors.Diagnostic{
			Code:    apperrors.DiagDeadlineExceeded,
			Message: fmt.Sprintf("run stopped early: %v", ctx.Err()),
		})
	}

	// Step 5: Classify and aggregate
	done = timer.Track("classify")
	result.Rows = Classify(ledger, bank, assigned)
	result.Metrics = Aggregate(ledger, bank, result.Rows, groups)
	result.Chart = BuildChart(ledger, bank)
	done()

	result.Groups = groups
	if result.Groups == nil {
		result.Groups = []models.MatchGroup{}
	}
	result.Diagnostics = diags.Items()
	result.Partial = interrupted

	timer.Log("Reconciliation stages finished")
	log.WithFields(logger.Fields{
		"ledger":       result.Metrics.LedgerTotal,
		"bank":         result.Metrics.BankTotal,
		"direct":       result.Metrics.DirectCount,
		"groups":       result.Metrics.GroupCount,
		"diff_initial": result.Metrics.DiffInitial,
		"diff_final":   result.Metrics.DiffFinal,
		"diagnostics":  diags.Len(),
		"partial":      result.Partial,
	}).Info("Reconciliation completed")

	return result, nil
}

// ReconcileSession reconciles the uploads stored under sessionID
func (s *Service) ReconcileSession(ctx context.Context, sessionID string, toleranceDays int) (*models.ReconciliationResult, error) {
	if s.store == nil {
		return nil, apperrors.New(apperrors.CategoryConfiguration, apperrors.CodeMissingConfig, "no transaction store configured")
	}
	if err := matcher.ValidateTolerance(toleranceDays); err != nil {
		return nil, apperrors.ValidationError(apperrors.CodeInvalidTolerance, "toleranceDays", toleranceDays, err)
	}

	ledger, err := s.store.Ledger(ctx, sessionID)
	if err != nil {
		return nil, apperrors.WrapIfNeeded(err, apperrors.CategoryStorage, apperrors.CodeStorageFailure, "failed to load ledger records")
	}
	bank, err := s.store.Bank(ctx, sessionID)
	if err != nil {
		return nil, apperrors.WrapIfNeeded(err, apperrors.CategoryStorage, apperrors.CodeStorageFailure, "failed to load bank records")
	}

	result, err := s.Reconcile(ctx, ledger, bank, toleranceDays)
	if err != nil {
		return nil, err
	}

	if s.config.SaveSummaries {
		if err := s.store.SaveSummary(ctx, sessionID, result.Summarize(time.Now())); err != nil {
			s.logger.WithError(err).WithField("session", sessionID).Warn("Failed to save reconciliation summary")
		}
	}
	return result, nil
}

func emptyInput(ledgerCount, bankCount int) apperrors.Diagnostic {
	var side string
	switch {
	case ledgerCount == 0 && bankCount == 0:
		side = "both ledger and bank are"
	case ledgerCount == 0:
		side = "ledger is"
	default:
		side = "bank is"
	}
	return apperrors.Diagnostic{
		Code:    apperrors.DiagEmptyInput,
		Message: side + " empty, nothing to match",
	}
}

func budgetExceeded(ex matcher.Exhaustion) apperrors.Diagnostic {
	return apperrors.Diagnostic{
		Code: apperrors.DiagSearchBudgetExceeded,
		Message: fmt.Sprintf("group search for amount %d stopped: %s (%d candidates, %d nodes)",
			ex.Anchor.Amount, ex.Reason, ex.Candidates, ex.Nodes),
		Origin:   ex.Anchor.Origin.String(),
		Position: ex.Anchor.ID,
	}
}

// restrictToPeriod keeps the bank transactions dated within the ledger's
// first and last day. An empty ledger defines no period.
func restrictToPeriod(ledger, bank []models.Transaction, diags *apperrors.DiagnosticList) []models.Transaction {
	if len(ledger) == 0 {
		return bank
	}
	first, last := ledger[0].Date, ledger[0].Date
	for _, tx := range ledger[1:] {
		if tx.Date.Before(first) {
			first = tx.Date
		}
		if tx.Date.After(last) {
			last = tx.Date
		}
	}

	kept := make([]models.Transaction, 0, len(bank))
	for _, tx := range bank {
		if tx.Date.Before(first) || tx.Date.After(last) {
			diags.Add(apperrors.Diagnostic{
				Code: apperrors.DiagOutOfPeriod,
				Message: fmt.Sprintf("dated %s, outside the ledger period %s to %s",
					tx.Date.Format(models.DateLayout), first.Format(models.DateLayout), last.Format(models.DateLayout)),
				Origin:   tx.Origin.String(),
				Position: tx.ID,
			})
			continue
		}
		kept = append(kept, tx)
	}
	return kept
}

func verifyGroups(groups []models.MatchGroup, ledger, bank []models.Transaction, toleranceDays int) error {
	index := make(map[models.TxKey]models.Transaction, len(ledger)+len(bank))
	for _, tx := range ledger {
		index[tx.Key()] = tx
	}
	for _, tx := range bank {
		index[tx.Key()] = tx
	}
	lookup := func(k models.TxKey) (models.Transaction, bool) {
		tx, ok := index[k]
		return tx, ok
	}

	seen := make(map[models.TxKey]int)
	for _, g := range groups {
		if err := g.Verify(lookup, toleranceDays); err != nil {
			return apperrors.ReconciliationError(apperrors.CodeMatchingFailed, "group verification", err).
				WithContext("group", g.GroupID)
		}
		for _, k := range g.Members() {
			if other, dup := seen[k]; dup {
				return apperrors.ReconciliationError(apperrors.CodeMatchingFailed, "group verification",
					fmt.Errorf("%s#%d belongs to groups %d and %d", k.Origin, k.ID, other, g.GroupID)).
					WithContext("group", g.GroupID)
			}
			seen[k] = g.GroupID
		}
	}
	return nil
}
