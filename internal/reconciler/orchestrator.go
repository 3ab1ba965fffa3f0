// Package reconciler matches accounting-ledger entries against bank-statement
// transactions.
//
// A run normalizes both streams, pairs transactions one-to-one by exact amount
// within a date tolerance, then explains what is left with many-to-one groups
// whose amounts add up exactly. Every input transaction ends up as one row,
// classified as reconciled or outstanding, and the run reports how much of the
// initial imbalance remains.
//
// The Service works on records already in memory. The
// ReconciliationOrchestrator loads them from CSV files first.
//
// Example usage:
//
//	service, err := reconciler.NewService(reconciler.DefaultConfig(), nil, log)
//	orchestrator, err := reconciler.NewReconciliationOrchestrator(service, nil, nil, log)
//	orchestrator.AddProgressCallback(func(p *reconciler.ReconciliationProgress) {
//		fmt.Printf("%.0f%% %s\n", p.PercentComplete, p.CurrentStep)
//	})
//
//	out, err := orchestrator.ProcessFiles(ctx, &reconciler.FileRequest{
//		LedgerFiles:   []string{"ledger.csv"},
//		BankFiles:     []string{"bank.csv"},
//		ToleranceDays: 3,
//	})
package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ledger-bank-reconciler/internal/models"
	"ledger-bank-reconciler/internal/parsers"
	"ledger-bank-reconciler/pkg/errors"
	"ledger-bank-reconciler/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const orchestratorSteps = 3

// ReconciliationOrchestrator loads ledger and bank files and reconciles them.
// Files are parsed concurrently; records keep the order of the files in the
// request, then the order of rows within each file.
type ReconciliationOrchestrator struct {
	service      *Service
	ledgerParser *parsers.RecordParser
	bankParser   *parsers.RecordParser
	logger       logger.Logger

	progressCallbacks []ProgressCallback
	currentProgress   *ReconciliationProgress
	progressMutex     sync.Mutex
}

// ReconciliationProgress tracks the progress of a file run
type ReconciliationProgress struct {
	TotalSteps      int           `json:"total_steps"`
	CompletedSteps  int           `json:"completed_steps"`
	CurrentStep     string        `json:"current_step"`
	PercentComplete float64       `json:"percent_complete"`
	StartTime       time.Time     `json:"start_time"`
	ElapsedTime     time.Duration `json:"elapsed_time"`
	FilesParsed     int           `json:"files_parsed"`
	TotalFiles      int           `json:"total_files"`
}

// ProgressCallback is called to report reconciliation progress
type ProgressCallback func(*ReconciliationProgress)

// FileRequest names the files of one run
type FileRequest struct {
	LedgerFiles   []string `json:"ledger_files"`
	BankFiles     []string `json:"bank_files"`
	ToleranceDays int      `json:"tolerance_days"`
}

// Validate validates the request
func (r *FileRequest) Validate() error {
	if len(r.LedgerFiles) == 0 {
		return fmt.Errorf("at least one ledger file is required")
	}
	if len(r.BankFiles) == 0 {
		return fmt.Errorf("at least one bank file is required")
	}
	return nil
}

// FileResult is the outcome of a file run
type FileResult struct {
	Result      *models.ReconciliationResult `json:"result"`
	LedgerStats []*parsers.ParseStats        `json:"-"`
	BankStats   []*parsers.ParseStats        `json:"-"`
	Duration    time.Duration                `json:"duration"`
}

// NewReconciliationOrchestrator creates an orchestrator. Nil formats fall back
// to parsers.DefaultFormat.
func NewReconciliationOrchestrator(service *Service, ledgerFormat, bankFormat *parsers.Format, log logger.Logger) (*ReconciliationOrchestrator, error) {
	if service == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "service", nil, nil)
	}
	log = logger.OrGlobal(log).WithComponent("reconciliation_orchestrator")

	ledgerParser, err := parsers.NewRecordParser(ledgerFormat, log)
	if err != nil {
		return nil, err
	}
	bankParser, err := parsers.NewRecordParser(bankFormat, log)
	if err != nil {
		return nil, err
	}

	return &ReconciliationOrchestrator{
		service:         service,
		ledgerParser:    ledgerParser,
		bankParser:      bankParser,
		logger:          log,
		currentProgress: &ReconciliationProgress{TotalSteps: orchestratorSteps},
	}, nil
}

// AddProgressCallback adds a progress callback function
func (ro *ReconciliationOrchestrator) AddProgressCallback(callback ProgressCallback) {
	ro.progressCallbacks = append(ro.progressCallbacks, callback)
}

// ProcessFiles parses the request's files and reconciles them
func (ro *ReconciliationOrchestrator) ProcessFiles(ctx context.Context, request *FileRequest) (*FileResult, error) {
	if err := request.Validate(); err != nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "files", request, err)
	}

	ro.logger.WithFields(logger.Fields{
		"ledger_files":   len(request.LedgerFiles),
		"bank_files":     len(request.BankFiles),
		"tolerance_days": request.ToleranceDays,
	}).Info("Starting file reconciliation")

	startTime := time.Now()
	ro.initializeProgress(len(request.LedgerFiles) + len(request.BankFiles))

	// Step 1: Parse all files concurrently
	ro.updateProgress("Parsing files", 0)
	ledgerStats := make([]*parsers.ParseStats, len(request.LedgerFiles))
	bankStats := make([]*parsers.ParseStats, len(request.BankFiles))
	ledgerParts := make([][]models.RawRecord, len(request.LedgerFiles))
	bankParts := make([][]models.RawRecord, len(request.BankFiles))

	g, gctx := errgroup.WithContext(ctx)
	ro.parseAll(gctx, g, ro.ledgerParser, request.LedgerFiles, ledgerParts, ledgerStats)
	ro.parseAll(gctx, g, ro.bankParser, request.BankFiles, bankParts, bankStats)
	if err := g.Wait(); err != nil {
		ro.logger.WithError(err).Error("Failed to parse input files")
		return nil, errors.WrapIfNeeded(err, errors.CategoryParse, errors.CodeInvalidFormat, "failed to parse input files")
	}

	// Step 2: Reconcile
	ro.updateProgress("Reconciling", 1)
	result, err := ro.service.Reconcile(ctx, flatten(ledgerParts), flatten(bankParts), request.ToleranceDays)
	if err != nil {
		return nil, err
	}

	// Step 3: Done
	ro.updateProgress("Completed", orchestratorSteps)
	elapsed := time.Since(startTime)
	ro.logger.WithField("elapsed_time", elapsed).Info("File reconciliation completed")

	return &FileResult{
		Result:      result,
		LedgerStats: ledgerStats,
		BankStats:   bankStats,
		Duration:    elapsed,
	}, nil
}

func (ro *ReconciliationOrchestrator) parseAll(ctx context.Context, g *errgroup.Group, parser *parsers.RecordParser, files []string, parts [][]models.RawRecord, stats []*parsers.ParseStats) {
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			records, st, err := parser.ParseFile(ctx, file)
			if err != nil {
				return err
			}
			parts[i], stats[i] = records, st
			ro.fileParsed()
			return nil
		})
	}
}

func flatten(parts [][]models.RawRecord) []models.RawRecord {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]models.RawRecord, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func (ro *ReconciliationOrchestrator) initializeProgress(totalFiles int) {
	ro.progressMutex.Lock()
	defer ro.progressMutex.Unlock()

	ro.currentProgress = &ReconciliationProgress{
		TotalSteps: orchestratorSteps,
		StartTime:  time.Now(),
		TotalFiles: totalFiles,
	}
}

func (ro *ReconciliationOrchestrator) fileParsed() {
	ro.progressMutex.Lock()
	defer ro.progressMutex.Unlock()
	ro.currentProgress.FilesParsed++
}

func (ro *ReconciliationOrchestrator) updateProgress(step string, completed int) {
	ro.progressMutex.Lock()
	defer ro.progressMutex.Unlock()

	p := ro.currentProgress
	p.CurrentStep = step
	p.CompletedSteps = completed
	p.ElapsedTime = time.Since(p.StartTime)
	p.PercentComplete = float64(completed) / float64(p.TotalSteps) * 100

	snapshot := *p
	for _, callback := range ro.progressCallbacks {
		callback(&snapshot)
	}
}
