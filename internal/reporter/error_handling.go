package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"ledger-bank-reconciler/internal/models"
	"ledger-bank-reconciler/pkg/errors"
	"ledger-bank-reconciler/pkg/logger"
)

// SafeReportGenerator wraps ReportGenerator with logging, a console fallback
// for the structured formats and file output
type SafeReportGenerator struct {
	*ReportGenerator
	logger logger.Logger
}

// NewSafeReportGenerator creates a new safe report generator
func NewSafeReportGenerator(config *ReportConfig, log logger.Logger) (*SafeReportGenerator, error) {
	generator, err := NewReportGenerator(config)
	if err != nil {
		return nil, err
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		logger:          logger.OrGlobal(log).WithComponent("reporter"),
	}, nil
}

// GenerateReportSafely writes the report to writer. If a JSON or CSV report
// cannot be encoded, the console report is written instead with a notice.
func (srg *SafeReportGenerator) GenerateReportSafely(result *models.ReconciliationResult, writer io.Writer) error {
	if writer == nil {
		return errors.ValidationError(errors.CodeMissingField, "writer", nil, nil).
			WithSuggestion("Provide a valid output writer")
	}

	srg.logger.WithFields(logger.Fields{
		"format": srg.config.Format,
		"output": describeWriter(writer),
	}).Debug("Starting report generation")

	err := srg.GenerateReport(result, writer)
	if err == nil {
		return nil
	}
	if _, ok := errors.AsReconcilerError(err); ok || srg.config.Format == FormatConsole {
		return srg.wrapGenerationError(err)
	}

	srg.logger.WithError(err).WithField("fallback_format", FormatConsole).Warn("Report generation failed, falling back to console format")
	fallbackConfig := *srg.config
	fallbackConfig.Format = FormatConsole
	fallbackConfig.UseColors = false
	fallback := &ReportGenerator{config: &fallbackConfig}

	if _, werr := fmt.Fprintf(writer, "NOTE: %s report failed (%v), console report follows\n\n", srg.config.Format, err); werr != nil {
		return srg.wrapGenerationError(err)
	}
	if ferr := fallback.GenerateReport(result, writer); ferr != nil {
		return errors.InternalError(
			errors.CodeProcessingError,
			"report_fallback",
			fmt.Errorf("both primary and fallback generation failed: primary=%v, fallback=%v", err, ferr),
		)
	}
	return nil
}

// WriteReportFile writes the report to path. The report is written to a
// temporary file in the same directory and renamed into place, so a failed
// run never leaves a truncated report behind.
func (srg *SafeReportGenerator) WriteReportFile(result *models.ReconciliationResult, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.FileError(errors.CodeFilePermission, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, path, err)
	}
	defer os.Remove(tmp.Name())

	if err := srg.GenerateReportSafely(result, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.FileError(errors.CodeFilePermission, path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.FileError(errors.CodeFilePermission, path, err)
	}

	srg.logger.WithField("path", path).Info("Report written")
	return nil
}

func (srg *SafeReportGenerator) wrapGenerationError(err error) error {
	if reconcilerErr, ok := errors.AsReconcilerError(err); ok {
		return reconcilerErr
	}

	return errors.InternalError(
		errors.CodeProcessingError,
		"report_generation",
		err,
	).WithSuggestion("Check the output destination and report format settings")
}

func describeWriter(writer io.Writer) string {
	switch w := writer.(type) {
	case *os.File:
		if w.Name() != "" {
			return fmt.Sprintf("file:%s", w.Name())
		}
		return "file:unnamed"
	default:
		return fmt.Sprintf("writer:%T", writer)
	}
}
