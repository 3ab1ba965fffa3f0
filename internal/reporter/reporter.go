// Package reporter renders reconciliation results for people and tools.
//
// Supported output formats:
//   - Console: summary, imbalance, combination groups, outstanding items and
//     diagnostics for terminal display
//   - JSON: the result document, optionally trimmed to outstanding rows
//   - CSV: one line per result row, in cluster order, for spreadsheets
//
// Amounts are carried in minor units and rendered here with
// MinorUnitDigits decimal places.
//
// Example usage:
//
//	gen, err := reporter.NewReportGenerator(&reporter.ReportConfig{
//		Format:          reporter.FormatCSV,
//		IncludeMatched:  true,
//		CSVDelimiter:    ';',
//		CSVHeaders:      true,
//		MinorUnitDigits: 2,
//		MaxListItems:    20,
//	})
//	err = gen.GenerateReport(result, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"ledger-bank-reconciler/internal/models"
	apperrors "ledger-bank-reconciler/pkg/errors"

	"github.com/shopspring/decimal"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

const (
	ansiReset  = "\033[0m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiRed    = "\033[31m"
)

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format" mapstructure:"format"`

	// IncludeMatched adds reconciled rows to CSV and JSON output and lists
	// combination groups on the console
	IncludeMatched     bool `json:"include_matched" mapstructure:"include_matched"`
	IncludeChart       bool `json:"include_chart" mapstructure:"include_chart"`
	IncludeDiagnostics bool `json:"include_diagnostics" mapstructure:"include_diagnostics"`

	UseColors    bool `json:"use_colors" mapstructure:"use_colors"`
	MaxListItems int  `json:"max_list_items" mapstructure:"max_list_items"`

	CSVDelimiter rune `json:"csv_delimiter" mapstructure:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers" mapstructure:"csv_headers"`

	// SortByAmount lists outstanding items by descending absolute amount
	// instead of row order
	SortByAmount bool `json:"sort_by_amount" mapstructure:"sort_by_amount"`

	MinorUnitDigits int32 `json:"minor_unit_digits" mapstructure:"minor_unit_digits"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:             FormatConsole,
		IncludeMatched:     true,
		IncludeChart:       false,
		IncludeDiagnostics: true,
		UseColors:          true,
		MaxListItems:       10,
		CSVDelimiter:       ',',
		CSVHeaders:         true,
		MinorUnitDigits:    2,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.MaxListItems < 0 {
		return fmt.Errorf("max list items cannot be negative: %d", c.MaxListItems)
	}
	if c.MinorUnitDigits < 0 || c.MinorUnitDigits > 4 {
		return fmt.Errorf("minor unit digits must be between 0 and 4, got %d", c.MinorUnitDigits)
	}
	if c.Format == FormatCSV && (c.CSVDelimiter == 0 || c.CSVDelimiter == '"' || c.CSVDelimiter == '\n') {
		return fmt.Errorf("invalid CSV delimiter %q", c.CSVDelimiter)
	}
	return nil
}

// ReportGenerator generates reconciliation reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "report", config.Format, err)
	}
	return &ReportGenerator{config: config}, nil
}

// Config returns the generator configuration
func (rg *ReportGenerator) Config() *ReportConfig {
	return rg.config
}

// GenerateReport writes a report of result to writer
func (rg *ReportGenerator) GenerateReport(result *models.ReconciliationResult, writer io.Writer) error {
	if result == nil {
		return apperrors.ValidationError(apperrors.CodeMissingField, "result", nil, nil)
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) generateConsoleReport(result *models.ReconciliationResult, writer io.Writer) error {
	w := &errWriter{w: writer}
	m := result.Metrics

	w.printf("RECONCILIATION REPORT\n")
	w.printf("Tolerance: %d day(s)\n", result.ToleranceDays)
	if result.Partial {
		w.printf("%s\n", rg.colorize(ansiYellow, "WARNING: run stopped early, the result is partial"))
	}
	w.printf("\n")

	w.printf("=== SUMMARY ===\n")
	ledgerMatched := countRows(result.Rows, models.OriginLedger, true)
	bankMatched := countRows(result.Rows, models.OriginBank, true)
	w.printf("Ledger entries:    %d\n", m.LedgerTotal)
	w.printf("  Reconciled:      %d (%.1f%%)\n", ledgerMatched, percentage(ledgerMatched, m.LedgerTotal))
	w.printf("  Outstanding:     %d\n", m.LedgerTotal-ledgerMatched)
	w.printf("Bank transactions: %d\n", m.BankTotal)
	w.printf("  Reconciled:      %d (%.1f%%)\n", bankMatched, percentage(bankMatched, m.BankTotal))
	w.printf("  Outstanding:     %d\n", m.BankTotal-bankMatched)
	w.printf("Direct pairs:      %d\n", m.DirectCount)
	w.printf("Combinations:      %d\n\n", m.GroupCount)

	w.printf("=== IMBALANCE (bank - ledger) ===\n")
	w.printf("Initial:   %s\n", rg.amount(m.DiffInitial))
	w.printf("Remaining: %s\n", rg.colorAmount(m.DiffFinal))
	w.printf("Explained: %s\n\n", rg.amount(m.DiffInitial-m.DiffFinal))

	if rg.config.IncludeMatched {
		var combos []models.MatchGroup
		for _, g := range result.Groups {
			if g.Kind == models.GroupCombination {
				combos = append(combos, g)
			}
		}
		if len(combos) > 0 {
			w.printf("=== COMBINATIONS ===\n")
			rg.printGroups(w, result, combos)
			w.printf("\n")
		}
	}

	for _, origin := range []models.Origin{models.OriginLedger, models.OriginBank} {
		rows := outstanding(result.Rows, origin)
		if len(rows) == 0 {
			continue
		}
		w.printf("=== ONLY IN %s ===\n", strings.ToUpper(origin.Label()))
		rg.printRows(w, rows)
		w.printf("\n")
	}

	if rg.config.IncludeDiagnostics && len(result.Diagnostics) > 0 {
		w.printf("=== DIAGNOSTICS ===\n")
		w.printf("%s\n", apperrors.SummarizeDiagnostics(result.Diagnostics))
		rg.printDiagnostics(w, result.Diagnostics)
	}

	return w.err
}

func (rg *ReportGenerator) generateJSONReport(result *models.ReconciliationResult, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rg.filterResultForOutput(result))
}

// CSVHeaders are the columns of the CSV report
var CSVHeaders = []string{
	"transaction_id",
	"origin",
	"date",
	"description",
	"amount",
	"status",
	"group_id",
	"color_code",
}

func (rg *ReportGenerator) generateCSVReport(result *models.ReconciliationResult, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		if err := csvWriter.Write(CSVHeaders); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, row := range result.Rows {
		if row.IsReconciled() && !rg.config.IncludeMatched {
			continue
		}
		record := []string{
			strconv.Itoa(row.TransactionID),
			row.Origin.Label(),
			row.Date.Format(models.DateLayout),
			row.Description,
			rg.amount(row.Amount),
			string(row.Status),
			strconv.Itoa(row.GroupID),
			string(row.ColorCode),
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write row %s#%d: %w", row.Origin, row.TransactionID, err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

func (rg *ReportGenerator) printGroups(w *errWriter, result *models.ReconciliationResult, groups []models.MatchGroup) {
	for i, g := range groups {
		if rg.limitReached(w, i, len(groups)) {
			return
		}
		w.printf("  Group %d: %s #%d for %s\n", g.GroupID, g.AnchorOrigin.Label(), g.AnchorID, rg.amount(g.AnchorAmount))
		for _, row := range result.RowsInGroup(g.GroupID) {
			if row.Origin == g.AnchorOrigin && row.TransactionID == g.AnchorID {
				continue
			}
			w.printf("    - %s #%d %s %s %s\n", row.Origin.Label(), row.TransactionID,
				row.Date.Format(models.DateLayout), rg.amount(row.Amount), row.Description)
		}
	}
}

func (rg *ReportGenerator) printRows(w *errWriter, rows []models.ResultRow) {
	if rg.config.SortByAmount {
		sort.SliceStable(rows, func(i, j int) bool {
			return abs(rows[i].Amount) > abs(rows[j].Amount)
		})
	}

	var total int64
	for _, row := range rows {
		total += row.Amount
	}
	w.printf("Count: %d, total: %s\n", len(rows), rg.amount(total))

	for i, row := range rows {
		if rg.limitReached(w, i, len(rows)) {
			return
		}
		w.printf("  %d. #%d %s %14s  %s\n", i+1, row.TransactionID,
			row.Date.Format(models.DateLayout), rg.amount(row.Amount), row.Description)
	}
}

func (rg *ReportGenerator) printDiagnostics(w *errWriter, diags []apperrors.Diagnostic) {
	for i, d := range diags {
		if rg.limitReached(w, i, len(diags)) {
			return
		}
		w.printf("  - %s\n", d)
	}
}

// limitReached prints the overflow line once i passes MaxListItems
func (rg *ReportGenerator) limitReached(w *errWriter, i, n int) bool {
	limit := rg.config.MaxListItems
	if limit == 0 || i < limit {
		return false
	}
	w.printf("  ... and %d more\n", n-limit)
	return true
}

func (rg *ReportGenerator) amount(minor int64) string {
	return decimal.New(minor, -rg.config.MinorUnitDigits).StringFixed(rg.config.MinorUnitDigits)
}

func (rg *ReportGenerator) colorAmount(minor int64) string {
	if minor == 0 {
		return rg.colorize(ansiGreen, rg.amount(minor))
	}
	return rg.colorize(ansiRed, rg.amount(minor))
}

func (rg *ReportGenerator) colorize(color, s string) string {
	if !rg.config.UseColors {
		return s
	}
	return color + s + ansiReset
}

// filterResultForOutput keeps the result document shape and drops what the
// configuration excludes
func (rg *ReportGenerator) filterResultForOutput(result *models.ReconciliationResult) map[string]interface{} {
	rows := result.Rows
	groups := result.Groups
	if !rg.config.IncludeMatched {
		rows = make([]models.ResultRow, 0, len(result.Rows))
		for _, r := range result.Rows {
			if !r.IsReconciled() {
				rows = append(rows, r)
			}
		}
		groups = []models.MatchGroup{}
	}

	output := map[string]interface{}{
		"toleranceDays": result.ToleranceDays,
		"rows":          rows,
		"metrics":       result.Metrics,
		"groups":        groups,
		"partial":       result.Partial,
	}
	if rg.config.IncludeChart {
		output["chart"] = result.Chart
	}
	if rg.config.IncludeDiagnostics {
		output["diagnostics"] = result.Diagnostics
	}
	return output
}

func countRows(rows []models.ResultRow, origin models.Origin, reconciled bool) int {
	n := 0
	for _, r := range rows {
		if r.Origin == origin && r.IsReconciled() == reconciled {
			n++
		}
	}
	return n
}

func outstanding(rows []models.ResultRow, origin models.Origin) []models.ResultRow {
	var out []models.ResultRow
	for _, r := range rows {
		if r.Origin == origin && !r.IsReconciled() {
			out = append(out, r)
		}
	}
	return out
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// errWriter keeps the first write error so report sections can print
// without checking each call
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
