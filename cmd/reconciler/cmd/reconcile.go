package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"ledger-bank-reconciler/cmd/reconciler/config"
	"ledger-bank-reconciler/internal/reconciler"
	"ledger-bank-reconciler/internal/reporter"
	apperrors "ledger-bank-reconciler/pkg/errors"
	"ledger-bank-reconciler/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the reconcile command
var (
	ledgerFiles  []string
	bankFiles    []string
	ledgerFormat string
	bankFormat   string
	tolerance    int
	preset       string
	bankPeriod   string
	outputFormat string
	outputFile   string
	runTimeout   time.Duration
	showProgress bool
	noColor      bool
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile ledger entries with bank statement transactions",
	Long: `Reconcile compares the entries of one or more ledger files with the
transactions of one or more bank statement files. Files of each side are
concatenated in the order given.

Amounts may use either decimal separator ("1.234,56" or "1,234.56").
Dates may be ISO (2024-01-31) or day first (31/01/2024).

Examples:
  # Basic reconciliation with the default 3 day tolerance
  reconciler reconcile --ledger-files diario.csv --bank-files extrato.csv

  # Several bank files, same-day matching only
  reconciler reconcile --ledger-files diario.csv --bank-files jan.csv,fev.csv --preset strict

  # Bank export with separate debit and credit columns, JSON report to a file
  reconciler reconcile --ledger-files diario.csv --bank-files extrato.csv \
    --bank-format debit_credit --output-format json --output-file report.json`,
	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	flags := reconcileCmd.Flags()
	flags.StringSliceVarP(&ledgerFiles, "ledger-files", "l", nil, "ledger CSV files (required)")
	flags.StringSliceVarP(&bankFiles, "bank-files", "b", nil, "bank statement CSV files (required)")
	flags.StringVar(&ledgerFormat, "ledger-format", "default", "ledger file layout: default, standard, br, debit_credit")
	flags.StringVar(&bankFormat, "bank-format", "default", "bank file layout: default, standard, br, debit_credit")
	flags.IntVarP(&tolerance, "tolerance", "t", 3, "date tolerance in days (0-60), overrides the preset")
	flags.StringVar(&preset, "preset", config.PresetDefault, "matching preset: "+strings.Join(config.Presets, ", "))
	flags.StringVar(&bankPeriod, "bank-period", string(reconciler.BankPeriodAll), "bank records to use: all, or ledger to keep only the ledger period")
	flags.StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	flags.StringVarP(&outputFile, "output-file", "o", "", "write the report to a file instead of stdout")
	flags.DurationVar(&runTimeout, "timeout", 0, "stop matching after this long and report a partial result (0 disables)")
	flags.BoolVar(&showProgress, "progress", false, "show progress on stderr")
	flags.BoolVar(&noColor, "no-color", false, "disable colored console output")

	for _, name := range []string{
		"ledger-files", "bank-files", "ledger-format", "bank-format", "tolerance", "preset",
		"bank-period", "output-format", "output-file", "timeout", "progress", "no-color",
	} {
		viper.BindPFlag(name, flags.Lookup(name))
	}

	reconcileCmd.MarkFlagRequired("ledger-files")
	reconcileCmd.MarkFlagRequired("bank-files")
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Read back through viper so config file and environment values apply
	ledgerFiles = viper.GetStringSlice("ledger-files")
	bankFiles = viper.GetStringSlice("bank-files")
	ledgerFormat = viper.GetString("ledger-format")
	bankFormat = viper.GetString("bank-format")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	runTimeout = viper.GetDuration("timeout")
	showProgress = viper.GetBool("progress")
	noColor = viper.GetBool("no-color")

	if len(ledgerFiles) == 0 {
		return apperrors.ValidationError(apperrors.CodeMissingField, "ledger-files", nil, nil).
			WithSuggestion("Pass at least one ledger file with --ledger-files")
	}
	if len(bankFiles) == 0 {
		return apperrors.ValidationError(apperrors.CodeMissingField, "bank-files", nil, nil).
			WithSuggestion("Pass at least one bank file with --bank-files")
	}

	for i, f := range ledgerFiles {
		if err := validateFileExists(f, fmt.Sprintf("ledger file %d", i+1)); err != nil {
			return err
		}
	}
	for i, f := range bankFiles {
		if err := validateFileExists(f, fmt.Sprintf("bank file %d", i+1)); err != nil {
			return err
		}
	}

	for setting, name := range map[string]string{"ledger-format": ledgerFormat, "bank-format": bankFormat} {
		if _, err := config.ParserFormat(name); err != nil {
			return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, setting, name, err)
		}
	}
	if _, err := config.CreateReportConfig(outputFormat, false); err != nil {
		return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "output-format", outputFormat, err)
	}
	if runTimeout < 0 {
		return apperrors.ValidationError(apperrors.CodeOutOfRange, "timeout", runTimeout, fmt.Errorf("timeout cannot be negative"))
	}

	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return apperrors.FileError(apperrors.CodeFileNotFound, dir, err).
					WithSuggestion("Create the output directory first")
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return apperrors.ValidationError(apperrors.CodeMissingField, description, filePath, fmt.Errorf("%s path cannot be empty", description))
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return apperrors.FileError(apperrors.CodeFileNotFound, filePath, err).WithContext("file", description)
	}
	if err != nil {
		return apperrors.FileError(apperrors.CodeFilePermission, filePath, err).WithContext("file", description)
	}

	if info.IsDir() {
		return apperrors.FileError(apperrors.CodeFileNotFound, filePath, fmt.Errorf("%s is a directory, expected a file", description))
	}

	file, err := os.Open(filePath)
	if err != nil {
		return apperrors.FileError(apperrors.CodeFilePermission, filePath, err).WithContext("file", description)
	}
	file.Close()

	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	log := logger.GetGlobalLogger().WithComponent("cli")
	stderr := cmd.ErrOrStderr()

	cfg, err := config.LoadReconcilerConfig(viper.GetViper())
	if err != nil {
		return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "reconciler", nil, err)
	}
	lf, _ := config.ParserFormat(ledgerFormat)
	bf, _ := config.ParserFormat(bankFormat)

	if viper.GetBool("verbose") {
		fmt.Fprintf(stderr, "Starting reconciliation...\n")
		fmt.Fprintf(stderr, "Ledger files: %s (%s)\n", strings.Join(ledgerFiles, ", "), lf.Name)
		fmt.Fprintf(stderr, "Bank files: %s (%s)\n", strings.Join(bankFiles, ", "), bf.Name)
		fmt.Fprintf(stderr, "Matching: %s, bank period %s\n", cfg.Matching, cfg.BankPeriod)
	}

	service, err := reconciler.NewService(cfg, nil, log)
	if err != nil {
		return err
	}
	orchestrator, err := reconciler.NewReconciliationOrchestrator(service, lf, bf, log)
	if err != nil {
		return err
	}
	if showProgress {
		orchestrator.AddProgressCallback(func(p *reconciler.ReconciliationProgress) {
			fmt.Fprintf(stderr, "\r[%d/%d] %s (%.1f%% complete)",
				p.CompletedSteps, p.TotalSteps, p.CurrentStep, p.PercentComplete)
		})
	}

	// Ctrl-C stops matching; what was matched so far is still reported.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	out, err := orchestrator.ProcessFiles(ctx, &reconciler.FileRequest{
		LedgerFiles:   ledgerFiles,
		BankFiles:     bankFiles,
		ToleranceDays: cfg.Matching.ToleranceDays,
	})
	if showProgress {
		fmt.Fprintln(stderr)
	}
	if err != nil {
		return err
	}

	reportConfig, err := config.CreateReportConfig(outputFormat, !noColor && outputFile == "")
	if err != nil {
		return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "output-format", outputFormat, err)
	}
	reportConfig.MinorUnitDigits = cfg.Normalizer.MinorUnitDigits
	generator, err := reporter.NewSafeReportGenerator(reportConfig, log)
	if err != nil {
		return err
	}

	if outputFile != "" {
		err = generator.WriteReportFile(out.Result, outputFile)
	} else {
		err = generator.GenerateReportSafely(out.Result, cmd.OutOrStdout())
	}
	if err != nil {
		return err
	}

	if viper.GetBool("verbose") {
		printRunSummary(stderr, out)
	}
	return nil
}

func printRunSummary(w io.Writer, out *reconciler.FileResult) {
	m := out.Result.Metrics
	fmt.Fprintf(w, "\nReconciliation completed")
	if out.Result.Partial {
		fmt.Fprintf(w, " (partial)")
	}
	fmt.Fprintf(w, " in %v.\n", out.Duration.Round(time.Millisecond))
	for _, stats := range append(out.LedgerStats, out.BankStats...) {
		if stats != nil {
			fmt.Fprintf(w, "  %s\n", stats)
		}
	}
	fmt.Fprintf(w, "Processed %d ledger entries and %d bank transactions.\n", m.LedgerTotal, m.BankTotal)
	fmt.Fprintf(w, "Found %d direct pairs and %d combinations; %d rows reconciled.\n",
		m.DirectCount, m.GroupCount, m.ReconciledCount)
	fmt.Fprintf(w, "Diagnostics: %s\n", apperrors.SummarizeDiagnostics(out.Result.Diagnostics))
}
