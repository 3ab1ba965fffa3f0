package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"ledger-bank-reconciler/internal/models"
	"ledger-bank-reconciler/pkg/errors"
	"ledger-bank-reconciler/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	testLedgerCSV = "date,amount,description\n2024-01-05,10.00,Invoice\n2024-01-10,5.00,Sale\n"
	testBankCSV   = "date,amount,description\n2024-01-06,10.00,TED\n2024-01-10,3.00,PIX A\n2024-01-10,2.00,PIX B\n"
)

func writeTestFiles(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	ledger := filepath.Join(dir, "diario.csv")
	bank := filepath.Join(dir, "extrato.csv")
	if err := os.WriteFile(ledger, []byte(testLedgerCSV), 0644); err != nil {
		t.Fatalf("failed to create ledger file: %v", err)
	}
	if err := os.WriteFile(bank, []byte(testBankCSV), 0644); err != nil {
		t.Fatalf("failed to create bank file: %v", err)
	}
	return ledger, bank
}

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	logger.SetGlobalLogger(logger.NewNop())
	t.Cleanup(viper.Reset)
}

func TestValidateFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	validFile := filepath.Join(tmpDir, "valid.csv")
	if err := os.WriteFile(validFile, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	tests := []struct {
		name     string
		filePath string
		code     errors.ErrorCode
	}{
		{"valid file", validFile, ""},
		{"empty path", "", errors.CodeMissingField},
		{"non-existent file", "/non/existent/file.csv", errors.CodeFileNotFound},
		{"directory instead of file", tmpDir, errors.CodeFileNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFileExists(tt.filePath, "test file")
			if tt.code == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.IsCode(err, tt.code) {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestValidateReconcileFlags(t *testing.T) {
	ledger, bank := writeTestFiles(t)

	tests := []struct {
		name          string
		setupFlags    func()
		errorContains string
	}{
		{
			name: "valid flags",
			setupFlags: func() {
				viper.Set("ledger-files", []string{ledger})
				viper.Set("bank-files", []string{bank})
				viper.Set("output-format", "console")
			},
		},
		{
			name: "missing ledger files",
			setupFlags: func() {
				viper.Set("bank-files", []string{bank})
			},
			errorContains: "ledger-files",
		},
		{
			name: "missing bank files",
			setupFlags: func() {
				viper.Set("ledger-files", []string{ledger})
				viper.Set("bank-files", []string{})
			},
			errorContains: "bank-files",
		},
		{
			name: "bank file does not exist",
			setupFlags: func() {
				viper.Set("ledger-files", []string{ledger})
				viper.Set("bank-files", []string{bank, bank + ".missing"})
			},
			errorContains: "not found",
		},
		{
			name: "invalid output format",
			setupFlags: func() {
				viper.Set("ledger-files", []string{ledger})
				viper.Set("bank-files", []string{bank})
				viper.Set("output-format", "invalid")
			},
			errorContains: "output-format",
		},
		{
			name: "unknown bank format",
			setupFlags: func() {
				viper.Set("ledger-files", []string{ledger})
				viper.Set("bank-files", []string{bank})
				viper.Set("output-format", "json")
				viper.Set("bank-format", "ofx")
			},
			errorContains: "bank-format",
		},
		{
			name: "output directory missing",
			setupFlags: func() {
				viper.Set("ledger-files", []string{ledger})
				viper.Set("bank-files", []string{bank})
				viper.Set("output-format", "json")
				viper.Set("output-file", filepath.Join(t.TempDir(), "nope", "report.json"))
			},
			errorContains: "not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper(t)
			tt.setupFlags()

			err := validateReconcileFlags(&cobra.Command{}, nil)

			if tt.errorContains == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error but got none")
			}
			if !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("expected error to contain '%s', got: %v", tt.errorContains, err)
			}
		})
	}
}

func runTestReconcile(t *testing.T, set map[string]interface{}) (string, error) {
	t.Helper()
	resetViper(t)
	for k, v := range set {
		viper.Set(k, v)
	}

	cmd := &cobra.Command{}
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	if err := validateReconcileFlags(cmd, nil); err != nil {
		return "", err
	}
	err := runReconcile(cmd, nil)
	return stdout.String(), err
}

func TestRunReconcile_JSON(t *testing.T) {
	ledger, bank := writeTestFiles(t)

	out, err := runTestReconcile(t, map[string]interface{}{
		"ledger-files":  []string{ledger},
		"bank-files":    []string{bank},
		"output-format": "json",
		"tolerance":     2,
	})
	if err != nil {
		t.Fatalf("runReconcile() error = %v", err)
	}

	var doc struct {
		ToleranceDays int              `json:"toleranceDays"`
		Metrics       models.Metrics   `json:"metrics"`
		Rows          []map[string]any `json:"rows"`
		Chart         []map[string]any `json:"chart"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("invalid JSON report: %v\n%s", err, out)
	}

	if doc.ToleranceDays != 2 {
		t.Errorf("expected tolerance 2, got %d", doc.ToleranceDays)
	}
	if doc.Metrics.DirectCount != 1 || doc.Metrics.GroupCount != 1 {
		t.Errorf("expected 1 direct pair and 1 combination, got %+v", doc.Metrics)
	}
	if doc.Metrics.DiffFinal != 0 || doc.Metrics.ReconciledCount != 5 {
		t.Errorf("expected everything reconciled, got %+v", doc.Metrics)
	}
	if len(doc.Rows) != 5 || len(doc.Chart) == 0 {
		t.Errorf("expected 5 rows and a chart, got %d rows and %d points", len(doc.Rows), len(doc.Chart))
	}
}

func TestRunReconcile_StrictPresetAndFile(t *testing.T) {
	ledger, bank := writeTestFiles(t)
	reportPath := filepath.Join(t.TempDir(), "report.csv")

	out, err := runTestReconcile(t, map[string]interface{}{
		"ledger-files":  []string{ledger},
		"bank-files":    []string{bank},
		"output-format": "csv",
		"output-file":   reportPath,
		"preset":        "strict",
	})
	if err != nil {
		t.Fatalf("runReconcile() error = %v", err)
	}
	if out != "" {
		t.Errorf("expected nothing on stdout when writing a file, got %q", out)
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	// Same-day only: the 10.00 pair is a day apart and stays open
	if got := strings.Count(string(data), "Conciliado"); got != 3 {
		t.Errorf("expected 3 reconciled rows, got %d\n%s", got, data)
	}
}

func TestRunReconcile_SplitPaymentSample(t *testing.T) {
	dir := filepath.Join("..", "..", "..", "testdata", "scenarios", "split_payment")

	out, err := runTestReconcile(t, map[string]interface{}{
		"ledger-files":  []string{filepath.Join(dir, "ledger.csv")},
		"ledger-format": "br",
		"bank-files":    []string{filepath.Join(dir, "bank.csv")},
		"bank-format":   "standard",
		"output-format": "json",
	})
	if err != nil {
		t.Fatalf("runReconcile() error = %v", err)
	}

	var doc struct {
		Metrics models.Metrics `json:"metrics"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("invalid JSON report: %v", err)
	}
	m := doc.Metrics
	if m.DirectCount != 1 || m.GroupCount != 1 || m.ReconciledCount != 4 {
		t.Errorf("expected the boleto paired and the split payment grouped, got %+v", m)
	}
	// Juros 12.00 in the bank, refunded fee 80.00 in the ledger
	if m.DiffInitial != -6800 || m.DiffFinal != -6800 {
		t.Errorf("expected diffs of -68.00, got %d and %d", m.DiffInitial, m.DiffFinal)
	}
}

func TestRunReconcile_InvalidTolerance(t *testing.T) {
	ledger, bank := writeTestFiles(t)

	_, err := runTestReconcile(t, map[string]interface{}{
		"ledger-files":  []string{ledger},
		"bank-files":    []string{bank},
		"output-format": "console",
		"tolerance":     61,
	})
	if err == nil {
		t.Fatal("expected error for tolerance 61")
	}
	re, ok := errors.AsReconcilerError(err)
	if !ok || re.GetExitCode() != 4 {
		t.Errorf("expected exit code 4, got %v", err)
	}
}

func TestReconcileCommandHelp(t *testing.T) {
	cmd := reconcileCmd

	for _, name := range []string{"ledger-files", "bank-files", "tolerance", "preset", "bank-period", "output-format"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("%s flag not found", name)
		}
	}

	var helpOutput bytes.Buffer
	cmd.SetOut(&helpOutput)
	defer cmd.SetOut(nil)
	cmd.Help()

	helpText := helpOutput.String()
	for _, section := range []string{"Usage:", "Examples:", "Flags:", "--ledger-files", "--bank-files", "--tolerance"} {
		if !strings.Contains(helpText, section) {
			t.Errorf("help text should contain '%s'", section)
		}
	}
}

func TestCLIErrorHandler(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		exitCode int
		contains []string
	}{
		{"nil", nil, 0, nil},
		{
			"tolerance",
			errors.ValidationError(errors.CodeInvalidTolerance, "toleranceDays", 61, fmt.Errorf("out of range")),
			4,
			[]string{"Error:", "Validation error help", "between 0 and 60"},
		},
		{
			"missing file",
			errors.FileError(errors.CodeFileNotFound, "x.csv", os.ErrNotExist).WithContext("file", "ledger file 1"),
			2,
			[]string{"Context:", "file: ledger file 1", "File error help"},
		},
		{"plain not exist", &os.PathError{Op: "open", Path: "x.csv", Err: syscall.ENOENT}, 2, []string{"File not found"}},
		{"usage", fmt.Errorf("unknown flag: --bogus"), 1, []string{"unknown flag", "--help"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &CLIErrorHandler{logger: logger.NewNop(), out: &buf}

			if code := h.HandleError(tt.err); code != tt.exitCode {
				t.Errorf("expected exit code %d, got %d", tt.exitCode, code)
			}
			for _, want := range tt.contains {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("expected output to contain %q\n%s", want, buf.String())
				}
			}
		})
	}
}
