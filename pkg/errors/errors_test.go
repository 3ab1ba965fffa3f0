package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestReconcilerError(t *testing.T) {
	tests := []struct {
		name       string
		category   ErrorCategory
		code       ErrorCode
		message    string
		cause      error
		expectCode int
		expectHTTP int
	}{
		{
			name:       "file error",
			category:   CategoryFile,
			code:       CodeFileNotFound,
			message:    "file not found",
			cause:      errors.New("no such file"),
			expectCode: 2,
			expectHTTP: 500,
		},
		{
			name:       "parse error",
			category:   CategoryParse,
			code:       CodeInvalidFormat,
			message:    "invalid format",
			expectCode: 3,
			expectHTTP: 400,
		},
		{
			name:       "validation error",
			category:   CategoryValidation,
			code:       CodeInvalidTolerance,
			message:    "bad tolerance",
			expectCode: 4,
			expectHTTP: 400,
		},
		{
			name:       "missing session",
			category:   CategoryStorage,
			code:       CodeSessionNotFound,
			message:    "no session",
			expectCode: 6,
			expectHTTP: 404,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err *ReconcilerError
			if tt.cause != nil {
				err = Wrap(tt.cause, tt.category, tt.code, tt.message)
			} else {
				err = New(tt.category, tt.code, tt.message)
			}

			if err.Category != tt.category {
				t.Errorf("expected category %s, got %s", tt.category, err.Category)
			}
			if err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, err.Code)
			}
			if err.GetExitCode() != tt.expectCode {
				t.Errorf("expected exit code %d, got %d", tt.expectCode, err.GetExitCode())
			}
			if err.HTTPStatus() != tt.expectHTTP {
				t.Errorf("expected http status %d, got %d", tt.expectHTTP, err.HTTPStatus())
			}
			if !strings.HasPrefix(err.Error(), tt.message) {
				t.Errorf("expected error string to start with %q, got %q", tt.message, err.Error())
			}
			if tt.cause != nil && err.Unwrap() != tt.cause {
				t.Errorf("expected to unwrap to %v, got %v", tt.cause, err.Unwrap())
			}
			if len(err.StackTrace) == 0 {
				t.Error("expected a captured stack trace")
			}
		})
	}
}

func TestValidationErrorTolerance(t *testing.T) {
	err := ValidationError(CodeInvalidTolerance, "tolerance", 61, nil)

	if !IsCategory(err, CategoryValidation) {
		t.Errorf("expected validation category, got %s", err.Category)
	}
	if !IsCode(err, CodeInvalidTolerance) {
		t.Errorf("expected code %s, got %s", CodeInvalidTolerance, err.Code)
	}
	if err.Context["value"] != 61 {
		t.Errorf("expected context value 61, got %v", err.Context["value"])
	}
	if err.Suggestion == "" {
		t.Error("expected a suggestion")
	}
}

func TestWrapIfNeeded(t *testing.T) {
	if WrapIfNeeded(nil, CategoryInternal, CodeUnexpectedError, "x") != nil {
		t.Error("expected nil for nil error")
	}

	original := StorageError(CodeSessionNotFound, "abc", nil)
	wrapped := WrapIfNeeded(original, CategoryInternal, CodeUnexpectedError, "x")
	if wrapped != original {
		t.Error("expected an existing ReconcilerError to be returned unchanged")
	}

	plain := errors.New("boom")
	wrapped = WrapIfNeeded(plain, CategoryInternal, CodeUnexpectedError, "x")
	if wrapped.Category != CategoryInternal || !errors.Is(wrapped, plain) {
		t.Errorf("expected plain error wrapped as internal, got %+v", wrapped)
	}
}

func TestDiagnosticList(t *testing.T) {
	var list DiagnosticList
	list.Add(MalformedRecord("ledger", 3, "amount", "abc", errors.New("not a number")))
	list.Addf(DiagEmptyInput, "bank side is empty")
	list.Add(MalformedRecord("bank", 1, "date", "31/02/2024", nil))

	if list.Len() != 3 {
		t.Fatalf("expected 3 diagnostics, got %d", list.Len())
	}
	if !list.Has(DiagEmptyInput) || list.Has(DiagSearchBudgetExceeded) {
		t.Error("unexpected Has result")
	}

	items := list.Items()
	items[0].Message = "changed"
	if list.Items()[0].Message == "changed" {
		t.Error("expected Items to return a copy")
	}

	if got := list.Summary(); got != "empty_input: 1, malformed_record: 2" {
		t.Errorf("unexpected summary %q", got)
	}

	if got := items[2].String(); !strings.Contains(got, "bank #1") {
		t.Errorf("expected origin and position in %q", got)
	}
}
