package errors

import (
	"fmt"
	"sort"
	"strings"
)

// DiagnosticCode identifies a non-fatal condition raised during a run.
type DiagnosticCode string

const (
	// DiagMalformedRecord: a single input record could not be parsed and was dropped.
	DiagMalformedRecord DiagnosticCode = "malformed_record"
	// DiagEmptyInput: one or both sides had no transactions.
	DiagEmptyInput DiagnosticCode = "empty_input"
	// DiagSearchBudgetExceeded: an anchor's group search was cut off and the anchor left unmatched.
	DiagSearchBudgetExceeded DiagnosticCode = "search_budget_exceeded"
	// DiagOutOfPeriod: a bank record fell outside the ledger period and was excluded.
	DiagOutOfPeriod DiagnosticCode = "out_of_period"
	// DiagDeadlineExceeded: the caller's context ended before all stages finished.
	DiagDeadlineExceeded DiagnosticCode = "deadline_exceeded"
)

// Diagnostic is one reported condition. Origin and Position are set when the
// condition concerns a single record.
type Diagnostic struct {
	Code     DiagnosticCode `json:"code"`
	Message  string         `json:"message"`
	Origin   string         `json:"origin,omitempty"`
	Position int            `json:"position,omitempty"`
	Field    string         `json:"field,omitempty"`
	Value    string         `json:"value,omitempty"`
}

func (d Diagnostic) String() string {
	if d.Origin == "" {
		return fmt.Sprintf("[%s] %s", d.Code, d.Message)
	}
	return fmt.Sprintf("[%s] %s #%d: %s", d.Code, d.Origin, d.Position, d.Message)
}

// MalformedRecord builds the diagnostic for a dropped record.
func MalformedRecord(origin string, position int, field, value string, cause error) Diagnostic {
	msg := fmt.Sprintf("unparsable %s %q", field, value)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return Diagnostic{
		Code:     DiagMalformedRecord,
		Message:  msg,
		Origin:   origin,
		Position: position,
		Field:    field,
		Value:    value,
	}
}

// DiagnosticList collects diagnostics in the order they were raised.
type DiagnosticList struct {
	items []Diagnostic
}

// Add appends diagnostics.
func (l *DiagnosticList) Add(d ...Diagnostic) {
	l.items = append(l.items, d...)
}

// Addf appends a diagnostic that does not refer to a single record.
func (l *DiagnosticList) Addf(code DiagnosticCode, format string, args ...interface{}) {
	l.items = append(l.items, Diagnostic{Code: code, Message: fmt.Sprintf(format, args...)})
}

// Items returns a copy of the collected diagnostics. Never nil.
func (l *DiagnosticList) Items() []Diagnostic {
	out := make([]Diagnostic, len(l.items))
	copy(out, l.items)
	return out
}

// Len returns the number of diagnostics.
func (l *DiagnosticList) Len() int {
	return len(l.items)
}

// Has reports whether any diagnostic carries code.
func (l *DiagnosticList) Has(code DiagnosticCode) bool {
	for _, d := range l.items {
		if d.Code == code {
			return true
		}
	}
	return false
}

// Summary counts diagnostics per code, e.g. "malformed_record: 2, empty_input: 1".
func (l *DiagnosticList) Summary() string {
	return SummarizeDiagnostics(l.items)
}

// SummarizeDiagnostics counts diagnostics per code in code order.
func SummarizeDiagnostics(items []Diagnostic) string {
	if len(items) == 0 {
		return "no diagnostics"
	}
	counts := make(map[DiagnosticCode]int)
	for _, d := range items {
		counts[d.Code]++
	}
	codes := make([]string, 0, len(counts))
	for code := range counts {
		codes = append(codes, string(code))
	}
	sort.Strings(codes)
	parts := make([]string, 0, len(codes))
	for _, code := range codes {
		parts = append(parts, fmt.Sprintf("%s: %d", code, counts[DiagnosticCode(code)]))
	}
	return strings.Join(parts, ", ")
}
