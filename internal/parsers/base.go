// Package parsers reads ledger and bank files into raw records.
//
// Parsers only split files into fields; they do not interpret dates or
// amounts. Every data row becomes one models.RawRecord in file order, so the
// position of a record in the returned slice is the position the reconciler
// reports it under. Rows the reconciler cannot interpret are dropped there,
// with a diagnostic, rather than here.
//
// Example usage:
//
//	parser, err := NewRecordParser(DefaultFormat())
//	records, stats, err := parser.ParseFile(ctx, "ledger.csv")
//
// Formats differ in column names, delimiters and whether the amount comes as
// one signed column or as separate debit and credit columns. Column names are
// matched case-insensitively against a list of aliases per field.
package parsers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"ledger-bank-reconciler/pkg/errors"
	"ledger-bank-reconciler/pkg/logger"
)

// ParseError represents an error that occurred during CSV parsing
type ParseError struct {
	Line    int
	Field   string
	Value   string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error at line %d (%s='%s'): %s: %v", e.Line, e.Field, e.Value, e.Message, e.Err)
	}
	return fmt.Sprintf("parse error at line %d (%s='%s'): %s", e.Line, e.Field, e.Value, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseConfig holds configuration for CSV parsing
type ParseConfig struct {
	HasHeader        bool `json:"has_header"`
	Comment          rune `json:"comment"`
	TrimLeadingSpace bool `json:"trim_leading_space"`
	SkipEmptyRows    bool `json:"skip_empty_rows"`
	MaxFieldSize     int  `json:"max_field_size"`
	ValidateEncoding bool `json:"validate_encoding"`
}

// DefaultParseConfig returns a configuration with sensible defaults
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{
		HasHeader:        true,
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
		MaxFieldSize:     64 * 1024,
		ValidateEncoding: true,
	}
}

// BaseParser provides common CSV parsing functionality
type BaseParser struct {
	config *ParseConfig
	logger logger.Logger
}

// NewBaseParser creates a new BaseParser with the given configuration
func NewBaseParser(config *ParseConfig, log logger.Logger) *BaseParser {
	if config == nil {
		config = DefaultParseConfig()
	}
	return &BaseParser{
		config: config,
		logger: logger.OrGlobal(log).WithComponent("parser"),
	}
}

// ParseContext holds state during parsing operations
type ParseContext struct {
	Source     string
	LineNumber int
	Headers    []string
	HeaderMap  map[string]int
	ctx        context.Context
}

// NewParseContext creates a new parsing context
func NewParseContext(ctx context.Context, source string) *ParseContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ParseContext{
		Source:    source,
		HeaderMap: make(map[string]int),
		ctx:       ctx,
	}
}

// IsCancelled checks if the parsing context has been cancelled
func (pc *ParseContext) IsCancelled() bool {
	return pc.ctx.Err() != nil
}

// ColumnIndex returns the index of the first header matching one of names,
// ignoring case, or -1.
func (pc *ParseContext) ColumnIndex(names ...string) int {
	for _, name := range names {
		if index, ok := pc.HeaderMap[strings.ToLower(strings.TrimSpace(name))]; ok {
			return index
		}
	}
	return -1
}

// OpenFile reads a whole file into memory
func (bp *BaseParser) OpenFile(filePath string) ([]byte, error) {
	bp.logger.WithField("file_path", filePath).Debug("Opening CSV file")

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, filePath, err)
		}
		if os.IsPermission(err) {
			return nil, errors.FileError(errors.CodeFilePermission, filePath, err)
		}
		return nil, errors.FileError(errors.CodeFileNotFound, filePath, err)
	}
	return data, nil
}

// NewReader configures a csv.Reader over data
func (bp *BaseParser) NewReader(data []byte, delimiter rune) *csv.Reader {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.Comment = bp.config.Comment
	reader.TrimLeadingSpace = bp.config.TrimLeadingSpace
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader
}

// ValidateEncoding checks that data is UTF-8 text, with or without a BOM
func (bp *BaseParser) ValidateEncoding(data []byte, source string) error {
	if !bp.config.ValidateEncoding {
		return nil
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), bp.maxLine())
	line := 0
	for scanner.Scan() {
		line++
		if !utf8.Valid(scanner.Bytes()) {
			return errors.ParseError(errors.CodeInvalidFormat, source, line, "encoding",
				fmt.Errorf("invalid UTF-8 encoding")).
				WithSuggestion("save the file as UTF-8 and upload it again")
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.ParseError(errors.CodeInvalidFormat, source, line, "encoding", err)
	}
	return nil
}

func (bp *BaseParser) maxLine() int {
	if bp.config.MaxFieldSize <= 0 {
		return 1024 * 1024
	}
	return bp.config.MaxFieldSize * 16
}

// ReadHeaders reads the header row and indexes it by lower-cased name.
// Without a header row, positional names are taken from fallback.
func (bp *BaseParser) ReadHeaders(reader *csv.Reader, parseCtx *ParseContext, fallback []string) error {
	if !bp.config.HasHeader {
		parseCtx.Headers = append([]string(nil), fallback...)
		bp.buildHeaderMap(parseCtx)
		return nil
	}

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return errors.ParseError(errors.CodeMissingColumn, parseCtx.Source, 1, "headers",
				fmt.Errorf("file is empty")).
				WithSuggestion("the first line must name the columns")
		}
		return errors.ParseError(errors.CodeInvalidFormat, parseCtx.Source, 1, "headers", err)
	}

	parseCtx.LineNumber++
	parseCtx.Headers = cleanHeaders(headers)
	bp.buildHeaderMap(parseCtx)

	bp.logger.WithField("headers", parseCtx.Headers).Debug("Read headers")
	return nil
}

func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		if i == 0 {
			header = strings.TrimPrefix(header, "\ufeff")
		}
		cleaned[i] = strings.TrimSpace(header)
	}
	return cleaned
}

func (bp *BaseParser) buildHeaderMap(parseCtx *ParseContext) {
	parseCtx.HeaderMap = make(map[string]int, len(parseCtx.Headers))
	for i, header := range parseCtx.Headers {
		key := strings.ToLower(header)
		if _, dup := parseCtx.HeaderMap[key]; !dup {
			parseCtx.HeaderMap[key] = i
		}
	}
}

// ReadRecord returns the next data row, skipping blank rows if configured.
// It returns io.EOF at the end of input.
func (bp *BaseParser) ReadRecord(reader *csv.Reader, parseCtx *ParseContext) ([]string, error) {
	for {
		if parseCtx.IsCancelled() {
			return nil, parseCtx.ctx.Err()
		}

		record, err := reader.Read()
		if err != nil {
			return nil, err
		}
		parseCtx.LineNumber++

		if bp.config.SkipEmptyRows && isEmptyRecord(record) {
			continue
		}

		if bp.config.MaxFieldSize > 0 {
			for i, field := range record {
				if len(field) > bp.config.MaxFieldSize {
					return nil, &ParseError{
						Line:    parseCtx.LineNumber,
						Field:   fmt.Sprintf("field_%d", i),
						Value:   truncate(field, 32),
						Message: fmt.Sprintf("field exceeds maximum size of %d bytes", bp.config.MaxFieldSize),
					}
				}
			}
		}
		return record, nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// FieldValue returns the trimmed value at index, or "" when the row is short
// or the column is absent.
func FieldValue(record []string, index int) string {
	if index < 0 || index >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[index])
}

// ParseStats holds statistics about a parsing operation
type ParseStats struct {
	Source      string
	TotalLines  int
	RecordsRead int
	Errors      []*ParseError
}

// NewParseStats creates a new ParseStats instance
func NewParseStats(source string) *ParseStats {
	return &ParseStats{Source: source}
}

// AddError adds an error to the parsing statistics
func (ps *ParseStats) AddError(err *ParseError) {
	ps.Errors = append(ps.Errors, err)
}

// HasErrors returns true if there were any parsing errors
func (ps *ParseStats) HasErrors() bool {
	return len(ps.Errors) > 0
}

func (ps *ParseStats) String() string {
	return fmt.Sprintf("%s: %d lines, %d records, %d errors", ps.Source, ps.TotalLines, ps.RecordsRead, len(ps.Errors))
}

// SampleErrors returns up to maxSamples error messages for logging
func (ps *ParseStats) SampleErrors(maxSamples int) []string {
	limit := len(ps.Errors)
	if maxSamples > 0 && maxSamples < limit {
		limit = maxSamples
	}
	samples := make([]string, 0, limit)
	for _, err := range ps.Errors[:limit] {
		samples = append(samples, err.Error())
	}
	return samples
}
