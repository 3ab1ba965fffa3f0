package parsers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"ledger-bank-reconciler/internal/models"
	"ledger-bank-reconciler/pkg/errors"
	"ledger-bank-reconciler/pkg/logger"
)

// RecordParser reads CSV files of one format into raw records
type RecordParser struct {
	*BaseParser
	format *Format
}

// NewRecordParser creates a parser for format
func NewRecordParser(format *Format, log logger.Logger) (*RecordParser, error) {
	if format == nil {
		format = DefaultFormat()
	}
	if err := format.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "format", format.Name, err)
	}
	return &RecordParser{
		BaseParser: NewBaseParser(format.Parse, log),
		format:     format,
	}, nil
}

// Format returns the parser's format
func (rp *RecordParser) Format() *Format {
	return rp.format
}

// ParseFile reads the CSV file at filePath
func (rp *RecordParser) ParseFile(ctx context.Context, filePath string) ([]models.RawRecord, *ParseStats, error) {
	data, err := rp.OpenFile(filePath)
	if err != nil {
		return nil, nil, err
	}
	return rp.Parse(ctx, data, filePath)
}

// ParseReader reads CSV data from r; source names it in errors and records
func (rp *RecordParser) ParseReader(ctx context.Context, r io.Reader, source string) ([]models.RawRecord, *ParseStats, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, errors.ParseError(errors.CodeInvalidFormat, source, 0, "body", err)
	}
	return rp.Parse(ctx, data, source)
}

type columnLayout struct {
	date, amount, description, debit, credit int
}

// Parse splits CSV data into records. Every data row becomes one record, even
// when its fields are empty or unreadable, so that record positions match the
// data rows of the file. Rows the CSV reader rejects are counted in the stats
// and returned as empty records.
func (rp *RecordParser) Parse(ctx context.Context, data []byte, source string) ([]models.RawRecord, *ParseStats, error) {
	log := rp.logger.WithField("source", source)
	stats := NewParseStats(source)

	if err := rp.ValidateEncoding(data, source); err != nil {
		return nil, stats, err
	}

	delimiter := rp.format.Delimiter
	if delimiter == 0 {
		delimiter = DetectDelimiter(data)
	}
	reader := rp.NewReader(data, delimiter)
	parseCtx := NewParseContext(ctx, source)

	if err := rp.ReadHeaders(reader, parseCtx, rp.positionalHeaders()); err != nil {
		return nil, stats, err
	}
	layout, err := rp.resolveColumns(parseCtx)
	if err != nil {
		return nil, stats, err
	}

	var records []models.RawRecord
	for {
		row, err := rp.ReadRecord(reader, parseCtx)
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, stats, errors.Wrap(err, errors.CategoryParse, errors.CodeInvalidData, "parsing cancelled")
			}
			perr, ok := err.(*ParseError)
			if !ok {
				perr = &ParseError{Line: parseCtx.LineNumber + 1, Field: "record", Message: "unreadable row", Err: err}
			}
			stats.AddError(perr)
			records = append(records, models.RawRecord{Source: source})
			continue
		}

		records = append(records, rp.buildRecord(row, layout, source))
		stats.RecordsRead++
	}
	stats.TotalLines = parseCtx.LineNumber

	log.WithFields(logger.Fields{
		"delimiter": string(delimiter),
		"lines":     stats.TotalLines,
		"records":   len(records),
		"errors":    len(stats.Errors),
	}).Info("Parsed records")
	if stats.HasErrors() {
		log.WithField("sample_errors", stats.SampleErrors(3)).Warn("Encountered errors during parsing")
	}
	return records, stats, nil
}

func (rp *RecordParser) positionalHeaders() []string {
	headers := []string{rp.format.DateColumns[0]}
	if len(rp.format.AmountColumns) > 0 {
		headers = append(headers, rp.format.AmountColumns[0])
	} else {
		headers = append(headers, rp.format.DebitColumns[0], rp.format.CreditColumns[0])
	}
	if len(rp.format.DescriptionColumns) > 0 {
		headers = append(headers, rp.format.DescriptionColumns[0])
	}
	return headers
}

func (rp *RecordParser) resolveColumns(parseCtx *ParseContext) (columnLayout, error) {
	layout := columnLayout{
		date:        parseCtx.ColumnIndex(rp.format.DateColumns...),
		amount:      parseCtx.ColumnIndex(rp.format.AmountColumns...),
		description: parseCtx.ColumnIndex(rp.format.DescriptionColumns...),
		debit:       parseCtx.ColumnIndex(rp.format.DebitColumns...),
		credit:      parseCtx.ColumnIndex(rp.format.CreditColumns...),
	}

	var missing []string
	if layout.date < 0 {
		missing = append(missing, strings.Join(rp.format.DateColumns, "|"))
	}
	if layout.amount < 0 && (layout.debit < 0 || layout.credit < 0) {
		names := append(append([]string(nil), rp.format.AmountColumns...), "debit+credit")
		missing = append(missing, strings.Join(names, "|"))
	}
	if len(missing) > 0 {
		return layout, errors.ParseError(errors.CodeMissingColumn, parseCtx.Source, 1, strings.Join(missing, ", "),
			fmt.Errorf("headers %v", parseCtx.Headers)).
			WithSuggestion("name the columns date, amount and description (or data, valor, historico)")
	}
	return layout, nil
}

func (rp *RecordParser) buildRecord(row []string, layout columnLayout, source string) models.RawRecord {
	rec := models.RawRecord{
		Date:        FieldValue(row, layout.date),
		Description: FieldValue(row, layout.description),
		Source:      source,
	}
	if layout.amount >= 0 {
		rec.Amount = FieldValue(row, layout.amount)
	} else {
		rec.Amount = DebitCreditAmount(FieldValue(row, layout.debit), FieldValue(row, layout.credit))
	}
	return rec
}

// DebitCreditAmount folds a debit and a credit column into one signed amount
// text. A column holding only zeros counts as empty. When both carry a value
// the texts are joined with " / " so the row is reported as malformed.
func DebitCreditAmount(debit, credit string) string {
	if isZeroAmount(debit) {
		debit = ""
	}
	if isZeroAmount(credit) {
		credit = ""
	}
	switch {
	case debit != "" && credit != "":
		return credit + " / " + debit
	case debit != "":
		if strings.HasPrefix(debit, "-") {
			return strings.TrimSpace(debit[1:])
		}
		return "-" + debit
	default:
		return credit
	}
}

func isZeroAmount(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r == '0', r == ',', r == '.', r == ' ', r == '-', r == '+':
		case r == 'R', r == '$':
		default:
			return false
		}
	}
	return true
}

// jsonRecord accepts amounts as JSON strings or numbers
type jsonRecord struct {
	Date        string          `json:"date"`
	Amount      json.RawMessage `json:"amount"`
	Description string          `json:"description"`
	Source      string          `json:"source"`
}

// ParseJSON decodes a JSON array of records. Amounts may be numbers or
// strings; numbers keep their literal text.
func ParseJSON(r io.Reader, source string) ([]models.RawRecord, error) {
	var raw []jsonRecord
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, source, 0, "body", err).
			WithSuggestion("send a JSON array of {date, amount, description} objects")
	}

	records := make([]models.RawRecord, len(raw))
	for i, jr := range raw {
		records[i] = models.RawRecord{
			Date:        jr.Date,
			Amount:      amountText(jr.Amount),
			Description: jr.Description,
			Source:      jr.Source,
		}
		if records[i].Source == "" {
			records[i].Source = source
		}
	}
	return records, nil
}

func amountText(raw json.RawMessage) string {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return text
}
