package parsers

import (
	"bytes"
	"fmt"
	"strings"
)

// Format describes the column layout of a ledger or bank CSV file
type Format struct {
	Name        string `json:"name" mapstructure:"name"`
	Description string `json:"description,omitempty" mapstructure:"description"`

	// Delimiter is ',' or ';'. Zero means detect it from the header line.
	Delimiter rune `json:"delimiter" mapstructure:"delimiter"`

	DateColumns        []string `json:"date_columns" mapstructure:"date_columns"`
	AmountColumns      []string `json:"amount_columns" mapstructure:"amount_columns"`
	DescriptionColumns []string `json:"description_columns" mapstructure:"description_columns"`

	// DebitColumns and CreditColumns are used when no amount column is
	// present. A debit becomes a negative amount.
	DebitColumns  []string `json:"debit_columns" mapstructure:"debit_columns"`
	CreditColumns []string `json:"credit_columns" mapstructure:"credit_columns"`

	Parse *ParseConfig `json:"parse,omitempty" mapstructure:"parse"`
}

// Validate checks if the format is usable
func (f *Format) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("format name cannot be empty")
	}
	switch f.Delimiter {
	case 0, ',', ';', '\t', '|':
	default:
		return fmt.Errorf("unsupported delimiter %q", f.Delimiter)
	}
	if len(f.DateColumns) == 0 {
		return fmt.Errorf("at least one date column name is required")
	}
	if len(f.AmountColumns) == 0 && (len(f.DebitColumns) == 0 || len(f.CreditColumns) == 0) {
		return fmt.Errorf("an amount column or both debit and credit columns are required")
	}
	return nil
}

// Clone returns a deep copy of the format
func (f *Format) Clone() *Format {
	clone := *f
	clone.DateColumns = append([]string(nil), f.DateColumns...)
	clone.AmountColumns = append([]string(nil), f.AmountColumns...)
	clone.DescriptionColumns = append([]string(nil), f.DescriptionColumns...)
	clone.DebitColumns = append([]string(nil), f.DebitColumns...)
	clone.CreditColumns = append([]string(nil), f.CreditColumns...)
	if f.Parse != nil {
		parse := *f.Parse
		clone.Parse = &parse
	}
	return &clone
}

// DefaultFormat accepts the common English and Portuguese column names
func DefaultFormat() *Format {
	return &Format{
		Name:               "default",
		Description:        "date, amount and description columns; delimiter detected",
		DateColumns:        []string{"date", "data", "transaction_date", "posting_date", "dt"},
		AmountColumns:      []string{"amount", "valor", "value", "transaction_amount"},
		DescriptionColumns: []string{"description", "historico", "histórico", "memo", "descricao", "descrição"},
		DebitColumns:       []string{"debit", "debito", "débito"},
		CreditColumns:      []string{"credit", "credito", "crédito"},
		Parse:              DefaultParseConfig(),
	}
}

// Predefined formats
var (
	// StandardFormat is the comma-separated English layout
	StandardFormat = &Format{
		Name:               "standard",
		Description:        "comma separated date,amount,description",
		Delimiter:          ',',
		DateColumns:        []string{"date"},
		AmountColumns:      []string{"amount"},
		DescriptionColumns: []string{"description"},
	}

	// BrazilianFormat is the semicolon-separated layout most Brazilian
	// accounting systems export
	BrazilianFormat = &Format{
		Name:               "br",
		Description:        "semicolon separated data;valor;historico",
		Delimiter:          ';',
		DateColumns:        []string{"data"},
		AmountColumns:      []string{"valor"},
		DescriptionColumns: []string{"historico", "histórico"},
	}

	// DebitCreditFormat carries separate debit and credit columns
	DebitCreditFormat = &Format{
		Name:               "debit_credit",
		Description:        "separate debit and credit columns",
		DateColumns:        []string{"date", "data"},
		DescriptionColumns: []string{"description", "historico", "memo"},
		DebitColumns:       []string{"debit", "debito", "débito"},
		CreditColumns:      []string{"credit", "credito", "crédito"},
	}
)

// GetFormat returns a predefined format by name, or nil
func GetFormat(name string) *Format {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default", "auto":
		return DefaultFormat()
	case "standard":
		return StandardFormat.Clone()
	case "br":
		return BrazilianFormat.Clone()
	case "debit_credit":
		return DebitCreditFormat.Clone()
	default:
		return nil
	}
}

// ListFormats returns every predefined format
func ListFormats() []*Format {
	return []*Format{DefaultFormat(), StandardFormat, BrazilianFormat, DebitCreditFormat}
}

// DetectDelimiter picks ';' or ',' from the first line of data, whichever is
// more frequent outside quotes. Ties go to ','.
func DetectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}

	counts := map[rune]int{}
	quoted := false
	for _, r := range string(line) {
		switch {
		case r == '"':
			quoted = !quoted
		case !quoted && (r == ',' || r == ';' || r == '\t'):
			counts[r]++
		}
	}

	best := ','
	for _, r := range []rune{';', '\t'} {
		if counts[r] > counts[best] {
			best = r
		}
	}
	return best
}
