package reconciler

import (
	"fmt"
	"math"
	"strings"
	"time"

	"ledger-bank-reconciler/internal/models"
	apperrors "ledger-bank-reconciler/pkg/errors"

	"github.com/shopspring/decimal"
)

// MaxAmountMinor bounds the magnitude of a parsed amount in minor units so
// that sums over a full candidate group stay inside int64.
const MaxAmountMinor = math.MaxInt64 / 16

var maxAmountDecimal = decimal.NewFromInt(MaxAmountMinor)

// NormalizerConfig contains configuration for record normalization
type NormalizerConfig struct {
	// DateLayouts are tried in order; the first that parses wins
	DateLayouts []string `json:"date_layouts" mapstructure:"date_layouts"`

	// MinorUnitDigits is the number of decimal places of the currency
	MinorUnitDigits int32 `json:"minor_unit_digits" mapstructure:"minor_unit_digits"`

	// CurrencySymbols are stripped from amounts before parsing
	CurrencySymbols []string `json:"currency_symbols" mapstructure:"currency_symbols"`
}

// DefaultNormalizerConfig returns a default normalization configuration
func DefaultNormalizerConfig() *NormalizerConfig {
	return &NormalizerConfig{
		DateLayouts: []string{
			"2006-01-02",
			"02/01/2006",
			time.RFC3339,
			"2006-01-02 15:04:05",
			"2006-01-02T15:04:05",
			"02/01/2006 15:04:05",
			"02-01-2006",
			"02/01/06",
		},
		MinorUnitDigits: 2,
		CurrencySymbols: []string{"R$", "US$", "$", "€", "£"},
	}
}

// Validate checks the normalizer configuration
func (c *NormalizerConfig) Validate() error {
	if len(c.DateLayouts) == 0 {
		return fmt.Errorf("at least one date layout is required")
	}
	if c.MinorUnitDigits < 0 || c.MinorUnitDigits > 4 {
		return fmt.Errorf("minor unit digits must be between 0 and 4, got %d", c.MinorUnitDigits)
	}
	return nil
}

// Normalizer turns raw records into transactions
type Normalizer struct {
	config *NormalizerConfig
}

// NewNormalizer creates a new normalizer
func NewNormalizer(config *NormalizerConfig) *Normalizer {
	if config == nil {
		config = DefaultNormalizerConfig()
	}
	return &Normalizer{config: config}
}

// Normalize converts records of one origin. Each transaction's ID is the
// record's 1-based position, so ids stay positional even when a record before
// it is dropped. Records with an unparsable date or amount are left out and
// reported as malformed_record diagnostics.
func (n *Normalizer) Normalize(origin models.Origin, records []models.RawRecord) ([]models.Transaction, []apperrors.Diagnostic) {
	txs := make([]models.Transaction, 0, len(records))
	var diags []apperrors.Diagnostic

	for i, rec := range records {
		position := i + 1

		date, err := n.ParseDate(rec.Date)
		if err != nil {
			diags = append(diags, apperrors.MalformedRecord(origin.String(), position, "date", rec.Date, err))
			continue
		}

		amount, err := n.ParseAmount(rec.Amount)
		if err != nil {
			diags = append(diags, apperrors.MalformedRecord(origin.String(), position, "amount", rec.Amount, err))
			continue
		}

		txs = append(txs, models.Transaction{
			ID:          position,
			Origin:      origin,
			Date:        date,
			Amount:      amount,
			Description: CleanDescription(rec.Description),
		})
	}

	return txs, diags
}

// ParseDate parses s with the configured layouts and drops the time of day
func (n *Normalizer) ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range n.config.DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.CalendarDay(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("no known layout matches %q", s)
}

// ParseAmount converts a textual amount into integer minor units.
//
// Accepted forms include "1234.56", "1,234.56", "1.234,56", "-12,30",
// "(12.30)", "R$ 10,00" and a trailing D or C marker ("150,00 D" is a debit).
// An amount with more decimal places than the currency allows is rejected
// rather than rounded, and so is one beyond MaxAmountMinor.
func (n *Normalizer) ParseAmount(s string) (int64, error) {
	text := strings.TrimSpace(s)
	if text == "" {
		return 0, fmt.Errorf("empty amount")
	}

	negative := false
	if strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")") {
		negative = true
		text = strings.TrimSpace(text[1 : len(text)-1])
	}

	upper := strings.ToUpper(text)
	switch {
	case strings.HasSuffix(upper, " D"), strings.HasSuffix(upper, "-"):
		negative = !negative
		text = strings.TrimSpace(text[:len(text)-1])
	case strings.HasSuffix(upper, " C"):
		text = strings.TrimSpace(text[:len(text)-1])
	}

	for _, symbol := range n.config.CurrencySymbols {
		text = strings.ReplaceAll(text, symbol, "")
	}
	text = strings.ReplaceAll(strings.TrimSpace(text), " ", "")
	if strings.HasPrefix(text, "-") {
		negative = !negative
		text = text[1:]
	} else if strings.HasPrefix(text, "+") {
		text = text[1:]
	}

	d, err := decimal.NewFromString(canonicalDecimal(text))
	if err != nil {
		return 0, fmt.Errorf("invalid number: %w", err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("unexpected sign in %q", s)
	}

	scaled := d.Shift(n.config.MinorUnitDigits)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("more than %d decimal places", n.config.MinorUnitDigits)
	}
	if scaled.GreaterThan(maxAmountDecimal) {
		return 0, fmt.Errorf("amount %q exceeds the supported range", s)
	}
	minor := scaled.IntPart()
	if negative {
		minor = -minor
	}
	return minor, nil
}

// canonicalDecimal rewrites grouping and decimal separators to the form
// decimal.NewFromString accepts. When both ',' and '.' appear the last one is
// the decimal separator. A lone separator that occurs once is decimal, one that
// repeats groups thousands.
func canonicalDecimal(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			return strings.Replace(strings.ReplaceAll(s, ".", ""), ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case lastDot >= 0 && strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	default:
		return s
	}
}

// CleanDescription trims a description and collapses inner whitespace
func CleanDescription(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
