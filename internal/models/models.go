package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical calendar-day layout used on every output surface.
const DateLayout = "2006-01-02"

// Origin tags which stream a record comes from
type Origin string

const (
	// OriginLedger marks accounting journal entries
	OriginLedger Origin = "ledger"
	// OriginBank marks bank statement transactions
	OriginBank Origin = "bank"
)

// String returns the string representation of Origin
func (o Origin) String() string {
	return string(o)
}

// IsValid checks if the origin is one of the two known streams
func (o Origin) IsValid() bool {
	return o == OriginLedger || o == OriginBank
}

// Label returns the display name shown next to each row.
func (o Origin) Label() string {
	if o == OriginBank {
		return "Banco"
	}
	return "Diário"
}

// Counterpart returns the other origin.
func (o Origin) Counterpart() Origin {
	if o == OriginBank {
		return OriginLedger
	}
	return OriginBank
}

// rank orders ledger before bank wherever origins break a tie.
func (o Origin) rank() int {
	if o == OriginLedger {
		return 0
	}
	return 1
}

// Less reports whether o sorts before other (ledger first).
func (o Origin) Less(other Origin) bool {
	return o.rank() < other.rank()
}

// RawRecord is a record as produced by an upstream parser, before normalization.
// Fields hold the text exactly as read.
type RawRecord struct {
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Source      string `json:"source,omitempty"`
}

// Transaction is the normalized shape shared by both streams.
// ID is the 1-based position of the record in its input list; it is unique
// within an origin and stable for a given input.
type Transaction struct {
	ID          int       `json:"id"`
	Origin      Origin    `json:"origin"`
	Date        time.Time `json:"date"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
}

// TxKey identifies a transaction across both origins.
type TxKey struct {
	Origin Origin
	ID     int
}

// Key returns the transaction's cross-origin identity
func (t Transaction) Key() TxKey {
	return TxKey{Origin: t.Origin, ID: t.ID}
}

// Validate performs basic validation on the Transaction
func (t Transaction) Validate() error {
	if t.ID <= 0 {
		return fmt.Errorf("transaction id must be positive, got %d", t.ID)
	}
	if !t.Origin.IsValid() {
		return fmt.Errorf("invalid origin: %q", t.Origin)
	}
	if t.Date.IsZero() {
		return fmt.Errorf("transaction date cannot be zero")
	}
	if !t.Date.Equal(CalendarDay(t.Date)) {
		return fmt.Errorf("transaction date %s carries a time of day", t.Date.Format(time.RFC3339))
	}
	return nil
}

// String returns a string representation of the Transaction
func (t Transaction) String() string {
	return fmt.Sprintf("Transaction{%s#%d, Amount: %d, Date: %s}",
		t.Origin, t.ID, t.Amount, t.Date.Format(DateLayout))
}

// MarshalJSON renders the date as a calendar day.
func (t Transaction) MarshalJSON() ([]byte, error) {
	type Alias Transaction
	return json.Marshal(&struct {
		Date string `json:"date"`
		Alias
	}{
		Date:  t.Date.Format(DateLayout),
		Alias: Alias(t),
	})
}

// CalendarDay drops the time of day, keeping the wall-clock date of t.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayNumber counts days since the Unix epoch for a calendar day.
func DayNumber(t time.Time) int64 {
	return CalendarDay(t).Unix() / 86400
}

// DaysBetween returns the absolute number of calendar days between a and b.
func DaysBetween(a, b time.Time) int {
	d := DayNumber(a) - DayNumber(b)
	if d < 0 {
		d = -d
	}
	return int(d)
}

// WithinTolerance reports whether two dates are at most toleranceDays apart.
func WithinTolerance(a, b time.Time, toleranceDays int) bool {
	return DaysBetween(a, b) <= toleranceDays
}

// FormatAmount renders minor units as a decimal string, e.g. 123456 -> "1234.56".
func FormatAmount(minor int64, digits int32) string {
	return decimal.New(minor, -digits).StringFixed(digits)
}

// ParseDate parses s as a calendar day using the canonical layout.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// SumAmounts adds the amounts of txs.
func SumAmounts(txs []Transaction) int64 {
	var total int64
	for _, tx := range txs {
		total += tx.Amount
	}
	return total
}
