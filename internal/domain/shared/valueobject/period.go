package valueobject

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"
)

// periodLayout is the canonical format for billing periods
const periodLayout = "2006-01"

// dueDayOfMonth is the day of the month rent falls due
const dueDayOfMonth = 15

// BillingPeriod identifies the calendar month a bill is generated against.
// Its canonical string form is "YYYY-MM".
type BillingPeriod struct {
	year  int
	month time.Month
}

// ParseBillingPeriod parses a "YYYY-MM" string into a BillingPeriod
func ParseBillingPeriod(s string) (BillingPeriod, error) {
	if s == "" {
		return BillingPeriod{}, errors.New("billing period cannot be empty")
	}
	t, err := time.Parse(periodLayout, s)
	if err != nil {
		return BillingPeriod{}, fmt.Errorf("invalid billing period %q: expected YYYY-MM", s)
	}
	return BillingPeriod{year: t.Year(), month: t.Month()}, nil
}

// NewBillingPeriod creates a BillingPeriod for the given year and month
func NewBillingPeriod(year int, month time.Month) BillingPeriod {
	return BillingPeriod{year: year, month: month}
}

// BillingPeriodOf returns the period containing the given instant
func BillingPeriodOf(t time.Time) BillingPeriod {
	return BillingPeriod{year: t.Year(), month: t.Month()}
}

// Year returns the period's calendar year
func (p BillingPeriod) Year() int {
	return p.year
}

// Month returns the period's calendar month
func (p BillingPeriod) Month() time.Month {
	return p.month
}

// IsZero returns true for the zero value
func (p BillingPeriod) IsZero() bool {
	return p.year == 0
}

// Start returns midnight UTC on the first day of the period
func (p BillingPeriod) Start() time.Time {
	return time.Date(p.year, p.month, 1, 0, 0, 0, 0, time.UTC)
}

// DueDate returns the 15th of the period's month
func (p BillingPeriod) DueDate() time.Time {
	return time.Date(p.year, p.month, dueDayOfMonth, 0, 0, 0, 0, time.UTC)
}

// Next returns the following calendar month
func (p BillingPeriod) Next() BillingPeriod {
	t := p.Start().AddDate(0, 1, 0)
	return BillingPeriod{year: t.Year(), month: t.Month()}
}

// Previous returns the preceding calendar month
func (p BillingPeriod) Previous() BillingPeriod {
	t := p.Start().AddDate(0, -1, 0)
	return BillingPeriod{year: t.Year(), month: t.Month()}
}

// Equals returns true if both periods identify the same month
func (p BillingPeriod) Equals(other BillingPeriod) bool {
	return p.year == other.year && p.month == other.month
}

// Before returns true if this period precedes the other
func (p BillingPeriod) Before(other BillingPeriod) bool {
	return p.Start().Before(other.Start())
}

// String returns the canonical "YYYY-MM" form
func (p BillingPeriod) String() string {
	return p.Start().Format(periodLayout)
}

// MarshalJSON implements json.Marshaler
func (p BillingPeriod) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (p *BillingPeriod) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid billing period JSON: %s", s)
	}
	parsed, err := ParseBillingPeriod(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Value implements driver.Valuer so the period is stored as "YYYY-MM"
func (p BillingPeriod) Value() (driver.Value, error) {
	return p.String(), nil
}

// Scan implements sql.Scanner
func (p *BillingPeriod) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		parsed, err := ParseBillingPeriod(v)
		if err != nil {
			return err
		}
		*p = parsed
		return nil
	case []byte:
		parsed, err := ParseBillingPeriod(string(v))
		if err != nil {
			return err
		}
		*p = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into BillingPeriod", value)
	}
}
