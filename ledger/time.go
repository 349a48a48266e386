package ledger

import (
	"time"
)

// =============================================================================
// TIME POINT - day-granular dates for ledger entries
// =============================================================================

// TimePoint is a calendar day in UTC. Entries are dated to the day; the
// CreatedAt timestamp is the tiebreaker for same-day ordering.
type TimePoint struct {
	Time time.Time
}

const dateLayout = "2006-01-02"

func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func Today() TimePoint {
	now := time.Now().UTC()
	return NewTimePoint(now.Year(), now.Month(), now.Day())
}

// ParseDate parses a YYYY-MM-DD date. Unparsable dates are a
// ValidationError per the engine's contract.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return TimePoint{}, &ValidationError{Field: "date", Reason: "unparsable date, expected YYYY-MM-DD: " + s}
	}
	return TimePoint{Time: t.UTC()}, nil
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool  { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool  { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) IsZero() bool                { return tp.Time.IsZero() }

func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint   { return TimePoint{Time: tp.Time.AddDate(0, 0, n)} }
func (tp TimePoint) AddMonths(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(0, n, 0)} }

func (tp TimePoint) String() string { return tp.normalize().Format(dateLayout) }

// DaysBetween returns the number of whole days from one point to
// another. Used by interest accrual ("elapsed whole days since grant").
func DaysBetween(from, to TimePoint) int {
	return int(to.normalize().Sub(from.normalize()).Hours() / 24)
}

// StartOfMonth returns the first day of the month containing tp.
func StartOfMonth(tp TimePoint) TimePoint {
	return NewTimePoint(tp.Time.Year(), tp.Time.Month(), 1)
}
