package daterange

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidRange = errors.New("daterange: check out date can't be before check in date")
	ErrInvalidDate  = errors.New("daterange: invalid calendar date")
)

// DateLayout is the ISO calendar date accepted on the wire.
const DateLayout = "2006-01-02"

const day = 24 * time.Hour

// DateRange is an inclusive span of whole UTC calendar days [CheckIn, CheckOut].
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// New truncates both ends to UTC midnight and rejects a check-out before the check-in.
func New(checkIn, checkOut time.Time) (DateRange, error) {
	dr := DateRange{CheckIn: Day(checkIn), CheckOut: Day(checkOut)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// Parse builds a range from two date strings, see ParseDate.
func Parse(checkIn, checkOut string) (DateRange, error) {
	in, err := ParseDate(checkIn)
	if err != nil {
		return DateRange{}, err
	}
	out, err := ParseDate(checkOut)
	if err != nil {
		return DateRange{}, err
	}
	return New(in, out)
}

// ParseDate accepts YYYY-MM-DD or RFC3339 and returns the UTC calendar day.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, ErrInvalidDate
	}
	if t, err := time.Parse(DateLayout, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return Day(t), nil
}

// Day returns midnight UTC of the calendar day t falls on in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (dr DateRange) Validate() error {
	if dr.CheckIn.IsZero() || dr.CheckOut.IsZero() {
		return ErrInvalidRange
	}
	if dr.CheckOut.Before(dr.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

// Days is the inclusive number of calendar days covered.
func (dr DateRange) Days() int {
	return int(Day(dr.CheckOut).Sub(Day(dr.CheckIn))/day) + 1
}

// Each calls fn for every day from check-in to check-out until fn returns false.
func (dr DateRange) Each(fn func(day time.Time) bool) {
	end := Day(dr.CheckOut)
	for cursor := Day(dr.CheckIn); !cursor.After(end); cursor = cursor.Add(day) {
		if !fn(cursor) {
			return
		}
	}
}

func (dr DateRange) Overlaps(other DateRange) bool {
	return !dr.CheckIn.After(other.CheckOut) && !other.CheckIn.After(dr.CheckOut)
}

func (dr DateRange) ContainsDate(t time.Time) bool {
	t = Day(t)
	return !t.Before(dr.CheckIn) && !t.After(dr.CheckOut)
}

func (dr DateRange) String() string {
	return dr.CheckIn.Format(DateLayout) + ".." + dr.CheckOut.Format(DateLayout)
}
