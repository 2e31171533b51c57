package availability

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"tinyhouse/internal/domain/shared/daterange"
)

var (
	ErrDateConflict = errors.New("availability: dates can't overlap dates that have already been booked")
	ErrInvalidKey   = errors.New("availability: invalid index key")
)

// ConflictError names the first already-booked day met while extending an index.
type ConflictError struct {
	Day time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s (%s)", ErrDateConflict.Error(), e.Day.Format(daterange.DateLayout))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrDateConflict
}

// Index marks booked days as year -> month (0-11) -> day of month.
// A nil Index is empty and safe to read.
type Index map[int]map[int]map[int]bool

// Extend returns a copy of the index with every day of dr marked as booked.
// The receiver is never modified. Any already booked day fails the whole call.
func (idx Index) Extend(dr daterange.DateRange) (Index, error) {
	if err := dr.Validate(); err != nil {
		return nil, err
	}
	next := idx.Clone()
	var conflict error
	dr.Each(func(day time.Time) bool {
		if next.IsBooked(day) {
			conflict = &ConflictError{Day: day}
			return false
		}
		next.mark(day)
		return true
	})
	if conflict != nil {
		return nil, conflict
	}
	return next, nil
}

// Release returns a copy of the index without the days of dr.
func (idx Index) Release(dr daterange.DateRange) Index {
	next := idx.Clone()
	dr.Each(func(day time.Time) bool {
		next.unmark(day)
		return true
	})
	return next
}

func (idx Index) Clone() Index {
	out := make(Index, len(idx))
	for y, months := range idx {
		mcopy := make(map[int]map[int]bool, len(months))
		for m, days := range months {
			dcopy := make(map[int]bool, len(days))
			for d, booked := range days {
				if booked {
					dcopy[d] = true
				}
			}
			if len(dcopy) > 0 {
				mcopy[m] = dcopy
			}
		}
		if len(mcopy) > 0 {
			out[y] = mcopy
		}
	}
	return out
}

func (idx Index) IsBooked(t time.Time) bool {
	y, m, d := daterange.Day(t).Date()
	return idx[y][int(m)-1][d]
}

// Count is the number of booked days.
func (idx Index) Count() int {
	n := 0
	for _, months := range idx {
		for _, days := range months {
			for _, booked := range days {
				if booked {
					n++
				}
			}
		}
	}
	return n
}

// Days lists booked days in ascending order.
func (idx Index) Days() []time.Time {
	out := make([]time.Time, 0, idx.Count())
	for y, months := range idx {
		for m, days := range months {
			for d, booked := range days {
				if booked {
					out = append(out, time.Date(y, time.Month(m+1), d, 0, 0, 0, 0, time.UTC))
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func (idx Index) mark(t time.Time) {
	y, m, d := daterange.Day(t).Date()
	month := int(m) - 1
	if idx[y] == nil {
		idx[y] = make(map[int]map[int]bool)
	}
	if idx[y][month] == nil {
		idx[y][month] = make(map[int]bool)
	}
	idx[y][month][d] = true
}

func (idx Index) unmark(t time.Time) {
	y, m, d := daterange.Day(t).Date()
	month := int(m) - 1
	days, ok := idx[y][month]
	if !ok {
		return
	}
	delete(days, d)
	if len(days) == 0 {
		delete(idx[y], month)
	}
	if len(idx[y]) == 0 {
		delete(idx, y)
	}
}

// Document is the string keyed form stored in documents and sent over JSON.
type Document map[string]map[string]map[string]bool

func (idx Index) Document() Document {
	out := make(Document, len(idx))
	for y, months := range idx {
		mdoc := make(map[string]map[string]bool, len(months))
		for m, days := range months {
			ddoc := make(map[string]bool, len(days))
			for d, booked := range days {
				if booked {
					ddoc[strconv.Itoa(d)] = true
				}
			}
			if len(ddoc) > 0 {
				mdoc[strconv.Itoa(m)] = ddoc
			}
		}
		if len(mdoc) > 0 {
			out[strconv.Itoa(y)] = mdoc
		}
	}
	return out
}

// FromDocument parses the string keyed form, rejecting keys outside the calendar.
func FromDocument(doc Document) (Index, error) {
	out := make(Index, len(doc))
	for ys, months := range doc {
		y, err := strconv.Atoi(ys)
		if err != nil {
			return nil, fmt.Errorf("%w: year %q", ErrInvalidKey, ys)
		}
		for ms, days := range months {
			m, err := strconv.Atoi(ms)
			if err != nil || m < 0 || m > 11 {
				return nil, fmt.Errorf("%w: month %q", ErrInvalidKey, ms)
			}
			for ds, booked := range days {
				d, err := strconv.Atoi(ds)
				if err != nil || d < 1 || d > 31 {
					return nil, fmt.Errorf("%w: day %q", ErrInvalidKey, ds)
				}
				day := time.Date(y, time.Month(m+1), d, 0, 0, 0, 0, time.UTC)
				if day.Day() != d {
					return nil, fmt.Errorf("%w: %d-%d-%d", ErrInvalidKey, y, m, d)
				}
				if booked {
					out.mark(day)
				}
			}
		}
	}
	return out, nil
}
