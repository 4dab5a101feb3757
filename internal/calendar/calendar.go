// Package calendar provides the trading-day oracle used by the
// simulation engine: which dates are market days, and how dates align
// to period boundaries.
package calendar

import (
	"fmt"
	"time"
)

// Market answers trading-day questions for a named exchange calendar.
// Only the NYSE holiday schedule is implemented; other names fall back
// to the same rules.
type Market struct {
	name     string
	holidays map[int]map[time.Time]bool // year -> holiday set
}

// NewMarket creates a calendar for the named exchange.
func NewMarket(name string) *Market {
	if name == "" {
		name = "NYSE"
	}
	return &Market{
		name:     name,
		holidays: make(map[int]map[time.Time]bool),
	}
}

// Name returns the calendar's exchange name.
func (m *Market) Name() string { return m.name }

// Day truncates a time to midnight UTC. All calendar math operates on
// these normalized dates.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// TradingDays returns the ordered trading days between start and end,
// inclusive.
func (m *Market) TradingDays(start, end time.Time) []time.Time {
	var days []time.Time
	for d := Day(start); !d.After(Day(end)); d = d.AddDate(0, 0, 1) {
		if m.IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days
}

// IsTradingDay reports whether the market is open on the given date.
func (m *Market) IsTradingDay(t time.Time) bool {
	d := Day(t)
	if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !m.holidaySet(d.Year())[d]
}

// NextTradingDay returns the first trading day strictly after t.
func (m *Market) NextTradingDay(t time.Time) (time.Time, error) {
	d := Day(t)
	for i := 0; i < 10; i++ {
		d = d.AddDate(0, 0, 1)
		if m.IsTradingDay(d) {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("no trading day within 10 days after %s", Day(t).Format("2006-01-02"))
}

// PreviousTradingDay returns the last trading day strictly before t.
func (m *Market) PreviousTradingDay(t time.Time) (time.Time, error) {
	d := Day(t)
	for i := 0; i < 10; i++ {
		d = d.AddDate(0, 0, -1)
		if m.IsTradingDay(d) {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("no trading day within 10 days before %s", Day(t).Format("2006-01-02"))
}

// FirstTradingDayOfMonth returns the first trading day of the month.
func (m *Market) FirstTradingDayOfMonth(year int, month time.Month) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	if m.IsTradingDay(d) {
		return d
	}
	next, _ := m.NextTradingDay(d)
	return next
}

// LastTradingDayOfMonth returns the last trading day of the month.
func (m *Market) LastTradingDayOfMonth(year int, month time.Month) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1)
	if m.IsTradingDay(d) {
		return d
	}
	prev, _ := m.PreviousTradingDay(d)
	return prev
}

// FirstTradingDayOfQuarter returns the first trading day of quarter 1-4.
func (m *Market) FirstTradingDayOfQuarter(year, quarter int) time.Time {
	month := time.Month((quarter-1)*3 + 1)
	return m.FirstTradingDayOfMonth(year, month)
}

// FirstTradingDayOfYear returns the first trading day of the year.
func (m *Market) FirstTradingDayOfYear(year int) time.Time {
	return m.FirstTradingDayOfMonth(year, time.January)
}

// AlignToTradingDay aligns a date to a trading day according to a rule:
// FIRST_BUSINESS_DAY (same day if open, else next), LAST_BUSINESS_DAY
// (same day if open, else previous), NEXT, or PREVIOUS.
func (m *Market) AlignToTradingDay(t time.Time, rule string) time.Time {
	d := Day(t)
	switch rule {
	case "LAST_BUSINESS_DAY":
		if m.IsTradingDay(d) {
			return d
		}
		prev, _ := m.PreviousTradingDay(d)
		return prev
	case "NEXT":
		next, _ := m.NextTradingDay(d)
		return next
	case "PREVIOUS":
		prev, _ := m.PreviousTradingDay(d)
		return prev
	default: // FIRST_BUSINESS_DAY
		if m.IsTradingDay(d) {
			return d
		}
		next, _ := m.NextTradingDay(d)
		return next
	}
}

func (m *Market) holidaySet(year int) map[time.Time]bool {
	if set, ok := m.holidays[year]; ok {
		return set
	}
	set := make(map[time.Time]bool)
	add := func(d time.Time) { set[d] = true }

	// Fixed-date holidays shift to the adjacent weekday when they land
	// on a weekend (Saturday -> Friday, Sunday -> Monday). A New Year's
	// Day on Saturday is not observed at all, matching NYSE practice.
	add(observed(time.Date(year, time.July, 4, 0, 0, 0, 0, time.UTC)))
	add(observed(time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC)))
	if year >= 2022 {
		add(observed(time.Date(year, time.June, 19, 0, 0, 0, 0, time.UTC)))
	}
	newYear := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	if newYear.Weekday() == time.Sunday {
		add(newYear.AddDate(0, 0, 1))
	} else if newYear.Weekday() != time.Saturday {
		add(newYear)
	}

	add(nthWeekday(year, time.January, time.Monday, 3))   // MLK Day
	add(nthWeekday(year, time.February, time.Monday, 3))  // Presidents Day
	add(lastWeekday(year, time.May, time.Monday))         // Memorial Day
	add(nthWeekday(year, time.September, time.Monday, 1)) // Labor Day
	thanksgiving := nthWeekday(year, time.November, time.Thursday, 4)
	add(thanksgiving)
	add(easterSunday(year).AddDate(0, 0, -2)) // Good Friday

	m.holidays[year] = set
	return set
}

func observed(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}

func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(weekday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset+(n-1)*7)
}

func lastWeekday(year int, month time.Month, weekday time.Weekday) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1)
	offset := (int(d.Weekday()) - int(weekday) + 7) % 7
	return d.AddDate(0, 0, -offset)
}

// easterSunday computes Gregorian Easter using the anonymous algorithm.
func easterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
