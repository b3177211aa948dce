package market

import (
	"fmt"
	"time"
)

// Session windows in seconds from local midnight, bounds inclusive:
// 09:30:00–11:30:00 and 13:00:00–15:00:00.
const (
	morningOpen    = 9*3600 + 30*60
	morningClose   = 11*3600 + 30*60
	afternoonOpen  = 13 * 3600
	afternoonClose = 15 * 3600
)

// defaultHolidays lists exchange closures beyond weekends. Lunar
// holidays move every year; extend the set for future years via the
// HOLIDAYS config option.
var defaultHolidays = []string{
	// 2025
	"2025-01-01",
	"2025-01-28", "2025-01-29", "2025-01-30", "2025-01-31",
	"2025-02-03", "2025-02-04",
	"2025-04-04",
	"2025-05-01", "2025-05-02", "2025-05-05",
	"2025-06-02",
	"2025-10-01", "2025-10-02", "2025-10-03", "2025-10-06",
	"2025-10-07", "2025-10-08",
	// 2026
	"2026-01-01", "2026-01-02",
	"2026-02-16", "2026-02-17", "2026-02-18", "2026-02-19", "2026-02-20",
	"2026-04-06",
	"2026-05-01", "2026-05-04", "2026-05-05",
	"2026-06-19",
	"2026-09-25",
	"2026-10-01", "2026-10-02", "2026-10-05", "2026-10-06", "2026-10-07",
}

// Calendar answers when the exchange trades: weekday sessions minus
// holidays, in the exchange's local time zone.
type Calendar struct {
	loc      *time.Location
	holidays map[string]bool
}

// NewCalendar builds a Calendar for the given IANA time zone, merging
// extra holiday dates (YYYY-MM-DD) into the built-in set.
func NewCalendar(tz string, extraHolidays []string) (*Calendar, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}

	holidays := make(map[string]bool, len(defaultHolidays)+len(extraHolidays))
	for _, d := range defaultHolidays {
		holidays[d] = true
	}
	for _, d := range extraHolidays {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return nil, fmt.Errorf("invalid holiday date %q: %w", d, err)
		}
		holidays[d] = true
	}

	return &Calendar{loc: loc, holidays: holidays}, nil
}

// Location returns the exchange time zone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// TradingDay formats t's calendar date in the exchange time zone.
// Settlement uses it as the idempotency key.
func (c *Calendar) TradingDay(t time.Time) string {
	return t.In(c.loc).Format("2006-01-02")
}

// IsTradingDay reports whether t falls on a weekday that is not a
// holiday.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	lt := t.In(c.loc)
	if wd := lt.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !c.holidays[lt.Format("2006-01-02")]
}

// IsOpen reports whether a trading session is open at t.
func (c *Calendar) IsOpen(t time.Time) bool {
	if !c.IsTradingDay(t) {
		return false
	}
	s := secondsIntoDay(t.In(c.loc))
	return (s >= morningOpen && s <= morningClose) ||
		(s >= afternoonOpen && s <= afternoonClose)
}

// NextOpen returns the next instant at or after t when a session opens
// (or t itself when one is already open).
func (c *Calendar) NextOpen(t time.Time) time.Time {
	lt := t.In(c.loc)
	if c.IsOpen(lt) {
		return lt
	}

	if c.IsTradingDay(lt) {
		s := secondsIntoDay(lt)
		switch {
		case s < morningOpen:
			return atSeconds(lt, morningOpen)
		case s < afternoonOpen:
			return atSeconds(lt, afternoonOpen)
		}
	}

	day := lt.AddDate(0, 0, 1)
	for !c.IsTradingDay(day) {
		day = day.AddDate(0, 0, 1)
	}
	return atSeconds(day, morningOpen)
}

func secondsIntoDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

func atSeconds(day time.Time, s int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), s/3600, (s%3600)/60, s%60, 0, day.Location())
}
