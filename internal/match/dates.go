package match

import (
	"strconv"
	"strings"
	"time"
)

// DateTolerance is the maximum distance, in days, between a filename date
// and an episode's originally-available date for a valid match.
const DateTolerance = 2

var fullDateLayouts = []string{
	"2006-01-02",
	"2006.01.02",
	"2006/01/02",
	"2006 01 02",
	"02-01-2006",
	"02.01.2006",
	"02/01/2006",
	"02 01 2006",
	"01-02-2006",
}

var partialDateLayouts = []string{
	"02 01",
	"02-01",
	"02.01",
	"02/01",
	"02_01",
}

// parseDateString parses a full or partial (DD MM) date. Partial dates need
// referenceYear; without it they fail.
func parseDateString(value string, referenceYear int) (time.Time, bool) {
	stripped := strings.TrimSpace(value)
	if stripped == "" {
		return time.Time{}, false
	}
	for _, layout := range fullDateLayouts {
		if t, err := time.Parse(layout, stripped); err == nil {
			return t, true
		}
	}
	if referenceYear > 0 {
		for _, layout := range partialDateLayouts {
			if t, err := time.Parse(layout, stripped); err == nil {
				return time.Date(referenceYear, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
			}
		}
	}
	return time.Time{}, false
}

// parseDateFromGroups assembles a date from day/month/year capture groups.
func parseDateFromGroups(groups map[string]string) (time.Time, bool) {
	dayStr := groups["day"]
	monthStr := groups["month"]
	yearStr := groups["date_year"]
	if yearStr == "" {
		yearStr = groups["year"]
	}
	if dayStr == "" || monthStr == "" || yearStr == "" {
		return time.Time{}, false
	}
	day, err1 := strconv.Atoi(dayStr)
	month, err2 := strconv.Atoi(monthStr)
	year, err3 := strconv.Atoi(yearStr)
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

// datesWithin reports whether two dates are at most tolerance days apart.
func datesWithin(a, b time.Time, tolerance int) bool {
	delta := a.Sub(b)
	if delta < 0 {
		delta = -delta
	}
	return delta <= time.Duration(tolerance)*24*time.Hour
}

// daysApart returns the absolute day distance between two dates.
func daysApart(a, b time.Time) int {
	delta := a.Sub(b)
	if delta < 0 {
		delta = -delta
	}
	return int(delta / (24 * time.Hour))
}
