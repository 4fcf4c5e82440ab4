package planner

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateRange is a half-open [From, To) interval in UTC.
type DateRange struct {
	From time.Time
	To   time.Time
}

var months = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var (
	lastNDaysRe = regexp.MustCompile(`(?:last|past)\s+(\d{1,3})\s+days?`)
	isoMonthRe  = regexp.MustCompile(`\b(\d{4})-(\d{2})\b`)
	yearRe      = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

// ParseDateRange extracts a date restriction from a lowercased question.
// It returns the range, whether anything matched, and whether the match was a
// bare month name whose year had to be implied from the clock, so that a
// follow-up can re-anchor that month to the prior turn's year.
func ParseDateRange(q string, now time.Time) (DateRange, bool, bool) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch {
	case strings.Contains(q, "today"):
		return DateRange{From: today, To: today.AddDate(0, 0, 1)}, true, false
	case strings.Contains(q, "yesterday"):
		return DateRange{From: today.AddDate(0, 0, -1), To: today}, true, false
	case strings.Contains(q, "last month"):
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return DateRange{From: first.AddDate(0, -1, 0), To: first}, true, false
	case strings.Contains(q, "this month"):
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return DateRange{From: first, To: first.AddDate(0, 1, 0)}, true, false
	case strings.Contains(q, "last week"):
		monday := startOfWeek(today)
		return DateRange{From: monday.AddDate(0, 0, -7), To: monday}, true, false
	case strings.Contains(q, "this week"):
		monday := startOfWeek(today)
		return DateRange{From: monday, To: monday.AddDate(0, 0, 7)}, true, false
	case strings.Contains(q, "last year"):
		return yearRange(now.Year() - 1), true, false
	case strings.Contains(q, "this year"):
		return yearRange(now.Year()), true, false
	}

	if m := lastNDaysRe.FindStringSubmatch(q); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			return DateRange{From: today.AddDate(0, 0, -n), To: today.AddDate(0, 0, 1)}, true, false
		}
	}

	if m := isoMonthRe.FindStringSubmatch(q); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 {
			return MonthRange(year, time.Month(month)), true, false
		}
	}

	// Month name, optionally followed by an explicit year ("May 2024").
	for _, word := range strings.Fields(q) {
		name := strings.Trim(word, ".,?!;:")
		month, ok := months[name]
		if !ok {
			continue
		}
		if m := yearRe.FindString(q); m != "" {
			year, _ := strconv.Atoi(m)
			return MonthRange(year, month), true, false
		}
		r := MonthRange(now.Year(), month)
		// A bare month means its most recent occurrence, never a future one.
		if r.From.After(now) {
			r = MonthRange(now.Year()-1, month)
		}
		return r, true, true
	}

	// Bare year ("in 2024").
	if m := yearRe.FindString(q); m != "" {
		year, _ := strconv.Atoi(m)
		return yearRange(year), true, false
	}

	return DateRange{}, false, false
}

// MonthRange returns the half-open range covering one calendar month.
func MonthRange(year int, month time.Month) DateRange {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return DateRange{From: from, To: from.AddDate(0, 1, 0)}
}

func yearRange(year int) DateRange {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return DateRange{From: from, To: from.AddDate(1, 0, 0)}
}

func startOfWeek(day time.Time) time.Time {
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday belongs to the week that started the prior Monday
	}
	return day.AddDate(0, 0, -(weekday - 1))
}
