// Package timeutil handles the HH:MM clock strings used throughout the
// event model.
package timeutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// Midnight is the fallback for empty time fields.
	Midnight = "00:00"

	// DateLayout is the canonical event date form.
	DateLayout = "2006-01-02"
)

var (
	clockRe    = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	meridiemRe = regexp.MustCompile(`(?i)^(\d{1,2})(?::(\d{2}))?\s*([ap])\.?m\.?$`)
	bareHourRe = regexp.MustCompile(`^\d{1,2}$`)
	canonRe    = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

// NormalizeTime converts a loosely formatted clock value into HH:MM.
//
// Accepted forms are "9:30", "09:30", "7PM", "7:15 pm", "12AM" and a bare
// hour such as "18", which is taken as 24-hour. Empty input yields "00:00".
// Anything else is returned unchanged.
func NormalizeTime(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Midnight
	}

	if m := clockRe.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		return fmt.Sprintf("%02d:%s", h, m[2])
	}

	if m := meridiemRe.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		if h < 1 || h > 12 {
			return raw
		}
		mins := "00"
		if m[2] != "" {
			mins = m[2]
		}
		pm := strings.EqualFold(m[3], "p")
		switch {
		case pm && h < 12:
			h += 12
		case !pm && h == 12:
			h = 0
		}
		return fmt.Sprintf("%02d:%s", h, mins)
	}

	if bareHourRe.MatchString(s) {
		h, _ := strconv.Atoi(s)
		if h > 23 {
			return raw
		}
		return fmt.Sprintf("%02d:00", h)
	}

	return raw
}

// IsCanonical reports whether s is already in zero-padded HH:MM form.
func IsCanonical(s string) bool {
	return canonRe.MatchString(s)
}

// ValidClock reports whether s is HH:MM with hour 00-23 and minute 00-59.
func ValidClock(s string) bool {
	if !IsCanonical(s) {
		return false
	}
	h, _ := strconv.Atoi(s[:2])
	m, _ := strconv.Atoi(s[3:])
	return h < 24 && m < 60
}

// ToMinutes returns minutes since midnight for an HH:MM value, clamped to
// [0, 1439]. Unparseable values count as midnight.
func ToMinutes(hhmm string) int {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(hhmm))
	if m == nil {
		return 0
	}
	h, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	total := h*60 + mins
	if total < 0 {
		return 0
	}
	if total > 24*60-1 {
		return 24*60 - 1
	}
	return total
}

// TimesOverlap reports whether [startA, endA) and [startB, endB) intersect.
// Intervals that only touch at an endpoint do not overlap.
func TimesOverlap(startA, endA, startB, endB string) bool {
	return ToMinutes(startA) < ToMinutes(endB) && ToMinutes(startB) < ToMinutes(endA)
}

// Format12h renders HH:MM as "h:MM AM/PM".
func Format12h(hhmm string) string {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(hhmm))
	if m == nil {
		return hhmm
	}
	h, _ := strconv.Atoi(m[1])
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:%s %s", h12, m[2], suffix)
}

// ValidDate reports whether date is a real calendar day in YYYY-MM-DD form.
func ValidDate(date string) bool {
	_, err := time.Parse(DateLayout, date)
	return err == nil
}

// FormatDay renders a YYYY-MM-DD date as a short label like "Jun 12".
// Invalid dates are returned unchanged.
func FormatDay(date string) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("Jan 2")
}

var dateLayouts = []string{
	DateLayout,
	"2006/01/02",
	"1/2/2006",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"Monday, January 2, 2006",
	"Mon, Jan 2, 2006",
}

// NormalizeDate parses a date in one of the accepted layouts and returns it
// as YYYY-MM-DD.
func NormalizeDate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), true
		}
	}
	return "", false
}
