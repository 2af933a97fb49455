// Package dates parses the loose date strings found in provider feeds and
// oracle output into calendar dates.
package dates

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Layout is the single textual calendar-date format used for deadlines.
const Layout = "2006-01-02"

var layouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	Layout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"Jan. 2, 2006",
	"2 January 2006",
	"02 January 2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"January 2006",
}

var (
	isoPattern   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	usPattern    = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	monthPattern = regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
	dayFirst     = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)\.?,?\s+(\d{4})\b`)
)

var prefixes = []string{
	"deadline:", "application deadline:", "due date:", "due:", "closing date:",
	"closes:", "expires:", "ends:",
}

// Parse extracts a calendar date from text. The second return is false when
// nothing recognisable is found.
func Parse(text string) (time.Time, bool) {
	text = clean(text)
	if text == "" {
		return time.Time{}, false
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, text); err == nil {
			return day(t), true
		}
	}

	if m := isoPattern.FindStringSubmatch(text); len(m) == 4 {
		if t, err := time.Parse(Layout, m[0]); err == nil {
			return day(t), true
		}
	}
	if m := usPattern.FindStringSubmatch(text); len(m) == 4 {
		if t, err := time.Parse("1/2/2006", fmt.Sprintf("%s/%s/%s", m[1], m[2], m[3])); err == nil {
			return day(t), true
		}
	}
	if m := monthPattern.FindStringSubmatch(text); len(m) == 4 {
		if t, ok := monthDayYear(m[1], m[2], m[3]); ok {
			return t, true
		}
	}
	if m := dayFirst.FindStringSubmatch(text); len(m) == 4 {
		if t, ok := monthDayYear(m[2], m[1], m[3]); ok {
			return t, true
		}
	}

	return time.Time{}, false
}

// Normalize returns text as a YYYY-MM-DD string, or nil when unparseable.
func Normalize(text string) *string {
	t, ok := Parse(text)
	if !ok {
		return nil
	}
	s := t.Format(Layout)
	return &s
}

// Before reports whether deadline is a parseable date strictly before the
// calendar day of now. Unparseable or absent deadlines are never before.
func Before(deadline *string, now time.Time) bool {
	if deadline == nil {
		return false
	}
	t, ok := Parse(*deadline)
	if !ok {
		return false
	}
	return t.Before(day(now.UTC()))
}

func monthDayYear(month, d, year string) (time.Time, bool) {
	month = strings.TrimSuffix(strings.ToLower(month), ".")
	if month == "sept" {
		month = "sep"
	}
	if len(month) > 3 {
		month = month[:3]
	}
	t, err := time.Parse("Jan 2 2006", fmt.Sprintf("%s %s %s", strings.ToUpper(month[:1])+month[1:], d, year))
	if err != nil {
		return time.Time{}, false
	}
	return day(t), true
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func clean(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	lower := strings.ToLower(s)
	for _, p := range prefixes {
		if strings.HasPrefix(lower, p) {
			s = strings.TrimSpace(s[len(p):])
			lower = strings.ToLower(s)
		}
	}
	return s
}
