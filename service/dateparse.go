package services

import (
	"strings"
	"time"
)

// Explicit layouts tried in order before any locale handling. Both 2- and
// 4-digit years are accepted for the slash and dot separators because the
// billing system emits both depending on the export screen.
var dateLayouts = []string{
	"02-Jan-2006",
	"2-Jan-2006",
	"02-Jan-06",
	"02/01/2006",
	"2/1/2006",
	"02/01/06",
	"2006-01-02",
	"02.01.2006",
	"2.1.2006",
	"02.01.06",
	"02-01-2006",
	"02 Jan 2006",
	"2 January 2006",
}

// French and Italian month names (and usual abbreviations) mapped onto the
// English forms Go's time package understands. Longer names first so that
// e.g. "juin" is not clipped by a shorter replacement.
var localeMonths = []struct{ local, english string }{
	{"janvier", "January"}, {"février", "February"}, {"fevrier", "February"},
	{"mars", "March"}, {"avril", "April"}, {"juillet", "July"},
	{"juin", "June"}, {"août", "August"}, {"aout", "August"},
	{"septembre", "September"}, {"octobre", "October"},
	{"novembre", "November"}, {"décembre", "December"}, {"decembre", "December"},
	{"gennaio", "January"}, {"febbraio", "February"}, {"marzo", "March"},
	{"aprile", "April"}, {"maggio", "May"}, {"giugno", "June"},
	{"luglio", "July"}, {"agosto", "August"}, {"settembre", "September"},
	{"ottobre", "October"}, {"dicembre", "December"},
	{"janv", "Jan"}, {"févr", "Feb"}, {"fevr", "Feb"}, {"avr", "Apr"},
	{"juil", "Jul"}, {"sept", "Sep"}, {"déc", "Dec"},
	{"gen", "Jan"}, {"feb", "Feb"}, {"mag", "May"}, {"giu", "Jun"},
	{"lug", "Jul"}, {"ago", "Aug"}, {"set", "Sep"}, {"ott", "Oct"},
	{"dic", "Dec"}, {"mai", "May"},
}

// ParseFlexibleDate parses a free-text date from the billing system or the
// ledger extract. It normalizes variant dashes and irregular whitespace,
// tries the explicit layouts, then French/Italian month names, then one
// last attempt on the uppercased input. Failure is reported through the
// ok flag, never as an error: an unparseable date degrades ranking, it
// must not abort a resolution.
func ParseFlexibleDate(raw string) (time.Time, bool) {
	s := normalizeDateText(raw)
	if s == "" {
		return time.Time{}, false
	}

	if d, ok := tryLayouts(s); ok {
		return d, true
	}

	// Locale pass: swap known French/Italian month names for English and
	// retry. Matching is case-insensitive on the month name.
	lower := strings.ToLower(s)
	for _, m := range localeMonths {
		if strings.Contains(lower, m.local) {
			replaced := replaceFold(s, m.local, m.english)
			if d, ok := tryLayouts(replaced); ok {
				return d, true
			}
		}
	}

	// Final attempt: some extracts shout their month abbreviations
	// ("05-JAN-2024"); Go wants them capitalized.
	if d, ok := tryLayouts(titleCaseMonths(strings.ToUpper(s))); ok {
		return d, true
	}

	return time.Time{}, false
}

func tryLayouts(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

func normalizeDateText(s string) string {
	s = strings.ReplaceAll(s, "–", "-") // en dash
	s = strings.ReplaceAll(s, "—", "-") // em dash
	s = strings.ReplaceAll(s, " ", " ")
	return strings.Join(strings.Fields(s), " ")
}

// replaceFold replaces the first case-insensitive occurrence of old in s.
func replaceFold(s, old, new string) string {
	idx := strings.Index(strings.ToLower(s), strings.ToLower(old))
	if idx < 0 {
		return s
	}
	return s[:idx] + new + s[idx+len(old):]
}

// titleCaseMonths rewrites fully-uppercased English month tokens
// ("JAN", "JANUARY") into the capitalization time.Parse expects.
func titleCaseMonths(s string) string {
	for _, month := range []string{
		"JANUARY", "FEBRUARY", "MARCH", "APRIL", "MAY", "JUNE", "JULY",
		"AUGUST", "SEPTEMBER", "OCTOBER", "NOVEMBER", "DECEMBER",
		"JAN", "FEB", "MAR", "APR", "JUN", "JUL", "AUG", "SEP", "OCT",
		"NOV", "DEC",
	} {
		if strings.Contains(s, month) {
			fixed := month[:1] + strings.ToLower(month[1:])
			s = strings.ReplaceAll(s, month, fixed)
		}
	}
	return s
}
