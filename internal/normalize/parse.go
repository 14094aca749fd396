package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// naiveZone and altNaiveZone are handed to the parser as the default zone.
// Their one and two second offsets never appear in real input. A value that
// comes back in naiveZone carried no zone of its own when parsing it again in
// altNaiveZone keeps the wall clock and moves the instant; an absolute value
// such as a Unix epoch keeps the instant instead.
var (
	naiveZone    = time.FixedZone("naive", 1)
	altNaiveZone = time.FixedZone("naive", 2)
)

// Layouts tried after dateparse, for shapes it does not cover reliably.
var (
	dayFirstLayouts = []string{
		"02-Jan-2006 15:04:05",
		"02-Jan-2006 15:04",
		"02-Jan-2006",
		"2-Jan-2006 15:04",
		"2-Jan-2006",
		"02/01/2006 15:04:05",
		"02/01/2006 15:04",
		"02/01/2006",
		"02.01.2006 15:04:05",
		"02.01.2006",
	}
	monthFirstLayouts = []string{
		"Jan-02-2006 15:04:05",
		"Jan-02-2006",
		"01/02/06 3:04 PM",
		"01/02/2006 3:04 PM",
		"01/02/2006 15:04:05",
		"01/02/2006",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
	}
)

// parseFreeForm parses s day-first, then without the day-first bias.
// naive reports whether s carried no zone or offset.
func parseFreeForm(s string) (t time.Time, naive bool, err error) {
	t, naive, err = parseWith(s, true)
	if err != nil {
		t, naive, err = parseWith(s, false)
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return t, naive, nil
}

func parseWith(s string, dayFirst bool) (time.Time, bool, error) {
	t, err := parseIn(s, dayFirst, naiveZone)
	if err != nil {
		return time.Time{}, false, err
	}

	switch {
	case t.Location() == naiveZone:
		alt, err := parseIn(s, dayFirst, altNaiveZone)
		if err == nil && alt.Equal(t) {
			return t.UTC(), false, nil
		}
		return t, true, nil
	case unknownAbbreviation(t):
		return t, true, nil
	}
	return t, false, nil
}

// unknownAbbreviation reports whether t carries a zone abbreviation the
// parser could not place. Such values get a made-up zero-offset location;
// the abbreviation is ignored and the wall clock read in the record's zone.
func unknownAbbreviation(t time.Time) bool {
	if t.Location() == time.UTC {
		return false
	}
	name, offset := t.Zone()
	if offset != 0 || name == "" {
		return false
	}
	switch strings.ToUpper(name) {
	case "UTC", "GMT", "Z", "UT":
		return false
	}
	for _, r := range name {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}

func parseIn(s string, dayFirst bool, loc *time.Location) (t time.Time, err error) {
	defer func() {
		if r := recover(); r != nil {
			t, err = time.Time{}, fmt.Errorf("parse %q: parser panic: %v", s, r)
		}
	}()

	t, err = dateparse.ParseIn(s, loc, dateparse.PreferMonthFirst(!dayFirst))
	if err == nil {
		return t, nil
	}

	layouts := monthFirstLayouts
	if dayFirst {
		layouts = dayFirstLayouts
	}
	for _, layout := range layouts {
		if lt, lerr := time.ParseInLocation(layout, s, loc); lerr == nil {
			return lt, nil
		}
	}

	return time.Time{}, fmt.Errorf("parse %q: %w", s, err)
}
