// Package civiltime turns the naive wall-clock strings published by the
// exam API into absolute instants.
//
// Every date and time the API returns is Stockholm local time, whatever
// offset suffix happens to be attached to it. Parsing therefore happens in
// three explicit steps: strip any offset, parse the remaining wall-clock
// value, then resolve it against Europe/Stockholm's rules for that date.
package civiltime

import (
	"regexp"
	"strings"
	"time"
	_ "time/tzdata"
)

// Zone is the IANA name of the only civil timezone the API uses.
const Zone = "Europe/Stockholm"

const dateLayout = "2006-01-02"

var timeLayouts = []string{
	"15:04",
	"15:04:05",
	"15:04:05.999999999",
}

// offsetSuffix matches a trailing UTC designator or numeric offset on the
// time part, e.g. "Z", "+02:00", "-0130", "+01".
var offsetSuffix = regexp.MustCompile(`(?:[Zz]|[+-]\d{2}(?::?\d{2})?)$`)

var stockholm = mustLoad(Zone)

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		// time/tzdata is embedded, so this only fails on a broken build.
		panic("civiltime: load " + name + ": " + err.Error())
	}
	return loc
}

// Location returns the Europe/Stockholm location.
func Location() *time.Location {
	return stockholm
}

// Parse interprets date as Stockholm wall-clock time. The time of day
// embedded in date is used when present, midnight otherwise.
func Parse(date string) Instant {
	datePart, embedded := split(date)
	if embedded == "" {
		embedded = "00:00"
	}
	return resolve(datePart, embedded)
}

// ParseAt interprets date as a Stockholm calendar date at the time of day
// given by clock. Any time embedded in date is ignored.
func ParseAt(date, clock string) Instant {
	datePart, _ := split(date)
	return resolve(datePart, stripOffset(strings.TrimSpace(clock)))
}

// split separates the date from the embedded time of day and drops any
// offset suffix on the time.
func split(s string) (datePart, timePart string) {
	s = strings.TrimSpace(s)
	datePart, timePart, _ = strings.Cut(s, "T")
	// A bare date can still carry a "+hh:mm" suffix.
	if i := strings.IndexByte(datePart, '+'); i >= 0 {
		datePart = datePart[:i]
	}
	return datePart, stripOffset(timePart)
}

func stripOffset(t string) string {
	return offsetSuffix.ReplaceAllString(t, "")
}

func resolve(datePart, timePart string) Instant {
	d, err := time.Parse(dateLayout, datePart)
	if err != nil {
		return Invalid()
	}
	clock, ok := parseClock(timePart)
	if !ok {
		return Invalid()
	}
	// time.Date applies the offset in effect at this wall-clock time in
	// Stockholm, not the offset in effect now.
	t := time.Date(d.Year(), d.Month(), d.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), clock.Nanosecond(), stockholm)
	return At(t)
}

func parseClock(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
