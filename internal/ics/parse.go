package ics

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "cthexam/internal/log"
)

// ExportedEvent is the part of a previously exported VEVENT needed to tell
// whether an exam changed between two exports.
type ExportedEvent struct {
	UID       string
	Summary   string
	Start     time.Time
	End       time.Time
	Cancelled bool
}

// ParseExport reads a calendar produced by Write and indexes its events by
// UID. Events without a UID are skipped.
func ParseExport(body []byte) (map[string]ExportedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	out := make(map[string]ExportedEvent)
	for _, ve := range cal.Events() {
		uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
		if uidProp == nil || uidProp.Value == "" {
			appLog.Debug("ics parse: skipping event without UID")
			continue
		}

		ev := ExportedEvent{UID: uidProp.Value}
		if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
			ev.Summary = p.Value
		}
		if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil {
			ev.Cancelled = strings.EqualFold(p.Value, string(ical.ObjectStatusCancelled))
		}
		// Exports always use UTC date-times.
		ev.Start, _ = ve.GetStartAt()
		ev.End, _ = ve.GetEndAt()

		out[ev.UID] = ev
	}
	return out, nil
}

// Changes summarizes the difference between two exports.
type Changes struct {
	Added   []string
	Removed []string
	Changed []string
}

func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Changed) == 0
}

// Diff compares two exports by UID. An event counts as changed when its
// summary, times or cancellation differ. Results hold sorted summaries.
func Diff(before, after map[string]ExportedEvent) Changes {
	var c Changes
	for uid, a := range after {
		b, ok := before[uid]
		switch {
		case !ok:
			c.Added = append(c.Added, a.Summary)
		case b.Summary != a.Summary || !b.Start.Equal(a.Start) || !b.End.Equal(a.End) || b.Cancelled != a.Cancelled:
			c.Changed = append(c.Changed, a.Summary)
		}
	}
	for uid, b := range before {
		if _, ok := after[uid]; !ok {
			c.Removed = append(c.Removed, b.Summary)
		}
	}
	slices.Sort(c.Added)
	slices.Sort(c.Removed)
	slices.Sort(c.Changed)
	return c
}
