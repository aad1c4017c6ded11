package ics

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"cthexam/internal/civiltime"
	appLog "cthexam/internal/log"
	"cthexam/internal/model"
)

const productID = "-//cthexam//exam schedule//SV"

// uidNamespace scopes event UIDs so the same exam always gets the same UID.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://www.chalmers.se/api/list/"))

// ExportOptions controls calendar generation.
type ExportOptions struct {
	// CalendarName becomes X-WR-CALNAME. Defaults to "Exams".
	CalendarName string
	// Now stamps events whose updated time is invalid. Defaults to time.Now.
	Now func() time.Time
}

// ExportResult reports what Build did with each exam.
type ExportResult struct {
	Calendar *ical.Calendar
	Events   int
	// Skipped counts exams without a usable schedule.
	Skipped int
}

// EventUID returns the stable UID used for an exam id.
func EventUID(examID string) string {
	return uuid.NewSHA1(uidNamespace, []byte(examID)).String()
}

// Build creates one VEVENT per exam that has a valid schedule. Exams
// without a date, or whose dates could not be parsed, are skipped.
func Build(exams []model.Exam, opts ExportOptions) ExportResult {
	if opts.CalendarName == "" {
		opts.CalendarName = "Exams"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName(opts.CalendarName)
	cal.SetXWRTimezone(civiltime.Zone)

	res := ExportResult{Calendar: cal}
	for _, e := range exams {
		if e.Schedule == nil || !e.Schedule.Start.Valid() || !e.Schedule.End.Valid() {
			res.Skipped++
			appLog.Debug("ics export: skipping exam without schedule", "id", e.ID, "code", e.CourseCode)
			continue
		}

		ev := cal.AddEvent(EventUID(e.ID))
		stamp := opts.Now().UTC()
		if e.Updated.Valid() {
			stamp = e.Updated.Time()
			ev.SetModifiedAt(stamp)
		}
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(e.Schedule.Start.Time())
		ev.SetEndAt(e.Schedule.End.Time())
		ev.SetSummary(summary(e))
		if e.Location != "" {
			ev.SetLocation(e.Location)
		}
		ev.SetDescription(description(e))
		if e.IsCancelled {
			ev.SetStatus(ical.ObjectStatusCancelled)
		} else {
			ev.SetStatus(ical.ObjectStatusConfirmed)
		}
		res.Events++
	}
	return res
}

// Write serializes the calendar for exams to w.
func Write(w io.Writer, exams []model.Exam, opts ExportOptions) (ExportResult, error) {
	res := Build(exams, opts)
	_, err := io.WriteString(w, res.Calendar.Serialize())
	return res, err
}

func summary(e model.Exam) string {
	s := e.CourseCode + " " + e.Name
	if e.Part != "" {
		s += " (" + e.Part + ")"
	}
	return s
}

func description(e model.Exam) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Module: %s\n", e.CMCode)
	fmt.Fprintf(&b, "Duration: %s hours\n", strconv.FormatFloat(e.Schedule.Duration, 'f', -1, 64))
	if e.IsDigital {
		b.WriteString("Digital exam\n")
	}
	if e.RegistrationStart != nil || e.RegistrationEnd != nil {
		fmt.Fprintf(&b, "Registration: %s - %s\n", optional(e.RegistrationStart), optional(e.RegistrationEnd))
	}
	for _, c := range e.DateChanges {
		fmt.Fprintf(&b, "Date changed %s -> %s (%s)\n", localDate(c.OldValue), localDate(c.NewValue), c.SignedBy)
	}
	return strings.TrimRight(b.String(), "\n")
}

func optional(i *civiltime.Instant) string {
	if i == nil {
		return "-"
	}
	return localDate(*i)
}

func localDate(i civiltime.Instant) string {
	t, ok := i.In(civiltime.Location())
	if !ok {
		return civiltime.InvalidString
	}
	return t.Format("2006-01-02")
}
