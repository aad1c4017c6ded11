// Package present renders exams for a terminal user.
package present

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"cthexam/internal/civiltime"
	"cthexam/internal/model"
)

// Format selects how exams are printed.
type Format string

const (
	FormatText  Format = "text"
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

const (
	absent     = "-"
	timeLayout = "2006-01-02 15:04 MST"
)

var (
	heading = color.New(color.FgCyan)
	detail  = color.New(color.FgYellow)
	alert   = color.New(color.FgRed, color.Bold)
)

// Write prints exams to w in the given format. Formats handled elsewhere
// (like ics) are rejected.
func Write(w io.Writer, f Format, exams []model.Exam) error {
	switch f {
	case FormatText, "":
		return Text(w, exams)
	case FormatTable:
		return Table(w, exams)
	case FormatJSON:
		return JSON(w, exams)
	default:
		return fmt.Errorf("present: unknown format %q", f)
	}
}

// Text prints one block per exam: identity, schedule, location and
// registration window.
func Text(w io.Writer, exams []model.Exam) error {
	for i, e := range exams {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		title := fmt.Sprintf("%s %s (Modul: %s)", e.CourseCode, e.Name, e.CMCode)
		if e.Part != "" {
			title += " [" + e.Part + "]"
		}
		if _, err := heading.Fprintln(w, title); err != nil {
			return err
		}
		if e.IsCancelled {
			if _, err := alert.Fprintln(w, "CANCELLED"); err != nil {
				return err
			}
		}

		start, duration := absent, absent
		if e.Schedule != nil {
			start = Instant(e.Schedule.Start)
			duration = Hours(e.Schedule.Duration)
		}
		lines := []string{
			"Start: " + start,
			"Duration: " + duration + " hours",
			"Location: " + location(e),
			"Registration: " + OptionalInstant(e.RegistrationStart) + " - " + OptionalInstant(e.RegistrationEnd),
		}
		for _, l := range lines {
			if _, err := detail.Fprintln(w, l); err != nil {
				return err
			}
		}
	}
	return nil
}

// Table prints exams as a single table.
func Table(w io.Writer, exams []model.Exam) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Code", "Name", "Module", "Start", "End", "Location", "Registration"})
	table.SetAutoWrapText(false)

	for _, e := range exams {
		start, end := absent, absent
		if e.Schedule != nil {
			start = Instant(e.Schedule.Start)
			end = Instant(e.Schedule.End)
		}
		name := e.Name
		if e.IsCancelled {
			name += " (cancelled)"
		}
		table.Append([]string{
			e.CourseCode,
			name,
			e.CMCode,
			start,
			end,
			location(e),
			OptionalInstant(e.RegistrationStart) + " - " + OptionalInstant(e.RegistrationEnd),
		})
	}

	table.Render()
	return nil
}

// JSON prints exams as an indented JSON array.
func JSON(w io.Writer, exams []model.Exam) error {
	if exams == nil {
		exams = []model.Exam{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(exams)
}

// Instant formats an instant in Stockholm local time.
func Instant(i civiltime.Instant) string {
	t, ok := i.In(civiltime.Location())
	if !ok {
		return civiltime.InvalidString
	}
	return t.Format(timeLayout)
}

// OptionalInstant formats i, or "-" when nil.
func OptionalInstant(i *civiltime.Instant) string {
	if i == nil {
		return absent
	}
	return Instant(*i)
}

// Hours formats a decimal hour count without trailing zeros.
func Hours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}

func location(e model.Exam) string {
	loc := e.Location
	if loc == "" {
		loc = absent
	}
	if e.IsDigital {
		loc += " (digital)"
	}
	return loc
}
