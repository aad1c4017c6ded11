package model

import (
	"math"
	"time"

	"cthexam/internal/civiltime"
)

// Exam is one scheduled, tentative or cancelled examination sitting as
// published by the exam search API. Values are built once by the mapper
// and never mutated.
type Exam struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Part is empty, or a sub-part label when an exam is split.
	Part string `json:"part"`

	// Location is the venue label, usually a campus such as "Johanneberg".
	Location string `json:"location"`

	// Schedule is nil when the exam has no date or start time yet.
	Schedule *Schedule `json:"schedule,omitempty"`

	IsDigital   bool `json:"isDigital"`
	IsCancelled bool `json:"isCancelled"`

	RegistrationStart *civiltime.Instant `json:"registrationStart,omitempty"`
	RegistrationEnd   *civiltime.Instant `json:"registrationEnd,omitempty"`

	CourseCode string `json:"courseCode"`
	CourseID   int    `json:"courseId"`

	Updated     civiltime.Instant `json:"updated"`
	DateChanges []ExamDateChange  `json:"dateChanges"`

	// Inst is the institution id; 1 marks exams the API always lists.
	Inst    int    `json:"inst"`
	CMCode  string `json:"cmCode"`
	Ordinal int    `json:"ordinal"`
}

// Schedule groups start, end and duration, which are either all known or
// all absent.
type Schedule struct {
	Start civiltime.Instant `json:"start"`
	End   civiltime.Instant `json:"end"`
	// Duration in hours; fractional values are allowed.
	Duration float64 `json:"duration"`
}

// NewSchedule builds a schedule whose end lies exactly hours of elapsed
// time after start.
func NewSchedule(start civiltime.Instant, hours float64) *Schedule {
	return &Schedule{
		Start:    start,
		End:      start.Add(HoursToDuration(hours)),
		Duration: hours,
	}
}

// HoursToDuration converts a decimal hour count to a time.Duration,
// rounded to the nearest nanosecond.
func HoursToDuration(hours float64) time.Duration {
	return time.Duration(math.Round(hours * float64(time.Hour)))
}

func (e Exam) Start() (civiltime.Instant, bool) {
	if e.Schedule == nil {
		return civiltime.Instant{}, false
	}
	return e.Schedule.Start, true
}

func (e Exam) End() (civiltime.Instant, bool) {
	if e.Schedule == nil {
		return civiltime.Instant{}, false
	}
	return e.Schedule.End, true
}

// Duration returns the exam length in hours.
func (e Exam) Duration() (float64, bool) {
	if e.Schedule == nil {
		return 0, false
	}
	return e.Schedule.Duration, true
}

// ExamDateChange records a historical change to an exam's date.
type ExamDateChange struct {
	ChangeID     int               `json:"changeId"`
	OldValue     civiltime.Instant `json:"oldValue"`
	NewValue     civiltime.Instant `json:"newValue"`
	DecisionDate civiltime.Instant `json:"decisionDate"`
	PressInfo    string            `json:"pressInfo"`
	SignedBy     string            `json:"signedBy"`
}
