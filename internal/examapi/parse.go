package examapi

import (
	"cthexam/internal/civiltime"
	"cthexam/internal/model"
)

// ParseExam maps a validated raw exam to the domain model.
//
//   - Start, end and duration are set together, and only when both exDate
//     and starts are known.
//   - End is start plus the duration as elapsed time.
//   - Registration start and end are independently optional.
//   - Unparseable dates become invalid instants instead of failing.
func ParseExam(raw RawExam) model.Exam {
	exam := model.Exam{
		ID:   raw.ExamID,
		Name: raw.Name,
		Part: raw.Part,

		Location:    raw.ExamsLoc,
		IsDigital:   raw.DigitalDecided != 0,
		IsCancelled: raw.IsCancelled,

		CourseCode: raw.Code,
		CourseID:   raw.CourseID,

		Updated:     civiltime.Parse(raw.Updated),
		DateChanges: make([]model.ExamDateChange, 0, len(raw.PewExamDateChanges)),

		Inst:    raw.Inst,
		CMCode:  raw.CMCode,
		Ordinal: raw.Ordinal,
	}

	if raw.ExDate != nil && raw.Starts != "" {
		start := civiltime.ParseAt(*raw.ExDate, raw.Starts)
		exam.Schedule = model.NewSchedule(start, raw.ExLenght)
	}

	if raw.ExDateRegStart != nil {
		regStart := civiltime.Parse(*raw.ExDateRegStart)
		exam.RegistrationStart = &regStart
	}
	if raw.ExDateLastReg != nil {
		regEnd := civiltime.Parse(*raw.ExDateLastReg)
		exam.RegistrationEnd = &regEnd
	}

	for _, change := range raw.PewExamDateChanges {
		exam.DateChanges = append(exam.DateChanges, ParseExamDateChange(change))
	}

	return exam
}

// ParseExamDateChange maps a raw date change. Old and new values are
// date-only and resolve to Stockholm midnight.
func ParseExamDateChange(raw RawExamDateChange) model.ExamDateChange {
	return model.ExamDateChange{
		ChangeID:     raw.ChangeID,
		OldValue:     civiltime.Parse(raw.OldValue),
		NewValue:     civiltime.Parse(raw.NewValue),
		DecisionDate: civiltime.Parse(raw.DecisionDate),
		PressInfo:    raw.PressInfo,
		SignedBy:     raw.SignedBy,
	}
}
