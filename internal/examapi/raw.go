package examapi

// The types in this file mirror the search endpoint's JSON exactly. Field
// names follow the wire format, including the misspelled "exLenght".
// Pointer fields are nullable; every other field is required unless its
// json tag says omitempty.

// SearchResponse is the validated body of a search call.
type SearchResponse struct {
	Info    SearchInfo `json:"info"`
	Results []RawExam  `json:"results" validate:"dive"`
}

type SearchInfo struct {
	// Count is the number of items in Results.
	Count     int `json:"count" validate:"min=0"`
	EndCursor int `json:"endCursor" validate:"min=0"`
	// Suggest is opaque and may be missing.
	Suggest any `json:"suggest,omitempty"`
}

// RawExam is one search result before mapping.
type RawExam struct {
	// Typename, when sent, names the record kind.
	Typename *string `json:"__typename,omitempty" validate:"omitnil,eq=PewExamdates"`

	Name string `json:"name"`
	// Updated carries an explicit offset, which is ignored when parsing.
	Updated  string `json:"updated" validate:"iso_datetime_offset"`
	ExamsLoc string `json:"examsLoc"`

	ExDateRegStart *string `json:"exDateRegStart" validate:"omitnil,iso_datetime_local"`
	ExDateLastReg  *string `json:"exDateLastReg" validate:"omitnil,iso_datetime_local"`
	ExDate         *string `json:"exDate" validate:"omitnil,iso_datetime_local"`
	// Starts is an ISO time of day, or empty when not yet decided.
	Starts string `json:"starts" validate:"omitempty,iso_time"`
	// ExLenght is the duration in hours.
	ExLenght float64 `json:"exLenght" validate:"min=0"`

	Code        string `json:"code"`
	IsCancelled bool   `json:"isCancelled"`
	CourseID    int    `json:"courseId" validate:"min=0"`

	PewExamDateChanges []RawExamDateChange `json:"pewExamDateChanges" validate:"dive"`

	ExamID  string `json:"examId"`
	Inst    int    `json:"inst" validate:"min=0"`
	CMCode  string `json:"cmCode"`
	Part    string `json:"part"`
	Ordinal int    `json:"ordinal" validate:"min=1"`
	// DigitalDecided is a flag; any nonzero value means digital.
	DigitalDecided int `json:"digitalDecided" validate:"min=0"`
}

type RawExamDateChange struct {
	Typename   *string `json:"__typename,omitempty" validate:"omitnil,eq=PewExamdatesPewExamDateChange"`
	ChangeCode *string `json:"changeCode,omitempty" validate:"omitnil,eq=EX_DATE"`

	ChangeID     int    `json:"changeId" validate:"min=0"`
	OldValue     string `json:"oldValue" validate:"iso_date"`
	NewValue     string `json:"newValue" validate:"iso_date"`
	DecisionDate string `json:"decisionDate" validate:"iso_datetime_local"`
	PressInfo    string `json:"pressInfo"`
	SignedBy     string `json:"signedBy"`
}
