package examapi

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsResponse(t *testing.T) {
	resp, err := Validate(decodeResponse(t))
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Info.Count)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, rawExam(), resp.Results[0])
	assert.Nil(t, resp.Results[1].ExDate)
	assert.Equal(t, 1, resp.Results[1].DigitalDecided)
}

func TestValidateAcceptsUseNumberDecoding(t *testing.T) {
	dec := json.NewDecoder(strings.NewReader(responseJSON))
	dec.UseNumber()
	var data any
	require.NoError(t, dec.Decode(&data))

	resp, err := Validate(data)
	require.NoError(t, err)
	assert.Equal(t, 40337, resp.Results[0].CourseID)
}

func TestValidateIssues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(data map[string]any)
		want   Issue
	}{
		{
			name:   "course id as string",
			mutate: func(d map[string]any) { firstResult(d)["courseId"] = "40337" },
			want: Issue{
				Code:    CodeInvalidType,
				Path:    "results.0.courseId",
				Message: "Invalid input: expected int, received string",
			},
		},
		{
			name:   "fractional int",
			mutate: func(d map[string]any) { firstResult(d)["ordinal"] = 1.5 },
			want: Issue{
				Code:    CodeInvalidType,
				Path:    "results.0.ordinal",
				Message: "Invalid input: expected int, received number",
			},
		},
		{
			name:   "missing field",
			mutate: func(d map[string]any) { delete(firstResult(d), "examId") },
			want: Issue{
				Code:    CodeInvalidType,
				Path:    "results.0.examId",
				Message: "Invalid input: expected string, received undefined",
			},
		},
		{
			name:   "null in non-nullable field",
			mutate: func(d map[string]any) { firstResult(d)["starts"] = nil },
			want: Issue{
				Code:    CodeInvalidType,
				Path:    "results.0.starts",
				Message: "Invalid input: expected string, received null",
			},
		},
		{
			name: "nested change type",
			mutate: func(d map[string]any) {
				change := firstResult(d)["pewExamDateChanges"].([]any)[0].(map[string]any)
				change["signedBy"] = false
			},
			want: Issue{
				Code:    CodeInvalidType,
				Path:    "results.0.pewExamDateChanges.0.signedBy",
				Message: "Invalid input: expected string, received boolean",
			},
		},
		{
			name:   "results not an array",
			mutate: func(d map[string]any) { d["results"] = map[string]any{} },
			want: Issue{
				Code:    CodeInvalidType,
				Path:    "results",
				Message: "Invalid input: expected array, received object",
			},
		},
		{
			name:   "negative duration",
			mutate: func(d map[string]any) { firstResult(d)["exLenght"] = -1.0 },
			want: Issue{
				Code:    CodeTooSmall,
				Path:    "results.0.exLenght",
				Message: "Too small: expected number to be >=0",
			},
		},
		{
			name:   "zero ordinal",
			mutate: func(d map[string]any) { firstResult(d)["ordinal"] = 0.0 },
			want: Issue{
				Code:    CodeTooSmall,
				Path:    "results.0.ordinal",
				Message: "Too small: expected int to be >=1",
			},
		},
		{
			name:   "negative count",
			mutate: func(d map[string]any) { d["info"].(map[string]any)["count"] = -2.0 },
			want: Issue{
				Code:    CodeTooSmall,
				Path:    "info.count",
				Message: "Too small: expected int to be >=0",
			},
		},
		{
			name:   "updated without offset",
			mutate: func(d map[string]any) { firstResult(d)["updated"] = "2026-01-27T12:00:00" },
			want: Issue{
				Code:    CodeInvalidFormat,
				Path:    "results.0.updated",
				Message: `Invalid ISO datetime with offset: "2026-01-27T12:00:00"`,
			},
		},
		{
			name:   "exam date not a datetime",
			mutate: func(d map[string]any) { firstResult(d)["exDate"] = "next tuesday" },
			want: Issue{
				Code:    CodeInvalidFormat,
				Path:    "results.0.exDate",
				Message: `Invalid ISO local datetime: "next tuesday"`,
			},
		},
		{
			name:   "start time not a time",
			mutate: func(d map[string]any) { firstResult(d)["starts"] = "2pm" },
			want: Issue{
				Code:    CodeInvalidFormat,
				Path:    "results.0.starts",
				Message: `Invalid ISO time: "2pm"`,
			},
		},
		{
			name: "change old value with time",
			mutate: func(d map[string]any) {
				change := firstResult(d)["pewExamDateChanges"].([]any)[0].(map[string]any)
				change["oldValue"] = "2026-03-16T00:00:00"
			},
			want: Issue{
				Code:    CodeInvalidFormat,
				Path:    "results.0.pewExamDateChanges.0.oldValue",
				Message: `Invalid ISO date: "2026-03-16T00:00:00"`,
			},
		},
		{
			name:   "unexpected record kind",
			mutate: func(d map[string]any) { firstResult(d)["__typename"] = "PewCourses" },
			want: Issue{
				Code:    CodeInvalidValue,
				Path:    "results.0.__typename",
				Message: `Invalid input: expected "PewExamdates"`,
			},
		},
		{
			name: "unexpected change code",
			mutate: func(d map[string]any) {
				change := firstResult(d)["pewExamDateChanges"].([]any)[0].(map[string]any)
				change["changeCode"] = "EX_TIME"
			},
			want: Issue{
				Code:    CodeInvalidValue,
				Path:    "results.0.pewExamDateChanges.0.changeCode",
				Message: `Invalid input: expected "EX_DATE"`,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data := decodeResponse(t)
			tc.mutate(data)

			resp, err := Validate(data)
			require.Nil(t, resp)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %T: %v", err, err)
			assert.Contains(t, verr.Issues, tc.want)
			assert.Equal(t, data, verr.Data)
		})
	}
}

func TestValidateCollectsEveryTypeIssue(t *testing.T) {
	data := decodeResponse(t)
	firstResult(data)["courseId"] = "x"
	data["results"].([]any)[1].(map[string]any)["isCancelled"] = "no"

	_, err := Validate(data)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	paths := make([]string, 0, len(verr.Issues))
	for _, issue := range verr.Issues {
		paths = append(paths, issue.Path)
	}
	assert.ElementsMatch(t, []string{"results.0.courseId", "results.1.isCancelled"}, paths)
	assert.Contains(t, err.Error(), "(and 1 more)")
}

func TestValidateReportsValueIssuesBesideTypeIssues(t *testing.T) {
	data := decodeResponse(t)
	firstResult(data)["courseId"] = "40337"
	data["results"].([]any)[1].(map[string]any)["ordinal"] = 0.0
	data["info"].(map[string]any)["endCursor"] = -1.0

	_, err := Validate(data)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	assert.ElementsMatch(t, []Issue{
		{Code: CodeInvalidType, Path: "results.0.courseId", Message: "Invalid input: expected int, received string"},
		{Code: CodeTooSmall, Path: "results.1.ordinal", Message: "Too small: expected int to be >=1"},
		{Code: CodeTooSmall, Path: "info.endCursor", Message: "Too small: expected int to be >=0"},
	}, verr.Issues)
}

func TestValidateSkipsValueChecksOnMistypedRecord(t *testing.T) {
	data := decodeResponse(t)
	firstResult(data)["courseId"] = "40337"
	firstResult(data)["ordinal"] = 0.0

	_, err := Validate(data)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Issues, 1)
	assert.Equal(t, "results.0.courseId", verr.Issues[0].Path)
}

func TestValidateAcceptsMissingLiterals(t *testing.T) {
	data := decodeResponse(t)
	delete(firstResult(data), "__typename")
	change := firstResult(data)["pewExamDateChanges"].([]any)[0].(map[string]any)
	delete(change, "__typename")
	delete(change, "changeCode")

	resp, err := Validate(data)
	require.NoError(t, err)
	assert.Nil(t, resp.Results[0].Typename)
	assert.Nil(t, resp.Results[0].PewExamDateChanges[0].ChangeCode)
}

func TestValidateRejectsNonObject(t *testing.T) {
	_, err := Validate([]any{1.0, 2.0})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Issues, 1)
	assert.Equal(t, "", verr.Issues[0].Path)
	assert.Equal(t, "Invalid input: expected object, received array", verr.Issues[0].Message)
}

func TestValidateLeavesDeepDateChecksToNormalizer(t *testing.T) {
	data := decodeResponse(t)
	firstResult(data)["exDate"] = "2026-02-30T00:00:00"

	resp, err := Validate(data)
	require.NoError(t, err)

	exam := ParseExam(resp.Results[0])
	require.NotNil(t, exam.Schedule)
	assert.False(t, exam.Schedule.Start.Valid())
	assert.False(t, exam.Schedule.End.Valid())
}

func TestValidationErrorStringIsBounded(t *testing.T) {
	long := strings.Repeat("x", 1000)
	items := make([]any, 50)
	for i := range items {
		items[i] = long
	}
	verr := &ValidationError{
		Message: "failed to validate search response",
		Issues:  []Issue{{Code: CodeInvalidType, Path: "results", Message: "bad"}},
		Data:    map[string]any{"results": items},
	}

	out := verr.String()
	assert.Contains(t, out, "... 45 more items")
	assert.Contains(t, out, "... 800 more characters")
	assert.Less(t, len(out), 2000)

	var report Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "ValidationError", report.Name)
	assert.Equal(t, verr.Issues, report.Issues)
}

func TestTruncateDepth(t *testing.T) {
	var deep any = "leaf"
	for i := 0; i < 8; i++ {
		deep = map[string]any{"n": deep}
	}
	got := truncate(deep, 0)
	for i := 0; i < maxDepth; i++ {
		got = got.(map[string]any)["n"]
	}
	assert.Equal(t, "[Object]", got)
}
