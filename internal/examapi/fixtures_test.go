package examapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func rawDateChange() RawExamDateChange {
	return RawExamDateChange{
		Typename:     strPtr("PewExamdatesPewExamDateChange"),
		ChangeCode:   strPtr("EX_DATE"),
		ChangeID:     25502,
		OldValue:     "2026-03-16",
		NewValue:     "2026-03-20",
		DecisionDate: "2025-12-04T00:00:00",
		PressInfo:    "[2026-03-16 4,5 hp, 0217]",
		SignedBy:     "Examinator",
	}
}

func rawExam() RawExam {
	return RawExam{
		Typename:           strPtr("PewExamdates"),
		Name:               "Objektorienterad programmering och design",
		Updated:            "2026-01-27T12:00:00.0000000+01:00",
		ExamsLoc:           "Johanneberg",
		ExDateRegStart:     strPtr("2025-12-29T00:00:00"),
		ExDateLastReg:      strPtr("2026-03-01T00:00:00"),
		ExDate:             strPtr("2026-03-19T00:00:00"),
		Starts:             "14:00",
		ExLenght:           4,
		Code:               "TDA553",
		IsCancelled:        false,
		CourseID:           40337,
		PewExamDateChanges: []RawExamDateChange{rawDateChange()},
		ExamID:             "norm_63294",
		Inst:               0,
		CMCode:             "0122",
		Part:               "",
		Ordinal:            1,
		DigitalDecided:     0,
	}
}

// responseJSON is a search response body as the API sends it.
const responseJSON = `{
  "info": {"count": 2, "endCursor": 2, "suggest": null},
  "results": [
    {
      "__typename": "PewExamdates",
      "name": "Objektorienterad programmering och design",
      "updated": "2026-01-27T12:00:00.0000000+01:00",
      "examsLoc": "Johanneberg",
      "exDateRegStart": "2025-12-29T00:00:00",
      "exDateLastReg": "2026-03-01T00:00:00",
      "exDate": "2026-03-19T00:00:00",
      "starts": "14:00",
      "exLenght": 4,
      "code": "TDA553",
      "isCancelled": false,
      "courseId": 40337,
      "pewExamDateChanges": [
        {
          "__typename": "PewExamdatesPewExamDateChange",
          "changeCode": "EX_DATE",
          "changeId": 25502,
          "oldValue": "2026-03-16",
          "newValue": "2026-03-20",
          "decisionDate": "2025-12-04T00:00:00",
          "pressInfo": "[2026-03-16 4,5 hp, 0217]",
          "signedBy": "Examinator"
        }
      ],
      "examId": "norm_63294",
      "inst": 0,
      "cmCode": "0122",
      "part": "",
      "ordinal": 1,
      "digitalDecided": 0
    },
    {
      "__typename": "PewExamdates",
      "name": "Objektorienterad programvaruutveckling",
      "updated": "2026-02-01T09:30:00+01:00",
      "examsLoc": "Lindholmen",
      "exDateRegStart": null,
      "exDateLastReg": null,
      "exDate": null,
      "starts": "",
      "exLenght": 0,
      "code": "TDA552",
      "isCancelled": false,
      "courseId": 40100,
      "pewExamDateChanges": [],
      "examId": "norm_70001",
      "inst": 1,
      "cmCode": "0100",
      "part": "",
      "ordinal": 1,
      "digitalDecided": 1
    }
  ]
}`

func decodeResponse(t *testing.T) map[string]any {
	t.Helper()
	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(responseJSON), &data))
	return data
}

func firstResult(data map[string]any) map[string]any {
	return data["results"].([]any)[0].(map[string]any)
}
