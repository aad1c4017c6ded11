package examapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"os"
	"testing"

	"github.com/stretchr/testify/suite"

	appLog "cthexam/internal/log"
)

type SearchSuite struct {
	suite.Suite
	server   *httptest.Server
	status   int
	body     string
	lastVars map[string]any
	client   *Client
	ctx      context.Context
}

func (s *SearchSuite) SetupTest() {
	s.status = http.StatusOK
	s.body = responseJSON
	s.lastVars = nil
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Equal(http.MethodGet, r.Method)
		var vars map[string]any
		if err := json.Unmarshal([]byte(r.URL.Query().Get("variables")), &vars); err == nil {
			s.lastVars = vars
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(s.status)
		_, _ = w.Write([]byte(s.body))
	}))
	s.client = NewClient(s.server.URL+"/api/list/", WithHTTPClient(s.server.Client()))
	s.ctx = context.Background()
}

func (s *SearchSuite) TearDownTest() {
	s.server.Close()
}

func TestSearchSuite(t *testing.T) {
	suite.Run(t, new(SearchSuite))
}

func (s *SearchSuite) TestExactMatchPreference() {
	s.Run("narrows to case-insensitive code match", func() {
		exams, err := s.client.Search(s.ctx, "tda553")
		s.Require().NoError(err)
		s.Require().Len(exams, 1)
		s.Equal("TDA553", exams[0].CourseCode)
		s.NotNil(exams[0].Schedule)
	})

	s.Run("keeps every result without an exact match", func() {
		exams, err := s.client.Search(s.ctx, "objektorienterad")
		s.Require().NoError(err)
		s.Require().Len(exams, 2)
		s.Equal("TDA553", exams[0].CourseCode)
		s.Equal("TDA552", exams[1].CourseCode)
		s.Nil(exams[1].Schedule)
		s.True(exams[1].IsDigital)
	})
}

func (s *SearchSuite) TestRequestPayload() {
	_, err := s.client.Search(s.ctx, "TDA553")
	s.Require().NoError(err)
	s.Require().NotNil(s.lastVars)

	s.Equal("TDA553", s.lastVars["search"])
	s.Equal("PewExamdates", s.lastVars["indexes"])
	s.Equal("sv", s.lastVars["language"])
	s.Equal("Tentamen", s.lastVars["context"])
	s.Equal(false, s.lastVars["highlight"])
	s.Equal("collapse", s.lastVars["groupBy"])
	s.Equal([]any{}, s.lastVars["sort"])
	s.Equal([]any{"utbildning", "dina-studier", "tentamen-och-ovrig-examination", "sok-tentamensdatum"}, s.lastVars["url"])

	wantFilter := map[string]any{
		"_and": []any{
			map[string]any{"_or": []any{
				map[string]any{"exDate": map[string]any{"_gte": "now/d"}},
				map[string]any{"inst": map[string]any{"_eq": "1"}},
			}},
			map[string]any{"_or": []any{}},
		},
	}
	s.Equal(wantFilter, s.lastVars["filter"])
}

func (s *SearchSuite) TestEmptyResults() {
	s.body = `{"info":{"count":0,"endCursor":0},"results":[]}`
	exams, err := s.client.Search(s.ctx, "NOPE01")
	s.Require().NoError(err)
	s.Empty(exams)
}

func (s *SearchSuite) TestTransportFailure() {
	s.status = http.StatusServiceUnavailable
	s.body = "maintenance"

	exams, err := s.client.Search(s.ctx, "TDA553")
	s.Nil(exams)

	var serr *StatusError
	s.Require().True(errors.As(err, &serr))
	s.Equal(http.StatusServiceUnavailable, serr.StatusCode)
	s.Equal("maintenance", serr.Body)
	s.Equal("received error from API (code 503): maintenance", err.Error())
}

func (s *SearchSuite) TestValidationFailureAbortsCall() {
	s.body = strings.Replace(responseJSON, `"courseId": 40100`, `"courseId": "40100"`, 1)

	exams, err := s.client.Search(s.ctx, "TDA553")
	s.Nil(exams)

	var verr *ValidationError
	s.Require().True(errors.As(err, &verr))
	s.Require().Len(verr.Issues, 1)
	s.Equal("results.1.courseId", verr.Issues[0].Path)

	var serr *StatusError
	s.False(errors.As(err, &serr))
}

func (s *SearchSuite) TestValidationFailureLeavesErrorLogToCaller() {
	var buf bytes.Buffer
	appLog.SetOutput(&buf)
	appLog.SetLevel(appLog.LevelInfo)
	defer appLog.SetOutput(os.Stderr)

	s.body = strings.Replace(responseJSON, `"courseId": 40100`, `"courseId": "40100"`, 1)
	_, err := s.client.Search(s.ctx, "TDA553")
	s.Require().Error(err)

	s.NotContains(buf.String(), `"level":"error"`)
}

func (s *SearchSuite) TestMalformedBody() {
	s.body = "<html>not json</html>"
	_, err := s.client.Search(s.ctx, "TDA553")
	s.Require().Error(err)
	s.Contains(err.Error(), "decode body")
}

func (s *SearchSuite) TestCanceledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err := s.client.Search(ctx, "TDA553")
	s.Require().ErrorIs(err, context.Canceled)
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("")
	if c.endpoint != DefaultEndpoint {
		t.Fatalf("expected default endpoint, got %q", c.endpoint)
	}
	u, err := c.requestURL("TDA553")
	if err != nil {
		t.Fatalf("requestURL: %v", err)
	}
	if !strings.HasPrefix(u, DefaultEndpoint+"?variables=") {
		t.Fatalf("unexpected url %q", u)
	}
}
