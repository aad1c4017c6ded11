package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cthexam/internal/examapi"
	"cthexam/internal/model"
)

type stubSearcher struct {
	exams []model.Exam
	err   error
}

func (s stubSearcher) Search(context.Context, string) ([]model.Exam, error) {
	return s.exams, s.err
}

func TestInstrumentCountsOutcomes(t *testing.T) {
	m := New()
	ctx := context.Background()

	_, _ = m.Instrument(stubSearcher{exams: make([]model.Exam, 3)}).Search(ctx, "TDA553")
	_, _ = m.Instrument(stubSearcher{err: &examapi.StatusError{StatusCode: 500}}).Search(ctx, "TDA553")
	_, _ = m.Instrument(stubSearcher{err: fmt.Errorf("wrapped: %w", &examapi.ValidationError{})}).Search(ctx, "TDA553")
	_, _ = m.Instrument(stubSearcher{err: errors.New("dial tcp: refused")}).Search(ctx, "TDA553")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Searches.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Searches.WithLabelValues(OutcomeTransportError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Searches.WithLabelValues(OutcomeValidationError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Searches.WithLabelValues(OutcomeError)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ExamsReturned))
}

func TestInstrumentPassesResultsThrough(t *testing.T) {
	m := New()
	want := []model.Exam{{ID: "norm_1"}}
	got, err := m.Instrument(stubSearcher{exams: want}).Search(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	_, _ = m.Instrument(stubSearcher{}).Search(context.Background(), "x")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `cthexam_searches_total{outcome="ok"} 1`)
	assert.Contains(t, string(body), "cthexam_search_duration_seconds_bucket")
}
