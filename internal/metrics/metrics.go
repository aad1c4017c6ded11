package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cthexam/internal/examapi"
	"cthexam/internal/model"
)

// Search outcomes.
const (
	OutcomeOK              = "ok"
	OutcomeTransportError  = "transport_error"
	OutcomeValidationError = "validation_error"
	OutcomeError           = "error"
)

// Searcher is anything that can run an exam search.
type Searcher interface {
	Search(ctx context.Context, query string) ([]model.Exam, error)
}

// Metrics holds the Prometheus collectors for exam searches.
type Metrics struct {
	registry *prometheus.Registry

	Searches       *prometheus.CounterVec
	SearchDuration prometheus.Histogram
	ExamsReturned  prometheus.Histogram
}

// New creates a registry with the search collectors plus the standard Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Searches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cthexam_searches_total",
			Help: "Exam searches by outcome",
		}, []string{"outcome"}),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cthexam_search_duration_seconds",
			Help:    "Time spent on one exam search, including validation and mapping",
			Buckets: prometheus.DefBuckets,
		}),
		ExamsReturned: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cthexam_search_exams_returned",
			Help:    "Number of exams returned per successful search",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
	}
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Instrument wraps s so every search is counted and timed.
func (m *Metrics) Instrument(s Searcher) Searcher {
	return &instrumented{next: s, m: m}
}

type instrumented struct {
	next Searcher
	m    *Metrics
}

func (i *instrumented) Search(ctx context.Context, query string) ([]model.Exam, error) {
	start := time.Now()
	exams, err := i.next.Search(ctx, query)
	i.m.SearchDuration.Observe(time.Since(start).Seconds())
	i.m.Searches.WithLabelValues(Outcome(err)).Inc()
	if err == nil {
		i.m.ExamsReturned.Observe(float64(len(exams)))
	}
	return exams, err
}

// Outcome classifies a search error.
func Outcome(err error) string {
	var serr *examapi.StatusError
	var verr *examapi.ValidationError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &serr):
		return OutcomeTransportError
	case errors.As(err, &verr):
		return OutcomeValidationError
	default:
		return OutcomeError
	}
}
