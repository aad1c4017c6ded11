package schedule

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"cthexam/internal/atomicfile"
	"cthexam/internal/ics"
	appLog "cthexam/internal/log"
	"cthexam/internal/model"
)

// Searcher runs one exam search.
type Searcher interface {
	Search(ctx context.Context, query string) ([]model.Exam, error)
}

// Refresher periodically re-runs a query and rewrites an iCalendar file
// with the results. Every run is a fresh search.
type Refresher struct {
	Searcher Searcher
	Query    string
	// Output is the .ics file rewritten on every successful run.
	Output string
	// Spec is a standard five-field cron expression.
	Spec string
	// Timeout bounds one run. Zero means no extra bound.
	Timeout time.Duration

	// Now is passed to the exporter; tests pin it.
	Now func() time.Time

	mu sync.Mutex
}

// RunResult describes one refresh.
type RunResult struct {
	Events  int
	Skipped int
	Changes ics.Changes
}

// RunOnce searches, exports and atomically replaces Output. A failed
// search leaves the previous file untouched.
func (r *Refresher) RunOnce(ctx context.Context) (RunResult, error) {
	// Overlapping cron ticks must not race on Output.
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	exams, err := r.Searcher.Search(ctx, r.Query)
	if err != nil {
		return RunResult{}, fmt.Errorf("refresh %q: %w", r.Query, err)
	}

	var buf bytes.Buffer
	res, err := ics.Write(&buf, exams, ics.ExportOptions{CalendarName: r.Query, Now: r.Now})
	if err != nil {
		return RunResult{}, err
	}

	previous, err := r.previous()
	if err != nil {
		appLog.Warn("refresh: previous calendar unreadable, treating as empty", "path", r.Output, "err", err.Error())
	}
	current, err := ics.ParseExport(buf.Bytes())
	if err != nil {
		return RunResult{}, fmt.Errorf("refresh: re-read export: %w", err)
	}

	if err := atomicfile.WriteFile(r.Output, buf.Bytes(), 0o644); err != nil {
		return RunResult{}, err
	}

	out := RunResult{
		Events:  res.Events,
		Skipped: res.Skipped,
		Changes: ics.Diff(previous, current),
	}
	appLog.Info("refresh complete",
		"query", r.Query,
		"path", r.Output,
		"events", out.Events,
		"skipped", out.Skipped,
		"added", len(out.Changes.Added),
		"removed", len(out.Changes.Removed),
		"changed", len(out.Changes.Changed),
	)
	for _, s := range out.Changes.Changed {
		appLog.Info("exam changed", "summary", s)
	}
	return out, nil
}

func (r *Refresher) previous() (map[string]ics.ExportedEvent, error) {
	data, err := os.ReadFile(r.Output)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ics.ParseExport(data)
}

// Run performs one refresh immediately, then on every tick of Spec until
// ctx is done. It returns early only if Spec is invalid.
func (r *Refresher) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(r.Spec, func() { r.tick(ctx) }); err != nil {
		return fmt.Errorf("refresh schedule %q: %w", r.Spec, err)
	}

	appLog.Info("refresher started", "query", r.Query, "schedule", r.Spec, "path", r.Output)
	r.tick(ctx)

	c.Start()
	<-ctx.Done()

	// Wait for a running job to finish.
	<-c.Stop().Done()
	appLog.Info("refresher stopped")
	return nil
}

func (r *Refresher) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := r.RunOnce(ctx); err != nil {
		appLog.Error("refresh failed", err, "query", r.Query)
	}
}
