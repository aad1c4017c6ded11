package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"cthexam/internal/atomicfile"
	"cthexam/internal/config"
	"cthexam/internal/examapi"
	"cthexam/internal/ics"
	appLog "cthexam/internal/log"
	"cthexam/internal/metrics"
	"cthexam/internal/model"
	"cthexam/internal/present"
	"cthexam/internal/schedule"
	"cthexam/internal/web"
)

const (
	usage     = "Usage: cthexam <query>"
	formatICS = "ics"
)

// flagConfig holds CLI flag values; they override the config file.
type flagConfig struct {
	configPath string
	format     string
	listen     string
	watch      bool
	out        string
	logLevel   string
	noColor    bool
	initConfig bool
	query      string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		return 1
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.out != "" {
		conf.Output = flags.out
	}
	if flags.logLevel != "" {
		conf.LogLevel = flags.logLevel
	}
	if flags.noColor {
		conf.NoColor = true
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	if conf.NoColor {
		color.NoColor = true
	}

	if flags.initConfig {
		if err := conf.Save(flags.configPath); err != nil {
			appLog.Error("failed to write config", err, "config_path", flags.configPath)
			return 1
		}
		appLog.Info("config written", "config_path", flags.configPath)
		return 0
	}

	appLog.Debug("effective config",
		"endpoint", conf.Endpoint,
		"listen", conf.Listen,
		"refresh", conf.Refresh,
		"output", conf.Output,
		"request_timeout_seconds", conf.RequestTimeoutSeconds,
		"serve", flags.listen != "",
		"watch", flags.watch,
	)

	serving := flags.listen != ""
	if flags.query == "" && (!serving || flags.watch) {
		fmt.Fprintln(stderr, usage)
		return 1
	}

	m := metrics.New()
	searcher := m.Instrument(examapi.NewClient(conf.Endpoint))
	timeout := time.Duration(conf.RequestTimeoutSeconds) * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if serving || flags.watch {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		go func() {
			select {
			case sig := <-sigCh:
				appLog.Info("signal received, shutting down", "signal", sig.String())
				cancel()
			case <-ctx.Done():
			}
		}()

		g, gctx := errgroup.WithContext(ctx)
		if serving {
			srv := web.NewServer(conf, searcher, m.Handler())
			g.Go(func() error { return srv.ListenAndServe(gctx) })
		}
		if flags.watch {
			r := &schedule.Refresher{
				Searcher: searcher,
				Query:    flags.query,
				Output:   conf.Output,
				Spec:     conf.Refresh,
				Timeout:  timeout,
			}
			g.Go(func() error { return r.Run(gctx) })
		}
		if err := g.Wait(); err != nil {
			appLog.Error("cthexam stopped with error", err)
			return 1
		}
		return 0
	}

	return searchOnce(ctx, searcher, timeout, flags, stdout, stderr)
}

func searchOnce(ctx context.Context, s metrics.Searcher, timeout time.Duration, flags flagConfig, stdout, stderr io.Writer) int {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	exams, err := s.Search(ctx, flags.query)
	if err != nil {
		appLog.Error("search failed", err, "query", flags.query)
		var verr *examapi.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintln(stderr, verr.String())
		}
		return 1
	}

	if len(exams) == 0 {
		color.New(color.FgYellow).Fprintln(stdout, "No exams found")
		return 0
	}
	if flags.format == formatICS {
		return writeCalendar(exams, flags, stdout)
	}
	if err := present.Write(stdout, present.Format(flags.format), exams); err != nil {
		appLog.Error("failed to print results", err)
		return 1
	}
	return 0
}

// writeCalendar prints the iCalendar export, or writes it to -out.
func writeCalendar(exams []model.Exam, flags flagConfig, stdout io.Writer) int {
	opts := ics.ExportOptions{CalendarName: flags.query}
	if flags.out == "" {
		if _, err := ics.Write(stdout, exams, opts); err != nil {
			appLog.Error("failed to write calendar", err)
			return 1
		}
		return 0
	}

	var b strings.Builder
	res, err := ics.Write(&b, exams, opts)
	if err != nil {
		appLog.Error("failed to build calendar", err)
		return 1
	}
	if err := atomicfile.WriteFile(flags.out, []byte(b.String()), 0o644); err != nil {
		appLog.Error("failed to write calendar", err, "path", flags.out)
		return 1
	}
	appLog.Info("calendar written", "path", flags.out, "events", res.Events, "skipped", res.Skipped)
	return 0
}

func parseFlags(args []string, stderr io.Writer) (flagConfig, error) {
	var cfg flagConfig

	fs := flag.NewFlagSet("cthexam", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.configPath, "config", config.DefaultPath(), "Path to config file")
	fs.StringVar(&cfg.format, "format", string(present.FormatText), "Output format: text, table, json or ics")
	fs.StringVar(&cfg.listen, "listen", "", "Serve the HTTP API on this address instead of searching once")
	fs.BoolVar(&cfg.watch, "watch", false, "Rewrite the calendar file on the configured refresh schedule")
	fs.StringVar(&cfg.out, "out", "", "Calendar file for -format ics and -watch (overrides config output)")
	fs.StringVar(&cfg.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	fs.BoolVar(&cfg.noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&cfg.initConfig, "init-config", false, "Write the effective config to -config and exit")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	// flag stops at the first positional argument, so anything after the
	// query is a misplaced flag or a second query.
	if fs.NArg() > 1 {
		err := fmt.Errorf("unexpected arguments after query %q: %s", fs.Arg(0), strings.Join(fs.Args()[1:], " "))
		fmt.Fprintln(stderr, err)
		fmt.Fprintln(stderr, "Flags must come before the query. "+usage)
		return cfg, err
	}
	cfg.query = strings.TrimSpace(fs.Arg(0))
	return cfg, nil
}
