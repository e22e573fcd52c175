// Command stealthshot captures a URL with a stealth browser at the desktop,
// mobile and tablet viewports, judges every capture and prints a JSON
// research report.
//
//	stealthshot [-viewport name] [-retries n] [-probe] [-content] [-styles] <URL> [output-dir]
//
// Exit status is 0 when every capture succeeded, 1 otherwise and 2 on usage
// errors.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/use-agent/stealthshot/capture"
	"github.com/use-agent/stealthshot/cleaner"
	"github.com/use-agent/stealthshot/config"
	"github.com/use-agent/stealthshot/detect"
	"github.com/use-agent/stealthshot/models"
	"github.com/use-agent/stealthshot/probe"
	"github.com/use-agent/stealthshot/research"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// options are the parsed command line.
type options struct {
	req      models.ResearchRequest
	headless bool
}

var errUsage = errors.New("usage")

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("stealthshot", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: stealthshot [flags] <URL> [output-dir]")
		fs.PrintDefaults()
	}

	viewport := fs.String("viewport", "", "capture only this preset: desktop, mobile or tablet")
	retries := fs.Int("retries", -1, "extra captures for a blocked viewport (default from config)")
	doProbe := fs.Bool("probe", false, "run a plain HTTP preflight before launching the browser")
	content := fs.Bool("content", false, "attach the Markdown main content to the report")
	analyzeStyles := fs.Bool("styles", false, "attach colors, typography, design tokens and detected frameworks")
	headful := fs.Bool("headful", false, "show the browser window")

	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		fs.Usage()
		return nil, errUsage
	}
	if *viewport != "" {
		if _, ok := models.LookupViewport(*viewport); !ok {
			fmt.Fprintf(stderr, "stealthshot: unknown viewport %q\n", *viewport)
			return nil, errUsage
		}
	}

	opts := &options{
		req: models.ResearchRequest{
			URL:            fs.Arg(0),
			OutputDir:      fs.Arg(1),
			Viewport:       *viewport,
			Probe:          *doProbe,
			ExtractContent: *content,
			AnalyzeStyles:  *analyzeStyles,
		},
		headless: !*headful,
	}
	if *retries >= 0 {
		opts.req.MaxRetries = retries
	}
	return opts, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	// stdout carries the report, so logs go to stderr.
	slog.SetDefault(cfg.Log.NewLogger(stderr))
	if !opts.headless {
		cfg.Browser.Headless = false
	}
	cfg.Browser.MaxPages = 1

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cp, err := capture.New(cfg.Browser, cfg.Capture)
	if err != nil {
		slog.Error("failed to launch browser", "error", err)
		return exitFailed
	}
	defer cp.Close()

	runner := research.NewRunner(
		cp,
		detect.NewFromConfig(cfg.Detect),
		probe.NewFetcher(cfg.Probe.Timeout),
		cleaner.NewCleaner(),
		cfg.Capture,
	)

	report, err := runner.Run(ctx, &opts.req)
	if err != nil {
		fmt.Fprintf(stderr, "stealthshot: %v\n", err)
		return exitUsage
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fmt.Fprintf(stderr, "stealthshot: write report: %v\n", err)
		return exitFailed
	}

	if !report.AllSucceeded {
		return exitFailed
	}
	return exitOK
}
