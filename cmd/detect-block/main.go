// Command detect-block judges whether a captured page is a block or
// challenge page.
//
//	detect-block <screenshot-path> [html-path]
//
// The verdict is printed as JSON on stdout. Exit status is 0 when the page
// looks real, 1 when it looks blocked and 2 on usage or I/O errors.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/use-agent/stealthshot/config"
	"github.com/use-agent/stealthshot/detect"
)

const (
	exitClear   = 0
	exitBlocked = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("detect-block", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: detect-block <screenshot-path> [html-path]")
		fs.PrintDefaults()
	}
	noOCR := fs.Bool("no-ocr", false, "skip the screenshot OCR check")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		fs.Usage()
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	// stdout carries the verdict, so logs go to stderr.
	slog.SetDefault(cfg.Log.NewLogger(stderr))

	screenshotPath := fs.Arg(0)
	var html string
	if fs.NArg() == 2 {
		data, err := os.ReadFile(fs.Arg(1))
		if err != nil {
			fmt.Fprintf(stderr, "detect-block: read html: %v\n", err)
			return exitUsage
		}
		html = string(data)
	}

	if *noOCR {
		cfg.Detect.OCREnabled = false
	}
	verdict := detect.NewFromConfig(cfg.Detect).Evaluate(screenshotPath, html)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(verdict); err != nil {
		fmt.Fprintf(stderr, "detect-block: write verdict: %v\n", err)
		return exitUsage
	}

	if verdict.Blocked() {
		return exitBlocked
	}
	return exitClear
}
