package main

import (
	"bytes"
	"testing"
)

func TestParseArgs(t *testing.T) {
	var stderr bytes.Buffer
	opts, err := parseArgs([]string{"-viewport", "mobile", "-retries", "2", "-probe", "https://example.com", "out"}, &stderr)
	if err != nil {
		t.Fatalf("parseArgs: %v (%s)", err, stderr.String())
	}
	if opts.req.URL != "https://example.com" || opts.req.OutputDir != "out" {
		t.Errorf("req = %+v", opts.req)
	}
	if opts.req.Viewport != "mobile" || !opts.req.Probe || opts.req.ExtractContent || opts.req.AnalyzeStyles {
		t.Errorf("req = %+v", opts.req)
	}
	if opts.req.MaxRetries == nil || *opts.req.MaxRetries != 2 {
		t.Errorf("MaxRetries = %v", opts.req.MaxRetries)
	}
	if !opts.headless {
		t.Error("headless should default to true")
	}
}

func TestParseArgs_Styles(t *testing.T) {
	opts, err := parseArgs([]string{"-styles", "-content", "https://example.com"}, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if !opts.req.AnalyzeStyles || !opts.req.ExtractContent {
		t.Errorf("req = %+v", opts.req)
	}
}

func TestParseArgs_Defaults(t *testing.T) {
	opts, err := parseArgs([]string{"https://example.com"}, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if opts.req.OutputDir != "" || opts.req.Viewport != "" || opts.req.MaxRetries != nil {
		t.Errorf("req = %+v, want config defaults", opts.req)
	}
}

func TestParseArgs_Usage(t *testing.T) {
	for _, args := range [][]string{
		nil,
		{"a", "b", "c"},
		{"-viewport", "watch", "https://example.com"},
		{"-nope", "https://example.com"},
	} {
		if _, err := parseArgs(args, &bytes.Buffer{}); err != errUsage {
			t.Errorf("parseArgs(%v) err = %v, want errUsage", args, err)
		}
	}
}

func TestRun_UsageExitCode(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(nil, &stdout, &stderr); code != exitUsage {
		t.Errorf("exit %d, want %d", code, exitUsage)
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want empty", stdout.String())
	}
}
