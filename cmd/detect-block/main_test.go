package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (int, map[string]any, string) {
	t.Helper()
	t.Setenv("STEALTHSHOT_CONFIG", "")
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)

	var out map[string]any
	if stdout.Len() > 0 {
		if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
			t.Fatalf("stdout is not JSON: %v\n%s", err, stdout.String())
		}
	}
	return code, out, stderr.String()
}

func TestRun_Usage(t *testing.T) {
	for _, args := range [][]string{nil, {"a", "b", "c"}, {"-bogus", "a"}} {
		code, out, stderr := runCLI(t, args...)
		if code != exitUsage {
			t.Errorf("args %v: exit %d, want %d", args, code, exitUsage)
		}
		if out != nil {
			t.Errorf("args %v: unexpected stdout %v", args, out)
		}
		if !strings.Contains(stderr, "Usage") && !strings.Contains(stderr, "flag provided but not defined") {
			t.Errorf("args %v: stderr = %q", args, stderr)
		}
	}
}

func TestRun_MissingHTMLFile(t *testing.T) {
	code, _, stderr := runCLI(t, "-no-ocr", "shot.png", filepath.Join(t.TempDir(), "missing.html"))
	if code != exitUsage {
		t.Errorf("exit %d, want %d", code, exitUsage)
	}
	if !strings.Contains(stderr, "read html") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestRun_Blocked(t *testing.T) {
	html := writeTemp(t, "page.html", "<html><body>Just a moment... Checking your browser</body></html>")
	missingShot := filepath.Join(t.TempDir(), "shot.png")

	code, out, _ := runCLI(t, "-no-ocr", missingShot, html)
	if code != exitBlocked {
		t.Errorf("exit %d, want %d", code, exitBlocked)
	}
	if out["blocked"] != true || out["cloudflare"] != true || out["empty"] != true {
		t.Errorf("verdict = %v", out)
	}
	for _, key := range []string{"blocked", "cloudflare", "captcha", "empty", "corrupted", "reasons"} {
		if _, ok := out[key]; !ok {
			t.Errorf("verdict missing key %q", key)
		}
	}
}

func TestRun_Clear(t *testing.T) {
	body := "<html><body>" + strings.Repeat("<p>plain article text</p>", 100) + "</body></html>"
	html := writeTemp(t, "page.html", body)
	missingShot := filepath.Join(t.TempDir(), "shot.png")

	code, out, _ := runCLI(t, "-no-ocr", missingShot, html)
	if code != exitClear {
		t.Errorf("exit %d, want %d (verdict %v)", code, exitClear, out)
	}
	if out["blocked"] != false {
		t.Errorf("verdict = %v", out)
	}
	if reasons, ok := out["reasons"].([]any); !ok || len(reasons) != 0 {
		t.Errorf("reasons = %v, want []", out["reasons"])
	}
}

func TestRun_ScreenshotOnly(t *testing.T) {
	shot := writeTemp(t, "shot.png", "tiny")

	code, out, _ := runCLI(t, "-no-ocr", shot)
	if code != exitBlocked {
		t.Errorf("exit %d, want %d", code, exitBlocked)
	}
	if out["empty"] != true || out["corrupted"] != true {
		t.Errorf("verdict = %v", out)
	}
}

// Scripts branch on the exit status, so a blocked page must never be
// mistaken for a bad invocation.
func TestRun_ExitCodes(t *testing.T) {
	html := writeTemp(t, "page.html", "<html><body>Sorry, you have been blocked</body></html>")
	shot := filepath.Join(t.TempDir(), "shot.png")

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"blocked", []string{"-no-ocr", shot, html}, 1},
		{"no arguments", nil, 2},
		{"too many arguments", []string{shot, html, "extra"}, 2},
		{"unreadable html", []string{"-no-ocr", shot, filepath.Join(t.TempDir(), "nope.html")}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _, _ := runCLI(t, tt.args...); code != tt.want {
				t.Errorf("exit %d, want %d", code, tt.want)
			}
		})
	}
}
