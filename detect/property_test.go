package detect

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"pgregory.net/rapid"
)

// randomCase upper-cases a random subset of the letters in s.
func randomCase(rt *rapid.T, s string) string {
	mask := rapid.SliceOfN(rapid.Bool(), len(s), len(s)).Draw(rt, "mask")
	b := []byte(s)
	for i := range b {
		if mask[i] && b[i] >= 'a' && b[i] <= 'z' {
			b[i] -= 'a' - 'A'
		}
	}
	return string(b)
}

func TestProperty_ScreenshotSizeRanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shot.png")
	d := New(Options{})

	rapid.Check(t, func(rt *rapid.T) {
		size := rapid.IntRange(minPNGSize, 600_000).Draw(rt, "size")
		data, err := pngOfSize(size)
		if err != nil {
			rt.Fatal(err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			rt.Fatal(err)
		}

		v := d.Evaluate(path, "")
		switch {
		case size < 50_000:
			if !v.Empty || v.Corrupted {
				rt.Fatalf("size %d: want empty only, got %+v", size, v)
			}
		case size <= 400_000:
			if v.Empty || v.Corrupted || len(v.Reasons) != 0 {
				rt.Fatalf("size %d: want no flags, got %+v", size, v)
			}
		default:
			if v.Empty || !v.Corrupted {
				rt.Fatalf("size %d: want corrupted only, got %+v", size, v)
			}
		}
	})
}

func TestProperty_ShortHTMLIsEmpty(t *testing.T) {
	d := New(Options{})

	rapid.Check(t, func(rt *rapid.T) {
		html := rapid.StringMatching(`[a-z <>/é]{1,3000}`).Draw(rt, "html")
		v := d.Evaluate("", html)

		wantEmpty := utf8.RuneCountInString(html) < 2000
		if v.Empty != wantEmpty {
			rt.Fatalf("len %d runes: Empty = %v, want %v", utf8.RuneCountInString(html), v.Empty, wantEmpty)
		}
	})
}

func TestProperty_CloudflarePhrasesDetected(t *testing.T) {
	d := New(Options{})

	rapid.Check(t, func(rt *rapid.T) {
		picked := rapid.SliceOfNDistinct(rapid.SampledFrom(htmlCloudflarePhrases), 1, len(htmlCloudflarePhrases), rapid.ID[string]).Draw(rt, "phrases")
		var parts []string
		for _, p := range picked {
			parts = append(parts, randomCase(rt, p))
		}
		html := htmlWith(5000, strings.Join(parts, " | "))

		v := d.Evaluate("", html)
		if !v.Cloudflare {
			rt.Fatalf("phrases %v not detected", picked)
		}

		var reason string
		for _, r := range v.Reasons {
			if strings.HasPrefix(r, "Cloudflare keywords in HTML: ") {
				reason = r
			}
		}
		if reason == "" {
			rt.Fatalf("no Cloudflare reason in %v", v.Reasons)
		}
		listed := strings.Split(strings.TrimPrefix(reason, "Cloudflare keywords in HTML: "), ", ")
		if len(listed) > 3 {
			rt.Fatalf("reason lists %d phrases, cap is 3: %q", len(listed), reason)
		}
	})
}

func TestProperty_CaptchaPhrasesDetected(t *testing.T) {
	d := New(Options{})

	rapid.Check(t, func(rt *rapid.T) {
		phrase := randomCase(rt, rapid.SampledFrom(htmlCaptchaPhrases).Draw(rt, "phrase"))
		v := d.Evaluate("", htmlWith(5000, phrase))
		if !v.Captcha {
			rt.Fatalf("%q not detected", phrase)
		}
	})
}

func TestProperty_BlockedIsDisjunction(t *testing.T) {
	dir := t.TempDir()
	vocab := append(append([]string{"lorem", "ipsum", "<p>", "</p>"}, htmlCloudflarePhrases...), htmlCaptchaPhrases...)

	rapid.Check(t, func(rt *rapid.T) {
		var path string
		if rapid.Bool().Draw(rt, "withScreenshot") {
			path = filepath.Join(dir, "shot.png")
			if rapid.Bool().Draw(rt, "validImage") {
				data, err := pngOfSize(rapid.IntRange(minPNGSize, 450_000).Draw(rt, "size"))
				if err != nil {
					rt.Fatal(err)
				}
				if err := os.WriteFile(path, data, 0o644); err != nil {
					rt.Fatal(err)
				}
			} else {
				junk := rapid.SliceOfN(rapid.Byte(), 0, 70_000).Draw(rt, "junk")
				if err := os.WriteFile(path, junk, 0o644); err != nil {
					rt.Fatal(err)
				}
			}
		}

		words := rapid.SliceOfN(rapid.SampledFrom(vocab), 0, 800).Draw(rt, "words")
		html := strings.Join(words, " ")

		ocrText := strings.Join(rapid.SliceOfN(rapid.SampledFrom(screenshotBlockPhrases), 0, 3).Draw(rt, "ocr"), " ")
		v := New(Options{OCR: &fakeOCR{text: ocrText}}).Evaluate(path, html)

		raw, err := json.Marshal(v)
		if err != nil {
			rt.Fatal(err)
		}
		var decoded map[string]any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			rt.Fatal(err)
		}

		anyFlag := v.Cloudflare || v.Captcha || v.Empty || v.Corrupted
		if decoded["blocked"] != anyFlag {
			rt.Fatalf("blocked = %v but flags = %+v", decoded["blocked"], v)
		}
		if !anyFlag && ocrText == "" && len(v.Reasons) != 0 {
			rt.Fatalf("no flags and no OCR hits but reasons %v", v.Reasons)
		}
	})
}

func TestProperty_Idempotent(t *testing.T) {
	dir := t.TempDir()

	rapid.Check(t, func(rt *rapid.T) {
		path := filepath.Join(dir, "shot.png")
		data, err := pngOfSize(rapid.IntRange(minPNGSize, 450_000).Draw(rt, "size"))
		if err != nil {
			rt.Fatal(err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			rt.Fatal(err)
		}
		html := rapid.StringMatching(`(lorem |captcha |ray id |just a moment ){0,600}`).Draw(rt, "html")
		d := New(Options{OCR: &fakeOCR{text: rapid.SampledFrom(screenshotBlockPhrases).Draw(rt, "ocr")}})

		a, b := d.Evaluate(path, html), d.Evaluate(path, html)
		if a.Cloudflare != b.Cloudflare || a.Captcha != b.Captcha ||
			a.Empty != b.Empty || a.Corrupted != b.Corrupted ||
			strings.Join(a.Reasons, "\n") != strings.Join(b.Reasons, "\n") {
			rt.Fatalf("evaluations differ:\n%+v\n%+v", a, b)
		}
	})
}
