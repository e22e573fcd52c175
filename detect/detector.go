// Package detect decides whether a captured page is the real page or an
// anti-bot block/challenge page.
//
// Evaluation fuses independent, noisy signals into one verdict:
//
//  1. Screenshot size anomaly   (too small → empty, too large → corrupted)
//  2. Screenshot integrity      (undecodable → corrupted)
//  3. Screenshot OCR keywords   (optional; cloudflare / captcha)
//  4. HTML Cloudflare phrases   (cloudflare)
//  5. HTML CAPTCHA phrases      (captcha)
//  6. HTML minimal content      (empty)
//
// Checks run in that order, only ever set flags, and only ever append
// reasons. Missing inputs skip their checks; nothing is reported as an error.
package detect

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/use-agent/stealthshot/config"
	"github.com/use-agent/stealthshot/models"
)

// Default thresholds.
const (
	DefaultMinScreenshotBytes = 50_000
	DefaultMaxScreenshotBytes = 400_000
	DefaultMaxOCRBytes        = 500_000
	DefaultMinHTMLChars       = 2000
)

// Options configures a Detector. Zero thresholds take the defaults.
type Options struct {
	MinScreenshotBytes int64
	MaxScreenshotBytes int64
	MaxOCRBytes        int64
	MinHTMLChars       int

	// OCR extracts text from screenshots. Nil disables the OCR check.
	OCR OCR
}

// Detector evaluates captured artifacts. It holds no mutable state and is
// safe for concurrent use.
type Detector struct {
	opts Options
}

// New creates a Detector.
func New(opts Options) *Detector {
	if opts.MinScreenshotBytes <= 0 {
		opts.MinScreenshotBytes = DefaultMinScreenshotBytes
	}
	if opts.MaxScreenshotBytes <= 0 {
		opts.MaxScreenshotBytes = DefaultMaxScreenshotBytes
	}
	if opts.MaxOCRBytes <= 0 {
		opts.MaxOCRBytes = DefaultMaxOCRBytes
	}
	if opts.MinHTMLChars <= 0 {
		opts.MinHTMLChars = DefaultMinHTMLChars
	}
	return &Detector{opts: opts}
}

// NewFromConfig creates a Detector from configuration, resolving the OCR
// backend once. A missing tesseract binary disables OCR without error.
func NewFromConfig(cfg config.DetectConfig) *Detector {
	opts := Options{
		MinScreenshotBytes: cfg.MinScreenshotBytes,
		MaxScreenshotBytes: cfg.MaxScreenshotBytes,
		MaxOCRBytes:        cfg.MaxOCRBytes,
		MinHTMLChars:       cfg.MinHTMLChars,
	}
	if cfg.OCREnabled {
		ocr, err := NewTesseract(cfg.TesseractBin, cfg.OCRLanguage)
		if err != nil {
			slog.Info("OCR backend unavailable, screenshot text check disabled", "error", err)
		} else {
			opts.OCR = ocr
		}
	}
	return New(opts)
}

// OCRAvailable reports whether the OCR check can run.
func (d *Detector) OCRAvailable() bool {
	return d.opts.OCR != nil
}

// Evaluate inspects the screenshot at screenshotPath (may be empty) and the
// rendered html (may be empty) and returns a fresh verdict.
func (d *Detector) Evaluate(screenshotPath, html string) *models.Verdict {
	return d.EvaluateContext(context.Background(), screenshotPath, html)
}

// EvaluateContext is Evaluate with a context handed to the OCR backend.
func (d *Detector) EvaluateContext(ctx context.Context, screenshotPath, html string) *models.Verdict {
	v := &models.Verdict{Reasons: []string{}}

	if screenshotPath != "" {
		if info, err := os.Stat(screenshotPath); err == nil && !info.IsDir() {
			size := info.Size()
			d.checkSize(v, size)
			d.checkIntegrity(v, screenshotPath)
			d.checkOCR(ctx, v, screenshotPath, size)
		}
	}

	if html != "" {
		lower := strings.ToLower(html)
		d.checkCloudflareHTML(v, lower)
		d.checkCaptchaHTML(v, lower)
		d.checkMinimalHTML(v, html)
	}

	return v
}

func (d *Detector) checkSize(v *models.Verdict, size int64) {
	switch {
	case size < d.opts.MinScreenshotBytes:
		v.Empty = true
		v.AddReason(fmt.Sprintf("Screenshot unusually small (%d bytes < %s)",
			size, formatBytes(d.opts.MinScreenshotBytes)))
	case size > d.opts.MaxScreenshotBytes:
		v.Corrupted = true
		v.AddReason(fmt.Sprintf("Screenshot unusually large (%d bytes > %s) - may be corrupted",
			size, formatBytes(d.opts.MaxScreenshotBytes)))
	}
}

func (d *Detector) checkIntegrity(v *models.Verdict, path string) {
	if err := verifyImage(path); err != nil {
		v.Corrupted = true
		v.AddReason(fmt.Sprintf("Image validation failed: %v", err))
	}
}

func (d *Detector) checkOCR(ctx context.Context, v *models.Verdict, path string, size int64) {
	if d.opts.OCR == nil || size >= d.opts.MaxOCRBytes {
		return
	}

	text, err := d.opts.OCR.Text(ctx, path)
	if err != nil {
		// OCR failure never implies a block.
		slog.Debug("OCR failed, skipping screenshot text check", "path", path, "error", err)
		return
	}
	text = strings.ToLower(text)

	found := matchedPhrases(text, screenshotBlockPhrases)
	if len(found) == 0 {
		return
	}
	if containsAny(text, screenshotCloudflareMarkers) {
		v.Cloudflare = true
	}
	if strings.Contains(text, screenshotCaptchaMarker) {
		v.Captcha = true
	}
	v.AddReason("Block keywords found in screenshot: " + strings.Join(found, ", "))
}

func (d *Detector) checkCloudflareHTML(v *models.Verdict, lower string) {
	found := matchedPhrases(lower, htmlCloudflarePhrases)
	if len(found) == 0 {
		return
	}
	if len(found) > maxReportedHTMLPhrases {
		found = found[:maxReportedHTMLPhrases]
	}
	v.Cloudflare = true
	v.AddReason("Cloudflare keywords in HTML: " + strings.Join(found, ", "))
}

func (d *Detector) checkCaptchaHTML(v *models.Verdict, lower string) {
	if containsAny(lower, htmlCaptchaPhrases) {
		v.Captcha = true
		v.AddReason("CAPTCHA detected in HTML")
	}
}

func (d *Detector) checkMinimalHTML(v *models.Verdict, html string) {
	if n := utf8.RuneCountInString(html); n < d.opts.MinHTMLChars {
		v.Empty = true
		v.AddReason(fmt.Sprintf("HTML content unusually small (%d chars)", n))
	}
}

// matchedPhrases returns the phrases contained in text, in vocabulary order.
func matchedPhrases(text string, phrases []string) []string {
	var found []string
	for _, p := range phrases {
		if strings.Contains(text, p) {
			found = append(found, p)
		}
	}
	return found
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// formatBytes renders a threshold the way reasons cite it: "50KB" for whole
// kilobytes, a plain byte count otherwise.
func formatBytes(n int64) string {
	if n%1000 == 0 {
		return fmt.Sprintf("%dKB", n/1000)
	}
	return fmt.Sprintf("%d bytes", n)
}
