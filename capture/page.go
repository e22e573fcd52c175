package capture

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/stealthshot/models"
	"github.com/use-agent/stealthshot/styles"
	"github.com/ysmood/gson"
)

// Capture renders req.URL at req.Viewport and writes the screenshot and HTML
// snapshot into req.OutputDir. It never returns an error: failures are
// reported through CaptureResult.Success and CaptureResult.Error.
func (c *Capturer) Capture(ctx context.Context, req *models.CaptureRequest) *models.CaptureResult {
	start := time.Now()
	result, err := c.capture(ctx, req)
	if err != nil {
		slog.Warn("capture failed",
			"url", req.URL,
			"viewport", req.Viewport.String(),
			"error", err,
		)
		result = &models.CaptureResult{
			Success:  false,
			URL:      req.URL,
			Viewport: req.Viewport,
			Error:    err.Error(),
		}
	}
	result.DurationMs = time.Since(start).Milliseconds()
	return result
}

// CaptureAll captures rawURL once per preset viewport, sequentially, so only
// one page renders at a time and the timing stays human-plausible.
func (c *Capturer) CaptureAll(ctx context.Context, rawURL, outputDir string) []*models.CaptureResult {
	presets := models.ViewportPresets()
	results := make([]*models.CaptureResult, 0, len(presets))
	for _, vp := range presets {
		results = append(results, c.Capture(ctx, &models.CaptureRequest{
			URL:       rawURL,
			OutputDir: outputDir,
			Viewport:  vp,
		}))
	}
	return results
}

// capture contains the rod-based capture logic.
//
// Lifecycle (numbered steps match the inline comments):
//
//  1. Acquire page          – borrow a stealth tab from the pool
//  2. DEFER: cleanup        – about:blank + return to pool
//  3. Viewport              – device metrics for the requested size
//  4. Headers               – Google Referer
//  5. Tracker blocking      – optional, before navigation
//  6. Idle waiter           – registered before Navigate to see every request
//  7. Navigate + wait       – bounded by NavigationTimeout
//  8. Human-like dwell      – random delay in the configured window
//  9. Screenshot + HTML     – full page for desktop widths
//  10. Styles               – optional design summary of the live page
//  11. Artifacts            – stealth-<epoch_ms>.png / .html
func (c *Capturer) capture(ctx context.Context, req *models.CaptureRequest) (*models.CaptureResult, error) {
	if req.Viewport.Width <= 0 || req.Viewport.Height <= 0 {
		return nil, models.NewCaptureError(models.ErrCodeInvalidInput, "viewport must have positive dimensions", nil)
	}

	// ── 1. Acquire page from pool ─────────────────────────────────────
	c.activePages.Add(1)
	defer c.activePages.Add(-1)

	page, err := c.pagePool.Get(c.newPage)
	if err != nil {
		return nil, models.NewCaptureError(
			models.ErrCodeBrowserCrash,
			"failed to acquire page from pool",
			err,
		)
	}

	// ── 2. Cleanup: drop the DOM and return the tab ───────────────────
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		c.pagePool.Put(page)
	}()

	// ── 3. Viewport ───────────────────────────────────────────────────
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             req.Viewport.Width,
		Height:            req.Viewport.Height,
		DeviceScaleFactor: 1,
		Mobile:            req.Viewport.Mobile(),
	}); err != nil {
		return nil, models.NewCaptureError(models.ErrCodeBrowserCrash, "failed to set viewport", err)
	}

	// ── 4. Referer as if arriving from a search ──────────────────────
	if u, parseErr := url.Parse(req.URL); parseErr == nil {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: proto.NetworkHeaders{
				"Referer": gson.New("https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())),
			},
		}.Call(page)
	}

	// ── 5. Tracker blocking ───────────────────────────────────────────
	var router *rod.HijackRouter
	if c.captureCfg.BlockAds {
		router = blockTrackers(page)
		defer func() { _ = router.Stop() }()
	}

	// ── 6. Idle waiter, registered before navigation ──────────────────
	navCtx, navCancel := context.WithTimeout(ctx, c.navigationTimeout())
	defer navCancel()
	nav := page.Context(navCtx)

	// WaitRequestIdle uses the Fetch domain, which conflicts with the
	// hijack router. With tracker blocking on, fall back to DOM stability.
	var waitIdle func()
	if router == nil {
		waitIdle = nav.WaitRequestIdle(500*time.Millisecond, nil, nil, nil)
	}

	// ── 7. Navigate + wait ────────────────────────────────────────────
	if err := nav.Navigate(req.URL); err != nil {
		return nil, categorizeError(err, "navigation to target URL failed")
	}
	if waitIdle != nil {
		waitIdle()
	} else if err := nav.WaitDOMStable(time.Second, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
	}
	if navCtx.Err() != nil && ctx.Err() == nil {
		// Idle never arrived within the navigation timeout. The page is
		// still usable; capture what rendered.
		slog.Debug("network idle not reached before navigation timeout", "url", req.URL)
	}

	// ── 8. Human-like dwell ───────────────────────────────────────────
	delay := c.pickDelay(req.ExtraDelay)
	slog.Debug("waiting before capture", "url", req.URL, "delay", delay.String())
	if err := sleepCtx(ctx, delay); err != nil {
		return nil, categorizeError(err, "capture canceled during delay")
	}

	// ── 9. Screenshot + HTML ──────────────────────────────────────────
	p := page.Context(ctx)
	png, err := p.Screenshot(req.Viewport.FullPage(), &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, categorizeError(err, "failed to take screenshot")
	}
	html, err := p.HTML()
	if err != nil {
		return nil, categorizeError(err, "failed to extract page HTML")
	}

	// ── 10. Styles ────────────────────────────────────────────────────
	var styleReport *models.StyleReport
	if req.AnalyzeStyles {
		if styleReport, err = styles.Analyze(pageEval{p}); err != nil {
			slog.Warn("style analysis failed", "url", req.URL, "error", err)
		}
	}

	// ── 11. Artifacts ─────────────────────────────────────────────────
	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = c.captureCfg.OutputDir
	}
	shotPath, htmlPath, err := writeArtifacts(outputDir, time.Now(), png, html)
	if err != nil {
		return nil, models.NewCaptureError(models.ErrCodeArtifactWrite, "failed to write capture artifacts", err)
	}

	slog.Info("screenshot saved",
		"url", req.URL,
		"viewport", req.Viewport.String(),
		"path", shotPath,
		"bytes", len(png),
	)

	return &models.CaptureResult{
		Success:        true,
		URL:            req.URL,
		Viewport:       req.Viewport,
		ScreenshotPath: shotPath,
		HTMLPath:       htmlPath,
		HTML:           html,
		Styles:         styleReport,
	}, nil
}

// pageEval runs style analysis scripts on a rod page.
type pageEval struct {
	page *rod.Page
}

func (e pageEval) EvalJSON(js string) ([]byte, error) {
	obj, err := e.page.Eval(js)
	if err != nil {
		return nil, err
	}
	return obj.Value.MarshalJSON()
}

func (c *Capturer) navigationTimeout() time.Duration {
	if c.captureCfg.NavigationTimeout > 0 {
		return c.captureCfg.NavigationTimeout
	}
	return 60 * time.Second
}

// categorizeError wraps raw errors into typed CaptureErrors so the API layer
// can map them to appropriate HTTP status codes.
func categorizeError(err error, msg string) *models.CaptureError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewCaptureError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewCaptureError(models.ErrCodeTimeout, "capture canceled", err)
	default:
		return models.NewCaptureError(models.ErrCodeNavigation, msg, err)
	}
}
