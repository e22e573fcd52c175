// Package research runs the capture-evaluate-retry loop for one URL and
// assembles a report.
package research

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/use-agent/stealthshot/config"
	"github.com/use-agent/stealthshot/models"
	"github.com/use-agent/stealthshot/pageinfo"
	"github.com/use-agent/stealthshot/probe"
)

// Capturer takes one screenshot. *capture.Capturer satisfies it.
type Capturer interface {
	Capture(ctx context.Context, req *models.CaptureRequest) *models.CaptureResult
}

// Evaluator judges captured artifacts. *detect.Detector satisfies it.
type Evaluator interface {
	EvaluateContext(ctx context.Context, screenshotPath, html string) *models.Verdict
}

// Prober fetches a page without a browser. *probe.Fetcher satisfies it.
type Prober interface {
	Fetch(ctx context.Context, rawURL string, headers map[string]string) (*probe.Result, error)
}

// Converter renders HTML as Markdown. *cleaner.Cleaner satisfies it.
type Converter interface {
	Convert(rawHTML, sourceURL string) (*models.Content, error)
}

// Runner orchestrates captures for research requests.
type Runner struct {
	capturer  Capturer
	evaluator Evaluator
	prober    Prober
	converter Converter
	memory    *BlockMemory
	cfg       config.CaptureConfig
}

// NewRunner wires a Runner. prober and converter may be nil, which disables
// the probe and content extraction respectively.
func NewRunner(capturer Capturer, evaluator Evaluator, prober Prober, converter Converter, cfg config.CaptureConfig) *Runner {
	return &Runner{
		capturer:  capturer,
		evaluator: evaluator,
		prober:    prober,
		converter: converter,
		cfg:       cfg,
	}
}

// WithMemory makes the runner start captures of a host at the retry step
// that last got through. It returns r.
func (r *Runner) WithMemory(m *BlockMemory) *Runner {
	r.memory = m
	return r
}

// Run captures req.URL at each requested viewport, evaluates every capture
// and retries failed or blocked ones. The only error is invalid input;
// capture failures are recorded in the report.
func (r *Runner) Run(ctx context.Context, req *models.ResearchRequest) (*models.ResearchReport, error) {
	start := time.Now()

	u, err := validateURL(req.URL)
	if err != nil {
		return nil, err
	}
	viewports, err := r.viewports(req.Viewport)
	if err != nil {
		return nil, err
	}

	retries := r.cfg.MaxRetries
	if req.MaxRetries != nil {
		retries = *req.MaxRetries
	}
	if retries < 0 {
		retries = 0
	}
	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = r.cfg.OutputDir
	}

	report := &models.ResearchReport{
		URL:       req.URL,
		Viewports: make([]models.ViewportReport, 0, len(viewports)),
	}

	if req.Probe && r.prober != nil {
		report.Probe = r.Probe(ctx, req.URL, nil)
	}

	var contentHTML string
	for _, vp := range viewports {
		if ctx.Err() != nil {
			break
		}
		vr := r.captureViewport(ctx, models.CaptureRequest{
			URL:           req.URL,
			OutputDir:     outputDir,
			Viewport:      vp,
			AnalyzeStyles: req.AnalyzeStyles,
		}, u.Hostname(), retries)
		if contentHTML == "" && vr.Succeeded() && !vr.Blocked() {
			contentHTML = vr.Last().Capture.HTML
		}
		report.Viewports = append(report.Viewports, vr)
	}

	if req.ExtractContent && r.converter != nil && contentHTML != "" {
		content, err := r.converter.Convert(contentHTML, req.URL)
		if err != nil {
			slog.Warn("content extraction failed", "url", req.URL, "error", err)
		} else {
			if !content.MainContent {
				// Passed every block check but has no article body.
				slog.Info("no main content in unblocked capture", "url", req.URL)
			}
			report.Content = content
		}
	}

	report.AllSucceeded = len(report.Viewports) == len(viewports)
	for i := range report.Viewports {
		vr := &report.Viewports[i]
		if !vr.Succeeded() {
			report.AllSucceeded = false
		}
		if vr.Blocked() {
			report.AnyBlocked = true
		}
	}
	report.DurationMs = time.Since(start).Milliseconds()

	slog.Info("research finished",
		"url", req.URL,
		"viewports", len(report.Viewports),
		"all_succeeded", report.AllSucceeded,
		"any_blocked", report.AnyBlocked,
		"duration_ms", report.DurationMs,
	)
	return report, nil
}

// captureViewport makes up to 1+retries attempts. Each retry widens the
// dwell by RetryDelayStep, starting from the step remembered for host.
func (r *Runner) captureViewport(ctx context.Context, creq models.CaptureRequest, host string, retries int) models.ViewportReport {
	vr := models.ViewportReport{Viewport: creq.Viewport}

	base := 0
	if r.memory != nil {
		base = r.memory.Step(host)
	}

	for attempt := 0; attempt <= retries; attempt++ {
		step := base + attempt
		attemptReq := creq
		attemptReq.ExtraDelay = time.Duration(step) * r.cfg.RetryDelayStep
		res := r.capturer.Capture(ctx, &attemptReq)

		a := models.Attempt{Capture: *res}
		if res.Success {
			a.Verdict = r.evaluator.EvaluateContext(ctx, res.ScreenshotPath, res.HTML)
			a.Page = pageinfo.Inspect(res.HTML)
		}
		vr.Attempts = append(vr.Attempts, a)

		if res.Success && !a.Verdict.Blocked() {
			if r.memory != nil {
				r.memory.Remember(host, step)
			}
			break
		}
		if ctx.Err() != nil {
			break
		}
		if attempt < retries {
			slog.Info("retrying capture",
				"url", creq.URL,
				"viewport", creq.Viewport.String(),
				"attempt", attempt+2,
				"success", res.Success,
				"reasons", reasonsOf(a.Verdict),
			)
		}
	}
	return vr
}

// Probe fetches rawURL over plain HTTP and evaluates the HTML alone.
func (r *Runner) Probe(ctx context.Context, rawURL string, headers map[string]string) *models.ProbeReport {
	pr := &models.ProbeReport{URL: rawURL}
	if r.prober == nil {
		pr.Error = &models.ErrorDetail{Code: models.ErrCodeProbeFailed, Message: "probe is not configured"}
		return pr
	}

	res, err := r.prober.Fetch(ctx, rawURL, headers)
	if err != nil {
		slog.Warn("probe failed", "url", rawURL, "error", err)
		pr.Error = models.NewCaptureError(models.ErrCodeProbeFailed, err.Error(), err).ToDetail()
		return pr
	}

	pr.Success = true
	pr.FinalURL = res.FinalURL
	pr.StatusCode = res.StatusCode
	pr.Title = res.Title
	pr.Verdict = r.evaluator.EvaluateContext(ctx, "", res.HTML)
	pr.Page = pageinfo.Inspect(res.HTML)
	return pr
}

func (r *Runner) viewports(name string) ([]models.Viewport, error) {
	if name == "" {
		return models.ViewportPresets(), nil
	}
	vp, ok := models.LookupViewport(name)
	if !ok {
		return nil, models.NewCaptureError(models.ErrCodeInvalidInput, "unknown viewport: "+name, nil)
	}
	return []models.Viewport{vp}, nil
}

func validateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, models.NewCaptureError(models.ErrCodeInvalidInput, "invalid URL", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, models.NewCaptureError(models.ErrCodeInvalidInput, "URL must be absolute http(s): "+raw, nil)
	}
	return u, nil
}

func reasonsOf(v *models.Verdict) []string {
	if v == nil {
		return nil
	}
	return v.Reasons
}
