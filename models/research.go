package models

// ResearchRequest is the payload for POST /api/v1/capture and the input of
// research.Runner.
type ResearchRequest struct {
	// URL is the target page. Required.
	URL string `json:"url" binding:"required,url"`

	// OutputDir overrides the configured artifact directory. Over the API it
	// must be inside that directory.
	OutputDir string `json:"output_dir,omitempty"`

	// Viewport restricts capture to one preset ("desktop", "mobile",
	// "tablet"). Default: all three presets.
	Viewport string `json:"viewport,omitempty" binding:"omitempty,oneof=desktop mobile tablet"`

	// MaxRetries is how many extra captures a blocked viewport gets.
	// Default: the configured value.
	MaxRetries *int `json:"max_retries,omitempty" binding:"omitempty,min=0,max=5"`

	// Probe runs a plain HTTP preflight before launching the browser.
	Probe bool `json:"probe,omitempty"`

	// ExtractContent attaches the Markdown main content of the first
	// unblocked capture to the report.
	ExtractContent bool `json:"extract_content,omitempty"`

	// AnalyzeStyles attaches a design summary to every successful capture.
	AnalyzeStyles bool `json:"analyze_styles,omitempty"`

	// WebhookURL makes the request asynchronous; the finished report is
	// delivered as a capture.completed event.
	WebhookURL    string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// Attempt is one capture of one viewport plus its evaluation.
type Attempt struct {
	Capture CaptureResult `json:"capture"`

	// Verdict and Page are nil when the capture failed.
	Verdict *Verdict  `json:"verdict,omitempty"`
	Page    *PageInfo `json:"page,omitempty"`
}

// ViewportReport collects every attempt made for one viewport.
type ViewportReport struct {
	Viewport Viewport  `json:"viewport"`
	Attempts []Attempt `json:"attempts"`
}

// Last returns the final attempt, or nil if none was made.
func (r *ViewportReport) Last() *Attempt {
	if len(r.Attempts) == 0 {
		return nil
	}
	return &r.Attempts[len(r.Attempts)-1]
}

// Succeeded reports whether the final attempt captured successfully.
func (r *ViewportReport) Succeeded() bool {
	last := r.Last()
	return last != nil && last.Capture.Success
}

// Blocked reports whether the final attempt was judged blocked.
func (r *ViewportReport) Blocked() bool {
	last := r.Last()
	return last != nil && last.Verdict != nil && last.Verdict.Blocked()
}

// ProbeReport is the outcome of the HTTP preflight. Title comes from the
// raw response, before any script could rewrite it.
type ProbeReport struct {
	Success    bool         `json:"success"`
	URL        string       `json:"url"`
	FinalURL   string       `json:"final_url,omitempty"`
	StatusCode int          `json:"status_code,omitempty"`
	Title      string       `json:"title,omitempty"`
	Verdict    *Verdict     `json:"verdict,omitempty"`
	Page       *PageInfo    `json:"page,omitempty"`
	Error      *ErrorDetail `json:"error,omitempty"`
}

// ResearchReport is the output of one research run.
type ResearchReport struct {
	URL          string           `json:"url"`
	Probe        *ProbeReport     `json:"probe,omitempty"`
	Viewports    []ViewportReport `json:"viewports"`
	Content      *Content         `json:"content,omitempty"`
	AllSucceeded bool             `json:"all_succeeded"`
	AnyBlocked   bool             `json:"any_blocked"`
	DurationMs   int64            `json:"duration_ms"`
}
