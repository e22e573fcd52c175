package models

// DetectRequest is the JSON payload for POST /api/v1/detect.
//
// Paths are resolved on the server host, relative to the capture output
// directory, and may not leave it. At least one of ScreenshotPath,
// HTML or HTMLPath should be set; a request with none of them evaluates to
// an empty, unblocked verdict.
type DetectRequest struct {
	// ScreenshotPath points to a PNG/JPEG/WebP screenshot.
	ScreenshotPath string `json:"screenshot_path,omitempty"`

	// HTML is the rendered document. Takes precedence over HTMLPath.
	HTML string `json:"html,omitempty"`

	// HTMLPath points to a file holding the rendered document.
	HTMLPath string `json:"html_path,omitempty"`
}

// BatchDetectRequest is the payload for POST /api/v1/detect/batch.
type BatchDetectRequest struct {
	Items []DetectRequest `json:"items" binding:"required,min=1,max=100"`
}

// ProbeRequest is the payload for POST /api/v1/probe.
type ProbeRequest struct {
	// URL is the page to fetch. Required.
	URL string `json:"url" binding:"required,url"`

	// Headers are added to the preflight request.
	Headers map[string]string `json:"headers,omitempty"`
}
