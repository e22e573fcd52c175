package models

import (
	"fmt"
	"strings"
	"time"
)

// Viewport is a named rendering size.
type Viewport struct {
	Name   string `json:"name,omitempty"`
	Width  int    `json:"width" binding:"omitempty,min=1"`
	Height int    `json:"height" binding:"omitempty,min=1"`
}

// String renders the viewport as "name (WxH)".
func (v Viewport) String() string {
	if v.Name == "" {
		return fmt.Sprintf("%dx%d", v.Width, v.Height)
	}
	return fmt.Sprintf("%s (%dx%d)", v.Name, v.Width, v.Height)
}

// FullPage reports whether screenshots at this viewport cover the whole
// scrollable page instead of just the visible area.
func (v Viewport) FullPage() bool {
	return v.Width >= 1920
}

// Mobile reports whether the viewport should be emulated as a touch device.
func (v Viewport) Mobile() bool {
	return v.Width < 800
}

// Preset viewports, in capture order.
var (
	ViewportDesktop = Viewport{Name: "desktop", Width: 1920, Height: 1080}
	ViewportMobile  = Viewport{Name: "mobile", Width: 390, Height: 844}
	ViewportTablet  = Viewport{Name: "tablet", Width: 1024, Height: 1366}
)

// ViewportPresets returns the preset viewports in capture order.
func ViewportPresets() []Viewport {
	return []Viewport{ViewportDesktop, ViewportMobile, ViewportTablet}
}

// LookupViewport resolves a preset by name (case-insensitive).
func LookupViewport(name string) (Viewport, bool) {
	for _, vp := range ViewportPresets() {
		if strings.EqualFold(vp.Name, name) {
			return vp, true
		}
	}
	return Viewport{}, false
}

// CaptureRequest asks the capture collaborator for one rendering.
type CaptureRequest struct {
	URL       string
	OutputDir string
	Viewport  Viewport

	// ExtraDelay is added to the human-like dwell (used on retries).
	ExtraDelay time.Duration

	// AnalyzeStyles attaches a StyleReport to the result.
	AnalyzeStyles bool
}

// CaptureResult is what the capture collaborator produces. On failure only
// URL, Viewport, Success and Error are meaningful.
type CaptureResult struct {
	Success        bool     `json:"success"`
	URL            string   `json:"url"`
	Viewport       Viewport `json:"viewport"`
	ScreenshotPath string   `json:"screenshot_path,omitempty"`
	HTMLPath       string   `json:"html_path,omitempty"`
	HTML           string   `json:"-"`
	DurationMs     int64    `json:"duration_ms"`
	Error          string   `json:"error,omitempty"`

	// Styles is set when requested and the analysis succeeded.
	Styles *StyleReport `json:"styles,omitempty"`
}
