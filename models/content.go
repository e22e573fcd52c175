package models

// Content is the readable text of a captured page rendered as Markdown.
type Content struct {
	Markdown string `json:"markdown"`
	Title    string `json:"title,omitempty"`
	Byline   string `json:"byline,omitempty"`
	Excerpt  string `json:"excerpt,omitempty"`

	// MainContent is false when no article block was found and the whole
	// document was converted instead. Challenge and interstitial pages
	// nearly always end up here, so it is a useful second opinion next to
	// the block verdict.
	MainContent bool `json:"main_content"`
}
