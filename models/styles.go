package models

// StyleReport summarizes the visual design of a rendered page.
type StyleReport struct {
	// CustomProperties are CSS custom properties (design tokens), sorted,
	// capped at 50. CustomPropertyCount is the total before the cap.
	CustomProperties    []string `json:"custom_properties"`
	CustomPropertyCount int      `json:"custom_property_count"`

	// Colors are distinct computed colors of key elements, in document order.
	Colors []string `json:"colors"`

	// Typography covers the first three headings and the body.
	Typography []FontStyle `json:"typography"`

	// Technologies are detected frameworks and libraries.
	Technologies []string `json:"technologies"`

	// Spacing are distinct margins, paddings and gaps, smallest first.
	Spacing []string `json:"spacing"`
}

// FontStyle is the computed typography of one element.
type FontStyle struct {
	Tag           string `json:"tag"`
	Family        string `json:"family"`
	Size          string `json:"size"`
	Weight        string `json:"weight"`
	LineHeight    string `json:"line_height"`
	LetterSpacing string `json:"letter_spacing"`
}
