package models

import "encoding/json"

// Verdict is the outcome of one block-detection evaluation.
//
// The four indicator flags are the only inputs to Blocked. Reasons is
// diagnostic metadata, recorded in the order the checks ran.
type Verdict struct {
	Cloudflare bool
	Captcha    bool
	Empty      bool
	Corrupted  bool
	Reasons    []string
}

// Blocked reports whether any indicator fired.
func (v *Verdict) Blocked() bool {
	return v.Cloudflare || v.Captcha || v.Empty || v.Corrupted
}

// AddReason appends a human-readable reason.
func (v *Verdict) AddReason(reason string) {
	v.Reasons = append(v.Reasons, reason)
}

// verdictJSON is the wire shape of a Verdict. Keys are stable.
type verdictJSON struct {
	Blocked    bool     `json:"blocked"`
	Cloudflare bool     `json:"cloudflare"`
	Captcha    bool     `json:"captcha"`
	Empty      bool     `json:"empty"`
	Corrupted  bool     `json:"corrupted"`
	Reasons    []string `json:"reasons"`
}

// MarshalJSON emits the derived blocked flag alongside the indicators.
func (v Verdict) MarshalJSON() ([]byte, error) {
	reasons := v.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	return json.Marshal(verdictJSON{
		Blocked:    v.Blocked(),
		Cloudflare: v.Cloudflare,
		Captcha:    v.Captcha,
		Empty:      v.Empty,
		Corrupted:  v.Corrupted,
		Reasons:    reasons,
	})
}

// UnmarshalJSON restores the indicators. The blocked key is ignored since it
// is always derived from them.
func (v *Verdict) UnmarshalJSON(data []byte) error {
	var w verdictJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*v = Verdict{
		Cloudflare: w.Cloudflare,
		Captcha:    w.Captcha,
		Empty:      w.Empty,
		Corrupted:  w.Corrupted,
		Reasons:    w.Reasons,
	}
	return nil
}

// PageInfo holds page diagnostics reported next to a verdict. It never
// influences the verdict itself.
type PageInfo struct {
	Title            string   `json:"title,omitempty"`
	TextLength       int      `json:"text_length"`
	ChallengeWidgets []string `json:"challenge_widgets,omitempty"`
}
