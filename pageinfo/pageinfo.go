// Package pageinfo extracts diagnostics from rendered HTML: the title, the
// amount of visible text and any anti-bot challenge widgets present.
//
// Diagnostics are informational. They are reported beside a block verdict
// and never change it.
package pageinfo

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/stealthshot/models"
)

// widget pairs a challenge vendor with the selector that finds its markup.
type widget struct {
	name string
	sel  cascadia.Selector
}

// challengeWidgets are compiled once at start-up.
var challengeWidgets = []widget{
	{"cloudflare-turnstile", cascadia.MustCompile(`.cf-turnstile, iframe[src*="challenges.cloudflare.com"]`)},
	{"cloudflare-challenge-form", cascadia.MustCompile(`#challenge-form, #challenge-running, #cf-challenge-running, form[action*="__cf_chl"]`)},
	{"recaptcha", cascadia.MustCompile(`.g-recaptcha, iframe[src*="google.com/recaptcha"], script[src*="recaptcha/api.js"]`)},
	{"hcaptcha", cascadia.MustCompile(`.h-captcha, iframe[src*="hcaptcha.com"], script[src*="hcaptcha.com"]`)},
	{"datadome", cascadia.MustCompile(`iframe[src*="captcha-delivery.com"], script[src*="datadome"]`)},
	{"perimeterx", cascadia.MustCompile(`#px-captcha, script[src*="perimeterx"]`)},
}

// Inspect parses html and returns its diagnostics. Empty or unparsable
// input yields a zero PageInfo.
func Inspect(html string) *models.PageInfo {
	info := &models.PageInfo{}
	if strings.TrimSpace(html) == "" {
		return info
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return info
	}

	info.Title = strings.TrimSpace(doc.Find("title").First().Text())

	body := doc.Find("body").Clone()
	body.Find("script, style, noscript, template").Remove()
	info.TextLength = utf8.RuneCountInString(strings.Join(strings.Fields(body.Text()), " "))

	for _, w := range challengeWidgets {
		if doc.FindMatcher(w.sel).Length() > 0 {
			info.ChallengeWidgets = append(info.ChallengeWidgets, w.name)
		}
	}
	return info
}
