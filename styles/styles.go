// Package styles extracts a design summary from a rendered page: CSS custom
// properties, a color palette, typography, detected frameworks and the
// spacing scale.
//
// The page-side script only collects raw values; filtering, ordering and
// caps are applied here so they do not depend on the browser.
package styles

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/use-agent/stealthshot/models"
)

const (
	maxCustomProperties = 50
	maxColors           = 20
	maxSpacing          = 20
)

// Evaluator runs a JavaScript function expression in a page and returns its
// result encoded as JSON.
type Evaluator interface {
	EvalJSON(js string) ([]byte, error)
}

// technologies lists detectable frameworks in report order.
var technologies = []string{
	"react", "vue", "angular", "svelte", "nextjs", "nuxt", "gatsby", "astro",
	"tailwind", "bootstrap", "material-ui", "framer-motion", "gsap",
}

// raw is what analysisScript returns.
type raw struct {
	CustomProperties []string           `json:"customProperties"`
	Colors           []string           `json:"colors"`
	Typography       []models.FontStyle `json:"typography"`
	Technologies     map[string]bool    `json:"technologies"`
	Spacing          []string           `json:"spacing"`
}

// Analyze runs the analysis script through ev and normalizes the result.
func Analyze(ev Evaluator) (*models.StyleReport, error) {
	data, err := ev.EvalJSON(analysisScript)
	if err != nil {
		return nil, fmt.Errorf("styles: evaluate: %w", err)
	}
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("styles: decode: %w", err)
	}
	return normalize(&r), nil
}

func normalize(r *raw) *models.StyleReport {
	props := distinct(r.CustomProperties, nil)
	sort.Strings(props)

	rep := &models.StyleReport{
		CustomProperties:    capped(props, maxCustomProperties),
		CustomPropertyCount: len(props),
		Colors: capped(distinct(r.Colors, func(c string) bool {
			return c != "transparent" && c != "rgba(0, 0, 0, 0)"
		}), maxColors),
		Typography:   r.Typography,
		Technologies: []string{},
	}
	if rep.Typography == nil {
		rep.Typography = []models.FontStyle{}
	}
	for _, name := range technologies {
		if r.Technologies[name] {
			rep.Technologies = append(rep.Technologies, name)
		}
	}

	spacing := distinct(r.Spacing, func(v string) bool { return v != "0px" && v != "normal" })
	sort.SliceStable(spacing, func(i, j int) bool {
		a, aok := leadingFloat(spacing[i])
		b, bok := leadingFloat(spacing[j])
		if aok != bok {
			return aok
		}
		return aok && a < b
	})
	rep.Spacing = capped(spacing, maxSpacing)
	return rep
}

// distinct returns the non-empty values accepted by keep, first occurrence
// wins. The result is never nil.
func distinct(values []string, keep func(string) bool) []string {
	out := []string{}
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || (keep != nil && !keep(v)) {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func capped(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}

// leadingFloat parses the numeric prefix of a CSS length such as "16px".
func leadingFloat(s string) (float64, bool) {
	end := 0
	for end < len(s) && strings.ContainsRune("+-.0123456789", rune(s[end])) {
		end++
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	return f, err == nil
}

const analysisScript = `() => {
  const customProperties = [];
  for (const sheet of document.styleSheets) {
    let rules;
    try { rules = sheet.cssRules; } catch (e) { continue; }
    for (const rule of rules) {
      for (const m of (rule.cssText || '').matchAll(/--[\w-]+/g)) customProperties.push(m[0]);
    }
  }
  const rootStyles = getComputedStyle(document.documentElement);
  for (let i = 0; i < rootStyles.length; i++) {
    const prop = rootStyles[i];
    if (prop.startsWith('--')) customProperties.push(prop + ': ' + rootStyles.getPropertyValue(prop).trim());
  }

  const colors = [];
  document.querySelectorAll('body, header, nav, main, footer, h1, h2, h3, a, button, .btn, .button').forEach(el => {
    const s = getComputedStyle(el);
    colors.push(s.color, s.backgroundColor, s.borderColor);
  });

  const font = (tag, el) => {
    const s = getComputedStyle(el);
    return {tag: tag, family: s.fontFamily, size: s.fontSize, weight: s.fontWeight,
      line_height: s.lineHeight, letter_spacing: s.letterSpacing};
  };
  const typography = Array.from(document.querySelectorAll('h1, h2, h3, h4, h5, h6'))
    .slice(0, 3).map(h => font(h.tagName, h));
  if (document.body) typography.push(font('BODY', document.body));

  const q = sel => !!document.querySelector(sel);
  const technologies = {
    'react': q('[data-reactroot], [data-reactid], #root, #__next'),
    'vue': !!window.Vue || q('[data-v-app]'),
    'angular': !!window.ng || q('[ng-version]'),
    'svelte': q('[class*="svelte-"]'),
    'nextjs': !!window.__NEXT_DATA__,
    'nuxt': !!window.__NUXT__,
    'gatsby': !!window.___gatsby,
    'astro': q('[data-astro-cid]'),
    'tailwind': q('[class*="flex"], [class*="grid"]') && q('link[href*="tailwind"]'),
    'bootstrap': q('[class*="col-"], [class*="container"]') || q('link[href*="bootstrap"]'),
    'material-ui': q('[class*="Mui"], [class*="makeStyles"]'),
    'framer-motion': !!window.MotionGlobalConfig,
    'gsap': !!window.gsap,
  };

  const spacing = [];
  Array.from(document.querySelectorAll('section, div, article, header, footer, nav')).slice(0, 50).forEach(el => {
    const s = getComputedStyle(el);
    spacing.push(s.marginTop, s.marginBottom, s.paddingTop, s.paddingBottom, s.gap);
  });

  return {customProperties, colors, typography, technologies, spacing};
}`
