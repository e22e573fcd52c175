// Package cleaner renders the readable part of a captured page as Markdown.
package cleaner

import (
	"log/slog"
	nurl "net/url"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	readability "github.com/go-shiori/go-readability"
	"github.com/use-agent/stealthshot/models"
)

// minArticleRunes is the least article text readability must find for its
// output to count as the page's main content.
const minArticleRunes = 50

// Cleaner converts HTML snapshots. It is safe for concurrent use.
type Cleaner struct {
	conv *converter.Converter
}

// NewCleaner builds a Cleaner. The base plugin drops script, style, iframe
// and noscript; tables keep minimal cell padding.
func NewCleaner() *Cleaner {
	return &Cleaner{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(
					table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
				),
			),
		),
	}
}

// Convert extracts the main content of rawHTML with readability and renders
// it as Markdown, resolving relative links against sourceURL. When there is
// no article block the whole document is converted and MainContent is
// false.
func (c *Cleaner) Convert(rawHTML, sourceURL string) (*models.Content, error) {
	u, err := nurl.Parse(sourceURL)
	if err != nil || u.Host == "" {
		return nil, models.NewCaptureError(models.ErrCodeInvalidInput, "invalid source URL: "+sourceURL, err)
	}

	out := &models.Content{}
	body := rawHTML
	article, err := readability.FromReader(strings.NewReader(rawHTML), u)
	switch {
	case err != nil:
		slog.Debug("readability failed, converting whole document", "url", sourceURL, "error", err)
	case utf8.RuneCountInString(strings.TrimSpace(article.TextContent)) < minArticleRunes:
		slog.Debug("no main content block, converting whole document", "url", sourceURL)
		out.Title = article.Title
	default:
		body = article.Content
		out.Title = article.Title
		out.Byline = article.Byline
		out.Excerpt = article.Excerpt
		out.MainContent = true
	}

	md, err := c.conv.ConvertString(body, converter.WithDomain(sourceURL))
	if err != nil {
		return nil, models.NewCaptureError(models.ErrCodeInternal, "markdown conversion failed", err)
	}
	out.Markdown = strings.TrimSpace(md)
	return out, nil
}
