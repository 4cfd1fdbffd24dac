// Package extract pulls the summary, byline and body out of an article page.
package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/JakeFAU/sbnation-corpus/internal/corpus"
)

// Reason explains why a page could not be turned into an article.
type Reason string

// Extraction failure reasons.
const (
	ReasonNone          Reason = ""
	ReasonUnparseable   Reason = "unparseable"
	ReasonMissingBody   Reason = "missing_body"
	ReasonMissingAuthor Reason = "missing_author"
)

// Selectors locate the parts of an article page.
type Selectors struct {
	Hero    string
	Summary string
	Author  string
	Body    string
}

// DefaultSelectors matches SB Nation article markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Hero:    "div.c-entry-hero",
		Summary: "h2.c-entry-summary",
		Author:  "span.c-byline__author-name",
		Body:    "div.c-entry-content",
	}
}

// Result is the outcome of parsing one page. A non-empty Reason means the
// page yielded no article.
type Result struct {
	Summary string
	Author  string
	Body    string
	// SummaryMissing is informational; a missing summary still yields an article.
	SummaryMissing bool
	// UsedReadability is set when the body came from the readability fallback.
	UsedReadability bool
	Reason          Reason
}

// OK reports whether the page produced an article.
func (r Result) OK() bool {
	return r.Reason == ReasonNone
}

// Extractor parses article pages with configurable selectors.
type Extractor struct {
	sel      Selectors
	fallback bool
}

// New builds an Extractor. With readabilityFallback set, a page without the
// body selector falls back to readability's main-content detection.
func New(sel Selectors, readabilityFallback bool) *Extractor {
	def := DefaultSelectors()
	if sel.Hero == "" {
		sel.Hero = def.Hero
	}
	if sel.Summary == "" {
		sel.Summary = def.Summary
	}
	if sel.Author == "" {
		sel.Author = def.Author
	}
	if sel.Body == "" {
		sel.Body = def.Body
	}
	return &Extractor{sel: sel, fallback: readabilityFallback}
}

// Parse extracts with the default selectors and no fallback.
func Parse(html, pageURL, authorHint string) Result {
	return New(DefaultSelectors(), false).Parse(html, pageURL, authorHint)
}

// Parse extracts summary, author and body from html. authorHint is the
// author harvested from the listing; when it is "unknown" the page byline
// supplies the author instead.
func (e *Extractor) Parse(html, pageURL, authorHint string) Result {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Result{Reason: ReasonUnparseable}
	}

	var res Result
	hero := doc.Find(e.sel.Hero).First()

	summary := hero.Find(e.sel.Summary).First()
	if summary.Length() == 0 {
		res.SummaryMissing = true
	} else {
		res.Summary = summary.Text()
	}

	res.Author = authorHint
	if !(corpus.ArticleInfo{Author: authorHint}).HasKnownAuthor() {
		author := hero.Find(e.sel.Author).First()
		if author.Length() == 0 {
			author = doc.Find(e.sel.Author).First()
		}
		if author.Length() == 0 || strings.TrimSpace(author.Text()) == "" {
			res.Reason = ReasonMissingAuthor
			return res
		}
		res.Author = author.Text()
	}

	body := doc.Find(e.sel.Body).First()
	if body.Length() > 0 {
		res.Body = body.Text()
		return res
	}
	if e.fallback {
		if text, ok := readabilityText(html, pageURL); ok {
			res.Body = text
			res.UsedReadability = true
			return res
		}
	}
	res.Reason = ReasonMissingBody
	return res
}

func readabilityText(html, pageURL string) (string, bool) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}
	article, err := readability.FromReader(strings.NewReader(html), parsedURL)
	if err != nil {
		return "", false
	}
	text := strings.TrimSpace(article.TextContent)
	return text, text != ""
}
