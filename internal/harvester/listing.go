package harvester

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/sbnation-corpus/internal/corpus"
)

// Selectors locate archive entries and pagination controls.
type Selectors struct {
	Entry      string
	TitleLink  string
	Byline     string
	BylineItem string
	Consent    string
	LoadMore   string
}

// DefaultSelectors matches the SB Nation archive markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Entry:      "div.c-entry-box--compact__body",
		TitleLink:  "h2.c-entry-box--compact__title a",
		Byline:     "div.c-byline",
		BylineItem: "span.c-byline__item",
		Consent:    `//*[@id="accept-privacy-consent"]/div`,
		LoadMore:   ".c-archives-load-more__button",
	}
}

var urlDatePattern = regexp.MustCompile(`/(\d{4})/(\d{1,2})/(\d{1,2})/`)

// Listing is the result of parsing one archive page.
type Listing struct {
	Infos []corpus.ArticleInfo
	// Skipped counts entries without a title, url, or recoverable date.
	Skipped int
	// WithByline counts entries whose author and date came from the byline.
	WithByline int
}

// ParseListing extracts every archive entry from html. Entries with a
// two-item byline take their author and date from it; the rest take the date
// from the URL path and an unknown author.
func ParseListing(html string, sel Selectors) (Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Listing{}, fmt.Errorf("parse listing html: %w", err)
	}

	var out Listing
	doc.Find(sel.Entry).Each(func(_ int, entry *goquery.Selection) {
		link := entry.Find(sel.TitleLink).First()
		title := link.Text()
		href, ok := link.Attr("href")
		if link.Length() == 0 || title == "" || !ok || href == "" {
			out.Skipped++
			return
		}

		if author, date, ok := fromByline(entry, sel); ok {
			out.WithByline++
			out.Infos = append(out.Infos, corpus.ArticleInfo{Date: date, Title: title, URL: href, Author: author})
			return
		}

		date, ok := DateFromURL(href)
		if !ok {
			out.Skipped++
			return
		}
		out.Infos = append(out.Infos, corpus.ArticleInfo{
			Date:   date,
			Title:  title,
			URL:    href,
			Author: corpus.UnknownAuthor,
		})
	})
	return out, nil
}

func fromByline(entry *goquery.Selection, sel Selectors) (string, string, bool) {
	byline := entry.Find(sel.Byline).First()
	if byline.Length() == 0 {
		return "", "", false
	}
	items := byline.Find(sel.BylineItem)
	if items.Length() != 2 {
		return "", "", false
	}
	author := items.Eq(0).Find("a").First().Text()
	date, ok := items.Eq(1).Find("time").First().Attr("datetime")
	if author == "" || !ok || date == "" {
		return "", "", false
	}
	return author, date, true
}

// DateFromURL recovers a midnight-UTC date from a /YYYY/M/D/ path segment.
func DateFromURL(rawURL string) (string, bool) {
	m := urlDatePattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}
	return corpus.FormatDate(year, month, day), true
}
