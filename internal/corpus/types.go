package corpus

import (
	"strconv"
	"strings"
	"time"
)

// UnknownAuthor marks listings that carried no byline.
const UnknownAuthor = "unknown"

// DateLayout is the timestamp format used for dates reconstructed from URLs.
const DateLayout = "2006-01-02T15:04:05+00:00"

// Key identifies an article within a store. It is derived from the article's
// date, title, and author and is written as a decimal string in JSON.
type Key uint64

// String renders the key the way it appears in a stored document.
func (k Key) String() string {
	return strconv.FormatUint(uint64(k), 10)
}

// ParseKey reverses Key.String.
func ParseKey(raw string) (Key, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, err
	}
	return Key(v), nil
}

// ArticleInfo is the metadata harvested from an archive listing.
type ArticleInfo struct {
	Date   string `json:"date"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	Author string `json:"author"`
}

// HasKnownAuthor reports whether the listing exposed a byline.
func (i ArticleInfo) HasKnownAuthor() bool {
	return i.Author != "" && i.Author != UnknownAuthor
}

// Info returns the listing itself, so listings and articles can be summarized alike.
func (i ArticleInfo) Info() ArticleInfo {
	return i
}

// Record is anything stored under an article key.
type Record interface {
	Info() ArticleInfo
}

// Article is an ArticleInfo plus the synthesized text content.
type Article struct {
	Date    string `json:"date"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Author  string `json:"author"`
	Content string `json:"content"`
}

// Info strips the content from an Article.
func (a Article) Info() ArticleInfo {
	return ArticleInfo{Date: a.Date, Title: a.Title, URL: a.URL, Author: a.Author}
}

// NewArticle builds an Article whose content is the title, summary, byline,
// and body joined by newlines.
func NewArticle(info ArticleInfo, author, summary, body string) Article {
	if author == "" {
		author = info.Author
	}
	return Article{
		Date:    info.Date,
		Title:   info.Title,
		URL:     info.URL,
		Author:  author,
		Content: BuildContent(info.Title, summary, author, body),
	}
}

// BuildContent synthesizes the stored content string.
func BuildContent(title, summary, author, body string) string {
	var b strings.Builder
	b.Grow(len(title) + len(summary) + len(author) + len(body) + 8)
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(summary)
	b.WriteString("\nBy ")
	b.WriteString(author)
	b.WriteString("\n")
	b.WriteString(body)
	return b.String()
}

// FormatDate renders a calendar day in DateLayout at midnight UTC.
func FormatDate(year, month, day int) string {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).Format(DateLayout)
}

// ParseDate accepts DateLayout as well as any RFC 3339 timestamp.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(DateLayout, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
