// Package browser describes the browser session the link harvester drives.
// Selectors that start with "/" are XPath expressions; anything else is a
// CSS selector.
package browser

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrLoadMoreMissing is returned by ClickLoadMore when no load-more control
// exists on the page.
var ErrLoadMoreMissing = errors.New("load-more control not present")

// Browser is a single-tab browser session.
type Browser interface {
	// Navigate loads url and waits for the document body.
	Navigate(ctx context.Context, url string) error
	// WaitClickable waits up to timeout for selector to be visible and enabled.
	WaitClickable(ctx context.Context, selector string, timeout time.Duration) error
	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error
	// WaitInvisible waits up to timeout for selector to disappear.
	WaitInvisible(ctx context.Context, selector string, timeout time.Duration) error
	// CountLoadMore counts the elements matching the load-more selector.
	CountLoadMore(ctx context.Context, selector string) (int, error)
	// ClickLoadMore waits up to wait for the load-more control and clicks it
	// through the DOM, which also works while an overlay covers it.
	ClickLoadMore(ctx context.Context, selector string, wait time.Duration) error
	// ScrollToBottom scrolls the window to the end of the document.
	ScrollToBottom(ctx context.Context) error
	// Reload reloads the current page.
	Reload(ctx context.Context) error
	// HTML returns the outer HTML of the current document.
	HTML(ctx context.Context) (string, error)
	// Close ends the session and releases the browser process.
	Close() error
}

// IsXPath reports whether selector should be evaluated as XPath.
func IsXPath(selector string) bool {
	s := strings.TrimSpace(selector)
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "(")
}
