// Package chromedp drives a Chrome tab through the DevTools protocol.
package chromedp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/sbnation-corpus/internal/browser"
)

const defaultNavTimeout = 45 * time.Second

// Config controls the browser session.
type Config struct {
	Headless          bool
	UserAgent         string
	NavigationTimeout time.Duration
}

// Session implements browser.Browser with one long-lived tab.
type Session struct {
	cfg         Config
	logger      *zap.Logger
	allocCancel context.CancelFunc
	tab         context.Context
	tabCancel   context.CancelFunc

	startOnce sync.Once
	startErr  error
	closeOnce sync.Once
}

var _ browser.Browser = (*Session)(nil)

// New prepares a Chrome allocator and tab. Chrome itself starts lazily on the
// first action.
func New(cfg Config, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavTimeout
	}

	headless := chromedp.Flag("headless", "new")
	if !cfg.Headless {
		headless = chromedp.Flag("headless", false)
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		headless,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tab, tabCancel := chromedp.NewContext(allocCtx)

	return &Session{
		cfg:         cfg,
		logger:      logger,
		allocCancel: allocCancel,
		tab:         tab,
		tabCancel:   tabCancel,
	}
}

// start launches Chrome on the tab context itself; a first Run on a derived
// context with a deadline would tie the browser's lifetime to that deadline.
func (s *Session) start() error {
	s.startOnce.Do(func() {
		if err := chromedp.Run(s.tab, s.setupAction()); err != nil {
			s.startErr = fmt.Errorf("start chrome: %w", err)
			return
		}
		s.logger.Debug("chrome session started", zap.Bool("headless", s.cfg.Headless))
	})
	return s.startErr
}

func (s *Session) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if s.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(s.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// run executes actions on the tab, bounded by timeout and by ctx.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.start(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = s.cfg.NavigationTimeout
	}
	runCtx, cancel := context.WithTimeout(s.tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// Navigate loads url and waits for the body.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, s.cfg.NavigationTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// WaitClickable waits for selector to be visible and enabled.
func (s *Session) WaitClickable(ctx context.Context, selector string, timeout time.Duration) error {
	by := queryOption(selector)
	if err := s.run(ctx, timeout,
		chromedp.WaitVisible(selector, by),
		chromedp.WaitEnabled(selector, by),
	); err != nil {
		return fmt.Errorf("wait clickable %s: %w", selector, err)
	}
	return nil
}

// Click clicks the first visible element matching selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	if err := s.run(ctx, s.cfg.NavigationTimeout,
		chromedp.Click(selector, queryOption(selector), chromedp.NodeVisible),
	); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// WaitInvisible waits until selector is absent or hidden.
func (s *Session) WaitInvisible(ctx context.Context, selector string, timeout time.Duration) error {
	var hidden bool
	if err := s.run(ctx, timeout,
		chromedp.Poll(invisibleExpr(selector), &hidden, chromedp.WithPollingTimeout(timeout)),
	); err != nil {
		return fmt.Errorf("wait invisible %s: %w", selector, err)
	}
	return nil
}

// CountLoadMore counts the elements matching selector.
func (s *Session) CountLoadMore(ctx context.Context, selector string) (int, error) {
	var n int
	if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Evaluate(countExpr(selector), &n)); err != nil {
		return 0, fmt.Errorf("count %s: %w", selector, err)
	}
	return n, nil
}

// ClickLoadMore waits up to wait for the control to show, then clicks it from
// script.
func (s *Session) ClickLoadMore(ctx context.Context, selector string, wait time.Duration) error {
	if err := s.run(ctx, wait, chromedp.WaitVisible(selector, queryOption(selector))); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if n, countErr := s.CountLoadMore(ctx, selector); countErr == nil && n == 0 {
			return browser.ErrLoadMoreMissing
		}
		return fmt.Errorf("wait for load-more: %w", err)
	}
	var clicked bool
	if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Evaluate(clickExpr(selector), &clicked)); err != nil {
		return fmt.Errorf("click load-more: %w", err)
	}
	if !clicked {
		return browser.ErrLoadMoreMissing
	}
	return nil
}

// ScrollToBottom scrolls the window to the end of the document.
func (s *Session) ScrollToBottom(ctx context.Context) error {
	var ok bool
	if err := s.run(ctx, s.cfg.NavigationTimeout,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight); true`, &ok),
	); err != nil {
		return fmt.Errorf("scroll to bottom: %w", err)
	}
	return nil
}

// Reload reloads the current page and waits for the body.
func (s *Session) Reload(ctx context.Context) error {
	if err := s.run(ctx, s.cfg.NavigationTimeout,
		chromedp.Reload(),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}

// HTML returns the current document markup.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return html, nil
}

// Close shuts the tab and the browser process.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.startErr == nil {
			err = chromedp.Cancel(s.tab)
		}
		s.tabCancel()
		s.allocCancel()
	})
	if err != nil {
		return fmt.Errorf("close chrome: %w", err)
	}
	return nil
}

func queryOption(selector string) chromedp.QueryOption {
	if browser.IsXPath(selector) {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func jsString(s string) string {
	b, _ := json.Marshal(s) //nolint:errchkjson // strings always marshal
	return string(b)
}

// findExpr evaluates to the first element matching selector, or null.
func findExpr(selector string) string {
	if browser.IsXPath(selector) {
		return fmt.Sprintf(
			"document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue",
			jsString(selector),
		)
	}
	return fmt.Sprintf("document.querySelector(%s)", jsString(selector))
}

func countExpr(selector string) string {
	if browser.IsXPath(selector) {
		return fmt.Sprintf(
			"document.evaluate(%s, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null).snapshotLength",
			jsString(selector),
		)
	}
	return fmt.Sprintf("document.querySelectorAll(%s).length", jsString(selector))
}

func clickExpr(selector string) string {
	return fmt.Sprintf(`(function() {
	const el = %s;
	if (!el) { return false; }
	el.click();
	return true;
})()`, findExpr(selector))
}

func invisibleExpr(selector string) string {
	return fmt.Sprintf(`(function() {
	const el = %s;
	if (!el) { return true; }
	const style = window.getComputedStyle(el);
	const rect = el.getBoundingClientRect();
	return style.display === "none" || style.visibility === "hidden" || (rect.width === 0 && rect.height === 0);
})()`, findExpr(selector))
}
