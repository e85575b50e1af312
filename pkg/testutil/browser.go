// browser.go provides browser automation utilities for E2E testing.
// It wraps Rod to read what a real Chrome renders for the dashboard.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/thesyncim/nixbrowser/pkg/probe"
)

// BrowserConfig configures Chrome launch options.
type BrowserConfig struct {
	Headless bool          // Run in headless mode (default: true)
	Timeout  time.Duration // Default operation timeout (default: 30s)
}

// DefaultBrowserConfig returns sensible defaults for E2E testing.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Headless: true,
		Timeout:  30 * time.Second,
	}
}

// BrowserClient wraps a Rod-controlled Chrome.
type BrowserClient struct {
	browser *rod.Browser
	page    *rod.Page
	timeout time.Duration
}

var _ probe.PageReader = (*BrowserClient)(nil)

// NewBrowserClient launches Chrome and connects to it.
// The browser is configured with:
//   - No sandbox (for container compatibility)
//   - No GPU
func NewBrowserClient(cfg BrowserConfig) (*BrowserClient, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		Set("no-sandbox").
		Set("disable-gpu")

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch Chrome: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to Chrome: %w", err)
	}

	return &BrowserClient{
		browser: browser,
		timeout: cfg.Timeout,
	}, nil
}

// Navigate opens a URL with timeout, reusing the current tab if any.
// Returns the page for further interaction.
func (c *BrowserClient) Navigate(url string) (*rod.Page, error) {
	if c.page == nil {
		page, err := c.browser.Page(proto.TargetCreateTarget{})
		if err != nil {
			return nil, fmt.Errorf("failed to open tab: %w", err)
		}
		c.page = page
	}

	page := c.page.Timeout(c.timeout)
	err := page.Navigate(url)
	// Cancel timeout so Close() works
	page.CancelTimeout()
	if err != nil {
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return c.page, nil
}

// Page returns the current page, or nil if none open.
func (c *BrowserClient) Page() *rod.Page {
	return c.page
}

// Title returns the document title of the current page.
func (c *BrowserClient) Title() (string, error) {
	if c.page == nil {
		return "", errors.New("no page open, call Navigate first")
	}
	info, err := c.page.Timeout(c.timeout).Info()
	if err != nil {
		return "", fmt.Errorf("page info: %w", err)
	}
	return info.Title, nil
}

// TextAfterLabel implements probe.PageReader: it loads url, finds the first
// element whose text is exactly label and returns the rendered text of its
// next sibling element.
func (c *BrowserClient) TextAfterLabel(ctx context.Context, url, label string) (string, error) {
	if _, err := c.Navigate(url); err != nil {
		return "", err
	}

	page := c.page.Context(ctx).Timeout(c.timeout)
	defer page.CancelTimeout()

	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait for %s: %w", url, err)
	}

	// ElementR retries until the timeout, so check presence first.
	has, _, err := page.HasR("*", labelPattern(label))
	if err != nil {
		return "", fmt.Errorf("search %q: %w", label, err)
	}
	if !has {
		return "", fmt.Errorf("%w: %q", probe.ErrLabelNotFound, label)
	}

	el, err := page.ElementR("*", labelPattern(label))
	if err != nil {
		return "", fmt.Errorf("find %q: %w", label, err)
	}
	next, err := el.Next()
	if err != nil {
		return "", fmt.Errorf("%w: nothing follows %q", probe.ErrLabelNotFound, label)
	}
	return next.Text()
}

// labelPattern is a JS regex matching an element's whole text.
func labelPattern(label string) string {
	return `/^\s*` + regexp.QuoteMeta(label) + `\s*$/`
}

// Eval executes JavaScript on the current page and returns its value.
// Requires Navigate() to have been called first.
func (c *BrowserClient) Eval(js string) (gson.JSON, error) {
	if c.page == nil {
		return gson.JSON{}, errors.New("no page open, call Navigate first")
	}
	result, err := c.page.Timeout(c.timeout).Eval(js)
	if err != nil {
		return gson.JSON{}, fmt.Errorf("eval failed: %w", err)
	}
	return result.Value, nil
}

// WaitStable waits for the page to be stable (no DOM changes).
func (c *BrowserClient) WaitStable() error {
	if c.page == nil {
		return errors.New("no page open")
	}
	return c.page.WaitStable(c.timeout)
}

// Close cleans up browser resources.
// Always call this (via defer) to prevent orphaned Chrome processes.
func (c *BrowserClient) Close() error {
	if c.browser != nil {
		return c.browser.Close()
	}
	return nil
}
