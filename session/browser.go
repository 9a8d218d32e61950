package session

import (
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Browser owns the single Chromium process; each session gets its own
// browser context (separate cookie jar).
type Browser struct {
	mu       sync.Mutex
	pw       *playwright.Playwright
	browser  playwright.Browser
	headless bool
	launched bool
}

func NewBrowser(headless bool) *Browser {
	return &Browser{headless: headless}
}

func (b *Browser) ensure() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.launched {
		return nil
	}

	var err error
	b.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	b.browser, err = b.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(b.headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	b.launched = true
	return nil
}

// NewConn opens a fresh browser context and page.
func (b *Browser) NewConn() (Conn, error) {
	if err := b.ensure(); err != nil {
		return nil, err
	}

	bctx, err := b.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(browserUserAgent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	return &BrowserConn{context: bctx, page: page}, nil
}

func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		b.browser.Close()
	}
	if b.pw != nil {
		b.pw.Stop()
	}
	b.launched = false
}

// BrowserConn is the playwright-backed connection behind a session.
type BrowserConn struct {
	context playwright.BrowserContext
	page    playwright.Page
}

func (c *BrowserConn) Page() playwright.Page { return c.page }

func (c *BrowserConn) Close() error {
	if c.page != nil {
		c.page.Close()
	}
	if c.context != nil {
		return c.context.Close()
	}
	return nil
}
