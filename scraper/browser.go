package scraper

import (
	"fmt"
	"log"
	"time"

	"github.com/playwright-community/playwright-go"

	"suumo_watcher/config"
)

// Page is one rendering session for a single document. Goto returns the HTTP
// status of the navigation; 0 means the browser reported no response.
type Page interface {
	Goto(url string, timeout time.Duration) (int, error)
	Content() (string, error)
	Title() (string, error)
	WaitForSelector(selector string, timeout time.Duration) error
	WaitFor(d time.Duration)
	Close() error
}

// Session is one browsing context. Pages opened from it share cookies and the
// user agent; each page must be closed by its opener.
type Session interface {
	NewPage() (Page, error)
	Close() error
}

// Browser owns a headless chromium process for the duration of one run.
type Browser struct {
	cfg     *config.ScraperConfig
	pw      *playwright.Playwright
	browser playwright.Browser
}

func Launch(cfg *config.ScraperConfig) (*Browser, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--no-sandbox",
			"--disable-setuid-sandbox",
		},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	return &Browser{cfg: cfg, pw: pw, browser: browser}, nil
}

// NewSession opens a fresh browsing context carrying the configured user agent.
func (b *Browser) NewSession() (Session, error) {
	ctx, err := b.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(b.cfg.UserAgent),
	})
	if err != nil {
		return nil, fmt.Errorf("create context: %w", err)
	}
	return &playwrightSession{ctx: ctx}, nil
}

// Close releases the browser process. Cleanup failures are logged, never
// escalated; the run's outcome must not depend on teardown.
func (b *Browser) Close() {
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			log.Printf("Browser close error: %v", err)
		}
	}
	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			log.Printf("Playwright stop error: %v", err)
		}
	}
}

type playwrightSession struct {
	ctx playwright.BrowserContext
}

func (s *playwrightSession) NewPage() (Page, error) {
	page, err := s.ctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	return &playwrightPage{page: page}, nil
}

func (s *playwrightSession) Close() error {
	return s.ctx.Close()
}

type playwrightPage struct {
	page playwright.Page
}

func (p *playwrightPage) Goto(url string, timeout time.Duration) (int, error) {
	resp, err := p.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return 0, err
	}
	if resp == nil {
		return 0, nil
	}
	return resp.Status(), nil
}

func (p *playwrightPage) Content() (string, error) {
	return p.page.Content()
}

func (p *playwrightPage) Title() (string, error) {
	return p.page.Title()
}

func (p *playwrightPage) WaitForSelector(selector string, timeout time.Duration) error {
	return p.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
		State:   playwright.WaitForSelectorStateVisible,
	})
}

func (p *playwrightPage) WaitFor(d time.Duration) {
	p.page.WaitForTimeout(float64(d.Milliseconds()))
}

func (p *playwrightPage) Close() error {
	return p.page.Close()
}
