package scraper

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"

	"dhc_scraper/config"
	"dhc_scraper/models"
	"dhc_scraper/session"
)

const outcomePollTicks = 30 // x 500ms

// BrowserPortal drives the court site through a playwright page owned
// by the session's browser connection.
type BrowserPortal struct {
	cfg *config.PortalConfig
}

func NewBrowserPortal(cfg *config.PortalConfig) *BrowserPortal {
	return &BrowserPortal{cfg: cfg}
}

func (p *BrowserPortal) page(s *session.Session) (playwright.Page, error) {
	conn, ok := s.Conn().(*session.BrowserConn)
	if !ok || conn == nil {
		return nil, fmt.Errorf("session %s has no browser connection", s.ID)
	}
	return conn.Page(), nil
}

func (p *BrowserPortal) Open(ctx context.Context, s *session.Session) error {
	page, err := p.page(s)
	if err != nil {
		return err
	}

	searchURL := strings.TrimRight(p.cfg.BaseURL, "/") + p.cfg.SearchPath
	_, err = page.Goto(searchURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(60000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return fmt.Errorf("open search form: %w", err)
	}

	humanDelay(800, 1500)
	p.handleConsent(page)

	for i := 0; i < outcomePollTicks; i++ {
		if visible, _ := page.Locator(p.cfg.Selectors.Form).First().IsVisible(); visible {
			return nil
		}
		page.WaitForTimeout(500)
	}
	return fmt.Errorf("search form did not appear")
}

func (p *BrowserPortal) Submit(ctx context.Context, s *session.Session, req models.QueryRequest, captchaAnswer string) (*SubmitResult, error) {
	page, err := p.page(s)
	if err != nil {
		return nil, err
	}
	sel := p.cfg.Selectors

	if _, err := page.Locator(sel.CaseType).First().SelectOption(playwright.SelectOptionValues{
		Labels: playwright.StringSlice(req.CaseType),
	}); err != nil {
		return nil, fmt.Errorf("select case type: %w", err)
	}
	if err := page.Locator(sel.CaseNumber).First().Fill(req.CaseNumber); err != nil {
		return nil, fmt.Errorf("fill case number: %w", err)
	}
	if err := page.Locator(sel.FilingYear).First().Fill(strconv.Itoa(req.FilingYear)); err != nil {
		return nil, fmt.Errorf("fill filing year: %w", err)
	}

	captchaImg := page.Locator(sel.CaptchaImage).First()
	if captchaAnswer == "" {
		if visible, _ := captchaImg.IsVisible(); visible {
			return p.captureChallenge(captchaImg, s)
		}
	} else {
		if err := page.Locator(sel.CaptchaInput).First().Fill(captchaAnswer); err != nil {
			return nil, fmt.Errorf("fill captcha answer: %w", err)
		}
	}

	humanDelay(300, 700)
	if err := page.Locator(sel.Submit).First().Click(); err != nil {
		return nil, fmt.Errorf("submit form: %w", err)
	}

	return p.waitForOutcome(page, s)
}

func (p *BrowserPortal) waitForOutcome(page playwright.Page, s *session.Session) (*SubmitResult, error) {
	sel := p.cfg.Selectors

	for i := 0; i < outcomePollTicks; i++ {
		page.WaitForTimeout(500)

		if visible, _ := page.Locator(sel.Results).First().IsVisible(); visible {
			raw, err := p.capturePage(page, 0)
			if err != nil {
				return nil, err
			}
			return &SubmitResult{Outcome: OutcomeResult, Page: raw}, nil
		}
		if visible, _ := page.Locator(sel.NoResults).First().IsVisible(); visible {
			return &SubmitResult{Outcome: OutcomeNotFound}, nil
		}
		// A challenge shown after submission means the portal rejected
		// the answer (or asked again).
		if visible, _ := page.Locator(sel.CaptchaImage).First().IsVisible(); visible {
			return p.captureChallenge(page.Locator(sel.CaptchaImage).First(), s)
		}
	}

	return nil, fmt.Errorf("timed out waiting for result page")
}

func (p *BrowserPortal) NextPage(ctx context.Context, s *session.Session, pageIndex int) (*models.RawResultPage, error) {
	page, err := p.page(s)
	if err != nil {
		return nil, err
	}
	sel := p.cfg.Selectors

	next := page.Locator(sel.NextPage).First()
	if visible, _ := next.IsVisible(); !visible {
		return nil, fmt.Errorf("no next-page link on page %d", pageIndex-1)
	}
	if err := next.Click(); err != nil {
		return nil, fmt.Errorf("click next page: %w", err)
	}

	humanDelay(500, 1200)

	for i := 0; i < outcomePollTicks; i++ {
		page.WaitForTimeout(500)
		if visible, _ := page.Locator(sel.Results).First().IsVisible(); visible {
			return p.capturePage(page, pageIndex)
		}
	}
	return nil, fmt.Errorf("timed out waiting for result page %d", pageIndex)
}

func (p *BrowserPortal) capturePage(page playwright.Page, index int) (*models.RawResultPage, error) {
	content, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("capture page %d: %w", index, err)
	}
	hasNext, _ := page.Locator(p.cfg.Selectors.NextPage).First().IsVisible()
	return &models.RawResultPage{
		HTML:      []byte(content),
		PageIndex: index,
		HasNext:   hasNext,
	}, nil
}

func (p *BrowserPortal) captureChallenge(img playwright.Locator, s *session.Session) (*SubmitResult, error) {
	shot, err := img.Screenshot()
	if err != nil {
		return nil, fmt.Errorf("capture captcha image: %w", err)
	}
	return &SubmitResult{
		Outcome: OutcomeChallenge,
		Challenge: &models.CaptchaChallenge{
			ID:        uuid.NewString(),
			Image:     shot,
			SessionID: s.ID,
		},
	}, nil
}

func (p *BrowserPortal) handleConsent(page playwright.Page) {
	consentSelectors := []string{
		"button:has-text('Accept')",
		"button:has-text('OK')",
		"button[id*='accept']",
		"button[class*='consent']",
	}

	for _, selector := range consentSelectors {
		btn := page.Locator(selector).First()
		if visible, _ := btn.IsVisible(); visible {
			btn.Click()
			page.WaitForTimeout(1000)
			break
		}
	}
}

func humanDelay(minMs, maxMs int) {
	delay := minMs + rand.Intn(maxMs-minMs)
	time.Sleep(time.Duration(delay) * time.Millisecond)
}
