package scraper

import (
	"context"

	"dhc_scraper/models"
	"dhc_scraper/session"
)

type Outcome int

const (
	OutcomeResult Outcome = iota
	OutcomeNotFound
	OutcomeChallenge
)

// SubmitResult classifies what the portal did with a submission.
type SubmitResult struct {
	Outcome   Outcome
	Challenge *models.CaptchaChallenge // set on OutcomeChallenge
	Page      *models.RawResultPage    // first result page on OutcomeResult
}

// Portal drives the court site through a session. The browser
// implementation lives in browser_portal.go; tests stub this.
type Portal interface {
	// Open navigates the session to the search form.
	Open(ctx context.Context, s *session.Session) error
	// Submit fills the form (attaching the captcha answer when one is
	// supplied) and classifies the response. An empty answer with a
	// challenge on screen returns OutcomeChallenge without submitting.
	Submit(ctx context.Context, s *session.Session, req models.QueryRequest, captchaAnswer string) (*SubmitResult, error)
	// NextPage follows the "next" link and captures the next result
	// page. pageIndex is the index the new page will have.
	NextPage(ctx context.Context, s *session.Session, pageIndex int) (*models.RawResultPage, error)
}
