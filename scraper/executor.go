package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"dhc_scraper/captcha"
	"dhc_scraper/config"
	"dhc_scraper/models"
	"dhc_scraper/parser"
	"dhc_scraper/retry"
	"dhc_scraper/session"
)

// QueryRecorder persists the outcome of each query. Recording failures
// are logged and swallowed so they never mask the query result itself.
type QueryRecorder interface {
	RecordQuery(ctx context.Context, entry *models.QueryLog) error
}

// Executor runs one case query end to end: acquire a session, submit
// the form, clear any captcha challenges, walk result pages and parse
// them into a case record.
type Executor struct {
	pool     *session.Pool
	portal   Portal
	resolver *captcha.Resolver
	store    QueryRecorder

	policy          retry.Policy
	pageLimit       int
	captchaAttempts int
}

func NewExecutor(pool *session.Pool, portal Portal, resolver *captcha.Resolver, store QueryRecorder, cfg *config.Config) *Executor {
	return &Executor{
		pool:            pool,
		portal:          portal,
		resolver:        resolver,
		store:           store,
		policy:          retry.DefaultPolicy(cfg.Query.MaxRetries),
		pageLimit:       cfg.Query.PageLimit,
		captchaAttempts: cfg.Solver.Attempts,
	}
}

func (e *Executor) Execute(ctx context.Context, req models.QueryRequest) (*models.CaseRecord, error) {
	correlationID := uuid.NewString()

	if err := req.Validate(); err != nil {
		e.record(ctx, req, correlationID, models.QueryStatusError, err.Error(), nil)
		return nil, err
	}

	sess, err := e.pool.Acquire(ctx)
	if err != nil {
		e.record(ctx, req, correlationID, models.QueryStatusError, err.Error(), nil)
		return nil, &models.QueryError{CorrelationID: correlationID, Err: err}
	}

	record, err := e.run(ctx, sess, req)
	switch {
	case err == nil:
		e.pool.Release(sess)
		e.record(ctx, req, correlationID, models.QueryStatusSuccess, "", record)
		return record, nil
	case errors.Is(err, models.ErrNotFound):
		// The portal answered cleanly, the session is still good.
		e.pool.Release(sess)
		e.record(ctx, req, correlationID, models.QueryStatusNotFound, "", nil)
		return nil, &models.QueryError{CorrelationID: correlationID, Err: err}
	default:
		e.pool.Invalidate(sess)
		e.record(ctx, req, correlationID, models.QueryStatusError, err.Error(), nil)
		return nil, &models.QueryError{CorrelationID: correlationID, Err: err}
	}
}

func (e *Executor) run(ctx context.Context, sess *session.Session, req models.QueryRequest) (*models.CaseRecord, error) {
	if err := sess.Throttle(ctx); err != nil {
		return nil, err
	}
	if err := e.portal.Open(ctx, sess); err != nil {
		return nil, &models.SessionError{Op: "open portal", Err: err}
	}

	var first *models.RawResultPage
	op := fmt.Sprintf("query %s/%s/%d", req.CaseType, req.CaseNumber, req.FilingYear)
	err := e.policy.Do(ctx, op, func() error {
		page, err := e.submit(ctx, sess, req)
		if err != nil {
			return err
		}
		first = page
		return nil
	})
	if err != nil {
		return nil, err
	}

	pages := []models.RawResultPage{*first}
	for pages[len(pages)-1].HasNext && len(pages) < e.pageLimit {
		if err := sess.Throttle(ctx); err != nil {
			return nil, err
		}
		next, err := e.portal.NextPage(ctx, sess, len(pages))
		if err != nil {
			return nil, &models.SessionError{Op: "next page", Err: err}
		}
		pages = append(pages, *next)
	}

	record, err := parser.Parse(pages)
	if err != nil {
		var parseErr *models.ParseError
		if errors.As(err, &parseErr) {
			dumpPages(pages)
		}
		return nil, err
	}
	record.CaseType = req.CaseType
	record.CaseNumber = req.CaseNumber
	record.FilingYear = req.FilingYear
	return record, nil
}

// submit drives the form through captcha challenges until the portal
// produces a terminal page. The captcha budget spans the whole query:
// a rejected answer re-enters with whatever attempts are left.
func (e *Executor) submit(ctx context.Context, sess *session.Session, req models.QueryRequest) (*models.RawResultPage, error) {
	answer := ""
	remaining := e.captchaAttempts

	for round := 0; ; round++ {
		if err := sess.Throttle(ctx); err != nil {
			return nil, err
		}
		res, err := e.portal.Submit(ctx, sess, req, answer)
		if err != nil {
			return nil, err
		}

		switch res.Outcome {
		case OutcomeResult:
			return res.Page, nil
		case OutcomeNotFound:
			return nil, retry.Stop(models.ErrNotFound)
		case OutcomeChallenge:
			if round > e.captchaAttempts {
				return nil, retry.Stop(&models.CaptchaError{
					Reason:   models.CaptchaExhausted,
					Attempts: e.captchaAttempts,
				})
			}
			ch := res.Challenge
			ch.AttemptsRemaining = remaining
			answer, err = e.resolver.Resolve(ctx, ch)
			if err != nil {
				var cErr *models.CaptchaError
				if errors.As(err, &cErr) {
					return nil, retry.Stop(err)
				}
				return nil, err
			}
			remaining = ch.AttemptsRemaining
		default:
			return nil, fmt.Errorf("unexpected submit outcome %d", res.Outcome)
		}
	}
}

func (e *Executor) record(ctx context.Context, req models.QueryRequest, correlationID string, status models.QueryStatus, detail string, record *models.CaseRecord) {
	if e.store == nil {
		return
	}
	entry := &models.QueryLog{
		CorrelationID: correlationID,
		CaseType:      req.CaseType,
		CaseNumber:    req.CaseNumber,
		FilingYear:    req.FilingYear,
		Status:        status,
		ErrorDetail:   detail,
		Timestamp:     time.Now().UTC(),
		Case:          record,
	}
	if err := e.store.RecordQuery(ctx, entry); err != nil {
		log.Printf("[executor] failed to record query %s: %v", correlationID, err)
	}
}

// dumpPages logs the raw HTML of pages the parser rejected so an
// operator can tell a layout change from a transient portal glitch.
func dumpPages(pages []models.RawResultPage) {
	const maxDump = 4096
	for _, p := range pages {
		html := string(p.HTML)
		if len(html) > maxDump {
			html = html[:maxDump] + "...(truncated)"
		}
		log.Printf("[executor] unparseable result page %d (%d bytes): %s", p.PageIndex, len(p.HTML), html)
	}
}
