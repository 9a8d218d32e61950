package models

import (
	"errors"
	"fmt"
)

// ErrNotFound is the terminal "no such case" outcome. It is a valid
// result, not a transient failure.
var ErrNotFound = errors.New("case not found")

// ValidationError means the request never reached the network.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SessionError covers site unreachable, session creation failure, and
// submission failures that survived the retry budget.
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

type CaptchaFailure string

const (
	CaptchaExhausted     CaptchaFailure = "exhausted"
	CaptchaManualTimeout CaptchaFailure = "manual_timeout"
)

// CaptchaError means the challenge could not be solved within the
// attempt budget (or the operator never answered).
type CaptchaError struct {
	Reason   CaptchaFailure
	Attempts int
}

func (e *CaptchaError) Error() string {
	return fmt.Sprintf("captcha %s after %d attempts", e.Reason, e.Attempts)
}

// ParseError signals a portal layout change: mandatory fields could not
// be located at all. Never retried; needs operator attention, not a
// different user input.
type ParseError struct {
	Missing string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("result page missing %s", e.Missing)
}

// QueryError ties a failed query to its audit-log correlation ID so a
// friendly message can reference it without leaking internals.
type QueryError struct {
	CorrelationID string
	Err           error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s: %v", e.CorrelationID, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
