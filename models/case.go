package models

import "time"

// Party is one litigant as listed on the case status page.
type Party struct {
	Name string `json:"name"`
	Role string `json:"role"` // Petitioner, Respondent, Appellant, ...
}

// Order is one order/judgment entry with its document link.
type Order struct {
	Title       string     `json:"title"`
	Date        *time.Time `json:"date"`
	DocumentURL string     `json:"document_url"`
}

// CaseRecord is the structured result of one successful query.
// Immutable after creation.
type CaseRecord struct {
	CaseType        string     `json:"case_type"`
	CaseNumber      string     `json:"case_number"`
	FilingYear      int        `json:"filing_year"`
	Parties         []Party    `json:"parties"`
	FilingDate      time.Time  `json:"filing_date"`
	NextHearingDate *time.Time `json:"next_hearing_date,omitempty"`
	Orders          []Order    `json:"orders"`
}

// RawResultPage is one result page as captured from the portal.
// Consumed by the parser, never persisted.
type RawResultPage struct {
	HTML      []byte
	PageIndex int
	HasNext   bool
}

// CaptchaChallenge carries the challenge image and the remaining solve
// budget. SessionID is a back-reference only; the session stays owned
// by the pool.
type CaptchaChallenge struct {
	ID                string `json:"id"`
	Image             []byte `json:"image"`
	SessionID         string `json:"session_id"`
	AttemptsRemaining int    `json:"attempts_remaining"`
}
