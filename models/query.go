package models

import (
	"strings"
	"time"
)

type QueryStatus string

const (
	QueryStatusSuccess  QueryStatus = "success"
	QueryStatusNotFound QueryStatus = "not_found"
	QueryStatusError    QueryStatus = "error"
)

// Filing years before the portal's archive era are rejected outright.
const MinFilingYear = 1950

// QueryRequest identifies one case on the court portal.
type QueryRequest struct {
	CaseType   string `json:"case_type"`
	CaseNumber string `json:"case_number"`
	FilingYear int    `json:"filing_year"`
}

// Validate checks the request before anything touches the network.
func (r QueryRequest) Validate() error {
	if strings.TrimSpace(r.CaseType) == "" {
		return &ValidationError{Field: "case_type", Reason: "required"}
	}
	num := strings.TrimSpace(r.CaseNumber)
	if num == "" {
		return &ValidationError{Field: "case_number", Reason: "required"}
	}
	for _, c := range num {
		if c < '0' || c > '9' {
			return &ValidationError{Field: "case_number", Reason: "must be numeric"}
		}
	}
	if r.FilingYear < MinFilingYear || r.FilingYear > time.Now().Year() {
		return &ValidationError{Field: "filing_year", Reason: "outside plausible range"}
	}
	return nil
}

// QueryLog is one append-only audit row: the request snapshot, how the
// query ended, and the extracted case when there was one. Rows are
// never mutated or deleted by this service.
type QueryLog struct {
	ID            int64       `json:"id"`
	CorrelationID string      `json:"correlation_id"`
	CaseType      string      `json:"case_type"`
	CaseNumber    string      `json:"case_number"`
	FilingYear    int         `json:"filing_year"`
	Status        QueryStatus `json:"status"`
	ErrorDetail   string      `json:"-"` // internal diagnostics, never shown to end users
	Timestamp     time.Time   `json:"timestamp"`
	Case          *CaseRecord `json:"case,omitempty"`
}
