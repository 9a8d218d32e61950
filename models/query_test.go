package models

import (
	"errors"
	"testing"
	"time"
)

func TestQueryRequestValidate(t *testing.T) {
	valid := QueryRequest{CaseType: "W.P.(C)", CaseNumber: "1234", FilingYear: 2023}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	cases := []struct {
		name      string
		req       QueryRequest
		wantField string
	}{
		{"missing case type", QueryRequest{CaseNumber: "1234", FilingYear: 2023}, "case_type"},
		{"missing case number", QueryRequest{CaseType: "W.P.(C)", FilingYear: 2023}, "case_number"},
		{"non-numeric case number", QueryRequest{CaseType: "W.P.(C)", CaseNumber: "12a4", FilingYear: 2023}, "case_number"},
		{"year too old", QueryRequest{CaseType: "W.P.(C)", CaseNumber: "1234", FilingYear: 1800}, "filing_year"},
		{"year in future", QueryRequest{CaseType: "W.P.(C)", CaseNumber: "1234", FilingYear: time.Now().Year() + 1}, "filing_year"},
	}

	for _, tc := range cases {
		err := tc.req.Validate()
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("%s: expected ValidationError, got %T", tc.name, err)
		}
		if vErr.Field != tc.wantField {
			t.Fatalf("%s: expected field %s, got %s", tc.name, tc.wantField, vErr.Field)
		}
	}
}

func TestErrorUnwrapping(t *testing.T) {
	inner := &SessionError{Op: "acquire", Err: ErrNotFound}
	outer := &QueryError{CorrelationID: "c1", Err: inner}

	if !errors.Is(outer, ErrNotFound) {
		t.Fatalf("expected QueryError to unwrap to its cause")
	}
	var sErr *SessionError
	if !errors.As(outer, &sErr) {
		t.Fatalf("expected SessionError through QueryError")
	}
}
