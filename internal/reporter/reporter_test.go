package reporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fiscal-reconciliation-service/internal/matcher"
	"fiscal-reconciliation-service/internal/models"
	"fiscal-reconciliation-service/internal/session"
)

func sampleResult() *session.RunResult {
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	recA := &models.CandidateRecord{
		ID:                   "inv-1",
		SessionID:            "sess-1",
		SourceType:           models.SourceInvoiceIn,
		Date:                 &date,
		Amount:               decimal.RequireFromString("1000.00"),
		CounterpartyOriginal: "PT Maju Jaya",
		Direction:            models.DirectionOutput,
	}
	recB := &models.CandidateRecord{
		ID:                   "bank-1",
		SessionID:            "sess-1",
		SourceType:           models.SourceBankTransaction,
		Date:                 &date,
		Amount:               decimal.RequireFromString("1000.00"),
		CounterpartyOriginal: "Maju Jaya",
		Direction:            models.DirectionOutput,
	}
	unmatched := &models.CandidateRecord{
		ID:                   "inv-2",
		SessionID:            "sess-1",
		SourceType:           models.SourceInvoiceIn,
		Date:                 &date,
		Amount:               decimal.RequireFromString("750.00"),
		CounterpartyOriginal: "CV Sumber Rejeki",
		Direction:            models.DirectionOutput,
	}

	match := models.NewMatch("sess-1", recA, recB, models.SchemeInputBank,
		models.MatchExact, 1.0, models.FactorScores{Amount: 1, Date: 1, Counterparty: 1, Reference: 1})

	records := []*models.CandidateRecord{recA, recB, unmatched}
	matches := []*models.Match{match}

	return &session.RunResult{
		SessionID: "sess-1",
		Schemes: map[models.PairingScheme]*matcher.Result{
			models.SchemeInputBank: {
				Scheme:     models.SchemeInputBank,
				UnmatchedA: []*models.CandidateRecord{unmatched},
			},
		},
		Matches: matches,
		Summary: session.ComputeSummary("sess-1", records, matches),
	}
}

func TestConsoleReport(t *testing.T) {
	rg, err := NewReportGenerator(nil)
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}

	var buf bytes.Buffer
	if err := rg.GenerateReport(sampleResult(), &buf); err != nil {
		t.Fatalf("report generation failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Reconciliation Report",
		"sess-1",
		"Matched:        2 (66.7%)",
		"exact 1",
		"CV Sumber Rejeki",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("console report missing %q:\n%s", want, out)
		}
	}
}

func TestJSONReport(t *testing.T) {
	rg, err := NewReportGenerator(&ReportConfig{
		Format:           FormatJSON,
		IncludeMatches:   true,
		IncludeUnmatched: true,
	})
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}

	var buf bytes.Buffer
	if err := rg.GenerateReport(sampleResult(), &buf); err != nil {
		t.Fatalf("report generation failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if decoded["session_id"] != "sess-1" {
		t.Errorf("unexpected session_id: %v", decoded["session_id"])
	}
	if _, ok := decoded["summary"]; !ok {
		t.Error("JSON report must include the summary")
	}
	if _, ok := decoded["matches"]; !ok {
		t.Error("JSON report must include matches when configured")
	}
}

func TestCSVReport(t *testing.T) {
	rg, err := NewReportGenerator(&ReportConfig{
		Format:           FormatCSV,
		IncludeMatches:   true,
		IncludeUnmatched: true,
	})
	if err != nil {
		t.Fatalf("failed to create generator: %v", err)
	}

	var buf bytes.Buffer
	if err := rg.GenerateReport(sampleResult(), &buf); err != nil {
		t.Fatalf("report generation failed: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}

	// Header, one match, one unmatched record.
	if len(rows) != 3 {
		t.Fatalf("expected 3 CSV rows, got %d", len(rows))
	}
	if rows[1][0] != "match" || rows[2][0] != "unmatched" {
		t.Errorf("unexpected row kinds: %v / %v", rows[1][0], rows[2][0])
	}
}

func TestParseFormat(t *testing.T) {
	if _, err := ParseFormat("json"); err != nil {
		t.Errorf("json should be a valid format: %v", err)
	}
	if _, err := ParseFormat("Console"); err != nil {
		t.Errorf("format parsing should be case-insensitive: %v", err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("xml should be rejected")
	}
}
