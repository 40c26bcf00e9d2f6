// Package reporter renders reconciliation run results for people and
// machines.
//
// Supported output formats:
//   - Console: human-readable tabular output for terminal display
//   - JSON: structured data for programmatic consumption
//   - CSV: flat match and unmatched listings for spreadsheets
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"fiscal-reconciliation-service/internal/models"
	"fiscal-reconciliation-service/internal/session"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ParseFormat parses an output format from string
func ParseFormat(s string) (OutputFormat, error) {
	f := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	if !f.IsValid() {
		return "", fmt.Errorf("invalid output format '%s': must be console, json or csv", s)
	}
	return f, nil
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	IncludeMatches   bool `json:"include_matches"`
	IncludeUnmatched bool `json:"include_unmatched"`
	IncludeHeld      bool `json:"include_held"`

	// CounterpartyHintThreshold flags matches whose counterparty factor
	// scored below it, so a reviewer can eyeball name mismatches. Display
	// only; it never gates matching.
	CounterpartyHintThreshold float64 `json:"counterparty_hint_threshold"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:                    FormatConsole,
		IncludeMatches:            true,
		IncludeUnmatched:          true,
		IncludeHeld:               true,
		CounterpartyHintThreshold: 0.80,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	return nil
}

// ReportGenerator renders run results according to its configuration.
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a report generator
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &ReportGenerator{config: config}, nil
}

// GenerateReport writes a report of the run result in the configured format
func (rg *ReportGenerator) GenerateReport(result *session.RunResult, writer io.Writer) error {
	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) generateConsoleReport(result *session.RunResult, writer io.Writer) error {
	summary := result.Summary

	fmt.Fprintf(writer, "\n=== Reconciliation Report ===\n")
	fmt.Fprintf(writer, "Session: %s\n\n", result.SessionID)

	fmt.Fprintf(writer, "Records:        %d\n", summary.TotalRecords)
	fmt.Fprintf(writer, "Matched:        %d (%.1f%%)\n", summary.MatchedRecords, summary.MatchRate*100)
	fmt.Fprintf(writer, "Unmatched:      %d\n", summary.Unmatched)
	fmt.Fprintf(writer, "Needs review:   %d\n", summary.NeedsReview)
	fmt.Fprintf(writer, "\n")
	fmt.Fprintf(writer, "Matched pairs:  %d (exact %d, fuzzy %d, manual %d)\n",
		summary.MatchedPairs, summary.ExactMatches, summary.FuzzyMatches, summary.ManualMatches)
	fmt.Fprintf(writer, "Matched amount:   %s\n", summary.TotalMatchedAmount.StringFixed(2))
	fmt.Fprintf(writer, "Unmatched amount: %s\n", summary.TotalUnmatchedAmount.StringFixed(2))

	if len(summary.BySourceType) > 0 {
		fmt.Fprintf(writer, "\nBy document type:\n")
		for _, st := range []models.SourceType{
			models.SourceInvoiceOut, models.SourceWithholdingCert,
			models.SourceInvoiceIn, models.SourceBankTransaction,
		} {
			stats, ok := summary.BySourceType[st]
			if !ok {
				continue
			}
			fmt.Fprintf(writer, "  %-18s total %4d  matched %4d  unmatched %4d\n",
				st, stats.Total, stats.Matched, stats.Unmatched)
		}
	}

	if rg.config.IncludeMatches && len(result.Matches) > 0 {
		fmt.Fprintf(writer, "\n--- Matches ---\n")
		fmt.Fprintf(writer, "%-38s %-38s %-8s %10s\n", "Record A", "Record B", "Type", "Confidence")
		for _, m := range result.Matches {
			hint := ""
			if m.IsAutomatic() && m.Scores.Counterparty < rg.config.CounterpartyHintThreshold {
				hint = "  (check counterparty name)"
			}
			fmt.Fprintf(writer, "%-38s %-38s %-8s %10.3f%s\n", m.RecordA, m.RecordB, m.MatchType, m.Confidence, hint)
		}
	}

	if rg.config.IncludeUnmatched {
		for scheme, schemeResult := range result.Schemes {
			unmatched := append([]*models.CandidateRecord{}, schemeResult.UnmatchedA...)
			unmatched = append(unmatched, schemeResult.UnmatchedB...)
			if len(unmatched) == 0 {
				continue
			}
			fmt.Fprintf(writer, "\n--- Unmatched (%s) ---\n", scheme)
			rg.printRecordList(unmatched, writer)
		}
	}

	if rg.config.IncludeHeld {
		for scheme, schemeResult := range result.Schemes {
			if len(schemeResult.Held) == 0 {
				continue
			}
			fmt.Fprintf(writer, "\n--- Held for review (%s) ---\n", scheme)
			rg.printRecordList(schemeResult.Held, writer)
		}
	}

	fmt.Fprintf(writer, "\n")
	return nil
}

func (rg *ReportGenerator) printRecordList(records []*models.CandidateRecord, writer io.Writer) {
	fmt.Fprintf(writer, "%-18s %-12s %14s  %-30s %s\n", "Type", "Date", "Amount", "Counterparty", "Source")
	for _, rec := range records {
		date := rec.DateKey()
		if date == "" {
			date = "-"
		}
		fmt.Fprintf(writer, "%-18s %-12s %14s  %-30s %s\n",
			rec.SourceType, date, rec.Amount.StringFixed(2),
			truncate(rec.CounterpartyOriginal, 30), rec.SourceRef.String())
	}
}

func (rg *ReportGenerator) generateJSONReport(result *session.RunResult, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rg.filterResultForOutput(result))
}

func (rg *ReportGenerator) filterResultForOutput(result *session.RunResult) map[string]interface{} {
	out := map[string]interface{}{
		"session_id": result.SessionID,
		"summary":    result.Summary,
	}
	if rg.config.IncludeMatches {
		out["matches"] = result.Matches
	}
	if rg.config.IncludeUnmatched || rg.config.IncludeHeld {
		schemes := make(map[string]interface{}, len(result.Schemes))
		for scheme, schemeResult := range result.Schemes {
			entry := map[string]interface{}{}
			if rg.config.IncludeUnmatched {
				entry["unmatched_a"] = schemeResult.UnmatchedA
				entry["unmatched_b"] = schemeResult.UnmatchedB
			}
			if rg.config.IncludeHeld {
				entry["held"] = schemeResult.Held
			}
			schemes[string(scheme)] = entry
		}
		out["schemes"] = schemes
	}
	return out
}

func (rg *ReportGenerator) generateCSVReport(result *session.RunResult, writer io.Writer) error {
	w := csv.NewWriter(writer)
	defer w.Flush()

	if err := w.Write([]string{
		"kind", "scheme", "match_type", "confidence",
		"record_a", "record_b", "source_type", "date", "amount", "counterparty",
	}); err != nil {
		return err
	}

	if rg.config.IncludeMatches {
		for _, m := range result.Matches {
			if err := w.Write([]string{
				"match", string(m.Scheme), string(m.MatchType),
				fmt.Sprintf("%.4f", m.Confidence),
				m.RecordA, m.RecordB, "", "", "", "",
			}); err != nil {
				return err
			}
		}
	}

	writeRecord := func(kind string, scheme models.PairingScheme, rec *models.CandidateRecord) error {
		return w.Write([]string{
			kind, string(scheme), "", "",
			rec.ID, "", string(rec.SourceType), rec.DateKey(),
			rec.Amount.StringFixed(2), rec.CounterpartyOriginal,
		})
	}

	for scheme, schemeResult := range result.Schemes {
		if rg.config.IncludeUnmatched {
			for _, rec := range schemeResult.UnmatchedA {
				if err := writeRecord("unmatched", scheme, rec); err != nil {
					return err
				}
			}
			for _, rec := range schemeResult.UnmatchedB {
				if err := writeRecord("unmatched", scheme, rec); err != nil {
					return err
				}
			}
		}
		if rg.config.IncludeHeld {
			for _, rec := range schemeResult.Held {
				if err := writeRecord("held", scheme, rec); err != nil {
					return err
				}
			}
		}
	}

	return w.Error()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
