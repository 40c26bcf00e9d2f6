// Package session manages reconciliation sessions: the grouping of imported
// records for one fiscal period, the orchestration of matching runs over
// them, and the persistence of records and committed matches.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fiscal-reconciliation-service/internal/models"
)

// PeriodSlackDays is how far outside the session period a record date may
// fall before import flags it for review. Documents are routinely dated a
// few days across the month boundary they settle in.
const PeriodSlackDays = 7

// Session groups the records and matches of one reconciliation period.
type Session struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Company identifies whose books are being reconciled; it decides
	// which side of an invoice the company sits on.
	Company string `json:"company"`

	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewSession creates a session for the given company and fiscal period
func NewSession(name, company string, periodStart, periodEnd time.Time) (*Session, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("session name cannot be empty")
	}
	if periodEnd.Before(periodStart) {
		return nil, fmt.Errorf("period end %s is before period start %s",
			periodEnd.Format("2006-01-02"), periodStart.Format("2006-01-02"))
	}

	now := time.Now().UTC()
	return &Session{
		ID:          uuid.NewString(),
		Name:        name,
		Company:     strings.TrimSpace(company),
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// InPeriod reports whether a record date falls inside the session period
// extended by the slack window on both sides. Records with no date pass;
// they are already flagged for review by the normalizer.
func (s *Session) InPeriod(rec *models.CandidateRecord) bool {
	if !rec.HasDate() {
		return true
	}
	start := s.PeriodStart.AddDate(0, 0, -PeriodSlackDays)
	end := s.PeriodEnd.AddDate(0, 0, PeriodSlackDays)
	return !rec.Date.Before(start) && !rec.Date.After(end)
}

// Summary is the derived statistics view of a session. It is recomputed
// from stored records and matches, never stored itself.
type Summary struct {
	SessionID string `json:"session_id"`

	TotalRecords   int `json:"total_records"`
	MatchedRecords int `json:"matched_records"`
	MatchedPairs   int `json:"matched_pairs"`
	Unmatched      int `json:"unmatched"`
	NeedsReview    int `json:"needs_review"`

	ExactMatches  int `json:"exact_matches"`
	FuzzyMatches  int `json:"fuzzy_matches"`
	ManualMatches int `json:"manual_matches"`

	// MatchRate is matched records over total records, in [0,1]. Zero
	// records yields a rate of 0.
	MatchRate float64 `json:"match_rate"`

	TotalMatchedAmount   decimal.Decimal `json:"total_matched_amount"`
	TotalUnmatchedAmount decimal.Decimal `json:"total_unmatched_amount"`

	BySourceType map[models.SourceType]SourceTypeSummary `json:"by_source_type"`
}

// SourceTypeSummary breaks session statistics down per document kind.
type SourceTypeSummary struct {
	Total     int `json:"total"`
	Matched   int `json:"matched"`
	Unmatched int `json:"unmatched"`
}

// ComputeSummary derives session statistics from its records and matches
func ComputeSummary(sessionID string, records []*models.CandidateRecord, matches []*models.Match) *Summary {
	summary := &Summary{
		SessionID:            sessionID,
		TotalRecords:         len(records),
		MatchedPairs:         len(matches),
		TotalMatchedAmount:   decimal.Zero,
		TotalUnmatchedAmount: decimal.Zero,
		BySourceType:         make(map[models.SourceType]SourceTypeSummary),
	}

	matched := make(map[string]bool, len(matches)*2)
	for _, m := range matches {
		matched[m.RecordA] = true
		matched[m.RecordB] = true

		switch m.MatchType {
		case models.MatchExact:
			summary.ExactMatches++
		case models.MatchFuzzy:
			summary.FuzzyMatches++
		case models.MatchManual:
			summary.ManualMatches++
		}
	}

	for _, rec := range records {
		st := summary.BySourceType[rec.SourceType]
		st.Total++

		if matched[rec.ID] {
			summary.MatchedRecords++
			summary.TotalMatchedAmount = summary.TotalMatchedAmount.Add(rec.Amount)
			st.Matched++
		} else {
			summary.Unmatched++
			summary.TotalUnmatchedAmount = summary.TotalUnmatchedAmount.Add(rec.Amount)
			st.Unmatched++
		}

		if rec.NeedsReview {
			summary.NeedsReview++
		}

		summary.BySourceType[rec.SourceType] = st
	}

	if summary.TotalRecords > 0 {
		summary.MatchRate = float64(summary.MatchedRecords) / float64(summary.TotalRecords)
	}

	return summary
}
