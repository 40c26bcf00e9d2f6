package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SourceType identifies which kind of financial document a record was
// extracted from.
type SourceType string

const (
	// SourceInvoiceOut is a tax invoice the company issued (output tax).
	SourceInvoiceOut SourceType = "invoice_out"
	// SourceInvoiceIn is a tax invoice the company received (input tax).
	SourceInvoiceIn SourceType = "invoice_in"
	// SourceWithholdingCert is a withholding certificate issued by a counterparty.
	SourceWithholdingCert SourceType = "withholding_cert"
	// SourceBankTransaction is a single bank statement line.
	SourceBankTransaction SourceType = "bank_transaction"
)

// String returns the string representation of SourceType
func (s SourceType) String() string {
	return string(s)
}

// IsValid checks if the source type is one of the four tracked document kinds
func (s SourceType) IsValid() bool {
	switch s {
	case SourceInvoiceOut, SourceInvoiceIn, SourceWithholdingCert, SourceBankTransaction:
		return true
	default:
		return false
	}
}

// ParseSourceType parses and validates a source type from string
func ParseSourceType(s string) (SourceType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "invoice_out", "output_invoice", "sales_invoice":
		return SourceInvoiceOut, nil
	case "invoice_in", "input_invoice", "purchase_invoice":
		return SourceInvoiceIn, nil
	case "withholding_cert", "withholding", "bukti_potong":
		return SourceWithholdingCert, nil
	case "bank_transaction", "bank", "statement":
		return SourceBankTransaction, nil
	default:
		return "", fmt.Errorf("invalid source type '%s'", s)
	}
}

// Direction distinguishes money flowing toward the company (output side)
// from money the company pays out (input side). It constrains which records
// are eligible to pair with each other.
type Direction string

const (
	DirectionOutput Direction = "output"
	DirectionInput  Direction = "input"
)

// IsValid checks if the direction is valid
func (d Direction) IsValid() bool {
	return d == DirectionOutput || d == DirectionInput
}

// ParseDirection parses a direction from string, accepting debit/credit aliases
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "output", "credit", "cr", "out":
		return DirectionOutput, nil
	case "input", "debit", "dr", "in":
		return DirectionInput, nil
	default:
		return "", fmt.Errorf("invalid direction '%s': must be output or input", s)
	}
}

// SourceRef points back at the originating file and row of a record. It is
// an opaque audit pointer; the engine never dereferences it.
type SourceRef struct {
	File string `json:"file"`
	Row  int    `json:"row"`
}

// String returns a compact file:row representation
func (r SourceRef) String() string {
	return fmt.Sprintf("%s:%d", r.File, r.Row)
}

// CandidateRecord is a normalized financial line item eligible for matching.
// Records are immutable once created: the matcher and session layers treat
// them as read-only values.
type CandidateRecord struct {
	ID         string     `json:"id"`
	SessionID  string     `json:"session_id"`
	SourceType SourceType `json:"source_type"`
	SourceRef  SourceRef  `json:"source_ref"`

	// Date is nil when the raw value could not be parsed. Records without a
	// date are never matched automatically.
	Date *time.Time `json:"date,omitempty"`

	// Amount is the currency-normalized positive magnitude. Sign information
	// lives in Direction.
	Amount decimal.Decimal `json:"amount"`

	// CounterpartyName is the normalized form used for scoring.
	// CounterpartyOriginal keeps the raw extracted name for display.
	CounterpartyName     string `json:"counterparty_name"`
	CounterpartyOriginal string `json:"counterparty_original"`

	DocumentReference string    `json:"document_reference"`
	Direction         Direction `json:"direction"`

	// NeedsReview marks records the normalizer could not fully canonicalize.
	NeedsReview bool `json:"needs_review"`

	// ImportOrder is the position of the record within its import batch,
	// used as the deterministic tie-break of last resort.
	ImportOrder int       `json:"import_order"`
	ImportedAt  time.Time `json:"imported_at"`
}

// Validate performs basic validation on the CandidateRecord
func (r *CandidateRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("record ID cannot be empty")
	}

	if !r.SourceType.IsValid() {
		return fmt.Errorf("invalid source type: %s", r.SourceType)
	}

	if r.Amount.IsNegative() {
		return fmt.Errorf("record amount cannot be negative: %s", r.Amount.String())
	}

	if !r.Direction.IsValid() {
		return fmt.Errorf("invalid direction: %s", r.Direction)
	}

	return nil
}

// HasDate returns true when the record carries a parsable calendar date
func (r *CandidateRecord) HasDate() bool {
	return r.Date != nil && !r.Date.IsZero()
}

// DateKey returns the record date as YYYY-MM-DD, or "" when the date is unknown
func (r *CandidateRecord) DateKey() string {
	if !r.HasDate() {
		return ""
	}
	return r.Date.Format("2006-01-02")
}

// String returns a string representation of the CandidateRecord
func (r *CandidateRecord) String() string {
	return fmt.Sprintf("CandidateRecord{ID: %s, Type: %s, Amount: %s, Date: %s, Counterparty: %s}",
		r.ID, r.SourceType, r.Amount.String(), r.DateKey(), r.CounterpartyName)
}

// MatchType classifies how a pairing was committed.
type MatchType string

const (
	// MatchExact is an automatic match where both amount and date agreed exactly.
	MatchExact MatchType = "exact"
	// MatchFuzzy is an automatic match committed within configured tolerances.
	MatchFuzzy MatchType = "fuzzy"
	// MatchManual is a user-confirmed pairing committed outside the engine.
	MatchManual MatchType = "manual"
)

// IsValid checks if the match type is valid
func (m MatchType) IsValid() bool {
	return m == MatchExact || m == MatchFuzzy || m == MatchManual
}

// FactorScores holds the per-factor component scores of a pairing, each in
// [0,1]. They are retained on committed matches for audit.
type FactorScores struct {
	Amount       float64 `json:"amount"`
	Date         float64 `json:"date"`
	Counterparty float64 `json:"counterparty"`
	Reference    float64 `json:"reference"`
}

// Match is a committed pairing of exactly two candidate records. Score
// fields are frozen at commit time; recomputation creates a new Match rather
// than mutating an old one.
type Match struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	RecordA   string        `json:"record_a"`
	RecordB   string        `json:"record_b"`
	Scheme    PairingScheme `json:"scheme"`
	MatchType MatchType     `json:"match_type"`

	Confidence float64      `json:"confidence"`
	Scores     FactorScores `json:"scores"`

	CreatedAt time.Time `json:"created_at"`
}

// NewMatch creates a committed automatic match between two records
func NewMatch(sessionID string, a, b *CandidateRecord, scheme PairingScheme, matchType MatchType, confidence float64, scores FactorScores) *Match {
	return &Match{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		RecordA:    a.ID,
		RecordB:    b.ID,
		Scheme:     scheme,
		MatchType:  matchType,
		Confidence: confidence,
		Scores:     scores,
		CreatedAt:  time.Now().UTC(),
	}
}

// NewManualMatch creates a user-confirmed match. Manual matches bypass the
// engine entirely and always carry a confidence of 1.0.
func NewManualMatch(sessionID string, a, b *CandidateRecord, scheme PairingScheme) *Match {
	return &Match{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		RecordA:    a.ID,
		RecordB:    b.ID,
		Scheme:     scheme,
		MatchType:  MatchManual,
		Confidence: 1.0,
		CreatedAt:  time.Now().UTC(),
	}
}

// IsAutomatic returns true for matches produced by the engine (as opposed to
// user-confirmed manual matches)
func (m *Match) IsAutomatic() bool {
	return m.MatchType != MatchManual
}

// Validate performs basic validation on the Match
func (m *Match) Validate() error {
	if strings.TrimSpace(m.RecordA) == "" || strings.TrimSpace(m.RecordB) == "" {
		return fmt.Errorf("match must reference two records")
	}

	if m.RecordA == m.RecordB {
		return fmt.Errorf("match cannot pair a record with itself")
	}

	if !m.Scheme.IsValid() {
		return fmt.Errorf("invalid pairing scheme: %s", m.Scheme)
	}

	if !m.MatchType.IsValid() {
		return fmt.Errorf("invalid match type: %s", m.MatchType)
	}

	if m.Confidence < 0.0 || m.Confidence > 1.0 {
		return fmt.Errorf("confidence must be between 0.0 and 1.0: %f", m.Confidence)
	}

	return nil
}
