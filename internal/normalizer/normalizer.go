// Package normalizer converts raw ingested field values into the canonical
// forms the scorers compare: positive two-decimal amounts with an explicit
// direction, parsed dates, and cleaned counterparty names. Normalization
// never fails a whole record; fields that cannot be normalized are zeroed
// and the record is flagged for review.
package normalizer

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"fiscal-reconciliation-service/internal/models"
)

// RawRecord is one ingested row before normalization.
type RawRecord struct {
	SourceType   models.SourceType
	SourceFile   string
	SourceRow    int
	Date         string
	Amount       string
	Counterparty string
	Reference    string
	Direction    string
}

// dateFormats are tried in order for each date string. Ambiguous numeric
// formats (both day-first and month-first) are listed; the batch
// disambiguation in NormalizeBatch decides which interpretation wins.
var dayFirstFormats = []string{
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2 January 2006",
	"2 Jan 2006",
}

var monthFirstFormats = []string{
	"01/02/2006",
	"01-02-2006",
}

var unambiguousFormats = []string{
	"2006-01-02",
	time.RFC3339,
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2006-01-02 15:04:05",
}

// Normalizer converts raw records into candidate records. Date
// disambiguation is stateful across a batch, so a Normalizer should be used
// for one import batch at a time.
type Normalizer struct {
	dayFirst bool
}

// New returns a Normalizer that prefers day-first dates, the convention of
// the fiscal documents this service ingests.
func New() *Normalizer {
	return &Normalizer{dayFirst: true}
}

// NormalizeBatch converts a slice of raw rows into candidate records. The
// numeric date convention (day-first vs month-first) is decided once per
// batch by majority vote: rows that only parse one way cast the votes, and
// ambiguous rows follow the winner. Records with unparsable dates get a nil
// date and are flagged for review rather than rejected.
func (n *Normalizer) NormalizeBatch(raws []RawRecord, sessionID string) []*models.CandidateRecord {
	n.dayFirst = voteDayFirst(raws)

	records := make([]*models.CandidateRecord, 0, len(raws))
	for i, raw := range raws {
		rec := n.normalizeOne(raw, sessionID)
		rec.ImportOrder = i
		records = append(records, rec)
	}
	return records
}

func (n *Normalizer) normalizeOne(raw RawRecord, sessionID string) *models.CandidateRecord {
	rec := &models.CandidateRecord{
		SessionID:  sessionID,
		SourceType: raw.SourceType,
		SourceRef: models.SourceRef{
			File: raw.SourceFile,
			Row:  raw.SourceRow,
		},
		CounterpartyOriginal: strings.TrimSpace(raw.Counterparty),
		DocumentReference:    strings.TrimSpace(raw.Reference),
		ImportedAt:           time.Now().UTC(),
	}

	rec.CounterpartyName = NormalizeName(raw.Counterparty)

	amount, negative, err := ParseAmount(raw.Amount)
	if err != nil {
		rec.NeedsReview = true
	} else {
		rec.Amount = amount
	}

	rec.Direction = resolveDirection(raw, negative)

	if date, ok := n.parseDate(raw.Date); ok {
		rec.Date = &date
	} else {
		rec.NeedsReview = true
	}

	return rec
}

// resolveDirection follows the same convention as models.ParseDirection:
// output is money flowing toward the company (credit side), input is money
// the company pays out (debit side). An explicit tag wins; a negative amount
// is a debit; otherwise the source type decides, with bank rows defaulting
// to the paying side since untagged statements here record outgoing
// settlements of incoming invoices.
func resolveDirection(raw RawRecord, negativeAmount bool) models.Direction {
	if dir, err := models.ParseDirection(raw.Direction); err == nil {
		return dir
	}
	if negativeAmount {
		return models.DirectionInput
	}
	switch raw.SourceType {
	case models.SourceInvoiceOut, models.SourceWithholdingCert:
		return models.DirectionOutput
	default:
		return models.DirectionInput
	}
}

// ParseAmount parses a monetary string in either European ("1.234.567,89")
// or Anglo ("1,234,567.89") convention, stripping currency symbols and
// treating parentheses as negation. It returns the absolute amount rounded
// to two decimals and whether the input was negative.
func ParseAmount(s string) (decimal.Decimal, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false, fmt.Errorf("empty amount")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	// Strip currency markers and anything that is not a digit, separator
	// or sign.
	var cleaned strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsDigit(r), r == '.', r == ',', r == '-', r == '+':
			cleaned.WriteRune(r)
		}
	}
	s = cleaned.String()

	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimPrefix(s, "-")
	}
	s = strings.TrimPrefix(s, "+")

	if s == "" {
		return decimal.Zero, false, fmt.Errorf("no digits in amount")
	}

	s = resolveSeparators(s)

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	return amount.Abs().Round(2), negative, nil
}

// resolveSeparators rewrites a digit string containing '.' and ',' into
// canonical decimal-point form. The last separator wins as the decimal mark
// when both kinds appear; a single separator followed by exactly three
// digits and appearing more than once, or with a long integer part, is
// treated as a thousands grouper.
func resolveSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			// European: dots group thousands, comma is decimal.
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 || len(s)-lastComma-1 == 3 {
			// "1,234,567" or "1,500": grouping commas.
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			s = strings.ReplaceAll(s, ".", "")
		}
		// A single dot stays as the decimal mark even when followed by
		// three digits; "1.500" is read as one and a half, matching the
		// decimal convention of the exported reports we ingest.
	}

	return s
}

func (n *Normalizer) parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, f := range unambiguousFormats {
		if t, err := time.Parse(f, s); err == nil {
			return t.UTC().Truncate(24 * time.Hour), true
		}
	}

	primary, secondary := dayFirstFormats, monthFirstFormats
	if !n.dayFirst {
		primary, secondary = monthFirstFormats, dayFirstFormats
	}
	for _, f := range primary {
		if t, err := time.Parse(f, s); err == nil {
			return t.UTC().Truncate(24 * time.Hour), true
		}
	}
	for _, f := range secondary {
		if t, err := time.Parse(f, s); err == nil {
			return t.UTC().Truncate(24 * time.Hour), true
		}
	}

	return time.Time{}, false
}

// voteDayFirst scans a batch for numeric dates that only parse in one of
// the two conventions and lets them vote. Day-first wins ties.
func voteDayFirst(raws []RawRecord) bool {
	dayVotes, monthVotes := 0, 0
	for _, raw := range raws {
		s := strings.TrimSpace(raw.Date)
		if s == "" {
			continue
		}
		asDay := parsesAny(s, dayFirstFormats)
		asMonth := parsesAny(s, monthFirstFormats)
		switch {
		case asDay && !asMonth:
			dayVotes++
		case asMonth && !asDay:
			monthVotes++
		}
	}
	return dayVotes >= monthVotes
}

func parsesAny(s string, formats []string) bool {
	for _, f := range formats {
		if _, err := time.Parse(f, s); err == nil {
			return true
		}
	}
	return false
}

// legalSuffixes are dropped from counterparty names before comparison.
// Keys are lowercase tokens with punctuation removed.
var legalSuffixes = map[string]struct{}{
	"pt": {}, "cv": {}, "tbk": {}, "persero": {}, "ud": {},
	"ltd": {}, "limited": {}, "inc": {}, "incorporated": {},
	"llc": {}, "llp": {}, "plc": {}, "corp": {}, "corporation": {},
	"co": {}, "company": {}, "gmbh": {}, "ag": {}, "sa": {}, "bv": {},
	"nv": {}, "pte": {}, "sdn": {}, "bhd": {},
}

// NormalizeName lowercases a counterparty name, removes punctuation,
// drops legal-entity tokens and collapses whitespace. The original string
// is preserved on the record for display.
func NormalizeName(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	if lowered == "" {
		return ""
	}

	var cleaned strings.Builder
	for _, r := range lowered {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			cleaned.WriteRune(r)
		default:
			cleaned.WriteRune(' ')
		}
	}

	var kept []string
	for _, tok := range strings.Fields(cleaned.String()) {
		if _, drop := legalSuffixes[tok]; drop {
			continue
		}
		kept = append(kept, tok)
	}

	if len(kept) == 0 {
		// Name consisted solely of legal tokens; keep them rather than
		// erase the name entirely.
		return strings.Join(strings.Fields(cleaned.String()), " ")
	}

	return strings.Join(kept, " ")
}
