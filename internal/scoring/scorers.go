package scoring

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"fiscal-reconciliation-service/internal/models"
)

// AmountScore compares two monetary amounts and returns a similarity in
// [0,1]. Relative difference is taken against the larger magnitude, with a
// floor of 1 so near-zero amounts do not explode the ratio. Differences
// within the configured tolerance score 1.0; beyond it the score decays
// linearly, reaching 0 at three times the tolerance.
func (c *Config) AmountScore(a, b decimal.Decimal) float64 {
	if a.Equal(b) {
		return 1.0
	}

	absA := a.Abs()
	absB := b.Abs()
	base := decimal.Max(absA, absB, decimal.NewFromInt(1))

	diff := absA.Sub(absB).Abs()
	relPercent, _ := diff.Div(base).Mul(decimal.NewFromInt(100)).Float64()

	tol := c.AmountTolerancePercent
	if relPercent <= tol {
		return 1.0
	}
	if relPercent >= 3*tol {
		return 0.0
	}

	// Linear decay from 1.0 at tol to 0.0 at 3*tol.
	return (3*tol - relPercent) / (2 * tol)
}

// DateScore compares two record dates. A missing date on either side scores
// 0; such records are excluded from automatic matching upstream. The score
// decays linearly with the day gap and reaches 0 at twice the tolerance
// window, so a pair one day outside tolerance still scores above 0.
func (c *Config) DateScore(a, b *models.CandidateRecord) float64 {
	if !a.HasDate() || !b.HasDate() {
		return 0.0
	}

	days := a.Date.Sub(*b.Date).Hours() / 24
	if days < 0 {
		days = -days
	}

	window := float64(2 * c.DateToleranceDays)
	if days >= window {
		return 0.0
	}

	return 1.0 - days/window
}

// CounterpartyScore measures name similarity as Jaccard overlap between the
// normalized token sets of the two names. Names are expected to be already
// normalized (lowercased, legal suffixes stripped); the tokenization here is
// whitespace splitting only.
func (c *Config) CounterpartyScore(a, b string) float64 {
	tokensA := nameTokens(a)
	tokensB := nameTokens(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0.0
	}

	intersection := 0
	for tok := range tokensA {
		if _, ok := tokensB[tok]; ok {
			intersection++
		}
	}

	union := len(tokensA) + len(tokensB) - intersection
	if union == 0 {
		return 0.0
	}

	return float64(intersection) / float64(union)
}

func nameTokens(name string) map[string]struct{} {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// ReferenceScore compares document references by their numeric tokens. An
// exact token shared by both sides scores 1.0. A token of one side contained
// inside a token of the other scores 1.0 when the shorter token meets the
// configured minimum length, 0.5 otherwise. No usable tokens on either side
// scores 0.
func (c *Config) ReferenceScore(refA, refB string) float64 {
	tokensA := ReferenceTokens(refA)
	tokensB := ReferenceTokens(refB)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0.0
	}

	best := 0.0
	for _, ta := range tokensA {
		for _, tb := range tokensB {
			score := tokenPairScore(ta, tb, c.MinReferenceLength)
			if score > best {
				best = score
			}
			if best == 1.0 {
				return 1.0
			}
		}
	}

	return best
}

func tokenPairScore(a, b string, minLen int) float64 {
	if a == b {
		return 1.0
	}

	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if !strings.Contains(longer, shorter) {
		return 0.0
	}

	if len(shorter) >= minLen {
		return 1.0
	}
	return 0.5
}

// ReferenceTokens extracts candidate document-number tokens from a free-form
// reference string: alphanumeric runs that contain at least one digit and
// are at least three characters long, lowercased.
func ReferenceTokens(ref string) []string {
	if ref == "" {
		return nil
	}

	var tokens []string
	var current strings.Builder
	hasDigit := false

	flush := func() {
		if current.Len() >= 3 && hasDigit {
			tokens = append(tokens, strings.ToLower(current.String()))
		}
		current.Reset()
		hasDigit = false
	}

	for _, r := range ref {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			current.WriteRune(r)
			if unicode.IsDigit(r) {
				hasDigit = true
			}
		} else {
			flush()
		}
	}
	flush()

	return tokens
}
