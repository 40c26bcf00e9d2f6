package scoring

import (
	"fiscal-reconciliation-service/internal/models"
)

// PairScore is the full scoring outcome for one candidate pair.
type PairScore struct {
	Scores     models.FactorScores `json:"scores"`
	Confidence float64             `json:"confidence"`
	Tier       Tier                `json:"tier"`
}

// Automatable reports whether the pair may be committed by the automatic
// matcher. Pairs below the confidence floor and pairs where either record
// lacks a date are excluded; the latter always score 0 on the date factor
// and are held for review instead.
func (p PairScore) Automatable() bool {
	return p.Tier != TierNoMatch
}

// Score computes the four factor scores for a pair of records and combines
// them into a weighted composite. The result is deterministic for a given
// configuration: scoring the same pair twice always yields the same value.
func (c *Config) Score(a, b *models.CandidateRecord) PairScore {
	scores := models.FactorScores{
		Amount:       c.AmountScore(a.Amount, b.Amount),
		Date:         c.DateScore(a, b),
		Counterparty: c.CounterpartyScore(a.CounterpartyName, b.CounterpartyName),
		Reference:    c.ReferenceScore(a.DocumentReference, b.DocumentReference),
	}

	w := c.Weights
	confidence := w.Amount*scores.Amount +
		w.Date*scores.Date +
		w.Counterparty*scores.Counterparty +
		w.Reference*scores.Reference

	return PairScore{
		Scores:     scores,
		Confidence: confidence,
		Tier:       c.TierFor(confidence),
	}
}

// MatchTypeFor classifies a scored pair: exact when both amount and date
// agree perfectly, fuzzy otherwise.
func MatchTypeFor(s models.FactorScores) models.MatchType {
	if s.Amount == 1.0 && s.Date == 1.0 {
		return models.MatchExact
	}
	return models.MatchFuzzy
}
