// Package matcher implements the automatic pairing engine. It scores every
// eligible cross-side pair with the scoring package and commits one-to-one
// matches greedily by descending confidence.
//
// Because pair scores never change as other pairs are committed, selecting
// the globally best remaining pair repeatedly is equivalent to sorting all
// admissible pairs once and sweeping them in order, committing each pair
// whose records are both still unmatched. The engine uses the sweep form.
package matcher

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"fiscal-reconciliation-service/internal/models"
	"fiscal-reconciliation-service/internal/scoring"
)

// Engine pairs candidate records of one scheme under a scoring configuration
type Engine struct {
	config *scoring.Config
}

// NewEngine creates a matching engine. The configuration is validated once
// here; a nil configuration selects the defaults.
func NewEngine(config *scoring.Config) (*Engine, error) {
	if config == nil {
		config = scoring.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid matching configuration")
	}
	return &Engine{config: config.Clone()}, nil
}

// Config returns the engine's scoring configuration
func (e *Engine) Config() *scoring.Config {
	return e.config.Clone()
}

// MatchPair is one committed pairing with its full scoring detail.
type MatchPair struct {
	A     *models.CandidateRecord `json:"a"`
	B     *models.CandidateRecord `json:"b"`
	Score scoring.PairScore       `json:"score"`
}

// Result is the outcome of one matching run over a single pairing scheme.
type Result struct {
	Scheme     models.PairingScheme      `json:"scheme"`
	Matches    []*MatchPair              `json:"matches"`
	UnmatchedA []*models.CandidateRecord `json:"unmatched_a"`
	UnmatchedB []*models.CandidateRecord `json:"unmatched_b"`

	// Held lists records excluded from automatic matching because they
	// lack a usable date. They are reported separately so a reviewer can
	// resolve them manually.
	Held []*models.CandidateRecord `json:"held"`
}

type scoredPair struct {
	a, b  *models.CandidateRecord
	score scoring.PairScore
}

// Match runs the engine over the two sides of a pairing scheme. Records
// whose source type does not belong to the scheme are rejected, and a pair
// is admissible only when both records carry the same direction: a credit
// bank line never pairs with an input invoice. The result is deterministic:
// for equal inputs the same pairs are committed in the same order
// regardless of map iteration or goroutine scheduling.
func (e *Engine) Match(ctx context.Context, scheme models.PairingScheme, sideA, sideB []*models.CandidateRecord) (*Result, error) {
	if !scheme.IsValid() {
		return nil, errors.Errorf("unknown pairing scheme %q", scheme)
	}

	typeA, typeB := scheme.Sides()
	for _, rec := range sideA {
		if rec.SourceType != typeA {
			return nil, errors.Errorf("record %s has type %s, scheme %s expects %s on side A",
				rec.ID, rec.SourceType, scheme, typeA)
		}
	}
	for _, rec := range sideB {
		if rec.SourceType != typeB {
			return nil, errors.Errorf("record %s has type %s, scheme %s expects %s on side B",
				rec.ID, rec.SourceType, scheme, typeB)
		}
	}

	result := &Result{Scheme: scheme}

	eligibleA := make([]*models.CandidateRecord, 0, len(sideA))
	for _, rec := range sideA {
		if rec.HasDate() {
			eligibleA = append(eligibleA, rec)
		} else {
			result.Held = append(result.Held, rec)
		}
	}
	eligibleB := make([]*models.CandidateRecord, 0, len(sideB))
	for _, rec := range sideB {
		if rec.HasDate() {
			eligibleB = append(eligibleB, rec)
		} else {
			result.Held = append(result.Held, rec)
		}
	}

	pairs, err := e.scorePairs(ctx, eligibleA, eligibleB)
	if err != nil {
		return nil, err
	}

	sortPairs(pairs)

	matchedA := make(map[string]bool, len(eligibleA))
	matchedB := make(map[string]bool, len(eligibleB))

	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "matching cancelled")
		}
		if matchedA[p.a.ID] || matchedB[p.b.ID] {
			continue
		}
		matchedA[p.a.ID] = true
		matchedB[p.b.ID] = true
		result.Matches = append(result.Matches, &MatchPair{A: p.a, B: p.b, Score: p.score})
	}

	for _, rec := range eligibleA {
		if !matchedA[rec.ID] {
			result.UnmatchedA = append(result.UnmatchedA, rec)
		}
	}
	for _, rec := range eligibleB {
		if !matchedB[rec.ID] {
			result.UnmatchedB = append(result.UnmatchedB, rec)
		}
	}

	return result, nil
}

// scorePairs computes the admissible pair list. The index over side B prunes
// pairs that provably cannot reach the confidence floor; everything else is
// scored and kept when it clears the floor.
func (e *Engine) scorePairs(ctx context.Context, sideA, sideB []*models.CandidateRecord) ([]scoredPair, error) {
	index := NewRecordIndex(sideB)

	var pairs []scoredPair
	for i, a := range sideA {
		// Cancellation is polled per outer row; the inner loop is cheap.
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errors.Wrap(err, "scoring cancelled")
			}
		}
		for _, b := range index.CandidatesFor(a, e.config) {
			if a.Direction != b.Direction {
				continue
			}
			score := e.config.Score(a, b)
			if !score.Automatable() {
				continue
			}
			pairs = append(pairs, scoredPair{a: a, b: b, score: score})
		}
	}
	return pairs, nil
}

// sortPairs orders candidate pairs for the greedy sweep: confidence
// descending, then amount factor descending, then import order of the two
// records ascending as the deterministic tie-break of last resort.
func sortPairs(pairs []scoredPair) {
	sort.Slice(pairs, func(i, j int) bool {
		pi, pj := pairs[i], pairs[j]
		if pi.score.Confidence != pj.score.Confidence {
			return pi.score.Confidence > pj.score.Confidence
		}
		if pi.score.Scores.Amount != pj.score.Scores.Amount {
			return pi.score.Scores.Amount > pj.score.Scores.Amount
		}
		if pi.a.ImportOrder != pj.a.ImportOrder {
			return pi.a.ImportOrder < pj.a.ImportOrder
		}
		return pi.b.ImportOrder < pj.b.ImportOrder
	})
}

// ToMatches converts a matching result into persistable match rows
func (r *Result) ToMatches(sessionID string) []*models.Match {
	matches := make([]*models.Match, 0, len(r.Matches))
	for _, mp := range r.Matches {
		matchType := scoring.MatchTypeFor(mp.Score.Scores)
		matches = append(matches, models.NewMatch(
			sessionID, mp.A, mp.B, r.Scheme, matchType,
			mp.Score.Confidence, mp.Score.Scores,
		))
	}
	return matches
}
