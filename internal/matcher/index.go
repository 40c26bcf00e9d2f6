package matcher

import (
	"sort"

	"github.com/shopspring/decimal"

	"fiscal-reconciliation-service/internal/models"
	"fiscal-reconciliation-service/internal/scoring"
)

// RecordIndex provides amount and date indexing over one side of a pairing
// so the engine can skip pairs that cannot possibly clear the confidence
// floor. The index is a pure accelerator: the set of pairs it yields is a
// superset of every pair the floor admits, so engine output is identical to
// a full cross-product scan.
type RecordIndex struct {
	// amountEntries holds all records sorted by amount for range scans.
	amountEntries []*amountIndexEntry

	// dateIndex maps date keys (YYYY-MM-DD) to records on that day.
	// Records without a date are not indexed; they never match anyway.
	dateIndex map[string][]*models.CandidateRecord

	// all holds every indexed record in import order.
	all []*models.CandidateRecord
}

type amountIndexEntry struct {
	amount  decimal.Decimal
	records []*models.CandidateRecord
}

// NewRecordIndex builds an index over a slice of candidate records
func NewRecordIndex(records []*models.CandidateRecord) *RecordIndex {
	idx := &RecordIndex{
		dateIndex: make(map[string][]*models.CandidateRecord),
		all:       records,
	}

	byAmount := make(map[string][]*models.CandidateRecord)
	for _, rec := range records {
		key := rec.Amount.String()
		byAmount[key] = append(byAmount[key], rec)

		if rec.HasDate() {
			dk := rec.DateKey()
			idx.dateIndex[dk] = append(idx.dateIndex[dk], rec)
		}
	}

	idx.amountEntries = make([]*amountIndexEntry, 0, len(byAmount))
	for _, group := range byAmount {
		idx.amountEntries = append(idx.amountEntries, &amountIndexEntry{
			amount:  group[0].Amount,
			records: group,
		})
	}
	sort.Slice(idx.amountEntries, func(i, j int) bool {
		return idx.amountEntries[i].amount.LessThan(idx.amountEntries[j].amount)
	})

	return idx
}

// All returns every indexed record
func (idx *RecordIndex) All() []*models.CandidateRecord {
	return idx.all
}

// Len returns the number of indexed records
func (idx *RecordIndex) Len() int {
	return len(idx.all)
}

// CandidatesFor returns the records worth scoring against the given record.
// Prefilters are only applied when the configuration makes them lossless:
//
//   - the amount range filter requires the confidence floor to exceed the
//     weight mass outside the amount factor, so any pair with a zero amount
//     score is already below the floor;
//   - the date window filter likewise requires the floor to exceed the
//     non-date weight mass.
//
// When neither filter is provably safe the full record set is returned.
func (idx *RecordIndex) CandidatesFor(rec *models.CandidateRecord, cfg *scoring.Config) []*models.CandidateRecord {
	amountSafe := cfg.MinConfidence > 1.0-cfg.Weights.Amount
	dateSafe := cfg.MinConfidence > 1.0-cfg.Weights.Date && rec.HasDate()

	switch {
	case amountSafe && dateSafe:
		byAmount := idx.amountRange(rec.Amount, cfg)
		if len(byAmount) <= idx.Len()/2 {
			return byAmount
		}
		return idx.dateWindow(rec, cfg)
	case amountSafe:
		return idx.amountRange(rec.Amount, cfg)
	case dateSafe:
		return idx.dateWindow(rec, cfg)
	default:
		return idx.all
	}
}

// amountRange returns records whose amount score against the given amount is
// nonzero, i.e. within three times the relative tolerance.
func (idx *RecordIndex) amountRange(amount decimal.Decimal, cfg *scoring.Config) []*models.CandidateRecord {
	// The relative difference is taken against the larger magnitude, so the
	// admissible band is widest when the other amount is the larger one:
	// |a-b| / max(a,b,1) < 3*tol/100 admits b in (a*(1-f), a/(1-f)) with
	// f = 3*tol/100, padded by the near-zero floor of 1.
	if len(idx.amountEntries) == 0 {
		return nil
	}

	f := decimal.NewFromFloat(3 * cfg.AmountTolerancePercent / 100.0)
	pad := f // absolute slack from the max(...,1) floor

	lower := amount.Mul(decimal.NewFromInt(1).Sub(f)).Sub(pad)
	var upper decimal.Decimal
	oneMinusF := decimal.NewFromInt(1).Sub(f)
	if oneMinusF.IsPositive() {
		upper = amount.Div(oneMinusF).Add(pad)
	} else {
		upper = idx.amountEntries[len(idx.amountEntries)-1].amount
	}

	lo := sort.Search(len(idx.amountEntries), func(i int) bool {
		return !idx.amountEntries[i].amount.LessThan(lower)
	})

	var result []*models.CandidateRecord
	for i := lo; i < len(idx.amountEntries); i++ {
		if idx.amountEntries[i].amount.GreaterThan(upper) {
			break
		}
		result = append(result, idx.amountEntries[i].records...)
	}
	return result
}

// dateWindow returns records dated strictly within twice the tolerance of
// the given record, the span over which the date score stays above zero.
func (idx *RecordIndex) dateWindow(rec *models.CandidateRecord, cfg *scoring.Config) []*models.CandidateRecord {
	window := 2 * cfg.DateToleranceDays

	var result []*models.CandidateRecord
	for offset := -window; offset <= window; offset++ {
		day := rec.Date.AddDate(0, 0, offset)
		key := day.Format("2006-01-02")
		result = append(result, idx.dateIndex[key]...)
	}
	return result
}
