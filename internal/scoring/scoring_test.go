package scoring

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fiscal-reconciliation-service/internal/models"
)

func newRecord(amount string, date string, counterparty string, reference string) *models.CandidateRecord {
	rec := &models.CandidateRecord{
		Amount:            decimal.RequireFromString(amount),
		CounterpartyName:  counterparty,
		DocumentReference: reference,
	}
	if date != "" {
		d, err := time.Parse("2006-01-02", date)
		if err != nil {
			panic(err)
		}
		rec.Date = &d
	}
	return rec
}

func TestWeightsValidate(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Fatalf("default weights should be valid: %v", err)
	}

	bad := Weights{Amount: 0.5, Date: 0.3, Counterparty: 0.15, Reference: 0.10}
	if err := bad.Validate(); err == nil {
		t.Error("weights summing to 1.05 should fail validation")
	}

	negative := Weights{Amount: -0.1, Date: 0.5, Counterparty: 0.35, Reference: 0.25}
	if err := negative.Validate(); err == nil {
		t.Error("negative weight should fail validation")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero amount tolerance", func(c *Config) { c.AmountTolerancePercent = 0 }},
		{"excessive amount tolerance", func(c *Config) { c.AmountTolerancePercent = 150 }},
		{"zero date tolerance", func(c *Config) { c.DateToleranceDays = 0 }},
		{"zero min confidence", func(c *Config) { c.MinConfidence = 0 }},
		{"min confidence above one", func(c *Config) { c.MinConfidence = 1.5 }},
		{"zero reference length", func(c *Config) { c.MinReferenceLength = 0 }},
		{"broken weights", func(c *Config) { c.Weights.Amount = 0.9 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tt.name)
			}
		})
	}
}

func TestAmountScore(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"exact", "1000.00", "1000.00", 1.0},
		{"within tolerance", "1000.00", "1005.00", 1.0}, // 0.5% diff
		{"at tolerance boundary", "1000.00", "1010.00", 1.0},
		{"at double tolerance", "1000.00", "1020.20", 0.5},
		{"beyond triple tolerance", "1000.00", "1031.00", 0.0},
		{"near zero amounts", "0.00", "0.50", 0.0},
		{"zero equals zero", "0.00", "0.00", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := decimal.RequireFromString(tt.a)
			b := decimal.RequireFromString(tt.b)
			got := cfg.AmountScore(a, b)
			if diff := got - tt.want; diff > 0.02 || diff < -0.02 {
				t.Errorf("AmountScore(%s, %s) = %f, want ~%f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestAmountScoreMonotonic(t *testing.T) {
	cfg := DefaultConfig()
	base := decimal.RequireFromString("1000.00")

	prev := 1.1
	for _, other := range []string{"1000", "1005", "1012", "1018", "1024", "1031", "1100"} {
		got := cfg.AmountScore(base, decimal.RequireFromString(other))
		if got > prev {
			t.Errorf("score should not increase as difference grows: %s scored %f after %f", other, got, prev)
		}
		prev = got
	}
}

func TestDateScore(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name  string
		dateA string
		dateB string
		want  float64
	}{
		{"same day", "2024-03-15", "2024-03-15", 1.0},
		{"three days apart", "2024-03-15", "2024-03-18", 0.5},
		{"five days apart", "2024-03-15", "2024-03-20", 1.0 / 6.0},
		{"six days apart", "2024-03-15", "2024-03-21", 0.0},
		{"symmetric", "2024-03-18", "2024-03-15", 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newRecord("100", tt.dateA, "", "")
			b := newRecord("100", tt.dateB, "", "")
			got := cfg.DateScore(a, b)
			if diff := got - tt.want; diff > 0.001 || diff < -0.001 {
				t.Errorf("DateScore(%s, %s) = %f, want %f", tt.dateA, tt.dateB, got, tt.want)
			}
		})
	}
}

func TestDateScoreMissingDate(t *testing.T) {
	cfg := DefaultConfig()
	withDate := newRecord("100", "2024-03-15", "", "")
	noDate := newRecord("100", "", "", "")

	if got := cfg.DateScore(withDate, noDate); got != 0.0 {
		t.Errorf("missing date should score 0, got %f", got)
	}
	if got := cfg.DateScore(noDate, noDate); got != 0.0 {
		t.Errorf("both dates missing should score 0, got %f", got)
	}
}

func TestCounterpartyScore(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "maju jaya abadi", "maju jaya abadi", 1.0},
		{"disjoint", "maju jaya", "sumber rejeki", 0.0},
		{"partial overlap", "maju jaya abadi", "maju jaya", 2.0 / 3.0},
		{"token order irrelevant", "jaya maju", "maju jaya", 1.0},
		{"empty side", "", "maju jaya", 0.0},
		{"both empty", "", "", 0.0},
		{"duplicate tokens collapse", "maju maju jaya", "maju jaya", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cfg.CounterpartyScore(tt.a, tt.b)
			if diff := got - tt.want; diff > 0.001 || diff < -0.001 {
				t.Errorf("CounterpartyScore(%q, %q) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestReferenceTokens(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"INV-2024-0042", []string{"2024", "0042"}},
		{"Payment for invoice 88812", []string{"88812"}},
		{"no digits here", nil},
		{"A1", nil}, // below minimum token length
		{"", nil},
	}

	for _, tt := range tests {
		got := ReferenceTokens(tt.input)
		if len(got) != len(tt.want) {
			t.Errorf("ReferenceTokens(%q) = %v, want %v", tt.input, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ReferenceTokens(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
			}
		}
	}
}

func TestReferenceScore(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"exact token", "INV-2024-0042", "payment inv 0042", 1.0},
		{"long substring", "TRX9912345", "ref 9912345 settled", 1.0},
		{"short substring", "INV-042", "PO-20240421", 0.5},
		{"no tokens left", "ref", "INV-100", 0.0},
		{"both empty", "", "", 0.0},
		{"case insensitive", "inv2024", "INV2024", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cfg.ReferenceScore(tt.a, tt.b)
			if got != tt.want {
				t.Errorf("ReferenceScore(%q, %q) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCompositeScoreHighTier(t *testing.T) {
	cfg := DefaultConfig()

	// Half a percent amount difference, same date, identical counterparty,
	// no references: 0.50 + 0.25 + 0.15 + 0 = 0.90.
	a := newRecord("1000.00", "2024-03-15", "maju jaya", "")
	b := newRecord("1005.00", "2024-03-15", "maju jaya", "")

	result := cfg.Score(a, b)
	if result.Confidence < 0.899 || result.Confidence > 0.901 {
		t.Errorf("expected confidence ~0.90, got %f", result.Confidence)
	}
	if result.Tier != TierHigh {
		t.Errorf("expected high tier, got %s", result.Tier)
	}
	if !result.Automatable() {
		t.Error("high tier pair should be automatable")
	}
}

func TestCompositeScoreNoMatchTier(t *testing.T) {
	cfg := DefaultConfig()

	// Same amount and counterparty but a ten day gap zeroes the date
	// factor: 0.50 + 0 + 0.15 = 0.65, below the confidence floor.
	a := newRecord("1000.00", "2024-03-01", "maju jaya", "")
	b := newRecord("1000.00", "2024-03-11", "maju jaya", "")

	result := cfg.Score(a, b)
	if result.Confidence < 0.649 || result.Confidence > 0.651 {
		t.Errorf("expected confidence ~0.65, got %f", result.Confidence)
	}
	if result.Tier != TierNoMatch {
		t.Errorf("expected no_match tier, got %s", result.Tier)
	}
	if result.Automatable() {
		t.Error("no_match pair must not be automatable")
	}
}

func TestScoreDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	a := newRecord("1000.00", "2024-03-15", "maju jaya", "INV-001")
	b := newRecord("1003.00", "2024-03-16", "maju jaya abadi", "INV-001")

	first := cfg.Score(a, b)
	for i := 0; i < 5; i++ {
		if got := cfg.Score(a, b); got != first {
			t.Fatalf("scoring is not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestTierFor(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		score float64
		want  Tier
	}{
		{0.95, TierHigh},
		{0.90, TierHigh},
		{0.89, TierMedium},
		{0.80, TierMedium},
		{0.79, TierLow},
		{0.70, TierLow},
		{0.69, TierNoMatch},
		{0.0, TierNoMatch},
	}

	for _, tt := range tests {
		if got := cfg.TierFor(tt.score); got != tt.want {
			t.Errorf("TierFor(%f) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestMatchTypeFor(t *testing.T) {
	exact := models.FactorScores{Amount: 1.0, Date: 1.0, Counterparty: 0.2, Reference: 0}
	if got := MatchTypeFor(exact); got != models.MatchExact {
		t.Errorf("perfect amount and date should be exact, got %s", got)
	}

	fuzzy := models.FactorScores{Amount: 1.0, Date: 0.8, Counterparty: 1.0, Reference: 1.0}
	if got := MatchTypeFor(fuzzy); got != models.MatchFuzzy {
		t.Errorf("imperfect date should be fuzzy, got %s", got)
	}
}
