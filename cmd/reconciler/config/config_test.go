package config

import (
	"testing"

	"fiscal-reconciliation-service/internal/models"
	"fiscal-reconciliation-service/internal/reporter"
)

func TestCreateScoringConfigDefaults(t *testing.T) {
	cfg, err := CreateScoringConfig(0, 0, 0)
	if err != nil {
		t.Fatalf("zero overrides should keep defaults: %v", err)
	}
	if cfg.AmountTolerancePercent != 1.0 {
		t.Errorf("expected default amount tolerance, got %f", cfg.AmountTolerancePercent)
	}
	if cfg.DateToleranceDays != 3 {
		t.Errorf("expected default date tolerance, got %d", cfg.DateToleranceDays)
	}
	if cfg.MinConfidence != 0.70 {
		t.Errorf("expected default minimum confidence, got %f", cfg.MinConfidence)
	}
}

func TestCreateScoringConfigOverrides(t *testing.T) {
	cfg, err := CreateScoringConfig(2.5, 5, 0.8)
	if err != nil {
		t.Fatalf("valid overrides rejected: %v", err)
	}
	if cfg.AmountTolerancePercent != 2.5 || cfg.DateToleranceDays != 5 || cfg.MinConfidence != 0.8 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestCreateScoringConfigInvalid(t *testing.T) {
	if _, err := CreateScoringConfig(150, 0, 0); err == nil {
		t.Error("amount tolerance above 100 should be rejected")
	}
	if _, err := CreateScoringConfig(0, 0, 1.5); err == nil {
		t.Error("confidence above 1.0 should be rejected")
	}
}

func TestCreateReportConfig(t *testing.T) {
	cfg, err := CreateReportConfig("json", true)
	if err != nil {
		t.Fatalf("json format rejected: %v", err)
	}
	if cfg.Format != reporter.FormatJSON {
		t.Errorf("expected json format, got %s", cfg.Format)
	}

	if _, err := CreateReportConfig("yaml", true); err == nil {
		t.Error("unsupported format should be rejected")
	}
}

func TestParsePeriod(t *testing.T) {
	start, end, err := ParsePeriod("2024-03-01", "2024-03-31")
	if err != nil {
		t.Fatalf("valid period rejected: %v", err)
	}
	if !end.After(start) {
		t.Error("period end should be after start")
	}

	if _, _, err := ParsePeriod("2024-03-31", "2024-03-01"); err == nil {
		t.Error("inverted period should be rejected")
	}
	if _, _, err := ParsePeriod("03/01/2024", "2024-03-31"); err == nil {
		t.Error("non-ISO date should be rejected")
	}
}

func TestCollectInputs(t *testing.T) {
	inputs := CollectInputs(
		[]string{"sales.csv"},
		[]string{"purchases.csv"},
		nil,
		[]string{"bank1.csv", "bank2.csv"},
	)

	if len(inputs) != 4 {
		t.Fatalf("expected 4 inputs, got %d", len(inputs))
	}
	if inputs[0].SourceType != models.SourceInvoiceOut {
		t.Errorf("first input should be an outgoing invoice file")
	}
	if inputs[3].SourceType != models.SourceBankTransaction {
		t.Errorf("last input should be a bank file")
	}
}
