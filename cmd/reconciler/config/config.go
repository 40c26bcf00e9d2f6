// Package config assembles component configurations from CLI flag values.
package config

import (
	"time"

	"fiscal-reconciliation-service/internal/ingest"
	"fiscal-reconciliation-service/internal/models"
	"fiscal-reconciliation-service/internal/reporter"
	"fiscal-reconciliation-service/internal/scoring"
	apperrors "fiscal-reconciliation-service/pkg/errors"
)

// CreateScoringConfig builds a scoring configuration from CLI overrides.
// Zero values keep the defaults.
func CreateScoringConfig(amountTolerance float64, dateTolerance int, minConfidence float64) (*scoring.Config, error) {
	cfg := scoring.DefaultConfig()

	if amountTolerance > 0 {
		cfg.AmountTolerancePercent = amountTolerance
	}
	if dateTolerance > 0 {
		cfg.DateToleranceDays = dateTolerance
	}
	if minConfidence > 0 {
		cfg.MinConfidence = minConfidence
	}

	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewConfigurationError(apperrors.CodeInvalidConfig,
			"invalid matching tolerances", err).
			WithSuggestion("amount tolerance is a percentage in (0,100], date tolerance a positive day count")
	}

	return cfg, nil
}

// CreateReportConfig builds a report configuration from the format flag
func CreateReportConfig(format string, includeMatches bool) (*reporter.ReportConfig, error) {
	parsed, err := reporter.ParseFormat(format)
	if err != nil {
		return nil, apperrors.NewConfigurationError(apperrors.CodeInvalidConfig,
			"invalid output format", err).
			WithContext("format", format).
			WithSuggestion("supported formats: console, json, csv")
	}

	cfg := reporter.DefaultReportConfig()
	cfg.Format = parsed
	cfg.IncludeMatches = includeMatches
	return cfg, nil
}

// ParsePeriod parses the session period flags (YYYY-MM-DD)
func ParsePeriod(start, end string) (time.Time, time.Time, error) {
	startDate, err := time.Parse("2006-01-02", start)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.NewValidationError(apperrors.CodeInvalidDate,
			"invalid period start date", err).
			WithContext("value", start).
			WithSuggestion("use YYYY-MM-DD")
	}

	endDate, err := time.Parse("2006-01-02", end)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.NewValidationError(apperrors.CodeInvalidDate,
			"invalid period end date", err).
			WithContext("value", end).
			WithSuggestion("use YYYY-MM-DD")
	}

	if endDate.Before(startDate) {
		return time.Time{}, time.Time{}, apperrors.NewValidationError(apperrors.CodePeriodMismatch,
			"period end is before period start", nil).
			WithContext("start", start).
			WithContext("end", end)
	}

	return startDate, endDate, nil
}

// CollectInputs pairs the per-type file flags with their document types
func CollectInputs(invoicesOut, invoicesIn, withholding, bank []string) []ingest.Input {
	var inputs []ingest.Input
	for _, path := range invoicesOut {
		inputs = append(inputs, ingest.Input{Path: path, SourceType: models.SourceInvoiceOut})
	}
	for _, path := range invoicesIn {
		inputs = append(inputs, ingest.Input{Path: path, SourceType: models.SourceInvoiceIn})
	}
	for _, path := range withholding {
		inputs = append(inputs, ingest.Input{Path: path, SourceType: models.SourceWithholdingCert})
	}
	for _, path := range bank {
		inputs = append(inputs, ingest.Input{Path: path, SourceType: models.SourceBankTransaction})
	}
	return inputs
}
