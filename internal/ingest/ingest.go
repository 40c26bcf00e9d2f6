// Package ingest reads financial document exports from CSV files and turns
// them into raw rows for normalization. One file carries one document type;
// the caller names the type, the file supplies the rows.
package ingest

import (
	"os"
	"strings"

	"github.com/gocarina/gocsv"

	"fiscal-reconciliation-service/internal/models"
	"fiscal-reconciliation-service/internal/normalizer"
	apperrors "fiscal-reconciliation-service/pkg/errors"
)

// Row is one CSV line of a document export. Header names are matched
// case-insensitively by gocsv.
type Row struct {
	Date         string `csv:"date"`
	Amount       string `csv:"amount"`
	Counterparty string `csv:"counterparty"`
	Reference    string `csv:"reference"`
	Direction    string `csv:"direction"`
}

// Stats summarizes one file read.
type Stats struct {
	File      string `json:"file"`
	TotalRows int    `json:"total_rows"`
	EmptyRows int    `json:"empty_rows"`
}

// ReadFile parses a CSV export into raw records of the given source type.
// Rows with no amount and no date are counted and skipped; they are
// separator or annotation lines, not documents.
func ReadFile(path string, sourceType models.SourceType) ([]normalizer.RawRecord, *Stats, error) {
	if !sourceType.IsValid() {
		return nil, nil, apperrors.NewValidationError(apperrors.CodeInvalidSourceType,
			"unknown source type", nil).
			WithContext("source_type", string(sourceType))
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, apperrors.NewFileError(apperrors.CodeFileNotFound, "input file not found", err).
				WithContext("path", path).
				WithSuggestion("check the file path")
		}
		return nil, nil, apperrors.NewFileError(apperrors.CodeFilePermission, "cannot open input file", err).
			WithContext("path", path)
	}
	defer f.Close()

	var rows []*Row
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, nil, apperrors.NewParseError(apperrors.CodeInvalidFormat, "failed to parse CSV", err).
			WithContext("path", path).
			WithSuggestion("expected columns: date, amount, counterparty, reference, direction")
	}

	stats := &Stats{File: path, TotalRows: len(rows)}

	raws := make([]normalizer.RawRecord, 0, len(rows))
	for i, row := range rows {
		if isEmptyRow(row) {
			stats.EmptyRows++
			continue
		}

		raws = append(raws, normalizer.RawRecord{
			SourceType:   sourceType,
			SourceFile:   path,
			SourceRow:    i + 2, // 1-based, after the header line
			Date:         row.Date,
			Amount:       row.Amount,
			Counterparty: row.Counterparty,
			Reference:    row.Reference,
			Direction:    row.Direction,
		})
	}

	return raws, stats, nil
}

func isEmptyRow(row *Row) bool {
	return strings.TrimSpace(row.Amount) == "" && strings.TrimSpace(row.Date) == ""
}

// Input pairs a file path with the document type it contains.
type Input struct {
	Path       string
	SourceType models.SourceType
}

// ReadAll reads every input file and concatenates their rows in input order
func ReadAll(inputs []Input) ([]normalizer.RawRecord, []*Stats, error) {
	var raws []normalizer.RawRecord
	var stats []*Stats

	for _, in := range inputs {
		rows, fileStats, err := ReadFile(in.Path, in.SourceType)
		if err != nil {
			return nil, nil, err
		}
		raws = append(raws, rows...)
		stats = append(stats, fileStats)
	}

	return raws, stats, nil
}
