package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiscal-reconciliation-service/internal/models"
	apperrors "fiscal-reconciliation-service/pkg/errors"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadFile(t *testing.T) {
	path := writeTempCSV(t, `date,amount,counterparty,reference,direction
2024-03-15,1000.00,PT Maju Jaya,INV-100,
2024-03-16,"1,500.00",CV Sumber Rejeki,INV-101,debit
,,,,
`)

	raws, stats, err := ReadFile(path, models.SourceInvoiceIn)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalRows)
	assert.Equal(t, 1, stats.EmptyRows)
	require.Len(t, raws, 2)

	assert.Equal(t, models.SourceInvoiceIn, raws[0].SourceType)
	assert.Equal(t, "2024-03-15", raws[0].Date)
	assert.Equal(t, "1000.00", raws[0].Amount)
	assert.Equal(t, "PT Maju Jaya", raws[0].Counterparty)
	assert.Equal(t, 2, raws[0].SourceRow)

	assert.Equal(t, "1,500.00", raws[1].Amount)
	assert.Equal(t, "debit", raws[1].Direction)
	assert.Equal(t, 3, raws[1].SourceRow)
}

func TestReadFileMissing(t *testing.T) {
	_, _, err := ReadFile("/no/such/file.csv", models.SourceInvoiceIn)
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryFile))
}

func TestReadFileInvalidSourceType(t *testing.T) {
	_, _, err := ReadFile("whatever.csv", models.SourceType("bogus"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryValidation))
}

func TestReadFileMalformed(t *testing.T) {
	path := writeTempCSV(t, `date,amount
2024-03-15,100,extra,columns,here
`)

	_, _, err := ReadFile(path, models.SourceInvoiceIn)
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryParse))
}

func TestReadAll(t *testing.T) {
	invoices := writeTempCSV(t, `date,amount,counterparty,reference,direction
2024-03-15,1000.00,Acme,,
`)
	bank := filepath.Join(t.TempDir(), "bank.csv")
	require.NoError(t, os.WriteFile(bank, []byte(`date,amount,counterparty,reference,direction
2024-03-15,1000.00,Acme,,
`), 0o644))

	raws, stats, err := ReadAll([]Input{
		{Path: invoices, SourceType: models.SourceInvoiceIn},
		{Path: bank, SourceType: models.SourceBankTransaction},
	})
	require.NoError(t, err)

	require.Len(t, raws, 2)
	assert.Len(t, stats, 2)
	assert.Equal(t, models.SourceInvoiceIn, raws[0].SourceType)
	assert.Equal(t, models.SourceBankTransaction, raws[1].SourceType)
}
