package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fiscal-reconciliation-service/cmd/reconciler/config"
	"fiscal-reconciliation-service/internal/ingest"
	"fiscal-reconciliation-service/internal/reporter"
	"fiscal-reconciliation-service/internal/session"
	apperrors "fiscal-reconciliation-service/pkg/errors"
	"fiscal-reconciliation-service/pkg/logger"
)

// Flags for the reconcile command
var (
	invoicesOutFiles []string
	invoicesInFiles  []string
	withholdingFiles []string
	bankFiles        []string

	periodStart string
	periodEnd   string
	sessionName string
	companyName string

	outputFormat string
	outputFile   string

	dateTolerance   int
	amountTolerance float64
	minConfidence   float64
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Import documents and run automatic matching",
	Long: `Reconcile imports fiscal document exports for one period, runs automatic
matching over both pairing schemes, and reports the result.

Pairing schemes:
- outgoing tax invoices against withholding certificates
- incoming invoices against bank statement lines

Examples:
  # Match purchases against the bank statement for March
  reconciler reconcile --invoices-in purchases.csv --bank statements.csv \
    --period-start 2024-03-01 --period-end 2024-03-31

  # Both schemes, persisted session, JSON report
  reconciler reconcile --db reconciler.db \
    --invoices-out sales.csv --withholding certs.csv \
    --invoices-in purchases.csv --bank statements.csv \
    --period-start 2024-03-01 --period-end 2024-03-31 \
    --output-format json --output-file report.json

  # Looser tolerances
  reconciler reconcile --invoices-in purchases.csv --bank statements.csv \
    --period-start 2024-03-01 --period-end 2024-03-31 \
    --date-tolerance 5 --amount-tolerance 2.5`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Input flags, one per document type
	reconcileCmd.Flags().StringSliceVar(&invoicesOutFiles, "invoices-out", nil, "outgoing tax invoice CSV files")
	reconcileCmd.Flags().StringSliceVar(&invoicesInFiles, "invoices-in", nil, "incoming invoice CSV files")
	reconcileCmd.Flags().StringSliceVar(&withholdingFiles, "withholding", nil, "withholding certificate CSV files")
	reconcileCmd.Flags().StringSliceVar(&bankFiles, "bank", nil, "bank statement CSV files")

	// Session flags
	reconcileCmd.Flags().StringVar(&periodStart, "period-start", "", "fiscal period start (YYYY-MM-DD, required)")
	reconcileCmd.Flags().StringVar(&periodEnd, "period-end", "", "fiscal period end (YYYY-MM-DD, required)")
	reconcileCmd.Flags().StringVar(&sessionName, "session-name", "", "session name (default: the period)")
	reconcileCmd.Flags().StringVar(&companyName, "company", "", "company whose books are being reconciled")

	// Output flags
	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")

	// Matching configuration flags
	reconcileCmd.Flags().IntVarP(&dateTolerance, "date-tolerance", "d", 0, "date matching tolerance in days")
	reconcileCmd.Flags().Float64VarP(&amountTolerance, "amount-tolerance", "a", 0.0, "amount tolerance percentage (0.0-100.0)")
	reconcileCmd.Flags().Float64Var(&minConfidence, "min-confidence", 0.0, "minimum confidence to commit a match (0.0-1.0)")

	reconcileCmd.MarkFlagRequired("period-start")
	reconcileCmd.MarkFlagRequired("period-end")

	viper.BindPFlag("output-format", reconcileCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("date-tolerance", reconcileCmd.Flags().Lookup("date-tolerance"))
	viper.BindPFlag("amount-tolerance", reconcileCmd.Flags().Lookup("amount-tolerance"))
	viper.BindPFlag("min-confidence", reconcileCmd.Flags().Lookup("min-confidence"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	if len(invoicesOutFiles)+len(invoicesInFiles)+len(withholdingFiles)+len(bankFiles) == 0 {
		return apperrors.NewConfigurationError(apperrors.CodeMissingField,
			"no input files given", nil).
			WithSuggestion("provide at least one of --invoices-out, --invoices-in, --withholding, --bank")
	}
	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	log := logger.Global().WithComponent("reconcile")

	start, end, err := config.ParsePeriod(periodStart, periodEnd)
	if err != nil {
		return err
	}

	scoringCfg, err := config.CreateScoringConfig(
		viper.GetFloat64("amount-tolerance"),
		viper.GetInt("date-tolerance"),
		viper.GetFloat64("min-confidence"),
	)
	if err != nil {
		return err
	}

	reportCfg, err := config.CreateReportConfig(viper.GetString("output-format"), true)
	if err != nil {
		return err
	}
	reportCfg.CounterpartyHintThreshold = scoringCfg.CounterpartySimilarityThreshold

	name := sessionName
	if name == "" {
		name = fmt.Sprintf("%s to %s", periodStart, periodEnd)
	}

	store, err := session.NewStore(databasePath())
	if err != nil {
		return err
	}
	defer store.Close()

	sess, err := session.NewSession(name, companyName, start, end)
	if err != nil {
		return apperrors.NewValidationError(apperrors.CodeInvalidData, "invalid session", err)
	}
	if err := store.CreateSession(ctx, sess); err != nil {
		return err
	}

	inputs := config.CollectInputs(invoicesOutFiles, invoicesInFiles, withholdingFiles, bankFiles)
	raws, stats, err := ingest.ReadAll(inputs)
	if err != nil {
		return err
	}
	for _, s := range stats {
		log.WithFields(logger.Fields{
			"file": s.File,
			"rows": s.TotalRows,
		}).Debug("read input file")
	}

	runner := session.NewRunner(store, log)

	imported, err := runner.ImportRecords(ctx, sess.ID, raws)
	if err != nil {
		return err
	}
	log.WithFields(logger.Fields{
		"session_id":   sess.ID,
		"imported":     imported.Imported,
		"needs_review": imported.NeedsReview,
	}).Info("import complete")

	result, err := runner.Run(ctx, sess.ID, scoringCfg)
	if err != nil {
		return err
	}

	writer, closer, err := openOutput(outputFile)
	if err != nil {
		return err
	}
	defer closer()

	rg, err := reporter.NewReportGenerator(reportCfg)
	if err != nil {
		return apperrors.NewConfigurationError(apperrors.CodeInvalidConfig, "invalid report configuration", err)
	}
	return rg.GenerateReport(result, writer)
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, apperrors.NewFileError(apperrors.CodeFilePermission,
			"cannot create output file", err).
			WithContext("path", path)
	}
	return f, func() { _ = f.Close() }, nil
}
