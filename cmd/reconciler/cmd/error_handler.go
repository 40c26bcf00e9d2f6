package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"fiscal-reconciliation-service/pkg/errors"
	"fiscal-reconciliation-service/pkg/logger"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.Global().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError prints an error for the user and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("command failed")

	if reconcilerErr, ok := errors.AsReconcilerError(err); ok {
		return h.handleReconcilerError(reconcilerErr)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}

func (h *CLIErrorHandler) handleReconcilerError(err *errors.ReconcilerError) int {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		fmt.Fprintf(os.Stderr, "\nContext:\n")
		for key, value := range err.Context {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", key, value)
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", err.Suggestion)
	}

	if help := categoryHelp(err.Category); help != "" {
		fmt.Fprintf(os.Stderr, "\n%s\n", help)
	}

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(os.Stderr, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

func categoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check if the file exists and is readable
• Verify the file path is correct (use absolute paths if needed)`

	case errors.CategoryParse:
		return `Parse error help:
• Verify the CSV file structure: date, amount, counterparty, reference, direction
• Ensure the file uses UTF-8 encoding and a comma delimiter`

	case errors.CategoryValidation:
		return `Validation error help:
• Verify date formats use YYYY-MM-DD
• Check that amounts are numeric (currency symbols are stripped automatically)`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Use 'reconciler reconcile --help' to see all available options`

	case errors.CategoryReconciliation:
		return `Reconciliation error help:
• Try adjusting matching tolerances (--date-tolerance, --amount-tolerance)
• Check that the input files carry documents of the expected types`

	case errors.CategoryConcurrency:
		return `Concurrency error help:
• Another run is active on this session; wait for it to finish`

	case errors.CategoryStorage:
		return `Storage error help:
• Check the --db path and its permissions
• Use 'reconciler sessions list' to see stored sessions`

	default:
		return ""
	}
}
