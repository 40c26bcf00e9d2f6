package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fiscal-reconciliation-service/pkg/logger"
)

var (
	cfgFile string
	verbose bool
	dbPath  string
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "Fiscal document reconciliation tool",
	Long: `Reconciler matches fiscal documents against their settlement evidence:
outgoing tax invoices against withholding certificates, and incoming
invoices against bank statement lines. Matching is tolerance-based with
per-factor confidence scores, and every run can be repeated safely.

Examples:
  reconciler reconcile --invoices-in purchases.csv --bank statements.csv \
    --period-start 2024-03-01 --period-end 2024-03-31
  reconciler sessions list --db reconciler.db
  reconciler match --db reconciler.db --session <id> --record-a <id> --record-b <id>`,
	Version: getVersionString(),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "session database path (default: in-memory)")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
}

// initConfig reads the config file, .env and environment variables.
func initConfig() {
	// A .env next to the binary is convenient for local runs; absence is
	// not an error.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)

		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(1)
		}
	}

	viper.SetEnvPrefix("RECONCILER")
	viper.AutomaticEnv()

	level := "info"
	if viper.GetBool("verbose") {
		level = "debug"
	}
	logger.Configure(&logger.Config{
		Level:  level,
		Format: viper.GetString("log_format"),
	})
}

// databasePath resolves the session database location; in-memory when unset
func databasePath() string {
	if path := viper.GetString("db"); path != "" {
		return path
	}
	return ":memory:"
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
