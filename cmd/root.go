// =============================================================================
// Invoice Combiner - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. All other commands
// are attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (combiner)
//   ├── processCmd (combiner process)
//   ├── detectCmd  (combiner detect)
//   ├── queryCmd   (combiner query)
//   └── versionCmd (combiner version)
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Setting up global flags (--config, --verbose)
//   2. Loading config.yaml (and .env) before any subcommand runs
//   3. Setting up logging on stderr
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/invoice-combiner/internal/config"
	"github.com/ginjaninja78/invoice-combiner/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// mainConfig is loaded by PersistentPreRunE.
var mainConfig *config.MainConfig

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use: "combiner",

	Short: "Invoice Combiner - merge heterogeneous invoice exports into one table",

	Long: `Invoice Combiner reads invoice exports (CSV, XLSX, XLS) whose column layouts
are unknown and inconsistent, works out which column holds which value, and
writes a single standardized four-column table.

Key Features:
  - Encoding and delimiter detection for CSV files
  - Removal of header rows repeated inside the data
  - Heuristic column classification with name and content tiers
  - Persistent store that skips rows it has already seen
  - CSV, XLSX or XML export of the combined table

Example Usage:
  combiner process                       # Process every file in the input directory
  combiner process a.csv b.xlsx          # Process the given files, in this order
  combiner detect export.csv             # Show which column plays which role
  combiner query --from 2024-01-01       # Print stored rows as CSV`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		cfg, err := config.LoadMainConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load main config: %w", err)
		}
		if verbose {
			cfg.LogLevel = "debug"
		}
		logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)

		mainConfig = cfg
		return nil
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}
