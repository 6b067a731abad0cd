// =============================================================================
// Invoice Combiner - Process Command
// =============================================================================
//
// This file defines the 'process' command, which runs a batch of invoice
// exports through the pipeline and writes the combined table.
//
// COMMAND USAGE:
//   combiner process [files...] [flags]
//
// FLAGS:
//   --schema   : Output schema (evse, company); overrides config.yaml
//   --dry-run  : Use an in-memory store and leave the inputs in place
//   --format   : Output format (csv, xlsx, xml); overrides config.yaml
//   --output   : Explicit output path instead of output_file_format
//
// PROCESSING PIPELINE:
//   1. Resolve the schema, output format and input files
//   2. Open and initialize the store
//   3. Run the batch, one file at a time, printing a line per file
//   4. Write the combined table
//   5. Archive successful inputs, write the error log and metrics
//      (an XML export also gets its XSD next to it)
//   6. Print the summary
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/invoice-combiner/internal/config"
	"github.com/ginjaninja78/invoice-combiner/internal/export"
	"github.com/ginjaninja78/invoice-combiner/internal/metrics"
	"github.com/ginjaninja78/invoice-combiner/internal/pipeline"
	"github.com/ginjaninja78/invoice-combiner/internal/schema"
	"github.com/ginjaninja78/invoice-combiner/internal/store"
	"github.com/ginjaninja78/invoice-combiner/internal/validation"
	"github.com/ginjaninja78/invoice-combiner/internal/xmlwriter"
	"github.com/ginjaninja78/invoice-combiner/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	schemaName   string
	dryRun       bool
	outputFormat string
	outputPath   string
)

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process [files...]",
	Short: "Combine invoice exports into one standardized table",
	Long: `The process command reads the given files, or every .csv, .xlsx and .xls
file in the input directory sorted by name, and standardizes each one into
the four columns of the selected schema.

Files are processed one after the other. A file that cannot be read or
classified is reported and skipped; it never stops the batch.

On success:
  - The file's rows are added to the store; rows already stored are skipped
  - The rows are appended to the combined output table
  - The input is moved to the archive when archive_on_success is set

On error:
  - The file is listed in an error log in the output directory
  - The input remains in place`,

	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVar(&schemaName, "schema", "", "Output schema: evse or company (default from config)")
	processCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Use an in-memory store and do not archive inputs")
	processCmd.Flags().StringVar(&outputFormat, "format", "", "Output format: csv, xlsx or xml (default from config)")
	processCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (default from output_file_format)")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	startTime := time.Now()

	// =========================================================================
	// STEP 1: RESOLVE SETTINGS AND INPUTS
	// =========================================================================

	if schemaName != "" {
		mainConfig.Schema = schemaName
	}
	s, err := mainConfig.ResolveSchema()
	if err != nil {
		return err
	}

	format := mainConfig.OutputFormat
	if outputFormat != "" {
		format = strings.ToLower(outputFormat)
	}
	switch format {
	case config.FormatCSV, config.FormatXLSX, config.FormatXML:
	default:
		return fmt.Errorf("unknown output format %q (want csv, xlsx or xml)", format)
	}

	fm := utils.NewFileManager(
		mainConfig.InputDir,
		mainConfig.OutputDir,
		mainConfig.InputArchiveDir,
		mainConfig.ArchiveOnSuccess && !dryRun,
	)
	if err := fm.EnsureDirectories(); err != nil {
		return err
	}

	paths := args
	if len(paths) == 0 {
		paths, err = fm.DiscoverInputFiles(pipeline.SupportedExtensions)
		if err != nil {
			return fmt.Errorf("failed to discover input files: %w", err)
		}
	}
	if len(paths) == 0 {
		fmt.Fprintf(out, "No .csv, .xlsx or .xls files found in %s\n", mainConfig.InputDir)
		return nil
	}

	inputs := make([]pipeline.Input, len(paths))
	for i, path := range paths {
		inputs[i] = pipeline.FileInput(path)
	}

	p, err := pipeline.New(s, mainConfig.TransformationRules)
	if err != nil {
		return err
	}

	// =========================================================================
	// STEP 2: OPEN THE STORE
	// =========================================================================

	databaseURL := mainConfig.DatabaseURL
	if dryRun {
		databaseURL = ""
	}
	st, err := store.Open(ctx, databaseURL, s)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Initialize(ctx); err != nil {
		return err
	}

	// =========================================================================
	// STEP 3: RUN THE BATCH
	// =========================================================================

	fmt.Fprintf(out, "=== Invoice Combiner (%s) ===\n", s.Name)
	fmt.Fprintf(out, "Processing %d file(s)...\n", len(inputs))

	m := metrics.New()
	batch := pipeline.NewBatch(p, st,
		pipeline.WithMetrics(m),
		pipeline.WithProgress(func(done, total int, o *pipeline.FileOutcome) {
			printOutcome(out, done, total, o)
		}),
	)
	result := batch.Run(ctx, inputs)

	// =========================================================================
	// STEP 4: WRITE THE COMBINED TABLE
	// =========================================================================

	target := ""
	if len(result.Records) > 0 {
		target = outputPath
		if target == "" {
			target = fm.OutputPath(mainConfig.OutputFileFormat, map[string]string{
				"schema": s.Name,
				"ext":    format,
			})
		}
		if err := export.WriteFile(target, format, s, result.Records); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		m.AddRows(metrics.RowsExported, len(result.Records))

		if format == config.FormatXML {
			if err := writeXSD(strings.TrimSuffix(target, filepath.Ext(target))+".xsd", s); err != nil {
				fmt.Fprintf(out, "  ! could not write XSD: %v\n", err)
			}
		}
	}

	// =========================================================================
	// STEP 5: ARCHIVE, ERROR LOG, METRICS
	// =========================================================================

	var errorEntries []utils.ErrorLogEntry
	for i, o := range result.Outcomes {
		if !o.Succeeded() {
			entry := utils.ErrorLogEntry{
				Timestamp:    time.Now(),
				FileName:     o.File,
				ErrorType:    pipeline.KindOf(o.Err).String(),
				ErrorMessage: o.Err.Error(),
				Stage:        stageOf(o),
			}
			errorEntries = append(errorEntries, entry)
			continue
		}
		if _, err := fm.ArchiveInputFile(paths[i]); err != nil {
			fmt.Fprintf(out, "  ! could not archive %s: %v\n", o.File, err)
		}
	}

	logPath, err := fm.WriteErrorLog(errorEntries)
	if err != nil {
		fmt.Fprintf(out, "  ! could not write error log: %v\n", err)
	}

	if mainConfig.MetricsFile != "" {
		if err := m.WriteToTextfile(mainConfig.MetricsFile); err != nil {
			fmt.Fprintf(out, "  ! could not write metrics: %v\n", err)
		}
	}

	// =========================================================================
	// STEP 6: SUMMARY
	// =========================================================================

	fmt.Fprintln(out, "\n=== Processing Complete ===")
	fmt.Fprintf(out, "Total files:     %d\n", len(result.Outcomes))
	fmt.Fprintf(out, "Successful:      %d\n", len(result.Outcomes)-len(result.Failed()))
	fmt.Fprintf(out, "Errors:          %d\n", len(result.Failed()))
	fmt.Fprintf(out, "Rows combined:   %d\n", len(result.Records))
	fmt.Fprintf(out, "Rows inserted:   %d\n", result.Inserted)
	fmt.Fprintf(out, "Rows skipped:    %d\n", result.Skipped)
	fmt.Fprintf(out, "Time elapsed:    %s\n", time.Since(startTime).Round(time.Millisecond))
	if target != "" {
		fmt.Fprintf(out, "Output:          %s\n", target)
	} else {
		fmt.Fprintln(out, "Output:          none (no rows)")
	}
	if logPath != "" {
		fmt.Fprintf(out, "\nErrors have been logged to %s\n", logPath)
	}
	if dryRun {
		fmt.Fprintln(out, "\nDry run: nothing was persisted or archived.")
	}

	return nil
}

// printOutcome writes the one-line result of a file.
func printOutcome(w io.Writer, done, total int, o *pipeline.FileOutcome) {
	if !o.Succeeded() {
		fmt.Fprintf(w, "  [%d/%d] ✗ %v\n", done, total, o.Err)
		return
	}

	line := fmt.Sprintf("  [%d/%d] ✓ %s: %d row(s), %d inserted, %d skipped",
		done, total, o.File, len(o.Result.Records), o.Inserted, o.Skipped)
	if n := len(o.Result.RemovedRows); n > 0 {
		line += fmt.Sprintf(", %d header row(s) removed", n)
	}
	if undetected := o.Result.Detection.Undetected; len(undetected) > 0 {
		line += fmt.Sprintf(", undetected: %v", undetected)
	}
	if n := o.Warnings(); n > 0 {
		line += fmt.Sprintf(", %d warning(s)", n)
	}
	fmt.Fprintln(w, line)

	if verbose && o.Warnings() > 0 {
		for _, l := range strings.Split(strings.TrimSpace(validation.FormatErrors(o.Result.Validation.Errors, 5)), "\n") {
			fmt.Fprintf(w, "        %s\n", l)
		}
	}
}

// writeXSD writes the schema of the XML export next to it.
func writeXSD(path string, s *schema.Schema) error {
	data, err := xmlwriter.GenerateXSD(s, xmlwriter.DefaultGenerateOptions())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// stageOf returns the state the failed file had reached.
func stageOf(o *pipeline.FileOutcome) string {
	var pe *pipeline.Error
	if errors.As(o.Err, &pe) {
		return pe.State.String()
	}
	return ""
}
