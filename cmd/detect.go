// =============================================================================
// Invoice Combiner - Detect Command
// =============================================================================
//
// This file defines the 'detect' command. It runs the first half of the
// pipeline (sniff, parse, header filter, classify) on one file and prints
// which column was assigned to which role, without standardizing or storing
// anything. Use it to see why a file fails schema detection.
//
// COMMAND USAGE:
//   combiner detect FILE [--schema evse|company]
//
// OUTPUT:
//   File:      sessions.csv
//   Encoding:  utf-8, delimiter ','
//   Rows:      120 (2 header row(s) removed)
//
//   ROLE              COLUMN        TIER     SCORE
//   identifier        EVSE ID       name
//   transaction_id    Session       name
//   currency          -             -        0.12
//   price             Net Price     name
//
//   Detection: ok (1 of 4 roles undetected, at most 2 allowed)
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/invoice-combiner/internal/classify"
	"github.com/ginjaninja78/invoice-combiner/internal/pipeline"
	"github.com/ginjaninja78/invoice-combiner/internal/validation"
)

var detectCmd = &cobra.Command{
	Use:   "detect FILE",
	Short: "Show the column roles detected in one file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().StringVar(&schemaName, "schema", "", "Schema to detect: evse or company (default from config)")
}

func runDetect(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if schemaName != "" {
		mainConfig.Schema = schemaName
	}
	s, err := mainConfig.ResolveSchema()
	if err != nil {
		return err
	}

	path := args[0]
	if !pipeline.IsSupported(path) {
		return fmt.Errorf("unsupported file type %q (supported: %v)", filepath.Ext(path), pipeline.SupportedExtensions)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	p, err := pipeline.New(s, mainConfig.TransformationRules)
	if err != nil {
		return err
	}

	res, err := p.Analyze(cmd.Context(), filepath.Base(path), data)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "File:      %s\n", res.File)
	if res.Dialect.Encoding != "" {
		fmt.Fprintf(out, "Encoding:  %s, delimiter %q\n", res.Dialect.Encoding, res.Dialect.Delimiter)
	}
	fmt.Fprintf(out, "Rows:      %d (%d header row(s) removed)\n\n", res.Table.Len(), len(res.RemovedRows))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROLE\tCOLUMN\tTIER\tSCORE")
	for _, d := range res.Detection.Detections {
		column, tier, score := "-", "-", ""
		if d.Tier != classify.TierNone {
			column, tier = d.Column, d.Tier.String()
		}
		if d.Tier != classify.TierName && d.Score > 0 {
			score = fmt.Sprintf("%.2f", d.Score)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Role, column, tier, score)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	undetected := len(res.Detection.Undetected)
	if err := validation.CheckDetection(s, res.Detection.Undetected); err != nil {
		fmt.Fprintf(out, "\nDetection: failed (%v)\n", err)
		return nil
	}
	fmt.Fprintf(out, "\nDetection: ok (%d of %d roles undetected, at most %d allowed)\n",
		undetected, len(s.Fields), s.MaxMissing)
	return nil
}
