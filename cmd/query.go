// =============================================================================
// Invoice Combiner - Query Command
// =============================================================================
//
// This file defines the 'query' command, which reads persisted rows back
// from the store and prints them as CSV on stdout. Logs go to stderr, so the
// output can be redirected to a file.
//
// COMMAND USAGE:
//   combiner query --all
//   combiner query --from 2024-01-01 --to 2024-01-31
//   combiner query --key sess-abc-123-xyz
//   combiner query --identifier DE*ABC*E0001
//
// Dates are RFC3339 or YYYY-MM-DD. Both ends of the range are inclusive; a
// bare --to date covers that whole day.
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/invoice-combiner/internal/export"
	"github.com/ginjaninja78/invoice-combiner/internal/store"
	"github.com/ginjaninja78/invoice-combiner/internal/types"
)

var (
	queryAll        bool
	queryFrom       string
	queryTo         string
	queryKey        string
	queryIdentifier string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Print stored rows as CSV",
	Long: `The query command reads rows from the store configured by database_url and
prints them as CSV, oldest first. Exactly one selection is required: --all,
a date range (--from and/or --to), --key or --identifier.

The in-memory store is empty in a fresh process, so query is only useful
with a database.`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringVar(&schemaName, "schema", "", "Schema whose table is read (default from config)")
	queryCmd.Flags().BoolVar(&queryAll, "all", false, "Print every stored row")
	queryCmd.Flags().StringVar(&queryFrom, "from", "", "Earliest processed date (inclusive)")
	queryCmd.Flags().StringVar(&queryTo, "to", "", "Latest processed date (inclusive)")
	queryCmd.Flags().StringVar(&queryKey, "key", "", "Transaction id to look up")
	queryCmd.Flags().StringVar(&queryIdentifier, "identifier", "", "Identifier (first column) to look up")

	queryCmd.MarkFlagsMutuallyExclusive("all", "key", "identifier")
	queryCmd.MarkFlagsMutuallyExclusive("all", "from")
	queryCmd.MarkFlagsMutuallyExclusive("all", "to")
	queryCmd.MarkFlagsMutuallyExclusive("key", "from")
	queryCmd.MarkFlagsMutuallyExclusive("key", "to")
	queryCmd.MarkFlagsMutuallyExclusive("identifier", "from")
	queryCmd.MarkFlagsMutuallyExclusive("identifier", "to")
	queryCmd.MarkFlagsOneRequired("all", "from", "to", "key", "identifier")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if schemaName != "" {
		mainConfig.Schema = schemaName
	}
	s, err := mainConfig.ResolveSchema()
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, mainConfig.DatabaseURL, s)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Initialize(ctx); err != nil {
		return err
	}

	var rows []types.InvoiceRow
	switch {
	case queryAll:
		rows, err = st.QueryAll(ctx)
	case queryKey != "":
		rows, err = st.QueryByKey(ctx, queryKey)
	case queryIdentifier != "":
		rows, err = st.QueryByIdentifier(ctx, queryIdentifier)
	default:
		start, end, perr := parseRange(queryFrom, queryTo)
		if perr != nil {
			return perr
		}
		rows, err = st.QueryByDateRange(ctx, start, end)
	}
	if err != nil {
		return err
	}

	return export.WriteRows(cmd.OutOrStdout(), s, rows)
}

// Range bounds used when one end is omitted.
var (
	minDate = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	maxDate = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
)

// parseRange parses the --from and --to values. A date-only --to is moved to
// the last instant of that day.
func parseRange(from, to string) (time.Time, time.Time, error) {
	start, end := minDate, maxDate

	if from != "" {
		t, _, err := parseDate(from)
		if err != nil {
			return start, end, fmt.Errorf("invalid --from: %w", err)
		}
		start = t
	}

	if to != "" {
		t, dateOnly, err := parseDate(to)
		if err != nil {
			return start, end, fmt.Errorf("invalid --to: %w", err)
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		end = t
	}

	if end.Before(start) {
		return start, end, errors.New("--to is before --from")
	}
	return start, end, nil
}

func parseDate(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, false, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%q is neither RFC3339 nor YYYY-MM-DD", s)
	}
	return t, true, nil
}
