package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sigreer/devolume/internal/history"
	"github.com/sigreer/devolume/internal/report"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent termination batches",
	Long: `Show termination batches from the audit log, newest first.

The audit log is off by default. Enable it with:

  history:
    enabled: true`,
	Run: runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Number of batches to show")
	historyCmd.Flags().String("batch", "", "Show per-process results of one batch ID")
	historyCmd.Flags().Bool("json", false, "Output as JSON")
}

func runHistory(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	batchID, _ := cmd.Flags().GetString("batch")
	jsonOut, _ := cmd.Flags().GetBool("json")

	a := setup()
	if !a.cfg.History.Enabled {
		fmt.Fprintln(os.Stderr, "History is disabled; set history.enabled: true in the config file")
		os.Exit(1)
	}

	db, err := history.New(a.cfg.History.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening history: %v\n", err)
		os.Exit(1)
	}

	code := showHistory(cmd.Context(), db, historyOptions{
		limit:   limit,
		batchID: batchID,
		json:    jsonOut,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	})
	db.Close()
	if code != 0 {
		os.Exit(code)
	}
}

type historyOptions struct {
	limit   int
	batchID string
	json    bool
	stdout  io.Writer
	stderr  io.Writer
}

// showHistory prints recent batches, or the results of the batch whose ID
// starts with opts.batchID, and returns the process exit code.
func showHistory(ctx context.Context, db *history.DB, opts historyOptions) int {
	if opts.batchID != "" {
		id, err := db.ResolveBatchID(ctx, opts.batchID)
		if err != nil {
			fmt.Fprintf(opts.stderr, "Error finding batch: %v\n", err)
			return 1
		}
		results, err := db.BatchResults(ctx, id)
		if err != nil {
			fmt.Fprintf(opts.stderr, "Error reading batch: %v\n", err)
			return 1
		}
		if opts.json {
			return encodeJSON(opts.stdout, opts.stderr, results)
		}
		if len(results) == 0 {
			fmt.Fprintf(opts.stdout, "No results recorded for batch %s\n", id)
			return 0
		}
		fmt.Fprintf(opts.stdout, "Batch %s\n", id)
		for _, r := range results {
			fmt.Fprintf(opts.stdout, "%-8d %-20s %-7s %s\n", r.PID, r.ProcessName, r.Outcome, r.Error)
		}
		return 0
	}

	batches, err := db.RecentBatches(ctx, opts.limit)
	if err != nil {
		fmt.Fprintf(opts.stderr, "Error reading history: %v\n", err)
		return 1
	}
	if opts.json {
		return encodeJSON(opts.stdout, opts.stderr, batches)
	}
	report.Batches(opts.stdout, batches)
	return 0
}

func encodeJSON(stdout, stderr io.Writer, v any) int {
	if err := report.JSON(stdout, v); err != nil {
		fmt.Fprintf(stderr, "Error encoding output: %v\n", err)
		return 1
	}
	return 0
}
