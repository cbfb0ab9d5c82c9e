package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/masahif/tiendacrawl/internal/config"
	"github.com/masahif/tiendacrawl/internal/export"
	"github.com/masahif/tiendacrawl/internal/model"
	"github.com/masahif/tiendacrawl/internal/storage"
)

// NewRunsCmd creates the runs command, which reads the SQLite run archive.
func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List archived crawl runs or print one of them",
		Long: `Runs reads the archive written by 'tiendacrawl --database <path>'.

Without arguments it lists every archived run, newest first. With a run ID
it prints that run's products and skipped units in the chosen format.

Examples:
  # List archived runs
  tiendacrawl runs -d products/runs.db

  # Print one run as a Markdown report
  tiendacrawl runs -d products/runs.db 5f1c2a7e-...

  # Print one run as CSV
  tiendacrawl runs -d products/runs.db --format csv 5f1c2a7e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRunsCmd,
	}

	cmd.Flags().StringP("database", "d", "", "SQLite archive to read (required)")
	cmd.Flags().StringP("format", "f", config.FormatMarkdown, "Output format for a single run: csv, json, markdown")

	return cmd
}

func runRunsCmd(cmd *cobra.Command, args []string) error {
	dbPath, err := cmd.Flags().GetString("database")
	if err != nil {
		return err
	}
	if dbPath == "" {
		return errors.New("--database is required")
	}
	// Opening a missing path would create an empty archive.
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("no archive at %s: %w", dbPath, err)
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(args) == 0 {
		return listRuns(cmd.OutOrStdout(), runs)
	}

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	return showRun(ctx, cmd.OutOrStdout(), store, runs, args[0], format)
}

func listRuns(w io.Writer, runs []storage.RunSummary) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No archived runs.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTARTED\tSTOP\tPAGES\tPRODUCTS\tFAILURES")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n",
			r.ID, r.StartedAt.Format(time.DateTime), r.StopReason, r.Pages, r.Products, r.Failures)
	}
	return tw.Flush()
}

// showRun rebuilds an archived run and renders it with the export writer for format
func showRun(ctx context.Context, w io.Writer, store *storage.SQLiteStorage, runs []storage.RunSummary, runID, format string) error {
	writer, err := export.ForFormat(format)
	if err != nil {
		return err
	}

	var summary *storage.RunSummary
	for i := range runs {
		if runs[i].ID == runID {
			summary = &runs[i]
			break
		}
	}
	if summary == nil {
		return fmt.Errorf("run %s not found in archive", runID)
	}

	products, err := store.LoadProducts(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load products: %w", err)
	}
	failures, err := store.LoadFailures(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load failures: %w", err)
	}

	var itemFailures, imageFailures int
	for _, f := range failures {
		switch f.Kind {
		case model.FailureDownload, model.FailureWrite:
			imageFailures++
		default:
			itemFailures++
		}
	}

	result := &model.CrawlResult{
		RunID:      summary.ID,
		BaseURL:    summary.BaseURL,
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
		Products:   products,
		Failures:   failures,
		Stats: model.CrawlStats{
			PagesVisited:  summary.Pages,
			Products:      len(products),
			ItemFailures:  itemFailures,
			ImageFailures: imageFailures,
			StopReason:    summary.StopReason,
		},
	}
	return writer.Write(w, result)
}
