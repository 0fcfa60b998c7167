package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/productscan/internal/config"
	"github.com/nao1215/productscan/internal/crawler"
	"github.com/nao1215/productscan/internal/database"
	"github.com/nao1215/productscan/internal/report"
	"github.com/spf13/cobra"
)

const historyTimeFormat = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command.
// It reads the run history database written by scan.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [domain]",
		Short: "Show past runs and product changes",
		Long: `History displays runs recorded in the local database.

Without arguments it lists recent runs and every domain ever crawled.
With a domain it lists that domain's runs. With --diff it shows which
product URLs appeared or disappeared between the two latest runs.

Examples:
  # List recent runs
  productscan history

  # Show every run of one shop
  productscan history https://shop.example.com/

  # Products added or removed since the previous run
  productscan history --diff https://shop.example.com/

  # Machine readable output
  productscan history --json --diff https://shop.example.com/`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", 20, "Number of runs to list (0 = all)")
	cmd.Flags().Bool("diff", false, "Compare the two latest runs of the domain")
	cmd.Flags().BoolP("json", "j", false, "Output in JSON format")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "History database directory")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	diff, err := cmd.Flags().GetBool("diff")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database.
	var domain string
	if len(args) == 1 {
		domain = strings.TrimSpace(args[0])
		if err := crawler.ValidateDomain(domain); err != nil {
			return fmt.Errorf("%w: %q", config.ErrInvalidDomain, domain)
		}
	}
	if diff && domain == "" {
		return errors.New("--diff requires a domain")
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dbDir, opts)
	if err != nil {
		return fmt.Errorf("failed to open history database (run 'productscan scan' first): %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	switch {
	case diff:
		return showDiff(ctx, out, db, domain, jsonOutput)
	case domain != "":
		return showDomainHistory(ctx, out, db, domain, jsonOutput)
	default:
		return showRuns(ctx, out, db, limit, jsonOutput)
	}
}

// showRuns lists recent runs and the crawled domains.
func showRuns(ctx context.Context, out io.Writer, db *database.RunDB, limit int, jsonOutput bool) error {
	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	domains, err := db.ListDomains(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		_, err := report.NewJSONWriter(out, report.WithIndent("  ")).WriteValue(struct {
			Runs    []database.RunSummary `json:"runs"`
			Domains []string              `json:"domains"`
		}{Runs: nonNil(runs), Domains: nonNil(domains)})
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found in the database.")
		fmt.Fprintln(out, "\nUse 'productscan scan <domain>' to crawl a site.")
		return nil
	}

	fmt.Fprintf(out, "Recent runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-36s  %-19s  %8s  %8s  %6s\n", "ID", "Started", "Domains", "Products", "Errors")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 85))
	for _, r := range runs {
		fmt.Fprintf(out, "  %-36s  %-19s  %8d  %8d  %6d\n",
			r.ID, r.StartedAt.Local().Format(historyTimeFormat), r.DomainCount, r.ProductCount, r.ErrorCount)
	}

	fmt.Fprintf(out, "\nCrawled domains (%d):\n\n", len(domains))
	for _, d := range domains {
		fmt.Fprintf(out, "  • %s\n", d)
	}
	fmt.Fprintln(out, "\nUse 'productscan history --diff <domain>' to see product changes.")
	return nil
}

// showDomainHistory lists every run of one domain.
func showDomainHistory(ctx context.Context, out io.Writer, db *database.RunDB, domain string, jsonOutput bool) error {
	history, err := db.GetDomainHistory(ctx, domain)
	if err != nil {
		return err
	}

	if jsonOutput {
		_, err := report.NewJSONWriter(out, report.WithIndent("  ")).WriteValue(nonNil(history))
		return err
	}

	if len(history) == 0 {
		fmt.Fprintf(out, "No history found for %s\n", domain)
		return nil
	}

	fmt.Fprintf(out, "History for %s (%d runs):\n\n", domain, len(history))
	fmt.Fprintf(out, "  %-19s  %-9s  %8s  %10s  %8s  %s\n", "Started", "Strategy", "Products", "Categories", "Attempts", "Run ID")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 100))
	for _, h := range history {
		fmt.Fprintf(out, "  %-19s  %-9s  %8d  %10d  %8d  %s\n",
			h.StartedAt.Local().Format(historyTimeFormat), h.Strategy.String(),
			h.ProductCount, h.CategoryCount, h.Attempts, h.RunID)
	}
	return nil
}

// showDiff prints product URLs added and removed between the latest runs.
func showDiff(ctx context.Context, out io.Writer, db *database.RunDB, domain string, jsonOutput bool) error {
	diff, err := db.DiffLatest(ctx, domain)
	if errors.Is(err, database.ErrNotEnoughRuns) {
		return fmt.Errorf("need at least two runs of %s to compare: %w", domain, err)
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		_, err := report.NewJSONWriter(out, report.WithIndent("  ")).WriteValue(diff)
		return err
	}

	fmt.Fprintf(out, "Product changes for %s\n", domain)
	fmt.Fprintf(out, "  previous: %s (%d products)\n",
		diff.Previous.StartedAt.Local().Format(historyTimeFormat), diff.Previous.ProductCount)
	fmt.Fprintf(out, "  current:  %s (%d products)\n\n",
		diff.Current.StartedAt.Local().Format(historyTimeFormat), diff.Current.ProductCount)

	if diff.Unchanged {
		fmt.Fprintln(out, "No changes.")
		return nil
	}

	fmt.Fprintf(out, "Added (%d):\n", len(diff.Added))
	for _, u := range diff.Added {
		fmt.Fprintf(out, "  + %s\n", u)
	}
	fmt.Fprintf(out, "Removed (%d):\n", len(diff.Removed))
	for _, u := range diff.Removed {
		fmt.Fprintf(out, "  - %s\n", u)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
