package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "productscan",
		Short: "Discover product page URLs on e-commerce sites",
		Long: `productscan crawls e-commerce homepages and collects the URLs of product pages.

Each seed is rendered in headless Chrome. Links are resolved, deduplicated
and classified as product pages or same-site category pages. When a page
cannot be rendered after the configured retries, the homepage is fetched
with a plain HTTP GET and product links are extracted from the raw HTML.

Results are written to a JSON file mapping each seed to its product URLs,
and every run is recorded in a local history database.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
