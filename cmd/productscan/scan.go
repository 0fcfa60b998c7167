package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nao1215/productscan/internal/browser"
	"github.com/nao1215/productscan/internal/config"
	"github.com/nao1215/productscan/internal/crawler"
	"github.com/nao1215/productscan/internal/database"
	"github.com/nao1215/productscan/internal/fetch"
	"github.com/nao1215/productscan/internal/headers"
	"github.com/nao1215/productscan/internal/log"
	"github.com/nao1215/productscan/internal/model"
	"github.com/nao1215/productscan/internal/report"
	"github.com/spf13/cobra"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [domain...]",
		Short: "Collect product URLs from e-commerce sites",
		Long: `Scan renders each seed homepage in headless Chrome and collects the URLs
of product pages linked from it.

Each domain gets an isolated browser context with freshly generated
browser-like headers. Failed navigations are retried; when every attempt
fails the homepage is fetched with a plain HTTP GET instead. Errors never
stop the run: the product file is always written, with an empty list for
domains that could not be fetched.

Examples:
  # Scan one shop
  productscan scan https://shop.example.com/

  # Scan seeds from a file, at most 20 at a time
  productscan scan --list seeds.txt -b 20

  # Also traverse category pages, two levels deep
  productscan scan --follow --depth 2 https://shop.example.com/

  # Write Markdown and Excel summaries next to the JSON file
  productscan scan -o out/products.json -m out/report.md -x out/report.xlsx https://shop.example.com/

Configuration file (.productscan) example:
  domains:
    - https://shop.example.com/
  productPatterns:
    - /goods/\d+
  sites:
    shop.example.com:
      follow: true
      headers:
        Accept-Language: de-DE`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	// Input
	cmd.Flags().StringP("list", "l", "", "File with one seed URL per line (# starts a comment)")
	cmd.Flags().StringP("config", "c", "", "Configuration file path (default: .productscan in current or home directory)")
	cmd.Flags().StringArray("pattern", nil, "Extra product URL regular expression (repeatable)")

	// Output
	cmd.Flags().StringP("output", "o", config.DefaultOutput, "Product URL JSON file")
	cmd.Flags().StringP("markdown", "m", "", "Also write a Markdown summary to this path")
	cmd.Flags().StringP("xlsx", "x", "", "Also write an Excel workbook to this path")
	cmd.Flags().Bool("no-db", false, "Do not record the run in the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "History database directory")
	cmd.Flags().Bool("json-logs", false, "Write logs as JSON")
	cmd.Flags().Bool("show-products", false, "Print every product URL in the terminal summary")

	// Crawl behavior
	cmd.Flags().IntP("concurrency", "b", config.DefaultConcurrency, "Maximum domains crawled at once (0 crawls all seeds at the same time)")
	cmd.Flags().IntP("retries", "r", config.DefaultRetries, "Navigation attempts per domain before falling back")
	cmd.Flags().Duration("retry-delay", 0, "Pause between navigation attempts")
	cmd.Flags().DurationP("nav-timeout", "t", config.DefaultNavigationTimeout, "Timeout of one page navigation")
	cmd.Flags().DurationP("fetch-timeout", "T", config.DefaultFetchTimeout, "Timeout of the fallback HTTP fetch")
	cmd.Flags().BoolP("follow", "f", false, "Traverse discovered category pages")
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth, "Deepest extraction level (root page is 0)")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages, "Category pages traversed per domain with --follow")
	cmd.Flags().StringSlice("lang", nil, "Accept-Language tags to rotate through (e.g. en-US,de-DE)")

	// Browser and network
	cmd.Flags().Bool("headful", false, "Show the browser window")
	cmd.Flags().String("chrome", "", "Chrome binary (default: search the usual locations)")
	cmd.Flags().String("proxy", "", "Proxy URL for browser and fallback traffic (http, https, socks5)")
	cmd.Flags().Float64("rate", 0, "Maximum fallback requests per second (0 = unlimited)")

	return cmd
}

func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewLogger(os.Stderr, cfg.Verbose, cfg.JSONLogs)
	slog.SetDefault(logger)

	langs, err := cmd.Flags().GetStringSlice("lang")
	if err != nil {
		return err
	}
	showProducts, err := cmd.Flags().GetBool("show-products")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	launcher := browser.NewLauncher(
		browser.WithHeadless(cfg.Headless),
		browser.WithExecPath(cfg.ChromePath),
		browser.WithProxy(cfg.ProxyURL),
		browser.WithLogger(logger),
	)

	_, err = runScan(ctx, cfg, scanEnv{
		launcher:     launcher,
		languages:    langs,
		showProducts: showProducts,
		out:          cmd.OutOrStdout(),
		logger:       logger,
	})
	return err
}

// getVerboseFlag reads --verbose from the command or the root.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from flags, the seed list and the config file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()
	var err error

	if cfg.ListFile, err = flags.GetString("list"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.ProductPatterns, err = flags.GetStringArray("pattern"); err != nil {
		return nil, err
	}
	if cfg.Output, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.MarkdownFile, err = flags.GetString("markdown"); err != nil {
		return nil, err
	}
	if cfg.XLSXFile, err = flags.GetString("xlsx"); err != nil {
		return nil, err
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.JSONLogs, err = flags.GetBool("json-logs"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.Retries, err = flags.GetInt("retries"); err != nil {
		return nil, err
	}
	if cfg.RetryDelay, err = flags.GetDuration("retry-delay"); err != nil {
		return nil, err
	}
	if cfg.NavigationTimeout, err = flags.GetDuration("nav-timeout"); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = flags.GetDuration("fetch-timeout"); err != nil {
		return nil, err
	}
	if cfg.FollowCategories, err = flags.GetBool("follow"); err != nil {
		return nil, err
	}
	if cfg.MaxDepth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	headful, err := flags.GetBool("headful")
	if err != nil {
		return nil, err
	}
	cfg.Headless = !headful
	if cfg.ChromePath, err = flags.GetString("chrome"); err != nil {
		return nil, err
	}
	if cfg.ProxyURL, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = flags.GetFloat64("rate"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	cfg.Domains = append(cfg.Domains, args...)
	if cfg.ListFile != "" {
		seeds, err := config.ReadSeedList(cfg.ListFile)
		if err != nil {
			return nil, err
		}
		cfg.Domains = append(cfg.Domains, seeds...)
	}

	// An explicit config path must exist; the implicit search may find nothing.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		var explicit []string
		for _, name := range []string{config.SettingRetries, config.SettingFollow, config.SettingDepth, config.SettingMaxPages} {
			if flags.Changed(name) {
				explicit = append(explicit, name)
			}
		}
		cfg.ApplyFile(file, explicit...)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	return cfg, nil
}

// scanEnv holds what runScan needs besides the configuration.
type scanEnv struct {
	launcher     crawler.Launcher
	languages    []string
	showProducts bool
	out          io.Writer
	logger       *slog.Logger
}

// runScan crawls every seed and writes the outputs. Crawl failures never
// make it return an error; only invalid setup and unwritable artifacts do.
func runScan(ctx context.Context, cfg *config.Config, env scanEnv) (*model.Result, error) {
	logger := env.logger
	if logger == nil {
		logger = slog.Default()
	}

	classifier, err := cfg.Classifier()
	if err != nil {
		return nil, err
	}

	client, err := fetch.New(
		fetch.WithProxy(cfg.ProxyURL),
		fetch.WithRateLimit(cfg.RateLimit, burstFor(cfg.RateLimit)),
		fetch.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("configure fallback client: %w", err)
	}

	genOpts := []headers.Option{}
	if len(env.languages) > 0 {
		tags, err := headers.ParseLanguages(env.languages)
		if err != nil {
			return nil, fmt.Errorf("invalid --lang: %w", err)
		}
		genOpts = append(genOpts, headers.WithLanguages(tags...))
	}

	progress := &progressPrinter{out: env.out}
	orchestrator := crawler.NewOrchestrator(env.launcher, client, headers.New(genOpts...),
		crawler.WithLogger(logger),
		crawler.WithConcurrency(cfg.Concurrency),
		crawler.WithClassifier(classifier),
		crawler.WithSiteOptions(cfg.SiteOptions),
		crawler.OnDomainDone(progress.done),
	)

	result, err := orchestrator.Run(ctx, cfg.Domains)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		logger.Warn("scan interrupted, writing partial results")
	}

	if err := writeOutputs(cfg, result); err != nil {
		return result, err
	}

	if cfg.SaveToDB {
		saveRun(context.WithoutCancel(ctx), cfg.DBDir, result, logger)
	}

	if env.out != nil {
		if _, err := report.NewTextWriter(env.out, report.WithProductList(env.showProducts)).Write(result); err != nil {
			return result, fmt.Errorf("print summary: %w", err)
		}
		fmt.Fprintf(env.out, "Product URLs written to %s\n", cfg.Output)
	}
	return result, nil
}

// progressPrinter prints one line per finished domain. Crawlers finish
// concurrently.
type progressPrinter struct {
	mu    sync.Mutex
	out   io.Writer
	count int
}

func (p *progressPrinter) done(d model.DomainResult) {
	if p.out == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	fmt.Fprintf(p.out, "[%d] %s: %d products (%s, %s)\n",
		p.count, d.Domain, len(d.Products), d.Strategy, d.Duration.Round(time.Millisecond))
}

// burstFor allows one request of burst per started request-per-second.
func burstFor(rps float64) int {
	if rps <= 1 {
		return 1
	}
	return int(rps + 0.999)
}

// writeOutputs writes the JSON artifact, then the optional summaries.
func writeOutputs(cfg *config.Config, result *model.Result) error {
	if err := report.WriteFile(cfg.Output, result, func(w io.Writer) report.Writer {
		return report.NewJSONWriter(w)
	}); err != nil {
		return err
	}

	if cfg.MarkdownFile != "" {
		if err := report.WriteFile(cfg.MarkdownFile, result, func(w io.Writer) report.Writer {
			return report.NewMarkdownWriter(w)
		}); err != nil {
			return err
		}
	}

	if cfg.XLSXFile != "" {
		if err := report.WriteFile(cfg.XLSXFile, result, func(w io.Writer) report.Writer {
			return report.NewXLSXWriter(w)
		}); err != nil {
			return err
		}
	}
	return nil
}

// saveRun records the run in the history database. Failures are logged
// only: the artifact is the primary output.
func saveRun(ctx context.Context, dbDir string, result *model.Result, logger *slog.Logger) {
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		logger.Warn("failed to open history database", "dir", dbDir, "error", err)
		return
	}
	defer db.Close()

	runID, err := db.SaveRun(ctx, result)
	if err != nil {
		logger.Warn("failed to record run", "error", err)
		return
	}
	logger.Debug("run recorded", "run_id", runID, "db", db.Path())
}
