package database

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/productscan/internal/model"
)

// FileName is the database file name inside the data directory.
const FileName = "productscan.db"

var (
	// ErrNotEnoughRuns is returned by DiffLatest when a domain was crawled
	// fewer than two times.
	ErrNotEnoughRuns = errors.New("at least two runs are needed to compare")

	// ErrRunNotFound is returned when a run ID is unknown.
	ErrRunNotFound = errors.New("run not found")
)

// RunDB is the SQLite run history.
type RunDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures RunDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and file if missing.
	CreateIfNotExists bool

	// EnableWAL enables write-ahead logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
func Open(dbDir string, opts Options) (*RunDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}
	db, err := sql.Open("sqlite", dbPath+"?mode="+mode+"&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &RunDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return rdb, nil
}

// Path returns the database file path.
func (r *RunDB) Path() string {
	return r.dbPath
}

// Close closes the database.
func (r *RunDB) Close() error {
	return r.db.Close()
}

func (r *RunDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		domain_count INTEGER NOT NULL,
		product_count INTEGER NOT NULL,
		error_count INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- One row per domain and run
	CREATE TABLE IF NOT EXISTS domain_runs (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		domain TEXT NOT NULL,
		started_at TEXT NOT NULL,
		strategy TEXT NOT NULL,
		product_count INTEGER NOT NULL,
		category_count INTEGER NOT NULL,
		visited_count INTEGER NOT NULL,
		pages_rendered INTEGER NOT NULL,
		attempts INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		digest TEXT NOT NULL,
		PRIMARY KEY (run_id, domain)
	);

	CREATE INDEX IF NOT EXISTS idx_domain_runs_domain ON domain_runs(domain, started_at);

	CREATE TABLE IF NOT EXISTS products (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		domain TEXT NOT NULL,
		url TEXT NOT NULL,
		PRIMARY KEY (run_id, domain, url)
	);

	CREATE TABLE IF NOT EXISTS crawl_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		domain TEXT NOT NULL,
		url TEXT,
		kind TEXT NOT NULL,
		message TEXT NOT NULL,
		recorded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_crawl_errors_run ON crawl_errors(run_id);
	`
	_, err := r.db.ExecContext(context.Background(), schema)
	return err
}

// ProductDigest returns the hex SHA3-256 digest of a product set.
// The digest does not depend on the order of urls.
func ProductDigest(urls []string) string {
	sorted := slices.Clone(urls)
	slices.Sort(sorted)
	sum := sha3.Sum256([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(sum[:])
}

// SaveRun stores result in a single transaction and returns the new run ID.
func (r *RunDB) SaveRun(ctx context.Context, result *model.Result) (string, error) {
	if result == nil {
		return "", errors.New("nil result")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate run ID: %w", err)
	}
	runID := id.String()
	started := formatTime(result.StartedAt)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, domain_count, product_count, error_count) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, started, formatTime(result.FinishedAt), len(result.Domains), result.TotalProducts(), len(result.Errors),
	); err != nil {
		return "", fmt.Errorf("failed to save run: %w", err)
	}

	for _, d := range result.Domains {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO domain_runs (run_id, domain, started_at, strategy, product_count, category_count,
				visited_count, pages_rendered, attempts, duration_ms, digest)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, d.Domain, started, d.Strategy.String(), len(d.Products), len(d.Categories),
			d.VisitedCount, d.PagesRendered, d.Attempts, d.Duration.Milliseconds(), ProductDigest(d.Products),
		); err != nil {
			return "", fmt.Errorf("failed to save domain %s: %w", d.Domain, err)
		}

		for _, p := range d.Products {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO products (run_id, domain, url) VALUES (?, ?, ?)`,
				runID, d.Domain, p,
			); err != nil {
				return "", fmt.Errorf("failed to save product: %w", err)
			}
		}
	}

	for _, e := range result.Errors {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO crawl_errors (run_id, domain, url, kind, message, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, e.Domain, e.URL, string(e.Kind), e.Message, formatTime(e.Time),
		); err != nil {
			return "", fmt.Errorf("failed to save error: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// RunSummary describes one stored run.
type RunSummary struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	DomainCount  int       `json:"domain_count"`
	ProductCount int       `json:"product_count"`
	ErrorCount   int       `json:"error_count"`
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means all.
func (r *RunDB) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
	SELECT id, started_at, finished_at, domain_count, product_count, error_count
	FROM runs
	ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var (
			s                 RunSummary
			started, finished string
		)
		if err := rows.Scan(&s.ID, &started, &finished, &s.DomainCount, &s.ProductCount, &s.ErrorCount); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.StartedAt = parseTimestamp(started)
		s.FinishedAt = parseTimestamp(finished)
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

// ListDomains returns every domain that was ever crawled, sorted.
func (r *RunDB) ListDomains(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT domain FROM domain_runs ORDER BY domain`)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan domain: %w", err)
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// DomainRun is one domain's statistics within a run.
type DomainRun struct {
	RunID         string         `json:"run_id"`
	Domain        string         `json:"domain"`
	StartedAt     time.Time      `json:"started_at"`
	Strategy      model.Strategy `json:"strategy"`
	ProductCount  int            `json:"product_count"`
	CategoryCount int            `json:"category_count"`
	VisitedCount  int            `json:"visited_count"`
	PagesRendered int            `json:"pages_rendered"`
	Attempts      int            `json:"attempts"`
	Duration      time.Duration  `json:"duration"`
	Digest        string         `json:"digest"`
}

// GetDomainHistory returns every run of domain, newest first.
func (r *RunDB) GetDomainHistory(ctx context.Context, domain string) ([]DomainRun, error) {
	return r.domainRuns(ctx, domain, 0)
}

func (r *RunDB) domainRuns(ctx context.Context, domain string, limit int) ([]DomainRun, error) {
	query := `
	SELECT run_id, domain, started_at, strategy, product_count, category_count,
		visited_count, pages_rendered, attempts, duration_ms, digest
	FROM domain_runs
	WHERE domain = ?
	ORDER BY started_at DESC, run_id DESC`
	args := []any{domain}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get domain history: %w", err)
	}
	defer rows.Close()

	var runs []DomainRun
	for rows.Next() {
		var (
			d          DomainRun
			started    string
			strategy   string
			durationMS int64
		)
		if err := rows.Scan(&d.RunID, &d.Domain, &started, &strategy, &d.ProductCount, &d.CategoryCount,
			&d.VisitedCount, &d.PagesRendered, &d.Attempts, &durationMS, &d.Digest); err != nil {
			return nil, fmt.Errorf("failed to scan domain run: %w", err)
		}
		d.StartedAt = parseTimestamp(started)
		d.Strategy = model.Strategy(strategy)
		d.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, d)
	}
	return runs, rows.Err()
}

// GetProducts returns the product URLs of domain in run, sorted.
func (r *RunDB) GetProducts(ctx context.Context, runID, domain string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT url FROM products WHERE run_id = ? AND domain = ? ORDER BY url`, runID, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to get products: %w", err)
	}
	defer rows.Close()

	urls := make([]string, 0)
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// GetErrors returns the errors recorded in run, in insertion order.
func (r *RunDB) GetErrors(ctx context.Context, runID string) ([]model.CrawlError, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to look up run: %w", err)
	}
	if exists == 0 {
		return nil, ErrRunNotFound
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT domain, url, kind, message, recorded_at FROM crawl_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get errors: %w", err)
	}
	defer rows.Close()

	errs := make([]model.CrawlError, 0)
	for rows.Next() {
		var (
			e        model.CrawlError
			pageURL  sql.NullString
			kind     string
			recorded string
		)
		if err := rows.Scan(&e.Domain, &pageURL, &kind, &e.Message, &recorded); err != nil {
			return nil, fmt.Errorf("failed to scan error: %w", err)
		}
		e.URL = pageURL.String
		e.Kind = model.ParseErrorKind(kind)
		e.Time = parseTimestamp(recorded)
		errs = append(errs, e)
	}
	return errs, rows.Err()
}

// Diff compares a domain's product sets between two runs.
type Diff struct {
	Domain    string    `json:"domain"`
	Previous  DomainRun `json:"previous"`
	Current   DomainRun `json:"current"`
	Unchanged bool      `json:"unchanged"`
	Added     []string  `json:"added"`
	Removed   []string  `json:"removed"`
}

// DiffLatest compares the two most recent runs of domain. Equal digests
// short-circuit the comparison.
func (r *RunDB) DiffLatest(ctx context.Context, domain string) (*Diff, error) {
	runs, err := r.domainRuns(ctx, domain, 2)
	if err != nil {
		return nil, err
	}
	if len(runs) < 2 {
		return nil, ErrNotEnoughRuns
	}

	diff := &Diff{
		Domain:   domain,
		Current:  runs[0],
		Previous: runs[1],
		Added:    []string{},
		Removed:  []string{},
	}
	if diff.Current.Digest == diff.Previous.Digest {
		diff.Unchanged = true
		return diff, nil
	}

	current, err := r.GetProducts(ctx, diff.Current.RunID, domain)
	if err != nil {
		return nil, err
	}
	previous, err := r.GetProducts(ctx, diff.Previous.RunID, domain)
	if err != nil {
		return nil, err
	}
	diff.Added, diff.Removed = compareSets(previous, current)
	diff.Unchanged = len(diff.Added) == 0 && len(diff.Removed) == 0
	return diff, nil
}

// compareSets returns the sorted elements only in current and only in
// previous.
func compareSets(previous, current []string) (added, removed []string) {
	prev := make(map[string]struct{}, len(previous))
	for _, u := range previous {
		prev[u] = struct{}{}
	}
	cur := make(map[string]struct{}, len(current))
	for _, u := range current {
		cur[u] = struct{}{}
	}

	added, removed = []string{}, []string{}
	for u := range cur {
		if _, ok := prev[u]; !ok {
			added = append(added, u)
		}
	}
	for u := range prev {
		if _, ok := cur[u]; !ok {
			removed = append(removed, u)
		}
	}
	slices.Sort(added)
	slices.Sort(removed)
	return added, removed
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// timestampFormats are the layouts parseTimestamp accepts, most specific first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp parses a stored timestamp. Unknown layouts yield the zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
