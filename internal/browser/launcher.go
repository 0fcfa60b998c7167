package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/nao1215/productscan/internal/crawler"
)

// Launcher starts headless Chrome.
type Launcher struct {
	headless bool
	execPath string
	proxy    string
	logger   *slog.Logger
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithHeadless toggles headless mode. Default true.
func WithHeadless(headless bool) Option {
	return func(l *Launcher) {
		l.headless = headless
	}
}

// WithExecPath sets the Chrome binary. By default chromedp searches the
// usual install locations.
func WithExecPath(path string) Option {
	return func(l *Launcher) {
		l.execPath = strings.TrimSpace(path)
	}
}

// WithProxy routes browser traffic through proxyURL.
func WithProxy(proxyURL string) Option {
	return func(l *Launcher) {
		l.proxy = strings.TrimSpace(proxyURL)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Launcher) {
		l.logger = logger
	}
}

// NewLauncher creates a Launcher.
func NewLauncher(opts ...Option) *Launcher {
	l := &Launcher{headless: true}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// allocatorOptions returns the Chrome command line for this launcher.
func (l *Launcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("headless", l.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("mute-audio", true),
	}
	if l.execPath != "" {
		opts = append(opts, chromedp.ExecPath(l.execPath))
	}
	if l.proxy != "" {
		opts = append(opts, chromedp.ProxyServer(l.proxy))
	}
	return opts
}

// Launch starts Chrome and waits until it accepts commands.
// The browser lives until Close is called or ctx is cancelled.
func (l *Launcher) Launch(ctx context.Context) (crawler.Browser, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, l.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(l.logf(slog.LevelDebug)),
		chromedp.WithErrorf(l.logf(slog.LevelDebug)),
	)

	// The first Run starts the process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	l.logger.Debug("browser launched", "headless", l.headless, "proxy", l.proxy)
	return &Browser{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		logger:      l.logger,
	}, nil
}

func (l *Launcher) logf(level slog.Level) func(string, ...any) {
	return func(format string, args ...any) {
		l.logger.Log(context.Background(), level, "chromedp", "detail", fmt.Sprintf(format, args...))
	}
}

// Browser is a running Chrome process.
type Browser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *slog.Logger
}

// NewContext opens an isolated browser context. Every page opened in it
// sends headers and, with ignoreTLSErrors, accepts invalid certificates.
func (b *Browser) NewContext(ctx context.Context, headers map[string]string, ignoreTLSErrors bool) (crawler.BrowserContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cctx, cancel := chromedp.NewContext(b.ctx, chromedp.WithNewBrowserContext())
	if err := chromedp.Run(cctx); err != nil {
		cancel()
		return nil, fmt.Errorf("create browser context: %w", err)
	}

	copied := make(map[string]string, len(headers))
	for k, v := range headers {
		copied[k] = v
	}
	return &Context{
		ctx:             cctx,
		cancel:          cancel,
		headers:         copied,
		ignoreTLSErrors: ignoreTLSErrors,
		logger:          b.logger,
	}, nil
}

// Close shuts Chrome down.
func (b *Browser) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.cancel()
	b.allocCancel()
	if err != nil {
		return fmt.Errorf("close chrome: %w", err)
	}
	return nil
}
