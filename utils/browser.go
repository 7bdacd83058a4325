package utils

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"kinorium-scraper/internal/types"
)

// Browser owns one Chrome process and opens tabs on it as pool sessions
type Browser struct {
	config   *types.Config
	logger   types.Logger
	headless bool

	mu            sync.Mutex
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

// NewBrowser creates a browser launcher. Chrome starts lazily with the first session.
func NewBrowser(config *types.Config, logger types.Logger, headless bool) *Browser {
	return &Browser{
		config:   config,
		logger:   logger,
		headless: headless,
	}
}

// NewSessionPool wraps the browser in a session pool of BrowserPoolSize tabs
func (b *Browser) NewSessionPool() *SessionPool {
	return NewSessionPool(b.config.BrowserPoolSize, b.NewSession, b.logger)
}

func (b *Browser) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(b.config.UserAgent),
	)
	if b.config.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(b.config.ChromePath))
	}
	if os.Getuid() == 0 {
		opts = append(opts, chromedp.NoSandbox)
	}
	return opts
}

// browser returns the context of the running Chrome, launching it on first use.
// ctx bounds the launch; a failed launch is retried by the next caller.
func (b *Browser) browser(ctx context.Context) (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCtx != nil {
		return b.browserCtx, nil
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), b.allocatorOptions()...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(b.logger.Debugf))

	stop := context.AfterFunc(ctx, cancelBrowser)
	err := chromedp.Run(browserCtx)
	stop()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	b.browserCtx, b.cancelBrowser, b.cancelAlloc = browserCtx, cancelBrowser, cancelAlloc
	b.logger.Debugf("Browser started (headless=%v)", b.headless)
	return browserCtx, nil
}

// NewSession opens a new tab. ctx bounds the time spent opening it.
func (b *Browser) NewSession(ctx context.Context) (Session, error) {
	browserCtx, err := b.browser(ctx)
	if err != nil {
		return nil, err
	}
	tabCtx, cancelTab := chromedp.NewContext(browserCtx)

	stop := context.AfterFunc(ctx, cancelTab)
	err = chromedp.Run(tabCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": b.config.AcceptLanguage}),
	)
	stop()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		cancelTab()
		return nil, fmt.Errorf("failed to open browser tab: %w", err)
	}

	return &browserSession{ctx: tabCtx, cancel: cancelTab, timeout: b.config.BrowserTimeout, logger: b.logger}, nil
}

// Close shuts Chrome down
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancelBrowser != nil {
		b.cancelBrowser()
		b.cancelAlloc()
		b.browserCtx, b.cancelBrowser, b.cancelAlloc = nil, nil, nil
	}
}

type browserSession struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	logger  types.Logger
}

// Navigate loads url and polls for readySelector. Cancelling ctx aborts the
// running CDP actions without closing the tab.
func (s *browserSession) Navigate(ctx context.Context, url, readySelector string) (*Page, error) {
	runCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html, location string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady(readySelector, chromedp.ByQuery),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil || runCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: navigating to %s: %v", types.ErrTimeout, url, err)
		}
		return nil, fmt.Errorf("%w: navigating to %s: %v", types.ErrUpstream, url, err)
	}

	s.logger.Debugf("Successfully retrieved page content from %s (%d bytes)", location, len(html))
	return &Page{URL: location, HTML: html}, nil
}

func (s *browserSession) Close() {
	s.cancel()
}

// DisplayAvailable reports whether a visible browser window can be shown here
func DisplayAvailable() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return false
	}
	if os.Getenv("RUNNING_IN_DOCKER") != "" {
		return false
	}
	if runtime.GOOS == "linux" || runtime.GOOS == "freebsd" {
		return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
	}
	return true
}
