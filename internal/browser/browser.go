package browser

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// ErrNotRunning is returned when a context is requested before Start or
// after Stop.
var ErrNotRunning = errors.New("browser is not running")

type Options struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		ViewportWidth:  1280,
		ViewportHeight: 800,
	}
}

// Browser owns a single long-lived Chromium process shared across a batch.
// Launching Chromium per page is prohibitively expensive on constrained
// hosts, so the orchestrator starts one instance, probes it with Alive
// before every scrape, and restarts it only when it stops answering.
type Browser struct {
	opts    *Options
	logger  *slog.Logger
	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
}

func New(opts *Options) *Browser {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Browser{
		opts:   opts,
		logger: slog.Default().With("component", "browser"),
	}
}

// Start launches the browser process. Calling Start on a running browser is
// a no-op.
func (b *Browser) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		return nil
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	br, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(b.opts.Headless),
		Args: []string{
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-gpu",
			"--disable-extensions",
		},
	})
	if err != nil {
		pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	b.pw = pw
	b.browser = br
	b.logger.Info("browser started")
	return nil
}

// Stop closes the browser and the playwright driver. Safe to call multiple
// times and on a crashed instance.
func (b *Browser) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
		b.browser = nil
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
		b.pw = nil
	}

	b.logger.Info("browser stopped")

	if len(errs) > 0 {
		return fmt.Errorf("errors during stop: %v", errs)
	}
	return nil
}

// Restart performs an ordered stop/start with a short delay, used after a
// crash is detected mid-batch.
func (b *Browser) Restart() error {
	b.logger.Info("restarting browser")
	if err := b.Stop(); err != nil {
		b.logger.Warn("stop during restart failed", "error", err)
	}
	time.Sleep(time.Second)
	return b.Start()
}

// Alive probes whether the browser process still answers queries. A crashed
// Chromium leaves the client object in place but errors on every call, so
// asking for the context list is a cheap liveness check.
func (b *Browser) Alive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser == nil {
		return false
	}
	if !b.browser.IsConnected() {
		return false
	}
	return b.browser.Contexts() != nil
}

// NewContext opens a fresh browsing context. Contexts are much cheaper than
// browser launches; every scrape gets its own and must close it.
func (b *Browser) NewContext() (playwright.BrowserContext, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser == nil {
		return nil, ErrNotRunning
	}

	ctx, err := b.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  b.opts.ViewportWidth,
			Height: b.opts.ViewportHeight,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	return ctx, nil
}
