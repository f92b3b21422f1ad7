package services

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

const (
	ViewportWidth  = 1280
	ViewportHeight = 720
	MaxPageHeight  = 5000

	pageHeightJS = `Math.max(document.body ? document.body.scrollHeight : 0, document.documentElement.scrollHeight)`
)

// BrowserOptions configures the headless browser used for screenshots.
type BrowserOptions struct {
	// ExecPath overrides the Chrome binary lookup.
	ExecPath          string
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
}

func DefaultBrowserOptions() BrowserOptions {
	return BrowserOptions{
		NavigationTimeout: 30 * time.Second,
		SettleDelay:       2 * time.Second,
	}
}

// CaptureResult describes a successful screenshot.
type CaptureResult struct {
	// FullHeight is the captured page height after clamping.
	FullHeight int
}

// Browser is one headless Chrome instance. Each Capture opens and closes
// its own tab, so a Browser can be reused for a whole queue drain.
type Browser struct {
	opts          BrowserOptions
	log           *logrus.Entry
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

// NewBrowser launches Chrome. The browser lives until Close or until ctx is
// cancelled.
func NewBrowser(ctx context.Context, opts BrowserOptions, log *logrus.Entry) (*Browser, error) {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = DefaultBrowserOptions().NavigationTimeout
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.WindowSize(ViewportWidth, ViewportHeight),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// An empty Run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	log.Debug("browser started")
	return &Browser{
		opts:          opts,
		log:           log,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
	}, nil
}

// Close shuts the browser down.
func (b *Browser) Close() {
	b.cancelBrowser()
	b.cancelAlloc()
	b.log.Debug("browser closed")
}

// Capture loads pageURL in a fresh 1280x720 tab, waits for the network to go
// mostly idle plus a settle delay, and writes a PNG of the page (clamped to
// MaxPageHeight) to outputPath.
func (b *Browser) Capture(ctx context.Context, pageURL, outputPath string) (*CaptureResult, error) {
	if err := ValidatePageURL(pageURL); err != nil {
		return nil, err
	}

	tabCtx, closeTab := chromedp.NewContext(b.browserCtx)
	defer closeTab()
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()

	idle := make(chan struct{}, 1)
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == "networkAlmostIdle" {
			select {
			case idle <- struct{}{}:
			default:
			}
		}
	})

	// The first Run opens the tab; it must not carry the navigation timeout
	// or the tab would close with it.
	if err := chromedp.Run(tabCtx); err != nil {
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}

	navCtx, cancelNav := context.WithTimeout(tabCtx, b.opts.NavigationTimeout)
	defer cancelNav()

	err := chromedp.Run(navCtx,
		chromedp.EmulateViewport(ViewportWidth, ViewportHeight),
		page.SetLifecycleEventsEnabled(true),
		chromedp.ActionFunc(func(context.Context) error {
			drain(idle)
			return nil
		}),
		chromedp.Navigate(pageURL),
		waitFor(idle),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", pageURL, err)
	}

	var rawHeight float64
	if err := chromedp.Run(tabCtx,
		chromedp.Sleep(b.opts.SettleDelay),
		chromedp.Evaluate(pageHeightJS, &rawHeight),
	); err != nil {
		return nil, fmt.Errorf("failed to measure %s: %w", pageURL, err)
	}
	height := ClampPageHeight(int(rawHeight))

	var png []byte
	err = chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		png, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			WithCaptureBeyondViewport(true).
			WithClip(&page.Viewport{X: 0, Y: 0, Width: ViewportWidth, Height: float64(height), Scale: 1}).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to screenshot %s: %w", pageURL, err)
	}

	if err := os.WriteFile(outputPath, png, 0644); err != nil {
		return nil, fmt.Errorf("failed to write screenshot: %w", err)
	}

	b.log.WithFields(logrus.Fields{"url": pageURL, "height": height, "page_height": int(rawHeight)}).Debug("captured page")
	return &CaptureResult{FullHeight: height}, nil
}

// ClampPageHeight bounds a measured page height to [ViewportHeight, MaxPageHeight].
func ClampPageHeight(h int) int {
	if h < ViewportHeight {
		return ViewportHeight
	}
	if h > MaxPageHeight {
		return MaxPageHeight
	}
	return h
}

// ValidatePageURL accepts absolute http and https URLs only.
func ValidatePageURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid website URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid website URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid website URL %q: missing host", raw)
	}
	return nil
}

func waitFor(ch <-chan struct{}) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		select {
		case <-ch:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("waiting for network idle: %w", ctx.Err())
		}
	}
}

func drain(ch chan struct{}) {
	select {
	case <-ch:
	default:
	}
}
