// Package capture renders the board page to a PNG with a headless
// Chromium, so messenger link previews show the live board instead of
// a generic card.
package capture

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/chromedp"
)

// Default viewport roughly matches a phone-width board page.
const (
	DefaultWidth      = 600
	DefaultHeight     = 1000
	DefaultTimeoutSec = 30
)

// Options defines parameters for one board capture.
type Options struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/".
	URL string

	// OutputPath is where the PNG will be written, e.g.
	// "/var/lib/slotcal/preview.png".
	OutputPath string

	// Width and Height are the viewport dimensions in pixels. If zero,
	// DefaultWidth / DefaultHeight are used.
	Width  int
	Height int

	// Timeout bounds the entire capture operation.
	Timeout time.Duration
}

// BoardPNG navigates a headless Chromium to the board, waits for the
// page to signal readiness via data-ready="true", and writes a PNG
// screenshot to opts.OutputPath.
func BoardPNG(parentCtx context.Context, opts Options) error {
	if opts.URL == "" {
		return fmt.Errorf("capture: URL is required")
	}
	if opts.OutputPath == "" {
		return fmt.Errorf("capture: OutputPath is required")
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(`[data-ready="true"]`, chromedp.ByQuery),
		// Small extra delay to allow final paints.
		chromedp.Sleep(200 * time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}

	return nil
}
