package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/use-agent/elemshot/config"
	"github.com/use-agent/elemshot/models"
)

// Options controls waits and clocks for a Capturer.
type Options struct {
	// ReadyTimeout bounds the document readiness wait.
	ReadyTimeout time.Duration

	// ElementTimeout bounds the wait for a selector's first match.
	ElementTimeout time.Duration

	// SettleDelay is the fixed pause after the page reports ready.
	SettleDelay time.Duration

	// ScrollDelay is the fixed pause after each scroll-into-view.
	ScrollDelay time.Duration

	// WaitStable is forwarded to the session as SessionOptions.WaitStable.
	WaitStable bool

	// Now stamps output file names. Defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns 10s bounded waits, a 2s settle and a 500ms scroll pause.
func DefaultOptions() Options {
	return Options{
		ReadyTimeout:   10 * time.Second,
		ElementTimeout: 10 * time.Second,
		SettleDelay:    2 * time.Second,
		ScrollDelay:    500 * time.Millisecond,
	}
}

// OptionsFromConfig maps the capture section of the configuration.
func OptionsFromConfig(cfg config.CaptureConfig) Options {
	return Options{
		ReadyTimeout:   cfg.ReadyTimeout,
		ElementTimeout: cfg.ElementTimeout,
		SettleDelay:    cfg.SettleDelay,
		ScrollDelay:    cfg.ScrollDelay,
		WaitStable:     cfg.WaitStable,
	}
}

// Capturer runs capture requests one at a time, each in its own rendering
// session.
type Capturer struct {
	launch LaunchFunc
	opts   Options
}

// New creates a Capturer that starts sessions with launch.
func New(launch LaunchFunc, opts Options) *Capturer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Capturer{launch: launch, opts: opts}
}

// CaptureElements captures every element matched by selectors on url into
// outputDir using default options. An empty outputDir means "screenshots".
func CaptureElements(ctx context.Context, launch LaunchFunc, url, outputDir string, selectors ...string) *Report {
	return New(launch, DefaultOptions()).Run(ctx, &models.CaptureRequest{
		URL:       url,
		Selectors: selectors,
		OutputDir: outputDir,
	})
}

// Run executes one capture request. It always returns a report; errors for
// individual selectors and elements are recorded in Report.Failures and
// never stop the run.
//
// Lifecycle:
//
//  1. Defaults + validation   – the request is never mutated
//  2. Output directory        – created if absent
//  3. Session start           – fatal on failure
//  4. DEFER: teardown         – exactly once, on every path past step 3
//  5. Navigate + ready wait   – fatal on failure, then the settle delay
//  6. Overlay removal         – best-effort
//  7. Selectors in order      – enumerate, then capture each element
func (c *Capturer) Run(ctx context.Context, req *models.CaptureRequest) *Report {
	// ── 1. Defaults + validation ────────────────────────────────────
	r := *req
	r.Defaults()

	report := &Report{URL: r.URL, OutputDir: r.OutputDir}
	if err := r.Validate(); err != nil {
		report.Fatal = err
		return report
	}

	// ── 2. Output directory ─────────────────────────────────────────
	if err := os.MkdirAll(r.OutputDir, 0o755); err != nil {
		report.Fatal = models.NewCaptureError(models.ErrCodeOutputDir, "cannot create output directory", err)
		slog.Error("capture aborted", "url", r.URL, "error", report.Fatal)
		return report
	}

	// ── 3. Session start ────────────────────────────────────────────
	startupStart := time.Now()
	sess, err := c.launch(ctx, SessionOptions{
		Stealth:    r.Stealth,
		BlockAds:   r.BlockAds,
		WaitStable: c.opts.WaitStable,
	})
	report.StartupTime = time.Since(startupStart)
	if err != nil {
		report.Fatal = categorizeError(err, models.ErrCodeSessionStart, "failed to start browser session")
		slog.Error("capture aborted", "url", r.URL, "error", report.Fatal)
		return report
	}

	// ── 4. Guaranteed teardown ──────────────────────────────────────
	defer func() {
		if closeErr := sess.Close(); closeErr != nil {
			slog.Warn("session teardown failed", "error", closeErr)
		}
	}()

	// ── 5. Navigate + readiness ─────────────────────────────────────
	navStart := time.Now()
	if err := c.open(ctx, sess, r.URL); err != nil {
		report.Fatal = err
		report.NavigationTime = time.Since(navStart)
		slog.Error("capture aborted", "url", r.URL, "error", err)
		return report
	}
	report.NavigationTime = time.Since(navStart)

	// ── 6. Overlays ─────────────────────────────────────────────────
	if r.RemoveOverlays {
		if err := sess.RemoveOverlays(ctx); err != nil {
			slog.Warn("overlay removal failed, capturing as-is", "error", err)
		}
	}

	// ── 7. Selectors ────────────────────────────────────────────────
	captureStart := time.Now()
	for _, selector := range r.Selectors {
		if ctx.Err() != nil {
			report.Fatal = categorizeError(ctx.Err(), models.ErrCodeInternal, "capture interrupted")
			break
		}
		c.captureSelector(ctx, sess, r.OutputDir, selector, report)
	}
	report.CaptureTime = time.Since(captureStart)

	slog.Info("capture finished",
		"url", r.URL,
		"files", len(report.Files),
		"failures", len(report.Failures),
	)
	return report
}

// open navigates and waits for the document to finish loading, then
// applies the fixed settle delay.
func (c *Capturer) open(ctx context.Context, sess Session, url string) error {
	if err := sess.Navigate(ctx, url); err != nil {
		return categorizeError(err, models.ErrCodeNavigation, "navigation to target URL failed")
	}
	if err := sess.WaitReady(ctx, c.opts.ReadyTimeout); err != nil {
		return categorizeError(err, models.ErrCodePageNotReady, "page did not finish loading")
	}
	if err := sleep(ctx, c.opts.SettleDelay); err != nil {
		return categorizeError(err, models.ErrCodePageNotReady, "settle delay interrupted")
	}
	return nil
}

// captureSelector enumerates one selector's matches and captures each in
// DOM order. Any failure is recorded and the loop moves on.
func (c *Capturer) captureSelector(ctx context.Context, sess Session, outputDir, selector string, report *Report) {
	if err := ValidateSelector(selector); err != nil {
		report.addFailure(selector, 0, err)
		slog.Warn("selector skipped", "selector", selector, "error", err)
		return
	}
	if err := parseLocally(selector); err != nil {
		slog.Debug("selector not understood locally, deferring to the browser",
			"selector", selector,
			"error", err,
		)
	}

	elements, err := sess.Elements(ctx, selector, c.opts.ElementTimeout)
	if err == nil && len(elements) == 0 {
		err = errors.New("no elements matched")
	}
	if err != nil {
		err = categorizeError(err, models.ErrCodeSelectorNotFound, "no elements found for "+selector)
		report.addFailure(selector, 0, err)
		slog.Warn("selector skipped", "selector", selector, "error", err)
		return
	}
	slog.Debug("selector matched", "selector", selector, "count", len(elements))

	for i, el := range elements {
		index := i + 1
		file, err := c.captureElement(ctx, sess, el, outputDir, selector, index)
		if err != nil {
			report.addFailure(selector, index, err)
			slog.Warn("element capture failed", "selector", selector, "index", index, "error", err)
			continue
		}
		report.addFile(file)
		slog.Info("element captured", "selector", selector, "index", index, "path", file.Path)
	}
}

// captureElement scrolls el into view, reads its geometry, screenshots the
// viewport and writes the cropped image.
func (c *Capturer) captureElement(ctx context.Context, sess Session, el Element, outputDir, selector string, index int) (models.CapturedFile, error) {
	fail := func(msg string, err error) (models.CapturedFile, error) {
		return models.CapturedFile{}, models.NewCaptureError(models.ErrCodeElementCapture, msg, err)
	}

	if err := el.ScrollIntoCenter(ctx); err != nil {
		return fail("scroll into view", err)
	}
	if err := sleep(ctx, c.opts.ScrollDelay); err != nil {
		return fail("scroll settle", err)
	}

	rect, err := el.Rect(ctx)
	if err != nil {
		return fail("read bounding rect", err)
	}
	scale, err := sess.DevicePixelRatio(ctx)
	if err != nil {
		return fail("read device pixel ratio", err)
	}
	if scale <= 0 {
		return fail(fmt.Sprintf("invalid device pixel ratio %v", scale), nil)
	}

	shot, err := sess.Screenshot(ctx)
	if err != nil {
		return fail("take screenshot", err)
	}

	path := filepath.Join(outputDir, FileName(selector, index, c.opts.Now()))
	bounds, err := cropAndSave(shot, CropRect(rect, scale), path)
	if err != nil {
		return fail("crop and save", err)
	}

	return models.CapturedFile{
		Selector: selector,
		Index:    index,
		Path:     path,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
	}, nil
}

// sleep pauses for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// categorizeError wraps raw errors into typed CaptureErrors. Errors that
// already carry a code keep it.
func categorizeError(err error, code, msg string) *models.CaptureError {
	var ce *models.CaptureError
	if errors.As(err, &ce) {
		return ce
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewCaptureError(code, msg+": timed out", err)
	case errors.Is(err, context.Canceled):
		return models.NewCaptureError(code, "capture canceled", err)
	default:
		return models.NewCaptureError(code, msg, err)
	}
}
