package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/elemshot/capture"
	"github.com/use-agent/elemshot/config"
	"github.com/use-agent/elemshot/models"
)

// NewLauncher returns a capture.LaunchFunc that starts an isolated browser
// per call, configured for reproducible crop math: fixed window and
// viewport, hidden scrollbars, device scale factor 1, sRGB colour profile.
func NewLauncher(cfg config.BrowserConfig) capture.LaunchFunc {
	return func(ctx context.Context, opts capture.SessionOptions) (capture.Session, error) {
		return launch(ctx, cfg, opts)
	}
}

// resolveBin returns the browser executable. A configured path must exist;
// otherwise the system browser is looked up. The launcher's download
// fallback is never used.
func resolveBin(cfg config.BrowserConfig) (string, error) {
	if cfg.BrowserBin != "" {
		if _, err := os.Stat(cfg.BrowserBin); err != nil {
			return "", fmt.Errorf("browser executable %s: %w", cfg.BrowserBin, err)
		}
		return cfg.BrowserBin, nil
	}
	if bin, found := launcher.LookPath(); found {
		return bin, nil
	}
	return "", fmt.Errorf("no browser executable found; set ELEMSHOT_BROWSER_BIN")
}

func launch(ctx context.Context, cfg config.BrowserConfig, opts capture.SessionOptions) (*Session, error) {
	bin, err := resolveBin(cfg)
	if err != nil {
		return nil, models.NewCaptureError(models.ErrCodeSessionStart, "browser executable unavailable", err)
	}

	l := launcher.New().
		Context(ctx).
		Bin(bin).
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	// ── Rendering flags ──────────────────────────────────────────────
	l.Set(flags.Flag("window-size"), strconv.Itoa(cfg.Width)+","+strconv.Itoa(cfg.Height))
	l.Set(flags.Flag("hide-scrollbars"))
	l.Set(flags.Flag("force-device-scale-factor"), "1")
	l.Set(flags.Flag("force-color-profile"), "srgb")
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewCaptureError(
			models.ErrCodeSessionStart,
			"failed to launch browser",
			err,
		)
	}
	slog.Debug("browser launched", "bin", bin, "controlURL", controlURL)

	s := &Session{launcher: l}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		_ = s.Close()
		return nil, models.NewCaptureError(
			models.ErrCodeSessionStart,
			"failed to connect to browser",
			err,
		)
	}
	s.browser = b

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = s.Close()
		return nil, models.NewCaptureError(
			models.ErrCodeSessionStart,
			"failed to open page",
			err,
		)
	}
	s.page = page
	s.waitStable = opts.WaitStable

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             cfg.Width,
		Height:            cfg.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		_ = s.Close()
		return nil, models.NewCaptureError(
			models.ErrCodeSessionStart,
			"failed to set viewport",
			err,
		)
	}

	// Stealth and hijacking only apply to navigations that happen after
	// they are installed.
	if opts.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", evalErr,
			)
		}
	}
	s.router = setupHijack(page, cfg.BlockedResourceTypes, opts.BlockAds)

	return s, nil
}
