package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/elemshot/capture"
	"github.com/use-agent/elemshot/models"
	"github.com/ysmood/gson"
)

// Session is a capture.Session backed by one rod browser and one page.
type Session struct {
	launcher   *launcher.Launcher
	browser    *rod.Browser
	page       *rod.Page
	router     *rod.HijackRouter
	waitStable bool

	closeOnce sync.Once
	closeErr  error
}

var _ capture.Session = (*Session)(nil)

// Navigate loads url.
func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.page.Context(ctx).Navigate(url)
}

// WaitReady polls document.readyState until it is "complete", bounded by
// timeout. With WaitStable it then waits for the DOM to settle; a DOM that
// never settles is logged, not returned.
func (s *Session) WaitReady(ctx context.Context, timeout time.Duration) error {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p := s.page.Context(wctx)
	if err := p.Wait(rod.Eval(`() => document.readyState === "complete"`)); err != nil {
		return fmt.Errorf("wait for document ready: %w", err)
	}

	if s.waitStable {
		if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
			slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
				"error", stableErr,
			)
		}
	}
	return nil
}

// RemoveOverlays deletes fixed/sticky elements with a high z-index and
// common cookie/consent/popup containers, then restores page scrolling.
func (s *Session) RemoveOverlays(ctx context.Context) error {
	const js = `() => {
		for (const el of document.querySelectorAll('*')) {
			const style = window.getComputedStyle(el);
			if (style.position === 'fixed' || style.position === 'sticky') {
				const z = parseInt(style.zIndex, 10);
				if (z >= 900) el.remove();
			}
		}
		const selectors = [
			'[class*="cookie"]', '[class*="consent"]', '[class*="overlay"]',
			'[id*="cookie"]', '[id*="consent"]', '[id*="overlay"]',
			'[class*="popup"]', '[id*="popup"]',
			'[class*="gdpr"]', '[id*="gdpr"]',
		];
		for (const sel of selectors) {
			document.querySelectorAll(sel).forEach(el => {
				const pos = window.getComputedStyle(el).position;
				if (pos === 'fixed' || pos === 'sticky') el.remove();
			});
		}
		document.documentElement.style.overflow = '';
		if (document.body) document.body.style.overflow = '';
	}`
	_, err := s.page.Context(ctx).Eval(js)
	return err
}

// Elements waits up to timeout for selector to match, then returns all matches.
func (s *Session) Elements(ctx context.Context, selector string, timeout time.Duration) ([]capture.Element, error) {
	if err := s.checkSelector(ctx, selector); err != nil {
		return nil, err
	}

	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.page.Context(wctx).WaitElementsMoreThan(selector, 0); err != nil {
		return nil, fmt.Errorf("wait for %q: %w", selector, err)
	}

	els, err := s.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}

	out := make([]capture.Element, len(els))
	for i, el := range els {
		out[i] = &element{el: el}
	}
	return out, nil
}

// checkSelector asks the page whether selector parses, so a syntax error
// fails at once instead of after the full element wait.
func (s *Session) checkSelector(ctx context.Context, selector string) error {
	res, err := s.page.Context(ctx).Eval(`(sel) => {
		try {
			document.querySelectorAll(sel);
			return "";
		} catch (e) {
			if (e.name === "SyntaxError") return e.message;
			throw e;
		}
	}`, selector)
	if err != nil {
		return fmt.Errorf("check %q: %w", selector, err)
	}
	if msg := res.Value.Str(); msg != "" {
		return models.NewCaptureError(models.ErrCodeInvalidSelector, "browser rejected selector "+selector, errors.New(msg))
	}
	return nil
}

// DevicePixelRatio returns window.devicePixelRatio.
func (s *Session) DevicePixelRatio(ctx context.Context) (float64, error) {
	res, err := s.page.Context(ctx).Eval(`() => window.devicePixelRatio`)
	if err != nil {
		return 0, err
	}
	return res.Value.Num(), nil
}

// Screenshot captures the current viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	return s.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format:      proto.PageCaptureScreenshotFormatPng,
		FromSurface: true,
	})
}

// Close stops request hijacking, closes the page and browser, and kills the
// browser process. Subsequent calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.router != nil {
			if err := s.router.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("stop hijack router: %w", err))
			}
		}
		if s.browser != nil {
			if err := s.browser.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close browser: %w", err))
			}
		}
		if s.launcher != nil {
			s.launcher.Kill()
			s.launcher.Cleanup()
		}
		s.closeErr = errors.Join(errs...)
		slog.Debug("browser session closed")
	})
	return s.closeErr
}

// element adapts *rod.Element to capture.Element.
type element struct {
	el *rod.Element
}

func (e *element) ScrollIntoCenter(ctx context.Context) error {
	_, err := e.el.Context(ctx).Eval(`() => this.scrollIntoView({block: 'center'})`)
	return err
}

func (e *element) Rect(ctx context.Context) (capture.Rect, error) {
	res, err := e.el.Context(ctx).Eval(`() => {
		const r = this.getBoundingClientRect();
		return {top: r.top, left: r.left, width: r.width, height: r.height};
	}`)
	if err != nil {
		return capture.Rect{}, err
	}
	return rectFromJSON(res.Value)
}

// rectFromJSON reads a {top,left,width,height} object, rejecting results
// with missing fields.
func rectFromJSON(v gson.JSON) (capture.Rect, error) {
	keys := [...]string{"top", "left", "width", "height"}
	var vals [4]float64
	for i, k := range keys {
		f := v.Get(k)
		if f.Nil() {
			return capture.Rect{}, fmt.Errorf("bounding rect has no %q", k)
		}
		vals[i] = f.Num()
	}
	return capture.Rect{Top: vals[0], Left: vals[1], Width: vals[2], Height: vals[3]}, nil
}
