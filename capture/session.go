package capture

import (
	"context"
	"time"
)

// Rect is an element's bounding box in CSS pixels as reported by
// getBoundingClientRect, relative to the viewport after scrolling.
type Rect struct {
	Top    float64
	Left   float64
	Width  float64
	Height float64
}

// Session is one live rendering session: a single browser with a single
// page. Implementations need not be safe for concurrent use; the Capturer
// drives a session from one goroutine.
type Session interface {
	// Navigate loads url in the session's page.
	Navigate(ctx context.Context, url string) error

	// WaitReady blocks until the document reports a fully loaded state or
	// the timeout expires.
	WaitReady(ctx context.Context, timeout time.Duration) error

	// RemoveOverlays strips fixed/sticky banners that would cover elements.
	RemoveOverlays(ctx context.Context) error

	// Elements waits up to timeout for at least one match of selector and
	// returns every current match in document order. A selector the
	// browser cannot parse fails with an INVALID_SELECTOR CaptureError.
	Elements(ctx context.Context, selector string, timeout time.Duration) ([]Element, error)

	// DevicePixelRatio returns window.devicePixelRatio.
	DevicePixelRatio(ctx context.Context) (float64, error)

	// Screenshot returns a PNG of the current viewport.
	Screenshot(ctx context.Context) ([]byte, error)

	// Close tears the session down and terminates the browser process.
	Close() error
}

// Element is a handle to one matched DOM node. It is only valid while the
// owning Session is open and the node stays attached.
type Element interface {
	// ScrollIntoCenter scrolls the node to the vertical center of the viewport.
	ScrollIntoCenter(ctx context.Context) error

	// Rect reads the node's live bounding box.
	Rect(ctx context.Context) (Rect, error)
}

// SessionOptions are applied when the session starts, before any navigation.
type SessionOptions struct {
	// Stealth injects anti-bot-detection evasions on every new document.
	Stealth bool

	// BlockAds aborts ad-slot and consent-frame requests that resize the page after load.
	BlockAds bool

	// WaitStable makes WaitReady also wait for the DOM to stop changing.
	WaitStable bool
}

// LaunchFunc starts a new rendering session. It is injected so the capture
// loop can run against a real browser or an in-memory fake.
type LaunchFunc func(ctx context.Context, opts SessionOptions) (Session, error)
