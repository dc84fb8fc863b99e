package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"
)

// fakeSession is an in-memory Session serving a fixed page.
type fakeSession struct {
	mu sync.Mutex

	navigateErr error
	readyErr    error
	elements    map[string][]Element
	elementsErr map[string]error
	scale       float64
	shotW       int
	shotH       int

	navigated   []string
	queried     []string
	closes      int
	overlaysRan bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		elements:    make(map[string][]Element),
		elementsErr: make(map[string]error),
		scale:       1,
		shotW:       400,
		shotH:       300,
	}
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.navigated = append(s.navigated, url)
	return s.navigateErr
}

func (s *fakeSession) WaitReady(context.Context, time.Duration) error { return s.readyErr }

func (s *fakeSession) RemoveOverlays(context.Context) error {
	s.overlaysRan = true
	return nil
}

func (s *fakeSession) Elements(_ context.Context, selector string, _ time.Duration) ([]Element, error) {
	s.queried = append(s.queried, selector)
	if err := s.elementsErr[selector]; err != nil {
		return nil, err
	}
	return s.elements[selector], nil
}

func (s *fakeSession) DevicePixelRatio(context.Context) (float64, error) { return s.scale, nil }

func (s *fakeSession) Screenshot(context.Context) ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, s.shotW, s.shotH))
	for y := 0; y < s.shotH; y++ {
		for x := 0; x < s.shotW; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

// fakeElement returns a fixed rect, or fails at a chosen step.
type fakeElement struct {
	rect      Rect
	scrollErr error
	rectErr   error
	scrolled  int
}

func (e *fakeElement) ScrollIntoCenter(context.Context) error {
	e.scrolled++
	return e.scrollErr
}

func (e *fakeElement) Rect(context.Context) (Rect, error) {
	if e.rectErr != nil {
		return Rect{}, e.rectErr
	}
	return e.rect, nil
}

// launchFake returns a LaunchFunc handing out sess and counting launches.
func launchFake(sess *fakeSession, launches *int) LaunchFunc {
	return func(context.Context, SessionOptions) (Session, error) {
		*launches++
		return sess, nil
	}
}

func failingLaunch(err error) LaunchFunc {
	return func(context.Context, SessionOptions) (Session, error) {
		return nil, err
	}
}

var errStale = errors.New("node is detached from document")

// fixedClock pins output file timestamps.
func fixedClock() time.Time {
	return time.Date(2026, 10, 18, 9, 30, 5, 0, time.UTC)
}

func fastOptions() Options {
	return Options{Now: fixedClock}
}
