package capture

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/use-agent/elemshot/models"
)

func threeElements() []Element {
	return []Element{
		&fakeElement{rect: Rect{Left: 0, Top: 0, Width: 50, Height: 20}},
		&fakeElement{rect: Rect{Left: 60, Top: 10, Width: 40, Height: 30}},
		&fakeElement{rect: Rect{Left: 10, Top: 100, Width: 100, Height: 50}},
	}
}

func countPNGs(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	n := 0
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".png" {
			n++
		}
	}
	return n
}

func TestRun_OneFilePerMatch(t *testing.T) {
	sess := newFakeSession()
	els := threeElements()
	sess.elements[".card"] = els
	launches := 0

	dir := filepath.Join(t.TempDir(), "nested", "shots")
	report := New(launchFake(sess, &launches), fastOptions()).Run(context.Background(), &models.CaptureRequest{
		URL:       "https://example.com",
		Selectors: models.SelectorList{".card"},
		OutputDir: dir,
	})

	if !report.OK() {
		t.Fatalf("unexpected fatal error: %v", report.Fatal)
	}
	if len(report.Files) != 3 {
		t.Fatalf("files = %d, want 3 (failures: %+v)", len(report.Files), report.Failures)
	}
	if got := countPNGs(t, dir); got != 3 {
		t.Errorf("png files on disk = %d, want 3", got)
	}
	if launches != 1 || sess.closes != 1 {
		t.Errorf("launches = %d, closes = %d, want 1 and 1", launches, sess.closes)
	}

	for i, el := range els {
		if n := el.(*fakeElement).scrolled; n != 1 {
			t.Errorf("element %d scrolled %d times, want 1", i+1, n)
		}
	}

	want := filepath.Join(dir, "card_2_20261018_093005.png")
	if report.Files[1].Path != want {
		t.Errorf("second file = %q, want %q", report.Files[1].Path, want)
	}
	if report.Files[1].Width != 40 || report.Files[1].Height != 30 {
		t.Errorf("second file size = %dx%d, want 40x30", report.Files[1].Width, report.Files[1].Height)
	}
	if report.Files[0].Index != 1 || report.Files[2].Index != 3 {
		t.Errorf("indexes are not 1-based in DOM order: %+v", report.Files)
	}
}

func TestRun_DevicePixelRatioScalesCrop(t *testing.T) {
	sess := newFakeSession()
	sess.scale = 2
	sess.elements["#hero"] = []Element{&fakeElement{rect: Rect{Left: 10, Top: 20, Width: 100, Height: 50}}}
	launches := 0

	report := New(launchFake(sess, &launches), fastOptions()).Run(context.Background(), &models.CaptureRequest{
		URL:       "https://example.com",
		Selectors: models.SelectorList{"#hero"},
		OutputDir: t.TempDir(),
	})

	if len(report.Files) != 1 {
		t.Fatalf("files = %d, want 1 (failures: %+v)", len(report.Files), report.Failures)
	}
	if f := report.Files[0]; f.Width != 200 || f.Height != 100 {
		t.Errorf("size = %dx%d, want 200x100", f.Width, f.Height)
	}
}

func TestRun_SingleSelectorEqualsList(t *testing.T) {
	var fromString, fromList models.CaptureRequest
	if err := json.Unmarshal([]byte(`{"url":"https://example.com","selectors":".card"}`), &fromString); err != nil {
		t.Fatalf("unmarshal string form: %v", err)
	}
	if err := json.Unmarshal([]byte(`{"url":"https://example.com","selectors":[".card"]}`), &fromList); err != nil {
		t.Fatalf("unmarshal list form: %v", err)
	}

	run := func(req models.CaptureRequest) (*Report, *fakeSession) {
		sess := newFakeSession()
		sess.elements[".card"] = threeElements()
		launches := 0
		req.OutputDir = t.TempDir()
		return New(launchFake(sess, &launches), fastOptions()).Run(context.Background(), &req), sess
	}

	a, sessA := run(fromString)
	b, sessB := run(fromList)

	if len(a.Files) != len(b.Files) || len(a.Failures) != len(b.Failures) {
		t.Errorf("string form: %d files/%d failures, list form: %d files/%d failures",
			len(a.Files), len(a.Failures), len(b.Files), len(b.Failures))
	}
	if len(sessA.queried) != 1 || len(sessB.queried) != 1 || sessA.queried[0] != sessB.queried[0] {
		t.Errorf("queried selectors differ: %v vs %v", sessA.queried, sessB.queried)
	}
}

func TestCaptureElements_VariadicSingleSelector(t *testing.T) {
	sess := newFakeSession()
	sess.elements[".only"] = []Element{&fakeElement{rect: Rect{Width: 10, Height: 10}}}
	launches := 0
	dir := t.TempDir()

	report := CaptureElements(context.Background(), launchFake(sess, &launches), "https://example.com", dir, ".only")

	if len(report.Files) != 1 {
		t.Fatalf("files = %d, want 1 (fatal: %v, failures: %+v)", len(report.Files), report.Fatal, report.Failures)
	}
	if sess.closes != 1 {
		t.Errorf("closes = %d, want 1", sess.closes)
	}
}

func TestRun_DefaultOutputDir(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	tmp := t.TempDir()
	if err := os.Chdir(tmp); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(wd) }()

	sess := newFakeSession()
	launches := 0
	req := &models.CaptureRequest{URL: "https://example.com", Selectors: models.SelectorList{".none"}}
	report := New(launchFake(sess, &launches), fastOptions()).Run(context.Background(), req)

	if report.OutputDir != models.DefaultOutputDir {
		t.Errorf("output dir = %q, want %q", report.OutputDir, models.DefaultOutputDir)
	}
	if st, err := os.Stat(filepath.Join(tmp, models.DefaultOutputDir)); err != nil || !st.IsDir() {
		t.Errorf("default output dir not created: %v", err)
	}
	if req.OutputDir != "" {
		t.Errorf("request was mutated: OutputDir = %q", req.OutputDir)
	}
}

func TestRun_ExistingOutputDir(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		sess := newFakeSession()
		sess.elements[".card"] = threeElements()[:1]
		launches := 0
		report := New(launchFake(sess, &launches), fastOptions()).Run(context.Background(), &models.CaptureRequest{
			URL:       "https://example.com",
			Selectors: models.SelectorList{".card"},
			OutputDir: dir,
		})
		if !report.OK() || len(report.Files) != 1 {
			t.Fatalf("run %d: fatal = %v, files = %d", i+1, report.Fatal, len(report.Files))
		}
	}
	// Same selector, index and second: the second run overwrites the first.
	if got := countPNGs(t, dir); got != 1 {
		t.Errorf("png files = %d, want 1", got)
	}
}

func TestRun_FailingElementDoesNotStopRun(t *testing.T) {
	sess := newFakeSession()
	els := threeElements()
	els[1].(*fakeElement).rectErr = errStale
	sess.elements[".card"] = els
	sess.elements["#footer"] = []Element{&fakeElement{rect: Rect{Width: 20, Height: 20}}}
	launches := 0

	report := New(launchFake(sess, &launches), fastOptions()).Run(context.Background(), &models.CaptureRequest{
		URL:       "https://example.com",
		Selectors: models.SelectorList{".card", "#footer"},
		OutputDir: t.TempDir(),
	})

	if !report.OK() {
		t.Fatalf("unexpected fatal error: %v", report.Fatal)
	}
	if len(report.Files) != 3 {
		t.Fatalf("files = %d, want 3", len(report.Files))
	}
	gotIdx := []int{report.Files[0].Index, report.Files[1].Index}
	if gotIdx[0] != 1 || gotIdx[1] != 3 {
		t.Errorf(".card indexes = %v, want [1 3]", gotIdx)
	}
	if report.Files[2].Selector != "#footer" {
		t.Errorf("third file selector = %q, want #footer", report.Files[2].Selector)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("failures = %+v, want exactly one", report.Failures)
	}
	f := report.Failures[0]
	if f.Selector != ".card" || f.Index != 2 || f.Code != models.ErrCodeElementCapture {
		t.Errorf("failure = %+v, want .card #2 %s", f, models.ErrCodeElementCapture)
	}
	if f.Message == "" {
		t.Error("failure message is empty")
	}
}

func TestRun_ElementOutsideViewportIsSkipped(t *testing.T) {
	sess := newFakeSession()
	sess.elements[".card"] = []Element{
		&fakeElement{rect: Rect{Left: 1000, Top: 1000, Width: 10, Height: 10}},
		&fakeElement{rect: Rect{Left: 0, Top: 0, Width: 10, Height: 10}},
	}
	launches := 0

	report := New(launchFake(sess, &launches), fastOptions()).Run(context.Background(), &models.CaptureRequest{
		URL:       "https://example.com",
		Selectors: models.SelectorList{".card"},
		OutputDir: t.TempDir(),
	})

	if len(report.Files) != 1 || report.Files[0].Index != 2 {
		t.Errorf("files = %+v, want only index 2", report.Files)
	}
	if len(report.Failures) != 1 || report.Failures[0].Index != 1 {
		t.Errorf("failures = %+v, want only index 1", report.Failures)
	}
}

func TestRun_NavigationTimeExcludesStartup(t *testing.T) {
	sess := newFakeSession()
	sess.elements[".card"] = threeElements()[:1]
	slowLaunch := func(context.Context, SessionOptions) (Session, error) {
		time.Sleep(100 * time.Millisecond)
		return sess, nil
	}

	report := New(slowLaunch, fastOptions()).Run(context.Background(), &models.CaptureRequest{
		URL:       "https://example.com",
		Selectors: models.SelectorList{".card"},
		OutputDir: t.TempDir(),
	})

	if report.StartupTime < 100*time.Millisecond {
		t.Errorf("StartupTime = %v, want at least 100ms", report.StartupTime)
	}
	if report.NavigationTime >= 100*time.Millisecond {
		t.Errorf("NavigationTime = %v, want browser startup excluded", report.NavigationTime)
	}
	timing := report.Response().Timing
	if timing.TotalMs < timing.StartupMs+timing.NavigationMs {
		t.Errorf("timing = %+v, total must include startup", timing)
	}
}

func TestRun_PartlyOffscreenElementIsCapturedWhole(t *testing.T) {
	sess := newFakeSession()
	sess.elements[".tall"] = []Element{
		&fakeElement{rect: Rect{Left: 10, Top: -50, Width: 100, Height: 400}},
	}
	launches := 0

	report := New(launchFake(sess, &launches), fastOptions()).Run(context.Background(), &models.CaptureRequest{
		URL:       "https://example.com",
		Selectors: models.SelectorList{".tall"},
		OutputDir: t.TempDir(),
	})

	if len(report.Failures) != 0 {
		t.Fatalf("failures = %+v, want none", report.Failures)
	}
	if len(report.Files) != 1 || report.Files[0].Width != 100 || report.Files[0].Height != 400 {
		t.Errorf("files = %+v, want one 100x400 file", report.Files)
	}
}

func TestRun_SelectorFailuresAreSkipped(t *testing.T) {
	sess := newFakeSession()
	sess.elementsErr[".slow"] = context.DeadlineExceeded
	sess.elementsErr["div["] = models.NewCaptureError(models.ErrCodeInvalidSelector, "browser rejected selector div[", errors.New("not a valid selector"))
	sess.elements[".ok"] = threeElements()[:1]
	launches := 0

	report := New(launchFake(sess, &launches), fastOptions()).Run(context.Background(), &models.CaptureRequest{
		URL:       "https://example.com",
		Selectors: models.SelectorList{"div[", ".slow", ".missing", ".ok"},
		OutputDir: t.TempDir(),
	})

	if !report.OK() {
		t.Fatalf("unexpected fatal error: %v", report.Fatal)
	}
	if len(report.Files) != 1 || report.Files[0].Selector != ".ok" {
		t.Errorf("files = %+v, want one file for .ok", report.Files)
	}

	wantCodes := map[string]string{
		"div[":     models.ErrCodeInvalidSelector,
		".slow":    models.ErrCodeSelectorNotFound,
		".missing": models.ErrCodeSelectorNotFound,
	}
	if len(report.Failures) != len(wantCodes) {
		t.Fatalf("failures = %+v, want %d", report.Failures, len(wantCodes))
	}
	for _, f := range report.Failures {
		if f.Index != 0 {
			t.Errorf("selector failure %q has index %d, want 0", f.Selector, f.Index)
		}
		if want := wantCodes[f.Selector]; f.Code != want {
			t.Errorf("failure %q code = %s, want %s", f.Selector, f.Code, want)
		}
	}
	// The browser is the one that rejects the malformed selector.
	if len(sess.queried) != 4 || sess.queried[0] != "div[" {
		t.Errorf("queried = %q, want every selector sent to the session", sess.queried)
	}
}

func TestRun_BrowserOnlySelectorsReachSession(t *testing.T) {
	selectors := models.SelectorList{"div:is(.a, .b)", "div:has(> img)", ":scope > div"}
	sess := newFakeSession()
	for _, sel := range selectors {
		sess.elements[sel] = threeElements()[:1]
	}
	launches := 0

	report := New(launchFake(sess, &launches), fastOptions()).Run(context.Background(), &models.CaptureRequest{
		URL:       "https://example.com",
		Selectors: selectors,
		OutputDir: t.TempDir(),
	})

	if len(report.Failures) != 0 {
		t.Errorf("failures = %+v, want none", report.Failures)
	}
	if len(report.Files) != len(selectors) {
		t.Errorf("files = %d, want %d", len(report.Files), len(selectors))
	}
	if len(sess.queried) != len(selectors) || sess.queried[0] != "div:is(.a, .b)" {
		t.Errorf("queried = %q, want %q", sess.queried, selectors)
	}
}

func TestRun_BlankSelectorNeverReachesSession(t *testing.T) {
	sess := newFakeSession()
	launches := 0

	report := New(launchFake(sess, &launches), fastOptions()).Run(context.Background(), &models.CaptureRequest{
		URL:       "https://example.com",
		Selectors: models.SelectorList{"  "},
		OutputDir: t.TempDir(),
	})

	if len(report.Failures) != 1 || report.Failures[0].Code != models.ErrCodeInvalidSelector {
		t.Errorf("failures = %+v, want one %s", report.Failures, models.ErrCodeInvalidSelector)
	}
	if len(sess.queried) != 0 {
		t.Errorf("queried = %q, want none", sess.queried)
	}
}

func TestRun_TeardownOnceWhenNavigationFails(t *testing.T) {
	sess := newFakeSession()
	sess.navigateErr = errors.New("net::ERR_NAME_NOT_RESOLVED")
	sess.elements[".card"] = threeElements()
	launches := 0

	report := New(launchFake(sess, &launches), fastOptions()).Run(context.Background(), &models.CaptureRequest{
		URL:       "https://nope.invalid",
		Selectors: models.SelectorList{".card"},
		OutputDir: t.TempDir(),
	})

	if report.OK() {
		t.Fatal("expected a fatal error")
	}
	var ce *models.CaptureError
	if !errors.As(report.Fatal, &ce) || ce.Code != models.ErrCodeNavigation {
		t.Errorf("fatal = %v, want code %s", report.Fatal, models.ErrCodeNavigation)
	}
	if sess.closes != 1 {
		t.Errorf("closes = %d, want exactly 1", sess.closes)
	}
	if len(sess.queried) != 0 || len(report.Files) != 0 {
		t.Errorf("no selector should be processed after a navigation failure")
	}
}

func TestRun_ReadyTimeoutIsFatal(t *testing.T) {
	sess := newFakeSession()
	sess.readyErr = context.DeadlineExceeded
	launches := 0

	report := New(launchFake(sess, &launches), fastOptions()).Run(context.Background(), &models.CaptureRequest{
		URL:       "https://example.com",
		Selectors: models.SelectorList{".card"},
		OutputDir: t.TempDir(),
	})

	var ce *models.CaptureError
	if !errors.As(report.Fatal, &ce) || ce.Code != models.ErrCodePageNotReady {
		t.Errorf("fatal = %v, want code %s", report.Fatal, models.ErrCodePageNotReady)
	}
	if sess.closes != 1 {
		t.Errorf("closes = %d, want 1", sess.closes)
	}
}

func TestRun_SessionStartFailure(t *testing.T) {
	report := New(failingLaunch(errors.New("executable not found")), fastOptions()).Run(context.Background(), &models.CaptureRequest{
		URL:       "https://example.com",
		Selectors: models.SelectorList{".card"},
		OutputDir: t.TempDir(),
	})

	var ce *models.CaptureError
	if !errors.As(report.Fatal, &ce) || ce.Code != models.ErrCodeSessionStart {
		t.Errorf("fatal = %v, want code %s", report.Fatal, models.ErrCodeSessionStart)
	}
	resp := report.Response()
	if resp.Success || resp.Error == nil || resp.Error.Code != models.ErrCodeSessionStart {
		t.Errorf("response = %+v, want failed with %s", resp, models.ErrCodeSessionStart)
	}
}

func TestRun_InvalidRequestNeverLaunches(t *testing.T) {
	launches := 0
	sess := newFakeSession()
	report := New(launchFake(sess, &launches), fastOptions()).Run(context.Background(), &models.CaptureRequest{
		URL: "https://example.com",
	})
	if report.OK() || launches != 0 {
		t.Errorf("fatal = %v, launches = %d; want validation failure without launch", report.Fatal, launches)
	}
}

func TestRun_RemoveOverlaysOnRequest(t *testing.T) {
	sess := newFakeSession()
	launches := 0
	New(launchFake(sess, &launches), fastOptions()).Run(context.Background(), &models.CaptureRequest{
		URL:            "https://example.com",
		Selectors:      models.SelectorList{".card"},
		OutputDir:      t.TempDir(),
		RemoveOverlays: true,
	})
	if !sess.overlaysRan {
		t.Error("RemoveOverlays was not called")
	}
}

func TestRun_CanceledContextStopsSelectorLoop(t *testing.T) {
	sess := newFakeSession()
	sess.elements[".card"] = threeElements()
	launches := 0
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := New(launchFake(sess, &launches), fastOptions()).Run(ctx, &models.CaptureRequest{
		URL:       "https://example.com",
		Selectors: models.SelectorList{".card"},
		OutputDir: t.TempDir(),
	})

	if report.OK() {
		t.Error("expected a fatal error for a canceled context")
	}
	if sess.closes != 1 {
		t.Errorf("closes = %d, want 1", sess.closes)
	}
}
