package models

// CaptureResponse is the response for POST /api/v1/capture.
type CaptureResponse struct {
	// Success is false only when the run could not proceed at all
	// (session start, navigation, readiness). Partial failures still
	// report success and list what went wrong in Failures.
	Success bool `json:"success"`

	// URL echoes the requested page.
	URL string `json:"url"`

	// OutputDir is the resolved directory the files were written to.
	OutputDir string `json:"output_dir"`

	// Files lists every element image that was written.
	Files []CapturedFile `json:"files"`

	// Failures lists skipped selectors and elements.
	Failures []Failure `json:"failures"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// CapturedFile describes one saved element image.
type CapturedFile struct {
	Selector string `json:"selector"`
	Index    int    `json:"index"`
	Path     string `json:"path"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Failure describes a skipped selector (Index == 0) or element.
type Failure struct {
	Selector string `json:"selector"`
	Index    int    `json:"index,omitempty"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// StartupMs covers launching the browser session.
	StartupMs int64 `json:"startup_ms"`

	// NavigationMs covers navigation, the readiness wait and the settle delay.
	NavigationMs int64 `json:"navigation_ms"`

	// CaptureMs covers selector enumeration and all element captures.
	CaptureMs int64 `json:"capture_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"` // "idle" or "busy"
	Uptime  string `json:"uptime"`
	Runs    int64  `json:"runs"`
	Version string `json:"version"`
}
