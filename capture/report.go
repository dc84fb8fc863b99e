package capture

import (
	"errors"
	"time"

	"github.com/use-agent/elemshot/models"
)

// Report collects the outcome of every selector and element in one run.
// A run with Fatal == nil may still contain Failures.
type Report struct {
	URL       string
	OutputDir string

	Files    []models.CapturedFile
	Failures []models.Failure

	// Fatal is set when the run could not proceed past session start,
	// navigation or the readiness wait.
	Fatal error

	StartupTime    time.Duration
	NavigationTime time.Duration
	CaptureTime    time.Duration
}

// OK reports whether the run got as far as enumerating selectors.
func (r *Report) OK() bool { return r.Fatal == nil }

func (r *Report) addFile(f models.CapturedFile) {
	r.Files = append(r.Files, f)
}

func (r *Report) addFailure(selector string, index int, err error) {
	r.Failures = append(r.Failures, models.Failure{
		Selector: selector,
		Index:    index,
		Code:     errorCode(err, models.ErrCodeElementCapture),
		Message:  err.Error(),
	})
}

// Response converts the report into the API response shape.
func (r *Report) Response() models.CaptureResponse {
	resp := models.CaptureResponse{
		Success:   r.OK(),
		URL:       r.URL,
		OutputDir: r.OutputDir,
		Files:     r.Files,
		Failures:  r.Failures,
		Timing: models.TimingInfo{
			TotalMs:      (r.StartupTime + r.NavigationTime + r.CaptureTime).Milliseconds(),
			StartupMs:    r.StartupTime.Milliseconds(),
			NavigationMs: r.NavigationTime.Milliseconds(),
			CaptureMs:    r.CaptureTime.Milliseconds(),
		},
	}
	if resp.Files == nil {
		resp.Files = []models.CapturedFile{}
	}
	if resp.Failures == nil {
		resp.Failures = []models.Failure{}
	}
	if r.Fatal != nil {
		var ce *models.CaptureError
		if errors.As(r.Fatal, &ce) {
			resp.Error = ce.ToDetail()
		} else {
			resp.Error = &models.ErrorDetail{Code: models.ErrCodeInternal, Message: r.Fatal.Error()}
		}
	}
	return resp
}

// errorCode returns the code of a wrapped CaptureError, or fallback.
func errorCode(err error, fallback string) string {
	var ce *models.CaptureError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return fallback
}
