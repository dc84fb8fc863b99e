package handler

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/elemshot/capture"
	"github.com/use-agent/elemshot/models"
	"github.com/use-agent/elemshot/webhook"
)

// Runner executes one capture request. *capture.Capturer implements it.
type Runner interface {
	Run(ctx context.Context, req *models.CaptureRequest) *capture.Report
}

// Captures serializes capture runs so a process drives at most one
// rendering session at a time.
type Captures struct {
	runner     Runner
	outputRoot string
	slot       chan struct{}
	runs       atomic.Int64
	startTime  time.Time
}

// NewCaptures creates the capture service. Requested output directories are
// resolved under outputRoot.
func NewCaptures(runner Runner, outputRoot string) *Captures {
	return &Captures{
		runner:     runner,
		outputRoot: outputRoot,
		slot:       make(chan struct{}, 1),
		startTime:  time.Now(),
	}
}

// Busy reports whether a capture is currently running.
func (s *Captures) Busy() bool { return len(s.slot) > 0 }

// Runs returns the number of completed captures.
func (s *Captures) Runs() int64 { return s.runs.Load() }

// Capture returns a handler for POST /api/v1/capture.
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults.
//  2. Confine the output directory under the output root.
//  3. Wait for the capture slot (or give up when the client goes away).
//  4. Run the capture; partial failures are part of a 200 response.
//  5. Fire the optional webhook.
func (s *Captures) Capture() gin.HandlerFunc {
	return func(c *gin.Context) {
		// ── 1. Parse request ────────────────────────────────────────
		var req models.CaptureRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewCaptureError(models.ErrCodeInvalidInput, err.Error(), err))
			return
		}
		req.Defaults()

		// ── 2. Output directory ─────────────────────────────────────
		dir, err := resolveOutputDir(s.outputRoot, req.OutputDir)
		if err != nil {
			respondError(c, err)
			return
		}
		req.OutputDir = dir

		// ── 3. Acquire the single capture slot ──────────────────────
		ctx := c.Request.Context()
		select {
		case s.slot <- struct{}{}:
		case <-ctx.Done():
			respondError(c, models.NewCaptureError(models.ErrCodeBusy, "gave up waiting for a free browser session", ctx.Err()))
			return
		}

		// ── 4. Run ──────────────────────────────────────────────────
		report := func() *capture.Report {
			defer func() { <-s.slot }()
			return s.runner.Run(ctx, &req)
		}()
		s.runs.Add(1)

		resp := report.Response()
		status := http.StatusOK
		if !resp.Success && resp.Error != nil {
			status = mapCodeToStatus(resp.Error.Code)
		}

		// ── 5. Webhook ──────────────────────────────────────────────
		if req.WebhookURL != "" {
			eventType := webhook.EventCaptureCompleted
			if !resp.Success {
				eventType = webhook.EventCaptureFailed
			}
			webhook.DeliverAsync(req.WebhookURL, req.WebhookSecret, &webhook.Event{
				Type:      eventType,
				URL:       req.URL,
				Timestamp: time.Now().Unix(),
				Data:      resp,
			})
		}

		c.JSON(status, resp)
	}
}

// resolveOutputDir joins dir onto root and rejects anything that would
// land outside root.
func resolveOutputDir(root, dir string) (string, error) {
	if filepath.IsAbs(dir) {
		return "", models.NewCaptureError(models.ErrCodeInvalidInput, "output_dir must be relative", nil)
	}
	joined := filepath.Join(root, dir)
	rel, err := filepath.Rel(root, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", models.NewCaptureError(models.ErrCodeInvalidInput, "output_dir escapes the output root", err)
	}
	return joined, nil
}

// respondError writes a structured JSON error response.
func respondError(c *gin.Context, err error) {
	var captureErr *models.CaptureError
	if !errors.As(err, &captureErr) {
		captureErr = models.NewCaptureError(models.ErrCodeInternal, err.Error(), err)
	}

	c.JSON(mapCodeToStatus(captureErr.Code), models.CaptureResponse{
		Success:  false,
		Files:    []models.CapturedFile{},
		Failures: []models.Failure{},
		Error:    captureErr.ToDetail(),
	})
}

// mapCodeToStatus translates error codes to HTTP status codes.
func mapCodeToStatus(code string) int {
	switch code {
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodePageNotReady:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeBusy:
		return http.StatusServiceUnavailable // 503
	default:
		return http.StatusInternalServerError // 500
	}
}
