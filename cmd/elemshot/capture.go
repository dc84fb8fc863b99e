package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/use-agent/elemshot/browser"
	"github.com/use-agent/elemshot/capture"
	"github.com/use-agent/elemshot/config"
	"github.com/use-agent/elemshot/models"
)

// newLauncher is swapped in tests.
var newLauncher = browser.NewLauncher

// NewCaptureCmd creates the capture command.
func NewCaptureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture [url] [selector...]",
		Short: "Save one PNG per element matched by each selector",
		Long: `Capture loads the page, waits for it to finish loading, and for every selector
(in order) saves each matching element (in document order) as
{selector}_{index}_{yyyyMMdd_HHmmss}.png in the output directory.

A selector that matches nothing, or an element that cannot be captured, is
logged and skipped. The command fails only when the browser cannot start or
the page cannot be loaded.

Examples:
  # Every .card on the page
  elemshot capture https://example.com .card

  # Several selectors into a custom directory
  elemshot capture https://example.com ".card" "#hero" --out shots

  # From a job file
  elemshot capture --file job.yaml

Job file example:
  url: https://tft.op.gg/set/14
  selectors: .self-stretch
  output_dir: element_screenshots`,
		Args: cobra.ArbitraryArgs,
		RunE: runCaptureCmd,
	}

	cmd.Flags().StringP("out", "o", "", `Output directory (default "screenshots")`)
	cmd.Flags().StringP("file", "f", "", "Read url, selectors and output directory from a YAML job file")
	cmd.Flags().Bool("remove-overlays", false, "Remove fixed/sticky banners before capturing")
	cmd.Flags().Bool("block-ads", false, "Block ad slots and consent frames that resize the page after load")
	cmd.Flags().Bool("stealth", false, "Mask common headless-browser fingerprints")
	cmd.Flags().String("browser", "", "Path to the browser executable (overrides ELEMSHOT_BROWSER_BIN)")

	return cmd
}

func runCaptureCmd(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	initLogger(cfg.Log, cmd.ErrOrStderr())

	req, err := buildCaptureRequest(cmd, args, cfg.Capture)
	if err != nil {
		return err
	}
	if bin, _ := cmd.Flags().GetString("browser"); bin != "" {
		cfg.Browser.BrowserBin = bin
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	capturer := capture.New(newLauncher(cfg.Browser), capture.OptionsFromConfig(cfg.Capture))
	report := capturer.Run(ctx, req)

	out := cmd.OutOrStdout()
	for _, f := range report.Files {
		fmt.Fprintf(out, "saved %s\n", f.Path)
	}
	for _, f := range report.Failures {
		if f.Index == 0 {
			fmt.Fprintf(out, "skipped selector %s: %s\n", f.Selector, f.Message)
		} else {
			fmt.Fprintf(out, "skipped %s #%d: %s\n", f.Selector, f.Index, f.Message)
		}
	}
	fmt.Fprintf(out, "%d captured, %d skipped\n", len(report.Files), len(report.Failures))

	if !report.OK() {
		return fmt.Errorf("capture failed: %w", report.Fatal)
	}
	return nil
}

// buildCaptureRequest merges the job file (if any), positional arguments
// and flags. Positional arguments replace the job file's url and selectors.
func buildCaptureRequest(cmd *cobra.Command, args []string, defaults config.CaptureConfig) (*models.CaptureRequest, error) {
	req := &models.CaptureRequest{}

	if path, _ := cmd.Flags().GetString("file"); path != "" {
		job, err := config.LoadJobFile(path)
		if err != nil {
			if errors.Is(err, config.ErrJobNotFound) {
				return nil, fmt.Errorf("job file %s does not exist", path)
			}
			return nil, err
		}
		req = job
	}

	if len(args) > 0 {
		req.URL = args[0]
	}
	if len(args) > 1 {
		req.Selectors = models.SelectorList(args[1:])
	}

	if out, _ := cmd.Flags().GetString("out"); out != "" {
		req.OutputDir = out
	}
	if req.OutputDir == "" {
		req.OutputDir = defaults.OutputDir
	}

	for flag, dst := range map[string]*bool{
		"remove-overlays": &req.RemoveOverlays,
		"block-ads":       &req.BlockAds,
		"stealth":         &req.Stealth,
	} {
		if cmd.Flags().Changed(flag) {
			*dst, _ = cmd.Flags().GetBool(flag)
		}
	}

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w (usage: %s)", err, cmd.UseLine())
	}
	return req, nil
}
