package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/elemshot/models"
)

func main() {
	apiURL := os.Getenv("ELEMSHOT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("ELEMSHOT_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "ELEMSHOT_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"elemshot",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.AddTool(newCaptureTool(), handleCaptureElements(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// newCaptureTool declares capture_elements and the request options it forwards.
func newCaptureTool() mcp.Tool {
	return mcp.NewTool("capture_elements",
		mcp.WithDescription("Load a web page in a headless browser and save a cropped PNG screenshot of every element matching each CSS selector. Returns the saved file paths."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the page to capture"),
		),
		mcp.WithArray("selectors",
			mcp.Required(),
			mcp.WithStringItems(),
			mcp.Description("CSS selectors, processed in order; every match becomes one file"),
		),
		mcp.WithString("output_dir",
			mcp.Description("Output directory relative to the server's output root (default: 'screenshots')"),
		),
		mcp.WithBoolean("remove_overlays",
			mcp.Description("Remove fixed/sticky cookie banners and popups before capturing"),
		),
		mcp.WithBoolean("block_ads",
			mcp.Description("Block ad slots and consent frames that resize the page after load"),
		),
		mcp.WithBoolean("stealth",
			mcp.Description("Mask common headless-browser fingerprints"),
		),
	)
}

func handleCaptureElements(apiURL, apiKey string) server.ToolHandlerFunc {
	// Readiness and element waits are bounded server-side; leave headroom.
	client := &http.Client{Timeout: 300 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}
		selectors, err := request.RequireStringSlice("selectors")
		if err != nil || len(selectors) == 0 {
			return mcp.NewToolResultError("selectors is required and must be a non-empty array of strings"), nil
		}

		payload := models.CaptureRequest{
			URL:            url,
			Selectors:      selectors,
			OutputDir:      request.GetString("output_dir", ""),
			RemoveOverlays: request.GetBool("remove_overlays", false),
			BlockAds:       request.GetBool("block_ads", false),
			Stealth:        request.GetBool("stealth", false),
		}

		body, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/capture", payload)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var resp models.CaptureResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if !resp.Success {
			errMsg := "capture failed"
			if resp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", resp.Error.Code, resp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		return mcp.NewToolResultText(formatCaptureResult(&resp)), nil
	}
}

// formatCaptureResult renders saved files and skipped items as plain text.
func formatCaptureResult(resp *models.CaptureResponse) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Captured %d element(s) from %s into %s\n", len(resp.Files), resp.URL, resp.OutputDir)
	for _, f := range resp.Files {
		fmt.Fprintf(&sb, "- %s #%d: %s (%dx%d)\n", f.Selector, f.Index, f.Path, f.Width, f.Height)
	}
	if len(resp.Failures) > 0 {
		fmt.Fprintf(&sb, "\nSkipped %d:\n", len(resp.Failures))
		for _, f := range resp.Failures {
			if f.Index == 0 {
				fmt.Fprintf(&sb, "- %s: [%s] %s\n", f.Selector, f.Code, f.Message)
			} else {
				fmt.Fprintf(&sb, "- %s #%d: [%s] %s\n", f.Selector, f.Index, f.Code, f.Message)
			}
		}
	}
	return sb.String()
}

// apiPost sends a POST request to the elemshot API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}
