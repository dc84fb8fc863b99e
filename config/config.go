package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Capture   CaptureConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"

	// OutputRoot confines API-requested output directories.
	OutputRoot string // default: "."
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: true

	// BrowserBin is the fixed path of the browser executable. When empty the
	// system browser is looked up on PATH; it is never downloaded.
	BrowserBin string

	// Width and Height set the window and viewport size in CSS pixels.
	Width  int // default: 1920
	Height int // default: 1080

	// BlockedResourceTypes lists resource types to abort during capture:
	// Media, Script, WebSocket, EventSource or Ping. Other names are ignored.
	// default: none
	BlockedResourceTypes []string
}

// CaptureConfig controls waits and output for a capture run.
type CaptureConfig struct {
	// OutputDir is the default directory for element images.
	OutputDir string // default: "screenshots"

	// ReadyTimeout bounds the wait for document.readyState == "complete".
	ReadyTimeout time.Duration // default: 10s

	// ElementTimeout bounds the wait for a selector's first match.
	ElementTimeout time.Duration // default: 10s

	// SettleDelay is the fixed pause after the page reports ready.
	SettleDelay time.Duration // default: 2s

	// ScrollDelay is the fixed pause after scrolling an element into view.
	ScrollDelay time.Duration // default: 500ms

	// WaitStable additionally waits for the DOM to stop changing after load.
	WaitStable bool // default: false
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 3
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// Load reads a .env file when present, then configuration from environment
// variables with sane defaults.
func Load() *Config {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host:       envOr("ELEMSHOT_HOST", "0.0.0.0"),
			Port:       envIntOr("ELEMSHOT_PORT", 8080),
			Mode:       envOr("ELEMSHOT_MODE", "release"),
			OutputRoot: envOr("ELEMSHOT_OUTPUT_ROOT", "."),
		},
		Browser: BrowserConfig{
			Headless:             envBoolOr("ELEMSHOT_HEADLESS", true),
			NoSandbox:            envBoolOr("ELEMSHOT_NO_SANDBOX", true),
			BrowserBin:           os.Getenv("ELEMSHOT_BROWSER_BIN"),
			Width:                envIntOr("ELEMSHOT_VIEWPORT_WIDTH", 1920),
			Height:               envIntOr("ELEMSHOT_VIEWPORT_HEIGHT", 1080),
			BlockedResourceTypes: envSliceOr("ELEMSHOT_BLOCKED_RESOURCES", nil),
		},
		Capture: CaptureConfig{
			OutputDir:      envOr("ELEMSHOT_OUTPUT_DIR", "screenshots"),
			ReadyTimeout:   envDurationOr("ELEMSHOT_READY_TIMEOUT", 10*time.Second),
			ElementTimeout: envDurationOr("ELEMSHOT_ELEMENT_TIMEOUT", 10*time.Second),
			SettleDelay:    envDurationOr("ELEMSHOT_SETTLE_DELAY", 2*time.Second),
			ScrollDelay:    envDurationOr("ELEMSHOT_SCROLL_DELAY", 500*time.Millisecond),
			WaitStable:     envBoolOr("ELEMSHOT_WAIT_STABLE", false),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("ELEMSHOT_AUTH_ENABLED", true),
			APIKeys: envSliceOr("ELEMSHOT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("ELEMSHOT_RATE_RPS", 1.0),
			Burst:             envIntOr("ELEMSHOT_RATE_BURST", 3),
		},
		Log: LogConfig{
			Level:  envOr("ELEMSHOT_LOG_LEVEL", "info"),
			Format: envOr("ELEMSHOT_LOG_FORMAT", "text"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
