package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the ambient application configuration. Per-stage tunables
// (timeouts, retry ceilings, delays, filenames) are CLI flags instead.
type Config struct {
	Browser BrowserConfig
	Maps    MapsConfig
	Output  OutputConfig
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// UserAgent is applied to every page to mimic a real browser.
	// Empty disables the override.
	UserAgent string

	// Stealth injects the stealth JS bundle into every new page.
	Stealth bool // default: true
}

// MapsConfig controls the Google Maps API client.
type MapsConfig struct {
	// APIKey authenticates Geocoding and Distance Matrix calls.
	APIKey string // from GOOGLE_MAPS_API_KEY

	// BaseURL overrides the Maps API endpoint (used by tests).
	BaseURL string // default: "https://maps.googleapis.com/maps/api"

	// Timeout is the per-request deadline for Maps API calls.
	Timeout time.Duration // default: 30s
}

// OutputConfig controls where the pipeline tables live.
type OutputConfig struct {
	// Folder is created on startup if missing; all CSV tables go here.
	Folder string // default: "output"
}

// defaultUserAgent mimics desktop Chrome; sites serve the challenge page far
// more often to the default headless UA.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36"

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:   envBoolOr("HDBSCOUT_HEADLESS", true),
			NoSandbox:  envBoolOr("HDBSCOUT_NO_SANDBOX", false),
			BrowserBin: os.Getenv("HDBSCOUT_BROWSER_BIN"),
			UserAgent:  envOr("HDBSCOUT_USER_AGENT", defaultUserAgent),
			Stealth:    envBoolOr("HDBSCOUT_STEALTH", true),
		},
		Maps: MapsConfig{
			APIKey:  os.Getenv("GOOGLE_MAPS_API_KEY"),
			BaseURL: envOr("HDBSCOUT_MAPS_BASE_URL", "https://maps.googleapis.com/maps/api"),
			Timeout: envDurationOr("HDBSCOUT_MAPS_TIMEOUT", 30*time.Second),
		},
		Output: OutputConfig{
			Folder: envOr("HDBSCOUT_OUTPUT_FOLDER", "output"),
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

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
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
