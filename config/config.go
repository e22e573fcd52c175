package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Browser   BrowserConfig   `yaml:"browser"`
	Capture   CaptureConfig   `yaml:"capture"`
	Detect    DetectConfig    `yaml:"detect"`
	Probe     ProbeConfig     `yaml:"probe"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Cache     CacheConfig     `yaml:"cache"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string `yaml:"host"` // default: "0.0.0.0"
	Port int    `yaml:"port"` // default: 8080
	Mode string `yaml:"mode"` // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool `yaml:"headless"` // default: true

	// MaxPages is the page pool capacity (max concurrent captures).
	MaxPages int `yaml:"max_pages"` // default: 3

	// DefaultProxy is the proxy URL for all browser traffic.
	DefaultProxy string `yaml:"default_proxy"`

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool `yaml:"no_sandbox"` // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string `yaml:"browser_bin"`
}

// CaptureConfig controls how screenshots are taken.
type CaptureConfig struct {
	// OutputDir is where screenshots and HTML snapshots are written.
	OutputDir string `yaml:"output_dir"` // default: "design-research-output"

	// NavigationTimeout bounds navigation plus network-idle waiting.
	NavigationTimeout time.Duration `yaml:"navigation_timeout"` // default: 60s

	// MinDelay and MaxDelay bound the random human-like dwell after load.
	MinDelay time.Duration `yaml:"min_delay"` // default: 1s
	MaxDelay time.Duration `yaml:"max_delay"` // default: 3s

	// MaxRetries is how many extra captures a blocked viewport gets.
	MaxRetries int `yaml:"max_retries"` // default: 0

	// RetryDelayStep widens the dwell window on each retry.
	RetryDelayStep time.Duration `yaml:"retry_delay_step"` // default: 2s

	// BlockMemoryTTL is how long the server remembers the retry step that
	// got a host through. 0 disables the memory.
	BlockMemoryTTL time.Duration `yaml:"block_memory_ttl"` // default: 24h

	// BlockAds aborts requests to known ad and tracking hosts.
	BlockAds bool `yaml:"block_ads"` // default: false
}

// DetectConfig controls the block-detection thresholds.
type DetectConfig struct {
	MinScreenshotBytes int64 `yaml:"min_screenshot_bytes"` // default: 50000
	MaxScreenshotBytes int64 `yaml:"max_screenshot_bytes"` // default: 400000
	MaxOCRBytes        int64 `yaml:"max_ocr_bytes"`        // default: 500000
	MinHTMLChars       int   `yaml:"min_html_chars"`       // default: 2000

	// OCREnabled toggles the OCR text check. It is silently skipped when
	// the tesseract binary cannot be found.
	OCREnabled bool `yaml:"ocr_enabled"` // default: true

	// TesseractBin overrides the tesseract executable.
	TesseractBin string `yaml:"tesseract_bin"` // default: "tesseract"

	// OCRLanguage is passed to tesseract via -l.
	OCRLanguage string `yaml:"ocr_language"` // default: "eng"

	// Workers bounds concurrent evaluations in batch requests.
	Workers int `yaml:"workers"` // default: 4
}

// ProbeConfig controls the HTTP preflight fetch.
type ProbeConfig struct {
	Timeout time.Duration `yaml:"timeout"` // default: 10s
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool `yaml:"enabled"` // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string `yaml:"api_keys"`
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 `yaml:"requests_per_second"` // default: 5

	// Burst is the maximum burst size per API key.
	Burst int `yaml:"burst"` // default: 10

	// CaptureCost is how many tokens a POST /capture spends; every other
	// route spends one.
	CaptureCost int `yaml:"capture_cost"` // default: 5
}

// CacheConfig controls the verdict cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached verdicts. 0 disables caching.
	MaxEntries int `yaml:"max_entries"` // default: 1000
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // default: "info"
	Format string `yaml:"format"` // "json" or "text"; default: "json"
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Mode: "release",
		},
		Browser: BrowserConfig{
			Headless: true,
			MaxPages: 3,
		},
		Capture: CaptureConfig{
			OutputDir:         "design-research-output",
			NavigationTimeout: 60 * time.Second,
			MinDelay:          1 * time.Second,
			MaxDelay:          3 * time.Second,
			RetryDelayStep:    2 * time.Second,
			BlockMemoryTTL:    24 * time.Hour,
		},
		Detect: DetectConfig{
			MinScreenshotBytes: 50_000,
			MaxScreenshotBytes: 400_000,
			MaxOCRBytes:        500_000,
			MinHTMLChars:       2000,
			OCREnabled:         true,
			TesseractBin:       "tesseract",
			OCRLanguage:        "eng",
			Workers:            4,
		},
		Probe: ProbeConfig{
			Timeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			Enabled: true,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5.0,
			Burst:             10,
			CaptureCost:       5,
		},
		Cache: CacheConfig{
			MaxEntries: 1000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// STEALTHSHOT_CONFIG, and finally environment variables.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("STEALTHSHOT_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// loadFile overlays the YAML document at path onto cfg. Keys missing from the
// file keep their current values.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields from STEALTHSHOT_* environment variables.
func (c *Config) applyEnv() {
	c.Server.Host = envOr("STEALTHSHOT_HOST", c.Server.Host)
	c.Server.Port = envIntOr("STEALTHSHOT_PORT", c.Server.Port)
	c.Server.Mode = envOr("STEALTHSHOT_MODE", c.Server.Mode)

	c.Browser.Headless = envBoolOr("STEALTHSHOT_HEADLESS", c.Browser.Headless)
	c.Browser.MaxPages = envIntOr("STEALTHSHOT_MAX_PAGES", c.Browser.MaxPages)
	c.Browser.DefaultProxy = envOr("STEALTHSHOT_PROXY", c.Browser.DefaultProxy)
	c.Browser.NoSandbox = envBoolOr("STEALTHSHOT_NO_SANDBOX", c.Browser.NoSandbox)
	c.Browser.BrowserBin = envOr("STEALTHSHOT_BROWSER_BIN", c.Browser.BrowserBin)

	c.Capture.OutputDir = envOr("STEALTHSHOT_OUTPUT_DIR", c.Capture.OutputDir)
	c.Capture.NavigationTimeout = envDurationOr("STEALTHSHOT_NAV_TIMEOUT", c.Capture.NavigationTimeout)
	c.Capture.MinDelay = envDurationOr("STEALTHSHOT_MIN_DELAY", c.Capture.MinDelay)
	c.Capture.MaxDelay = envDurationOr("STEALTHSHOT_MAX_DELAY", c.Capture.MaxDelay)
	c.Capture.MaxRetries = envIntOr("STEALTHSHOT_MAX_RETRIES", c.Capture.MaxRetries)
	c.Capture.RetryDelayStep = envDurationOr("STEALTHSHOT_RETRY_DELAY_STEP", c.Capture.RetryDelayStep)
	c.Capture.BlockMemoryTTL = envDurationOr("STEALTHSHOT_BLOCK_MEMORY_TTL", c.Capture.BlockMemoryTTL)
	c.Capture.BlockAds = envBoolOr("STEALTHSHOT_BLOCK_ADS", c.Capture.BlockAds)

	c.Detect.MinScreenshotBytes = envInt64Or("STEALTHSHOT_MIN_SCREENSHOT_BYTES", c.Detect.MinScreenshotBytes)
	c.Detect.MaxScreenshotBytes = envInt64Or("STEALTHSHOT_MAX_SCREENSHOT_BYTES", c.Detect.MaxScreenshotBytes)
	c.Detect.MaxOCRBytes = envInt64Or("STEALTHSHOT_MAX_OCR_BYTES", c.Detect.MaxOCRBytes)
	c.Detect.MinHTMLChars = envIntOr("STEALTHSHOT_MIN_HTML_CHARS", c.Detect.MinHTMLChars)
	c.Detect.OCREnabled = envBoolOr("STEALTHSHOT_OCR", c.Detect.OCREnabled)
	c.Detect.TesseractBin = envOr("STEALTHSHOT_TESSERACT_BIN", c.Detect.TesseractBin)
	c.Detect.OCRLanguage = envOr("STEALTHSHOT_OCR_LANG", c.Detect.OCRLanguage)
	c.Detect.Workers = envIntOr("STEALTHSHOT_DETECT_WORKERS", c.Detect.Workers)

	c.Probe.Timeout = envDurationOr("STEALTHSHOT_PROBE_TIMEOUT", c.Probe.Timeout)

	c.Auth.Enabled = envBoolOr("STEALTHSHOT_AUTH_ENABLED", c.Auth.Enabled)
	c.Auth.APIKeys = envSliceOr("STEALTHSHOT_API_KEYS", c.Auth.APIKeys)

	c.RateLimit.RequestsPerSecond = envFloatOr("STEALTHSHOT_RATE_RPS", c.RateLimit.RequestsPerSecond)
	c.RateLimit.Burst = envIntOr("STEALTHSHOT_RATE_BURST", c.RateLimit.Burst)
	c.RateLimit.CaptureCost = envIntOr("STEALTHSHOT_RATE_CAPTURE_COST", c.RateLimit.CaptureCost)

	c.Cache.MaxEntries = envIntOr("STEALTHSHOT_CACHE_MAX_ENTRIES", c.Cache.MaxEntries)

	c.Log.Level = envOr("STEALTHSHOT_LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOr("STEALTHSHOT_LOG_FORMAT", c.Log.Format)
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

func envInt64Or(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
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
