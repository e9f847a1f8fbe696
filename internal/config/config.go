// Package config loads TestGPT's startup configuration document: the
// Environment Catalog's profile tables plus the root-level settings
// every other component needs at construction time (§4.1, §4.14).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/testgpt-run/testgpt/internal/domain"
)

// Config is the parsed configuration document.
type Config struct {
	Viewports []domain.ViewportProfile `toml:"viewports"`
	Browsers  []domain.BrowserProfile  `toml:"browsers"`
	Networks  []domain.NetworkProfile  `toml:"networks"`

	// SiteOverrides maps a target-host substring to browser names that
	// must always be included when that host is the target (§4.1).
	SiteOverrides map[string][]string `toml:"site_overrides"`

	Storage Storage `toml:"storage"`
	Model   Model   `toml:"model"`
	Timeouts Timeouts `toml:"timeouts"`
	Stability Stability `toml:"stability"`

	// MaxConcurrency bounds parallel cell execution. 0 or 1 means
	// cells run sequentially (the §5 baseline); see SPEC_FULL.md §9.
	MaxConcurrency int `toml:"max_concurrency"`
}

// Storage holds the Scenario Store's persistence root.
type Storage struct {
	Root string `toml:"root"`
}

// Model holds the credentials-variable name and default model tier
// for the Model Agent (C11). The core never reads the credential
// value itself into a config struct field — only the environment
// variable name to look it up from, per §6's "the core never exposes
// credentials in artifacts or summaries".
type Model struct {
	APIKeyEnvVar string `toml:"api_key_env_var"`
	DefaultModel string `toml:"default_model"`
}

// Timeouts holds the blocking-point deadlines named in §5.
type Timeouts struct {
	SubprocessLaunchSeconds int `toml:"subprocess_launch_seconds"`
	AgentSeconds            int `toml:"agent_seconds"`
	ToolCallSeconds         int `toml:"tool_call_seconds"`
	MaxAgentTurns           int `toml:"max_agent_turns"`
}

// SubprocessLaunch returns the subprocess-launch readiness deadline.
func (t Timeouts) SubprocessLaunch() time.Duration {
	return time.Duration(t.SubprocessLaunchSeconds) * time.Second
}

// Agent returns the per-cell agent wall-clock deadline.
func (t Timeouts) Agent() time.Duration {
	return time.Duration(t.AgentSeconds) * time.Second
}

// ToolCall returns the per-tool-call deadline.
func (t Timeouts) ToolCall() time.Duration {
	return time.Duration(t.ToolCallSeconds) * time.Second
}

// Stability holds the Scenario Stability Tracker's (C12) thresholds.
type Stability struct {
	WindowSize                   int     `toml:"window_size"`
	FlakeThreshold               float64 `toml:"flake_threshold"`
	MinRuns                      int     `toml:"min_runs"`
	AutoQuarantine               bool    `toml:"auto_quarantine"`
	AutoUnquarantine             bool    `toml:"auto_unquarantine"`
	UnquarantineThreshold        float64 `toml:"unquarantine_threshold"`
	ConsecutiveFailuresThreshold int     `toml:"consecutive_failures_threshold"`
}

// Default returns the built-in catalog and settings used when no
// configuration document is found, matching the reference repo's own
// DefaultConfig()-as-fallback idiom.
func Default() *Config {
	return &Config{
		Viewports: []domain.ViewportProfile{
			{Name: "iphone-13-pro", DisplayName: "iPhone 13 Pro", Width: 390, Height: 844, DeviceScaleFactor: 3, IsMobile: true, DeviceClass: "phone"},
			{Name: "ipad-air", DisplayName: "iPad Air", Width: 820, Height: 1180, DeviceScaleFactor: 2, IsMobile: true, DeviceClass: "tablet"},
			{Name: "desktop-standard", DisplayName: "Desktop 1440p", Width: 1440, Height: 900, DeviceScaleFactor: 1, DeviceClass: "desktop"},
			{Name: "android-medium", DisplayName: "Android (medium)", Width: 412, Height: 915, DeviceScaleFactor: 2.6, IsMobile: true, DeviceClass: "phone"},
		},
		Browsers: []domain.BrowserProfile{
			{Name: "chromium-desktop", Engine: domain.EngineChromium, Platform: domain.PlatformDesktop},
			{Name: "webkit-desktop", Engine: domain.EngineWebkit, Platform: domain.PlatformDesktop},
			{Name: "webkit-ios", Engine: domain.EngineWebkit, Platform: domain.PlatformMobile},
			{Name: "firefox-desktop", Engine: domain.EngineFirefox, Platform: domain.PlatformDesktop},
		},
		Networks: []domain.NetworkProfile{
			{Name: "normal"},
			{Name: "slow-3g", LatencyMs: 400, DownloadKbps: 400, UploadKbps: 400},
			{Name: "flaky-edge", LatencyMs: 100, PacketLossPct: 5},
		},
		SiteOverrides: map[string][]string{},
		Storage:       Storage{Root: "testgpt-data"},
		Model:         Model{APIKeyEnvVar: "TESTGPT_MODEL_API_KEY", DefaultModel: "gemini-2.5-flash"},
		Timeouts: Timeouts{
			SubprocessLaunchSeconds: 30,
			AgentSeconds:            300,
			ToolCallSeconds:         30,
			MaxAgentTurns:           20,
		},
		Stability: Stability{
			WindowSize:            10,
			FlakeThreshold:        0.3,
			MinRuns:               3,
			AutoQuarantine:        true,
			UnquarantineThreshold: 0.9,
		},
		MaxConcurrency: 1,
	}
}

// Load reads the configuration document at path. A missing file is not
// an error — it returns Default() so the catalog always has profiles
// to serve, matching the reference repo's preference for sensible
// built-in defaults over hard startup failure.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parsing config document %s: %w", path, err)
	}
	return cfg, nil
}
