package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bryanchriswhite/BrowserGuard/internal/logger"
	"github.com/bryanchriswhite/BrowserGuard/internal/state"
)

// DefaultPath is used when no --config flag is given.
const DefaultPath = "config.yaml"

// ErrInvalidConfig is returned (wrapped) for configuration that parses but
// fails validation, or does not parse at all.
var ErrInvalidConfig = errors.New("invalid configuration")

// Background setter names
const (
	SetterFeh    = "feh"
	SetterPlasma = "plasma"
)

// Window backend names
const (
	WindowBackendX11  = "x11"
	WindowBackendKWin = "kwin"
)

// BrowserConfig describes the browser that is started and killed.
type BrowserConfig struct {
	Executable string `json:"executable" yaml:"executable"`
	URL        string `json:"url" yaml:"url"`
	// ProcessName is matched as a substring of each process command line.
	ProcessName      string `json:"process_name" yaml:"process_name"`
	KillGraceSeconds int    `json:"kill_grace_seconds" yaml:"kill_grace_seconds"`
}

// MonitoringConfig controls the daemon loop.
type MonitoringConfig struct {
	CheckFrequencySeconds int  `json:"check_frequency_seconds" yaml:"check_frequency_seconds"`
	WatchPatterns         bool `json:"watch_patterns" yaml:"watch_patterns"`
	// WindowBackend selects how window titles are listed: "x11" or "kwin".
	WindowBackend string `json:"window_backend" yaml:"window_backend"`
}

// TimeoutsConfig holds the blackout and break durations.
type TimeoutsConfig struct {
	BlacklistTimeoutMinutes    int `json:"blacklist_timeout_minutes" yaml:"blacklist_timeout_minutes"`
	BathroomBreakMinutes       int `json:"bathroom_break_minutes" yaml:"bathroom_break_minutes"`
	BathroomBreakIntervalHours int `json:"bathroom_break_interval_hours" yaml:"bathroom_break_interval_hours"`
}

// BackgroundsConfig maps each system state to an image path.
type BackgroundsConfig struct {
	Normal        string `json:"normal" yaml:"normal"`
	Blocked       string `json:"blocked" yaml:"blocked"`
	BathroomBreak string `json:"bathroom_break" yaml:"bathroom_break"`
	Setter        string `json:"setter" yaml:"setter"`
}

// FilesConfig holds the pattern, state and journal paths.
type FilesConfig struct {
	Blacklist string `json:"blacklist" yaml:"blacklist"`
	Whitelist string `json:"whitelist" yaml:"whitelist"`
	StateFile string `json:"state_file" yaml:"state_file"`
	// Journal is the SQLite path of the enforcement journal; empty disables it.
	Journal string `json:"journal" yaml:"journal"`
}

// ServerConfig controls the local status API. Port 0 disables it.
type ServerConfig struct {
	Port int `json:"port" yaml:"port"`
}

// Config represents the application configuration
type Config struct {
	Browser     BrowserConfig     `json:"browser" yaml:"browser"`
	Monitoring  MonitoringConfig  `json:"monitoring" yaml:"monitoring"`
	Timeouts    TimeoutsConfig    `json:"timeouts" yaml:"timeouts"`
	Backgrounds BackgroundsConfig `json:"backgrounds" yaml:"backgrounds"`
	Files       FilesConfig       `json:"files" yaml:"files"`
	Server      ServerConfig      `json:"server" yaml:"server"`
	LogLevel    string            `json:"log_level" yaml:"log_level"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Browser: BrowserConfig{
			Executable:       "firefox",
			URL:              "https://www.google.com",
			ProcessName:      "firefox",
			KillGraceSeconds: 2,
		},
		Monitoring: MonitoringConfig{
			CheckFrequencySeconds: 60,
			WindowBackend:         WindowBackendX11,
		},
		Timeouts: TimeoutsConfig{
			BlacklistTimeoutMinutes:    10,
			BathroomBreakMinutes:       10,
			BathroomBreakIntervalHours: 3,
		},
		Backgrounds: BackgroundsConfig{
			Normal:        "/home/user/backgrounds/normal.jpg",
			Blocked:       "/home/user/backgrounds/blocked.jpg",
			BathroomBreak: "/home/user/backgrounds/bathroom.jpg",
			Setter:        SetterFeh,
		},
		Files: FilesConfig{
			Blacklist: "blacklist.txt",
			Whitelist: "whitelist.txt",
			StateFile: "/tmp/ivh_state.json",
		},
		LogLevel: "info",
	}
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	cfg := Defaults()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and required fields.
func (c *Config) Validate() error {
	var problems []string
	positive := func(name string, v int) {
		if v <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive, got %d", name, v))
		}
	}

	if c.Browser.Executable == "" {
		problems = append(problems, "browser.executable must not be empty")
	}
	if c.Browser.ProcessName == "" {
		problems = append(problems, "browser.process_name must not be empty")
	}
	if c.Browser.KillGraceSeconds < 0 {
		problems = append(problems, fmt.Sprintf("browser.kill_grace_seconds must not be negative, got %d", c.Browser.KillGraceSeconds))
	}
	positive("monitoring.check_frequency_seconds", c.Monitoring.CheckFrequencySeconds)
	positive("timeouts.blacklist_timeout_minutes", c.Timeouts.BlacklistTimeoutMinutes)
	positive("timeouts.bathroom_break_minutes", c.Timeouts.BathroomBreakMinutes)
	positive("timeouts.bathroom_break_interval_hours", c.Timeouts.BathroomBreakIntervalHours)

	switch c.Monitoring.WindowBackend {
	case WindowBackendX11, WindowBackendKWin:
	default:
		problems = append(problems, fmt.Sprintf("monitoring.window_backend must be %q or %q, got %q", WindowBackendX11, WindowBackendKWin, c.Monitoring.WindowBackend))
	}

	switch c.Backgrounds.Setter {
	case SetterFeh, SetterPlasma:
	default:
		problems = append(problems, fmt.Sprintf("backgrounds.setter must be %q or %q, got %q", SetterFeh, SetterPlasma, c.Backgrounds.Setter))
	}

	if c.Files.Blacklist == "" || c.Files.Whitelist == "" || c.Files.StateFile == "" {
		problems = append(problems, "files.blacklist, files.whitelist and files.state_file are required")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port out of range: %d", c.Server.Port))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// CheckInterval is the daemon tick period.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Monitoring.CheckFrequencySeconds) * time.Second
}

// BlackoutDuration is how long a blacklist hit locks the browser out.
func (c *Config) BlackoutDuration() time.Duration {
	return time.Duration(c.Timeouts.BlacklistTimeoutMinutes) * time.Minute
}

// BreakDuration is the length of one scheduled break.
func (c *Config) BreakDuration() time.Duration {
	return time.Duration(c.Timeouts.BathroomBreakMinutes) * time.Minute
}

// BreakInterval is the time between break starts.
func (c *Config) BreakInterval() time.Duration {
	return time.Duration(c.Timeouts.BathroomBreakIntervalHours) * time.Hour
}

// KillGrace is the wait between SIGTERM and SIGKILL.
func (c *Config) KillGrace() time.Duration {
	return time.Duration(c.Browser.KillGraceSeconds) * time.Second
}

// BackgroundFor returns the image path configured for a system state.
func (c *Config) BackgroundFor(s state.SystemState) string {
	switch s {
	case state.Blocked:
		return c.Backgrounds.Blocked
	case state.OnBreak:
		return c.Backgrounds.BathroomBreak
	default:
		return c.Backgrounds.Normal
	}
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// NewManager loads the configuration at configFile (DefaultPath when empty).
// A missing file yields the defaults.
func NewManager(configFile string) (*Manager, error) {
	if configFile == "" {
		configFile = DefaultPath
	}

	m := &Manager{configPath: configFile}
	if err := m.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		logger.WithComponent("config").Warn().
			Str("path", m.configPath).
			Msg("Config file not found, using defaults")
		m.config = Defaults()
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Str("blacklist", m.config.Files.Blacklist).
		Str("whitelist", m.config.Files.Whitelist).
		Str("state_file", m.config.Files.StateFile).
		Msg("Config loaded")

	return m, nil
}

// load reads the configuration from disk
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return err
		}
		return fmt.Errorf("failed to read config %s: %w", m.configPath, err)
	}

	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%s: %w", m.configPath, err)
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg := *m.config
	return &cfg
}

// SetLogLevel overrides the configured log level (flag or environment).
func (m *Manager) SetLogLevel(level string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.LogLevel = level
}

// GetConfigPath returns the configuration file path
func (m *Manager) GetConfigPath() string {
	return m.configPath
}
