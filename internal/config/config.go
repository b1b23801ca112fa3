package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/simgate-dev/simgate/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "simgate.json"

	// DefaultAddress is the default listen address.
	DefaultAddress = ":8080"

	// DefaultCapacity is the default simulator capacity.
	DefaultCapacity = 1

	// DefaultSimulatorName is reported to queued clients when nothing else is configured.
	DefaultSimulatorName = "simgate"

	// DefaultMetricsPath is where Prometheus metrics are exposed.
	DefaultMetricsPath = "/metrics"

	// DefaultTracerName is the OpenTelemetry tracer name.
	DefaultTracerName = "simgate"
)

// Behavior modes.
const (
	ModeObserve   = "observe"
	ModeMultiuser = "multiuser"
)

// Config represents the complete simgate.json configuration.
type Config struct {
	// Address is the HTTP listen address.
	Address string `json:"address,omitempty"`

	// Mode is the server behavior mode: "observe" or "multiuser".
	Mode string `json:"mode,omitempty"`

	// Capacity is the number of simultaneous simulations in multiuser mode.
	Capacity int `json:"capacity,omitempty"`

	// SimulatorName is reported to clients waiting for capacity.
	SimulatorName string `json:"simulatorName,omitempty"`

	// Session contains per-connection settings.
	Session SessionConfig `json:"session,omitempty"`

	// Metrics contains Prometheus settings.
	Metrics MetricsConfig `json:"metrics,omitempty"`

	// Sources contains settings for reading simulation sources.
	Sources SourcesConfig `json:"sources,omitempty"`

	// Tracing contains OpenTelemetry settings.
	Tracing TracingConfig `json:"tracing,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// SessionConfig contains per-connection settings.
type SessionConfig struct {
	// MaxMessageSize is the largest inbound websocket message accepted.
	MaxMessageSize int64 `json:"maxMessageSize,omitempty"`

	// WriteTimeout bounds a single websocket write (e.g., "10s").
	WriteTimeout string `json:"writeTimeout,omitempty"`

	// ReadTimeout closes connections silent for longer than this (e.g., "60s").
	ReadTimeout string `json:"readTimeout,omitempty"`

	// SendQueue is the number of outbound frames buffered per connection.
	SendQueue int `json:"sendQueue,omitempty"`

	// MessagesPerSecond limits inbound requests per connection. 0 disables the limit.
	MessagesPerSecond float64 `json:"messagesPerSecond,omitempty"`

	// Burst is the inbound rate limiter burst size.
	Burst int `json:"burst,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

// SourcesConfig contains settings for the source fetcher.
type SourcesConfig struct {
	// S3Region is the AWS region used for s3:// sources.
	S3Region string `json:"s3Region,omitempty"`

	// HTTPTimeout bounds http(s) source reads (e.g., "30s").
	HTTPTimeout string `json:"httpTimeout,omitempty"`

	// AllowFile enables file:// sources. Clients are unauthenticated, so
	// leave it off unless FileRoot holds only simulation documents.
	AllowFile bool `json:"allowFile,omitempty"`

	// FileRoot is the directory file:// sources must resolve inside.
	FileRoot string `json:"fileRoot,omitempty"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	TracerName string `json:"tracerName,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Address:       DefaultAddress,
		Mode:          ModeObserve,
		Capacity:      DefaultCapacity,
		SimulatorName: DefaultSimulatorName,
		Session: SessionConfig{
			MaxMessageSize: 1 << 20,
			WriteTimeout:   "10s",
			ReadTimeout:    "60s",
			SendQueue:      256,
			Burst:          100,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    DefaultMetricsPath,
		},
		Sources: SourcesConfig{
			S3Region:    "us-east-1",
			HTTPTimeout: "30s",
		},
		Tracing: TracingConfig{
			TracerName: DefaultTracerName,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for simgate.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E100").
				WithDetail("No simgate.json found in " + filepath.Dir(path)).
				WithSuggestion("Run 'simgate config init' to write one with the defaults")
		}
		return nil, errors.New("E102").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E102").
			WithDetail("Failed to parse simgate.json: " + err.Error()).
			WithSuggestion("Check that simgate.json is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E102").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E102").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	defaults := New()

	if c.Address == "" {
		c.Address = defaults.Address
	}
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	if c.Mode == "" {
		c.Mode = defaults.Mode
	}
	if c.Capacity == 0 {
		c.Capacity = defaults.Capacity
	}
	if c.SimulatorName == "" {
		c.SimulatorName = defaults.SimulatorName
	}

	// Session
	if c.Session.MaxMessageSize == 0 {
		c.Session.MaxMessageSize = defaults.Session.MaxMessageSize
	}
	if c.Session.WriteTimeout == "" {
		c.Session.WriteTimeout = defaults.Session.WriteTimeout
	}
	if c.Session.ReadTimeout == "" {
		c.Session.ReadTimeout = defaults.Session.ReadTimeout
	}
	if c.Session.SendQueue == 0 {
		c.Session.SendQueue = defaults.Session.SendQueue
	}
	if c.Session.Burst == 0 {
		c.Session.Burst = defaults.Session.Burst
	}

	// Metrics
	if c.Metrics.Path == "" {
		c.Metrics.Path = defaults.Metrics.Path
	}

	// Sources
	if c.Sources.S3Region == "" {
		c.Sources.S3Region = defaults.Sources.S3Region
	}
	if c.Sources.HTTPTimeout == "" {
		c.Sources.HTTPTimeout = defaults.Sources.HTTPTimeout
	}

	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = defaults.Tracing.TracerName
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Mode != ModeObserve && c.Mode != ModeMultiuser {
		return errors.New("E103").
			WithDetail("Got mode " + strconv.Quote(c.Mode)).
			WithSuggestion(`Use "observe" or "multiuser"`)
	}
	if c.Capacity < 1 {
		return errors.New("E101").
			WithDetail("capacity must be at least 1, got " + strconv.Itoa(c.Capacity))
	}
	if c.Session.SendQueue < 1 {
		return errors.New("E101").
			WithDetail("session.sendQueue must be at least 1")
	}
	if c.Session.MessagesPerSecond < 0 {
		return errors.New("E101").
			WithDetail("session.messagesPerSecond cannot be negative")
	}
	for field, value := range map[string]string{
		"session.writeTimeout": c.Session.WriteTimeout,
		"session.readTimeout":  c.Session.ReadTimeout,
		"sources.httpTimeout":  c.Sources.HTTPTimeout,
	} {
		if _, err := parseDuration(value); err != nil {
			return errors.New("E101").
				WithDetail(field + " is not a valid duration: " + strconv.Quote(value)).
				WithSuggestion(`Use Go duration syntax such as "10s" or "1m30s"`)
		}
	}
	if c.Sources.AllowFile && c.Sources.FileRoot == "" {
		return errors.New("E101").
			WithDetail("sources.allowFile requires sources.fileRoot").
			WithSuggestion(`Set "fileRoot" to the directory holding your models`)
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return errors.New("E101").
			WithDetail("metrics.path must start with /")
	}
	return nil
}

// WriteTimeout returns the parsed session write timeout.
func (c *Config) WriteTimeout() time.Duration {
	d, _ := parseDuration(c.Session.WriteTimeout)
	return d
}

// ReadTimeout returns the parsed session read timeout.
func (c *Config) ReadTimeout() time.Duration {
	d, _ := parseDuration(c.Session.ReadTimeout)
	return d
}

// HTTPTimeout returns the parsed source fetch timeout.
func (c *Config) HTTPTimeout() time.Duration {
	d, _ := parseDuration(c.Sources.HTTPTimeout)
	return d
}

// IsMultiuser reports whether the server runs in multiuser mode.
func (c *Config) IsMultiuser() bool {
	return c.Mode == ModeMultiuser
}

// Exists checks if a simgate.json exists in the directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// LoadOrDefault loads simgate.json from dir, falling back to defaults when
// the file does not exist. Other read or parse failures are returned.
func LoadOrDefault(dir string) (*Config, error) {
	if !Exists(dir) {
		return New(), nil
	}
	return Load(dir)
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.Newf(errors.CategoryConfig, "negative duration %s", s)
	}
	return d, nil
}
