package robot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFile is the default configuration path.
	DefaultConfigFile = "roarm.yaml"

	// DefaultPrefsDir holds persisted preferences such as the arm identity.
	DefaultPrefsDir = ".roarm"

	// DefaultLinkBaudRate matches the arm's USB serial console.
	DefaultLinkBaudRate = 115200

	// DefaultLoopHz is the main loop rate, well above the 50 Hz report rate.
	DefaultLoopHz = 200

	// DefaultOutputDir is where the recorder writes JSONL files.
	DefaultOutputDir = "."

	// DefaultMode is the operating role used when none is configured.
	DefaultMode = "follower"
)

var errNoArmPort = errors.New("follower.port must be set unless sim is enabled")

// Config holds the follower agent configuration
type Config struct {
	Follower ArmConfig    `yaml:"follower"`
	Link     LinkConfig   `yaml:"link"`
	Geometry Geometry     `yaml:"geometry"`
	Mode     string       `yaml:"mode"`
	PrefsDir string       `yaml:"prefs_dir"`
	LoopHz   int          `yaml:"loop_hz"`
	LogLevel string       `yaml:"log_level"`
	Record   RecordConfig `yaml:"record,omitempty"`
}

// ArmConfig holds configuration for the follower arm's servo bus
type ArmConfig struct {
	Port        string      `yaml:"port"`
	Sim         bool        `yaml:"sim,omitempty"`
	Calibration Calibration `yaml:"calibration,omitempty"`
}

// LinkConfig selects the serial link to the host. An empty port uses stdin/stdout.
type LinkConfig struct {
	Port     string `yaml:"port,omitempty"`
	BaudRate int    `yaml:"baud_rate,omitempty"`
}

// RecordConfig configures the host-side recorder.
type RecordConfig struct {
	// OutputDir receives <arm_id>_<timestamp>.jsonl files.
	OutputDir string `yaml:"output_dir,omitempty"`
	// Broker is an MQTT URL such as mqtt://host:1883/lab. Empty disables publishing.
	Broker string `yaml:"broker,omitempty"`
	// MetricsAddr serves Prometheus metrics when set, e.g. ":9102".
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// IsCalibrated returns true if the arm has calibration data
func (a *ArmConfig) IsCalibrated() bool {
	return len(a.Calibration) > 0
}

// DefaultConfig returns a configuration with all defaults applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfigFrom loads configuration from a specific file
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(filepath.Clean(path), data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate fills in defaults and checks required fields.
func (c *Config) Validate() error {
	c.applyDefaults()

	if c.Follower.Port == "" && !c.Follower.Sim {
		return errNoArmPort
	}
	if c.Record.Broker != "" && !strings.Contains(c.Record.Broker, "://") {
		return fmt.Errorf("record.broker %q must be a URL like mqtt://host:1883", c.Record.Broker)
	}
	if c.LoopHz < 50 {
		return fmt.Errorf("loop_hz %d is below the 50 Hz report rate", c.LoopHz)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Link.BaudRate <= 0 {
		c.Link.BaudRate = DefaultLinkBaudRate
	}
	if c.LoopHz == 0 {
		c.LoopHz = DefaultLoopHz
	}
	if c.Mode == "" {
		c.Mode = DefaultMode
	}
	if c.Record.OutputDir == "" {
		c.Record.OutputDir = DefaultOutputDir
	}
	if c.PrefsDir == "" {
		c.PrefsDir = DefaultPrefsDir
	}
	if c.Geometry == (Geometry{}) {
		c.Geometry = DefaultGeometry()
	}
	if !c.Follower.IsCalibrated() {
		c.Follower.Calibration = DefaultCalibration()
	}
}

// ConfigExists reports whether a configuration file exists at path.
func ConfigExists(path string) bool {
	_, err := os.Stat(filepath.Clean(path))
	return err == nil
}
