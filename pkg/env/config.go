// Package env provides the common configuration of panel tools.
package env

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config provides common options to reach a panel.
type Config struct {
	// DeviceID identifies the panel on the MQTT broker.
	DeviceID string `yaml:"device_id"`
	// DeviceURL is the transport URL of the panel.
	// e.g. serial:///dev/ttyACM0?baud=115200, ws://host/panel
	DeviceURL string `yaml:"device"`
	// MQTTBrokerURL specifies the MQTT broker to bridge with.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string `yaml:"mqtt"`
	// MetricsAddr is the listen address of the metrics endpoint.
	MetricsAddr string `yaml:"metrics_addr"`

	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	HeartbeatTimeout  time.Duration `yaml:"heartbeat_timeout"`
	CommandTimeout    time.Duration `yaml:"command_timeout"`

	// ConfigFile is the YAML file loaded by NewConfig.
	ConfigFile string `yaml:"-"`
}

var defaultConfig = Config{
	DeviceURL:         "serial:///dev/ttyACM0",
	MQTTBrokerURL:     "mqtt://localhost:1883/panel/",
	MetricsAddr:       ":9120",
	HeartbeatInterval: time.Second,
	HeartbeatTimeout:  3 * time.Second,
	CommandTimeout:    time.Second,
}

// flagSet is the FlagSet passed to SetupFlagSet.
var flagSet *flag.FlagSet

// flagFields copies the field bound to a flag.
var flagFields = map[string]func(dst, src *Config){
	"id":                func(d, s *Config) { d.DeviceID = s.DeviceID },
	"device":            func(d, s *Config) { d.DeviceURL = s.DeviceURL },
	"mqtt":              func(d, s *Config) { d.MQTTBrokerURL = s.MQTTBrokerURL },
	"metrics":           func(d, s *Config) { d.MetricsAddr = s.MetricsAddr },
	"heartbeat":         func(d, s *Config) { d.HeartbeatInterval = s.HeartbeatInterval },
	"heartbeat-timeout": func(d, s *Config) { d.HeartbeatTimeout = s.HeartbeatTimeout },
	"cmd-timeout":       func(d, s *Config) { d.CommandTimeout = s.CommandTimeout },
}

func init() {
	applyEnv(&defaultConfig, os.Getenv)
	if defaultConfig.DeviceID == "" {
		defaultConfig.DeviceID = DefaultDeviceID()
	}
}

func applyEnv(conf *Config, getenv func(string) string) {
	if val := getenv("PANEL_ID"); val != "" {
		conf.DeviceID = val
	}
	if val := getenv("PANEL_DEVICE"); val != "" {
		conf.DeviceURL = val
	}
	if val := getenv("PANEL_MQTT_URL"); val != "" {
		conf.MQTTBrokerURL = val
	}
	if val := getenv("PANEL_METRICS_ADDR"); val != "" {
		conf.MetricsAddr = val
	}
	if val := getenv("PANEL_CONFIG"); val != "" {
		conf.ConfigFile = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	SetupFlagSet(flag.CommandLine)
}

// SetupFlagSet sets flags on fs.
func SetupFlagSet(fs *flag.FlagSet) {
	flagSet = fs
	fs.StringVar(&defaultConfig.DeviceID, "id", defaultConfig.DeviceID, "Panel ID on the MQTT broker.")
	fs.StringVar(&defaultConfig.DeviceURL, "device", defaultConfig.DeviceURL, "Panel device URL.")
	fs.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL, empty to disable.")
	fs.StringVar(&defaultConfig.MetricsAddr, "metrics", defaultConfig.MetricsAddr, "Metrics listen address, empty to disable.")
	fs.DurationVar(&defaultConfig.HeartbeatInterval, "heartbeat", defaultConfig.HeartbeatInterval, "Heartbeat interval, 0 to disable.")
	fs.DurationVar(&defaultConfig.HeartbeatTimeout, "heartbeat-timeout", defaultConfig.HeartbeatTimeout, "Mark panel silent after no heartbeat.")
	fs.DurationVar(&defaultConfig.CommandTimeout, "cmd-timeout", defaultConfig.CommandTimeout, "Timeout waiting for Ack/Nack.")
	fs.StringVar(&defaultConfig.ConfigFile, "config", defaultConfig.ConfigFile, "YAML config file.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
// Precedence: built-in defaults, environment, config file, explicit flags.
func NewConfig() (*Config, error) {
	conf := defaultConfig
	if conf.ConfigFile == "" {
		return &conf, conf.Validate()
	}
	if err := conf.LoadFile(conf.ConfigFile); err != nil {
		return nil, err
	}
	if flagSet != nil {
		flagSet.Visit(func(f *flag.Flag) {
			if copyField := flagFields[f.Name]; copyField != nil {
				copyField(&conf, &defaultConfig)
			}
		})
	}
	return &conf, conf.Validate()
}

// LoadFile overlays values present in a YAML file.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Validate checks the config is usable.
func (c *Config) Validate() error {
	if c.DeviceURL == "" {
		return fmt.Errorf("device URL must be specified")
	}
	if c.HeartbeatInterval < 0 || c.HeartbeatTimeout < 0 || c.CommandTimeout < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if c.HeartbeatTimeout > 0 && c.HeartbeatInterval > c.HeartbeatTimeout {
		return fmt.Errorf("heartbeat timeout %s is shorter than interval %s",
			c.HeartbeatTimeout, c.HeartbeatInterval)
	}
	return nil
}
