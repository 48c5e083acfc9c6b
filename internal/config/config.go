// Package config loads the YAML configuration file that drives
// cmd/blesniffer: default radio parameters, advertiser/RPA filtering, the
// telemetry endpoints, and the host-link device path. Grounded on the
// teacher's config.go (one nested struct per concern, a package-level
// LoadConfig, and a Validate pass applied once at startup).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration document.
type Config struct {
	RadioDefaults RadioDefaultsConfig `yaml:"radio_defaults"`
	Filter        FilterConfig        `yaml:"filter"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
	HostLink      HostLinkConfig      `yaml:"hostlink"`
}

// RadioDefaultsConfig seeds RadioCore's static listening parameters and
// behavioral toggles before the host sends its first command.
type RadioDefaultsConfig struct {
	StaticChannel     uint8  `yaml:"static_channel"`
	StaticPHY         string `yaml:"static_phy"` // "1M", "2M", "codeds8", "codeds2"
	StaticCRCInit     uint32 `yaml:"static_crc_init"`
	ValidateCRC       bool   `yaml:"validate_crc"`
	InstaHop          bool   `yaml:"insta_hop"`
	FollowConnections bool   `yaml:"follow_connections"`
	AuxAdvEnabled     bool   `yaml:"aux_adv_enabled"`
	AdvIntervalMs     uint16 `yaml:"adv_interval_ms"`
}

// FilterConfig is the startup advertiser filter: at most one of MAC or RPA
// filtering is active, mirroring RadioCore's single addrFilt slot.
type FilterConfig struct {
	MinRSSI   int8   `yaml:"min_rssi"`
	MACFilter string `yaml:"mac_filter,omitempty"` // "AA:BB:CC:DD:EE:FF", empty disables
	RPAFilter string `yaml:"rpa_filter,omitempty"` // 32 hex chars (16-byte IRK), empty disables
}

// TelemetryConfig configures the optional Prometheus, MQTT, and
// process-self-metrics reporters in internal/telemetry.
type TelemetryConfig struct {
	Prometheus PrometheusConfig `yaml:"prometheus"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	SelfMetricsIntervalSec int  `yaml:"self_metrics_interval_sec"`
}

// PrometheusConfig controls the /metrics HTTP endpoint.
type PrometheusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// MQTTConfig controls the optional STATE/MEASURE mirror to an MQTT broker.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"` // e.g. "tcp://localhost:1883"
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

// HostLinkConfig is the UART device the host link is opened on, plus the
// optional on-disk capture log.
type HostLinkConfig struct {
	Device             string `yaml:"device"`
	BaudRate           int    `yaml:"baud_rate"`
	CaptureLogPath     string `yaml:"capture_log_path,omitempty"`
	CaptureLogCompress bool   `yaml:"capture_log_compress"`
	WebTapListen       string `yaml:"webtap_listen,omitempty"`
}

// LoadConfig reads and parses filename, applies defaults for any
// zero-valued field a fresh connection still needs, and returns the result
// unvalidated (call Validate separately, the way the teacher's main()
// does after LoadConfig).
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.RadioDefaults.StaticChannel == 0 {
		cfg.RadioDefaults.StaticChannel = 37
	}
	if cfg.RadioDefaults.StaticPHY == "" {
		cfg.RadioDefaults.StaticPHY = "1M"
	}
	if cfg.RadioDefaults.StaticCRCInit == 0 {
		cfg.RadioDefaults.StaticCRCInit = 0x555555
	}
	if cfg.RadioDefaults.AdvIntervalMs == 0 {
		cfg.RadioDefaults.AdvIntervalMs = 100
	}
	if cfg.Filter.MinRSSI == 0 {
		cfg.Filter.MinRSSI = -128
	}
	if cfg.HostLink.BaudRate == 0 {
		cfg.HostLink.BaudRate = 921600
	}
	if cfg.Telemetry.SelfMetricsIntervalSec == 0 {
		cfg.Telemetry.SelfMetricsIntervalSec = 30
	}

	return &cfg, nil
}

// Validate checks the loaded configuration is internally consistent,
// mirroring the teacher's Config.Validate pass.
func (c *Config) Validate() error {
	if c.RadioDefaults.StaticChannel > 39 {
		return fmt.Errorf("radio_defaults.static_channel must be 0-39")
	}
	switch c.RadioDefaults.StaticPHY {
	case "1M", "2M", "codeds8", "codeds2":
	default:
		return fmt.Errorf("radio_defaults.static_phy must be one of 1M, 2M, codeds8, codeds2")
	}
	if c.RadioDefaults.StaticCRCInit > 0xFFFFFF {
		return fmt.Errorf("radio_defaults.static_crc_init must fit in 24 bits")
	}
	if c.Filter.MACFilter != "" && c.Filter.RPAFilter != "" {
		return fmt.Errorf("filter.mac_filter and filter.rpa_filter are mutually exclusive")
	}
	if c.Telemetry.Prometheus.Enabled && c.Telemetry.Prometheus.Listen == "" {
		return fmt.Errorf("telemetry.prometheus.listen is required when telemetry.prometheus.enabled is true")
	}
	if c.Telemetry.MQTT.Enabled && c.Telemetry.MQTT.Broker == "" {
		return fmt.Errorf("telemetry.mqtt.broker is required when telemetry.mqtt.enabled is true")
	}
	if c.HostLink.Device == "" {
		return fmt.Errorf("hostlink.device is required")
	}
	if c.HostLink.BaudRate < 1 {
		return fmt.Errorf("hostlink.baud_rate must be positive")
	}
	return nil
}
