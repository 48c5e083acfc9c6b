package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
hostlink:
  device: /dev/ttyACM0
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.RadioDefaults.StaticChannel != 37 {
		t.Errorf("static_channel default = %d, want 37", cfg.RadioDefaults.StaticChannel)
	}
	if cfg.RadioDefaults.StaticPHY != "1M" {
		t.Errorf("static_phy default = %q, want 1M", cfg.RadioDefaults.StaticPHY)
	}
	if cfg.RadioDefaults.StaticCRCInit != 0x555555 {
		t.Errorf("static_crc_init default = %#x, want 0x555555", cfg.RadioDefaults.StaticCRCInit)
	}
	if cfg.Filter.MinRSSI != -128 {
		t.Errorf("min_rssi default = %d, want -128", cfg.Filter.MinRSSI)
	}
	if cfg.HostLink.BaudRate != 921600 {
		t.Errorf("baud_rate default = %d, want 921600", cfg.HostLink.BaudRate)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateRejectsConflictingFilters(t *testing.T) {
	cfg := Config{
		HostLink: HostLinkConfig{Device: "/dev/ttyACM0", BaudRate: 921600},
		RadioDefaults: RadioDefaultsConfig{
			StaticPHY: "1M",
		},
		Filter: FilterConfig{
			MACFilter: "AA:BB:CC:DD:EE:FF",
			RPAFilter: "00112233445566778899aabbccddeeff",
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when both mac_filter and rpa_filter are set")
	}
}

func TestValidateRejectsBadPHY(t *testing.T) {
	cfg := Config{
		HostLink:      HostLinkConfig{Device: "/dev/ttyACM0", BaudRate: 921600},
		RadioDefaults: RadioDefaultsConfig{StaticPHY: "3M"},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid static_phy")
	}
}

func TestValidateRequiresPrometheusListenWhenEnabled(t *testing.T) {
	cfg := Config{
		HostLink:      HostLinkConfig{Device: "/dev/ttyACM0", BaudRate: 921600},
		RadioDefaults: RadioDefaultsConfig{StaticPHY: "1M"},
		Telemetry: TelemetryConfig{
			Prometheus: PrometheusConfig{Enabled: true},
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when prometheus enabled without a listen address")
	}
}
