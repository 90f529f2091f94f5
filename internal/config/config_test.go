package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Drive.MaxPWM != 4095 {
		t.Errorf("MaxPWM = %d, want default 4095", cfg.Drive.MaxPWM)
	}
	if cfg.Safety.HeartbeatTimeoutMs != 5000 {
		t.Errorf("HeartbeatTimeoutMs = %d, want 5000", cfg.Safety.HeartbeatTimeoutMs)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eva.toml")
	body := `
[server]
bind = "127.0.0.1:9000"

[drive]
invert_left = true
deadzone = 0.1

[safety]
min_distance_cm = 20.0
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Bind != "127.0.0.1:9000" {
		t.Errorf("Bind = %q", cfg.Server.Bind)
	}
	if !cfg.Drive.InvertLeft {
		t.Error("InvertLeft not applied")
	}
	if cfg.Safety.MinDistanceCM != 20 {
		t.Errorf("MinDistanceCM = %v, want 20", cfg.Safety.MinDistanceCM)
	}
	// Untouched sections keep their defaults.
	if cfg.Camera.JPEGQuality != 70 {
		t.Errorf("JPEGQuality = %d, want default 70", cfg.Camera.JPEGQuality)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("EVA_BIND", "10.0.0.5:7000")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Bind != "10.0.0.5:7000" {
		t.Errorf("Bind = %q, want env override", cfg.Server.Bind)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max pwm", func(c *Config) { c.Drive.MaxPWM = 0 }},
		{"deadzone too large", func(c *Config) { c.Drive.Deadzone = 1 }},
		{"estop past block distance", func(c *Config) { c.Safety.EStopDistanceCM = 30 }},
		{"critical above low battery", func(c *Config) { c.Safety.CriticalBatteryV = 7 }},
		{"servo inverted limits", func(c *Config) { c.Servos[0].Min = 200 }},
		{"servo home out of range", func(c *Config) { c.Servos[0].Home = 300 }},
		{"zero actuation rate", func(c *Config) { c.Rates.ActuationHz = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() accepted a broken config")
			}
		})
	}
}
