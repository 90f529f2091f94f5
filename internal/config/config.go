// Package config handles loading, defaulting, and validation of the go-eva
// TOML configuration file. Every section maps to a typed struct so the rest
// of the codebase gets strong typing without manual key lookups.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Server  ServerConfig  `toml:"server"  json:"server"`
	Logging LoggingConfig `toml:"logging" json:"logging"`
	Drive   DriveConfig   `toml:"drive"   json:"drive"`
	Servos  []ServoConfig `toml:"servos"  json:"servos"`
	Camera  CameraConfig  `toml:"camera"  json:"camera"`
	Safety  SafetyConfig  `toml:"safety"  json:"safety"`
	Rates   RatesConfig   `toml:"rates"   json:"rates"`
}

type ServerConfig struct {
	Bind string `toml:"bind" json:"bind"`
}

type LoggingConfig struct {
	Level string `toml:"level" json:"level"`
}

type DriveConfig struct {
	MaxPWM      int     `toml:"max_pwm"      json:"max_pwm"`
	InvertLeft  bool    `toml:"invert_left"  json:"invert_left"`
	InvertRight bool    `toml:"invert_right" json:"invert_right"`
	Deadzone    float64 `toml:"deadzone"     json:"deadzone"`
	Smoothing   float64 `toml:"smoothing"    json:"smoothing"`
}

type ServoConfig struct {
	ID   int     `toml:"id"   json:"id"`
	Min  float64 `toml:"min"  json:"min"`
	Max  float64 `toml:"max"  json:"max"`
	Home float64 `toml:"home" json:"home"`
	Step float64 `toml:"step" json:"step"`
}

type CameraConfig struct {
	NavDevice         int     `toml:"nav_device"         json:"nav_device"`
	HeadDevice        int     `toml:"head_device"        json:"head_device"`
	JPEGQuality       int     `toml:"jpeg_quality"       json:"jpeg_quality"`
	FPS               int     `toml:"fps"                json:"fps"`
	MovementThreshold float64 `toml:"movement_threshold" json:"movement_threshold"`
	IdleTimeoutMs     int     `toml:"idle_timeout_ms"    json:"idle_timeout_ms"`
}

// IdleTimeout returns the camera idle fallback as a duration.
func (c CameraConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMs) * time.Millisecond
}

type SafetyConfig struct {
	MinDistanceCM      float64 `toml:"min_distance_cm"      json:"min_distance_cm"`
	EStopDistanceCM    float64 `toml:"estop_distance_cm"    json:"estop_distance_cm"`
	LowBatteryV        float64 `toml:"low_battery_v"        json:"low_battery_v"`
	CriticalBatteryV   float64 `toml:"critical_battery_v"   json:"critical_battery_v"`
	HeartbeatTimeoutMs int     `toml:"heartbeat_timeout_ms" json:"heartbeat_timeout_ms"`
}

// HeartbeatTimeout returns the watchdog deadline as a duration.
func (c SafetyConfig) HeartbeatTimeout() time.Duration {
	return time.Duration(c.HeartbeatTimeoutMs) * time.Millisecond
}

type RatesConfig struct {
	ActuationHz int `toml:"actuation_hz" json:"actuation_hz"`
	TelemetryHz int `toml:"telemetry_hz" json:"telemetry_hz"`
	WatchdogHz  int `toml:"watchdog_hz"  json:"watchdog_hz"`
}

// Default returns a Config populated with sane defaults. Values here are
// used whenever the TOML file omits a field.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "0.0.0.0:8765",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Drive: DriveConfig{
			MaxPWM:    4095,
			Deadzone:  0.15,
			Smoothing: 0.2,
		},
		Servos: []ServoConfig{
			{ID: 0, Min: 0, Max: 180, Home: 90, Step: 2},  // head yaw
			{ID: 1, Min: 30, Max: 150, Home: 90, Step: 2}, // head pitch
		},
		Camera: CameraConfig{
			NavDevice:         0,
			HeadDevice:        1,
			JPEGQuality:       70,
			FPS:               15,
			MovementThreshold: 5,
			IdleTimeoutMs:     3000,
		},
		Safety: SafetyConfig{
			MinDistanceCM:      15,
			EStopDistanceCM:    10,
			LowBatteryV:        6.5,
			CriticalBatteryV:   6.0,
			HeartbeatTimeoutMs: 5000,
		},
		Rates: RatesConfig{
			ActuationHz: 20,
			TelemetryHz: 10,
			WatchdogHz:  4,
		},
	}
}

// Load reads path, layers it over Default, applies EVA_* environment
// overrides, and validates the result. A missing file is not an error:
// defaults plus environment apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// Run on defaults.
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv layers EVA_* variables on top, for container deployments that
// cannot easily mount a file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("EVA_BIND"); v != "" {
		cfg.Server.Bind = v
	}
	if v := os.Getenv("EVA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate rejects configurations the actuation core cannot run on.
func (c Config) Validate() error {
	if c.Drive.MaxPWM <= 0 {
		return errors.New("config: drive.max_pwm must be positive")
	}
	if c.Drive.Deadzone < 0 || c.Drive.Deadzone >= 1 {
		return errors.New("config: drive.deadzone must be in [0, 1)")
	}
	if c.Safety.HeartbeatTimeoutMs <= 0 {
		return errors.New("config: safety.heartbeat_timeout_ms must be positive")
	}
	if c.Safety.EStopDistanceCM > c.Safety.MinDistanceCM {
		return errors.New("config: safety.estop_distance_cm must not exceed min_distance_cm")
	}
	if c.Safety.CriticalBatteryV > c.Safety.LowBatteryV {
		return errors.New("config: safety.critical_battery_v must not exceed low_battery_v")
	}
	for _, s := range c.Servos {
		if s.Min >= s.Max {
			return fmt.Errorf("config: servo %d: min must be below max", s.ID)
		}
		if s.Home < s.Min || s.Home > s.Max {
			return fmt.Errorf("config: servo %d: home outside [min, max]", s.ID)
		}
	}
	if c.Rates.ActuationHz <= 0 || c.Rates.TelemetryHz <= 0 || c.Rates.WatchdogHz <= 0 {
		return errors.New("config: rates must be positive")
	}
	return nil
}

// TickRate converts the actuation frequency to a loop period.
func (c Config) TickRate() time.Duration {
	return time.Second / time.Duration(c.Rates.ActuationHz)
}

// TelemetryRate converts the telemetry frequency to a publish period.
func (c Config) TelemetryRate() time.Duration {
	return time.Second / time.Duration(c.Rates.TelemetryHz)
}

// WatchdogRate converts the watchdog frequency to a check period.
func (c Config) WatchdogRate() time.Duration {
	return time.Second / time.Duration(c.Rates.WatchdogHz)
}
