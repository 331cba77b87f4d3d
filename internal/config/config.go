// Package config handles configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"firestige.xyz/tinu/internal/core"
	"firestige.xyz/tinu/internal/core/tinu"
	"firestige.xyz/tinu/internal/log"
)

// Config is the static configuration of one tinu process. Maps to the
// `tinu:` root key in YAML.
type Config struct {
	Role    core.Role        `mapstructure:"role" yaml:"role"`
	Port    uint16           `mapstructure:"port" yaml:"port"`
	Bridge  BridgeConfig     `mapstructure:"bridge" yaml:"bridge"`
	Log     log.LoggerConfig `mapstructure:"log" yaml:"log"`
	Metrics MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
}

// ─── Bridge ───

// BridgeConfig describes the two interfaces the inline bridge joins. Frames
// from Inner leave through Outer as TINU; frames from Outer reach Inner as
// TCP.
type BridgeConfig struct {
	Inner        string        `mapstructure:"inner" yaml:"inner"`
	Outer        string        `mapstructure:"outer" yaml:"outer"`
	SnapLen      int           `mapstructure:"snap_len" yaml:"snap_len"`
	BufferSizeMB int           `mapstructure:"buffer_size_mb" yaml:"buffer_size_mb"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"` // ring poll timeout
	MTU          int           `mapstructure:"mtu" yaml:"mtu"`         // frames above MTU+14 count as merged
}

// Enabled reports whether any bridge interface is configured.
func (b BridgeConfig) Enabled() bool {
	return b.Inner != "" || b.Outer != ""
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `tinu: ...`.
type configRoot struct {
	Tinu Config `mapstructure:"tinu" yaml:"tinu"`
}

// Load loads configuration from path. An empty path yields defaults plus
// environment overrides (TINU_ROLE, TINU_BRIDGE_OUTER, ...).
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `tinu.` key prefix maps to `TINU_` via the key replacer.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := v.Unmarshal(&root, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Tinu

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default values. All keys carry the "tinu." prefix to
// match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("tinu.role", "responder")
	v.SetDefault("tinu.port", tinu.DefaultPort)

	// Bridge defaults
	v.SetDefault("tinu.bridge.inner", "")
	v.SetDefault("tinu.bridge.outer", "")
	v.SetDefault("tinu.bridge.snap_len", 65536)
	v.SetDefault("tinu.bridge.buffer_size_mb", 8)
	v.SetDefault("tinu.bridge.timeout", "100ms")
	v.SetDefault("tinu.bridge.mtu", 1500)

	// Log defaults
	v.SetDefault("tinu.log.level", "info")
	v.SetDefault("tinu.log.pattern", log.DefaultPattern)
	v.SetDefault("tinu.log.time", log.DefaultTime)
	v.SetDefault("tinu.log.caller", false)
	v.SetDefault("tinu.log.advisory.interval", "10s")
	v.SetDefault("tinu.log.advisory.burst", 5)

	// Metrics defaults
	v.SetDefault("tinu.metrics.enabled", false)
	v.SetDefault("tinu.metrics.listen", ":9091")
	v.SetDefault("tinu.metrics.path", "/metrics")
}

var validLevels = map[string]bool{
	"trace": true, "debug": true, "info": true,
	"warn": true, "warning": true, "error": true,
}

// ValidateAndApplyDefaults checks every section and fills runtime defaults
// for zero values. Errors wrap core.ErrConfigInvalid.
func (cfg *Config) ValidateAndApplyDefaults() error {
	if cfg.Role > core.Responder {
		return fmt.Errorf("%w: role %d", core.ErrConfigInvalid, cfg.Role)
	}
	if cfg.Port == 0 {
		cfg.Port = tinu.DefaultPort
	}

	// ── Log ──
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if !validLevels[strings.ToLower(cfg.Log.Level)] {
		return fmt.Errorf("%w: log level %s (must be trace/debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	if cfg.Log.Advisory.Burst < 0 || cfg.Log.Advisory.Interval < 0 {
		return fmt.Errorf("%w: log.advisory must not be negative", core.ErrConfigInvalid)
	}

	// ── Bridge ──
	if cfg.Bridge.Enabled() {
		if err := cfg.Bridge.validate(); err != nil {
			return err
		}
	}

	// ── Metrics ──
	if cfg.Metrics.Enabled {
		if cfg.Metrics.Listen == "" {
			return fmt.Errorf("%w: metrics.listen is required when metrics.enabled=true", core.ErrConfigInvalid)
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			return fmt.Errorf("%w: metrics.path must start with '/'", core.ErrConfigInvalid)
		}
	}
	return nil
}

func (b *BridgeConfig) validate() error {
	if b.Inner == "" || b.Outer == "" {
		return fmt.Errorf("%w: bridge.inner and bridge.outer are both required", core.ErrConfigInvalid)
	}
	if b.Inner == b.Outer {
		return fmt.Errorf("%w: bridge.inner and bridge.outer must differ (%s)", core.ErrConfigInvalid, b.Inner)
	}
	if b.MTU == 0 {
		b.MTU = 1500
	}
	if b.MTU < 576 || b.MTU > 65535 {
		return fmt.Errorf("%w: bridge.mtu %d out of range [576, 65535]", core.ErrConfigInvalid, b.MTU)
	}
	if b.SnapLen == 0 {
		b.SnapLen = 65536
	}
	if b.SnapLen < b.MTU+14 {
		return fmt.Errorf("%w: bridge.snap_len %d cannot hold an MTU-sized frame", core.ErrConfigInvalid, b.SnapLen)
	}
	if b.BufferSizeMB <= 0 {
		b.BufferSizeMB = 8
	}
	if b.Timeout <= 0 {
		b.Timeout = 100 * time.Millisecond
	}
	return nil
}

// ValidateBridge is used by commands that cannot run without a bridge.
func (cfg *Config) ValidateBridge() error {
	if !cfg.Bridge.Enabled() {
		return fmt.Errorf("%w: bridge.inner and bridge.outer are required", core.ErrConfigInvalid)
	}
	return cfg.Bridge.validate()
}

// Dump renders the effective configuration as YAML under the `tinu:` key.
func (cfg *Config) Dump() ([]byte, error) {
	out, err := yaml.Marshal(configRoot{Tinu: *cfg})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return out, nil
}
