// Package config provides YAML-based configuration loading for ttdialogue.
package config

import (
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "time"

    "github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
    // AppName optional logical name of the process, used in logs
    AppName string `mapstructure:"app_name"`

    // Log holds logging configuration
    Log LogConfig `mapstructure:"log"`

    // Dialogue holds protocol settings
    Dialogue DialogueConfig `mapstructure:"dialogue"`

    // Transport selects the link the dialogue runs over
    Transport TransportConfig `mapstructure:"transport"`

    // Metrics controls the prometheus endpoint
    Metrics MetricsConfig `mapstructure:"metrics"`
}

// LogConfig defines logger settings.
type LogConfig struct {
    // Level: debug, info, warn, error
    Level string `mapstructure:"level"`
    // Format: console or json
    Format string `mapstructure:"format"`
    // Outputs: list of outputs: stdout, stderr, or file paths
    Outputs []string `mapstructure:"outputs"`

    // Rotation controls file rotation when writing to files
    Rotation RotationConfig `mapstructure:"rotation"`
    // Development toggles development-friendly logging options
    Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
    Enable     bool   `mapstructure:"enable"`
    Filename   string `mapstructure:"filename"`
    MaxSizeMB  int    `mapstructure:"max_size_mb"`
    MaxBackups int    `mapstructure:"max_backups"`
    MaxAgeDays int    `mapstructure:"max_age_days"`
    Compress   bool   `mapstructure:"compress"`
}

// DialogueConfig holds protocol settings.
type DialogueConfig struct {
    // Role: client or server
    Role string `mapstructure:"role"`
    // Wire: binary or cbor frame encoding
    Wire string `mapstructure:"wire"`
    // MaxFrameBytes bounds one encoded frame on the wire
    MaxFrameBytes int `mapstructure:"max_frame_bytes"`
    // ShutdownTimeoutMS bounds a graceful shutdown
    ShutdownTimeoutMS int `mapstructure:"shutdown_timeout_ms"`
    // LingerMS bounds how long a server keeps answering after the client hung up
    LingerMS int `mapstructure:"linger_ms"`
}

func (c DialogueConfig) ShutdownTimeout() time.Duration {
    return time.Duration(c.ShutdownTimeoutMS) * time.Millisecond
}

func (c DialogueConfig) Linger() time.Duration { return time.Duration(c.LingerMS) * time.Millisecond }

// MetricsConfig controls the prometheus endpoint.
type MetricsConfig struct {
    Enable bool   `mapstructure:"enable"`
    Listen string `mapstructure:"listen"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
    return &Config{
        AppName: "ttdialogue",
        Log: LogConfig{
            Level:       "info",
            Format:      "console",
            Outputs:     []string{"stdout"},
            Development: true,
            Rotation: RotationConfig{
                Enable:     false,
                Filename:   "logs/ttdialogue.log",
                MaxSizeMB:  50,
                MaxBackups: 3,
                MaxAgeDays: 28,
                Compress:   true,
            },
        },
        Dialogue: DialogueConfig{
            Role:              "server",
            Wire:              "binary",
            MaxFrameBytes:     16<<20 + 64,
            ShutdownTimeoutMS: 5000,
            LingerMS:          5000,
        },
        Transport: TransportConfig{Kind: "tcp", Listen: ":7777", Dial: "127.0.0.1:7777"},
        Metrics:   MetricsConfig{Enable: false, Listen: ":9477"},
    }
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// Environment variables use the prefix TTDIALOGUE and `.`/`-` are replaced with `_`.
// Example: TTDIALOGUE_DIALOGUE_ROLE=client
func Load(path string) (*Config, error) {
    cfg := Default()

    v := viper.New()
    v.SetConfigType("yaml")
    v.SetEnvPrefix("TTDIALOGUE")
    v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
    v.AutomaticEnv()

    // seed defaults for viper so env-only configs work
    v.SetDefault("app_name", cfg.AppName)
    v.SetDefault("log.level", cfg.Log.Level)
    v.SetDefault("log.format", cfg.Log.Format)
    v.SetDefault("log.outputs", cfg.Log.Outputs)
    v.SetDefault("log.development", cfg.Log.Development)
    v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
    v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
    v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
    v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
    v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
    v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
    v.SetDefault("dialogue.role", cfg.Dialogue.Role)
    v.SetDefault("dialogue.wire", cfg.Dialogue.Wire)
    v.SetDefault("dialogue.max_frame_bytes", cfg.Dialogue.MaxFrameBytes)
    v.SetDefault("dialogue.shutdown_timeout_ms", cfg.Dialogue.ShutdownTimeoutMS)
    v.SetDefault("dialogue.linger_ms", cfg.Dialogue.LingerMS)
    v.SetDefault("transport.kind", cfg.Transport.Kind)
    v.SetDefault("transport.listen", cfg.Transport.Listen)
    v.SetDefault("transport.dial", cfg.Transport.Dial)
    v.SetDefault("metrics.enable", cfg.Metrics.Enable)
    v.SetDefault("metrics.listen", cfg.Metrics.Listen)

    // Choose config file
    if path == "" {
        if envPath := os.Getenv("TTDIALOGUE_CONFIG"); envPath != "" {
            path = envPath
        }
    }

    if path != "" {
        v.SetConfigFile(path)
    } else {
        // Search common locations with base name `ttdialogue`
        v.SetConfigName("ttdialogue")
        v.AddConfigPath(".")
        v.AddConfigPath("./configs")
        if home, err := os.UserHomeDir(); err == nil {
            v.AddConfigPath(filepath.Join(home, ".ttdialogue"))
        }
    }

    // Read config file if present; if not found, continue with defaults/env
    if err := v.ReadInConfig(); err != nil {
        var viperConfigFileNotFound viper.ConfigFileNotFoundError
        if !errors.As(err, &viperConfigFileNotFound) {
            return nil, fmt.Errorf("read config: %w", err)
        }
    }

    if err := v.Unmarshal(&cfg); err != nil {
        return nil, fmt.Errorf("decode config: %w", err)
    }

    if err := cfg.validate(); err != nil {
        return nil, err
    }
    return cfg, nil
}

func (c *Config) validate() error {
    switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
    case "debug", "info", "warn", "warning", "error":
    default:
        return fmt.Errorf("invalid log.level: %q", c.Log.Level)
    }
    if c.Log.Format == "" {
        c.Log.Format = "console"
    }
    if len(c.Log.Outputs) == 0 {
        c.Log.Outputs = []string{"stdout"}
    }

    c.Dialogue.Role = strings.ToLower(strings.TrimSpace(c.Dialogue.Role))
    if c.Dialogue.Role != "client" && c.Dialogue.Role != "server" {
        return fmt.Errorf("invalid dialogue.role: %q", c.Dialogue.Role)
    }
    c.Dialogue.Wire = strings.ToLower(strings.TrimSpace(c.Dialogue.Wire))
    if c.Dialogue.Wire != "binary" && c.Dialogue.Wire != "cbor" {
        return fmt.Errorf("invalid dialogue.wire: %q", c.Dialogue.Wire)
    }
    if c.Dialogue.MaxFrameBytes <= 0 {
        return fmt.Errorf("dialogue.max_frame_bytes must be positive")
    }
    if c.Dialogue.ShutdownTimeoutMS <= 0 {
        c.Dialogue.ShutdownTimeoutMS = 5000
    }
    if c.Dialogue.LingerMS <= 0 {
        c.Dialogue.LingerMS = c.Dialogue.ShutdownTimeoutMS
    }
    return c.Transport.validate()
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
    cfg, err := Load(path)
    if err != nil {
        panic(err)
    }
    return cfg
}
