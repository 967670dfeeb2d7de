// Package config provides unified configuration loading for pdf2ppt.
// Supports YAML files, .env files, environment variables and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/andresfredes/pdf2ppt/internal/domain"
	"github.com/andresfredes/pdf2ppt/internal/layout"
)

// Config holds all configuration for pdf2ppt.
type Config struct {
	Canvas        CanvasConfig            `yaml:"canvas"`
	Layout        LayoutConfig            `yaml:"layout"`
	Template      TemplateConfig          `yaml:"template"`
	Conversion    domain.ConversionConfig `yaml:"conversion"`
	History       HistoryConfig           `yaml:"history"`
	Server        ServerConfig            `yaml:"server"`
	Observability ObservabilityConfig     `yaml:"observability"`
}

// CanvasConfig is the slide size in centimetres.
type CanvasConfig struct {
	WidthCM  float64 `yaml:"width_cm"`
	HeightCM float64 `yaml:"height_cm"`
}

// LayoutConfig holds the aspect classification thresholds.
type LayoutConfig struct {
	LowThreshold  float64 `yaml:"low_threshold"`
	HighThreshold float64 `yaml:"high_threshold"`
}

// TemplateConfig points at the presentation template.
type TemplateConfig struct {
	Path             string `yaml:"path"`
	BlankLayoutIndex int    `yaml:"blank_layout_index"`
}

// HistoryConfig holds the job ledger settings.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ServerConfig holds HTTP front end settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies .env and environment overrides.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("PDF2PPT_CONFIG")
	}

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Canvas: CanvasConfig{
			WidthCM:  layout.DefaultCanvas.Width,
			HeightCM: layout.DefaultCanvas.Height,
		},
		Layout: LayoutConfig{
			LowThreshold:  layout.DefaultLowThreshold,
			HighThreshold: layout.DefaultHighThreshold,
		},
		Template: TemplateConfig{
			Path:             filepath.Join(dataDir(), "template.pptx"),
			BlankLayoutIndex: 6,
		},
		Conversion: domain.DefaultConversionConfig(),
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(dataDir(), "history.db"),
		},
		Server: ServerConfig{
			Host:             "127.0.0.1",
			Port:             8090,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     30 * time.Second,
			GracefulShutdown: 10 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// dataDir returns $PDF2PPT_DATA_DIR, falling back to ~/.pdf2ppt and then ./.pdf2ppt.
func dataDir() string {
	if dir := os.Getenv("PDF2PPT_DATA_DIR"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".pdf2ppt")
	}
	return ".pdf2ppt"
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := layout.NewEngine(c.LayoutCanvas(), c.Classifier()); err != nil {
		return domain.ConfigError("invalid canvas or thresholds", err)
	}

	if strings.TrimSpace(c.Template.Path) == "" {
		return domain.ConfigError("template.path is required", nil)
	}

	if c.Template.BlankLayoutIndex < 0 {
		return domain.ConfigError(fmt.Sprintf("template.blank_layout_index must be >= 0, got %d", c.Template.BlankLayoutIndex), nil)
	}

	if err := c.Conversion.Validate(); err != nil {
		return domain.ConfigError("invalid conversion defaults", err)
	}

	if c.History.Enabled && c.History.Path == "" {
		return domain.ConfigError("history.path is required when history is enabled", nil)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return domain.ConfigError(fmt.Sprintf("server.port out of range: %d", c.Server.Port), nil)
	}

	return nil
}

// LayoutCanvas converts the canvas section to a layout.Canvas.
func (c *Config) LayoutCanvas() layout.Canvas {
	return layout.Canvas{Width: c.Canvas.WidthCM, Height: c.Canvas.HeightCM}
}

// Classifier converts the layout section to a layout.Classifier.
func (c *Config) Classifier() layout.Classifier {
	return layout.Classifier{Low: c.Layout.LowThreshold, High: c.Layout.HighThreshold}
}

// Addr returns host:port for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PDF2PPT_TEMPLATE"); v != "" {
		cfg.Template.Path = v
	}

	if v := os.Getenv("PDF2PPT_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}

	if v := os.Getenv("PDF2PPT_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("PDF2PPT_LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}

	if v := os.Getenv("PDF2PPT_HISTORY_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return domain.ConfigError("PDF2PPT_HISTORY_ENABLED", err)
		}
		cfg.History.Enabled = b
	}

	if v := os.Getenv("PDF2PPT_ZOOM"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return domain.ConfigError("PDF2PPT_ZOOM", err)
		}
		cfg.Conversion.ZoomFactor = f
	}

	if v := os.Getenv("PDF2PPT_SHOW_ANNOTATIONS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return domain.ConfigError("PDF2PPT_SHOW_ANNOTATIONS", err)
		}
		cfg.Conversion.ShowAnnotations = b
	}

	if v := os.Getenv("PDF2PPT_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return domain.ConfigError("PDF2PPT_PORT", err)
		}
		cfg.Server.Port = p
	}

	return nil
}
