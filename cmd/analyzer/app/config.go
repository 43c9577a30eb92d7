package app

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fluorscan/nmr-engine/internal/analysis"
)

const (
	defaultHost         = "0.0.0.0"
	defaultPort         = 8080
	defaultDataDir      = "data"
	defaultBatchWorkers = 4
	defaultFileTimeout  = 30 * time.Second
)

// Config represents the main application configuration
type Config struct {
	Settings Settings       `yaml:"settings"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Export   ExportConfig   `yaml:"export"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// Level parses the configured log level, defaulting to info.
func (s Settings) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// ServerConfig represents the HTTP listener settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig represents measurement storage settings
type StorageConfig struct {
	DataDirectory string `yaml:"dataDirectory"`
}

// QuietWindowConfig is an optional signal-free ppm range used for noise
// estimation.
type QuietWindowConfig struct {
	MinPPM float64 `yaml:"minPPM"`
	MaxPPM float64 `yaml:"maxPPM"`
}

// AnalysisConfig represents pipeline tuning and per-request defaults
type AnalysisConfig struct {
	Defaults        analysis.Parameters `yaml:"defaults"`
	SpectrometerMHz float64             `yaml:"spectrometerMHz"`
	ThresholdK      float64             `yaml:"thresholdK"`
	MinSeparation   int                 `yaml:"minSeparation"`
	QuietWindow     *QuietWindowConfig  `yaml:"quietWindow"`
	MatchTolerance  float64             `yaml:"matchTolerance"`
	MinConfidence   float64             `yaml:"minConfidence"`
	BatchWorkers    int                 `yaml:"batchWorkers"`
	FileTimeout     time.Duration       `yaml:"fileTimeout"`
}

// ExportConfig represents chart and report rendering settings
type ExportConfig struct {
	FontPath       string `yaml:"fontPath"`
	AssetDirectory string `yaml:"assetDirectory"`
}

// LoadConfig reads the YAML configuration file and applies defaults. An
// empty path yields the default configuration.
func LoadConfig(path string) (*Config, error) {
	var config Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading configuration: %w", err)
		}
		if err = yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("parsing configuration: %w", err)
		}
	}

	if config.Server.Host == "" {
		config.Server.Host = defaultHost
	}
	if config.Server.Port == 0 {
		config.Server.Port = defaultPort
	}
	if config.Storage.DataDirectory == "" {
		config.Storage.DataDirectory = defaultDataDir
	}
	if config.Analysis.Defaults == (analysis.Parameters{}) {
		config.Analysis.Defaults = analysis.DefaultParameters()
	}
	if config.Analysis.BatchWorkers == 0 {
		config.Analysis.BatchWorkers = defaultBatchWorkers
	}
	if config.Analysis.FileTimeout == 0 {
		config.Analysis.FileTimeout = defaultFileTimeout
	}

	if err := config.Analysis.Defaults.Validate(); err != nil {
		return nil, fmt.Errorf("validating default parameters: %w", err)
	}
	if q := config.Analysis.QuietWindow; q != nil && q.MinPPM >= q.MaxPPM {
		return nil, fmt.Errorf("quiet window [%.1f, %.1f]: min must be below max", q.MinPPM, q.MaxPPM)
	}

	return &config, nil
}
