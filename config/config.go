// Package config loads hnswctl settings from defaults, an optional YAML file
// and the environment, in that order of precedence.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/idebroy/hnsw"
	"github.com/idebroy/hnsw/records"
)

// Config holds all hnswctl configuration.
type Config struct {
	// DataDir holds the index file, the record store and the stored images.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	Store StoreConfig `yaml:"store" json:"store"`

	Index IndexConfig `yaml:"index" json:"index"`

	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// StoreConfig selects the record store.
type StoreConfig struct {
	Backend string `yaml:"backend" json:"backend"`
	// Path of the store file. Relative paths are resolved against DataDir;
	// empty picks a backend specific default file name.
	Path string `yaml:"path" json:"path"`
}

// IndexConfig holds the HNSW parameters and index file settings.
type IndexConfig struct {
	M              int      `yaml:"m" json:"m"`
	EfConstruction int      `yaml:"ef_construction" json:"ef_construction"`
	MMax           int      `yaml:"m_max" json:"m_max"`
	MMax0          int      `yaml:"m_max0" json:"m_max0"`
	ML             *float64 `yaml:"ml" json:"ml"`
	Metric         string   `yaml:"metric" json:"metric"`
	Seed           int64    `yaml:"seed" json:"seed"`
	File           string   `yaml:"file" json:"file"`
	Compress       bool     `yaml:"compress" json:"compress"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// LoadConfig loads configuration from configPath, falling back to
// ~/.hnswctl.yml when configPath is empty. A missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			configPath = filepath.Join(homeDir, ".hnswctl.yml")
		}
	}

	if configPath != "" {
		if err := loadConfigFromFile(configPath, config); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
			}
		}
	}

	loadConfigFromEnv(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func loadConfigFromFile(path string, config *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, config)
}

func loadConfigFromEnv(config *Config) {
	if dir := os.Getenv("HNSWCTL_DATA_DIR"); dir != "" {
		config.DataDir = dir
	}
	if backend := os.Getenv("HNSWCTL_STORE_BACKEND"); backend != "" {
		config.Store.Backend = backend
	}
	if path := os.Getenv("HNSWCTL_STORE_PATH"); path != "" {
		config.Store.Path = path
	}
	if level := os.Getenv("HNSWCTL_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if metric := os.Getenv("HNSWCTL_METRIC"); metric != "" {
		config.Index.Metric = metric
	}
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "data",
		Store: StoreConfig{
			Backend: records.BackendDuckDB,
		},
		Index: IndexConfig{
			M:              hnsw.DefaultM,
			EfConstruction: hnsw.DefaultEfConstruction,
			Metric:         "euclidean",
			File:           "hnsw_index.bin",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}

	switch strings.ToLower(c.Store.Backend) {
	case records.BackendDuckDB, records.BackendBolt, "bbolt", records.BackendMemory:
	default:
		return fmt.Errorf("invalid store backend: %s", c.Store.Backend)
	}

	if c.Index.File == "" {
		return fmt.Errorf("index file must not be empty")
	}
	if _, err := c.Index.Options(); err != nil {
		return err
	}

	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// StorePath returns the record store location. The memory backend has none.
func (c *Config) StorePath() string {
	path := c.Store.Path
	if path == "" {
		switch strings.ToLower(c.Store.Backend) {
		case records.BackendMemory:
			return ""
		case records.BackendBolt, "bbolt":
			path = "records.bolt"
		default:
			path = "records.duckdb"
		}
	}
	return c.resolve(path)
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DataDir, path)
}

// Options converts the index section into hnsw options. The seed is only
// applied when non-zero.
func (ic IndexConfig) Options() ([]hnsw.Option, error) {
	metric, err := hnsw.ParseMetric(ic.Metric)
	if err != nil {
		return nil, err
	}

	opts := []hnsw.Option{
		hnsw.WithM(ic.M),
		hnsw.WithEfConstruction(ic.EfConstruction),
		hnsw.WithMMax(ic.MMax),
		hnsw.WithMMax0(ic.MMax0),
		hnsw.WithMetric(metric),
	}
	if ic.ML != nil {
		opts = append(opts, hnsw.WithML(*ic.ML))
	}
	if ic.Seed != 0 {
		opts = append(opts, hnsw.WithSeed(ic.Seed))
	}

	// Let the index validate the combination.
	if _, err := hnsw.New(opts...); err != nil {
		return nil, err
	}
	return opts, nil
}

// NewLogger builds a logger writing to w at the configured level and format.
func (lc LoggingConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	switch lc.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format: %s", lc.Format)
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level: %s", s)
	}
	return level, nil
}
