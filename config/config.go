// Package config loads the service configuration from YAML, .env and the
// environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v2"
)

// DefaultPath is looked up when no config file is given explicitly.
const DefaultPath = "config.yaml"

const envPrefix = "CREDITRISK_"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Model    ModelConfig    `yaml:"model"`
	Training TrainingConfig `yaml:"training"`
	Cache    CacheConfig    `yaml:"cache"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	Timeout        time.Duration `yaml:"timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
}

type ModelConfig struct {
	Path string `yaml:"path"`
}

type TrainingConfig struct {
	Samples            int          `yaml:"samples"`
	Seed               int64        `yaml:"seed"`
	TestRatio          float64      `yaml:"test_ratio"`
	Threshold          float64      `yaml:"threshold"`
	UnseenPolicy       string       `yaml:"unseen_policy"`
	DatasetIn          string       `yaml:"dataset_in"`
	DatasetOut         string       `yaml:"dataset_out"`
	LabelColumn        string       `yaml:"label_column"`
	CategoricalColumns []string     `yaml:"categorical_columns"`
	Forest             ForestConfig `yaml:"forest"`
}

type ForestConfig struct {
	NEstimators    int `yaml:"n_estimators"`
	MaxDepth       int `yaml:"max_depth"`
	MinSamplesLeaf int `yaml:"min_samples_leaf"`
	MaxFeatures    int `yaml:"max_features"`
	Workers        int `yaml:"workers"`
}

type CacheConfig struct {
	Size int `yaml:"size"`
}

type DatabaseConfig struct {
	Path              string `yaml:"path"`
	RecordPredictions bool   `yaml:"record_predictions"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           5000,
			Timeout:        30 * time.Second,
			AllowedOrigins: []string{"*"},
			MaxBodyBytes:   1 << 20,
		},
		Model: ModelConfig{
			Path: "models/credit_risk_bundle.json",
		},
		Training: TrainingConfig{
			Samples:      8000,
			Seed:         42,
			TestRatio:    0.2,
			Threshold:    0.5,
			UnseenPolicy: "reject",
			DatasetOut:   "data/credit_card_data.csv",
			LabelColumn:  "Default",
			Forest: ForestConfig{
				NEstimators:    100,
				MaxDepth:       12,
				MinSamplesLeaf: 1,
			},
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load returns defaults overlaid with the YAML file at path (skipped when
// path is empty), a .env file if present, and CREDITRISK_* variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolvePath returns explicit when set, otherwise DefaultPath if that file
// exists, otherwise "" (defaults only).
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(DefaultPath); err == nil {
		return DefaultPath
	}
	return ""
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var err error
	if v, ok := lookup(envPrefix + "PORT"); ok {
		port, perr := strconv.Atoi(v)
		if perr != nil {
			err = multierr.Append(err, fmt.Errorf("%sPORT: %w", envPrefix, perr))
		} else {
			c.Server.Port = port
		}
	}
	if v, ok := lookup(envPrefix + "MODEL_PATH"); ok {
		c.Model.Path = v
	}
	if v, ok := lookup(envPrefix + "DB_PATH"); ok {
		c.Database.Path = v
	}
	if v, ok := lookup(envPrefix + "CACHE_SIZE"); ok {
		size, perr := strconv.Atoi(v)
		if perr != nil {
			err = multierr.Append(err, fmt.Errorf("%sCACHE_SIZE: %w", envPrefix, perr))
		} else {
			c.Cache.Size = size
		}
	}
	if v, ok := lookup(envPrefix + "LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := lookup(envPrefix + "LOG_FORMAT"); ok {
		c.Log.Format = v
	}
	return err
}

func (c *Config) Validate() error {
	var err error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Model.Path == "" {
		err = multierr.Append(err, errors.New("model.path is required"))
	}
	if c.Training.TestRatio <= 0 || c.Training.TestRatio >= 1 {
		err = multierr.Append(err, fmt.Errorf("training.test_ratio %v must be in (0,1)", c.Training.TestRatio))
	}
	if c.Training.Threshold <= 0 || c.Training.Threshold > 1 {
		err = multierr.Append(err, fmt.Errorf("training.threshold %v must be in (0,1]", c.Training.Threshold))
	}
	switch c.Training.UnseenPolicy {
	case "", "reject", "unknown":
	default:
		err = multierr.Append(err, fmt.Errorf("training.unseen_policy %q must be reject or unknown", c.Training.UnseenPolicy))
	}
	if c.Cache.Size < 0 {
		err = multierr.Append(err, fmt.Errorf("cache.size %d must not be negative", c.Cache.Size))
	}
	if c.Database.RecordPredictions && c.Database.Path == "" {
		err = multierr.Append(err, errors.New("database.record_predictions needs database.path"))
	}
	return err
}
