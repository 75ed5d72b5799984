// Package config loads and validates shelfsearch configuration from YAML
// files and environment variables. Precedence: defaults < config file <
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	serrors "github.com/shelfsearch/shelfsearch/internal/errors"
)

// ConfigFileName is the project config file name (a .yml variant is also
// accepted).
const ConfigFileName = ".shelfsearch.yaml"

// Config is the root configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Rerank  RerankConfig  `yaml:"rerank" json:"rerank"`
	Facets  FacetsConfig  `yaml:"facets" json:"facets"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SearchConfig controls retrieval and fusion.
type SearchConfig struct {
	// Static fusion weights; must be non-negative and sum to 1.0.
	LexicalWeight float64 `yaml:"lexical_weight" json:"lexical_weight"`
	DenseWeight   float64 `yaml:"dense_weight" json:"dense_weight"`
	SparseWeight  float64 `yaml:"sparse_weight" json:"sparse_weight"`

	// RRFConstant is the fusion smoothing constant k.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// TopN is the per-method candidate depth, in [1, 200].
	TopN int `yaml:"top_n" json:"top_n"`

	// DefaultLimit and MaxLimit bound the page size.
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
	MaxLimit     int `yaml:"max_limit" json:"max_limit"`

	// Per-method retrieval budgets.
	LexicalBudget time.Duration `yaml:"lexical_budget" json:"lexical_budget"`
	DenseBudget   time.Duration `yaml:"dense_budget" json:"dense_budget"`
	SparseBudget  time.Duration `yaml:"sparse_budget" json:"sparse_budget"`

	// AdaptiveWeights enables the heuristic weight estimator by default.
	AdaptiveWeights bool `yaml:"adaptive_weights" json:"adaptive_weights"`
}

// RerankConfig controls the cross-encoder stage.
type RerankConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Window  int           `yaml:"window" json:"window"`
	Budget  time.Duration `yaml:"budget" json:"budget"`
}

// FacetsConfig controls facet aggregation.
type FacetsConfig struct {
	// Dimensions restricts aggregation; empty means all dimensions.
	Dimensions []string `yaml:"dimensions" json:"dimensions"`

	// MetadataWorkers bounds concurrent metadata resolution batches.
	MetadataWorkers int `yaml:"metadata_workers" json:"metadata_workers"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	FilePath  string `yaml:"file_path" json:"file_path"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Search: SearchConfig{
			LexicalWeight:   0.35,
			DenseWeight:     0.35,
			SparseWeight:    0.30,
			RRFConstant:     60,
			TopN:            100,
			DefaultLimit:    10,
			MaxLimit:        100,
			LexicalBudget:   80 * time.Millisecond,
			DenseBudget:     150 * time.Millisecond,
			SparseBudget:    150 * time.Millisecond,
			AdaptiveWeights: false,
		},
		Rerank: RerankConfig{
			Enabled: false,
			Window:  50,
			Budget:  800 * time.Millisecond,
		},
		Facets: FacetsConfig{
			MetadataWorkers: 4,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// Load builds the effective configuration for a directory: defaults, then the
// project config file (if present), then environment overrides, validated.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads configuration from an explicit path, applying environment
// overrides and validation. Unlike Load, a missing file is an error.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, serrors.New(serrors.ErrCodeConfigNotFound, "config file not found", err).
			WithDetail("path", path)
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile merges .shelfsearch.yaml or .shelfsearch.yml from dir.
// A missing file is fine; defaults apply.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".shelfsearch.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return serrors.New(serrors.ErrCodeConfigNotFound, "read config file", err).
			WithDetail("path", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return serrors.New(serrors.ErrCodeConfigInvalid, "parse config file", err).
			WithDetail("path", path)
	}
	return nil
}

// applyEnvOverrides applies SHELFSEARCH_* environment variables, the highest
// precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SHELFSEARCH_LEXICAL_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.LexicalWeight = f
		}
	}
	if v := os.Getenv("SHELFSEARCH_DENSE_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.DenseWeight = f
		}
	}
	if v := os.Getenv("SHELFSEARCH_SPARSE_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.SparseWeight = f
		}
	}
	if v := os.Getenv("SHELFSEARCH_RRF_CONSTANT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.RRFConstant = n
		}
	}
	if v := os.Getenv("SHELFSEARCH_TOP_N"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.TopN = n
		}
	}
	if v := os.Getenv("SHELFSEARCH_ADAPTIVE_WEIGHTS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Search.AdaptiveWeights = b
		}
	}
	if v := os.Getenv("SHELFSEARCH_RERANK_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Rerank.Enabled = b
		}
	}
	if v := os.Getenv("SHELFSEARCH_RERANK_BUDGET"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Rerank.Budget = d
		}
	}
	if v := os.Getenv("SHELFSEARCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SHELFSEARCH_LOG_FILE"); v != "" {
		c.Logging.FilePath = v
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	invalid := func(msg string, details map[string]string) error {
		err := serrors.New(serrors.ErrCodeConfigInvalid, msg, nil)
		for k, v := range details {
			err = err.WithDetail(k, v)
		}
		return err
	}

	s := c.Search
	if s.LexicalWeight < 0 || s.DenseWeight < 0 || s.SparseWeight < 0 {
		return invalid("fusion weights must be non-negative", nil)
	}
	sum := s.LexicalWeight + s.DenseWeight + s.SparseWeight
	if sum < 1.0-1e-6 || sum > 1.0+1e-6 {
		return invalid("fusion weights must sum to 1.0", map[string]string{
			"sum": strconv.FormatFloat(sum, 'g', -1, 64),
		})
	}
	if s.RRFConstant < 1 {
		return invalid("rrf_constant must be >= 1", map[string]string{
			"rrf_constant": strconv.Itoa(s.RRFConstant),
		})
	}
	if s.TopN < 1 || s.TopN > 200 {
		return invalid("top_n must be in [1,200]", map[string]string{
			"top_n": strconv.Itoa(s.TopN),
		})
	}
	if s.DefaultLimit < 1 || s.MaxLimit < s.DefaultLimit || s.MaxLimit > 100 {
		return invalid("page limits must satisfy 1 <= default_limit <= max_limit <= 100", nil)
	}
	if s.LexicalBudget <= 0 || s.DenseBudget <= 0 || s.SparseBudget <= 0 {
		return invalid("retrieval budgets must be positive", nil)
	}
	if c.Rerank.Window < 1 {
		return invalid("rerank window must be >= 1", map[string]string{
			"window": strconv.Itoa(c.Rerank.Window),
		})
	}
	if c.Rerank.Budget <= 0 {
		return invalid("rerank budget must be positive", nil)
	}
	if c.Facets.MetadataWorkers < 1 {
		return invalid("metadata_workers must be >= 1", nil)
	}
	return nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
