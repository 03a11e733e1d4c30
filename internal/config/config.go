package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FrequencyBasis selects the population over which inverse frequency is
// computed for a feature (spec.md §4.3).
type FrequencyBasis string

const (
	FrequencyBasisCorpus FrequencyBasis = "corpus"
	FrequencyBasisTexts  FrequencyBasis = "texts"
)

// DistanceBasis selects how match distance is measured (spec.md §4.4).
type DistanceBasis string

const (
	DistanceBasisFrequency DistanceBasis = "frequency"
	DistanceBasisSpan      DistanceBasis = "span"
)

// Config is the complete tesserae engine configuration.
// It mirrors the data model and component defaults in SPEC_FULL.md §8.
// cmd/tesserae reads the Paths data directory, SQLite and bigram paths,
// Ingest.Workers, Ingest.QueueSize, Ingest.TokenizerEndpoint and
// Search.Workers; the other fields are loaded, merged and validated but
// no component reads them.
type Config struct {
	Version int            `yaml:"version" json:"version"`
	Paths   PathsConfig    `yaml:"paths" json:"paths"`
	Ingest  IngestConfig   `yaml:"ingest" json:"ingest"`
	Search  SearchConfig   `yaml:"search" json:"search"`
	Bigram  BigramConfig   `yaml:"bigram" json:"bigram"`
	GC      GCConfig       `yaml:"gc" json:"gc"`
	Cache   CacheConfig    `yaml:"cache" json:"cache"`
	Server  ServerConfig   `yaml:"server" json:"server"`
}

// PathsConfig locates the engine's on-disk state.
type PathsConfig struct {
	// DataDir is the root directory under which every other path defaults.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// SQLitePath holds texts, features, units, searches, and matches.
	SQLitePath string `yaml:"sqlite_path" json:"sqlite_path"`
	// BigramStorePath is the badger directory backing the Bigram Store.
	BigramStorePath string `yaml:"bigram_store_path" json:"bigram_store_path"`
	// G2LDictPath names a Greek-to-Latin dictionary file. It is not read:
	// the search lifecycle uses the dictionary embedded in internal/g2l.
	G2LDictPath string `yaml:"g2l_dict_path" json:"g2l_dict_path"`
}

// IngestConfig tunes the Unit Index / Feature Registry ingestion pipeline.
type IngestConfig struct {
	// Workers is the size of the fixed ingest worker pool (spec.md §5).
	Workers int `yaml:"workers" json:"workers"`
	// QueueSize bounds the pending-job channel for a single ingest run.
	QueueSize int `yaml:"queue_size" json:"queue_size"`
	// StopwordCount is how many of the most frequent lemmata/forms per
	// language are auto-derived as stopwords (spec.md §4.3).
	StopwordCount int `yaml:"stopword_count" json:"stopword_count"`
	// TokenizerEndpoint is the external normalizer/lemmatizer service this
	// engine calls out to at ingest (spec.md §1, §9 Open Question (a)).
	TokenizerEndpoint string `yaml:"tokenizer_endpoint" json:"tokenizer_endpoint"`
}

// SearchConfig holds matcher/scorer parameter defaults (spec.md §4.4).
// Apart from Workers they are not read; the search command's flags carry
// their own defaults.
type SearchConfig struct {
	// Workers sizes the search job pool, i.e. how many searches run at
	// once. Scoring inside one search fans out over fixed-size partitions
	// of source units independently of this value.
	Workers int `yaml:"workers" json:"workers"`
	// MaxDistance is the default maximum span/frequency distance gate.
	MaxDistance int `yaml:"max_distance" json:"max_distance"`
	// MinScore is the default minimum Tesserae log-score gate.
	MinScore float64 `yaml:"min_score" json:"min_score"`
	// FreqBasis selects corpus-wide or texts-only inverse frequency.
	FreqBasis FrequencyBasis `yaml:"freq_basis" json:"freq_basis"`
	// DistanceBasis selects frequency-based or span-based distance.
	DistanceBasis DistanceBasis `yaml:"distance_basis" json:"distance_basis"`
	// MaxResults bounds the page size returned by a single paging call.
	MaxResults int `yaml:"max_results" json:"max_results"`
}

// BigramConfig tunes the Bigram Store writer (spec.md §4.7).
type BigramConfig struct {
	// FlushThreshold is a buffered-row count for batch writes. It is not
	// read: the bigram writer flushes at its own fixed 10,000 rows.
	FlushThreshold int `yaml:"flush_threshold" json:"flush_threshold"`
}

// GCConfig tunes the cache-cleaning sweep (spec.md §3, §4.8).
type GCConfig struct {
	// RetentionDays is how long a completed search/cached result survives
	// without being re-requested before it becomes sweep-eligible. It is
	// not read: the sweep uses the fixed 28-day search.RetentionWindow.
	RetentionDays int `yaml:"retention_days" json:"retention_days"`
	// SweepInterval is a sweep period such as "24h". It is not read: there
	// is no background sweep, searches are swept only by the gc command.
	SweepInterval string `yaml:"sweep_interval" json:"sweep_interval"`
}

// CacheConfig describes the Frequency Service's in-process cache.
type CacheConfig struct {
	// InverseFrequencyEntries is not read: the Frequency Service's LRU is
	// fixed at 64 entries keyed by (language, kind).
	InverseFrequencyEntries int `yaml:"inverse_frequency_entries" json:"inverse_frequency_entries"`
}

// ServerConfig configures ambient logging/runtime behavior for cmd/tesserae.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// defaultDataDir resolves to ~/.tesserae when $HOME is available.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".tesserae")
	}
	return filepath.Join(home, ".tesserae")
}

// NewConfig returns a Config populated with the defaults named throughout
// SPEC_FULL.md §8.
func NewConfig() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir:         dataDir,
			SQLitePath:      filepath.Join(dataDir, "tesserae.db"),
			BigramStorePath: filepath.Join(dataDir, "bigrams"),
			G2LDictPath:     filepath.Join(dataDir, "greek_latin_dict.tsv"),
		},
		Ingest: IngestConfig{
			Workers:           1,
			QueueSize:         256,
			StopwordCount:     10,
			TokenizerEndpoint: "",
		},
		Search: SearchConfig{
			Workers:       runtime.NumCPU(),
			MaxDistance:   10,
			MinScore:      0,
			FreqBasis:     FrequencyBasisCorpus,
			DistanceBasis: DistanceBasisFrequency,
			MaxResults:    100,
		},
		Bigram: BigramConfig{
			FlushThreshold: 10000,
		},
		GC: GCConfig{
			RetentionDays: 28,
			SweepInterval: "24h",
		},
		Cache: CacheConfig{
			InverseFrequencyEntries: 512,
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file,
// following the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/tesserae/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/tesserae/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tesserae", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "tesserae", "config.yaml")
	}
	return filepath.Join(home, ".config", "tesserae", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if present.
// Returns nil config and nil error if the file doesn't exist.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// Load loads configuration from the specified directory in order of
// increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/tesserae/config.yaml)
//  3. Project config (.tesserae.yaml in dir)
//  4. Environment variables (TESSERAE_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .tesserae.yaml or .tesserae.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".tesserae.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}
	ymlPath := filepath.Join(dir, ".tesserae.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Paths.DataDir != "" {
		c.Paths.DataDir = other.Paths.DataDir
	}
	if other.Paths.SQLitePath != "" {
		c.Paths.SQLitePath = other.Paths.SQLitePath
	}
	if other.Paths.BigramStorePath != "" {
		c.Paths.BigramStorePath = other.Paths.BigramStorePath
	}
	if other.Paths.G2LDictPath != "" {
		c.Paths.G2LDictPath = other.Paths.G2LDictPath
	}

	if other.Ingest.Workers != 0 {
		c.Ingest.Workers = other.Ingest.Workers
	}
	if other.Ingest.QueueSize != 0 {
		c.Ingest.QueueSize = other.Ingest.QueueSize
	}
	if other.Ingest.StopwordCount != 0 {
		c.Ingest.StopwordCount = other.Ingest.StopwordCount
	}
	if other.Ingest.TokenizerEndpoint != "" {
		c.Ingest.TokenizerEndpoint = other.Ingest.TokenizerEndpoint
	}

	if other.Search.Workers != 0 {
		c.Search.Workers = other.Search.Workers
	}
	if other.Search.MaxDistance != 0 {
		c.Search.MaxDistance = other.Search.MaxDistance
	}
	if other.Search.MinScore != 0 {
		c.Search.MinScore = other.Search.MinScore
	}
	if other.Search.FreqBasis != "" {
		c.Search.FreqBasis = other.Search.FreqBasis
	}
	if other.Search.DistanceBasis != "" {
		c.Search.DistanceBasis = other.Search.DistanceBasis
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}

	if other.Bigram.FlushThreshold != 0 {
		c.Bigram.FlushThreshold = other.Bigram.FlushThreshold
	}

	if other.GC.RetentionDays != 0 {
		c.GC.RetentionDays = other.GC.RetentionDays
	}
	if other.GC.SweepInterval != "" {
		c.GC.SweepInterval = other.GC.SweepInterval
	}

	if other.Cache.InverseFrequencyEntries != 0 {
		c.Cache.InverseFrequencyEntries = other.Cache.InverseFrequencyEntries
	}

	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies TESSERAE_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TESSERAE_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("TESSERAE_MAX_DISTANCE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxDistance = n
		}
	}
	if v := os.Getenv("TESSERAE_MIN_SCORE"); v != "" {
		if f, err := parseFloat64(v); err == nil && f >= 0 {
			c.Search.MinScore = f
		}
	}
	if v := os.Getenv("TESSERAE_FREQ_BASIS"); v != "" {
		c.Search.FreqBasis = FrequencyBasis(strings.ToLower(v))
	}
	if v := os.Getenv("TESSERAE_DISTANCE_BASIS"); v != "" {
		c.Search.DistanceBasis = DistanceBasis(strings.ToLower(v))
	}
	if v := os.Getenv("TESSERAE_SEARCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.Workers = n
		}
	}
	if v := os.Getenv("TESSERAE_INGEST_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Ingest.Workers = n
		}
	}
	if v := os.Getenv("TESSERAE_TOKENIZER_ENDPOINT"); v != "" {
		c.Ingest.TokenizerEndpoint = v
	}
	if v := os.Getenv("TESSERAE_BIGRAM_FLUSH_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Bigram.FlushThreshold = n
		}
	}
	if v := os.Getenv("TESSERAE_GC_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.GC.RetentionDays = n
		}
	}
	if v := os.Getenv("TESSERAE_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Search.MaxDistance <= 0 {
		return fmt.Errorf("search.max_distance must be positive, got %d", c.Search.MaxDistance)
	}
	if c.Search.MinScore < 0 {
		return fmt.Errorf("search.min_score must be non-negative, got %f", c.Search.MinScore)
	}
	if math.IsNaN(c.Search.MinScore) {
		return fmt.Errorf("search.min_score must not be NaN")
	}

	validFreqBasis := map[FrequencyBasis]bool{FrequencyBasisCorpus: true, FrequencyBasisTexts: true}
	if !validFreqBasis[c.Search.FreqBasis] {
		return fmt.Errorf("search.freq_basis must be 'corpus' or 'texts', got %s", c.Search.FreqBasis)
	}

	validDistBasis := map[DistanceBasis]bool{DistanceBasisFrequency: true, DistanceBasisSpan: true}
	if !validDistBasis[c.Search.DistanceBasis] {
		return fmt.Errorf("search.distance_basis must be 'frequency' or 'span', got %s", c.Search.DistanceBasis)
	}

	if c.Search.MaxResults < 0 {
		return fmt.Errorf("search.max_results must be non-negative, got %d", c.Search.MaxResults)
	}

	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("ingest.workers must be positive, got %d", c.Ingest.Workers)
	}
	if c.Search.Workers <= 0 {
		return fmt.Errorf("search.workers must be positive, got %d", c.Search.Workers)
	}

	if c.Bigram.FlushThreshold <= 0 {
		return fmt.Errorf("bigram.flush_threshold must be positive, got %d", c.Bigram.FlushThreshold)
	}

	if c.GC.RetentionDays <= 0 {
		return fmt.Errorf("gc.retention_days must be positive, got %d", c.GC.RetentionDays)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

