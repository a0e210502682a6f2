package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the closed set of recognized options. It is loaded from a YAML
// file, overridden from the environment, validated eagerly, and then treated
// as frozen: nothing mutates it after Load returns.
type Config struct {
	// Vendor API.
	APIKey             string  `yaml:"api_key"`
	BaseURL            string  `yaml:"base_url"`
	TimeoutSeconds     int     `yaml:"timeout"`
	MaxRetries         int     `yaml:"max_retries"`
	MaxConcurrent      int     `yaml:"max_concurrent"`
	MaxParallelUploads int     `yaml:"max_parallel_uploads"`
	RateLimitPerVM     int64   `yaml:"rate_limit_per_vm"`

	// Object store.
	ProjectID       string `yaml:"project_id"`
	CredentialsPath string `yaml:"credentials_path"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`

	// Sharding.
	ShardIndex          int `yaml:"shard_index"`
	TotalShards         int `yaml:"total_shards"`
	InstrumentsPerShard int `yaml:"instruments_per_shard"`

	// Service.
	LogLevel        string `yaml:"log_level"`
	LogDestination  string `yaml:"log_destination"`
	BatchSize       int    `yaml:"batch_size"`
	MemoryEfficient bool   `yaml:"memory_efficient"`
	EnableCaching   bool   `yaml:"enable_caching"`
	CacheTTLSeconds int    `yaml:"cache_ttl"`

	// Output.
	DefaultFormat string `yaml:"default_format"`
	Compression   string `yaml:"compression"`
}

// Default returns the configuration used before file and environment
// overrides.
func Default() Config {
	return Config{
		BaseURL:            "https://api.tardis.dev",
		TimeoutSeconds:     30,
		MaxRetries:         3,
		MaxConcurrent:      20,
		MaxParallelUploads: 10,
		RateLimitPerVM:     100000,
		TotalShards:        1,
		LogLevel:           "INFO",
		LogDestination:     "local",
		BatchSize:          100,
		EnableCaching:      true,
		CacheTTLSeconds:    3600,
		DefaultFormat:      "parquet",
		Compression:        "snappy",
	}
}

// Load reads the optional YAML file and the optional .env file, applies
// environment overrides, and validates. It fails before any I/O elsewhere
// can happen.
func Load(configPath, envFile string) (Config, error) {
	cfg := Default()
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", configPath, err)
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

const envPrefix = "TICKFORGE_"

func (c *Config) applyEnv() {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str("API_KEY", &c.APIKey)
	str("BASE_URL", &c.BaseURL)
	num("TIMEOUT", &c.TimeoutSeconds)
	num("MAX_RETRIES", &c.MaxRetries)
	num("MAX_CONCURRENT", &c.MaxConcurrent)
	num("MAX_PARALLEL_UPLOADS", &c.MaxParallelUploads)
	if v, ok := os.LookupEnv(envPrefix + "RATE_LIMIT_PER_VM"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.RateLimitPerVM = n
		}
	}
	str("PROJECT_ID", &c.ProjectID)
	str("CREDENTIALS_PATH", &c.CredentialsPath)
	str("BUCKET", &c.Bucket)
	str("REGION", &c.Region)
	num("SHARD_INDEX", &c.ShardIndex)
	num("TOTAL_SHARDS", &c.TotalShards)
	num("INSTRUMENTS_PER_SHARD", &c.InstrumentsPerShard)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_DESTINATION", &c.LogDestination)
	num("BATCH_SIZE", &c.BatchSize)
	boolean("MEMORY_EFFICIENT", &c.MemoryEfficient)
	boolean("ENABLE_CACHING", &c.EnableCaching)
	num("CACHE_TTL", &c.CacheTTLSeconds)
	str("DEFAULT_FORMAT", &c.DefaultFormat)
	str("COMPRESSION", &c.Compression)
}

var (
	validLevels       = map[string]bool{"DEBUG": true, "INFO": true, "WARNING": true, "ERROR": true, "CRITICAL": true}
	validDestinations = map[string]bool{"local": true, "gcp": true, "both": true}
	validFormats      = map[string]bool{"json": true, "csv": true, "parquet": true}
	validCompression  = map[string]bool{"snappy": true, "gzip": true, "lz4": true, "zstd": true}
)

// Validate enforces the option invariants. Any violation is fatal at
// startup.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required")
	}
	if !strings.HasPrefix(c.APIKey, "TD.") {
		return fmt.Errorf("api_key is malformed: expected TD. prefix")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	if c.CredentialsPath != "" {
		if _, err := os.Stat(c.CredentialsPath); err != nil {
			return fmt.Errorf("credentials_path %s is unreachable: %w", c.CredentialsPath, err)
		}
	}
	if c.TotalShards < 1 {
		return fmt.Errorf("total_shards must be >= 1, got %d", c.TotalShards)
	}
	if c.ShardIndex < 0 || c.ShardIndex >= c.TotalShards {
		return fmt.Errorf("shard_index %d out of range for %d shards", c.ShardIndex, c.TotalShards)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be >= 1, got %d", c.BatchSize)
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be >= 1, got %d", c.MaxConcurrent)
	}
	if c.RateLimitPerVM < 1 {
		return fmt.Errorf("rate_limit_per_vm must be >= 1, got %d", c.RateLimitPerVM)
	}
	if !validLevels[strings.ToUpper(c.LogLevel)] {
		return fmt.Errorf("log_level %q is not one of DEBUG,INFO,WARNING,ERROR,CRITICAL", c.LogLevel)
	}
	if !validDestinations[strings.ToLower(c.LogDestination)] {
		return fmt.Errorf("log_destination %q is not one of local,gcp,both", c.LogDestination)
	}
	if !validFormats[strings.ToLower(c.DefaultFormat)] {
		return fmt.Errorf("default_format %q is not one of json,csv,parquet", c.DefaultFormat)
	}
	if !validCompression[strings.ToLower(c.Compression)] {
		return fmt.Errorf("compression %q is not one of snappy,gzip,lz4,zstd", c.Compression)
	}
	return nil
}

// Timeout returns the request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CacheTTL returns the catalog cache lifetime as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}
