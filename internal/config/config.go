package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const configPathEnv = "MEDALLION_CONFIG"

// ErrMissing is wrapped by every configuration error raised for an absent setting.
var ErrMissing = errors.New("missing required configuration")

// MissingError names the setting that a stage needs but was not provided.
type MissingError struct {
	Name string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing env var: %s", e.Name)
}

func (e *MissingError) Unwrap() error {
	return ErrMissing
}

type Config struct {
	Port     string `yaml:"port" toml:"port"`
	LogLevel string `yaml:"log_level" toml:"log_level"`
	Timezone string `yaml:"timezone" toml:"timezone"`

	// Object store
	StorageBackend    string `yaml:"storage_backend" toml:"storage_backend"`
	StorageRoot       string `yaml:"storage_root" toml:"storage_root"`
	S3Endpoint        string `yaml:"s3_endpoint" toml:"s3_endpoint"`
	S3AccessKeyID     string `yaml:"s3_access_key_id" toml:"s3_access_key_id"`
	S3SecretAccessKey string `yaml:"s3_secret_access_key" toml:"s3_secret_access_key"`
	S3Region          string `yaml:"s3_region" toml:"s3_region"`
	S3UseSSL          bool   `yaml:"s3_use_ssl" toml:"s3_use_ssl"`
	BronzeContainer   string `yaml:"bronze_container" toml:"bronze_container"`
	SilverContainer   string `yaml:"silver_container" toml:"silver_container"`
	GoldContainer     string `yaml:"gold_container" toml:"gold_container"`

	// YouTube Data API
	YouTubeAPIKey     string `yaml:"youtube_api_key" toml:"youtube_api_key"`
	YouTubeBaseURL    string `yaml:"youtube_base_url" toml:"youtube_base_url"`
	YouTubeChannelID  string `yaml:"youtube_channel_id" toml:"youtube_channel_id"`
	YouTubeMaxResults int    `yaml:"youtube_max_results" toml:"youtube_max_results"`

	// Classification service
	ClassifierProvider       string `yaml:"classifier_provider" toml:"classifier_provider"`
	ClassifierEndpoint       string `yaml:"classifier_endpoint" toml:"classifier_endpoint"`
	ClassifierKey            string `yaml:"classifier_key" toml:"classifier_key"`
	ClassifierDeployment     string `yaml:"classifier_deployment" toml:"classifier_deployment"`
	ClassifierAPIVersion     string `yaml:"classifier_api_version" toml:"classifier_api_version"`
	ClassifierTimeoutSeconds int    `yaml:"classifier_timeout_seconds" toml:"classifier_timeout_seconds"`
	EnrichWorkers            int    `yaml:"enrich_workers" toml:"enrich_workers"`

	// Run ledger; empty disables it.
	RunsDBPath string `yaml:"runs_db_path" toml:"runs_db_path"`

	location *time.Location
}

// Load builds the process configuration: defaults, then the optional config
// file named by MEDALLION_CONFIG, then environment overrides.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv(configPathEnv))
}

// LoadFrom is Load with an explicit file; an empty path skips the file.
// Files ending in .toml are TOML, anything else is YAML.
func LoadFrom(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := decodeFile(path, raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.bindTimezone(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func decodeFile(path string, raw []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return toml.Unmarshal(raw, cfg)
	}
	return yaml.Unmarshal(raw, cfg)
}

func defaults() *Config {
	return &Config{
		Port:                     "8080",
		LogLevel:                 "info",
		Timezone:                 "Local",
		StorageBackend:           "s3",
		StorageRoot:              "data",
		S3Endpoint:               "localhost:9000",
		S3UseSSL:                 false,
		BronzeContainer:          "bronze",
		SilverContainer:          "silver",
		GoldContainer:            "gold",
		YouTubeBaseURL:           "https://www.googleapis.com/youtube/v3",
		YouTubeChannelID:         "UC2D2CMWXMOVWx7giW1n3LIg",
		YouTubeMaxResults:        10,
		ClassifierProvider:       "azure",
		ClassifierAPIVersion:     "2024-10-21",
		ClassifierTimeoutSeconds: 120,
		EnrichWorkers:            1,
	}
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Timezone = getEnv("TIMEZONE", c.Timezone)

	c.StorageBackend = getEnv("STORAGE_BACKEND", c.StorageBackend)
	c.StorageRoot = getEnv("STORAGE_ROOT", c.StorageRoot)
	c.S3Endpoint = getEnv("S3_ENDPOINT", c.S3Endpoint)
	c.S3AccessKeyID = getEnv("S3_ACCESS_KEY_ID", c.S3AccessKeyID)
	c.S3SecretAccessKey = getEnv("S3_SECRET_ACCESS_KEY", c.S3SecretAccessKey)
	c.S3Region = getEnv("S3_REGION", c.S3Region)
	c.S3UseSSL = getEnvBool("S3_USE_SSL", c.S3UseSSL)
	c.BronzeContainer = getEnv("BRONZE_CONTAINER", getEnv("STORAGE_CONTAINER", c.BronzeContainer))
	c.SilverContainer = getEnv("SILVER_CONTAINER", c.SilverContainer)
	c.GoldContainer = getEnv("GOLD_CONTAINER", c.GoldContainer)

	c.YouTubeAPIKey = getEnv("YOUTUBE_API_KEY", c.YouTubeAPIKey)
	c.YouTubeBaseURL = getEnv("YOUTUBE_BASE_URL", c.YouTubeBaseURL)
	c.YouTubeChannelID = getEnv("YOUTUBE_CHANNEL_ID", c.YouTubeChannelID)
	c.YouTubeMaxResults = getEnvInt("YOUTUBE_MAX_RESULTS", c.YouTubeMaxResults)

	c.ClassifierProvider = getEnv("CLASSIFIER_PROVIDER", c.ClassifierProvider)
	c.ClassifierEndpoint = getEnv("AOAI_ENDPOINT", c.ClassifierEndpoint)
	c.ClassifierKey = getEnv("AOAI_KEY", c.ClassifierKey)
	c.ClassifierDeployment = getEnv("AOAI_DEPLOYMENT", c.ClassifierDeployment)
	c.ClassifierAPIVersion = getEnv("AOAI_API_VERSION", c.ClassifierAPIVersion)
	c.ClassifierTimeoutSeconds = getEnvInt("CLASSIFIER_TIMEOUT_SECONDS", c.ClassifierTimeoutSeconds)
	c.EnrichWorkers = getEnvInt("ENRICH_WORKERS", c.EnrichWorkers)

	c.RunsDBPath = getEnv("RUNS_DB_PATH", c.RunsDBPath)
}

func (c *Config) bindTimezone() error {
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		c.location = time.Local
		return nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("unknown timezone %q: %w", tz, err)
	}
	c.location = loc
	return nil
}

// Location is the clock used to pick today's partition.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// ClassifierTimeout is the bound applied to every classification call.
func (c *Config) ClassifierTimeout() time.Duration {
	if c.ClassifierTimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.ClassifierTimeoutSeconds) * time.Second
}

// RequireYouTube reports a configuration error when the catalog API cannot be called.
func (c *Config) RequireYouTube() error {
	return require(map[string]string{"YOUTUBE_API_KEY": c.YouTubeAPIKey}, "YOUTUBE_API_KEY")
}

// RequireClassifier reports a configuration error when the classification service cannot be called.
func (c *Config) RequireClassifier() error {
	values := map[string]string{
		"AOAI_ENDPOINT":   c.ClassifierEndpoint,
		"AOAI_KEY":        c.ClassifierKey,
		"AOAI_DEPLOYMENT": c.ClassifierDeployment,
	}
	return require(values, "AOAI_ENDPOINT", "AOAI_KEY", "AOAI_DEPLOYMENT")
}

// RequireStorage reports a configuration error for an unusable object store setup.
func (c *Config) RequireStorage() error {
	switch c.StorageBackend {
	case "s3":
		values := map[string]string{
			"S3_ENDPOINT":          c.S3Endpoint,
			"S3_ACCESS_KEY_ID":     c.S3AccessKeyID,
			"S3_SECRET_ACCESS_KEY": c.S3SecretAccessKey,
		}
		return require(values, "S3_ENDPOINT", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY")
	case "fs":
		return require(map[string]string{"STORAGE_ROOT": c.StorageRoot}, "STORAGE_ROOT")
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.StorageBackend)
	}
}

func require(values map[string]string, order ...string) error {
	for _, name := range order {
		if strings.TrimSpace(values[name]) == "" {
			return &MissingError{Name: name}
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true"
}
