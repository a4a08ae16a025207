// Package config loads settings from .env, an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvFile    = ".env"
	ConfigFile = "config.yaml"
)

type Config struct {
	Port     string         `yaml:"port"`
	Logging  LoggingConfig  `yaml:"logging"`
	Prismic  PrismicConfig  `yaml:"prismic"`
	Database DatabaseConfig `yaml:"database"`
	Site     SiteConfig     `yaml:"site"`
	Listing  ListingConfig  `yaml:"listing"`
	Posts    PostsConfig    `yaml:"posts"`
	S3       S3Config       `yaml:"s3"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type PrismicConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	AccessToken string        `yaml:"access_token"`
	Timeout     time.Duration `yaml:"timeout"`
}

// DatabaseConfig selects the page store. URL wins over Path.
type DatabaseConfig struct {
	URL  string `yaml:"url"`
	Path string `yaml:"path"`
}

type SiteConfig struct {
	Title       string `yaml:"title"`
	BaseURL     string `yaml:"base_url"`
	Description string `yaml:"description"`
}

type ListingConfig struct {
	PageSize int `yaml:"page_size"`
	MaxPages int `yaml:"max_pages"`
}

type PostsConfig struct {
	// StaticPathsLimit is the number of posts generated at build time.
	StaticPathsLimit int `yaml:"static_paths_limit"`
	// FallbackWait is how long a request for an ungenerated post waits before
	// the loading page is served.
	FallbackWait    time.Duration `yaml:"fallback_wait"`
	GenerateTimeout time.Duration `yaml:"generate_timeout"`
}

type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	Prefix   string `yaml:"prefix"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Port:     "3000",
		Logging:  LoggingConfig{Level: "info"},
		Prismic:  PrismicConfig{Timeout: 10 * time.Second},
		Database: DatabaseConfig{Path: "spacetraveling.db"},
		Site: SiteConfig{
			Title:   "SpaceTraveling Blog",
			BaseURL: "http://localhost:3000",
		},
		Listing: ListingConfig{PageSize: 10, MaxPages: 50},
		Posts: PostsConfig{
			StaticPathsLimit: 100,
			FallbackWait:     300 * time.Millisecond,
			GenerateTimeout:  30 * time.Second,
		},
		S3: S3Config{Region: "us-east-1"},
	}
}

// Load reads .env, then the YAML file named by CONFIG_FILE (default
// config.yaml, optional), then environment overrides.
func Load() (*Config, error) {
	if err := godotenv.Load(EnvFile); err != nil {
		slog.Default().Warn("loading .env failed", "error", err)
	}

	cfg := Default()
	path := getEnv("CONFIG_FILE", ConfigFile)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Port = getEnv("PORT", c.Port)
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Prismic.Endpoint = getEnv("PRISMIC_API_ENDPOINT", c.Prismic.Endpoint)
	c.Prismic.AccessToken = getEnv("PRISMIC_ACCESS_TOKEN", c.Prismic.AccessToken)
	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	c.Database.Path = getEnv("DATABASE_PATH", c.Database.Path)
	c.Site.BaseURL = getEnv("SITE_URL", c.Site.BaseURL)
	c.S3.Bucket = getEnv("S3_BUCKET", c.S3.Bucket)
	c.S3.Region = getEnv("AWS_REGION", c.S3.Region)
	c.S3.Endpoint = getEnv("S3_ENDPOINT", c.S3.Endpoint)
	c.S3.Prefix = getEnv("S3_PREFIX", c.S3.Prefix)

	var err error
	if c.Prismic.Timeout, err = getDuration("PRISMIC_TIMEOUT", c.Prismic.Timeout); err != nil {
		return err
	}
	if c.Posts.FallbackWait, err = getDuration("FALLBACK_WAIT", c.Posts.FallbackWait); err != nil {
		return err
	}
	if c.Posts.GenerateTimeout, err = getDuration("GENERATE_TIMEOUT", c.Posts.GenerateTimeout); err != nil {
		return err
	}
	if c.Listing.PageSize, err = getInt("POSTS_PAGE_SIZE", c.Listing.PageSize); err != nil {
		return err
	}
	return nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.Prismic.Endpoint == "" {
		return errors.New("PRISMIC_API_ENDPOINT is required")
	}
	if u, err := url.Parse(c.Prismic.Endpoint); err != nil || u.Host == "" {
		return fmt.Errorf("PRISMIC_API_ENDPOINT %q is not an absolute URL", c.Prismic.Endpoint)
	}
	if c.Listing.PageSize < 1 {
		return fmt.Errorf("listing page size must be positive, got %d", c.Listing.PageSize)
	}
	if c.Listing.MaxPages < 1 {
		return fmt.Errorf("listing max pages must be positive, got %d", c.Listing.MaxPages)
	}
	if c.Posts.StaticPathsLimit < 1 || c.Posts.StaticPathsLimit > 100 {
		return fmt.Errorf("static paths limit must be between 1 and 100, got %d", c.Posts.StaticPathsLimit)
	}
	if c.Posts.FallbackWait < 0 {
		return fmt.Errorf("fallback wait must not be negative, got %s", c.Posts.FallbackWait)
	}
	if c.Prismic.Timeout <= 0 {
		return fmt.Errorf("prismic timeout must be positive, got %s", c.Prismic.Timeout)
	}
	return nil
}

// Addr is the listen address for Port.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
