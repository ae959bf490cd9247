// Package config handles loading, validating, and managing site configuration
// for the Gallium gallery generator.
package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

// SiteConfig is the top-level configuration for a Gallium site.
type SiteConfig struct {
	Title       string         `yaml:"title"       mapstructure:"title"`
	BaseURL     string         `yaml:"baseURL"     mapstructure:"baseURL"`
	Description string         `yaml:"description" mapstructure:"description"`
	Author      AuthorConfig   `yaml:"author"      mapstructure:"author"`
	SourceDir   string         `yaml:"sourceDir"   mapstructure:"sourceDir"`
	OutputDir   string         `yaml:"outputDir"   mapstructure:"outputDir"`
	CacheDir    string         `yaml:"cacheDir"    mapstructure:"cacheDir"`
	Images      ImageConfig    `yaml:"images"      mapstructure:"images"`
	Feeds       FeedsConfig    `yaml:"feeds"       mapstructure:"feeds"`
	Server      ServerConfig   `yaml:"server"      mapstructure:"server"`
	Deploy      DeployConfig   `yaml:"deploy"      mapstructure:"deploy"`
	Params      map[string]any `yaml:"params"      mapstructure:"params"`
}

// AuthorConfig holds information about the site author.
type AuthorConfig struct {
	Name  string `yaml:"name"  mapstructure:"name"`
	Email string `yaml:"email" mapstructure:"email"`
}

// ImageConfig controls responsive variant generation.
type ImageConfig struct {
	Quality int    `yaml:"quality" mapstructure:"quality"`
	Format  string `yaml:"format"  mapstructure:"format"`
	Widths  []int  `yaml:"widths"  mapstructure:"widths"`
}

// FeedsConfig controls RSS/Atom feed generation.
type FeedsConfig struct {
	RSS   bool `yaml:"rss"   mapstructure:"rss"`
	Atom  bool `yaml:"atom"  mapstructure:"atom"`
	Limit int  `yaml:"limit" mapstructure:"limit"`
}

// ServerConfig controls the local development server.
type ServerConfig struct {
	Port       int    `yaml:"port"       mapstructure:"port"`
	Host       string `yaml:"host"       mapstructure:"host"`
	LiveReload bool   `yaml:"livereload" mapstructure:"livereload"`
}

// DeployConfig holds deployment target configuration.
type DeployConfig struct {
	S3         S3Config         `yaml:"s3"         mapstructure:"s3"`
	CloudFront CloudFrontConfig `yaml:"cloudfront" mapstructure:"cloudfront"`
}

// S3Config holds AWS S3 deployment settings.
type S3Config struct {
	Bucket string `yaml:"bucket" mapstructure:"bucket"`
	Region string `yaml:"region" mapstructure:"region"`
}

// CloudFrontConfig holds AWS CloudFront invalidation settings.
type CloudFrontConfig struct {
	DistributionID string `yaml:"distributionId" mapstructure:"distributionId"`
	URLRewrite     bool   `yaml:"urlRewrite"     mapstructure:"urlRewrite"`
}

// Default returns a SiteConfig populated with sensible default values.
func Default() *SiteConfig {
	return &SiteConfig{
		SourceDir: "photos",
		OutputDir: "public",
		CacheDir:  filepath.Join(".gallium", "imagecache"),
		Images: ImageConfig{
			Quality: 80,
			Format:  "jpeg",
			Widths:  []int{640, 1280, 1920, 2560},
		},
		Feeds: FeedsConfig{
			RSS:   true,
			Atom:  true,
			Limit: 20,
		},
		Server: ServerConfig{
			Port:       1414,
			Host:       "localhost",
			LiveReload: true,
		},
		Params: map[string]any{},
	}
}

// Load reads a configuration file from configPath (YAML or TOML) and returns
// a SiteConfig with defaults applied first and file values overlaid on top.
func Load(configPath string) (*SiteConfig, error) {
	cfg := Default()

	v := viper.New()

	// Determine format from extension.
	ext := strings.TrimPrefix(filepath.Ext(configPath), ".")
	switch ext {
	case "yaml", "yml":
		v.SetConfigType("yaml")
	case "toml":
		v.SetConfigType("toml")
	default:
		// Default to yaml if unrecognised.
		v.SetConfigType("yaml")
	}

	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks the SiteConfig for common errors.
// It returns a descriptive error if:
//   - Title is empty
//   - BaseURL has a trailing slash
//   - image quality is outside 1-100
//   - the image format is not jpeg or webp
//   - no variant widths are configured, or a width is not positive
func (c *SiteConfig) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("config: title is required")
	}

	if c.BaseURL != "" && strings.HasSuffix(c.BaseURL, "/") {
		return fmt.Errorf("config: baseURL must not have a trailing slash (got %q)", c.BaseURL)
	}

	if c.Images.Quality < 1 || c.Images.Quality > 100 {
		return fmt.Errorf("config: images.quality must be between 1 and 100 (got %d)", c.Images.Quality)
	}

	switch c.Images.Format {
	case "jpeg", "webp":
	default:
		return fmt.Errorf("config: images.format must be \"jpeg\" or \"webp\" (got %q)", c.Images.Format)
	}

	if len(c.Images.Widths) == 0 {
		return fmt.Errorf("config: images.widths must list at least one width")
	}
	for _, w := range c.Images.Widths {
		if w <= 0 {
			return fmt.Errorf("config: images.widths entries must be positive (got %d)", w)
		}
	}

	return nil
}

// SortedWidths returns the configured variant widths in ascending order with
// duplicates removed.
func (c *SiteConfig) SortedWidths() []int {
	widths := make([]int, len(c.Images.Widths))
	copy(widths, c.Images.Widths)
	slices.Sort(widths)
	return slices.Compact(widths)
}

// WithOverrides applies CLI flag overrides to the config. Known keys are
// mapped to their corresponding struct fields. The modified config is returned
// for convenient chaining.
func (c *SiteConfig) WithOverrides(overrides map[string]any) *SiteConfig {
	for key, val := range overrides {
		switch key {
		case "baseURL":
			if s, ok := val.(string); ok {
				c.BaseURL = s
			}
		case "title":
			if s, ok := val.(string); ok {
				c.Title = s
			}
		case "outputDir":
			if s, ok := val.(string); ok {
				c.OutputDir = s
			}
		case "port":
			if n, ok := val.(int); ok {
				c.Server.Port = n
			}
		case "host":
			if s, ok := val.(string); ok {
				c.Server.Host = s
			}
		case "livereload":
			if b, ok := val.(bool); ok {
				c.Server.LiveReload = b
			}
		case "quality":
			if n, ok := val.(int); ok {
				c.Images.Quality = n
			}
		}
	}
	return c
}
