// Package config provides configuration management for the catalog crawler.
// It defines configuration structures and default values for crawling parameters.
package config

import (
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// AppName is used for the config file name and the XDG config directory.
const AppName = "tiendacrawl"

// Output formats understood by the export package
const (
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// LogConfig contains logging settings
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`             // debug, info, warn, error
	File       string `mapstructure:"file" yaml:"file"`               // Optional log file path
	MaxSizeMB  int64  `mapstructure:"max_size_mb" yaml:"max_size_mb"` // Rotate after this many MB
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"` // Rotated files kept
}

// CrawlConfig holds crawler configuration
type CrawlConfig struct {
	// Target storefront
	BaseURL       string `mapstructure:"base_url" yaml:"base_url"`             // Origin every link is resolved against
	CatalogPath   string `mapstructure:"catalog_path" yaml:"catalog_path"`     // Path of the first catalog page
	CatalogMarker string `mapstructure:"catalog_marker" yaml:"catalog_marker"` // Path segment identifying item links

	// HTTP
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`           // Fixed identity header
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"` // Page and item fetch timeout
	ImageTimeout   time.Duration `mapstructure:"image_timeout" yaml:"image_timeout"`     // Image fetch timeout
	RespectRobots  bool          `mapstructure:"respect_robots" yaml:"respect_robots"`   // Whether to respect robots.txt

	// Pacing
	ItemDelay    time.Duration `mapstructure:"item_delay" yaml:"item_delay"`       // Pause after each item
	PageDelay    time.Duration `mapstructure:"page_delay" yaml:"page_delay"`       // Pause after each catalog page
	RequestDelay time.Duration `mapstructure:"request_delay" yaml:"request_delay"` // Minimum spacing between requests to one host
	MaxPages     int           `mapstructure:"max_pages" yaml:"max_pages"`         // Stop after N catalog pages (0=unlimited)

	// URL filtering applied to item links
	IncludePatterns []string `mapstructure:"include_patterns" yaml:"include_patterns"` // Regex patterns for item URLs to include
	ExcludePatterns []string `mapstructure:"exclude_patterns" yaml:"exclude_patterns"` // Regex patterns for item URLs to exclude

	// Output
	OutputDir      string   `mapstructure:"output_dir" yaml:"output_dir"`           // Root output directory
	ImageDir       string   `mapstructure:"image_dir" yaml:"image_dir"`             // Where materialized images go
	OutputName     string   `mapstructure:"output_name" yaml:"output_name"`         // Base name of the record files
	Formats        []string `mapstructure:"formats" yaml:"formats"`                 // csv, json, markdown
	DownloadImages bool     `mapstructure:"download_images" yaml:"download_images"` // Materialize images locally
	DatabasePath   string   `mapstructure:"database_path" yaml:"database_path"`     // Optional SQLite run archive

	Log LogConfig `mapstructure:"log" yaml:"log"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *CrawlConfig {
	base := "https://tassben.mitiendanube.com"
	return &CrawlConfig{
		BaseURL:        base,
		CatalogPath:    "/productos/",
		CatalogMarker:  "/productos/",
		UserAgent:      "Mozilla/5.0 (compatible; ProductScraper/3.0; +" + base + ")",
		RequestTimeout: 15 * time.Second,
		ImageTimeout:   20 * time.Second,
		RespectRobots:  false,
		ItemDelay:      1 * time.Second,
		PageDelay:      2 * time.Second,
		RequestDelay:   250 * time.Millisecond,
		MaxPages:       0, // unlimited
		OutputDir:      "products",
		ImageDir:       filepath.Join("products", "images"),
		OutputName:     "productos_tassben",
		Formats:        []string{FormatCSV, FormatJSON},
		DownloadImages: true,
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
		},
	}
}

// ConfigDir returns the XDG config directory searched for tiendacrawl.yml.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// CatalogURL returns the absolute URL of the first catalog page.
func (c *CrawlConfig) CatalogURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(c.CatalogPath, "/")
}

// Validate checks if the configuration is valid
func (c *CrawlConfig) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidBaseURL
	}

	if c.CatalogMarker == "" {
		return ErrEmptyCatalogMarker
	}

	if c.RequestTimeout <= 0 || c.ImageTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.ItemDelay < 0 || c.PageDelay < 0 || c.RequestDelay < 0 {
		return ErrNegativeDelay
	}

	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}

	if c.OutputDir == "" || c.OutputName == "" {
		return ErrEmptyOutputPath
	}

	if c.DownloadImages && c.ImageDir == "" {
		return ErrEmptyImageDir
	}

	for _, f := range c.Formats {
		if !slices.Contains([]string{FormatCSV, FormatJSON, FormatMarkdown}, f) {
			return ErrUnknownFormat
		}
	}

	return nil
}
