// Package cmd provides the command-line interface for tiendacrawl.
// It handles command parsing, configuration loading, and crawl execution.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/masahif/tiendacrawl/internal/config"
	"github.com/masahif/tiendacrawl/internal/crawler"
	"github.com/masahif/tiendacrawl/internal/export"
	"github.com/masahif/tiendacrawl/internal/logging"
	"github.com/masahif/tiendacrawl/internal/model"
	"github.com/masahif/tiendacrawl/internal/storage"
)

var (
	cfgFile   string
	version   string
	buildTime string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tiendacrawl",
	Short: "Product catalog crawler for Tiendanube storefronts",
	Long: `tiendacrawl walks the paginated product catalog of one storefront,
extracts every product (name, price, description, images), downloads
the product images and writes the result as CSV, JSON and Markdown.

Running without flags crawls the default storefront with the default
pacing and output paths.`,
	Args:          cobra.NoArgs,
	RunE:          runCrawler,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext is Execute with a context that cancels the crawl
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// SetVersionInfo sets version information for the CLI
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := config.DefaultConfig()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./tiendacrawl.yml or $XDG_CONFIG_HOME/tiendacrawl/tiendacrawl.yml)")
	rootCmd.Flags().Bool("show-config", false, "Display current configuration in YAML format and exit")

	// Target
	rootCmd.Flags().String("base-url", defaults.BaseURL, "Storefront origin")
	rootCmd.Flags().String("catalog-path", defaults.CatalogPath, "Path of the first catalog page")
	rootCmd.Flags().String("catalog-marker", defaults.CatalogMarker, "Path segment identifying product links")

	// HTTP
	rootCmd.Flags().StringP("user-agent", "u", defaults.UserAgent, "HTTP User-Agent header")
	rootCmd.Flags().DurationP("timeout", "t", defaults.RequestTimeout, "Page and item request timeout")
	rootCmd.Flags().Duration("image-timeout", defaults.ImageTimeout, "Image request timeout")
	rootCmd.Flags().Bool("respect-robots", defaults.RespectRobots, "Honor robots.txt rules")

	// Pacing
	rootCmd.Flags().Duration("item-delay", defaults.ItemDelay, "Pause after each item")
	rootCmd.Flags().Duration("page-delay", defaults.PageDelay, "Pause after each catalog page")
	rootCmd.Flags().Duration("request-delay", defaults.RequestDelay, "Minimum spacing between requests to one host")
	rootCmd.Flags().IntP("max-pages", "l", defaults.MaxPages, "Stop after N catalog pages (0=unlimited)")

	// URL filtering
	rootCmd.Flags().StringSlice("include-patterns", defaults.IncludePatterns, "Regex patterns for item URLs to include")
	rootCmd.Flags().StringSlice("exclude-patterns", defaults.ExcludePatterns, "Regex patterns for item URLs to exclude")

	// Output
	rootCmd.Flags().StringP("output-dir", "o", defaults.OutputDir, "Output directory")
	rootCmd.Flags().String("image-dir", defaults.ImageDir, "Directory for downloaded images")
	rootCmd.Flags().String("output-name", defaults.OutputName, "Base name of the output files")
	rootCmd.Flags().StringSlice("format", defaults.Formats, "Output formats: csv, json, markdown")
	rootCmd.Flags().Bool("download-images", defaults.DownloadImages, "Download product images")
	rootCmd.Flags().StringP("database", "d", defaults.DatabasePath, "Optional SQLite archive of the run")

	// Logging
	rootCmd.Flags().String("log-level", defaults.Log.Level, "Log level: debug, info, warn, error")
	rootCmd.Flags().String("log-file", defaults.Log.File, "Also write logs to this file (rotated)")

	bindFlags()

	rootCmd.AddCommand(NewRunsCmd())
}

// flagBindings maps viper keys to the root command flags
var flagBindings = []struct {
	viperKey string
	flagName string
}{
	{"base_url", "base-url"},
	{"catalog_path", "catalog-path"},
	{"catalog_marker", "catalog-marker"},
	{"user_agent", "user-agent"},
	{"request_timeout", "timeout"},
	{"image_timeout", "image-timeout"},
	{"respect_robots", "respect-robots"},
	{"item_delay", "item-delay"},
	{"page_delay", "page-delay"},
	{"request_delay", "request-delay"},
	{"max_pages", "max-pages"},
	{"include_patterns", "include-patterns"},
	{"exclude_patterns", "exclude-patterns"},
	{"output_dir", "output-dir"},
	{"image_dir", "image-dir"},
	{"output_name", "output-name"},
	{"formats", "format"},
	{"download_images", "download-images"},
	{"database_path", "database"},
	{"log.level", "log-level"},
	{"log.file", "log-file"},
}

func bindFlags() {
	for _, bind := range flagBindings {
		if err := viper.BindPFlag(bind.viperKey, rootCmd.Flags().Lookup(bind.flagName)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to bind flag %s: %v\n", bind.flagName, err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath(config.ConfigDir())
		viper.SetConfigType("yaml")
		viper.SetConfigName(config.AppName)
	}

	viper.SetEnvPrefix("TC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig layers viper values (flags, env, file) over the defaults
func loadConfig() (*config.CrawlConfig, error) {
	cfg := config.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

func showCurrentConfig(w io.Writer, cfg *config.CrawlConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Configuration validation failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "Displaying configuration anyway...\n\n")
	}

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}

	fmt.Fprintf(w, "# Current tiendacrawl configuration\n")
	fmt.Fprintf(w, "# Generated at: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(w, "# Configuration file search paths: ./%s.yml, %s\n", config.AppName, config.ConfigDir())
	fmt.Fprintf(w, "# Environment variables prefix: TC_\n\n")
	fmt.Fprint(w, string(yamlData))

	return nil
}

func runCrawler(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if showConfig, _ := cmd.Flags().GetBool("show-config"); showConfig {
		return showCurrentConfig(cmd.OutOrStdout(), cfg)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	closer, err := logging.SetDefault(logging.FromSettings(cfg.Log))
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer func() { _ = closer.Close() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, crawlErr := crawl(ctx, cfg)
	if result == nil {
		return crawlErr
	}

	// Persist whatever was collected, even when the catalog walk failed or
	// the run was interrupted.
	if err := persist(context.WithoutCancel(ctx), cfg, result); err != nil {
		if crawlErr != nil {
			return fmt.Errorf("%w (persisting partial results also failed: %v)", crawlErr, err)
		}
		return err
	}

	printSummary(cmd.OutOrStdout(), cfg, result)
	return crawlErr
}

// crawl runs one catalog crawl with cfg
func crawl(ctx context.Context, cfg *config.CrawlConfig) (*model.CrawlResult, error) {
	c, err := crawler.NewCoordinator(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize crawler: %w", err)
	}
	defer c.Close()

	return c.Run(ctx)
}

// persist writes the output files and, when configured, the SQLite archive
func persist(ctx context.Context, cfg *config.CrawlConfig, result *model.CrawlResult) error {
	paths, err := export.WriteFiles(cfg.OutputDir, cfg.OutputName, cfg.Formats, result)
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	for _, p := range paths {
		slog.Info("Wrote output file", "path", p, "run_id", result.RunID)
	}

	if cfg.DatabasePath == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0750); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.SaveRun(ctx, result); err != nil {
		return fmt.Errorf("failed to archive run: %w", err)
	}
	slog.Info("Archived run", "database", cfg.DatabasePath, "run_id", result.RunID)
	return nil
}

func printSummary(w io.Writer, cfg *config.CrawlConfig, result *model.CrawlResult) {
	st := result.Stats
	fmt.Fprintf(w, "Crawl finished (%s) in %v\n", st.StopReason, result.Duration().Round(time.Second))
	fmt.Fprintf(w, "  Pages visited:  %d\n", st.PagesVisited)
	fmt.Fprintf(w, "  Products saved: %d\n", st.Products)
	fmt.Fprintf(w, "  Items skipped:  %d\n", st.ItemFailures)
	if cfg.DownloadImages {
		fmt.Fprintf(w, "  Images saved:   %d (reused %d, failed %d) in %s\n",
			st.ImagesSaved, st.ImagesCached, st.ImageFailures, cfg.ImageDir)
	}
	fmt.Fprintf(w, "  Output:         %s\n", cfg.OutputDir)
}
