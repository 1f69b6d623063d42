package cmd

import (
	"fmt"
	"net/http"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mediapilot/internal/config"
	"mediapilot/internal/models"
)

// Flag variables; loadGlobalConfig picks up only the ones the user
// actually changed.
var (
	cfgFile          string
	apiURLFlag       string
	downloadDirFlag  string
	logLevelFlag     string
	logFormatFlag    string
	logApiFlag       bool
	noThumbCacheFlag bool
	folderFlag       string
	sortFlag         string
)

// globalConfig holds the loaded configuration.
var globalConfig models.Config

// globalHttpTransport is the configured HTTP transport, logging-wrapped
// when API request logging is enabled.
var globalHttpTransport http.RoundTripper

var rootCmd = &cobra.Command{
	Use:   "mediapilot",
	Short: "Image gallery client for a MediaPilot backend",
	Long: `MediaPilot browses, tags, likes and curates the image library served
by a MediaPilot backend: an infinite-scroll thumbnail grid with
multi-select bulk actions and a full-screen viewer.`,
	PersistentPreRunE: loadGlobalConfig,
	RunE:              runGallery,
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Configuration file path (default is ./config.toml)")
	rootCmd.PersistentFlags().StringVar(&apiURLFlag, "api-url", "", "Backend base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&downloadDirFlag, "download-dir", "", "Directory for bulk download archives (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Logging level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "", "Logging format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&logApiFlag, "log-api", false, "Log API requests (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&noThumbCacheFlag, "no-thumb-cache", false, "Disable the persistent thumbnail cache")
	rootCmd.Flags().StringVar(&folderFlag, "folder", "", "Folder to open at startup (overrides config)")
	rootCmd.Flags().StringVar(&sortFlag, "sort", "", "Sort order to open with (overrides config)")
}

// collectFlags converts changed cobra flags into the pointer-based
// override struct, leaving untouched flags nil.
func collectFlags(cmd *cobra.Command) config.CliFlags {
	flags := config.CliFlags{}
	if cmd.Flags().Changed("config") {
		flags.ConfigFilePath = &cfgFile
	}
	if cmd.Flags().Changed("api-url") {
		flags.APIBaseURL = &apiURLFlag
	}
	if cmd.Flags().Changed("download-dir") {
		flags.DownloadDir = &downloadDirFlag
	}
	if cmd.Flags().Changed("log-level") {
		flags.LogLevel = &logLevelFlag
	}
	if cmd.Flags().Changed("log-format") {
		flags.LogFormat = &logFormatFlag
	}
	if cmd.Flags().Changed("log-api") {
		flags.LogApiRequests = &logApiFlag
	}
	if cmd.Flags().Changed("no-thumb-cache") {
		flags.NoThumbCache = &noThumbCacheFlag
	}
	if cmd.Flags().Changed("folder") {
		flags.Folder = &folderFlag
	}
	if cmd.Flags().Changed("sort") {
		flags.Sort = &sortFlag
	}
	return flags
}

// loadGlobalConfig loads configuration and configures logging before
// any command runs.
func loadGlobalConfig(cmd *cobra.Command, args []string) error {
	cfg, transport, err := config.Initialize(collectFlags(cmd))
	if err != nil {
		return err
	}
	globalConfig = cfg
	globalHttpTransport = transport

	setupLogging(cfg)
	return nil
}

func setupLogging(cfg models.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("Invalid log level %q, using info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// apiHTTPClient builds the HTTP client shared by every backend call.
func apiHTTPClient() *http.Client {
	return &http.Client{
		Transport: globalHttpTransport,
		Timeout:   time.Duration(globalConfig.APIClientTimeoutSec) * time.Second,
	}
}
