package config

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"mediapilot/internal/api"
	"mediapilot/internal/models"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Default values for configuration
const (
	DefaultAPIBaseURL          = "http://127.0.0.1:9000/mediapilot"
	DefaultDownloadDir         = "downloads"
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "text"
	DefaultAPIClientTimeoutSec = 60
	DefaultThumbCacheMaxMB     = 256
	DefaultConfigFilePath      = "config.toml"

	// Gallery defaults
	DefaultGalleryFolder    = "_root"
	DefaultGallerySort      = "newest"
	DefaultGalleryPageLimit = 50
	DefaultGalleryCacheSize = 64

	// Viewer defaults
	DefaultViewerZoomFactor   = 4.0
	DefaultViewerPreloadAhead = 3
	DefaultViewerPreloadBack  = 2
)

// setViperDefaults configures Viper with the application's default values.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("apibaseurl", DefaultAPIBaseURL)
	v.SetDefault("downloaddir", DefaultDownloadDir)
	v.SetDefault("thumbcache", "")
	v.SetDefault("loglevel", DefaultLogLevel)
	v.SetDefault("logformat", DefaultLogFormat)
	v.SetDefault("apiclienttimeoutsec", DefaultAPIClientTimeoutSec)
	v.SetDefault("thumbcachemaxmb", DefaultThumbCacheMaxMB)
	v.SetDefault("logapirequests", false)
	v.SetDefault("nothumbcache", false)

	// Gallery defaults
	v.SetDefault("gallery.folder", DefaultGalleryFolder)
	v.SetDefault("gallery.sort", DefaultGallerySort)
	v.SetDefault("gallery.pagelimit", DefaultGalleryPageLimit)
	v.SetDefault("gallery.cachesize", DefaultGalleryCacheSize)

	// Viewer defaults
	v.SetDefault("viewer.zoomfactor", DefaultViewerZoomFactor)
	v.SetDefault("viewer.preloadahead", DefaultViewerPreloadAhead)
	v.SetDefault("viewer.preloadback", DefaultViewerPreloadBack)
}

// CliFlags holds pointers to values received from command-line flags.
// Nil fields indicate the flag was not provided by the user.
type CliFlags struct {
	ConfigFilePath *string
	APIBaseURL     *string // --api-url
	DownloadDir    *string // --download-dir
	LogLevel       *string // --log-level
	LogFormat      *string // --log-format
	LogApiRequests *bool   // --log-api
	NoThumbCache   *bool   // --no-thumb-cache
	Folder         *string // --folder
	Sort           *string // --sort
}

// Initialize loads configuration based on defaults, config file, and flags.
// Precedence: Flags > Config File > Defaults.
func Initialize(flags CliFlags) (models.Config, http.RoundTripper, error) {
	v := viper.New()
	v.SetEnvPrefix("MEDIAPILOT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setViperDefaults(v)

	actualConfigFilePath := DefaultConfigFilePath
	if flags.ConfigFilePath != nil {
		actualConfigFilePath = *flags.ConfigFilePath
	}
	v.SetConfigFile(actualConfigFilePath)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			log.Debugf("Config file '%s' not found, using defaults and flags only", actualConfigFilePath)
		} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Debugf("Config file '%s' not found, using defaults and flags only", actualConfigFilePath)
		} else {
			log.WithError(err).Warnf("Error reading config file '%s', using defaults and flags only", actualConfigFilePath)
		}
	} else {
		log.Debugf("Read config file: %s", v.ConfigFileUsed())
	}

	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return models.Config{}, nil, fmt.Errorf("failed to unmarshal config from viper: %w", err)
	}

	// --- Override with CLI Flags ---
	if flags.APIBaseURL != nil {
		cfg.APIBaseURL = *flags.APIBaseURL
	}
	if flags.DownloadDir != nil {
		cfg.DownloadDir = *flags.DownloadDir
	}
	if flags.LogLevel != nil {
		cfg.LogLevel = *flags.LogLevel
	}
	if flags.LogFormat != nil {
		cfg.LogFormat = *flags.LogFormat
	}
	if flags.LogApiRequests != nil {
		cfg.LogApiRequests = *flags.LogApiRequests
	}
	if flags.NoThumbCache != nil {
		cfg.NoThumbCache = *flags.NoThumbCache
	}
	if flags.Folder != nil {
		cfg.Gallery.Folder = *flags.Folder
	}
	if flags.Sort != nil {
		cfg.Gallery.Sort = *flags.Sort
	}

	applyBounds(&cfg)

	// --- Derive Default Paths if Empty ---
	if cfg.ThumbCache == "" {
		if cacheDir, err := os.UserCacheDir(); err == nil {
			cfg.ThumbCache = filepath.Join(cacheDir, "mediapilot", "thumbs")
		} else {
			cfg.ThumbCache = filepath.Join(".", "thumbs-cache")
		}
	}

	// --- Validation ---
	if cfg.APIBaseURL == "" {
		return models.Config{}, nil, fmt.Errorf("ApiBaseUrl cannot be empty (set via --api-url flag or ApiBaseUrl in config)")
	}

	// --- Setup HTTP Transport ---
	var transport http.RoundTripper = http.DefaultTransport
	if cfg.LogApiRequests {
		transport = api.NewLoggingTransport(transport)
	}

	log.Debug("Configuration initialized successfully.")
	return cfg, transport, nil
}

// applyBounds clamps out-of-range numeric settings back to their defaults
// so a broken config file cannot produce an unusable session.
func applyBounds(cfg *models.Config) {
	if cfg.APIClientTimeoutSec < 1 {
		log.Warnf("Invalid ApiClientTimeoutSec %d, using %d", cfg.APIClientTimeoutSec, DefaultAPIClientTimeoutSec)
		cfg.APIClientTimeoutSec = DefaultAPIClientTimeoutSec
	}
	if cfg.ThumbCacheMaxMB < 1 {
		log.Warnf("Invalid ThumbCacheMaxMB %d, using %d", cfg.ThumbCacheMaxMB, DefaultThumbCacheMaxMB)
		cfg.ThumbCacheMaxMB = DefaultThumbCacheMaxMB
	}
	if cfg.Gallery.PageLimit < 1 {
		log.Warnf("Invalid Gallery.PageLimit %d, using %d", cfg.Gallery.PageLimit, DefaultGalleryPageLimit)
		cfg.Gallery.PageLimit = DefaultGalleryPageLimit
	}
	if cfg.Gallery.CacheSize < 1 {
		log.Warnf("Invalid Gallery.CacheSize %d, using %d", cfg.Gallery.CacheSize, DefaultGalleryCacheSize)
		cfg.Gallery.CacheSize = DefaultGalleryCacheSize
	}
	if cfg.Gallery.Folder == "" {
		cfg.Gallery.Folder = DefaultGalleryFolder
	}
	if cfg.Gallery.Sort == "" {
		cfg.Gallery.Sort = DefaultGallerySort
	}
	if cfg.Viewer.ZoomFactor <= 1 {
		log.Warnf("Invalid Viewer.ZoomFactor %v, using %v", cfg.Viewer.ZoomFactor, DefaultViewerZoomFactor)
		cfg.Viewer.ZoomFactor = DefaultViewerZoomFactor
	}
	if cfg.Viewer.PreloadAhead < 0 {
		cfg.Viewer.PreloadAhead = DefaultViewerPreloadAhead
	}
	if cfg.Viewer.PreloadBack < 0 {
		cfg.Viewer.PreloadBack = DefaultViewerPreloadBack
	}
}
