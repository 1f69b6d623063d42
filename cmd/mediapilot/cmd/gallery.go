package cmd

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mediapilot/internal/thumbcache"
	"mediapilot/internal/ui"
)

// runGallery is the root command's action: open the gallery window
// against the configured backend.
func runGallery(cmd *cobra.Command, args []string) error {
	var disk *thumbcache.Cache
	if globalConfig.NoThumbCache {
		log.Debug("Persistent thumbnail cache disabled")
	} else {
		var err error
		disk, err = thumbcache.Open(globalConfig.ThumbCache, globalConfig.ThumbCacheMaxMB)
		if err != nil {
			// The cache is an optimization; run without it.
			log.WithError(err).Warn("Failed to open thumbnail cache, continuing without it")
			disk = nil
		} else {
			defer func() {
				if err := disk.Close(); err != nil {
					log.WithError(err).Warn("Failed to close thumbnail cache")
				}
			}()
		}
	}

	app := ui.NewApp(globalConfig, apiHTTPClient(), disk)
	app.Start(context.Background())

	log.Infof("Opening gallery for %s (folder %q)", globalConfig.APIBaseURL, globalConfig.Gallery.Folder)
	return app.Run()
}
