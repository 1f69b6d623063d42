package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FlexFloat is a custom type that can unmarshal from either a JSON
// number or a JSON string. This handles API responses where generation
// parameters may be serialized in either format depending on the
// pipeline that produced the image.
type FlexFloat float64

// UnmarshalJSON implements json.Unmarshaler for FlexFloat
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	// First try to unmarshal as a number
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexFloat(n)
		return nil
	}

	// If that fails, try to unmarshal as a string
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = FlexFloat(n)
	return nil
}

type (
	// ImageRecord is one entry in the gallery's working set. Filename is
	// unique within the currently loaded window and acts as the primary
	// key for selection and view lookups.
	ImageRecord struct {
		Filename  string `json:"filename"`
		Liked     bool   `json:"liked"`
		CreatedAt string `json:"created_at,omitempty"`
		// Generation metadata, all independently optional.
		Prompt        *string    `json:"prompt,omitempty"`
		LoraName      *string    `json:"lora_name,omitempty"`
		LoraName2     *string    `json:"lora_name_2,omitempty"`
		LoraStrength  *FlexFloat `json:"lora_strength,omitempty"`
		LoraStrength2 *FlexFloat `json:"lora_strength_2,omitempty"`
		Cfg           *FlexFloat `json:"cfg,omitempty"`
		Steps         *int       `json:"steps,omitempty"`
		Sampler       *string    `json:"sampler,omitempty"`
		Scheduler     *string    `json:"scheduler,omitempty"`
		// Tagged reports whether the image has been assigned a folder
		// other than the root/untagged bucket.
		Tagged bool `json:"tagged,omitempty"`
	}

	// ImagePage is the response of the paginated image listing endpoint.
	ImagePage struct {
		Images []ImageRecord `json:"images"`
		Page   int           `json:"page"`
		Pages  int           `json:"pages"`
	}

	// FolderList is the response of the folder listing endpoint.
	FolderList struct {
		Folders []string `json:"folders"`
	}

	// Folder is a created tag/folder record as returned by the backend.
	Folder struct {
		Name string `json:"name"`
	}

	// UpscaleResult reports the outcome of a bulk upscale request:
	// how many images were queued and which filenames were rejected.
	UpscaleResult struct {
		Queued int      `json:"queued"`
		Failed []string `json:"failed"`
	}
)

type (
	// Config holds the application's configuration settings.
	Config struct {
		// Strings first
		APIBaseURL  string `toml:"ApiBaseUrl" json:"ApiBaseUrl"`
		DownloadDir string `toml:"DownloadDir" json:"DownloadDir"`
		ThumbCache  string `toml:"ThumbCache" json:"ThumbCache"`
		LogLevel    string `toml:"LogLevel" json:"LogLevel"`
		LogFormat   string `toml:"LogFormat" json:"LogFormat"`
		// Nested sections
		Gallery GalleryConfig `toml:"Gallery" json:"Gallery"`
		Viewer  ViewerConfig  `toml:"Viewer" json:"Viewer"`
		// Integers
		APIClientTimeoutSec int `toml:"ApiClientTimeoutSec" json:"ApiClientTimeoutSec"`
		ThumbCacheMaxMB     int `toml:"ThumbCacheMaxMB" json:"ThumbCacheMaxMB"`
		// Bools (smallest)
		LogApiRequests bool `toml:"LogApiRequests" json:"LogApiRequests"`
		NoThumbCache   bool `toml:"NoThumbCache" json:"NoThumbCache"`
	}

	// GalleryConfig holds settings for the gallery grid.
	GalleryConfig struct {
		Folder    string `toml:"Folder"`
		Sort      string `toml:"Sort"`
		PageLimit int    `toml:"PageLimit"`
		CacheSize int    `toml:"CacheSize"` // decoded images kept in memory
	}

	// ViewerConfig holds settings for the full-screen viewer.
	ViewerConfig struct {
		ZoomFactor   float64 `toml:"ZoomFactor"`
		PreloadAhead int     `toml:"PreloadAhead"`
		PreloadBack  int     `toml:"PreloadBack"`
	}
)
