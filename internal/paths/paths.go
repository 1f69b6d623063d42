// Package paths derives safe local filesystem paths for files whose
// names originate from the backend, such as Content-Disposition
// filenames on bulk download archives.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// illegalChars matches characters that are unsafe in filenames on at
// least one supported platform.
var illegalChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// SanitizeFilename reduces a server-supplied filename to a single safe
// path component. Directory separators and reserved characters become
// underscores; an empty or dot-only result falls back to fallback.
func SanitizeFilename(name, fallback string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = illegalChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, ". ")
	if name == "" || name == "_" {
		return fallback
	}
	return name
}

// ArchivePath returns where to save a downloaded archive named by the
// server: the sanitized name joined under dir, suffixed with a counter
// when that file already exists so repeated downloads never overwrite
// each other.
func ArchivePath(dir, name, fallback string) (string, error) {
	safe := SanitizeFilename(name, fallback)
	target := filepath.Join(dir, safe)

	// Join with a sanitized base cannot escape dir, but verify anyway.
	if !strings.HasPrefix(filepath.Clean(target), filepath.Clean(dir)) {
		return "", fmt.Errorf("archive name %q escapes download directory", name)
	}

	if _, err := os.Stat(target); os.IsNotExist(err) {
		return target, nil
	}

	ext := filepath.Ext(safe)
	stem := strings.TrimSuffix(safe, ext)
	for i := 1; i < 1000; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free filename for %q in %s", safe, dir)
}
