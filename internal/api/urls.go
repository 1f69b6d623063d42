package api

import (
	"net/url"
	"strings"
)

// Special folder tokens with dedicated URL rules.
const (
	RootFolder    = "_root"
	InvokeFolder  = "InvokeAI"
	thumbProject  = "thumbs"
	outputProject = "output"
	invokeProject = "invoke"
	ThumbExt      = ".webp"
)

// EncodeFolderPath percent-encodes each segment of a possibly nested
// folder path while keeping the separators. Folder names may contain
// characters that are unsafe in a URL; failing to encode them is a bug,
// not a cosmetic issue.
func EncodeFolderPath(folder string) string {
	parts := strings.Split(folder, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// ThumbURL derives the thumbnail asset URL for an image. Thumbnails live
// under the thumbs base with the thumbnail extension appended to the
// encoded original filename.
func (c *Client) ThumbURL(filename, folder string) string {
	if strings.TrimSpace(filename) == "" {
		return ""
	}
	safe := url.PathEscape(filename) + ThumbExt
	switch folder {
	case RootFolder:
		return c.assetURL(thumbProject, safe)
	case InvokeFolder:
		return c.assetURL(thumbProject, InvokeFolder+"/"+safe)
	default:
		return c.assetURL(thumbProject, EncodeFolderPath(folder)+"/"+safe)
	}
}

// FullURL derives the full-resolution asset URL for an image.
func (c *Client) FullURL(filename, folder string) string {
	if strings.TrimSpace(filename) == "" {
		return ""
	}
	safe := url.PathEscape(filename)
	switch folder {
	case RootFolder:
		return c.assetURL(outputProject, safe)
	case InvokeFolder:
		return c.assetURL(invokeProject, safe)
	default:
		return c.assetURL(outputProject, EncodeFolderPath(folder)+"/"+safe)
	}
}

func (c *Client) assetURL(base, rest string) string {
	return c.BaseURL + "/" + base + "/" + rest
}

// deletePath builds the path suffix for the delete endpoint. The root
// folder deletes at the top level; every other folder contributes its
// encoded segments before the filename.
func deletePath(filename, folder string) string {
	safe := url.PathEscape(filename)
	if folder == "" || folder == RootFolder {
		return safe
	}
	return EncodeFolderPath(folder) + "/" + safe
}
