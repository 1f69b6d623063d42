package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mediapilot/internal/models"

	log "github.com/sirupsen/logrus"
)

// Custom Error Types
var (
	ErrInvalidInput = errors.New("invalid request input")
	ErrRateLimited  = errors.New("API rate limit exceeded")
	ErrUnauthorized = errors.New("API request unauthorized")
	ErrNotFound     = errors.New("API resource not found")
	ErrServerError  = errors.New("API server error")
	ErrConnection   = errors.New("API connection failed")
)

// DefaultDownloadName is used when the bulk download response carries no
// usable Content-Disposition filename.
const DefaultDownloadName = "mediapilot-selection.zip"

// ImageQuery describes one page request against the image listing endpoint.
type ImageQuery struct {
	Page   int
	Limit  int
	Folder string
	Sort   string
	Search string
}

// Client struct for interacting with the MediaPilot backend API
type Client struct {
	BaseURL    string
	HttpClient *http.Client // Use a shared client
}

// NewClient creates a new API client. The base URL is the backend mount
// point, e.g. "http://127.0.0.1:9000/mediapilot".
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HttpClient: httpClient,
	}
}

// FetchFolders lists all folders/tags known to the backend.
func (c *Client) FetchFolders(ctx context.Context) ([]string, error) {
	var list models.FolderList
	if err := c.getJSON(ctx, c.BaseURL+"/folders", &list); err != nil {
		return nil, err
	}
	return list.Folders, nil
}

// CreateTag creates a new folder/tag. A blank name is rejected before
// any network call.
func (c *Client) CreateTag(ctx context.Context, name string) (models.Folder, error) {
	if strings.TrimSpace(name) == "" {
		return models.Folder{}, fmt.Errorf("%w: tag name must not be blank", ErrInvalidInput)
	}
	var created models.Folder
	payload := map[string]string{"name": name}
	if err := c.postJSON(ctx, c.BaseURL+"/folders", payload, &created); err != nil {
		return models.Folder{}, err
	}
	return created, nil
}

// FetchImages fetches one page of the image listing for the given query.
func (c *Client) FetchImages(ctx context.Context, q ImageQuery) (models.ImagePage, error) {
	if q.Page < 1 || q.Limit < 1 {
		return models.ImagePage{}, fmt.Errorf("%w: page and limit must be positive", ErrInvalidInput)
	}
	if q.Folder == "" || q.Sort == "" {
		return models.ImagePage{}, fmt.Errorf("%w: folder and sort are required", ErrInvalidInput)
	}

	values := url.Values{}
	values.Add("page", fmt.Sprintf("%d", q.Page))
	values.Add("limit", fmt.Sprintf("%d", q.Limit))
	values.Add("folder", q.Folder)
	values.Add("sort", q.Sort)
	if q.Search != "" {
		values.Add("search", q.Search)
	}

	var page models.ImagePage
	reqURL := fmt.Sprintf("%s/images?%s", c.BaseURL, values.Encode())
	if err := c.getJSON(ctx, reqURL, &page); err != nil {
		return models.ImagePage{}, err
	}
	return page, nil
}

// SendLike sets or clears the liked flag for a single image.
func (c *Client) SendLike(ctx context.Context, filename string, liked bool) error {
	if filename == "" {
		return fmt.Errorf("%w: filename is required", ErrInvalidInput)
	}
	endpoint := "unlike"
	if liked {
		endpoint = "like"
	}
	reqURL := fmt.Sprintf("%s/%s/%s", c.BaseURL, endpoint, url.PathEscape(filename))
	return c.postJSON(ctx, reqURL, nil, nil)
}

// SendTag moves an image from one folder to another.
func (c *Client) SendTag(ctx context.Context, filename, oldFolder, newFolder string) error {
	if filename == "" || oldFolder == "" || newFolder == "" {
		return fmt.Errorf("%w: filename, old_folder and new_folder are required", ErrInvalidInput)
	}
	values := url.Values{}
	values.Add("filename", filename)
	values.Add("old_folder", oldFolder)
	values.Add("new_folder", newFolder)
	reqURL := fmt.Sprintf("%s/tag?%s", c.BaseURL, values.Encode())
	return c.postJSON(ctx, reqURL, nil, nil)
}

// DeleteImage deletes a single image. The root folder maps to a
// root-level path; any other folder is inserted segment by segment so
// nested folder names survive intact.
func (c *Client) DeleteImage(ctx context.Context, filename, folder string) error {
	if filename == "" {
		return fmt.Errorf("%w: filename is required", ErrInvalidInput)
	}
	reqURL := c.BaseURL + "/image/" + deletePath(filename, folder)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, reqURL, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrConnection, err)
	}
	defer drainClose(resp.Body)
	return statusError(resp)
}

// DownloadBulk requests a zip of the given filenames and returns the raw
// archive bytes plus the filename the server suggested.
func (c *Client) DownloadBulk(ctx context.Context, folder string, filenames []string) ([]byte, string, error) {
	if len(filenames) == 0 {
		return nil, "", fmt.Errorf("%w: no filenames given", ErrInvalidInput)
	}
	payload := map[string]interface{}{"folder": folder, "filenames": filenames}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("error encoding request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/download/bulk", bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s", ErrConnection, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, "", err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("error reading download body: %w", err)
	}
	return data, DispositionFilename(resp.Header.Get("Content-Disposition")), nil
}

// UpscaleBulk queues the given filenames for upscaling. A non-2xx
// response surfaces the server's detail message when one is present.
func (c *Client) UpscaleBulk(ctx context.Context, folder string, filenames []string) (models.UpscaleResult, error) {
	if len(filenames) == 0 {
		return models.UpscaleResult{}, fmt.Errorf("%w: no filenames given", ErrInvalidInput)
	}
	payload := map[string]interface{}{"folder": folder, "filenames": filenames}
	body, err := json.Marshal(payload)
	if err != nil {
		return models.UpscaleResult{}, fmt.Errorf("error encoding request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/upscale/bulk", bytes.NewReader(body))
	if err != nil {
		return models.UpscaleResult{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return models.UpscaleResult{}, fmt.Errorf("%w: %s", ErrConnection, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.UpscaleResult{}, fmt.Errorf("error reading response body: %w", err)
	}

	if sErr := statusErrorCode(resp.StatusCode); sErr != nil {
		// Prefer the backend's own explanation when it sent one.
		var detail struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(raw, &detail) == nil && detail.Detail != "" {
			return models.UpscaleResult{}, fmt.Errorf("%w: %s", sErr, detail.Detail)
		}
		return models.UpscaleResult{}, fmt.Errorf("%w: upscale failed for %d image(s)", sErr, len(filenames))
	}

	var result models.UpscaleResult
	if err := json.Unmarshal(raw, &result); err != nil {
		log.Debugf("Response body causing unmarshal error: %s", string(raw))
		return models.UpscaleResult{}, fmt.Errorf("error unmarshalling response JSON: %w", err)
	}
	return result, nil
}

// DispositionFilename extracts the download filename from a
// Content-Disposition header. The RFC 5987 filename* form is preferred,
// then the plain quoted form; an unusable header yields the default name.
func DispositionFilename(header string) string {
	if header == "" {
		return DefaultDownloadName
	}
	if _, params, err := mime.ParseMediaType(header); err == nil {
		if name := params["filename"]; name != "" {
			return name
		}
	}
	return DefaultDownloadName
}

// getJSON performs a GET request and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, reqURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		log.WithError(err).Errorf("Error creating request for %s", reqURL)
		return fmt.Errorf("error creating request: %w", err)
	}
	return c.doJSON(req, out)
}

// postJSON performs a POST request with an optional JSON body and
// decodes the JSON response into out when out is non-nil.
func (c *Client) postJSON(ctx context.Context, reqURL string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("error encoding request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, body)
	if err != nil {
		log.WithError(err).Errorf("Error creating request for %s", reqURL)
		return fmt.Errorf("error creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out interface{}) error {
	resp, err := c.HttpClient.Do(req) // Transport will log if enabled
	if err != nil {
		return fmt.Errorf("%w: %s", ErrConnection, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		log.Debugf("Response body causing unmarshal error: %s", string(raw))
		return fmt.Errorf("error unmarshalling response JSON: %w", err)
	}
	return nil
}

// statusError maps a non-2xx response to one of the sentinel errors.
func statusError(resp *http.Response) error {
	return statusErrorCode(resp.StatusCode)
}

func statusErrorCode(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrUnauthorized
	case code == http.StatusNotFound:
		return ErrNotFound
	case code >= 500:
		return fmt.Errorf("%w (status code %d)", ErrServerError, code)
	default:
		return fmt.Errorf("API request failed with status %d", code)
	}
}

// drainClose drains and closes a body so the connection can be reused.
func drainClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	body.Close()
}
