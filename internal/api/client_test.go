package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:9000/mediapilot/", nil)

	assert.Equal(t, "http://localhost:9000/mediapilot", client.BaseURL, "trailing slash should be trimmed")
	require.NotNil(t, client.HttpClient)
	assert.Equal(t, 30*time.Second, client.HttpClient.Timeout)
}

func TestFetchImages_InvalidInput(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())

	tests := []struct {
		name  string
		query ImageQuery
	}{
		{name: "zero page", query: ImageQuery{Page: 0, Limit: 50, Folder: "_root", Sort: "newest"}},
		{name: "negative page", query: ImageQuery{Page: -1, Limit: 50, Folder: "_root", Sort: "newest"}},
		{name: "zero limit", query: ImageQuery{Page: 1, Limit: 0, Folder: "_root", Sort: "newest"}},
		{name: "missing folder", query: ImageQuery{Page: 1, Limit: 50, Sort: "newest"}},
		{name: "missing sort", query: ImageQuery{Page: 1, Limit: 50, Folder: "_root"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.FetchImages(context.Background(), tt.query)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.Zero(t, requests, "invalid input must be rejected before any network call")
}

func TestFetchImages_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "50", q.Get("limit"))
		assert.Equal(t, "_root", q.Get("folder"))
		assert.Equal(t, "newest", q.Get("sort"))
		assert.Equal(t, "cat", q.Get("search"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"images":[{"filename":"a.png","liked":true},{"filename":"b.png"}],"page":2,"pages":7}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	page, err := client.FetchImages(context.Background(), ImageQuery{
		Page: 2, Limit: 50, Folder: "_root", Sort: "newest", Search: "cat",
	})

	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 7, page.Pages)
	require.Len(t, page.Images, 2)
	assert.Equal(t, "a.png", page.Images[0].Filename)
	assert.True(t, page.Images[0].Liked)
}

func TestFetchImages_SearchOmittedWhenEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present := r.URL.Query()["search"]
		assert.False(t, present, "empty search must not appear in the query string")
		_, _ = w.Write([]byte(`{"images":[],"page":1,"pages":0}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	_, err := client.FetchImages(context.Background(), ImageQuery{Page: 1, Limit: 50, Folder: "_root", Sort: "newest"})
	require.NoError(t, err)
}

func TestStatusErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "not found", status: http.StatusNotFound, want: ErrNotFound},
		{name: "unauthorized", status: http.StatusUnauthorized, want: ErrUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, want: ErrUnauthorized},
		{name: "rate limited", status: http.StatusTooManyRequests, want: ErrRateLimited},
		{name: "server error", status: http.StatusInternalServerError, want: ErrServerError},
		{name: "service unavailable", status: http.StatusServiceUnavailable, want: ErrServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewClient(server.URL, server.Client())
			_, err := client.FetchImages(context.Background(), ImageQuery{Page: 1, Limit: 50, Folder: "_root", Sort: "newest"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreateTag_BlankRejected(t *testing.T) {
	client := NewClient("http://unreachable.invalid", nil)

	for _, name := range []string{"", "   ", "\t"} {
		_, err := client.CreateTag(context.Background(), name)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
}

func TestCreateTag_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/folders", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "landscapes", body["name"])

		_, _ = w.Write([]byte(`{"name":"landscapes"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	created, err := client.CreateTag(context.Background(), "landscapes")
	require.NoError(t, err)
	assert.Equal(t, "landscapes", created.Name)
}

func TestSendLike_Paths(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())

	require.NoError(t, client.SendLike(context.Background(), "img 1.png", true))
	assert.Equal(t, "/like/img%201.png", gotPath)

	require.NoError(t, client.SendLike(context.Background(), "img 1.png", false))
	assert.Equal(t, "/unlike/img%201.png", gotPath)
}

func TestSendTag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tag", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "a.png", q.Get("filename"))
		assert.Equal(t, "_root", q.Get("old_folder"))
		assert.Equal(t, "cats/kittens", q.Get("new_folder"))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	require.NoError(t, client.SendTag(context.Background(), "a.png", "_root", "cats/kittens"))
}

func TestDeleteImage_Paths(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		folder   string
		wantPath string
	}{
		{name: "root folder", filename: "a.png", folder: "_root", wantPath: "/image/a.png"},
		{name: "plain folder", filename: "a.png", folder: "cats", wantPath: "/image/cats/a.png"},
		{name: "nested folder", filename: "a.png", folder: "cats/kittens", wantPath: "/image/cats/kittens/a.png"},
		{name: "folder needing encoding", filename: "a b.png", folder: "my cats", wantPath: "/image/my%20cats/a%20b.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotMethod, gotPath string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotMethod = r.Method
				gotPath = r.URL.EscapedPath()
			}))
			defer server.Close()

			client := NewClient(server.URL, server.Client())
			require.NoError(t, client.DeleteImage(context.Background(), tt.filename, tt.folder))
			assert.Equal(t, http.MethodDelete, gotMethod)
			assert.Equal(t, tt.wantPath, gotPath)
		})
	}
}

func TestDeleteImage_ServerErrorSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	err := client.DeleteImage(context.Background(), "a.png", "_root")
	assert.ErrorIs(t, err, ErrServerError)
}

func TestDownloadBulk(t *testing.T) {
	payload := []byte("PK\x03\x04 not a real zip")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/download/bulk", r.URL.Path)

		var body struct {
			Folder    string   `json:"folder"`
			Filenames []string `json:"filenames"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "_root", body.Folder)
		assert.Equal(t, []string{"a.png", "b.png"}, body.Filenames)

		w.Header().Set("Content-Disposition", `attachment; filename*=UTF-8''selection%20%E2%98%BA.zip`)
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	data, name, err := client.DownloadBulk(context.Background(), "_root", []string{"a.png", "b.png"})
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, "selection ☺.zip", name)
}

func TestDownloadBulk_EmptySelection(t *testing.T) {
	client := NewClient("http://unreachable.invalid", nil)
	_, _, err := client.DownloadBulk(context.Background(), "_root", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDispositionFilename(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{
			name:   "extended utf8 form preferred",
			header: `attachment; filename="fallback.zip"; filename*=UTF-8''real%20name.zip`,
			want:   "real name.zip",
		},
		{
			name:   "plain quoted form",
			header: `attachment; filename="selection.zip"`,
			want:   "selection.zip",
		},
		{
			name:   "missing header",
			header: "",
			want:   DefaultDownloadName,
		},
		{
			name:   "unparseable header",
			header: `;;;`,
			want:   DefaultDownloadName,
		},
		{
			name:   "no filename parameter",
			header: `attachment`,
			want:   DefaultDownloadName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DispositionFilename(tt.header))
		})
	}
}

func TestUpscaleBulk_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upscale/bulk", r.URL.Path)
		_, _ = w.Write([]byte(`{"queued":2,"failed":["c.png"]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	result, err := client.UpscaleBulk(context.Background(), "_root", []string{"a.png", "b.png", "c.png"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Queued)
	assert.Equal(t, []string{"c.png"}, result.Failed)
}

func TestUpscaleBulk_DetailMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"upscaler offline"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	_, err := client.UpscaleBulk(context.Background(), "_root", []string{"a.png"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServerError)
	assert.Contains(t, err.Error(), "upscaler offline")
}

func TestUpscaleBulk_SynthesizedMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	_, err := client.UpscaleBulk(context.Background(), "_root", []string{"a.png", "b.png"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 image(s)")
}
