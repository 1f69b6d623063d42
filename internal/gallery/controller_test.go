package gallery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"mediapilot/internal/api"
	"mediapilot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *stubNotifier) Notify(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *stubNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.messages))
	copy(out, n.messages)
	return out
}

func newTestController(t *testing.T, handler http.Handler) (*Controller, *stubNotifier, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := api.NewClient(server.URL, server.Client())
	notifier := &stubNotifier{}
	state := NewState("_root", "newest")
	ctrl := NewController(client, state, notifier, 50, t.TempDir())
	return ctrl, notifier, server
}

func imagesHandler(totalPages int, perPage int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		var imgs []models.ImageRecord
		if page <= totalPages {
			for i := 0; i < perPage; i++ {
				imgs = append(imgs, models.ImageRecord{Filename: fmt.Sprintf("p%d-%d.png", page, i)})
			}
		}
		_ = json.NewEncoder(w).Encode(models.ImagePage{Images: imgs, Page: page, Pages: totalPages})
	}
}

func TestLoadNextPage_PaginationTermination(t *testing.T) {
	requests := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/images", func(w http.ResponseWriter, r *http.Request) {
		requests++
		imagesHandler(3, 2)(w, r)
	})
	ctrl, _, _ := newTestController(t, mux)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, ctrl.LoadNextPage(ctx))
	}

	ctrl.Access(func(s *State) {
		assert.Equal(t, 6, s.Len())
		assert.True(t, s.IsEnd())
	})
	assert.Equal(t, 3, requests)

	// At the end, further scroll triggers must not fetch page 4.
	require.NoError(t, ctrl.LoadNextPage(ctx))
	require.NoError(t, ctrl.LoadNextPage(ctx))
	assert.Equal(t, 3, requests)
}

func TestLoadNextPage_ConcurrentTriggerIsNoop(t *testing.T) {
	release := make(chan struct{})
	requests := make(chan struct{}, 8)
	mux := http.NewServeMux()
	mux.HandleFunc("/images", func(w http.ResponseWriter, r *http.Request) {
		requests <- struct{}{}
		<-release
		imagesHandler(1, 1)(w, r)
	})
	ctrl, _, _ := newTestController(t, mux)

	done := make(chan struct{})
	go func() {
		_ = ctrl.LoadNextPage(context.Background())
		close(done)
	}()
	<-requests // first fetch is in flight

	// The guard makes this an immediate no-op rather than a second fetch.
	require.NoError(t, ctrl.LoadNextPage(context.Background()))
	assert.Empty(t, requests)

	close(release)
	<-done
	ctrl.Access(func(s *State) { assert.Equal(t, 1, s.Len()) })
}

func TestLoadNextPage_StaleGenerationDiscarded(t *testing.T) {
	release := make(chan struct{})
	inFlight := make(chan struct{}, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/images", func(w http.ResponseWriter, r *http.Request) {
		inFlight <- struct{}{}
		<-release
		imagesHandler(3, 2)(w, r)
	})
	ctrl, _, _ := newTestController(t, mux)

	done := make(chan struct{})
	go func() {
		_ = ctrl.LoadNextPage(context.Background())
		close(done)
	}()
	<-inFlight

	// The user changes the query while page 1 is still in flight.
	ctrl.Access(func(s *State) {
		s.Query.Folder = "cats"
		s.Reset()
	})

	close(release)
	<-done

	ctrl.Access(func(s *State) {
		assert.Zero(t, s.Len(), "a stale response must not repopulate a reset gallery")
	})
	assert.False(t, ctrl.Loading(), "the reset cleared the loading guard for the new query")
}

func TestSetFilter_NoNetwork(t *testing.T) {
	requests := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/images", func(w http.ResponseWriter, r *http.Request) {
		requests++
		_ = json.NewEncoder(w).Encode(models.ImagePage{
			Images: []models.ImageRecord{{Filename: "a.png", Liked: true}, {Filename: "b.png"}},
			Page:   1, Pages: 1,
		})
	})
	ctrl, _, _ := newTestController(t, mux)
	require.NoError(t, ctrl.LoadNextPage(context.Background()))
	require.Equal(t, 1, requests)

	ctrl.SetFilter(FilterLiked)
	ctrl.SetFilter(FilterUnliked)
	ctrl.SetFilter(FilterAll)

	assert.Equal(t, 1, requests, "filter toggles are purely client-side")
	ctrl.Access(func(s *State) {
		s.Filter = FilterLiked
		require.Len(t, s.Visible(), 1)
		assert.Equal(t, "a.png", s.Visible()[0].Filename)
	})
}

func TestToggleLike_Optimistic(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/like/", func(w http.ResponseWriter, r *http.Request) {})
	ctrl, notifier, _ := newTestController(t, mux)
	ctrl.Access(func(s *State) { s.AppendPage(pageOf(1, 1, "a.png")) })

	ctrl.ToggleLike(context.Background(), "a.png")

	ctrl.Access(func(s *State) { assert.True(t, s.Record("a.png").Liked) })
	assert.Empty(t, notifier.all())
}

func TestToggleLike_RollbackOnFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/like/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	ctrl, notifier, _ := newTestController(t, mux)
	ctrl.Access(func(s *State) { s.AppendPage(pageOf(1, 1, "a.png")) })

	ctrl.ToggleLike(context.Background(), "a.png")

	ctrl.Access(func(s *State) {
		assert.False(t, s.Record("a.png").Liked, "failed like reverts to the pre-optimistic state")
	})
	assert.Equal(t, []string{"Failed to update like"}, notifier.all())
}

func TestDelete_NonOptimistic(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/image/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	ctrl, notifier, _ := newTestController(t, mux)
	ctrl.Access(func(s *State) { s.AppendPage(pageOf(1, 1, "a.png", "b.png")) })

	err := ctrl.Delete(context.Background(), "a.png")
	require.Error(t, err)

	ctrl.Access(func(s *State) {
		assert.NotNil(t, s.Record("a.png"), "a failed delete leaves the record in place")
		assert.False(t, s.IsDeleted("a.png"))
	})
	assert.Len(t, notifier.all(), 1)
}

func TestDelete_SuccessRemovesAndGuards(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/image/", func(w http.ResponseWriter, r *http.Request) {})
	ctrl, _, _ := newTestController(t, mux)
	ctrl.Access(func(s *State) { s.AppendPage(pageOf(1, 1, "a.png", "b.png")) })

	var removed []string
	ctrl.OnRemove = func(filename string) { removed = append(removed, filename) }

	require.NoError(t, ctrl.Delete(context.Background(), "a.png"))

	ctrl.Access(func(s *State) {
		assert.Nil(t, s.Record("a.png"))
		assert.True(t, s.IsDeleted("a.png"))
		assert.Equal(t, 1, s.Len())
	})
	assert.Equal(t, []string{"a.png"}, removed)
}

func TestApplyTag_PartialFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tag", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("filename") == "b.png" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	})
	ctrl, notifier, _ := newTestController(t, mux)
	ctrl.Access(func(s *State) {
		s.AppendPage(pageOf(1, 1, "a.png", "b.png", "c.png"))
	})

	ctrl.ApplyTag(context.Background(), []string{"a.png", "b.png", "c.png"}, "cats")

	ctrl.Access(func(s *State) {
		assert.Nil(t, s.Record("a.png"), "successfully tagged images leave the working set")
		assert.Nil(t, s.Record("c.png"))
		assert.NotNil(t, s.Record("b.png"), "the failing item stays put")
	})
	require.Len(t, notifier.all(), 1, "exactly one failure notification")
	assert.Contains(t, notifier.all()[0], "b.png")
}

func TestCreateTag_ReservedRejectedBeforeNetwork(t *testing.T) {
	requests := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/folders", func(w http.ResponseWriter, r *http.Request) { requests++ })
	ctrl, notifier, _ := newTestController(t, mux)

	for _, name := range []string{"InvokeAI", "invokeai", "UNTAGGED", "_root"} {
		err := ctrl.CreateTag(context.Background(), name)
		assert.ErrorIs(t, err, api.ErrInvalidInput)
	}

	assert.Zero(t, requests, "reserved names are rejected client-side")
	require.Len(t, notifier.all(), 4)
	assert.Contains(t, notifier.all()[0], "reserved")
}

func TestCreateTag_BlankRejected(t *testing.T) {
	ctrl, notifier, _ := newTestController(t, http.NewServeMux())
	err := ctrl.CreateTag(context.Background(), "   ")
	assert.ErrorIs(t, err, api.ErrInvalidInput)
	require.Len(t, notifier.all(), 1)
}

func TestSearchDebounce(t *testing.T) {
	var mu sync.Mutex
	var searches []string
	mux := http.NewServeMux()
	mux.HandleFunc("/images", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		searches = append(searches, r.URL.Query().Get("search"))
		mu.Unlock()
		imagesHandler(1, 1)(w, r)
	})
	ctrl, _, _ := newTestController(t, mux)

	now := time.Unix(0, 0)
	ctrl.SetSearchInput("c", now)
	ctrl.SetSearchInput("ca", now.Add(100*time.Millisecond))
	ctrl.SetSearchInput("cat", now.Add(200*time.Millisecond))

	// Each keystroke rearms the timer, so nothing fires before the
	// debounce window after the last one.
	ctrl.Tick(now.Add(300 * time.Millisecond))
	mu.Lock()
	assert.Empty(t, searches)
	mu.Unlock()

	ctrl.Tick(now.Add(200*time.Millisecond + SearchDebounce))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(searches) == 1 && searches[0] == "cat"
	}, time.Second, 10*time.Millisecond, "only the final input triggers a fetch")
}

func TestClearSearch_Immediate(t *testing.T) {
	requests := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/images", func(w http.ResponseWriter, r *http.Request) {
		requests++
		imagesHandler(1, 1)(w, r)
	})
	ctrl, _, _ := newTestController(t, mux)

	// Commit a search first so the clear actually changes the query.
	require.NoError(t, ctrl.LoadNextPage(context.Background()))
	ctrl.SetSearchInput("cat", time.Unix(0, 0))
	ctrl.Tick(time.Unix(0, 0).Add(SearchDebounce))
	require.Eventually(t, func() bool { return requests == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, ctrl.ClearSearch(context.Background()))
	assert.Equal(t, 3, requests)
	ctrl.Access(func(s *State) { assert.Empty(t, s.Query.Search) })
}

func TestSelectWithin(t *testing.T) {
	ctrl, _, _ := newTestController(t, http.NewServeMux())
	ctrl.Access(func(s *State) {
		s.AppendPage(pageOf(1, 1, "a.png", "b.png", "c.png"))
		s.ToggleSelect("c.png")
	})

	bounds := map[string]Rect{
		"a.png": {Left: 0, Top: 0, Width: 100, Height: 100},
		"b.png": {Left: 120, Top: 0, Width: 100, Height: 100},
		"c.png": {Left: 240, Top: 0, Width: 100, Height: 100},
	}
	ctrl.SelectWithin(Rect{Left: 50, Top: 50, Width: 120, Height: 20}, bounds)

	ctrl.Access(func(s *State) {
		assert.ElementsMatch(t, []string{"a.png", "b.png"}, s.Selection(),
			"rubber-band replaces the selection with the intersected cards")
	})
}

func TestBulkDownload_WritesArchive(t *testing.T) {
	payload := []byte("zip-bytes")
	mux := http.NewServeMux()
	mux.HandleFunc("/download/bulk", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="batch.zip"`)
		_, _ = w.Write(payload)
	})
	ctrl, notifier, _ := newTestController(t, mux)
	ctrl.Access(func(s *State) {
		s.AppendPage(pageOf(1, 1, "a.png"))
		s.ToggleSelect("a.png")
	})

	require.NoError(t, ctrl.BulkDownload(context.Background()))
	assert.False(t, ctrl.DownloadBusy(), "busy flag released after completion")

	written, err := os.ReadFile(filepath.Join(ctrl.downloadDir, "batch.zip"))
	require.NoError(t, err)
	assert.Equal(t, payload, written)
	require.Len(t, notifier.all(), 1)
	assert.Contains(t, notifier.all()[0], "batch.zip")
}

func TestBulkDownload_BusyReleasedOnFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/download/bulk", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	ctrl, notifier, _ := newTestController(t, mux)
	ctrl.Access(func(s *State) {
		s.AppendPage(pageOf(1, 1, "a.png"))
		s.ToggleSelect("a.png")
	})

	require.Error(t, ctrl.BulkDownload(context.Background()))
	assert.False(t, ctrl.DownloadBusy())
	assert.Len(t, notifier.all(), 1)
}

func TestBulkUpscale_ReportsCounts(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{name: "all queued", body: `{"queued":3,"failed":[]}`, expected: "Queued 3 image(s) for upscaling"},
		{name: "partial", body: `{"queued":2,"failed":["c.png"]}`, expected: "Queued 2 image(s), 1 failed"},
		{name: "none queued", body: `{"queued":0,"failed":["a.png","b.png","c.png"]}`, expected: "Upscale failed for 3 image(s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/upscale/bulk", func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			ctrl, notifier, _ := newTestController(t, mux)
			ctrl.Access(func(s *State) {
				s.AppendPage(pageOf(1, 1, "a.png", "b.png", "c.png"))
				s.SelectRange("a.png")
				s.ReplaceSelection([]string{"a.png", "b.png", "c.png"})
			})

			require.NoError(t, ctrl.BulkUpscale(context.Background()))
			require.Len(t, notifier.all(), 1)
			assert.Equal(t, tt.expected, notifier.all()[0])
		})
	}
}

func TestFolderAndTagOptions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/folders", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(models.FolderList{Folders: []string{"img10", "img2", "cats"}})
	})
	ctrl, _, _ := newTestController(t, mux)
	require.NoError(t, ctrl.LoadFolders(context.Background()))

	assert.Equal(t, []string{"_root", "InvokeAI", "cats", "img2", "img10"}, ctrl.FolderOptions(),
		"special buckets first, then naturally ordered folders")
	assert.Equal(t, []string{"cats", "img2", "img10"}, ctrl.TagOptions())
}
