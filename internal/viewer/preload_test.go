package viewer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fetchRecorder struct {
	mu   sync.Mutex
	urls []string
}

func (f *fetchRecorder) fetch(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
}

func (f *fetchRecorder) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.urls))
	copy(out, f.urls)
	return out
}

func TestPreloader_DedupesRequests(t *testing.T) {
	rec := &fetchRecorder{}
	p := NewPreloader(rec.fetch, 3, 2)
	defer p.Close()

	p.Preload("http://host/a.png")
	p.Preload("http://host/a.png")
	p.Preload("http://host/b.png")

	assert.Eventually(t, func() bool {
		return len(rec.all()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"http://host/a.png", "http://host/b.png"}, rec.all())
	assert.True(t, p.Requested("http://host/a.png"))
}

func TestPreloader_ForgetAllowsRefetch(t *testing.T) {
	rec := &fetchRecorder{}
	p := NewPreloader(rec.fetch, 3, 2)
	defer p.Close()

	p.Preload("http://host/a.png")
	assert.Eventually(t, func() bool { return len(rec.all()) == 1 }, time.Second, 5*time.Millisecond)

	p.Forget("http://host/a.png")
	assert.False(t, p.Requested("http://host/a.png"))

	p.Preload("http://host/a.png")
	assert.Eventually(t, func() bool { return len(rec.all()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestPreloader_PreloadAroundBounds(t *testing.T) {
	rec := &fetchRecorder{}
	p := NewPreloader(rec.fetch, 3, 2)
	defer p.Close()

	urls := []string{"u0", "u1", "u2", "u3", "u4", "u5"}

	// Index 4: only u5 lies ahead; u3 and u2 lie behind.
	p.PreloadAround(urls, 4)
	assert.Eventually(t, func() bool { return len(rec.all()) == 3 }, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"u5", "u3", "u2"}, rec.all())

	// Index 0 of a fresh list: nothing behind, three ahead.
	rec2 := &fetchRecorder{}
	p2 := NewPreloader(rec2.fetch, 3, 2)
	defer p2.Close()
	p2.PreloadAround(urls, 0)
	assert.Eventually(t, func() bool { return len(rec2.all()) == 3 }, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"u1", "u2", "u3"}, rec2.all())
}

func TestPreloader_EmptyURLIgnored(t *testing.T) {
	rec := &fetchRecorder{}
	p := NewPreloader(rec.fetch, 1, 1)
	defer p.Close()

	p.Preload("")
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.all())
}
