package ui

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	log "github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"

	"mediapilot/internal/thumbcache"
)

// maxImageBytes caps a single downloaded asset.
const maxImageBytes = 64 << 20

type loadResult struct {
	url string
	img *ebiten.Image
	err error
}

// ImageStore downloads and decodes gallery assets into an LRU of GPU
// textures. Fetches run in goroutines; completions queue on a channel
// that the game loop drains, so cache writes and callbacks happen on
// the update goroutine. Thumbnail bytes are mirrored to a persistent
// disk cache keyed by URL.
type ImageStore struct {
	client *http.Client
	cache  *lru.Cache[string, *ebiten.Image]
	disk   *thumbcache.Cache

	mu      sync.Mutex
	pending map[string]struct{}
	results chan loadResult
}

// NewImageStore creates a store holding up to cacheSize decoded images.
// disk may be nil to skip the persistent thumbnail layer.
func NewImageStore(client *http.Client, cacheSize int, disk *thumbcache.Cache) *ImageStore {
	if client == nil {
		client = http.DefaultClient
	}
	if cacheSize < 1 {
		cacheSize = 16
	}
	cache, err := lru.NewWithEvict[string, *ebiten.Image](cacheSize, func(_ string, img *ebiten.Image) {
		if img != nil {
			img.Deallocate()
		}
	})
	if err != nil {
		log.WithError(err).Error("Failed to create image cache")
		cache, _ = lru.NewWithEvict[string, *ebiten.Image](16, func(_ string, img *ebiten.Image) {
			if img != nil {
				img.Deallocate()
			}
		})
	}
	return &ImageStore{
		client:  client,
		cache:   cache,
		disk:    disk,
		pending: make(map[string]struct{}),
		results: make(chan loadResult, 64),
	}
}

// Get returns the decoded image for url when it is already cached.
func (s *ImageStore) Get(url string) (*ebiten.Image, bool) {
	return s.cache.Get(url)
}

// Request starts an asynchronous fetch of url unless one is cached or
// already in flight. cacheToDisk mirrors the downloaded bytes to the
// persistent thumbnail cache.
func (s *ImageStore) Request(url string, cacheToDisk bool) {
	if url == "" || s.cache.Contains(url) {
		return
	}
	s.mu.Lock()
	if _, busy := s.pending[url]; busy {
		s.mu.Unlock()
		return
	}
	s.pending[url] = struct{}{}
	s.mu.Unlock()

	go func() {
		img, err := s.fetchDecode(url, cacheToDisk)
		s.results <- loadResult{url: url, img: img, err: err}
	}()
}

// Fetch downloads and decodes url synchronously, queueing the result
// like Request does. It is the preload worker's entry point.
func (s *ImageStore) Fetch(url string) {
	if url == "" || s.cache.Contains(url) {
		return
	}
	s.mu.Lock()
	if _, busy := s.pending[url]; busy {
		s.mu.Unlock()
		return
	}
	s.pending[url] = struct{}{}
	s.mu.Unlock()

	img, err := s.fetchDecode(url, false)
	s.results <- loadResult{url: url, img: img, err: err}
}

func (s *ImageStore) fetchDecode(url string, cacheToDisk bool) (*ebiten.Image, error) {
	if data, err := s.disk.Get(url); err == nil {
		if img, derr := decodeImage(data); derr == nil {
			return img, nil
		}
		// Corrupt cache entry; drop it and refetch.
		s.disk.Delete(url)
	}

	resp, err := s.client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}

	img, err := decodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", url, err)
	}
	if cacheToDisk {
		if err := s.disk.Put(url, data); err != nil {
			log.WithError(err).Debugf("Failed to cache thumbnail %s", url)
		}
	}
	return img, nil
}

func decodeImage(data []byte) (*ebiten.Image, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return ebiten.NewImageFromImage(src), nil
}

// Drain applies completed fetches: successful decodes enter the LRU,
// and onDone fires once per completion either way. Call once per
// update tick.
func (s *ImageStore) Drain(onDone func(url string, err error)) {
	for {
		select {
		case res := <-s.results:
			s.mu.Lock()
			delete(s.pending, res.url)
			s.mu.Unlock()
			if res.err == nil {
				s.cache.Add(res.url, res.img)
			} else {
				log.WithError(res.err).Debug("Image load failed")
			}
			if onDone != nil {
				onDone(res.url, res.err)
			}
		default:
			return
		}
	}
}

// Invalidate drops url from both cache layers.
func (s *ImageStore) Invalidate(url string) {
	s.cache.Remove(url)
	s.disk.Delete(url)
}
