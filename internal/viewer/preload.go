package viewer

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

const preloadQueueSize = 32

// Preloader warms upcoming full-resolution images in the background so
// modal navigation lands on already-decoded neighbors. Each URL is
// fetched at most once until forgotten; fetches run on a single worker
// goroutine so preloading never competes with the foreground load.
type Preloader struct {
	mu        sync.Mutex
	requested map[string]struct{}
	requests  chan string
	fetch     func(url string)
	ahead     int
	back      int
	closeOnce sync.Once
	done      chan struct{}
}

// NewPreloader starts a preload worker calling fetch for each queued
// URL. ahead and back bound how many neighbors on each side of the
// current image are warmed.
func NewPreloader(fetch func(url string), ahead, back int) *Preloader {
	if ahead < 0 {
		ahead = 0
	}
	if back < 0 {
		back = 0
	}
	p := &Preloader{
		requested: make(map[string]struct{}),
		requests:  make(chan string, preloadQueueSize),
		fetch:     fetch,
		ahead:     ahead,
		back:      back,
		done:      make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Preloader) run() {
	for {
		select {
		case url := <-p.requests:
			p.fetch(url)
		case <-p.done:
			return
		}
	}
}

// Preload queues a single URL unless it was already requested.
func (p *Preloader) Preload(url string) {
	if url == "" {
		return
	}
	p.mu.Lock()
	if _, ok := p.requested[url]; ok {
		p.mu.Unlock()
		return
	}
	p.requested[url] = struct{}{}
	p.mu.Unlock()

	select {
	case p.requests <- url:
	default:
		// Queue is full; drop the request and allow a retry later.
		p.mu.Lock()
		delete(p.requested, url)
		p.mu.Unlock()
		log.Debugf("Preload queue full, dropping %s", url)
	}
}

// PreloadAround warms neighbors of index in urls, nearest first,
// alternating ahead of the current position before behind it.
func (p *Preloader) PreloadAround(urls []string, index int) {
	for off := 1; off <= p.ahead; off++ {
		if i := index + off; i >= 0 && i < len(urls) {
			p.Preload(urls[i])
		}
	}
	for off := 1; off <= p.back; off++ {
		if i := index - off; i >= 0 && i < len(urls) {
			p.Preload(urls[i])
		}
	}
}

// Forget clears the requested marker for url so a later Preload fetches
// it again. Used after a delete invalidates cached bytes.
func (p *Preloader) Forget(url string) {
	p.mu.Lock()
	delete(p.requested, url)
	p.mu.Unlock()
}

// Requested reports whether url has been queued and not forgotten.
func (p *Preloader) Requested(url string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.requested[url]
	return ok
}

// Close stops the worker goroutine.
func (p *Preloader) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}
