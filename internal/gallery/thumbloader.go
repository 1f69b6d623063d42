package gallery

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// ThumbPhase is the lifecycle of one thumbnail slot.
type ThumbPhase int

const (
	ThumbLoading ThumbPhase = iota
	ThumbRetryWait
	ThumbLoaded
	ThumbFailed
)

const (
	// ThumbMaxAttempts bounds the attempts per URL before giving up on it.
	ThumbMaxAttempts = 2
	// ThumbRetryDelay separates attempts at the same URL.
	ThumbRetryDelay = time.Second
)

type thumbEntry struct {
	phase    ThumbPhase
	url      string
	fallback string
	fails    int
	retryAt  time.Time
}

// ThumbLoader drives the retry/fallback chain for thumbnail loads. A
// failing thumbnail URL is retried with a fixed backoff; once its
// attempts are spent the loader falls back to the full-resolution URL
// with a fresh attempt counter, and only when that is spent too does the
// slot become a permanent error. The attempt counter is local to one
// (filename, URL) chain.
//
// The loader never performs I/O itself: start kicks an asynchronous
// load, and the owner reports the outcome via Loaded/Failed.
type ThumbLoader struct {
	entries map[string]*thumbEntry
	start   func(filename, url string)
}

// NewThumbLoader creates a loader that begins each load attempt by
// calling start.
func NewThumbLoader(start func(filename, url string)) *ThumbLoader {
	return &ThumbLoader{
		entries: make(map[string]*thumbEntry),
		start:   start,
	}
}

// Request begins loading a thumbnail when it first becomes visible.
// Repeat requests for a known filename are no-ops.
func (l *ThumbLoader) Request(filename, thumbURL, fullURL string) {
	if _, ok := l.entries[filename]; ok {
		return
	}
	if thumbURL == "" {
		l.entries[filename] = &thumbEntry{phase: ThumbFailed}
		return
	}
	fallback := fullURL
	if fallback == thumbURL {
		fallback = ""
	}
	l.entries[filename] = &thumbEntry{phase: ThumbLoading, url: thumbURL, fallback: fallback}
	l.start(filename, thumbURL)
}

// Loaded records a successful load. Results for a URL the slot has
// already moved past are ignored.
func (l *ThumbLoader) Loaded(filename, url string) {
	e := l.entries[filename]
	if e == nil || e.url != url || e.phase == ThumbFailed {
		return
	}
	e.phase = ThumbLoaded
}

// Failed records a failed attempt and schedules the next step of the
// retry/fallback chain.
func (l *ThumbLoader) Failed(filename, url string, now time.Time) {
	e := l.entries[filename]
	if e == nil || e.url != url || e.phase == ThumbLoaded || e.phase == ThumbFailed {
		return
	}
	e.fails++
	if e.fails < ThumbMaxAttempts {
		e.phase = ThumbRetryWait
		e.retryAt = now.Add(ThumbRetryDelay)
		log.Debugf("Thumbnail %s failed, retrying (%d/%d)", filename, e.fails, ThumbMaxAttempts)
		return
	}
	if e.fallback != "" && e.fallback != e.url {
		log.Debugf("Thumbnail %s exhausted, falling back to full image", filename)
		e.url = e.fallback
		e.fallback = ""
		e.fails = 0
		e.phase = ThumbLoading
		l.start(filename, e.url)
		return
	}
	log.Warnf("Image %s failed to load permanently", filename)
	e.phase = ThumbFailed
}

// Tick starts any retries whose backoff has elapsed.
func (l *ThumbLoader) Tick(now time.Time) {
	for filename, e := range l.entries {
		if e.phase == ThumbRetryWait && !now.Before(e.retryAt) {
			e.phase = ThumbLoading
			l.start(filename, e.url)
		}
	}
}

// Phase returns the slot's current phase.
func (l *ThumbLoader) Phase(filename string) (ThumbPhase, bool) {
	e, ok := l.entries[filename]
	if !ok {
		return 0, false
	}
	return e.phase, true
}

// CurrentURL returns the URL the slot is currently bound to.
func (l *ThumbLoader) CurrentURL(filename string) string {
	if e, ok := l.entries[filename]; ok {
		return e.url
	}
	return ""
}

// Forget drops a slot so a future Request starts a fresh chain. Used
// when a card leaves the working set.
func (l *ThumbLoader) Forget(filename string) {
	delete(l.entries, filename)
}
