package api

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// LoggingTransport wraps an http.RoundTripper and logs each request's
// method, URL, status, and duration at debug level. Enabled via the
// LogApiRequests config switch.
type LoggingTransport struct {
	Transport http.RoundTripper
}

// NewLoggingTransport creates a LoggingTransport around the given
// transport, falling back to http.DefaultTransport when nil.
func NewLoggingTransport(transport http.RoundTripper) *LoggingTransport {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &LoggingTransport{Transport: transport}
}

// RoundTrip executes a single HTTP transaction, logging details.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.Transport.RoundTrip(req)
	duration := time.Since(start)

	entry := log.WithFields(log.Fields{
		"method":   req.Method,
		"url":      req.URL.String(),
		"duration": duration.Round(time.Millisecond).String(),
	})
	if err != nil {
		entry.WithError(err).Debug("API request failed")
		return resp, err
	}
	entry.WithField("status", resp.StatusCode).Debug("API request")
	return resp, nil
}
