// Package sysquery answers questions about the local machine (time, date,
// host facts, connectivity) without any inference call.

package sysquery

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Answer is a locally resolved response.
type Answer struct {
	Description string `json:"description"`
	// SystemQuery marks the answer as resolved without inference.
	SystemQuery bool `json:"system_query"`
}

// Resolver decides whether a request is a local system query and answers
// it. A nil Answer means the request is not a system query and the caller
// should continue down the pipeline.
type Resolver interface {
	Resolve(ctx context.Context, query string) *Answer
}

// Local resolves system queries against the running host.
type Local struct {
	httpClient *http.Client
	now        func() time.Time
	log        zerolog.Logger
}

// NewLocal creates a host-backed resolver.
func NewLocal(log zerolog.Logger) *Local {
	return &Local{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		now:        time.Now,
		log:        log,
	}
}

// Resolve matches the query against the known system intents. Matching is
// keyword-based on the lowercased query, first intent wins.
func (l *Local) Resolve(ctx context.Context, query string) *Answer {
	q := strings.ToLower(strings.TrimSpace(query))

	switch {
	case containsAny(q, "what time", "current time", "time is it"):
		return &Answer{
			Description: "The current time is " + l.now().Format("2006-01-02 15:04:05"),
			SystemQuery: true,
		}

	case containsAny(q, "what date", "what day", "today's date", "date today"):
		return &Answer{
			Description: "Today's date is " + l.now().Format("Monday, January 2, 2006"),
			SystemQuery: true,
		}

	case strings.Contains(q, "internet") && containsAny(q, "check", "connected", "connection"):
		status := "not connected"
		if l.internetReachable(ctx) {
			status = "connected"
		}
		return &Answer{Description: "Internet is " + status, SystemQuery: true}

	case containsAny(q, "system info", "system information", "computer info"):
		return &Answer{Description: l.systemInfo(), SystemQuery: true}

	case strings.HasPrefix(q, "search for ") || strings.HasPrefix(q, "look up "):
		topic := strings.TrimPrefix(strings.TrimPrefix(q, "search for "), "look up ")
		return &Answer{Description: "Search URL: " + SearchURL(topic), SystemQuery: true}
	}

	return nil
}

// SearchURL synthesizes a web search URL for a topic.
func SearchURL(topic string) string {
	return "https://www.google.com/search?q=" + url.QueryEscape(strings.TrimSpace(topic))
}

func (l *Local) internetReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, "https://www.google.com", nil)
	if err != nil {
		return false
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		l.log.Debug().Err(err).Msg("connectivity probe failed")
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

func (l *Local) systemInfo() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("System Information:\nos: %s\narch: %s\nhostname: %s\ncpu_count: %d\ngo_version: %s",
		runtime.GOOS, runtime.GOARCH, hostname, runtime.NumCPU(), runtime.Version())
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
