package store

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"gwi.com/assistant-console/internal/observability"
)

// PersistentJar is an http.CookieJar that mirrors the backend's cookies into
// the local cache, so a signed-in session survives process restarts.
type PersistentJar struct {
	mu    sync.Mutex
	jar   *cookiejar.Jar
	store *SQLiteStore
	host  string
	log   *slog.Logger
}

// NewPersistentJar builds a jar preloaded with the cookies cached for base.
func NewPersistentJar(s *SQLiteStore, base *url.URL) (*PersistentJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	cookies, err := s.LoadCookies(base.Host)
	if err != nil {
		return nil, err
	}
	if len(cookies) > 0 {
		jar.SetCookies(base, cookies)
	}
	return &PersistentJar{
		jar:   jar,
		store: s,
		host:  base.Host,
		log:   observability.WithFields("component", "cookies"),
	}, nil
}

func (j *PersistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar.SetCookies(u, cookies)
	if err := j.store.SaveCookies(u.Host, cookies); err != nil {
		j.log.Warn("Failed to persist cookies", "host", u.Host, "error", err)
	}
}

func (j *PersistentJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// Reset drops every cookie for the jar's host, in memory and on disk.
func (j *PersistentJar) Reset() error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("failed to create cookie jar: %w", err)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar = jar
	return j.store.ClearCookies(j.host)
}
