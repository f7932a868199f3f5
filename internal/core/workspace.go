package core

import (
	"time"

	"gwi.com/assistant-console/internal/observability"
)

// Config tunes the chat workspace.
type Config struct {
	// LegacyFallback synthesizes a canned assistant reply when the backend
	// answers without one. Deprecated; off unless configured.
	LegacyFallback      bool
	LegacyFallbackDelay time.Duration
}

// Workspace is the chat screen's state: the session list and the thread of
// the current session, wired to each other, plus direct RAG queries.
type Workspace struct {
	Sessions *SessionList
	Thread   *Thread
	RAG      *RAGService
}

type Option func(*Workspace)

// WithClock overrides time.Now for timestamps and day buckets.
func WithClock(now func() time.Time) Option {
	return func(w *Workspace) {
		w.Sessions.now = now
		w.Thread.now = now
	}
}

func NewWorkspace(remote Remote, user Identity, cfg Config, opts ...Option) *Workspace {
	sessions := &SessionList{
		remote: remote,
		user:   user,
		now:    time.Now,
		log:    observability.WithFields("component", "sessions"),
	}
	thread := &Thread{
		remote:   remote,
		sessions: sessions,
		cfg:      cfg,
		now:      time.Now,
		log:      observability.WithFields("component", "thread"),
	}
	sessions.thread = thread

	w := &Workspace{Sessions: sessions, Thread: thread, RAG: NewRAGService(remote, sessions)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}
