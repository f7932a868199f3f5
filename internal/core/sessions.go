package core

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gwi.com/assistant-console/internal/api"
	"gwi.com/assistant-console/internal/store"
)

// DefaultSessionTitle is the title of every freshly created session.
const DefaultSessionTitle = "New Chat"

// SessionList owns the signed-in user's sessions and which one is current.
// Selecting a session loads its messages into the thread.
type SessionList struct {
	mu       sync.Mutex
	sessions []store.ChatSession
	current  string

	remote SessionRemote
	user   Identity
	thread *Thread
	now    func() time.Time
	log    *slog.Logger
}

// Sessions returns a copy of the list in display order.
func (l *SessionList) Sessions() []store.ChatSession {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]store.ChatSession(nil), l.sessions...)
}

// Current returns the current session id, or "".
func (l *SessionList) Current() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *SessionList) CurrentSession() (store.ChatSession, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.findLocked(l.current)
}

func (l *SessionList) Find(id string) (store.ChatSession, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.findLocked(id)
}

func (l *SessionList) findLocked(id string) (store.ChatSession, bool) {
	if id == "" {
		return store.ChatSession{}, false
	}
	for _, s := range l.sessions {
		if s.ID == id {
			return s, true
		}
	}
	return store.ChatSession{}, false
}

// Load replaces the list with the backend's and selects the first session.
// On failure the list is left empty and the error is returned as well as
// logged; an empty list alone does not mean there are no sessions.
func (l *SessionList) Load(ctx context.Context) error {
	sessions, err := l.remote.ListSessions(ctx)
	if err != nil {
		l.log.Error("Error loading chat sessions", "error", err)
		l.mu.Lock()
		l.sessions = nil
		l.current = ""
		l.mu.Unlock()
		l.thread.Reset("")
		return err
	}

	l.mu.Lock()
	l.sessions = sessions
	l.mu.Unlock()

	if len(sessions) == 0 {
		l.setCurrent("")
		l.thread.Reset("")
		return nil
	}
	return l.Select(ctx, sessions[0].ID)
}

// Select makes id current and loads its messages. The id is not checked
// against the local list; the backend decides whether it exists.
func (l *SessionList) Select(ctx context.Context, id string) error {
	l.setCurrent(id)
	return l.thread.Load(ctx, id)
}

// Create starts a new session, puts it first and selects it with an empty
// thread. It returns nil, nil when nobody is signed in.
func (l *SessionList) Create(ctx context.Context) (*store.ChatSession, error) {
	userID := l.user.UserID()
	if userID == "" {
		return nil, nil
	}
	created, err := l.remote.CreateSession(ctx, api.SessionDraft{
		ID:     uuid.NewString(),
		Title:  DefaultSessionTitle,
		UserID: userID,
	})
	if err != nil {
		l.log.Error("Error creating new chat", "error", err)
		return nil, err
	}

	l.mu.Lock()
	l.sessions = append([]store.ChatSession{*created}, l.sessions...)
	l.current = created.ID
	l.mu.Unlock()
	l.thread.Reset(created.ID)

	l.log.Info("Created chat session", "session_id", created.ID)
	return created, nil
}

// Rename stores the trimmed title and updates the entry in place.
func (l *SessionList) Rename(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return &api.ValidationError{Field: "title", Message: "Title cannot be empty"}
	}
	if err := l.remote.UpdateSessionTitle(ctx, id, title); err != nil {
		l.log.Error("Error renaming chat session", "session_id", id, "error", err)
		return err
	}

	l.mu.Lock()
	for i := range l.sessions {
		if l.sessions[i].ID == id {
			l.sessions[i].Title = title
			l.sessions[i].UpdatedAt = l.now()
			break
		}
	}
	l.mu.Unlock()
	return nil
}

// Delete removes a session. Deleting the current session selects the first
// remaining one, or clears the selection when none remain.
func (l *SessionList) Delete(ctx context.Context, id string) error {
	if err := l.remote.DeleteSession(ctx, id); err != nil {
		l.log.Error("Error deleting chat session", "session_id", id, "error", err)
		return err
	}

	l.mu.Lock()
	kept := make([]store.ChatSession, 0, len(l.sessions))
	for _, s := range l.sessions {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	l.sessions = kept
	wasCurrent := l.current == id
	next := ""
	if wasCurrent && len(kept) > 0 {
		next = kept[0].ID
	}
	l.mu.Unlock()

	if !wasCurrent {
		return nil
	}
	if next == "" {
		l.setCurrent("")
		l.thread.Reset("")
		return nil
	}
	return l.Select(ctx, next)
}

// Filter applies FilterSessions to the current list.
func (l *SessionList) Filter(query string) []store.ChatSession {
	return FilterSessions(l.Sessions(), query)
}

// Group filters the list by query and buckets the result by day.
func (l *SessionList) Group(query string) DayBuckets {
	return GroupByDay(l.Filter(query), l.now())
}

// touch records a new preview on a session. The list is not reordered.
func (l *SessionList) touch(id, preview string, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.sessions {
		if l.sessions[i].ID == id {
			l.sessions[i].LastMessage = preview
			l.sessions[i].UpdatedAt = at
			return
		}
	}
}

func (l *SessionList) setCurrent(id string) {
	l.mu.Lock()
	l.current = id
	l.mu.Unlock()
}
