package core

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gwi.com/assistant-console/internal/api"
	"gwi.com/assistant-console/internal/store"
)

// LegacyFallbackReply is the canned answer used when the backend does not
// embed a reply and the legacy fallback is enabled.
const LegacyFallbackReply = "I understand you're asking about hotel construction. Could you please provide more specific details about what you'd like to know?"

// ErrNotSignedIn is returned by Send when a session would have to be
// created but nobody is signed in.
var ErrNotSignedIn = errors.New("not signed in")

// Thread holds the messages of the current session. User messages are
// appended before they reach the backend and carry a status until the
// backend answers.
type Thread struct {
	mu        sync.Mutex
	sessionID string
	messages  []store.Message
	inflight  int
	gen       uint64

	remote   MessageRemote
	sessions *SessionList
	cfg      Config
	now      func() time.Time
	log      *slog.Logger
}

// SessionID returns the session whose messages are held, or "".
func (t *Thread) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// Messages returns a copy of the thread in display order.
func (t *Thread) Messages() []store.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]store.Message(nil), t.messages...)
}

// Responding reports whether a send is waiting on the backend.
func (t *Thread) Responding() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inflight > 0
}

// Reset switches to sessionID with an empty thread. Loads still in flight
// are discarded when they complete.
func (t *Thread) Reset(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	t.sessionID = sessionID
	t.messages = nil
}

// Load replaces the thread with the backend's history of sessionID.
//
// A send can run while a load is in flight. When the load lands, messages
// added locally since it started, and any still pending or failed, are kept
// after the loaded history. A load that lands after another session was
// selected is dropped.
func (t *Thread) Load(ctx context.Context, sessionID string) error {
	t.mu.Lock()
	t.gen++
	gen := t.gen
	if t.sessionID != sessionID {
		t.sessionID = sessionID
		t.messages = nil
	}
	before := make(map[string]bool, len(t.messages))
	for _, m := range t.messages {
		before[m.ID] = true
	}
	t.mu.Unlock()

	if sessionID == "" {
		return nil
	}

	loaded, err := t.remote.ListMessages(ctx, sessionID)
	if err != nil {
		t.log.Error("Error loading messages", "session_id", sessionID, "error", err)
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen || t.sessionID != sessionID {
		t.log.Debug("Dropping stale message load", "session_id", sessionID)
		return nil
	}
	seen := make(map[string]bool, len(loaded))
	for _, m := range loaded {
		seen[m.ID] = true
	}
	for _, m := range t.messages {
		if seen[m.ID] {
			continue
		}
		if !before[m.ID] || m.Status != store.StatusConfirmed {
			loaded = append(loaded, m)
		}
	}
	t.messages = loaded
	return nil
}

// Send posts content to the current session, creating a session first if
// none is selected. Whitespace-only content is rejected without any request.
//
// The user message is in the thread, pending, before Send touches the
// network. It ends up confirmed or failed; a failed message stays in the
// thread for Retry or Discard. The returned message reflects the final
// status even when err is non-nil.
func (t *Thread) Send(ctx context.Context, content string) (*store.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, &api.ValidationError{Field: "content", Message: "Message cannot be empty"}
	}

	sessionID := t.sessions.Current()
	if sessionID == "" {
		created, err := t.sessions.Create(ctx)
		if err != nil {
			return nil, err
		}
		if created == nil {
			return nil, ErrNotSignedIn
		}
		sessionID = created.ID
	}

	msg := store.Message{
		ID:            uuid.NewString(),
		Content:       content,
		Sender:        store.SenderUser,
		Timestamp:     t.now().UTC(),
		ChatSessionID: sessionID,
		Status:        store.StatusPending,
	}
	t.mu.Lock()
	if t.sessionID == sessionID {
		t.messages = append(t.messages, msg)
	}
	t.mu.Unlock()

	return t.deliver(ctx, msg)
}

// Retry sends a failed message again under the same id.
func (t *Thread) Retry(ctx context.Context, messageID string) (*store.Message, error) {
	t.mu.Lock()
	i := t.indexLocked(messageID)
	if i < 0 || t.messages[i].Status != store.StatusFailed {
		t.mu.Unlock()
		return nil, &api.ValidationError{Field: "message", Message: "No failed message with that id"}
	}
	t.messages[i].Status = store.StatusPending
	msg := t.messages[i]
	t.mu.Unlock()

	return t.deliver(ctx, msg)
}

// Discard drops a failed message from the thread. Nothing is sent.
func (t *Thread) Discard(messageID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.indexLocked(messageID)
	if i < 0 || t.messages[i].Status != store.StatusFailed {
		return &api.ValidationError{Field: "message", Message: "No failed message with that id"}
	}
	t.messages = append(t.messages[:i], t.messages[i+1:]...)
	return nil
}

// LastFailed returns the most recent failed message, if any.
func (t *Thread) LastFailed() (store.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Status == store.StatusFailed {
			return t.messages[i], true
		}
	}
	return store.Message{}, false
}

func (t *Thread) deliver(ctx context.Context, msg store.Message) (*store.Message, error) {
	t.mu.Lock()
	t.inflight++
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.inflight--
		t.mu.Unlock()
	}()

	resp, err := t.remote.AddMessage(ctx, msg)
	if err != nil {
		t.log.Error("Error sending message", "session_id", msg.ChatSessionID, "error", err)
		msg.Status = store.StatusFailed
		t.update(msg.ID, msg)
		return &msg, err
	}

	oldID := msg.ID
	if resp.ID != "" {
		msg.ID = resp.ID
	}
	msg.Status = store.StatusConfirmed
	t.update(oldID, msg)

	if reply := resp.AIResponse; reply != nil {
		r := *reply
		r.Status = store.StatusConfirmed
		if r.ChatSessionID == "" {
			r.ChatSessionID = msg.ChatSessionID
		}
		t.appendTo(msg.ChatSessionID, r)
		preview := r.Content
		if preview == "" {
			preview = msg.Content
		}
		t.sessions.touch(msg.ChatSessionID, preview, t.now())
		msg.AIResponse = &r
		return &msg, nil
	}

	if t.cfg.LegacyFallback {
		if err := t.legacyReply(ctx, msg); err != nil {
			return &msg, err
		}
	}
	t.sessions.touch(msg.ChatSessionID, msg.Content, t.now())
	return &msg, nil
}

// legacyReply stands in for backends that don't embed the assistant's
// answer. Deprecated: only kept for that older contract.
func (t *Thread) legacyReply(ctx context.Context, msg store.Message) error {
	select {
	case <-time.After(t.cfg.LegacyFallbackDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	reply := store.Message{
		ID:            uuid.NewString(),
		Content:       LegacyFallbackReply,
		Sender:        store.SenderAssistant,
		Timestamp:     t.now().UTC(),
		ChatSessionID: msg.ChatSessionID,
	}
	if _, err := t.remote.AddMessage(ctx, reply); err != nil {
		t.log.Error("Error saving fallback reply", "session_id", msg.ChatSessionID, "error", err)
		return err
	}
	reply.Status = store.StatusConfirmed
	t.appendTo(msg.ChatSessionID, reply)
	return nil
}

func (t *Thread) update(id string, msg store.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i := t.indexLocked(id); i >= 0 {
		t.messages[i] = msg
	}
}

func (t *Thread) appendTo(sessionID string, msg store.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sessionID != sessionID || t.indexLocked(msg.ID) >= 0 {
		return
	}
	t.messages = append(t.messages, msg)
}

func (t *Thread) indexLocked(id string) int {
	for i := range t.messages {
		if t.messages[i].ID == id {
			return i
		}
	}
	return -1
}
