package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"gwi.com/assistant-console/internal/store"
)

// ListSessions returns the signed-in user's sessions, most recently updated
// first.
func (c *Client) ListSessions(ctx context.Context) ([]store.ChatSession, error) {
	const op = "Failed to fetch chat sessions"
	var ws []wireSession
	if err := c.do(ctx, request{method: http.MethodGet, path: "/chat-sessions", op: op}, &ws); err != nil {
		return nil, err
	}
	sessions := make([]store.ChatSession, 0, len(ws))
	for _, w := range ws {
		s, err := w.toSession()
		if err != nil {
			return nil, &OperationError{Op: op, Message: op, Err: fmt.Errorf("session %s: %w", w.ID, err)}
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// SessionDraft is what the client proposes; the backend may replace the id.
type SessionDraft struct {
	ID          string
	Title       string
	UserID      string
	LastMessage string
}

func (c *Client) CreateSession(ctx context.Context, draft SessionDraft) (*store.ChatSession, error) {
	const op = "Failed to create chat session"
	body, err := jsonBody(sessionDraft{ID: draft.ID, Title: draft.Title, UserID: draft.UserID, LastMessage: draft.LastMessage})
	if err != nil {
		return nil, err
	}
	var w wireSession
	if err := c.do(ctx, request{method: http.MethodPost, path: "/chat-sessions", body: body, op: op}, &w); err != nil {
		return nil, err
	}
	s, err := w.toSession()
	if err != nil {
		return nil, &OperationError{Op: op, Message: op, Err: err}
	}
	return &s, nil
}

func (c *Client) UpdateSessionTitle(ctx context.Context, sessionID, title string) error {
	body, err := jsonBody(map[string]string{"title": title})
	if err != nil {
		return err
	}
	return c.do(ctx, request{
		method: http.MethodPatch,
		path:   "/chat-sessions/" + url.PathEscape(sessionID),
		body:   body,
		op:     "Failed to update chat session title",
	}, nil)
}

// DeleteSession removes a session and, on the backend, its messages.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/chat-sessions/" + url.PathEscape(sessionID),
		op:     "Failed to delete chat session",
	}, nil)
}
