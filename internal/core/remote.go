package core

import (
	"context"

	"gwi.com/assistant-console/internal/api"
	"gwi.com/assistant-console/internal/store"
)

// SessionRemote is the part of the backend the session list talks to.
type SessionRemote interface {
	ListSessions(ctx context.Context) ([]store.ChatSession, error)
	CreateSession(ctx context.Context, draft api.SessionDraft) (*store.ChatSession, error)
	UpdateSessionTitle(ctx context.Context, sessionID, title string) error
	DeleteSession(ctx context.Context, sessionID string) error
}

// MessageRemote is the part of the backend the thread talks to.
type MessageRemote interface {
	ListMessages(ctx context.Context, sessionID string) ([]store.Message, error)
	AddMessage(ctx context.Context, msg store.Message) (*store.Message, error)
}

type Remote interface {
	SessionRemote
	MessageRemote
	RAGRemote
}

// Identity tells the managers who is signed in. An empty id means nobody.
type Identity interface {
	UserID() string
}
