package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"gwi.com/assistant-console/internal/store"
)

// ListMessages returns a session's history in server order (oldest first).
func (c *Client) ListMessages(ctx context.Context, sessionID string) ([]store.Message, error) {
	const op = "Failed to fetch messages"
	var ws []wireMessage
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/messages",
		query:  url.Values{"chat_session_id": {sessionID}},
		op:     op,
	}, &ws)
	if err != nil {
		return nil, err
	}
	messages := make([]store.Message, 0, len(ws))
	for _, w := range ws {
		m, err := w.toMessage()
		if err != nil {
			return nil, &OperationError{Op: op, Message: op, Err: fmt.Errorf("message %s: %w", w.ID, err)}
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// AddMessage persists a message. For user messages the backend normally
// answers with the assistant's reply embedded as AIResponse.
func (c *Client) AddMessage(ctx context.Context, msg store.Message) (*store.Message, error) {
	const op = "Failed to add message"
	body, err := jsonBody(fromMessage(msg))
	if err != nil {
		return nil, err
	}
	var w wireMessage
	if err := c.do(ctx, request{method: http.MethodPost, path: "/messages", body: body, op: op}, &w); err != nil {
		return nil, err
	}
	m, err := w.toMessage()
	if err != nil {
		return nil, &OperationError{Op: op, Message: op, Err: err}
	}
	return &m, nil
}
