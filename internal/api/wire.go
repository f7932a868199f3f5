package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gwi.com/assistant-console/internal/store"
)

// The backend emits ISO-8601 timestamps, usually without a zone (naive UTC).
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02",
}

// ParseTimestamp parses a backend timestamp. Zone-less values are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("page number must be a string or number: %w", err)
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		*f = flexString(strconv.FormatInt(i, 10))
		return nil
	}
	*f = flexString(n.String())
	return nil
}

type wireUser struct {
	ID                string `json:"id"`
	Email             string `json:"email"`
	Username          string `json:"username"`
	Region            string `json:"region"`
	ProfilePictureURL string `json:"profilePictureUrl"`
	ThemePreference   string `json:"themePreference"`
}

func (w wireUser) toUser() *store.User {
	u := &store.User{
		ID:                w.ID,
		Email:             w.Email,
		Username:          w.Username,
		Region:            w.Region,
		ProfilePictureURL: w.ProfilePictureURL,
	}
	if t := store.Theme(w.ThemePreference); t.Valid() {
		u.ThemePreference = t
	}
	return u
}

type wireSession struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	UserID      string `json:"userId"`
	LastMessage string `json:"lastMessage"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func (w wireSession) toSession() (store.ChatSession, error) {
	created, err := ParseTimestamp(w.CreatedAt)
	if err != nil {
		return store.ChatSession{}, err
	}
	updated, err := ParseTimestamp(w.UpdatedAt)
	if err != nil {
		return store.ChatSession{}, err
	}
	return store.ChatSession{
		ID:          w.ID,
		Title:       w.Title,
		UserID:      w.UserID,
		LastMessage: w.LastMessage,
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}

type wireSource struct {
	PageNumber flexString `json:"page_number"`
	Section    string     `json:"section"`
	Content    string     `json:"content"`
}

func toSources(ws []wireSource) []store.Source {
	if len(ws) == 0 {
		return nil
	}
	out := make([]store.Source, 0, len(ws))
	for _, s := range ws {
		out = append(out, store.Source{PageNumber: string(s.PageNumber), Section: s.Section, Content: s.Content})
	}
	return out
}

type wireMetadata struct {
	Confidence   float64      `json:"confidence"`
	ResponseType string       `json:"response_type"`
	Sources      []wireSource `json:"sources"`
}

type wireMessage struct {
	ID            string        `json:"id"`
	Content       string        `json:"content"`
	Sender        string        `json:"sender"`
	Timestamp     string        `json:"timestamp"`
	ChatSessionID string        `json:"chatSessionId"`
	AIResponse    *wireMessage  `json:"aiResponse,omitempty"`
	Metadata      *wireMetadata `json:"metadata,omitempty"`
}

// toMessage normalises a wire message, recursing into the embedded reply.
func (w wireMessage) toMessage() (store.Message, error) {
	ts, err := ParseTimestamp(w.Timestamp)
	if err != nil {
		return store.Message{}, err
	}
	m := store.Message{
		ID:            w.ID,
		Content:       w.Content,
		Sender:        store.Sender(w.Sender),
		Timestamp:     ts,
		ChatSessionID: w.ChatSessionID,
		Status:        store.StatusConfirmed,
	}
	if w.Metadata != nil {
		m.Metadata = &store.AIResponseMetadata{
			Confidence:   w.Metadata.Confidence,
			ResponseType: w.Metadata.ResponseType,
			Sources:      toSources(w.Metadata.Sources),
		}
	}
	if w.AIResponse != nil {
		reply, err := w.AIResponse.toMessage()
		if err != nil {
			return store.Message{}, fmt.Errorf("aiResponse: %w", err)
		}
		if reply.Sender == "" {
			reply.Sender = store.SenderAssistant
		}
		m.AIResponse = &reply
	}
	return m, nil
}

// outgoingMessage is the POST /messages body.
type outgoingMessage struct {
	ID            string `json:"id"`
	Content       string `json:"content"`
	Sender        string `json:"sender"`
	Timestamp     string `json:"timestamp"`
	ChatSessionID string `json:"chatSessionId"`
}

func fromMessage(m store.Message) outgoingMessage {
	return outgoingMessage{
		ID:            m.ID,
		Content:       m.Content,
		Sender:        string(m.Sender),
		Timestamp:     m.Timestamp.UTC().Format(time.RFC3339Nano),
		ChatSessionID: m.ChatSessionID,
	}
}

type sessionDraft struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	UserID      string `json:"userId"`
	LastMessage string `json:"lastMessage"`
}

type wireRAGMetadata struct {
	OriginalQuery string       `json:"originalQuery"`
	RefinedQuery  string       `json:"refinedQuery"`
	Confidence    float64      `json:"confidence"`
	ResponseType  string       `json:"responseType"`
	Sources       []wireSource `json:"sources"`
}

type wireRAGResponse struct {
	Response string          `json:"response"`
	Metadata wireRAGMetadata `json:"metadata"`
}
