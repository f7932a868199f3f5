package store

import "time"

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// MessageStatus is tracked on the client only and never sent to the backend.
type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusConfirmed MessageStatus = "confirmed"
	StatusFailed    MessageStatus = "failed"
)

type User struct {
	ID                string `json:"id"`
	Email             string `json:"email"`
	Username          string `json:"username"`
	Region            string `json:"region"`
	ProfilePictureURL string `json:"profilePictureUrl,omitempty"`
	ThemePreference   Theme  `json:"themePreference,omitempty"`
}

type ChatSession struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	UserID      string    `json:"userId"`
	LastMessage string    `json:"lastMessage"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Source struct {
	PageNumber string `json:"page_number"`
	Section    string `json:"section"`
	Content    string `json:"content"`
}

type AIResponseMetadata struct {
	Confidence   float64  `json:"confidence"`
	ResponseType string   `json:"response_type"`
	Sources      []Source `json:"sources"`
}

type Message struct {
	ID            string              `json:"id"`
	Content       string              `json:"content"`
	Sender        Sender              `json:"sender"`
	Timestamp     time.Time           `json:"timestamp"`
	ChatSessionID string              `json:"chatSessionId"`
	AIResponse    *Message            `json:"aiResponse,omitempty"`
	Metadata      *AIResponseMetadata `json:"metadata,omitempty"`
	Status        MessageStatus       `json:"-"`
}

type RAGMetadata struct {
	OriginalQuery string   `json:"originalQuery"`
	RefinedQuery  string   `json:"refinedQuery"`
	Confidence    float64  `json:"confidence"`
	ResponseType  string   `json:"responseType"`
	Sources       []Source `json:"sources"`
}

type RAGResponse struct {
	Response string      `json:"response"`
	Metadata RAGMetadata `json:"metadata"`
}

// Preferences are the values cached per user on this machine.
type Preferences struct {
	UserID            string
	ProfilePictureURL string
	ThemePreference   Theme
	UpdatedAt         time.Time
}
