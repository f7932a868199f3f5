package view

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"

	"gwi.com/assistant-console/internal/core"
	"gwi.com/assistant-console/internal/store"
)

func TestSidebarSections(t *testing.T) {
	now := time.Date(2024, 3, 14, 15, 30, 0, 0, time.Local)
	sessions := []store.ChatSession{
		{ID: "1", Title: "Boiler specs", LastMessage: "Echo: sizes", UpdatedAt: now.Add(-time.Hour)},
		{ID: "2", Title: "Roofing", UpdatedAt: now.Add(-20 * time.Hour)},
		{ID: "3", Title: "Permits", UpdatedAt: now.Add(-10 * 24 * time.Hour)},
	}
	out := ansi.Strip(NewStyles(store.ThemeLight).Sidebar(core.GroupByDay(sessions, now), "1", "", now, 60))

	assert.Contains(t, out, "Chat History")
	today := strings.Index(out, "Today")
	yesterday := strings.Index(out, "Yesterday")
	older := strings.Index(out, "Older")
	assert.True(t, today >= 0 && today < yesterday && yesterday < older)
	assert.Contains(t, out, "> Boiler specs")
	assert.Contains(t, out, "Today at 14:30")
	assert.Contains(t, out, "Echo: sizes")
	assert.Contains(t, out, "Mar 4")
	assert.Contains(t, out, "id: 3")

	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, ansi.StringWidth(line), 60, line)
	}
}

func TestSidebarEmpty(t *testing.T) {
	s := NewStyles(store.ThemeDark)
	now := time.Now()
	assert.Contains(t, ansi.Strip(s.Sidebar(core.DayBuckets{}, "", "", now, 40)), "No conversations yet")
	assert.Contains(t, ansi.Strip(s.Sidebar(core.DayBuckets{}, "", "xyz", now, 40)), "No matching conversations")
}

func TestSidebarTruncatesLongTitles(t *testing.T) {
	now := time.Now()
	sessions := []store.ChatSession{{ID: "1", Title: strings.Repeat("very long title ", 10), UpdatedAt: now}}
	out := ansi.Strip(NewStyles(store.ThemeLight).Sidebar(core.GroupByDay(sessions, now), "", "", now, 40))
	assert.Contains(t, out, "…")
	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, ansi.StringWidth(line), 40, line)
	}
}

func TestThreadRendersStatusesAndSources(t *testing.T) {
	ts := time.Date(2024, 3, 14, 9, 5, 0, 0, time.Local)
	msgs := []store.Message{
		{ID: "m1", Content: "Hello", Sender: store.SenderUser, Timestamp: ts, Status: store.StatusConfirmed},
		{ID: "m2", Content: "Echo: Hello", Sender: store.SenderAssistant, Timestamp: ts, Status: store.StatusConfirmed,
			Metadata: &store.AIResponseMetadata{Confidence: 0.92, Sources: []store.Source{{PageNumber: "3", Section: "Overview", Content: "Reference passage"}}}},
		{ID: "m3-failed-message", Content: "Second try", Sender: store.SenderUser, Timestamp: ts, Status: store.StatusFailed},
		{ID: "m4", Content: "Third", Sender: store.SenderUser, Timestamp: ts, Status: store.StatusPending},
	}
	out := ansi.Strip(NewStyles(store.ThemeLight).Thread(msgs, true, 80))

	assert.Contains(t, out, "You 09:05")
	assert.Contains(t, out, "Assistant 09:05")
	assert.Contains(t, out, "92% confidence · 1 source")
	assert.Contains(t, out, "[1] Page 3 • Section Overview")
	assert.Contains(t, out, "not sent (id m3-faile), use /retry or /discard")
	assert.Contains(t, out, "sending...")
	assert.Contains(t, out, "AI is thinking...")
	// The failed and pending messages share one run.
	assert.Equal(t, 2, strings.Count(out, "You "))
}

func TestThreadEmpty(t *testing.T) {
	s := NewStyles(store.ThemeLight)
	assert.Contains(t, ansi.Strip(s.Thread(nil, false, 80)), "Ask anything")
	assert.NotContains(t, ansi.Strip(s.Thread(nil, true, 80)), "Ask anything")
}

func TestThreadWrapsContent(t *testing.T) {
	msgs := []store.Message{{ID: "1", Content: strings.Repeat("word ", 40), Sender: store.SenderUser}}
	out := ansi.Strip(NewStyles(store.ThemeLight).Thread(msgs, false, 30))
	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, ansi.StringWidth(line), 30, line)
	}
}

func TestProfile(t *testing.T) {
	s := NewStyles(store.ThemeDark)
	assert.Contains(t, ansi.Strip(s.Profile(nil, store.ThemeDark, 60)), "Not signed in")

	u := &store.User{ID: "u1", Username: "ana", Email: "ana@example.com", Region: "EU", ProfilePictureURL: "data:image/png;base64,AAAA"}
	out := ansi.Strip(s.Profile(u, store.ThemeDark, 60))
	assert.Contains(t, out, "ana@example.com")
	assert.Contains(t, out, "image/png, 3 B (stored locally)")
	assert.Contains(t, out, "dark")
}

func TestAnswer(t *testing.T) {
	resp := &store.RAGResponse{
		Response: "Use a 30kW boiler.",
		Metadata: store.RAGMetadata{OriginalQuery: "Boiler?", RefinedQuery: "boiler?", Confidence: 0.5},
	}
	out := ansi.Strip(NewStyles(store.ThemeLight).Answer(resp, 60))
	assert.Contains(t, out, "Use a 30kW boiler.")
	assert.Contains(t, out, "searched for: boiler?")
	assert.Contains(t, out, "50% confidence")
	assert.Contains(t, out, "Low confidence")
}

func TestNotice(t *testing.T) {
	s := NewStyles(store.ThemeLight)
	assert.Empty(t, s.Notice(nil))
	assert.Equal(t, "Error: boom\n", ansi.Strip(s.Notice(errors.New("boom"))))
}
