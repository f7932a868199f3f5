package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwi.com/assistant-console/internal/store"
	"gwi.com/assistant-console/internal/utils"
)

func TestFilterSessions(t *testing.T) {
	now := time.Now()
	sessions := []store.ChatSession{{ID: "1", Title: "Boiler specs", UpdatedAt: now}}

	assert.Equal(t, sessions, FilterSessions(sessions, "boiler"))
	assert.Empty(t, FilterSessions(sessions, "xyz"))

	sessions = append(sessions,
		store.ChatSession{ID: "2", Title: "New Chat", LastMessage: "Which BOILER fits?"},
		store.ChatSession{ID: "3", Title: "Roofing"},
	)
	got := FilterSessions(sessions, "  Boiler ")
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "2", got[1].ID)
	assert.Len(t, FilterSessions(sessions, ""), 3)
}

func TestGroupByDay(t *testing.T) {
	now := time.Date(2024, 3, 14, 15, 30, 0, 0, time.UTC)
	midnight := utils.StartOfDay(now)

	sessions := []store.ChatSession{
		{ID: "start-of-today", UpdatedAt: midnight},
		{ID: "older", UpdatedAt: midnight.Add(-48 * time.Hour)},
		{ID: "late-yesterday", UpdatedAt: midnight.Add(-time.Minute)},
		{ID: "just-now", UpdatedAt: now},
		{ID: "early-yesterday", UpdatedAt: midnight.Add(-24 * time.Hour)},
		{ID: "just-before-yesterday", UpdatedAt: midnight.Add(-24*time.Hour - time.Second)},
		{ID: "skewed", UpdatedAt: now.Add(time.Hour)},
	}
	b := GroupByDay(sessions, now)

	assert.Equal(t, []string{"start-of-today", "just-now", "skewed"}, sessionIDs(b.Today))
	assert.Equal(t, []string{"late-yesterday", "early-yesterday"}, sessionIDs(b.Yesterday))
	assert.Equal(t, []string{"older", "just-before-yesterday"}, sessionIDs(b.Older))
	assert.Equal(t, len(sessions), b.Len())
}

func TestGroupByDayUsesLocalCalendar(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	now := time.Date(2024, 3, 14, 1, 0, 0, 0, loc)
	// 14:30 UTC on the 13th is already the 14th at UTC+10.
	s := store.ChatSession{ID: "x", UpdatedAt: time.Date(2024, 3, 13, 14, 30, 0, 0, time.UTC)}

	b := GroupByDay([]store.ChatSession{s}, now)
	assert.Len(t, b.Today, 1)
}

func TestGroupBySender(t *testing.T) {
	msgs := []store.Message{
		{ID: "1", Sender: store.SenderUser},
		{ID: "2", Sender: store.SenderUser},
		{ID: "3", Sender: store.SenderAssistant},
		{ID: "4", Sender: store.SenderUser},
	}
	runs := GroupBySender(msgs)
	require.Len(t, runs, 3)
	assert.Equal(t, store.SenderUser, runs[0].Sender)
	assert.Len(t, runs[0].Messages, 2)
	assert.Equal(t, store.SenderAssistant, runs[1].Sender)
	assert.Equal(t, "4", runs[2].Messages[0].ID)

	assert.Empty(t, GroupBySender(nil))
}

func sessionIDs(sessions []store.ChatSession) []string {
	var out []string
	for _, s := range sessions {
		out = append(out, s.ID)
	}
	return out
}
