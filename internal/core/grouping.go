package core

import (
	"strings"
	"time"

	"gwi.com/assistant-console/internal/store"
	"gwi.com/assistant-console/internal/utils"
)

// DayBuckets partitions sessions by the calendar day of UpdatedAt. Each
// bucket keeps the input order.
type DayBuckets struct {
	Today     []store.ChatSession
	Yesterday []store.ChatSession
	Older     []store.ChatSession
}

func (b DayBuckets) Len() int {
	return len(b.Today) + len(b.Yesterday) + len(b.Older)
}

// FilterSessions keeps sessions whose title or last message contains query,
// ignoring case. An empty query keeps everything.
func FilterSessions(sessions []store.ChatSession, query string) []store.ChatSession {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]store.ChatSession, 0, len(sessions))
	for _, s := range sessions {
		if q == "" ||
			strings.Contains(strings.ToLower(s.Title), q) ||
			strings.Contains(strings.ToLower(s.LastMessage), q) {
			out = append(out, s)
		}
	}
	return out
}

// GroupByDay buckets sessions relative to now. Timestamps ahead of now
// (clock skew) count as today.
func GroupByDay(sessions []store.ChatSession, now time.Time) DayBuckets {
	var b DayBuckets
	for _, s := range sessions {
		switch days := utils.CalendarDaysBetween(s.UpdatedAt, now); {
		case days <= 0:
			b.Today = append(b.Today, s)
		case days == 1:
			b.Yesterday = append(b.Yesterday, s)
		default:
			b.Older = append(b.Older, s)
		}
	}
	return b
}

// SenderRun is a maximal stretch of consecutive messages from one sender.
type SenderRun struct {
	Sender   store.Sender
	Messages []store.Message
}

// GroupBySender splits a thread into sender runs, in order.
func GroupBySender(messages []store.Message) []SenderRun {
	var runs []SenderRun
	for _, m := range messages {
		if n := len(runs); n > 0 && runs[n-1].Sender == m.Sender {
			runs[n-1].Messages = append(runs[n-1].Messages, m)
			continue
		}
		runs = append(runs, SenderRun{Sender: m.Sender, Messages: []store.Message{m}})
	}
	return runs
}
