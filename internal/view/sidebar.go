package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"

	"gwi.com/assistant-console/internal/core"
	"gwi.com/assistant-console/internal/store"
	"gwi.com/assistant-console/internal/utils"
)

const (
	DefaultWidth = 80
	minWidth     = 24
)

// Sidebar renders the session list in Today / Yesterday / Older sections.
// Empty sections are omitted. Lines are truncated to width.
func (s Styles) Sidebar(buckets core.DayBuckets, current string, query string, now time.Time, width int) string {
	width = max(width, minWidth)
	var b strings.Builder

	title := "Chat History"
	if q := strings.TrimSpace(query); q != "" {
		title = fmt.Sprintf("Chat History (search: %q)", q)
	}
	b.WriteString(s.Title.Render(ansi.Truncate(title, width, "…")))
	b.WriteString("\n")

	if buckets.Len() == 0 {
		msg := "No conversations yet"
		if strings.TrimSpace(query) != "" {
			msg = "No matching conversations"
		}
		b.WriteString(s.Muted.Render(msg))
		b.WriteString("\n")
		return b.String()
	}

	sections := []struct {
		name     string
		sessions []store.ChatSession
	}{
		{"Today", buckets.Today},
		{"Yesterday", buckets.Yesterday},
		{"Older", buckets.Older},
	}
	for _, sec := range sections {
		if len(sec.sessions) == 0 {
			continue
		}
		b.WriteString(s.Section.Render(sec.name))
		b.WriteString("\n")
		for _, cs := range sec.sessions {
			b.WriteString(s.sessionLine(cs, cs.ID == current, now, width))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (s Styles) sessionLine(cs store.ChatSession, selected bool, now time.Time, width int) string {
	marker := "  "
	style := s.Item
	if selected {
		marker = "> "
		style = s.Selected
	}
	when := utils.FormatRelative(cs.UpdatedAt, now)
	// Item styles pad by two columns.
	avail := width - 2 - len(marker)
	head := ansi.Truncate(marker+cs.Title, avail-ansi.StringWidth(when)-1, "…")
	gap := max(1, avail-ansi.StringWidth(head)-ansi.StringWidth(when))
	line := style.Render(head + strings.Repeat(" ", gap) + s.Muted.Render(when))

	if preview := strings.TrimSpace(cs.LastMessage); preview != "" {
		preview = strings.Join(strings.Fields(preview), " ")
		line += "\n" + s.Item.Render(s.Muted.Render(ansi.Truncate("  "+preview, avail, "…")))
	}
	line += "\n" + s.Item.Render(s.Muted.Render("  id: "+cs.ID))
	return line
}
