package view

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"gwi.com/assistant-console/internal/core"
	"gwi.com/assistant-console/internal/store"
)

// Thread renders a conversation grouped into sender runs.
func (s Styles) Thread(messages []store.Message, responding bool, width int) string {
	width = max(width, minWidth)
	var b strings.Builder

	if len(messages) == 0 && !responding {
		b.WriteString(s.Muted.Render("Ask anything"))
		b.WriteString("\n")
		return b.String()
	}

	for i, run := range core.GroupBySender(messages) {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(s.runHeader(run))
		b.WriteString("\n")
		for _, m := range run.Messages {
			b.WriteString(s.message(m, width))
		}
	}
	if responding {
		b.WriteString("\n")
		b.WriteString(s.Pending.Render("AI is thinking..."))
		b.WriteString("\n")
	}
	return b.String()
}

func (s Styles) runHeader(run core.SenderRun) string {
	name, style := "You", s.User
	if run.Sender == store.SenderAssistant {
		name, style = "Assistant", s.Assistant
	}
	header := style.Render(name)
	if first := run.Messages[0]; !first.Timestamp.IsZero() {
		header += " " + s.Muted.Render(first.Timestamp.Local().Format("15:04"))
	}
	return header
}

func (s Styles) message(m store.Message, width int) string {
	var b strings.Builder
	body := ansi.Wordwrap(m.Content, width-2, "")
	for _, line := range strings.Split(body, "\n") {
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteString("\n")
	}

	switch m.Status {
	case store.StatusPending:
		b.WriteString("  " + s.Pending.Render("sending...") + "\n")
	case store.StatusFailed:
		b.WriteString("  " + s.Failed.Render(fmt.Sprintf("not sent (id %s), use /retry or /discard", shortID(m.ID))) + "\n")
	}

	if m.Metadata != nil {
		b.WriteString(s.metadata(m.Metadata.Confidence, m.Metadata.Sources, width))
	}
	return b.String()
}

func (s Styles) metadata(confidence float64, sources []store.Source, width int) string {
	var b strings.Builder
	pct := int(math.Round(confidence * 100))
	b.WriteString("  " + s.confidenceStyle(confidence).Render(fmt.Sprintf("%d%% confidence", pct)))
	if len(sources) > 0 {
		b.WriteString(s.Muted.Render(fmt.Sprintf(" · %d %s", len(sources), plural(len(sources), "source", "sources"))))
	}
	b.WriteString("\n")
	for i, src := range sources {
		b.WriteString(s.source(i, src, width))
	}
	return b.String()
}

func (s Styles) source(i int, src store.Source, width int) string {
	var parts []string
	if src.PageNumber != "" {
		parts = append(parts, "Page "+src.PageNumber)
	}
	if src.Section != "" {
		parts = append(parts, "Section "+src.Section)
	}
	label := fmt.Sprintf("    [%d] %s", i+1, strings.Join(parts, " • "))
	line := s.Muted.Render(ansi.Truncate(label, width, "…")) + "\n"
	if c := strings.TrimSpace(src.Content); c != "" {
		c = strings.Join(strings.Fields(c), " ")
		line += s.Muted.Render(ansi.Truncate("        "+c, width, "…")) + "\n"
	}
	return line
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
