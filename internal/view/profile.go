package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"gwi.com/assistant-console/internal/core"
	"gwi.com/assistant-console/internal/store"
	"gwi.com/assistant-console/internal/utils"
)

// Profile renders the profile screen. A data-URL picture is described, not
// printed.
func (s Styles) Profile(u *store.User, theme store.Theme, width int) string {
	width = max(width, minWidth)
	if u == nil {
		return s.Muted.Render("Not signed in") + "\n"
	}
	rows := [][2]string{
		{"Username", u.Username},
		{"Email", u.Email},
		{"Region", u.Region},
		{"Picture", describePicture(u.ProfilePictureURL)},
		{"Theme", string(theme)},
		{"User ID", u.ID},
	}
	var b strings.Builder
	b.WriteString(s.Title.Render("Profile"))
	b.WriteString("\n")
	for _, r := range rows {
		label := s.Muted.Render(fmt.Sprintf("%-9s", r[0]))
		b.WriteString(ansi.Truncate(label+" "+r[1], width, "…"))
		b.WriteString("\n")
	}
	return s.Panel.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}

func describePicture(url string) string {
	switch {
	case url == "":
		return "none"
	case strings.HasPrefix(url, "data:"):
		mediaType, size := utils.DescribeDataURL(url)
		return fmt.Sprintf("%s, %s (stored locally)", mediaType, humanize.IBytes(uint64(size)))
	default:
		return url
	}
}

// Answer renders a direct RAG answer with its query rewrite and sources.
func (s Styles) Answer(resp *store.RAGResponse, width int) string {
	width = max(width, minWidth)
	md := resp.Metadata
	var b strings.Builder
	b.WriteString(s.Assistant.Render("Assistant"))
	b.WriteString("\n")
	for _, line := range strings.Split(ansi.Wordwrap(resp.Response, width-2, ""), "\n") {
		b.WriteString("  " + line + "\n")
	}
	if md.RefinedQuery != "" && md.RefinedQuery != md.OriginalQuery {
		b.WriteString(s.Muted.Render(ansi.Truncate("  searched for: "+md.RefinedQuery, width, "…")))
		b.WriteString("\n")
	}
	b.WriteString(s.metadata(md.Confidence, md.Sources, width))
	if core.LowConfidence(md.Confidence) {
		b.WriteString("  " + s.Warning.Render("Low confidence: check the sources before relying on this answer."))
		b.WriteString("\n")
	}
	return b.String()
}

// Notice renders an error for the user. Nil renders nothing.
func (s Styles) Notice(err error) string {
	if err == nil {
		return ""
	}
	return s.Error.Render("Error: "+err.Error()) + "\n"
}
