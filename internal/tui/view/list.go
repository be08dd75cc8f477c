package view

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/planetary-social/planetary-cli/internal/render"
	"github.com/planetary-social/planetary-cli/internal/ssb"
	tuitheme "github.com/planetary-social/planetary-cli/internal/tui/theme"
)

var reANSICodes = regexp.MustCompile(`\x1b\[[0-9;]*m`)

type MessageLineParams struct {
	Message ssb.Message
	Now     time.Time
	Active  bool
	Width   int
}

// RenderMessageLine renders one list row: author, summary, then reply count
// and age right-aligned.
func RenderMessageLine(p MessageLineParams, th tuitheme.Theme) string {
	cursor := "  "
	if p.Active {
		cursor = "> "
	}
	author := truncateRunes(render.DisplayName(p.Message), 20)

	right := "[" + RelativeTimeLabel(p.Now, p.Message.Claimed()) + "]"
	if n := p.Message.Metadata.ReplyCount; n > 0 {
		right = th.Replies.Render(fmt.Sprintf("%d↩", n)) + " " + right
	}

	left := cursor + th.Author.Render(author) + " "
	available := p.Width - visibleLen(left) - 1 - visibleLen(right)
	if available < 1 {
		available = 1
	}
	summary := truncateRunes(render.Summary(p.Message), available)
	styled := th.StyleSummary(p.Message, summary)

	gap := p.Width - visibleLen(left) - visibleLen(summary) - visibleLen(right)
	if gap < 1 {
		gap = 1
	}
	return th.RenderActiveLine(p.Active, left+styled+strings.Repeat(" ", gap)+right)
}

func RelativeTimeLabel(now, then time.Time) string {
	if now.IsZero() {
		now = time.Now()
	}
	if then.IsZero() {
		return "unknown"
	}
	if then.After(now) {
		return "now"
	}
	d := now.Sub(then)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d/time.Hour))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(d/(24*time.Hour)))
	}
	return then.UTC().Format(time.DateOnly)
}

func truncateRunes(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return strings.Repeat(".", maxLen)
	}
	runes := []rune(s)
	return string(runes[:maxLen-3]) + "..."
}

func visibleLen(s string) int {
	return utf8.RuneCountInString(stripANSIText(s))
}

func stripANSIText(s string) string {
	return reANSICodes.ReplaceAllString(s, "")
}
