package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/planetary-social/planetary-cli/internal/render"
	"github.com/planetary-social/planetary-cli/internal/ssb"
	tuitheme "github.com/planetary-social/planetary-cli/internal/tui/theme"
)

// DetailLines lays out a message for the detail pane. body is the rendered
// post text.
func DetailLines(msg ssb.Message, body string, now time.Time, th tuitheme.Theme) []string {
	lines := make([]string, 0, 16)
	lines = append(lines,
		th.Author.Render(render.DisplayName(msg))+" "+th.Age.Render(RelativeTimeLabel(now, msg.Claimed())),
		th.MetaLabel.Render(string(msg.Author())),
		"",
	)
	if body != "" {
		lines = append(lines, strings.Split(body, "\n")...)
	}

	meta := msg.Metadata
	if meta.ReplyCount > 0 {
		names := make([]string, 0, len(meta.Repliers))
		for _, id := range meta.Repliers {
			names = append(names, string(id))
		}
		replies := fmt.Sprintf("%d replies", meta.ReplyCount)
		if meta.ReplyCount == 1 {
			replies = "1 reply"
		}
		if len(names) > 0 {
			replies += " from " + strings.Join(names, ", ")
		}
		lines = append(lines, "", th.Replies.Render(replies))
	}
	lines = append(lines, "", th.MetaLabel.Render("key")+" "+th.MetaValue.Render(string(msg.Key)))
	return lines
}

// Window returns at most height lines starting at top. A height below one
// shows everything from top.
func Window(lines []string, top, height int) string {
	if len(lines) == 0 {
		return ""
	}
	top = max(0, min(top, len(lines)-1))
	end := len(lines)
	if height > 0 {
		end = min(len(lines), top+height)
	}
	return strings.Join(lines[top:end], "\n")
}
