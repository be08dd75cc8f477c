package render

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/planetary-social/planetary-cli/internal/ssb"
)

const summaryLimit = 140

// Summary is a single line describing msg for list rows.
func Summary(msg ssb.Message) string {
	c := msg.Value.Content
	switch c.Type {
	case ssb.ContentPost:
		text := firstLine(markdownSource(c.Post.Text))
		if text == "" {
			text = "(empty post)"
		}
		if !msg.IsRoot() {
			text = "↳ " + text
		}
		return truncate(text, summaryLimit)
	case ssb.ContentContact:
		target := shortIdentity(c.Contact.Contact)
		switch {
		case c.Contact.Blocking:
			return "blocked " + target
		case c.Contact.Following:
			return "followed " + target
		default:
			return "unfollowed " + target
		}
	case ssb.ContentVote:
		if c.Vote.Value > 0 {
			return "liked a message"
		}
		return "unliked a message"
	case ssb.ContentAbout:
		if c.About.About == msg.Author() {
			return "updated their profile"
		}
		return "described " + shortIdentity(c.About.About)
	}
	if c.TypeString == "" {
		return "[unknown message]"
	}
	return fmt.Sprintf("[%s]", c.TypeString)
}

// DisplayName is the author's name when known, else a shortened identity.
func DisplayName(msg ssb.Message) string {
	if a := msg.Metadata.AuthorAbout; a != nil && strings.TrimSpace(a.Name) != "" {
		return a.Name
	}
	return shortIdentity(msg.Author())
}

// Age is the claimed time of msg relative to now, e.g. "5 minutes ago".
func Age(msg ssb.Message, now time.Time) string {
	return humanize.RelTime(msg.Claimed(), now, "ago", "from now")
}

func shortIdentity(id ssb.Identity) string {
	s := string(id)
	if utf8.RuneCountInString(s) <= 12 {
		return s
	}
	return truncate(s, 12)
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#>*-"))
		if line != "" {
			return strings.Join(strings.Fields(line), " ")
		}
	}
	return ""
}

// truncate shortens s to at most n runes, ending with an ellipsis.
func truncate(s string, n int) string {
	if n < 1 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}

func trimBlankLines(lines []string) []string {
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	end := len(lines) - 1
	for end >= start && strings.TrimSpace(lines[end]) == "" {
		end--
	}
	if end < start {
		return nil
	}
	out := make([]string, 0, end-start+1)
	prevBlank := false
	for i := start; i <= end; i++ {
		line := strings.TrimRight(lines[i], " \t")
		blank := strings.TrimSpace(line) == ""
		if blank && prevBlank {
			continue
		}
		out = append(out, line)
		prevBlank = blank
	}
	return out
}

func wrapText(text string, width int) []string {
	if width < 1 {
		return []string{text}
	}
	out := make([]string, 0, 8)
	for _, p := range strings.Split(text, "\n") {
		words := strings.Fields(p)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := ""
		for _, word := range words {
			for utf8.RuneCountInString(word) > width {
				if line != "" {
					out = append(out, line)
					line = ""
				}
				runes := []rune(word)
				out = append(out, string(runes[:width]))
				word = string(runes[width:])
			}
			switch {
			case line == "":
				line = word
			case utf8.RuneCountInString(line)+1+utf8.RuneCountInString(word) <= width:
				line += " " + word
			default:
				out = append(out, line)
				line = word
			}
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
