package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/planetary-social/planetary-cli/internal/ssb"
)

type Theme struct {
	Title      lipgloss.Style
	ModePill   lipgloss.Style
	ActiveLine lipgloss.Style
	MetaLabel  lipgloss.Style
	MetaValue  lipgloss.Style
	StateIdle  lipgloss.Style
	StateWarn  lipgloss.Style
	StateLoad  lipgloss.Style

	Author   lipgloss.Style
	Age      lipgloss.Style
	Replies  lipgloss.Style
	Post     lipgloss.Style
	Reply    lipgloss.Style
	Activity lipgloss.Style
}

func Default() Theme {
	cpMauve := lipgloss.Color("#cba6f7")
	cpRed := lipgloss.Color("#f38ba8")
	cpPeach := lipgloss.Color("#fab387")
	cpYellow := lipgloss.Color("#f9e2af")
	cpGreen := lipgloss.Color("#a6e3a1")
	cpTeal := lipgloss.Color("#94e2d5")
	cpLavender := lipgloss.Color("#b4befe")
	cpText := lipgloss.Color("#cdd6f4")
	cpSubtext0 := lipgloss.Color("#a6adc8")
	cpSubtext1 := lipgloss.Color("#bac2de")
	cpOverlay1 := lipgloss.Color("#7f849c")
	cpSurface0 := lipgloss.Color("#313244")

	return Theme{
		Title:      lipgloss.NewStyle().Bold(true).Foreground(cpMauve),
		ModePill:   lipgloss.NewStyle().Foreground(cpLavender).Background(cpSurface0).Padding(0, 1),
		ActiveLine: lipgloss.NewStyle().Background(cpSurface0).Foreground(cpText),
		MetaLabel:  lipgloss.NewStyle().Foreground(cpOverlay1),
		MetaValue:  lipgloss.NewStyle().Foreground(cpSubtext1),
		StateIdle:  lipgloss.NewStyle().Foreground(cpGreen),
		StateWarn:  lipgloss.NewStyle().Foreground(cpRed),
		StateLoad:  lipgloss.NewStyle().Foreground(cpPeach),

		Author:   lipgloss.NewStyle().Bold(true).Foreground(cpTeal),
		Age:      lipgloss.NewStyle().Foreground(cpOverlay1).Faint(true),
		Replies:  lipgloss.NewStyle().Foreground(cpYellow),
		Post:     lipgloss.NewStyle().Foreground(cpText),
		Reply:    lipgloss.NewStyle().Foreground(cpSubtext1),
		Activity: lipgloss.NewStyle().Italic(true).Foreground(cpSubtext0),
	}
}

// StyleSummary styles a list summary by what kind of message it describes.
func (t Theme) StyleSummary(msg ssb.Message, summary string) string {
	if summary == "" {
		return summary
	}
	switch {
	case msg.Type() == ssb.ContentPost && msg.IsRoot():
		return t.Post.Render(summary)
	case msg.Type() == ssb.ContentPost:
		return t.Reply.Render(summary)
	default:
		return t.Activity.Render(summary)
	}
}

func (t Theme) RenderActiveLine(active bool, line string) string {
	if !active {
		return line
	}
	return t.ActiveLine.Render(line)
}
