package theme

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/planetary-social/planetary-cli/internal/ssb"
)

func TestStyleSummary_ByKind(t *testing.T) {
	lipgloss.SetColorProfile(termenv.ANSI)
	th := Default()

	messages := map[string]ssb.Message{
		"root":    {Value: ssb.Value{Content: ssb.NewPost(ssb.Post{Text: "hi"})}},
		"reply":   {Value: ssb.Value{Content: ssb.NewPost(ssb.Post{Text: "hi", Root: "%r"})}},
		"contact": {Value: ssb.Value{Content: ssb.NewContact(ssb.Contact{Contact: "@a", Following: true})}},
	}
	for name, msg := range messages {
		got := th.StyleSummary(msg, name)
		if !strings.Contains(got, "\x1b[") || !strings.Contains(got, name) {
			t.Fatalf("expected styled %s summary, got %q", name, got)
		}
	}

	if got := th.StyleSummary(messages["root"], ""); got != "" {
		t.Fatalf("expected empty summary untouched, got %q", got)
	}
}

func TestRenderActiveLine(t *testing.T) {
	lipgloss.SetColorProfile(termenv.ANSI)
	th := Default()
	if got := th.RenderActiveLine(false, "row"); got != "row" {
		t.Fatalf("expected inactive line unchanged, got %q", got)
	}
	if got := th.RenderActiveLine(true, "row"); !strings.Contains(got, "\x1b[") {
		t.Fatalf("expected styled active line, got %q", got)
	}
}
