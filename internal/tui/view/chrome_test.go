package view

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/planetary-social/planetary-cli/internal/ssb"
	tuitheme "github.com/planetary-social/planetary-cli/internal/tui/theme"
)

var ansiStrip = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiStrip.ReplaceAllString(s, "")
}

func TestToolbar(t *testing.T) {
	if got := Toolbar(false); !strings.Contains(got, "j/k move") || !strings.Contains(got, "s strategy") {
		t.Fatalf("unexpected list toolbar: %q", got)
	}
	if got := Toolbar(true); !strings.Contains(got, "j/k scroll") {
		t.Fatalf("unexpected detail toolbar: %q", got)
	}
}

func TestFooter(t *testing.T) {
	th := tuitheme.Default()
	got := stripANSI(Footer("list", "random", 42, false, th))
	for _, want := range []string{"mode list", "strategy random", "42 shown", "more available"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in footer, got %q", want, got)
		}
	}
	if got := stripANSI(Footer("list", "random", 42, true, th)); !strings.Contains(got, "end of feed") {
		t.Fatalf("expected end of feed marker, got %q", got)
	}
}

func TestMessage(t *testing.T) {
	th := tuitheme.Default()
	tests := []struct {
		loading, warn   bool
		status, warning string
		want            string
	}{
		{want: "state: idle | Ready"},
		{loading: true, want: "state: loading | Ready"},
		{warn: true, warning: "timed out", want: "state: warning | timed out"},
		{status: "Strategy saved", want: "state: idle | Strategy saved"},
		{warn: true, status: "Could not save feed strategy", warning: "readonly database", want: "state: warning | Could not save feed strategy: readonly database"},
	}
	for _, tt := range tests {
		if got := stripANSI(Message(tt.loading, tt.warn, tt.status, tt.warning, th)); got != tt.want {
			t.Fatalf("Message() = %q, want %q", got, tt.want)
		}
	}
}

func TestRenderMessageLine(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := ssb.Message{
		Key: "%a.sha256",
		Value: ssb.Value{
			Author:    "@alice=.ed25519",
			Timestamp: float64(now.Add(-3 * time.Hour).UnixMilli()),
			Content:   ssb.NewPost(ssb.Post{Text: "hello world, this is a fairly long first post in the feed"}),
		},
		Metadata: ssb.Metadata{
			AuthorAbout: &ssb.About{About: "@alice=.ed25519", Name: "Alice"},
			ReplyCount:  2,
		},
	}

	got := stripANSI(RenderMessageLine(MessageLineParams{Message: msg, Now: now, Active: true, Width: 60}, tuitheme.Default()))
	if !strings.HasPrefix(got, "> Alice hello world") {
		t.Fatalf("unexpected line start: %q", got)
	}
	if !strings.HasSuffix(got, "2↩ [3h]") {
		t.Fatalf("expected reply count and age at the end, got %q", got)
	}
	if n := visibleLen(got); n != 60 {
		t.Fatalf("expected line padded to width 60, got %d: %q", n, got)
	}
}

func TestRelativeTimeLabel(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := map[time.Duration]string{
		10 * time.Second:    "now",
		5 * time.Minute:     "5m",
		2 * time.Hour:       "2h",
		3 * 24 * time.Hour:  "3d",
		30 * 24 * time.Hour: "2026-01-30",
	}
	for ago, want := range tests {
		if got := RelativeTimeLabel(now, now.Add(-ago)); got != want {
			t.Fatalf("RelativeTimeLabel(-%s) = %q, want %q", ago, got, want)
		}
	}
}

func TestWindow(t *testing.T) {
	lines := []string{"a", "b", "c", "d"}
	if got := Window(lines, 1, 2); got != "b\nc" {
		t.Fatalf("unexpected window %q", got)
	}
	if got := Window(lines, 10, 2); got != "d" {
		t.Fatalf("expected clamped window, got %q", got)
	}
	if got := Window(lines, 0, 0); got != "a\nb\nc\nd" {
		t.Fatalf("expected full window, got %q", got)
	}
}
