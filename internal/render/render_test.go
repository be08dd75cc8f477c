package render

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/planetary-social/planetary-cli/internal/ssb"
)

func postMessage(text string, root ssb.MessageKey) ssb.Message {
	return ssb.Message{
		Key: "%post.sha256",
		Value: ssb.Value{
			Author:    "@alice1234567890=.ed25519",
			Timestamp: float64(time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC).UnixMilli()),
			Content:   ssb.NewPost(ssb.Post{Text: text, Root: root}),
		},
	}
}

func TestPostText_RendersMarkdownWithoutStyling(t *testing.T) {
	msg := postMessage("# Hello\n\nSome **bold** words and a [link](https://example.com).", "")
	got := stripANSI(PostText(msg, 60))

	if !strings.Contains(got, "Hello") || !strings.Contains(got, "bold") {
		t.Fatalf("expected heading and body text, got %q", got)
	}
	if !strings.Contains(got, "https://example.com") {
		t.Fatalf("expected link target, got %q", got)
	}
}

func TestPostText_WrapsToWidth(t *testing.T) {
	msg := postMessage(strings.Repeat("word ", 60), "")
	for _, line := range strings.Split(stripANSI(PostText(msg, 30)), "\n") {
		if n := len([]rune(strings.TrimRight(line, " "))); n > 30 {
			t.Fatalf("line exceeds width (%d): %q", n, line)
		}
	}
}

func TestPostText_StripsHTMLAndReferenceLinks(t *testing.T) {
	msg := postMessage(`hi [@bob](@bob=.ed25519)<script>alert(1)</script><p>second</p>`, "")
	got := stripANSI(PostText(msg, 60))

	if strings.Contains(got, "alert") || strings.Contains(got, "<p>") {
		t.Fatalf("expected markup removed, got %q", got)
	}
	if strings.Contains(got, "bob=.ed25519") {
		t.Fatalf("expected reference link target removed, got %q", got)
	}
	if !strings.Contains(got, "@bob") || !strings.Contains(got, "second") {
		t.Fatalf("expected link label and text kept, got %q", got)
	}
}

func TestPostText_NonPostUsesSummary(t *testing.T) {
	msg := ssb.Message{Value: ssb.Value{
		Author:  "@me=.ed25519",
		Content: ssb.NewContact(ssb.Contact{Contact: "@bob=.ed25519", Following: true}),
	}}
	if got := PostText(msg, 40); got != "followed @bob=.ed255…" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestShortIdentity_TruncatesToTwelveRunes(t *testing.T) {
	got := shortIdentity("@bob=.ed25519")
	if n := utf8.RuneCountInString(got); n != 12 {
		t.Fatalf("expected 12 runes, got %d in %q", n, got)
	}
	if got != "@bob=.ed255…" {
		t.Fatalf("unexpected identity %q", got)
	}
	if got := shortIdentity("@short"); got != "@short" {
		t.Fatalf("expected short identity untouched, got %q", got)
	}
}

func TestSummary(t *testing.T) {
	long := strings.Repeat("x", 200)
	tests := []struct {
		name string
		msg  ssb.Message
		want string
	}{
		{name: "root post", msg: postMessage("\n\n## First line\nsecond", ""), want: "First line"},
		{name: "reply", msg: postMessage("thanks!", "%root.sha256"), want: "↳ thanks!"},
		{name: "empty", msg: postMessage("   ", ""), want: "(empty post)"},
		{name: "long", msg: postMessage(long, ""), want: strings.Repeat("x", summaryLimit-1) + "…"},
		{
			name: "block",
			msg:  ssb.Message{Value: ssb.Value{Content: ssb.NewContact(ssb.Contact{Contact: "@x=.ed25519", Blocking: true})}},
			want: "blocked @x=.ed25519",
		},
		{
			name: "vote",
			msg:  ssb.Message{Value: ssb.Value{Content: ssb.NewVote(ssb.Vote{Link: "%a", Value: 1})}},
			want: "liked a message",
		},
		{
			name: "own about",
			msg:  ssb.Message{Value: ssb.Value{Author: "@me", Content: ssb.NewAbout(ssb.About{About: "@me", Name: "Me"})}},
			want: "updated their profile",
		},
		{
			name: "unsupported",
			msg:  ssb.Message{Value: ssb.Value{Content: ssb.Content{Type: ssb.ContentUnsupported, TypeString: "gathering"}}},
			want: "[gathering]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Summary(tt.msg); got != tt.want {
				t.Fatalf("Summary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDisplayNameAndAge(t *testing.T) {
	msg := postMessage("hi", "")
	if got := DisplayName(msg); got != "@alice12345…" {
		t.Fatalf("expected shortened identity, got %q", got)
	}
	msg.Metadata.AuthorAbout = &ssb.About{About: msg.Author(), Name: "Alice"}
	if got := DisplayName(msg); got != "Alice" {
		t.Fatalf("expected name, got %q", got)
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if got := Age(msg, now); got != "1 hour ago" {
		t.Fatalf("unexpected age %q", got)
	}
}

func TestWrapText_SplitsLongWords(t *testing.T) {
	got := wrapText("ab abcdefgh", 4)
	want := []string{"ab", "abcd", "efgh"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("wrapText() = %q, want %q", got, want)
	}
}
