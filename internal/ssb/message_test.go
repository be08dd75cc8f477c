package ssb

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMessage_UnmarshalKeyValue(t *testing.T) {
	raw := `{
  "key": "%post1=.sha256",
  "value": {
    "author": "@alice=.ed25519",
    "sequence": 3,
    "timestamp": 1652813189000,
    "content": {"type": "post", "text": "hello #scuttlebutt", "root": "%root=.sha256"}
  },
  "timestamp": 1652813515000
}`
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if msg.Type() != ContentPost {
		t.Fatalf("expected post content, got %q", msg.Type())
	}
	if msg.Value.Content.Post.Root != "%root=.sha256" {
		t.Fatalf("unexpected root: %q", msg.Value.Content.Post.Root)
	}
	if msg.IsRoot() {
		t.Fatal("reply must not be reported as root")
	}
	if got := msg.Claimed(); !got.Equal(time.UnixMilli(1652813189000)) {
		t.Fatalf("unexpected claimed time: %v", got)
	}
	if err := msg.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

func TestContent_UnknownTypeDoesNotFail(t *testing.T) {
	var c Content
	if err := json.Unmarshal([]byte(`{"type":"git-update","repo":"%x"}`), &c); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if c.Type != ContentUnsupported || c.TypeString != "git-update" {
		t.Fatalf("unexpected content: %+v", c)
	}

	out, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	if string(out) != `{"type":"git-update","repo":"%x"}` {
		t.Fatalf("raw payload not preserved: %s", out)
	}
}

func TestContent_EncryptedString(t *testing.T) {
	var c Content
	if err := json.Unmarshal([]byte(`"c2VjcmV0.box"`), &c); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if c.Type != ContentUnsupported || c.TypeString != "xxx-encrypted" {
		t.Fatalf("unexpected content: %+v", c)
	}
}

func TestContent_VoteShape(t *testing.T) {
	var c Content
	if err := json.Unmarshal([]byte(`{"type":"vote","vote":{"link":"%a=.sha256","value":1}}`), &c); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if c.Type != ContentVote || c.Vote.Link != "%a=.sha256" || c.Vote.Value != 1 {
		t.Fatalf("unexpected vote: %+v", c)
	}
}

func TestMessage_ClaimedInFutureFallsBackToReceived(t *testing.T) {
	received := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	msg := Message{
		Key:       "%k=.sha256",
		Value:     Value{Author: "@a=.ed25519", Timestamp: float64(time.Now().Add(48 * time.Hour).UnixMilli())},
		Timestamp: float64(received.UnixMilli()),
	}
	if got := msg.Claimed(); !got.Equal(received) {
		t.Fatalf("expected received time, got %v", got)
	}
}

func TestAbout_NameOrIdentity(t *testing.T) {
	if got := (About{About: "@a=.ed25519"}).NameOrIdentity(); got != "@a=.ed25519" {
		t.Fatalf("unexpected fallback: %s", got)
	}
	if got := (About{About: "@a=.ed25519", Name: "Alice"}).NameOrIdentity(); got != "Alice" {
		t.Fatalf("unexpected name: %s", got)
	}
}
