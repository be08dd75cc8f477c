package ssb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Identity is a public-key derived feed identifier such as "@abc=.ed25519".
type Identity string

// MessageKey is the content address of a message such as "%abc=.sha256".
type MessageKey string

type ContentType string

const (
	ContentPost        ContentType = "post"
	ContentContact     ContentType = "contact"
	ContentVote        ContentType = "vote"
	ContentAbout       ContentType = "about"
	ContentUnsupported ContentType = "unsupported"
)

type Post struct {
	Text     string       `json:"text"`
	Root     MessageKey   `json:"root,omitempty"`
	Branches []MessageKey `json:"branch,omitempty"`
	Mentions []Mention    `json:"mentions,omitempty"`
}

type Mention struct {
	Link string `json:"link"`
	Name string `json:"name,omitempty"`
}

type Contact struct {
	Contact   Identity `json:"contact"`
	Following bool     `json:"following"`
	Blocking  bool     `json:"blocking,omitempty"`
}

type Vote struct {
	Link  MessageKey `json:"link"`
	Value int        `json:"value"`
	Root  MessageKey `json:"root,omitempty"`
}

// About is the profile record published for an identity.
type About struct {
	About       Identity `json:"about"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Image       string   `json:"image,omitempty"`
}

// NameOrIdentity returns the display name, falling back to the identity.
func (a About) NameOrIdentity() string {
	if strings.TrimSpace(a.Name) != "" {
		return a.Name
	}
	return string(a.About)
}

// Content is the typed payload of a message. Exactly one of the pointer
// fields is set for supported types. Unknown or malformed payloads decode to
// ContentUnsupported with Raw preserved instead of failing.
type Content struct {
	Type    ContentType
	Post    *Post
	Contact *Contact
	Vote    *Vote
	About   *About

	TypeString string
	Raw        json.RawMessage
}

func NewPost(p Post) Content { return Content{Type: ContentPost, TypeString: "post", Post: &p} }
func NewContact(c Contact) Content {
	return Content{Type: ContentContact, TypeString: "contact", Contact: &c}
}
func NewVote(v Vote) Content   { return Content{Type: ContentVote, TypeString: "vote", Vote: &v} }
func NewAbout(a About) Content { return Content{Type: ContentAbout, TypeString: "about", About: &a} }

func (c *Content) UnmarshalJSON(data []byte) error {
	*c = Content{Type: ContentUnsupported, Raw: append(json.RawMessage(nil), data...)}

	// Private messages arrive as an opaque string.
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '"' {
		c.TypeString = "xxx-encrypted"
		return nil
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		c.TypeString = "invalid"
		return nil
	}
	c.TypeString = head.Type

	var err error
	switch ContentType(head.Type) {
	case ContentPost:
		var p Post
		if err = json.Unmarshal(data, &p); err == nil {
			c.Type, c.Post = ContentPost, &p
		}
	case ContentContact:
		var ct Contact
		if err = json.Unmarshal(data, &ct); err == nil {
			c.Type, c.Contact = ContentContact, &ct
		}
	case ContentVote:
		var wrapper struct {
			Vote Vote `json:"vote"`
		}
		if err = json.Unmarshal(data, &wrapper); err == nil {
			c.Type, c.Vote = ContentVote, &wrapper.Vote
		}
	case ContentAbout:
		var a About
		if err = json.Unmarshal(data, &a); err == nil {
			c.Type, c.About = ContentAbout, &a
		}
	}
	return nil
}

func (c Content) MarshalJSON() ([]byte, error) {
	switch c.Type {
	case ContentPost:
		return json.Marshal(struct {
			Type string `json:"type"`
			*Post
		}{"post", c.Post})
	case ContentContact:
		return json.Marshal(struct {
			Type string `json:"type"`
			*Contact
		}{"contact", c.Contact})
	case ContentVote:
		return json.Marshal(struct {
			Type string `json:"type"`
			Vote *Vote  `json:"vote"`
		}{"vote", c.Vote})
	case ContentAbout:
		return json.Marshal(struct {
			Type string `json:"type"`
			*About
		}{"about", c.About})
	}
	if len(c.Raw) > 0 {
		return c.Raw, nil
	}
	return json.Marshal(map[string]string{"type": c.TypeString})
}

// Value is the signed part of a message.
type Value struct {
	Author    Identity `json:"author"`
	Sequence  int64    `json:"sequence"`
	Timestamp float64  `json:"timestamp"` // claimed, milliseconds since epoch
	Content   Content  `json:"content"`
}

// Metadata is derived by the store so a list can render a message without
// further lookups.
type Metadata struct {
	AuthorAbout *About     `json:"authorAbout,omitempty"`
	ReplyCount  int        `json:"replyCount,omitempty"`
	Repliers    []Identity `json:"repliers,omitempty"`
	IsPrivate   bool       `json:"isPrivate,omitempty"`
}

// Message is an immutable, content addressed feed entry.
type Message struct {
	Key       MessageKey `json:"key"`
	Value     Value      `json:"value"`
	Timestamp float64    `json:"timestamp"` // received, milliseconds since epoch
	Metadata  Metadata   `json:"metadata"`
}

func (m Message) Author() Identity { return m.Value.Author }

func (m Message) Type() ContentType { return m.Value.Content.Type }

// Claimed is the author's timestamp. Claims from the future fall back to the
// received time.
func (m Message) Claimed() time.Time {
	claimed := millis(m.Value.Timestamp)
	if claimed.After(time.Now()) {
		return m.Received()
	}
	return claimed
}

func (m Message) Received() time.Time { return millis(m.Timestamp) }

// IsRoot reports whether the message is a post that starts a thread.
func (m Message) IsRoot() bool {
	return m.Value.Content.Type == ContentPost && m.Value.Content.Post.Root == ""
}

// Validate checks the fields the view database relies on.
func (m Message) Validate() error {
	if !strings.HasPrefix(string(m.Key), "%") {
		return fmt.Errorf("invalid message key %q", m.Key)
	}
	if !strings.HasPrefix(string(m.Value.Author), "@") {
		return fmt.Errorf("message %s: invalid author %q", m.Key, m.Value.Author)
	}
	return nil
}

func millis(ms float64) time.Time {
	return time.UnixMilli(int64(ms)).UTC()
}
