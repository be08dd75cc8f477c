package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/planetary-social/planetary-cli/internal/ssb"
)

// Kind names a feed selection algorithm.
type Kind string

const (
	KindRecentPosts                   Kind = "recent-posts"
	KindRecentPostsAndFollows         Kind = "recent-posts-and-follows"
	KindRecentlyActivePostsAndFollows Kind = "recently-active-posts-and-follows"
	KindRandom                        Kind = "random"
	KindOneHop                        Kind = "one-hop"
	KindNoHop                         Kind = "no-hop"
	KindProfile                       Kind = "profile"
	KindReplies                       Kind = "replies"
	KindHashtag                       Kind = "hashtag"
)

// Kinds lists every supported kind in display order.
var Kinds = []Kind{
	KindRecentPostsAndFollows,
	KindRecentlyActivePostsAndFollows,
	KindRecentPosts,
	KindOneHop,
	KindNoHop,
	KindRandom,
	KindProfile,
	KindReplies,
	KindHashtag,
}

// selectable are the kinds a user cycles through. The others need a
// parameter picked from a message.
var selectable = []Kind{
	KindRecentPostsAndFollows,
	KindRecentlyActivePostsAndFollows,
	KindRecentPosts,
	KindOneHop,
	KindNoHop,
	KindRandom,
}

var (
	ErrUnknownKind     = errors.New("unknown feed strategy")
	ErrMissingIdentity = errors.New("feed strategy requires an identity")
	ErrMissingHashtag  = errors.New("feed strategy requires a hashtag")
)

const encodingVersion = 1

// Strategy selects which messages make up a feed and in which order.
type Strategy struct {
	Kind Kind
	// Identity is the profile owner for KindProfile.
	Identity ssb.Identity
	// Seed fixes the order of KindRandom so pages stay consistent.
	Seed int64
	// Root limits KindReplies to one thread. Without it KindReplies lists
	// replies to the local user's posts.
	Root ssb.MessageKey
	// Hashtag is the tag for KindHashtag, without the leading '#'.
	Hashtag string
}

var (
	DefaultHomeStrategy     = Strategy{Kind: KindRecentPostsAndFollows}
	DefaultDiscoverStrategy = Strategy{Kind: KindRandom}
)

func ProfileStrategy(id ssb.Identity) Strategy {
	return Strategy{Kind: KindProfile, Identity: id}
}

// RepliesStrategy lists the replies in the thread started by root, oldest
// first.
func RepliesStrategy(root ssb.MessageKey) Strategy {
	return Strategy{Kind: KindReplies, Root: root}
}

func HashtagStrategy(tag string) Strategy {
	return Strategy{Kind: KindHashtag, Hashtag: NormalizeHashtag(tag)}
}

// NormalizeHashtag drops the leading '#' and lowercases tag.
func NormalizeHashtag(tag string) string {
	return strings.ToLower(strings.TrimLeft(strings.TrimSpace(tag), "#"))
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (s Strategy) Validate() error {
	if _, err := ParseKind(string(s.Kind)); err != nil {
		return err
	}
	if s.Kind == KindProfile && s.Identity == "" {
		return ErrMissingIdentity
	}
	if s.Kind == KindHashtag && NormalizeHashtag(s.Hashtag) == "" {
		return ErrMissingHashtag
	}
	return nil
}

func (s Strategy) String() string {
	switch s.Kind {
	case KindProfile:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Identity)
	case KindRandom:
		return fmt.Sprintf("%s(seed=%d)", s.Kind, s.Seed)
	case KindHashtag:
		return fmt.Sprintf("%s(#%s)", s.Kind, NormalizeHashtag(s.Hashtag))
	case KindReplies:
		if s.Root != "" {
			return fmt.Sprintf("%s(%s)", s.Kind, s.Root)
		}
	}
	return string(s.Kind)
}

// Next returns the strategy following s among the kinds that take no
// parameter. Any other kind moves to the first of them.
func (s Strategy) Next() Strategy {
	for i, k := range selectable {
		if k == s.Kind {
			return Strategy{Kind: selectable[(i+1)%len(selectable)], Seed: s.Seed}
		}
	}
	return Strategy{Kind: selectable[0]}
}

type encodedStrategy struct {
	Version  int            `json:"v"`
	Kind     Kind           `json:"kind"`
	Identity ssb.Identity   `json:"identity,omitempty"`
	Seed     int64          `json:"seed,omitempty"`
	Root     ssb.MessageKey `json:"root,omitempty"`
	Hashtag  string         `json:"hashtag,omitempty"`
}

// Encode serializes a strategy for persistence.
func Encode(s Strategy) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(encodedStrategy{
		Version:  encodingVersion,
		Kind:     s.Kind,
		Identity: s.Identity,
		Seed:     s.Seed,
		Root:     s.Root,
		Hashtag:  s.Hashtag,
	})
}

// Decode parses data produced by Encode.
func Decode(data []byte) (Strategy, error) {
	var enc encodedStrategy
	if err := json.Unmarshal(data, &enc); err != nil {
		return Strategy{}, fmt.Errorf("decode feed strategy: %w", err)
	}
	if enc.Version != encodingVersion {
		return Strategy{}, fmt.Errorf("decode feed strategy: unsupported version %d", enc.Version)
	}
	s := Strategy{Kind: enc.Kind, Identity: enc.Identity, Seed: enc.Seed, Root: enc.Root, Hashtag: enc.Hashtag}
	if err := s.Validate(); err != nil {
		return Strategy{}, fmt.Errorf("decode feed strategy: %w", err)
	}
	return s, nil
}

// DecodeOrDefault decodes data and falls back to def when data is empty or
// cannot be decoded. The returned error reports the decode failure, if any,
// and is informational only.
func DecodeOrDefault(data []byte, def Strategy) (Strategy, error) {
	if len(data) == 0 {
		return def, nil
	}
	s, err := Decode(data)
	if err != nil {
		return def, err
	}
	return s, nil
}
