package feed

import (
	"errors"
	"testing"
)

func TestEncodeDecode_PreservesParameters(t *testing.T) {
	for _, in := range []Strategy{
		{Kind: KindProfile, Identity: "@alice=.ed25519"},
		RepliesStrategy("%root.sha256"),
		HashtagStrategy("#Gardening"),
	} {
		data, err := Encode(in)
		if err != nil {
			t.Fatalf("Encode(%v) returned error: %v", in, err)
		}
		out, err := Decode(data)
		if err != nil {
			t.Fatalf("Decode returned error: %v", err)
		}
		if out != in {
			t.Fatalf("expected %+v, got %+v", in, out)
		}
	}
}

func TestHashtagStrategy_Normalizes(t *testing.T) {
	s := HashtagStrategy("  ##Gardening ")
	if s.Hashtag != "gardening" {
		t.Fatalf("unexpected hashtag %q", s.Hashtag)
	}
	if got := s.String(); got != "hashtag(#gardening)" {
		t.Fatalf("unexpected String() %q", got)
	}
	if got := RepliesStrategy("%r.sha256").String(); got != "replies(%r.sha256)" {
		t.Fatalf("unexpected String() %q", got)
	}
	if got := (Strategy{Kind: KindReplies}).String(); got != "replies" {
		t.Fatalf("unexpected String() %q", got)
	}
}

func TestEncode_RejectsInvalidStrategy(t *testing.T) {
	if _, err := Encode(Strategy{Kind: "trending"}); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if _, err := Encode(Strategy{Kind: KindProfile}); !errors.Is(err, ErrMissingIdentity) {
		t.Fatalf("expected ErrMissingIdentity, got %v", err)
	}
	if _, err := Encode(HashtagStrategy("#")); !errors.Is(err, ErrMissingHashtag) {
		t.Fatalf("expected ErrMissingHashtag, got %v", err)
	}
	if _, err := Encode(Strategy{Kind: KindReplies}); err != nil {
		t.Fatalf("replies without a root lists replies to own posts, got %v", err)
	}
}

func TestDecodeOrDefault_FailsOpen(t *testing.T) {
	cases := map[string][]byte{
		"missing":         nil,
		"empty":           {},
		"not json":        []byte("bplist00\x01\x02"),
		"unknown kind":    []byte(`{"v":1,"kind":"trending"}`),
		"future version":  []byte(`{"v":2,"kind":"random"}`),
		"profile without": []byte(`{"v":1,"kind":"profile"}`),
		"hashtag without": []byte(`{"v":1,"kind":"hashtag"}`),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			got, _ := DecodeOrDefault(data, DefaultHomeStrategy)
			if got != DefaultHomeStrategy {
				t.Fatalf("expected default strategy, got %+v", got)
			}
		})
	}
}

func TestDecodeOrDefault_ReportsCorruption(t *testing.T) {
	if _, err := DecodeOrDefault(nil, DefaultHomeStrategy); err != nil {
		t.Fatalf("absent data must not be reported, got %v", err)
	}
	if _, err := DecodeOrDefault([]byte("{"), DefaultHomeStrategy); err == nil {
		t.Fatal("expected decode error for corrupt data")
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" One-Hop ")
	if err != nil {
		t.Fatalf("ParseKind returned error: %v", err)
	}
	if k != KindOneHop {
		t.Fatalf("unexpected kind %q", k)
	}
	if _, err := ParseKind("nope"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestStrategyNext_CyclesSelectableKinds(t *testing.T) {
	s := DefaultHomeStrategy
	seen := map[Kind]bool{}
	for i := 0; i < len(selectable); i++ {
		seen[s.Kind] = true
		s = s.Next()
	}
	if s != DefaultHomeStrategy {
		t.Fatalf("expected cycle to return to default, got %+v", s)
	}
	for _, k := range []Kind{KindProfile, KindReplies, KindHashtag} {
		if seen[k] {
			t.Fatalf("%s strategy must not be selectable", k)
		}
	}
	if len(seen) != len(Kinds)-3 {
		t.Fatalf("expected %d kinds in cycle, got %d", len(Kinds)-3, len(seen))
	}
	if got := HashtagStrategy("go").Next(); got.Kind != selectable[0] {
		t.Fatalf("expected parameterized kind to move to %s, got %s", selectable[0], got.Kind)
	}
}
