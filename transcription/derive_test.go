package transcription

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestGenerator_DeriveKinds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		kind     ViewKind
		wantInst string
	}{
		{kind: ViewSummary, wantInst: "bullet points"},
		{kind: ViewTranslation, wantInst: "into French"},
		{kind: ViewRefinement, wantInst: "grammar and punctuation"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(string(tc.kind), func(t *testing.T) {
			t.Parallel()
			m := &scriptedModel{replies: []scriptedReply{{out: "  result \n"}}}
			g := NewGenerator(m, "French")

			out, err := g.Derive(context.Background(), tc.kind, "the text")
			if err != nil {
				t.Fatalf("Derive: %v", err)
			}
			if out != "result" {
				t.Fatalf("out=%q, want result", out)
			}
			if !strings.Contains(m.calls[0].Instructions, tc.wantInst) {
				t.Fatalf("instructions=%q, want to contain %q", m.calls[0].Instructions, tc.wantInst)
			}
			if m.calls[0].Prompt != "the text" {
				t.Fatalf("prompt=%q", m.calls[0].Prompt)
			}
		})
	}
}

func TestGenerator_DefaultLanguage(t *testing.T) {
	t.Parallel()

	if g := NewGenerator(nil, " "); g.TargetLanguage != DefaultTargetLanguage {
		t.Fatalf("TargetLanguage=%q, want %q", g.TargetLanguage, DefaultTargetLanguage)
	}
}

func TestGenerator_FailuresBecomeFallbackText(t *testing.T) {
	t.Parallel()

	m := &scriptedModel{replies: []scriptedReply{
		{err: errors.New("boom")},
		{out: "   "},
		{err: errors.New("boom")},
		{err: errors.New("boom")},
	}}
	g := NewGenerator(m, "")
	ctx := context.Background()

	if got := g.Summarize(ctx, "t"); got != FallbackText(ViewSummary) {
		t.Fatalf("Summarize=%q", got)
	}
	if got := g.Translate(ctx, "t"); got != FallbackText(ViewTranslation) {
		t.Fatalf("Translate=%q", got)
	}
	if got := g.Refine(ctx, "t"); got != FallbackText(ViewRefinement) {
		t.Fatalf("Refine=%q", got)
	}
	if got := g.Chat(ctx, nil, "t", "q?"); got != ChatFallbackText {
		t.Fatalf("Chat=%q", got)
	}
}

func TestGenerator_DeriveEmptyIsError(t *testing.T) {
	t.Parallel()

	g := NewGenerator(&scriptedModel{replies: []scriptedReply{{out: ""}}}, "")
	if _, err := g.Derive(context.Background(), ViewSummary, "t"); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("err=%v, want ErrEmptyResponse", err)
	}
}

func TestGenerator_ReplyGroundsOnTranscriptAndHistory(t *testing.T) {
	t.Parallel()

	m := &scriptedModel{replies: []scriptedReply{{out: "Tuesday."}}}
	g := NewGenerator(m, "")
	history := []ChatMessage{{Role: RoleUser, Text: "who?"}, {Role: RoleModel, Text: "Ann."}}

	out, err := g.Reply(context.Background(), history, "We met on Tuesday.", "when?")
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if out != "Tuesday." {
		t.Fatalf("out=%q", out)
	}
	req := m.calls[0]
	if !strings.HasSuffix(req.Instructions, "We met on Tuesday.") {
		t.Fatalf("instructions should end with the transcript: %q", req.Instructions)
	}
	if req.Prompt != "when?" || len(req.History) != 2 {
		t.Fatalf("req=%+v", req)
	}
}

func TestFallbackText_UnknownKind(t *testing.T) {
	t.Parallel()

	if FallbackText("nope") == "" {
		t.Fatalf("fallback should never be empty")
	}
}
